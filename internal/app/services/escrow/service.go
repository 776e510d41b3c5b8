// Package escrow implements fund custody and conditional release for
// project payments.
package escrow

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/lancechain/ledger/internal/app/chain"
	core "github.com/lancechain/ledger/internal/app/core/service"
	"github.com/lancechain/ledger/internal/app/domain/escrow"
	"github.com/lancechain/ledger/internal/app/domain/project"
	"github.com/lancechain/ledger/internal/app/events"
	"github.com/lancechain/ledger/internal/app/metrics"
	"github.com/lancechain/ledger/internal/app/storage"
	"github.com/lancechain/ledger/pkg/logger"
)

// maxFeeBps caps the platform fee at 10%.
const maxFeeBps = 1000

// feeDenominator converts basis points to a fraction.
const feeDenominator = 10000

// WorkRecorder receives the reputation record cut when a payment releases.
// Implemented by the statistics service.
type WorkRecorder interface {
	RecordWork(ctx context.Context, caller, freelancer string, projectID int64, client string, amount int64, workHash string, rating int) error
}

// Service holds payments in custody and releases or refunds them against
// project state. All fund-moving entry points are guarded against re-entry
// for the duration of the call.
type Service struct {
	projects storage.ProjectStore
	store    storage.EscrowStore
	engine   chain.TransferEngine
	log      *logger.Logger
	emitter  events.Emitter
	now      func() time.Time
	guard    *entryGuard

	recorder     WorkRecorder
	recorderAddr string
	escrowAddr   string

	mu           sync.RWMutex
	admin        string
	feeBps       int64
	feeCollector string
}

// New constructs an escrow service. escrowAddr is the custodial address
// funds sit at between funding and release.
func New(projects storage.ProjectStore, store storage.EscrowStore, engine chain.TransferEngine, escrowAddr string, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("escrow")
	}
	return &Service{
		projects:   projects,
		store:      store,
		engine:     engine,
		escrowAddr: escrowAddr,
		log:        log,
		emitter:    events.NopEmitter{},
		now:        func() time.Time { return time.Now().UTC() },
		guard:      newEntryGuard(),
	}
}

// WithAdmin sets the administrator address gating fee configuration and
// refund override.
func (s *Service) WithAdmin(address string) *Service {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.admin = address
	return s
}

// AttachRecorder wires the statistics recorder and the proxy identity this
// service records under.
func (s *Service) AttachRecorder(recorder WorkRecorder, proxyAddr string) *Service {
	s.recorder = recorder
	s.recorderAddr = proxyAddr
	return s
}

// WithEmitter overrides the event emitter.
func (s *Service) WithEmitter(e events.Emitter) *Service {
	if e != nil {
		s.emitter = e
	}
	return s
}

// WithClock overrides the time source, primarily for tests.
func (s *Service) WithClock(now func() time.Time) *Service {
	if now != nil {
		s.now = now
	}
	return s
}

// SetPlatformFee sets the fee in basis points. Administrator only; capped
// at 10%.
func (s *Service) SetPlatformFee(_ context.Context, caller string, bps int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if caller != s.admin || s.admin == "" {
		return core.NewAccessDeniedError("platform fee", "", caller)
	}
	if bps < 0 || bps > maxFeeBps {
		return core.NewValidationError("fee_bps", "must be between 0 and 1000")
	}
	s.feeBps = bps
	return nil
}

// SetFeeCollector sets the fee payout address. Administrator only.
func (s *Service) SetFeeCollector(_ context.Context, caller, address string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if caller != s.admin || s.admin == "" {
		return core.NewAccessDeniedError("fee collector", address, caller)
	}
	if address == "" {
		return core.RequiredError("address")
	}
	s.feeCollector = address
	return nil
}

// RegisterWallet records the caller's payout wallet. One registration per
// owner; a duplicate is rejected.
func (s *Service) RegisterWallet(ctx context.Context, caller, address string) (escrow.Wallet, error) {
	if address == "" {
		return escrow.Wallet{}, core.RequiredError("address")
	}
	return s.store.CreateWallet(ctx, escrow.Wallet{Owner: caller, Address: address, RegisteredAt: s.now()})
}

// CreatePayment opens the payment for a project. The caller must be the
// project client, the project must be Published or InProgress with a
// freelancer assigned, and no payment may already exist for it.
//
// value is the native currency attached to the call. For native payments it
// must equal amount exactly and the payment funds immediately. For token
// payments it must be zero: token funding is a separate step because the
// token transfer needs a prior allowance and cannot be bundled atomically
// with creation.
func (s *Service) CreatePayment(ctx context.Context, caller string, projectID int64, token string, amount, value int64) (escrow.Payment, error) {
	if amount <= 0 {
		return escrow.Payment{}, core.NewValidationError("amount", "must be positive")
	}
	if token == "" {
		token = escrow.NativeToken
	}

	release, err := s.guard.acquire("project", projectID)
	if err != nil {
		return escrow.Payment{}, err
	}
	defer release()

	proj, err := s.projects.GetProject(ctx, projectID)
	if err != nil {
		return escrow.Payment{}, err
	}
	if proj.Client != caller {
		return escrow.Payment{}, core.NewAccessDeniedError("payment", formatID(projectID), caller)
	}
	if proj.Status != project.StatusPublished && proj.Status != project.StatusInProgress {
		return escrow.Payment{}, core.NewStateError("project", formatID(projectID), string(proj.Status),
			"payments require a published or in-progress project")
	}
	if proj.Freelancer == "" {
		return escrow.Payment{}, core.NewStateError("project", formatID(projectID), string(proj.Status),
			"payments require an assigned freelancer")
	}

	now := s.now()
	pay := escrow.Payment{
		ProjectID:  projectID,
		Client:     proj.Client,
		Freelancer: proj.Freelancer,
		Token:      token,
		Amount:     amount,
		Status:     escrow.StatusPending,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	if token == escrow.NativeToken {
		if value != amount {
			return escrow.Payment{}, core.NewValidationError("value",
				"attached value must equal the payment amount")
		}
		if err := s.engine.TransferNative(ctx, caller, s.escrowAddr, amount); err != nil {
			return escrow.Payment{}, core.NewTransferError("fund", err)
		}
		pay.Status = escrow.StatusFunded
		pay.FundedAt = now
	} else if value != 0 {
		return escrow.Payment{}, core.NewValidationError("value",
			"token payments must not attach native value")
	}

	created, err := s.store.CreatePayment(ctx, pay)
	if err != nil {
		// The payment slot was taken concurrently; return the attached
		// native value before surfacing the conflict.
		if pay.Status == escrow.StatusFunded {
			if rerr := s.engine.TransferNative(ctx, s.escrowAddr, caller, amount); rerr != nil {
				s.log.WithError(rerr).WithField("project_id", projectID).Error("failed to return escrowed value")
			}
		}
		return escrow.Payment{}, err
	}

	if created.Status == escrow.StatusFunded {
		if err := s.markProjectFunded(ctx, projectID); err != nil {
			s.log.WithError(err).WithField("project_id", projectID).Warn("marking project escrow-funded failed")
		}
		metrics.ObserveTransition("payment", string(escrow.StatusFunded))
	}
	metrics.ObserveTransition("payment", "created")
	s.emit(ctx, events.Event{Type: "payment.created", Entity: "payment", EntityID: formatID(created.ID),
		Actor: caller, Counterparty: created.Freelancer, Amount: amount,
		Fields: map[string]string{"token": token, "status": string(created.Status)}, At: now})
	s.log.WithField("payment_id", created.ID).WithField("project_id", projectID).Info("payment created")
	return created, nil
}

// FundWithToken pulls the payment amount in its token from the client.
// Client only; the payment must still be Pending.
func (s *Service) FundWithToken(ctx context.Context, caller string, paymentID int64) (escrow.Payment, error) {
	release, err := s.guard.acquire("payment", paymentID)
	if err != nil {
		return escrow.Payment{}, err
	}
	defer release()

	pay, err := s.getExisting(ctx, paymentID)
	if err != nil {
		return escrow.Payment{}, err
	}
	if pay.Client != caller {
		return escrow.Payment{}, core.NewAccessDeniedError("payment", formatID(paymentID), caller)
	}
	if pay.Token == escrow.NativeToken {
		return escrow.Payment{}, core.NewStateError("payment", formatID(paymentID), string(pay.Status),
			"native payments fund at creation")
	}
	if pay.Status != escrow.StatusPending {
		return escrow.Payment{}, core.NewStateError("payment", formatID(paymentID), string(pay.Status),
			"only a pending payment can be funded")
	}

	if err := s.engine.TransferToken(ctx, pay.Token, caller, s.escrowAddr, pay.Amount); err != nil {
		return escrow.Payment{}, core.NewTransferError("fund", err)
	}

	now := s.now()
	pay.Status = escrow.StatusFunded
	pay.FundedAt = now
	pay.UpdatedAt = now
	updated, err := s.store.UpdatePayment(ctx, pay)
	if err != nil {
		return escrow.Payment{}, err
	}

	if err := s.markProjectFunded(ctx, pay.ProjectID); err != nil {
		s.log.WithError(err).WithField("project_id", pay.ProjectID).Warn("marking project escrow-funded failed")
	}
	metrics.ObserveTransition("payment", string(escrow.StatusFunded))
	s.emit(ctx, events.Event{Type: "payment.funded", Entity: "payment", EntityID: formatID(paymentID),
		Actor: caller, Amount: pay.Amount, Fields: map[string]string{"token": pay.Token}, At: now})
	return updated, nil
}

// ReleasePayment disburses a funded payment: the platform fee to the
// collector and the remainder to the freelancer, then records the work into
// the statistics ledger. Client only; the project must be Completed.
//
// The two transfer legs and the status flip are atomic: if any leg fails,
// completed legs are reversed and the payment stays Funded.
func (s *Service) ReleasePayment(ctx context.Context, caller string, paymentID int64, workHash string, rating int) (escrow.Payment, error) {
	release, err := s.guard.acquire("payment", paymentID)
	if err != nil {
		return escrow.Payment{}, err
	}
	defer release()

	pay, err := s.getExisting(ctx, paymentID)
	if err != nil {
		return escrow.Payment{}, err
	}
	if pay.Client != caller {
		return escrow.Payment{}, core.NewAccessDeniedError("payment", formatID(paymentID), caller)
	}
	if pay.Status != escrow.StatusFunded {
		return escrow.Payment{}, core.NewStateError("payment", formatID(paymentID), string(pay.Status),
			"only a funded payment can be released")
	}

	proj, err := s.projects.GetProject(ctx, pay.ProjectID)
	if err != nil {
		return escrow.Payment{}, err
	}
	if proj.Status != project.StatusCompleted {
		return escrow.Payment{}, core.NewStateError("project", formatID(pay.ProjectID), string(proj.Status),
			"payment release requires a completed project")
	}

	feeBps, collector := s.feeConfig()
	fee := pay.Amount * feeBps / feeDenominator
	payout := pay.Amount - fee

	if fee > 0 && collector == "" {
		return escrow.Payment{}, core.NewStateError("payment", formatID(paymentID), string(pay.Status),
			"platform fee configured without a fee collector")
	}

	if fee > 0 {
		if err := s.transfer(ctx, pay.Token, s.escrowAddr, collector, fee); err != nil {
			return escrow.Payment{}, core.NewTransferError("fee", err)
		}
	}
	if err := s.transfer(ctx, pay.Token, s.escrowAddr, pay.Freelancer, payout); err != nil {
		if fee > 0 {
			if rerr := s.transfer(ctx, pay.Token, collector, s.escrowAddr, fee); rerr != nil {
				s.log.WithError(rerr).WithField("payment_id", paymentID).Error("fee reversal failed")
			}
		}
		return escrow.Payment{}, core.NewTransferError("payout", err)
	}

	if s.recorder != nil {
		if err := s.recorder.RecordWork(ctx, s.recorderAddr, pay.Freelancer, pay.ProjectID, pay.Client, payout, workHash, rating); err != nil {
			// Reverse both legs; the release must not half-apply.
			if rerr := s.transfer(ctx, pay.Token, pay.Freelancer, s.escrowAddr, payout); rerr != nil {
				s.log.WithError(rerr).WithField("payment_id", paymentID).Error("payout reversal failed")
			}
			if fee > 0 {
				if rerr := s.transfer(ctx, pay.Token, collector, s.escrowAddr, fee); rerr != nil {
					s.log.WithError(rerr).WithField("payment_id", paymentID).Error("fee reversal failed")
				}
			}
			return escrow.Payment{}, err
		}
	}

	now := s.now()
	pay.Status = escrow.StatusReleased
	pay.WorkHash = workHash
	pay.ReleasedAt = now
	pay.UpdatedAt = now
	updated, err := s.store.UpdatePayment(ctx, pay)
	if err != nil {
		return escrow.Payment{}, err
	}

	metrics.ObserveTransition("payment", string(escrow.StatusReleased))
	metrics.ObserveDisbursement("payout", payout)
	metrics.ObserveDisbursement("fee", fee)
	s.emit(ctx, events.Event{Type: "payment.released", Entity: "payment", EntityID: formatID(paymentID),
		Actor: caller, Counterparty: pay.Freelancer, Amount: payout,
		Fields: map[string]string{"fee": strconv.FormatInt(fee, 10)}, At: now})
	s.log.WithField("payment_id", paymentID).
		WithField("payout", payout).
		WithField("fee", fee).
		Info("payment released")
	return updated, nil
}

// RefundPayment returns the full amount to the client. Client or
// administrator; the payment must be Funded.
func (s *Service) RefundPayment(ctx context.Context, caller string, paymentID int64) (escrow.Payment, error) {
	release, err := s.guard.acquire("payment", paymentID)
	if err != nil {
		return escrow.Payment{}, err
	}
	defer release()

	pay, err := s.getExisting(ctx, paymentID)
	if err != nil {
		return escrow.Payment{}, err
	}
	if pay.Client != caller && !s.isAdmin(caller) {
		return escrow.Payment{}, core.NewAccessDeniedError("payment", formatID(paymentID), caller)
	}
	if pay.Status != escrow.StatusFunded {
		return escrow.Payment{}, core.NewStateError("payment", formatID(paymentID), string(pay.Status),
			"only a funded payment can be refunded")
	}

	if err := s.transfer(ctx, pay.Token, s.escrowAddr, pay.Client, pay.Amount); err != nil {
		return escrow.Payment{}, core.NewTransferError("refund", err)
	}

	now := s.now()
	pay.Status = escrow.StatusRefunded
	pay.UpdatedAt = now
	updated, err := s.store.UpdatePayment(ctx, pay)
	if err != nil {
		return escrow.Payment{}, err
	}

	metrics.ObserveTransition("payment", string(escrow.StatusRefunded))
	metrics.ObserveDisbursement("refund", pay.Amount)
	s.emit(ctx, events.Event{Type: "payment.refunded", Entity: "payment", EntityID: formatID(paymentID),
		Actor: caller, Amount: pay.Amount, At: now})
	s.log.WithField("payment_id", paymentID).Info("payment refunded")
	return updated, nil
}

// GetPayment returns a payment. Ids at or below zero are NotFound.
func (s *Service) GetPayment(ctx context.Context, id int64) (escrow.Payment, error) {
	return s.getExisting(ctx, id)
}

// GetPaymentByProject returns the payment attached to a project.
func (s *Service) GetPaymentByProject(ctx context.Context, projectID int64) (escrow.Payment, error) {
	return s.store.GetPaymentByProject(ctx, projectID)
}

// GetWallet returns an owner's registered payout wallet.
func (s *Service) GetWallet(ctx context.Context, owner string) (escrow.Wallet, error) {
	return s.store.GetWallet(ctx, owner)
}

func (s *Service) transfer(ctx context.Context, token, from, to string, amount int64) error {
	if token == escrow.NativeToken {
		return s.engine.TransferNative(ctx, from, to, amount)
	}
	return s.engine.TransferToken(ctx, token, from, to, amount)
}

func (s *Service) markProjectFunded(ctx context.Context, projectID int64) error {
	proj, err := s.projects.GetProject(ctx, projectID)
	if err != nil {
		return err
	}
	proj.EscrowFunded = true
	proj.UpdatedAt = s.now()
	_, err = s.projects.UpdateProject(ctx, proj)
	return err
}

func (s *Service) getExisting(ctx context.Context, id int64) (escrow.Payment, error) {
	if id <= 0 {
		return escrow.Payment{}, core.NewNotFoundError("payment", formatID(id))
	}
	return s.store.GetPayment(ctx, id)
}

func (s *Service) feeConfig() (int64, string) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.feeBps, s.feeCollector
}

func (s *Service) isAdmin(address string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.admin != "" && address == s.admin
}

func (s *Service) emit(ctx context.Context, ev events.Event) {
	if err := s.emitter.Emit(ctx, ev); err != nil {
		s.log.WithError(err).WithField("event", ev.Type).Warn("event emission failed")
	}
}

func formatID(id int64) string {
	return strconv.FormatInt(id, 10)
}
