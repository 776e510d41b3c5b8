package crosschain

import (
	"context"
	"encoding/json"
	"time"

	core "github.com/lancechain/ledger/internal/app/core/service"
	"github.com/lancechain/ledger/internal/app/domain/crosschain"
	"github.com/lancechain/ledger/internal/app/domain/escrow"
	escrowsvc "github.com/lancechain/ledger/internal/app/services/escrow"
	"github.com/lancechain/ledger/internal/app/storage"
	"github.com/lancechain/ledger/pkg/logger"
)

// EscrowBridge mirrors payment initiation and release across chains. The
// local escrow service does all custody work; the bridge only correlates and
// relays. Inbound shadows track remote custody and never hold local funds.
type EscrowBridge struct {
	escrow *escrowsvc.Service
	relay  *Service
	links  storage.CrossChainStore
	store  storage.EscrowStore
	log    *logger.Logger
	now    func() time.Time

	proxyAddr  string
	localChain uint64
}

// NewEscrowBridge wires the bridge and registers its inbound handlers on the
// relay service.
func NewEscrowBridge(escrowSvc *escrowsvc.Service, relay *Service, links storage.CrossChainStore, store storage.EscrowStore, proxyAddr string, localChain uint64, log *logger.Logger) *EscrowBridge {
	if log == nil {
		log = logger.NewDefault("crosschain.escrow")
	}
	b := &EscrowBridge{
		escrow:     escrowSvc,
		relay:      relay,
		links:      links,
		store:      store,
		log:        log,
		now:        func() time.Time { return time.Now().UTC() },
		proxyAddr:  proxyAddr,
		localChain: localChain,
	}
	relay.RegisterHandler(crosschain.OpPaymentInitiation, b.handlePaymentInitiation)
	relay.RegisterHandler(crosschain.OpPaymentRelease, b.handlePaymentRelease)
	return b
}

// WithClock overrides the time source, primarily for tests.
func (b *EscrowBridge) WithClock(now func() time.Time) *EscrowBridge {
	if now != nil {
		b.now = now
	}
	return b
}

// CreatePayment creates and funds the payment locally with the full local
// validation, links it to a fresh correlation id and dispatches the mirrored
// initiation to destChain. Like the project bridge, local state commits
// before dispatch.
func (b *EscrowBridge) CreatePayment(ctx context.Context, caller string, projectID int64, token string, amount, value int64, destChain, gasLimit uint64, fee FeeInfo, allowedRelayers []string) (escrow.Payment, crosschain.PaymentLink, error) {
	pay, err := b.escrow.CreatePayment(ctx, caller, projectID, token, amount, value)
	if err != nil {
		return escrow.Payment{}, crosschain.PaymentLink{}, err
	}

	corrID := deriveCorrelationID(b.localChain, pay.ID, caller, b.now())
	link, err := b.links.CreatePaymentLink(ctx, crosschain.PaymentLink{
		PaymentID:     pay.ID,
		CorrelationID: corrID,
		SourceChain:   b.localChain,
		CreatedAt:     b.now(),
	})
	if err != nil {
		return escrow.Payment{}, crosschain.PaymentLink{}, err
	}

	payload := crosschain.PaymentPayload{
		CorrelationID: corrID,
		SourceChain:   b.localChain,
		ProjectID:     projectID,
		Client:        pay.Client,
		Freelancer:    pay.Freelancer,
		Token:         pay.Token,
		Amount:        pay.Amount,
	}
	if projLink, err := b.links.GetProjectLink(ctx, projectID); err == nil {
		payload.ProjectCorrelationID = projLink.CorrelationID
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return escrow.Payment{}, crosschain.PaymentLink{}, err
	}

	if _, err := b.relay.InitiateOperation(ctx, caller, crosschain.OpPaymentInitiation, destChain, body, gasLimit, fee, allowedRelayers); err != nil {
		b.log.WithError(err).WithField("payment_id", pay.ID).Warn("mirror dispatch failed, local payment retained")
		return pay, link, err
	}
	return pay, link, nil
}

// ReleasePayment releases the payment locally, then dispatches the mirrored
// release so the remote shadow flips too.
func (b *EscrowBridge) ReleasePayment(ctx context.Context, caller string, paymentID int64, workHash string, rating int, destChain, gasLimit uint64, fee FeeInfo, allowedRelayers []string) (escrow.Payment, error) {
	link, err := b.links.GetPaymentLink(ctx, paymentID)
	if err != nil {
		return escrow.Payment{}, err
	}

	pay, err := b.escrow.ReleasePayment(ctx, caller, paymentID, workHash, rating)
	if err != nil {
		return escrow.Payment{}, err
	}

	link.Released = true
	if _, err := b.links.UpdatePaymentLink(ctx, link); err != nil {
		return escrow.Payment{}, err
	}

	body, err := json.Marshal(crosschain.PaymentPayload{
		CorrelationID: link.CorrelationID,
		SourceChain:   b.localChain,
		ProjectID:     pay.ProjectID,
		Client:        pay.Client,
		Freelancer:    pay.Freelancer,
		Token:         pay.Token,
		Amount:        pay.Amount,
		Release:       true,
	})
	if err != nil {
		return escrow.Payment{}, err
	}

	if _, err := b.relay.InitiateOperation(ctx, caller, crosschain.OpPaymentRelease, destChain, body, gasLimit, fee, allowedRelayers); err != nil {
		b.log.WithError(err).WithField("payment_id", paymentID).Warn("mirror dispatch failed, local release retained")
		return pay, err
	}
	return pay, nil
}

// GetLink returns the correlation link for a local payment.
func (b *EscrowBridge) GetLink(ctx context.Context, paymentID int64) (crosschain.PaymentLink, error) {
	return b.links.GetPaymentLink(ctx, paymentID)
}

// handlePaymentInitiation materializes a remote-origin payment shadow. The
// shadow is owned by the proxy identity, marked Funded to mirror remote
// custody, and holds no local funds.
func (b *EscrowBridge) handlePaymentInitiation(ctx context.Context, op crosschain.Operation, body json.RawMessage) error {
	var p crosschain.PaymentPayload
	if err := json.Unmarshal(body, &p); err != nil {
		return core.NewValidationError("payload", "not a valid payment payload")
	}
	if p.CorrelationID == "" {
		return core.RequiredError("correlation_id")
	}
	if _, err := b.links.GetPaymentLinkByCorrelation(ctx, p.CorrelationID); err == nil {
		return core.NewConflictError("payment link", p.CorrelationID, "correlation id already materialized")
	} else if !core.IsNotFound(err) {
		return err
	}

	// The sender's project id is meaningless here; resolve the shadow
	// project through its correlation id when the sender provided one.
	var projectID int64
	if p.ProjectCorrelationID != "" {
		projLink, err := b.links.GetProjectLinkByCorrelation(ctx, p.ProjectCorrelationID)
		if err != nil {
			return err
		}
		projectID = projLink.ProjectID
	}

	now := b.now()
	pay, err := b.store.CreatePayment(ctx, escrow.Payment{
		ProjectID:  projectID,
		Client:     b.proxyAddr,
		Freelancer: p.Freelancer,
		Token:      p.Token,
		Amount:     p.Amount,
		Status:     escrow.StatusFunded,
		FundedAt:   now,
		CreatedAt:  now,
		UpdatedAt:  now,
	})
	if err != nil {
		return err
	}

	if _, err := b.links.CreatePaymentLink(ctx, crosschain.PaymentLink{
		PaymentID:     pay.ID,
		CorrelationID: p.CorrelationID,
		SourceChain:   op.SourceChain,
		Remote:        true,
		CreatedAt:     now,
	}); err != nil {
		return err
	}

	b.log.WithField("payment_id", pay.ID).
		WithField("correlation_id", p.CorrelationID).
		WithField("source_chain", op.SourceChain).
		Info("shadow payment materialized")
	return nil
}

// handlePaymentRelease flips a previously materialized shadow to Released.
// Funds moved on the origin chain, so no local transfer happens.
func (b *EscrowBridge) handlePaymentRelease(ctx context.Context, _ crosschain.Operation, body json.RawMessage) error {
	var p crosschain.PaymentPayload
	if err := json.Unmarshal(body, &p); err != nil {
		return core.NewValidationError("payload", "not a valid payment payload")
	}
	link, err := b.links.GetPaymentLinkByCorrelation(ctx, p.CorrelationID)
	if err != nil {
		return err
	}
	if link.Released {
		return core.NewConflictError("payment link", p.CorrelationID, "release already observed")
	}

	pay, err := b.store.GetPayment(ctx, link.PaymentID)
	if err != nil {
		return err
	}
	now := b.now()
	pay.Status = escrow.StatusReleased
	pay.ReleasedAt = now
	pay.UpdatedAt = now
	if _, err := b.store.UpdatePayment(ctx, pay); err != nil {
		return err
	}

	link.Released = true
	if _, err := b.links.UpdatePaymentLink(ctx, link); err != nil {
		return err
	}
	b.log.WithField("payment_id", link.PaymentID).Info("shadow payment released")
	return nil
}
