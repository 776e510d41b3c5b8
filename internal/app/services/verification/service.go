// Package verification implements the deliverable-approval workflow that
// gates payment release.
package verification

import (
	"context"
	"strconv"
	"sync"
	"time"

	core "github.com/lancechain/ledger/internal/app/core/service"
	"github.com/lancechain/ledger/internal/app/domain/project"
	"github.com/lancechain/ledger/internal/app/domain/verification"
	"github.com/lancechain/ledger/internal/app/events"
	"github.com/lancechain/ledger/internal/app/metrics"
	"github.com/lancechain/ledger/internal/app/storage"
	"github.com/lancechain/ledger/pkg/logger"
)

// DeliveryVerifier receives the frozen on-time flag when a verification is
// approved. Implemented by the statistics service.
type DeliveryVerifier interface {
	VerifyDelivery(ctx context.Context, caller string, projectID int64, onTime bool) error
}

// Service runs the verification workflow. One verification exists per
// project; evidence is append-only.
type Service struct {
	projects storage.ProjectStore
	store    storage.VerificationStore
	log      *logger.Logger
	emitter  events.Emitter
	now      func() time.Time

	verifier     DeliveryVerifier
	verifierAddr string

	mu      sync.RWMutex
	admin   string
	oracles map[string]bool
}

// New constructs a verification service.
func New(projects storage.ProjectStore, store storage.VerificationStore, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("verification")
	}
	return &Service{
		projects: projects,
		store:    store,
		log:      log,
		emitter:  events.NopEmitter{},
		now:      func() time.Time { return time.Now().UTC() },
		oracles:  make(map[string]bool),
	}
}

// WithAdmin sets the administrator address gating oracle management.
func (s *Service) WithAdmin(address string) *Service {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.admin = address
	return s
}

// AttachDeliveryVerifier wires the statistics delivery hook and the proxy
// identity this service calls it under.
func (s *Service) AttachDeliveryVerifier(v DeliveryVerifier, proxyAddr string) *Service {
	s.verifier = v
	s.verifierAddr = proxyAddr
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

// AddOracle authorizes an address to resolve verifications. Administrator
// only.
func (s *Service) AddOracle(_ context.Context, caller, address string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if caller != s.admin || s.admin == "" {
		return core.NewAccessDeniedError("oracle set", address, caller)
	}
	if address == "" {
		return core.RequiredError("address")
	}
	s.oracles[address] = true
	return nil
}

// RemoveOracle revokes an oracle. Administrator only.
func (s *Service) RemoveOracle(_ context.Context, caller, address string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if caller != s.admin || s.admin == "" {
		return core.NewAccessDeniedError("oracle set", address, caller)
	}
	delete(s.oracles, address)
	return nil
}

// Create opens the verification for a project. The project must be
// InProgress or Completed with a freelancer assigned, and the caller must
// be a party to it. One verification per project; a second create conflicts.
func (s *Service) Create(ctx context.Context, caller string, projectID int64) (verification.Verification, error) {
	proj, err := s.projects.GetProject(ctx, projectID)
	if err != nil {
		return verification.Verification{}, err
	}
	if proj.Status != project.StatusInProgress && proj.Status != project.StatusCompleted {
		return verification.Verification{}, core.NewStateError("project", formatID(projectID), string(proj.Status),
			"verification requires an in-progress or completed project")
	}
	if proj.Freelancer == "" {
		return verification.Verification{}, core.NewStateError("project", formatID(projectID), string(proj.Status),
			"verification requires an assigned freelancer")
	}
	if caller != proj.Client && caller != proj.Freelancer {
		return verification.Verification{}, core.NewAccessDeniedError("verification", formatID(projectID), caller)
	}

	now := s.now()
	created, err := s.store.CreateVerification(ctx, verification.Verification{
		ProjectID:    projectID,
		Freelancer:   proj.Freelancer,
		Client:       proj.Client,
		Requirements: proj.Requirements,
		Status:       verification.StatusPending,
		Deadline:     proj.Deadline,
		CreatedAt:    now,
		UpdatedAt:    now,
	})
	if err != nil {
		return verification.Verification{}, err
	}

	metrics.ObserveTransition("verification", "created")
	s.emit(ctx, events.Event{Type: "verification.created", Entity: "verification", EntityID: formatID(created.ID),
		Actor: caller, Fields: map[string]string{"project_id": formatID(projectID)}, At: now})
	s.log.WithField("verification_id", created.ID).WithField("project_id", projectID).Info("verification created")
	return created, nil
}

// SubmitWork records the freelancer's deliverable. Whether the submission
// met the project deadline is decided now and never recomputed.
func (s *Service) SubmitWork(ctx context.Context, caller string, verificationID int64, workHash string, evidenceHashes []string) (verification.Verification, error) {
	if workHash == "" {
		return verification.Verification{}, core.RequiredError("work_hash")
	}
	v, err := s.getExisting(ctx, verificationID)
	if err != nil {
		return verification.Verification{}, err
	}
	if caller != v.Freelancer {
		return verification.Verification{}, core.NewAccessDeniedError("verification", formatID(verificationID), caller)
	}
	if v.Status != verification.StatusPending {
		return verification.Verification{}, core.NewStateError("verification", formatID(verificationID), string(v.Status),
			"work can only be submitted while pending")
	}
	if !v.SubmittedAt.IsZero() {
		return verification.Verification{}, core.NewStateError("verification", formatID(verificationID), string(v.Status),
			"work already submitted")
	}

	now := s.now()
	v.WorkHash = workHash
	v.SubmittedAt = now
	v.MeetsDeadline = !now.After(v.Deadline)
	v.UpdatedAt = now
	updated, err := s.store.UpdateVerification(ctx, v)
	if err != nil {
		return verification.Verification{}, err
	}

	for _, h := range evidenceHashes {
		if err := s.store.AppendEvidence(ctx, verification.Evidence{
			VerificationID: verificationID, Hash: h, Submitter: caller, SubmittedAt: now,
		}); err != nil {
			return verification.Verification{}, err
		}
	}

	metrics.ObserveTransition("verification", "submitted")
	s.emit(ctx, events.Event{Type: "verification.submitted", Entity: "verification", EntityID: formatID(verificationID),
		Actor: caller, Fields: map[string]string{"meets_deadline": strconv.FormatBool(updated.MeetsDeadline)}, At: now})
	return updated, nil
}

// VerifyWork resolves a submitted verification. The caller must be the
// client or an authorized oracle. Approval freezes the verifier identity and
// forwards the on-time flag to the statistics ledger; rejection records the
// reason. The statistics hook is best-effort: the work record it expects is
// written at payment release, which may not have happened yet.
func (s *Service) VerifyWork(ctx context.Context, caller string, verificationID int64, approved bool, reason string) (verification.Verification, error) {
	v, err := s.getExisting(ctx, verificationID)
	if err != nil {
		return verification.Verification{}, err
	}
	if caller != v.Client && !s.isOracle(caller) {
		return verification.Verification{}, core.NewAccessDeniedError("verification", formatID(verificationID), caller)
	}
	if v.Status != verification.StatusPending {
		return verification.Verification{}, core.NewStateError("verification", formatID(verificationID), string(v.Status),
			"verification already resolved")
	}
	if v.SubmittedAt.IsZero() {
		return verification.Verification{}, core.NewStateError("verification", formatID(verificationID), string(v.Status),
			"no work submitted yet")
	}

	now := s.now()
	v.Verifier = caller
	v.ResolvedAt = now
	v.UpdatedAt = now
	if approved {
		v.Status = verification.StatusVerified
	} else {
		if reason == "" {
			return verification.Verification{}, core.RequiredError("reason")
		}
		v.Status = verification.StatusRejected
		v.Reason = reason
	}

	updated, err := s.store.UpdateVerification(ctx, v)
	if err != nil {
		return verification.Verification{}, err
	}

	if approved && s.verifier != nil {
		if err := s.verifier.VerifyDelivery(ctx, s.verifierAddr, v.ProjectID, v.MeetsDeadline); err != nil {
			s.log.WithError(err).
				WithField("project_id", v.ProjectID).
				Warn("delivery notification not recorded")
		}
	}

	metrics.ObserveTransition("verification", string(updated.Status))
	s.emit(ctx, events.Event{Type: "verification.resolved", Entity: "verification", EntityID: formatID(verificationID),
		Actor: caller, Fields: map[string]string{"status": string(updated.Status)}, At: now})
	s.log.WithField("verification_id", verificationID).
		WithField("status", updated.Status).
		Info("verification resolved")
	return updated, nil
}

// AddEvidence appends a supporting artifact. Freelancer only; permitted
// while the verification is still pending.
func (s *Service) AddEvidence(ctx context.Context, caller string, verificationID int64, hash string) error {
	if hash == "" {
		return core.RequiredError("hash")
	}
	v, err := s.getExisting(ctx, verificationID)
	if err != nil {
		return err
	}
	if caller != v.Freelancer {
		return core.NewAccessDeniedError("verification", formatID(verificationID), caller)
	}
	if v.Status != verification.StatusPending {
		return core.NewStateError("verification", formatID(verificationID), string(v.Status),
			"evidence can only be added while pending")
	}
	return s.store.AppendEvidence(ctx, verification.Evidence{
		VerificationID: verificationID, Hash: hash, Submitter: caller, SubmittedAt: s.now(),
	})
}

// GetVerification returns a verification. Ids at or below zero are NotFound.
func (s *Service) GetVerification(ctx context.Context, id int64) (verification.Verification, error) {
	return s.getExisting(ctx, id)
}

// GetVerificationByProject returns the verification attached to a project.
func (s *Service) GetVerificationByProject(ctx context.Context, projectID int64) (verification.Verification, error) {
	return s.store.GetVerificationByProject(ctx, projectID)
}

// ListEvidence returns a verification's evidence in submission order.
func (s *Service) ListEvidence(ctx context.Context, verificationID int64) ([]verification.Evidence, error) {
	return s.store.ListEvidence(ctx, verificationID)
}

func (s *Service) getExisting(ctx context.Context, id int64) (verification.Verification, error) {
	if id <= 0 {
		return verification.Verification{}, core.NewNotFoundError("verification", formatID(id))
	}
	return s.store.GetVerification(ctx, id)
}

func (s *Service) isOracle(address string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.oracles[address]
}

func (s *Service) emit(ctx context.Context, ev events.Event) {
	if err := s.emitter.Emit(ctx, ev); err != nil {
		s.log.WithError(err).WithField("event", ev.Type).Warn("event emission failed")
	}
}

func formatID(id int64) string {
	return strconv.FormatInt(id, 10)
}
