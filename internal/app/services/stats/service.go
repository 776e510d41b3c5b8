// Package stats implements the freelancer reputation ledger: an append-only
// work history with monotonically accumulated aggregates.
package stats

import (
	"context"
	"strconv"
	"sync"
	"time"

	core "github.com/lancechain/ledger/internal/app/core/service"
	"github.com/lancechain/ledger/internal/app/domain/stats"
	"github.com/lancechain/ledger/internal/app/events"
	"github.com/lancechain/ledger/internal/app/metrics"
	"github.com/lancechain/ledger/internal/app/storage"
	"github.com/lancechain/ledger/pkg/logger"
)

// Service maintains freelancer statistics. Writes are restricted to
// authorized recorder addresses (the escrow and verification ledgers'
// proxy identities).
type Service struct {
	store   storage.StatsStore
	log     *logger.Logger
	emitter events.Emitter
	now     func() time.Time

	mu        sync.Mutex
	admin     string
	recorders map[string]struct{}
}

// New constructs a statistics service.
func New(store storage.StatsStore, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("stats")
	}
	return &Service{
		store:     store,
		log:       log,
		emitter:   events.NopEmitter{},
		now:       func() time.Time { return time.Now().UTC() },
		recorders: make(map[string]struct{}),
	}
}

// WithAdmin sets the administrator address gating recorder management.
func (s *Service) WithAdmin(address string) *Service {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.admin = address
	return s
}

// WithRecorder authorizes a recorder address at construction time.
func (s *Service) WithRecorder(address string) *Service {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.recorders[address] = struct{}{}
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

// AuthorizeRecorder grants write access to an address. Administrator only.
func (s *Service) AuthorizeRecorder(_ context.Context, caller, recorder string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if caller != s.admin || s.admin == "" {
		return core.NewAccessDeniedError("recorder set", recorder, caller)
	}
	s.recorders[recorder] = struct{}{}
	return nil
}

// RecordWork appends one work record for a project and folds it into the
// freelancer's aggregates. At most one record exists per project; the store
// rejects duplicates atomically, so a rejected call leaves the original
// record and aggregates untouched.
//
// The running average is maintained incrementally with truncating integer
// division: newAvg = (oldAvg*(n-1) + rating) / n. This reproduces the
// contract's arithmetic, including its precision loss.
func (s *Service) RecordWork(ctx context.Context, caller, freelancer string, projectID int64, client string, amount int64, workHash string, rating int) error {
	if !s.isRecorder(caller) {
		return core.NewAccessDeniedError("work record", formatID(projectID), caller)
	}
	if freelancer == "" {
		return core.RequiredError("freelancer")
	}
	if projectID <= 0 {
		return core.NewValidationError("project_id", "must be positive")
	}
	if amount <= 0 {
		return core.NewValidationError("amount", "must be positive")
	}
	if rating < 1 || rating > 5 {
		return core.NewValidationError("rating", "must be between 1 and 5")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if err := s.store.AppendWorkRecord(ctx, stats.WorkRecord{
		Freelancer: freelancer,
		ProjectID:  projectID,
		Client:     client,
		Amount:     amount,
		WorkHash:   workHash,
		Rating:     rating,
		RecordedAt: now,
	}); err != nil {
		return err
	}

	agg, err := s.store.GetStats(ctx, freelancer)
	if err != nil {
		if !core.IsNotFound(err) {
			return err
		}
		agg = stats.Stats{Freelancer: freelancer, RegisteredAt: now}
	}

	agg.TotalProjects++
	agg.CompletedProjects++
	agg.TotalEarned += amount
	n := agg.TotalProjects
	agg.AverageRating = (agg.AverageRating*(n-1) + int64(rating)) / n
	agg.UpdatedAt = now

	if _, err := s.store.PutStats(ctx, agg); err != nil {
		return err
	}

	metrics.ObserveTransition("work_record", "recorded")
	s.emit(ctx, events.Event{
		Type: "stats.work_recorded", Entity: "work_record", EntityID: formatID(projectID),
		Actor: client, Counterparty: freelancer, Amount: amount,
		Fields: map[string]string{"rating": strconv.Itoa(rating)}, At: now,
	})
	s.log.WithField("freelancer", freelancer).WithField("project_id", projectID).Info("work recorded")
	return nil
}

// VerifyDelivery marks a recorded project's delivery as verified and counts
// it toward the delivery totals. The call is deliberately not idempotent:
// every invocation increments the delivery counter, and every onTime=true
// invocation increments the on-time counter again, matching the contract.
func (s *Service) VerifyDelivery(ctx context.Context, caller string, projectID int64, onTime bool) error {
	if !s.isRecorder(caller) {
		return core.NewAccessDeniedError("work record", formatID(projectID), caller)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	rec, err := s.store.GetWorkRecord(ctx, projectID)
	if err != nil {
		return err
	}
	rec.Verified = true
	rec.OnTime = onTime
	if _, err := s.store.UpdateWorkRecord(ctx, rec); err != nil {
		return err
	}

	agg, err := s.store.GetStats(ctx, rec.Freelancer)
	if err != nil {
		return err
	}
	agg.TotalDeliveries++
	if onTime {
		agg.OnTimeDeliveries++
	}
	agg.UpdatedAt = s.now()
	if _, err := s.store.PutStats(ctx, agg); err != nil {
		return err
	}

	s.emit(ctx, events.Event{
		Type: "stats.delivery_verified", Entity: "work_record", EntityID: formatID(projectID),
		Counterparty: rec.Freelancer,
		Fields:       map[string]string{"on_time": strconv.FormatBool(onTime)}, At: agg.UpdatedAt,
	})
	return nil
}

// GetStats returns a freelancer's aggregates.
func (s *Service) GetStats(ctx context.Context, freelancer string) (stats.Stats, error) {
	return s.store.GetStats(ctx, freelancer)
}

// GetHistory returns a freelancer's work records in recording order.
func (s *Service) GetHistory(ctx context.Context, freelancer string) ([]stats.WorkRecord, error) {
	return s.store.ListWorkRecords(ctx, freelancer)
}

func (s *Service) isRecorder(address string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if address == s.admin && s.admin != "" {
		return true
	}
	_, ok := s.recorders[address]
	return ok
}

func (s *Service) emit(ctx context.Context, ev events.Event) {
	if err := s.emitter.Emit(ctx, ev); err != nil {
		s.log.WithError(err).WithField("event", ev.Type).Warn("event emission failed")
	}
}

func formatID(id int64) string {
	return strconv.FormatInt(id, 10)
}
