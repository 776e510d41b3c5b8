// Package registry implements the user registry ledger: profile
// registration, updates and identity verification.
package registry

import (
	"context"
	"strings"
	"sync"
	"time"

	core "github.com/lancechain/ledger/internal/app/core/service"
	"github.com/lancechain/ledger/internal/app/domain/user"
	"github.com/lancechain/ledger/internal/app/events"
	"github.com/lancechain/ledger/internal/app/metrics"
	"github.com/lancechain/ledger/internal/app/storage"
	"github.com/lancechain/ledger/pkg/logger"
)

// Service manages user profiles and verification state.
type Service struct {
	store   storage.UserStore
	log     *logger.Logger
	emitter events.Emitter
	now     func() time.Time

	mu        sync.RWMutex
	admin     string
	verifiers map[string]struct{}
}

// New constructs a user registry service.
func New(store storage.UserStore, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("registry")
	}
	return &Service{
		store:     store,
		log:       log,
		emitter:   events.NopEmitter{},
		now:       func() time.Time { return time.Now().UTC() },
		verifiers: make(map[string]struct{}),
	}
}

// WithAdmin sets the administrator address gating verifier management.
func (s *Service) WithAdmin(address string) *Service {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.admin = address
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

// Register creates a profile for the caller. Username and email are reserved
// permanently; the store rejects duplicates atomically.
func (s *Service) Register(ctx context.Context, caller, username, email, profileHash string, isFreelancer, isClient bool) (user.Profile, error) {
	caller = strings.TrimSpace(caller)
	username = strings.TrimSpace(username)
	email = strings.TrimSpace(email)

	if caller == "" {
		return user.Profile{}, core.RequiredError("identity")
	}
	if username == "" {
		return user.Profile{}, core.RequiredError("username")
	}
	if email == "" {
		return user.Profile{}, core.RequiredError("email")
	}
	if !isFreelancer && !isClient {
		return user.Profile{}, core.NewValidationError("roles", "at least one of freelancer or client is required")
	}

	now := s.now()
	created, err := s.store.CreateProfile(ctx, user.Profile{
		Address:      caller,
		Username:     username,
		Email:        email,
		ProfileHash:  profileHash,
		IsFreelancer: isFreelancer,
		IsClient:     isClient,
		RegisteredAt: now,
		UpdatedAt:    now,
	})
	if err != nil {
		return user.Profile{}, err
	}

	metrics.ObserveTransition("user", "registered")
	s.emit(ctx, events.Event{Type: "user.registered", Entity: "user", EntityID: created.Address, Actor: created.Address, At: now})
	s.log.WithField("address", created.Address).WithField("username", created.Username).Info("user registered")
	return created, nil
}

// UpdateProfile replaces the caller's profile content hash.
func (s *Service) UpdateProfile(ctx context.Context, caller, profileHash string) (user.Profile, error) {
	profile, err := s.store.GetProfile(ctx, caller)
	if err != nil {
		return user.Profile{}, err
	}
	profile.ProfileHash = profileHash
	profile.UpdatedAt = s.now()
	updated, err := s.store.UpdateProfile(ctx, profile)
	if err != nil {
		return user.Profile{}, err
	}
	s.emit(ctx, events.Event{Type: "user.updated", Entity: "user", EntityID: caller, Actor: caller, At: profile.UpdatedAt})
	return updated, nil
}

// Verify marks an identity as verified. The caller must be the identity
// itself, an authorized verifier, or the administrator. The verification
// record is overwritten on re-verification.
func (s *Service) Verify(ctx context.Context, caller, identity, method string) error {
	method = strings.TrimSpace(method)
	if method == "" {
		return core.RequiredError("method")
	}
	if caller != identity && !s.isVerifier(caller) {
		return &core.AccessDeniedError{Resource: "profile", ID: identity, Caller: caller,
			Reason: "caller is neither the identity nor an authorized verifier"}
	}

	profile, err := s.store.GetProfile(ctx, identity)
	if err != nil {
		return err
	}

	now := s.now()
	if err := s.store.PutVerification(ctx, user.Verification{
		Address:    identity,
		Method:     method,
		Verifier:   caller,
		VerifiedAt: now,
	}); err != nil {
		return err
	}

	profile.Verified = true
	profile.UpdatedAt = now
	if _, err := s.store.UpdateProfile(ctx, profile); err != nil {
		return err
	}

	metrics.ObserveTransition("user", "verified")
	s.emit(ctx, events.Event{Type: "user.verified", Entity: "user", EntityID: identity, Actor: caller,
		Fields: map[string]string{"method": method}, At: now})
	s.log.WithField("address", identity).WithField("verifier", caller).Info("user verified")
	return nil
}

// AddVerifier authorizes an address to verify identities. Administrator only.
func (s *Service) AddVerifier(_ context.Context, caller, verifier string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if caller != s.admin || s.admin == "" {
		return core.NewAccessDeniedError("verifier set", verifier, caller)
	}
	s.verifiers[verifier] = struct{}{}
	return nil
}

// RemoveVerifier revokes a verifier. Administrator only.
func (s *Service) RemoveVerifier(_ context.Context, caller, verifier string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if caller != s.admin || s.admin == "" {
		return core.NewAccessDeniedError("verifier set", verifier, caller)
	}
	delete(s.verifiers, verifier)
	return nil
}

// GetProfile returns the profile for an address.
func (s *Service) GetProfile(ctx context.Context, address string) (user.Profile, error) {
	return s.store.GetProfile(ctx, address)
}

// GetVerification returns the latest verification record for an address.
func (s *Service) GetVerification(ctx context.Context, address string) (user.Verification, error) {
	return s.store.GetUserVerification(ctx, address)
}

// IsRegistered reports whether an address has a profile.
func (s *Service) IsRegistered(ctx context.Context, address string) bool {
	_, err := s.store.GetProfile(ctx, address)
	return err == nil
}

// IsVerified reports whether an address holds a verified profile.
func (s *Service) IsVerified(ctx context.Context, address string) bool {
	profile, err := s.store.GetProfile(ctx, address)
	return err == nil && profile.Verified
}

func (s *Service) isVerifier(address string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if address == s.admin && s.admin != "" {
		return true
	}
	_, ok := s.verifiers[address]
	return ok
}

func (s *Service) emit(ctx context.Context, ev events.Event) {
	if err := s.emitter.Emit(ctx, ev); err != nil {
		s.log.WithError(err).WithField("event", ev.Type).Warn("event emission failed")
	}
}
