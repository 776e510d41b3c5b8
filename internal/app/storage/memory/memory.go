// Package memory is an in-memory implementation of the storage interfaces.
// It is safe for concurrent use and is the default backend for tests and
// local development. Every method applies its checks and writes under one
// lock acquisition, which gives the per-call atomicity the ledger services
// rely on.
package memory

import (
	"context"
	"strconv"
	"sync"
	"time"

	core "github.com/lancechain/ledger/internal/app/core/service"
	"github.com/lancechain/ledger/internal/app/domain/crosschain"
	"github.com/lancechain/ledger/internal/app/domain/escrow"
	"github.com/lancechain/ledger/internal/app/domain/project"
	"github.com/lancechain/ledger/internal/app/domain/stats"
	"github.com/lancechain/ledger/internal/app/domain/user"
	"github.com/lancechain/ledger/internal/app/domain/verification"
	"github.com/lancechain/ledger/internal/app/storage"
)

// Store holds all ledger state behind a single mutex.
type Store struct {
	mu sync.RWMutex

	profiles      map[string]user.Profile
	usernames     map[string]string
	emails        map[string]string
	verifications map[string]user.Verification

	nextProjectID int64
	projects      map[int64]project.Project
	milestones    map[int64][]project.Milestone

	nextPaymentID    int64
	wallets          map[string]escrow.Wallet
	payments         map[int64]escrow.Payment
	paymentByProject map[int64]int64

	nextVerificationID    int64
	workVerifications     map[int64]verification.Verification
	verificationByProject map[int64]int64
	evidence              map[int64][]verification.Evidence

	freelancerStats map[string]stats.Stats
	workRecords     map[int64]stats.WorkRecord
	workHistory     map[string][]int64

	chainContracts map[uint64]crosschain.ChainContract
	operations     map[string]crosschain.Operation
	operationOrder []string
	projectLinks   map[int64]crosschain.ProjectLink
	projectByCorr  map[string]int64
	paymentLinks   map[int64]crosschain.PaymentLink
	paymentByCorr  map[string]int64
}

var _ storage.UserStore = (*Store)(nil)
var _ storage.ProjectStore = (*Store)(nil)
var _ storage.EscrowStore = (*Store)(nil)
var _ storage.VerificationStore = (*Store)(nil)
var _ storage.StatsStore = (*Store)(nil)
var _ storage.CrossChainStore = (*Store)(nil)

// New creates an empty store. Numeric ids start at 1; 0 stays reserved as
// the absent sentinel.
func New() *Store {
	return &Store{
		profiles:              make(map[string]user.Profile),
		usernames:             make(map[string]string),
		emails:                make(map[string]string),
		verifications:         make(map[string]user.Verification),
		nextProjectID:         1,
		projects:              make(map[int64]project.Project),
		milestones:            make(map[int64][]project.Milestone),
		nextPaymentID:         1,
		wallets:               make(map[string]escrow.Wallet),
		payments:              make(map[int64]escrow.Payment),
		paymentByProject:      make(map[int64]int64),
		nextVerificationID:    1,
		workVerifications:     make(map[int64]verification.Verification),
		verificationByProject: make(map[int64]int64),
		evidence:              make(map[int64][]verification.Evidence),
		freelancerStats:       make(map[string]stats.Stats),
		workRecords:           make(map[int64]stats.WorkRecord),
		workHistory:           make(map[string][]int64),
		chainContracts:        make(map[uint64]crosschain.ChainContract),
		operations:            make(map[string]crosschain.Operation),
		projectLinks:          make(map[int64]crosschain.ProjectLink),
		projectByCorr:         make(map[string]int64),
		paymentLinks:          make(map[int64]crosschain.PaymentLink),
		paymentByCorr:         make(map[string]int64),
	}
}

func stampCreate(created, updated *time.Time) {
	now := time.Now().UTC()
	if created.IsZero() {
		*created = now
	}
	if updated.IsZero() {
		*updated = *created
	}
}

// UserStore implementation ----------------------------------------------------

func (s *Store) CreateProfile(_ context.Context, p user.Profile) (user.Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.profiles[p.Address]; exists {
		return user.Profile{}, core.NewConflictError("profile", p.Address, "identity already registered")
	}
	if _, taken := s.usernames[p.Username]; taken {
		return user.Profile{}, core.NewConflictError("username", p.Username, "already taken")
	}
	if _, taken := s.emails[p.Email]; taken {
		return user.Profile{}, core.NewConflictError("email", p.Email, "already taken")
	}

	stampCreate(&p.RegisteredAt, &p.UpdatedAt)
	s.profiles[p.Address] = p
	s.usernames[p.Username] = p.Address
	s.emails[p.Email] = p.Address
	return p, nil
}

func (s *Store) UpdateProfile(_ context.Context, p user.Profile) (user.Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	original, ok := s.profiles[p.Address]
	if !ok {
		return user.Profile{}, core.NewNotFoundError("profile", p.Address)
	}
	// Identity, handles and registration time are immutable.
	p.Username = original.Username
	p.Email = original.Email
	p.RegisteredAt = original.RegisteredAt
	if p.UpdatedAt.IsZero() {
		p.UpdatedAt = time.Now().UTC()
	}
	s.profiles[p.Address] = p
	return p, nil
}

func (s *Store) GetProfile(_ context.Context, address string) (user.Profile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.profiles[address]
	if !ok {
		return user.Profile{}, core.NewNotFoundError("profile", address)
	}
	return p, nil
}

func (s *Store) ListProfiles(_ context.Context) ([]user.Profile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]user.Profile, 0, len(s.profiles))
	for _, p := range s.profiles {
		out = append(out, p)
	}
	return out, nil
}

func (s *Store) PutVerification(_ context.Context, v user.Verification) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.profiles[v.Address]; !ok {
		return core.NewNotFoundError("profile", v.Address)
	}
	s.verifications[v.Address] = v
	return nil
}

func (s *Store) GetUserVerification(_ context.Context, address string) (user.Verification, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	v, ok := s.verifications[address]
	if !ok {
		return user.Verification{}, core.NewNotFoundError("verification record", address)
	}
	return v, nil
}

// ProjectStore implementation -------------------------------------------------

func (s *Store) CreateProject(_ context.Context, p project.Project) (project.Project, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p.ID = s.nextProjectID
	s.nextProjectID++
	stampCreate(&p.CreatedAt, &p.UpdatedAt)
	s.projects[p.ID] = p
	return p, nil
}

func (s *Store) UpdateProject(_ context.Context, p project.Project) (project.Project, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	original, ok := s.projects[p.ID]
	if !ok {
		return project.Project{}, core.NewNotFoundError("project", formatID(p.ID))
	}
	p.Client = original.Client
	p.CreatedAt = original.CreatedAt
	if p.UpdatedAt.IsZero() {
		p.UpdatedAt = time.Now().UTC()
	}
	s.projects[p.ID] = p
	return p, nil
}

func (s *Store) GetProject(_ context.Context, id int64) (project.Project, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.projects[id]
	if !ok {
		return project.Project{}, core.NewNotFoundError("project", formatID(id))
	}
	return p, nil
}

func (s *Store) ListProjectsByClient(_ context.Context, client string) ([]project.Project, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []project.Project
	for _, p := range s.projects {
		if p.Client == client {
			out = append(out, p)
		}
	}
	return out, nil
}

func (s *Store) ListProjectsByFreelancer(_ context.Context, freelancer string) ([]project.Project, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []project.Project
	for _, p := range s.projects {
		if p.Freelancer == freelancer {
			out = append(out, p)
		}
	}
	return out, nil
}

func (s *Store) CreateMilestone(_ context.Context, m project.Milestone) (project.Milestone, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	proj, ok := s.projects[m.ProjectID]
	if !ok {
		return project.Milestone{}, core.NewNotFoundError("project", formatID(m.ProjectID))
	}
	m.Index = proj.MilestoneCount
	s.milestones[m.ProjectID] = append(s.milestones[m.ProjectID], m)
	proj.MilestoneCount++
	proj.UpdatedAt = time.Now().UTC()
	s.projects[m.ProjectID] = proj
	return m, nil
}

func (s *Store) UpdateMilestone(_ context.Context, m project.Milestone) (project.Milestone, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	list := s.milestones[m.ProjectID]
	if m.Index < 0 || m.Index >= len(list) {
		return project.Milestone{}, core.NewNotFoundError("milestone", formatID(int64(m.Index)))
	}
	list[m.Index] = m
	return m, nil
}

func (s *Store) GetMilestone(_ context.Context, projectID int64, index int) (project.Milestone, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	list := s.milestones[projectID]
	if index < 0 || index >= len(list) {
		return project.Milestone{}, core.NewNotFoundError("milestone", formatID(int64(index)))
	}
	return list[index], nil
}

func (s *Store) ListMilestones(_ context.Context, projectID int64) ([]project.Milestone, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	list := s.milestones[projectID]
	out := make([]project.Milestone, len(list))
	copy(out, list)
	return out, nil
}

// EscrowStore implementation --------------------------------------------------

func (s *Store) CreateWallet(_ context.Context, w escrow.Wallet) (escrow.Wallet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.wallets[w.Owner]; exists {
		return escrow.Wallet{}, core.NewConflictError("wallet", w.Owner, "already registered")
	}
	if w.RegisteredAt.IsZero() {
		w.RegisteredAt = time.Now().UTC()
	}
	s.wallets[w.Owner] = w
	return w, nil
}

func (s *Store) GetWallet(_ context.Context, owner string) (escrow.Wallet, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	w, ok := s.wallets[owner]
	if !ok {
		return escrow.Wallet{}, core.NewNotFoundError("wallet", owner)
	}
	return w, nil
}

func (s *Store) CreatePayment(_ context.Context, p escrow.Payment) (escrow.Payment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.paymentByProject[p.ProjectID]; ok {
		return escrow.Payment{}, core.NewConflictError("payment", formatID(existing),
			"project already has a payment")
	}
	p.ID = s.nextPaymentID
	s.nextPaymentID++
	stampCreate(&p.CreatedAt, &p.UpdatedAt)
	s.payments[p.ID] = p
	s.paymentByProject[p.ProjectID] = p.ID
	return p, nil
}

func (s *Store) UpdatePayment(_ context.Context, p escrow.Payment) (escrow.Payment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	original, ok := s.payments[p.ID]
	if !ok {
		return escrow.Payment{}, core.NewNotFoundError("payment", formatID(p.ID))
	}
	p.ProjectID = original.ProjectID
	p.Client = original.Client
	p.CreatedAt = original.CreatedAt
	if p.UpdatedAt.IsZero() {
		p.UpdatedAt = time.Now().UTC()
	}
	s.payments[p.ID] = p
	return p, nil
}

func (s *Store) GetPayment(_ context.Context, id int64) (escrow.Payment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.payments[id]
	if !ok {
		return escrow.Payment{}, core.NewNotFoundError("payment", formatID(id))
	}
	return p, nil
}

func (s *Store) GetPaymentByProject(_ context.Context, projectID int64) (escrow.Payment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.paymentByProject[projectID]
	if !ok {
		return escrow.Payment{}, core.NewNotFoundError("payment for project", formatID(projectID))
	}
	return s.payments[id], nil
}

func (s *Store) ListPaymentsByClient(_ context.Context, client string) ([]escrow.Payment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []escrow.Payment
	for _, p := range s.payments {
		if p.Client == client {
			out = append(out, p)
		}
	}
	return out, nil
}

// VerificationStore implementation --------------------------------------------

func (s *Store) CreateVerification(_ context.Context, v verification.Verification) (verification.Verification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.verificationByProject[v.ProjectID]; ok {
		return verification.Verification{}, core.NewConflictError("verification", formatID(existing),
			"project already has a verification")
	}
	v.ID = s.nextVerificationID
	s.nextVerificationID++
	stampCreate(&v.CreatedAt, &v.UpdatedAt)
	s.workVerifications[v.ID] = v
	s.verificationByProject[v.ProjectID] = v.ID
	return v, nil
}

func (s *Store) UpdateVerification(_ context.Context, v verification.Verification) (verification.Verification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	original, ok := s.workVerifications[v.ID]
	if !ok {
		return verification.Verification{}, core.NewNotFoundError("verification", formatID(v.ID))
	}
	v.ProjectID = original.ProjectID
	v.CreatedAt = original.CreatedAt
	if v.UpdatedAt.IsZero() {
		v.UpdatedAt = time.Now().UTC()
	}
	s.workVerifications[v.ID] = v
	return v, nil
}

func (s *Store) GetVerification(_ context.Context, id int64) (verification.Verification, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	v, ok := s.workVerifications[id]
	if !ok {
		return verification.Verification{}, core.NewNotFoundError("verification", formatID(id))
	}
	return v, nil
}

func (s *Store) GetVerificationByProject(_ context.Context, projectID int64) (verification.Verification, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.verificationByProject[projectID]
	if !ok {
		return verification.Verification{}, core.NewNotFoundError("verification for project", formatID(projectID))
	}
	return s.workVerifications[id], nil
}

func (s *Store) AppendEvidence(_ context.Context, e verification.Evidence) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.workVerifications[e.VerificationID]; !ok {
		return core.NewNotFoundError("verification", formatID(e.VerificationID))
	}
	if e.SubmittedAt.IsZero() {
		e.SubmittedAt = time.Now().UTC()
	}
	s.evidence[e.VerificationID] = append(s.evidence[e.VerificationID], e)
	return nil
}

func (s *Store) ListEvidence(_ context.Context, verificationID int64) ([]verification.Evidence, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	list := s.evidence[verificationID]
	out := make([]verification.Evidence, len(list))
	copy(out, list)
	return out, nil
}

// StatsStore implementation ---------------------------------------------------

func (s *Store) PutStats(_ context.Context, st stats.Stats) (stats.Stats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.freelancerStats[st.Freelancer]; ok {
		st.RegisteredAt = existing.RegisteredAt
	} else if st.RegisteredAt.IsZero() {
		st.RegisteredAt = time.Now().UTC()
	}
	if st.UpdatedAt.IsZero() {
		st.UpdatedAt = time.Now().UTC()
	}
	s.freelancerStats[st.Freelancer] = st
	return st, nil
}

func (s *Store) GetStats(_ context.Context, freelancer string) (stats.Stats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st, ok := s.freelancerStats[freelancer]
	if !ok {
		return stats.Stats{}, core.NewNotFoundError("stats", freelancer)
	}
	return st, nil
}

func (s *Store) AppendWorkRecord(_ context.Context, rec stats.WorkRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.workRecords[rec.ProjectID]; exists {
		return core.NewConflictError("work record", formatID(rec.ProjectID), "project already recorded")
	}
	if rec.RecordedAt.IsZero() {
		rec.RecordedAt = time.Now().UTC()
	}
	s.workRecords[rec.ProjectID] = rec
	s.workHistory[rec.Freelancer] = append(s.workHistory[rec.Freelancer], rec.ProjectID)
	return nil
}

func (s *Store) UpdateWorkRecord(_ context.Context, rec stats.WorkRecord) (stats.WorkRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	original, ok := s.workRecords[rec.ProjectID]
	if !ok {
		return stats.WorkRecord{}, core.NewNotFoundError("work record", formatID(rec.ProjectID))
	}
	rec.Freelancer = original.Freelancer
	rec.RecordedAt = original.RecordedAt
	s.workRecords[rec.ProjectID] = rec
	return rec, nil
}

func (s *Store) GetWorkRecord(_ context.Context, projectID int64) (stats.WorkRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.workRecords[projectID]
	if !ok {
		return stats.WorkRecord{}, core.NewNotFoundError("work record", formatID(projectID))
	}
	return rec, nil
}

func (s *Store) ListWorkRecords(_ context.Context, freelancer string) ([]stats.WorkRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := s.workHistory[freelancer]
	out := make([]stats.WorkRecord, 0, len(ids))
	for _, id := range ids {
		out = append(out, s.workRecords[id])
	}
	return out, nil
}

// CrossChainStore implementation ----------------------------------------------

func (s *Store) PutChainContract(_ context.Context, c crosschain.ChainContract) (crosschain.ChainContract, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if c.RegisteredAt.IsZero() {
		c.RegisteredAt = time.Now().UTC()
	}
	s.chainContracts[c.ChainID] = c
	return c, nil
}

func (s *Store) GetChainContract(_ context.Context, chainID uint64) (crosschain.ChainContract, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.chainContracts[chainID]
	if !ok {
		return crosschain.ChainContract{}, core.NewNotFoundError("chain contract",
			strconv.FormatUint(chainID, 10))
	}
	return c, nil
}

func (s *Store) ListChainContracts(_ context.Context) ([]crosschain.ChainContract, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]crosschain.ChainContract, 0, len(s.chainContracts))
	for _, c := range s.chainContracts {
		out = append(out, c)
	}
	return out, nil
}

func (s *Store) CreateOperation(_ context.Context, op crosschain.Operation) (crosschain.Operation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.operations[op.MessageID]; exists {
		return crosschain.Operation{}, core.NewConflictError("operation", op.MessageID, "message id already tracked")
	}
	if op.CreatedAt.IsZero() {
		op.CreatedAt = time.Now().UTC()
	}
	op.Payload = cloneBytes(op.Payload)
	s.operations[op.MessageID] = op
	s.operationOrder = append(s.operationOrder, op.MessageID)
	return cloneOperation(op), nil
}

func (s *Store) UpdateOperation(_ context.Context, op crosschain.Operation) (crosschain.Operation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	original, ok := s.operations[op.MessageID]
	if !ok {
		return crosschain.Operation{}, core.NewNotFoundError("operation", op.MessageID)
	}
	op.CreatedAt = original.CreatedAt
	op.Payload = cloneBytes(op.Payload)
	s.operations[op.MessageID] = op
	return cloneOperation(op), nil
}

func (s *Store) GetOperation(_ context.Context, messageID string) (crosschain.Operation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	op, ok := s.operations[messageID]
	if !ok {
		return crosschain.Operation{}, core.NewNotFoundError("operation", messageID)
	}
	return cloneOperation(op), nil
}

func (s *Store) ListOperations(_ context.Context, status crosschain.OperationStatus) ([]crosschain.Operation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []crosschain.Operation
	for _, id := range s.operationOrder {
		op := s.operations[id]
		if status != "" && op.Status != status {
			continue
		}
		out = append(out, cloneOperation(op))
	}
	return out, nil
}

func (s *Store) CreateProjectLink(_ context.Context, l crosschain.ProjectLink) (crosschain.ProjectLink, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.projectLinks[l.ProjectID]; exists {
		return crosschain.ProjectLink{}, core.NewConflictError("project link", formatID(l.ProjectID),
			"project already linked")
	}
	if _, exists := s.projectByCorr[l.CorrelationID]; exists {
		return crosschain.ProjectLink{}, core.NewConflictError("project link", l.CorrelationID,
			"correlation id already linked")
	}
	if l.CreatedAt.IsZero() {
		l.CreatedAt = time.Now().UTC()
	}
	s.projectLinks[l.ProjectID] = l
	s.projectByCorr[l.CorrelationID] = l.ProjectID
	return l, nil
}

func (s *Store) GetProjectLink(_ context.Context, projectID int64) (crosschain.ProjectLink, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	l, ok := s.projectLinks[projectID]
	if !ok {
		return crosschain.ProjectLink{}, core.NewNotFoundError("project link", formatID(projectID))
	}
	return l, nil
}

func (s *Store) GetProjectLinkByCorrelation(_ context.Context, correlationID string) (crosschain.ProjectLink, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.projectByCorr[correlationID]
	if !ok {
		return crosschain.ProjectLink{}, core.NewNotFoundError("project link", correlationID)
	}
	return s.projectLinks[id], nil
}

func (s *Store) CreatePaymentLink(_ context.Context, l crosschain.PaymentLink) (crosschain.PaymentLink, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.paymentLinks[l.PaymentID]; exists {
		return crosschain.PaymentLink{}, core.NewConflictError("payment link", formatID(l.PaymentID),
			"payment already linked")
	}
	if _, exists := s.paymentByCorr[l.CorrelationID]; exists {
		return crosschain.PaymentLink{}, core.NewConflictError("payment link", l.CorrelationID,
			"correlation id already linked")
	}
	if l.CreatedAt.IsZero() {
		l.CreatedAt = time.Now().UTC()
	}
	s.paymentLinks[l.PaymentID] = l
	s.paymentByCorr[l.CorrelationID] = l.PaymentID
	return l, nil
}

func (s *Store) UpdatePaymentLink(_ context.Context, l crosschain.PaymentLink) (crosschain.PaymentLink, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	original, ok := s.paymentLinks[l.PaymentID]
	if !ok {
		return crosschain.PaymentLink{}, core.NewNotFoundError("payment link", formatID(l.PaymentID))
	}
	l.CorrelationID = original.CorrelationID
	l.CreatedAt = original.CreatedAt
	s.paymentLinks[l.PaymentID] = l
	return l, nil
}

func (s *Store) GetPaymentLink(_ context.Context, paymentID int64) (crosschain.PaymentLink, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	l, ok := s.paymentLinks[paymentID]
	if !ok {
		return crosschain.PaymentLink{}, core.NewNotFoundError("payment link", formatID(paymentID))
	}
	return l, nil
}

func (s *Store) GetPaymentLinkByCorrelation(_ context.Context, correlationID string) (crosschain.PaymentLink, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.paymentByCorr[correlationID]
	if !ok {
		return crosschain.PaymentLink{}, core.NewNotFoundError("payment link", correlationID)
	}
	return s.paymentLinks[id], nil
}

// helpers ---------------------------------------------------------------------

func formatID(id int64) string {
	return strconv.FormatInt(id, 10)
}

func cloneBytes(b []byte) []byte {
	if b == nil {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

func cloneOperation(op crosschain.Operation) crosschain.Operation {
	op.Payload = cloneBytes(op.Payload)
	return op
}
