// Package postgres implements the storage interfaces backed by PostgreSQL.
// Uniqueness invariants are enforced by the schema's unique constraints so
// they hold under concurrent writers.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	core "github.com/lancechain/ledger/internal/app/core/service"
	"github.com/lancechain/ledger/internal/app/domain/crosschain"
	"github.com/lancechain/ledger/internal/app/domain/escrow"
	"github.com/lancechain/ledger/internal/app/domain/project"
	"github.com/lancechain/ledger/internal/app/domain/stats"
	"github.com/lancechain/ledger/internal/app/domain/user"
	"github.com/lancechain/ledger/internal/app/domain/verification"
	"github.com/lancechain/ledger/internal/app/storage"
)

// Store implements every storage interface on one PostgreSQL database.
type Store struct {
	db *sqlx.DB
}

var _ storage.UserStore = (*Store)(nil)
var _ storage.ProjectStore = (*Store)(nil)
var _ storage.EscrowStore = (*Store)(nil)
var _ storage.VerificationStore = (*Store)(nil)
var _ storage.StatsStore = (*Store)(nil)
var _ storage.CrossChainStore = (*Store)(nil)

// New creates a Store using the provided database handle.
func New(db *sqlx.DB) *Store {
	return &Store{db: db}
}

// Open connects to the database and applies the schema.
func Open(dsn string) (*Store, error) {
	db, err := sqlx.Connect("postgres", dsn)
	if err != nil {
		return nil, err
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, err
	}
	return New(db), nil
}

// Close releases the underlying connection pool.
func (s *Store) Close() error {
	return s.db.Close()
}

const uniqueViolation = "23505"

func mapWriteErr(err error, resource, id, reason string) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && string(pqErr.Code) == uniqueViolation {
		return core.NewConflictError(resource, id, reason)
	}
	return err
}

func mapReadErr(err error, resource, id string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return core.NewNotFoundError(resource, id)
	}
	return err
}

func orNow(t time.Time) time.Time {
	if t.IsZero() {
		return time.Now().UTC()
	}
	return t
}

// --- UserStore --------------------------------------------------------------

func (s *Store) CreateProfile(ctx context.Context, p user.Profile) (user.Profile, error) {
	p.RegisteredAt = orNow(p.RegisteredAt)
	p.UpdatedAt = orNow(p.UpdatedAt)
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO profiles (address, username, email, profile_hash, verified, is_freelancer, is_client, registered_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, p.Address, p.Username, p.Email, p.ProfileHash, p.Verified, p.IsFreelancer, p.IsClient, p.RegisteredAt, p.UpdatedAt)
	if err != nil {
		return user.Profile{}, mapWriteErr(err, "profile", p.Address, "address, username or email already taken")
	}
	return p, nil
}

func (s *Store) UpdateProfile(ctx context.Context, p user.Profile) (user.Profile, error) {
	// Identity, username, email and registration time are immutable.
	row := s.db.QueryRowxContext(ctx, `
		UPDATE profiles
		SET profile_hash = $2, verified = $3, is_freelancer = $4, is_client = $5, updated_at = $6
		WHERE address = $1
		RETURNING username, email, registered_at
	`, p.Address, p.ProfileHash, p.Verified, p.IsFreelancer, p.IsClient, orNow(p.UpdatedAt))
	if err := row.Scan(&p.Username, &p.Email, &p.RegisteredAt); err != nil {
		return user.Profile{}, mapReadErr(err, "profile", p.Address)
	}
	return p, nil
}

func (s *Store) GetProfile(ctx context.Context, address string) (user.Profile, error) {
	var p user.Profile
	err := s.db.QueryRowxContext(ctx, `
		SELECT address, username, email, profile_hash, verified, is_freelancer, is_client, registered_at, updated_at
		FROM profiles WHERE address = $1
	`, address).Scan(&p.Address, &p.Username, &p.Email, &p.ProfileHash, &p.Verified, &p.IsFreelancer, &p.IsClient, &p.RegisteredAt, &p.UpdatedAt)
	if err != nil {
		return user.Profile{}, mapReadErr(err, "profile", address)
	}
	return p, nil
}

func (s *Store) ListProfiles(ctx context.Context) ([]user.Profile, error) {
	rows, err := s.db.QueryxContext(ctx, `
		SELECT address, username, email, profile_hash, verified, is_freelancer, is_client, registered_at, updated_at
		FROM profiles ORDER BY registered_at
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []user.Profile
	for rows.Next() {
		var p user.Profile
		if err := rows.Scan(&p.Address, &p.Username, &p.Email, &p.ProfileHash, &p.Verified, &p.IsFreelancer, &p.IsClient, &p.RegisteredAt, &p.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *Store) PutVerification(ctx context.Context, v user.Verification) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO user_verifications (address, method, verifier, verified_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (address) DO UPDATE SET method = $2, verifier = $3, verified_at = $4
	`, v.Address, v.Method, v.Verifier, orNow(v.VerifiedAt))
	return err
}

func (s *Store) GetUserVerification(ctx context.Context, address string) (user.Verification, error) {
	var v user.Verification
	err := s.db.QueryRowxContext(ctx, `
		SELECT address, method, verifier, verified_at FROM user_verifications WHERE address = $1
	`, address).Scan(&v.Address, &v.Method, &v.Verifier, &v.VerifiedAt)
	if err != nil {
		return user.Verification{}, mapReadErr(err, "verification record", address)
	}
	return v, nil
}

// --- ProjectStore -----------------------------------------------------------

func (s *Store) CreateProject(ctx context.Context, p project.Project) (project.Project, error) {
	p.CreatedAt = orNow(p.CreatedAt)
	p.UpdatedAt = orNow(p.UpdatedAt)
	err := s.db.QueryRowxContext(ctx, `
		INSERT INTO projects (client, freelancer, title, description, requirements, budget, deadline, status, deliverables, milestone_count, escrow_funded, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		RETURNING id
	`, p.Client, p.Freelancer, p.Title, p.Description, p.Requirements, p.Budget, p.Deadline, p.Status, p.Deliverables, p.MilestoneCount, p.EscrowFunded, p.CreatedAt, p.UpdatedAt).Scan(&p.ID)
	if err != nil {
		return project.Project{}, err
	}
	return p, nil
}

func (s *Store) UpdateProject(ctx context.Context, p project.Project) (project.Project, error) {
	// Client and creation time are immutable.
	row := s.db.QueryRowxContext(ctx, `
		UPDATE projects
		SET freelancer = $2, title = $3, description = $4, requirements = $5, budget = $6, deadline = $7,
		    status = $8, deliverables = $9, escrow_funded = $10, updated_at = $11
		WHERE id = $1
		RETURNING client, milestone_count, created_at
	`, p.ID, p.Freelancer, p.Title, p.Description, p.Requirements, p.Budget, p.Deadline,
		p.Status, p.Deliverables, p.EscrowFunded, orNow(p.UpdatedAt))
	if err := row.Scan(&p.Client, &p.MilestoneCount, &p.CreatedAt); err != nil {
		return project.Project{}, mapReadErr(err, "project", formatInt(p.ID))
	}
	return p, nil
}

func (s *Store) GetProject(ctx context.Context, id int64) (project.Project, error) {
	var p project.Project
	err := s.db.QueryRowxContext(ctx, `
		SELECT id, client, freelancer, title, description, requirements, budget, deadline, status, deliverables, milestone_count, escrow_funded, created_at, updated_at
		FROM projects WHERE id = $1
	`, id).Scan(&p.ID, &p.Client, &p.Freelancer, &p.Title, &p.Description, &p.Requirements, &p.Budget, &p.Deadline, &p.Status, &p.Deliverables, &p.MilestoneCount, &p.EscrowFunded, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return project.Project{}, mapReadErr(err, "project", formatInt(id))
	}
	return p, nil
}

func (s *Store) ListProjectsByClient(ctx context.Context, client string) ([]project.Project, error) {
	return s.listProjects(ctx, "client", client)
}

func (s *Store) ListProjectsByFreelancer(ctx context.Context, freelancer string) ([]project.Project, error) {
	return s.listProjects(ctx, "freelancer", freelancer)
}

func (s *Store) listProjects(ctx context.Context, column, value string) ([]project.Project, error) {
	rows, err := s.db.QueryxContext(ctx, `
		SELECT id, client, freelancer, title, description, requirements, budget, deadline, status, deliverables, milestone_count, escrow_funded, created_at, updated_at
		FROM projects WHERE `+column+` = $1 ORDER BY id
	`, value)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []project.Project
	for rows.Next() {
		var p project.Project
		if err := rows.Scan(&p.ID, &p.Client, &p.Freelancer, &p.Title, &p.Description, &p.Requirements, &p.Budget, &p.Deadline, &p.Status, &p.Deliverables, &p.MilestoneCount, &p.EscrowFunded, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *Store) CreateMilestone(ctx context.Context, m project.Milestone) (project.Milestone, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return project.Milestone{}, err
	}
	defer tx.Rollback()

	// Lock the project row so the index assignment and count bump are one
	// atomic unit under concurrent creators.
	var count int
	err = tx.QueryRowxContext(ctx, `
		SELECT milestone_count FROM projects WHERE id = $1 FOR UPDATE
	`, m.ProjectID).Scan(&count)
	if err != nil {
		return project.Milestone{}, mapReadErr(err, "project", formatInt(m.ProjectID))
	}

	m.Index = count
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO milestones (project_id, idx, description, amount, completed, completed_at, deliverable)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, m.ProjectID, m.Index, m.Description, m.Amount, m.Completed, nullTime(m.CompletedAt), m.Deliverable); err != nil {
		return project.Milestone{}, err
	}
	if _, err := tx.ExecContext(ctx, `
		UPDATE projects SET milestone_count = $2 WHERE id = $1
	`, m.ProjectID, count+1); err != nil {
		return project.Milestone{}, err
	}
	if err := tx.Commit(); err != nil {
		return project.Milestone{}, err
	}
	return m, nil
}

func (s *Store) UpdateMilestone(ctx context.Context, m project.Milestone) (project.Milestone, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE milestones
		SET description = $3, amount = $4, completed = $5, completed_at = $6, deliverable = $7
		WHERE project_id = $1 AND idx = $2
	`, m.ProjectID, m.Index, m.Description, m.Amount, m.Completed, nullTime(m.CompletedAt), m.Deliverable)
	if err != nil {
		return project.Milestone{}, err
	}
	if rows, _ := res.RowsAffected(); rows == 0 {
		return project.Milestone{}, core.NewNotFoundError("milestone", formatInt(int64(m.Index)))
	}
	return m, nil
}

func (s *Store) GetMilestone(ctx context.Context, projectID int64, index int) (project.Milestone, error) {
	var (
		m           project.Milestone
		completedAt sql.NullTime
	)
	err := s.db.QueryRowxContext(ctx, `
		SELECT project_id, idx, description, amount, completed, completed_at, deliverable
		FROM milestones WHERE project_id = $1 AND idx = $2
	`, projectID, index).Scan(&m.ProjectID, &m.Index, &m.Description, &m.Amount, &m.Completed, &completedAt, &m.Deliverable)
	if err != nil {
		return project.Milestone{}, mapReadErr(err, "milestone", formatInt(int64(index)))
	}
	m.CompletedAt = completedAt.Time
	return m, nil
}

func (s *Store) ListMilestones(ctx context.Context, projectID int64) ([]project.Milestone, error) {
	rows, err := s.db.QueryxContext(ctx, `
		SELECT project_id, idx, description, amount, completed, completed_at, deliverable
		FROM milestones WHERE project_id = $1 ORDER BY idx
	`, projectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []project.Milestone
	for rows.Next() {
		var (
			m           project.Milestone
			completedAt sql.NullTime
		)
		if err := rows.Scan(&m.ProjectID, &m.Index, &m.Description, &m.Amount, &m.Completed, &completedAt, &m.Deliverable); err != nil {
			return nil, err
		}
		m.CompletedAt = completedAt.Time
		out = append(out, m)
	}
	return out, rows.Err()
}

// --- EscrowStore ------------------------------------------------------------

func (s *Store) CreateWallet(ctx context.Context, w escrow.Wallet) (escrow.Wallet, error) {
	w.RegisteredAt = orNow(w.RegisteredAt)
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO wallets (owner, address, registered_at) VALUES ($1, $2, $3)
	`, w.Owner, w.Address, w.RegisteredAt)
	if err != nil {
		return escrow.Wallet{}, mapWriteErr(err, "wallet", w.Owner, "wallet already registered")
	}
	return w, nil
}

func (s *Store) GetWallet(ctx context.Context, owner string) (escrow.Wallet, error) {
	var w escrow.Wallet
	err := s.db.QueryRowxContext(ctx, `
		SELECT owner, address, registered_at FROM wallets WHERE owner = $1
	`, owner).Scan(&w.Owner, &w.Address, &w.RegisteredAt)
	if err != nil {
		return escrow.Wallet{}, mapReadErr(err, "wallet", owner)
	}
	return w, nil
}

func (s *Store) CreatePayment(ctx context.Context, p escrow.Payment) (escrow.Payment, error) {
	p.CreatedAt = orNow(p.CreatedAt)
	p.UpdatedAt = orNow(p.UpdatedAt)
	err := s.db.QueryRowxContext(ctx, `
		INSERT INTO payments (project_id, client, freelancer, token, amount, status, work_hash, funded_at, released_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING id
	`, p.ProjectID, p.Client, p.Freelancer, p.Token, p.Amount, p.Status, p.WorkHash, nullTime(p.FundedAt), nullTime(p.ReleasedAt), p.CreatedAt, p.UpdatedAt).Scan(&p.ID)
	if err != nil {
		return escrow.Payment{}, mapWriteErr(err, "payment", formatInt(p.ProjectID), "project already has a payment")
	}
	return p, nil
}

func (s *Store) UpdatePayment(ctx context.Context, p escrow.Payment) (escrow.Payment, error) {
	// Project, client and creation time are immutable.
	row := s.db.QueryRowxContext(ctx, `
		UPDATE payments
		SET freelancer = $2, token = $3, amount = $4, status = $5, work_hash = $6, funded_at = $7, released_at = $8, updated_at = $9
		WHERE id = $1
		RETURNING project_id, client, created_at
	`, p.ID, p.Freelancer, p.Token, p.Amount, p.Status, p.WorkHash, nullTime(p.FundedAt), nullTime(p.ReleasedAt), orNow(p.UpdatedAt))
	if err := row.Scan(&p.ProjectID, &p.Client, &p.CreatedAt); err != nil {
		return escrow.Payment{}, mapReadErr(err, "payment", formatInt(p.ID))
	}
	return p, nil
}

func (s *Store) GetPayment(ctx context.Context, id int64) (escrow.Payment, error) {
	return s.getPayment(ctx, "id", id)
}

func (s *Store) GetPaymentByProject(ctx context.Context, projectID int64) (escrow.Payment, error) {
	return s.getPayment(ctx, "project_id", projectID)
}

func (s *Store) getPayment(ctx context.Context, column string, id int64) (escrow.Payment, error) {
	var (
		p          escrow.Payment
		fundedAt   sql.NullTime
		releasedAt sql.NullTime
	)
	err := s.db.QueryRowxContext(ctx, `
		SELECT id, project_id, client, freelancer, token, amount, status, work_hash, funded_at, released_at, created_at, updated_at
		FROM payments WHERE `+column+` = $1
	`, id).Scan(&p.ID, &p.ProjectID, &p.Client, &p.Freelancer, &p.Token, &p.Amount, &p.Status, &p.WorkHash, &fundedAt, &releasedAt, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return escrow.Payment{}, mapReadErr(err, "payment", formatInt(id))
	}
	p.FundedAt = fundedAt.Time
	p.ReleasedAt = releasedAt.Time
	return p, nil
}

func (s *Store) ListPaymentsByClient(ctx context.Context, client string) ([]escrow.Payment, error) {
	rows, err := s.db.QueryxContext(ctx, `
		SELECT id, project_id, client, freelancer, token, amount, status, work_hash, funded_at, released_at, created_at, updated_at
		FROM payments WHERE client = $1 ORDER BY id
	`, client)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []escrow.Payment
	for rows.Next() {
		var (
			p          escrow.Payment
			fundedAt   sql.NullTime
			releasedAt sql.NullTime
		)
		if err := rows.Scan(&p.ID, &p.ProjectID, &p.Client, &p.Freelancer, &p.Token, &p.Amount, &p.Status, &p.WorkHash, &fundedAt, &releasedAt, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, err
		}
		p.FundedAt = fundedAt.Time
		p.ReleasedAt = releasedAt.Time
		out = append(out, p)
	}
	return out, rows.Err()
}

// --- VerificationStore ------------------------------------------------------

func (s *Store) CreateVerification(ctx context.Context, v verification.Verification) (verification.Verification, error) {
	v.CreatedAt = orNow(v.CreatedAt)
	v.UpdatedAt = orNow(v.UpdatedAt)
	err := s.db.QueryRowxContext(ctx, `
		INSERT INTO verifications (project_id, freelancer, client, verifier, work_hash, requirements, status, meets_deadline, reason, deadline, submitted_at, resolved_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		RETURNING id
	`, v.ProjectID, v.Freelancer, v.Client, v.Verifier, v.WorkHash, v.Requirements, v.Status, v.MeetsDeadline, v.Reason, v.Deadline, nullTime(v.SubmittedAt), nullTime(v.ResolvedAt), v.CreatedAt, v.UpdatedAt).Scan(&v.ID)
	if err != nil {
		return verification.Verification{}, mapWriteErr(err, "verification", formatInt(v.ProjectID), "project already has a verification")
	}
	return v, nil
}

func (s *Store) UpdateVerification(ctx context.Context, v verification.Verification) (verification.Verification, error) {
	row := s.db.QueryRowxContext(ctx, `
		UPDATE verifications
		SET verifier = $2, work_hash = $3, status = $4, meets_deadline = $5, reason = $6, submitted_at = $7, resolved_at = $8, updated_at = $9
		WHERE id = $1
		RETURNING project_id, freelancer, client, requirements, deadline, created_at
	`, v.ID, v.Verifier, v.WorkHash, v.Status, v.MeetsDeadline, v.Reason, nullTime(v.SubmittedAt), nullTime(v.ResolvedAt), orNow(v.UpdatedAt))
	if err := row.Scan(&v.ProjectID, &v.Freelancer, &v.Client, &v.Requirements, &v.Deadline, &v.CreatedAt); err != nil {
		return verification.Verification{}, mapReadErr(err, "verification", formatInt(v.ID))
	}
	return v, nil
}

func (s *Store) GetVerification(ctx context.Context, id int64) (verification.Verification, error) {
	return s.getVerification(ctx, "id", id)
}

func (s *Store) GetVerificationByProject(ctx context.Context, projectID int64) (verification.Verification, error) {
	return s.getVerification(ctx, "project_id", projectID)
}

func (s *Store) getVerification(ctx context.Context, column string, id int64) (verification.Verification, error) {
	var (
		v           verification.Verification
		submittedAt sql.NullTime
		resolvedAt  sql.NullTime
	)
	err := s.db.QueryRowxContext(ctx, `
		SELECT id, project_id, freelancer, client, verifier, work_hash, requirements, status, meets_deadline, reason, deadline, submitted_at, resolved_at, created_at, updated_at
		FROM verifications WHERE `+column+` = $1
	`, id).Scan(&v.ID, &v.ProjectID, &v.Freelancer, &v.Client, &v.Verifier, &v.WorkHash, &v.Requirements, &v.Status, &v.MeetsDeadline, &v.Reason, &v.Deadline, &submittedAt, &resolvedAt, &v.CreatedAt, &v.UpdatedAt)
	if err != nil {
		return verification.Verification{}, mapReadErr(err, "verification", formatInt(id))
	}
	v.SubmittedAt = submittedAt.Time
	v.ResolvedAt = resolvedAt.Time
	return v, nil
}

func (s *Store) AppendEvidence(ctx context.Context, e verification.Evidence) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO evidence (verification_id, hash, submitter, submitted_at)
		VALUES ($1, $2, $3, $4)
	`, e.VerificationID, e.Hash, e.Submitter, orNow(e.SubmittedAt))
	return err
}

func (s *Store) ListEvidence(ctx context.Context, verificationID int64) ([]verification.Evidence, error) {
	rows, err := s.db.QueryxContext(ctx, `
		SELECT verification_id, hash, submitter, submitted_at
		FROM evidence WHERE verification_id = $1 ORDER BY submitted_at, hash
	`, verificationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []verification.Evidence
	for rows.Next() {
		var e verification.Evidence
		if err := rows.Scan(&e.VerificationID, &e.Hash, &e.Submitter, &e.SubmittedAt); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// --- StatsStore -------------------------------------------------------------

func (s *Store) PutStats(ctx context.Context, agg stats.Stats) (stats.Stats, error) {
	agg.RegisteredAt = orNow(agg.RegisteredAt)
	agg.UpdatedAt = orNow(agg.UpdatedAt)
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO freelancer_stats (freelancer, total_projects, completed_projects, total_earned, total_deliveries, on_time_deliveries, average_rating, registered_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (freelancer) DO UPDATE SET
			total_projects = $2, completed_projects = $3, total_earned = $4,
			total_deliveries = $5, on_time_deliveries = $6, average_rating = $7, updated_at = $9
	`, agg.Freelancer, agg.TotalProjects, agg.CompletedProjects, agg.TotalEarned, agg.TotalDeliveries, agg.OnTimeDeliveries, agg.AverageRating, agg.RegisteredAt, agg.UpdatedAt)
	if err != nil {
		return stats.Stats{}, err
	}
	return agg, nil
}

func (s *Store) GetStats(ctx context.Context, freelancer string) (stats.Stats, error) {
	var agg stats.Stats
	err := s.db.QueryRowxContext(ctx, `
		SELECT freelancer, total_projects, completed_projects, total_earned, total_deliveries, on_time_deliveries, average_rating, registered_at, updated_at
		FROM freelancer_stats WHERE freelancer = $1
	`, freelancer).Scan(&agg.Freelancer, &agg.TotalProjects, &agg.CompletedProjects, &agg.TotalEarned, &agg.TotalDeliveries, &agg.OnTimeDeliveries, &agg.AverageRating, &agg.RegisteredAt, &agg.UpdatedAt)
	if err != nil {
		return stats.Stats{}, mapReadErr(err, "stats", freelancer)
	}
	return agg, nil
}

func (s *Store) AppendWorkRecord(ctx context.Context, rec stats.WorkRecord) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO work_records (project_id, freelancer, client, amount, work_hash, rating, verified, on_time, recorded_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, rec.ProjectID, rec.Freelancer, rec.Client, rec.Amount, rec.WorkHash, rec.Rating, rec.Verified, rec.OnTime, orNow(rec.RecordedAt))
	if err != nil {
		return mapWriteErr(err, "work record", formatInt(rec.ProjectID), "project already recorded")
	}
	return nil
}

func (s *Store) UpdateWorkRecord(ctx context.Context, rec stats.WorkRecord) (stats.WorkRecord, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE work_records SET verified = $2, on_time = $3 WHERE project_id = $1
	`, rec.ProjectID, rec.Verified, rec.OnTime)
	if err != nil {
		return stats.WorkRecord{}, err
	}
	if rows, _ := res.RowsAffected(); rows == 0 {
		return stats.WorkRecord{}, core.NewNotFoundError("work record", formatInt(rec.ProjectID))
	}
	return rec, nil
}

func (s *Store) GetWorkRecord(ctx context.Context, projectID int64) (stats.WorkRecord, error) {
	var rec stats.WorkRecord
	err := s.db.QueryRowxContext(ctx, `
		SELECT project_id, freelancer, client, amount, work_hash, rating, verified, on_time, recorded_at
		FROM work_records WHERE project_id = $1
	`, projectID).Scan(&rec.ProjectID, &rec.Freelancer, &rec.Client, &rec.Amount, &rec.WorkHash, &rec.Rating, &rec.Verified, &rec.OnTime, &rec.RecordedAt)
	if err != nil {
		return stats.WorkRecord{}, mapReadErr(err, "work record", formatInt(projectID))
	}
	return rec, nil
}

func (s *Store) ListWorkRecords(ctx context.Context, freelancer string) ([]stats.WorkRecord, error) {
	rows, err := s.db.QueryxContext(ctx, `
		SELECT project_id, freelancer, client, amount, work_hash, rating, verified, on_time, recorded_at
		FROM work_records WHERE freelancer = $1 ORDER BY recorded_at
	`, freelancer)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []stats.WorkRecord
	for rows.Next() {
		var rec stats.WorkRecord
		if err := rows.Scan(&rec.ProjectID, &rec.Freelancer, &rec.Client, &rec.Amount, &rec.WorkHash, &rec.Rating, &rec.Verified, &rec.OnTime, &rec.RecordedAt); err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// --- CrossChainStore --------------------------------------------------------

func (s *Store) PutChainContract(ctx context.Context, c crosschain.ChainContract) (crosschain.ChainContract, error) {
	c.RegisteredAt = orNow(c.RegisteredAt)
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO chain_contracts (chain_id, address, registered_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (chain_id) DO UPDATE SET address = $2, registered_at = $3
	`, int64(c.ChainID), c.Address, c.RegisteredAt)
	if err != nil {
		return crosschain.ChainContract{}, err
	}
	return c, nil
}

func (s *Store) GetChainContract(ctx context.Context, chainID uint64) (crosschain.ChainContract, error) {
	var (
		c  crosschain.ChainContract
		id int64
	)
	err := s.db.QueryRowxContext(ctx, `
		SELECT chain_id, address, registered_at FROM chain_contracts WHERE chain_id = $1
	`, int64(chainID)).Scan(&id, &c.Address, &c.RegisteredAt)
	if err != nil {
		return crosschain.ChainContract{}, mapReadErr(err, "chain contract", formatInt(int64(chainID)))
	}
	c.ChainID = uint64(id)
	return c, nil
}

func (s *Store) ListChainContracts(ctx context.Context) ([]crosschain.ChainContract, error) {
	rows, err := s.db.QueryxContext(ctx, `
		SELECT chain_id, address, registered_at FROM chain_contracts ORDER BY chain_id
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []crosschain.ChainContract
	for rows.Next() {
		var (
			c  crosschain.ChainContract
			id int64
		)
		if err := rows.Scan(&id, &c.Address, &c.RegisteredAt); err != nil {
			return nil, err
		}
		c.ChainID = uint64(id)
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *Store) CreateOperation(ctx context.Context, op crosschain.Operation) (crosschain.Operation, error) {
	op.CreatedAt = orNow(op.CreatedAt)
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO operations (message_id, op_type, source_chain, dest_chain, source_address, dest_address, payload, status, created_at, completed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`, op.MessageID, op.Type, int64(op.SourceChain), int64(op.DestChain), op.SourceAddress, op.DestAddress, op.Payload, op.Status, op.CreatedAt, nullTime(op.CompletedAt))
	if err != nil {
		return crosschain.Operation{}, mapWriteErr(err, "operation", op.MessageID, "message id already recorded")
	}
	return op, nil
}

func (s *Store) UpdateOperation(ctx context.Context, op crosschain.Operation) (crosschain.Operation, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE operations SET status = $2, completed_at = $3 WHERE message_id = $1
	`, op.MessageID, op.Status, nullTime(op.CompletedAt))
	if err != nil {
		return crosschain.Operation{}, err
	}
	if rows, _ := res.RowsAffected(); rows == 0 {
		return crosschain.Operation{}, core.NewNotFoundError("operation", op.MessageID)
	}
	return s.GetOperation(ctx, op.MessageID)
}

func (s *Store) GetOperation(ctx context.Context, messageID string) (crosschain.Operation, error) {
	var (
		op                     crosschain.Operation
		sourceChain, destChain int64
		completedAt            sql.NullTime
	)
	err := s.db.QueryRowxContext(ctx, `
		SELECT message_id, op_type, source_chain, dest_chain, source_address, dest_address, payload, status, created_at, completed_at
		FROM operations WHERE message_id = $1
	`, messageID).Scan(&op.MessageID, &op.Type, &sourceChain, &destChain, &op.SourceAddress, &op.DestAddress, &op.Payload, &op.Status, &op.CreatedAt, &completedAt)
	if err != nil {
		return crosschain.Operation{}, mapReadErr(err, "operation", messageID)
	}
	op.SourceChain = uint64(sourceChain)
	op.DestChain = uint64(destChain)
	op.CompletedAt = completedAt.Time
	return op, nil
}

func (s *Store) ListOperations(ctx context.Context, status crosschain.OperationStatus) ([]crosschain.Operation, error) {
	query := `
		SELECT message_id, op_type, source_chain, dest_chain, source_address, dest_address, payload, status, created_at, completed_at
		FROM operations`
	args := []any{}
	if status != "" {
		query += ` WHERE status = $1`
		args = append(args, status)
	}
	query += ` ORDER BY created_at, message_id`

	rows, err := s.db.QueryxContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []crosschain.Operation
	for rows.Next() {
		var (
			op                     crosschain.Operation
			sourceChain, destChain int64
			completedAt            sql.NullTime
		)
		if err := rows.Scan(&op.MessageID, &op.Type, &sourceChain, &destChain, &op.SourceAddress, &op.DestAddress, &op.Payload, &op.Status, &op.CreatedAt, &completedAt); err != nil {
			return nil, err
		}
		op.SourceChain = uint64(sourceChain)
		op.DestChain = uint64(destChain)
		op.CompletedAt = completedAt.Time
		out = append(out, op)
	}
	return out, rows.Err()
}

func (s *Store) CreateProjectLink(ctx context.Context, l crosschain.ProjectLink) (crosschain.ProjectLink, error) {
	l.CreatedAt = orNow(l.CreatedAt)
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO project_links (project_id, correlation_id, source_chain, creator, remote, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, l.ProjectID, l.CorrelationID, int64(l.SourceChain), l.Creator, l.Remote, l.CreatedAt)
	if err != nil {
		return crosschain.ProjectLink{}, mapWriteErr(err, "project link", l.CorrelationID, "project or correlation id already linked")
	}
	return l, nil
}

func (s *Store) GetProjectLink(ctx context.Context, projectID int64) (crosschain.ProjectLink, error) {
	return s.getProjectLink(ctx, "project_id", projectID)
}

func (s *Store) GetProjectLinkByCorrelation(ctx context.Context, correlationID string) (crosschain.ProjectLink, error) {
	return s.getProjectLink(ctx, "correlation_id", correlationID)
}

func (s *Store) getProjectLink(ctx context.Context, column string, key any) (crosschain.ProjectLink, error) {
	var (
		l           crosschain.ProjectLink
		sourceChain int64
	)
	err := s.db.QueryRowxContext(ctx, `
		SELECT project_id, correlation_id, source_chain, creator, remote, created_at
		FROM project_links WHERE `+column+` = $1
	`, key).Scan(&l.ProjectID, &l.CorrelationID, &sourceChain, &l.Creator, &l.Remote, &l.CreatedAt)
	if err != nil {
		return crosschain.ProjectLink{}, mapReadErr(err, "project link", toID(key))
	}
	l.SourceChain = uint64(sourceChain)
	return l, nil
}

func (s *Store) CreatePaymentLink(ctx context.Context, l crosschain.PaymentLink) (crosschain.PaymentLink, error) {
	l.CreatedAt = orNow(l.CreatedAt)
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO payment_links (payment_id, correlation_id, source_chain, released, remote, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, l.PaymentID, l.CorrelationID, int64(l.SourceChain), l.Released, l.Remote, l.CreatedAt)
	if err != nil {
		return crosschain.PaymentLink{}, mapWriteErr(err, "payment link", l.CorrelationID, "payment or correlation id already linked")
	}
	return l, nil
}

func (s *Store) UpdatePaymentLink(ctx context.Context, l crosschain.PaymentLink) (crosschain.PaymentLink, error) {
	// The correlation mapping is immutable; only the released flag moves.
	row := s.db.QueryRowxContext(ctx, `
		UPDATE payment_links SET released = $2 WHERE payment_id = $1
		RETURNING correlation_id, source_chain, remote, created_at
	`, l.PaymentID, l.Released)
	var sourceChain int64
	if err := row.Scan(&l.CorrelationID, &sourceChain, &l.Remote, &l.CreatedAt); err != nil {
		return crosschain.PaymentLink{}, mapReadErr(err, "payment link", formatInt(l.PaymentID))
	}
	l.SourceChain = uint64(sourceChain)
	return l, nil
}

func (s *Store) GetPaymentLink(ctx context.Context, paymentID int64) (crosschain.PaymentLink, error) {
	return s.getPaymentLink(ctx, "payment_id", paymentID)
}

func (s *Store) GetPaymentLinkByCorrelation(ctx context.Context, correlationID string) (crosschain.PaymentLink, error) {
	return s.getPaymentLink(ctx, "correlation_id", correlationID)
}

func (s *Store) getPaymentLink(ctx context.Context, column string, key any) (crosschain.PaymentLink, error) {
	var (
		l           crosschain.PaymentLink
		sourceChain int64
	)
	err := s.db.QueryRowxContext(ctx, `
		SELECT payment_id, correlation_id, source_chain, released, remote, created_at
		FROM payment_links WHERE `+column+` = $1
	`, key).Scan(&l.PaymentID, &l.CorrelationID, &sourceChain, &l.Released, &l.Remote, &l.CreatedAt)
	if err != nil {
		return crosschain.PaymentLink{}, mapReadErr(err, "payment link", toID(key))
	}
	l.SourceChain = uint64(sourceChain)
	return l, nil
}

func nullTime(t time.Time) sql.NullTime {
	return sql.NullTime{Time: t, Valid: !t.IsZero()}
}

func formatInt(id int64) string {
	return strconv.FormatInt(id, 10)
}

func toID(key any) string {
	switch v := key.(type) {
	case int64:
		return formatInt(v)
	case string:
		return v
	default:
		return fmt.Sprint(v)
	}
}
