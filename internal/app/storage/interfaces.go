// Package storage declares the persistence interfaces for the marketplace
// ledgers. Implementations must apply each call atomically: uniqueness
// checks and the write they guard happen as one unit.
package storage

import (
	"context"

	"github.com/lancechain/ledger/internal/app/domain/crosschain"
	"github.com/lancechain/ledger/internal/app/domain/escrow"
	"github.com/lancechain/ledger/internal/app/domain/project"
	"github.com/lancechain/ledger/internal/app/domain/stats"
	"github.com/lancechain/ledger/internal/app/domain/user"
	"github.com/lancechain/ledger/internal/app/domain/verification"
)

// UserStore persists profiles and verification records. CreateProfile
// enforces address, username and email uniqueness atomically.
type UserStore interface {
	CreateProfile(ctx context.Context, p user.Profile) (user.Profile, error)
	UpdateProfile(ctx context.Context, p user.Profile) (user.Profile, error)
	GetProfile(ctx context.Context, address string) (user.Profile, error)
	ListProfiles(ctx context.Context) ([]user.Profile, error)

	PutVerification(ctx context.Context, v user.Verification) error
	GetUserVerification(ctx context.Context, address string) (user.Verification, error)
}

// ProjectStore persists projects and milestones. CreateMilestone assigns the
// next per-project index and bumps the project's milestone count in the same
// call.
type ProjectStore interface {
	CreateProject(ctx context.Context, p project.Project) (project.Project, error)
	UpdateProject(ctx context.Context, p project.Project) (project.Project, error)
	GetProject(ctx context.Context, id int64) (project.Project, error)
	ListProjectsByClient(ctx context.Context, client string) ([]project.Project, error)
	ListProjectsByFreelancer(ctx context.Context, freelancer string) ([]project.Project, error)

	CreateMilestone(ctx context.Context, m project.Milestone) (project.Milestone, error)
	UpdateMilestone(ctx context.Context, m project.Milestone) (project.Milestone, error)
	GetMilestone(ctx context.Context, projectID int64, index int) (project.Milestone, error)
	ListMilestones(ctx context.Context, projectID int64) ([]project.Milestone, error)
}

// EscrowStore persists payments and payout wallets. CreatePayment enforces
// the one-payment-per-project invariant; CreateWallet the one-wallet-per-
// owner invariant.
type EscrowStore interface {
	CreateWallet(ctx context.Context, w escrow.Wallet) (escrow.Wallet, error)
	GetWallet(ctx context.Context, owner string) (escrow.Wallet, error)

	CreatePayment(ctx context.Context, p escrow.Payment) (escrow.Payment, error)
	UpdatePayment(ctx context.Context, p escrow.Payment) (escrow.Payment, error)
	GetPayment(ctx context.Context, id int64) (escrow.Payment, error)
	GetPaymentByProject(ctx context.Context, projectID int64) (escrow.Payment, error)
	ListPaymentsByClient(ctx context.Context, client string) ([]escrow.Payment, error)
}

// VerificationStore persists verifications and their append-only evidence.
// CreateVerification enforces one verification per project.
type VerificationStore interface {
	CreateVerification(ctx context.Context, v verification.Verification) (verification.Verification, error)
	UpdateVerification(ctx context.Context, v verification.Verification) (verification.Verification, error)
	GetVerification(ctx context.Context, id int64) (verification.Verification, error)
	GetVerificationByProject(ctx context.Context, projectID int64) (verification.Verification, error)

	AppendEvidence(ctx context.Context, e verification.Evidence) error
	ListEvidence(ctx context.Context, verificationID int64) ([]verification.Evidence, error)
}

// StatsStore persists freelancer aggregates and work history. The work
// record list is append-only with at most one record per project.
type StatsStore interface {
	PutStats(ctx context.Context, s stats.Stats) (stats.Stats, error)
	GetStats(ctx context.Context, freelancer string) (stats.Stats, error)

	AppendWorkRecord(ctx context.Context, rec stats.WorkRecord) error
	UpdateWorkRecord(ctx context.Context, rec stats.WorkRecord) (stats.WorkRecord, error)
	GetWorkRecord(ctx context.Context, projectID int64) (stats.WorkRecord, error)
	ListWorkRecords(ctx context.Context, freelancer string) ([]stats.WorkRecord, error)
}

// CrossChainStore persists chain-contract registrations, message operations
// and the bidirectional local/correlation links. CreateOperation rejects a
// duplicate message id; link creation rejects duplicates on either side of
// the mapping.
type CrossChainStore interface {
	PutChainContract(ctx context.Context, c crosschain.ChainContract) (crosschain.ChainContract, error)
	GetChainContract(ctx context.Context, chainID uint64) (crosschain.ChainContract, error)
	ListChainContracts(ctx context.Context) ([]crosschain.ChainContract, error)

	CreateOperation(ctx context.Context, op crosschain.Operation) (crosschain.Operation, error)
	UpdateOperation(ctx context.Context, op crosschain.Operation) (crosschain.Operation, error)
	GetOperation(ctx context.Context, messageID string) (crosschain.Operation, error)
	ListOperations(ctx context.Context, status crosschain.OperationStatus) ([]crosschain.Operation, error)

	CreateProjectLink(ctx context.Context, l crosschain.ProjectLink) (crosschain.ProjectLink, error)
	GetProjectLink(ctx context.Context, projectID int64) (crosschain.ProjectLink, error)
	GetProjectLinkByCorrelation(ctx context.Context, correlationID string) (crosschain.ProjectLink, error)

	CreatePaymentLink(ctx context.Context, l crosschain.PaymentLink) (crosschain.PaymentLink, error)
	UpdatePaymentLink(ctx context.Context, l crosschain.PaymentLink) (crosschain.PaymentLink, error)
	GetPaymentLink(ctx context.Context, paymentID int64) (crosschain.PaymentLink, error)
	GetPaymentLinkByCorrelation(ctx context.Context, correlationID string) (crosschain.PaymentLink, error)
}
