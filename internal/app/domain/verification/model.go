// Package verification defines the deliverable-approval records gating
// payment release.
package verification

import "time"

// Status is the lifecycle state of a verification.
type Status string

const (
	StatusPending  Status = "pending"
	StatusVerified Status = "verified"
	StatusRejected Status = "rejected"
	StatusDisputed Status = "disputed"
)

// Verification tracks the approval workflow for one project's deliverables.
// MeetsDeadline is computed once at submission and frozen thereafter.
type Verification struct {
	ID            int64
	ProjectID     int64
	Freelancer    string
	Client        string
	Verifier      string
	WorkHash      string
	Requirements  string
	Status        Status
	MeetsDeadline bool
	Reason        string
	Deadline      time.Time
	SubmittedAt   time.Time
	ResolvedAt    time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Evidence is an append-only supporting artifact attached to a verification.
type Evidence struct {
	VerificationID int64
	Hash           string
	Submitter      string
	SubmittedAt    time.Time
}
