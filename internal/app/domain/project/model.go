// Package project defines the project and milestone records and the project
// lifecycle state machine.
package project

import "time"

// Status is the lifecycle state of a project.
type Status string

const (
	StatusDraft      Status = "draft"
	StatusPublished  Status = "published"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusCancelled  Status = "cancelled"
	StatusDisputed   Status = "disputed"
)

// forward holds the single permitted forward edge per status. Cancellation
// and dispute are administrative edges handled separately.
var forward = map[Status]Status{
	StatusDraft:      StatusPublished,
	StatusPublished:  StatusInProgress,
	StatusInProgress: StatusCompleted,
}

// CanAdvanceTo reports whether next is the permitted forward transition from
// s. Status never moves backward and never skips a stage.
func (s Status) CanAdvanceTo(next Status) bool {
	return forward[s] == next
}

// Terminal reports whether the status admits no further transitions.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

// Project is a client-owned engagement. ID 0 means absent; Client is the
// immutable owner; Freelancer is empty until assignment.
type Project struct {
	ID             int64
	Client         string
	Freelancer     string
	Title          string
	Description    string
	Requirements   string
	Budget         int64
	Deadline       time.Time
	Status         Status
	Deliverables   string
	MilestoneCount int
	EscrowFunded   bool
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Milestone is a sub-deliverable of exactly one project. Index is 0-based
// and sequential per project. Milestone amounts are informational and are
// not reconciled against the project budget.
type Milestone struct {
	ProjectID   int64
	Index       int
	Description string
	Amount      int64
	Completed   bool
	CompletedAt time.Time
	Deliverable string
}
