// Package escrow defines payment custody records.
package escrow

import "time"

// Status is the lifecycle state of a payment. Released and Refunded are
// terminal.
type Status string

const (
	StatusPending  Status = "pending"
	StatusFunded   Status = "funded"
	StatusReleased Status = "released"
	StatusRefunded Status = "refunded"
	StatusDisputed Status = "disputed"
)

// NativeToken is the token identifier for the chain's native currency.
// Native payments are funded atomically at creation; any other token
// identifier requires a separate funding step.
const NativeToken = "native"

// Payment holds funds for exactly one project. ID 0 means absent. Client and
// Freelancer are copied from the project at creation.
type Payment struct {
	ID         int64
	ProjectID  int64
	Client     string
	Freelancer string
	Token      string
	Amount     int64
	Status     Status
	WorkHash   string
	FundedAt   time.Time
	ReleasedAt time.Time
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Wallet is the one-time payout wallet registration for an owner.
type Wallet struct {
	Owner        string
	Address      string
	RegisteredAt time.Time
}
