// Package crosschain defines the message-relay ledger records linking local
// entities to their counterparts on other chains.
package crosschain

import "time"

// OperationType identifies what a relayed message mirrors.
type OperationType string

const (
	OpProjectCreation   OperationType = "project_creation"
	OpPaymentInitiation OperationType = "payment_initiation"
	OpPaymentRelease    OperationType = "payment_release"
	OpProjectCompletion OperationType = "project_completion"
	OpUserRegistration  OperationType = "user_registration"
)

// OperationStatus is the delivery state of a relayed message. Completed and
// Failed are terminal and require explicit operator action; a lost message
// leaves the operation at Sent indefinitely.
type OperationStatus string

const (
	OpStatusPending   OperationStatus = "pending"
	OpStatusSent      OperationStatus = "sent"
	OpStatusReceived  OperationStatus = "received"
	OpStatusCompleted OperationStatus = "completed"
	OpStatusFailed    OperationStatus = "failed"
)

// Operation is one tracked cross-chain message, keyed by the transport (or
// derivation) assigned message id.
type Operation struct {
	MessageID     string
	Type          OperationType
	SourceChain   uint64
	DestChain     uint64
	SourceAddress string
	DestAddress   string
	Payload       []byte
	Status        OperationStatus
	CreatedAt     time.Time
	CompletedAt   time.Time
}

// ChainContract maps a remote chain id to its mirrored contract address.
// Registration is required before any operation may target the chain, and
// inbound messages authenticate against this mapping.
type ChainContract struct {
	ChainID      uint64
	Address      string
	RegisteredAt time.Time
}

// ProjectLink ties a local project to its cross-chain correlation id. Remote
// marks projects materialized from another chain's message.
type ProjectLink struct {
	ProjectID     int64
	CorrelationID string
	SourceChain   uint64
	Creator       string
	Remote        bool
	CreatedAt     time.Time
}

// PaymentLink ties a local payment to its cross-chain correlation id and
// tracks whether the mirrored release has been observed.
type PaymentLink struct {
	PaymentID     int64
	CorrelationID string
	SourceChain   uint64
	Released      bool
	Remote        bool
	CreatedAt     time.Time
}

// ProjectPayload is the wire form of a mirrored project creation.
type ProjectPayload struct {
	CorrelationID string `json:"correlation_id"`
	SourceChain   uint64 `json:"source_chain"`
	Creator       string `json:"creator"`
	Title         string `json:"title"`
	Description   string `json:"description"`
	Requirements  string `json:"requirements"`
	Budget        int64  `json:"budget"`
	Deadline      int64  `json:"deadline_unix"`
}

// PaymentPayload is the wire form of a mirrored payment initiation or
// release.
type PaymentPayload struct {
	CorrelationID string `json:"correlation_id"`
	SourceChain   uint64 `json:"source_chain"`

	// ProjectCorrelationID resolves the payment's project on the receiving
	// chain, where the sender's local project id means nothing.
	ProjectCorrelationID string `json:"project_correlation_id,omitempty"`
	ProjectID            int64  `json:"project_id"`
	Client               string `json:"client"`
	Freelancer           string `json:"freelancer"`
	Token                string `json:"token"`
	Amount               int64  `json:"amount"`
	Release              bool   `json:"release"`
}
