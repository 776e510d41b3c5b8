// Package user holds the registry's profile and verification records.
package user

import "time"

// Profile is the authoritative record for a registered identity. Address and
// RegisteredAt are immutable once created; username and email are reserved
// permanently at registration.
type Profile struct {
	Address      string
	Username     string
	Email        string
	ProfileHash  string
	Verified     bool
	IsFreelancer bool
	IsClient     bool
	RegisteredAt time.Time
	UpdatedAt    time.Time
}

// Verification records how and by whom an identity was last verified. It is
// overwritten on re-verification.
type Verification struct {
	Address    string
	Method     string
	Verifier   string
	VerifiedAt time.Time
}
