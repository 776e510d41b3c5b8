// Package stats defines the append-only freelancer reputation ledger.
package stats

import "time"

// Stats aggregates a freelancer's recorded work. Counters only ever grow.
// AverageRating is maintained incrementally with truncating integer
// division, so it can drift below the true mean.
type Stats struct {
	Freelancer        string
	TotalProjects     int64
	CompletedProjects int64
	TotalEarned       int64
	AverageRating     int64
	TotalDeliveries   int64
	OnTimeDeliveries  int64
	RegisteredAt      time.Time
	UpdatedAt         time.Time
}

// WorkRecord is one entry in a freelancer's history. At most one record
// exists per project.
type WorkRecord struct {
	Freelancer string
	ProjectID  int64
	Client     string
	Amount     int64
	WorkHash   string
	Rating     int
	Verified   bool
	OnTime     bool
	RecordedAt time.Time
}
