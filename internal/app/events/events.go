// Package events emits structured records for every ledger state transition
// so external indexers can follow the marketplace without polling. Emission
// never gates control flow: services log and drop emitter failures.
package events

import (
	"context"
	"time"

	"github.com/lancechain/ledger/pkg/logger"
)

// Event is one observed state transition.
type Event struct {
	Type         string            `json:"type"`
	Entity       string            `json:"entity"`
	EntityID     string            `json:"entity_id"`
	Actor        string            `json:"actor,omitempty"`
	Counterparty string            `json:"counterparty,omitempty"`
	Amount       int64             `json:"amount,omitempty"`
	Fields       map[string]string `json:"fields,omitempty"`
	At           time.Time         `json:"at"`
}

// Emitter publishes events to an external sink.
type Emitter interface {
	Emit(ctx context.Context, ev Event) error
}

// NopEmitter drops every event.
type NopEmitter struct{}

func (NopEmitter) Emit(context.Context, Event) error { return nil }

// LogEmitter writes events through the structured logger.
type LogEmitter struct {
	log *logger.Logger
}

// NewLogEmitter creates a logger-backed emitter.
func NewLogEmitter(log *logger.Logger) *LogEmitter {
	if log == nil {
		log = logger.NewDefault("events")
	}
	return &LogEmitter{log: log}
}

func (e *LogEmitter) Emit(_ context.Context, ev Event) error {
	entry := e.log.
		WithField("event", ev.Type).
		WithField("entity", ev.Entity).
		WithField("entity_id", ev.EntityID)
	if ev.Actor != "" {
		entry = entry.WithField("actor", ev.Actor)
	}
	if ev.Counterparty != "" {
		entry = entry.WithField("counterparty", ev.Counterparty)
	}
	if ev.Amount != 0 {
		entry = entry.WithField("amount", ev.Amount)
	}
	for k, v := range ev.Fields {
		entry = entry.WithField(k, v)
	}
	entry.Info("state transition")
	return nil
}
