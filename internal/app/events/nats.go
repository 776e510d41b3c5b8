package events

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/nats-io/nats.go"

	"github.com/lancechain/ledger/pkg/logger"
)

// NATSEmitter publishes events to a NATS subject tree rooted at a prefix,
// one subject per entity kind (e.g. ledger.events.payment).
type NATSEmitter struct {
	nc     *nats.Conn
	prefix string
	log    *logger.Logger
}

// NewNATSEmitter connects to a NATS server and returns an emitter. An empty
// prefix defaults to "ledger.events".
func NewNATSEmitter(url, prefix string, log *logger.Logger) (*NATSEmitter, error) {
	if log == nil {
		log = logger.NewDefault("events-nats")
	}
	prefix = strings.TrimSpace(prefix)
	if prefix == "" {
		prefix = "ledger.events"
	}
	nc, err := nats.Connect(url, nats.Name("ledger-events"))
	if err != nil {
		return nil, fmt.Errorf("connect nats: %w", err)
	}
	return &NATSEmitter{nc: nc, prefix: prefix, log: log}, nil
}

func (e *NATSEmitter) Emit(_ context.Context, ev Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}
	subject := e.prefix + "." + ev.Entity
	if err := e.nc.Publish(subject, data); err != nil {
		return fmt.Errorf("publish %s: %w", subject, err)
	}
	return nil
}

// Close drains the underlying connection.
func (e *NATSEmitter) Close() {
	if e.nc != nil {
		e.nc.Close()
	}
}
