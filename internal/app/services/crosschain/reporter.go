package crosschain

import (
	"context"
	"time"

	"github.com/lancechain/ledger/internal/app/domain/crosschain"
	"github.com/lancechain/ledger/internal/app/storage"
	"github.com/lancechain/ledger/pkg/logger"
)

// StuckReporter periodically logs operations that have sat at Sent past a
// threshold. It only reports: once Sent, an operation moves only through
// explicit receipt or operator action, never by timeout.
type StuckReporter struct {
	store     storage.CrossChainStore
	log       *logger.Logger
	interval  time.Duration
	threshold time.Duration
	now       func() time.Time

	cancel context.CancelFunc
	done   chan struct{}
}

// NewStuckReporter creates a reporter scanning every interval for operations
// Sent longer than threshold.
func NewStuckReporter(store storage.CrossChainStore, interval, threshold time.Duration, log *logger.Logger) *StuckReporter {
	if log == nil {
		log = logger.NewDefault("crosschain.reporter")
	}
	if interval <= 0 {
		interval = time.Minute
	}
	if threshold <= 0 {
		threshold = 15 * time.Minute
	}
	return &StuckReporter{
		store:     store,
		log:       log,
		interval:  interval,
		threshold: threshold,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

func (r *StuckReporter) Name() string { return "crosschain-stuck-reporter" }

// Start launches the scan loop.
func (r *StuckReporter) Start(ctx context.Context) error {
	ctx, r.cancel = context.WithCancel(ctx)
	r.done = make(chan struct{})
	go r.run(ctx)
	return nil
}

// Stop halts the scan loop and waits for it to exit.
func (r *StuckReporter) Stop(ctx context.Context) error {
	if r.cancel == nil {
		return nil
	}
	r.cancel()
	select {
	case <-r.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (r *StuckReporter) run(ctx context.Context) {
	defer close(r.done)
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.scan(ctx)
		}
	}
}

func (r *StuckReporter) scan(ctx context.Context) {
	ops, err := r.store.ListOperations(ctx, crosschain.OpStatusSent)
	if err != nil {
		r.log.WithError(err).Warn("stuck-operation scan failed")
		return
	}
	cutoff := r.now().Add(-r.threshold)
	for _, op := range ops {
		if op.CreatedAt.After(cutoff) {
			continue
		}
		r.log.WithField("message_id", op.MessageID).
			WithField("op_type", op.Type).
			WithField("dest_chain", op.DestChain).
			WithField("age", r.now().Sub(op.CreatedAt).Round(time.Second)).
			Warn("operation stuck at sent")
	}
}
