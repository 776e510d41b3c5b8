package crosschain

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/lancechain/ledger/internal/app/domain/crosschain"
	"github.com/lancechain/ledger/internal/app/storage/memory"
)

func TestStuckReporterLifecycle(t *testing.T) {
	store := memory.New()
	ctx := context.Background()

	_, err := store.CreateOperation(ctx, crosschain.Operation{
		MessageID:   "msg-1",
		Type:        crosschain.OpProjectCreation,
		SourceChain: localChain,
		DestChain:   destChain,
		Status:      crosschain.OpStatusSent,
		CreatedAt:   time.Now().Add(-time.Hour),
	})
	require.NoError(t, err)

	r := NewStuckReporter(store, 10*time.Millisecond, time.Minute, nil)
	require.Equal(t, "crosschain-stuck-reporter", r.Name())
	require.NoError(t, r.Start(ctx))

	// Let at least one scan pass; the reporter must not mutate anything.
	time.Sleep(50 * time.Millisecond)
	require.NoError(t, r.Stop(ctx))

	op, err := store.GetOperation(ctx, "msg-1")
	require.NoError(t, err)
	require.Equal(t, crosschain.OpStatusSent, op.Status)
}

func TestStuckReporterScanSkipsFreshOperations(t *testing.T) {
	store := memory.New()
	ctx := context.Background()

	_, err := store.CreateOperation(ctx, crosschain.Operation{
		MessageID: "fresh",
		Status:    crosschain.OpStatusSent,
		CreatedAt: time.Now(),
	})
	require.NoError(t, err)

	r := NewStuckReporter(store, time.Minute, time.Minute, nil)
	r.scan(ctx)

	op, err := store.GetOperation(ctx, "fresh")
	require.NoError(t, err)
	require.Equal(t, crosschain.OpStatusSent, op.Status)
}
