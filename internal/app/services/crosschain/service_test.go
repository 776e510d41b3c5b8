package crosschain

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	core "github.com/lancechain/ledger/internal/app/core/service"
	"github.com/lancechain/ledger/internal/app/domain/crosschain"
	"github.com/lancechain/ledger/internal/app/storage/memory"
)

const (
	admin      = "0xadmin"
	remoteAddr = "0xremote-contract"
	localChain = uint64(1)
	destChain  = uint64(2)
)

type sendCall struct {
	destChain   uint64
	destAddress string
	payload     []byte
	fee         FeeInfo
	relayers    []string
	withPolicy  bool
}

// stubTransport implements RelayTransport and records every dispatch.
type stubTransport struct {
	idPrefix string
	err      error
	calls    []sendCall
}

func (t *stubTransport) Send(_ context.Context, destChain uint64, destAddress string, payload []byte, _ uint64) (string, error) {
	t.calls = append(t.calls, sendCall{destChain: destChain, destAddress: destAddress, payload: payload})
	if t.err != nil {
		return "", t.err
	}
	return fmt.Sprintf("%s-%d", t.idPrefix, len(t.calls)), nil
}

func (t *stubTransport) SendWithPolicy(_ context.Context, destChain uint64, destAddress string, payload []byte, _ uint64, fee FeeInfo, relayers []string) (string, error) {
	t.calls = append(t.calls, sendCall{destChain: destChain, destAddress: destAddress, payload: payload, fee: fee, relayers: relayers, withPolicy: true})
	if t.err != nil {
		return "", t.err
	}
	return fmt.Sprintf("%s-%d", t.idPrefix, len(t.calls)), nil
}

type fixture struct {
	svc      *Service
	store    *memory.Store
	primary  *stubTransport
	fallback *stubTransport
	now      time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		store:    memory.New(),
		primary:  &stubTransport{idPrefix: "primary"},
		fallback: &stubTransport{idPrefix: "fallback"},
		now:      time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
	}
	f.svc = New(f.store, f.primary, f.fallback, localChain, nil).
		WithAdmin(admin).
		WithClock(func() time.Time { return f.now })
	return f
}

func (f *fixture) registerDest(t *testing.T) {
	t.Helper()
	_, err := f.svc.RegisterChainContract(context.Background(), admin, destChain, remoteAddr)
	require.NoError(t, err)
}

func envelope(t *testing.T, opType crosschain.OperationType, body any) []byte {
	t.Helper()
	raw, err := json.Marshal(body)
	require.NoError(t, err)
	payload, err := json.Marshal(Envelope{Type: opType, Body: raw})
	require.NoError(t, err)
	return payload
}

func TestRegisterChainContractAdminOnly(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.RegisterChainContract(ctx, "0xstranger", destChain, remoteAddr)
	require.True(t, core.IsForbidden(err))

	_, err = f.svc.RegisterChainContract(ctx, admin, 0, remoteAddr)
	require.True(t, core.IsValidationError(err))

	c, err := f.svc.RegisterChainContract(ctx, admin, destChain, remoteAddr)
	require.NoError(t, err)
	require.Equal(t, remoteAddr, c.Address)
}

func TestInitiateRequiresRegisteredDestination(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.InitiateOperation(context.Background(), "0xclient", crosschain.OpProjectCreation, destChain, json.RawMessage(`{}`), 100000, FeeInfo{}, nil)
	require.True(t, core.IsNotFound(err))
	require.Empty(t, f.primary.calls, "transport must not be touched for an unregistered destination")
	require.Empty(t, f.fallback.calls)
}

func TestInitiateRecordsSentOperation(t *testing.T) {
	f := newFixture(t)
	f.registerDest(t)
	ctx := context.Background()

	fee := FeeInfo{Token: "native", Amount: 7}
	op, err := f.svc.InitiateOperation(ctx, "0xclient", crosschain.OpProjectCreation, destChain, json.RawMessage(`{"x":1}`), 100000, fee, []string{"0xrelayer"})
	require.NoError(t, err)
	require.Equal(t, "primary-1", op.MessageID)
	require.Equal(t, crosschain.OpStatusSent, op.Status)
	require.Equal(t, localChain, op.SourceChain)
	require.Equal(t, remoteAddr, op.DestAddress)

	require.Len(t, f.primary.calls, 1)
	call := f.primary.calls[0]
	require.True(t, call.withPolicy)
	require.Equal(t, fee, call.fee)
	require.Equal(t, []string{"0xrelayer"}, call.relayers)
	require.Empty(t, f.fallback.calls)

	stored, err := f.svc.GetOperation(ctx, op.MessageID)
	require.NoError(t, err)
	require.Equal(t, op.MessageID, stored.MessageID)
}

func TestInitiateFallsBackOnPrimaryFailure(t *testing.T) {
	f := newFixture(t)
	f.registerDest(t)
	f.primary.err = errors.New("relayer unreachable")

	op, err := f.svc.InitiateOperation(context.Background(), "0xclient", crosschain.OpProjectCreation, destChain,
		json.RawMessage(`{}`), 100000, FeeInfo{Token: "native", Amount: 7}, []string{"0xrelayer"})
	require.NoError(t, err)

	// The stored id is the fallback transport's, and the fallback was
	// invoked with a zero fee quote and no relayer allow-list.
	require.Equal(t, "fallback-1", op.MessageID)
	require.Len(t, f.fallback.calls, 1)
	call := f.fallback.calls[0]
	require.Equal(t, FeeInfo{}, call.fee)
	require.Nil(t, call.relayers)
}

func TestInitiateFallbackFailureSurfaces(t *testing.T) {
	f := newFixture(t)
	f.registerDest(t)
	f.primary.err = errors.New("relayer unreachable")
	f.fallback.err = errors.New("broker down")

	_, err := f.svc.InitiateOperation(context.Background(), "0xclient", crosschain.OpProjectCreation, destChain, json.RawMessage(`{}`), 100000, FeeInfo{}, nil)
	require.Error(t, err)

	ops, lerr := f.svc.ListOperations(context.Background(), "")
	require.NoError(t, lerr)
	require.Empty(t, ops, "a failed dispatch must record nothing")
}

func TestInitiateWithoutTransportsFailsCleanly(t *testing.T) {
	store := memory.New()
	svc := New(store, nil, nil, localChain, nil).WithAdmin(admin)
	_, err := svc.RegisterChainContract(context.Background(), admin, destChain, remoteAddr)
	require.NoError(t, err)

	_, err = svc.InitiateOperation(context.Background(), "0xclient", crosschain.OpProjectCreation, destChain,
		json.RawMessage(`{}`), 100000, FeeInfo{}, nil)
	require.True(t, core.IsTransportFailed(err), "expected transport error, got %v", err)

	ops, lerr := svc.ListOperations(context.Background(), "")
	require.NoError(t, lerr)
	require.Empty(t, ops)
}

func TestInitiateNilPrimaryUsesFallback(t *testing.T) {
	f := newFixture(t)
	f.registerDest(t)
	f.svc.primary = nil

	op, err := f.svc.InitiateOperation(context.Background(), "0xclient", crosschain.OpProjectCreation, destChain,
		json.RawMessage(`{}`), 100000, FeeInfo{Token: "native", Amount: 7}, []string{"0xrelayer"})
	require.NoError(t, err)
	require.Equal(t, "fallback-1", op.MessageID)
	require.Empty(t, f.primary.calls)
}

func TestReceiveAuthenticatesByRegistryLookup(t *testing.T) {
	f := newFixture(t)
	f.registerDest(t)
	payload := envelope(t, crosschain.OpUserRegistration, map[string]string{"address": "0xremote-user"})

	_, err := f.svc.ReceiveOperation(context.Background(), destChain, "0ximpostor", payload)
	require.True(t, core.IsForbidden(err))

	_, err = f.svc.ReceiveOperation(context.Background(), uint64(9), remoteAddr, payload)
	require.True(t, core.IsNotFound(err))

	op, err := f.svc.ReceiveOperation(context.Background(), destChain, remoteAddr, payload)
	require.NoError(t, err)
	require.Equal(t, crosschain.OpStatusReceived, op.Status)
	require.Equal(t, crosschain.OpUserRegistration, op.Type)
}

func TestReceiveDuplicateRejectedInCorrectedMode(t *testing.T) {
	f := newFixture(t)
	f.registerDest(t)
	payload := envelope(t, crosschain.OpUserRegistration, map[string]string{"address": "0xremote-user"})

	first, err := f.svc.ReceiveOperation(context.Background(), destChain, remoteAddr, payload)
	require.NoError(t, err)

	// Same message, later wall clock. The corrected derivation ignores the
	// timestamp, so the replay maps to the same operation.
	f.now = f.now.Add(time.Hour)
	_, err = f.svc.ReceiveOperation(context.Background(), destChain, remoteAddr, payload)
	require.True(t, core.IsConflict(err))

	stored, err := f.svc.GetOperation(context.Background(), first.MessageID)
	require.NoError(t, err)
	require.Equal(t, crosschain.OpStatusReceived, stored.Status)
}

func TestReceiveStrictModeDerivesFreshIDPerReplay(t *testing.T) {
	f := newFixture(t)
	f.svc.WithStrictMessageIDs(true)
	f.registerDest(t)
	payload := envelope(t, crosschain.OpUserRegistration, map[string]string{"address": "0xremote-user"})

	first, err := f.svc.ReceiveOperation(context.Background(), destChain, remoteAddr, payload)
	require.NoError(t, err)

	f.now = f.now.Add(time.Second)
	second, err := f.svc.ReceiveOperation(context.Background(), destChain, remoteAddr, payload)
	require.NoError(t, err)
	require.NotEqual(t, first.MessageID, second.MessageID)
}

func TestHandlerRoutingAndCompletion(t *testing.T) {
	f := newFixture(t)
	f.registerDest(t)

	var handled int
	f.svc.RegisterHandler(crosschain.OpUserRegistration, func(_ context.Context, _ crosschain.Operation, body json.RawMessage) error {
		handled++
		return nil
	})

	payload := envelope(t, crosschain.OpUserRegistration, map[string]string{"address": "0xremote-user"})
	op, err := f.svc.ReceiveOperation(context.Background(), destChain, remoteAddr, payload)
	require.NoError(t, err)
	require.Equal(t, 1, handled)
	require.Equal(t, crosschain.OpStatusCompleted, op.Status)
	require.False(t, op.CompletedAt.IsZero())
}

func TestHandlerFailureLeavesReceived(t *testing.T) {
	f := newFixture(t)
	f.registerDest(t)

	f.svc.RegisterHandler(crosschain.OpUserRegistration, func(context.Context, crosschain.Operation, json.RawMessage) error {
		return errors.New("materialization failed")
	})

	payload := envelope(t, crosschain.OpUserRegistration, map[string]string{"address": "0xremote-user"})
	op, err := f.svc.ReceiveOperation(context.Background(), destChain, remoteAddr, payload)
	require.Error(t, err)
	require.Equal(t, crosschain.OpStatusReceived, op.Status)

	stored, gerr := f.svc.GetOperation(context.Background(), op.MessageID)
	require.NoError(t, gerr)
	require.Equal(t, crosschain.OpStatusReceived, stored.Status)
}

func TestCompleteRequiresReceived(t *testing.T) {
	f := newFixture(t)
	f.registerDest(t)
	ctx := context.Background()

	op, err := f.svc.InitiateOperation(ctx, "0xclient", crosschain.OpProjectCompletion, destChain, json.RawMessage(`{}`), 100000, FeeInfo{}, nil)
	require.NoError(t, err)

	_, err = f.svc.CompleteOperation(ctx, admin, op.MessageID)
	require.True(t, core.IsConflict(err), "a sent operation cannot be completed")

	_, err = f.svc.CompleteOperation(ctx, "0xstranger", op.MessageID)
	require.True(t, core.IsForbidden(err))

	// Failing is unconditional.
	failed, err := f.svc.FailOperation(ctx, admin, op.MessageID)
	require.NoError(t, err)
	require.Equal(t, crosschain.OpStatusFailed, failed.Status)
}
