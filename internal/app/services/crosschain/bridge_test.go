package crosschain

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/lancechain/ledger/internal/app/chain"
	core "github.com/lancechain/ledger/internal/app/core/service"
	"github.com/lancechain/ledger/internal/app/domain/crosschain"
	escrowdom "github.com/lancechain/ledger/internal/app/domain/escrow"
	"github.com/lancechain/ledger/internal/app/domain/project"
	"github.com/lancechain/ledger/internal/app/domain/user"
	escrowsvc "github.com/lancechain/ledger/internal/app/services/escrow"
	projectsvc "github.com/lancechain/ledger/internal/app/services/projects"
)

const (
	client     = "0xclient"
	freelancer = "0xfreelancer"
	proxy      = "0xbridge-proxy"
	escrowAddr = "0xescrow"
)

type bridgeFixture struct {
	relay    *fixture
	projects *ProjectBridge
	escrow   *EscrowBridge
	projSvc  *projectsvc.Service
	escSvc   *escrowsvc.Service
	bank     *chain.Bank
}

func newBridgeFixture(t *testing.T) *bridgeFixture {
	t.Helper()
	relay := newFixture(t)
	relay.registerDest(t)
	store := relay.store
	ctx := context.Background()

	_, err := store.CreateProfile(ctx, user.Profile{Address: client, Username: "client", Email: "c@x.io", IsClient: true})
	require.NoError(t, err)
	_, err = store.CreateProfile(ctx, user.Profile{Address: freelancer, Username: "freelancer", Email: "f@x.io", IsFreelancer: true})
	require.NoError(t, err)

	bank := chain.NewBank()
	bank.Deposit(escrowdom.NativeToken, client, 10000)

	projSvc := projectsvc.New(store, store, nil)
	escSvc := escrowsvc.New(store, store, bank, escrowAddr, nil)

	return &bridgeFixture{
		relay:    relay,
		projects: NewProjectBridge(projSvc, relay.svc, store, store, proxy, localChain, nil),
		escrow:   NewEscrowBridge(escSvc, relay.svc, store, store, proxy, localChain, nil),
		projSvc:  projSvc,
		escSvc:   escSvc,
		bank:     bank,
	}
}

func deadline() time.Time { return time.Now().Add(30 * 24 * time.Hour) }

func TestProjectBridgeCreateLinksAndDispatches(t *testing.T) {
	f := newBridgeFixture(t)
	ctx := context.Background()

	proj, link, err := f.projects.CreateProject(ctx, client, "site", "build a site", "QmReq", 1000, deadline(), destChain, 100000, FeeInfo{}, nil)
	require.NoError(t, err)
	require.Equal(t, client, proj.Client)
	require.Equal(t, proj.ID, link.ProjectID)
	require.NotEmpty(t, link.CorrelationID)
	require.False(t, link.Remote)

	ops, err := f.relay.svc.ListOperations(ctx, crosschain.OpStatusSent)
	require.NoError(t, err)
	require.Len(t, ops, 1)
	require.Equal(t, crosschain.OpProjectCreation, ops[0].Type)

	var env Envelope
	require.NoError(t, json.Unmarshal(ops[0].Payload, &env))
	var payload crosschain.ProjectPayload
	require.NoError(t, json.Unmarshal(env.Body, &payload))
	require.Equal(t, link.CorrelationID, payload.CorrelationID)
	require.Equal(t, int64(1000), payload.Budget)
}

func TestProjectBridgeDispatchFailureKeepsLocalState(t *testing.T) {
	f := newBridgeFixture(t)
	f.relay.primary.err = errors.New("relayer unreachable")
	f.relay.fallback.err = errors.New("broker down")
	ctx := context.Background()

	proj, link, err := f.projects.CreateProject(ctx, client, "site", "", "", 1000, deadline(), destChain, 100000, FeeInfo{}, nil)
	require.Error(t, err)
	require.NotZero(t, proj.ID, "local project must survive the dispatch failure")

	stored, err := f.projects.GetLink(ctx, proj.ID)
	require.NoError(t, err)
	require.Equal(t, link.CorrelationID, stored.CorrelationID)
}

func TestProjectBridgeMaterializesShadow(t *testing.T) {
	f := newBridgeFixture(t)
	ctx := context.Background()

	payload := envelope(t, crosschain.OpProjectCreation, crosschain.ProjectPayload{
		CorrelationID: "corr-remote-1",
		SourceChain:   destChain,
		Creator:       "0xremote-client",
		Title:         "remote site",
		Budget:        2000,
		Deadline:      time.Now().Add(20 * 24 * time.Hour).Unix(),
	})

	op, err := f.relay.svc.ReceiveOperation(ctx, destChain, remoteAddr, payload)
	require.NoError(t, err)
	require.Equal(t, crosschain.OpStatusCompleted, op.Status)

	link, err := f.relay.store.GetProjectLinkByCorrelation(ctx, "corr-remote-1")
	require.NoError(t, err)
	require.True(t, link.Remote)
	require.Equal(t, "0xremote-client", link.Creator)

	shadow, err := f.relay.store.GetProject(ctx, link.ProjectID)
	require.NoError(t, err)
	require.Equal(t, proxy, shadow.Client, "shadow must be owned by the proxy identity")
	require.Equal(t, project.StatusPublished, shadow.Status)
	require.Equal(t, int64(2000), shadow.Budget)
}

func TestProjectBridgeRejectsDuplicateCorrelation(t *testing.T) {
	f := newBridgeFixture(t)
	ctx := context.Background()

	payload := envelope(t, crosschain.OpProjectCreation, crosschain.ProjectPayload{
		CorrelationID: "corr-remote-1",
		SourceChain:   destChain,
		Creator:       "0xremote-client",
		Title:         "remote site",
		Budget:        2000,
		Deadline:      time.Now().Add(20 * 24 * time.Hour).Unix(),
	})
	_, err := f.relay.svc.ReceiveOperation(ctx, destChain, remoteAddr, payload)
	require.NoError(t, err)

	// A replay in strict-id mode derives a fresh message id, so the
	// operation layer does not dedupe it; the correlation check must.
	f.relay.svc.WithStrictMessageIDs(true)
	f.relay.now = f.relay.now.Add(time.Second)
	op, err := f.relay.svc.ReceiveOperation(ctx, destChain, remoteAddr, payload)
	require.True(t, core.IsConflict(err))
	require.Equal(t, crosschain.OpStatusReceived, op.Status)

	projects, err := f.relay.store.ListProjectsByClient(ctx, proxy)
	require.NoError(t, err)
	require.Len(t, projects, 1, "replay must not materialize a second shadow")
}

func TestEscrowBridgeMirrorsPaymentLifecycle(t *testing.T) {
	f := newBridgeFixture(t)
	ctx := context.Background()

	proj, projLink, err := f.projects.CreateProject(ctx, client, "site", "", "", 1000, deadline(), destChain, 100000, FeeInfo{}, nil)
	require.NoError(t, err)
	_, err = f.projSvc.PublishProject(ctx, client, proj.ID)
	require.NoError(t, err)
	_, err = f.projSvc.AssignFreelancer(ctx, client, proj.ID, freelancer)
	require.NoError(t, err)

	pay, payLink, err := f.escrow.CreatePayment(ctx, client, proj.ID, "", 1000, 1000, destChain, 100000, FeeInfo{}, nil)
	require.NoError(t, err)
	require.Equal(t, escrowdom.StatusFunded, pay.Status)
	require.NotEmpty(t, payLink.CorrelationID)

	ops, err := f.relay.svc.ListOperations(ctx, crosschain.OpStatusSent)
	require.NoError(t, err)
	require.Len(t, ops, 2)

	var env Envelope
	require.NoError(t, json.Unmarshal(ops[1].Payload, &env))
	var payload crosschain.PaymentPayload
	require.NoError(t, json.Unmarshal(env.Body, &payload))
	require.Equal(t, projLink.CorrelationID, payload.ProjectCorrelationID)
	require.False(t, payload.Release)

	_, err = f.projSvc.CompleteProject(ctx, client, proj.ID)
	require.NoError(t, err)

	released, err := f.escrow.ReleasePayment(ctx, client, pay.ID, "QmWork", 5, destChain, 100000, FeeInfo{}, nil)
	require.NoError(t, err)
	require.Equal(t, escrowdom.StatusReleased, released.Status)

	link, err := f.escrow.GetLink(ctx, pay.ID)
	require.NoError(t, err)
	require.True(t, link.Released)
}

func TestEscrowBridgeMaterializesShadowPayment(t *testing.T) {
	f := newBridgeFixture(t)
	ctx := context.Background()

	projPayload := envelope(t, crosschain.OpProjectCreation, crosschain.ProjectPayload{
		CorrelationID: "corr-proj-1",
		SourceChain:   destChain,
		Creator:       "0xremote-client",
		Title:         "remote site",
		Budget:        1000,
		Deadline:      time.Now().Add(20 * 24 * time.Hour).Unix(),
	})
	_, err := f.relay.svc.ReceiveOperation(ctx, destChain, remoteAddr, projPayload)
	require.NoError(t, err)

	payPayload := envelope(t, crosschain.OpPaymentInitiation, crosschain.PaymentPayload{
		CorrelationID:        "corr-pay-1",
		SourceChain:          destChain,
		ProjectCorrelationID: "corr-proj-1",
		Client:               "0xremote-client",
		Freelancer:           freelancer,
		Token:                escrowdom.NativeToken,
		Amount:               1000,
	})
	op, err := f.relay.svc.ReceiveOperation(ctx, destChain, remoteAddr, payPayload)
	require.NoError(t, err)
	require.Equal(t, crosschain.OpStatusCompleted, op.Status)

	link, err := f.relay.store.GetPaymentLinkByCorrelation(ctx, "corr-pay-1")
	require.NoError(t, err)
	require.True(t, link.Remote)

	shadow, err := f.relay.store.GetPayment(ctx, link.PaymentID)
	require.NoError(t, err)
	require.Equal(t, proxy, shadow.Client)
	require.Equal(t, escrowdom.StatusFunded, shadow.Status)

	releasePayload := envelope(t, crosschain.OpPaymentRelease, crosschain.PaymentPayload{
		CorrelationID: "corr-pay-1",
		SourceChain:   destChain,
		Release:       true,
	})
	_, err = f.relay.svc.ReceiveOperation(ctx, destChain, remoteAddr, releasePayload)
	require.NoError(t, err)

	shadow, err = f.relay.store.GetPayment(ctx, link.PaymentID)
	require.NoError(t, err)
	require.Equal(t, escrowdom.StatusReleased, shadow.Status)
}
