// Package app wires the marketplace ledgers into one lifecycle-managed
// application.
package app

import (
	"context"
	"net/http"
	"time"

	"github.com/lancechain/ledger/internal/app/chain"
	"github.com/lancechain/ledger/internal/app/events"
	"github.com/lancechain/ledger/internal/app/httpapi"
	"github.com/lancechain/ledger/internal/app/metrics"
	crosschainsvc "github.com/lancechain/ledger/internal/app/services/crosschain"
	escrowsvc "github.com/lancechain/ledger/internal/app/services/escrow"
	projectsvc "github.com/lancechain/ledger/internal/app/services/projects"
	"github.com/lancechain/ledger/internal/app/services/registry"
	statssvc "github.com/lancechain/ledger/internal/app/services/stats"
	verificationsvc "github.com/lancechain/ledger/internal/app/services/verification"
	"github.com/lancechain/ledger/internal/app/storage"
	"github.com/lancechain/ledger/internal/app/storage/memory"
	"github.com/lancechain/ledger/internal/app/system"
	"github.com/lancechain/ledger/pkg/logger"
)

// Proxy identities under which one ledger writes into another. They are not
// registrable user addresses.
const (
	EscrowRecorderProxy   = "system:escrow-recorder"
	DeliveryVerifierProxy = "system:delivery-verifier"
	BridgeProxy           = "system:bridge"
)

// Stores encapsulates persistence dependencies. Nil stores default to the
// in-memory implementation.
type Stores struct {
	Users         storage.UserStore
	Projects      storage.ProjectStore
	Escrow        storage.EscrowStore
	Verifications storage.VerificationStore
	Stats         storage.StatsStore
	CrossChain    storage.CrossChainStore
}

// Options carries the deployment-level knobs the services need.
type Options struct {
	Admin          string
	EscrowAddr     string
	FeeCollector   string
	PlatformFeeBps int64
	ChainID        uint64

	// Engine moves value; nil defaults to the in-memory bank.
	Engine chain.TransferEngine

	// Primary and Fallback dispatch cross-chain payloads. Both may be nil
	// for a single-chain deployment.
	Primary  crosschainsvc.Transport
	Fallback crosschainsvc.Transport

	// Emitter publishes state-transition events; nil drops them.
	Emitter events.Emitter

	StrictMessageIDs bool

	// StuckScanInterval and StuckThreshold tune the stuck-operation
	// reporter; zero values pick the reporter defaults.
	StuckScanInterval time.Duration
	StuckThreshold    time.Duration
}

// Application ties the ledgers together and manages their lifecycle.
type Application struct {
	manager *system.Manager
	log     *logger.Logger

	Registry      *registry.Service
	Projects      *projectsvc.Service
	Escrow        *escrowsvc.Service
	Verifications *verificationsvc.Service
	Stats         *statssvc.Service
	CrossChain    *crosschainsvc.Service
	ProjectBridge *crosschainsvc.ProjectBridge
	EscrowBridge  *crosschainsvc.EscrowBridge
}

// New builds a fully initialised application with the provided stores.
func New(stores Stores, opts Options, log *logger.Logger) (*Application, error) {
	if log == nil {
		log = logger.NewDefault("app")
	}

	mem := memory.New()
	if stores.Users == nil {
		stores.Users = mem
	}
	if stores.Projects == nil {
		stores.Projects = mem
	}
	if stores.Escrow == nil {
		stores.Escrow = mem
	}
	if stores.Verifications == nil {
		stores.Verifications = mem
	}
	if stores.Stats == nil {
		stores.Stats = mem
	}
	if stores.CrossChain == nil {
		stores.CrossChain = mem
	}

	engine := opts.Engine
	if engine == nil {
		engine = chain.NewBank()
	}
	if opts.EscrowAddr == "" {
		opts.EscrowAddr = "0xescrow"
	}
	if opts.ChainID == 0 {
		opts.ChainID = 1
	}

	registrySvc := registry.New(stores.Users, log).
		WithAdmin(opts.Admin).
		WithEmitter(opts.Emitter)

	statsSvc := statssvc.New(stores.Stats, log).
		WithAdmin(opts.Admin).
		WithRecorder(EscrowRecorderProxy).
		WithRecorder(DeliveryVerifierProxy).
		WithEmitter(opts.Emitter)

	projectSvc := projectsvc.New(stores.Users, stores.Projects, log).
		WithAdmin(opts.Admin).
		WithEmitter(opts.Emitter)

	escrowSvc := escrowsvc.New(stores.Projects, stores.Escrow, engine, opts.EscrowAddr, log).
		WithAdmin(opts.Admin).
		AttachRecorder(statsSvc, EscrowRecorderProxy).
		WithEmitter(opts.Emitter)

	verificationSvc := verificationsvc.New(stores.Projects, stores.Verifications, log).
		WithAdmin(opts.Admin).
		AttachDeliveryVerifier(statsSvc, DeliveryVerifierProxy).
		WithEmitter(opts.Emitter)

	relaySvc := crosschainsvc.New(stores.CrossChain, opts.Primary, opts.Fallback, opts.ChainID, log).
		WithAdmin(opts.Admin).
		WithStrictMessageIDs(opts.StrictMessageIDs).
		WithEmitter(opts.Emitter)

	projectBridge := crosschainsvc.NewProjectBridge(projectSvc, relaySvc, stores.CrossChain, stores.Projects, BridgeProxy, opts.ChainID, log)
	escrowBridge := crosschainsvc.NewEscrowBridge(escrowSvc, relaySvc, stores.CrossChain, stores.Escrow, BridgeProxy, opts.ChainID, log)

	if opts.PlatformFeeBps > 0 && opts.Admin != "" {
		ctx := context.Background()
		if err := escrowSvc.SetFeeCollector(ctx, opts.Admin, opts.FeeCollector); err != nil {
			return nil, err
		}
		if err := escrowSvc.SetPlatformFee(ctx, opts.Admin, opts.PlatformFeeBps); err != nil {
			return nil, err
		}
	}

	manager := system.NewManager()
	for _, name := range []string{"registry", "projects", "escrow", "verification", "stats", "crosschain"} {
		manager.Register(system.NoopService{ServiceName: name})
	}
	manager.Register(crosschainsvc.NewStuckReporter(stores.CrossChain, opts.StuckScanInterval, opts.StuckThreshold, log))

	return &Application{
		manager:       manager,
		log:           log,
		Registry:      registrySvc,
		Projects:      projectSvc,
		Escrow:        escrowSvc,
		Verifications: verificationSvc,
		Stats:         statsSvc,
		CrossChain:    relaySvc,
		ProjectBridge: projectBridge,
		EscrowBridge:  escrowBridge,
	}, nil
}

// Handler returns the read-only ops HTTP surface, including /metrics.
func (a *Application) Handler() http.Handler {
	return httpapi.NewHandler(a.Projects, a.Escrow, a.CrossChain, metrics.Handler())
}

// Attach registers an additional lifecycle-managed service. Call before
// Start.
func (a *Application) Attach(svc system.Service) {
	a.manager.Register(svc)
}

// Start begins all registered services.
func (a *Application) Start(ctx context.Context) error {
	return a.manager.Start(ctx)
}

// Stop stops all services.
func (a *Application) Stop(ctx context.Context) error {
	return a.manager.Stop(ctx)
}
