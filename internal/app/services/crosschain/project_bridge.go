package crosschain

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"encoding/json"
	"time"

	core "github.com/lancechain/ledger/internal/app/core/service"
	"github.com/lancechain/ledger/internal/app/domain/crosschain"
	"github.com/lancechain/ledger/internal/app/domain/project"
	projectsvc "github.com/lancechain/ledger/internal/app/services/projects"
	"github.com/lancechain/ledger/internal/app/storage"
	"github.com/lancechain/ledger/pkg/logger"
)

// ProjectBridge mirrors project creation across chains. Outbound, it runs
// the ordinary local creation first, then dispatches a mirrored copy and
// records the local/correlation link. Inbound, it materializes a shadow
// project owned by the configured proxy identity, since the remote creator
// cannot transact locally.
type ProjectBridge struct {
	projects *projectsvc.Service
	relay    *Service
	links    storage.CrossChainStore
	store    storage.ProjectStore
	log      *logger.Logger
	now      func() time.Time

	proxyAddr  string
	localChain uint64
}

// NewProjectBridge wires the bridge and registers its inbound handler on the
// relay service.
func NewProjectBridge(projects *projectsvc.Service, relay *Service, links storage.CrossChainStore, store storage.ProjectStore, proxyAddr string, localChain uint64, log *logger.Logger) *ProjectBridge {
	if log == nil {
		log = logger.NewDefault("crosschain.projects")
	}
	b := &ProjectBridge{
		projects:   projects,
		relay:      relay,
		links:      links,
		store:      store,
		log:        log,
		now:        func() time.Time { return time.Now().UTC() },
		proxyAddr:  proxyAddr,
		localChain: localChain,
	}
	relay.RegisterHandler(crosschain.OpProjectCreation, b.handleProjectCreation)
	return b
}

// WithClock overrides the time source, primarily for tests.
func (b *ProjectBridge) WithClock(now func() time.Time) *ProjectBridge {
	if now != nil {
		b.now = now
	}
	return b
}

// CreateProject creates the project locally with the full local validation,
// links it to a fresh correlation id and dispatches the mirrored creation to
// destChain. Local creation commits before dispatch: a dispatch failure
// surfaces as an error but leaves the local project and its link in place
// for an operator to re-dispatch.
func (b *ProjectBridge) CreateProject(ctx context.Context, caller, title, description, requirements string, budget int64, deadline time.Time, destChain, gasLimit uint64, fee FeeInfo, allowedRelayers []string) (project.Project, crosschain.ProjectLink, error) {
	proj, err := b.projects.CreateProject(ctx, caller, title, description, requirements, budget, deadline)
	if err != nil {
		return project.Project{}, crosschain.ProjectLink{}, err
	}

	corrID := deriveCorrelationID(b.localChain, proj.ID, caller, b.now())
	link, err := b.links.CreateProjectLink(ctx, crosschain.ProjectLink{
		ProjectID:     proj.ID,
		CorrelationID: corrID,
		SourceChain:   b.localChain,
		Creator:       caller,
		CreatedAt:     b.now(),
	})
	if err != nil {
		return project.Project{}, crosschain.ProjectLink{}, err
	}

	body, err := json.Marshal(crosschain.ProjectPayload{
		CorrelationID: corrID,
		SourceChain:   b.localChain,
		Creator:       caller,
		Title:         title,
		Description:   description,
		Requirements:  requirements,
		Budget:        budget,
		Deadline:      deadline.Unix(),
	})
	if err != nil {
		return project.Project{}, crosschain.ProjectLink{}, err
	}

	if _, err := b.relay.InitiateOperation(ctx, caller, crosschain.OpProjectCreation, destChain, body, gasLimit, fee, allowedRelayers); err != nil {
		b.log.WithError(err).WithField("project_id", proj.ID).Warn("mirror dispatch failed, local project retained")
		return proj, link, err
	}
	return proj, link, nil
}

// GetLink returns the correlation link for a local project.
func (b *ProjectBridge) GetLink(ctx context.Context, projectID int64) (crosschain.ProjectLink, error) {
	return b.links.GetProjectLink(ctx, projectID)
}

// handleProjectCreation materializes a remote-origin project. Duplicate
// correlation ids are rejected so a replayed message cannot create a second
// shadow.
func (b *ProjectBridge) handleProjectCreation(ctx context.Context, op crosschain.Operation, body json.RawMessage) error {
	var p crosschain.ProjectPayload
	if err := json.Unmarshal(body, &p); err != nil {
		return core.NewValidationError("payload", "not a valid project payload")
	}
	if p.CorrelationID == "" {
		return core.RequiredError("correlation_id")
	}
	if _, err := b.links.GetProjectLinkByCorrelation(ctx, p.CorrelationID); err == nil {
		return core.NewConflictError("project link", p.CorrelationID, "correlation id already materialized")
	} else if !core.IsNotFound(err) {
		return err
	}

	now := b.now()
	proj, err := b.store.CreateProject(ctx, project.Project{
		Client:       b.proxyAddr,
		Title:        p.Title,
		Description:  p.Description,
		Requirements: p.Requirements,
		Budget:       p.Budget,
		Deadline:     time.Unix(p.Deadline, 0).UTC(),
		Status:       project.StatusPublished,
		CreatedAt:    now,
		UpdatedAt:    now,
	})
	if err != nil {
		return err
	}

	if _, err := b.links.CreateProjectLink(ctx, crosschain.ProjectLink{
		ProjectID:     proj.ID,
		CorrelationID: p.CorrelationID,
		SourceChain:   op.SourceChain,
		Creator:       p.Creator,
		Remote:        true,
		CreatedAt:     now,
	}); err != nil {
		return err
	}

	b.log.WithField("project_id", proj.ID).
		WithField("correlation_id", p.CorrelationID).
		WithField("source_chain", op.SourceChain).
		Info("shadow project materialized")
	return nil
}

// deriveCorrelationID hashes (chain id, local id, creator, timestamp) into a
// globally unique hex id.
func deriveCorrelationID(chainID uint64, localID int64, creator string, now time.Time) string {
	h := sha256.New()
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], chainID)
	h.Write(buf[:])
	binary.BigEndian.PutUint64(buf[:], uint64(localID))
	h.Write(buf[:])
	h.Write([]byte(creator))
	binary.BigEndian.PutUint64(buf[:], uint64(now.UnixNano()))
	h.Write(buf[:])
	return hex.EncodeToString(h.Sum(nil))
}
