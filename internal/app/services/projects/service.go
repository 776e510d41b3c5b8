// Package projects implements the project and milestone state machine.
package projects

import (
	"context"
	"strconv"
	"strings"
	"time"

	core "github.com/lancechain/ledger/internal/app/core/service"
	"github.com/lancechain/ledger/internal/app/domain/project"
	"github.com/lancechain/ledger/internal/app/events"
	"github.com/lancechain/ledger/internal/app/metrics"
	"github.com/lancechain/ledger/internal/app/storage"
	"github.com/lancechain/ledger/pkg/logger"
)

// Service manages the project lifecycle. Every mutating call validates the
// caller against the stored client or freelancer; an unauthorized caller is
// a rejected operation, never a silent no-op.
type Service struct {
	users   storage.UserStore
	store   storage.ProjectStore
	log     *logger.Logger
	emitter events.Emitter
	now     func() time.Time
	admin   string
}

// New constructs a project service. The user store backs the registration
// and role checks applied at creation and assignment.
func New(users storage.UserStore, store storage.ProjectStore, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("projects")
	}
	return &Service{
		users:   users,
		store:   store,
		log:     log,
		emitter: events.NopEmitter{},
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// WithAdmin sets the administrator address permitted to cancel any project.
func (s *Service) WithAdmin(address string) *Service {
	s.admin = address
	return s
}

// WithEmitter overrides the event emitter.
func (s *Service) WithEmitter(e events.Emitter) *Service {
	if e != nil {
		s.emitter = e
	}
	return s
}

// WithClock overrides the time source, primarily for tests.
func (s *Service) WithClock(now func() time.Time) *Service {
	if now != nil {
		s.now = now
	}
	return s
}

// CreateProject creates a draft project owned by the caller. The caller must
// be registered with the client role; the deadline must lie strictly in the
// future.
func (s *Service) CreateProject(ctx context.Context, caller, title, description, requirements string, budget int64, deadline time.Time) (project.Project, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return project.Project{}, core.RequiredError("title")
	}
	if budget <= 0 {
		return project.Project{}, core.NewValidationError("budget", "must be positive")
	}
	now := s.now()
	if !deadline.After(now) {
		return project.Project{}, core.NewValidationError("deadline", "must be in the future")
	}

	profile, err := s.users.GetProfile(ctx, caller)
	if err != nil {
		return project.Project{}, err
	}
	if !profile.IsClient {
		return project.Project{}, &core.AccessDeniedError{Resource: "project", Caller: caller,
			Reason: "caller is not registered as a client"}
	}

	created, err := s.store.CreateProject(ctx, project.Project{
		Client:       caller,
		Title:        title,
		Description:  description,
		Requirements: requirements,
		Budget:       budget,
		Deadline:     deadline.UTC(),
		Status:       project.StatusDraft,
		CreatedAt:    now,
		UpdatedAt:    now,
	})
	if err != nil {
		return project.Project{}, err
	}

	metrics.ObserveTransition("project", string(project.StatusDraft))
	s.emit(ctx, events.Event{Type: "project.created", Entity: "project", EntityID: formatID(created.ID),
		Actor: caller, Amount: budget, At: now})
	s.log.WithField("project_id", created.ID).WithField("client", caller).Info("project created")
	return created, nil
}

// PublishProject moves a draft project to Published. Client only.
func (s *Service) PublishProject(ctx context.Context, caller string, id int64) (project.Project, error) {
	return s.advance(ctx, caller, id, project.StatusPublished, "project.published")
}

// AssignFreelancer assigns a registered freelancer to a published project
// and moves it to InProgress. Client only.
func (s *Service) AssignFreelancer(ctx context.Context, caller string, id int64, freelancer string) (project.Project, error) {
	proj, err := s.getExisting(ctx, id)
	if err != nil {
		return project.Project{}, err
	}
	if proj.Client != caller {
		return project.Project{}, core.NewAccessDeniedError("project", formatID(id), caller)
	}
	if !proj.Status.CanAdvanceTo(project.StatusInProgress) {
		return project.Project{}, core.NewStateError("project", formatID(id), string(proj.Status),
			"freelancer can only be assigned to a published project")
	}

	profile, err := s.users.GetProfile(ctx, freelancer)
	if err != nil {
		return project.Project{}, err
	}
	if !profile.IsFreelancer {
		return project.Project{}, &core.AccessDeniedError{Resource: "project", ID: formatID(id), Caller: freelancer,
			Reason: "assignee is not registered as a freelancer"}
	}

	proj.Freelancer = freelancer
	proj.Status = project.StatusInProgress
	proj.UpdatedAt = s.now()
	updated, err := s.store.UpdateProject(ctx, proj)
	if err != nil {
		return project.Project{}, err
	}

	metrics.ObserveTransition("project", string(project.StatusInProgress))
	s.emit(ctx, events.Event{Type: "project.assigned", Entity: "project", EntityID: formatID(id),
		Actor: caller, Counterparty: freelancer, At: proj.UpdatedAt})
	s.log.WithField("project_id", id).WithField("freelancer", freelancer).Info("freelancer assigned")
	return updated, nil
}

// AddMilestone appends a milestone to an in-progress project. Client only.
// Milestone amounts are not reconciled against the project budget.
func (s *Service) AddMilestone(ctx context.Context, caller string, projectID int64, description string, amount int64) (project.Milestone, error) {
	description = strings.TrimSpace(description)
	if description == "" {
		return project.Milestone{}, core.RequiredError("description")
	}
	if amount <= 0 {
		return project.Milestone{}, core.NewValidationError("amount", "must be positive")
	}

	proj, err := s.getExisting(ctx, projectID)
	if err != nil {
		return project.Milestone{}, err
	}
	if proj.Client != caller {
		return project.Milestone{}, core.NewAccessDeniedError("project", formatID(projectID), caller)
	}
	if proj.Status != project.StatusInProgress {
		return project.Milestone{}, core.NewStateError("project", formatID(projectID), string(proj.Status),
			"milestones can only be added while in progress")
	}

	created, err := s.store.CreateMilestone(ctx, project.Milestone{
		ProjectID:   projectID,
		Description: description,
		Amount:      amount,
	})
	if err != nil {
		return project.Milestone{}, err
	}

	s.emit(ctx, events.Event{Type: "milestone.created", Entity: "milestone",
		EntityID: formatID(projectID) + "/" + strconv.Itoa(created.Index), Actor: caller, Amount: amount, At: s.now()})
	return created, nil
}

// CompleteMilestone marks a milestone as completed. Freelancer only; a
// milestone completes at most once.
func (s *Service) CompleteMilestone(ctx context.Context, caller string, projectID int64, index int, deliverable string) (project.Milestone, error) {
	proj, err := s.getExisting(ctx, projectID)
	if err != nil {
		return project.Milestone{}, err
	}
	if proj.Freelancer == "" || proj.Freelancer != caller {
		return project.Milestone{}, core.NewAccessDeniedError("milestone", formatID(projectID), caller)
	}
	if proj.Status != project.StatusInProgress {
		return project.Milestone{}, core.NewStateError("project", formatID(projectID), string(proj.Status),
			"milestones can only be completed while in progress")
	}

	ms, err := s.store.GetMilestone(ctx, projectID, index)
	if err != nil {
		return project.Milestone{}, err
	}
	if ms.Completed {
		return project.Milestone{}, core.NewStateError("milestone",
			formatID(projectID)+"/"+strconv.Itoa(index), "completed", "already completed")
	}

	ms.Completed = true
	ms.CompletedAt = s.now()
	ms.Deliverable = deliverable
	updated, err := s.store.UpdateMilestone(ctx, ms)
	if err != nil {
		return project.Milestone{}, err
	}

	s.emit(ctx, events.Event{Type: "milestone.completed", Entity: "milestone",
		EntityID: formatID(projectID) + "/" + strconv.Itoa(index), Actor: caller, At: ms.CompletedAt})
	return updated, nil
}

// CompleteProject moves an in-progress project to Completed. Client only;
// requires an assigned freelancer.
func (s *Service) CompleteProject(ctx context.Context, caller string, id int64) (project.Project, error) {
	proj, err := s.getExisting(ctx, id)
	if err != nil {
		return project.Project{}, err
	}
	if proj.Client != caller {
		return project.Project{}, core.NewAccessDeniedError("project", formatID(id), caller)
	}
	if proj.Freelancer == "" {
		return project.Project{}, core.NewStateError("project", formatID(id), string(proj.Status),
			"cannot complete without an assigned freelancer")
	}
	if !proj.Status.CanAdvanceTo(project.StatusCompleted) {
		return project.Project{}, core.NewStateError("project", formatID(id), string(proj.Status),
			"only an in-progress project can be completed")
	}

	proj.Status = project.StatusCompleted
	proj.UpdatedAt = s.now()
	updated, err := s.store.UpdateProject(ctx, proj)
	if err != nil {
		return project.Project{}, err
	}

	metrics.ObserveTransition("project", string(project.StatusCompleted))
	s.emit(ctx, events.Event{Type: "project.completed", Entity: "project", EntityID: formatID(id),
		Actor: caller, Counterparty: proj.Freelancer, At: proj.UpdatedAt})
	s.log.WithField("project_id", id).Info("project completed")
	return updated, nil
}

// CancelProject cancels a non-terminal project. Client or administrator.
func (s *Service) CancelProject(ctx context.Context, caller string, id int64) (project.Project, error) {
	proj, err := s.getExisting(ctx, id)
	if err != nil {
		return project.Project{}, err
	}
	if proj.Client != caller && (caller != s.admin || s.admin == "") {
		return project.Project{}, core.NewAccessDeniedError("project", formatID(id), caller)
	}
	if proj.Status.Terminal() || proj.Status == project.StatusDisputed {
		return project.Project{}, core.NewStateError("project", formatID(id), string(proj.Status),
			"cannot cancel")
	}

	proj.Status = project.StatusCancelled
	proj.UpdatedAt = s.now()
	updated, err := s.store.UpdateProject(ctx, proj)
	if err != nil {
		return project.Project{}, err
	}

	metrics.ObserveTransition("project", string(project.StatusCancelled))
	s.emit(ctx, events.Event{Type: "project.cancelled", Entity: "project", EntityID: formatID(id),
		Actor: caller, At: proj.UpdatedAt})
	return updated, nil
}

// DisputeProject flags an in-progress project as disputed. Client or
// assigned freelancer.
func (s *Service) DisputeProject(ctx context.Context, caller string, id int64) (project.Project, error) {
	proj, err := s.getExisting(ctx, id)
	if err != nil {
		return project.Project{}, err
	}
	if caller != proj.Client && (proj.Freelancer == "" || caller != proj.Freelancer) {
		return project.Project{}, core.NewAccessDeniedError("project", formatID(id), caller)
	}
	if proj.Status != project.StatusInProgress {
		return project.Project{}, core.NewStateError("project", formatID(id), string(proj.Status),
			"only an in-progress project can be disputed")
	}

	proj.Status = project.StatusDisputed
	proj.UpdatedAt = s.now()
	updated, err := s.store.UpdateProject(ctx, proj)
	if err != nil {
		return project.Project{}, err
	}

	metrics.ObserveTransition("project", string(project.StatusDisputed))
	s.emit(ctx, events.Event{Type: "project.disputed", Entity: "project", EntityID: formatID(id),
		Actor: caller, At: proj.UpdatedAt})
	return updated, nil
}

// MarkEscrowFunded flags a project as escrow-backed. Invoked by the escrow
// ledger when its payment reaches Funded.
func (s *Service) MarkEscrowFunded(ctx context.Context, id int64) error {
	proj, err := s.getExisting(ctx, id)
	if err != nil {
		return err
	}
	proj.EscrowFunded = true
	proj.UpdatedAt = s.now()
	_, err = s.store.UpdateProject(ctx, proj)
	return err
}

// GetProject returns a project. Ids at or below zero are NotFound.
func (s *Service) GetProject(ctx context.Context, id int64) (project.Project, error) {
	return s.getExisting(ctx, id)
}

// GetMilestone returns one milestone of a project.
func (s *Service) GetMilestone(ctx context.Context, projectID int64, index int) (project.Milestone, error) {
	if projectID <= 0 {
		return project.Milestone{}, core.NewNotFoundError("project", formatID(projectID))
	}
	return s.store.GetMilestone(ctx, projectID, index)
}

// ListMilestones returns a project's milestones in index order.
func (s *Service) ListMilestones(ctx context.Context, projectID int64) ([]project.Milestone, error) {
	return s.store.ListMilestones(ctx, projectID)
}

// ListByClient returns projects owned by a client.
func (s *Service) ListByClient(ctx context.Context, client string) ([]project.Project, error) {
	return s.store.ListProjectsByClient(ctx, client)
}

// ListByFreelancer returns projects assigned to a freelancer.
func (s *Service) ListByFreelancer(ctx context.Context, freelancer string) ([]project.Project, error) {
	return s.store.ListProjectsByFreelancer(ctx, freelancer)
}

// advance performs a client-gated single-step forward transition.
func (s *Service) advance(ctx context.Context, caller string, id int64, next project.Status, event string) (project.Project, error) {
	proj, err := s.getExisting(ctx, id)
	if err != nil {
		return project.Project{}, err
	}
	if proj.Client != caller {
		return project.Project{}, core.NewAccessDeniedError("project", formatID(id), caller)
	}
	if !proj.Status.CanAdvanceTo(next) {
		return project.Project{}, core.NewStateError("project", formatID(id), string(proj.Status),
			"cannot transition to "+string(next))
	}

	proj.Status = next
	proj.UpdatedAt = s.now()
	updated, err := s.store.UpdateProject(ctx, proj)
	if err != nil {
		return project.Project{}, err
	}

	metrics.ObserveTransition("project", string(next))
	s.emit(ctx, events.Event{Type: event, Entity: "project", EntityID: formatID(id), Actor: caller, At: proj.UpdatedAt})
	return updated, nil
}

func (s *Service) getExisting(ctx context.Context, id int64) (project.Project, error) {
	if id <= 0 {
		return project.Project{}, core.NewNotFoundError("project", formatID(id))
	}
	return s.store.GetProject(ctx, id)
}

func (s *Service) emit(ctx context.Context, ev events.Event) {
	if err := s.emitter.Emit(ctx, ev); err != nil {
		s.log.WithError(err).WithField("event", ev.Type).Warn("event emission failed")
	}
}

func formatID(id int64) string {
	return strconv.FormatInt(id, 10)
}
