package projects

import (
	"context"
	"testing"
	"time"

	core "github.com/lancechain/ledger/internal/app/core/service"
	"github.com/lancechain/ledger/internal/app/domain/project"
	"github.com/lancechain/ledger/internal/app/domain/user"
	"github.com/lancechain/ledger/internal/app/storage/memory"
)

const (
	client     = "0xclient"
	freelancer = "0xfreelancer"
)

func newFixture(t *testing.T) (*Service, *memory.Store) {
	t.Helper()
	store := memory.New()
	ctx := context.Background()
	if _, err := store.CreateProfile(ctx, user.Profile{Address: client, Username: "client", Email: "c@x.io", IsClient: true}); err != nil {
		t.Fatalf("seed client: %v", err)
	}
	if _, err := store.CreateProfile(ctx, user.Profile{Address: freelancer, Username: "freelancer", Email: "f@x.io", IsFreelancer: true}); err != nil {
		t.Fatalf("seed freelancer: %v", err)
	}
	return New(store, store, nil), store
}

func deadline() time.Time { return time.Now().Add(30 * 24 * time.Hour) }

func TestCreateProjectValidation(t *testing.T) {
	svc, _ := newFixture(t)
	ctx := context.Background()

	if _, err := svc.CreateProject(ctx, client, "", "", "", 100, deadline()); !core.IsValidationError(err) {
		t.Fatalf("expected validation error for empty title, got %v", err)
	}
	if _, err := svc.CreateProject(ctx, client, "site", "", "", 0, deadline()); !core.IsValidationError(err) {
		t.Fatalf("expected validation error for zero budget, got %v", err)
	}
	if _, err := svc.CreateProject(ctx, client, "site", "", "", 100, time.Now().Add(-time.Hour)); !core.IsValidationError(err) {
		t.Fatalf("expected validation error for past deadline, got %v", err)
	}
	if _, err := svc.CreateProject(ctx, "0xunknown", "site", "", "", 100, deadline()); !core.IsNotFound(err) {
		t.Fatalf("expected not-found for unregistered caller, got %v", err)
	}
	if _, err := svc.CreateProject(ctx, freelancer, "site", "", "", 100, deadline()); !core.IsForbidden(err) {
		t.Fatalf("expected forbidden for non-client caller, got %v", err)
	}
}

func TestLifecycleHappyPath(t *testing.T) {
	svc, _ := newFixture(t)
	ctx := context.Background()

	proj, err := svc.CreateProject(ctx, client, "site", "build a site", "QmReq", 1000, deadline())
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if proj.ID != 1 || proj.Status != project.StatusDraft {
		t.Fatalf("unexpected project: %+v", proj)
	}

	if proj, err = svc.PublishProject(ctx, client, proj.ID); err != nil {
		t.Fatalf("publish: %v", err)
	}
	if proj.Status != project.StatusPublished {
		t.Fatalf("expected published, got %s", proj.Status)
	}

	if proj, err = svc.AssignFreelancer(ctx, client, proj.ID, freelancer); err != nil {
		t.Fatalf("assign: %v", err)
	}
	if proj.Status != project.StatusInProgress || proj.Freelancer != freelancer {
		t.Fatalf("unexpected project after assign: %+v", proj)
	}

	ms, err := svc.AddMilestone(ctx, client, proj.ID, "phase one", 400)
	if err != nil {
		t.Fatalf("add milestone: %v", err)
	}
	if ms.Index != 0 {
		t.Fatalf("expected index 0, got %d", ms.Index)
	}

	if _, err = svc.CompleteMilestone(ctx, freelancer, proj.ID, 0, "QmDeliverable"); err != nil {
		t.Fatalf("complete milestone: %v", err)
	}
	if _, err = svc.CompleteMilestone(ctx, freelancer, proj.ID, 0, "QmAgain"); !core.IsConflict(err) {
		t.Fatalf("expected conflict for double completion, got %v", err)
	}

	if proj, err = svc.CompleteProject(ctx, client, proj.ID); err != nil {
		t.Fatalf("complete project: %v", err)
	}
	if proj.Status != project.StatusCompleted {
		t.Fatalf("expected completed, got %s", proj.Status)
	}
}

func TestAssignFreelancerOnDraftFails(t *testing.T) {
	svc, _ := newFixture(t)
	ctx := context.Background()

	proj, err := svc.CreateProject(ctx, client, "site", "", "", 1000, deadline())
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	if _, err := svc.AssignFreelancer(ctx, client, proj.ID, freelancer); !core.IsConflict(err) {
		t.Fatalf("expected state conflict, got %v", err)
	}

	got, err := svc.GetProject(ctx, proj.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Status != project.StatusDraft {
		t.Fatalf("status must be unchanged, got %s", got.Status)
	}
}

func TestStatusNeverMovesBackward(t *testing.T) {
	svc, _ := newFixture(t)
	ctx := context.Background()

	proj, _ := svc.CreateProject(ctx, client, "site", "", "", 1000, deadline())
	if _, err := svc.PublishProject(ctx, client, proj.ID); err != nil {
		t.Fatalf("publish: %v", err)
	}
	if _, err := svc.PublishProject(ctx, client, proj.ID); !core.IsConflict(err) {
		t.Fatalf("expected conflict on re-publish, got %v", err)
	}
	if _, err := svc.AssignFreelancer(ctx, client, proj.ID, freelancer); err != nil {
		t.Fatalf("assign: %v", err)
	}
	if _, err := svc.CompleteProject(ctx, client, proj.ID); err != nil {
		t.Fatalf("complete: %v", err)
	}
	if _, err := svc.AssignFreelancer(ctx, client, proj.ID, freelancer); !core.IsConflict(err) {
		t.Fatalf("expected conflict assigning on completed project, got %v", err)
	}
}

func TestMutationsAreCallerChecked(t *testing.T) {
	svc, _ := newFixture(t)
	ctx := context.Background()

	proj, _ := svc.CreateProject(ctx, client, "site", "", "", 1000, deadline())

	if _, err := svc.PublishProject(ctx, freelancer, proj.ID); !core.IsForbidden(err) {
		t.Fatalf("expected forbidden publish, got %v", err)
	}
	if _, err := svc.PublishProject(ctx, client, proj.ID); err != nil {
		t.Fatalf("publish: %v", err)
	}
	if _, err := svc.AssignFreelancer(ctx, freelancer, proj.ID, freelancer); !core.IsForbidden(err) {
		t.Fatalf("expected forbidden assign, got %v", err)
	}
	if _, err := svc.AssignFreelancer(ctx, client, proj.ID, freelancer); err != nil {
		t.Fatalf("assign: %v", err)
	}
	if _, err := svc.AddMilestone(ctx, freelancer, proj.ID, "phase", 10); !core.IsForbidden(err) {
		t.Fatalf("expected forbidden milestone add, got %v", err)
	}
	if _, err := svc.AddMilestone(ctx, client, proj.ID, "phase", 10); err != nil {
		t.Fatalf("add milestone: %v", err)
	}
	if _, err := svc.CompleteMilestone(ctx, client, proj.ID, 0, ""); !core.IsForbidden(err) {
		t.Fatalf("expected forbidden milestone completion, got %v", err)
	}
}

func TestCancelAndDispute(t *testing.T) {
	svc, _ := newFixture(t)
	svc.WithAdmin("0xadmin")
	ctx := context.Background()

	proj, _ := svc.CreateProject(ctx, client, "site", "", "", 1000, deadline())
	if _, err := svc.DisputeProject(ctx, client, proj.ID); !core.IsConflict(err) {
		t.Fatalf("expected conflict disputing a draft, got %v", err)
	}
	if _, err := svc.CancelProject(ctx, "0xstranger", proj.ID); !core.IsForbidden(err) {
		t.Fatalf("expected forbidden cancel, got %v", err)
	}
	cancelled, err := svc.CancelProject(ctx, "0xadmin", proj.ID)
	if err != nil {
		t.Fatalf("admin cancel: %v", err)
	}
	if cancelled.Status != project.StatusCancelled {
		t.Fatalf("expected cancelled, got %s", cancelled.Status)
	}

	second, _ := svc.CreateProject(ctx, client, "app", "", "", 500, deadline())
	svc.PublishProject(ctx, client, second.ID)
	svc.AssignFreelancer(ctx, client, second.ID, freelancer)
	disputed, err := svc.DisputeProject(ctx, freelancer, second.ID)
	if err != nil {
		t.Fatalf("dispute: %v", err)
	}
	if disputed.Status != project.StatusDisputed {
		t.Fatalf("expected disputed, got %s", disputed.Status)
	}
}

func TestGettersRejectSentinelIDs(t *testing.T) {
	svc, _ := newFixture(t)
	ctx := context.Background()

	if _, err := svc.GetProject(ctx, 0); !core.IsNotFound(err) {
		t.Fatalf("expected not-found for id 0, got %v", err)
	}
	if _, err := svc.GetProject(ctx, -4); !core.IsNotFound(err) {
		t.Fatalf("expected not-found for negative id, got %v", err)
	}
	if _, err := svc.GetMilestone(ctx, 1, 0); !core.IsNotFound(err) {
		t.Fatalf("expected not-found for missing milestone, got %v", err)
	}
}
