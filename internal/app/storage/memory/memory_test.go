package memory

import (
	"context"
	"testing"

	core "github.com/lancechain/ledger/internal/app/core/service"
	"github.com/lancechain/ledger/internal/app/domain/crosschain"
	"github.com/lancechain/ledger/internal/app/domain/escrow"
	"github.com/lancechain/ledger/internal/app/domain/project"
	"github.com/lancechain/ledger/internal/app/domain/stats"
	"github.com/lancechain/ledger/internal/app/domain/user"
	"github.com/lancechain/ledger/internal/app/domain/verification"
)

func TestProfileUniqueness(t *testing.T) {
	store := New()
	ctx := context.Background()

	_, err := store.CreateProfile(ctx, user.Profile{Address: "0xa", Username: "alice", Email: "a@x.io", IsClient: true})
	if err != nil {
		t.Fatalf("create profile: %v", err)
	}

	if _, err := store.CreateProfile(ctx, user.Profile{Address: "0xa", Username: "other", Email: "o@x.io"}); !core.IsConflict(err) {
		t.Fatalf("expected conflict on duplicate address, got %v", err)
	}
	if _, err := store.CreateProfile(ctx, user.Profile{Address: "0xb", Username: "alice", Email: "b@x.io"}); !core.IsConflict(err) {
		t.Fatalf("expected conflict on duplicate username, got %v", err)
	}
	if _, err := store.CreateProfile(ctx, user.Profile{Address: "0xb", Username: "bob", Email: "a@x.io"}); !core.IsConflict(err) {
		t.Fatalf("expected conflict on duplicate email, got %v", err)
	}
}

func TestProjectIDsAreMonotonic(t *testing.T) {
	store := New()
	ctx := context.Background()

	for want := int64(1); want <= 3; want++ {
		p, err := store.CreateProject(ctx, project.Project{Client: "0xc", Title: "t", Status: project.StatusDraft})
		if err != nil {
			t.Fatalf("create project: %v", err)
		}
		if p.ID != want {
			t.Fatalf("expected id %d, got %d", want, p.ID)
		}
	}

	if _, err := store.GetProject(ctx, 0); !core.IsNotFound(err) {
		t.Fatalf("id 0 must stay the absent sentinel, got %v", err)
	}
}

func TestMilestoneIndexing(t *testing.T) {
	store := New()
	ctx := context.Background()

	p, err := store.CreateProject(ctx, project.Project{Client: "0xc", Status: project.StatusInProgress})
	if err != nil {
		t.Fatalf("create project: %v", err)
	}

	m0, err := store.CreateMilestone(ctx, project.Milestone{ProjectID: p.ID, Description: "first", Amount: 100})
	if err != nil {
		t.Fatalf("create milestone: %v", err)
	}
	m1, err := store.CreateMilestone(ctx, project.Milestone{ProjectID: p.ID, Description: "second", Amount: 200})
	if err != nil {
		t.Fatalf("create milestone: %v", err)
	}
	if m0.Index != 0 || m1.Index != 1 {
		t.Fatalf("milestone indexes must be sequential from 0, got %d and %d", m0.Index, m1.Index)
	}

	proj, err := store.GetProject(ctx, p.ID)
	if err != nil {
		t.Fatalf("get project: %v", err)
	}
	if proj.MilestoneCount != 2 {
		t.Fatalf("expected milestone count 2, got %d", proj.MilestoneCount)
	}
}

func TestOnePaymentPerProject(t *testing.T) {
	store := New()
	ctx := context.Background()

	pay, err := store.CreatePayment(ctx, escrow.Payment{ProjectID: 7, Client: "0xc", Amount: 100, Status: escrow.StatusPending})
	if err != nil {
		t.Fatalf("create payment: %v", err)
	}

	got, err := store.GetPaymentByProject(ctx, 7)
	if err != nil {
		t.Fatalf("get payment by project: %v", err)
	}
	if got.ID != pay.ID {
		t.Fatalf("expected payment %d, got %d", pay.ID, got.ID)
	}

	if _, err := store.CreatePayment(ctx, escrow.Payment{ProjectID: 7, Client: "0xc", Amount: 50}); !core.IsConflict(err) {
		t.Fatalf("expected conflict on second payment for project, got %v", err)
	}
}

func TestWorkRecordAtMostOnce(t *testing.T) {
	store := New()
	ctx := context.Background()

	rec := stats.WorkRecord{Freelancer: "0xf", ProjectID: 3, Client: "0xc", Amount: 100, Rating: 5}
	if err := store.AppendWorkRecord(ctx, rec); err != nil {
		t.Fatalf("append work record: %v", err)
	}
	if err := store.AppendWorkRecord(ctx, rec); !core.IsConflict(err) {
		t.Fatalf("expected conflict on duplicate record, got %v", err)
	}

	history, err := store.ListWorkRecords(ctx, "0xf")
	if err != nil {
		t.Fatalf("list work records: %v", err)
	}
	if len(history) != 1 {
		t.Fatalf("expected one record, got %d", len(history))
	}
}

func TestProjectLinkBidirectionalUniqueness(t *testing.T) {
	store := New()
	ctx := context.Background()

	link := crosschain.ProjectLink{ProjectID: 1, CorrelationID: "corr-1", SourceChain: 10}
	if _, err := store.CreateProjectLink(ctx, link); err != nil {
		t.Fatalf("create link: %v", err)
	}

	if _, err := store.CreateProjectLink(ctx, crosschain.ProjectLink{ProjectID: 1, CorrelationID: "corr-2"}); !core.IsConflict(err) {
		t.Fatalf("expected conflict on duplicate project id, got %v", err)
	}
	if _, err := store.CreateProjectLink(ctx, crosschain.ProjectLink{ProjectID: 2, CorrelationID: "corr-1"}); !core.IsConflict(err) {
		t.Fatalf("expected conflict on duplicate correlation id, got %v", err)
	}

	byCorr, err := store.GetProjectLinkByCorrelation(ctx, "corr-1")
	if err != nil {
		t.Fatalf("get link by correlation: %v", err)
	}
	if byCorr.ProjectID != 1 {
		t.Fatalf("expected project 1, got %d", byCorr.ProjectID)
	}
}

func TestOperationDuplicateMessageID(t *testing.T) {
	store := New()
	ctx := context.Background()

	op := crosschain.Operation{MessageID: "m-1", Type: crosschain.OpProjectCreation, Status: crosschain.OpStatusSent}
	if _, err := store.CreateOperation(ctx, op); err != nil {
		t.Fatalf("create operation: %v", err)
	}
	if _, err := store.CreateOperation(ctx, op); !core.IsConflict(err) {
		t.Fatalf("expected conflict on duplicate message id, got %v", err)
	}

	sent, err := store.ListOperations(ctx, crosschain.OpStatusSent)
	if err != nil {
		t.Fatalf("list operations: %v", err)
	}
	if len(sent) != 1 {
		t.Fatalf("expected one sent operation, got %d", len(sent))
	}
}

func TestIdentityAndWorkVerificationGetters(t *testing.T) {
	store := New()
	ctx := context.Background()

	if err := store.PutVerification(ctx, user.Verification{Address: "0xa", Method: "kyc", Verifier: "0xadmin"}); err != nil {
		t.Fatalf("put identity verification: %v", err)
	}
	wv, err := store.CreateVerification(ctx, verification.Verification{ProjectID: 1, Client: "0xc", Freelancer: "0xf", Status: verification.StatusPending})
	if err != nil {
		t.Fatalf("create work verification: %v", err)
	}

	iv, err := store.GetUserVerification(ctx, "0xa")
	if err != nil {
		t.Fatalf("get identity verification: %v", err)
	}
	if iv.Method != "kyc" {
		t.Fatalf("unexpected identity record: %+v", iv)
	}

	got, err := store.GetVerification(ctx, wv.ID)
	if err != nil {
		t.Fatalf("get work verification: %v", err)
	}
	if got.ProjectID != 1 {
		t.Fatalf("unexpected work verification: %+v", got)
	}
}
