package postgres

import (
	"context"
	"os"
	"strconv"
	"testing"
	"time"

	"github.com/lancechain/ledger/internal/app/domain/escrow"
	"github.com/lancechain/ledger/internal/app/domain/project"
	"github.com/lancechain/ledger/internal/app/domain/user"
)

func TestStoreIntegration(t *testing.T) {
	dsn := os.Getenv("TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("TEST_POSTGRES_DSN not set; skipping postgres integration test")
	}

	store, err := Open(dsn)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	defer store.Close()

	ctx := context.Background()
	suffix := strconv.FormatInt(time.Now().UnixNano(), 10)
	client := "0xclient-" + suffix

	if _, err := store.CreateProfile(ctx, user.Profile{
		Address:  client,
		Username: "client-" + suffix,
		Email:    "client-" + suffix + "@example.com",
	}); err != nil {
		t.Fatalf("create profile: %v", err)
	}

	proj, err := store.CreateProject(ctx, project.Project{
		Client:      client,
		Title:       "integration project",
		Description: "exercises the postgres store",
		Budget:      1000,
		Deadline:    time.Now().Add(72 * time.Hour).UTC(),
		Status:      project.StatusDraft,
	})
	if err != nil {
		t.Fatalf("create project: %v", err)
	}
	if proj.ID <= 0 {
		t.Fatalf("project id not assigned: %d", proj.ID)
	}

	pay, err := store.CreatePayment(ctx, escrow.Payment{
		ProjectID: proj.ID,
		Client:    client,
		Token:     escrow.NativeToken,
		Amount:    1000,
		Status:    escrow.StatusPending,
	})
	if err != nil {
		t.Fatalf("create payment: %v", err)
	}

	got, err := store.GetPayment(ctx, pay.ID)
	if err != nil {
		t.Fatalf("get payment: %v", err)
	}
	if got.ProjectID != proj.ID || got.Amount != 1000 {
		t.Fatalf("unexpected payment round-trip: %+v", got)
	}
}
