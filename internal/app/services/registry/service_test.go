package registry

import (
	"context"
	"testing"

	core "github.com/lancechain/ledger/internal/app/core/service"
	"github.com/lancechain/ledger/internal/app/storage/memory"
)

func TestRegisterAndRead(t *testing.T) {
	svc := New(memory.New(), nil)
	ctx := context.Background()

	profile, err := svc.Register(ctx, "0xclient", "alice", "alice@example.com", "QmProfile", false, true)
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if !profile.IsClient || profile.IsFreelancer {
		t.Fatalf("unexpected role flags: %+v", profile)
	}
	if !svc.IsRegistered(ctx, "0xclient") {
		t.Fatal("IsRegistered should be true after registration")
	}
	if svc.IsVerified(ctx, "0xclient") {
		t.Fatal("fresh profile must not be verified")
	}
}

func TestRegisterValidation(t *testing.T) {
	svc := New(memory.New(), nil)
	ctx := context.Background()

	cases := []struct {
		name                   string
		caller, username, mail string
		freelancer, client     bool
	}{
		{"empty identity", "", "bob", "b@x.io", true, false},
		{"empty username", "0xb", "", "b@x.io", true, false},
		{"empty email", "0xb", "bob", "", true, false},
		{"no roles", "0xb", "bob", "b@x.io", false, false},
	}
	for _, tc := range cases {
		if _, err := svc.Register(ctx, tc.caller, tc.username, tc.mail, "", tc.freelancer, tc.client); !core.IsValidationError(err) {
			t.Fatalf("%s: expected validation error, got %v", tc.name, err)
		}
	}
}

func TestRegisterUniqueHandles(t *testing.T) {
	svc := New(memory.New(), nil)
	ctx := context.Background()

	if _, err := svc.Register(ctx, "0xa", "alice", "alice@example.com", "", true, false); err != nil {
		t.Fatalf("register: %v", err)
	}
	if _, err := svc.Register(ctx, "0xb", "alice", "bob@example.com", "", true, false); !core.IsConflict(err) {
		t.Fatalf("expected conflict for taken username, got %v", err)
	}
	if _, err := svc.Register(ctx, "0xb", "bob", "alice@example.com", "", true, false); !core.IsConflict(err) {
		t.Fatalf("expected conflict for taken email, got %v", err)
	}
	if _, err := svc.Register(ctx, "0xa", "carol", "carol@example.com", "", true, false); !core.IsConflict(err) {
		t.Fatalf("expected conflict for registered identity, got %v", err)
	}
}

func TestUpdateProfile(t *testing.T) {
	svc := New(memory.New(), nil)
	ctx := context.Background()

	if _, err := svc.UpdateProfile(ctx, "0xnobody", "QmNew"); !core.IsNotFound(err) {
		t.Fatalf("expected not-found for unregistered identity, got %v", err)
	}

	if _, err := svc.Register(ctx, "0xa", "alice", "a@x.io", "QmOld", true, false); err != nil {
		t.Fatalf("register: %v", err)
	}
	updated, err := svc.UpdateProfile(ctx, "0xa", "QmNew")
	if err != nil {
		t.Fatalf("update profile: %v", err)
	}
	if updated.ProfileHash != "QmNew" {
		t.Fatalf("profile hash not updated: %q", updated.ProfileHash)
	}
	if updated.Username != "alice" {
		t.Fatalf("username must be immutable, got %q", updated.Username)
	}
}

func TestVerify(t *testing.T) {
	svc := New(memory.New(), nil).WithAdmin("0xadmin")
	ctx := context.Background()

	if _, err := svc.Register(ctx, "0xa", "alice", "a@x.io", "", true, false); err != nil {
		t.Fatalf("register: %v", err)
	}

	// Self-verification is allowed.
	if err := svc.Verify(ctx, "0xa", "0xa", "kyc"); err != nil {
		t.Fatalf("self verify: %v", err)
	}
	if !svc.IsVerified(ctx, "0xa") {
		t.Fatal("profile should be verified")
	}

	// A stranger may not verify others.
	if err := svc.Verify(ctx, "0xstranger", "0xa", "kyc"); !core.IsForbidden(err) {
		t.Fatalf("expected forbidden, got %v", err)
	}

	// An authorized verifier may, and the record is overwritten.
	if err := svc.AddVerifier(ctx, "0xadmin", "0xoracle"); err != nil {
		t.Fatalf("add verifier: %v", err)
	}
	if err := svc.Verify(ctx, "0xoracle", "0xa", "document"); err != nil {
		t.Fatalf("oracle verify: %v", err)
	}
	rec, err := svc.GetVerification(ctx, "0xa")
	if err != nil {
		t.Fatalf("get verification: %v", err)
	}
	if rec.Method != "document" || rec.Verifier != "0xoracle" {
		t.Fatalf("verification record not overwritten: %+v", rec)
	}
}

func TestVerifierManagementIsAdminGated(t *testing.T) {
	svc := New(memory.New(), nil).WithAdmin("0xadmin")
	ctx := context.Background()

	if err := svc.AddVerifier(ctx, "0xmallory", "0xmallory"); !core.IsForbidden(err) {
		t.Fatalf("expected forbidden, got %v", err)
	}
	if err := svc.AddVerifier(ctx, "0xadmin", "0xoracle"); err != nil {
		t.Fatalf("add verifier: %v", err)
	}
	if err := svc.RemoveVerifier(ctx, "0xadmin", "0xoracle"); err != nil {
		t.Fatalf("remove verifier: %v", err)
	}
}
