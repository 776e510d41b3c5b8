package service

import (
	"errors"
	"testing"
)

func TestNotFoundError(t *testing.T) {
	err := NewNotFoundError("project", "42")

	expected := `project "42" not found`
	if err.Error() != expected {
		t.Errorf("expected %q, got %q", expected, err.Error())
	}

	if !errors.Is(err, ErrNotFound) {
		t.Error("expected error to wrap ErrNotFound")
	}

	if !IsNotFound(err) {
		t.Error("IsNotFound should return true")
	}
}

func TestNotFoundError_NoID(t *testing.T) {
	err := NewNotFoundError("payment", "")

	expected := "payment not found"
	if err.Error() != expected {
		t.Errorf("expected %q, got %q", expected, err.Error())
	}
}

func TestValidationError(t *testing.T) {
	err := NewValidationError("rating", "must be between 1 and 5")

	expected := "rating: must be between 1 and 5"
	if err.Error() != expected {
		t.Errorf("expected %q, got %q", expected, err.Error())
	}

	if !errors.Is(err, ErrInvalidInput) {
		t.Error("expected error to wrap ErrInvalidInput")
	}

	if !IsValidationError(err) {
		t.Error("IsValidationError should return true")
	}
}

func TestRequiredError(t *testing.T) {
	err := RequiredError("username")

	expected := "username: is required"
	if err.Error() != expected {
		t.Errorf("expected %q, got %q", expected, err.Error())
	}

	if !IsValidationError(err) {
		t.Error("IsValidationError should return true for RequiredError")
	}
}

func TestAccessDeniedError(t *testing.T) {
	err := NewAccessDeniedError("project", "7", "0xfeed")

	if !errors.Is(err, ErrForbidden) {
		t.Error("expected error to wrap ErrForbidden")
	}

	if !IsForbidden(err) {
		t.Error("IsForbidden should return true")
	}

	msg := err.Error()
	if msg != `access denied to project "7" for caller 0xfeed` {
		t.Errorf("unexpected message: %s", msg)
	}
}

func TestAccessDeniedError_WithReason(t *testing.T) {
	err := &AccessDeniedError{
		Resource: "payment",
		ID:       "3",
		Caller:   "0xbeef",
		Reason:   "caller is not the project client",
	}

	msg := err.Error()
	if msg != `access denied to payment "3" for caller 0xbeef: caller is not the project client` {
		t.Errorf("unexpected message: %s", msg)
	}
}

func TestConflictError(t *testing.T) {
	err := NewConflictError("username", "alice", "already taken")

	if !errors.Is(err, ErrAlreadyExists) {
		t.Error("expected error to wrap ErrAlreadyExists")
	}

	if !IsConflict(err) {
		t.Error("IsConflict should return true")
	}
}

func TestStateError(t *testing.T) {
	err := NewStateError("project", "5", "Draft", "cannot assign freelancer")

	expected := `project "5" in status Draft: cannot assign freelancer`
	if err.Error() != expected {
		t.Errorf("expected %q, got %q", expected, err.Error())
	}

	if !errors.Is(err, ErrConflict) {
		t.Error("expected error to wrap ErrConflict")
	}

	if !IsConflict(err) {
		t.Error("IsConflict should return true")
	}

	if IsNotFound(err) {
		t.Error("state error should not classify as not-found")
	}
}

func TestTransferError(t *testing.T) {
	underlying := errors.New("insufficient balance")
	err := NewTransferError("payout", underlying)

	if !IsTransferFailed(err) {
		t.Error("IsTransferFailed should return true")
	}

	if err.Error() != "transfer payout: insufficient balance" {
		t.Errorf("unexpected message: %s", err.Error())
	}
}

func TestTransportError(t *testing.T) {
	underlying := errors.New("relayer unavailable")
	err := NewTransportError("1337", underlying)

	if !IsTransportFailed(err) {
		t.Error("IsTransportFailed should return true")
	}

	if IsTransferFailed(err) {
		t.Error("transport error should not classify as transfer failure")
	}
}

func TestServiceError(t *testing.T) {
	underlying := NewNotFoundError("project", "9")
	err := WrapServiceError("escrow", "CreatePayment", underlying)

	msg := err.Error()
	expected := `escrow.CreatePayment: project "9" not found`
	if msg != expected {
		t.Errorf("expected %q, got %q", expected, msg)
	}

	if !errors.Is(err, ErrNotFound) {
		t.Error("wrapped error should still match ErrNotFound")
	}
}

func TestWrapServiceError_Nil(t *testing.T) {
	if err := WrapServiceError("registry", "Register", nil); err != nil {
		t.Error("WrapServiceError(nil) should return nil")
	}
}
