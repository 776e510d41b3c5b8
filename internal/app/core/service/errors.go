// Package service holds cross-cutting service plumbing: the error taxonomy
// shared by every ledger component.
package service

import (
	"errors"
	"fmt"
)

// Sentinel errors. Typed errors below wrap these so callers can classify
// failures with errors.Is without depending on concrete types.
var (
	ErrNotFound        = errors.New("not found")
	ErrInvalidInput    = errors.New("invalid input")
	ErrForbidden       = errors.New("forbidden")
	ErrAlreadyExists   = errors.New("already exists")
	ErrConflict        = errors.New("state conflict")
	ErrTransferFailed  = errors.New("transfer failed")
	ErrTransportFailed = errors.New("transport failed")
)

// NotFoundError indicates a referenced entity does not exist.
type NotFoundError struct {
	Resource string
	ID       string
}

func (e *NotFoundError) Error() string {
	if e.ID == "" {
		return fmt.Sprintf("%s not found", e.Resource)
	}
	return fmt.Sprintf("%s %q not found", e.Resource, e.ID)
}

func (e *NotFoundError) Unwrap() error { return ErrNotFound }

// NewNotFoundError builds a NotFoundError for a resource and optional id.
func NewNotFoundError(resource, id string) *NotFoundError {
	return &NotFoundError{Resource: resource, ID: id}
}

// IsNotFound reports whether err is a not-found failure.
func IsNotFound(err error) bool { return errors.Is(err, ErrNotFound) }

// ValidationError indicates malformed or out-of-range input, rejected before
// any state mutation.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string { return fmt.Sprintf("%s: %s", e.Field, e.Reason) }

func (e *ValidationError) Unwrap() error { return ErrInvalidInput }

// NewValidationError builds a ValidationError for a field.
func NewValidationError(field, reason string) *ValidationError {
	return &ValidationError{Field: field, Reason: reason}
}

// RequiredError reports a missing required field.
func RequiredError(field string) *ValidationError {
	return &ValidationError{Field: field, Reason: "is required"}
}

// IsValidationError reports whether err is a validation failure.
func IsValidationError(err error) bool { return errors.Is(err, ErrInvalidInput) }

// AccessDeniedError indicates the caller does not hold the required role or
// relationship to the entity.
type AccessDeniedError struct {
	Resource string
	ID       string
	Caller   string
	Reason   string
}

func (e *AccessDeniedError) Error() string {
	msg := fmt.Sprintf("access denied to %s %q for caller %s", e.Resource, e.ID, e.Caller)
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	return msg
}

func (e *AccessDeniedError) Unwrap() error { return ErrForbidden }

// NewAccessDeniedError builds an AccessDeniedError.
func NewAccessDeniedError(resource, id, caller string) *AccessDeniedError {
	return &AccessDeniedError{Resource: resource, ID: id, Caller: caller}
}

// IsForbidden reports whether err is an authorization failure.
func IsForbidden(err error) bool { return errors.Is(err, ErrForbidden) }

// ConflictError indicates a uniqueness violation such as a duplicate
// registration.
type ConflictError struct {
	Resource string
	ID       string
	Reason   string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("%s %q: %s", e.Resource, e.ID, e.Reason)
}

func (e *ConflictError) Unwrap() error { return ErrAlreadyExists }

// NewConflictError builds a ConflictError.
func NewConflictError(resource, id, reason string) *ConflictError {
	return &ConflictError{Resource: resource, ID: id, Reason: reason}
}

// StateError indicates an operation invalid for the entity's current
// lifecycle state.
type StateError struct {
	Resource string
	ID       string
	Status   string
	Reason   string
}

func (e *StateError) Error() string {
	return fmt.Sprintf("%s %q in status %s: %s", e.Resource, e.ID, e.Status, e.Reason)
}

func (e *StateError) Unwrap() error { return ErrConflict }

// NewStateError builds a StateError.
func NewStateError(resource, id, status, reason string) *StateError {
	return &StateError{Resource: resource, ID: id, Status: status, Reason: reason}
}

// IsConflict reports whether err is a lifecycle-state or uniqueness conflict.
func IsConflict(err error) bool {
	return errors.Is(err, ErrConflict) || errors.Is(err, ErrAlreadyExists)
}

// TransferError indicates an external value movement failed. The enclosing
// operation must abort without committing state.
type TransferError struct {
	Op  string
	Err error
}

func (e *TransferError) Error() string { return fmt.Sprintf("transfer %s: %v", e.Op, e.Err) }

func (e *TransferError) Unwrap() error { return ErrTransferFailed }

// NewTransferError wraps a failed value movement.
func NewTransferError(op string, err error) *TransferError {
	return &TransferError{Op: op, Err: err}
}

// IsTransferFailed reports whether err is a value-movement failure.
func IsTransferFailed(err error) bool { return errors.Is(err, ErrTransferFailed) }

// TransportError indicates cross-chain dispatch failed on every available
// transport.
type TransportError struct {
	Destination string
	Err         error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("dispatch to chain %s: %v", e.Destination, e.Err)
}

func (e *TransportError) Unwrap() error { return ErrTransportFailed }

// NewTransportError wraps a failed cross-chain dispatch.
func NewTransportError(destination string, err error) *TransportError {
	return &TransportError{Destination: destination, Err: err}
}

// IsTransportFailed reports whether err is a dispatch failure.
func IsTransportFailed(err error) bool { return errors.Is(err, ErrTransportFailed) }

// ServiceError annotates an error with the service and operation that raised
// it.
type ServiceError struct {
	Service string
	Op      string
	Err     error
}

func (e *ServiceError) Error() string {
	return fmt.Sprintf("%s.%s: %v", e.Service, e.Op, e.Err)
}

func (e *ServiceError) Unwrap() error { return e.Err }

// WrapServiceError wraps err with service and operation context. Returns nil
// when err is nil.
func WrapServiceError(service, op string, err error) error {
	if err == nil {
		return nil
	}
	return &ServiceError{Service: service, Op: op, Err: err}
}
