// Package domain holds the error vocabulary shared by every aggregate in the service.
package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when a requested aggregate does not exist.
	ErrNotFound = errors.New("not found")

	// ErrConflict is returned when an operation collides with existing state.
	ErrConflict = errors.New("conflict")

	// ErrOptimisticLock is returned when a concurrent update changed the aggregate first.
	ErrOptimisticLock = errors.New("optimistic lock conflict")

	// ErrValidation is the sentinel wrapped by every ValidationError.
	ErrValidation = errors.New("validation failed")
)

// NotFoundError identifies which resource could not be found.
type NotFoundError struct {
	Resource string
	ID       string
}

// NewNotFoundError creates a NotFoundError for the given resource and identifier.
func NewNotFoundError(resource, id string) *NotFoundError {
	return &NotFoundError{Resource: resource, ID: id}
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Resource, e.ID)
}

// Unwrap lets errors.Is match ErrNotFound.
func (e *NotFoundError) Unwrap() error { return ErrNotFound }

// InvalidStateError reports a forbidden state transition.
type InvalidStateError struct {
	From string
	To   string
}

// NewInvalidStateError creates an InvalidStateError for a transition from -> to.
func NewInvalidStateError(from, to string) *InvalidStateError {
	return &InvalidStateError{From: from, To: to}
}

func (e *InvalidStateError) Error() string {
	return fmt.Sprintf("invalid state transition from %q to %q", e.From, e.To)
}

// ValidationError reports a rejected field value.
type ValidationError struct {
	Field   string
	Message string
}

// NewValidationError creates a ValidationError for field.
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Unwrap lets errors.Is match ErrValidation.
func (e *ValidationError) Unwrap() error { return ErrValidation }
