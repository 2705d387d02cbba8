// Package domain defines the core business entities and errors.
package domain

import "errors"

// Common domain errors used across the application.
var (
	// ErrValidation is returned when a domain entity fails validation.
	// This is often wrapped with a more specific error message.
	ErrValidation = errors.New("validation failed")

	// ErrInvalidFormat is returned when data is not in the expected format.
	ErrInvalidFormat = errors.New("invalid format")

	// ErrInvalidID is returned when an ID is malformed or invalid.
	ErrInvalidID = errors.New("invalid ID")

	// ErrEmptyContent is returned when required content is empty.
	ErrEmptyContent = errors.New("content cannot be empty")

	// ErrInvalidTaskType is returned when a task type is not one of the known types.
	ErrInvalidTaskType = errors.New("invalid task type")

	// ErrInvalidTaskStatus is returned when a task status is out of range.
	ErrInvalidTaskStatus = errors.New("invalid task status")

	// ErrInvalidModelInfo is returned when a task's serialized model info
	// cannot be parsed or lacks the fields needed to reach a model.
	ErrInvalidModelInfo = errors.New("invalid model info")

	// ErrInvalidTaskConfig is returned when a task's per-run parameters are malformed.
	ErrInvalidTaskConfig = errors.New("invalid task config")
)

// ValidationError carries the field that failed validation alongside the
// sentinel error it wraps.
type ValidationError struct {
	Field   string
	Message string
	Err     error
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return e.Field + " " + e.Message
}

// Unwrap supports errors.Is/errors.As against the wrapped sentinel.
func (e *ValidationError) Unwrap() error {
	return e.Err
}

// NewValidationError builds a ValidationError for the given field.
func NewValidationError(field, message string, err error) *ValidationError {
	return &ValidationError{Field: field, Message: message, Err: err}
}
