// Package domain defines the core business entities and errors.
package domain

import (
	"errors"
	"fmt"
)

// Common domain errors used across the application.
var (
	// ErrValidation is returned when a domain entity fails validation.
	// This is usually wrapped by a ValidationError naming the offending field.
	ErrValidation = errors.New("validation failed")

	// ErrInvalidStatus is returned when a card status is not one of the four known states.
	ErrInvalidStatus = fmt.Errorf("%w: invalid card status", ErrValidation)

	// ErrInvalidPriority is returned when a priority is not low, medium, high or urgent.
	ErrInvalidPriority = fmt.Errorf("%w: invalid card priority", ErrValidation)

	// ErrInvalidRecurrence is returned when a recurrence cadence is not supported.
	ErrInvalidRecurrence = fmt.Errorf("%w: invalid recurrence", ErrValidation)

	// ErrInvalidActivityType is returned when an activity type is unknown.
	ErrInvalidActivityType = fmt.Errorf("%w: invalid activity type", ErrValidation)
)

// ValidationError describes a single field that failed validation.
type ValidationError struct {
	Field   string
	Message string
	Err     error
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Unwrap returns the wrapped error to support errors.Is/errors.As.
func (e *ValidationError) Unwrap() error {
	return e.Err
}

// NewValidationError creates a ValidationError. When err is nil the error
// wraps ErrValidation so callers can always match it with errors.Is.
func NewValidationError(field, message string, err error) *ValidationError {
	if err == nil {
		err = ErrValidation
	}
	return &ValidationError{Field: field, Message: message, Err: err}
}
