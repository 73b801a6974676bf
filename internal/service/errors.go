package service

import (
	"errors"
	"fmt"
)

// Service sentinel errors. Callers check them with errors.Is; the API layer
// maps them to HTTP status codes.
var (
	// ErrNotOwned indicates a resource is owned by a different user than the
	// one making the request. API layer should map this to 403 Forbidden.
	ErrNotOwned = errors.New("resource is owned by another user")

	// ErrMeetingNotFound indicates the requested meeting does not exist.
	ErrMeetingNotFound = errors.New("meeting not found")

	// ErrCardNotFound indicates the requested card does not exist.
	ErrCardNotFound = errors.New("card not found")

	// ErrSeriesNotFound indicates the requested series does not exist.
	ErrSeriesNotFound = errors.New("series not found")

	// ErrNoPredecessor indicates a meeting has no previous meeting to compare with.
	ErrNoPredecessor = errors.New("meeting has no previous meeting in its series")

	// ErrNotRecurring indicates a series operation was requested for a
	// meeting whose title is not recurring.
	ErrNotRecurring = errors.New("meeting is not recurring")
)

// ServiceError wraps a failure with the component and operation it came from.
type ServiceError struct {
	Component string
	Operation string
	Message   string
	Err       error
}

// Error implements the error interface for ServiceError.
func (e *ServiceError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s %s failed: %s: %v", e.Component, e.Operation, e.Message, e.Err)
	}
	return fmt.Sprintf("%s %s failed: %s", e.Component, e.Operation, e.Message)
}

// Unwrap returns the wrapped error to support errors.Is/errors.As.
func (e *ServiceError) Unwrap() error {
	return e.Err
}

// NewServiceError creates a new ServiceError.
func NewServiceError(component, operation, message string, err error) *ServiceError {
	return &ServiceError{
		Component: component,
		Operation: operation,
		Message:   message,
		Err:       err,
	}
}
