package api

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/phrazzld/cadence-api/internal/api/middleware"
	"github.com/phrazzld/cadence-api/internal/api/shared"
	"github.com/phrazzld/cadence-api/internal/domain"
	"github.com/phrazzld/cadence-api/internal/service"
	"github.com/phrazzld/cadence-api/internal/store"
)

// ErrUnauthenticated is used when a protected handler runs without a user
// in the request context.
var ErrUnauthenticated = errors.New("unauthenticated")

// MapErrorToStatusCode maps internal errors to appropriate HTTP status codes
// based on the error type. This prevents leaking internal error types or
// messages to clients.
func MapErrorToStatusCode(err error) int {
	var validationErrs validator.ValidationErrors

	switch {
	case errors.Is(err, ErrUnauthenticated),
		errors.Is(err, middleware.ErrInvalidToken),
		errors.Is(err, middleware.ErrExpiredToken):
		return http.StatusUnauthorized

	case errors.Is(err, service.ErrNotOwned):
		return http.StatusForbidden

	case errors.Is(err, service.ErrMeetingNotFound),
		errors.Is(err, service.ErrCardNotFound),
		errors.Is(err, service.ErrSeriesNotFound),
		errors.Is(err, service.ErrNoPredecessor),
		store.IsNotFoundError(err):
		return http.StatusNotFound

	case errors.Is(err, service.ErrNotRecurring),
		errors.Is(err, store.ErrDuplicate),
		errors.Is(err, store.ErrConflict):
		return http.StatusConflict

	case errors.Is(err, domain.ErrValidation),
		errors.Is(err, store.ErrInvalidEntity),
		errors.As(err, &validationErrs):
		return http.StatusBadRequest

	default:
		return http.StatusInternalServerError
	}
}

// GetSafeErrorMessage returns a sanitized, user-friendly error message
// based on the error type. This prevents leaking sensitive internal details.
func GetSafeErrorMessage(err error) string {
	if err == nil {
		return "An unexpected error occurred"
	}

	var fieldErr *domain.ValidationError
	var validationErrs validator.ValidationErrors

	switch {
	case errors.Is(err, ErrUnauthenticated):
		return "Authentication required"
	case errors.Is(err, middleware.ErrInvalidToken),
		errors.Is(err, middleware.ErrExpiredToken):
		return "Invalid token"

	case errors.Is(err, service.ErrNotOwned):
		return "You do not have access to this resource"

	case errors.Is(err, service.ErrMeetingNotFound),
		errors.Is(err, store.ErrMeetingNotFound):
		return "Meeting not found"
	case errors.Is(err, service.ErrCardNotFound),
		errors.Is(err, store.ErrCardNotFound):
		return "Card not found"
	case errors.Is(err, service.ErrSeriesNotFound),
		errors.Is(err, store.ErrSeriesNotFound):
		return "Series not found"
	case errors.Is(err, service.ErrNoPredecessor):
		return "Meeting has no previous meeting to compare with"
	case store.IsNotFoundError(err):
		return "Resource not found"

	case errors.Is(err, service.ErrNotRecurring):
		return "Meeting is not part of a recurring series"
	case errors.Is(err, store.ErrConflict):
		return "Resource was modified concurrently, retry the request"
	case errors.Is(err, store.ErrDuplicate):
		return "Resource already exists"

	case errors.As(err, &validationErrs):
		return SanitizeValidationError(err)
	case errors.As(err, &fieldErr):
		return fmt.Sprintf("Invalid %s: %s", fieldErr.Field, fieldErr.Message)
	case errors.Is(err, domain.ErrInvalidStatus):
		return "Invalid status"
	case errors.Is(err, domain.ErrInvalidPriority):
		return "Invalid priority"
	case errors.Is(err, domain.ErrValidation):
		return "Validation error"
	case errors.Is(err, store.ErrInvalidEntity):
		return "Invalid entity data"

	default:
		return "An unexpected error occurred"
	}
}

// SanitizeValidationError removes sensitive details from validation errors
// and returns a user-friendly message.
func SanitizeValidationError(err error) string {
	var validationErrs validator.ValidationErrors
	if errors.As(err, &validationErrs) && len(validationErrs) > 0 {
		first := validationErrs[0]
		return fmt.Sprintf("Invalid %s: %s", first.Field(), getValidationTagMessage(first.Tag()))
	}

	// Example format: "Key: 'CardRequest.Summary' Error:Field validation for 'Summary' failed on the 'required' tag"
	errMsg := err.Error()
	if strings.Contains(errMsg, "Field validation") {
		parts := strings.Split(errMsg, "Error:")
		if len(parts) >= 2 {
			fieldParts := strings.Split(parts[1], "'")
			if len(fieldParts) >= 3 {
				field := fieldParts[1]
				if len(fieldParts) >= 5 {
					return fmt.Sprintf("Invalid %s: %s", field, getValidationTagMessage(fieldParts[3]))
				}
				return fmt.Sprintf("Invalid %s", field)
			}
		}
	}

	return "Validation error"
}

func getValidationTagMessage(tag string) string {
	switch tag {
	case "required":
		return "required field"
	case "min":
		return "too short"
	case "max":
		return "too long"
	case "oneof":
		return "invalid value"
	case "dive":
		return "invalid entry"
	default:
		return "validation failed"
	}
}

// HandleAPIError maps err to a status code and writes a sanitized error
// response. fallback replaces the generic message for 5xx responses.
func HandleAPIError(w http.ResponseWriter, r *http.Request, err error, fallback string) {
	status := MapErrorToStatusCode(err)

	message := GetSafeErrorMessage(err)
	if status >= http.StatusInternalServerError && fallback != "" {
		message = fallback
	}

	var opts []shared.ResponseOption
	if status == http.StatusForbidden || status == http.StatusConflict {
		opts = append(opts, shared.WithElevatedLogLevel())
	}

	shared.RespondWithErrorAndLog(w, r, status, message, err, opts...)
}
