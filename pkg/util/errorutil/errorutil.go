// Package errorutil maps application errors onto HTTP error envelopes.
package errorutil

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/jackc/pgx/v5"

	"github.com/coolfix/service-desk/internal/domain"
)

// DomainError standardizes application errors.
type DomainError struct {
	Code       string
	Message    string
	HTTPStatus int
	Details    map[string]any
	Err        error
}

func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *DomainError) Unwrap() error {
	return e.Err
}

// NewDomainError constructs a DomainError.
func NewDomainError(code, message string, status int, details map[string]any) *DomainError {
	return &DomainError{Code: code, Message: message, HTTPStatus: status, Details: details}
}

func NewValidationError(message string, details map[string]any) error {
	return NewDomainError("VALIDATION_FAILED", message, http.StatusBadRequest, details)
}

func NewNotFound(resource string, details map[string]any) error {
	if details == nil {
		details = map[string]any{}
	}
	return &DomainError{
		Code:       "NOT_FOUND",
		Message:    fmt.Sprintf("%s not found", resource),
		HTTPStatus: http.StatusNotFound,
		Details:    details,
	}
}

func NewUnauthorized(message string) error {
	return NewDomainError("UNAUTHORIZED", message, http.StatusUnauthorized, nil)
}

func NewConflict(message string, details map[string]any) error {
	return NewDomainError("CONFLICT", message, http.StatusConflict, details)
}

// NewInvalidTransition reports a status change the ticket lifecycle does not allow.
func NewInvalidTransition(message string, details map[string]any) error {
	return NewDomainError("INVALID_TRANSITION", message, http.StatusUnprocessableEntity, details)
}

func NewInternalError(err error) error {
	return &DomainError{
		Code:       "INTERNAL_ERROR",
		Message:    "internal server error",
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}

// ToDomainError converts service and store errors to a DomainError.
func ToDomainError(err error) *DomainError {
	if err == nil {
		return nil
	}
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr
	}

	var verr *domain.ValidationError
	var mapped error
	switch {
	case errors.As(err, &verr):
		mapped = NewValidationError(verr.Message, map[string]any{"field": verr.Field})
	case errors.Is(err, domain.ErrTicketNotFound), errors.Is(err, pgx.ErrNoRows):
		mapped = NewNotFound("ticket", nil)
	case errors.Is(err, domain.ErrSessionNotFound):
		mapped = NewNotFound("session", nil)
	case errors.Is(err, domain.ErrVersionConflict):
		mapped = NewConflict("ticket was modified concurrently, retry the request", nil)
	case errors.Is(err, domain.ErrInvalidTransition):
		mapped = NewInvalidTransition(err.Error(), nil)
	default:
		mapped = NewInternalError(err)
	}
	de, _ := mapped.(*DomainError)
	return de
}
