package domain

import (
	"errors"
	"fmt"
)

// ValidationError names the field that made a request unusable.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

// NewValidationError builds a ValidationError.
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}

var (
	// ErrTicketNotFound is returned by stores when no ticket matches.
	ErrTicketNotFound = errors.New("ticket not found")
	// ErrVersionConflict is returned when a compare-and-swap update lost a race.
	ErrVersionConflict = errors.New("ticket version conflict")
	// ErrInvalidTransition is returned for a disallowed status change.
	ErrInvalidTransition = errors.New("invalid status transition")
	// ErrSessionNotFound is returned when a conversation context is unknown or expired.
	ErrSessionNotFound = errors.New("session not found")
)
