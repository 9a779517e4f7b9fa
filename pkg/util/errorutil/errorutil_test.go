package errorutil

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coolfix/service-desk/internal/domain"
)

func TestToDomainError(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		code   string
		status int
	}{
		{"validation", domain.NewValidationError("phone", "phone is required"), "VALIDATION_FAILED", http.StatusBadRequest},
		{"wrapped not found", fmt.Errorf("load: %w", domain.ErrTicketNotFound), "NOT_FOUND", http.StatusNotFound},
		{"session", domain.ErrSessionNotFound, "NOT_FOUND", http.StatusNotFound},
		{"conflict", domain.ErrVersionConflict, "CONFLICT", http.StatusConflict},
		{"transition", fmt.Errorf("%w: completed -> new", domain.ErrInvalidTransition), "INVALID_TRANSITION", http.StatusUnprocessableEntity},
		{"unknown", errors.New("disk on fire"), "INTERNAL_ERROR", http.StatusInternalServerError},
		{"already mapped", NewUnauthorized("missing token"), "UNAUTHORIZED", http.StatusUnauthorized},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			de := ToDomainError(tc.err)
			require.NotNil(t, de)
			assert.Equal(t, tc.code, de.Code)
			assert.Equal(t, tc.status, de.HTTPStatus)
		})
	}
	assert.Nil(t, ToDomainError(nil))
}

func TestValidationErrorCarriesField(t *testing.T) {
	de := ToDomainError(domain.NewValidationError("name", "name must be at least 2 characters"))
	assert.Equal(t, "name", de.Details["field"])
	assert.Equal(t, "name must be at least 2 characters", de.Message)
}

func TestInternalErrorHidesCause(t *testing.T) {
	cause := errors.New("password=hunter2")
	de := ToDomainError(cause)
	assert.Equal(t, "internal server error", de.Message)
	assert.ErrorIs(t, de, cause)
}
