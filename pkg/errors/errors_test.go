package errors

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAppError_TypesAndStatus(t *testing.T) {
	tests := []struct {
		name       string
		err        *AppError
		wantType   ErrorType
		wantStatus int
	}{
		{"validation", NewValidationError("bad input", nil), ErrorTypeValidation, http.StatusBadRequest},
		{"not found", NewNotFoundError("team not found"), ErrorTypeNotFound, http.StatusNotFound},
		{"conflict", NewConflictError("team number already exists", nil), ErrorTypeConflict, http.StatusConflict},
		{"broadcast", NewBroadcastError("publish failed", nil), ErrorTypeBroadcast, http.StatusBadGateway},
		{"internal", NewInternalError("boom", nil), ErrorTypeInternal, http.StatusInternalServerError},
		{"authentication", NewAuthenticationError("no token"), ErrorTypeAuthentication, http.StatusUnauthorized},
		{"authorization", NewAuthorizationError("judges only"), ErrorTypeAuthorization, http.StatusForbidden},
		{"rate limited", NewRateLimitError("slow down"), ErrorTypeRateLimit, http.StatusTooManyRequests},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.wantType, tt.err.Type)
			assert.Equal(t, tt.wantStatus, tt.err.StatusCode)
		})
	}
}

func TestPredicates_SeeThroughWrapping(t *testing.T) {
	wrapped := fmt.Errorf("record completion: %w", NewConflictError("already completed", nil))

	assert.True(t, IsConflict(wrapped))
	assert.False(t, IsNotFound(wrapped))
	assert.False(t, IsValidation(fmt.Errorf("plain")))

	appErr, ok := As(wrapped)
	assert.True(t, ok)
	assert.Equal(t, "already completed", appErr.Message)
}

func TestAppError_ErrorIncludesInternal(t *testing.T) {
	cause := fmt.Errorf("connection refused")
	err := NewBroadcastError("failed to publish update", cause)

	assert.Contains(t, err.Error(), "connection refused")
	assert.ErrorIs(t, err, cause)
	assert.True(t, IsBroadcast(err))
}

func TestNewErrorResponse_HidesInternal(t *testing.T) {
	err := NewInternalError("failed to list teams", fmt.Errorf("dial tcp: refused"))
	response := NewErrorResponse(err, "req-1")

	assert.Equal(t, ErrorTypeInternal, response.Error.Type)
	assert.Equal(t, "failed to list teams", response.Error.Message)
	assert.Equal(t, "req-1", response.Error.RequestID)
	assert.NotEmpty(t, response.Error.Timestamp)
}
