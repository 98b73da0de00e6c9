package errors

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestIsTypeThroughWrapping(t *testing.T) {
	base := NewCredentialConfigurationError("reset your key", nil)
	wrapped := fmt.Errorf("generate: %w", base)

	require.True(t, IsType(wrapped, ErrorTypeCredentialConfiguration))
	require.False(t, IsType(wrapped, ErrorTypeValidation))
	require.Equal(t, http.StatusUnauthorized, GetStatusCode(wrapped))
}

func TestGetStatusCodeDefaults(t *testing.T) {
	require.Equal(t, http.StatusInternalServerError, GetStatusCode(fmt.Errorf("plain")))
	require.Equal(t, http.StatusConflict, GetStatusCode(NewBusyError("busy")))
}

func TestUserMessage(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected string
	}{
		{"nil", nil, ""},
		{"app error", NewValidationError("no images", nil), "no images"},
		{"plain error", fmt.Errorf("quota exceeded"), "quota exceeded"},
		{"empty message", fmt.Errorf(""), "fallback"},
		{"app error without message", NewGenerationFailure("", nil), "fallback"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.expected, UserMessage(tt.err, "fallback"))
		})
	}
}

func TestWithStatusCopies(t *testing.T) {
	orig := NewGenerationFailure("rate limited", nil)
	limited := orig.WithStatus(http.StatusTooManyRequests)

	require.Equal(t, http.StatusBadGateway, orig.StatusCode)
	require.Equal(t, http.StatusTooManyRequests, limited.StatusCode)
	require.Equal(t, orig.Message, limited.Message)
}
