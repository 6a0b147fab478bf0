package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKindsCarryStatusAndStatusText(t *testing.T) {
	tests := []struct {
		name       string
		err        *Error
		wantStatus int
		wantText   string
		wantOp     bool
	}{
		{"validation", Validation("bad", nil), http.StatusBadRequest, "fail", true},
		{"auth", Auth("who"), http.StatusUnauthorized, "fail", true},
		{"authz", Authz("no"), http.StatusForbidden, "fail", true},
		{"not_found", NotFound("gone"), http.StatusNotFound, "fail", true},
		{"conflict", Conflict("dup", map[string]any{"email": "x"}), http.StatusBadRequest, "fail", true},
		{"delivery", Delivery("mail down", errors.New("smtp")), http.StatusInternalServerError, "error", true},
		{"too_large", TooLarge("big"), http.StatusRequestEntityTooLarge, "fail", true},
		{"rate_limit", RateLimited("slow down"), http.StatusTooManyRequests, "fail", true},
		{"internal", Internal("boom", errors.New("db down")), http.StatusInternalServerError, "error", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.wantStatus, tt.err.Status)
			assert.Equal(t, tt.wantText, tt.err.StatusText())
			assert.Equal(t, tt.wantOp, tt.err.Operational())
		})
	}
}

func TestInternalCapturesStackAndUnwraps(t *testing.T) {
	cause := errors.New("db down")
	err := Internal("could not list users", cause)

	require.ErrorIs(t, err, cause)
	assert.NotEmpty(t, err.Stack())
	assert.Contains(t, err.Error(), "db down")
}

func TestAsFindsWrappedError(t *testing.T) {
	wrapped := fmt.Errorf("handler: %w", NotFound("No user found with that ID"))

	e, ok := As(wrapped)
	require.True(t, ok)
	assert.Equal(t, KindNotFound, e.Kind)
	assert.True(t, IsKind(wrapped, KindNotFound))
	assert.False(t, IsKind(errors.New("plain"), KindNotFound))
}
