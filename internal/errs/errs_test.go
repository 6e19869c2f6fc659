package errs

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestKindOf(t *testing.T) {
	cause := errors.New("dial tcp: connection refused")

	t.Run("wrapped kind survives fmt wrapping", func(t *testing.T) {
		err := fmt.Errorf("resolve tenant: %w", Wrap(UpstreamUnavailable, "tenant store unavailable", cause))
		require.Equal(t, UpstreamUnavailable, KindOf(err))
		require.True(t, Is(err, UpstreamUnavailable))
		require.ErrorIs(t, err, cause)
	})

	t.Run("plain error is internal", func(t *testing.T) {
		require.Equal(t, Internal, KindOf(cause))
		require.Equal(t, "internal error", Message(cause))
	})

	t.Run("nil is never a kind", func(t *testing.T) {
		require.False(t, Is(nil, Internal))
		require.NoError(t, Wrap(NotFound, "missing", nil))
	})

	t.Run("bare context errors", func(t *testing.T) {
		canceled := fmt.Errorf("resolve tenant: %w", context.Canceled)
		require.Equal(t, Canceled, KindOf(canceled))
		require.Equal(t, "request canceled", Message(canceled))

		expired := fmt.Errorf("resolve tenant: %w", context.DeadlineExceeded)
		require.Equal(t, UpstreamUnavailable, KindOf(expired))
		require.Equal(t, "upstream timed out", Message(expired))
	})

	t.Run("explicit kind wins over context error", func(t *testing.T) {
		err := Wrap(ProvisioningFailed, "organization provisioning failed", context.Canceled)
		require.Equal(t, ProvisioningFailed, KindOf(err))
	})

	t.Run("message hides cause", func(t *testing.T) {
		err := Wrap(NotFound, "organization not found", cause)
		require.Equal(t, "organization not found", Message(err))
		require.Contains(t, err.Error(), "connection refused")
	})
}

func TestHTTPStatus(t *testing.T) {
	tests := []struct {
		kind Kind
		want int
	}{
		{Invalid, http.StatusBadRequest},
		{NotFound, http.StatusNotFound},
		{Conflict, http.StatusConflict},
		{Unauthorized, http.StatusUnauthorized},
		{Forbidden, http.StatusForbidden},
		{UpstreamUnavailable, http.StatusServiceUnavailable},
		{ProvisioningFailed, http.StatusInternalServerError},
		{Canceled, StatusClientClosedRequest},
		{Internal, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.kind.String(), func(t *testing.T) {
			require.Equal(t, tt.want, HTTPStatus(tt.kind))
		})
	}
}
