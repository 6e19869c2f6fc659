package commands

import (
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/wolfeidau/taskflow/internal/auth"
)

func validServe() ServeCmd {
	return ServeCmd{
		StoreType: "memory",
		Tenant:    TenantFlags{Backend: "memory", ConnectTimeout: 30 * time.Second},
		Auth: AuthFlags{
			AccessSecret:  strings.Repeat("a", 32),
			RefreshSecret: strings.Repeat("r", 32),
			AccessTTL:     15 * time.Minute,
			RefreshTTL:    168 * time.Hour,
		},
	}
}

func TestServeValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *ServeCmd)
		wantErr string
	}{
		{name: "defaults", mutate: func(c *ServeCmd) {}},
		{
			name:    "short access secret",
			mutate:  func(c *ServeCmd) { c.Auth.AccessSecret = "short" },
			wantErr: "access token secret must be at least 32 bytes",
		},
		{
			name:    "shared secrets",
			mutate:  func(c *ServeCmd) { c.Auth.RefreshSecret = c.Auth.AccessSecret },
			wantErr: "must differ",
		},
		{
			name:    "postgres store needs a connection string",
			mutate:  func(c *ServeCmd) { c.StoreType = "postgres" },
			wantErr: "PostgreSQL connection string is required",
		},
		{
			name:    "postgres tenants need a connection string",
			mutate:  func(c *ServeCmd) { c.Tenant.Backend = "postgres" },
			wantErr: "PostgreSQL connection string is required",
		},
		{
			name: "postgres with connection string",
			mutate: func(c *ServeCmd) {
				c.StoreType = "postgres"
				c.PostgresStore.ConnString = "postgres://localhost/taskflow"
			},
		},
		{
			name:    "sqlite needs a directory",
			mutate:  func(c *ServeCmd) { c.Tenant.Backend = "sqlite" },
			wantErr: "tenant directory is required",
		},
		{
			name: "insecure cookies with same-site none",
			mutate: func(c *ServeCmd) {
				c.Cookie = CookieFlags{SameSite: "none", Insecure: true}
			},
			wantErr: "--cookie-insecure cannot be combined",
		},
		{
			name:    "cert without key",
			mutate:  func(c *ServeCmd) { c.Cert = "server.pem" },
			wantErr: "TLS certificate and key must be set together",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := validServe()
			tt.mutate(&c)
			err := c.Validate()
			if tt.wantErr == "" {
				require.NoError(t, err)
				return
			}
			require.ErrorContains(t, err, tt.wantErr)
		})
	}
}

func TestCookieFlagsConfig(t *testing.T) {
	t.Run("production defaults", func(t *testing.T) {
		cfg, err := (&CookieFlags{}).config(false)
		require.NoError(t, err)
		require.True(t, cfg.Secure)
		require.Equal(t, http.SameSiteNoneMode, cfg.SameSite)
	})

	t.Run("overrides", func(t *testing.T) {
		cfg, err := (&CookieFlags{SameSite: "strict", Domain: "example.com", Insecure: true}).config(false)
		require.NoError(t, err)
		require.False(t, cfg.Secure)
		require.Equal(t, http.SameSiteStrictMode, cfg.SameSite)
		require.Equal(t, "example.com", cfg.Domain)
	})

	t.Run("insecure with auto same-site", func(t *testing.T) {
		flags := &CookieFlags{SameSite: sameSiteAuto, Insecure: true}

		_, err := flags.config(false)
		require.ErrorIs(t, err, auth.ErrInsecureSameSiteNone)

		cfg, err := flags.config(true)
		require.NoError(t, err)
		require.Equal(t, http.SameSiteLaxMode, cfg.SameSite)
		require.False(t, cfg.Secure)
	})
}
