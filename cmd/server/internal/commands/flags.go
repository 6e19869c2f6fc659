package commands

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/wolfeidau/taskflow/internal/auth"
	postgresstore "github.com/wolfeidau/taskflow/internal/store/postgres"
)

type PostgresStoreFlags struct {
	// Connection Configuration
	ConnString string `help:"PostgreSQL connection string" env:"TASKFLOW_POSTGRES_CONNECTION_STRING"`

	// Connection Pool Configuration
	MaxConns        int32 `help:"maximum number of connections in pool" default:"20"`
	MinConns        int32 `help:"minimum number of connections in pool" default:"5"`
	MaxConnLifetime int32 `help:"maximum connection lifetime in seconds" default:"3600"`
	MaxConnIdleTime int32 `help:"maximum connection idle time in seconds" default:"1800"`

	// Migration Configuration
	AutoMigrate bool `help:"run database migrations on startup" default:"false" env:"TASKFLOW_POSTGRES_AUTO_MIGRATE"`
}

// validate is called by the commands that need postgres rather than by kong,
// since the group is also present when postgres is not selected.
func (s *PostgresStoreFlags) validate() error {
	if s.ConnString == "" {
		return errors.New("PostgreSQL connection string is required (--postgres-conn-string or TASKFLOW_POSTGRES_CONNECTION_STRING)")
	}
	return nil
}

func (s *PostgresStoreFlags) poolConfig() *postgresstore.PoolConfig {
	return &postgresstore.PoolConfig{
		ConnString:      s.ConnString,
		MaxConns:        s.MaxConns,
		MinConns:        s.MinConns,
		MaxConnLifetime: time.Duration(s.MaxConnLifetime) * time.Second,
		MaxConnIdleTime: time.Duration(s.MaxConnIdleTime) * time.Second,
	}
}

// TenantFlags configures where organization stores live.
type TenantFlags struct {
	Backend        string        `help:"tenant store backend" default:"memory" env:"TASKFLOW_TENANT_BACKEND" enum:"memory,sqlite,postgres"`
	Dir            string        `help:"directory for sqlite tenant databases" default:"data/tenants" env:"TASKFLOW_TENANT_DIR"`
	ConnectTimeout time.Duration `help:"bound on opening a tenant store" default:"30s" env:"TASKFLOW_TENANT_CONNECT_TIMEOUT"`
	MaxConns       int32         `help:"maximum connections per postgres tenant pool" default:"4" env:"TASKFLOW_TENANT_MAX_CONNS"`
	DirectoryTTL   time.Duration `help:"how long resolved tenant addresses are cached" default:"10m" env:"TASKFLOW_TENANT_DIRECTORY_TTL"`
}

func (t *TenantFlags) Validate() error {
	if t.Backend == "sqlite" && t.Dir == "" {
		return errors.New("tenant directory is required for the sqlite backend (--tenant-dir or TASKFLOW_TENANT_DIR)")
	}
	if t.ConnectTimeout <= 0 {
		return errors.New("tenant connect timeout must be positive")
	}
	return nil
}

// AuthFlags configures token signing.
type AuthFlags struct {
	AccessSecret  string        `help:"HMAC secret for access tokens" env:"TASKFLOW_AUTH_ACCESS_SECRET"`
	RefreshSecret string        `help:"HMAC secret for refresh tokens" env:"TASKFLOW_AUTH_REFRESH_SECRET"`
	Issuer        string        `help:"token issuer" default:"taskflow" env:"TASKFLOW_AUTH_ISSUER"`
	AccessTTL     time.Duration `help:"access token lifetime" default:"15m" env:"TASKFLOW_AUTH_ACCESS_TTL"`
	RefreshTTL    time.Duration `help:"refresh token lifetime" default:"168h" env:"TASKFLOW_AUTH_REFRESH_TTL"`
}

func (a *AuthFlags) Validate() error {
	if len(a.AccessSecret) < auth.MinSecretLength {
		return fmt.Errorf("access token secret must be at least %d bytes (--auth-access-secret or TASKFLOW_AUTH_ACCESS_SECRET)", auth.MinSecretLength)
	}
	if len(a.RefreshSecret) < auth.MinSecretLength {
		return fmt.Errorf("refresh token secret must be at least %d bytes (--auth-refresh-secret or TASKFLOW_AUTH_REFRESH_SECRET)", auth.MinSecretLength)
	}
	if a.AccessSecret == a.RefreshSecret {
		return errors.New("access and refresh token secrets must differ")
	}
	if a.AccessTTL <= 0 || a.RefreshTTL <= 0 {
		return errors.New("token lifetimes must be positive")
	}
	return nil
}

func (a *AuthFlags) tokenConfig() auth.TokenConfig {
	return auth.TokenConfig{
		AccessSecret:  []byte(a.AccessSecret),
		RefreshSecret: []byte(a.RefreshSecret),
		Issuer:        a.Issuer,
	}
}

const sameSiteAuto = "auto"

// CookieFlags overrides the cookie attributes derived from debug mode.
type CookieFlags struct {
	SameSite string `help:"SameSite mode for auth cookies; auto uses lax in debug mode and none otherwise" default:"auto" env:"TASKFLOW_COOKIE_SAME_SITE" enum:"auto,lax,strict,none"`
	Domain   string `help:"domain attribute for auth cookies" default:"" env:"TASKFLOW_COOKIE_DOMAIN"`
	Insecure bool   `help:"send auth cookies over plain http; needs same-site lax or strict" default:"false" env:"TASKFLOW_COOKIE_INSECURE"`
}

func (c *CookieFlags) Validate() error {
	if c.SameSite == "" || c.SameSite == sameSiteAuto {
		return nil
	}
	sameSite, err := auth.ParseSameSite(c.SameSite)
	if err != nil {
		return err
	}
	if c.Insecure && sameSite == http.SameSiteNoneMode {
		return errors.New("--cookie-insecure cannot be combined with --cookie-same-site=none")
	}
	return nil
}

// config resolves the cookie attributes. auto SameSite depends on dev, so the
// insecure check is repeated once it is known.
func (c *CookieFlags) config(dev bool) (auth.CookieConfig, error) {
	cfg := auth.DefaultCookieConfig(dev)
	if c.SameSite != "" && c.SameSite != sameSiteAuto {
		cfg.SameSite, _ = auth.ParseSameSite(c.SameSite)
	}
	if c.Insecure {
		cfg.Secure = false
	}
	cfg.Domain = c.Domain
	if err := cfg.Validate(); err != nil {
		return auth.CookieConfig{}, fmt.Errorf("invalid cookie flags: %w", err)
	}
	return cfg, nil
}
