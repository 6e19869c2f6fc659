package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	defaultMaxConns          = 20
	defaultMinConns          = 5
	defaultMaxConnLifetime   = time.Hour
	defaultMaxConnIdleTime   = 30 * time.Minute
	defaultHealthCheckPeriod = time.Minute
	defaultConnectTimeout    = 10 * time.Second
)

// PoolConfig describes a pgx pool. The global stores use one pool built from it;
// the schema-per-tenant backend copies it as the template for every tenant pool.
// Zero values take the package defaults.
type PoolConfig struct {
	ConnString string

	MaxConns int32
	MinConns int32

	MaxConnLifetime   time.Duration
	MaxConnIdleTime   time.Duration
	HealthCheckPeriod time.Duration
	ConnectTimeout    time.Duration

	// SearchPath is sent as the search_path runtime parameter on every
	// connection. It must already be a quoted identifier list.
	SearchPath string
}

func (c PoolConfig) withDefaults() PoolConfig {
	if c.MaxConns == 0 {
		c.MaxConns = defaultMaxConns
	}
	if c.MinConns == 0 {
		c.MinConns = min(defaultMinConns, c.MaxConns)
	}
	if c.MaxConnLifetime == 0 {
		c.MaxConnLifetime = defaultMaxConnLifetime
	}
	if c.MaxConnIdleTime == 0 {
		c.MaxConnIdleTime = defaultMaxConnIdleTime
	}
	if c.HealthCheckPeriod == 0 {
		c.HealthCheckPeriod = defaultHealthCheckPeriod
	}
	if c.ConnectTimeout == 0 {
		c.ConnectTimeout = defaultConnectTimeout
	}
	return c
}

// Validate reports a missing connection string or inconsistent pool bounds.
func (c PoolConfig) Validate() error {
	if c.ConnString == "" {
		return errors.New("connection string is required")
	}
	if c.MinConns > c.MaxConns {
		return fmt.Errorf("min conns %d exceeds max conns %d", c.MinConns, c.MaxConns)
	}
	return nil
}

func (c PoolConfig) pgxConfig() (*pgxpool.Config, error) {
	c = c.withDefaults()
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("invalid pool config: %w", err)
	}

	pc, err := pgxpool.ParseConfig(c.ConnString)
	if err != nil {
		return nil, fmt.Errorf("failed to parse connection string: %w", err)
	}

	pc.MaxConns = c.MaxConns
	pc.MinConns = c.MinConns
	pc.MaxConnLifetime = c.MaxConnLifetime
	pc.MaxConnIdleTime = c.MaxConnIdleTime
	pc.HealthCheckPeriod = c.HealthCheckPeriod
	pc.ConnConfig.ConnectTimeout = c.ConnectTimeout
	if c.SearchPath != "" {
		pc.ConnConfig.RuntimeParams["search_path"] = c.SearchPath
	}
	return pc, nil
}

// NewPool opens a pool and pings it. A ping that cannot reach the server maps
// to store.ErrUnavailable.
func NewPool(ctx context.Context, cfg *PoolConfig) (*pgxpool.Pool, error) {
	if cfg == nil {
		return nil, errors.New("pool config is required")
	}

	pc, err := cfg.pgxConfig()
	if err != nil {
		return nil, err
	}

	pool, err := pgxpool.NewWithConfig(ctx, pc)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", mapPostgresError(err))
	}

	return pool, nil
}
