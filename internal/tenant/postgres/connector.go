// Package postgres keeps each tenant in its own schema of one PostgreSQL database.
package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"
	pgstore "github.com/wolfeidau/taskflow/internal/store/postgres"
	"github.com/wolfeidau/taskflow/internal/tenant"
)

// Connector creates schemas through the admin pool and opens a small pool per
// tenant whose search_path is pinned to that tenant's schema.
type Connector struct {
	admin *pgxpool.Pool
	pool  pgstore.PoolConfig
}

var _ tenant.Connector = (*Connector)(nil)

// NewConnector uses admin for schema DDL. poolCfg is the template for tenant
// pools; its SearchPath is overwritten per tenant.
func NewConnector(admin *pgxpool.Pool, poolCfg pgstore.PoolConfig) *Connector {
	if poolCfg.MaxConns == 0 {
		poolCfg.MaxConns = 4
	}
	if poolCfg.MinConns == 0 {
		poolCfg.MinConns = 1
	}
	return &Connector{admin: admin, pool: poolCfg}
}

func (c *Connector) Connect(ctx context.Context, address string) (tenant.Conn, error) {
	if !tenant.ValidAddress(address) {
		return nil, fmt.Errorf("invalid tenant address %q", address)
	}

	schema := pgx.Identifier{address}.Sanitize()
	if _, err := c.admin.Exec(ctx, `CREATE SCHEMA IF NOT EXISTS `+schema); err != nil {
		return nil, fmt.Errorf("create schema %s: %w", address, err)
	}

	cfg := c.pool
	cfg.SearchPath = schema
	pool, err := pgstore.NewPool(ctx, &cfg)
	if err != nil {
		return nil, fmt.Errorf("open tenant pool %s: %w", address, err)
	}

	log.Debug().Str("schema", address).Msg("Opened tenant pool")

	return &conn{pool: pool, schema: address}, nil
}

func (c *Connector) Drop(ctx context.Context, address string) error {
	if !tenant.ValidAddress(address) {
		return fmt.Errorf("invalid tenant address %q", address)
	}

	_, err := c.admin.Exec(ctx, `DROP SCHEMA IF EXISTS `+pgx.Identifier{address}.Sanitize()+` CASCADE`)
	if err != nil {
		return fmt.Errorf("drop schema %s: %w", address, err)
	}
	return nil
}

// Exists reports whether the schema for address is present.
func (c *Connector) Exists(ctx context.Context, address string) (bool, error) {
	var exists bool
	err := c.admin.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM information_schema.schemata WHERE schema_name = $1)`,
		address,
	).Scan(&exists)
	return exists, err
}

type conn struct {
	pool   *pgxpool.Pool
	schema string
}

// Bind creates the entity table and its field indexes. An advisory lock keyed on
// the table keeps two processes binding the same tenant from racing on DDL.
func (c *conn) Bind(ctx context.Context, schema tenant.Schema) (tenant.Collection, error) {
	tx, err := c.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin bind %s: %w", schema.Table, err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // rollback is safe to call after commit

	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, c.schema+"."+schema.Table); err != nil {
		return nil, fmt.Errorf("lock %s: %w", schema.Table, err)
	}

	table := pgx.Identifier{schema.Table}.Sanitize()
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS ` + table + ` (
			id UUID PRIMARY KEY,
			doc JSONB NOT NULL,
			created_at TIMESTAMPTZ NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL
		)`,
	}
	for _, field := range schema.Fields {
		index := pgx.Identifier{schema.Table + "_" + field + "_idx"}.Sanitize()
		stmts = append(stmts, fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %s ON %s ((doc->>'%s'))`, index, table, field))
	}

	for _, stmt := range stmts {
		if _, err := tx.Exec(ctx, stmt); err != nil {
			return nil, fmt.Errorf("bind %s: %w", schema.Table, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit bind %s: %w", schema.Table, err)
	}

	return &docCollection{pool: c.pool, schema: schema, table: table}, nil
}

func (c *conn) Close() error {
	c.pool.Close()
	return nil
}
