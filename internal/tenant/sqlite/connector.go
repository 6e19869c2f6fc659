// Package sqlite stores each tenant in its own SQLite database file.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/wolfeidau/taskflow/internal/tenant"
	_ "modernc.org/sqlite"
)

const dsnOptions = "?_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)"

// Connector creates tenant databases under Dir, one file per address.
type Connector struct {
	Dir string
}

var _ tenant.Connector = (*Connector)(nil)

func NewConnector(dir string) (*Connector, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, errors.New("tenant data directory is required")
	}
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("create tenant data directory: %w", err)
	}
	return &Connector{Dir: filepath.Clean(dir)}, nil
}

// Path returns the database file used for address.
func (c *Connector) Path(address string) string {
	return filepath.Join(c.Dir, address+".db")
}

func (c *Connector) Connect(ctx context.Context, address string) (tenant.Conn, error) {
	if !tenant.ValidAddress(address) {
		return nil, fmt.Errorf("invalid tenant address %q", address)
	}

	db, err := sql.Open("sqlite", c.Path(address)+dsnOptions)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}

	log.Debug().Str("path", c.Path(address)).Msg("Opened tenant database")

	return &conn{db: db}, nil
}

// Drop removes the database file and its WAL side files.
func (c *Connector) Drop(ctx context.Context, address string) error {
	if !tenant.ValidAddress(address) {
		return fmt.Errorf("invalid tenant address %q", address)
	}

	base := c.Path(address)
	var errList []error
	for _, path := range []string{base, base + "-wal", base + "-shm"} {
		if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			errList = append(errList, err)
		}
	}
	return errors.Join(errList...)
}

type conn struct {
	db *sql.DB
}

func (c *conn) Bind(ctx context.Context, schema tenant.Schema) (tenant.Collection, error) {
	stmts := []string{
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			id TEXT PRIMARY KEY,
			doc TEXT NOT NULL,
			created_at INTEGER NOT NULL,
			updated_at INTEGER NOT NULL
		)`, schema.Table),
	}
	for _, field := range schema.Fields {
		stmts = append(stmts, fmt.Sprintf(
			`CREATE INDEX IF NOT EXISTS %s_%s_idx ON %s (json_extract(doc, '$.%s'))`,
			schema.Table, field, schema.Table, field,
		))
	}

	for _, stmt := range stmts {
		if _, err := c.db.ExecContext(ctx, stmt); err != nil {
			return nil, fmt.Errorf("bind %s: %w", schema.Table, err)
		}
	}

	return &collection{db: c.db, schema: schema}, nil
}

func (c *conn) Close() error {
	return c.db.Close()
}
