package tenant

import (
	"context"
)

// Connector opens and destroys tenant stores on one backend.
type Connector interface {
	// Connect opens the tenant store at address, creating it if needed.
	Connect(ctx context.Context, address string) (Conn, error)

	// Drop destroys the tenant store at address and everything in it.
	// Dropping a store that does not exist is not an error.
	Drop(ctx context.Context, address string) error
}

// Conn is a live connection to one tenant store.
type Conn interface {
	// Bind creates or reuses the native storage for schema and returns its accessor.
	Bind(ctx context.Context, schema Schema) (Collection, error)

	Close() error
}
