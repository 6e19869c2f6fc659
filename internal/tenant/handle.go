package tenant

import (
	"context"
	"fmt"
	"sync"
)

// Handle is the registry's single live connection to one tenant store.
type Handle struct {
	address string
	conn    Conn

	bindMu   sync.Mutex
	bindings map[EntityName]Collection

	accessorsMu sync.Mutex
	accessors   map[*Catalog]*Accessors
}

func newHandle(address string, conn Conn) *Handle {
	return &Handle{
		address:   address,
		conn:      conn,
		bindings:  make(map[EntityName]Collection),
		accessors: make(map[*Catalog]*Accessors),
	}
}

// Address returns the tenant store address.
func (h *Handle) Address() string {
	return h.address
}

// Bind returns the collection for schema, binding it on first use. Binding an
// entity that is already bound returns the existing collection.
func (h *Handle) Bind(ctx context.Context, schema Schema) (Collection, error) {
	h.bindMu.Lock()
	defer h.bindMu.Unlock()

	if col, ok := h.bindings[schema.Name]; ok {
		return col, nil
	}

	col, err := h.conn.Bind(ctx, schema)
	if err != nil {
		return nil, fmt.Errorf("bind %s on %s: %w", schema.Name, h.address, err)
	}

	h.bindings[schema.Name] = col
	return col, nil
}

func (h *Handle) close() error {
	return h.conn.Close()
}
