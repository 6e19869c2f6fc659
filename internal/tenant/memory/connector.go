// Package memory is an in-process tenant store backend for tests and local runs.
package memory

import (
	"context"
	"errors"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/wolfeidau/taskflow/internal/tenant"
)

var errClosed = errors.New("tenant connection closed")

// Connector keeps every tenant store in a map keyed by address.
type Connector struct {
	mu     sync.Mutex
	stores map[string]*database

	connects atomic.Int64
}

var _ tenant.Connector = (*Connector)(nil)

func NewConnector() *Connector {
	return &Connector{stores: make(map[string]*database)}
}

// Connect opens the store at address, creating it when missing.
func (c *Connector) Connect(ctx context.Context, address string) (tenant.Conn, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	c.connects.Add(1)

	c.mu.Lock()
	defer c.mu.Unlock()

	db, ok := c.stores[address]
	if !ok {
		db = &database{collections: make(map[string]*collection)}
		c.stores[address] = db
	}
	return &conn{db: db}, nil
}

// Drop forgets the store at address.
func (c *Connector) Drop(ctx context.Context, address string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.stores, address)
	return nil
}

// Exists reports whether a store has been created at address and not dropped.
func (c *Connector) Exists(address string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	_, ok := c.stores[address]
	return ok
}

// Addresses lists the live stores in sorted order.
func (c *Connector) Addresses() []string {
	c.mu.Lock()
	defer c.mu.Unlock()

	addresses := make([]string, 0, len(c.stores))
	for address := range c.stores {
		addresses = append(addresses, address)
	}
	slices.Sort(addresses)
	return addresses
}

// Connects returns how many times Connect has been called.
func (c *Connector) Connects() int64 {
	return c.connects.Load()
}

type database struct {
	mu          sync.Mutex
	collections map[string]*collection
}

type conn struct {
	db     *database
	closed atomic.Bool
}

func (c *conn) Bind(ctx context.Context, schema tenant.Schema) (tenant.Collection, error) {
	if c.closed.Load() {
		return nil, errClosed
	}

	c.db.mu.Lock()
	defer c.db.mu.Unlock()

	col, ok := c.db.collections[schema.Table]
	if !ok {
		col = &collection{schema: schema, docs: make(map[uuid.UUID]tenant.Document)}
		c.db.collections[schema.Table] = col
	}
	return col, nil
}

func (c *conn) Close() error {
	c.closed.Store(true)
	return nil
}

type collection struct {
	schema tenant.Schema

	mu   sync.RWMutex
	docs map[uuid.UUID]tenant.Document
}

func cloneDocument(doc tenant.Document) tenant.Document {
	doc.Data = slices.Clone(doc.Data)
	return doc
}

func (c *collection) Schema() tenant.Schema {
	return c.schema
}

func (c *collection) Insert(ctx context.Context, doc tenant.Document) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.docs[doc.ID]; exists {
		return tenant.ErrDocumentExists
	}
	c.docs[doc.ID] = cloneDocument(doc)
	return nil
}

func (c *collection) Get(ctx context.Context, id uuid.UUID) (tenant.Document, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	doc, exists := c.docs[id]
	if !exists {
		return tenant.Document{}, tenant.ErrDocumentNotFound
	}
	return cloneDocument(doc), nil
}

func (c *collection) Find(ctx context.Context, filter tenant.Filter) ([]tenant.Document, error) {
	if err := c.schema.CheckFilter(filter); err != nil {
		return nil, err
	}

	c.mu.RLock()
	defer c.mu.RUnlock()

	var result []tenant.Document
	for _, doc := range c.docs {
		ok, err := tenant.Matches(doc.Data, filter)
		if err != nil {
			return nil, err
		}
		if ok {
			result = append(result, cloneDocument(doc))
		}
	}

	slices.SortFunc(result, func(a, b tenant.Document) int {
		if n := a.CreatedAt.Compare(b.CreatedAt); n != 0 {
			return n
		}
		return slices.Compare(a.ID[:], b.ID[:])
	})
	return result, nil
}

func (c *collection) Replace(ctx context.Context, doc tenant.Document) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	existing, exists := c.docs[doc.ID]
	if !exists {
		return tenant.ErrDocumentNotFound
	}
	doc.CreatedAt = existing.CreatedAt
	c.docs[doc.ID] = cloneDocument(doc)
	return nil
}

func (c *collection) Delete(ctx context.Context, id uuid.UUID) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.docs[id]; !exists {
		return tenant.ErrDocumentNotFound
	}
	delete(c.docs, id)
	return nil
}

func (c *collection) DeleteWhere(ctx context.Context, filter tenant.Filter) (int, error) {
	if err := c.schema.CheckFilter(filter); err != nil {
		return 0, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	removed := 0
	for id, doc := range c.docs {
		ok, err := tenant.Matches(doc.Data, filter)
		if err != nil {
			return removed, err
		}
		if ok {
			delete(c.docs, id)
			removed++
		}
	}
	return removed, nil
}
