package tenant

import (
	"context"

	"github.com/google/uuid"
)

// Context is everything a request needs to work inside one organization's store.
type Context struct {
	OrgID     uuid.UUID
	Handle    *Handle
	Accessors *Accessors
}

// Resolver turns an organization ID into a ready tenant context. It is the only
// way request handlers obtain accessors, and it always resolves them from the
// organization's own address.
type Resolver struct {
	directory Directory
	registry  *Registry
	catalog   *Catalog
}

func NewResolver(directory Directory, registry *Registry, catalog *Catalog) *Resolver {
	return &Resolver{directory: directory, registry: registry, catalog: catalog}
}

// Resolve looks up the organization's address, obtains its handle and binds the
// catalog to it.
func (r *Resolver) Resolve(ctx context.Context, orgID uuid.UUID) (*Context, error) {
	address, err := r.directory.AddressOf(ctx, orgID)
	if err != nil {
		return nil, err
	}

	h, err := r.registry.Resolve(ctx, address)
	if err != nil {
		return nil, err
	}

	acc, err := r.catalog.EntitiesFor(ctx, h)
	if err != nil {
		return nil, err
	}

	return &Context{OrgID: orgID, Handle: h, Accessors: acc}, nil
}
