package tenant

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/viccon/sturdyc"
	"github.com/wolfeidau/taskflow/internal/errs"
	"github.com/wolfeidau/taskflow/internal/store"
)

// Directory maps organizations to their tenant store addresses.
type Directory interface {
	AddressOf(ctx context.Context, orgID uuid.UUID) (string, error)
}

// StoreDirectory reads addresses from the global organization store.
type StoreDirectory struct {
	orgs store.OrganizationStore
}

func NewStoreDirectory(orgs store.OrganizationStore) *StoreDirectory {
	return &StoreDirectory{orgs: orgs}
}

func (d *StoreDirectory) AddressOf(ctx context.Context, orgID uuid.UUID) (string, error) {
	org, err := d.orgs.Get(ctx, orgID)
	if err != nil {
		switch {
		case errors.Is(err, store.ErrOrganizationNotFound):
			return "", errs.Wrap(errs.NotFound, "organization not found", err)
		case errors.Is(err, store.ErrUnavailable):
			return "", errs.Wrap(errs.UpstreamUnavailable, "global store unavailable", err)
		default:
			return "", err
		}
	}
	return org.DBAddress, nil
}

// CacheConfig sizes a CachedDirectory.
type CacheConfig struct {
	Capacity           int
	Shards             int
	TTL                time.Duration
	EvictionPercentage int
}

func (c *CacheConfig) applyDefaults() {
	if c.Capacity == 0 {
		c.Capacity = 10000
	}
	if c.Shards == 0 {
		c.Shards = 10
	}
	if c.TTL == 0 {
		c.TTL = 10 * time.Minute
	}
	if c.EvictionPercentage == 0 {
		c.EvictionPercentage = 10
	}
}

// CachedDirectory keeps resolved addresses in memory. Addresses never change
// once assigned, so entries only leave the cache by TTL or eviction. Lookups for
// the same organization that miss at the same time share one fetch, and errors
// are not cached.
type CachedDirectory struct {
	next  Directory
	cache *sturdyc.Client[string]
}

func NewCachedDirectory(next Directory, cfg CacheConfig) *CachedDirectory {
	cfg.applyDefaults()
	return &CachedDirectory{
		next:  next,
		cache: sturdyc.New[string](cfg.Capacity, cfg.Shards, cfg.TTL, cfg.EvictionPercentage),
	}
}

func (d *CachedDirectory) AddressOf(ctx context.Context, orgID uuid.UUID) (string, error) {
	return d.cache.GetOrFetch(ctx, orgID.String(), func(ctx context.Context) (string, error) {
		return d.next.AddressOf(ctx, orgID)
	})
}
