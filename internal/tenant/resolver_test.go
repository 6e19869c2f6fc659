package tenant_test

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"github.com/wolfeidau/taskflow/internal/errs"
	"github.com/wolfeidau/taskflow/internal/models"
	"github.com/wolfeidau/taskflow/internal/store"
	storemem "github.com/wolfeidau/taskflow/internal/store/memory"
	"github.com/wolfeidau/taskflow/internal/tenant"
	"github.com/wolfeidau/taskflow/internal/tenant/memory"
)

func createOrg(t *testing.T, orgs store.OrganizationStore, name string) *models.Organization {
	t.Helper()
	owner := uuid.Must(uuid.NewV7())
	now := time.Now().UTC()
	org := &models.Organization{
		ID:        uuid.Must(uuid.NewV7()),
		Name:      name,
		Slug:      name + "-" + owner.String()[:8],
		DBAddress: tenant.AddressFor(owner),
		OwnerID:   owner,
		CreatedAt: now,
		UpdatedAt: now,
	}
	require.NoError(t, orgs.Create(context.Background(), org))
	return org
}

func TestResolver(t *testing.T) {
	ctx := context.Background()

	t.Run("organizations never see each other's data", func(t *testing.T) {
		orgs := storemem.NewOrganizationStore()
		resolver := tenant.NewResolver(
			tenant.NewStoreDirectory(orgs),
			tenant.NewRegistry(memory.NewConnector()),
			tenant.DefaultCatalog,
		)
		acme := createOrg(t, orgs, "acme")
		globex := createOrg(t, orgs, "globex")

		acmeCtx, err := resolver.Resolve(ctx, acme.ID)
		require.NoError(t, err)
		require.Equal(t, acme.ID, acmeCtx.OrgID)
		require.Equal(t, acme.DBAddress, acmeCtx.Accessors.Address())

		doc := tenant.Document{ID: uuid.Must(uuid.NewV7()), Data: []byte(`{"name":"Roadrunner"}`)}
		require.NoError(t, acmeCtx.Accessors.Projects().Insert(ctx, doc))

		globexCtx, err := resolver.Resolve(ctx, globex.ID)
		require.NoError(t, err)
		require.NotEqual(t, acmeCtx.Handle.Address(), globexCtx.Handle.Address())

		_, err = globexCtx.Accessors.Projects().Get(ctx, doc.ID)
		require.ErrorIs(t, err, tenant.ErrDocumentNotFound)

		all, err := globexCtx.Accessors.Projects().Find(ctx, nil)
		require.NoError(t, err)
		require.Empty(t, all)
	})

	t.Run("repeat resolves reuse the handle and accessors", func(t *testing.T) {
		orgs := storemem.NewOrganizationStore()
		connector := memory.NewConnector()
		resolver := tenant.NewResolver(tenant.NewStoreDirectory(orgs), tenant.NewRegistry(connector), tenant.DefaultCatalog)
		org := createOrg(t, orgs, "initech")

		first, err := resolver.Resolve(ctx, org.ID)
		require.NoError(t, err)
		second, err := resolver.Resolve(ctx, org.ID)
		require.NoError(t, err)

		require.Same(t, first.Handle, second.Handle)
		require.Same(t, first.Accessors, second.Accessors)
		require.EqualValues(t, 1, connector.Connects())
	})

	t.Run("unknown organization is not found", func(t *testing.T) {
		resolver := tenant.NewResolver(
			tenant.NewStoreDirectory(storemem.NewOrganizationStore()),
			tenant.NewRegistry(memory.NewConnector()),
			tenant.DefaultCatalog,
		)
		_, err := resolver.Resolve(ctx, uuid.Must(uuid.NewV7()))
		require.True(t, errs.Is(err, errs.NotFound))
	})
}

// countingDirectory counts lookups that reach the wrapped directory.
type countingDirectory struct {
	next  tenant.Directory
	calls atomic.Int64
}

func (d *countingDirectory) AddressOf(ctx context.Context, orgID uuid.UUID) (string, error) {
	d.calls.Add(1)
	return d.next.AddressOf(ctx, orgID)
}

func TestCachedDirectory(t *testing.T) {
	ctx := context.Background()

	t.Run("hits are served from cache", func(t *testing.T) {
		orgs := storemem.NewOrganizationStore()
		org := createOrg(t, orgs, "hooli")
		counting := &countingDirectory{next: tenant.NewStoreDirectory(orgs)}
		dir := tenant.NewCachedDirectory(counting, tenant.CacheConfig{})

		for range 5 {
			address, err := dir.AddressOf(ctx, org.ID)
			require.NoError(t, err)
			require.Equal(t, org.DBAddress, address)
		}
		require.EqualValues(t, 1, counting.calls.Load())
	})

	t.Run("misses are not cached", func(t *testing.T) {
		orgs := storemem.NewOrganizationStore()
		counting := &countingDirectory{next: tenant.NewStoreDirectory(orgs)}
		dir := tenant.NewCachedDirectory(counting, tenant.CacheConfig{})
		missing := uuid.Must(uuid.NewV7())

		for range 2 {
			_, err := dir.AddressOf(ctx, missing)
			require.True(t, errs.Is(err, errs.NotFound))
		}
		require.EqualValues(t, 2, counting.calls.Load())
	})
}

func TestAddress(t *testing.T) {
	owner := uuid.MustParse("0192f0a4-6c1e-7b3a-9d2f-5e4c3b2a1908")

	address := tenant.AddressFor(owner)
	require.Equal(t, "taskflow_org_0192f0a46c1e7b3a9d2f5e4c3b2a1908", address)
	require.Equal(t, address, tenant.AddressFor(owner))
	require.True(t, tenant.ValidAddress(address))

	for _, bad := range []string{"", "taskflow_org_", "taskflow_org_XYZ", "../taskflow_org_0192f0a46c1e7b3a9d2f5e4c3b2a1908", "other_0192f0a46c1e7b3a9d2f5e4c3b2a1908"} {
		require.False(t, tenant.ValidAddress(bad), bad)
	}
}
