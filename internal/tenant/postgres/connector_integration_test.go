//go:build integration

package postgres

import (
	"context"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	pgstore "github.com/wolfeidau/taskflow/internal/store/postgres"
	"github.com/wolfeidau/taskflow/internal/tenant"
	"github.com/wolfeidau/taskflow/internal/tenant/tenanttest"
)

func startPostgres(t *testing.T, ctx context.Context) string {
	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "postgres:18-alpine",
			ExposedPorts: []string{"5432/tcp"},
			Env: map[string]string{
				"POSTGRES_USER":     "test",
				"POSTGRES_PASSWORD": "test",
				"POSTGRES_DB":       "taskflow_tenants",
			},
			WaitingFor: wait.ForLog("database system is ready to accept connections").WithOccurrence(2),
		},
		Started: true,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Terminate(context.Background()) })

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "5432")
	require.NoError(t, err)

	return fmt.Sprintf("postgres://test:test@%s:%s/taskflow_tenants?sslmode=disable", host, port.Port())
}

func TestIntegration_TenantSchemas(t *testing.T) {
	ctx := context.Background()
	connString := startPostgres(t, ctx)

	admin, err := pgstore.NewPool(ctx, &pgstore.PoolConfig{ConnString: connString, MinConns: 1})
	require.NoError(t, err)
	t.Cleanup(admin.Close)

	connector := NewConnector(admin, pgstore.PoolConfig{ConnString: connString})

	tenanttest.RunCollectionSuite(t, func(t *testing.T) tenant.Conn {
		conn, err := connector.Connect(ctx, tenant.AddressFor(uuid.Must(uuid.NewV7())))
		require.NoError(t, err)
		t.Cleanup(func() { _ = conn.Close() })
		return conn
	})

	t.Run("drop removes the schema", func(t *testing.T) {
		address := tenant.AddressFor(uuid.Must(uuid.NewV7()))

		conn, err := connector.Connect(ctx, address)
		require.NoError(t, err)
		_, err = conn.Bind(ctx, tenant.TaskSchema)
		require.NoError(t, err)
		require.NoError(t, conn.Close())

		exists, err := connector.Exists(ctx, address)
		require.NoError(t, err)
		require.True(t, exists)

		require.NoError(t, connector.Drop(ctx, address))

		exists, err = connector.Exists(ctx, address)
		require.NoError(t, err)
		require.False(t, exists)
	})

	t.Run("tenants are isolated by schema", func(t *testing.T) {
		a, err := connector.Connect(ctx, tenant.AddressFor(uuid.Must(uuid.NewV7())))
		require.NoError(t, err)
		t.Cleanup(func() { _ = a.Close() })
		b, err := connector.Connect(ctx, tenant.AddressFor(uuid.Must(uuid.NewV7())))
		require.NoError(t, err)
		t.Cleanup(func() { _ = b.Close() })

		colA, err := a.Bind(ctx, tenant.ProjectSchema)
		require.NoError(t, err)
		colB, err := b.Bind(ctx, tenant.ProjectSchema)
		require.NoError(t, err)

		doc := tenant.Document{ID: uuid.Must(uuid.NewV7()), Data: []byte(`{"name":"Launch"}`)}
		require.NoError(t, colA.Insert(ctx, doc))

		_, err = colB.Get(ctx, doc.ID)
		require.ErrorIs(t, err, tenant.ErrDocumentNotFound)
	})
}
