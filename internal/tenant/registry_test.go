package tenant_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"github.com/wolfeidau/taskflow/internal/errs"
	"github.com/wolfeidau/taskflow/internal/tenant"
	"github.com/wolfeidau/taskflow/internal/tenant/memory"
)

// gatedConnector wraps the memory connector so tests can hold connects open,
// count them and make them fail.
type gatedConnector struct {
	inner *memory.Connector

	mu    sync.Mutex
	gates map[string]chan struct{}

	calls    atomic.Int64
	failNext atomic.Int64
}

func newGatedConnector() *gatedConnector {
	return &gatedConnector{inner: memory.NewConnector(), gates: make(map[string]chan struct{})}
}

// hold makes connects to address block until the returned func is called.
func (c *gatedConnector) hold(address string) func() {
	gate := make(chan struct{})
	c.mu.Lock()
	c.gates[address] = gate
	c.mu.Unlock()

	var once sync.Once
	return func() { once.Do(func() { close(gate) }) }
}

func (c *gatedConnector) Connect(ctx context.Context, address string) (tenant.Conn, error) {
	c.calls.Add(1)

	c.mu.Lock()
	gate := c.gates[address]
	c.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	if c.failNext.Load() > 0 {
		c.failNext.Add(-1)
		return nil, errors.New("connection refused")
	}
	return c.inner.Connect(ctx, address)
}

func (c *gatedConnector) Drop(ctx context.Context, address string) error {
	return c.inner.Drop(ctx, address)
}

func newAddress() string {
	return tenant.AddressFor(uuid.Must(uuid.NewV7()))
}

func TestRegistryResolve(t *testing.T) {
	ctx := context.Background()

	t.Run("concurrent first use shares one connect", func(t *testing.T) {
		connector := newGatedConnector()
		registry := tenant.NewRegistry(connector)
		address := newAddress()
		release := connector.hold(address)

		const callers = 64
		handles := make([]*tenant.Handle, callers)
		errList := make([]error, callers)

		var wg sync.WaitGroup
		for i := range callers {
			wg.Add(1)
			go func() {
				defer wg.Done()
				handles[i], errList[i] = registry.Resolve(ctx, address)
			}()
		}

		require.Eventually(t, func() bool { return connector.calls.Load() == 1 }, time.Second, time.Millisecond)
		release()
		wg.Wait()

		for i := range callers {
			require.NoError(t, errList[i])
			require.Same(t, handles[0], handles[i])
		}
		require.EqualValues(t, 1, connector.calls.Load())
		require.Equal(t, 1, registry.Len())
	})

	t.Run("cached handle is returned without connecting", func(t *testing.T) {
		connector := newGatedConnector()
		registry := tenant.NewRegistry(connector)
		address := newAddress()

		first, err := registry.Resolve(ctx, address)
		require.NoError(t, err)
		second, err := registry.Resolve(ctx, address)
		require.NoError(t, err)

		require.Same(t, first, second)
		require.Equal(t, address, first.Address())
		require.EqualValues(t, 1, connector.calls.Load())
	})

	t.Run("failures are not cached", func(t *testing.T) {
		connector := newGatedConnector()
		connector.failNext.Store(1)
		registry := tenant.NewRegistry(connector)
		address := newAddress()

		_, err := registry.Resolve(ctx, address)
		require.Error(t, err)
		require.True(t, errs.Is(err, errs.UpstreamUnavailable))
		require.Equal(t, 0, registry.Len())

		h, err := registry.Resolve(ctx, address)
		require.NoError(t, err)
		require.NotNil(t, h)
		require.EqualValues(t, 2, connector.calls.Load())
	})

	t.Run("slow address does not block others", func(t *testing.T) {
		connector := newGatedConnector()
		registry := tenant.NewRegistry(connector)
		slow, fast := newAddress(), newAddress()
		release := connector.hold(slow)
		defer release()

		slowDone := make(chan error, 1)
		go func() {
			_, err := registry.Resolve(ctx, slow)
			slowDone <- err
		}()

		require.Eventually(t, func() bool { return connector.calls.Load() == 1 }, time.Second, time.Millisecond)

		h, err := registry.Resolve(ctx, fast)
		require.NoError(t, err)
		require.Equal(t, fast, h.Address())

		select {
		case <-slowDone:
			t.Fatal("slow resolve finished before release")
		default:
		}

		release()
		require.NoError(t, <-slowDone)
	})

	t.Run("caller cancellation leaves the connect running", func(t *testing.T) {
		connector := newGatedConnector()
		registry := tenant.NewRegistry(connector)
		address := newAddress()
		release := connector.hold(address)

		cctx, cancel := context.WithCancel(ctx)
		done := make(chan error, 1)
		go func() {
			_, err := registry.Resolve(cctx, address)
			done <- err
		}()

		require.Eventually(t, func() bool { return connector.calls.Load() == 1 }, time.Second, time.Millisecond)
		cancel()
		err := <-done
		require.ErrorIs(t, err, context.Canceled)
		require.True(t, errs.Is(err, errs.Canceled))

		release()

		require.Eventually(t, func() bool { return registry.Len() == 1 }, time.Second, time.Millisecond)
		_, err = registry.Resolve(ctx, address)
		require.NoError(t, err)
		require.EqualValues(t, 1, connector.calls.Load())
	})

	t.Run("connect timeout fails the flight", func(t *testing.T) {
		connector := newGatedConnector()
		registry := tenant.NewRegistry(connector, tenant.WithConnectTimeout(20*time.Millisecond))
		address := newAddress()
		release := connector.hold(address)
		defer release()

		_, err := registry.Resolve(ctx, address)
		require.True(t, errs.Is(err, errs.UpstreamUnavailable))
		require.ErrorIs(t, err, context.DeadlineExceeded)
		require.Equal(t, 0, registry.Len())
	})

	t.Run("empty address is invalid", func(t *testing.T) {
		registry := tenant.NewRegistry(newGatedConnector())
		_, err := registry.Resolve(ctx, "")
		require.True(t, errs.Is(err, errs.Invalid))
		require.ErrorIs(t, err, tenant.ErrEmptyAddress)
	})
}

func TestRegistryDrop(t *testing.T) {
	ctx := context.Background()

	t.Run("drop evicts and destroys the store", func(t *testing.T) {
		connector := newGatedConnector()
		registry := tenant.NewRegistry(connector)
		address := newAddress()

		h, err := registry.Resolve(ctx, address)
		require.NoError(t, err)
		acc, err := tenant.DefaultCatalog.EntitiesFor(ctx, h)
		require.NoError(t, err)

		doc := tenant.Document{ID: uuid.Must(uuid.NewV7()), Data: []byte(`{"name":"Launch"}`)}
		require.NoError(t, acc.Projects().Insert(ctx, doc))

		require.NoError(t, registry.Drop(ctx, address))
		require.Equal(t, 0, registry.Len())
		require.False(t, connector.inner.Exists(address))

		again, err := registry.Resolve(ctx, address)
		require.NoError(t, err)
		require.NotSame(t, h, again)

		acc, err = tenant.DefaultCatalog.EntitiesFor(ctx, again)
		require.NoError(t, err)
		_, err = acc.Projects().Get(ctx, doc.ID)
		require.ErrorIs(t, err, tenant.ErrDocumentNotFound)
	})

	t.Run("drop without a cached handle still destroys the store", func(t *testing.T) {
		connector := newGatedConnector()
		address := newAddress()
		_, err := connector.inner.Connect(ctx, address)
		require.NoError(t, err)

		registry := tenant.NewRegistry(connector)
		require.NoError(t, registry.Drop(ctx, address))
		require.False(t, connector.inner.Exists(address))
	})

	t.Run("drop waits for an abandoned connect", func(t *testing.T) {
		connector := newGatedConnector()
		registry := tenant.NewRegistry(connector)
		address := newAddress()
		release := connector.hold(address)
		defer release()

		cctx, cancel := context.WithCancel(ctx)
		resolved := make(chan error, 1)
		go func() {
			_, err := registry.Resolve(cctx, address)
			resolved <- err
		}()

		require.Eventually(t, func() bool { return connector.calls.Load() == 1 }, time.Second, time.Millisecond)
		cancel()
		require.ErrorIs(t, <-resolved, context.Canceled)

		dropped := make(chan error, 1)
		go func() { dropped <- registry.Drop(ctx, address) }()

		require.Never(t, func() bool { return len(dropped) > 0 }, 50*time.Millisecond, 5*time.Millisecond)

		release()
		require.NoError(t, <-dropped)
		require.Equal(t, 0, registry.Len())
		require.False(t, connector.inner.Exists(address))
	})

	t.Run("drop gives up when its context ends", func(t *testing.T) {
		connector := newGatedConnector()
		registry := tenant.NewRegistry(connector)
		address := newAddress()
		release := connector.hold(address)
		defer release()

		go func() { _, _ = registry.Resolve(ctx, address) }()
		require.Eventually(t, func() bool { return connector.calls.Load() == 1 }, time.Second, time.Millisecond)

		dctx, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
		defer cancel()
		require.ErrorIs(t, registry.Drop(dctx, address), context.DeadlineExceeded)
	})

	t.Run("close releases every handle", func(t *testing.T) {
		registry := tenant.NewRegistry(newGatedConnector())
		for range 3 {
			_, err := registry.Resolve(ctx, newAddress())
			require.NoError(t, err)
		}
		require.Equal(t, 3, registry.Len())
		require.NoError(t, registry.Close())
		require.Equal(t, 0, registry.Len())
	})
}
