package tenant

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/wolfeidau/taskflow/internal/errs"
	"github.com/wolfeidau/taskflow/internal/telemetry"
	"golang.org/x/sync/singleflight"
)

var ErrEmptyAddress = errors.New("tenant store address is required")

// errDropping is the result shared with resolutions that join a Drop.
var errDropping = errors.New("tenant store is being dropped")

const defaultConnectTimeout = 30 * time.Second

// RegistryOption configures a Registry.
type RegistryOption func(*Registry)

// WithConnectTimeout bounds each underlying connect. The bound applies even when
// the caller that started the connect has gone away.
func WithConnectTimeout(d time.Duration) RegistryOption {
	return func(r *Registry) {
		if d > 0 {
			r.connectTimeout = d
		}
	}
}

// Registry caches one live Handle per tenant store address for the life of the
// process. Concurrent resolutions of an address that is not cached yet share a
// single connect; resolutions of different addresses proceed independently.
type Registry struct {
	connector      Connector
	connectTimeout time.Duration
	metrics        *telemetry.Metrics

	mu      sync.RWMutex
	handles map[string]*Handle

	flights singleflight.Group
}

// NewRegistry creates a registry that opens stores with connector.
func NewRegistry(connector Connector, opts ...RegistryOption) *Registry {
	r := &Registry{
		connector:      connector,
		connectTimeout: defaultConnectTimeout,
		metrics:        telemetry.GetMetrics(),
		handles:        make(map[string]*Handle),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *Registry) lookup(address string) *Handle {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.handles[address]
}

// Resolve returns the handle for address, connecting on first use.
//
// Failed connects are never cached. If ctx ends while a connect is in flight the
// caller gets ctx.Err(), but the connect carries on for the remaining waiters and
// its handle is cached when it succeeds.
func (r *Registry) Resolve(ctx context.Context, address string) (*Handle, error) {
	if address == "" {
		return nil, errs.Wrap(errs.Invalid, "tenant store address is required", ErrEmptyAddress)
	}

	if h := r.lookup(address); h != nil {
		r.metrics.TenantCacheHitsTotal.Add(ctx, 1)
		return h, nil
	}

	// the flight outlives the caller that started it
	flightCtx := context.WithoutCancel(ctx)

	ch := r.flights.DoChan(address, func() (any, error) {
		// a flight that finished between lookup and DoChan already cached the handle
		if h := r.lookup(address); h != nil {
			return h, nil
		}
		return r.connect(flightCtx, address)
	})

	select {
	case res := <-ch:
		if errors.Is(res.Err, errDropping) {
			return nil, errs.Wrap(errs.NotFound, "tenant store not found", res.Err)
		}
		if res.Err != nil {
			return nil, errs.Wrap(errs.UpstreamUnavailable, "tenant store unavailable", res.Err)
		}
		return res.Val.(*Handle), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (r *Registry) connect(ctx context.Context, address string) (*Handle, error) {
	ctx, cancel := context.WithTimeout(ctx, r.connectTimeout)
	defer cancel()

	started := time.Now()
	conn, err := r.connector.Connect(ctx, address)
	r.metrics.TenantConnectDuration.Record(ctx, float64(time.Since(started).Milliseconds()))
	if err != nil {
		r.metrics.TenantConnectErrorsTotal.Add(ctx, 1)
		log.Warn().Err(err).Str("address", address).Msg("Tenant store connect failed")
		return nil, fmt.Errorf("connect %s: %w", address, err)
	}

	h := newHandle(address, conn)

	r.mu.Lock()
	r.handles[address] = h
	r.mu.Unlock()

	r.metrics.TenantConnectsTotal.Add(ctx, 1)
	log.Info().
		Str("address", address).
		Dur("duration", time.Since(started)).
		Msg("Connected tenant store")

	return h, nil
}

// Drop evicts the handle for address, closes it and destroys the tenant store.
// It exists for provisioning compensation; nothing else removes handles.
//
// A connect already in flight for address is waited for first, so a handle it
// caches late is evicted and the store it created is destroyed.
func (r *Registry) Drop(ctx context.Context, address string) error {
	if address == "" {
		return ErrEmptyAddress
	}

	ch := r.flights.DoChan(address, func() (any, error) {
		return nil, errDropping
	})
	select {
	case <-ch:
	case <-ctx.Done():
		return ctx.Err()
	}

	r.mu.Lock()
	h, ok := r.handles[address]
	delete(r.handles, address)
	r.mu.Unlock()

	var closeErr error
	if ok {
		closeErr = h.close()
	}

	if err := r.connector.Drop(ctx, address); err != nil {
		return errors.Join(closeErr, fmt.Errorf("drop %s: %w", address, err))
	}

	r.metrics.TenantStoresDroppedTotal.Add(ctx, 1)
	log.Info().Str("address", address).Msg("Dropped tenant store")

	return closeErr
}

// Len returns the number of cached handles.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.handles)
}

// Close closes every cached handle. It is called once at process shutdown.
func (r *Registry) Close() error {
	r.mu.Lock()
	handles := r.handles
	r.handles = make(map[string]*Handle)
	r.mu.Unlock()

	var errList []error
	for address, h := range handles {
		if err := h.close(); err != nil {
			errList = append(errList, fmt.Errorf("close %s: %w", address, err))
		}
	}
	return errors.Join(errList...)
}
