package commands

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"filippo.io/csrf"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
	"github.com/wolfeidau/taskflow/internal/account"
	"github.com/wolfeidau/taskflow/internal/auth"
	"github.com/wolfeidau/taskflow/internal/logger"
	"github.com/wolfeidau/taskflow/internal/members"
	"github.com/wolfeidau/taskflow/internal/provision"
	"github.com/wolfeidau/taskflow/internal/server"
	"github.com/wolfeidau/taskflow/internal/store"
	memorystore "github.com/wolfeidau/taskflow/internal/store/memory"
	postgresstore "github.com/wolfeidau/taskflow/internal/store/postgres"
	"github.com/wolfeidau/taskflow/internal/telemetry"
	"github.com/wolfeidau/taskflow/internal/tenant"
	tenantmemory "github.com/wolfeidau/taskflow/internal/tenant/memory"
	tenantpostgres "github.com/wolfeidau/taskflow/internal/tenant/postgres"
	tenantsqlite "github.com/wolfeidau/taskflow/internal/tenant/sqlite"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

type ServeCmd struct {
	// Server configuration
	Listen string `help:"HTTP server listen address" default:"0.0.0.0:8080" env:"TASKFLOW_LISTEN"`
	Cert   string `help:"path to TLS cert file, serves plain http when empty" default:"" env:"TASKFLOW_TLS_CERT"`
	Key    string `help:"path to TLS key file" default:"" env:"TASKFLOW_TLS_KEY"`

	// CORS configuration
	CORSOrigins []string `help:"allowed browser origins for API requests" default:"http://localhost:5173" env:"TASKFLOW_CORS_ORIGINS"`

	// Observability
	Tracing     bool    `help:"enable tracing and metrics export" default:"false" env:"TASKFLOW_TRACING"`
	SampleRatio float64 `help:"fraction of traces recorded" default:"1" env:"TASKFLOW_TRACE_SAMPLE_RATIO"`

	ShutdownTimeout time.Duration `help:"grace period for in-flight requests on shutdown" default:"15s" env:"TASKFLOW_SHUTDOWN_TIMEOUT"`

	// Store configuration
	StoreType     string             `help:"global store type (memory or postgres)" default:"memory" env:"TASKFLOW_STORE_TYPE" enum:"memory,postgres"`
	PostgresStore PostgresStoreFlags `embed:"" prefix:"postgres-"`
	Tenant        TenantFlags        `embed:"" prefix:"tenant-"`
	Auth          AuthFlags          `embed:"" prefix:"auth-"`
	Cookie        CookieFlags        `embed:"" prefix:"cookie-"`
}

func (c *ServeCmd) Validate() error {
	if c.StoreType == "postgres" || c.Tenant.Backend == "postgres" {
		if err := c.PostgresStore.validate(); err != nil {
			return err
		}
	}
	if (c.Cert == "") != (c.Key == "") {
		return errors.New("TLS certificate and key must be set together (--cert and --key)")
	}
	return errors.Join(c.Tenant.Validate(), c.Auth.Validate(), c.Cookie.Validate())
}

func (c *ServeCmd) Run(ctx context.Context, globals *Globals) error {
	log := logger.Setup(globals.Debug)

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Info().Str("version", globals.Version).Bool("debug", globals.Debug).Msg("Starting server")

	// Setup telemetry if enabled
	if c.Tracing {
		log.Info().Msg("Tracing is enabled")
		shutdown, err := telemetry.InitTelemetry(ctx, telemetry.Config{
			ServiceName: "taskflow-server",
			Version:     globals.Version,
			SampleRatio: c.SampleRatio,
		})
		if err != nil {
			log.Warn().Err(err).Msg("Failed to initialize telemetry, continuing without metrics")
			shutdown = func(ctx context.Context) error { return nil }
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := shutdown(shutdownCtx); err != nil {
				log.Error().Err(err).Msg("Failed to shutdown telemetry")
			}
		}()
	}

	var pool *pgxpool.Pool
	if c.StoreType == "postgres" || c.Tenant.Backend == "postgres" {
		var err error
		pool, err = postgresstore.NewPool(ctx, c.PostgresStore.poolConfig())
		if err != nil {
			return fmt.Errorf("failed to create connection pool: %w", err)
		}
		defer pool.Close()
	}

	stores, err := c.globalStores(ctx, log, pool)
	if err != nil {
		return err
	}

	connector, err := c.tenantConnector(log, pool)
	if err != nil {
		return err
	}

	registry := tenant.NewRegistry(connector, tenant.WithConnectTimeout(c.Tenant.ConnectTimeout))
	defer func() {
		if err := registry.Close(); err != nil {
			log.Error().Err(err).Msg("Failed to close tenant stores")
		}
	}()

	codec, err := auth.NewTokenCodec(c.Auth.tokenConfig())
	if err != nil {
		return fmt.Errorf("failed to create token codec: %w", err)
	}

	cookies, err := c.Cookie.config(globals.Debug)
	if err != nil {
		return err
	}

	directory := tenant.NewCachedDirectory(
		tenant.NewStoreDirectory(stores.Organizations),
		tenant.CacheConfig{TTL: c.Tenant.DirectoryTTL},
	)

	api := server.NewServer(server.Config{
		Accounts: account.NewService(stores, codec, account.TTLs{
			Access:  c.Auth.AccessTTL,
			Refresh: c.Auth.RefreshTTL,
		}),
		Orchestrator: provision.NewOrchestrator(stores, registry, tenant.DefaultCatalog),
		Members:      members.NewService(stores.Users, stores.Memberships),
		Resolver:     tenant.NewResolver(directory, registry, tenant.DefaultCatalog),
		Gate:         auth.NewGate(codec, stores.Memberships),
		Cookies:      cookies,
	})

	handler, err := c.wrapHandler(api.Handler(log))
	if err != nil {
		return err
	}

	srv := configureHTTPServer(c.Listen, handler)

	errCh := make(chan error, 1)
	go func() {
		log.Info().
			Str("addr", c.Listen).
			Bool("tls", c.Cert != "").
			Str("store", c.StoreType).
			Str("tenant_backend", c.Tenant.Backend).
			Msg("Starting HTTP server")
		if c.Cert != "" {
			errCh <- srv.ListenAndServeTLS(c.Cert, c.Key)
			return
		}
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	log.Info().Msg("Shutting down HTTP server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), c.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shutdown HTTP server: %w", err)
	}
	return nil
}

func (c *ServeCmd) globalStores(ctx context.Context, log zerolog.Logger, pool *pgxpool.Pool) (store.Stores, error) {
	if c.StoreType != "postgres" {
		log.Info().Msg("Using in-memory global stores")
		return memorystore.NewStores(), nil
	}

	// Run migrations if enabled
	if c.PostgresStore.AutoMigrate {
		if err := postgresstore.RunMigrations(ctx, pool); err != nil {
			return store.Stores{}, fmt.Errorf("failed to run migrations: %w", err)
		}
		log.Info().Msg("Database migrations completed")
	}

	log.Info().Msg("Using PostgreSQL global stores")
	return postgresstore.NewStores(pool), nil
}

func (c *ServeCmd) tenantConnector(log zerolog.Logger, pool *pgxpool.Pool) (tenant.Connector, error) {
	switch c.Tenant.Backend {
	case "postgres":
		tmpl := *c.PostgresStore.poolConfig()
		tmpl.MaxConns = c.Tenant.MaxConns
		tmpl.MinConns = 0
		log.Info().Msg("Using schema-per-tenant PostgreSQL stores")
		return tenantpostgres.NewConnector(pool, tmpl), nil
	case "sqlite":
		connector, err := tenantsqlite.NewConnector(c.Tenant.Dir)
		if err != nil {
			return nil, err
		}
		log.Info().Str("dir", connector.Dir).Msg("Using file-per-tenant SQLite stores")
		return connector, nil
	default:
		log.Warn().Msg("Using in-memory tenant stores, data is lost on restart")
		return tenantmemory.NewConnector(), nil
	}
}

// wrapHandler adds cross-origin protection for cookie-authenticated browser
// requests, CORS for the UI origins, and tracing when enabled.
func (c *ServeCmd) wrapHandler(h http.Handler) (http.Handler, error) {
	protection := csrf.New()
	for _, origin := range c.CORSOrigins {
		if err := protection.AddTrustedOrigin(origin); err != nil {
			return nil, fmt.Errorf("invalid CORS origin %q: %w", origin, err)
		}
	}

	handler := withCORS(c.CORSOrigins, protection.Handler(h))

	if c.Tracing {
		handler = otelhttp.NewHandler(handler, "taskflow",
			otelhttp.WithFilter(func(r *http.Request) bool { return r.URL.Path != "/health" }),
		)
	}
	return handler, nil
}
