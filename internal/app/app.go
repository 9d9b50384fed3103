package app

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/app"
	"github.com/go-faster/sdk/zctx"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/xenking/neostore/internal/domain/product"
	"github.com/xenking/neostore/internal/handler"
	"github.com/xenking/neostore/internal/storage"
	"github.com/xenking/neostore/internal/storage/file"
	"github.com/xenking/neostore/internal/storage/memory"
	"github.com/xenking/neostore/internal/storage/postgres"
	redisstore "github.com/xenking/neostore/internal/storage/redis"
	"github.com/xenking/neostore/internal/storage/remote"
	"github.com/xenking/neostore/internal/storefront"
	"github.com/xenking/neostore/pkg/health"
	"github.com/xenking/neostore/pkg/httpmiddleware"
)

// Run creates all dependencies, starts the HTTP server, loads the catalog in
// the background and handles graceful shutdown. It is the single wiring point
// for the application.
func Run(ctx context.Context, lg *zap.Logger, m *app.Telemetry, cfg *Config) error {
	ctx = zctx.Base(ctx, lg)
	lg.Info("Initializing",
		zap.String("addr", cfg.Addr),
		zap.String("catalog", cfg.Catalog.Source),
		zap.String("storage", cfg.Storage.Backend),
	)

	var pool *pgxpool.Pool
	if cfg.usesPostgres() {
		p, err := postgres.NewPool(ctx, cfg.DatabaseURL)
		if err != nil {
			return errors.Wrap(err, "create db pool")
		}
		defer p.Close()

		if err := postgres.RunMigrations(ctx, p); err != nil {
			return errors.Wrap(err, "run migrations")
		}
		pool = p
	}

	kv, closeKV, err := newStore(cfg, pool)
	if err != nil {
		return errors.Wrap(err, "create storage")
	}
	defer closeKV()

	source, err := newCatalogSource(cfg, pool, m.TracerProvider(), m.MeterProvider())
	if err != nil {
		return errors.Wrap(err, "create catalog source")
	}

	metrics, err := storefront.NewMetrics(m.MeterProvider().Meter("neostore"))
	if err != nil {
		return errors.Wrap(err, "create metrics")
	}

	session := storefront.New(ctx, storefront.Options{
		Source:   source,
		Cart:     storage.NewCartRepository(kv),
		Orders:   storage.NewOrderRepository(kv),
		Listener: storefront.Listeners{storefront.Log{}, metrics},
	})

	healthSvc := health.New()
	registerChecks(healthSvc, cfg.Storage.Backend, kv)
	healthSvc.Start(ctx, 10*time.Second)
	healthSvc.SetReady(true)

	server := &http.Server{
		ReadHeaderTimeout: time.Second,
		ReadTimeout:       5 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    1 << 20,
		Addr:              cfg.Addr,
		Handler: otelhttp.NewHandler(newRouter(lg, cfg, session, healthSvc), "neostore",
			otelhttp.WithTracerProvider(m.TracerProvider()),
			otelhttp.WithMeterProvider(m.MeterProvider()),
		),
	}

	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		loadCtx, cancel := context.WithTimeout(gCtx, cfg.Catalog.Timeout)
		defer cancel()
		// A failure is reported by the listeners and leaves the catalog empty
		// until the next reload.
		_ = session.LoadCatalog(loadCtx)
		return nil
	})
	g.Go(func() error {
		// Graceful shutdown: wait for cancellation, drain, then stop.
		<-gCtx.Done()
		healthSvc.SetReady(false)
		lg.Info("Readiness set to false, draining", zap.Duration("delay", cfg.Graceful.ReadinessDelay))
		time.Sleep(cfg.Graceful.ReadinessDelay)

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Graceful.ShutdownTimeout)
		defer cancel()

		lg.Info("Shutting down server", zap.Duration("timeout", cfg.Graceful.ShutdownTimeout))
		if err := server.Shutdown(shutdownCtx); err != nil {
			lg.Error("Server shutdown error", zap.Error(err))
		}
		healthSvc.Stop()
		return nil
	})
	g.Go(func() error {
		lg.Info("Server listening", zap.String("addr", cfg.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return errors.Wrap(err, "server")
		}
		return nil
	})
	return g.Wait()
}

// registerChecks adds the liveness and readiness checks of the service.
// Catalog state is not a readiness check; after a failed load
// /api/catalog/reload must stay reachable.
func registerChecks(h *health.Health, backend string, kv storage.Pinger) {
	h.Register(health.Readiness, "storage-"+backend, health.PingCheck(kv),
		health.WithTimeout(5*time.Second))
	h.Register(health.Liveness, "goroutines", health.GoroutineCountCheck(10000))
	h.Register(health.Liveness, "gc-pause", health.GCMaxPauseCheck(time.Second))
}

// newRouter builds the HTTP handler: health endpoints and the storefront API
// behind the middleware chain. Request logging runs inside the router so it
// can report the matched route pattern.
func newRouter(lg *zap.Logger, cfg *Config, session *storefront.Session, h *health.Health) http.Handler {
	r := chi.NewRouter()
	r.Use(httpmiddleware.LogRequests(handler.RoutePattern))
	r.Get("/livez", h.LiveEndpoint)
	r.Get("/readyz", h.ReadyEndpoint)
	handler.New(session).Mount(r)

	return httpmiddleware.Wrap(r,
		httpmiddleware.Recovery(),
		httpmiddleware.CORS(httpmiddleware.CORSConfig{
			Origins:     cfg.CORS.Origins,
			Headers:     []string{"Content-Type", httpmiddleware.RequestIDHeader},
			Expose:      []string{httpmiddleware.RequestIDHeader},
			Credentials: cfg.CORS.AllowCredentials,
			MaxAge:      86400,
		}),
		httpmiddleware.RequestID(),
		httpmiddleware.InjectLogger(lg),
	)
}

// store is a KV backend that can report its reachability.
type store interface {
	storage.KV
	storage.Pinger
}

// newStore opens the configured KV backend. The returned func releases it.
func newStore(cfg *Config, pool *pgxpool.Pool) (store, func(), error) {
	noop := func() {}
	switch cfg.Storage.Backend {
	case BackendMemory:
		return memory.New(), noop, nil
	case BackendFile:
		s, err := file.New(cfg.Storage.Dir)
		if err != nil {
			return nil, nil, err
		}
		return s, noop, nil
	case BackendRedis:
		client, err := redisstore.NewClient(redisstore.Options{
			URL:      cfg.Redis.URL,
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err != nil {
			return nil, nil, err
		}
		s := redisstore.New(client, cfg.Storage.KeyPrefix)
		return s, func() { _ = s.Close() }, nil
	case BackendPostgres:
		if pool == nil {
			return nil, nil, errors.New("postgres backend requires a database pool")
		}
		return postgres.NewKVStore(pool), noop, nil
	default:
		return nil, nil, errors.Errorf("unknown storage backend %q", cfg.Storage.Backend)
	}
}

// newCatalogSource returns the configured product source.
func newCatalogSource(
	cfg *Config,
	pool *pgxpool.Pool,
	tp trace.TracerProvider,
	mp metric.MeterProvider,
) (product.Source, error) {
	switch cfg.Catalog.Source {
	case SourceFile:
		return file.NewCatalogSource(cfg.Catalog.Path), nil
	case SourceHTTP:
		return remote.NewCatalogSource(cfg.Catalog.URL, remote.Options{
			Timeout:        cfg.Catalog.Timeout,
			TracerProvider: tp,
			MeterProvider:  mp,
		}), nil
	case SourcePostgres:
		if pool == nil {
			return nil, errors.New("postgres catalog source requires a database pool")
		}
		return postgres.NewProductRepository(pool), nil
	default:
		return nil, errors.Errorf("unknown catalog source %q", cfg.Catalog.Source)
	}
}
