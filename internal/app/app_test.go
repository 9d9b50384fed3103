package app

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/xenking/neostore/internal/domain/product"
	"github.com/xenking/neostore/internal/storage"
	"github.com/xenking/neostore/internal/storage/file"
	"github.com/xenking/neostore/internal/storage/memory"
	"github.com/xenking/neostore/internal/storage/remote"
	"github.com/xenking/neostore/internal/storefront"
	"github.com/xenking/neostore/pkg/health"
	"github.com/xenking/neostore/pkg/httpmiddleware"
)

func TestLoadConfig_Defaults(t *testing.T) {
	cfg, err := loadConfig([]string{})
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0:8080", cfg.Addr)
	assert.Equal(t, SourceFile, cfg.Catalog.Source)
	assert.Equal(t, "data/products.json", cfg.Catalog.Path)
	assert.Equal(t, 10*time.Second, cfg.Catalog.Timeout)
	assert.Equal(t, BackendFile, cfg.Storage.Backend)
	assert.Equal(t, []string{"*"}, cfg.CORS.Origins)
	assert.Equal(t, 15*time.Second, cfg.Graceful.ShutdownTimeout)
}

func TestLoadConfig_Env(t *testing.T) {
	t.Setenv("NEOSTORE_STORAGE_BACKEND", "redis")
	t.Setenv("NEOSTORE_REDIS_ADDR", "cache:6379")
	t.Setenv("NEOSTORE_CATALOG_SOURCE", "http")
	t.Setenv("NEOSTORE_CATALOG_URL", "https://cdn.example/products.json")
	t.Setenv("PORT", "9090")

	cfg, err := loadConfig([]string{})
	require.NoError(t, err)

	assert.Equal(t, BackendRedis, cfg.Storage.Backend)
	assert.Equal(t, "cache:6379", cfg.Redis.Addr)
	assert.Equal(t, SourceHTTP, cfg.Catalog.Source)
	assert.Equal(t, "0.0.0.0:9090", cfg.Addr)
}

func TestLoadConfig_PostgresNeedsDatabaseURL(t *testing.T) {
	t.Setenv("NEOSTORE_STORAGE_BACKEND", "postgres")
	t.Setenv("DATABASE_URL", "")

	_, err := loadConfig([]string{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "database URL is required")

	t.Setenv("DATABASE_URL", "postgres://localhost/neostore")
	cfg, err := loadConfig([]string{})
	require.NoError(t, err)
	assert.Equal(t, "postgres://localhost/neostore", cfg.DatabaseURL)
}

func validConfig() Config {
	return Config{
		Catalog: CatalogConfig{Source: SourceFile, Path: "products.json"},
		Storage: StorageConfig{Backend: BackendMemory},
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(*Config)
		wantErr string
	}{
		{name: "valid", modify: func(*Config) {}},
		{
			name:    "unknown source",
			modify:  func(c *Config) { c.Catalog.Source = "ftp" },
			wantErr: `unknown catalog source "ftp"`,
		},
		{
			name:    "file without path",
			modify:  func(c *Config) { c.Catalog.Path = "" },
			wantErr: "catalog path is required",
		},
		{
			name:    "http without url",
			modify:  func(c *Config) { c.Catalog.Source = SourceHTTP },
			wantErr: "catalog URL is required",
		},
		{
			name:    "postgres source without database",
			modify:  func(c *Config) { c.Catalog.Source = SourcePostgres },
			wantErr: "database URL is required",
		},
		{
			name:    "unknown backend",
			modify:  func(c *Config) { c.Storage.Backend = "s3" },
			wantErr: `unknown storage backend "s3"`,
		},
		{
			name:    "file without dir",
			modify:  func(c *Config) { c.Storage.Backend = BackendFile },
			wantErr: "storage dir is required",
		},
		{
			name:    "redis without address",
			modify:  func(c *Config) { c.Storage.Backend = BackendRedis },
			wantErr: "redis URL or address is required",
		},
		{
			name: "redis url",
			modify: func(c *Config) {
				c.Storage.Backend = BackendRedis
				c.Redis.URL = "redis://localhost:6379/1"
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.modify(&cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestNewStore(t *testing.T) {
	ctx := context.Background()

	t.Run("memory", func(t *testing.T) {
		cfg := validConfig()
		kv, release, err := newStore(&cfg, nil)
		require.NoError(t, err)
		defer release()

		require.NoError(t, kv.Put(ctx, storage.CartKey, []byte(`[]`)))
		got, err := kv.Get(ctx, storage.CartKey)
		require.NoError(t, err)
		assert.Equal(t, `[]`, string(got))
		assert.NoError(t, kv.Ping(ctx))
	})

	t.Run("file", func(t *testing.T) {
		cfg := validConfig()
		cfg.Storage.Backend = BackendFile
		cfg.Storage.Dir = t.TempDir()
		kv, release, err := newStore(&cfg, nil)
		require.NoError(t, err)
		defer release()

		assert.IsType(t, &file.Store{}, kv)
		_, err = kv.Get(ctx, storage.LastOrderKey)
		assert.ErrorIs(t, err, storage.ErrKeyNotFound)
	})

	t.Run("redis client is lazy", func(t *testing.T) {
		cfg := validConfig()
		cfg.Storage.Backend = BackendRedis
		cfg.Redis.Addr = "127.0.0.1:1"
		_, release, err := newStore(&cfg, nil)
		require.NoError(t, err)
		release()
	})

	t.Run("postgres without pool", func(t *testing.T) {
		cfg := validConfig()
		cfg.Storage.Backend = BackendPostgres
		_, _, err := newStore(&cfg, nil)
		assert.Error(t, err)
	})
}

func TestNewCatalogSource(t *testing.T) {
	tp := tracenoop.NewTracerProvider()
	mp := metricnoop.NewMeterProvider()

	cfg := validConfig()
	src, err := newCatalogSource(&cfg, nil, tp, mp)
	require.NoError(t, err)
	assert.IsType(t, &file.CatalogSource{}, src)

	cfg.Catalog.Source = SourceHTTP
	cfg.Catalog.URL = "http://127.0.0.1/products.json"
	src, err = newCatalogSource(&cfg, nil, tp, mp)
	require.NoError(t, err)
	assert.IsType(t, &remote.CatalogSource{}, src)

	cfg.Catalog.Source = SourcePostgres
	_, err = newCatalogSource(&cfg, nil, tp, mp)
	assert.Error(t, err)
}

type pingFunc func(ctx context.Context) error

func (f pingFunc) Ping(ctx context.Context) error { return f(ctx) }

func TestRegisterChecks(t *testing.T) {
	h := health.New()
	registerChecks(h, BackendRedis, pingFunc(func(context.Context) error {
		return errors.New("connection refused")
	}))
	h.SetReady(true)
	h.Start(context.Background(), 5*time.Millisecond)
	defer h.Stop()

	assert.Eventually(t, func() bool {
		_, failed := h.Failures(health.Readiness)["storage-redis"]
		return failed
	}, time.Second, 5*time.Millisecond)
	assert.Empty(t, h.Failures(health.Liveness), "goroutine and gc checks pass")
}

func TestNewRouter(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	kv := memory.New()
	session := storefront.New(context.Background(), storefront.Options{
		Source: product.SourceFunc(func(context.Context) ([]product.Product, error) {
			return nil, nil
		}),
		Cart:   storage.NewCartRepository(kv),
		Orders: storage.NewOrderRepository(kv),
	})
	h := health.New()
	h.SetReady(true)

	cfg := validConfig()
	cfg.CORS.Origins = []string{"https://shop.example"}
	srv := newRouter(zap.New(core), &cfg, session, h)

	t.Run("request id and route", func(t *testing.T) {
		rec := httptest.NewRecorder()
		srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/products/p-404", nil))

		assert.NotEmpty(t, rec.Header().Get(httpmiddleware.RequestIDHeader))
		entries := logs.FilterMessage("Request served").All()
		require.NotEmpty(t, entries)
		fields := entries[len(entries)-1].ContextMap()
		assert.Equal(t, "/api/products/{id}", fields["route"])
		assert.Equal(t, rec.Header().Get(httpmiddleware.RequestIDHeader), fields["request_id"])
	})

	t.Run("health", func(t *testing.T) {
		for _, path := range []string{"/livez", "/readyz"} {
			rec := httptest.NewRecorder()
			srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
			assert.Equal(t, http.StatusOK, rec.Code, path)
		}
	})

	t.Run("cors preflight", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodOptions, "/api/cart/items", nil)
		req.Header.Set("Origin", "https://shop.example")
		req.Header.Set("Access-Control-Request-Method", http.MethodPost)
		rec := httptest.NewRecorder()
		srv.ServeHTTP(rec, req)

		assert.Equal(t, "https://shop.example", rec.Header().Get("Access-Control-Allow-Origin"))
	})
}
