package app

import (
	"os"
	"time"

	"github.com/cristalhq/aconfig"
	"github.com/cristalhq/aconfig/aconfigyaml"
	"github.com/go-faster/errors"
)

// Catalog sources.
const (
	SourceFile     = "file"
	SourceHTTP     = "http"
	SourcePostgres = "postgres"
)

// Storage backends.
const (
	BackendMemory   = "memory"
	BackendFile     = "file"
	BackendRedis    = "redis"
	BackendPostgres = "postgres"
)

// Config holds the complete application configuration, loadable from
// environment variables (NEOSTORE_ prefix), flags, or YAML config files.
type Config struct {
	Addr        string `default:"0.0.0.0:8080" usage:"HTTP listen address"`
	DatabaseURL string `usage:"PostgreSQL connection URL (NEOSTORE_DATABASE_URL or DATABASE_URL)" flag:"database-url"`
	Catalog     CatalogConfig
	Storage     StorageConfig
	Redis       RedisConfig
	CORS        CORSConfig
	Graceful    GracefulConfig
}

// CatalogConfig selects where products are loaded from.
type CatalogConfig struct {
	Source  string        `default:"file" usage:"Catalog source: file, http or postgres"`
	Path    string        `default:"data/products.json" usage:"Catalog file, optionally gzip-compressed (.gz)"`
	URL     string        `usage:"Catalog URL for the http source"`
	Timeout time.Duration `default:"10s" usage:"Catalog fetch timeout"`
}

// StorageConfig selects where the cart and the last order are kept.
type StorageConfig struct {
	Backend   string `default:"file" usage:"Storage backend: memory, file, redis or postgres"`
	Dir       string `default:"var/neostore" usage:"Directory for the file backend"`
	KeyPrefix string `default:"" usage:"Key prefix for the redis backend" flag:"key-prefix"`
}

// RedisConfig describes the Redis server of the redis backend.
type RedisConfig struct {
	URL      string `usage:"Redis URL, overrides the other redis fields (e.g. redis://localhost:6379/0)"`
	Addr     string `default:"localhost:6379" usage:"Redis address"`
	Password string `usage:"Redis password"`
	DB       int    `default:"0" usage:"Redis database number"`
}

// CORSConfig controls Cross-Origin Resource Sharing headers.
type CORSConfig struct {
	Origins          []string `default:"*" usage:"Allowed CORS origins"`
	AllowCredentials bool     `default:"false" usage:"Allow credentials (cookies, auth headers)" flag:"cors-credentials"`
}

// GracefulConfig controls graceful shutdown timing.
type GracefulConfig struct {
	ReadinessDelay  time.Duration `default:"3s"  usage:"Delay after readiness=false before shutdown" flag:"readiness-delay"`
	ShutdownTimeout time.Duration `default:"15s" usage:"Maximum shutdown duration" flag:"shutdown-timeout"`
}

// LoadConfig loads configuration from environment variables, YAML config files
// and command-line flags, and applies platform-specific defaults.
func LoadConfig() (*Config, error) {
	return loadConfig(os.Args[1:])
}

func loadConfig(args []string) (*Config, error) {
	var cfg Config
	loader := aconfig.LoaderFor(&cfg, aconfig.Config{
		EnvPrefix: "NEOSTORE",
		Args:      args,
		Files:     []string{"config.yaml", "/etc/neostore/config.yaml"},
		FileDecoders: map[string]aconfig.FileDecoder{
			".yaml": aconfigyaml.New(),
		},
	})
	if err := loader.Load(); err != nil {
		return nil, errors.Wrap(err, "load config")
	}
	cfg.applyPlatformDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// applyPlatformDefaults maps platform-provided environment variables (Railway,
// Render, etc.) that use standard names like DATABASE_URL and PORT to the
// application's NEOSTORE_-prefixed configuration.
func (c *Config) applyPlatformDefaults() {
	if c.DatabaseURL == "" {
		if v := os.Getenv("DATABASE_URL"); v != "" {
			c.DatabaseURL = v
		}
	}
	if port := os.Getenv("PORT"); port != "" && c.Addr == "0.0.0.0:8080" {
		c.Addr = "0.0.0.0:" + port
	}
}

// Validate checks that the selected catalog source and storage backend have
// what they need to start.
func (c *Config) Validate() error {
	switch c.Catalog.Source {
	case SourceFile:
		if c.Catalog.Path == "" {
			return errors.New("catalog path is required for the file source")
		}
	case SourceHTTP:
		if c.Catalog.URL == "" {
			return errors.New("catalog URL is required for the http source")
		}
	case SourcePostgres:
	default:
		return errors.Errorf("unknown catalog source %q", c.Catalog.Source)
	}

	switch c.Storage.Backend {
	case BackendMemory, BackendPostgres:
	case BackendFile:
		if c.Storage.Dir == "" {
			return errors.New("storage dir is required for the file backend")
		}
	case BackendRedis:
		if c.Redis.URL == "" && c.Redis.Addr == "" {
			return errors.New("redis URL or address is required for the redis backend")
		}
	default:
		return errors.Errorf("unknown storage backend %q", c.Storage.Backend)
	}

	if c.usesPostgres() && c.DatabaseURL == "" {
		return errors.New("database URL is required: set NEOSTORE_DATABASE_URL or DATABASE_URL")
	}
	return nil
}

func (c *Config) usesPostgres() bool {
	return c.Catalog.Source == SourcePostgres || c.Storage.Backend == BackendPostgres
}
