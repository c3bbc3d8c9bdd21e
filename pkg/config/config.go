// Package config loads the edge service configuration from environment
// variables.
package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/Sternrassler/storefront-edge/pkg/locale"
	"github.com/caarlos0/env/v11"
)

// Config holds the edge service configuration.
type Config struct {
	// Server
	Port string `env:"PORT" envDefault:"8080"`

	// RedisURL selects the Redis backend for cart state and cache stores.
	// Empty means in-memory stores (single instance, lost on restart).
	RedisURL string `env:"REDIS_URL"`

	// OriginURL is the storefront origin the router fetches from (REQUIRED).
	OriginURL string `env:"ORIGIN_URL,required"`

	// Logging
	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogPretty bool   `env:"LOG_PRETTY" envDefault:"false"`

	// Cache stores are named <namespace>-<kind>-<version>. Changing the
	// version invalidates every store on the next activation.
	CacheNamespace string `env:"CACHE_NAMESPACE" envDefault:"butterfly"`
	CacheVersion   string `env:"CACHE_VERSION" envDefault:"v1"`

	// Install
	ShellAssets         []string `env:"SHELL_ASSETS" envSeparator:"," envDefault:"/,/index.html,/offline.html,/manifest.json,/favicon.ico"`
	AssetManifestPath   string   `env:"ASSET_MANIFEST_PATH" envDefault:"/asset-manifest.json"`
	CriticalFonts       []string `env:"CRITICAL_FONTS" envSeparator:"," envDefault:"https://fonts.googleapis.com/css2?family=Cairo:wght@400;600;700&display=swap,https://fonts.googleapis.com/css2?family=Poppins:wght@400;500;600&display=swap"`
	OfflinePage         string   `env:"OFFLINE_PAGE" envDefault:"/offline.html"`
	PrecacheConcurrency int      `env:"PRECACHE_CONCURRENCY" envDefault:"6"`

	// Periodic sync
	SyncRoutes   []string      `env:"SYNC_ROUTES" envSeparator:"," envDefault:"/,/products,/categories"`
	SyncInterval time.Duration `env:"SYNC_INTERVAL" envDefault:"12h"`

	// Background refresh
	RefreshWorkers int           `env:"REFRESH_WORKERS" envDefault:"4"`
	RefreshQueue   int           `env:"REFRESH_QUEUE" envDefault:"256"`
	RefreshTimeout time.Duration `env:"REFRESH_TIMEOUT" envDefault:"15s"`

	// FetchTimeout bounds every upstream request.
	FetchTimeout time.Duration `env:"FETCH_TIMEOUT" envDefault:"30s"`

	// Cart engines unused for CartIdleTTL are dropped from memory; at most
	// CartMaxEngines are held at once. Persisted cart state is unaffected.
	CartIdleTTL    time.Duration `env:"CART_IDLE_TTL" envDefault:"30m"`
	CartMaxEngines int           `env:"CART_MAX_ENGINES" envDefault:"10000"`

	// Currency is the ISO 4217 code used to format cart totals.
	Currency string `env:"CURRENCY" envDefault:"SAR"`
}

// Load parses the configuration from the environment and validates it.
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks values that env tags cannot express.
func (c Config) Validate() error {
	origin, err := url.Parse(c.OriginURL)
	if err != nil {
		return fmt.Errorf("origin_url: %w", err)
	}
	if origin.Scheme != "http" && origin.Scheme != "https" {
		return fmt.Errorf("origin_url must be http or https (got %q)", c.OriginURL)
	}
	if origin.Host == "" {
		return fmt.Errorf("origin_url must include a host (got %q)", c.OriginURL)
	}

	if strings.TrimSpace(c.CacheNamespace) == "" {
		return fmt.Errorf("cache_namespace is required")
	}
	if strings.TrimSpace(c.CacheVersion) == "" {
		return fmt.Errorf("cache_version is required")
	}

	if c.RefreshWorkers < 1 {
		return fmt.Errorf("refresh_workers must be >= 1 (got %d)", c.RefreshWorkers)
	}
	if c.RefreshQueue < 1 {
		return fmt.Errorf("refresh_queue must be >= 1 (got %d)", c.RefreshQueue)
	}
	if c.PrecacheConcurrency < 1 {
		return fmt.Errorf("precache_concurrency must be >= 1 (got %d)", c.PrecacheConcurrency)
	}
	if c.SyncInterval < 0 {
		return fmt.Errorf("sync_interval must not be negative")
	}
	if c.CartIdleTTL <= 0 {
		return fmt.Errorf("cart_idle_ttl must be positive (got %s)", c.CartIdleTTL)
	}
	if c.CartMaxEngines < 1 {
		return fmt.Errorf("cart_max_engines must be >= 1 (got %d)", c.CartMaxEngines)
	}
	if _, err := locale.ParseCurrency(c.Currency); err != nil {
		return fmt.Errorf("currency: %w", err)
	}

	return nil
}

// Origin returns the parsed origin URL. Call only after Validate succeeded.
func (c Config) Origin() *url.URL {
	u, _ := url.Parse(c.OriginURL)
	return u
}
