// Package router answers storefront requests from versioned cache stores
// and the origin, choosing cache-first, network-first or
// stale-while-revalidate per request.
//
// A Router starts in StateNew and passes every request straight to the
// origin. Install precaches the shell and moves to StateInstalled; Activate
// deletes outdated stores and moves to StateActive, after which GET requests
// are routed through the strategies.
package router

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/Sternrassler/storefront-edge/pkg/cache"
	"github.com/Sternrassler/storefront-edge/pkg/logging"
	"github.com/Sternrassler/storefront-edge/pkg/precache"
	"github.com/rs/zerolog"
)

// State is the router lifecycle state.
type State string

const (
	StateNew        State = "new"
	StateInstalling State = "installing"
	StateInstalled  State = "installed"
	StateActive     State = "active"
	// StateRedundant follows a failed install. Install may be retried.
	StateRedundant State = "redundant"
)

var (
	// ErrNotInstalled is returned by Activate before a successful Install.
	ErrNotInstalled = errors.New("router: not installed")

	// ErrInstalling is returned when Install runs concurrently.
	ErrInstalling = errors.New("router: install in progress")
)

// Upstream fetches from the origin. *client.Client implements it.
type Upstream interface {
	// Do forwards req; only transport failures are errors.
	Do(req *http.Request) (*http.Response, error)
	// Get fetches target; non-2xx statuses are errors.
	Get(ctx context.Context, target string) (*http.Response, error)
	// ResolveURL makes u absolute against the origin.
	ResolveURL(u *url.URL) *url.URL
}

// Config holds router settings.
type Config struct {
	// Store names are <Namespace>-<kind>-<Version>
	Namespace string
	Version   string

	// ShellAssets are precached all-or-nothing on install
	ShellAssets []string
	// AssetManifestPath names an optional build manifest to precache from
	AssetManifestPath string
	// CriticalFonts are optional absolute font URLs to precache
	CriticalFonts []string
	// OfflinePage is served to HTML navigations when nothing else can answer
	OfflinePage string

	// SyncRoutes are refetched into the dynamic store by PeriodicSync
	SyncRoutes []string

	PrecacheConcurrency int
	PrecacheTimeout     time.Duration
}

// DefaultConfig returns the storefront defaults.
func DefaultConfig() Config {
	return Config{
		Namespace:           "butterfly",
		Version:             "v1",
		ShellAssets:         []string{"/", "/index.html", "/offline.html", "/manifest.json", "/favicon.ico"},
		AssetManifestPath:   "/asset-manifest.json",
		OfflinePage:         "/offline.html",
		SyncRoutes:          []string{"/", "/products", "/categories"},
		PrecacheConcurrency: 6,
		PrecacheTimeout:     30 * time.Second,
	}
}

// Options holds the router's collaborators.
type Options struct {
	// Storage holds the cache stores (REQUIRED)
	Storage cache.Storage

	// Upstream reaches the origin (REQUIRED)
	Upstream Upstream

	// Refresher runs background revalidation. When nil the router owns one
	// with default sizing, released by Close.
	Refresher *Refresher

	// Clock overrides time.Now (tests)
	Clock func() time.Time

	// Logger overrides the component logger
	Logger *zerolog.Logger
}

// Router dispatches requests to cache strategies.
type Router struct {
	config    Config
	storage   cache.Storage
	upstream  Upstream
	refresher *Refresher
	owned     bool
	precache  precache.Config
	now       func() time.Time
	logger    zerolog.Logger

	mu     sync.RWMutex
	state  State
	stores map[cache.Kind]cache.Store
}

// New creates a router in StateNew.
func New(config Config, opts Options) (*Router, error) {
	if opts.Storage == nil {
		return nil, fmt.Errorf("cache storage is required")
	}
	if opts.Upstream == nil {
		return nil, fmt.Errorf("upstream is required")
	}
	if strings.TrimSpace(config.Namespace) == "" || strings.TrimSpace(config.Version) == "" {
		return nil, fmt.Errorf("cache namespace and version are required")
	}

	logger := logging.NewLogger(logging.ComponentRouter)
	if opts.Logger != nil {
		logger = *opts.Logger
	}
	clock := opts.Clock
	if clock == nil {
		clock = time.Now
	}

	r := &Router{
		config:    config,
		storage:   opts.Storage,
		upstream:  opts.Upstream,
		refresher: opts.Refresher,
		now:       clock,
		logger:    logger,
		state:     StateNew,
		stores:    make(map[cache.Kind]cache.Store),
	}
	if r.refresher == nil {
		r.refresher = NewRefresher(DefaultRefresherConfig())
		r.owned = true
	}
	r.precache = precache.Config{
		MaxConcurrency: config.PrecacheConcurrency,
		Timeout:        config.PrecacheTimeout,
	}

	return r, nil
}

// State returns the lifecycle state.
func (r *Router) State() State {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.state
}

func (r *Router) setState(s State) {
	r.mu.Lock()
	prev := r.state
	r.state = s
	r.mu.Unlock()

	if prev != s {
		r.logger.Info().
			Str("from", string(prev)).
			Str("to", string(s)).
			Msg("Router state changed")
	}
}

// StoreName returns the current name of the store for kind.
func (r *Router) StoreName(kind cache.Kind) string {
	return cache.StoreName(r.config.Namespace, kind, r.config.Version)
}

// store opens the current store for kind, reusing the handle.
func (r *Router) store(ctx context.Context, kind cache.Kind) (cache.Store, error) {
	r.mu.RLock()
	st, ok := r.stores[kind]
	r.mu.RUnlock()
	if ok {
		return st, nil
	}

	st, err := r.storage.Open(ctx, r.StoreName(kind))
	if err != nil {
		return nil, fmt.Errorf("open %s store: %w", kind, err)
	}

	r.mu.Lock()
	r.stores[kind] = st
	r.mu.Unlock()
	return st, nil
}

// Fetch answers req. It always returns a response: network data, cached
// data or a synthetic 503. The caller closes the body.
func (r *Router) Fetch(req *http.Request) *http.Response {
	start := time.Now()

	if req.Method != http.MethodGet || r.State() != StateActive {
		resp := r.passthrough(req)
		routerRequestsTotal.WithLabelValues("none", "none", "passthrough").Inc()
		return resp
	}

	target := r.upstream.ResolveURL(req.URL)
	route := Classify(target)
	key := cache.RequestKey(target)

	var (
		resp   *http.Response
		source string
	)
	switch route.Strategy {
	case CacheFirst:
		resp, source = r.cacheFirst(req, route.Kind, key)
	case NetworkFirst:
		resp, source = r.networkFirst(req, route.Kind, key)
	default:
		resp, source = r.staleWhileRevalidate(req, route.Kind, key)
	}

	routerRequestsTotal.WithLabelValues(string(route.Strategy), string(route.Kind), source).Inc()
	routerRequestDuration.WithLabelValues(string(route.Strategy)).Observe(time.Since(start).Seconds())
	r.logger.Debug().
		Str("url", key).
		Str("strategy", string(route.Strategy)).
		Str("store", string(route.Kind)).
		Str("source", source).
		Int("status", resp.StatusCode).
		Msg("Request routed")

	return resp
}

// passthrough forwards req without touching any store.
func (r *Router) passthrough(req *http.Request) *http.Response {
	resp, err := r.upstream.Do(req)
	if err != nil {
		r.logger.Debug().Err(err).Str("method", req.Method).Str("path", req.URL.Path).Msg("Passthrough failed")
		return cache.Unavailable(req, acceptsHTML(req))
	}
	return resp
}

// ServeHTTP implements http.Handler.
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	resp := r.Fetch(req)
	defer resp.Body.Close()

	header := w.Header()
	for k, vs := range resp.Header {
		header[k] = append([]string(nil), vs...)
	}
	w.WriteHeader(resp.StatusCode)

	if req.Method == http.MethodHead {
		return
	}
	if _, err := io.Copy(w, resp.Body); err != nil {
		r.logger.Debug().Err(err).Str("path", req.URL.Path).Msg("Client went away while writing response")
	}
}

// Close releases the refresher when the router owns it.
func (r *Router) Close(ctx context.Context) error {
	if !r.owned {
		return nil
	}
	return r.refresher.Close(ctx)
}

func acceptsHTML(req *http.Request) bool {
	return strings.Contains(req.Header.Get("Accept"), "text/html")
}
