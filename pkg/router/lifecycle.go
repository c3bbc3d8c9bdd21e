package router

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/url"
	"path"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/Sternrassler/storefront-edge/pkg/cache"
	"github.com/Sternrassler/storefront-edge/pkg/precache"
)

// AssetManifest is a create-react-app style build manifest.
type AssetManifest struct {
	Files       map[string]string `json:"files"`
	Entrypoints []string          `json:"entrypoints"`
}

// CriticalAssets returns the manifest's .js, .css and .html paths, sorted
// and rooted at "/".
func (m AssetManifest) CriticalAssets() []string {
	seen := make(map[string]bool)
	add := func(p string) {
		p = strings.TrimSpace(p)
		if p == "" {
			return
		}
		switch strings.ToLower(path.Ext(p)) {
		case ".js", ".css", ".html":
		default:
			return
		}
		if u, err := url.Parse(p); err == nil && !u.IsAbs() && !strings.HasPrefix(p, "/") {
			p = "/" + p
		}
		seen[p] = true
	}

	for _, p := range m.Files {
		add(p)
	}
	for _, p := range m.Entrypoints {
		add(p)
	}

	out := make([]string, 0, len(seen))
	for p := range seen {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

// staged collects precached entries before they are committed.
type staged struct {
	mu      sync.Mutex
	entries map[string]*cache.Entry
}

func (s *staged) add(key string, entry *cache.Entry) {
	s.mu.Lock()
	s.entries[key] = entry
	s.mu.Unlock()
}

// precacheTarget fetches one target into st.
func (r *Router) precacheTarget(ctx context.Context, st *staged, target string) error {
	u, err := url.Parse(target)
	if err != nil {
		return fmt.Errorf("parse %q: %w", target, err)
	}
	resolved := r.upstream.ResolveURL(u)

	resp, err := r.upstream.Get(ctx, resolved.String())
	if err != nil {
		return err
	}
	entry, err := cache.ResponseToEntry(resp, r.now())
	if err != nil {
		return err
	}
	key := cache.RequestKey(resolved)
	entry.URL = key
	st.add(key, entry)
	return nil
}

// precacheInto fetches targets and writes them to store. With atomic set,
// nothing is written unless every target succeeded.
func (r *Router) precacheInto(ctx context.Context, batch string, store cache.Store, targets []string, atomic bool) error {
	st := &staged{entries: make(map[string]*cache.Entry)}
	fetcher := precache.NewBatchFetcher(precache.FetcherFunc(func(ctx context.Context, target string) error {
		return r.precacheTarget(ctx, st, target)
	}), r.precache)
	result, err := fetcher.FetchAll(ctx, batch, targets)
	if err != nil {
		return err
	}
	if atomic {
		if err := result.Err(); err != nil {
			return err
		}
	}

	for key, entry := range st.entries {
		if err := store.Put(ctx, key, entry); err != nil {
			return fmt.Errorf("store %s: %w", key, err)
		}
	}
	return result.Err()
}

// Install precaches the shell into the static store. Shell assets are
// all-or-nothing; the asset manifest and critical fonts are best effort.
// On success the router is immediately ready to activate.
func (r *Router) Install(ctx context.Context) error {
	r.mu.Lock()
	switch r.state {
	case StateInstalling:
		r.mu.Unlock()
		return ErrInstalling
	case StateNew, StateRedundant:
		r.state = StateInstalling
		r.mu.Unlock()
	default:
		state := r.state
		r.mu.Unlock()
		r.logger.Debug().Str("state", string(state)).Msg("Already installed")
		return nil
	}

	start := time.Now()
	r.logger.Info().Str("version", r.config.Version).Msg("Installing")

	static, err := r.store(ctx, cache.KindStatic)
	if err != nil {
		return r.failInstall(err)
	}

	if err := r.precacheInto(ctx, "shell", static, r.config.ShellAssets, true); err != nil {
		return r.failInstall(fmt.Errorf("precache shell: %w", err))
	}

	if r.config.AssetManifestPath != "" {
		if err := r.precacheManifest(ctx, static); err != nil {
			r.logger.Warn().Err(err).Str("manifest", r.config.AssetManifestPath).Msg("Asset manifest precache failed")
		}
	}

	if len(r.config.CriticalFonts) > 0 {
		if err := r.precacheInto(ctx, "fonts", static, r.config.CriticalFonts, false); err != nil {
			r.logger.Warn().Err(err).Msg("Critical font precache failed")
		}
	}

	// Skip waiting: activation may follow immediately.
	r.setState(StateInstalled)
	lifecycleTotal.WithLabelValues("install", "ok").Inc()
	r.logger.Info().
		Str("version", r.config.Version).
		Dur("duration", time.Since(start)).
		Msg("Installed")
	return nil
}

func (r *Router) failInstall(err error) error {
	r.setState(StateRedundant)
	lifecycleTotal.WithLabelValues("install", "error").Inc()
	r.logger.Error().Err(err).Str("version", r.config.Version).Msg("Install failed")
	return err
}

func (r *Router) precacheManifest(ctx context.Context, static cache.Store) error {
	resp, err := r.upstream.Get(ctx, r.config.AssetManifestPath)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read manifest: %w", err)
	}
	var manifest AssetManifest
	if err := json.Unmarshal(body, &manifest); err != nil {
		return fmt.Errorf("decode manifest: %w", err)
	}

	assets := manifest.CriticalAssets()
	r.logger.Debug().Int("assets", len(assets)).Msg("Asset manifest loaded")
	return r.precacheInto(ctx, "manifest", static, assets, false)
}

// Activate deletes every store whose name lacks the current version and
// starts routing requests.
func (r *Router) Activate(ctx context.Context) error {
	state := r.State()
	if state == StateActive {
		return nil
	}
	if state != StateInstalled {
		return fmt.Errorf("%w (state %s)", ErrNotInstalled, state)
	}

	names, err := r.storage.Names(ctx)
	if err != nil {
		lifecycleTotal.WithLabelValues("activate", "error").Inc()
		return fmt.Errorf("list stores: %w", err)
	}

	deleted := 0
	for _, name := range names {
		if cache.IsCurrent(name, r.config.Version) {
			continue
		}
		existed, err := r.storage.Remove(ctx, name)
		if err != nil {
			lifecycleTotal.WithLabelValues("activate", "error").Inc()
			return fmt.Errorf("delete store %s: %w", name, err)
		}
		if existed {
			deleted++
			storesDeletedTotal.Inc()
			r.logger.Info().Str("store", name).Msg("Deleted outdated cache store")
		}
	}

	r.setState(StateActive)
	lifecycleTotal.WithLabelValues("activate", "ok").Inc()
	r.logger.Info().
		Str("version", r.config.Version).
		Int("deleted_stores", deleted).
		Msg("Activated")
	return nil
}

// PeriodicSync refetches the sync routes into the dynamic store.
// Failed routes keep their previous entries.
func (r *Router) PeriodicSync(ctx context.Context) error {
	dynamic, err := r.store(ctx, cache.KindDynamic)
	if err != nil {
		lifecycleTotal.WithLabelValues("sync", "error").Inc()
		return err
	}
	if err := r.precacheInto(ctx, "sync", dynamic, r.config.SyncRoutes, false); err != nil {
		lifecycleTotal.WithLabelValues("sync", "error").Inc()
		return fmt.Errorf("periodic sync: %w", err)
	}
	lifecycleTotal.WithLabelValues("sync", "ok").Inc()
	return nil
}

// RunPeriodicSync calls PeriodicSync every interval until ctx ends.
// A non-positive interval disables it.
func (r *Router) RunPeriodicSync(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		r.logger.Info().Msg("Periodic sync disabled")
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if r.State() != StateActive {
				continue
			}
			if err := r.PeriodicSync(ctx); err != nil {
				r.logger.Warn().Err(err).Msg("Periodic sync failed")
			}
		}
	}
}
