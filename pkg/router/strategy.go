package router

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"

	"github.com/Sternrassler/storefront-edge/pkg/cache"
)

// Conditional headers are not replayed on background refreshes: a 304 has
// nothing to store.
var conditionalHeaders = []string{"If-None-Match", "If-Modified-Since", "If-Match", "If-Unmodified-Since", "If-Range"}

// cacheFirst serves a fresh stamped entry without touching the network.
// Stale or missing entries are refetched; a failed fetch falls back to the
// stale entry.
func (r *Router) cacheFirst(req *http.Request, kind cache.Kind, key string) (*http.Response, string) {
	ctx := req.Context()
	store := r.openOrLog(ctx, kind)
	cached := r.match(ctx, store, key)

	if cached != nil && cached.IsFresh(r.now(), MaxAge(kind)) {
		return cache.EntryToResponse(cached, req), "cache"
	}

	if resp, ok := r.fromNetwork(req, store, key, true); ok {
		return resp, "network"
	}
	if cached != nil {
		return cache.EntryToResponse(cached, req), "stale"
	}
	return cache.Unavailable(req, false), "unavailable"
}

// networkFirst prefers the origin and falls back to any current store, then
// to the offline page for HTML navigations.
func (r *Router) networkFirst(req *http.Request, kind cache.Kind, key string) (*http.Response, string) {
	ctx := req.Context()
	store := r.openOrLog(ctx, kind)

	if resp, ok := r.fromNetwork(req, store, key, false); ok {
		return resp, "network"
	}
	if cached := r.matchAny(ctx, kind, key); cached != nil {
		return cache.EntryToResponse(cached, req), "cache"
	}
	if !acceptsHTML(req) {
		return cache.Unavailable(req, false), "unavailable"
	}
	if offline := r.offlinePage(ctx); offline != nil {
		return cache.EntryToResponse(offline, req), "offline"
	}
	return cache.Unavailable(req, true), "unavailable"
}

// staleWhileRevalidate answers from cache immediately and refreshes the
// entry in the background. Misses wait for the network.
func (r *Router) staleWhileRevalidate(req *http.Request, kind cache.Kind, key string) (*http.Response, string) {
	ctx := req.Context()
	store := r.openOrLog(ctx, kind)

	if cached := r.match(ctx, store, key); cached != nil {
		r.revalidate(req, store, key)
		return cache.EntryToResponse(cached, req), "cache"
	}

	if resp, ok := r.fromNetwork(req, store, key, false); ok {
		return resp, "network"
	}
	return cache.Unavailable(req, false), "unavailable"
}

// fromNetwork forwards req and stores a shareable 2xx copy in store, stamped
// with sw-cached-at when stamp is set. It reports false when the origin could
// not be reached or the body could not be read.
func (r *Router) fromNetwork(req *http.Request, store cache.Store, key string, stamp bool) (*http.Response, bool) {
	resp, err := r.upstream.Do(req)
	if err != nil {
		r.logger.Debug().Err(err).Str("url", key).Msg("Network fetch failed")
		return nil, false
	}
	if store == nil || !cache.IsCacheable(resp) {
		return resp, true
	}
	if !cache.IsShareable(req, resp) {
		cacheSkippedTotal.WithLabelValues(store.Name()).Inc()
		return resp, true
	}

	now := r.now()
	entry, err := cache.ResponseToEntry(resp, now)
	if err != nil {
		r.logger.Warn().Err(err).Str("url", key).Msg("Failed to read network response")
		return nil, false
	}
	entry.URL = key
	if stamp {
		entry.Stamp(now)
	}

	// The client may be gone by now; the write still belongs in the cache.
	if err := store.Put(context.WithoutCancel(req.Context()), key, entry); err != nil {
		r.logger.Warn().Err(err).Str("store", store.Name()).Str("url", key).Msg("Failed to store response")
	}
	return resp, true
}

// revalidate queues a background refetch of key into store. Credentialed
// requests are never replayed against the shared store.
func (r *Router) revalidate(req *http.Request, store cache.Store, key string) {
	if cache.IsPrivateRequest(req) {
		return
	}
	header := req.Header.Clone()
	for _, h := range conditionalHeaders {
		header.Del(h)
	}

	r.refresher.Enqueue(store.Name()+" "+key, func(ctx context.Context) error {
		out, err := http.NewRequestWithContext(ctx, http.MethodGet, key, nil)
		if err != nil {
			return fmt.Errorf("build refresh request: %w", err)
		}
		out.Header = header

		resp, err := r.upstream.Do(out)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		if !cache.IsCacheable(resp) {
			return fmt.Errorf("refresh %s: origin returned %d", key, resp.StatusCode)
		}
		if !cache.IsShareable(out, resp) {
			cacheSkippedTotal.WithLabelValues(store.Name()).Inc()
			return store.Delete(ctx, key)
		}
		entry, err := cache.ResponseToEntry(resp, r.now())
		if err != nil {
			return err
		}
		entry.URL = key
		return store.Put(ctx, key, entry)
	})
}

func (r *Router) openOrLog(ctx context.Context, kind cache.Kind) cache.Store {
	store, err := r.store(ctx, kind)
	if err != nil {
		r.logger.Warn().Err(err).Str("store", string(kind)).Msg("Cache store unavailable")
		return nil
	}
	return store
}

// match returns the entry for key, or nil on a miss or a backend error.
func (r *Router) match(ctx context.Context, store cache.Store, key string) *cache.Entry {
	if store == nil {
		return nil
	}
	entry, err := store.Match(ctx, key)
	if err != nil {
		if !errors.Is(err, cache.ErrCacheMiss) {
			r.logger.Warn().Err(err).Str("store", store.Name()).Str("url", key).Msg("Cache read failed")
		}
		return nil
	}
	return entry
}

// matchAny searches the preferred store first, then every other current
// store.
func (r *Router) matchAny(ctx context.Context, preferred cache.Kind, key string) *cache.Entry {
	kinds := append([]cache.Kind{preferred}, cache.Kinds...)
	seen := make(map[cache.Kind]bool, len(kinds))
	for _, kind := range kinds {
		if seen[kind] {
			continue
		}
		seen[kind] = true
		if entry := r.match(ctx, r.openOrLog(ctx, kind), key); entry != nil {
			return entry
		}
	}
	return nil
}

// offlinePage returns the precached offline page from the static store.
func (r *Router) offlinePage(ctx context.Context) *cache.Entry {
	if r.config.OfflinePage == "" {
		return nil
	}
	u, err := url.Parse(r.config.OfflinePage)
	if err != nil {
		return nil
	}
	key := cache.RequestKey(r.upstream.ResolveURL(u))
	return r.match(ctx, r.openOrLog(ctx, cache.KindStatic), key)
}
