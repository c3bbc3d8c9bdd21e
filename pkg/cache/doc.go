// Package cache provides named, versioned HTTP response stores with memory
// and Redis backends.
//
// Stores come in four kinds (static, dynamic, images, api) and are named
// <namespace>-<kind>-<version>. Bumping the version is the only
// invalidation mechanism: stores whose name lacks the current version are
// removed when the router activates.
//
// # Basic Usage
//
//	storage := cache.NewRedisStorage(redisClient, "butterfly")
//
//	store, err := storage.Open(ctx, cache.StoreName("butterfly", cache.KindImages, "v1"))
//	if err != nil {
//		return err
//	}
//
//	key := cache.RequestKey(req.URL)
//	entry, err := store.Match(ctx, key)
//	if errors.Is(err, cache.ErrCacheMiss) {
//		// fetch from network
//	}
//
// # Freshness
//
// Entries are never expired by the backend. Cache-first writes stamp the
// sw-cached-at header (Unix milliseconds) and readers compare its age with
// the store's max age:
//
//	entry.Stamp(time.Now())
//	if entry.IsFresh(time.Now(), 30*24*time.Hour) {
//		return cache.EntryToResponse(entry, req)
//	}
//
// # Metrics
//
//   - storefront_cache_hits_total{store}
//   - storefront_cache_misses_total{store}
//   - storefront_cache_writes_total{store}
//   - storefront_cache_bytes_written_total{store}
//   - storefront_cache_errors_total{operation}
package cache
