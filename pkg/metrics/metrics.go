// Package metrics exposes the Prometheus registry of the storefront edge.
// All metrics are defined in their respective packages (cart, kv, cache,
// precache, client, router) via promauto and registered on the default
// registerer; this package documents them and serves them over HTTP.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry is the default Prometheus registry used by the edge service.
// All metrics are automatically registered via promauto in their respective packages.
var Registry = prometheus.DefaultRegisterer

// Gatherer is the source scraped by Handler.
var Gatherer = prometheus.DefaultGatherer

// Handler serves every registered metric in the Prometheus text format.
func Handler() http.Handler {
	return promhttp.HandlerFor(Gatherer, promhttp.HandlerOpts{})
}

// Metrics Documentation
//
// Cart Metrics (pkg/cart):
//   - storefront_cart_operations_total{operation, result} (Counter): Cart mutations by result (ok, rejected, noop)
//   - storefront_cart_persist_errors_total{stage} (Counter): Persistence failures on load or save
//   - storefront_cart_corrupt_resets_total (Counter): Carts reset because stored state was corrupt
//   - storefront_promo_applications_total{result} (Counter): Promo attempts (applied, unknown, below_minimum, empty)
//   - storefront_cart_tracker_errors_total (Counter): Analytics tracker failures
//   - storefront_cart_registry_engines (Gauge): Cart engines held in memory
//   - storefront_cart_registry_evictions_total{reason} (Counter): Engines dropped (idle, capacity, manual)
//
// Key-Value Metrics (pkg/kv):
//   - storefront_kv_errors_total{operation} (Counter): Backend errors by operation
//   - storefront_kv_migrations_total{key} (Counter): Persisted values migrated to the current schema
//
// Cache Store Metrics (pkg/cache):
//   - storefront_cache_hits_total{store} (Counter): Store hits
//   - storefront_cache_misses_total{store} (Counter): Store misses
//   - storefront_cache_writes_total{store} (Counter): Entries written
//   - storefront_cache_bytes_written_total{store} (Counter): Entry bytes written to Redis stores
//   - storefront_cache_errors_total{operation} (Counter): Backend errors by operation
//
// Precache Metrics (pkg/precache):
//   - storefront_precache_fetches_total{batch, result} (Counter): Install and sync fetches
//
// Origin Metrics (pkg/client):
//   - storefront_origin_requests_total{method, status} (Counter): Upstream requests by HTTP status
//   - storefront_origin_request_duration_seconds{method} (Histogram): Upstream latency
//   - storefront_origin_errors_total{class} (Counter): Errors by class (client, server, rate_limit, network)
//
// Router Metrics (pkg/router):
//   - storefront_router_requests_total{strategy, store, source} (Counter): Answers by source (cache, stale, network, offline, unavailable, passthrough)
//   - storefront_router_request_duration_seconds{strategy} (Histogram): Time to answer
//   - storefront_router_cache_skipped_total{store} (Counter): Per-user responses kept out of the cache
//   - storefront_router_refresh_total{result} (Counter): Background refreshes by result
//   - storefront_router_refresh_pending (Gauge): Refreshes queued or running
//   - storefront_router_stores_deleted_total (Counter): Outdated stores deleted on activation
//   - storefront_router_lifecycle_total{step, result} (Counter): Install, activate and sync outcomes
//
// Example Prometheus Queries:
//
//   # Cache Hit Rate per store
//   sum by (store) (rate(storefront_cache_hits_total[5m])) /
//   (sum by (store) (rate(storefront_cache_hits_total[5m])) + sum by (store) (rate(storefront_cache_misses_total[5m])))
//
//   # Offline answers
//   sum(rate(storefront_router_requests_total{source=~"stale|offline|unavailable"}[5m]))
//
//   # Origin Error Rate
//   rate(storefront_origin_errors_total[5m])
//
//   # P95 Router Latency
//   histogram_quantile(0.95, rate(storefront_router_request_duration_seconds_bucket[5m]))
//
//   # Refresh backlog
//   storefront_router_refresh_pending > 100
