package cache

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// CacheHits tracks cache hits by store
	CacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "storefront_cache_hits_total",
			Help: "Total number of cache store hits",
		},
		[]string{"store"},
	)

	// CacheMisses tracks cache misses by store
	CacheMisses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "storefront_cache_misses_total",
			Help: "Total number of cache store misses",
		},
		[]string{"store"},
	)

	// CacheWrites tracks entries written by store
	CacheWrites = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "storefront_cache_writes_total",
			Help: "Total number of entries written to cache stores",
		},
		[]string{"store"},
	)

	// CacheBytesWritten counts entry bytes written to Redis by store
	CacheBytesWritten = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "storefront_cache_bytes_written_total",
			Help: "Total entry bytes written to Redis cache stores",
		},
		[]string{"store"},
	)

	// CacheErrors tracks cache operation errors
	CacheErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "storefront_cache_errors_total",
			Help: "Total number of cache operation errors",
		},
		[]string{"operation"}, // "open", "names", "remove", "get", "set", "delete", "keys"
	)
)
