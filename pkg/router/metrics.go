package router

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	routerRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "storefront_router_requests_total",
		Help: "Total requests answered by the router by strategy, store and source",
	}, []string{"strategy", "store", "source"}) // source: "cache", "stale", "network", "offline", "unavailable", "passthrough"

	routerRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "storefront_router_request_duration_seconds",
		Help:    "Time to produce a response by strategy",
		Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
	}, []string{"strategy"})

	cacheSkippedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "storefront_router_cache_skipped_total",
		Help: "Successful responses kept out of the cache because they belong to one user",
	}, []string{"store"})

	refreshTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "storefront_router_refresh_total",
		Help: "Background refresh tasks by result",
	}, []string{"result"}) // "ok", "error", "panic", "dropped", "deduplicated", "closed"

	refreshQueueDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "storefront_router_refresh_pending",
		Help: "Background refresh tasks queued or running",
	})

	storesDeletedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "storefront_router_stores_deleted_total",
		Help: "Cache stores deleted on activation because their version is outdated",
	})

	lifecycleTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "storefront_router_lifecycle_total",
		Help: "Lifecycle steps by step and result",
	}, []string{"step", "result"}) // step: "install", "activate", "sync"
)
