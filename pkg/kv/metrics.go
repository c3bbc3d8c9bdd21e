package kv

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// storeErrors tracks backend failures by operation.
	storeErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "storefront_kv_errors_total",
			Help: "Total number of key-value store operation errors",
		},
		[]string{"operation"}, // "get", "set", "delete"
	)

	// schemaMigrations tracks values upgraded to the current schema version.
	schemaMigrations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "storefront_kv_migrations_total",
			Help: "Total number of persisted values migrated by key",
		},
		[]string{"key"},
	)
)
