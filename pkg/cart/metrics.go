package cart

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	cartOperationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "storefront_cart_operations_total",
		Help: "Total cart operations by operation and result",
	}, []string{"operation", "result"}) // result: "ok", "rejected", "noop"

	cartPersistErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "storefront_cart_persist_errors_total",
		Help: "Total cart persistence failures by stage",
	}, []string{"stage"}) // "load", "save"

	cartCorruptResetsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "storefront_cart_corrupt_resets_total",
		Help: "Total carts reset to empty because persisted state was corrupt",
	})

	promoApplicationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "storefront_promo_applications_total",
		Help: "Promo code application attempts by result",
	}, []string{"result"}) // "applied", "unknown", "below_minimum", "empty"

	registryEngines = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "storefront_cart_registry_engines",
		Help: "Cart engines currently held in memory",
	})

	registryEvictionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "storefront_cart_registry_evictions_total",
		Help: "Cart engines dropped from memory by reason",
	}, []string{"reason"}) // "idle", "capacity", "manual"

	trackerErrorsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "storefront_cart_tracker_errors_total",
		Help: "Total analytics tracker failures",
	})
)
