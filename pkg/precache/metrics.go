package precache

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var precacheFetchesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "storefront_precache_fetches_total",
	Help: "Total precache fetches by batch and result",
}, []string{"batch", "result"}) // batch: "shell", "manifest", "fonts", "sync"
