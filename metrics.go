package zerog

import (
	"github.com/jburman/ZeroG-sub001/cache"
	"github.com/prometheus/client_golang/prometheus"
)

var QueryCount = prometheus.NewCounterVec(prometheus.CounterOpts{
	Namespace: "zerog",
	Subsystem: "indexer",
	Name:      "queries",
}, []string{"kind", "source"})

var ProviderDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
	Namespace: "zerog",
	Subsystem: "indexer",
	Name:      "provider_duration_ms",
	Buckets:   []float64{0, 1, 5, 10, 20, 50, 100, 200, 500},
}, []string{"op"})

var WriteCount = prometheus.NewCounterVec(prometheus.CounterOpts{
	Namespace: "zerog",
	Subsystem: "indexer",
	Name:      "writes",
}, []string{"op", "result"})

// Metrics lists the package level metrics of the indexer and its cache
// for registration.
func Metrics() []prometheus.Collector {
	return []prometheus.Collector{
		QueryCount,
		ProviderDuration,
		WriteCount,
		cache.CacheHits,
		cache.CacheMisses,
		cache.CacheRebuilds,
		cache.CacheStores,
		cache.CacheEvictions,
		cache.CacheCleanDuration,
	}
}
