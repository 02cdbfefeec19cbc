package cache

import "github.com/prometheus/client_golang/prometheus"

var CacheHits = prometheus.NewCounterVec(prometheus.CounterOpts{
	Namespace: "zerog",
	Subsystem: "query_cache",
	Name:      "hits",
}, []string{"object_type"})

var CacheMisses = prometheus.NewCounterVec(prometheus.CounterOpts{
	Namespace: "zerog",
	Subsystem: "query_cache",
	Name:      "misses",
}, []string{"object_type"})

var CacheRebuilds = prometheus.NewCounterVec(prometheus.CounterOpts{
	Namespace: "zerog",
	Subsystem: "query_cache",
	Name:      "dirty_rebuilds",
}, []string{"object_type"})

var CacheStores = prometheus.NewCounterVec(prometheus.CounterOpts{
	Namespace: "zerog",
	Subsystem: "query_cache",
	Name:      "stores",
}, []string{"object_type", "result"})

var CacheEvictions = prometheus.NewCounter(prometheus.CounterOpts{
	Namespace: "zerog",
	Subsystem: "query_cache",
	Name:      "evictions",
})

var CacheCleanDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
	Namespace: "zerog",
	Subsystem: "query_cache",
	Name:      "clean_duration_ms",
	Buckets:   []float64{0, 1, 5, 10, 20, 50, 100, 200, 500},
})
