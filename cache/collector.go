package cache

import "github.com/prometheus/client_golang/prometheus"

// Collector exports the current size of a query cache.
type Collector struct {
	cache *Cache

	records *prometheus.Desc
	queries *prometheus.Desc
	values  *prometheus.Desc
}

func NewCollector(c *Cache) *Collector {
	return &Collector{
		cache: c,

		records: prometheus.NewDesc(
			"zerog_query_cache_records",
			"Number of object types with a cache record",
			nil, nil,
		),
		queries: prometheus.NewDesc(
			"zerog_query_cache_queries",
			"Number of cached queries across all object types",
			nil, nil,
		),
		values: prometheus.NewDesc(
			"zerog_query_cache_values",
			"Number of cached object ids across all object types",
			nil, nil,
		),
	}
}

func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.records
	ch <- c.queries
	ch <- c.values
}

func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	s := c.cache.Stats()
	ch <- prometheus.MustNewConstMetric(c.records, prometheus.GaugeValue, float64(s.Records))
	ch <- prometheus.MustNewConstMetric(c.queries, prometheus.GaugeValue, float64(s.Queries))
	ch <- prometheus.MustNewConstMetric(c.values, prometheus.GaugeValue, float64(s.Values))
}
