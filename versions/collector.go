package versions

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Collector exports the state of the ledger's pebble store.
type Collector struct {
	ledger *Ledger

	tracked             *prometheus.Desc
	memtableSize        *prometheus.Desc
	walSize             *prometheus.Desc
	walBytesWritten     *prometheus.Desc
	compactionCount     *prometheus.Desc
	compactionDebtBytes *prometheus.Desc
}

func NewCollector(l *Ledger) *Collector {
	return &Collector{
		ledger: l,

		tracked: prometheus.NewDesc(
			"zerog_ledger_tracked_types",
			"Number of object types with a cached version",
			nil, nil,
		),
		memtableSize: prometheus.NewDesc(
			"zerog_ledger_memtable_size_bytes",
			"Current size of the ledger memtable in bytes",
			nil, nil,
		),
		walSize: prometheus.NewDesc(
			"zerog_ledger_wal_size_bytes",
			"Size of the live ledger WAL data in bytes",
			nil, nil,
		),
		walBytesWritten: prometheus.NewDesc(
			"zerog_ledger_wal_bytes_written_total",
			"Total bytes written to the ledger WAL",
			nil, nil,
		),
		compactionCount: prometheus.NewDesc(
			"zerog_ledger_compaction_count_total",
			"Total number of ledger compactions performed",
			nil, nil,
		),
		compactionDebtBytes: prometheus.NewDesc(
			"zerog_ledger_compaction_estimated_debt_bytes",
			"Estimated number of bytes that need to be compacted to reach a stable state",
			nil, nil,
		),
	}
}

func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.tracked
	ch <- c.memtableSize
	ch <- c.walSize
	ch <- c.walBytesWritten
	ch <- c.compactionCount
	ch <- c.compactionDebtBytes
}

func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	ch <- prometheus.MustNewConstMetric(
		c.tracked,
		prometheus.GaugeValue,
		float64(c.ledger.current.Size()),
	)
	if c.ledger.db == nil {
		return
	}
	metrics := c.ledger.db.Metrics()
	ch <- prometheus.MustNewConstMetric(
		c.memtableSize,
		prometheus.GaugeValue,
		float64(metrics.MemTable.Size),
	)
	ch <- prometheus.MustNewConstMetric(
		c.walSize,
		prometheus.GaugeValue,
		float64(metrics.WAL.Size),
	)
	ch <- prometheus.MustNewConstMetric(
		c.walBytesWritten,
		prometheus.CounterValue,
		float64(metrics.WAL.BytesWritten),
	)
	ch <- prometheus.MustNewConstMetric(
		c.compactionCount,
		prometheus.CounterValue,
		float64(metrics.Compact.Count),
	)
	ch <- prometheus.MustNewConstMetric(
		c.compactionDebtBytes,
		prometheus.GaugeValue,
		float64(metrics.Compact.EstimatedDebt),
	)
}
