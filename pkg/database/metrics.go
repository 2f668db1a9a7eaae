package database

import (
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
)

// PoolStats is the slice of pgxpool.Stat the collector reads.
type PoolStats interface {
	AcquiredConns() int32
	IdleConns() int32
	TotalConns() int32
	MaxConns() int32
	AcquireCount() int64
	EmptyAcquireCount() int64
	CanceledAcquireCount() int64
}

// PoolStatsCollector exports connection pool statistics to Prometheus.
type PoolStatsCollector struct {
	stat    func() PoolStats
	service string

	acquired *prometheus.Desc
	idle     *prometheus.Desc
	total    *prometheus.Desc
	max      *prometheus.Desc
	acquires *prometheus.Desc
	waits    *prometheus.Desc
	canceled *prometheus.Desc
}

// NewPoolStatsCollector builds a collector that calls stat on every scrape.
func NewPoolStatsCollector(stat func() PoolStats, service string) *PoolStatsCollector {
	desc := func(name, help string) *prometheus.Desc {
		return prometheus.NewDesc("natours_db_pool_"+name, help, []string{"service"}, nil)
	}
	return &PoolStatsCollector{
		stat:     stat,
		service:  service,
		acquired: desc("acquired_connections", "Connections currently checked out of the pool."),
		idle:     desc("idle_connections", "Connections currently idle in the pool."),
		total:    desc("total_connections", "Connections currently open."),
		max:      desc("max_connections", "Configured pool size."),
		acquires: desc("acquires_total", "Successful connection acquires."),
		waits:    desc("empty_acquires_total", "Acquires that had to wait for a free connection."),
		canceled: desc("canceled_acquires_total", "Acquires canceled by their context."),
	}
}

// Describe implements prometheus.Collector.
func (c *PoolStatsCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.acquired
	ch <- c.idle
	ch <- c.total
	ch <- c.max
	ch <- c.acquires
	ch <- c.waits
	ch <- c.canceled
}

// Collect implements prometheus.Collector.
func (c *PoolStatsCollector) Collect(ch chan<- prometheus.Metric) {
	s := c.stat()
	gauge := func(d *prometheus.Desc, v int32) {
		ch <- prometheus.MustNewConstMetric(d, prometheus.GaugeValue, float64(v), c.service)
	}
	counter := func(d *prometheus.Desc, v int64) {
		ch <- prometheus.MustNewConstMetric(d, prometheus.CounterValue, float64(v), c.service)
	}
	gauge(c.acquired, s.AcquiredConns())
	gauge(c.idle, s.IdleConns())
	gauge(c.total, s.TotalConns())
	gauge(c.max, s.MaxConns())
	counter(c.acquires, s.AcquireCount())
	counter(c.waits, s.EmptyAcquireCount())
	counter(c.canceled, s.CanceledAcquireCount())
}

// RegisterPoolMetrics registers a collector for pool with the given registerer.
func RegisterPoolMetrics(reg prometheus.Registerer, pool *pgxpool.Pool, service string) error {
	return reg.Register(NewPoolStatsCollector(func() PoolStats { return pool.Stat() }, service))
}
