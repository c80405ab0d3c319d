// Package prometheus exports engine metrics to Prometheus.
package prometheus

import (
	"time"

	"github.com/hupe1980/tindex"
	"github.com/prometheus/client_golang/prometheus"
)

// Collector implements tindex.MetricsCollector with Prometheus metrics.
type Collector struct {
	opLatency  *prometheus.HistogramVec
	ops        *prometheus.CounterVec
	terminated prometheus.Counter
	rolledBack *prometheus.CounterVec
	results    prometheus.Histogram
}

var _ tindex.MetricsCollector = (*Collector)(nil)

// New creates a Collector and registers its metrics with reg. A nil reg
// uses prometheus.DefaultRegisterer. namespace prefixes every metric name.
func New(reg prometheus.Registerer, namespace string) (*Collector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	c := &Collector{
		opLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "operation_latency_seconds",
			Help:      "Latency of index operations",
			Buckets:   prometheus.DefBuckets,
		}, []string{"op", "status"}),
		ops: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "operations_total",
			Help:      "Total index operations",
		}, []string{"op", "status"}),
		terminated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "terminations_applied_total",
			Help:      "Terminations that changed stored validity",
		}),
		rolledBack: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rollback_cells_total",
			Help:      "Cells visited by rollbacks",
		}, []string{"result"}),
		results: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "scan_results",
			Help:      "Entries returned per scan",
			Buckets:   prometheus.ExponentialBuckets(1, 4, 8),
		}),
	}
	for _, m := range []prometheus.Collector{c.opLatency, c.ops, c.terminated, c.rolledBack, c.results} {
		if err := reg.Register(m); err != nil {
			return nil, err
		}
	}
	return c, nil
}

func status(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}

func (c *Collector) observe(op string, d time.Duration, err error) {
	s := status(err)
	c.opLatency.WithLabelValues(op, s).Observe(d.Seconds())
	c.ops.WithLabelValues(op, s).Inc()
}

// RecordInsert implements tindex.MetricsCollector.
func (c *Collector) RecordInsert(d time.Duration, err error) {
	c.observe("insert", d, err)
}

// RecordTerminate implements tindex.MetricsCollector.
func (c *Collector) RecordTerminate(d time.Duration, changed bool, err error) {
	c.observe("terminate", d, err)
	if changed {
		c.terminated.Inc()
	}
}

// RecordRollback implements tindex.MetricsCollector.
func (c *Collector) RecordRollback(d time.Duration, stats tindex.RollbackStats, err error) {
	c.observe("rollback", d, err)
	c.rolledBack.WithLabelValues("scanned").Add(float64(stats.Scanned))
	c.rolledBack.WithLabelValues("rewritten").Add(float64(stats.Rewritten))
	c.rolledBack.WithLabelValues("deleted").Add(float64(stats.Deleted))
}

// RecordScan implements tindex.MetricsCollector.
func (c *Collector) RecordScan(d time.Duration, results int, err error) {
	c.observe("scan", d, err)
	if err == nil {
		c.results.Observe(float64(results))
	}
}
