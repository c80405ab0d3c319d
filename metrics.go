package tindex

import (
	"sync/atomic"
	"time"
)

// MetricsCollector defines an interface for collecting operational metrics.
// Implement this interface to integrate with monitoring systems; the
// metrics/prometheus package provides a Prometheus implementation.
type MetricsCollector interface {
	// RecordInsert is called after each insert.
	RecordInsert(duration time.Duration, err error)

	// RecordTerminate is called after each termination. changed reports
	// whether the index was modified.
	RecordTerminate(duration time.Duration, changed bool, err error)

	// RecordRollback is called after each rollback of one index.
	RecordRollback(duration time.Duration, stats RollbackStats, err error)

	// RecordScan is called after each scan with the number of results.
	RecordScan(duration time.Duration, results int, err error)
}

// NoopMetricsCollector is a no-op implementation of MetricsCollector.
type NoopMetricsCollector struct{}

func (NoopMetricsCollector) RecordInsert(time.Duration, error)                  {}
func (NoopMetricsCollector) RecordTerminate(time.Duration, bool, error)         {}
func (NoopMetricsCollector) RecordRollback(time.Duration, RollbackStats, error) {}
func (NoopMetricsCollector) RecordScan(time.Duration, int, error)               {}

// BasicMetricsCollector provides simple in-memory metrics collection.
// Useful for debugging and tests.
type BasicMetricsCollector struct {
	InsertCount       atomic.Int64
	InsertErrors      atomic.Int64
	InsertTotalNanos  atomic.Int64
	TerminateCount    atomic.Int64
	TerminateChanged  atomic.Int64
	TerminateErrors   atomic.Int64
	RollbackCount     atomic.Int64
	RollbackRewritten atomic.Int64
	RollbackDeleted   atomic.Int64
	RollbackErrors    atomic.Int64
	ScanCount         atomic.Int64
	ScanErrors        atomic.Int64
	ScanResults       atomic.Int64
	ScanTotalNanos    atomic.Int64
}

// RecordInsert implements MetricsCollector.
func (b *BasicMetricsCollector) RecordInsert(duration time.Duration, err error) {
	b.InsertCount.Add(1)
	b.InsertTotalNanos.Add(duration.Nanoseconds())
	if err != nil {
		b.InsertErrors.Add(1)
	}
}

// RecordTerminate implements MetricsCollector.
func (b *BasicMetricsCollector) RecordTerminate(_ time.Duration, changed bool, err error) {
	b.TerminateCount.Add(1)
	if changed {
		b.TerminateChanged.Add(1)
	}
	if err != nil {
		b.TerminateErrors.Add(1)
	}
}

// RecordRollback implements MetricsCollector.
func (b *BasicMetricsCollector) RecordRollback(_ time.Duration, stats RollbackStats, err error) {
	b.RollbackCount.Add(1)
	b.RollbackRewritten.Add(int64(stats.Rewritten))
	b.RollbackDeleted.Add(int64(stats.Deleted))
	if err != nil {
		b.RollbackErrors.Add(1)
	}
}

// RecordScan implements MetricsCollector.
func (b *BasicMetricsCollector) RecordScan(duration time.Duration, results int, err error) {
	b.ScanCount.Add(1)
	b.ScanTotalNanos.Add(duration.Nanoseconds())
	b.ScanResults.Add(int64(results))
	if err != nil {
		b.ScanErrors.Add(1)
	}
}

// GetStats returns a snapshot of current metrics.
func (b *BasicMetricsCollector) GetStats() BasicMetricsStats {
	return BasicMetricsStats{
		InsertCount:       b.InsertCount.Load(),
		InsertErrors:      b.InsertErrors.Load(),
		InsertAvgNanos:    avg(b.InsertTotalNanos.Load(), b.InsertCount.Load()),
		TerminateCount:    b.TerminateCount.Load(),
		TerminateChanged:  b.TerminateChanged.Load(),
		TerminateErrors:   b.TerminateErrors.Load(),
		RollbackCount:     b.RollbackCount.Load(),
		RollbackRewritten: b.RollbackRewritten.Load(),
		RollbackDeleted:   b.RollbackDeleted.Load(),
		RollbackErrors:    b.RollbackErrors.Load(),
		ScanCount:         b.ScanCount.Load(),
		ScanErrors:        b.ScanErrors.Load(),
		ScanResults:       b.ScanResults.Load(),
		ScanAvgNanos:      avg(b.ScanTotalNanos.Load(), b.ScanCount.Load()),
	}
}

func avg(total, count int64) int64 {
	if count == 0 {
		return 0
	}
	return total / count
}

// BasicMetricsStats is a snapshot of BasicMetricsCollector state.
type BasicMetricsStats struct {
	InsertCount       int64
	InsertErrors      int64
	InsertAvgNanos    int64
	TerminateCount    int64
	TerminateChanged  int64
	TerminateErrors   int64
	RollbackCount     int64
	RollbackRewritten int64
	RollbackDeleted   int64
	RollbackErrors    int64
	ScanCount         int64
	ScanErrors        int64
	ScanResults       int64
	ScanAvgNanos      int64
}
