package resource

import (
	"context"

	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"
)

// Config holds resource limits.
type Config struct {
	// MaxWorkers is the maximum number of concurrent jobs.
	// If 0, defaults to 1.
	MaxWorkers int64

	// RowsPerSec is the shared row throughput of all jobs.
	// If 0, unlimited.
	RowsPerSec float64

	// RowBurst is the largest number of rows admitted at once.
	// If 0, defaults to 1.
	RowBurst int
}

// Controller bounds background work such as backup and restore.
type Controller struct {
	workers *semaphore.Weighted
	rows    *rate.Limiter // nil if unlimited
}

// NewController creates a new resource controller.
func NewController(cfg Config) *Controller {
	if cfg.MaxWorkers <= 0 {
		cfg.MaxWorkers = 1
	}
	if cfg.RowBurst <= 0 {
		cfg.RowBurst = 1
	}

	c := &Controller{workers: semaphore.NewWeighted(cfg.MaxWorkers)}
	if cfg.RowsPerSec > 0 {
		c.rows = rate.NewLimiter(rate.Limit(cfg.RowsPerSec), cfg.RowBurst)
	}
	return c
}

// AcquireWorker reserves a worker slot, blocking while all slots are busy.
func (c *Controller) AcquireWorker(ctx context.Context) error {
	if c == nil {
		return ctx.Err()
	}
	return c.workers.Acquire(ctx, 1)
}

// TryAcquireWorker reserves a worker slot without blocking.
func (c *Controller) TryAcquireWorker() bool {
	if c == nil {
		return true
	}
	return c.workers.TryAcquire(1)
}

// ReleaseWorker releases a worker slot.
func (c *Controller) ReleaseWorker() {
	if c == nil {
		return
	}
	c.workers.Release(1)
}

// WaitRows blocks until the row budget admits one more row.
func (c *Controller) WaitRows(ctx context.Context) error {
	if c == nil || c.rows == nil {
		return nil
	}
	return c.rows.Wait(ctx)
}

// Throttled reports whether a row budget is configured.
func (c *Controller) Throttled() bool {
	return c != nil && c.rows != nil
}
