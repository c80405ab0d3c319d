package badgerkv

import (
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/dgraph-io/badger/v4"
)

// GCRunner periodically runs BadgerDB value log garbage collection.
type GCRunner struct {
	db       *badger.DB
	interval time.Duration
	ratio    float64
	logger   *slog.Logger

	startOnce sync.Once
	stopOnce  sync.Once
	stopCh    chan struct{}
	doneCh    chan struct{}
}

// NewGCRunner creates a runner. It does nothing until Start is called.
func NewGCRunner(db *badger.DB, interval time.Duration, ratio float64, logger *slog.Logger) (*GCRunner, error) {
	if db == nil {
		return nil, errors.New("badgerkv: db must not be nil")
	}
	if interval <= 0 {
		return nil, errors.New("badgerkv: gc interval must be positive")
	}
	if ratio <= 0 || ratio >= 1 {
		return nil, errors.New("badgerkv: gc discard ratio must be in (0, 1)")
	}
	return &GCRunner{
		db:       db,
		interval: interval,
		ratio:    ratio,
		logger:   logger,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}, nil
}

// Start launches the GC loop. Later calls are no-ops.
func (r *GCRunner) Start() {
	r.startOnce.Do(func() { go r.run() })
}

// Stop halts the loop and waits for it to exit. Stop without Start is fine.
func (r *GCRunner) Stop() {
	r.stopOnce.Do(func() {
		close(r.stopCh)
		started := true
		r.startOnce.Do(func() { started = false })
		if started {
			<-r.doneCh
		}
	})
}

func (r *GCRunner) run() {
	defer close(r.doneCh)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-r.stopCh:
			return
		case <-ticker.C:
			r.RunOnce()
		}
	}
}

// RunOnce rewrites value log files until nothing more can be reclaimed.
func (r *GCRunner) RunOnce() {
	for rounds := 0; ; rounds++ {
		err := r.db.RunValueLogGC(r.ratio)
		if err == nil {
			continue
		}
		if !errors.Is(err, badger.ErrNoRewrite) && !errors.Is(err, badger.ErrRejected) && r.logger != nil {
			r.logger.Warn("badger value log gc failed", slog.String("error", err.Error()))
		}
		if rounds > 0 && r.logger != nil {
			r.logger.Debug("badger value log gc completed", slog.Int("rewrites", rounds))
		}
		return
	}
}
