package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/qasimbotani/health-insurance/internal/application/port"
)

// CoverageReset zeroes every coverage line's annual utilization once per
// calendar year. The per-line last_reset_year guard makes the sweep safe to
// run repeatedly and across restarts.
type CoverageReset struct {
	tx       port.TransactionManager
	coverage port.CoverageRepository
	logger   *zap.Logger

	interval time.Duration
	now      func() time.Time

	mu        sync.Mutex
	isRunning bool
	cancel    context.CancelFunc
	done      chan struct{}
}

// NewCoverageReset creates a new coverage reset worker
func NewCoverageReset(tx port.TransactionManager, coverage port.CoverageRepository,
	interval time.Duration, logger *zap.Logger) *CoverageReset {
	return &CoverageReset{
		tx:       tx,
		coverage: coverage,
		interval: interval,
		logger:   logger,
		now:      time.Now,
	}
}

// WithClock overrides the worker clock
func (w *CoverageReset) WithClock(now func() time.Time) *CoverageReset {
	w.now = now
	return w
}

// Name returns the worker name
func (w *CoverageReset) Name() string { return "coverage_reset" }

// Start starts the reset loop
func (w *CoverageReset) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.isRunning {
		return fmt.Errorf("coverage reset is already running")
	}

	ctx, w.cancel = context.WithCancel(ctx)
	w.isRunning = true
	w.done = make(chan struct{})

	go w.loop(ctx)
	return nil
}

// Stop stops the reset loop and waits for it to exit
func (w *CoverageReset) Stop() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.isRunning {
		return nil
	}
	w.isRunning = false
	w.cancel()
	<-w.done
	return nil
}

func (w *CoverageReset) loop(ctx context.Context) {
	defer close(w.done)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := w.Sweep(ctx); err != nil {
				w.logger.Error("Coverage reset sweep failed", zap.Error(err))
			}
		}
	}
}

// Sweep runs one pass, resetting lines whose last reset predates this year
func (w *CoverageReset) Sweep(ctx context.Context) error {
	year := w.now().Year()

	return w.tx.WithTransaction(ctx, func(ctx context.Context) error {
		lines, err := w.coverage.ListAllLines(ctx)
		if err != nil {
			return err
		}

		reset := 0
		for _, line := range lines {
			if line.LastResetYear >= year {
				continue
			}
			if err := w.coverage.ResetUsage(ctx, line.ID, year); err != nil {
				return err
			}
			reset++
		}
		if reset > 0 {
			w.logger.Info("Coverage annual usage reset",
				zap.Int("lines", reset), zap.Int("year", year))
		}
		return nil
	})
}
