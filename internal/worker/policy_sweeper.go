package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// PolicySweepRunner is the single pass the policy sweeper delegates to
type PolicySweepRunner interface {
	Sweep(ctx context.Context) error
}

// PolicySweeper periodically advances policy lifecycle states against the
// calendar
type PolicySweeper struct {
	runner   PolicySweepRunner
	interval time.Duration
	logger   *zap.Logger

	mu        sync.Mutex
	isRunning bool
	cancel    context.CancelFunc
	done      chan struct{}
}

// NewPolicySweeper creates a new policy sweeper
func NewPolicySweeper(runner PolicySweepRunner, interval time.Duration, logger *zap.Logger) *PolicySweeper {
	return &PolicySweeper{
		runner:   runner,
		interval: interval,
		logger:   logger,
	}
}

// Name returns the worker name
func (w *PolicySweeper) Name() string { return "policy_sweeper" }

// Start starts the sweep loop
func (w *PolicySweeper) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.isRunning {
		return fmt.Errorf("policy sweeper is already running")
	}

	ctx, w.cancel = context.WithCancel(ctx)
	w.isRunning = true
	w.done = make(chan struct{})

	go w.loop(ctx)
	return nil
}

// Stop stops the sweep loop and waits for it to exit
func (w *PolicySweeper) Stop() error {
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

func (w *PolicySweeper) loop(ctx context.Context) {
	defer close(w.done)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := w.runner.Sweep(ctx); err != nil {
				w.logger.Error("Policy sweep failed", zap.Error(err))
			}
		}
	}
}
