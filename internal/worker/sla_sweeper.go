package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/qasimbotani/health-insurance/internal/application/port"
	"github.com/qasimbotani/health-insurance/internal/domain/entity"
	"github.com/qasimbotani/health-insurance/internal/escalation"
)

// SLASweeper marks submitted claims past their response deadline as overdue
// and escalates them to committee review. A claim is marked at most once.
type SLASweeper struct {
	tx     port.TransactionManager
	claims port.ClaimRepository
	audit  port.AuditLog
	logger *zap.Logger

	interval time.Duration

	mu        sync.Mutex
	isRunning bool
	cancel    context.CancelFunc
	done      chan struct{}
}

// NewSLASweeper creates a new SLA sweeper
func NewSLASweeper(tx port.TransactionManager, claims port.ClaimRepository, audit port.AuditLog,
	interval time.Duration, logger *zap.Logger) *SLASweeper {
	return &SLASweeper{
		tx:       tx,
		claims:   claims,
		audit:    audit,
		interval: interval,
		logger:   logger,
	}
}

// Name returns the worker name
func (w *SLASweeper) Name() string { return "sla_sweeper" }

// Start starts the sweep loop
func (w *SLASweeper) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.isRunning {
		return fmt.Errorf("sla sweeper is already running")
	}

	ctx, w.cancel = context.WithCancel(ctx)
	w.isRunning = true
	w.done = make(chan struct{})

	go w.loop(ctx)
	return nil
}

// Stop stops the sweep loop and waits for it to exit
func (w *SLASweeper) Stop() error {
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

func (w *SLASweeper) loop(ctx context.Context) {
	defer close(w.done)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := w.Sweep(ctx); err != nil {
				w.logger.Error("SLA sweep failed", zap.Error(err))
			}
		}
	}
}

// Sweep runs one pass. Exported so a sweep can be triggered on demand.
func (w *SLASweeper) Sweep(ctx context.Context) error {
	return w.tx.WithTransaction(ctx, func(ctx context.Context) error {
		overdue, err := w.claims.ListSubmittedPastDeadline(ctx, time.Now())
		if err != nil {
			return err
		}
		if len(overdue) == 0 {
			return nil
		}

		ids := make([]int64, len(overdue))
		for i, claim := range overdue {
			ids[i] = claim.ID
		}
		if err := w.claims.MarkOverdue(ctx, ids); err != nil {
			return err
		}

		for _, claim := range overdue {
			claim.IsOverdue = true

			decision := escalation.Route(escalation.Input{
				ClaimedAmount: claim.ClaimedAmount,
				FraudFlag:     claim.FraudFlag,
				IsOverdue:     true,
				CurrentLevel:  claim.EscalationLevel,
			})
			if decision.Level != claim.EscalationLevel || decision.CommitteeRequired != claim.CommitteeRequired {
				claim.EscalationLevel = decision.Level
				claim.CommitteeRequired = decision.CommitteeRequired
				if err := w.claims.Update(ctx, claim); err != nil {
					return err
				}
			}
			if err := w.audit.Append(ctx, entity.AuditClaim, claim.ID, "",
				"Review deadline breached. Claim escalated to committee."); err != nil {
				return err
			}
			w.logger.Warn("Claim overdue",
				zap.String("number", claim.Number),
				zap.String("escalation", claim.EscalationLevel))
		}
		return nil
	})
}
