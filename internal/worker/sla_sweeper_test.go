package worker

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/qasimbotani/health-insurance/internal/application/port"
	"github.com/qasimbotani/health-insurance/internal/domain/entity"
	"github.com/qasimbotani/health-insurance/internal/domain/workflow"
)

type passTx struct{}

func (passTx) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

// stubClaimRepo covers only the calls the sweeper makes
type stubClaimRepo struct {
	port.ClaimRepository
	overdue []*entity.Claim
	marked  []int64
	updated []*entity.Claim
}

func (r *stubClaimRepo) ListSubmittedPastDeadline(ctx context.Context, now time.Time) ([]*entity.Claim, error) {
	return r.overdue, nil
}

func (r *stubClaimRepo) MarkOverdue(ctx context.Context, ids []int64) error {
	r.marked = append(r.marked, ids...)
	return nil
}

func (r *stubClaimRepo) Update(ctx context.Context, claim *entity.Claim) error {
	cp := *claim
	r.updated = append(r.updated, &cp)
	return nil
}

type stubAudit struct {
	entries []string
}

func (a *stubAudit) Append(ctx context.Context, entityType string, entityID int64, actorID, body string) error {
	a.entries = append(a.entries, body)
	return nil
}

func (a *stubAudit) ListByEntity(ctx context.Context, entityType string, entityID int64) ([]*entity.AuditEntry, error) {
	return nil, nil
}

func TestSLASweeper_EscalatesBreachedClaims(t *testing.T) {
	deadline := time.Now().Add(-time.Hour)
	repo := &stubClaimRepo{overdue: []*entity.Claim{{
		ID:              1,
		Number:          "CLM-2026-00001",
		State:           workflow.ClaimSubmitted,
		ClaimedAmount:   decimal.NewFromInt(200),
		SLADeadline:     &deadline,
		EscalationLevel: entity.EscalationManager,
	}}}
	audit := &stubAudit{}
	sweeper := NewSLASweeper(passTx{}, repo, audit, time.Minute, zap.NewNop())

	require.NoError(t, sweeper.Sweep(context.Background()))

	assert.Equal(t, []int64{1}, repo.marked)
	require.Len(t, repo.updated, 1)
	claim := repo.updated[0]
	assert.True(t, claim.IsOverdue)
	assert.Equal(t, entity.EscalationCommittee, claim.EscalationLevel)
	assert.True(t, claim.CommitteeRequired)
	require.Len(t, audit.entries, 1)
	assert.Contains(t, audit.entries[0], "deadline breached")
}

func TestSLASweeper_AlreadyEscalatedOnlyGetsMarked(t *testing.T) {
	deadline := time.Now().Add(-time.Hour)
	repo := &stubClaimRepo{overdue: []*entity.Claim{{
		ID:                3,
		Number:            "CLM-2026-00003",
		State:             workflow.ClaimSubmitted,
		ClaimedAmount:     decimal.NewFromInt(200),
		SLADeadline:       &deadline,
		EscalationLevel:   entity.EscalationCommittee,
		CommitteeRequired: true,
	}}}
	audit := &stubAudit{}
	sweeper := NewSLASweeper(passTx{}, repo, audit, time.Minute, zap.NewNop())

	require.NoError(t, sweeper.Sweep(context.Background()))

	// the overdue flag is set in one batch; no per-claim rewrite is needed
	assert.Equal(t, []int64{3}, repo.marked)
	assert.Empty(t, repo.updated)
	require.Len(t, audit.entries, 1)
}

func TestSLASweeper_NothingOverdueWritesNothing(t *testing.T) {
	repo := &stubClaimRepo{}
	audit := &stubAudit{}
	sweeper := NewSLASweeper(passTx{}, repo, audit, time.Minute, zap.NewNop())

	require.NoError(t, sweeper.Sweep(context.Background()))
	assert.Empty(t, repo.marked)
	assert.Empty(t, repo.updated)
	assert.Empty(t, audit.entries)
}

func TestSLASweeper_StartTwiceFails(t *testing.T) {
	sweeper := NewSLASweeper(passTx{}, &stubClaimRepo{}, &stubAudit{}, time.Hour, zap.NewNop())

	require.NoError(t, sweeper.Start(context.Background()))
	defer sweeper.Stop()

	assert.Error(t, sweeper.Start(context.Background()))
}
