package fraud

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qasimbotani/health-insurance/internal/domain/entity"
)

type mockHistory struct {
	approvedAmounts []decimal.Decimal
	recentCount     int
	tripleCount     int
}

func (m *mockHistory) ApprovedAmountsByMember(ctx context.Context, memberID int64) ([]decimal.Decimal, error) {
	return m.approvedAmounts, nil
}

func (m *mockHistory) CountCreatedSince(ctx context.Context, memberID int64, since time.Time) (int, error) {
	return m.recentCount, nil
}

func (m *mockHistory) CountApprovedTriple(ctx context.Context, memberID, providerID, serviceID int64) (int, error) {
	return m.tripleCount, nil
}

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func amounts(values ...float64) []decimal.Decimal {
	out := make([]decimal.Decimal, 0, len(values))
	for _, v := range values {
		out = append(out, decimal.NewFromFloat(v))
	}
	return out
}

func TestEvaluate_NoHistoryNoFlags(t *testing.T) {
	now := time.Date(2026, 6, 15, 10, 0, 0, 0, time.UTC)
	ev := NewEvaluator(&mockHistory{}).WithClock(fixedClock(now))

	claim := &entity.Claim{MemberID: 1, ClaimedAmount: decimal.NewFromInt(500)}
	policyStart := now.AddDate(0, -6, 0)

	res, err := ev.Evaluate(context.Background(), claim, policyStart)
	require.NoError(t, err)
	assert.Equal(t, 0, res.Score)
	assert.False(t, res.Flagged)
	assert.Empty(t, res.Reasons)
}

func TestEvaluate_HighAmountVsHistory(t *testing.T) {
	now := time.Date(2026, 6, 15, 10, 0, 0, 0, time.UTC)
	history := &mockHistory{approvedAmounts: amounts(100, 200, 300)} // avg 200
	ev := NewEvaluator(history).WithClock(fixedClock(now))

	claim := &entity.Claim{MemberID: 1, ClaimedAmount: decimal.NewFromInt(700)} // > 3x200
	res, err := ev.Evaluate(context.Background(), claim, now.AddDate(-1, 0, 0))
	require.NoError(t, err)
	assert.Equal(t, WeightHighVsHistory, res.Score)
	assert.False(t, res.Flagged)

	// exactly 3x average does not trigger
	claim.ClaimedAmount = decimal.NewFromInt(600)
	res, err = ev.Evaluate(context.Background(), claim, now.AddDate(-1, 0, 0))
	require.NoError(t, err)
	assert.Equal(t, 0, res.Score)
}

func TestEvaluate_ScenarioEarlyHighBurst(t *testing.T) {
	// claim 10 days after policy start, 3.5x average, 5 claims in 30 days
	now := time.Date(2026, 6, 15, 10, 0, 0, 0, time.UTC)
	history := &mockHistory{
		approvedAmounts: amounts(100, 100),
		recentCount:     5,
	}
	ev := NewEvaluator(history).WithClock(fixedClock(now))

	claim := &entity.Claim{MemberID: 1, ClaimedAmount: decimal.NewFromInt(350)}
	policyStart := now.AddDate(0, 0, -10)

	res, err := ev.Evaluate(context.Background(), claim, policyStart)
	require.NoError(t, err)
	assert.Equal(t, 65, res.Score) // 30 + 20 + 15
	assert.True(t, res.Flagged)
	assert.Len(t, res.Reasons, 3)
}

func TestEvaluate_RepeatedTriple(t *testing.T) {
	now := time.Date(2026, 6, 15, 10, 0, 0, 0, time.UTC)
	history := &mockHistory{tripleCount: 3}
	ev := NewEvaluator(history).WithClock(fixedClock(now))

	claim := &entity.Claim{MemberID: 1, ProviderID: 2, ServiceID: 3, ClaimedAmount: decimal.NewFromInt(100)}
	res, err := ev.Evaluate(context.Background(), claim, now.AddDate(-1, 0, 0))
	require.NoError(t, err)
	assert.Equal(t, WeightRepeatedTriple, res.Score)
	assert.False(t, res.Flagged)
}

func TestEvaluate_EarlyClaimAnchoredToCreation(t *testing.T) {
	now := time.Date(2026, 6, 15, 10, 0, 0, 0, time.UTC)
	ev := NewEvaluator(&mockHistory{}).WithClock(fixedClock(now))
	policyStart := now.AddDate(0, 0, -20)

	// created on day 10, rescored on resubmission at day 20: still early
	claim := &entity.Claim{
		MemberID:      1,
		ClaimedAmount: decimal.NewFromInt(100),
		CreatedAt:     policyStart.AddDate(0, 0, 10),
	}
	res, err := ev.Evaluate(context.Background(), claim, policyStart)
	require.NoError(t, err)
	assert.Equal(t, WeightEarlyClaim, res.Score)

	// created on day 20: not early
	claim.CreatedAt = policyStart.AddDate(0, 0, 20)
	res, err = ev.Evaluate(context.Background(), claim, policyStart)
	require.NoError(t, err)
	assert.Equal(t, 0, res.Score)
}

func TestEvaluate_Deterministic(t *testing.T) {
	now := time.Date(2026, 6, 15, 10, 0, 0, 0, time.UTC)
	history := &mockHistory{
		approvedAmounts: amounts(50),
		recentCount:     6,
		tripleCount:     4,
	}
	ev := NewEvaluator(history).WithClock(fixedClock(now))

	claim := &entity.Claim{MemberID: 1, ClaimedAmount: decimal.NewFromInt(500)}
	policyStart := now.AddDate(0, 0, -5)

	first, err := ev.Evaluate(context.Background(), claim, policyStart)
	require.NoError(t, err)
	second, err := ev.Evaluate(context.Background(), claim, policyStart)
	require.NoError(t, err)

	assert.Equal(t, first.Score, second.Score)
	assert.Equal(t, first.Reasons, second.Reasons)
	assert.Equal(t, 90, first.Score) // all four rules
	assert.True(t, first.Flagged)
}

func TestResult_ReasonJoinsWithNewlines(t *testing.T) {
	res := Result{Reasons: []string{"a", "b"}}
	assert.Equal(t, "a\nb", res.Reason())
}
