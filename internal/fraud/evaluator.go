// Package fraud scores a claim against the member's claim history using a
// fixed additive rule set. Scoring is deterministic given a clock and a
// history snapshot, and idempotent across repeated evaluations.
package fraud

import (
	"context"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/qasimbotani/health-insurance/internal/domain/entity"
)

// Rule weights and the flagging threshold
const (
	WeightHighVsHistory    = 30 // claimed > 3x historical average approved
	WeightRecentBurst      = 20 // >= 5 claims created in the trailing 30 days
	WeightRepeatedTriple   = 25 // >= 3 prior approved claims for the same (provider, service, member)
	WeightEarlyClaim       = 15 // claim created within 14 days of policy start
	FlagThreshold          = 40
	ManualFlagMinimumScore = 50

	recentWindowDays   = 30
	recentBurstCount   = 5
	repeatedTripleMin  = 3
	earlyClaimDays     = 14
	highVsHistoryRatio = 3
)

// History is the narrow read contract the evaluator depends on.
// All queries are read-only.
type History interface {
	ApprovedAmountsByMember(ctx context.Context, memberID int64) ([]decimal.Decimal, error)
	CountCreatedSince(ctx context.Context, memberID int64, since time.Time) (int, error)
	CountApprovedTriple(ctx context.Context, memberID, providerID, serviceID int64) (int, error)
}

// Result is the outcome of a fraud evaluation
type Result struct {
	Score   int
	Flagged bool
	Reasons []string
}

// Reason returns the newline-joined human-readable triggered-rule descriptions
func (r Result) Reason() string {
	return strings.Join(r.Reasons, "\n")
}

// Evaluator scores claims. The clock is injectable for determinism.
type Evaluator struct {
	history History
	now     func() time.Time
}

// NewEvaluator creates an evaluator over the given claim history
func NewEvaluator(history History) *Evaluator {
	return &Evaluator{history: history, now: time.Now}
}

// WithClock overrides the evaluator's clock
func (e *Evaluator) WithClock(now func() time.Time) *Evaluator {
	e.now = now
	return e
}

// Evaluate computes the fraud score for a claim. policyStart is the start
// date of the policy the claim draws on.
func (e *Evaluator) Evaluate(ctx context.Context, claim *entity.Claim, policyStart time.Time) (Result, error) {
	var res Result
	now := e.now()

	// R1: claim amount unusually high vs member history
	approved, err := e.history.ApprovedAmountsByMember(ctx, claim.MemberID)
	if err != nil {
		return res, err
	}
	if len(approved) > 0 {
		sum := decimal.Zero
		for _, a := range approved {
			sum = sum.Add(a)
		}
		avg := sum.Div(decimal.NewFromInt(int64(len(approved))))
		if claim.ClaimedAmount.GreaterThan(avg.Mul(decimal.NewFromInt(highVsHistoryRatio))) {
			res.Score += WeightHighVsHistory
			res.Reasons = append(res.Reasons, "Claim amount unusually high vs member history.")
		}
	}

	// R2: too many claims in a short period, current claim included
	recent, err := e.history.CountCreatedSince(ctx, claim.MemberID, now.AddDate(0, 0, -recentWindowDays))
	if err != nil {
		return res, err
	}
	if recent >= recentBurstCount {
		res.Score += WeightRecentBurst
		res.Reasons = append(res.Reasons, "High number of claims in short period.")
	}

	// R3: same provider + service repetition
	repeated, err := e.history.CountApprovedTriple(ctx, claim.MemberID, claim.ProviderID, claim.ServiceID)
	if err != nil {
		return res, err
	}
	if repeated >= repeatedTripleMin {
		res.Score += WeightRepeatedTriple
		res.Reasons = append(res.Reasons, "Repeated same service with same provider.")
	}

	// R4: claim created shortly after policy start. The creation date is the
	// anchor so a returned claim resubmitted later still triggers.
	if !policyStart.IsZero() {
		created := claim.CreatedAt
		if created.IsZero() {
			created = now
		}
		daysFromStart := int(created.Sub(policyStart).Hours() / 24)
		if daysFromStart <= earlyClaimDays {
			res.Score += WeightEarlyClaim
			res.Reasons = append(res.Reasons, "Claim submitted shortly after policy start.")
		}
	}

	res.Flagged = res.Score >= FlagThreshold
	return res, nil
}
