// Package escalation derives the authority tier a claim must be approved by.
package escalation

import (
	"github.com/shopspring/decimal"

	"github.com/qasimbotani/health-insurance/internal/domain/entity"
)

// committeeAnnualShare forces committee review when the claimed amount
// exceeds this fraction of the policy annual limit
var committeeAnnualShare = decimal.NewFromFloat(0.5)

// Input carries the signals the router evaluates
type Input struct {
	ClaimedAmount        decimal.Decimal
	ManagerApprovalLimit decimal.Decimal
	PolicyAnnualLimit    decimal.Decimal
	FraudFlag            bool
	IsOverdue            bool

	// CurrentLevel is the claim's present escalation level. The router never
	// downgrades it; clearing a committee escalation takes an explicit
	// corrective action.
	CurrentLevel string
}

// Decision is the required tier and the committee flag cached on the claim
type Decision struct {
	Level             string
	CommitteeRequired bool
}

// rank orders tiers so the router can only ratchet upward
func rank(level string) int {
	switch level {
	case entity.EscalationCommittee:
		return 3
	case entity.EscalationGM:
		return 2
	case entity.EscalationManager:
		return 1
	default:
		return 0
	}
}

// Route computes the required escalation tier. It is idempotent: the same
// inputs always yield the same decision, and the output level is never
// lower than the current one.
func Route(in Input) Decision {
	level := entity.EscalationManager

	// Base tier by amount vs the manager approval limit
	if in.ClaimedAmount.GreaterThan(in.ManagerApprovalLimit) {
		level = entity.EscalationGM
	}

	// Committee ratchet: fraud, SLA breach, or an amount above half the
	// policy annual limit all override manager/gm
	if in.FraudFlag || in.IsOverdue ||
		(in.PolicyAnnualLimit.IsPositive() && in.ClaimedAmount.GreaterThan(in.PolicyAnnualLimit.Mul(committeeAnnualShare))) {
		level = entity.EscalationCommittee
	}

	if rank(in.CurrentLevel) > rank(level) {
		level = in.CurrentLevel
	}

	return Decision{
		Level:             level,
		CommitteeRequired: level == entity.EscalationCommittee,
	}
}
