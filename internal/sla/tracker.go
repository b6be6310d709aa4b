// Package sla computes time-remaining and breach status for submitted
// claims against their fixed response deadline. Pure computation; the
// status is informational and never auto-rejects.
package sla

import (
	"time"

	"github.com/qasimbotani/health-insurance/internal/domain/entity"
	"github.com/qasimbotani/health-insurance/internal/domain/workflow"
)

// ResponseWindow is the decision deadline applied at submission
const ResponseWindow = 48 * time.Hour

// warningWindow marks the near-breach band
const warningWindow = 12 * time.Hour

// Status is the SLA position of a claim at a point in time
type Status struct {
	RemainingHours float64
	State          string // ok | warning | breached
}

// Evaluate computes the SLA status for a claim. Remaining time only
// accrues while the claim is submitted.
func Evaluate(deadline *time.Time, state workflow.State, now time.Time) Status {
	if deadline == nil || state != workflow.ClaimSubmitted {
		return Status{RemainingHours: 0, State: entity.SLAOk}
	}

	hours := deadline.Sub(now).Hours()

	st := Status{RemainingHours: hours}
	if st.RemainingHours < 0 {
		st.RemainingHours = 0
	}

	switch {
	case hours <= 0:
		st.State = entity.SLABreached
	case hours <= warningWindow.Hours():
		st.State = entity.SLAWarning
	default:
		st.State = entity.SLAOk
	}
	return st
}

// IsOverdue reports whether a submitted claim has passed its deadline
func IsOverdue(deadline *time.Time, state workflow.State, now time.Time) bool {
	return state == workflow.ClaimSubmitted && deadline != nil && now.After(*deadline)
}

// Deadline returns the response deadline for a claim submitted at the given time
func Deadline(submittedAt time.Time) time.Time {
	return submittedAt.Add(ResponseWindow)
}
