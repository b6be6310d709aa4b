package entity

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/qasimbotani/health-insurance/internal/domain/workflow"
)

// Policy is an insurance policy. Invariant: EndDate >= StartDate.
// A policy may spawn exactly one renewal child; RenewedByID records it.
type Policy struct {
	ID     int64  `json:"id"`
	Number string `json:"number"`
	Name   string `json:"name"`

	HolderRef          string `json:"holder_ref,omitempty"`
	CoverageTemplateID int64  `json:"coverage_template_id"`

	AnnualLimit          decimal.Decimal `json:"annual_limit"`
	ManagerApprovalLimit decimal.Decimal `json:"manager_approval_limit"`

	StartDate time.Time `json:"start_date"`
	EndDate   time.Time `json:"end_date"`

	State workflow.State `json:"state"`

	RenewalOfID *int64 `json:"renewal_of_id,omitempty"`
	RenewedByID *int64 `json:"renewed_by_id,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Covers reports whether the policy validity window contains the given date
func (p *Policy) Covers(date time.Time) bool {
	d := date.Truncate(24 * time.Hour)
	return !d.Before(p.StartDate.Truncate(24*time.Hour)) && !d.After(p.EndDate.Truncate(24*time.Hour))
}
