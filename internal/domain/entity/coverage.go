package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// CoverageTemplate defines what services a policy covers
type CoverageTemplate struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	Active      bool      `json:"active"`
	CreatedAt   time.Time `json:"created_at"`
}

// CoverageLine is the per-service coverage rule of a template, plus the
// annual utilization accumulator. Invariant: UsedAmount <= AnnualLimit
// whenever AnnualLimit is positive, enforced on every write. Usage is
// reset to zero once per calendar year, guarded by LastResetYear.
type CoverageLine struct {
	ID         int64 `json:"id"`
	TemplateID int64 `json:"template_id"`
	ServiceID  int64 `json:"service_id"`

	Covered         bool            `json:"covered"`
	AnnualLimit     decimal.Decimal `json:"annual_limit"`
	PerClaimLimit   decimal.Decimal `json:"per_claim_limit"`
	CopayPercentage decimal.Decimal `json:"copay_percentage"`

	UsedAmount    decimal.Decimal `json:"used_amount"`
	LastResetYear int             `json:"last_reset_year"`
}

// RemainingAmount returns max(AnnualLimit - UsedAmount, 0)
func (l *CoverageLine) RemainingAmount() decimal.Decimal {
	remaining := l.AnnualLimit.Sub(l.UsedAmount)
	if remaining.IsNegative() {
		return decimal.Zero
	}
	return remaining
}

// HasAnnualLimit reports whether an annual cap applies to this line
func (l *CoverageLine) HasAnnualLimit() bool {
	return l.AnnualLimit.IsPositive()
}

// HasPerClaimLimit reports whether a per-claim cap applies to this line
func (l *CoverageLine) HasPerClaimLimit() bool {
	return l.PerClaimLimit.IsPositive()
}
