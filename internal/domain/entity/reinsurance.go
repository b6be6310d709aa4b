package entity

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/qasimbotani/health-insurance/internal/domain/workflow"
)

// ReinsuranceContract is a stop-loss contract scoped to one policy.
// Looked up by date-range containment at approval time.
type ReinsuranceContract struct {
	ID       int64  `json:"id"`
	Name     string `json:"name"`
	Active   bool   `json:"active"`
	PolicyID int64  `json:"policy_id"`

	ReinsurerRef string `json:"reinsurer_ref"`

	// RetentionAmount is the insurer's per-claim cap before cession begins
	RetentionAmount decimal.Decimal `json:"retention_amount"`
	// MaxCoverageAmount caps the reinsurer's per-claim liability; zero means uncapped
	MaxCoverageAmount decimal.Decimal `json:"max_coverage_amount"`

	StartDate time.Time `json:"start_date"`
	EndDate   time.Time `json:"end_date"`
}

// Covers reports whether the contract validity window contains the given date
func (c *ReinsuranceContract) Covers(date time.Time) bool {
	d := date.Truncate(24 * time.Hour)
	return !d.Before(c.StartDate.Truncate(24*time.Hour)) && !d.After(c.EndDate.Truncate(24*time.Hour))
}

// Bordereau is a periodic batch of ceded claims reported to a reinsurer
type Bordereau struct {
	ID         int64  `json:"id"`
	Number     string `json:"number"`
	ContractID int64  `json:"contract_id"`

	PeriodStart time.Time `json:"period_start"`
	PeriodEnd   time.Time `json:"period_end"`

	State        workflow.State `json:"state"`
	SettlementID *int64         `json:"settlement_id,omitempty"`

	TotalReinsurerShare decimal.Decimal `json:"total_reinsurer_share"`
	TotalClaims         int             `json:"total_claims"`

	CreatedAt time.Time `json:"created_at"`
}

// BordereauLine is a snapshot of one ceded claim's financials, frozen at
// cession time and immune to later claim mutation.
type BordereauLine struct {
	ID          int64 `json:"id"`
	BordereauID int64 `json:"bordereau_id"`
	ClaimID     int64 `json:"claim_id"`

	LossDate   time.Time `json:"loss_date"`
	MemberID   int64     `json:"member_id"`
	ProviderID int64     `json:"provider_id"`
	ServiceID  int64     `json:"service_id"`

	ClaimedAmount  decimal.Decimal `json:"claimed_amount"`
	ApprovedAmount decimal.Decimal `json:"approved_amount"`
	ReinsurerShare decimal.Decimal `json:"reinsurer_share"`
}

// Settlement rolls confirmed bordereaux into a periodic settlement with
// the reinsurer.
type Settlement struct {
	ID         int64  `json:"id"`
	Number     string `json:"number"`
	ContractID int64  `json:"contract_id"`

	PeriodStart time.Time `json:"period_start"`
	PeriodEnd   time.Time `json:"period_end"`

	TotalCededAmount decimal.Decimal `json:"total_ceded_amount"`
	State            workflow.State  `json:"state"`

	CreatedAt time.Time `json:"created_at"`
}
