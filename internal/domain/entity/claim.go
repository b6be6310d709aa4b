package entity

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/qasimbotani/health-insurance/internal/domain/workflow"
)

// Escalation levels
const (
	EscalationManager   = "manager"
	EscalationGM        = "gm"
	EscalationCommittee = "committee"
)

// Payee types
const (
	PayeeProvider = "provider"
	PayeeMember   = "member"
)

// Payment states
const (
	PaymentNotPaid = "not_paid"
	PaymentPaid    = "paid"
)

// SLA statuses
const (
	SLAOk       = "ok"
	SLAWarning  = "warning"
	SLABreached = "breached"
)

// Claim is a medical claim moving through submission, risk evaluation,
// escalation, approval and apportionment. Financial shares are set exactly
// once at approval and satisfy ApprovedAmount = InsurerShare + ReinsurerShare.
type Claim struct {
	ID     int64  `json:"id"`
	Number string `json:"number"`

	MemberID   int64 `json:"member_id"`
	ProviderID int64 `json:"provider_id"`
	ServiceID  int64 `json:"service_id"`
	PolicyID   int64 `json:"policy_id"` // derived from the member, denormalized at creation

	ClaimedAmount  decimal.Decimal `json:"claimed_amount"`
	ApprovedAmount decimal.Decimal `json:"approved_amount"`
	InsurerShare   decimal.Decimal `json:"insurer_share"`
	ReinsurerShare decimal.Decimal `json:"reinsurer_share"`

	PayeeType string         `json:"payee_type"`
	State     workflow.State `json:"state"`

	EscalationLevel   string `json:"escalation_level"`
	CommitteeRequired bool   `json:"committee_required"`
	CommitteeQuorum   int    `json:"committee_quorum"`

	FraudScore  int    `json:"fraud_score"`
	FraudFlag   bool   `json:"fraud_flag"`
	FraudReason string `json:"fraud_reason,omitempty"`

	SLADeadline *time.Time `json:"sla_deadline,omitempty"`
	IsOverdue   bool       `json:"is_overdue"`

	ReturnReason string `json:"return_reason,omitempty"`

	OverrideUsed   bool       `json:"override_used"`
	OverrideBy     string     `json:"override_by,omitempty"`
	OverrideReason string     `json:"override_reason,omitempty"`
	OverrideDate   *time.Time `json:"override_date,omitempty"`

	ApprovedBy   string     `json:"approved_by,omitempty"`
	ApprovedDate *time.Time `json:"approved_date,omitempty"`

	ReinsuranceContractID *int64 `json:"reinsurance_contract_id,omitempty"`

	// BordereauLineID is set once the claim is ceded and is immutable thereafter
	BordereauLineID *int64 `json:"bordereau_line_id,omitempty"`

	JournalEntryID string `json:"journal_entry_id,omitempty"`
	PaymentID      string `json:"payment_id,omitempty"`
	PaymentState   string `json:"payment_state"`

	CreatedBy string    `json:"created_by"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Ceded reports whether the claim has been locked to a bordereau line
func (c *Claim) Ceded() bool {
	return c.BordereauLineID != nil
}
