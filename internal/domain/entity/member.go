package entity

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/qasimbotani/health-insurance/internal/domain/workflow"
)

// Member document types collected during underwriting
const (
	DocumentID          = "id"
	DocumentApplication = "application"
	DocumentMedical     = "medical"
	DocumentAddress     = "address"
	DocumentLab         = "lab"
)

// Member is an insured person attached to a policy. TotalClaimed and
// RemainingAnnualLimit are derived sums recomputed at approval and
// rejection, not reactively.
type Member struct {
	ID     int64  `json:"id"`
	Number string `json:"number"`
	Name   string `json:"name"`

	PolicyID   int64  `json:"policy_id"`
	PartnerRef string `json:"partner_ref,omitempty"` // accounting partner used for reimbursements

	TotalClaimed         decimal.Decimal `json:"total_claimed"`
	RemainingAnnualLimit decimal.Decimal `json:"remaining_annual_limit"`
	UtilizationPercent   decimal.Decimal `json:"utilization_percent"`
	RiskScore            int             `json:"risk_score"`

	State workflow.State `json:"state"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// MemberDocument is an underwriting document attached to a member
type MemberDocument struct {
	ID            int64      `json:"id"`
	MemberID      int64      `json:"member_id"`
	DocumentType  string     `json:"document_type"`
	AttachmentRef string     `json:"attachment_ref"`
	Verified      bool       `json:"verified"`
	VerifiedBy    string     `json:"verified_by,omitempty"`
	VerifiedDate  *time.Time `json:"verified_date,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
}
