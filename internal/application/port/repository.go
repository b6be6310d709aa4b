package port

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/qasimbotani/health-insurance/internal/domain/entity"
	"github.com/qasimbotani/health-insurance/internal/domain/workflow"
)

// TransactionManager scopes a function to a single serializable transaction
type TransactionManager interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

// ClaimRepository defines persistence operations for Claim.
// The history queries are the narrow read contracts the fraud evaluator
// and approval engine depend on instead of ambient store access.
type ClaimRepository interface {
	Create(ctx context.Context, claim *entity.Claim) error
	GetByID(ctx context.Context, id int64) (*entity.Claim, error)
	Update(ctx context.Context, claim *entity.Claim) error

	// TransitionState moves the claim from an expected state to a new one.
	// It returns a conflict failure when the claim is no longer in the
	// expected state, making quorum resolution a single compare-and-swap.
	TransitionState(ctx context.Context, id int64, from, to workflow.State) error

	List(ctx context.Context, limit, offset int) ([]*entity.Claim, error)

	// Fraud evaluator read contracts
	ApprovedAmountsByMember(ctx context.Context, memberID int64) ([]decimal.Decimal, error)
	CountCreatedSince(ctx context.Context, memberID int64, since time.Time) (int, error)
	CountApprovedTriple(ctx context.Context, memberID, provider, serviceID int64) (int, error)

	// Approval engine read contracts
	SumApprovedForMemberService(ctx context.Context, memberID, serviceID int64, from, to time.Time) (decimal.Decimal, error)
	TotalApprovedByMember(ctx context.Context, memberID int64) (decimal.Decimal, error)

	// SLA sweep
	ListSubmittedPastDeadline(ctx context.Context, now time.Time) ([]*entity.Claim, error)
	MarkOverdue(ctx context.Context, ids []int64) error

	// Cession: approved+paid claims with a positive reinsurer share inside the
	// period, not yet locked to a bordereau line
	ListCessionCandidates(ctx context.Context, contractID int64, periodStart, periodEnd time.Time) ([]*entity.Claim, error)
	LockToBordereauLine(ctx context.Context, claimID, lineID int64) error
}

// VoteRepository defines persistence operations for ClaimVote
type VoteRepository interface {
	// Create inserts a vote; a duplicate (claim, voter) pair is a conflict failure
	Create(ctx context.Context, vote *entity.ClaimVote) error
	Tally(ctx context.Context, claimID int64) (*entity.VoteTally, error)
	ListByClaim(ctx context.Context, claimID int64) ([]*entity.ClaimVote, error)
	HasVoted(ctx context.Context, claimID int64, voterID string) (bool, error)
}

// PolicyRepository defines persistence operations for Policy
type PolicyRepository interface {
	Create(ctx context.Context, policy *entity.Policy) error
	GetByID(ctx context.Context, id int64) (*entity.Policy, error)
	Update(ctx context.Context, policy *entity.Policy) error
	ListForStateSweep(ctx context.Context) ([]*entity.Policy, error)
	List(ctx context.Context, limit, offset int) ([]*entity.Policy, error)
}

// MemberRepository defines persistence operations for Member
type MemberRepository interface {
	Create(ctx context.Context, member *entity.Member) error
	GetByID(ctx context.Context, id int64) (*entity.Member, error)
	Update(ctx context.Context, member *entity.Member) error
	ListByState(ctx context.Context, state workflow.State) ([]*entity.Member, error)

	AddDocument(ctx context.Context, doc *entity.MemberDocument) error
	ListDocuments(ctx context.Context, memberID int64) ([]*entity.MemberDocument, error)
	VerifyDocument(ctx context.Context, docID int64, verifiedBy string, at time.Time) error
}

// CoverageRepository defines persistence operations for coverage templates and lines
type CoverageRepository interface {
	CreateTemplate(ctx context.Context, tpl *entity.CoverageTemplate) error
	GetTemplate(ctx context.Context, id int64) (*entity.CoverageTemplate, error)
	CreateLine(ctx context.Context, line *entity.CoverageLine) error

	// FindCoveredLine returns the covered line for (template, service), or nil
	FindCoveredLine(ctx context.Context, templateID, serviceID int64) (*entity.CoverageLine, error)
	ListLines(ctx context.Context, templateID int64) ([]*entity.CoverageLine, error)

	// UpdateUsage writes the accumulator; callers run it inside the approval
	// transaction after checking UsedAmount <= AnnualLimit
	UpdateUsage(ctx context.Context, lineID int64, used decimal.Decimal) error

	// ListAllLines feeds the annual reset sweep
	ListAllLines(ctx context.Context) ([]*entity.CoverageLine, error)
	ResetUsage(ctx context.Context, lineID int64, year int) error
}

// ReinsuranceRepository defines persistence for reinsurance contracts
type ReinsuranceRepository interface {
	CreateContract(ctx context.Context, contract *entity.ReinsuranceContract) error
	GetContract(ctx context.Context, id int64) (*entity.ReinsuranceContract, error)
	// FindActiveForPolicy looks a contract up by date-range containment
	FindActiveForPolicy(ctx context.Context, policyID int64, on time.Time) (*entity.ReinsuranceContract, error)
}

// BordereauRepository defines persistence for bordereaux and their lines
type BordereauRepository interface {
	Create(ctx context.Context, b *entity.Bordereau) error
	GetByID(ctx context.Context, id int64) (*entity.Bordereau, error)
	UpdateState(ctx context.Context, id int64, state workflow.State) error
	UpdateTotals(ctx context.Context, id int64, total decimal.Decimal, count int) error
	AttachToSettlement(ctx context.Context, id, settlementID int64) error
	ListBySettlement(ctx context.Context, settlementID int64) ([]*entity.Bordereau, error)

	AddLine(ctx context.Context, line *entity.BordereauLine) error
	ListLines(ctx context.Context, bordereauID int64) ([]*entity.BordereauLine, error)
}

// SettlementRepository defines persistence for reinsurance settlements
type SettlementRepository interface {
	Create(ctx context.Context, s *entity.Settlement) error
	GetByID(ctx context.Context, id int64) (*entity.Settlement, error)
	Update(ctx context.Context, s *entity.Settlement) error
}

// ProviderRepository defines persistence for providers and services
type ProviderRepository interface {
	GetProvider(ctx context.Context, id int64) (*entity.Provider, error)
	GetService(ctx context.Context, id int64) (*entity.Service, error)
}

// AuditLog is the explicit activity-trail capability injected into services
type AuditLog interface {
	Append(ctx context.Context, entityType string, entityID int64, actorID, body string) error
	ListByEntity(ctx context.Context, entityType string, entityID int64) ([]*entity.AuditEntry, error)
}

// FraudHeatmapCell is one (service, provider) aggregation of flagged claims
type FraudHeatmapCell struct {
	ServiceID     int64   `json:"service_id"`
	ProviderID    int64   `json:"provider_id"`
	ClaimCount    int     `json:"claim_count"`
	AvgFraudScore float64 `json:"avg_fraud_score"`
}

// FraudHeatmapReader aggregates flagged claims per (service, provider)
type FraudHeatmapReader interface {
	Heatmap(ctx context.Context) ([]FraudHeatmapCell, error)
}
