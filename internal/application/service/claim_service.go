package service

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/qasimbotani/health-insurance/internal/application/port"
	"github.com/qasimbotani/health-insurance/internal/domain/entity"
	"github.com/qasimbotani/health-insurance/internal/domain/faults"
	"github.com/qasimbotani/health-insurance/internal/domain/workflow"
	"github.com/qasimbotani/health-insurance/internal/escalation"
	"github.com/qasimbotani/health-insurance/internal/fraud"
	"github.com/qasimbotani/health-insurance/internal/sla"
)

// Authority classifies how an approval was reached
type Authority int

const (
	// AuthorityNormal is an approval by an actor holding the tier the claim
	// escalated to
	AuthorityNormal Authority = iota

	// AuthorityGMOverride is a general manager bypassing the normal tier,
	// with a mandatory justification
	AuthorityGMOverride

	// AuthorityCommitteeOverride is the committee resolution path, reached
	// through quorum voting or a committee member's direct override
	AuthorityCommitteeOverride
)

var hundred = decimal.NewFromInt(100)

// CreateClaimInput carries the fields to open a draft claim
type CreateClaimInput struct {
	MemberID      int64
	ProviderID    int64
	ServiceID     int64
	ClaimedAmount decimal.Decimal
	PayeeType     string
	CreatedBy     string
}

// ClaimService drives the claim lifecycle: creation, the submission gate,
// escalation, approval with financial apportionment, rejection with
// accounting reversal, and payment marking. Every state-changing operation
// runs in one transaction.
type ClaimService struct {
	tx          port.TransactionManager
	claims      port.ClaimRepository
	policies    port.PolicyRepository
	members     port.MemberRepository
	coverage    port.CoverageRepository
	reinsurance port.ReinsuranceRepository
	providers   port.ProviderRepository

	ledger port.LedgerService
	tasks  port.TaskService
	seq    port.SequenceGenerator
	docs   port.DocumentStore
	auth   port.AuthorityChecker
	audit  port.AuditLog

	fraudEval *fraud.Evaluator

	defaultExpenseAccount string
	committeeQuorum       int

	logger *zap.Logger
	now    func() time.Time
}

// ClaimServiceDeps bundles the collaborators of ClaimService
type ClaimServiceDeps struct {
	Tx          port.TransactionManager
	Claims      port.ClaimRepository
	Policies    port.PolicyRepository
	Members     port.MemberRepository
	Coverage    port.CoverageRepository
	Reinsurance port.ReinsuranceRepository
	Providers   port.ProviderRepository
	Ledger      port.LedgerService
	Tasks       port.TaskService
	Sequences   port.SequenceGenerator
	Documents   port.DocumentStore
	Authority   port.AuthorityChecker
	Audit       port.AuditLog

	FraudEvaluator *fraud.Evaluator

	DefaultExpenseAccount string
	CommitteeQuorum       int

	Logger *zap.Logger
}

// NewClaimService creates a new claim service
func NewClaimService(deps ClaimServiceDeps) *ClaimService {
	return &ClaimService{
		tx:                    deps.Tx,
		claims:                deps.Claims,
		policies:              deps.Policies,
		members:               deps.Members,
		coverage:              deps.Coverage,
		reinsurance:           deps.Reinsurance,
		providers:             deps.Providers,
		ledger:                deps.Ledger,
		tasks:                 deps.Tasks,
		seq:                   deps.Sequences,
		docs:                  deps.Documents,
		auth:                  deps.Authority,
		audit:                 deps.Audit,
		fraudEval:             deps.FraudEvaluator,
		defaultExpenseAccount: deps.DefaultExpenseAccount,
		committeeQuorum:       deps.CommitteeQuorum,
		logger:                deps.Logger,
		now:                   time.Now,
	}
}

// WithClock overrides the service clock
func (s *ClaimService) WithClock(now func() time.Time) *ClaimService {
	s.now = now
	return s
}

// Create opens a draft claim for an active member
func (s *ClaimService) Create(ctx context.Context, in CreateClaimInput) (*entity.Claim, error) {
	if !in.ClaimedAmount.IsPositive() {
		return nil, faults.Validation("claimed amount must be positive")
	}
	if in.PayeeType == "" {
		in.PayeeType = entity.PayeeProvider
	}
	if in.PayeeType != entity.PayeeProvider && in.PayeeType != entity.PayeeMember {
		return nil, faults.Validation("unknown payee type %q", in.PayeeType)
	}

	var claim *entity.Claim
	err := s.tx.WithTransaction(ctx, func(ctx context.Context) error {
		member, err := s.members.GetByID(ctx, in.MemberID)
		if err != nil {
			return err
		}
		if member == nil {
			return faults.Validation("member %d does not exist", in.MemberID)
		}
		if member.State != workflow.MemberActive {
			return faults.Validation("member %s is not active", member.Number)
		}

		provider, err := s.providers.GetProvider(ctx, in.ProviderID)
		if err != nil {
			return err
		}
		if provider == nil || !provider.Active {
			return faults.Validation("provider %d is not available", in.ProviderID)
		}

		svc, err := s.providers.GetService(ctx, in.ServiceID)
		if err != nil {
			return err
		}
		if svc == nil || !svc.Active {
			return faults.Validation("service %d is not available", in.ServiceID)
		}

		number, err := s.seq.Next(ctx, port.SeqClaim)
		if err != nil {
			return err
		}

		claim = &entity.Claim{
			Number:          number,
			MemberID:        member.ID,
			ProviderID:      provider.ID,
			ServiceID:       svc.ID,
			PolicyID:        member.PolicyID,
			ClaimedAmount:   in.ClaimedAmount,
			ApprovedAmount:  decimal.Zero,
			InsurerShare:    decimal.Zero,
			ReinsurerShare:  decimal.Zero,
			PayeeType:       in.PayeeType,
			State:           workflow.ClaimDraft,
			EscalationLevel: entity.EscalationManager,
			CommitteeQuorum: s.committeeQuorum,
			PaymentState:    entity.PaymentNotPaid,
			CreatedBy:       in.CreatedBy,
		}
		if err := s.claims.Create(ctx, claim); err != nil {
			return err
		}
		return s.audit.Append(ctx, entity.AuditClaim, claim.ID, in.CreatedBy,
			fmt.Sprintf("Claim %s created for %s", number, in.ClaimedAmount.StringFixed(2)))
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Claim created",
		zap.String("number", claim.Number),
		zap.Int64("member_id", claim.MemberID))
	return claim, nil
}

// Submit runs the submission gate, scores the claim, routes its escalation
// and moves it to submitted. A returned claim resubmits through the same
// path and is rescored; its escalation never drops.
func (s *ClaimService) Submit(ctx context.Context, claimID int64, actor string) (*entity.Claim, error) {
	var claim *entity.Claim

	err := s.tx.WithTransaction(ctx, func(ctx context.Context) error {
		var err error
		claim, err = s.mustGetClaim(ctx, claimID)
		if err != nil {
			return err
		}

		machine := workflow.NewClaimMachine(claim.State)
		trigger := workflow.TriggerSubmit
		if claim.State == workflow.ClaimReturned {
			trigger = workflow.TriggerResubmit
		}
		if !machine.CanFire(trigger) {
			return faults.Validation("claim %s cannot be submitted from state %q", claim.Number, claim.State)
		}
		from := claim.State

		policy, err := s.mustGetPolicy(ctx, claim.PolicyID)
		if err != nil {
			return err
		}

		if err := s.submissionGate(ctx, claim, policy); err != nil {
			return err
		}

		// Risk scoring happens on every submission so a corrected claim is
		// rescored against the history it sees now
		result, err := s.fraudEval.Evaluate(ctx, claim, policy.StartDate)
		if err != nil {
			return err
		}
		claim.FraudScore = result.Score
		claim.FraudFlag = result.Flagged
		claim.FraudReason = result.Reason()

		decision := escalation.Route(escalation.Input{
			ClaimedAmount:        claim.ClaimedAmount,
			ManagerApprovalLimit: policy.ManagerApprovalLimit,
			PolicyAnnualLimit:    policy.AnnualLimit,
			FraudFlag:            claim.FraudFlag,
			IsOverdue:            claim.IsOverdue,
			CurrentLevel:         claim.EscalationLevel,
		})
		claim.EscalationLevel = decision.Level
		claim.CommitteeRequired = decision.CommitteeRequired

		deadline := sla.Deadline(s.now())
		claim.SLADeadline = &deadline
		claim.ReturnReason = ""

		if err := s.claims.TransitionState(ctx, claim.ID, from, workflow.ClaimSubmitted); err != nil {
			return err
		}
		claim.State = workflow.ClaimSubmitted
		if err := s.claims.Update(ctx, claim); err != nil {
			return err
		}

		if err := s.audit.Append(ctx, entity.AuditClaim, claim.ID, actor,
			fmt.Sprintf("Claim submitted. Fraud score %d, escalation %s.", claim.FraudScore, claim.EscalationLevel)); err != nil {
			return err
		}

		return s.fanOutReviewTasks(ctx, claim)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Claim submitted",
		zap.String("number", claim.Number),
		zap.Int("fraud_score", claim.FraudScore),
		zap.String("escalation", claim.EscalationLevel))
	return claim, nil
}

// submissionGate enforces the preconditions of a valid submission
func (s *ClaimService) submissionGate(ctx context.Context, claim *entity.Claim, policy *entity.Policy) error {
	attachments, err := s.docs.CountAttachments(ctx, entity.AuditClaim, claim.ID)
	if err != nil {
		return err
	}
	if attachments < 1 {
		return faults.Validation("claim %s has no supporting documents attached", claim.Number)
	}

	if policy.State != workflow.PolicyActive && policy.State != workflow.PolicyExpiring {
		return faults.Validation("policy %s is not active", policy.Number)
	}
	if !policy.Covers(s.now()) {
		return faults.Validation("policy %s does not cover today's date", policy.Number)
	}
	if !policy.ManagerApprovalLimit.IsPositive() {
		return faults.Validation("policy %s has no manager approval limit configured", policy.Number)
	}

	total, err := s.claims.TotalApprovedByMember(ctx, claim.MemberID)
	if err != nil {
		return err
	}
	if total.Add(claim.ClaimedAmount).GreaterThan(policy.AnnualLimit) {
		return faults.Validation(
			"claim %s would exceed the policy annual limit: %s already approved, %s claimed, limit %s",
			claim.Number, total.StringFixed(2), claim.ClaimedAmount.StringFixed(2), policy.AnnualLimit.StringFixed(2))
	}

	line, err := s.coverage.FindCoveredLine(ctx, policy.CoverageTemplateID, claim.ServiceID)
	if err != nil {
		return err
	}
	if line == nil {
		return faults.Validation("service is not covered under policy %s", policy.Number)
	}
	if line.HasAnnualLimit() && !line.RemainingAmount().IsPositive() {
		return faults.Validation("the annual service limit under policy %s is exhausted", policy.Number)
	}
	return nil
}

// fanOutReviewTasks assigns a review task to every holder of the claim's
// escalation tier
func (s *ClaimService) fanOutReviewTasks(ctx context.Context, claim *entity.Claim) error {
	reviewers, err := s.auth.ListMembers(ctx, claim.EscalationLevel)
	if err != nil {
		return err
	}
	subject := fmt.Sprintf("Review claim %s", claim.Number)
	note := fmt.Sprintf("Claimed %s, fraud score %d.", claim.ClaimedAmount.StringFixed(2), claim.FraudScore)
	if claim.CommitteeRequired {
		note += fmt.Sprintf(" Committee quorum %d required.", claim.CommitteeQuorum)
	}
	for _, reviewer := range reviewers {
		if err := s.tasks.AssignReviewTask(ctx, reviewer, entity.AuditClaim, claim.ID, subject, note); err != nil {
			return err
		}
	}
	return nil
}

// Return sends a submitted claim back to its creator for correction
func (s *ClaimService) Return(ctx context.Context, claimID int64, actor, reason string) (*entity.Claim, error) {
	if reason == "" {
		return nil, faults.Validation("a return reason is required")
	}

	var claim *entity.Claim
	err := s.tx.WithTransaction(ctx, func(ctx context.Context) error {
		var err error
		claim, err = s.mustGetClaim(ctx, claimID)
		if err != nil {
			return err
		}
		if err := s.requireReviewer(ctx, actor, claim.EscalationLevel); err != nil {
			return err
		}

		if err := s.claims.TransitionState(ctx, claim.ID, workflow.ClaimSubmitted, workflow.ClaimReturned); err != nil {
			return err
		}
		claim.State = workflow.ClaimReturned
		claim.ReturnReason = reason
		if err := s.claims.Update(ctx, claim); err != nil {
			return err
		}

		if err := s.tasks.CloseTasks(ctx, entity.AuditClaim, claim.ID); err != nil {
			return err
		}
		return s.audit.Append(ctx, entity.AuditClaim, claim.ID, actor,
			fmt.Sprintf("Claim returned for correction: %s", reason))
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Claim returned", zap.String("number", claim.Number), zap.String("actor", actor))
	return claim, nil
}

// Approve approves a submitted claim and apportions its financials. The
// entire operation is atomic: the claim update, the journal posting, the
// state transition and the coverage increment commit together or not at all.
func (s *ClaimService) Approve(ctx context.Context, claimID int64, actor string, authority Authority, justification string) (*entity.Claim, error) {
	var claim *entity.Claim

	err := s.tx.WithTransaction(ctx, func(ctx context.Context) error {
		var err error
		claim, err = s.mustGetClaim(ctx, claimID)
		if err != nil {
			return err
		}
		if claim.State != workflow.ClaimSubmitted {
			return faults.Validation("claim %s is not awaiting review", claim.Number)
		}
		if actor == claim.CreatedBy {
			return faults.Authorization("claim %s cannot be approved by its creator", claim.Number)
		}

		if err := s.checkApprovalAuthority(ctx, claim, actor, authority, justification); err != nil {
			return err
		}

		policy, err := s.mustGetPolicy(ctx, claim.PolicyID)
		if err != nil {
			return err
		}
		line, err := s.coverage.FindCoveredLine(ctx, policy.CoverageTemplateID, claim.ServiceID)
		if err != nil {
			return err
		}
		if line == nil {
			return faults.Validation("service is not covered under policy %s", policy.Number)
		}

		contract, err := s.reinsurance.FindActiveForPolicy(ctx, claim.PolicyID, s.now())
		if err != nil {
			return err
		}

		// The annual allowance is per member and service, over the calendar year
		yearStart := time.Date(s.now().Year(), 1, 1, 0, 0, 0, 0, time.UTC)
		yearEnd := time.Date(s.now().Year(), 12, 31, 23, 59, 59, 0, time.UTC)
		alreadyUsed, err := s.claims.SumApprovedForMemberService(ctx, claim.MemberID, claim.ServiceID, yearStart, yearEnd)
		if err != nil {
			return err
		}

		approved, insurer, reinsurer, err := apportion(claim.ClaimedAmount, line, contract, alreadyUsed)
		if err != nil {
			return err
		}

		now := s.now()
		claim.ApprovedAmount = approved
		claim.InsurerShare = insurer
		claim.ReinsurerShare = reinsurer
		claim.ApprovedBy = actor
		claim.ApprovedDate = &now
		if contract != nil {
			claim.ReinsuranceContractID = &contract.ID
		}
		if authority != AuthorityNormal {
			claim.OverrideUsed = true
			claim.OverrideBy = actor
			claim.OverrideReason = justification
			claim.OverrideDate = &now
		}

		payeeRef, account, moveType, err := s.payeeDetails(ctx, claim)
		if err != nil {
			return err
		}

		entryID, err := s.ledger.PostEntry(ctx, moveType, claim.PayeeType, payeeRef, []port.LedgerLine{{
			Description: fmt.Sprintf("Claim %s", claim.Number),
			Amount:      approved,
			Account:     account,
		}})
		if err != nil {
			return err
		}
		claim.JournalEntryID = entryID

		if err := s.claims.TransitionState(ctx, claim.ID, workflow.ClaimSubmitted, workflow.ClaimApproved); err != nil {
			return err
		}
		claim.State = workflow.ClaimApproved
		if err := s.claims.Update(ctx, claim); err != nil {
			return err
		}

		// Only the insurer's own share consumes the annual service limit
		newUsed := line.UsedAmount.Add(insurer)
		if line.HasAnnualLimit() && newUsed.GreaterThan(line.AnnualLimit) {
			return faults.Validation("approval would exceed the annual service limit")
		}
		if err := s.coverage.UpdateUsage(ctx, line.ID, newUsed); err != nil {
			return err
		}

		if err := s.recomputeMemberTotals(ctx, claim.MemberID); err != nil {
			return err
		}
		if err := s.tasks.CloseTasks(ctx, entity.AuditClaim, claim.ID); err != nil {
			return err
		}
		return s.audit.Append(ctx, entity.AuditClaim, claim.ID, actor,
			fmt.Sprintf("Claim approved for %s (insurer %s, reinsurer %s).",
				approved.StringFixed(2), insurer.StringFixed(2), reinsurer.StringFixed(2)))
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Claim approved",
		zap.String("number", claim.Number),
		zap.String("approved", claim.ApprovedAmount.StringFixed(2)),
		zap.String("actor", actor))
	return claim, nil
}

// checkApprovalAuthority validates the actor against the approval path taken
func (s *ClaimService) checkApprovalAuthority(ctx context.Context, claim *entity.Claim, actor string, authority Authority, justification string) error {
	switch authority {
	case AuthorityNormal:
		if claim.CommitteeRequired {
			return faults.Authorization("claim %s requires a committee quorum to resolve", claim.Number)
		}
		return s.requireReviewer(ctx, actor, claim.EscalationLevel)

	case AuthorityGMOverride:
		if justification == "" {
			return faults.Validation("an override justification is required")
		}
		if claim.FraudFlag {
			return faults.Authorization("fraud-flagged claims resolve only through the committee")
		}
		ok, err := s.auth.HasRole(ctx, actor, port.RoleGM)
		if err != nil {
			return err
		}
		if !ok {
			return faults.Authorization("actor %s does not hold the general manager role", actor)
		}
		return nil

	case AuthorityCommitteeOverride:
		// Either quorum resolution or a committee member force-approving
		// directly. Committee authority may resolve fraud-flagged claims.
		if justification == "" {
			return faults.Validation("an override justification is required")
		}
		ok, err := s.auth.HasRole(ctx, actor, port.RoleCommittee)
		if err != nil {
			return err
		}
		if !ok {
			return faults.Authorization("actor %s does not hold the committee role", actor)
		}
		return nil

	default:
		return faults.Validation("unknown approval authority")
	}
}

// requireReviewer checks the actor holds the claim's escalation tier
func (s *ClaimService) requireReviewer(ctx context.Context, actor, level string) error {
	ok, err := s.auth.HasRole(ctx, actor, level)
	if err != nil {
		return err
	}
	if !ok {
		return faults.Authorization("actor %s does not hold the %s role", actor, level)
	}
	return nil
}

// payeeDetails resolves the accounting partner, expense account and move
// type for the claim's payee
func (s *ClaimService) payeeDetails(ctx context.Context, claim *entity.Claim) (payeeRef, account, moveType string, err error) {
	account = s.defaultExpenseAccount

	switch claim.PayeeType {
	case entity.PayeeProvider:
		provider, err := s.providers.GetProvider(ctx, claim.ProviderID)
		if err != nil {
			return "", "", "", err
		}
		if provider == nil {
			return "", "", "", faults.Validation("provider %d does not exist", claim.ProviderID)
		}
		if provider.ExpenseAccount != "" {
			account = provider.ExpenseAccount
		}
		return provider.PartnerRef, account, entity.MovePayable, nil

	case entity.PayeeMember:
		member, err := s.members.GetByID(ctx, claim.MemberID)
		if err != nil {
			return "", "", "", err
		}
		if member == nil {
			return "", "", "", faults.Validation("member %d does not exist", claim.MemberID)
		}
		return member.PartnerRef, account, entity.MoveReceivable, nil

	default:
		return "", "", "", faults.Validation("unknown payee type %q", claim.PayeeType)
	}
}

// apportion computes the approved amount and its insurer/reinsurer split.
// Order is fixed: per-claim cap, then the member's remaining annual service
// allowance, then copay, then the reinsurance retention. alreadyUsed is the
// sum of this member's approved amounts for the service in the current
// calendar year.
func apportion(claimed decimal.Decimal, line *entity.CoverageLine, contract *entity.ReinsuranceContract,
	alreadyUsed decimal.Decimal) (approved, insurer, reinsurer decimal.Decimal, err error) {
	amount := claimed

	if line.HasPerClaimLimit() && amount.GreaterThan(line.PerClaimLimit) {
		amount = line.PerClaimLimit
	}
	if line.HasAnnualLimit() {
		remaining := line.AnnualLimit.Sub(alreadyUsed)
		if !remaining.IsPositive() {
			return decimal.Zero, decimal.Zero, decimal.Zero,
				faults.Validation("the annual service allowance is already fully used")
		}
		if amount.GreaterThan(remaining) {
			amount = remaining
		}
	}
	if line.CopayPercentage.IsPositive() {
		amount = amount.Mul(hundred.Sub(line.CopayPercentage)).Div(hundred)
	}
	if !amount.IsPositive() {
		return decimal.Zero, decimal.Zero, decimal.Zero,
			faults.Validation("nothing remains payable after applying coverage limits")
	}

	// The insurer keeps at most the retention; the ceded excess is capped by
	// the contract maximum and anything above that cap is not approved
	insurer = amount
	reinsurer = decimal.Zero
	if contract != nil && insurer.GreaterThan(contract.RetentionAmount) {
		reinsurer = insurer.Sub(contract.RetentionAmount)
		insurer = contract.RetentionAmount
		if contract.MaxCoverageAmount.IsPositive() && reinsurer.GreaterThan(contract.MaxCoverageAmount) {
			reinsurer = contract.MaxCoverageAmount
		}
	}
	return insurer.Add(reinsurer), insurer, reinsurer, nil
}

// Reject rejects a claim. Rejecting an approved claim reverses its journal
// entry and releases the coverage it consumed; a paid or ceded claim cannot
// be rejected.
func (s *ClaimService) Reject(ctx context.Context, claimID int64, actor, reason string) (*entity.Claim, error) {
	if reason == "" {
		return nil, faults.Validation("a rejection reason is required")
	}

	var claim *entity.Claim
	err := s.tx.WithTransaction(ctx, func(ctx context.Context) error {
		var err error
		claim, err = s.mustGetClaim(ctx, claimID)
		if err != nil {
			return err
		}

		machine := workflow.NewClaimMachine(claim.State)
		if !machine.CanFire(workflow.TriggerReject) {
			return faults.Validation("claim %s cannot be rejected from state %q", claim.Number, claim.State)
		}

		wasApproved := claim.State == workflow.ClaimApproved
		if wasApproved {
			if claim.PaymentState == entity.PaymentPaid {
				return faults.Validation("claim %s is already paid; reverse the payment first", claim.Number)
			}
			if claim.Ceded() {
				return faults.Conflict("claim %s is ceded to a bordereau and cannot be rejected", claim.Number)
			}
		}

		if err := s.claims.TransitionState(ctx, claim.ID, claim.State, workflow.ClaimRejected); err != nil {
			return err
		}
		claim.State = workflow.ClaimRejected
		claim.ReturnReason = reason

		if wasApproved {
			if claim.JournalEntryID != "" {
				if _, err := s.ledger.ReverseEntry(ctx, claim.JournalEntryID, reason); err != nil {
					return err
				}
			}

			policy, err := s.mustGetPolicy(ctx, claim.PolicyID)
			if err != nil {
				return err
			}
			line, err := s.coverage.FindCoveredLine(ctx, policy.CoverageTemplateID, claim.ServiceID)
			if err != nil {
				return err
			}
			if line != nil {
				released := line.UsedAmount.Sub(claim.InsurerShare)
				if released.IsNegative() {
					released = decimal.Zero
				}
				if err := s.coverage.UpdateUsage(ctx, line.ID, released); err != nil {
					return err
				}
			}

			claim.ApprovedAmount = decimal.Zero
			claim.InsurerShare = decimal.Zero
			claim.ReinsurerShare = decimal.Zero
		}

		if err := s.claims.Update(ctx, claim); err != nil {
			return err
		}
		if err := s.recomputeMemberTotals(ctx, claim.MemberID); err != nil {
			return err
		}
		if err := s.tasks.CloseTasks(ctx, entity.AuditClaim, claim.ID); err != nil {
			return err
		}
		return s.audit.Append(ctx, entity.AuditClaim, claim.ID, actor,
			fmt.Sprintf("Claim rejected: %s", reason))
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Claim rejected", zap.String("number", claim.Number), zap.String("actor", actor))
	return claim, nil
}

// MarkPaid records the payment of an approved claim. Paying twice is a
// conflict.
func (s *ClaimService) MarkPaid(ctx context.Context, claimID int64, actor, paymentRef string) (*entity.Claim, error) {
	if paymentRef == "" {
		return nil, faults.Validation("a payment reference is required")
	}

	var claim *entity.Claim
	err := s.tx.WithTransaction(ctx, func(ctx context.Context) error {
		var err error
		claim, err = s.mustGetClaim(ctx, claimID)
		if err != nil {
			return err
		}
		if claim.State != workflow.ClaimApproved {
			return faults.Validation("claim %s is not approved", claim.Number)
		}
		if claim.PaymentState == entity.PaymentPaid {
			return faults.Conflict("claim %s is already paid", claim.Number)
		}

		claim.PaymentState = entity.PaymentPaid
		claim.PaymentID = paymentRef
		if err := s.claims.Update(ctx, claim); err != nil {
			return err
		}
		return s.audit.Append(ctx, entity.AuditClaim, claim.ID, actor,
			fmt.Sprintf("Claim paid, reference %s.", paymentRef))
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Claim paid", zap.String("number", claim.Number), zap.String("payment_ref", paymentRef))
	return claim, nil
}

// ClearFraudFlag clears the flag on a submitted claim after manual review.
// The escalation tier reached through the flag is kept.
func (s *ClaimService) ClearFraudFlag(ctx context.Context, claimID int64, actor string) (*entity.Claim, error) {
	var claim *entity.Claim
	err := s.tx.WithTransaction(ctx, func(ctx context.Context) error {
		var err error
		claim, err = s.mustGetClaim(ctx, claimID)
		if err != nil {
			return err
		}
		if claim.State != workflow.ClaimSubmitted {
			return faults.Validation("claim %s is not awaiting review", claim.Number)
		}
		if !claim.FraudFlag {
			return faults.Validation("claim %s is not flagged", claim.Number)
		}
		if err := s.requireReviewer(ctx, actor, port.RoleManager); err != nil {
			return err
		}

		claim.FraudFlag = false
		if err := s.claims.Update(ctx, claim); err != nil {
			return err
		}
		return s.audit.Append(ctx, entity.AuditClaim, claim.ID, actor,
			"Fraud flag cleared after manual review.")
	})
	if err != nil {
		return nil, err
	}
	return claim, nil
}

// FlagFraud flags a submitted claim manually and forces committee review
func (s *ClaimService) FlagFraud(ctx context.Context, claimID int64, actor, reason string) (*entity.Claim, error) {
	if reason == "" {
		return nil, faults.Validation("a flag reason is required")
	}

	var claim *entity.Claim
	err := s.tx.WithTransaction(ctx, func(ctx context.Context) error {
		var err error
		claim, err = s.mustGetClaim(ctx, claimID)
		if err != nil {
			return err
		}
		if claim.State != workflow.ClaimSubmitted {
			return faults.Validation("claim %s is not awaiting review", claim.Number)
		}
		if err := s.requireReviewer(ctx, actor, port.RoleManager); err != nil {
			return err
		}

		claim.FraudFlag = true
		if claim.FraudScore < fraud.ManualFlagMinimumScore {
			claim.FraudScore = fraud.ManualFlagMinimumScore
		}
		if claim.FraudReason != "" {
			claim.FraudReason += "\n"
		}
		claim.FraudReason += fmt.Sprintf("Manually flagged: %s", reason)

		decision := escalation.Route(escalation.Input{
			ClaimedAmount: claim.ClaimedAmount,
			FraudFlag:     true,
			CurrentLevel:  claim.EscalationLevel,
		})
		claim.EscalationLevel = decision.Level
		claim.CommitteeRequired = decision.CommitteeRequired

		if err := s.claims.Update(ctx, claim); err != nil {
			return err
		}
		if err := s.audit.Append(ctx, entity.AuditClaim, claim.ID, actor,
			fmt.Sprintf("Manually flagged for fraud: %s", reason)); err != nil {
			return err
		}
		return s.fanOutReviewTasks(ctx, claim)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Warn("Claim manually flagged",
		zap.String("number", claim.Number), zap.String("actor", actor))
	return claim, nil
}

// Get returns a claim with its live SLA status
func (s *ClaimService) Get(ctx context.Context, claimID int64) (*entity.Claim, sla.Status, error) {
	claim, err := s.mustGetClaim(ctx, claimID)
	if err != nil {
		return nil, sla.Status{}, err
	}
	return claim, sla.Evaluate(claim.SLADeadline, claim.State, s.now()), nil
}

// List returns claims with pagination
func (s *ClaimService) List(ctx context.Context, limit, offset int) ([]*entity.Claim, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	return s.claims.List(ctx, limit, offset)
}

// FraudHeatmap surfaces flagged-claim concentrations per (service, provider)
func (s *ClaimService) FraudHeatmap(ctx context.Context, reader port.FraudHeatmapReader) ([]port.FraudHeatmapCell, error) {
	return reader.Heatmap(ctx)
}

// recomputeMemberTotals refreshes the member's derived utilization figures
func (s *ClaimService) recomputeMemberTotals(ctx context.Context, memberID int64) error {
	member, err := s.members.GetByID(ctx, memberID)
	if err != nil {
		return err
	}
	if member == nil {
		return faults.Validation("member %d does not exist", memberID)
	}
	policy, err := s.mustGetPolicy(ctx, member.PolicyID)
	if err != nil {
		return err
	}

	total, err := s.claims.TotalApprovedByMember(ctx, memberID)
	if err != nil {
		return err
	}

	member.TotalClaimed = total
	member.RemainingAnnualLimit = policy.AnnualLimit.Sub(total)
	if member.RemainingAnnualLimit.IsNegative() {
		member.RemainingAnnualLimit = decimal.Zero
	}
	if policy.AnnualLimit.IsPositive() {
		member.UtilizationPercent = total.Mul(hundred).Div(policy.AnnualLimit)
	} else {
		member.UtilizationPercent = decimal.Zero
	}
	member.RiskScore = int(member.UtilizationPercent.IntPart())
	if member.RiskScore > 100 {
		member.RiskScore = 100
	}
	return s.members.Update(ctx, member)
}

func (s *ClaimService) mustGetClaim(ctx context.Context, id int64) (*entity.Claim, error) {
	claim, err := s.claims.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if claim == nil {
		return nil, faults.Validation("claim %d does not exist", id)
	}
	return claim, nil
}

func (s *ClaimService) mustGetPolicy(ctx context.Context, id int64) (*entity.Policy, error) {
	policy, err := s.policies.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if policy == nil {
		return nil, faults.Validation("policy %d does not exist", id)
	}
	return policy, nil
}
