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
)

// expiringWindowDays is how far ahead of its end date a policy is marked expiring
const expiringWindowDays = 90

// CreatePolicyInput carries the fields to open a draft policy
type CreatePolicyInput struct {
	Name                 string
	HolderRef            string
	CoverageTemplateID   int64
	AnnualLimit          decimal.Decimal
	ManagerApprovalLimit decimal.Decimal
	StartDate            time.Time
	EndDate              time.Time
}

// PolicyService drives the policy lifecycle: activation once coverage is
// configured, the renewal chain, and the periodic expiry sweep.
type PolicyService struct {
	tx       port.TransactionManager
	policies port.PolicyRepository
	coverage port.CoverageRepository
	seq      port.SequenceGenerator
	audit    port.AuditLog

	logger *zap.Logger
	now    func() time.Time
}

// NewPolicyService creates a new policy service
func NewPolicyService(tx port.TransactionManager, policies port.PolicyRepository, coverage port.CoverageRepository,
	seq port.SequenceGenerator, audit port.AuditLog, logger *zap.Logger) *PolicyService {
	return &PolicyService{
		tx:       tx,
		policies: policies,
		coverage: coverage,
		seq:      seq,
		audit:    audit,
		logger:   logger,
		now:      time.Now,
	}
}

// WithClock overrides the service clock
func (s *PolicyService) WithClock(now func() time.Time) *PolicyService {
	s.now = now
	return s
}

// Create opens a draft policy
func (s *PolicyService) Create(ctx context.Context, in CreatePolicyInput) (*entity.Policy, error) {
	if in.EndDate.Before(in.StartDate) {
		return nil, faults.Validation("policy end date is before its start date")
	}
	if !in.AnnualLimit.IsPositive() {
		return nil, faults.Validation("policy annual limit must be positive")
	}

	var policy *entity.Policy
	err := s.tx.WithTransaction(ctx, func(ctx context.Context) error {
		tpl, err := s.coverage.GetTemplate(ctx, in.CoverageTemplateID)
		if err != nil {
			return err
		}
		if tpl == nil {
			return faults.Validation("coverage template %d does not exist", in.CoverageTemplateID)
		}

		number, err := s.seq.Next(ctx, port.SeqPolicy)
		if err != nil {
			return err
		}

		policy = &entity.Policy{
			Number:               number,
			Name:                 in.Name,
			HolderRef:            in.HolderRef,
			CoverageTemplateID:   in.CoverageTemplateID,
			AnnualLimit:          in.AnnualLimit,
			ManagerApprovalLimit: in.ManagerApprovalLimit,
			StartDate:            in.StartDate,
			EndDate:              in.EndDate,
			State:                workflow.PolicyDraft,
		}
		if err := s.policies.Create(ctx, policy); err != nil {
			return err
		}
		return s.audit.Append(ctx, entity.AuditPolicy, policy.ID, "",
			fmt.Sprintf("Policy %s created.", number))
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Policy created", zap.String("number", policy.Number))
	return policy, nil
}

// Activate moves a draft policy to active. The coverage template must carry
// at least one covered line.
func (s *PolicyService) Activate(ctx context.Context, policyID int64, actor string) (*entity.Policy, error) {
	var policy *entity.Policy
	err := s.tx.WithTransaction(ctx, func(ctx context.Context) error {
		var err error
		policy, err = s.mustGet(ctx, policyID)
		if err != nil {
			return err
		}

		machine := workflow.NewPolicyMachine(policy.State)
		if !machine.CanFire(workflow.TriggerActivate) {
			return faults.Validation("policy %s cannot be activated from state %q", policy.Number, policy.State)
		}

		lines, err := s.coverage.ListLines(ctx, policy.CoverageTemplateID)
		if err != nil {
			return err
		}
		covered := 0
		for _, line := range lines {
			if line.Covered {
				covered++
			}
		}
		if covered == 0 {
			return faults.Validation("policy %s has no covered services configured", policy.Number)
		}

		policy.State = workflow.PolicyActive
		if err := s.policies.Update(ctx, policy); err != nil {
			return err
		}
		return s.audit.Append(ctx, entity.AuditPolicy, policy.ID, actor, "Policy activated.")
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Policy activated", zap.String("number", policy.Number))
	return policy, nil
}

// Cancel cancels a policy
func (s *PolicyService) Cancel(ctx context.Context, policyID int64, actor, reason string) (*entity.Policy, error) {
	if reason == "" {
		return nil, faults.Validation("a cancellation reason is required")
	}

	var policy *entity.Policy
	err := s.tx.WithTransaction(ctx, func(ctx context.Context) error {
		var err error
		policy, err = s.mustGet(ctx, policyID)
		if err != nil {
			return err
		}

		machine := workflow.NewPolicyMachine(policy.State)
		if !machine.CanFire(workflow.TriggerCancel) {
			return faults.Validation("policy %s cannot be cancelled from state %q", policy.Number, policy.State)
		}

		policy.State = workflow.PolicyCancelled
		if err := s.policies.Update(ctx, policy); err != nil {
			return err
		}
		return s.audit.Append(ctx, entity.AuditPolicy, policy.ID, actor,
			fmt.Sprintf("Policy cancelled: %s", reason))
	})
	if err != nil {
		return nil, err
	}
	return policy, nil
}

// QuoteRenewal spawns the renewal child of an expiring policy. A policy
// renews at most once.
func (s *PolicyService) QuoteRenewal(ctx context.Context, policyID int64, actor string) (*entity.Policy, error) {
	var renewal *entity.Policy
	err := s.tx.WithTransaction(ctx, func(ctx context.Context) error {
		policy, err := s.mustGet(ctx, policyID)
		if err != nil {
			return err
		}

		machine := workflow.NewPolicyMachine(policy.State)
		if !machine.CanFire(workflow.TriggerQuoteRenewal) {
			return faults.Validation("policy %s cannot quote a renewal from state %q", policy.Number, policy.State)
		}
		if policy.RenewedByID != nil {
			return faults.Conflict("policy %s already has a renewal", policy.Number)
		}

		number, err := s.seq.Next(ctx, port.SeqPolicy)
		if err != nil {
			return err
		}

		duration := policy.EndDate.Sub(policy.StartDate)
		renewal = &entity.Policy{
			Number:               number,
			Name:                 policy.Name,
			HolderRef:            policy.HolderRef,
			CoverageTemplateID:   policy.CoverageTemplateID,
			AnnualLimit:          policy.AnnualLimit,
			ManagerApprovalLimit: policy.ManagerApprovalLimit,
			StartDate:            policy.EndDate.AddDate(0, 0, 1),
			EndDate:              policy.EndDate.AddDate(0, 0, 1).Add(duration),
			State:                workflow.PolicyDraft,
			RenewalOfID:          &policy.ID,
		}
		if err := s.policies.Create(ctx, renewal); err != nil {
			return err
		}

		policy.State = workflow.PolicyRenewalQuoted
		policy.RenewedByID = &renewal.ID
		if err := s.policies.Update(ctx, policy); err != nil {
			return err
		}
		return s.audit.Append(ctx, entity.AuditPolicy, policy.ID, actor,
			fmt.Sprintf("Renewal %s quoted.", renewal.Number))
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Policy renewal quoted", zap.String("renewal", renewal.Number))
	return renewal, nil
}

// Renew finalizes the renewal: the parent moves to renewed and the child
// activates
func (s *PolicyService) Renew(ctx context.Context, policyID int64, actor string) (*entity.Policy, error) {
	var child *entity.Policy
	err := s.tx.WithTransaction(ctx, func(ctx context.Context) error {
		policy, err := s.mustGet(ctx, policyID)
		if err != nil {
			return err
		}

		machine := workflow.NewPolicyMachine(policy.State)
		if !machine.CanFire(workflow.TriggerRenew) {
			return faults.Validation("policy %s cannot renew from state %q", policy.Number, policy.State)
		}
		if policy.RenewedByID == nil {
			return faults.Validation("policy %s has no quoted renewal", policy.Number)
		}

		child, err = s.mustGet(ctx, *policy.RenewedByID)
		if err != nil {
			return err
		}

		policy.State = workflow.PolicyRenewed
		if err := s.policies.Update(ctx, policy); err != nil {
			return err
		}

		child.State = workflow.PolicyActive
		if err := s.policies.Update(ctx, child); err != nil {
			return err
		}
		return s.audit.Append(ctx, entity.AuditPolicy, policy.ID, actor,
			fmt.Sprintf("Policy renewed into %s.", child.Number))
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Policy renewed", zap.String("child", child.Number))
	return child, nil
}

// Sweep advances policy states against the calendar: active policies within
// the expiring window become expiring, and policies past their end date
// expire. The sweep is idempotent.
func (s *PolicyService) Sweep(ctx context.Context) error {
	return s.tx.WithTransaction(ctx, func(ctx context.Context) error {
		policies, err := s.policies.ListForStateSweep(ctx)
		if err != nil {
			return err
		}

		today := s.now()
		horizon := today.AddDate(0, 0, expiringWindowDays)

		for _, policy := range policies {
			switch {
			case policy.EndDate.Before(today):
				policy.State = workflow.PolicyExpired
			case policy.State == workflow.PolicyActive && !policy.EndDate.After(horizon):
				policy.State = workflow.PolicyExpiring
			default:
				continue
			}
			if err := s.policies.Update(ctx, policy); err != nil {
				return err
			}
			if err := s.audit.Append(ctx, entity.AuditPolicy, policy.ID, "",
				fmt.Sprintf("Policy moved to %s by the expiry sweep.", policy.State)); err != nil {
				return err
			}
			s.logger.Info("Policy state swept",
				zap.String("number", policy.Number), zap.String("state", string(policy.State)))
		}
		return nil
	})
}

// Get returns a policy by id
func (s *PolicyService) Get(ctx context.Context, policyID int64) (*entity.Policy, error) {
	return s.mustGet(ctx, policyID)
}

// List returns policies with pagination
func (s *PolicyService) List(ctx context.Context, limit, offset int) ([]*entity.Policy, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	return s.policies.List(ctx, limit, offset)
}

func (s *PolicyService) mustGet(ctx context.Context, id int64) (*entity.Policy, error) {
	policy, err := s.policies.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if policy == nil {
		return nil, faults.Validation("policy %d does not exist", id)
	}
	return policy, nil
}
