package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/qasimbotani/health-insurance/internal/application/port"
	"github.com/qasimbotani/health-insurance/internal/domain/entity"
	"github.com/qasimbotani/health-insurance/internal/domain/faults"
	"github.com/qasimbotani/health-insurance/internal/domain/workflow"
)

// VoteOutcome reports the tally after a vote and whether it resolved the claim
type VoteOutcome struct {
	Tally    entity.VoteTally `json:"tally"`
	Quorum   int              `json:"quorum"`
	Resolved bool             `json:"resolved"`
	Decision string           `json:"decision,omitempty"`
}

// CommitteeService runs quorum voting on committee-escalated claims. A vote
// and any resolution it triggers commit in one transaction; the claim state
// compare-and-swap guarantees at most one resolution under concurrent votes.
type CommitteeService struct {
	tx     port.TransactionManager
	claims port.ClaimRepository
	votes  port.VoteRepository
	auth   port.AuthorityChecker
	audit  port.AuditLog

	claimSvc *ClaimService
	logger   *zap.Logger
}

// NewCommitteeService creates a new committee service
func NewCommitteeService(tx port.TransactionManager, claims port.ClaimRepository, votes port.VoteRepository,
	auth port.AuthorityChecker, audit port.AuditLog, claimSvc *ClaimService, logger *zap.Logger) *CommitteeService {
	return &CommitteeService{
		tx:       tx,
		claims:   claims,
		votes:    votes,
		auth:     auth,
		audit:    audit,
		claimSvc: claimSvc,
		logger:   logger,
	}
}

// CastVote records a committee member's vote and resolves the claim once
// either decision reaches the quorum
func (s *CommitteeService) CastVote(ctx context.Context, claimID int64, voterID, decision, note string) (*VoteOutcome, error) {
	if decision != entity.VoteApprove && decision != entity.VoteReject {
		return nil, faults.Validation("vote decision must be %q or %q", entity.VoteApprove, entity.VoteReject)
	}

	ok, err := s.auth.HasRole(ctx, voterID, port.RoleCommittee)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, faults.Authorization("actor %s does not hold the committee role", voterID)
	}

	var outcome VoteOutcome
	err = s.tx.WithTransaction(ctx, func(ctx context.Context) error {
		claim, err := s.claims.GetByID(ctx, claimID)
		if err != nil {
			return err
		}
		if claim == nil {
			return faults.Validation("claim %d does not exist", claimID)
		}
		if claim.State != workflow.ClaimSubmitted {
			return faults.Validation("claim %s is not awaiting review", claim.Number)
		}
		if !claim.CommitteeRequired || claim.EscalationLevel != entity.EscalationCommittee {
			return faults.Validation("claim %s is not under committee review", claim.Number)
		}
		if voterID == claim.CreatedBy {
			return faults.Authorization("claim %s cannot be voted on by its creator", claim.Number)
		}

		vote := &entity.ClaimVote{
			ClaimID:  claim.ID,
			VoterID:  voterID,
			Decision: decision,
			Note:     note,
		}
		if err := s.votes.Create(ctx, vote); err != nil {
			return err
		}
		if err := s.audit.Append(ctx, entity.AuditClaim, claim.ID, voterID,
			fmt.Sprintf("Committee vote cast: %s.", decision)); err != nil {
			return err
		}

		tally, err := s.votes.Tally(ctx, claim.ID)
		if err != nil {
			return err
		}
		outcome = VoteOutcome{Tally: *tally, Quorum: claim.CommitteeQuorum}

		switch {
		case tally.Approved >= claim.CommitteeQuorum:
			if _, err := s.claimSvc.Approve(ctx, claim.ID, voterID, AuthorityCommitteeOverride,
				fmt.Sprintf("committee quorum reached: %d approvals", tally.Approved)); err != nil {
				return err
			}
			outcome.Resolved = true
			outcome.Decision = entity.VoteApprove

		case tally.Rejected >= claim.CommitteeQuorum:
			if _, err := s.claimSvc.Reject(ctx, claim.ID, voterID,
				fmt.Sprintf("committee quorum reached: %d rejections", tally.Rejected)); err != nil {
				return err
			}
			outcome.Resolved = true
			outcome.Decision = entity.VoteReject
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Committee vote cast",
		zap.Int64("claim_id", claimID),
		zap.String("voter", voterID),
		zap.String("decision", decision),
		zap.Bool("resolved", outcome.Resolved))
	return &outcome, nil
}

// Votes lists the votes cast on a claim
func (s *CommitteeService) Votes(ctx context.Context, claimID int64) ([]*entity.ClaimVote, error) {
	return s.votes.ListByClaim(ctx, claimID)
}
