package service

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qasimbotani/health-insurance/internal/domain/entity"
	"github.com/qasimbotani/health-insurance/internal/domain/faults"
	"github.com/qasimbotani/health-insurance/internal/domain/workflow"
)

func dec(v int64) decimal.Decimal { return decimal.NewFromInt(v) }

func TestApportion(t *testing.T) {
	tests := []struct {
		name          string
		claimed       int64
		line          *entity.CoverageLine
		contract      *entity.ReinsuranceContract
		alreadyUsed   int64
		wantApproved  string
		wantInsurer   string
		wantReinsurer string
		wantErr       bool
	}{
		{
			name:         "no limits no contract pays in full",
			claimed:      600,
			line:         &entity.CoverageLine{Covered: true},
			wantApproved: "600", wantInsurer: "600", wantReinsurer: "0",
		},
		{
			name:    "per claim cap then copay",
			claimed: 600,
			line: &entity.CoverageLine{
				Covered:         true,
				PerClaimLimit:   dec(500),
				CopayPercentage: dec(20),
			},
			wantApproved: "400", wantInsurer: "400", wantReinsurer: "0",
		},
		{
			name:    "per claim cap then copay then retention",
			claimed: 600,
			line: &entity.CoverageLine{
				Covered:         true,
				PerClaimLimit:   dec(500),
				CopayPercentage: dec(20),
			},
			contract:     &entity.ReinsuranceContract{RetentionAmount: dec(300)},
			wantApproved: "400", wantInsurer: "300", wantReinsurer: "100",
		},
		{
			name:    "member annual allowance caps before copay",
			claimed: 2000,
			line: &entity.CoverageLine{
				Covered:     true,
				AnnualLimit: dec(1000),
			},
			alreadyUsed:  600,
			wantApproved: "400", wantInsurer: "400", wantReinsurer: "0",
		},
		{
			name:    "another member's usage does not shrink the allowance",
			claimed: 2000,
			line: &entity.CoverageLine{
				Covered:     true,
				AnnualLimit: dec(5000),
				UsedAmount:  dec(4500),
			},
			wantApproved: "2000", wantInsurer: "2000", wantReinsurer: "0",
		},
		{
			name:    "insurer keeps only the retention when the cession is capped",
			claimed: 2000,
			line:    &entity.CoverageLine{Covered: true},
			contract: &entity.ReinsuranceContract{
				RetentionAmount:   dec(300),
				MaxCoverageAmount: dec(1000),
			},
			wantApproved: "1300", wantInsurer: "300", wantReinsurer: "1000",
		},
		{
			name:    "below retention stays with insurer",
			claimed: 200,
			line:    &entity.CoverageLine{Covered: true},
			contract: &entity.ReinsuranceContract{
				RetentionAmount: dec(300),
			},
			wantApproved: "200", wantInsurer: "200", wantReinsurer: "0",
		},
		{
			name:    "exhausted annual allowance leaves nothing payable",
			claimed: 500,
			line: &entity.CoverageLine{
				Covered:     true,
				AnnualLimit: dec(1000),
			},
			alreadyUsed: 1000,
			wantErr:     true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			approved, insurer, reinsurer, err := apportion(dec(tt.claimed), tt.line, tt.contract, dec(tt.alreadyUsed))
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, faults.IsValidation(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantApproved, approved.String())
			assert.Equal(t, tt.wantInsurer, insurer.String())
			assert.Equal(t, tt.wantReinsurer, reinsurer.String())
			assert.True(t, approved.Equal(insurer.Add(reinsurer)), "shares must sum to the approved amount")
			if tt.contract != nil {
				assert.False(t, insurer.GreaterThan(tt.contract.RetentionAmount),
					"insurer share must not exceed the retention")
			}
		})
	}
}

func TestSubmit_GateRejectsWithoutAttachments(t *testing.T) {
	env := newTestEnv()
	claim := env.newClaim(t, 400, "carol")
	env.docs.counts[claim.ID] = 0

	_, err := env.svc.Submit(context.Background(), claim.ID, "carol")
	require.Error(t, err)
	assert.True(t, faults.IsValidation(err))
	assert.Contains(t, err.Error(), "no supporting documents")
}

func TestSubmit_GateRejectsInactivePolicy(t *testing.T) {
	env := newTestEnv()
	claim := env.newClaim(t, 400, "carol")

	env.policy.State = workflow.PolicyDraft
	env.policies.Update(context.Background(), env.policy)

	_, err := env.svc.Submit(context.Background(), claim.ID, "carol")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not active")
}

func TestSubmit_GateRejectsProjectedAnnualLimitBreach(t *testing.T) {
	env := newTestEnv()

	// 9400 already approved against the 10000 annual limit
	prior := env.newClaim(t, 9400, "carol")
	stored, _ := env.claims.GetByID(context.Background(), prior.ID)
	stored.State = workflow.ClaimApproved
	stored.ApprovedAmount = dec(9400)
	env.claims.Update(context.Background(), stored)

	claim := env.newClaim(t, 700, "carol")
	_, err := env.svc.Submit(context.Background(), claim.ID, "carol")
	require.Error(t, err)
	assert.True(t, faults.IsValidation(err))
	assert.Contains(t, err.Error(), "annual limit")
}

func TestSubmit_GateRejectsUncoveredService(t *testing.T) {
	env := newTestEnv()
	env.providers.services[2] = &entity.Service{ID: 2, Code: "DENT", Active: true}

	claim, err := env.svc.Create(context.Background(), CreateClaimInput{
		MemberID:      env.member.ID,
		ProviderID:    1,
		ServiceID:     2,
		ClaimedAmount: dec(100),
		CreatedBy:     "carol",
	})
	require.NoError(t, err)
	env.docs.counts[claim.ID] = 1

	_, err = env.svc.Submit(context.Background(), claim.ID, "carol")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not covered")
}

func TestSubmit_RoutesToManagerAndSetsDeadline(t *testing.T) {
	env := newTestEnv()
	claim := env.submittedClaim(t, 400, "carol")

	assert.Equal(t, workflow.ClaimSubmitted, claim.State)
	assert.Equal(t, entity.EscalationManager, claim.EscalationLevel)
	assert.False(t, claim.CommitteeRequired)
	require.NotNil(t, claim.SLADeadline)
	assert.Equal(t, env.now.Add(48*time.Hour), *claim.SLADeadline)

	// one review task for the manager tier
	open := env.tasks.open(claim.ID)
	require.Len(t, open, 1)
	assert.Equal(t, "mia", open[0].assignee)
}

func TestSubmit_EscalatesAboveManagerLimit(t *testing.T) {
	env := newTestEnv()
	claim := env.submittedClaim(t, 2000, "carol")

	assert.Equal(t, entity.EscalationGM, claim.EscalationLevel)
	assert.False(t, claim.CommitteeRequired)
}

func TestSubmit_CommitteeAboveHalfAnnualLimit(t *testing.T) {
	env := newTestEnv()
	env.coverage.lines[env.line.ID].AnnualLimit = dec(8000)

	claim := env.submittedClaim(t, 6000, "carol")

	assert.Equal(t, entity.EscalationCommittee, claim.EscalationLevel)
	assert.True(t, claim.CommitteeRequired)
}

func TestSubmit_ResubmitKeepsEscalation(t *testing.T) {
	env := newTestEnv()
	claim := env.submittedClaim(t, 2000, "carol")
	require.Equal(t, entity.EscalationGM, claim.EscalationLevel)

	_, err := env.svc.Return(context.Background(), claim.ID, "greta", "missing invoice date")
	require.NoError(t, err)

	// lower the amount below the manager limit; escalation must not drop
	stored, _ := env.claims.GetByID(context.Background(), claim.ID)
	stored.ClaimedAmount = dec(400)
	env.claims.Update(context.Background(), stored)

	resubmitted, err := env.svc.Submit(context.Background(), claim.ID, "carol")
	require.NoError(t, err)
	assert.Equal(t, entity.EscalationGM, resubmitted.EscalationLevel)
	assert.Empty(t, resubmitted.ReturnReason)
}

func TestReturn_RequiresReason(t *testing.T) {
	env := newTestEnv()
	claim := env.submittedClaim(t, 400, "carol")

	_, err := env.svc.Return(context.Background(), claim.ID, "mia", "")
	require.Error(t, err)
	assert.True(t, faults.IsValidation(err))
}

func TestApprove_SelfApprovalForbidden(t *testing.T) {
	env := newTestEnv()
	claim := env.submittedClaim(t, 400, "mia")

	_, err := env.svc.Approve(context.Background(), claim.ID, "mia", AuthorityNormal, "")
	require.Error(t, err)
	assert.True(t, faults.IsAuthorization(err))
	assert.Contains(t, err.Error(), "creator")
}

func TestApprove_HappyPathApportionsAndPosts(t *testing.T) {
	env := newTestEnv()
	env.line.PerClaimLimit = dec(500)
	env.line.CopayPercentage = dec(20)
	env.coverage.lines[env.line.ID].PerClaimLimit = dec(500)
	env.coverage.lines[env.line.ID].CopayPercentage = dec(20)

	claim := env.submittedClaim(t, 600, "carol")
	approved, err := env.svc.Approve(context.Background(), claim.ID, "mia", AuthorityNormal, "")
	require.NoError(t, err)

	assert.Equal(t, workflow.ClaimApproved, approved.State)
	assert.Equal(t, "400", approved.ApprovedAmount.String())
	assert.Equal(t, "300", approved.InsurerShare.String())
	assert.Equal(t, "100", approved.ReinsurerShare.String())
	assert.Equal(t, "mia", approved.ApprovedBy)
	assert.False(t, approved.OverrideUsed)
	require.NotNil(t, approved.ReinsuranceContractID)
	assert.Equal(t, env.contract.ID, *approved.ReinsuranceContractID)

	// journal posted payable to the provider's partner
	require.Len(t, env.ledger.postings, 1)
	p := env.ledger.postings[0]
	assert.Equal(t, entity.MovePayable, p.moveType)
	assert.Equal(t, "PARTNER-PRV-1", p.payeeRef)
	assert.Equal(t, "JE-1", approved.JournalEntryID)

	// only the insurer share consumes the service limit
	assert.Equal(t, "300", env.coverage.lines[env.line.ID].UsedAmount.String())

	// member utilization recomputed
	member, _ := env.members.GetByID(context.Background(), env.member.ID)
	assert.Equal(t, "400", member.TotalClaimed.String())
	assert.Equal(t, "9600", member.RemainingAnnualLimit.String())
	assert.Equal(t, "4", member.UtilizationPercent.String())

	// review tasks closed
	assert.Empty(t, env.tasks.open(claim.ID))
}

func TestApprove_AnnualAllowanceIsPerMember(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()

	other := &entity.Member{
		Number:     "MBR-2026-00002",
		Name:       "Riley Chen",
		PolicyID:   env.policy.ID,
		PartnerRef: "PARTNER-MBR-2",
		State:      workflow.MemberActive,
	}
	env.members.Create(ctx, other)

	// first member consumes most of the 5000 allowance
	first := env.submittedClaim(t, 4800, "carol")
	approved, err := env.svc.Approve(ctx, first.ID, "greta", AuthorityNormal, "")
	require.NoError(t, err)
	require.Equal(t, "4800", approved.ApprovedAmount.String())

	// their next claim is capped to what remains of their own allowance
	second := env.submittedClaim(t, 500, "carol")
	approved, err = env.svc.Approve(ctx, second.ID, "mia", AuthorityNormal, "")
	require.NoError(t, err)
	assert.Equal(t, "200", approved.ApprovedAmount.String())

	// and once exhausted, further approvals fail
	third := env.submittedClaim(t, 500, "carol")
	_, err = env.svc.Approve(ctx, third.ID, "mia", AuthorityNormal, "")
	require.Error(t, err)
	assert.True(t, faults.IsValidation(err))
	assert.Contains(t, err.Error(), "fully used")

	// the other member's allowance is untouched by the first member's usage
	theirs, err := env.svc.Create(ctx, CreateClaimInput{
		MemberID:      other.ID,
		ProviderID:    1,
		ServiceID:     1,
		ClaimedAmount: dec(500),
		CreatedBy:     "carol",
	})
	require.NoError(t, err)
	env.docs.counts[theirs.ID] = 1
	_, err = env.svc.Submit(ctx, theirs.ID, "carol")
	require.NoError(t, err)

	approved, err = env.svc.Approve(ctx, theirs.ID, "mia", AuthorityNormal, "")
	require.NoError(t, err)
	assert.Equal(t, "500", approved.ApprovedAmount.String())
}

func TestApprove_MemberPayeePostsReceivable(t *testing.T) {
	env := newTestEnv()
	claim, err := env.svc.Create(context.Background(), CreateClaimInput{
		MemberID:      env.member.ID,
		ProviderID:    1,
		ServiceID:     1,
		ClaimedAmount: dec(200),
		PayeeType:     entity.PayeeMember,
		CreatedBy:     "carol",
	})
	require.NoError(t, err)
	env.docs.counts[claim.ID] = 1
	_, err = env.svc.Submit(context.Background(), claim.ID, "carol")
	require.NoError(t, err)

	_, err = env.svc.Approve(context.Background(), claim.ID, "mia", AuthorityNormal, "")
	require.NoError(t, err)

	require.Len(t, env.ledger.postings, 1)
	assert.Equal(t, entity.MoveReceivable, env.ledger.postings[0].moveType)
	assert.Equal(t, "PARTNER-MBR-1", env.ledger.postings[0].payeeRef)
}

func TestApprove_WrongTierForbidden(t *testing.T) {
	env := newTestEnv()
	claim := env.submittedClaim(t, 2000, "carol") // gm tier

	_, err := env.svc.Approve(context.Background(), claim.ID, "mia", AuthorityNormal, "")
	require.Error(t, err)
	assert.True(t, faults.IsAuthorization(err))
}

func TestApprove_CommitteeRequiredBlocksNormalPath(t *testing.T) {
	env := newTestEnv()
	claim := env.submittedClaim(t, 6000, "carol")
	require.True(t, claim.CommitteeRequired)

	_, err := env.svc.Approve(context.Background(), claim.ID, "greta", AuthorityNormal, "")
	require.Error(t, err)
	assert.True(t, faults.IsAuthorization(err))
	assert.Contains(t, err.Error(), "committee")
}

func TestApprove_GMOverride(t *testing.T) {
	env := newTestEnv()

	t.Run("requires justification", func(t *testing.T) {
		claim := env.submittedClaim(t, 6000, "carol")
		_, err := env.svc.Approve(context.Background(), claim.ID, "greta", AuthorityGMOverride, "")
		require.Error(t, err)
		assert.True(t, faults.IsValidation(err))
	})

	t.Run("requires the gm role", func(t *testing.T) {
		claim := env.submittedClaim(t, 400, "carol")
		_, err := env.svc.Approve(context.Background(), claim.ID, "mia", AuthorityGMOverride, "urgent")
		require.Error(t, err)
		assert.True(t, faults.IsAuthorization(err))
	})

	t.Run("cannot override a fraud flagged claim", func(t *testing.T) {
		claim := env.submittedClaim(t, 400, "carol")
		_, err := env.svc.FlagFraud(context.Background(), claim.ID, "mia", "suspicious pattern")
		require.NoError(t, err)

		_, err = env.svc.Approve(context.Background(), claim.ID, "greta", AuthorityGMOverride, "urgent")
		require.Error(t, err)
		assert.True(t, faults.IsAuthorization(err))
		assert.Contains(t, err.Error(), "committee")
	})

	t.Run("succeeds and records the override", func(t *testing.T) {
		claim := env.submittedClaim(t, 400, "carol")
		approved, err := env.svc.Approve(context.Background(), claim.ID, "greta", AuthorityGMOverride, "board escalation")
		require.NoError(t, err)
		assert.True(t, approved.OverrideUsed)
		assert.Equal(t, "greta", approved.OverrideBy)
		assert.Equal(t, "board escalation", approved.OverrideReason)
	})
}

func TestApprove_CommitteeOverride(t *testing.T) {
	env := newTestEnv()

	t.Run("requires justification", func(t *testing.T) {
		claim := env.submittedClaim(t, 400, "carol")
		_, err := env.svc.Approve(context.Background(), claim.ID, "alice", AuthorityCommitteeOverride, "")
		require.Error(t, err)
		assert.True(t, faults.IsValidation(err))
	})

	t.Run("requires the committee role", func(t *testing.T) {
		claim := env.submittedClaim(t, 400, "carol")
		_, err := env.svc.Approve(context.Background(), claim.ID, "greta", AuthorityCommitteeOverride, "escalated")
		require.Error(t, err)
		assert.True(t, faults.IsAuthorization(err))
	})

	t.Run("resolves a fraud flagged claim", func(t *testing.T) {
		claim := env.submittedClaim(t, 400, "carol")
		_, err := env.svc.FlagFraud(context.Background(), claim.ID, "mia", "suspicious pattern")
		require.NoError(t, err)

		approved, err := env.svc.Approve(context.Background(), claim.ID, "alice", AuthorityCommitteeOverride, "investigated and cleared")
		require.NoError(t, err)
		assert.Equal(t, workflow.ClaimApproved, approved.State)
		assert.True(t, approved.OverrideUsed)
		assert.Equal(t, "alice", approved.OverrideBy)
		assert.Equal(t, "investigated and cleared", approved.OverrideReason)
	})
}

func TestApprove_LedgerFailureAbortsApproval(t *testing.T) {
	env := newTestEnv()
	claim := env.submittedClaim(t, 400, "carol")
	env.ledger.failPost = faults.Configuration("no expense account configured",
		"Set accounting.expense_account and retry.")

	_, err := env.svc.Approve(context.Background(), claim.ID, "mia", AuthorityNormal, "")
	require.Error(t, err)
	assert.True(t, faults.IsConfiguration(err))

	// coverage usage untouched
	assert.True(t, env.coverage.lines[env.line.ID].UsedAmount.IsZero())
}

func TestReject_ApprovedClaimReversesAndReleases(t *testing.T) {
	env := newTestEnv()
	claim := env.submittedClaim(t, 400, "carol")
	approved, err := env.svc.Approve(context.Background(), claim.ID, "mia", AuthorityNormal, "")
	require.NoError(t, err)
	require.Equal(t, "300", approved.InsurerShare.String())
	require.Equal(t, "100", approved.ReinsurerShare.String())

	rejected, err := env.svc.Reject(context.Background(), claim.ID, "greta", "documentation proved invalid")
	require.NoError(t, err)

	assert.Equal(t, workflow.ClaimRejected, rejected.State)
	assert.True(t, rejected.ApprovedAmount.IsZero())
	assert.True(t, rejected.InsurerShare.IsZero())
	assert.True(t, rejected.ReinsurerShare.IsZero())

	// journal reversed and coverage released
	assert.Equal(t, []string{"JE-1"}, env.ledger.reversals)
	assert.True(t, env.coverage.lines[env.line.ID].UsedAmount.IsZero())

	member, _ := env.members.GetByID(context.Background(), env.member.ID)
	assert.True(t, member.TotalClaimed.IsZero())
}

func TestReject_PaidClaimBlocked(t *testing.T) {
	env := newTestEnv()
	claim := env.submittedClaim(t, 400, "carol")
	_, err := env.svc.Approve(context.Background(), claim.ID, "mia", AuthorityNormal, "")
	require.NoError(t, err)
	_, err = env.svc.MarkPaid(context.Background(), claim.ID, "mia", "PAY-1")
	require.NoError(t, err)

	_, err = env.svc.Reject(context.Background(), claim.ID, "greta", "late audit finding")
	require.Error(t, err)
	assert.True(t, faults.IsValidation(err))
	assert.Contains(t, err.Error(), "reverse the payment first")
}

func TestReject_CededClaimConflicts(t *testing.T) {
	env := newTestEnv()
	claim := env.submittedClaim(t, 400, "carol")
	_, err := env.svc.Approve(context.Background(), claim.ID, "mia", AuthorityNormal, "")
	require.NoError(t, err)

	require.NoError(t, env.claims.LockToBordereauLine(context.Background(), claim.ID, 7))

	_, err = env.svc.Reject(context.Background(), claim.ID, "greta", "late audit finding")
	require.Error(t, err)
	assert.True(t, faults.IsConflict(err))
}

func TestMarkPaid_TwiceConflicts(t *testing.T) {
	env := newTestEnv()
	claim := env.submittedClaim(t, 400, "carol")
	_, err := env.svc.Approve(context.Background(), claim.ID, "mia", AuthorityNormal, "")
	require.NoError(t, err)

	paid, err := env.svc.MarkPaid(context.Background(), claim.ID, "mia", "PAY-1")
	require.NoError(t, err)
	assert.Equal(t, entity.PaymentPaid, paid.PaymentState)
	assert.Equal(t, "PAY-1", paid.PaymentID)

	_, err = env.svc.MarkPaid(context.Background(), claim.ID, "mia", "PAY-2")
	require.Error(t, err)
	assert.True(t, faults.IsConflict(err))
}

func TestFlagFraud_ForcesCommitteeAndMinimumScore(t *testing.T) {
	env := newTestEnv()
	claim := env.submittedClaim(t, 400, "carol")
	require.Zero(t, claim.FraudScore)

	flagged, err := env.svc.FlagFraud(context.Background(), claim.ID, "mia", "duplicate invoice numbers")
	require.NoError(t, err)

	assert.True(t, flagged.FraudFlag)
	assert.Equal(t, 50, flagged.FraudScore)
	assert.Contains(t, flagged.FraudReason, "duplicate invoice numbers")
	assert.Equal(t, entity.EscalationCommittee, flagged.EscalationLevel)
	assert.True(t, flagged.CommitteeRequired)
}

func TestClearFraudFlag_KeepsEscalation(t *testing.T) {
	env := newTestEnv()
	claim := env.submittedClaim(t, 400, "carol")
	_, err := env.svc.FlagFraud(context.Background(), claim.ID, "mia", "suspicious pattern")
	require.NoError(t, err)

	cleared, err := env.svc.ClearFraudFlag(context.Background(), claim.ID, "mia")
	require.NoError(t, err)
	assert.False(t, cleared.FraudFlag)
	assert.Equal(t, entity.EscalationCommittee, cleared.EscalationLevel)
}

func TestCreate_RejectsInactiveMember(t *testing.T) {
	env := newTestEnv()
	env.member.State = workflow.MemberSuspended
	env.members.Update(context.Background(), env.member)

	_, err := env.svc.Create(context.Background(), CreateClaimInput{
		MemberID:      env.member.ID,
		ProviderID:    1,
		ServiceID:     1,
		ClaimedAmount: dec(100),
		CreatedBy:     "carol",
	})
	require.Error(t, err)
	assert.True(t, faults.IsValidation(err))
}

func TestCreate_RejectsNonPositiveAmount(t *testing.T) {
	env := newTestEnv()
	_, err := env.svc.Create(context.Background(), CreateClaimInput{
		MemberID:      env.member.ID,
		ProviderID:    1,
		ServiceID:     1,
		ClaimedAmount: decimal.Zero,
		CreatedBy:     "carol",
	})
	require.Error(t, err)
	assert.True(t, faults.IsValidation(err))
}
