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

// BordereauExporter renders a bordereau to a report file and returns its path
type BordereauExporter interface {
	Export(b *entity.Bordereau, contract *entity.ReinsuranceContract, lines []*entity.BordereauLine) (string, error)
}

// CessionService drives reinsurance reporting: it batches ceded claims into
// periodic bordereaux, freezes their financial snapshots, and rolls
// confirmed bordereaux into settlements.
type CessionService struct {
	tx          port.TransactionManager
	claims      port.ClaimRepository
	reinsurance port.ReinsuranceRepository
	bordereaux  port.BordereauRepository
	settlements port.SettlementRepository
	seq         port.SequenceGenerator
	audit       port.AuditLog
	exporter    BordereauExporter

	logger *zap.Logger
}

// NewCessionService creates a new cession service
func NewCessionService(tx port.TransactionManager, claims port.ClaimRepository, reinsurance port.ReinsuranceRepository,
	bordereaux port.BordereauRepository, settlements port.SettlementRepository, seq port.SequenceGenerator,
	audit port.AuditLog, exporter BordereauExporter, logger *zap.Logger) *CessionService {
	return &CessionService{
		tx:          tx,
		claims:      claims,
		reinsurance: reinsurance,
		bordereaux:  bordereaux,
		settlements: settlements,
		seq:         seq,
		audit:       audit,
		exporter:    exporter,
		logger:      logger,
	}
}

// GenerateBordereau batches the contract's unceded claims in the period into
// a new draft bordereau. Each included claim is snapshotted into a line and
// locked to it, so later claim mutation cannot change what was reported.
func (s *CessionService) GenerateBordereau(ctx context.Context, contractID int64, periodStart, periodEnd time.Time, actor string) (*entity.Bordereau, error) {
	if periodEnd.Before(periodStart) {
		return nil, faults.Validation("bordereau period end is before its start")
	}

	var bordereau *entity.Bordereau
	err := s.tx.WithTransaction(ctx, func(ctx context.Context) error {
		contract, err := s.mustGetContract(ctx, contractID)
		if err != nil {
			return err
		}

		candidates, err := s.claims.ListCessionCandidates(ctx, contractID, periodStart, periodEnd)
		if err != nil {
			return err
		}
		if len(candidates) == 0 {
			return faults.Validation("no cedable claims found for contract %s in the period", contract.Name)
		}

		number, err := s.seq.Next(ctx, port.SeqBordereau)
		if err != nil {
			return err
		}

		bordereau = &entity.Bordereau{
			Number:              number,
			ContractID:          contractID,
			PeriodStart:         periodStart,
			PeriodEnd:           periodEnd,
			State:               workflow.BordereauDraft,
			TotalReinsurerShare: decimal.Zero,
		}
		if err := s.bordereaux.Create(ctx, bordereau); err != nil {
			return err
		}

		total := decimal.Zero
		for _, claim := range candidates {
			line := &entity.BordereauLine{
				BordereauID:    bordereau.ID,
				ClaimID:        claim.ID,
				LossDate:       claim.CreatedAt,
				MemberID:       claim.MemberID,
				ProviderID:     claim.ProviderID,
				ServiceID:      claim.ServiceID,
				ClaimedAmount:  claim.ClaimedAmount,
				ApprovedAmount: claim.ApprovedAmount,
				ReinsurerShare: claim.ReinsurerShare,
			}
			if err := s.bordereaux.AddLine(ctx, line); err != nil {
				return err
			}
			if err := s.claims.LockToBordereauLine(ctx, claim.ID, line.ID); err != nil {
				return err
			}
			total = total.Add(claim.ReinsurerShare)
		}

		bordereau.TotalReinsurerShare = total
		bordereau.TotalClaims = len(candidates)
		if err := s.bordereaux.UpdateTotals(ctx, bordereau.ID, total, len(candidates)); err != nil {
			return err
		}
		return s.audit.Append(ctx, entity.AuditBordereau, bordereau.ID, actor,
			fmt.Sprintf("Bordereau %s generated with %d claims, ceded total %s.",
				number, len(candidates), total.StringFixed(2)))
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Bordereau generated",
		zap.String("number", bordereau.Number),
		zap.Int("claims", bordereau.TotalClaims),
		zap.String("total", bordereau.TotalReinsurerShare.StringFixed(2)))
	return bordereau, nil
}

// ConfirmBordereau freezes a draft bordereau for reporting
func (s *CessionService) ConfirmBordereau(ctx context.Context, bordereauID int64, actor string) (*entity.Bordereau, error) {
	var bordereau *entity.Bordereau
	err := s.tx.WithTransaction(ctx, func(ctx context.Context) error {
		var err error
		bordereau, err = s.mustGetBordereau(ctx, bordereauID)
		if err != nil {
			return err
		}

		machine := workflow.NewBordereauMachine(bordereau.State)
		if !machine.CanFire(workflow.TriggerConfirm) {
			return faults.Validation("bordereau %s cannot be confirmed from state %q", bordereau.Number, bordereau.State)
		}

		bordereau.State = workflow.BordereauConfirmed
		if err := s.bordereaux.UpdateState(ctx, bordereau.ID, workflow.BordereauConfirmed); err != nil {
			return err
		}
		return s.audit.Append(ctx, entity.AuditBordereau, bordereau.ID, actor, "Bordereau confirmed.")
	})
	if err != nil {
		return nil, err
	}
	return bordereau, nil
}

// GetBordereau returns a bordereau with its snapshot lines
func (s *CessionService) GetBordereau(ctx context.Context, bordereauID int64) (*entity.Bordereau, []*entity.BordereauLine, error) {
	bordereau, err := s.mustGetBordereau(ctx, bordereauID)
	if err != nil {
		return nil, nil, err
	}
	lines, err := s.bordereaux.ListLines(ctx, bordereauID)
	if err != nil {
		return nil, nil, err
	}
	return bordereau, lines, nil
}

// ExportBordereau renders a bordereau to a spreadsheet and returns the path
func (s *CessionService) ExportBordereau(ctx context.Context, bordereauID int64) (string, error) {
	bordereau, err := s.mustGetBordereau(ctx, bordereauID)
	if err != nil {
		return "", err
	}
	contract, err := s.mustGetContract(ctx, bordereau.ContractID)
	if err != nil {
		return "", err
	}
	lines, err := s.bordereaux.ListLines(ctx, bordereauID)
	if err != nil {
		return "", err
	}

	path, err := s.exporter.Export(bordereau, contract, lines)
	if err != nil {
		return "", fmt.Errorf("failed to export bordereau: %w", err)
	}

	s.logger.Info("Bordereau exported",
		zap.String("number", bordereau.Number), zap.String("path", path))
	return path, nil
}

// CreateSettlement rolls confirmed bordereaux into a draft settlement.
// Every bordereau must belong to the contract and be confirmed and
// unattached.
func (s *CessionService) CreateSettlement(ctx context.Context, contractID int64, periodStart, periodEnd time.Time, bordereauIDs []int64, actor string) (*entity.Settlement, error) {
	if len(bordereauIDs) == 0 {
		return nil, faults.Validation("a settlement requires at least one bordereau")
	}

	var settlement *entity.Settlement
	err := s.tx.WithTransaction(ctx, func(ctx context.Context) error {
		contract, err := s.mustGetContract(ctx, contractID)
		if err != nil {
			return err
		}

		number, err := s.seq.Next(ctx, port.SeqSettlement)
		if err != nil {
			return err
		}

		settlement = &entity.Settlement{
			Number:           number,
			ContractID:       contractID,
			PeriodStart:      periodStart,
			PeriodEnd:        periodEnd,
			TotalCededAmount: decimal.Zero,
			State:            workflow.SettlementDraft,
		}
		if err := s.settlements.Create(ctx, settlement); err != nil {
			return err
		}

		total := decimal.Zero
		for _, id := range bordereauIDs {
			bordereau, err := s.mustGetBordereau(ctx, id)
			if err != nil {
				return err
			}
			if bordereau.ContractID != contractID {
				return faults.Validation("bordereau %s belongs to a different contract than %s",
					bordereau.Number, contract.Name)
			}
			if bordereau.State != workflow.BordereauConfirmed {
				return faults.Validation("bordereau %s is not confirmed", bordereau.Number)
			}
			if err := s.bordereaux.AttachToSettlement(ctx, id, settlement.ID); err != nil {
				return err
			}
			total = total.Add(bordereau.TotalReinsurerShare)
		}

		settlement.TotalCededAmount = total
		if err := s.settlements.Update(ctx, settlement); err != nil {
			return err
		}
		return s.audit.Append(ctx, entity.AuditSettlement, settlement.ID, actor,
			fmt.Sprintf("Settlement %s created over %d bordereaux, total %s.",
				number, len(bordereauIDs), total.StringFixed(2)))
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Settlement created",
		zap.String("number", settlement.Number),
		zap.String("total", settlement.TotalCededAmount.StringFixed(2)))
	return settlement, nil
}

// ConfirmSettlement confirms a draft settlement
func (s *CessionService) ConfirmSettlement(ctx context.Context, settlementID int64, actor string) (*entity.Settlement, error) {
	return s.settlementTransition(ctx, settlementID, actor, workflow.TriggerConfirm,
		workflow.SettlementConfirmed, "Settlement confirmed.")
}

// MarkSettled records the reinsurer's payment of a confirmed settlement
func (s *CessionService) MarkSettled(ctx context.Context, settlementID int64, actor string) (*entity.Settlement, error) {
	return s.settlementTransition(ctx, settlementID, actor, workflow.TriggerSettle,
		workflow.SettlementSettled, "Settlement paid by the reinsurer.")
}

func (s *CessionService) settlementTransition(ctx context.Context, settlementID int64, actor string,
	trigger workflow.Trigger, to workflow.State, auditBody string) (*entity.Settlement, error) {
	var settlement *entity.Settlement
	err := s.tx.WithTransaction(ctx, func(ctx context.Context) error {
		var err error
		settlement, err = s.mustGetSettlement(ctx, settlementID)
		if err != nil {
			return err
		}

		machine := workflow.NewSettlementMachine(settlement.State)
		if !machine.CanFire(trigger) {
			return faults.Validation("settlement %s cannot move from state %q", settlement.Number, settlement.State)
		}

		settlement.State = to
		if err := s.settlements.Update(ctx, settlement); err != nil {
			return err
		}
		return s.audit.Append(ctx, entity.AuditSettlement, settlement.ID, actor, auditBody)
	})
	if err != nil {
		return nil, err
	}
	return settlement, nil
}

func (s *CessionService) mustGetContract(ctx context.Context, id int64) (*entity.ReinsuranceContract, error) {
	contract, err := s.reinsurance.GetContract(ctx, id)
	if err != nil {
		return nil, err
	}
	if contract == nil {
		return nil, faults.Validation("reinsurance contract %d does not exist", id)
	}
	return contract, nil
}

func (s *CessionService) mustGetBordereau(ctx context.Context, id int64) (*entity.Bordereau, error) {
	bordereau, err := s.bordereaux.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if bordereau == nil {
		return nil, faults.Validation("bordereau %d does not exist", id)
	}
	return bordereau, nil
}

func (s *CessionService) mustGetSettlement(ctx context.Context, id int64) (*entity.Settlement, error) {
	settlement, err := s.settlements.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if settlement == nil {
		return nil, faults.Validation("settlement %d does not exist", id)
	}
	return settlement, nil
}
