package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/qasimbotani/health-insurance/internal/domain/entity"
	"github.com/qasimbotani/health-insurance/internal/domain/faults"
	"github.com/qasimbotani/health-insurance/internal/domain/workflow"
	"github.com/qasimbotani/health-insurance/pkg/database"
)

const bordereauColumns = `id, number, contract_id, period_start, period_end,
	state, settlement_id, total_reinsurer_share, total_claims, created_at`

// BordereauRepository handles bordereau and bordereau line database operations
type BordereauRepository struct {
	db     *database.DB
	logger *zap.Logger
}

// NewBordereauRepository creates a new bordereau repository
func NewBordereauRepository(db *database.DB, logger *zap.Logger) *BordereauRepository {
	return &BordereauRepository{db: db, logger: logger}
}

// Create inserts a new bordereau
func (r *BordereauRepository) Create(ctx context.Context, b *entity.Bordereau) error {
	query := `
		INSERT INTO bordereaux (number, contract_id, period_start, period_end, state, total_reinsurer_share, total_claims)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`

	result, err := r.db.Querier(ctx).ExecContext(ctx, query,
		b.Number,
		b.ContractID,
		b.PeriodStart,
		b.PeriodEnd,
		string(b.State),
		b.TotalReinsurerShare.String(),
		b.TotalClaims,
	)
	if err != nil {
		r.logger.Error("Failed to create bordereau", zap.String("number", b.Number), zap.Error(err))
		return fmt.Errorf("failed to create bordereau: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	b.ID = id
	return nil
}

// GetByID retrieves a bordereau by ID. Returns nil when absent.
func (r *BordereauRepository) GetByID(ctx context.Context, id int64) (*entity.Bordereau, error) {
	query := fmt.Sprintf(`SELECT %s FROM bordereaux WHERE id = ?`, bordereauColumns)

	b, err := scanBordereau(r.db.Querier(ctx).QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get bordereau", zap.Int64("id", id), zap.Error(err))
		return nil, fmt.Errorf("failed to get bordereau: %w", err)
	}
	return b, nil
}

// UpdateState writes the bordereau workflow state
func (r *BordereauRepository) UpdateState(ctx context.Context, id int64, state workflow.State) error {
	query := `UPDATE bordereaux SET state = ? WHERE id = ?`

	_, err := r.db.Querier(ctx).ExecContext(ctx, query, string(state), id)
	if err != nil {
		r.logger.Error("Failed to update bordereau state", zap.Int64("id", id), zap.Error(err))
		return fmt.Errorf("failed to update bordereau state: %w", err)
	}
	return nil
}

// UpdateTotals writes the aggregate ceded share and claim count
func (r *BordereauRepository) UpdateTotals(ctx context.Context, id int64, total decimal.Decimal, count int) error {
	query := `UPDATE bordereaux SET total_reinsurer_share = ?, total_claims = ? WHERE id = ?`

	_, err := r.db.Querier(ctx).ExecContext(ctx, query, total.String(), count, id)
	if err != nil {
		r.logger.Error("Failed to update bordereau totals", zap.Int64("id", id), zap.Error(err))
		return fmt.Errorf("failed to update bordereau totals: %w", err)
	}
	return nil
}

// AttachToSettlement links a confirmed bordereau to a settlement
func (r *BordereauRepository) AttachToSettlement(ctx context.Context, id, settlementID int64) error {
	query := `UPDATE bordereaux SET settlement_id = ? WHERE id = ? AND settlement_id IS NULL`

	result, err := r.db.Querier(ctx).ExecContext(ctx, query, settlementID, id)
	if err != nil {
		return fmt.Errorf("failed to attach bordereau to settlement: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return faults.Conflict("bordereau %d is already attached to a settlement", id)
	}
	return nil
}

// ListBySettlement returns the bordereaux rolled into a settlement
func (r *BordereauRepository) ListBySettlement(ctx context.Context, settlementID int64) ([]*entity.Bordereau, error) {
	query := fmt.Sprintf(`SELECT %s FROM bordereaux WHERE settlement_id = ? ORDER BY period_start`, bordereauColumns)

	rows, err := r.db.Querier(ctx).QueryContext(ctx, query, settlementID)
	if err != nil {
		r.logger.Error("Failed to list bordereaux", zap.Int64("settlement_id", settlementID), zap.Error(err))
		return nil, fmt.Errorf("failed to list bordereaux: %w", err)
	}
	defer rows.Close()

	var bs []*entity.Bordereau
	for rows.Next() {
		b, err := scanBordereau(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan bordereau: %w", err)
		}
		bs = append(bs, b)
	}
	return bs, rows.Err()
}

// AddLine inserts a ceded claim snapshot. A claim already on the bordereau
// violates the unique index and surfaces as a conflict failure.
func (r *BordereauRepository) AddLine(ctx context.Context, line *entity.BordereauLine) error {
	query := `
		INSERT INTO bordereau_lines (
			bordereau_id, claim_id, loss_date, member_id, provider_id, service_id,
			claimed_amount, approved_amount, reinsurer_share
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	result, err := r.db.Querier(ctx).ExecContext(ctx, query,
		line.BordereauID,
		line.ClaimID,
		line.LossDate,
		line.MemberID,
		line.ProviderID,
		line.ServiceID,
		line.ClaimedAmount.String(),
		line.ApprovedAmount.String(),
		line.ReinsurerShare.String(),
	)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return faults.Conflict("claim %d already appears on bordereau %d", line.ClaimID, line.BordereauID)
		}
		r.logger.Error("Failed to add bordereau line", zap.Int64("bordereau_id", line.BordereauID), zap.Error(err))
		return fmt.Errorf("failed to add bordereau line: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	line.ID = id
	return nil
}

// ListLines returns the ceded claim snapshots on a bordereau
func (r *BordereauRepository) ListLines(ctx context.Context, bordereauID int64) ([]*entity.BordereauLine, error) {
	query := `
		SELECT id, bordereau_id, claim_id, loss_date, member_id, provider_id, service_id,
			claimed_amount, approved_amount, reinsurer_share
		FROM bordereau_lines WHERE bordereau_id = ? ORDER BY id
	`

	rows, err := r.db.Querier(ctx).QueryContext(ctx, query, bordereauID)
	if err != nil {
		r.logger.Error("Failed to list bordereau lines", zap.Int64("bordereau_id", bordereauID), zap.Error(err))
		return nil, fmt.Errorf("failed to list bordereau lines: %w", err)
	}
	defer rows.Close()

	var lines []*entity.BordereauLine
	for rows.Next() {
		var line entity.BordereauLine
		var claimed, approved, ceded string

		err := rows.Scan(
			&line.ID,
			&line.BordereauID,
			&line.ClaimID,
			&line.LossDate,
			&line.MemberID,
			&line.ProviderID,
			&line.ServiceID,
			&claimed,
			&approved,
			&ceded,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan bordereau line: %w", err)
		}

		if line.ClaimedAmount, err = scanDecimal(claimed); err != nil {
			return nil, err
		}
		if line.ApprovedAmount, err = scanDecimal(approved); err != nil {
			return nil, err
		}
		if line.ReinsurerShare, err = scanDecimal(ceded); err != nil {
			return nil, err
		}
		lines = append(lines, &line)
	}
	return lines, rows.Err()
}

func scanBordereau(row rowScanner) (*entity.Bordereau, error) {
	var b entity.Bordereau
	var state string
	var settlementID sql.NullInt64
	var total string

	err := row.Scan(
		&b.ID,
		&b.Number,
		&b.ContractID,
		&b.PeriodStart,
		&b.PeriodEnd,
		&state,
		&settlementID,
		&total,
		&b.TotalClaims,
		&b.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	b.State = workflow.State(state)
	if settlementID.Valid {
		b.SettlementID = &settlementID.Int64
	}
	if b.TotalReinsurerShare, err = scanDecimal(total); err != nil {
		return nil, err
	}
	return &b, nil
}
