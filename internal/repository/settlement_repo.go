package repository

import (
	"context"
	"database/sql"
	"fmt"

	"go.uber.org/zap"

	"github.com/qasimbotani/health-insurance/internal/domain/entity"
	"github.com/qasimbotani/health-insurance/internal/domain/workflow"
	"github.com/qasimbotani/health-insurance/pkg/database"
)

// SettlementRepository handles reinsurance settlement database operations
type SettlementRepository struct {
	db     *database.DB
	logger *zap.Logger
}

// NewSettlementRepository creates a new settlement repository
func NewSettlementRepository(db *database.DB, logger *zap.Logger) *SettlementRepository {
	return &SettlementRepository{db: db, logger: logger}
}

// Create inserts a new settlement
func (r *SettlementRepository) Create(ctx context.Context, s *entity.Settlement) error {
	query := `
		INSERT INTO settlements (number, contract_id, period_start, period_end, total_ceded_amount, state)
		VALUES (?, ?, ?, ?, ?, ?)
	`

	result, err := r.db.Querier(ctx).ExecContext(ctx, query,
		s.Number,
		s.ContractID,
		s.PeriodStart,
		s.PeriodEnd,
		s.TotalCededAmount.String(),
		string(s.State),
	)
	if err != nil {
		r.logger.Error("Failed to create settlement", zap.String("number", s.Number), zap.Error(err))
		return fmt.Errorf("failed to create settlement: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	s.ID = id
	return nil
}

// GetByID retrieves a settlement by ID. Returns nil when absent.
func (r *SettlementRepository) GetByID(ctx context.Context, id int64) (*entity.Settlement, error) {
	query := `
		SELECT id, number, contract_id, period_start, period_end, total_ceded_amount, state, created_at
		FROM settlements WHERE id = ?
	`

	var s entity.Settlement
	var total, state string
	err := r.db.Querier(ctx).QueryRowContext(ctx, query, id).Scan(
		&s.ID,
		&s.Number,
		&s.ContractID,
		&s.PeriodStart,
		&s.PeriodEnd,
		&total,
		&state,
		&s.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get settlement", zap.Int64("id", id), zap.Error(err))
		return nil, fmt.Errorf("failed to get settlement: %w", err)
	}

	s.State = workflow.State(state)
	if s.TotalCededAmount, err = scanDecimal(total); err != nil {
		return nil, err
	}
	return &s, nil
}

// Update writes the mutable settlement fields
func (r *SettlementRepository) Update(ctx context.Context, s *entity.Settlement) error {
	query := `UPDATE settlements SET total_ceded_amount = ?, state = ? WHERE id = ?`

	_, err := r.db.Querier(ctx).ExecContext(ctx, query, s.TotalCededAmount.String(), string(s.State), s.ID)
	if err != nil {
		r.logger.Error("Failed to update settlement", zap.Int64("id", s.ID), zap.Error(err))
		return fmt.Errorf("failed to update settlement: %w", err)
	}
	return nil
}
