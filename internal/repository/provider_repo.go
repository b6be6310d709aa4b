package repository

import (
	"context"
	"database/sql"
	"fmt"

	"go.uber.org/zap"

	"github.com/qasimbotani/health-insurance/internal/domain/entity"
	"github.com/qasimbotani/health-insurance/pkg/database"
)

// ProviderRepository handles provider and service catalog database operations
type ProviderRepository struct {
	db     *database.DB
	logger *zap.Logger
}

// NewProviderRepository creates a new provider repository
func NewProviderRepository(db *database.DB, logger *zap.Logger) *ProviderRepository {
	return &ProviderRepository{db: db, logger: logger}
}

// GetProvider retrieves a provider by ID. Returns nil when absent.
func (r *ProviderRepository) GetProvider(ctx context.Context, id int64) (*entity.Provider, error) {
	query := `SELECT id, name, active, partner_ref, expense_account, created_at FROM providers WHERE id = ?`

	var p entity.Provider
	var active int
	err := r.db.Querier(ctx).QueryRowContext(ctx, query, id).Scan(
		&p.ID, &p.Name, &active, &p.PartnerRef, &p.ExpenseAccount, &p.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get provider", zap.Int64("id", id), zap.Error(err))
		return nil, fmt.Errorf("failed to get provider: %w", err)
	}
	p.Active = active != 0
	return &p, nil
}

// GetService retrieves a billable service by ID. Returns nil when absent.
func (r *ProviderRepository) GetService(ctx context.Context, id int64) (*entity.Service, error) {
	query := `SELECT id, code, name, active, description FROM services WHERE id = ?`

	var s entity.Service
	var active int
	err := r.db.Querier(ctx).QueryRowContext(ctx, query, id).Scan(
		&s.ID, &s.Code, &s.Name, &active, &s.Description)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get service", zap.Int64("id", id), zap.Error(err))
		return nil, fmt.Errorf("failed to get service: %w", err)
	}
	s.Active = active != 0
	return &s, nil
}
