package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/qasimbotani/health-insurance/internal/domain/entity"
	"github.com/qasimbotani/health-insurance/pkg/database"
)

const contractColumns = `id, name, active, policy_id, reinsurer_ref,
	retention_amount, max_coverage_amount, start_date, end_date`

// ReinsuranceRepository handles reinsurance contract database operations
type ReinsuranceRepository struct {
	db     *database.DB
	logger *zap.Logger
}

// NewReinsuranceRepository creates a new reinsurance repository
func NewReinsuranceRepository(db *database.DB, logger *zap.Logger) *ReinsuranceRepository {
	return &ReinsuranceRepository{db: db, logger: logger}
}

// CreateContract inserts a new reinsurance contract
func (r *ReinsuranceRepository) CreateContract(ctx context.Context, contract *entity.ReinsuranceContract) error {
	query := `
		INSERT INTO reinsurance_contracts (
			name, active, policy_id, reinsurer_ref,
			retention_amount, max_coverage_amount, start_date, end_date
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`

	result, err := r.db.Querier(ctx).ExecContext(ctx, query,
		contract.Name,
		boolToInt(contract.Active),
		contract.PolicyID,
		contract.ReinsurerRef,
		contract.RetentionAmount.String(),
		contract.MaxCoverageAmount.String(),
		contract.StartDate,
		contract.EndDate,
	)
	if err != nil {
		r.logger.Error("Failed to create reinsurance contract", zap.String("name", contract.Name), zap.Error(err))
		return fmt.Errorf("failed to create reinsurance contract: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	contract.ID = id
	return nil
}

// GetContract retrieves a reinsurance contract by ID. Returns nil when absent.
func (r *ReinsuranceRepository) GetContract(ctx context.Context, id int64) (*entity.ReinsuranceContract, error) {
	query := fmt.Sprintf(`SELECT %s FROM reinsurance_contracts WHERE id = ?`, contractColumns)

	contract, err := scanContract(r.db.Querier(ctx).QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get reinsurance contract", zap.Int64("id", id), zap.Error(err))
		return nil, fmt.Errorf("failed to get reinsurance contract: %w", err)
	}
	return contract, nil
}

// FindActiveForPolicy returns the active contract whose validity window
// contains the given date, or nil when the policy carries no cover
func (r *ReinsuranceRepository) FindActiveForPolicy(ctx context.Context, policyID int64, on time.Time) (*entity.ReinsuranceContract, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM reinsurance_contracts
		WHERE policy_id = ? AND active = 1 AND start_date <= ? AND end_date >= ?
		ORDER BY start_date DESC LIMIT 1
	`, contractColumns)

	contract, err := scanContract(r.db.Querier(ctx).QueryRowContext(ctx, query, policyID, on, on))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to find reinsurance contract", zap.Int64("policy_id", policyID), zap.Error(err))
		return nil, fmt.Errorf("failed to find reinsurance contract: %w", err)
	}
	return contract, nil
}

func scanContract(row rowScanner) (*entity.ReinsuranceContract, error) {
	var contract entity.ReinsuranceContract
	var active int
	var retention, maxCoverage string

	err := row.Scan(
		&contract.ID,
		&contract.Name,
		&active,
		&contract.PolicyID,
		&contract.ReinsurerRef,
		&retention,
		&maxCoverage,
		&contract.StartDate,
		&contract.EndDate,
	)
	if err != nil {
		return nil, err
	}

	contract.Active = active != 0
	if contract.RetentionAmount, err = scanDecimal(retention); err != nil {
		return nil, err
	}
	if contract.MaxCoverageAmount, err = scanDecimal(maxCoverage); err != nil {
		return nil, err
	}
	return &contract, nil
}
