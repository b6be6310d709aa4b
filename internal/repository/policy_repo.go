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

const policyColumns = `id, number, name, holder_ref, coverage_template_id,
	annual_limit, manager_approval_limit, start_date, end_date, state,
	renewal_of_id, renewed_by_id, created_at, updated_at`

// PolicyRepository handles policy database operations
type PolicyRepository struct {
	db     *database.DB
	logger *zap.Logger
}

// NewPolicyRepository creates a new policy repository
func NewPolicyRepository(db *database.DB, logger *zap.Logger) *PolicyRepository {
	return &PolicyRepository{db: db, logger: logger}
}

// Create inserts a new policy
func (r *PolicyRepository) Create(ctx context.Context, policy *entity.Policy) error {
	query := `
		INSERT INTO policies (
			number, name, holder_ref, coverage_template_id,
			annual_limit, manager_approval_limit, start_date, end_date, state, renewal_of_id
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	result, err := r.db.Querier(ctx).ExecContext(ctx, query,
		policy.Number,
		policy.Name,
		policy.HolderRef,
		policy.CoverageTemplateID,
		policy.AnnualLimit.String(),
		policy.ManagerApprovalLimit.String(),
		policy.StartDate,
		policy.EndDate,
		string(policy.State),
		policy.RenewalOfID,
	)
	if err != nil {
		r.logger.Error("Failed to create policy", zap.String("number", policy.Number), zap.Error(err))
		return fmt.Errorf("failed to create policy: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	policy.ID = id
	return nil
}

// GetByID retrieves a policy by ID. Returns nil when the policy does not exist.
func (r *PolicyRepository) GetByID(ctx context.Context, id int64) (*entity.Policy, error) {
	query := fmt.Sprintf(`SELECT %s FROM policies WHERE id = ?`, policyColumns)

	policy, err := scanPolicy(r.db.Querier(ctx).QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get policy by ID", zap.Int64("id", id), zap.Error(err))
		return nil, fmt.Errorf("failed to get policy: %w", err)
	}
	return policy, nil
}

// Update writes the mutable policy fields
func (r *PolicyRepository) Update(ctx context.Context, policy *entity.Policy) error {
	query := `
		UPDATE policies SET
			name = ?, holder_ref = ?, coverage_template_id = ?,
			annual_limit = ?, manager_approval_limit = ?,
			start_date = ?, end_date = ?, state = ?,
			renewal_of_id = ?, renewed_by_id = ?,
			updated_at = CURRENT_TIMESTAMP
		WHERE id = ?
	`

	_, err := r.db.Querier(ctx).ExecContext(ctx, query,
		policy.Name,
		policy.HolderRef,
		policy.CoverageTemplateID,
		policy.AnnualLimit.String(),
		policy.ManagerApprovalLimit.String(),
		policy.StartDate,
		policy.EndDate,
		string(policy.State),
		policy.RenewalOfID,
		policy.RenewedByID,
		policy.ID,
	)
	if err != nil {
		r.logger.Error("Failed to update policy", zap.Int64("id", policy.ID), zap.Error(err))
		return fmt.Errorf("failed to update policy: %w", err)
	}
	return nil
}

// ListForStateSweep returns active and expiring policies for the lifecycle sweep
func (r *PolicyRepository) ListForStateSweep(ctx context.Context) ([]*entity.Policy, error) {
	query := fmt.Sprintf(`SELECT %s FROM policies WHERE state IN ('active', 'expiring', 'renewal_quoted')`, policyColumns)

	rows, err := r.db.Querier(ctx).QueryContext(ctx, query)
	if err != nil {
		r.logger.Error("Failed to list policies for sweep", zap.Error(err))
		return nil, fmt.Errorf("failed to list policies for sweep: %w", err)
	}
	defer rows.Close()

	return collectPolicies(rows)
}

// List retrieves policies with pagination, newest first
func (r *PolicyRepository) List(ctx context.Context, limit, offset int) ([]*entity.Policy, error) {
	query := fmt.Sprintf(`SELECT %s FROM policies ORDER BY created_at DESC LIMIT ? OFFSET ?`, policyColumns)

	rows, err := r.db.Querier(ctx).QueryContext(ctx, query, limit, offset)
	if err != nil {
		r.logger.Error("Failed to list policies", zap.Error(err))
		return nil, fmt.Errorf("failed to list policies: %w", err)
	}
	defer rows.Close()

	return collectPolicies(rows)
}

func scanPolicy(row rowScanner) (*entity.Policy, error) {
	var policy entity.Policy
	var annualLimit, managerLimit string
	var renewalOf, renewedBy sql.NullInt64
	var state string

	err := row.Scan(
		&policy.ID,
		&policy.Number,
		&policy.Name,
		&policy.HolderRef,
		&policy.CoverageTemplateID,
		&annualLimit,
		&managerLimit,
		&policy.StartDate,
		&policy.EndDate,
		&state,
		&renewalOf,
		&renewedBy,
		&policy.CreatedAt,
		&policy.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	policy.State = workflow.State(state)
	if policy.AnnualLimit, err = scanDecimal(annualLimit); err != nil {
		return nil, err
	}
	if policy.ManagerApprovalLimit, err = scanDecimal(managerLimit); err != nil {
		return nil, err
	}
	if renewalOf.Valid {
		policy.RenewalOfID = &renewalOf.Int64
	}
	if renewedBy.Valid {
		policy.RenewedByID = &renewedBy.Int64
	}
	return &policy, nil
}

func collectPolicies(rows *sql.Rows) ([]*entity.Policy, error) {
	var policies []*entity.Policy
	for rows.Next() {
		policy, err := scanPolicy(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan policy: %w", err)
		}
		policies = append(policies, policy)
	}
	return policies, rows.Err()
}
