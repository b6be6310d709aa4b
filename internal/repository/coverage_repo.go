package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/qasimbotani/health-insurance/internal/domain/entity"
	"github.com/qasimbotani/health-insurance/pkg/database"
)

const coverageLineColumns = `id, template_id, service_id, covered,
	annual_limit, per_claim_limit, copay_percentage, used_amount, last_reset_year`

// CoverageRepository handles coverage template and line database operations
type CoverageRepository struct {
	db     *database.DB
	logger *zap.Logger
}

// NewCoverageRepository creates a new coverage repository
func NewCoverageRepository(db *database.DB, logger *zap.Logger) *CoverageRepository {
	return &CoverageRepository{db: db, logger: logger}
}

// CreateTemplate inserts a new coverage template
func (r *CoverageRepository) CreateTemplate(ctx context.Context, tpl *entity.CoverageTemplate) error {
	query := `INSERT INTO coverage_templates (name, description, active) VALUES (?, ?, ?)`

	result, err := r.db.Querier(ctx).ExecContext(ctx, query, tpl.Name, tpl.Description, boolToInt(tpl.Active))
	if err != nil {
		r.logger.Error("Failed to create coverage template", zap.String("name", tpl.Name), zap.Error(err))
		return fmt.Errorf("failed to create coverage template: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	tpl.ID = id
	return nil
}

// GetTemplate retrieves a coverage template by ID. Returns nil when absent.
func (r *CoverageRepository) GetTemplate(ctx context.Context, id int64) (*entity.CoverageTemplate, error) {
	query := `SELECT id, name, description, active, created_at FROM coverage_templates WHERE id = ?`

	var tpl entity.CoverageTemplate
	var active int
	err := r.db.Querier(ctx).QueryRowContext(ctx, query, id).Scan(
		&tpl.ID, &tpl.Name, &tpl.Description, &active, &tpl.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get coverage template", zap.Int64("id", id), zap.Error(err))
		return nil, fmt.Errorf("failed to get coverage template: %w", err)
	}
	tpl.Active = active != 0
	return &tpl, nil
}

// CreateLine inserts a new coverage line
func (r *CoverageRepository) CreateLine(ctx context.Context, line *entity.CoverageLine) error {
	query := `
		INSERT INTO coverage_lines (
			template_id, service_id, covered,
			annual_limit, per_claim_limit, copay_percentage, used_amount, last_reset_year
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`

	result, err := r.db.Querier(ctx).ExecContext(ctx, query,
		line.TemplateID,
		line.ServiceID,
		boolToInt(line.Covered),
		line.AnnualLimit.String(),
		line.PerClaimLimit.String(),
		line.CopayPercentage.String(),
		line.UsedAmount.String(),
		line.LastResetYear,
	)
	if err != nil {
		r.logger.Error("Failed to create coverage line", zap.Int64("template_id", line.TemplateID), zap.Error(err))
		return fmt.Errorf("failed to create coverage line: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	line.ID = id
	return nil
}

// FindCoveredLine returns the covered line for (template, service), or nil
func (r *CoverageRepository) FindCoveredLine(ctx context.Context, templateID, serviceID int64) (*entity.CoverageLine, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM coverage_lines
		WHERE template_id = ? AND service_id = ? AND covered = 1
	`, coverageLineColumns)

	line, err := scanCoverageLine(r.db.Querier(ctx).QueryRowContext(ctx, query, templateID, serviceID))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to find coverage line",
			zap.Int64("template_id", templateID), zap.Int64("service_id", serviceID), zap.Error(err))
		return nil, fmt.Errorf("failed to find coverage line: %w", err)
	}
	return line, nil
}

// ListLines returns the coverage lines of a template
func (r *CoverageRepository) ListLines(ctx context.Context, templateID int64) ([]*entity.CoverageLine, error) {
	query := fmt.Sprintf(`SELECT %s FROM coverage_lines WHERE template_id = ? ORDER BY id`, coverageLineColumns)

	rows, err := r.db.Querier(ctx).QueryContext(ctx, query, templateID)
	if err != nil {
		r.logger.Error("Failed to list coverage lines", zap.Int64("template_id", templateID), zap.Error(err))
		return nil, fmt.Errorf("failed to list coverage lines: %w", err)
	}
	defer rows.Close()

	return collectCoverageLines(rows)
}

// UpdateUsage writes the annual utilization accumulator
func (r *CoverageRepository) UpdateUsage(ctx context.Context, lineID int64, used decimal.Decimal) error {
	query := `UPDATE coverage_lines SET used_amount = ? WHERE id = ?`

	_, err := r.db.Querier(ctx).ExecContext(ctx, query, used.String(), lineID)
	if err != nil {
		r.logger.Error("Failed to update coverage usage", zap.Int64("line_id", lineID), zap.Error(err))
		return fmt.Errorf("failed to update coverage usage: %w", err)
	}
	return nil
}

// ListAllLines feeds the annual reset sweep
func (r *CoverageRepository) ListAllLines(ctx context.Context) ([]*entity.CoverageLine, error) {
	query := fmt.Sprintf(`SELECT %s FROM coverage_lines ORDER BY id`, coverageLineColumns)

	rows, err := r.db.Querier(ctx).QueryContext(ctx, query)
	if err != nil {
		r.logger.Error("Failed to list all coverage lines", zap.Error(err))
		return nil, fmt.Errorf("failed to list coverage lines: %w", err)
	}
	defer rows.Close()

	return collectCoverageLines(rows)
}

// ResetUsage zeroes the accumulator and stamps the reset year.
// The year guard makes the sweep idempotent across restarts.
func (r *CoverageRepository) ResetUsage(ctx context.Context, lineID int64, year int) error {
	query := `UPDATE coverage_lines SET used_amount = '0', last_reset_year = ? WHERE id = ? AND last_reset_year < ?`

	_, err := r.db.Querier(ctx).ExecContext(ctx, query, year, lineID, year)
	if err != nil {
		r.logger.Error("Failed to reset coverage usage", zap.Int64("line_id", lineID), zap.Error(err))
		return fmt.Errorf("failed to reset coverage usage: %w", err)
	}
	return nil
}

func scanCoverageLine(row rowScanner) (*entity.CoverageLine, error) {
	var line entity.CoverageLine
	var covered int
	var annualLimit, perClaimLimit, copay, used string

	err := row.Scan(
		&line.ID,
		&line.TemplateID,
		&line.ServiceID,
		&covered,
		&annualLimit,
		&perClaimLimit,
		&copay,
		&used,
		&line.LastResetYear,
	)
	if err != nil {
		return nil, err
	}

	line.Covered = covered != 0
	if line.AnnualLimit, err = scanDecimal(annualLimit); err != nil {
		return nil, err
	}
	if line.PerClaimLimit, err = scanDecimal(perClaimLimit); err != nil {
		return nil, err
	}
	if line.CopayPercentage, err = scanDecimal(copay); err != nil {
		return nil, err
	}
	if line.UsedAmount, err = scanDecimal(used); err != nil {
		return nil, err
	}
	return &line, nil
}

func collectCoverageLines(rows *sql.Rows) ([]*entity.CoverageLine, error) {
	var lines []*entity.CoverageLine
	for rows.Next() {
		line, err := scanCoverageLine(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan coverage line: %w", err)
		}
		lines = append(lines, line)
	}
	return lines, rows.Err()
}
