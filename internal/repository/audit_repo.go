package repository

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/qasimbotani/health-insurance/internal/domain/entity"
	"github.com/qasimbotani/health-insurance/pkg/database"
)

// AuditRepository persists per-entity activity trails
type AuditRepository struct {
	db     *database.DB
	logger *zap.Logger
}

// NewAuditRepository creates a new audit repository
func NewAuditRepository(db *database.DB, logger *zap.Logger) *AuditRepository {
	return &AuditRepository{db: db, logger: logger}
}

// Append adds one line to an entity's activity trail
func (r *AuditRepository) Append(ctx context.Context, entityType string, entityID int64, actorID, body string) error {
	query := `INSERT INTO audit_entries (entity_type, entity_id, actor_id, body) VALUES (?, ?, ?, ?)`

	_, err := r.db.Querier(ctx).ExecContext(ctx, query, entityType, entityID, actorID, body)
	if err != nil {
		r.logger.Error("Failed to append audit entry",
			zap.String("entity_type", entityType), zap.Int64("entity_id", entityID), zap.Error(err))
		return fmt.Errorf("failed to append audit entry: %w", err)
	}
	return nil
}

// ListByEntity returns an entity's trail in chronological order
func (r *AuditRepository) ListByEntity(ctx context.Context, entityType string, entityID int64) ([]*entity.AuditEntry, error) {
	query := `
		SELECT id, entity_type, entity_id, actor_id, body, created_at
		FROM audit_entries WHERE entity_type = ? AND entity_id = ? ORDER BY id
	`

	rows, err := r.db.Querier(ctx).QueryContext(ctx, query, entityType, entityID)
	if err != nil {
		r.logger.Error("Failed to list audit entries",
			zap.String("entity_type", entityType), zap.Int64("entity_id", entityID), zap.Error(err))
		return nil, fmt.Errorf("failed to list audit entries: %w", err)
	}
	defer rows.Close()

	var entries []*entity.AuditEntry
	for rows.Next() {
		var e entity.AuditEntry
		if err := rows.Scan(&e.ID, &e.EntityType, &e.EntityID, &e.ActorID, &e.Body, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan audit entry: %w", err)
		}
		entries = append(entries, &e)
	}
	return entries, rows.Err()
}
