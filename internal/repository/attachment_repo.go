package repository

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/qasimbotani/health-insurance/pkg/database"
)

// AttachmentRepository tracks supporting documents attached to entities
type AttachmentRepository struct {
	db     *database.DB
	logger *zap.Logger
}

// NewAttachmentRepository creates a new attachment repository
func NewAttachmentRepository(db *database.DB, logger *zap.Logger) *AttachmentRepository {
	return &AttachmentRepository{db: db, logger: logger}
}

// Add records an attachment against an entity
func (r *AttachmentRepository) Add(ctx context.Context, entityType string, entityID int64, fileName, filePath string) (int64, error) {
	query := `INSERT INTO attachments (entity_type, entity_id, file_name, file_path) VALUES (?, ?, ?, ?)`

	result, err := r.db.Querier(ctx).ExecContext(ctx, query, entityType, entityID, fileName, filePath)
	if err != nil {
		r.logger.Error("Failed to add attachment",
			zap.String("entity_type", entityType), zap.Int64("entity_id", entityID), zap.Error(err))
		return 0, fmt.Errorf("failed to add attachment: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get last insert id: %w", err)
	}
	return id, nil
}

// CountAttachments returns the number of attachments recorded for an entity
func (r *AttachmentRepository) CountAttachments(ctx context.Context, entityType string, entityID int64) (int, error) {
	query := `SELECT COUNT(*) FROM attachments WHERE entity_type = ? AND entity_id = ?`

	var count int
	err := r.db.Querier(ctx).QueryRowContext(ctx, query, entityType, entityID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count attachments: %w", err)
	}
	return count, nil
}
