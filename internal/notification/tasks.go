// Package notification creates and closes reviewer work items
package notification

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/qasimbotani/health-insurance/pkg/database"
)

// TaskService persists review tasks for claim and policy reviewers
type TaskService struct {
	db     *database.DB
	logger *zap.Logger
}

// NewTaskService creates a new task service
func NewTaskService(db *database.DB, logger *zap.Logger) *TaskService {
	return &TaskService{db: db, logger: logger}
}

// AssignReviewTask creates a work item for the assignee
func (s *TaskService) AssignReviewTask(ctx context.Context, assignee, entityType string, entityID int64, subject, note string) error {
	query := `INSERT INTO review_tasks (assignee_id, entity_type, entity_id, subject, note) VALUES (?, ?, ?, ?, ?)`

	_, err := s.db.Querier(ctx).ExecContext(ctx, query, assignee, entityType, entityID, subject, note)
	if err != nil {
		s.logger.Error("Failed to assign review task",
			zap.String("assignee", assignee), zap.Int64("entity_id", entityID), zap.Error(err))
		return fmt.Errorf("failed to assign review task: %w", err)
	}

	s.logger.Info("Assigned review task",
		zap.String("assignee", assignee),
		zap.String("entity_type", entityType),
		zap.Int64("entity_id", entityID))
	return nil
}

// CloseTasks marks all open tasks on an entity as done
func (s *TaskService) CloseTasks(ctx context.Context, entityType string, entityID int64) error {
	query := `
		UPDATE review_tasks SET done = 1, closed_at = CURRENT_TIMESTAMP
		WHERE entity_type = ? AND entity_id = ? AND done = 0
	`

	_, err := s.db.Querier(ctx).ExecContext(ctx, query, entityType, entityID)
	if err != nil {
		s.logger.Error("Failed to close review tasks",
			zap.String("entity_type", entityType), zap.Int64("entity_id", entityID), zap.Error(err))
		return fmt.Errorf("failed to close review tasks: %w", err)
	}
	return nil
}
