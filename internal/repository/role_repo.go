package repository

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/qasimbotani/health-insurance/pkg/database"
)

// RoleRepository answers role membership questions from the user_roles table
type RoleRepository struct {
	db     *database.DB
	logger *zap.Logger
}

// NewRoleRepository creates a new role repository
func NewRoleRepository(db *database.DB, logger *zap.Logger) *RoleRepository {
	return &RoleRepository{db: db, logger: logger}
}

// HasRole reports whether the actor holds the role
func (r *RoleRepository) HasRole(ctx context.Context, actorID, role string) (bool, error) {
	query := `SELECT COUNT(*) FROM user_roles WHERE actor_id = ? AND role = ?`

	var count int
	err := r.db.Querier(ctx).QueryRowContext(ctx, query, actorID, role).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("failed to check role: %w", err)
	}
	return count > 0, nil
}

// ListMembers returns the actor ids holding a role
func (r *RoleRepository) ListMembers(ctx context.Context, role string) ([]string, error) {
	query := `SELECT actor_id FROM user_roles WHERE role = ? ORDER BY actor_id`

	rows, err := r.db.Querier(ctx).QueryContext(ctx, query, role)
	if err != nil {
		r.logger.Error("Failed to list role members", zap.String("role", role), zap.Error(err))
		return nil, fmt.Errorf("failed to list role members: %w", err)
	}
	defer rows.Close()

	var actors []string
	for rows.Next() {
		var actor string
		if err := rows.Scan(&actor); err != nil {
			return nil, fmt.Errorf("failed to scan role member: %w", err)
		}
		actors = append(actors, actor)
	}
	return actors, rows.Err()
}

// Grant adds a role to an actor, idempotently
func (r *RoleRepository) Grant(ctx context.Context, actorID, role string) error {
	query := `INSERT OR IGNORE INTO user_roles (actor_id, role) VALUES (?, ?)`

	_, err := r.db.Querier(ctx).ExecContext(ctx, query, actorID, role)
	if err != nil {
		return fmt.Errorf("failed to grant role: %w", err)
	}
	return nil
}
