package repository

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/qasimbotani/health-insurance/pkg/database"
)

// prefixes maps sequence keys to business number prefixes
var prefixes = map[string]string{
	"claim":      "CLM",
	"policy":     "POL",
	"member":     "MBR",
	"bordereau":  "BRD",
	"settlement": "STL",
}

// SequenceRepository issues gapless business numbers like CLM-2026-00001.
// Numbering restarts each calendar year per key.
type SequenceRepository struct {
	db     *database.DB
	logger *zap.Logger
	now    func() time.Time
}

// NewSequenceRepository creates a new sequence repository
func NewSequenceRepository(db *database.DB, logger *zap.Logger) *SequenceRepository {
	return &SequenceRepository{db: db, logger: logger, now: time.Now}
}

// Next issues the next number for the given key
func (r *SequenceRepository) Next(ctx context.Context, key string) (string, error) {
	prefix, ok := prefixes[key]
	if !ok {
		return "", fmt.Errorf("unknown sequence key %q", key)
	}

	year := r.now().Year()
	bucket := fmt.Sprintf("%s-%d", key, year)

	query := `
		INSERT INTO sequences (key, next_value) VALUES (?, 1)
		ON CONFLICT(key) DO UPDATE SET next_value = next_value + 1
		RETURNING next_value
	`

	var value int64
	err := r.db.Querier(ctx).QueryRowContext(ctx, query, bucket).Scan(&value)
	if err != nil {
		r.logger.Error("Failed to advance sequence", zap.String("key", bucket), zap.Error(err))
		return "", fmt.Errorf("failed to advance sequence: %w", err)
	}

	return fmt.Sprintf("%s-%d-%05d", prefix, year, value), nil
}
