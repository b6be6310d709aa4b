package repository

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/qasimbotani/health-insurance/internal/domain/entity"
	"github.com/qasimbotani/health-insurance/internal/domain/faults"
	"github.com/qasimbotani/health-insurance/pkg/database"
)

// VoteRepository handles committee vote database operations
type VoteRepository struct {
	db     *database.DB
	logger *zap.Logger
}

// NewVoteRepository creates a new vote repository
func NewVoteRepository(db *database.DB, logger *zap.Logger) *VoteRepository {
	return &VoteRepository{db: db, logger: logger}
}

// Create inserts a vote. A duplicate (claim, voter) pair violates the unique
// index and surfaces as a conflict failure.
func (r *VoteRepository) Create(ctx context.Context, vote *entity.ClaimVote) error {
	query := `
		INSERT INTO claim_votes (claim_id, voter_id, decision, note)
		VALUES (?, ?, ?, ?)
	`

	result, err := r.db.Querier(ctx).ExecContext(ctx, query,
		vote.ClaimID, vote.VoterID, vote.Decision, vote.Note)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return faults.Conflict("voter %s has already voted on claim %d", vote.VoterID, vote.ClaimID)
		}
		r.logger.Error("Failed to create vote", zap.Int64("claim_id", vote.ClaimID), zap.Error(err))
		return fmt.Errorf("failed to create vote: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	vote.ID = id
	return nil
}

// Tally returns the per-decision vote counts for a claim
func (r *VoteRepository) Tally(ctx context.Context, claimID int64) (*entity.VoteTally, error) {
	query := `
		SELECT
			COALESCE(SUM(CASE WHEN decision = 'approve' THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN decision = 'reject' THEN 1 ELSE 0 END), 0)
		FROM claim_votes WHERE claim_id = ?
	`

	var tally entity.VoteTally
	err := r.db.Querier(ctx).QueryRowContext(ctx, query, claimID).Scan(&tally.Approved, &tally.Rejected)
	if err != nil {
		r.logger.Error("Failed to tally votes", zap.Int64("claim_id", claimID), zap.Error(err))
		return nil, fmt.Errorf("failed to tally votes: %w", err)
	}
	return &tally, nil
}

// ListByClaim returns the votes cast on a claim in casting order
func (r *VoteRepository) ListByClaim(ctx context.Context, claimID int64) ([]*entity.ClaimVote, error) {
	query := `
		SELECT id, claim_id, voter_id, decision, note, cast_at
		FROM claim_votes WHERE claim_id = ? ORDER BY cast_at
	`

	rows, err := r.db.Querier(ctx).QueryContext(ctx, query, claimID)
	if err != nil {
		r.logger.Error("Failed to list votes", zap.Int64("claim_id", claimID), zap.Error(err))
		return nil, fmt.Errorf("failed to list votes: %w", err)
	}
	defer rows.Close()

	var votes []*entity.ClaimVote
	for rows.Next() {
		var vote entity.ClaimVote
		if err := rows.Scan(&vote.ID, &vote.ClaimID, &vote.VoterID, &vote.Decision, &vote.Note, &vote.CastAt); err != nil {
			return nil, fmt.Errorf("failed to scan vote: %w", err)
		}
		votes = append(votes, &vote)
	}
	return votes, rows.Err()
}

// HasVoted reports whether the voter already voted on the claim
func (r *VoteRepository) HasVoted(ctx context.Context, claimID int64, voterID string) (bool, error) {
	query := `SELECT COUNT(*) FROM claim_votes WHERE claim_id = ? AND voter_id = ?`

	var count int
	err := r.db.Querier(ctx).QueryRowContext(ctx, query, claimID, voterID).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("failed to check existing vote: %w", err)
	}
	return count > 0, nil
}
