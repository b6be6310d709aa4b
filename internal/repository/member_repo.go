package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/qasimbotani/health-insurance/internal/domain/entity"
	"github.com/qasimbotani/health-insurance/internal/domain/workflow"
	"github.com/qasimbotani/health-insurance/pkg/database"
)

const memberColumns = `id, number, name, policy_id, partner_ref,
	total_claimed, remaining_annual_limit, utilization_percent, risk_score,
	state, created_at, updated_at`

// MemberRepository handles member database operations
type MemberRepository struct {
	db     *database.DB
	logger *zap.Logger
}

// NewMemberRepository creates a new member repository
func NewMemberRepository(db *database.DB, logger *zap.Logger) *MemberRepository {
	return &MemberRepository{db: db, logger: logger}
}

// Create inserts a new member
func (r *MemberRepository) Create(ctx context.Context, member *entity.Member) error {
	query := `
		INSERT INTO members (
			number, name, policy_id, partner_ref,
			total_claimed, remaining_annual_limit, utilization_percent, risk_score, state
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	result, err := r.db.Querier(ctx).ExecContext(ctx, query,
		member.Number,
		member.Name,
		member.PolicyID,
		member.PartnerRef,
		member.TotalClaimed.String(),
		member.RemainingAnnualLimit.String(),
		member.UtilizationPercent.String(),
		member.RiskScore,
		string(member.State),
	)
	if err != nil {
		r.logger.Error("Failed to create member", zap.String("number", member.Number), zap.Error(err))
		return fmt.Errorf("failed to create member: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	member.ID = id
	return nil
}

// GetByID retrieves a member by ID. Returns nil when the member does not exist.
func (r *MemberRepository) GetByID(ctx context.Context, id int64) (*entity.Member, error) {
	query := fmt.Sprintf(`SELECT %s FROM members WHERE id = ?`, memberColumns)

	member, err := scanMember(r.db.Querier(ctx).QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get member by ID", zap.Int64("id", id), zap.Error(err))
		return nil, fmt.Errorf("failed to get member: %w", err)
	}
	return member, nil
}

// Update writes the mutable member fields
func (r *MemberRepository) Update(ctx context.Context, member *entity.Member) error {
	query := `
		UPDATE members SET
			name = ?, policy_id = ?, partner_ref = ?,
			total_claimed = ?, remaining_annual_limit = ?, utilization_percent = ?,
			risk_score = ?, state = ?,
			updated_at = CURRENT_TIMESTAMP
		WHERE id = ?
	`

	_, err := r.db.Querier(ctx).ExecContext(ctx, query,
		member.Name,
		member.PolicyID,
		member.PartnerRef,
		member.TotalClaimed.String(),
		member.RemainingAnnualLimit.String(),
		member.UtilizationPercent.String(),
		member.RiskScore,
		string(member.State),
		member.ID,
	)
	if err != nil {
		r.logger.Error("Failed to update member", zap.Int64("id", member.ID), zap.Error(err))
		return fmt.Errorf("failed to update member: %w", err)
	}
	return nil
}

// ListByState returns all members in the given lifecycle state
func (r *MemberRepository) ListByState(ctx context.Context, state workflow.State) ([]*entity.Member, error) {
	query := fmt.Sprintf(`SELECT %s FROM members WHERE state = ? ORDER BY id`, memberColumns)

	rows, err := r.db.Querier(ctx).QueryContext(ctx, query, string(state))
	if err != nil {
		r.logger.Error("Failed to list members", zap.String("state", string(state)), zap.Error(err))
		return nil, fmt.Errorf("failed to list members: %w", err)
	}
	defer rows.Close()

	var members []*entity.Member
	for rows.Next() {
		member, err := scanMember(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan member: %w", err)
		}
		members = append(members, member)
	}
	return members, rows.Err()
}

// AddDocument attaches an underwriting document to a member
func (r *MemberRepository) AddDocument(ctx context.Context, doc *entity.MemberDocument) error {
	query := `
		INSERT INTO member_documents (member_id, document_type, attachment_ref, verified)
		VALUES (?, ?, ?, ?)
	`

	result, err := r.db.Querier(ctx).ExecContext(ctx, query,
		doc.MemberID, doc.DocumentType, doc.AttachmentRef, boolToInt(doc.Verified))
	if err != nil {
		r.logger.Error("Failed to add member document", zap.Int64("member_id", doc.MemberID), zap.Error(err))
		return fmt.Errorf("failed to add member document: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	doc.ID = id
	return nil
}

// ListDocuments returns a member's underwriting documents
func (r *MemberRepository) ListDocuments(ctx context.Context, memberID int64) ([]*entity.MemberDocument, error) {
	query := `
		SELECT id, member_id, document_type, attachment_ref, verified, verified_by, verified_date, created_at
		FROM member_documents WHERE member_id = ? ORDER BY id
	`

	rows, err := r.db.Querier(ctx).QueryContext(ctx, query, memberID)
	if err != nil {
		r.logger.Error("Failed to list member documents", zap.Int64("member_id", memberID), zap.Error(err))
		return nil, fmt.Errorf("failed to list member documents: %w", err)
	}
	defer rows.Close()

	var docs []*entity.MemberDocument
	for rows.Next() {
		var doc entity.MemberDocument
		var verified int
		var verifiedDate sql.NullTime

		err := rows.Scan(&doc.ID, &doc.MemberID, &doc.DocumentType, &doc.AttachmentRef,
			&verified, &doc.VerifiedBy, &verifiedDate, &doc.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan member document: %w", err)
		}
		doc.Verified = verified != 0
		if verifiedDate.Valid {
			doc.VerifiedDate = &verifiedDate.Time
		}
		docs = append(docs, &doc)
	}
	return docs, rows.Err()
}

// VerifyDocument marks a document as verified
func (r *MemberRepository) VerifyDocument(ctx context.Context, docID int64, verifiedBy string, at time.Time) error {
	query := `UPDATE member_documents SET verified = 1, verified_by = ?, verified_date = ? WHERE id = ?`

	_, err := r.db.Querier(ctx).ExecContext(ctx, query, verifiedBy, at, docID)
	if err != nil {
		r.logger.Error("Failed to verify document", zap.Int64("doc_id", docID), zap.Error(err))
		return fmt.Errorf("failed to verify document: %w", err)
	}
	return nil
}

func scanMember(row rowScanner) (*entity.Member, error) {
	var member entity.Member
	var totalClaimed, remaining, utilization string
	var state string

	err := row.Scan(
		&member.ID,
		&member.Number,
		&member.Name,
		&member.PolicyID,
		&member.PartnerRef,
		&totalClaimed,
		&remaining,
		&utilization,
		&member.RiskScore,
		&state,
		&member.CreatedAt,
		&member.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	member.State = workflow.State(state)
	if member.TotalClaimed, err = scanDecimal(totalClaimed); err != nil {
		return nil, err
	}
	if member.RemainingAnnualLimit, err = scanDecimal(remaining); err != nil {
		return nil, err
	}
	if member.UtilizationPercent, err = scanDecimal(utilization); err != nil {
		return nil, err
	}
	return &member, nil
}
