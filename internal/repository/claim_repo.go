package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/qasimbotani/health-insurance/internal/application/port"
	"github.com/qasimbotani/health-insurance/internal/domain/entity"
	"github.com/qasimbotani/health-insurance/internal/domain/faults"
	"github.com/qasimbotani/health-insurance/internal/domain/workflow"
	"github.com/qasimbotani/health-insurance/pkg/database"
)

const claimColumns = `id, number, member_id, provider_id, service_id, policy_id,
	claimed_amount, approved_amount, insurer_share, reinsurer_share,
	payee_type, state, escalation_level, committee_required, committee_quorum,
	fraud_score, fraud_flag, fraud_reason, sla_deadline, is_overdue,
	return_reason, override_used, override_by, override_reason, override_date,
	approved_by, approved_date, reinsurance_contract_id, bordereau_line_id,
	journal_entry_id, payment_id, payment_state, created_by, created_at, updated_at`

// ClaimRepository handles claim database operations
type ClaimRepository struct {
	db     *database.DB
	logger *zap.Logger
}

// NewClaimRepository creates a new claim repository
func NewClaimRepository(db *database.DB, logger *zap.Logger) *ClaimRepository {
	return &ClaimRepository{db: db, logger: logger}
}

// Create inserts a new claim
func (r *ClaimRepository) Create(ctx context.Context, claim *entity.Claim) error {
	query := `
		INSERT INTO claims (
			number, member_id, provider_id, service_id, policy_id,
			claimed_amount, approved_amount, insurer_share, reinsurer_share,
			payee_type, state, escalation_level, committee_required, committee_quorum,
			fraud_score, fraud_flag, fraud_reason, payment_state, created_by
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	result, err := r.db.Querier(ctx).ExecContext(ctx, query,
		claim.Number,
		claim.MemberID,
		claim.ProviderID,
		claim.ServiceID,
		claim.PolicyID,
		claim.ClaimedAmount.String(),
		claim.ApprovedAmount.String(),
		claim.InsurerShare.String(),
		claim.ReinsurerShare.String(),
		claim.PayeeType,
		string(claim.State),
		claim.EscalationLevel,
		boolToInt(claim.CommitteeRequired),
		claim.CommitteeQuorum,
		claim.FraudScore,
		boolToInt(claim.FraudFlag),
		claim.FraudReason,
		claim.PaymentState,
		claim.CreatedBy,
	)
	if err != nil {
		r.logger.Error("Failed to create claim", zap.String("number", claim.Number), zap.Error(err))
		return fmt.Errorf("failed to create claim: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	claim.ID = id
	return nil
}

// GetByID retrieves a claim by ID. Returns nil when the claim does not exist.
func (r *ClaimRepository) GetByID(ctx context.Context, id int64) (*entity.Claim, error) {
	query := fmt.Sprintf(`SELECT %s FROM claims WHERE id = ?`, claimColumns)

	claim, err := scanClaim(r.db.Querier(ctx).QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get claim by ID", zap.Int64("id", id), zap.Error(err))
		return nil, fmt.Errorf("failed to get claim: %w", err)
	}
	return claim, nil
}

// Update writes the mutable claim fields
func (r *ClaimRepository) Update(ctx context.Context, claim *entity.Claim) error {
	query := `
		UPDATE claims SET
			claimed_amount = ?, approved_amount = ?, insurer_share = ?, reinsurer_share = ?,
			payee_type = ?, state = ?, escalation_level = ?, committee_required = ?, committee_quorum = ?,
			fraud_score = ?, fraud_flag = ?, fraud_reason = ?, sla_deadline = ?, is_overdue = ?,
			return_reason = ?, override_used = ?, override_by = ?, override_reason = ?, override_date = ?,
			approved_by = ?, approved_date = ?, reinsurance_contract_id = ?,
			journal_entry_id = ?, payment_id = ?, payment_state = ?,
			updated_at = CURRENT_TIMESTAMP
		WHERE id = ?
	`

	_, err := r.db.Querier(ctx).ExecContext(ctx, query,
		claim.ClaimedAmount.String(),
		claim.ApprovedAmount.String(),
		claim.InsurerShare.String(),
		claim.ReinsurerShare.String(),
		claim.PayeeType,
		string(claim.State),
		claim.EscalationLevel,
		boolToInt(claim.CommitteeRequired),
		claim.CommitteeQuorum,
		claim.FraudScore,
		boolToInt(claim.FraudFlag),
		claim.FraudReason,
		claim.SLADeadline,
		boolToInt(claim.IsOverdue),
		claim.ReturnReason,
		boolToInt(claim.OverrideUsed),
		claim.OverrideBy,
		claim.OverrideReason,
		claim.OverrideDate,
		claim.ApprovedBy,
		claim.ApprovedDate,
		claim.ReinsuranceContractID,
		claim.JournalEntryID,
		claim.PaymentID,
		claim.PaymentState,
		claim.ID,
	)
	if err != nil {
		r.logger.Error("Failed to update claim", zap.Int64("id", claim.ID), zap.Error(err))
		return fmt.Errorf("failed to update claim: %w", err)
	}
	return nil
}

// TransitionState moves the claim from an expected state to a new one.
// A claim no longer in the expected state yields a conflict failure, which
// makes quorum resolution a single compare-and-swap.
func (r *ClaimRepository) TransitionState(ctx context.Context, id int64, from, to workflow.State) error {
	query := `UPDATE claims SET state = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ? AND state = ?`

	result, err := r.db.Querier(ctx).ExecContext(ctx, query, string(to), id, string(from))
	if err != nil {
		r.logger.Error("Failed to transition claim state", zap.Int64("id", id), zap.Error(err))
		return fmt.Errorf("failed to transition claim state: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return faults.Conflict("claim %d is no longer in state %q", id, from)
	}
	return nil
}

// List retrieves claims with pagination, newest first
func (r *ClaimRepository) List(ctx context.Context, limit, offset int) ([]*entity.Claim, error) {
	query := fmt.Sprintf(`SELECT %s FROM claims ORDER BY created_at DESC LIMIT ? OFFSET ?`, claimColumns)

	rows, err := r.db.Querier(ctx).QueryContext(ctx, query, limit, offset)
	if err != nil {
		r.logger.Error("Failed to list claims", zap.Error(err))
		return nil, fmt.Errorf("failed to list claims: %w", err)
	}
	defer rows.Close()

	return collectClaims(rows)
}

// ApprovedAmountsByMember returns the approved amounts of the member's approved claims
func (r *ClaimRepository) ApprovedAmountsByMember(ctx context.Context, memberID int64) ([]decimal.Decimal, error) {
	query := `SELECT approved_amount FROM claims WHERE member_id = ? AND state = 'approved'`

	rows, err := r.db.Querier(ctx).QueryContext(ctx, query, memberID)
	if err != nil {
		r.logger.Error("Failed to query approved amounts", zap.Int64("member_id", memberID), zap.Error(err))
		return nil, fmt.Errorf("failed to query approved amounts: %w", err)
	}
	defer rows.Close()

	var amounts []decimal.Decimal
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("failed to scan amount: %w", err)
		}
		d, err := scanDecimal(raw)
		if err != nil {
			return nil, err
		}
		amounts = append(amounts, d)
	}
	return amounts, rows.Err()
}

// CountCreatedSince counts the member's claims created on or after the cutoff
func (r *ClaimRepository) CountCreatedSince(ctx context.Context, memberID int64, since time.Time) (int, error) {
	query := `SELECT COUNT(*) FROM claims WHERE member_id = ? AND created_at >= ?`

	var count int
	err := r.db.Querier(ctx).QueryRowContext(ctx, query, memberID, since).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count recent claims: %w", err)
	}
	return count, nil
}

// CountApprovedTriple counts approved claims for the same member, provider and service
func (r *ClaimRepository) CountApprovedTriple(ctx context.Context, memberID, providerID, serviceID int64) (int, error) {
	query := `
		SELECT COUNT(*) FROM claims
		WHERE member_id = ? AND provider_id = ? AND service_id = ? AND state = 'approved'
	`

	var count int
	err := r.db.Querier(ctx).QueryRowContext(ctx, query, memberID, providerID, serviceID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count approved claims: %w", err)
	}
	return count, nil
}

// SumApprovedForMemberService sums the member's approved amounts for a
// service, bounded by approval date
func (r *ClaimRepository) SumApprovedForMemberService(ctx context.Context, memberID, serviceID int64, from, to time.Time) (decimal.Decimal, error) {
	// GROUP_CONCAT keeps the exact decimal strings so the total avoids
	// float rounding.
	query := `
		SELECT COALESCE(GROUP_CONCAT(approved_amount, '|'), '')
		FROM claims
		WHERE member_id = ? AND service_id = ? AND state = 'approved'
		  AND approved_date >= ? AND approved_date <= ?
	`

	var joined string
	err := r.db.Querier(ctx).QueryRowContext(ctx, query, memberID, serviceID, from, to).Scan(&joined)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to sum approved amounts: %w", err)
	}
	return sumJoinedAmounts(joined)
}

// TotalApprovedByMember sums all approved amounts for a member
func (r *ClaimRepository) TotalApprovedByMember(ctx context.Context, memberID int64) (decimal.Decimal, error) {
	query := `
		SELECT COALESCE(GROUP_CONCAT(approved_amount, '|'), '')
		FROM claims
		WHERE member_id = ? AND state = 'approved'
	`

	var joined string
	err := r.db.Querier(ctx).QueryRowContext(ctx, query, memberID).Scan(&joined)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to sum member approvals: %w", err)
	}
	return sumJoinedAmounts(joined)
}

// ListSubmittedPastDeadline returns submitted claims whose review deadline has
// passed and which are not yet marked overdue
func (r *ClaimRepository) ListSubmittedPastDeadline(ctx context.Context, now time.Time) ([]*entity.Claim, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM claims
		WHERE state = 'submitted' AND is_overdue = 0
		  AND sla_deadline IS NOT NULL AND sla_deadline < ?
	`, claimColumns)

	rows, err := r.db.Querier(ctx).QueryContext(ctx, query, now)
	if err != nil {
		r.logger.Error("Failed to list overdue claims", zap.Error(err))
		return nil, fmt.Errorf("failed to list overdue claims: %w", err)
	}
	defer rows.Close()

	return collectClaims(rows)
}

// MarkOverdue flags the given claims as overdue
func (r *ClaimRepository) MarkOverdue(ctx context.Context, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}

	query := `UPDATE claims SET is_overdue = 1, updated_at = CURRENT_TIMESTAMP WHERE id = ?`
	q := r.db.Querier(ctx)
	for _, id := range ids {
		if _, err := q.ExecContext(ctx, query, id); err != nil {
			r.logger.Error("Failed to mark claim overdue", zap.Int64("id", id), zap.Error(err))
			return fmt.Errorf("failed to mark claim overdue: %w", err)
		}
	}
	return nil
}

// ListCessionCandidates returns approved, paid claims under the contract with
// a positive reinsurer share inside the period, not yet ceded
func (r *ClaimRepository) ListCessionCandidates(ctx context.Context, contractID int64, periodStart, periodEnd time.Time) ([]*entity.Claim, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM claims
		WHERE reinsurance_contract_id = ?
		  AND state = 'approved' AND payment_state = 'paid'
		  AND CAST(reinsurer_share AS REAL) > 0
		  AND bordereau_line_id IS NULL
		  AND approved_date >= ? AND approved_date <= ?
	`, claimColumns)

	rows, err := r.db.Querier(ctx).QueryContext(ctx, query, contractID, periodStart, periodEnd)
	if err != nil {
		r.logger.Error("Failed to list cession candidates", zap.Int64("contract_id", contractID), zap.Error(err))
		return nil, fmt.Errorf("failed to list cession candidates: %w", err)
	}
	defer rows.Close()

	return collectClaims(rows)
}

// LockToBordereauLine records the bordereau line a claim was ceded to.
// A claim already ceded yields a conflict failure.
func (r *ClaimRepository) LockToBordereauLine(ctx context.Context, claimID, lineID int64) error {
	query := `
		UPDATE claims SET bordereau_line_id = ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = ? AND bordereau_line_id IS NULL
	`

	result, err := r.db.Querier(ctx).ExecContext(ctx, query, lineID, claimID)
	if err != nil {
		return fmt.Errorf("failed to lock claim to bordereau line: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return faults.Conflict("claim %d is already ceded to a bordereau", claimID)
	}
	return nil
}

// Heatmap aggregates flagged claims per (service, provider)
func (r *ClaimRepository) Heatmap(ctx context.Context) ([]port.FraudHeatmapCell, error) {
	query := `
		SELECT service_id, provider_id, COUNT(*), AVG(fraud_score)
		FROM claims
		WHERE fraud_flag = 1
		GROUP BY service_id, provider_id
		ORDER BY COUNT(*) DESC
	`

	rows, err := r.db.Querier(ctx).QueryContext(ctx, query)
	if err != nil {
		r.logger.Error("Failed to build fraud heatmap", zap.Error(err))
		return nil, fmt.Errorf("failed to build fraud heatmap: %w", err)
	}
	defer rows.Close()

	var cells []port.FraudHeatmapCell
	for rows.Next() {
		var cell port.FraudHeatmapCell
		if err := rows.Scan(&cell.ServiceID, &cell.ProviderID, &cell.ClaimCount, &cell.AvgFraudScore); err != nil {
			return nil, fmt.Errorf("failed to scan heatmap cell: %w", err)
		}
		cells = append(cells, cell)
	}
	return cells, rows.Err()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanClaim(row rowScanner) (*entity.Claim, error) {
	var claim entity.Claim
	var claimed, approved, insurer, reinsurer string
	var committeeRequired, fraudFlag, isOverdue, overrideUsed int
	var slaDeadline, overrideDate, approvedDate sql.NullTime
	var contractID, lineID sql.NullInt64
	var state string

	err := row.Scan(
		&claim.ID,
		&claim.Number,
		&claim.MemberID,
		&claim.ProviderID,
		&claim.ServiceID,
		&claim.PolicyID,
		&claimed,
		&approved,
		&insurer,
		&reinsurer,
		&claim.PayeeType,
		&state,
		&claim.EscalationLevel,
		&committeeRequired,
		&claim.CommitteeQuorum,
		&claim.FraudScore,
		&fraudFlag,
		&claim.FraudReason,
		&slaDeadline,
		&isOverdue,
		&claim.ReturnReason,
		&overrideUsed,
		&claim.OverrideBy,
		&claim.OverrideReason,
		&overrideDate,
		&claim.ApprovedBy,
		&approvedDate,
		&contractID,
		&lineID,
		&claim.JournalEntryID,
		&claim.PaymentID,
		&claim.PaymentState,
		&claim.CreatedBy,
		&claim.CreatedAt,
		&claim.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	claim.State = workflow.State(state)
	claim.CommitteeRequired = committeeRequired != 0
	claim.FraudFlag = fraudFlag != 0
	claim.IsOverdue = isOverdue != 0
	claim.OverrideUsed = overrideUsed != 0

	if claim.ClaimedAmount, err = scanDecimal(claimed); err != nil {
		return nil, err
	}
	if claim.ApprovedAmount, err = scanDecimal(approved); err != nil {
		return nil, err
	}
	if claim.InsurerShare, err = scanDecimal(insurer); err != nil {
		return nil, err
	}
	if claim.ReinsurerShare, err = scanDecimal(reinsurer); err != nil {
		return nil, err
	}

	if slaDeadline.Valid {
		claim.SLADeadline = &slaDeadline.Time
	}
	if overrideDate.Valid {
		claim.OverrideDate = &overrideDate.Time
	}
	if approvedDate.Valid {
		claim.ApprovedDate = &approvedDate.Time
	}
	if contractID.Valid {
		claim.ReinsuranceContractID = &contractID.Int64
	}
	if lineID.Valid {
		claim.BordereauLineID = &lineID.Int64
	}

	return &claim, nil
}

func collectClaims(rows *sql.Rows) ([]*entity.Claim, error) {
	var claims []*entity.Claim
	for rows.Next() {
		claim, err := scanClaim(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan claim: %w", err)
		}
		claims = append(claims, claim)
	}
	return claims, rows.Err()
}

// sumJoinedAmounts adds up a GROUP_CONCAT of exact decimal strings
func sumJoinedAmounts(joined string) (decimal.Decimal, error) {
	total := decimal.Zero
	if joined == "" {
		return total, nil
	}
	start := 0
	for i := 0; i <= len(joined); i++ {
		if i == len(joined) || joined[i] == '|' {
			d, err := scanDecimal(joined[start:i])
			if err != nil {
				return decimal.Zero, err
			}
			total = total.Add(d)
			start = i + 1
		}
	}
	return total, nil
}
