// Package accounting posts and reverses the journal entries behind approved
// claims. Posting is always preceded by a preflight so configuration gaps
// surface with remediation text before any claim state changes.
package accounting

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/qasimbotani/health-insurance/internal/application/port"
	"github.com/qasimbotani/health-insurance/internal/config"
	"github.com/qasimbotani/health-insurance/internal/domain/entity"
	"github.com/qasimbotani/health-insurance/internal/domain/faults"
	"github.com/qasimbotani/health-insurance/pkg/database"
)

// Ledger implements journal entry posting over the journal_entries table
type Ledger struct {
	db     *database.DB
	cfg    config.AccountingConfig
	logger *zap.Logger
}

// NewLedger creates a new ledger service
func NewLedger(db *database.DB, cfg config.AccountingConfig, logger *zap.Logger) *Ledger {
	return &Ledger{db: db, cfg: cfg, logger: logger}
}

// Preflight verifies the accounting configuration required to post for the
// given payee without posting anything
func (l *Ledger) Preflight(ctx context.Context, payeeType, payeeRef string) error {
	if l.cfg.ExpenseAccount == "" {
		return faults.Configuration(
			"no expense account is configured for claim postings",
			"Set INSURANCE_EXPENSE_ACCOUNT or accounting.expense_account in the config file.",
		)
	}

	switch payeeType {
	case entity.PayeeProvider:
		if l.cfg.PayableAccount == "" {
			return faults.Configuration(
				"no payable account is configured for provider claim postings",
				"Set INSURANCE_PAYABLE_ACCOUNT or accounting.payable_account in the config file.",
			)
		}
		if l.cfg.PurchaseJournal == "" {
			return faults.Configuration(
				"no purchase journal is configured for provider claim postings",
				"Set accounting.purchase_journal in the config file.",
			)
		}
	case entity.PayeeMember:
		if l.cfg.ReceivableAccount == "" {
			return faults.Configuration(
				"no receivable account is configured for member reimbursements",
				"Set INSURANCE_RECEIVABLE_ACCOUNT or accounting.receivable_account in the config file.",
			)
		}
		if l.cfg.BankJournal == "" {
			return faults.Configuration(
				"no bank journal is configured for member reimbursements",
				"Set accounting.bank_journal in the config file.",
			)
		}
	default:
		return faults.Validation("unknown payee type %q", payeeType)
	}

	if payeeRef == "" {
		return faults.Configuration(
			fmt.Sprintf("the %s has no accounting partner reference", payeeType),
			"Set the partner reference on the payee record before approving claims for it.",
		)
	}
	return nil
}

// PostEntry posts a journal entry for the given payee and returns its id.
// The entry's move type and journal follow from the payee type.
func (l *Ledger) PostEntry(ctx context.Context, moveType, payeeType, payeeRef string, lines []port.LedgerLine) (string, error) {
	if err := l.Preflight(ctx, payeeType, payeeRef); err != nil {
		return "", err
	}
	if len(lines) == 0 {
		return "", faults.Validation("cannot post a journal entry with no lines")
	}

	total := decimal.Zero
	for _, line := range lines {
		if line.Amount.IsNegative() {
			return "", faults.Validation("journal line %q has a negative amount", line.Description)
		}
		total = total.Add(line.Amount)
	}
	if !total.IsPositive() {
		return "", faults.Validation("cannot post a zero-amount journal entry")
	}

	journal := l.cfg.PurchaseJournal
	if moveType == entity.MoveReceivable {
		journal = l.cfg.BankJournal
	}

	entryID := uuid.NewString()
	query := `
		INSERT INTO journal_entries (id, move_type, payee_type, payee_ref, account, journal, amount, reference, state)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, 'posted')
	`

	_, err := l.db.Querier(ctx).ExecContext(ctx, query,
		entryID, moveType, payeeType, payeeRef,
		lines[0].Account, journal, total.String(), lines[0].Description)
	if err != nil {
		l.logger.Error("Failed to post journal entry", zap.String("payee_ref", payeeRef), zap.Error(err))
		return "", fmt.Errorf("failed to post journal entry: %w", err)
	}

	l.logger.Info("Posted journal entry",
		zap.String("entry_id", entryID),
		zap.String("move_type", moveType),
		zap.String("amount", total.String()))
	return entryID, nil
}

// ReverseEntry posts a reversal of an existing entry and marks the original
// reversed. Reversing an entry twice is a conflict.
func (l *Ledger) ReverseEntry(ctx context.Context, entryID, reason string) (string, error) {
	var reversalID string

	err := l.db.WithTransaction(ctx, func(ctx context.Context) error {
		q := l.db.Querier(ctx)

		var moveType, payeeType, payeeRef, account, journal, amount, state string
		err := q.QueryRowContext(ctx,
			`SELECT move_type, payee_type, payee_ref, account, journal, amount, state FROM journal_entries WHERE id = ?`,
			entryID,
		).Scan(&moveType, &payeeType, &payeeRef, &account, &journal, &amount, &state)
		if err == sql.ErrNoRows {
			return faults.Validation("journal entry %s does not exist", entryID)
		}
		if err != nil {
			return fmt.Errorf("failed to load journal entry: %w", err)
		}
		if state == entity.EntryReversed {
			return faults.Conflict("journal entry %s is already reversed", entryID)
		}

		reversalID = uuid.NewString()
		_, err = q.ExecContext(ctx, `
			INSERT INTO journal_entries (id, move_type, payee_type, payee_ref, account, journal, amount, reference, state, reversal_of, reason)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, 'posted', ?, ?)
		`, reversalID, moveType, payeeType, payeeRef, account, journal, amount,
			fmt.Sprintf("reversal of %s", entryID), entryID, reason)
		if err != nil {
			return fmt.Errorf("failed to post reversal entry: %w", err)
		}

		_, err = q.ExecContext(ctx,
			`UPDATE journal_entries SET state = 'reversed', reason = ? WHERE id = ?`, reason, entryID)
		if err != nil {
			return fmt.Errorf("failed to mark entry reversed: %w", err)
		}
		return nil
	})
	if err != nil {
		return "", err
	}

	l.logger.Info("Reversed journal entry",
		zap.String("entry_id", entryID),
		zap.String("reversal_id", reversalID),
		zap.String("reason", reason))
	return reversalID, nil
}
