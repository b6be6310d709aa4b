package port

import (
	"context"

	"github.com/shopspring/decimal"
)

// Roles gating claim administration operations
const (
	RoleManager     = "manager"
	RoleGM          = "gm"
	RoleCommittee   = "committee"
	RoleUnderwriter = "underwriter"
)

// LedgerLine is one line item of a journal entry to post
type LedgerLine struct {
	Description string
	Amount      decimal.Decimal
	Account     string
}

// LedgerService posts and reverses accounting journal entries.
// PostEntry fails with a configuration failure when required accounts or
// journals are not configured.
type LedgerService interface {
	PostEntry(ctx context.Context, moveType, payeeType, payeeRef string, lines []LedgerLine) (entryID string, err error)
	ReverseEntry(ctx context.Context, entryID, reason string) (reversalID string, err error)

	// Preflight verifies the accounting configuration required to post for
	// the given payee without posting anything.
	Preflight(ctx context.Context, payeeType, payeeRef string) error
}

// TaskService creates reviewer work items
type TaskService interface {
	AssignReviewTask(ctx context.Context, assignee, entityType string, entityID int64, subject, note string) error
	CloseTasks(ctx context.Context, entityType string, entityID int64) error
}

// SequenceGenerator issues business numbers for claims, policies, members,
// bordereaux and settlements
type SequenceGenerator interface {
	Next(ctx context.Context, key string) (string, error)
}

// Sequence keys
const (
	SeqClaim      = "claim"
	SeqPolicy     = "policy"
	SeqMember     = "member"
	SeqBordereau  = "bordereau"
	SeqSettlement = "settlement"
)

// DocumentStore counts supporting attachments for an entity.
// Used only as a submission precondition.
type DocumentStore interface {
	CountAttachments(ctx context.Context, entityType string, entityID int64) (int, error)
}

// AuthorityChecker answers role membership questions about actors
type AuthorityChecker interface {
	HasRole(ctx context.Context, actorID, role string) (bool, error)
	// ListMembers returns the actor ids holding a role (committee fan-out)
	ListMembers(ctx context.Context, role string) ([]string, error)
}
