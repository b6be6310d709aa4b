package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// Journal entry move types
const (
	MovePayable    = "payable"    // claim paid to a provider
	MoveReceivable = "receivable" // reimbursement credited to a member
)

// Journal entry states
const (
	EntryPosted   = "posted"
	EntryReversed = "reversed"
)

// JournalEntry is a posted accounting entry for an approved claim.
// ReversalOf links a reversal entry back to the entry it unwinds.
type JournalEntry struct {
	ID       string `json:"id"`
	MoveType string `json:"move_type"`

	PayeeType string `json:"payee_type"`
	PayeeRef  string `json:"payee_ref"`

	Account   string          `json:"account"`
	Journal   string          `json:"journal"`
	Amount    decimal.Decimal `json:"amount"`
	Reference string          `json:"reference"`

	State      string `json:"state"`
	ReversalOf string `json:"reversal_of,omitempty"`
	Reason     string `json:"reason,omitempty"`

	PostedAt time.Time `json:"posted_at"`
}

// ReviewTask is a reviewer work item created by the notification service
type ReviewTask struct {
	ID         int64      `json:"id"`
	AssigneeID string     `json:"assignee_id"`
	EntityType string     `json:"entity_type"`
	EntityID   int64      `json:"entity_id"`
	Subject    string     `json:"subject"`
	Note       string     `json:"note,omitempty"`
	Done       bool       `json:"done"`
	CreatedAt  time.Time  `json:"created_at"`
	ClosedAt   *time.Time `json:"closed_at,omitempty"`
}
