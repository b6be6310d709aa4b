package workflow

// Claim lifecycle states. Transitions are one-directional except the
// draft/returned/submitted correction loop. Approved and rejected are
// terminal; a prior approval is undone only through the reversal path.
const (
	ClaimDraft     State = "draft"
	ClaimSubmitted State = "submitted"
	ClaimReturned  State = "returned"
	ClaimApproved  State = "approved"
	ClaimRejected  State = "rejected"
)

// Claim triggers
const (
	TriggerSubmit   Trigger = "SUBMIT"
	TriggerReturn   Trigger = "RETURN"
	TriggerResubmit Trigger = "RESUBMIT"
	TriggerApprove  Trigger = "APPROVE"
	TriggerReject   Trigger = "REJECT"
)

// claimTerminal marks states with no outgoing user transitions
var claimTerminal = map[State]bool{
	ClaimRejected: true,
}

// IsClaimTerminal reports whether no further claim transitions are allowed.
// Approved is not listed: an approved claim may still be rejected through
// the reversal path.
func IsClaimTerminal(s State) bool {
	return claimTerminal[s]
}

// NewClaimMachine builds the claim state machine positioned at current
func NewClaimMachine(current State) StateMachine {
	b := NewBuilder()
	b.Configure(ClaimDraft).
		Permit(TriggerSubmit, ClaimSubmitted)
	b.Configure(ClaimSubmitted).
		Permit(TriggerReturn, ClaimReturned).
		Permit(TriggerApprove, ClaimApproved).
		Permit(TriggerReject, ClaimRejected)
	b.Configure(ClaimReturned).
		Permit(TriggerResubmit, ClaimSubmitted)
	b.Configure(ClaimApproved).
		Permit(TriggerReject, ClaimRejected)
	return b.Build(current)
}
