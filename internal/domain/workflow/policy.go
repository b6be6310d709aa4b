package workflow

// Policy lifecycle states. A policy is created draft, activated once
// coverage is configured, and moved through expiring/expired by the
// periodic state sweep. Renewal spawns exactly one child policy.
const (
	PolicyDraft         State = "draft"
	PolicyActive        State = "active"
	PolicyExpiring      State = "expiring"
	PolicyRenewalQuoted State = "renewal_quoted"
	PolicyRenewed       State = "renewed"
	PolicyExpired       State = "expired"
	PolicyCancelled     State = "cancelled"
)

// Policy triggers
const (
	TriggerActivate     Trigger = "ACTIVATE"
	TriggerMarkExpiring Trigger = "MARK_EXPIRING"
	TriggerQuoteRenewal Trigger = "QUOTE_RENEWAL"
	TriggerRenew        Trigger = "RENEW"
	TriggerExpire       Trigger = "EXPIRE"
	TriggerCancel       Trigger = "CANCEL"
)

var policyTerminal = map[State]bool{
	PolicyRenewed:   true,
	PolicyExpired:   true,
	PolicyCancelled: true,
}

// IsPolicyTerminal reports whether the policy can make no further transitions
func IsPolicyTerminal(s State) bool {
	return policyTerminal[s]
}

// NewPolicyMachine builds the policy state machine positioned at current
func NewPolicyMachine(current State) StateMachine {
	b := NewBuilder()
	b.Configure(PolicyDraft).
		Permit(TriggerActivate, PolicyActive).
		Permit(TriggerCancel, PolicyCancelled)
	b.Configure(PolicyActive).
		Permit(TriggerMarkExpiring, PolicyExpiring).
		Permit(TriggerExpire, PolicyExpired).
		Permit(TriggerCancel, PolicyCancelled)
	b.Configure(PolicyExpiring).
		Permit(TriggerQuoteRenewal, PolicyRenewalQuoted).
		Permit(TriggerExpire, PolicyExpired).
		Permit(TriggerCancel, PolicyCancelled)
	b.Configure(PolicyRenewalQuoted).
		Permit(TriggerRenew, PolicyRenewed).
		Permit(TriggerExpire, PolicyExpired).
		Permit(TriggerCancel, PolicyCancelled)
	return b.Build(current)
}
