package workflow

// Member onboarding states. Claim eligibility requires an active member
// on an active policy.
const (
	MemberDraft            State = "draft"
	MemberPendingDocuments State = "pending_documents"
	MemberApproved         State = "approved"
	MemberActive           State = "active"
	MemberSuspended        State = "suspended"
	MemberTerminated       State = "terminated"
)

// Member triggers
const (
	TriggerRequestDocuments Trigger = "REQUEST_DOCUMENTS"
	TriggerApproveMember    Trigger = "APPROVE_MEMBER"
	TriggerActivateMember   Trigger = "ACTIVATE_MEMBER"
	TriggerSuspend          Trigger = "SUSPEND"
	TriggerReinstate        Trigger = "REINSTATE"
	TriggerTerminate        Trigger = "TERMINATE"
)

var memberTerminal = map[State]bool{
	MemberTerminated: true,
}

// IsMemberTerminal reports whether the member can make no further transitions
func IsMemberTerminal(s State) bool {
	return memberTerminal[s]
}

// NewMemberMachine builds the member state machine positioned at current
func NewMemberMachine(current State) StateMachine {
	b := NewBuilder()
	b.Configure(MemberDraft).
		Permit(TriggerRequestDocuments, MemberPendingDocuments)
	b.Configure(MemberPendingDocuments).
		Permit(TriggerApproveMember, MemberApproved).
		Permit(TriggerTerminate, MemberTerminated)
	b.Configure(MemberApproved).
		Permit(TriggerActivateMember, MemberActive).
		Permit(TriggerTerminate, MemberTerminated)
	b.Configure(MemberActive).
		Permit(TriggerSuspend, MemberSuspended).
		Permit(TriggerTerminate, MemberTerminated)
	b.Configure(MemberSuspended).
		Permit(TriggerReinstate, MemberActive).
		Permit(TriggerTerminate, MemberTerminated)
	return b.Build(current)
}
