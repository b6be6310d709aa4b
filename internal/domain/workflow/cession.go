package workflow

// Bordereau states
const (
	BordereauDraft     State = "draft"
	BordereauConfirmed State = "confirmed"
)

// Settlement states
const (
	SettlementDraft     State = "draft"
	SettlementConfirmed State = "confirmed"
	SettlementSettled   State = "settled"
)

// Cession triggers
const (
	TriggerConfirm Trigger = "CONFIRM"
	TriggerSettle  Trigger = "SETTLE"
)

// NewBordereauMachine builds the bordereau state machine positioned at current
func NewBordereauMachine(current State) StateMachine {
	b := NewBuilder()
	b.Configure(BordereauDraft).
		Permit(TriggerConfirm, BordereauConfirmed)
	return b.Build(current)
}

// NewSettlementMachine builds the settlement state machine positioned at current
func NewSettlementMachine(current State) StateMachine {
	b := NewBuilder()
	b.Configure(SettlementDraft).
		Permit(TriggerConfirm, SettlementConfirmed)
	b.Configure(SettlementConfirmed).
		Permit(TriggerSettle, SettlementSettled)
	return b.Build(current)
}
