package domain

type IntentStatus string

const (
	IntentStatusDraft                 IntentStatus = "DRAFT"
	IntentStatusCreated               IntentStatus = "CREATED"
	IntentStatusAwaitingAuthorization IntentStatus = "AWAITING_AUTHORIZATION"
	IntentStatusAuthorized            IntentStatus = "AUTHORIZED"
	IntentStatusExecuted              IntentStatus = "EXECUTED"
	IntentStatusFailed                IntentStatus = "FAILED"
	IntentStatusCancelled             IntentStatus = "CANCELLED"
)

var transitions = map[IntentStatus][]IntentStatus{
	IntentStatusDraft:                 {IntentStatusCreated, IntentStatusFailed},
	IntentStatusCreated:               {IntentStatusAwaitingAuthorization, IntentStatusFailed},
	IntentStatusAwaitingAuthorization: {IntentStatusAuthorized, IntentStatusExecuted, IntentStatusCancelled, IntentStatusFailed},
	IntentStatusAuthorized:            {IntentStatusExecuted, IntentStatusFailed},
}

// CanTransitionTo reports whether the lifecycle allows moving from one status to another.
// AWAITING_AUTHORIZATION may jump straight to EXECUTED when the processor already
// reports the payment as executed.
func CanTransitionTo(from, to IntentStatus) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

func (s IntentStatus) IsTerminal() bool {
	return s == IntentStatusExecuted || s == IntentStatusFailed || s == IntentStatusCancelled
}

// String representation (for logging)
func (s IntentStatus) String() string {
	return string(s)
}
