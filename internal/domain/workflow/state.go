package workflow

import "github.com/garyjia/expense-workflow/internal/domain/entity"

// State represents the workflow state of an expense
type State string

const (
	// StateDraft is the state of a claim that has not been persisted yet
	StateDraft    State = "draft"
	StatePending  State = State(entity.StatusPending)
	StateApproved State = State(entity.StatusApproved)
	StateRejected State = State(entity.StatusRejected)
)

var validStates = map[State]bool{
	StateDraft:    true,
	StatePending:  true,
	StateApproved: true,
	StateRejected: true,
}

var terminalStates = map[State]bool{
	StateApproved: true,
	StateRejected: true,
}

// IsTerminal returns true if the state is a terminal state (no further transitions allowed)
func (s State) IsTerminal() bool {
	return terminalStates[s]
}

// String returns the string representation of the state
func (s State) String() string {
	return string(s)
}

// IsValid returns true if the state is a valid workflow state
func (s State) IsValid() bool {
	return validStates[s]
}
