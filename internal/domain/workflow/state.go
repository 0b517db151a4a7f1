package workflow

import "github.com/hotelops/requisition-approval/internal/domain/entity"

// State is the document status of a requisition
type State string

const (
	StateDraft             State = entity.StatusDraft
	StateSubmitted         State = entity.StatusSubmitted
	StateInApproval        State = entity.StatusInApproval
	StateReturned          State = entity.StatusReturned
	StateApproved          State = entity.StatusApproved
	StatePartiallyApproved State = entity.StatusPartiallyApproved
	StateRejected          State = entity.StatusRejected
	StateIssued            State = entity.StatusIssued
)

var validStates = map[State]bool{
	StateDraft:             true,
	StateSubmitted:         true,
	StateInApproval:        true,
	StateReturned:          true,
	StateApproved:          true,
	StatePartiallyApproved: true,
	StateRejected:          true,
	StateIssued:            true,
}

var terminalStates = map[State]bool{
	StateRejected: true,
	StateIssued:   true,
}

// IsTerminal returns true if no further transitions are allowed from the state
func (s State) IsTerminal() bool {
	return terminalStates[s]
}

// String returns the string representation of the state
func (s State) String() string {
	return string(s)
}

// IsValid returns true if the state is a known requisition status
func (s State) IsValid() bool {
	return validStates[s]
}
