package deposit

import "fmt"

// State is the lifecycle of one deposit request.
type State int

const (
	StateIdle State = iota
	StateAwaitingApproval
	StateAwaitingDeposit
	StateSucceeded
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateAwaitingApproval:
		return "awaiting_approval"
	case StateAwaitingDeposit:
		return "awaiting_deposit"
	case StateSucceeded:
		return "succeeded"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Terminal reports whether no further transition is possible for the request.
func (s State) Terminal() bool {
	return s == StateSucceeded || s == StateFailed
}

var transitions = map[State][]State{
	StateIdle:             {StateAwaitingApproval},
	StateAwaitingApproval: {StateAwaitingDeposit, StateFailed},
	StateAwaitingDeposit:  {StateSucceeded, StateFailed},
}

// CanTransition reports whether from -> to is a legal step.
func CanTransition(from, to State) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Observer is told about every state change of a request. failure is set
// only when to is StateFailed.
type Observer func(id string, from, to State, failure *Failure)
