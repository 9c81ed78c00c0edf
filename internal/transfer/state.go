package transfer

import (
	"errors"
	"fmt"
)

// State is the lifecycle position of a Session.
type State int

const (
	Idle State = iota
	Connected
	Transferring
	Completed
	Failed
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Connected:
		return "connected"
	case Transferring:
		return "transferring"
	case Completed:
		return "completed"
	case Failed:
		return "failed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Terminal reports whether no further transition is possible.
func (s State) Terminal() bool { return s == Completed || s == Failed }

// ErrInvalidTransition is returned when an operation is attempted from a state
// that does not allow it.
var ErrInvalidTransition = errors.New("invalid session state transition")

var transitions = map[State][]State{
	Idle:         {Connected, Failed},
	Connected:    {Transferring, Failed},
	Transferring: {Completed, Failed},
}

func (s State) canTransition(to State) bool {
	for _, next := range transitions[s] {
		if next == to {
			return true
		}
	}
	return false
}
