package session

import "slices"

// State is the lifecycle state of the controller's feed session.
type State int

const (
	// StateIdle means no session has been started.
	StateIdle State = iota
	// StateConnecting means a session is being established.
	StateConnecting
	// StateConnected means the feed is delivering events.
	StateConnected
	// StateDisconnected means the last session ended or failed.
	StateDisconnected
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateDisconnected:
		return "disconnected"
	default:
		return "unknown"
	}
}

// stateMachine guards session state transitions. It is not safe for
// concurrent use; the controller serializes access.
type stateMachine struct {
	current      State
	transitions  map[State][]State
	onTransition func(from, to State)
}

func newStateMachine() *stateMachine {
	return &stateMachine{
		current: StateIdle,
		transitions: map[State][]State{
			StateIdle:         {StateConnecting},
			StateConnecting:   {StateConnected, StateDisconnected},
			StateConnected:    {StateDisconnected, StateConnecting},
			StateDisconnected: {StateConnecting},
		},
	}
}

// Transition moves to state to and reports whether the move was allowed.
func (sm *stateMachine) Transition(to State) bool {
	if !slices.Contains(sm.transitions[sm.current], to) {
		return false
	}
	from := sm.current
	sm.current = to
	if sm.onTransition != nil {
		sm.onTransition(from, to)
	}
	return true
}

// Current returns the current state.
func (sm *stateMachine) Current() State {
	return sm.current
}
