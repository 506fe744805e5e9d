// Package statemachine validates transitions through the turn lifecycle
// (spec.md §3 State, §4.2 State Machine).
package statemachine

import "fmt"

// State is one node of the turn lifecycle.
type State string

const (
	StateIdle         State = "IDLE"
	StateListening    State = "LISTENING"
	StateTranscribing State = "TRANSCRIBING"
	StatePlanning     State = "PLANNING"
	StateExecuting    State = "EXECUTING"
	StateResponding   State = "RESPONDING"
	StateError        State = "ERROR"
)

func (s State) String() string { return string(s) }

// adjacency is the fixed transition graph from spec.md §4.2. Any transition
// not listed here fails and is never recoverable within the same turn.
var adjacency = map[State]map[State]bool{
	StateIdle:         set(StateListening, StatePlanning, StateError),
	StateListening:    set(StateIdle, StateTranscribing, StateError),
	StateTranscribing: set(StatePlanning, StateIdle, StateError),
	StatePlanning:     set(StateExecuting, StateResponding, StateIdle, StateError),
	StateExecuting:    set(StateResponding, StateError),
	StateResponding:   set(StateIdle, StateListening, StateError),
	StateError:        set(StateIdle),
}

func set(states ...State) map[State]bool {
	m := make(map[State]bool, len(states))
	for _, s := range states {
		m[s] = true
	}
	return m
}

// ErrInvalidTransition is returned for any attempted non-adjacent
// transition. It is never recoverable within the same turn (spec.md §3).
type ErrInvalidTransition struct {
	From State
	To   State
}

func (e *ErrInvalidTransition) Error() string {
	return fmt.Sprintf("statemachine: invalid transition %s -> %s", e.From, e.To)
}
