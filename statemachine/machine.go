package statemachine

import (
	"sync"
	"time"

	"github.com/nova-labs/jarviscore/logging"
)

// historyCap bounds the in-memory transition ring so a long-lived process
// doesn't grow this unboundedly; the teacher bounds per-entry recent-sample
// slices the same way (core/memory_store.go's _max_recent equivalent,
// recent_latencies in the Python health monitor).
const historyCap = 256

// StateTransition records one successful transition.
type StateTransition struct {
	From      State
	To        State
	Timestamp time.Time
	Reason    string
}

// Listener is notified synchronously after each successful transition. A
// panicking listener is recovered and logged, never aborting the
// transition — spec.md §4.2: "a listener throwing does not abort the
// transition (logged, swallowed)".
type Listener func(StateTransition)

// Machine is the turn-lifecycle state machine. The orchestrator creates one
// Machine and drives every turn through it, returning it to IDLE at the end
// of each turn.
type Machine struct {
	mu        sync.Mutex
	current   State
	history   []StateTransition
	listeners []Listener
	logger    logging.Logger
}

// New creates a Machine in the initial state, IDLE.
func New(logger logging.Logger) *Machine {
	if logger == nil {
		logger = logging.NoOpLogger{}
	}
	return &Machine{current: StateIdle, logger: logger}
}

// Current returns the current state.
func (m *Machine) Current() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current
}

// CanTransition reports whether a transition to `to` is legal from the
// current state, without performing it.
func (m *Machine) CanTransition(to State) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return adjacency[m.current][to]
}

// AddListener registers a listener invoked, in transition order, after each
// successful transition.
func (m *Machine) AddListener(fn Listener) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listeners = append(m.listeners, fn)
}

// Transition attempts to move to `to`, recording the reason. Returns
// ErrInvalidTransition for any non-adjacent move.
func (m *Machine) Transition(to State, reason string) (StateTransition, error) {
	m.mu.Lock()
	from := m.current
	if !adjacency[from][to] {
		m.mu.Unlock()
		return StateTransition{}, &ErrInvalidTransition{From: from, To: to}
	}
	t := StateTransition{From: from, To: to, Timestamp: time.Now().UTC(), Reason: reason}
	m.current = to
	m.history = append(m.history, t)
	if len(m.history) > historyCap {
		m.history = m.history[len(m.history)-historyCap:]
	}
	listeners := append([]Listener(nil), m.listeners...)
	m.mu.Unlock()

	for _, l := range listeners {
		m.notify(l, t)
	}
	return t, nil
}

// notify invokes a listener with panic recovery so one bad listener can't
// bring down the turn pipeline.
func (m *Machine) notify(l Listener, t StateTransition) {
	defer func() {
		if r := recover(); r != nil {
			m.logger.Error("state machine listener panicked", map[string]interface{}{
				"panic": r,
				"from":  t.From.String(),
				"to":    t.To.String(),
			})
		}
	}()
	l(t)
}

// History returns a copy of the transition history recorded so far.
func (m *Machine) History() []StateTransition {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]StateTransition, len(m.history))
	copy(out, m.history)
	return out
}

// Reset forces the machine back to IDLE. If the current state is not IDLE,
// a transition to ERROR (unless already in ERROR) and then to IDLE is
// appended so the history still shows an explicit, auditable exit from
// whatever state it was in (spec.md §4.2).
func (m *Machine) Reset(reason string) {
	m.mu.Lock()
	cur := m.current
	m.mu.Unlock()

	if cur == StateIdle {
		return
	}
	if cur != StateError {
		// Force through ERROR first; ERROR is reachable from every state.
		_, _ = m.Transition(StateError, reason)
	}
	_, _ = m.Transition(StateIdle, reason)
}
