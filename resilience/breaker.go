// Package resilience implements the Circuit Breaker Registry and
// Degradation Manager (spec.md §4.8, §4.9). The breaker here is
// deliberately the simpler failure-count model spec.md describes, not the
// sliding-window error-rate breaker in the teacher's core/circuit_breaker.go
// — the state/listener/mutex shape is grounded on the teacher, the
// transition rule comes from the spec.
package resilience

import (
	"fmt"
	"sync"
	"time"
)

// State is the closed set of circuit breaker states.
type State string

const (
	StateClosed   State = "CLOSED"
	StateOpen     State = "OPEN"
	StateHalfOpen State = "HALF_OPEN"
)

const (
	defaultFailureThreshold = 5
	defaultRecoveryTimeout  = 30 * time.Second
	defaultSuccessThreshold = 2
)

// BreakerConfig bounds a single breaker's thresholds.
type BreakerConfig struct {
	FailureThreshold int
	RecoveryTimeout  time.Duration
	SuccessThreshold int
}

// DefaultBreakerConfig returns spec.md §4.8's defaults.
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{
		FailureThreshold: defaultFailureThreshold,
		RecoveryTimeout:  defaultRecoveryTimeout,
		SuccessThreshold: defaultSuccessThreshold,
	}
}

// Listener is notified on every state transition.
type Listener func(toolName string, from, to State)

// Breaker is a single per-tool circuit breaker.
type Breaker struct {
	mu               sync.Mutex
	name             string
	cfg              BreakerConfig
	state            State
	consecutiveFails int
	successes        int
	openedAt         time.Time
	listeners        []Listener
}

func newBreaker(name string, cfg BreakerConfig) *Breaker {
	return &Breaker{name: name, cfg: cfg, state: StateClosed}
}

// AddListener registers fn to be notified of every state transition this
// breaker makes from now on.
func (b *Breaker) AddListener(fn Listener) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.listeners = append(b.listeners, fn)
}

// transitionLocked moves the breaker to to and notifies listeners outside
// the lock. Callers must hold b.mu on entry; it is released and
// re-acquired around notification.
func (b *Breaker) transitionLocked(to State) {
	from := b.state
	b.state = to
	if from == to {
		return
	}
	listeners := append([]Listener{}, b.listeners...)
	name := b.name
	b.mu.Unlock()
	for _, l := range listeners {
		l(name, from, to)
	}
	b.mu.Lock()
}

// Allow reports whether a call may proceed right now, transitioning
// OPEN->HALF_OPEN if the recovery timeout has elapsed (spec.md §4.8:
// "after timeout elapses, the next state read transitions to HALF_OPEN").
// remaining is the time left before that transition, valid only when
// ok is false.
func (b *Breaker) Allow() (ok bool, remaining time.Duration) {
	b.mu.Lock()

	if b.state != StateOpen {
		b.mu.Unlock()
		return true, 0
	}

	elapsed := time.Since(b.openedAt)
	if elapsed >= b.cfg.RecoveryTimeout {
		b.successes = 0
		b.transitionLocked(StateHalfOpen)
		b.mu.Unlock()
		return true, 0
	}
	remaining = b.cfg.RecoveryTimeout - elapsed
	b.mu.Unlock()
	return false, remaining
}

// RecordSuccess reports a successful call.
func (b *Breaker) RecordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case StateClosed:
		b.consecutiveFails = 0
	case StateHalfOpen:
		b.successes++
		if b.successes >= b.cfg.SuccessThreshold {
			b.consecutiveFails = 0
			b.successes = 0
			b.transitionLocked(StateClosed)
		}
	}
}

// RecordFailure reports a failed call.
func (b *Breaker) RecordFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case StateClosed:
		b.consecutiveFails++
		if b.consecutiveFails >= b.cfg.FailureThreshold {
			b.openedAt = time.Now()
			b.transitionLocked(StateOpen)
		}
	case StateHalfOpen:
		b.openedAt = time.Now()
		b.successes = 0
		b.transitionLocked(StateOpen)
	}
}

// State returns the breaker's current state without mutating it.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Call combines the gate, the call, and success/failure recording — a
// convenience wrapper named directly after spec.md §4.8's `call(f)`.
func (b *Breaker) Call(f func() error) error {
	ok, remaining := b.Allow()
	if !ok {
		return &OpenError{RemainingSeconds: remaining.Seconds()}
	}
	if err := f(); err != nil {
		b.RecordFailure()
		return err
	}
	b.RecordSuccess()
	return nil
}

// OpenError is returned by Call when the breaker is OPEN.
type OpenError struct {
	RemainingSeconds float64
}

func (e *OpenError) Error() string {
	return fmt.Sprintf("circuit breaker open: retry in %.1fs", e.RemainingSeconds)
}

// Registry creates and owns one Breaker per tool name, on first
// reference, and never removes one (spec.md §4.8).
type Registry struct {
	mu       sync.Mutex
	breakers map[string]*Breaker
	cfg      BreakerConfig
}

// NewRegistry builds a Registry using cfg for every breaker it creates.
func NewRegistry(cfg BreakerConfig) *Registry {
	return &Registry{breakers: make(map[string]*Breaker), cfg: cfg}
}

// Get returns the breaker for toolName, creating it if this is the first
// reference.
func (r *Registry) Get(toolName string) *Breaker {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.breakers[toolName]
	if !ok {
		b = newBreaker(toolName, r.cfg)
		r.breakers[toolName] = b
	}
	return b
}
