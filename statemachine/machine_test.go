package statemachine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewMachineStartsIdle(t *testing.T) {
	m := New(nil)
	assert.Equal(t, StateIdle, m.Current())
}

func TestValidTransitionSucceeds(t *testing.T) {
	m := New(nil)
	tr, err := m.Transition(StateListening, "wake word detected")
	require.NoError(t, err)
	assert.Equal(t, StateIdle, tr.From)
	assert.Equal(t, StateListening, tr.To)
	assert.Equal(t, StateListening, m.Current())
}

func TestInvalidTransitionRejected(t *testing.T) {
	m := New(nil)
	_, err := m.Transition(StateExecuting, "skip ahead")
	require.Error(t, err)
	var invalid *ErrInvalidTransition
	assert.ErrorAs(t, err, &invalid)
	assert.Equal(t, StateIdle, m.Current(), "state unchanged after rejected transition")
}

func TestErrorReachableFromEveryState(t *testing.T) {
	for from := range adjacency {
		m := New(nil)
		m.current = from
		assert.True(t, m.CanTransition(StateError), "state %s must be able to reach ERROR", from)
	}
}

func TestListenerNotifiedInOrder(t *testing.T) {
	m := New(nil)
	var seen []State
	m.AddListener(func(tr StateTransition) { seen = append(seen, tr.To) })
	m.AddListener(func(tr StateTransition) { seen = append(seen, tr.To) })

	_, err := m.Transition(StateListening, "x")
	require.NoError(t, err)
	assert.Equal(t, []State{StateListening, StateListening}, seen)
}

func TestPanickingListenerDoesNotAbortTransition(t *testing.T) {
	m := New(nil)
	m.AddListener(func(StateTransition) { panic("boom") })

	tr, err := m.Transition(StateListening, "x")
	require.NoError(t, err)
	assert.Equal(t, StateListening, tr.To)
	assert.Equal(t, StateListening, m.Current())
}

func TestResetFromIdleIsNoOp(t *testing.T) {
	m := New(nil)
	m.Reset("noop")
	assert.Empty(t, m.History())
	assert.Equal(t, StateIdle, m.Current())
}

func TestResetFromNonErrorStateRecordsErrorThenIdle(t *testing.T) {
	m := New(nil)
	_, err := m.Transition(StatePlanning, "start")
	require.NoError(t, err)

	m.Reset("turn aborted")

	history := m.History()
	require.Len(t, history, 3)
	assert.Equal(t, StateError, history[1].To)
	assert.Equal(t, StateIdle, history[2].To)
	assert.Equal(t, StateIdle, m.Current())
}

func TestResetFromErrorGoesStraightToIdle(t *testing.T) {
	m := New(nil)
	_, err := m.Transition(StateError, "fail")
	require.NoError(t, err)

	m.Reset("recover")

	history := m.History()
	require.Len(t, history, 2)
	assert.Equal(t, StateIdle, history[1].To)
}

func TestHistoryCapBounds(t *testing.T) {
	m := New(nil)
	for i := 0; i < historyCap+50; i++ {
		if m.Current() == StateIdle {
			_, _ = m.Transition(StateListening, "x")
		} else {
			_, _ = m.Transition(StateIdle, "x")
		}
	}
	assert.LessOrEqual(t, len(m.History()), historyCap)
}
