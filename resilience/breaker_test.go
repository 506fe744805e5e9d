package resilience

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastConfig() BreakerConfig {
	return BreakerConfig{FailureThreshold: 3, RecoveryTimeout: 20 * time.Millisecond, SuccessThreshold: 2}
}

func TestBreakerStartsClosed(t *testing.T) {
	r := NewRegistry(fastConfig())
	b := r.Get("thermostat")
	assert.Equal(t, StateClosed, b.State())
	ok, _ := b.Allow()
	assert.True(t, ok)
}

func TestBreakerOpensAtFailureThreshold(t *testing.T) {
	b := newBreaker("x", fastConfig())
	for i := 0; i < 2; i++ {
		b.RecordFailure()
		assert.Equal(t, StateClosed, b.State())
	}
	b.RecordFailure()
	assert.Equal(t, StateOpen, b.State())
}

func TestBreakerRejectsWhileOpen(t *testing.T) {
	b := newBreaker("x", fastConfig())
	for i := 0; i < 3; i++ {
		b.RecordFailure()
	}
	ok, remaining := b.Allow()
	assert.False(t, ok)
	assert.Greater(t, remaining, time.Duration(0))
}

func TestBreakerHalfOpensAfterRecoveryTimeout(t *testing.T) {
	cfg := fastConfig()
	b := newBreaker("x", cfg)
	for i := 0; i < cfg.FailureThreshold; i++ {
		b.RecordFailure()
	}
	time.Sleep(cfg.RecoveryTimeout + 5*time.Millisecond)

	ok, _ := b.Allow()
	assert.True(t, ok)
	assert.Equal(t, StateHalfOpen, b.State())
}

func TestBreakerClosesAfterSuccessThresholdInHalfOpen(t *testing.T) {
	cfg := fastConfig()
	b := newBreaker("x", cfg)
	for i := 0; i < cfg.FailureThreshold; i++ {
		b.RecordFailure()
	}
	time.Sleep(cfg.RecoveryTimeout + 5*time.Millisecond)
	_, _ = b.Allow() // transitions to HALF_OPEN

	b.RecordSuccess()
	assert.Equal(t, StateHalfOpen, b.State())
	b.RecordSuccess()
	assert.Equal(t, StateClosed, b.State())
}

func TestBreakerReopensOnFailureInHalfOpen(t *testing.T) {
	cfg := fastConfig()
	b := newBreaker("x", cfg)
	for i := 0; i < cfg.FailureThreshold; i++ {
		b.RecordFailure()
	}
	time.Sleep(cfg.RecoveryTimeout + 5*time.Millisecond)
	_, _ = b.Allow()

	b.RecordFailure()
	assert.Equal(t, StateOpen, b.State())
}

func TestBreakerListenerNotifiedOnTransition(t *testing.T) {
	cfg := fastConfig()
	b := newBreaker("thermostat", cfg)
	var transitions []State
	b.AddListener(func(name string, from, to State) {
		assert.Equal(t, "thermostat", name)
		transitions = append(transitions, to)
	})

	for i := 0; i < cfg.FailureThreshold; i++ {
		b.RecordFailure()
	}
	require.Len(t, transitions, 1)
	assert.Equal(t, StateOpen, transitions[0])
}

func TestCallWrapsAllowAndRecord(t *testing.T) {
	b := newBreaker("x", fastConfig())
	err := b.Call(func() error { return errors.New("fail") })
	assert.Error(t, err)

	err = b.Call(func() error { return nil })
	assert.NoError(t, err)
}

func TestCallReturnsOpenErrorWhenBreakerOpen(t *testing.T) {
	cfg := fastConfig()
	b := newBreaker("x", cfg)
	for i := 0; i < cfg.FailureThreshold; i++ {
		b.RecordFailure()
	}
	err := b.Call(func() error { return nil })
	var openErr *OpenError
	assert.ErrorAs(t, err, &openErr)
}

func TestRegistryReusesBreakerPerName(t *testing.T) {
	r := NewRegistry(fastConfig())
	a := r.Get("x")
	b := r.Get("x")
	assert.Same(t, a, b)
}
