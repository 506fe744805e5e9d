package resilience

import (
	"sync"
	"time"
)

// ToolHealth is a rolling view of one tool's recent call outcomes,
// independent of the circuit breaker's own state — supplements spec.md's
// Executor step 7 ("Record outcome to circuit breaker and health
// monitor") with something the front-end/operator can actually read.
type ToolHealth struct {
	ToolName         string
	TotalCalls       int
	TotalFailures    int
	LastSuccess      *time.Time
	LastFailure      *time.Time
	ConsecutiveFails int
}

// HealthMonitor aggregates per-tool call outcomes over the process
// lifetime.
type HealthMonitor struct {
	mu     sync.Mutex
	health map[string]*ToolHealth
}

// NewHealthMonitor returns an empty HealthMonitor.
func NewHealthMonitor() *HealthMonitor {
	return &HealthMonitor{health: make(map[string]*ToolHealth)}
}

// RecordSuccess updates toolName's health after a successful call.
func (m *HealthMonitor) RecordSuccess(toolName string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	h := m.entryLocked(toolName)
	now := time.Now()
	h.TotalCalls++
	h.LastSuccess = &now
	h.ConsecutiveFails = 0
}

// RecordFailure updates toolName's health after a failed call.
func (m *HealthMonitor) RecordFailure(toolName string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	h := m.entryLocked(toolName)
	now := time.Now()
	h.TotalCalls++
	h.TotalFailures++
	h.LastFailure = &now
	h.ConsecutiveFails++
}

func (m *HealthMonitor) entryLocked(toolName string) *ToolHealth {
	h, ok := m.health[toolName]
	if !ok {
		h = &ToolHealth{ToolName: toolName}
		m.health[toolName] = h
	}
	return h
}

// Snapshot returns a copy of every tool's current health.
func (m *HealthMonitor) Snapshot() []ToolHealth {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]ToolHealth, 0, len(m.health))
	for _, h := range m.health {
		out = append(out, *h)
	}
	return out
}
