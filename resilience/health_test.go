package resilience

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHealthMonitorTracksSuccessAndFailure(t *testing.T) {
	m := NewHealthMonitor()
	m.RecordSuccess("get_current_time")
	m.RecordFailure("get_current_time")
	m.RecordFailure("get_current_time")

	snap := m.Snapshot()
	require.Len(t, snap, 1)
	h := snap[0]
	assert.Equal(t, "get_current_time", h.ToolName)
	assert.Equal(t, 3, h.TotalCalls)
	assert.Equal(t, 2, h.TotalFailures)
	assert.Equal(t, 2, h.ConsecutiveFails)
	assert.NotNil(t, h.LastFailure)
}

func TestHealthMonitorSuccessResetsConsecutiveFails(t *testing.T) {
	m := NewHealthMonitor()
	m.RecordFailure("x")
	m.RecordFailure("x")
	m.RecordSuccess("x")

	snap := m.Snapshot()
	require.Len(t, snap, 1)
	assert.Equal(t, 0, snap[0].ConsecutiveFails)
	assert.Equal(t, 2, snap[0].TotalFailures)
}

func TestHealthMonitorTracksMultipleTools(t *testing.T) {
	m := NewHealthMonitor()
	m.RecordSuccess("a")
	m.RecordSuccess("b")
	assert.Len(t, m.Snapshot(), 2)
}
