package planner

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func registeredOnly(names ...string) ToolLookup {
	set := make(map[string]bool, len(names))
	for _, n := range names {
		set[n] = true
	}
	return func(name string) bool { return set[name] }
}

func TestParseAndValidateRejectsMalformedJSON(t *testing.T) {
	g := NewGate(registeredOnly(), nil)
	plan := g.ParseAndValidate([]byte("{not json"))
	assert.Equal(t, StatusInvalidJSON, plan.Status)
	assert.False(t, plan.IsValid())
}

func TestValidateRejectsEmptyPlan(t *testing.T) {
	g := NewGate(registeredOnly(), nil)
	plan := g.Validate(&PlannerOutput{})
	assert.Equal(t, StatusValidationError, plan.Status)
}

func TestValidateAcceptsDirectResponseWithNoToolCalls(t *testing.T) {
	g := NewGate(registeredOnly(), nil)
	plan := g.Validate(&PlannerOutput{ResponseText: "it's 3:04 PM"})
	assert.True(t, plan.IsValid())
	assert.Equal(t, "it's 3:04 PM", plan.ResponseText)
}

func TestValidateRejectsUnknownTool(t *testing.T) {
	g := NewGate(registeredOnly("get_current_time"), nil)
	plan := g.Validate(&PlannerOutput{
		ToolCalls: []ToolCallRequest{{Tool: "delete_everything"}},
	})
	assert.Equal(t, StatusUnknownTool, plan.Status)
	assert.Equal(t, "delete_everything", plan.UnknownTool)
	assert.False(t, plan.IsValid())
}

func TestValidateAcceptsKnownToolCalls(t *testing.T) {
	g := NewGate(registeredOnly("get_current_time"), nil)
	plan := g.Validate(&PlannerOutput{
		ToolCalls: []ToolCallRequest{{Tool: "get_current_time", Arguments: map[string]interface{}{}}},
	})
	assert.True(t, plan.IsValid())
	assert.Equal(t, StatusValid, plan.Status)
}

func TestParseAndValidateRoundTrip(t *testing.T) {
	g := NewGate(registeredOnly("get_current_time"), nil)
	raw := []byte(`{"thinking":"...","tool_calls":[{"tool":"get_current_time","arguments":{}}],"response":""}`)
	plan := g.ParseAndValidate(raw)
	assert.True(t, plan.IsValid())
	assert.Len(t, plan.ToolCalls, 1)
}
