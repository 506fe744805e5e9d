package planner

import (
	"encoding/json"
	"fmt"

	"github.com/nova-labs/jarviscore/logging"
)

// ToolLookup reports whether a tool name is registered. The gate depends
// only on this narrow lookup, not the full tool.Registry, so it can be
// tested without constructing a registry.
type ToolLookup func(name string) bool

// Gate validates raw planner output into a typed Plan. It never retries a
// hallucinated tool name itself (spec.md §4.3: "UNKNOWN_TOOL is never
// retried — it signals a planner hallucination").
type Gate struct {
	lookup ToolLookup
	logger logging.Logger
}

// NewGate builds a Gate backed by lookup to check tool names against the
// registry.
func NewGate(lookup ToolLookup, logger logging.Logger) *Gate {
	if logger == nil {
		logger = logging.NoOpLogger{}
	}
	return &Gate{lookup: lookup, logger: logger}
}

// ParseAndValidate decodes raw planner output (typically the raw JSON
// payload returned by the external LLM client) and validates it into a
// Plan. Malformed JSON never panics; it yields StatusInvalidJSON.
func (g *Gate) ParseAndValidate(raw []byte) *Plan {
	var out PlannerOutput
	if err := json.Unmarshal(raw, &out); err != nil {
		g.logger.Warn("planner gate: invalid JSON from planner", map[string]interface{}{
			"error": err.Error(),
		})
		return &Plan{Status: StatusInvalidJSON, Error: err.Error()}
	}
	return g.Validate(&out)
}

// Validate type-checks an already-decoded PlannerOutput into a Plan.
func (g *Gate) Validate(out *PlannerOutput) *Plan {
	if len(out.ToolCalls) == 0 && out.ResponseText == "" {
		return &Plan{
			Status: StatusValidationError,
			Error:  "plan has neither tool_calls nor a direct response",
		}
	}

	for _, tc := range out.ToolCalls {
		if tc.Tool == "" || !g.lookup(tc.Tool) {
			g.logger.Warn("planner gate: unknown tool in plan", map[string]interface{}{
				"tool": tc.Tool,
			})
			return &Plan{
				Status:      StatusUnknownTool,
				UnknownTool: tc.Tool,
				Error:       fmt.Sprintf("tool %q is not registered", tc.Tool),
			}
		}
	}

	return &Plan{
		Status:       StatusValid,
		ToolCalls:    out.ToolCalls,
		ResponseText: out.ResponseText,
	}
}
