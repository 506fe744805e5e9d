// Package planner implements the Planner Gate (spec.md §4.3): it consumes
// raw external-planner output and produces a typed, validated Plan. The
// planner itself (the LLM call) is an external collaborator; this package
// only guards the boundary between its output and the rest of the core.
package planner

// Status is the closed set of plan outcomes (spec.md §3 Plan).
type Status string

const (
	StatusValid           Status = "VALID"
	StatusInvalidJSON     Status = "INVALID_JSON"
	StatusUnknownTool     Status = "UNKNOWN_TOOL"
	StatusValidationError Status = "VALIDATION_ERROR"
)

// ToolCallRequest is one entry of a PlannerOutput's tool_calls list.
type ToolCallRequest struct {
	Tool      string                 `json:"tool"`
	Arguments map[string]interface{} `json:"arguments"`
	Reasoning string                 `json:"reasoning,omitempty"`
}

// PlannerOutput is the structured document produced by the external
// planner collaborator (spec.md §6 "Planner interface (consumed)").
type PlannerOutput struct {
	Thinking     string            `json:"thinking,omitempty"`
	ToolCalls    []ToolCallRequest `json:"tool_calls"`
	ResponseText string            `json:"response,omitempty"`
}

// Plan is the gate's validated output (spec.md §3 Plan).
type Plan struct {
	Status       Status
	ToolCalls    []ToolCallRequest
	ResponseText string
	Error        string
	// UnknownTool names the first unregistered tool encountered, when
	// Status == StatusUnknownTool — surfaced so the caller can log which
	// name the planner hallucinated.
	UnknownTool string
}

// IsValid reports whether the plan may proceed to execution, matching
// spec.md §3's Plan invariant: VALID iff response_text is non-empty OR
// tool_calls is non-empty and every tool name is registered.
func (p *Plan) IsValid() bool {
	return p.Status == StatusValid
}
