// Package tool implements the Tool Registry (spec.md §3 Tool / Parameter
// Schema, §4.4): a read-mostly catalog mapping name to Tool, the boundary
// between planner output and system effects.
package tool

// PermissionLevel is the closed set of privilege tiers a Tool requires.
type PermissionLevel string

const (
	PermissionRead    PermissionLevel = "READ"
	PermissionWrite   PermissionLevel = "WRITE"
	PermissionExecute PermissionLevel = "EXECUTE"
	PermissionNetwork PermissionLevel = "NETWORK"
	PermissionAdmin   PermissionLevel = "ADMIN"
)

// ParamType is the closed set of parameter value types.
type ParamType string

const (
	TypeString  ParamType = "string"
	TypeInteger ParamType = "integer"
	TypeNumber  ParamType = "number"
	TypeBoolean ParamType = "boolean"
	TypeArray   ParamType = "array"
	TypeObject  ParamType = "object"
)

// ParameterSpec describes one entry of a Tool's ordered parameter schema
// (spec.md §3 Parameter Schema).
type ParameterSpec struct {
	Name     string      `json:"name"`
	Type     ParamType   `json:"type"`
	Required bool        `json:"required"`
	Default  interface{} `json:"default,omitempty"`
	Enum     []string    `json:"enum,omitempty"`
	Min      *float64    `json:"min,omitempty"`
	Max      *float64    `json:"max,omitempty"`
	Pattern  string      `json:"pattern,omitempty"`
}

// Executor is the single-signature execution function every tool
// implements, per spec.md §9: "Each entry pairs a schema descriptor (data)
// with an execution function conforming to a single signature".
type Executor func(args map[string]interface{}) (interface{}, error)

// Tool is the closed, name-indexed catalog entry (spec.md §3 Tool).
type Tool struct {
	Name                 string
	Description          string
	ParameterSchema      []ParameterSpec
	PermissionLevel      PermissionLevel
	Exec                 Executor
	TimeoutSeconds       int
	RequiresConfirmation bool
	Category             string
}

// schemaDoc builds the JSON-Schema document santhosh-tekuri/jsonschema
// compiles for ValidateCall: additionalProperties:false enforces the
// closed-world parameter-name rule, per-field enum/min/max/pattern map
// straight across from ParameterSpec.
func (t *Tool) schemaDoc() map[string]interface{} {
	properties := make(map[string]interface{}, len(t.ParameterSchema))
	required := make([]string, 0, len(t.ParameterSchema))

	for _, p := range t.ParameterSchema {
		prop := map[string]interface{}{"type": jsonSchemaType(p.Type)}
		if len(p.Enum) > 0 {
			enum := make([]interface{}, len(p.Enum))
			for i, e := range p.Enum {
				enum[i] = e
			}
			prop["enum"] = enum
		}
		if p.Min != nil {
			prop["minimum"] = *p.Min
		}
		if p.Max != nil {
			prop["maximum"] = *p.Max
		}
		if p.Pattern != "" {
			prop["pattern"] = p.Pattern
		}
		properties[p.Name] = prop
		if p.Required {
			required = append(required, p.Name)
		}
	}

	doc := map[string]interface{}{
		"type":                 "object",
		"properties":           properties,
		"additionalProperties": false,
	}
	if len(required) > 0 {
		doc["required"] = required
	}
	return doc
}

// jsonSchemaType maps the domain ParamType to a raw JSON Schema type; array
// and object carry no nested item/property constraints in this spec, so
// they validate structurally only.
func jsonSchemaType(t ParamType) string {
	switch t {
	case TypeString, TypeInteger, TypeNumber, TypeBoolean, TypeArray, TypeObject:
		return string(t)
	default:
		return "string"
	}
}

// ExportSchema renders the function-description object shared with the
// external planner (spec.md §6 "Tool schemas exported").
func (t *Tool) ExportSchema() map[string]interface{} {
	properties := make(map[string]interface{}, len(t.ParameterSchema))
	required := make([]string, 0, len(t.ParameterSchema))
	for _, p := range t.ParameterSchema {
		prop := map[string]interface{}{
			"type":        jsonSchemaType(p.Type),
			"description": "",
		}
		if len(p.Enum) > 0 {
			enum := make([]interface{}, len(p.Enum))
			for i, e := range p.Enum {
				enum[i] = e
			}
			prop["enum"] = enum
		}
		properties[p.Name] = prop
		if p.Required {
			required = append(required, p.Name)
		}
	}
	return map[string]interface{}{
		"name":        t.Name,
		"description": t.Description,
		"parameters": map[string]interface{}{
			"type":                 "object",
			"properties":           properties,
			"required":             required,
			"additionalProperties": false,
		},
	}
}
