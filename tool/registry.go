package tool

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v6"
)

// Registry is the read-mostly name->Tool catalog (spec.md §4.4). It is
// registered at startup and read far more often than written, so it is
// guarded with an RWMutex — the same shape as the teacher's
// RWMutex-guarded catalogs in core/schema_cache.go and core/redis_registry.go.
type Registry struct {
	mu      sync.RWMutex
	tools   map[string]*Tool
	schemas map[string]*jsonschema.Schema // compiled-schema cache, keyed by tool name
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		tools:   make(map[string]*Tool),
		schemas: make(map[string]*jsonschema.Schema),
	}
}

// Register adds a tool to the catalog. Returns an error if the name is
// already registered — tools are identified by unique name (spec.md §3).
func (r *Registry) Register(t *Tool) error {
	if t == nil || t.Name == "" {
		return fmt.Errorf("tool: register: tool must have a non-empty name")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.tools[t.Name]; exists {
		return fmt.Errorf("tool: register: %q already registered", t.Name)
	}
	schema, err := compileSchema(t)
	if err != nil {
		return fmt.Errorf("tool: register %q: %w", t.Name, err)
	}
	r.tools[t.Name] = t
	r.schemas[t.Name] = schema
	return nil
}

// Unregister removes a tool from the catalog.
func (r *Registry) Unregister(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.tools, name)
	delete(r.schemas, name)
}

// Get returns the tool registered under name, or false if none is.
func (r *Registry) Get(name string) (*Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tools[name]
	return t, ok
}

// List returns every registered tool, in no particular order.
func (r *Registry) List() []*Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Tool, 0, len(r.tools))
	for _, t := range r.tools {
		out = append(out, t)
	}
	return out
}

// ListByPermission returns tools at exactly the given permission level.
func (r *Registry) ListByPermission(level PermissionLevel) []*Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*Tool
	for _, t := range r.tools {
		if t.PermissionLevel == level {
			out = append(out, t)
		}
	}
	return out
}

// ListByCategory returns tools in the given category.
func (r *Registry) ListByCategory(category string) []*Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*Tool
	for _, t := range r.tools {
		if t.Category == category {
			out = append(out, t)
		}
	}
	return out
}

// ValidateCall enforces spec.md §4.4's closed-world contract: required
// parameters present, unknown names rejected, each value matching its
// declared type/enum/range/pattern. Validation runs against the tool's
// compiled JSON Schema, so the closed-world and constraint checks are a
// single pass rather than hand-rolled per-field loops.
func (r *Registry) ValidateCall(name string, args map[string]interface{}) (bool, error) {
	r.mu.RLock()
	schema, ok := r.schemas[name]
	r.mu.RUnlock()
	if !ok {
		return false, fmt.Errorf("tool: validate_call: unknown tool %q", name)
	}

	// jsonschema.Validate expects the argument document decoded the way
	// encoding/json would decode arbitrary JSON (map[string]interface{} with
	// float64 numbers), so round-trip through JSON to normalize types such
	// as int vs float64 the same way a planner's JSON payload would arrive.
	raw, err := json.Marshal(args)
	if err != nil {
		return false, fmt.Errorf("tool: validate_call: marshal args: %w", err)
	}
	var doc interface{}
	if err := json.Unmarshal(raw, &doc); err != nil {
		return false, fmt.Errorf("tool: validate_call: unmarshal args: %w", err)
	}

	if err := schema.Validate(doc); err != nil {
		return false, err
	}
	return true, nil
}

// ExportSchemasForPlanner renders the function-description list shared with
// the external planner (spec.md §6).
func (r *Registry) ExportSchemasForPlanner() []map[string]interface{} {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]map[string]interface{}, 0, len(r.tools))
	for _, t := range r.tools {
		out = append(out, t.ExportSchema())
	}
	return out
}

// ApplyDefaults returns a copy of args with each parameter's declared
// default filled in where the caller omitted it. Executed before
// ValidateCall so a tool that declares `required: false, default: ...`
// still sees a concrete value.
func (t *Tool) ApplyDefaults(args map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(args))
	for k, v := range args {
		out[k] = v
	}
	for _, p := range t.ParameterSchema {
		if p.Default == nil {
			continue
		}
		if _, present := out[p.Name]; !present {
			out[p.Name] = p.Default
		}
	}
	return out
}

// compileSchema builds and compiles the JSON Schema document for t.
func compileSchema(t *Tool) (*jsonschema.Schema, error) {
	doc := t.schemaDoc()
	c := jsonschema.NewCompiler()
	resource := "tool://" + t.Name
	if err := c.AddResource(resource, doc); err != nil {
		return nil, fmt.Errorf("add schema resource: %w", err)
	}
	schema, err := c.Compile(resource)
	if err != nil {
		return nil, fmt.Errorf("compile schema: %w", err)
	}
	return schema, nil
}
