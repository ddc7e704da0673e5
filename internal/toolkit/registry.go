// Package toolkit is the tool registry the scaffolding controller's tool
// loop dispatches against: each Tool advertises a JSON schema and executes
// against a raw JSON argument payload, returning a plain-text result. The
// Registry never lets a lookup miss or an executor error escape as a Go
// error — both become an "Error: "-prefixed string the model can read as
// a tool result.
package toolkit

import (
	"context"
	"encoding/json"

	"hyperthink/internal/llmprovider"
)

// Tool is an executable capability the tool loop can call by name. Call
// takes the raw JSON arguments object the model produced and returns a
// plain-text result; it never encodes its own success/failure envelope.
type Tool interface {
	Name() string
	JSONSchema() map[string]any
	Call(ctx context.Context, raw json.RawMessage) (string, error)
}

// Registry keeps track of tools and dispatches calls by name.
type Registry interface {
	Schemas() []llmprovider.ToolSchema
	Dispatch(ctx context.Context, name string, raw json.RawMessage) string
	Register(t Tool)
}

type defaultRegistry struct {
	byName map[string]Tool
}

// NewRegistry returns a basic in-memory registry.
func NewRegistry() Registry {
	return &defaultRegistry{byName: make(map[string]Tool)}
}

func (r *defaultRegistry) Register(t Tool) { r.byName[t.Name()] = t }

func (r *defaultRegistry) Schemas() []llmprovider.ToolSchema {
	out := make([]llmprovider.ToolSchema, 0, len(r.byName))
	for name, t := range r.byName {
		schema := t.JSONSchema()
		out = append(out, llmprovider.ToolSchema{
			Name:        name,
			Description: strFrom(schema["description"]),
			Parameters:  mapFrom(schema["parameters"]),
		})
	}
	return out
}

// Dispatch never returns a Go error: an unknown tool name or a Call failure
// both become a string starting with "Error: ", since the result is fed
// straight back to the model as a tool-role message.
func (r *defaultRegistry) Dispatch(ctx context.Context, name string, raw json.RawMessage) string {
	t := r.byName[name]
	if t == nil {
		return "Error: tool not found"
	}
	result, err := t.Call(ctx, raw)
	if err != nil {
		return "Error: " + err.Error()
	}
	return result
}

func strFrom(v any) string         { s, _ := v.(string); return s }
func mapFrom(v any) map[string]any { m, _ := v.(map[string]any); return m }
