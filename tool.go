package mask

import (
	"context"
	"encoding/json"
)

// Tool is a capability the model may invoke during a turn. One Tool can
// expose several named functions via Definitions.
type Tool interface {
	Definitions() []ToolDefinition
	Execute(ctx context.Context, name string, args json.RawMessage) (ToolResult, error)
}

// ToolRegistry is a startup-time registration table of tools. There is no
// runtime plugin loading: implementations are compiled in and registered by
// the process entry point.
type ToolRegistry struct {
	tools []Tool
}

// NewToolRegistry creates an empty registry.
func NewToolRegistry(tools ...Tool) *ToolRegistry {
	return &ToolRegistry{tools: tools}
}

// Add registers a tool.
func (r *ToolRegistry) Add(t Tool) {
	r.tools = append(r.tools, t)
}

// List returns the definitions of every registered tool, in registration
// order. Used to build the tool catalogue in the synthesis system prompt.
func (r *ToolRegistry) List() []ToolDefinition {
	var defs []ToolDefinition
	for _, t := range r.tools {
		defs = append(defs, t.Definitions()...)
	}
	return defs
}

// Call dispatches a tool invocation by name. Unknown names return
// *ErrToolNotFound; the caller reports the error back into the conversation
// rather than crashing the turn.
func (r *ToolRegistry) Call(ctx context.Context, name string, args json.RawMessage) (ToolResult, error) {
	for _, t := range r.tools {
		for _, d := range t.Definitions() {
			if d.Name == name {
				return t.Execute(ctx, name, args)
			}
		}
	}
	return ToolResult{}, &ErrToolNotFound{Name: name}
}
