// Package tools is the capability surface the assistant can call during an
// investigation: timeline reconstruction, incident bookkeeping, knowledge
// pack generation, and the infra-agent portal operations.
package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
)

// Tool is one callable capability. Execute receives the model's raw JSON
// arguments and returns a JSON result. Input problems and domain refusals
// are reported inside the result as an "Error: ..." report; a non-nil error
// means the tool itself failed.
type Tool interface {
	Name() string
	Description() string
	Parameters() json.RawMessage // JSON Schema
	Execute(ctx context.Context, params json.RawMessage) (json.RawMessage, error)
}

// ToolDef is the tool definition format the model API expects.
type ToolDef struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	InputSchema json.RawMessage `json:"input_schema"`
}

// Registry holds available tools and converts them to the model API format.
type Registry struct {
	tools map[string]Tool
}

// NewRegistry creates an empty tool registry.
func NewRegistry() *Registry {
	return &Registry{tools: make(map[string]Tool)}
}

// Register adds a tool to the registry, keyed by its Name.
func (r *Registry) Register(t Tool) {
	r.tools[t.Name()] = t
}

// Get retrieves a tool by name, returns the tool and a boolean indicating if it was found.
func (r *Registry) Get(name string) (Tool, bool) {
	t, ok := r.tools[name]
	return t, ok
}

// Names returns the registered tool names sorted alphabetically.
func (r *Registry) Names() []string {
	out := make([]string, 0, len(r.tools))
	for name := range r.tools {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// ToToolDefs returns the tool definitions sorted by name so the prompt is
// stable across runs.
func (r *Registry) ToToolDefs() []ToolDef {
	out := make([]ToolDef, 0, len(r.tools))
	for _, t := range r.tools {
		out = append(out, ToolDef{
			Name:        t.Name(),
			Description: t.Description(),
			InputSchema: t.Parameters(),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// report wraps a rendered markdown report as a tool result.
type report struct {
	Report string `json:"report"`
}

func reportResult(text string) (json.RawMessage, error) {
	raw, err := json.Marshal(report{Report: text})
	if err != nil {
		return nil, fmt.Errorf("marshal report: %w", err)
	}
	return raw, nil
}

func errorReport(format string, args ...any) (json.RawMessage, error) {
	return reportResult("Error: " + fmt.Sprintf(format, args...))
}
