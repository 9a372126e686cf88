// Package tools defines the tools available to the agent.
package tools

import (
	"context"
	"sort"

	"github.com/google/jsonschema-go/jsonschema"

	"github.com/agentwerkstatt/werkstatt/internal/llm"
)

// Tool is a callable capability exposed to the model. Implementations
// are stateless per call; Execute returns a success payload (any
// serializable value) or an error. The invocation layer converts both
// paths into a tagged result, so tools are free to fail loudly.
type Tool interface {
	Name() string
	Description() string
	Schema() *jsonschema.Schema
	Execute(ctx context.Context, input map[string]any) (any, error)
}

// Registry holds available tools. Read-only after startup registration.
type Registry struct {
	tools map[string]Tool
}

// NewRegistry creates an empty tool registry.
func NewRegistry() *Registry {
	return &Registry{tools: make(map[string]Tool)}
}

// Register adds a tool to the registry.
func (r *Registry) Register(t Tool) {
	r.tools[t.Name()] = t
}

// Resolve retrieves a tool by name. Returns nil if not registered.
func (r *Registry) Resolve(name string) Tool {
	return r.tools[name]
}

// All returns every registered tool, sorted by name for stable output.
func (r *Registry) All() []Tool {
	out := make([]Tool, 0, len(r.tools))
	for _, t := range r.tools {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name() < out[j].Name() })
	return out
}

// Definitions returns the wire-format tool definitions for the LLM.
func (r *Registry) Definitions() []llm.Tool {
	all := r.All()
	if len(all) == 0 {
		return nil
	}
	defs := make([]llm.Tool, 0, len(all))
	for _, t := range all {
		defs = append(defs, llm.Tool{
			Name:        t.Name(),
			Description: t.Description(),
			InputSchema: t.Schema(),
		})
	}
	return defs
}

// FilteredCopy returns a new registry containing only the named tools.
func (r *Registry) FilteredCopy(names []string) *Registry {
	out := NewRegistry()
	for _, name := range names {
		if t := r.tools[name]; t != nil {
			out.Register(t)
		}
	}
	return out
}

// FilteredCopyExcluding returns a new registry without the named tools.
func (r *Registry) FilteredCopyExcluding(names []string) *Registry {
	excluded := make(map[string]bool, len(names))
	for _, name := range names {
		excluded[name] = true
	}
	out := NewRegistry()
	for name, t := range r.tools {
		if !excluded[name] {
			out.Register(t)
		}
	}
	return out
}
