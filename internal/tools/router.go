package tools

import (
	"context"

	"steward/internal/mcp"
)

// Router pairs a registry with the tool specifications offered to the
// model for the current session.
type Router struct {
	registry *Registry
	specs    []ToolSpec
}

// NewRouter creates a router over the given registry and specs.
func NewRouter(registry *Registry, specs []ToolSpec) *Router {
	return &Router{registry: registry, specs: specs}
}

// Specs returns the tool specifications for prompt construction.
func (r *Router) Specs() []ToolSpec {
	return r.specs
}

// Spec returns the specification for a named tool.
func (r *Router) Spec(name string) (ToolSpec, bool) {
	for _, spec := range r.specs {
		if spec.Name == name {
			return spec, true
		}
	}
	return ToolSpec{}, false
}

// Dispatch routes an invocation to its handler. Namespaced mcp__* calls
// share one handler registered under the MCP prefix; builtins resolve by
// tool name.
func (r *Router) Dispatch(ctx context.Context, invocation *ToolInvocation) (*ToolOutput, error) {
	name := invocation.ToolName
	if invocation.McpToolRef != nil || mcp.IsQualifiedName(name) {
		name = mcp.NamePrefix
	}
	handler, err := r.registry.Handler(name)
	if err != nil {
		return nil, err
	}
	return handler.Handle(ctx, invocation)
}

// Registry returns the underlying registry.
func (r *Router) Registry() *Registry {
	return r.registry
}
