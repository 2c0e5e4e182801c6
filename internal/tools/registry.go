package tools

import (
	"context"
	"fmt"
)

// ToolHandler executes one kind of tool.
type ToolHandler interface {
	Name() string
	Kind() ToolKind

	// Mutating reports whether the invocation may modify the environment.
	Mutating(invocation *ToolInvocation) bool

	Handle(ctx context.Context, invocation *ToolInvocation) (*ToolOutput, error)
}

// Registry stores handlers by name.
type Registry struct {
	handlers map[string]ToolHandler
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{handlers: make(map[string]ToolHandler)}
}

// Register adds a handler, replacing any previous handler with that name.
func (r *Registry) Register(handler ToolHandler) {
	r.handlers[handler.Name()] = handler
}

// Handler looks up a handler by name.
func (r *Registry) Handler(name string) (ToolHandler, error) {
	handler, ok := r.handlers[name]
	if !ok {
		return nil, fmt.Errorf("tool not found: %s", name)
	}
	return handler, nil
}

// Has reports whether a handler is registered.
func (r *Registry) Has(name string) bool {
	_, ok := r.handlers[name]
	return ok
}

// Count returns the number of registered handlers.
func (r *Registry) Count() int {
	return len(r.handlers)
}
