// Package tools provides the tool registry, specifications, and dispatch
// for everything the model can invoke.
package tools

// ToolKind classifies a handler.
type ToolKind int

const (
	ToolKindFunction ToolKind = iota
	ToolKindMcp
)

// ToolOutput is the result of one tool execution. Success=false outputs
// are delivered to the model as failed tool results, not raised as errors.
type ToolOutput struct {
	Content string `json:"content"`
	Success *bool  `json:"success,omitempty"`
}

// McpToolRef routes a namespaced tool call back to its MCP server.
type McpToolRef struct {
	ServerName string `json:"server_name"`
	ToolName   string `json:"tool_name"`
}

// ToolInvocation carries everything a handler needs for one call.
type ToolInvocation struct {
	CallID    string                 `json:"call_id"`
	ToolName  string                 `json:"tool_name"`
	Arguments map[string]interface{} `json:"arguments"`
	Cwd       string                 `json:"cwd,omitempty"`

	// SessionID identifies the workflow session, used for persistent shell
	// sessions and MCP connection lookup.
	SessionID string `json:"session_id,omitempty"`

	// McpToolRef is set for mcp__* calls.
	McpToolRef *McpToolRef `json:"mcp_tool_ref,omitempty"`

	// Heartbeat keeps the surrounding activity alive during long
	// executions. Nil in unit tests.
	Heartbeat func() `json:"-"`
}

// StringArg extracts a required string argument.
func (inv *ToolInvocation) StringArg(name string) (string, error) {
	raw, ok := inv.Arguments[name]
	if !ok {
		return "", NewValidationErrorf("missing required argument: %s", name)
	}
	s, ok := raw.(string)
	if !ok {
		return "", NewValidationErrorf("%s must be a string", name)
	}
	if s == "" {
		return "", NewValidationErrorf("%s cannot be empty", name)
	}
	return s, nil
}

// OptionalStringArg extracts an optional string argument.
func (inv *ToolInvocation) OptionalStringArg(name string) (string, error) {
	raw, ok := inv.Arguments[name]
	if !ok {
		return "", nil
	}
	s, ok := raw.(string)
	if !ok {
		return "", NewValidationErrorf("%s must be a string", name)
	}
	return s, nil
}

// IntArg extracts an optional integer argument, defaulting when absent.
// JSON numbers arrive as float64.
func (inv *ToolInvocation) IntArg(name string, def int) (int, error) {
	raw, ok := inv.Arguments[name]
	if !ok {
		return def, nil
	}
	switch v := raw.(type) {
	case int:
		return v, nil
	case int64:
		return int(v), nil
	case float64:
		return int(v), nil
	default:
		return 0, NewValidationErrorf("%s must be an integer", name)
	}
}
