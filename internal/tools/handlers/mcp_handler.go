package handlers

import (
	"context"
	"fmt"
	"strings"

	gomcp "github.com/modelcontextprotocol/go-sdk/mcp"

	"steward/internal/mcp"
	"steward/internal/tools"
)

// MCPHandler routes namespaced mcp__* calls to the session's MCP servers.
// One handler is registered under the name "mcp"; the tool activity
// resolves the qualified name to a McpToolRef before dispatch.
type MCPHandler struct {
	store *mcp.Store
}

// NewMCPHandler creates the MCP routing handler.
func NewMCPHandler(store *mcp.Store) *MCPHandler {
	return &MCPHandler{store: store}
}

func (h *MCPHandler) Name() string {
	return "mcp"
}

func (h *MCPHandler) Kind() tools.ToolKind {
	return tools.ToolKindMcp
}

// Mutating trusts the server's read-only annotation and otherwise assumes
// the worst.
func (h *MCPHandler) Mutating(invocation *tools.ToolInvocation) bool {
	if invocation.McpToolRef == nil {
		return true
	}
	mgr := h.store.Get(invocation.SessionID)
	if mgr == nil {
		return true
	}
	spec, ok := mgr.Spec(mcp.QualifiedName(invocation.McpToolRef.ServerName, invocation.McpToolRef.ToolName))
	if !ok {
		return true
	}
	return !spec.ReadOnly
}

func (h *MCPHandler) Handle(ctx context.Context, invocation *tools.ToolInvocation) (*tools.ToolOutput, error) {
	if invocation.McpToolRef == nil {
		return nil, tools.NewValidationError("mcp dispatch requires a tool reference")
	}

	mgr := h.store.Get(invocation.SessionID)
	if mgr == nil {
		failed := false
		return &tools.ToolOutput{
			Content: "MCP servers are not connected for this session",
			Success: &failed,
		}, nil
	}

	result, err := mgr.CallTool(ctx, invocation.McpToolRef.ServerName, invocation.McpToolRef.ToolName, invocation.Arguments)
	if err != nil {
		failed := false
		return &tools.ToolOutput{
			Content: fmt.Sprintf("MCP tool call failed: %v", err),
			Success: &failed,
		}, nil
	}
	return fromCallToolResult(result), nil
}

func fromCallToolResult(result *gomcp.CallToolResult) *tools.ToolOutput {
	var sb strings.Builder
	for i, content := range result.Content {
		if i > 0 {
			sb.WriteString("\n")
		}
		switch c := content.(type) {
		case *gomcp.TextContent:
			sb.WriteString(c.Text)
		case *gomcp.ImageContent:
			sb.WriteString("[image: " + c.MIMEType + "]")
		default:
			sb.WriteString("[unsupported content type]")
		}
	}

	success := !result.IsError
	return &tools.ToolOutput{Content: sb.String(), Success: &success}
}
