package activities

import (
	"context"
	"fmt"

	"steward/internal/mcp"
	"steward/internal/models"
	"steward/internal/tools"
)

// McpActivities manages MCP server connections on the worker.
type McpActivities struct {
	store *mcp.Store
}

// NewMcpActivities creates a McpActivities instance.
func NewMcpActivities(store *mcp.Store) *McpActivities {
	return &McpActivities{store: store}
}

// InitializeMcpServersInput is the input for InitializeMcpServers.
type InitializeMcpServersInput struct {
	SessionID  string                            `json:"session_id"`
	McpServers map[string]models.McpServerConfig `json:"mcp_servers"`
}

// InitializeMcpServersOutput carries the discovered tools.
type InitializeMcpServersOutput struct {
	ToolSpecs []tools.ToolSpec `json:"tool_specs"`
	// McpToolLookup maps qualified tool names to server routing info.
	McpToolLookup map[string]tools.McpToolRef `json:"mcp_tool_lookup"`
	// Failures records optional servers that failed to connect.
	Failures map[string]string `json:"failures,omitempty"`
	// ReadOnlyTools lists qualified names the servers annotate as
	// read-only; their calls skip the approval gate.
	ReadOnlyTools []string `json:"read_only_tools,omitempty"`
}

// InitializeMcpServers connects the configured servers, discovers their
// tools, and returns specs plus routing info. Called once before the
// first turn.
func (a *McpActivities) InitializeMcpServers(ctx context.Context, input InitializeMcpServersInput) (InitializeMcpServersOutput, error) {
	mgr := a.store.GetOrCreate(input.SessionID)

	result, err := mgr.Initialize(ctx, input.McpServers)
	if err != nil {
		return InitializeMcpServersOutput{}, fmt.Errorf("mcp initialization: %w", err)
	}

	output := InitializeMcpServersOutput{
		McpToolLookup: make(map[string]tools.McpToolRef),
		Failures:      result.Failures,
	}
	for _, spec := range result.Specs {
		output.ToolSpecs = append(output.ToolSpecs, tools.ToolSpec{
			Name:             spec.QualifiedName,
			Description:      spec.Description,
			RawJSONSchema:    spec.InputSchema,
			RequiresApproval: !spec.ReadOnly,
			DefaultTimeoutMs: tools.DefaultToolTimeoutMs,
		})
		output.McpToolLookup[spec.QualifiedName] = tools.McpToolRef{
			ServerName: spec.ServerName,
			ToolName:   spec.ToolName,
		}
		if spec.ReadOnly {
			output.ReadOnlyTools = append(output.ReadOnlyTools, spec.QualifiedName)
		}
	}
	return output, nil
}

// CleanupMcpServersInput is the input for CleanupMcpServers.
type CleanupMcpServersInput struct {
	SessionID string `json:"session_id"`
}

// CleanupMcpServers closes all MCP connections for a session.
func (a *McpActivities) CleanupMcpServers(_ context.Context, input CleanupMcpServersInput) error {
	a.store.Remove(input.SessionID)
	return nil
}
