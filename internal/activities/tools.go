package activities

import (
	"context"
	"errors"
	"fmt"

	"go.temporal.io/sdk/activity"

	"steward/internal/models"
	"steward/internal/sandbox"
	"steward/internal/tools"
)

// ToolActivityInput is the input for one tool execution.
type ToolActivityInput struct {
	ToolCall  models.ToolCall `json:"tool_call"`
	SessionID string          `json:"session_id"`
	Cwd       string          `json:"cwd,omitempty"`

	// McpToolRef is set for mcp__* calls so the handler can route the call
	// back to the owning server.
	McpToolRef *tools.McpToolRef `json:"mcp_tool_ref,omitempty"`
}

// ToolActivityOutput is the result delivered back to the model.
type ToolActivityOutput struct {
	CallID string                           `json:"call_id"`
	Output models.FunctionCallOutputPayload `json:"output"`
}

// ToolActivities dispatches tool calls to registered handlers.
type ToolActivities struct {
	router *tools.Router
}

// NewToolActivities creates a ToolActivities instance.
func NewToolActivities(router *tools.Router) *ToolActivities {
	return &ToolActivities{router: router}
}

// ExecuteTool runs a single tool call. Tool failures the model should see
// come back as Success=false outputs; only infrastructure problems are
// raised as errors, classified by type for the workflow.
func (a *ToolActivities) ExecuteTool(ctx context.Context, input ToolActivityInput) (ToolActivityOutput, error) {
	invocation := &tools.ToolInvocation{
		CallID:     input.ToolCall.CallID,
		ToolName:   input.ToolCall.Name,
		Arguments:  input.ToolCall.Arguments,
		Cwd:        input.Cwd,
		SessionID:  input.SessionID,
		McpToolRef: input.McpToolRef,
		Heartbeat: func() {
			activity.RecordHeartbeat(ctx)
		},
	}

	output, err := a.router.Dispatch(ctx, invocation)
	if err != nil {
		return ToolActivityOutput{}, classifyToolError(err)
	}

	return ToolActivityOutput{
		CallID: input.ToolCall.CallID,
		Output: models.FunctionCallOutputPayload{
			Content: output.Content,
			Success: output.Success,
		},
	}, nil
}

// classifyToolError converts handler errors into typed application errors.
func classifyToolError(err error) error {
	if errors.Is(err, sandbox.ErrUnavailable) {
		return models.WrapActivityError(&models.ActivityError{
			Type:      models.SandboxErrTypeUnavailable,
			Retryable: false,
			Message:   err.Error(),
		})
	}
	if tools.IsValidationError(err) {
		return models.WrapActivityError(&models.ActivityError{
			Type:      models.ToolErrTypeValidation,
			Retryable: false,
			Message:   err.Error(),
		})
	}
	if tools.IsTransientError(err) {
		return models.WrapActivityError(&models.ActivityError{
			Type:      models.ToolErrTypeTransient,
			Retryable: true,
			Message:   err.Error(),
		})
	}
	return fmt.Errorf("tool execution: %w", err)
}
