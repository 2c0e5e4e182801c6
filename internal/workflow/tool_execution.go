// tool_execution.go runs approved tool calls as parallel activities and
// converts activity failures into results the model can read.
package workflow

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.temporal.io/sdk/log"
	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"

	"steward/internal/activities"
	"steward/internal/models"
	"steward/internal/tools"
)

// ToolExecutor dispatches tool activities for one session.
type ToolExecutor struct {
	specs     map[string]tools.ToolSpec
	mcpLookup map[string]tools.McpToolRef
	sessionID string
	cwd       string
	taskQueue string
}

// NewToolExecutor builds an executor from the session state.
func NewToolExecutor(state *SessionState) *ToolExecutor {
	specs := make(map[string]tools.ToolSpec, len(state.ToolSpecs))
	for _, spec := range state.ToolSpecs {
		specs[spec.Name] = spec
	}
	return &ToolExecutor{
		specs:     specs,
		mcpLookup: state.McpToolLookup,
		sessionID: state.ConversationID,
		cwd:       state.Config.Cwd,
		taskQueue: state.Config.SessionTaskQueue,
	}
}

// ExecuteParallel starts all tool activities at once and waits for every
// result. Activity errors come back as Success=false results so the model
// sees what went wrong; the turn never fails on a tool error.
func (e *ToolExecutor) ExecuteParallel(ctx workflow.Context, calls []models.ConversationItem) []activities.ToolActivityOutput {
	logger := workflow.GetLogger(ctx)

	futures := make([]workflow.Future, len(calls))
	for i, fc := range calls {
		logger.Info("Starting tool execution", "tool", fc.Name, "call_id", fc.CallID)

		args := parseCallArguments(fc.Arguments)
		input := activities.ToolActivityInput{
			ToolCall: models.ToolCall{
				CallID:    fc.CallID,
				Name:      fc.Name,
				Arguments: args,
			},
			SessionID: e.sessionID,
			Cwd:       e.cwd,
		}
		if ref, ok := e.mcpLookup[fc.Name]; ok {
			refCopy := ref
			input.McpToolRef = &refCopy
		}

		callCtx := workflow.WithActivityOptions(ctx, e.activityOptions(fc.Name, args))
		futures[i] = workflow.ExecuteActivity(callCtx, "ExecuteTool", input)
	}

	results := make([]activities.ToolActivityOutput, len(calls))
	for i, future := range futures {
		var result activities.ToolActivityOutput
		if err := future.Get(ctx, &result); err != nil {
			results[i] = toolActivityErrorToOutput(logger, calls[i].CallID, calls[i].Name, err)
		} else {
			results[i] = result
		}
	}
	return results
}

// activityOptions resolves the per-call timeout: an explicit timeout_ms
// argument wins, then the tool spec's default, then the global fallback.
func (e *ToolExecutor) activityOptions(toolName string, args map[string]interface{}) workflow.ActivityOptions {
	timeoutMs := int64(tools.DefaultToolTimeoutMs)
	if spec, ok := e.specs[toolName]; ok && spec.DefaultTimeoutMs > 0 {
		timeoutMs = spec.DefaultTimeoutMs
	}
	if raw, ok := args["timeout_ms"].(float64); ok && raw > 0 {
		timeoutMs = int64(raw)
	}

	opts := workflow.ActivityOptions{
		// Headroom past the tool's own timeout so the handler reports the
		// timeout itself instead of Temporal killing the activity.
		StartToCloseTimeout: time.Duration(timeoutMs)*time.Millisecond + 30*time.Second,
		HeartbeatTimeout:    time.Minute,
		RetryPolicy: &temporal.RetryPolicy{
			InitialInterval:    time.Second,
			BackoffCoefficient: 2.0,
			MaximumInterval:    30 * time.Second,
			MaximumAttempts:    3,
			NonRetryableErrorTypes: []string{
				models.ToolErrTypeValidation,
				models.SandboxErrTypeUnavailable,
			},
		},
	}
	if e.taskQueue != "" {
		opts.TaskQueue = e.taskQueue
	}
	return opts
}

func parseCallArguments(raw string) map[string]interface{} {
	if raw == "" {
		return map[string]interface{}{}
	}
	var args map[string]interface{}
	if err := json.Unmarshal([]byte(raw), &args); err != nil {
		return map[string]interface{}{"_raw": raw}
	}
	return args
}

// toolActivityErrorToOutput converts a failed tool activity into a failed
// result. Classification uses ApplicationError.Type(); messages are never
// parsed.
func toolActivityErrorToOutput(logger log.Logger, callID, toolName string, err error) activities.ToolActivityOutput {
	content := "tool execution failed"

	var appErr *temporal.ApplicationError
	var timeoutErr *temporal.TimeoutError
	var canceledErr *temporal.CanceledError
	switch {
	case errors.As(err, &appErr):
		logger.Warn("Tool activity failed",
			"tool", toolName,
			"error_type", appErr.Type(),
			"non_retryable", appErr.NonRetryable())
		switch appErr.Type() {
		case models.SandboxErrTypeUnavailable:
			content = "Command execution is unavailable: the host cannot establish an isolated " +
				"environment and the user has not consented to unsandboxed execution. Tell the " +
				"user they can grant one-time consent, or continue without running commands."
		case models.ToolErrTypeValidation:
			content = fmt.Sprintf("Invalid tool call: %s. Fix the arguments and try again.", appErr.Message())
		case models.ToolErrTypeTransient:
			content = fmt.Sprintf("Transient tool failure: %s. You may retry.", appErr.Message())
		default:
			content = appErr.Message()
		}
	case errors.As(err, &timeoutErr):
		logger.Warn("Tool activity timed out", "tool", toolName)
		content = "Tool execution timed out. Consider a longer timeout_ms or a smaller step."
	case errors.As(err, &canceledErr):
		logger.Info("Tool activity canceled", "tool", toolName)
		content = "Tool execution was canceled."
	default:
		logger.Error("Tool activity failed", "tool", toolName, "error", err)
	}

	success := false
	return activities.ToolActivityOutput{
		CallID: callID,
		Output: models.FunctionCallOutputPayload{Content: content, Success: &success},
	}
}
