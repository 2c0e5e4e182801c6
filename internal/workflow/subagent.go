// subagent.go implements delegated sub-tasks: run_focused_task calls are
// intercepted by the orchestrator and executed as a child workflow with a
// narrowed tool set and a required structured output. The child's model
// requests are charged against the parent turn's budget.
package workflow

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"

	"steward/internal/history"
	"steward/internal/models"
	"steward/internal/tools"
)

// maxDelegationDepth caps delegation nesting: a sub-task may not delegate
// further.
const maxDelegationDepth = 1

// focusedTaskInstructions narrows the sub-task agent's behavior and pins
// the structured output contract.
const focusedTaskInstructions = `You are completing one focused sub-task on behalf of a parent agent.
Work only on the task given. Do not ask the user anything; no user is attached.
Side-effecting commands cannot be approved in a sub-task, so prefer read-only investigation.

When you are done, reply with exactly one JSON object and nothing else:
{"summary": "<one-paragraph summary of what you found or did>", "outcome": "<completed|incomplete|failed>", "details": "<supporting detail, file paths, command output excerpts>"}`

// FocusedTaskInput starts a FocusedTaskWorkflow child.
type FocusedTaskInput struct {
	ConversationID string                      `json:"conversation_id"`
	Task           string                      `json:"task"`
	Config         models.SessionConfiguration `json:"config"`

	// BudgetRemaining is the parent turn's remaining model requests; the
	// child never issues more than this.
	BudgetRemaining int `json:"budget_remaining"`
}

// FocusedTaskResult is the sub-task's structured output plus accounting.
type FocusedTaskResult struct {
	Summary string `json:"summary"`
	Outcome string `json:"outcome"`
	Details string `json:"details,omitempty"`

	// RequestsUsed is charged against the parent turn's budget.
	RequestsUsed int               `json:"requests_used"`
	TokenUsage   models.TokenUsage `json:"token_usage"`
}

// FocusedTaskWorkflow runs one delegated sub-task to completion. It is a
// bounded model/tool loop without approval prompting: calls the policy
// would prompt for are synthetically denied.
func FocusedTaskWorkflow(ctx workflow.Context, input FocusedTaskInput) (FocusedTaskResult, error) {
	logger := workflow.GetLogger(ctx)

	input.Config.Normalize()
	state := &SessionState{
		ConversationID: input.ConversationID,
		History:        history.NewInMemoryHistory(),
		ToolSpecs:      subTaskToolSpecs(),
		Config:         input.Config,
		Depth:          maxDelegationDepth,
	}
	ctrl := NewLoopControl()
	gate := NewApprovalGate(ctx, state)
	executor := NewToolExecutor(state)
	guard := NewSafetyGuard(state.Config.DoomLoopWindow, state.Config.ReflectionCap)
	budget := NewUsageBudget(input.BudgetRemaining)

	_ = state.History.AddItem(models.ConversationItem{
		Type:    models.ItemTypeUserMessage,
		Content: input.Task,
	})

	requestsUsed := 0
	var usage models.TokenUsage

	for budget.Charge() {
		requestsUsed++
		state.applyGovernorTransforms(ctx, ctrl, guard, budget, "")

		llmResult, err := state.callLLM(ctx, ctrl, focusedTaskInstructions)
		if err != nil {
			var appErr *temporal.ApplicationError
			if errors.As(err, &appErr) && appErr.Type() == models.LLMErrTypeContextOverflow {
				if compactErr := state.performCompaction(ctx, ctrl); compactErr == nil {
					continue
				}
			}
			return FocusedTaskResult{
				Summary:      "Sub-task failed: model call error.",
				Outcome:      "failed",
				Details:      err.Error(),
				RequestsUsed: requestsUsed,
				TokenUsage:   usage,
			}, nil
		}

		usage.TotalTokens += llmResult.TokenUsage.TotalTokens
		usage.CachedTokens += llmResult.TokenUsage.CachedTokens
		state.recordLLMResponse(ctx, ctrl, llmResult)

		calls := extractFunctionCalls(llmResult.Items)
		if len(calls) == 0 {
			result := parseFocusedTaskOutput(state.lastAssistantMessage())
			result.RequestsUsed = requestsUsed
			result.TokenUsage = usage
			return result, nil
		}

		guard.Observe(toToolCalls(calls))

		// No user is attached: anything the gate would prompt for is denied.
		needsApproval, forbidden := gate.Classify(calls)
		for _, fr := range forbidden {
			_ = state.History.AddItem(fr)
		}
		deniedIDs := make(map[string]bool, len(needsApproval)+len(forbidden))
		for _, fr := range forbidden {
			deniedIDs[fr.CallID] = true
		}
		for _, pa := range needsApproval {
			deniedIDs[pa.CallID] = true
			_ = state.History.AddItem(failedResult(pa.CallID,
				"Approval is not available in a delegated sub-task. Use read-only tools instead."))
		}

		var cleared []models.ConversationItem
		for _, fc := range calls {
			if !deniedIDs[fc.CallID] {
				cleared = append(cleared, fc)
			}
		}
		if len(cleared) > 0 {
			results := executor.ExecuteParallel(ctx, cleared)
			state.recordToolResults(ctrl, guard, cleared, results)
		}
	}

	logger.Warn("Sub-task exhausted its budget share", "requests_used", requestsUsed)
	return FocusedTaskResult{
		Summary:      "Sub-task stopped: shared request budget exhausted before completion.",
		Outcome:      "incomplete",
		Details:      state.lastAssistantMessage(),
		RequestsUsed: requestsUsed,
		TokenUsage:   usage,
	}, nil
}

// runFocusedTask intercepts one run_focused_task call on the parent side:
// starts the child workflow, waits for it, charges the parent budget, and
// returns the structured result as a tool output.
func (s *SessionState) runFocusedTask(
	ctx workflow.Context,
	ctrl *LoopControl,
	budget *UsageBudget,
	fc models.ConversationItem,
) models.ConversationItem {
	logger := workflow.GetLogger(ctx)

	if s.Depth >= maxDelegationDepth {
		return failedResult(fc.CallID, "Delegation is capped at one level; a sub-task cannot delegate further.")
	}

	var args struct {
		Task string `json:"task"`
	}
	if err := json.Unmarshal([]byte(fc.Arguments), &args); err != nil || strings.TrimSpace(args.Task) == "" {
		return failedResult(fc.CallID, "Invalid run_focused_task call: a non-empty 'task' argument is required.")
	}
	if budget.Exhausted() {
		return failedResult(fc.CallID, "Cannot delegate: the turn's request budget is exhausted.")
	}

	prevPhase := ctrl.Phase()
	ctrl.SetPhase(PhaseDelegating)
	defer ctrl.SetPhase(prevPhase)

	childInput := FocusedTaskInput{
		ConversationID:  fmt.Sprintf("%s/task-%s", s.ConversationID, fc.CallID),
		Task:            args.Task,
		Config:          s.Config,
		BudgetRemaining: budget.Remaining(),
	}
	childCtx := workflow.WithChildOptions(ctx, workflow.ChildWorkflowOptions{
		WorkflowID:               childInput.ConversationID,
		WorkflowExecutionTimeout: 30 * time.Minute,
	})

	var result FocusedTaskResult
	if err := workflow.ExecuteChildWorkflow(childCtx, FocusedTaskWorkflow, childInput).Get(ctx, &result); err != nil {
		logger.Warn("Focused task child workflow failed", "error", err)
		return failedResult(fc.CallID, fmt.Sprintf("Delegated sub-task failed: %v", err))
	}

	budget.ChargeN(result.RequestsUsed)
	ctrl.SetBudgetRemaining(budget.Remaining())
	s.TotalTokens += result.TokenUsage.TotalTokens
	s.TotalCachedTokens += result.TokenUsage.CachedTokens

	content, err := json.Marshal(map[string]string{
		"summary": result.Summary,
		"outcome": result.Outcome,
		"details": result.Details,
	})
	if err != nil {
		return failedResult(fc.CallID, "Failed to encode sub-task result.")
	}

	success := result.Outcome != "failed"
	return models.ConversationItem{
		Type:   models.ItemTypeFunctionCallOutput,
		CallID: fc.CallID,
		Output: &models.FunctionCallOutputPayload{Content: string(content), Success: &success},
	}
}

// subTaskToolSpecs is the narrowed tool set for delegated sub-tasks: no
// further delegation, no persistent shell sessions.
func subTaskToolSpecs() []tools.ToolSpec {
	return []tools.ToolSpec{
		tools.NewShellToolSpec(),
		tools.NewReadFileToolSpec(),
		tools.NewListDirToolSpec(),
	}
}

// parseFocusedTaskOutput reads the child's final message as the structured
// result. A model that did not follow the contract degrades to a summary
// carrying the raw text.
func parseFocusedTaskOutput(text string) FocusedTaskResult {
	trimmed := strings.TrimSpace(text)
	trimmed = strings.TrimPrefix(trimmed, "```json")
	trimmed = strings.TrimPrefix(trimmed, "```")
	trimmed = strings.TrimSuffix(trimmed, "```")

	var result FocusedTaskResult
	if err := json.Unmarshal([]byte(strings.TrimSpace(trimmed)), &result); err == nil && result.Summary != "" {
		if result.Outcome == "" {
			result.Outcome = "completed"
		}
		return result
	}
	return FocusedTaskResult{Summary: text, Outcome: "completed"}
}

func toToolCalls(calls []models.ConversationItem) []models.ToolCall {
	parsed := make([]models.ToolCall, 0, len(calls))
	for _, fc := range calls {
		parsed = append(parsed, models.ToolCall{
			CallID:    fc.CallID,
			Name:      fc.Name,
			Arguments: parseCallArguments(fc.Arguments),
		})
	}
	return parsed
}
