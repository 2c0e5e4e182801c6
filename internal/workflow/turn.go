// turn.go drives one turn: model requests, safety checks, the approval
// gate, and tool execution, until a final answer, an error, or an
// exhausted budget.
package workflow

import (
	"errors"
	"fmt"
	"time"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"

	"steward/internal/activities"
	"steward/internal/models"
	"steward/internal/tools"
)

const (
	graceNote = "The request budget for this turn is exhausted. You have exactly one more response: " +
		"summarize the progress made so far, what remains unfinished, and how the user can continue."

	partialOutputNote = "Turn stopped: the request budget was exhausted. The answer above may be partial."

	interruptedNote = "The user interrupted this turn. In-flight work was abandoned; results above may be incomplete."
)

// runTurn drives one user message through the model/tool/approval cycle.
func (s *SessionState) runTurn(ctx workflow.Context, ctrl *LoopControl, userMessage string) (models.TurnOutcome, error) {
	logger := workflow.GetLogger(ctx)

	gate := NewApprovalGate(ctx, s)
	executor := NewToolExecutor(s)
	guard := NewSafetyGuard(s.Config.DoomLoopWindow, s.Config.ReflectionCap)
	budget := NewUsageBudget(s.Config.MaxRequestsPerTurn)
	ctrl.SetBudgetRemaining(budget.Remaining())

	graceFinal := false

	for {
		if ctrl.IsInterrupted() {
			s.closeInterruptedTurn(ctx, ctrl)
			return models.TurnOutcomeStop, nil
		}

		s.applyGovernorTransforms(ctx, ctrl, guard, budget, userMessage)

		if budget.Exhausted() {
			if !budget.GrantGrace() {
				// Grace already spent; nothing more is allowed.
				s.addSystemNote(ctrl, partialOutputNote)
				return models.TurnOutcomeStop, nil
			}
			logger.Warn("Request budget exhausted, granting one grace request")
			s.addSystemNote(ctrl, graceNote)
			graceFinal = true
		}
		if !budget.Charge() {
			s.addSystemNote(ctrl, partialOutputNote)
			return models.TurnOutcomeStop, nil
		}
		ctrl.SetBudgetRemaining(budget.Remaining())

		llmResult, err := s.callLLM(ctx, ctrl, "")
		if err != nil {
			retry, outcome := s.handleLLMError(ctx, ctrl, err)
			if retry {
				continue
			}
			return outcome, nil
		}
		if ctrl.IsInterrupted() {
			s.recordLLMResponse(ctx, ctrl, llmResult)
			s.closeInterruptedTurn(ctx, ctrl)
			return models.TurnOutcomeStop, nil
		}

		s.recordLLMResponse(ctx, ctrl, llmResult)

		if graceFinal {
			// The grace response stands as-is, whatever it contains.
			s.addSystemNote(ctrl, partialOutputNote)
			return models.TurnOutcomeStop, nil
		}

		calls := extractFunctionCalls(llmResult.Items)

		// Doom-loop detection only steers; execution proceeds. Every call
		// is observed, including delegations handled inline below.
		guard.Observe(toToolCalls(calls))

		calls = s.interceptFocusedTasks(ctx, ctrl, budget, calls)

		if len(calls) == 0 {
			if llmResult.FinishReason == models.FinishReasonStop && !hasFunctionCalls(llmResult.Items) {
				logger.Info("Turn completed", "turn_id", ctrl.CurrentTurnID())
				return models.TurnOutcomeContinue, nil
			}
			continue
		}

		dispatch, interrupted, err := s.gateCalls(ctx, ctrl, gate, calls)
		if err != nil {
			return models.TurnOutcomeError, err
		}
		if interrupted {
			s.closeInterruptedTurn(ctx, ctrl)
			return models.TurnOutcomeStop, nil
		}
		if len(dispatch) == 0 {
			continue
		}

		dispatch = s.refuseUnsandboxed(ctrl, dispatch)
		if len(dispatch) == 0 {
			continue
		}

		ctrl.SetPhase(PhaseToolExecuting)
		names := make([]string, len(dispatch))
		for i, fc := range dispatch {
			names[i] = fc.Name
		}
		ctrl.SetToolsInFlight(names)

		results := executor.ExecuteParallel(ctx, dispatch)
		ctrl.ClearToolsInFlight()

		s.recordToolResults(ctrl, guard, dispatch, results)
	}
}

// gateCalls runs the approval pipeline over one batch: forbidden calls get
// synthetic results, auto-approved calls pass, pending calls suspend the
// turn until the user's decision arrives. Returns the calls cleared for
// dispatch and whether the wait was interrupted.
func (s *SessionState) gateCalls(
	ctx workflow.Context,
	ctrl *LoopControl,
	gate *ApprovalGate,
	calls []models.ConversationItem,
) (dispatch []models.ConversationItem, interrupted bool, err error) {
	needsApproval, forbidden := gate.Classify(calls)

	excluded := make(map[string]bool, len(forbidden)+len(needsApproval))
	for _, fr := range forbidden {
		_ = s.History.AddItem(fr)
		ctrl.NotifyItemAdded()
		excluded[fr.CallID] = true
	}

	var pendingCalls []models.ConversationItem
	pendingIDs := make(map[string]bool, len(needsApproval))
	for _, pa := range needsApproval {
		pendingIDs[pa.CallID] = true
		excluded[pa.CallID] = true
	}
	for _, fc := range calls {
		if pendingIDs[fc.CallID] {
			pendingCalls = append(pendingCalls, fc)
		} else if !excluded[fc.CallID] {
			dispatch = append(dispatch, fc)
		}
	}

	if len(needsApproval) == 0 {
		return dispatch, false, nil
	}

	resp, err := ctrl.AwaitApproval(ctx, needsApproval)
	if err != nil {
		return nil, false, err
	}
	if resp == nil {
		return nil, true, nil
	}

	approved, deniedResults := gate.ApplyDecision(pendingCalls, resp)
	for _, dr := range deniedResults {
		_ = s.History.AddItem(dr)
		ctrl.NotifyItemAdded()
	}
	if resp.RememberApproved {
		s.persistApprovedPrefixes(ctx, gate.ApprovedShellPrefixes(approved))
	}
	return append(dispatch, approved...), false, nil
}

// refuseUnsandboxed fails shell calls closed when the host cannot confine
// commands and the user has not granted one-time consent.
func (s *SessionState) refuseUnsandboxed(ctrl *LoopControl, calls []models.ConversationItem) []models.ConversationItem {
	if s.SandboxAvailable || s.UnsandboxedConsent {
		return calls
	}

	var remaining []models.ConversationItem
	for _, fc := range calls {
		if !isShellCall(fc.Name) {
			remaining = append(remaining, fc)
			continue
		}
		_ = s.History.AddItem(failedResult(fc.CallID,
			"Refused: this host cannot establish an isolated execution environment, and the user "+
				"has not consented to unsandboxed execution. Ask the user to grant one-time consent "+
				"if the command is essential."))
		ctrl.NotifyItemAdded()
	}
	return remaining
}

// interceptFocusedTasks handles run_focused_task calls inline and returns
// the rest for normal gating.
func (s *SessionState) interceptFocusedTasks(
	ctx workflow.Context,
	ctrl *LoopControl,
	budget *UsageBudget,
	calls []models.ConversationItem,
) []models.ConversationItem {
	var remaining []models.ConversationItem
	for _, fc := range calls {
		if fc.Name != tools.FocusedTaskToolName {
			remaining = append(remaining, fc)
			continue
		}
		result := s.runFocusedTask(ctx, ctrl, budget, fc)
		_ = s.History.AddItem(result)
		ctrl.NotifyItemAdded()
	}
	return remaining
}

// callLLM executes one model request. baseOverride replaces the session's
// base instructions when set (delegated sub-tasks).
func (s *SessionState) callLLM(ctx workflow.Context, ctrl *LoopControl, baseOverride string) (*activities.LLMActivityOutput, error) {
	historyItems, err := s.History.GetForPrompt()
	if err != nil {
		return nil, fmt.Errorf("failed to get history: %w", err)
	}

	base := s.Config.BaseInstructions
	personal := s.Config.PersonalInstructions
	if baseOverride != "" {
		base = baseOverride
		personal = ""
	}

	llmOpts := workflow.ActivityOptions{
		StartToCloseTimeout: 2 * time.Minute,
		RetryPolicy: &temporal.RetryPolicy{
			InitialInterval:    time.Second,
			BackoffCoefficient: 2.0,
			MaximumInterval:    30 * time.Second,
			MaximumAttempts:    3,
			NonRetryableErrorTypes: []string{
				models.LLMErrTypeContextOverflow,
				models.LLMErrTypeFatal,
			},
		},
	}
	llmCtx := workflow.WithActivityOptions(ctx, llmOpts)

	ctrl.SetPhase(PhaseLLMCalling)

	var llmResult activities.LLMActivityOutput
	err = workflow.ExecuteActivity(llmCtx, "ExecuteLLMCall", activities.LLMActivityInput{
		History:              historyItems,
		ModelConfig:          s.Config.Model,
		ToolSpecs:            s.ToolSpecs,
		BaseInstructions:     base,
		PersonalInstructions: personal,
	}).Get(ctx, &llmResult)
	if err != nil {
		return nil, err
	}
	return &llmResult, nil
}

// handleLLMError classifies a failed model request: context overflow
// compacts and retries, a rate limit sleeps and retries, everything else
// ends the turn. Returns (retry, outcome).
func (s *SessionState) handleLLMError(ctx workflow.Context, ctrl *LoopControl, err error) (bool, models.TurnOutcome) {
	logger := workflow.GetLogger(ctx)

	var appErr *temporal.ApplicationError
	if errors.As(err, &appErr) {
		switch appErr.Type() {
		case models.LLMErrTypeContextOverflow:
			logger.Warn("Context overflow, compacting and retrying")
			if compactErr := s.performCompaction(ctx, ctrl); compactErr != nil {
				logger.Error("Compaction after overflow failed", "error", compactErr)
				s.addAssistantError(ctrl, "context overflow could not be recovered")
				return false, models.TurnOutcomeError
			}
			return true, ""

		case models.LLMErrTypeAPILimit:
			logger.Warn("API rate limit, sleeping before retry")
			_ = workflow.Sleep(ctx, time.Minute)
			return true, ""

		case models.LLMErrTypeFatal:
			logger.Error("Fatal model error, ending turn", "error", err)
			s.addAssistantError(ctrl, appErr.Message())
			return false, models.TurnOutcomeError
		}
	}

	logger.Error("Model request failed, ending turn", "error", err)
	s.addAssistantError(ctrl, err.Error())
	return false, models.TurnOutcomeError
}

// recordLLMResponse appends the model's items and tracks token usage.
func (s *SessionState) recordLLMResponse(ctx workflow.Context, ctrl *LoopControl, result *activities.LLMActivityOutput) {
	logger := workflow.GetLogger(ctx)

	s.TotalTokens += result.TokenUsage.TotalTokens
	s.TotalCachedTokens += result.TokenUsage.CachedTokens
	logger.Info("Model request completed",
		"tokens", result.TokenUsage.TotalTokens,
		"cached_tokens", result.TokenUsage.CachedTokens,
		"finish_reason", result.FinishReason,
		"items", len(result.Items))

	for _, item := range result.Items {
		item.TurnID = ctrl.CurrentTurnID()
		_ = s.History.AddItem(item)
		ctrl.NotifyItemAdded()
	}
}

// recordToolResults appends tool outputs and feeds shell exit status into
// the reflection counter.
func (s *SessionState) recordToolResults(
	ctrl *LoopControl,
	guard *SafetyGuard,
	calls []models.ConversationItem,
	results []activities.ToolActivityOutput,
) {
	byCallID := make(map[string]string, len(calls))
	for _, fc := range calls {
		byCallID[fc.CallID] = fc.Name
		s.ToolCallsExecuted = append(s.ToolCallsExecuted, fc.Name)
	}

	for _, result := range results {
		output := result.Output
		_ = s.History.AddItem(models.ConversationItem{
			Type:   models.ItemTypeFunctionCallOutput,
			CallID: result.CallID,
			Output: &output,
			TurnID: ctrl.CurrentTurnID(),
		})
		ctrl.NotifyItemAdded()

		if isShellCall(byCallID[result.CallID]) {
			guard.NoteShellResult(output.Success == nil || *output.Success)
		}
	}
}

// closeInterruptedTurn closes dangling calls with synthetic failed results
// and notes the interruption, keeping the sequence well-formed for the
// next model request.
func (s *SessionState) closeInterruptedTurn(ctx workflow.Context, ctrl *LoopControl) {
	logger := workflow.GetLogger(ctx)

	dangling, err := s.History.DanglingCalls()
	if err != nil {
		logger.Error("Failed to inspect dangling calls", "error", err)
		return
	}
	for _, fc := range dangling {
		_ = s.History.AddItem(failedResult(fc.CallID, "Interrupted by the user before completion."))
		ctrl.NotifyItemAdded()
	}
	s.addSystemNote(ctrl, interruptedNote)
	logger.Info("Turn interrupted", "dangling_calls_closed", len(dangling))
}

// persistApprovedPrefixes appends standing allow rules for command
// prefixes the user chose to remember. Best effort.
func (s *SessionState) persistApprovedPrefixes(ctx workflow.Context, prefixes [][]string) {
	if len(prefixes) == 0 || s.Config.StewardHome == "" {
		return
	}
	logger := workflow.GetLogger(ctx)

	actOpts := workflow.ActivityOptions{
		StartToCloseTimeout: 15 * time.Second,
		RetryPolicy:         &temporal.RetryPolicy{MaximumAttempts: 2},
	}
	if s.Config.SessionTaskQueue != "" {
		actOpts.TaskQueue = s.Config.SessionTaskQueue
	}
	ruleCtx := workflow.WithActivityOptions(ctx, actOpts)

	for _, prefix := range prefixes {
		err := workflow.ExecuteActivity(ruleCtx, "AppendApprovalRule", activities.AppendApprovalRuleInput{
			StewardHome: s.Config.StewardHome,
			Prefix:      prefix,
		}).Get(ctx, nil)
		if err != nil {
			logger.Warn("Failed to persist approval rule", "error", err)
		}
	}
}

func (s *SessionState) addSystemNote(ctrl *LoopControl, content string) {
	_ = s.History.AddItem(models.ConversationItem{
		Type:    models.ItemTypeSystemNote,
		Content: content,
		TurnID:  ctrl.CurrentTurnID(),
	})
	ctrl.NotifyItemAdded()
}

func (s *SessionState) addAssistantError(ctrl *LoopControl, message string) {
	_ = s.History.AddItem(models.ConversationItem{
		Type:    models.ItemTypeAssistantMessage,
		Content: fmt.Sprintf("[Error: %s]", message),
		TurnID:  ctrl.CurrentTurnID(),
	})
	ctrl.NotifyItemAdded()
}

// extractFunctionCalls pulls the function-call items out of a model
// response.
func extractFunctionCalls(items []models.ConversationItem) []models.ConversationItem {
	var calls []models.ConversationItem
	for _, item := range items {
		if item.Type == models.ItemTypeFunctionCall {
			calls = append(calls, item)
		}
	}
	return calls
}

func hasFunctionCalls(items []models.ConversationItem) bool {
	return len(extractFunctionCalls(items)) > 0
}
