// session.go implements the session workflow: setup, the multi-turn wait
// loop, idle ContinueAsNew, and cleanup on shutdown.
package workflow

import (
	"fmt"
	"time"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"

	"steward/internal/activities"
	"steward/internal/history"
	"steward/internal/instructions"
	"steward/internal/models"
	"steward/internal/tools"
)

// SessionWorkflow is the durable session entry point.
func SessionWorkflow(ctx workflow.Context, input WorkflowInput) (WorkflowResult, error) {
	input.Config.Normalize()

	conversationID := input.ConversationID
	if conversationID == "" {
		conversationID = workflow.GetInfo(ctx).WorkflowExecution.ID
	}

	state := &SessionState{
		ConversationID: conversationID,
		History:        history.NewInMemoryHistory(),
		ToolSpecs:      tools.BuiltinSpecs(),
		Config:         input.Config,
		Depth:          input.Depth,
	}
	return runSessionLoop(ctx, state, input.UserMessage, false)
}

// SessionWorkflowContinued is the ContinueAsNew re-entry point.
func SessionWorkflowContinued(ctx workflow.Context, state SessionState) (WorkflowResult, error) {
	state.initHistory()
	return runSessionLoop(ctx, &state, "", true)
}

// runSessionLoop runs setup once, then alternates between waiting for
// input and driving turns until shutdown or the idle timeout.
func runSessionLoop(ctx workflow.Context, state *SessionState, initialMessage string, continued bool) (WorkflowResult, error) {
	logger := workflow.GetLogger(ctx)
	ctrl := NewLoopControl()
	state.registerHandlers(ctx, ctrl)

	if !continued {
		if err := state.initSession(ctx); err != nil {
			return WorkflowResult{}, err
		}
	}

	if initialMessage != "" {
		turnID := state.nextTurnID()
		_ = state.History.AddItem(models.ConversationItem{Type: models.ItemTypeTurnStarted, TurnID: turnID})
		_ = state.History.AddItem(models.ConversationItem{
			Type:    models.ItemTypeUserMessage,
			Content: initialMessage,
			TurnID:  turnID,
		})
		ctrl.SetPendingUserInput(turnID)
	}

	for {
		if !ctrl.HasPendingWork() {
			ctrl.SetPhase(PhaseWaitingForInput)
			timedOut, err := ctrl.WaitForInput(ctx)
			if err != nil {
				return WorkflowResult{}, err
			}
			if timedOut {
				logger.Info("Session idle timeout, triggering ContinueAsNew")
				ctrl.SetDraining()
				_ = workflow.Await(ctx, func() bool {
					return workflow.AllHandlersFinished(ctx)
				})
				state.syncHistoryItems()
				return WorkflowResult{}, workflow.NewContinueAsNewError(ctx, SessionWorkflowContinued, *state)
			}
		}

		if ctrl.IsShutdown() {
			break
		}

		if ctrl.IsCompactRequested() {
			ctrl.ClearCompactRequested()
			if err := state.performCompaction(ctx, ctrl); err != nil {
				logger.Warn("Manual compaction failed", "error", err)
			}
			continue
		}

		ctrl.StartTurn()
		userMessage := state.lastUserMessage()

		outcome, err := state.runTurn(ctx, ctrl, userMessage)
		if err != nil {
			return WorkflowResult{}, fmt.Errorf("turn failed: %w", err)
		}

		_ = state.History.AddItem(models.ConversationItem{
			Type:    models.ItemTypeTurnComplete,
			TurnID:  ctrl.CurrentTurnID(),
			Content: string(outcome),
		})
		ctrl.NotifyItemAdded()
		logger.Info("Turn finished", "turn_id", ctrl.CurrentTurnID(), "outcome", outcome)
	}

	state.cleanup(ctx)

	// Let in-flight long-polls observe the shutdown before returning.
	_ = workflow.Await(ctx, func() bool {
		return workflow.AllHandlersFinished(ctx)
	})

	turnCount, _ := state.History.GetTurnCount()
	return WorkflowResult{
		ConversationID:    state.ConversationID,
		TotalTurns:        turnCount,
		TotalTokens:       state.TotalTokens,
		TotalCachedTokens: state.TotalCachedTokens,
		ToolCallsExecuted: state.ToolCallsExecuted,
		EndReason:         "shutdown",
		FinalMessage:      state.lastAssistantMessage(),
	}, nil
}

// initSession loads worker-side setup, assembles instructions, and
// initializes MCP servers. Runs once per session, not per continuation.
func (s *SessionState) initSession(ctx workflow.Context) error {
	logger := workflow.GetLogger(ctx)

	actOpts := workflow.ActivityOptions{
		StartToCloseTimeout: 30 * time.Second,
		RetryPolicy:         &temporal.RetryPolicy{MaximumAttempts: 2},
	}
	if s.Config.SessionTaskQueue != "" {
		actOpts.TaskQueue = s.Config.SessionTaskQueue
	}
	setupCtx := workflow.WithActivityOptions(ctx, actOpts)

	var setup activities.LoadSessionSetupOutput
	err := workflow.ExecuteActivity(setupCtx, "LoadSessionSetup", activities.LoadSessionSetupInput{
		StewardHome: s.Config.StewardHome,
	}).Get(ctx, &setup)
	if err != nil {
		logger.Warn("Session setup load failed, using defaults", "error", err)
		// Fail closed: without a setup answer, assume no isolation.
		setup = activities.LoadSessionSetupOutput{}
	}

	s.SandboxAvailable = setup.SandboxAvailable
	if s.Config.PersonalInstructions == "" {
		s.Config.PersonalInstructions = setup.PersonalInstructions
	}
	if s.Config.ApprovalPolicyRules == "" {
		s.Config.ApprovalPolicyRules = setup.PolicyRulesSource
	}

	merged := instructions.Merge(instructions.MergeInput{
		BaseOverride:  s.Config.BaseInstructions,
		Personal:      s.Config.PersonalInstructions,
		Cwd:           s.Config.Cwd,
		Shell:         setup.Shell,
		SandboxMode:   s.Config.Sandbox.Mode,
		NetworkAccess: s.Config.Sandbox.NetworkAccess,
	})
	s.Config.BaseInstructions = merged.Base
	s.Config.PersonalInstructions = merged.Personal

	_ = s.History.AddItem(models.ConversationItem{
		Type:    models.ItemTypeSystemNote,
		Content: merged.EnvironmentContext,
	})

	return s.initMcpServers(ctx)
}

// initMcpServers connects configured MCP servers and merges their tools
// into the session's tool set. A failed required server fails the session.
func (s *SessionState) initMcpServers(ctx workflow.Context) error {
	if len(s.Config.McpServers) == 0 {
		return nil
	}
	logger := workflow.GetLogger(ctx)

	actOpts := workflow.ActivityOptions{
		StartToCloseTimeout: 60 * time.Second,
		RetryPolicy:         &temporal.RetryPolicy{MaximumAttempts: 2},
	}
	if s.Config.SessionTaskQueue != "" {
		actOpts.TaskQueue = s.Config.SessionTaskQueue
	}
	initCtx := workflow.WithActivityOptions(ctx, actOpts)

	var result activities.InitializeMcpServersOutput
	err := workflow.ExecuteActivity(initCtx, "InitializeMcpServers", activities.InitializeMcpServersInput{
		SessionID:  s.ConversationID,
		McpServers: s.Config.McpServers,
	}).Get(ctx, &result)
	if err != nil {
		return fmt.Errorf("mcp initialization failed: %w", err)
	}

	for name, errMsg := range result.Failures {
		logger.Warn("MCP server failed to initialize", "server", name, "error", errMsg)
	}

	s.ToolSpecs = append(s.ToolSpecs, result.ToolSpecs...)
	s.McpToolLookup = result.McpToolLookup
	if len(result.ReadOnlyTools) > 0 {
		s.ReadOnlyMcpTools = make(map[string]bool, len(result.ReadOnlyTools))
		for _, name := range result.ReadOnlyTools {
			s.ReadOnlyMcpTools[name] = true
		}
	}

	logger.Info("MCP servers initialized",
		"tools_discovered", len(result.ToolSpecs),
		"failures", len(result.Failures))
	return nil
}

// cleanup releases worker-side resources on shutdown. Every exit path
// through the session loop ends here; failures are logged, not fatal.
func (s *SessionState) cleanup(ctx workflow.Context) {
	logger := workflow.GetLogger(ctx)

	actOpts := workflow.ActivityOptions{
		StartToCloseTimeout: 30 * time.Second,
		RetryPolicy:         &temporal.RetryPolicy{MaximumAttempts: 2},
	}
	if s.Config.SessionTaskQueue != "" {
		actOpts.TaskQueue = s.Config.SessionTaskQueue
	}
	cleanupCtx := workflow.WithActivityOptions(ctx, actOpts)

	if len(s.Config.McpServers) > 0 {
		err := workflow.ExecuteActivity(cleanupCtx, "CleanupMcpServers", activities.CleanupMcpServersInput{
			SessionID: s.ConversationID,
		}).Get(ctx, nil)
		if err != nil {
			logger.Warn("MCP cleanup failed", "error", err)
		}
	}

	err := workflow.ExecuteActivity(cleanupCtx, "CleanupSession", activities.CleanupSessionInput{
		SessionID: s.ConversationID,
	}).Get(ctx, nil)
	if err != nil {
		logger.Warn("Session cleanup failed", "error", err)
	}
}

// lastUserMessage returns the content of the most recent user message.
func (s *SessionState) lastUserMessage() string {
	items, err := s.History.GetRawItems()
	if err != nil {
		return ""
	}
	for i := len(items) - 1; i >= 0; i-- {
		if items[i].Type == models.ItemTypeUserMessage {
			return items[i].Content
		}
	}
	return ""
}
