// handlers.go registers the Temporal query and update handlers. Handlers
// delegate coordination state to LoopControl and session data to
// SessionState; none of them mutate LoopControl fields directly.
package workflow

import (
	"fmt"
	"time"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"

	"steward/internal/models"
	"steward/internal/version"
)

// buildTurnStatus constructs a TurnStatus snapshot. Shared by the
// get_turn_status query and the get_state_update long-poll.
func (s *SessionState) buildTurnStatus(ctrl *LoopControl) TurnStatus {
	turnCount, _ := s.History.GetTurnCount()
	return TurnStatus{
		Phase:             ctrl.Phase(),
		CurrentTurnID:     ctrl.CurrentTurnID(),
		ToolsInFlight:     ctrl.ToolsInFlight(),
		PendingApprovals:  ctrl.PendingApprovals(),
		BudgetRemaining:   ctrl.BudgetRemaining(),
		TotalTokens:       s.TotalTokens,
		TotalCachedTokens: s.TotalCachedTokens,
		TurnCount:         turnCount,
		CompactionCount:   s.CompactionCount,
		SandboxAvailable:  s.SandboxAvailable,
		WorkerVersion:     version.Version,
	}
}

// registerHandlers registers all query and update handlers.
func (s *SessionState) registerHandlers(ctx workflow.Context, ctrl *LoopControl) {
	logger := workflow.GetLogger(ctx)

	err := workflow.SetQueryHandler(ctx, QueryGetConversationItems, func() ([]models.ConversationItem, error) {
		return s.History.GetRawItems()
	})
	if err != nil {
		logger.Error("Failed to register get_conversation_items query handler", "error", err)
	}

	err = workflow.SetQueryHandler(ctx, QueryGetTurnStatus, func() (TurnStatus, error) {
		return s.buildTurnStatus(ctrl), nil
	})
	if err != nil {
		logger.Error("Failed to register get_turn_status query handler", "error", err)
	}

	// user_input starts a new turn. Returns a full snapshot so the CLI
	// can render without an extra query round-trip.
	err = workflow.SetUpdateHandlerWithOptions(
		ctx,
		UpdateUserInput,
		func(ctx workflow.Context, input UserInput) (StateUpdateResponse, error) {
			turnID := s.nextTurnID()

			if err := s.History.AddItem(models.ConversationItem{
				Type:   models.ItemTypeTurnStarted,
				TurnID: turnID,
			}); err != nil {
				return StateUpdateResponse{}, fmt.Errorf("failed to add turn marker: %w", err)
			}
			ctrl.NotifyItemAdded()

			if err := s.History.AddItem(models.ConversationItem{
				Type:    models.ItemTypeUserMessage,
				Content: input.Content,
				TurnID:  turnID,
			}); err != nil {
				return StateUpdateResponse{}, fmt.Errorf("failed to add user message: %w", err)
			}
			ctrl.NotifyItemAdded()

			ctrl.SetPendingUserInput(turnID)

			allItems, _ := s.History.GetRawItems()
			return StateUpdateResponse{
				TurnID: turnID,
				Items:  allItems,
				Status: s.buildTurnStatus(ctrl),
			}, nil
		},
		workflow.UpdateHandlerOptions{
			Validator: func(ctx workflow.Context, input UserInput) error {
				if input.Content == "" {
					return temporal.NewApplicationError("content must not be empty", "InvalidRequest")
				}
				if ctrl.IsShutdown() {
					return temporal.NewApplicationError("session is shutting down", "InvalidRequest")
				}
				return nil
			},
		},
	)
	if err != nil {
		logger.Error("Failed to register user_input update handler", "error", err)
	}

	err = workflow.SetUpdateHandlerWithOptions(
		ctx,
		UpdateInterrupt,
		func(ctx workflow.Context, req InterruptRequest) (InterruptResponse, error) {
			ctrl.SetInterrupted()
			return InterruptResponse{Acknowledged: true}, nil
		},
		workflow.UpdateHandlerOptions{
			Validator: func(ctx workflow.Context, req InterruptRequest) error {
				if ctrl.IsShutdown() {
					return temporal.NewApplicationError("session is shutting down", "InvalidRequest")
				}
				return nil
			},
		},
	)
	if err != nil {
		logger.Error("Failed to register interrupt update handler", "error", err)
	}

	err = workflow.SetUpdateHandlerWithOptions(
		ctx,
		UpdateShutdown,
		func(ctx workflow.Context, req ShutdownRequest) (ShutdownResponse, error) {
			ctrl.SetShutdown()
			return ShutdownResponse{Acknowledged: true}, nil
		},
		workflow.UpdateHandlerOptions{
			Validator: func(ctx workflow.Context, req ShutdownRequest) error {
				if ctrl.IsShutdown() {
					return temporal.NewApplicationError("session is already shutting down", "InvalidRequest")
				}
				return nil
			},
		},
	)
	if err != nil {
		logger.Error("Failed to register shutdown update handler", "error", err)
	}

	err = workflow.SetUpdateHandlerWithOptions(
		ctx,
		UpdateApprovalResponse,
		func(ctx workflow.Context, resp ApprovalResponse) (ApprovalResponseAck, error) {
			ctrl.DeliverApproval(resp)
			return ApprovalResponseAck{}, nil
		},
		workflow.UpdateHandlerOptions{
			Validator: func(ctx workflow.Context, resp ApprovalResponse) error {
				if ctrl.Phase() != PhaseApprovalPending {
					return temporal.NewApplicationError("no approval pending", "InvalidRequest")
				}
				return nil
			},
		},
	)
	if err != nil {
		logger.Error("Failed to register approval_response update handler", "error", err)
	}

	err = workflow.SetUpdateHandlerWithOptions(
		ctx,
		UpdateCompact,
		func(ctx workflow.Context, req CompactRequest) (CompactResponse, error) {
			ctrl.SetCompactRequested()
			return CompactResponse{Acknowledged: true}, nil
		},
		workflow.UpdateHandlerOptions{
			Validator: func(ctx workflow.Context, req CompactRequest) error {
				if ctrl.IsShutdown() {
					return temporal.NewApplicationError("session is shutting down", "InvalidRequest")
				}
				if ctrl.Phase() == PhaseCompacting {
					return temporal.NewApplicationError("compaction already in progress", "InvalidRequest")
				}
				return nil
			},
		},
	)
	if err != nil {
		logger.Error("Failed to register compact update handler", "error", err)
	}

	// allow_unsandboxed records the user's explicit one-time consent and
	// propagates it to the worker so the shell handler stops refusing.
	err = workflow.SetUpdateHandlerWithOptions(
		ctx,
		UpdateAllowUnsandboxed,
		func(ctx workflow.Context, req AllowUnsandboxedRequest) (AllowUnsandboxedResponse, error) {
			actOpts := workflow.ActivityOptions{
				StartToCloseTimeout: 15 * time.Second,
				RetryPolicy:         &temporal.RetryPolicy{MaximumAttempts: 2},
			}
			if s.Config.SessionTaskQueue != "" {
				actOpts.TaskQueue = s.Config.SessionTaskQueue
			}
			consentCtx := workflow.WithActivityOptions(ctx, actOpts)
			if err := workflow.ExecuteActivity(consentCtx, "AllowUnsandboxed").Get(ctx, nil); err != nil {
				return AllowUnsandboxedResponse{}, fmt.Errorf("failed to record consent: %w", err)
			}

			s.UnsandboxedConsent = true
			s.addSystemNote(ctrl, "The user granted one-time consent to run commands without sandbox isolation for this session.")
			return AllowUnsandboxedResponse{Acknowledged: true}, nil
		},
		workflow.UpdateHandlerOptions{
			Validator: func(ctx workflow.Context, req AllowUnsandboxedRequest) error {
				if s.SandboxAvailable {
					return temporal.NewApplicationError("sandbox is available; consent not needed", "InvalidRequest")
				}
				if s.UnsandboxedConsent {
					return temporal.NewApplicationError("consent already granted", "InvalidRequest")
				}
				return nil
			},
		},
	)
	if err != nil {
		logger.Error("Failed to register allow_unsandboxed update handler", "error", err)
	}

	// get_state_update blocks until state changes, then returns item
	// deltas plus current status in one response.
	err = workflow.SetUpdateHandlerWithOptions(
		ctx,
		UpdateGetStateUpdate,
		func(ctx workflow.Context, req StateUpdateRequest) (StateUpdateResponse, error) {
			entryVersion := ctrl.StateVersion()

			items, compacted, _ := s.History.GetItemsSince(req.SinceSeq)
			if len(items) > 0 || compacted || ctrl.Phase() != req.SincePhase || ctrl.IsShutdown() || ctrl.IsDraining() {
				return StateUpdateResponse{
					TurnID:    ctrl.CurrentTurnID(),
					Items:     items,
					Status:    s.buildTurnStatus(ctrl),
					Compacted: compacted,
					Completed: ctrl.IsShutdown(),
				}, nil
			}

			awaitErr := workflow.Await(ctx, func() bool {
				return ctrl.StateVersion() != entryVersion || ctrl.IsShutdown() || ctrl.IsDraining()
			})
			if awaitErr != nil {
				return StateUpdateResponse{}, fmt.Errorf("get_state_update await failed: %w", awaitErr)
			}

			items, compacted, _ = s.History.GetItemsSince(req.SinceSeq)
			return StateUpdateResponse{
				TurnID:    ctrl.CurrentTurnID(),
				Items:     items,
				Status:    s.buildTurnStatus(ctrl),
				Compacted: compacted,
				Completed: ctrl.IsShutdown(),
			}, nil
		},
		workflow.UpdateHandlerOptions{},
	)
	if err != nil {
		logger.Error("Failed to register get_state_update update handler", "error", err)
	}
}
