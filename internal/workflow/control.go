// control.go defines LoopControl, which owns all Temporal coordination
// between handlers and the session loop: response slots, phase tracking,
// and lifecycle flags. Constructed fresh each workflow run; never
// serialized through ContinueAsNew.
package workflow

import (
	"fmt"
	"time"

	"go.temporal.io/sdk/workflow"
)

// sessionIdleTimeout bounds how long the session waits for input before
// triggering ContinueAsNew to keep workflow history from growing unbounded.
const sessionIdleTimeout = 10 * time.Minute

// ResponseSlot holds a single awaitable response of type T.
type ResponseSlot[T any] struct {
	received bool
	value    *T
}

// Deliver stores a response and marks the slot as ready.
func (s *ResponseSlot[T]) Deliver(v T) {
	s.value = &v
	s.received = true
}

// Ready returns true if a response has been delivered.
func (s *ResponseSlot[T]) Ready() bool { return s.received }

// Take retrieves the response and resets the slot. Returns nil if not ready.
func (s *ResponseSlot[T]) Take() *T {
	v := s.value
	s.received = false
	s.value = nil
	return v
}

func (s *ResponseSlot[T]) clear() {
	s.received = false
	s.value = nil
}

// LoopControl owns the coordination state for one workflow run.
type LoopControl struct {
	pendingUserInput  bool
	shutdownRequested bool
	interrupted       bool
	compactRequested  bool
	draining          bool
	currentTurnID     string

	// Observable state for the get_turn_status query.
	phase            TurnPhase
	toolsInFlight    []string
	pendingApprovals []PendingApproval
	budgetRemaining  int

	// stateVersion increments on every observable change so long-poll
	// Updates know when to wake.
	stateVersion int

	approvalSlot ResponseSlot[ApprovalResponse]
}

// NewLoopControl creates a control block in the waiting-for-input phase.
func NewLoopControl() *LoopControl {
	return &LoopControl{phase: PhaseWaitingForInput}
}

// DeliverApproval stores an approval response and clears visible pending
// state. Called by the approval_response update handler.
func (ctrl *LoopControl) DeliverApproval(resp ApprovalResponse) {
	ctrl.approvalSlot.Deliver(resp)
	ctrl.pendingApprovals = nil
	ctrl.bumpVersion()
}

// SetPendingUserInput records a new user-input turn with the given ID.
func (ctrl *LoopControl) SetPendingUserInput(turnID string) {
	ctrl.currentTurnID = turnID
	ctrl.pendingUserInput = true
	ctrl.bumpVersion()
}

// SetInterrupted marks the current turn as interrupted.
func (ctrl *LoopControl) SetInterrupted() {
	ctrl.interrupted = true
	ctrl.bumpVersion()
}

// SetShutdown marks the session as shut down and interrupts the current turn.
func (ctrl *LoopControl) SetShutdown() {
	ctrl.shutdownRequested = true
	ctrl.interrupted = true
	ctrl.bumpVersion()
}

// SetCompactRequested requests a manual context compaction.
func (ctrl *LoopControl) SetCompactRequested() {
	ctrl.compactRequested = true
	ctrl.bumpVersion()
}

// SetDraining marks the run as draining toward ContinueAsNew so long-poll
// handlers return instead of blocking across the continuation.
func (ctrl *LoopControl) SetDraining() {
	ctrl.draining = true
	ctrl.bumpVersion()
}

// SetPhase updates the current turn phase.
func (ctrl *LoopControl) SetPhase(p TurnPhase) {
	ctrl.phase = p
	ctrl.bumpVersion()
}

// Phase returns the current turn phase.
func (ctrl *LoopControl) Phase() TurnPhase { return ctrl.phase }

// SetToolsInFlight records the names of currently executing tools.
func (ctrl *LoopControl) SetToolsInFlight(names []string) {
	ctrl.toolsInFlight = names
	ctrl.bumpVersion()
}

// ClearToolsInFlight clears the in-flight tool list.
func (ctrl *LoopControl) ClearToolsInFlight() {
	ctrl.toolsInFlight = nil
	ctrl.bumpVersion()
}

// SetBudgetRemaining records the turn's remaining model requests for the
// status query.
func (ctrl *LoopControl) SetBudgetRemaining(n int) {
	ctrl.budgetRemaining = n
	ctrl.bumpVersion()
}

// NotifyItemAdded signals that a conversation item was appended.
func (ctrl *LoopControl) NotifyItemAdded() { ctrl.bumpVersion() }

// CurrentTurnID returns the active turn ID.
func (ctrl *LoopControl) CurrentTurnID() string { return ctrl.currentTurnID }

// ToolsInFlight returns the currently in-flight tool names.
func (ctrl *LoopControl) ToolsInFlight() []string { return ctrl.toolsInFlight }

// PendingApprovals returns the current pending approval list.
func (ctrl *LoopControl) PendingApprovals() []PendingApproval { return ctrl.pendingApprovals }

// BudgetRemaining returns the turn's remaining model requests.
func (ctrl *LoopControl) BudgetRemaining() int { return ctrl.budgetRemaining }

// StateVersion returns the current observable-state version.
func (ctrl *LoopControl) StateVersion() int { return ctrl.stateVersion }

// HasPendingWork returns true if the loop has work to do without waiting.
func (ctrl *LoopControl) HasPendingWork() bool {
	return ctrl.pendingUserInput || ctrl.shutdownRequested || ctrl.compactRequested
}

// IsShutdown returns true if a shutdown has been requested.
func (ctrl *LoopControl) IsShutdown() bool { return ctrl.shutdownRequested }

// IsInterrupted returns true if the current turn has been interrupted.
func (ctrl *LoopControl) IsInterrupted() bool { return ctrl.interrupted }

// IsCompactRequested returns true if manual compaction was requested.
func (ctrl *LoopControl) IsCompactRequested() bool { return ctrl.compactRequested }

// IsDraining returns true if the run is draining toward ContinueAsNew.
func (ctrl *LoopControl) IsDraining() bool { return ctrl.draining }

// ClearCompactRequested marks the compact request as handled.
func (ctrl *LoopControl) ClearCompactRequested() {
	ctrl.compactRequested = false
}

// StartTurn resets per-turn flags at the start of each turn.
func (ctrl *LoopControl) StartTurn() {
	ctrl.pendingUserInput = false
	ctrl.interrupted = false
}

// WaitForInput blocks until user input, shutdown, or compaction is
// requested, or the idle timeout fires. Returns (timedOut, error).
func (ctrl *LoopControl) WaitForInput(ctx workflow.Context) (bool, error) {
	ok, err := workflow.AwaitWithTimeout(ctx, sessionIdleTimeout, ctrl.HasPendingWork)
	if err != nil {
		return false, fmt.Errorf("input await failed: %w", err)
	}
	return !ok, nil
}

// AwaitApproval publishes the pending approvals, blocks until a response
// arrives or the turn is interrupted, then returns the response. Returns
// nil when interrupted or shut down before a response arrived.
func (ctrl *LoopControl) AwaitApproval(ctx workflow.Context, needsApproval []PendingApproval) (*ApprovalResponse, error) {
	logger := workflow.GetLogger(ctx)

	ctrl.SetPhase(PhaseApprovalPending)
	ctrl.pendingApprovals = needsApproval
	ctrl.approvalSlot.clear()
	ctrl.bumpVersion()

	logger.Info("Waiting for tool approval", "count", len(needsApproval))

	err := workflow.Await(ctx, func() bool {
		return ctrl.approvalSlot.Ready() || ctrl.interrupted || ctrl.shutdownRequested
	})
	if err != nil {
		return nil, fmt.Errorf("approval await failed: %w", err)
	}

	ctrl.pendingApprovals = nil
	ctrl.bumpVersion()

	if ctrl.interrupted || ctrl.shutdownRequested {
		logger.Info("Approval wait interrupted")
		return nil, nil
	}
	return ctrl.approvalSlot.Take(), nil
}

func (ctrl *LoopControl) bumpVersion() { ctrl.stateVersion++ }
