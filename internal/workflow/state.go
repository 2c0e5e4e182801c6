// state.go defines the handler names, the Update/Query payload types, and
// SessionState, the serializable session data passed through ContinueAsNew.
package workflow

import (
	"fmt"

	"steward/internal/history"
	"steward/internal/models"
	"steward/internal/tools"
)

// Handler name constants for Temporal query and update handlers.
const (
	// QueryGetConversationItems returns the full conversation history.
	QueryGetConversationItems = "get_conversation_items"

	// QueryGetTurnStatus returns the current turn phase and counters.
	QueryGetTurnStatus = "get_turn_status"

	// UpdateUserInput submits a new user message, starting a turn.
	UpdateUserInput = "user_input"

	// UpdateInterrupt aborts the current turn.
	UpdateInterrupt = "interrupt"

	// UpdateShutdown ends the session.
	UpdateShutdown = "shutdown"

	// UpdateApprovalResponse submits the user's approval decisions for
	// pending tool calls.
	UpdateApprovalResponse = "approval_response"

	// UpdateCompact triggers manual context compaction.
	UpdateCompact = "compact"

	// UpdateAllowUnsandboxed records one-time consent to run commands
	// without isolation on a host that cannot sandbox.
	UpdateAllowUnsandboxed = "allow_unsandboxed"

	// UpdateGetStateUpdate is a blocking long-poll that returns item
	// deltas plus status once state changes.
	UpdateGetStateUpdate = "get_state_update"
)

// TurnPhase indicates the current phase of the session.
type TurnPhase string

const (
	PhaseWaitingForInput TurnPhase = "waiting_for_input"
	PhaseLLMCalling      TurnPhase = "llm_calling"
	PhaseToolExecuting   TurnPhase = "tool_executing"
	PhaseApprovalPending TurnPhase = "approval_pending"
	PhaseCompacting      TurnPhase = "compacting"
	PhaseDelegating      TurnPhase = "delegating"
)

// TurnStatus is the response from the get_turn_status query.
type TurnStatus struct {
	Phase             TurnPhase         `json:"phase"`
	CurrentTurnID     string            `json:"current_turn_id"`
	ToolsInFlight     []string          `json:"tools_in_flight,omitempty"`
	PendingApprovals  []PendingApproval `json:"pending_approvals,omitempty"`
	BudgetRemaining   int               `json:"budget_remaining"`
	TotalTokens       int               `json:"total_tokens"`
	TotalCachedTokens int               `json:"total_cached_tokens"`
	TurnCount         int               `json:"turn_count"`
	CompactionCount   int               `json:"compaction_count"`
	SandboxAvailable  bool              `json:"sandbox_available"`
	WorkerVersion     string            `json:"worker_version,omitempty"`
}

// WorkflowInput is the initial input to start a session.
type WorkflowInput struct {
	ConversationID string                      `json:"conversation_id"`
	UserMessage    string                      `json:"user_message,omitempty"`
	Config         models.SessionConfiguration `json:"config"`

	// Depth tracks delegation nesting. 0 = top-level session, 1 = focused
	// sub-task. Delegation is capped at one level.
	Depth int `json:"depth,omitempty"`
}

// UserInput is the payload for the user_input Update.
type UserInput struct {
	Content string `json:"content"`
}

// InterruptRequest is the payload for the interrupt Update.
type InterruptRequest struct{}

// InterruptResponse is returned by the interrupt Update.
type InterruptResponse struct {
	Acknowledged bool `json:"acknowledged"`
}

// ShutdownRequest is the payload for the shutdown Update.
type ShutdownRequest struct {
	Reason string `json:"reason,omitempty"`
}

// ShutdownResponse is returned by the shutdown Update.
type ShutdownResponse struct {
	Acknowledged bool `json:"acknowledged"`
}

// PendingApproval describes a tool call awaiting the user's decision.
type PendingApproval struct {
	CallID    string `json:"call_id"`
	ToolName  string `json:"tool_name"`
	Arguments string `json:"arguments"` // raw JSON string
	Reason    string `json:"reason,omitempty"`
}

// DeniedCall is one denied tool call with the user's stated reason. The
// reason is surfaced to the model in the failed tool result.
type DeniedCall struct {
	CallID string `json:"call_id"`
	Reason string `json:"reason,omitempty"`
}

// ApprovalResponse is the user's decision on pending tool approvals.
type ApprovalResponse struct {
	Approved []string     `json:"approved,omitempty"`
	Denied   []DeniedCall `json:"denied,omitempty"`

	// ApproveAllSession approves the pending calls and every later call
	// in this session without further prompting.
	ApproveAllSession bool `json:"approve_all_session,omitempty"`

	// RememberApproved persists the approved shell command prefixes as
	// standing allow rules for future sessions.
	RememberApproved bool `json:"remember_approved,omitempty"`
}

// ApprovalResponseAck is returned by the approval_response Update.
type ApprovalResponseAck struct{}

// CompactRequest is the payload for the compact Update.
type CompactRequest struct{}

// CompactResponse is returned by the compact Update.
type CompactResponse struct {
	Acknowledged bool `json:"acknowledged"`
}

// AllowUnsandboxedRequest is the payload for the allow_unsandboxed Update.
type AllowUnsandboxedRequest struct{}

// AllowUnsandboxedResponse is returned by the allow_unsandboxed Update.
type AllowUnsandboxedResponse struct {
	Acknowledged bool `json:"acknowledged"`
}

// StateUpdateRequest is the payload for the get_state_update long-poll.
type StateUpdateRequest struct {
	// SinceSeq is the Seq of the last item the caller has seen; -1 for none.
	SinceSeq int `json:"since_seq"`
	// SincePhase is the phase the caller last observed.
	SincePhase TurnPhase `json:"since_phase,omitempty"`
}

// StateUpdateResponse carries new items and the current status.
type StateUpdateResponse struct {
	TurnID string                    `json:"turn_id,omitempty"`
	Items  []models.ConversationItem `json:"items,omitempty"`
	Status TurnStatus                `json:"status"`

	// Compacted signals that the sequence space was reset and the caller
	// must re-render from scratch.
	Compacted bool `json:"compacted,omitempty"`

	// Completed signals that the session has shut down.
	Completed bool `json:"completed,omitempty"`
}

// WorkflowResult is the final result of a session workflow.
type WorkflowResult struct {
	ConversationID    string   `json:"conversation_id"`
	TotalTurns        int      `json:"total_turns"`
	TotalTokens       int      `json:"total_tokens"`
	TotalCachedTokens int      `json:"total_cached_tokens"`
	ToolCallsExecuted []string `json:"tool_calls_executed,omitempty"`
	EndReason         string   `json:"end_reason,omitempty"` // "shutdown", "error"

	// FinalMessage is the last assistant message, used by a parent
	// workflow to read a delegated sub-task's result.
	FinalMessage string `json:"final_message,omitempty"`
}

// SessionState is the serializable session data passed through
// ContinueAsNew. Temporal coordination state (phase, response slots,
// pending flags) lives in LoopControl, constructed fresh each run.
type SessionState struct {
	ConversationID string                      `json:"conversation_id"`
	History        history.ContextManager      `json:"-"`
	HistoryItems   []models.ConversationItem   `json:"history_items"`
	ToolSpecs      []tools.ToolSpec            `json:"tool_specs"`
	Config         models.SessionConfiguration `json:"config"`

	// Depth is the delegation nesting level of this workflow.
	Depth int `json:"depth,omitempty"`

	// McpToolLookup maps qualified MCP tool names to server routing info.
	McpToolLookup map[string]tools.McpToolRef `json:"mcp_tool_lookup,omitempty"`

	// ReadOnlyMcpTools marks MCP tools the servers annotate as read-only;
	// their calls skip the approval gate.
	ReadOnlyMcpTools map[string]bool `json:"read_only_mcp_tools,omitempty"`

	// SandboxAvailable reports whether the worker can confine commands.
	SandboxAvailable bool `json:"sandbox_available"`

	// UnsandboxedConsent is the user's one-time consent to execute
	// without isolation. Never granted implicitly.
	UnsandboxedConsent bool `json:"unsandboxed_consent,omitempty"`

	// ApproveAllSession suppresses approval prompting for the rest of the
	// session once the user chose approve-all.
	ApproveAllSession bool `json:"approve_all_session,omitempty"`

	// TurnCounter generates turn IDs.
	TurnCounter int `json:"turn_counter"`

	CompactionCount int `json:"compaction_count"`

	// Memory recall debounce state.
	RequestsSinceRecall int    `json:"requests_since_recall"`
	LastRecallQuery     string `json:"last_recall_query,omitempty"`

	// Cumulative stats.
	TotalTokens       int      `json:"total_tokens"`
	TotalCachedTokens int      `json:"total_cached_tokens"`
	ToolCallsExecuted []string `json:"tool_calls_executed,omitempty"`
}

// nextTurnID generates the next turn identifier.
func (s *SessionState) nextTurnID() string {
	s.TurnCounter++
	return fmt.Sprintf("turn-%d", s.TurnCounter)
}

// initHistory restores the History interface from serialized HistoryItems
// after ContinueAsNew.
func (s *SessionState) initHistory() {
	h := history.NewInMemoryHistory()
	for _, item := range s.HistoryItems {
		_ = h.AddItem(item)
	}
	s.History = h
}

// syncHistoryItems copies history into HistoryItems for serialization
// before ContinueAsNew.
func (s *SessionState) syncHistoryItems() {
	items, _ := s.History.GetRawItems()
	s.HistoryItems = items
}

// lastAssistantMessage returns the content of the most recent assistant
// message, or empty when none exists.
func (s *SessionState) lastAssistantMessage() string {
	items, err := s.History.GetRawItems()
	if err != nil {
		return ""
	}
	for i := len(items) - 1; i >= 0; i-- {
		if items[i].Type == models.ItemTypeAssistantMessage && items[i].Content != "" {
			return items[i].Content
		}
	}
	return ""
}
