// Package models contains shared types for the steward assistant.
package models

// ConversationItemType enumerates the kinds of entries in a conversation
// sequence. Items are immutable once appended; compaction is the only
// operation that replaces them.
type ConversationItemType string

const (
	ItemTypeUserMessage        ConversationItemType = "user_message"
	ItemTypeAssistantMessage   ConversationItemType = "assistant_message"
	ItemTypeFunctionCall       ConversationItemType = "function_call"
	ItemTypeFunctionCallOutput ConversationItemType = "function_call_output"

	// ItemTypeSystemNote is an orchestrator-injected note: safety steering,
	// interruption markers, budget warnings, recalled memory. Never authored
	// by the user or the model.
	ItemTypeSystemNote ConversationItemType = "system_note"

	// ItemTypeCompactionSummary replaces a contiguous run of older items
	// after sliding-window compaction.
	ItemTypeCompactionSummary ConversationItemType = "compaction_summary"

	// Turn lifecycle markers, used by the frontend to segment rendering.
	ItemTypeTurnStarted  ConversationItemType = "turn_started"
	ItemTypeTurnComplete ConversationItemType = "turn_complete"
)

// FunctionCallOutputPayload is the result payload of a tool call.
// Success=false covers tool failure, denial, and synthetic closure alike;
// Content carries the distinguishing detail for the model.
type FunctionCallOutputPayload struct {
	Content string `json:"content"`
	Success *bool  `json:"success,omitempty"`
}

// ConversationItem is one entry in the conversation sequence. Different
// fields are populated depending on Type:
//
//	UserMessage / AssistantMessage / SystemNote / CompactionSummary: Content
//	FunctionCall:       CallID, Name, Arguments, RequiresApproval
//	FunctionCallOutput: CallID, Output
type ConversationItem struct {
	Type ConversationItemType `json:"type"`

	// Seq is a monotonically increasing sequence number assigned by history.
	// Used by the frontend to track which items have already been rendered.
	Seq int `json:"seq"`

	Content string `json:"content,omitempty"`

	CallID    string `json:"call_id,omitempty"`
	Name      string `json:"name,omitempty"`
	Arguments string `json:"arguments,omitempty"` // raw JSON string

	// RequiresApproval marks a side-effecting call that must pass the
	// approval gate before dispatch. Set from the tool spec at extraction.
	RequiresApproval bool `json:"requires_approval,omitempty"`

	Output *FunctionCallOutputPayload `json:"output,omitempty"`

	TurnID string `json:"turn_id,omitempty"`
}

// ToolCall is a parsed tool call ready for dispatch.
type ToolCall struct {
	CallID    string                 `json:"call_id"`
	Name      string                 `json:"name"`
	Arguments map[string]interface{} `json:"arguments"`
}

// FinishReason indicates why the model stopped generating.
type FinishReason string

const (
	FinishReasonStop          FinishReason = "stop"
	FinishReasonToolCalls     FinishReason = "tool_calls"
	FinishReasonLength        FinishReason = "length"
	FinishReasonContentFilter FinishReason = "content_filter"
)

// TokenUsage tracks token consumption per model request.
type TokenUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
	CachedTokens     int `json:"cached_tokens"`
}

// TurnOutcome is the terminal disposition of one turn.
type TurnOutcome string

const (
	TurnOutcomeContinue TurnOutcome = "continue" // final answer produced, session continues
	TurnOutcomeStop     TurnOutcome = "stop"     // turn force-stopped (budget, interrupt)
	TurnOutcomeError    TurnOutcome = "error"    // unrecoverable inference-backend error
	TurnOutcomeCompact  TurnOutcome = "compact"  // turn ended by an explicit compaction request
)
