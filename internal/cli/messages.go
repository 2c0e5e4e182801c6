package cli

import (
	"steward/internal/models"
	"steward/internal/workflow"
)

// WorkflowStartedMsg is sent when a session has been started or resumed.
type WorkflowStartedMsg struct {
	WorkflowID string
	Items      []models.ConversationItem // Non-nil only for resume
	Status     workflow.TurnStatus       // Non-zero only for resume
	IsResume   bool
}

// WorkflowStartErrorMsg is sent when starting/resuming a session fails.
type WorkflowStartErrorMsg struct {
	Err error
}

// PollResultMsg wraps a PollResult from the polling goroutine.
type PollResultMsg struct {
	Result PollResult
}

// UserInputSentMsg is sent after user input has been accepted by the session.
type UserInputSentMsg struct {
	TurnID string
}

// UserInputErrorMsg is sent when sending user input fails.
type UserInputErrorMsg struct {
	Err error
}

// InterruptSentMsg is sent after an interrupt has been acknowledged.
type InterruptSentMsg struct{}

// InterruptErrorMsg is sent when sending an interrupt fails.
type InterruptErrorMsg struct {
	Err error
}

// ShutdownSentMsg is sent after a shutdown has been acknowledged.
type ShutdownSentMsg struct{}

// ShutdownErrorMsg is sent when sending a shutdown fails.
type ShutdownErrorMsg struct {
	Err error
}

// ApprovalSentMsg is sent after an approval response has been delivered.
type ApprovalSentMsg struct{}

// ApprovalErrorMsg is sent when sending an approval response fails.
type ApprovalErrorMsg struct {
	Err error
}

// CompactSentMsg is sent after a compact request has been acknowledged.
type CompactSentMsg struct{}

// CompactErrorMsg is sent when requesting compaction fails.
type CompactErrorMsg struct {
	Err error
}

// ConsentSentMsg is sent after unsandboxed-execution consent has been
// recorded by the session.
type ConsentSentMsg struct{}

// ConsentErrorMsg is sent when recording consent fails.
type ConsentErrorMsg struct {
	Err error
}

// SessionCompletedMsg is sent when the session workflow completes.
type SessionCompletedMsg struct {
	Result *workflow.WorkflowResult // nil if unavailable
}

// SessionErrorMsg is sent when the session encounters an unrecoverable error.
type SessionErrorMsg struct {
	Err error
}
