package models

import (
	"fmt"

	"go.temporal.io/sdk/temporal"
)

// Error type names carried in temporal.ApplicationError.Type().
// Workflow code switches on these; it never parses error messages.
const (
	LLMErrTypeTransient       = "LLMTransient"
	LLMErrTypeContextOverflow = "LLMContextOverflow"
	LLMErrTypeAPILimit        = "LLMAPILimit"
	LLMErrTypeFatal           = "LLMFatal"

	ToolErrTypeValidation = "ToolValidation"
	ToolErrTypeTransient  = "ToolTransient"

	// SandboxErrTypeUnavailable signals the isolation boundary could not be
	// established. The orchestrator fails closed on this type.
	SandboxErrTypeUnavailable = "SandboxUnavailable"
)

// ToolErrorDetails is the structured detail payload attached to tool
// activity errors so the workflow can surface a corrective message to the
// model without parsing error strings.
type ToolErrorDetails struct {
	Reason string `json:"reason"`
	// Hint, if set, tells the model how to fix the call (missing argument,
	// wrong type, retry later).
	Hint string `json:"hint,omitempty"`
}

// ActivityError is a classified error raised by activity-side code before
// it is converted to a temporal.ApplicationError at the activity boundary.
type ActivityError struct {
	Type      string `json:"type"`
	Retryable bool   `json:"retryable"`
	Message   string `json:"message"`
}

func (e *ActivityError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Type, e.Message)
}

// NewTransientError creates a retryable transient LLM error.
func NewTransientError(message string) *ActivityError {
	return &ActivityError{Type: LLMErrTypeTransient, Retryable: true, Message: message}
}

// NewContextOverflowError creates a context-window-exceeded error.
func NewContextOverflowError(message string) *ActivityError {
	return &ActivityError{Type: LLMErrTypeContextOverflow, Retryable: false, Message: message}
}

// NewAPILimitError creates a rate-limit error.
func NewAPILimitError(message string) *ActivityError {
	return &ActivityError{Type: LLMErrTypeAPILimit, Retryable: true, Message: message}
}

// NewFatalError creates an unrecoverable error.
func NewFatalError(message string) *ActivityError {
	return &ActivityError{Type: LLMErrTypeFatal, Retryable: false, Message: message}
}

// WrapActivityError converts an ActivityError into a temporal.ApplicationError
// so the type classification crosses the activity boundary intact.
func WrapActivityError(err *ActivityError) error {
	if err.Retryable {
		return temporal.NewApplicationError(err.Message, err.Type)
	}
	return temporal.NewNonRetryableApplicationError(err.Message, err.Type, nil)
}
