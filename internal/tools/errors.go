package tools

import (
	"errors"
	"fmt"
)

// TransientError marks a failure worth retrying: network hiccups, busy
// resources, 5xx responses from a backing service.
type TransientError struct {
	Cause error
}

func (e *TransientError) Error() string {
	return fmt.Sprintf("transient error: %v", e.Cause)
}

func (e *TransientError) Unwrap() error {
	return e.Cause
}

// NewTransientError wraps an error as retryable.
func NewTransientError(cause error) *TransientError {
	return &TransientError{Cause: cause}
}

// ValidationError marks input that will never succeed on retry: missing or
// mistyped arguments, malformed values.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error: %s", e.Message)
}

// NewValidationError creates a non-retryable input error.
func NewValidationError(message string) *ValidationError {
	return &ValidationError{Message: message}
}

// NewValidationErrorf creates a non-retryable input error with formatting.
func NewValidationErrorf(format string, args ...interface{}) *ValidationError {
	return &ValidationError{Message: fmt.Sprintf(format, args...)}
}

// IsTransientError reports whether err is retryable.
func IsTransientError(err error) bool {
	var te *TransientError
	return errors.As(err, &te)
}

// IsValidationError reports whether err is a non-retryable input error.
func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
