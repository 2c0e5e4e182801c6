package cli

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDetectProvider(t *testing.T) {
	assert.Equal(t, "anthropic", DetectProvider("claude-sonnet-4-5"))
	assert.Equal(t, "anthropic", DetectProvider("Claude-Opus-4"))
	assert.Equal(t, "openai", DetectProvider("gpt-4o-mini"))
	assert.Equal(t, "openai", DetectProvider("o3-mini"))
	assert.Equal(t, "openai", DetectProvider("chatgpt-4o-latest"))
	assert.Equal(t, "anthropic", DetectProvider("something-else"))
}

func TestClassifyPollErrorByMessage(t *testing.T) {
	assert.Equal(t, pollErrorCompleted,
		classifyPollError(errCompleted{}))
	assert.Equal(t, pollErrorFatal,
		classifyPollError(errOther{}))
}

type errCompleted struct{}

func (errCompleted) Error() string { return "workflow execution already completed" }

type errOther struct{}

func (errOther) Error() string { return "connection refused" }
