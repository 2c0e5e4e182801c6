package llm

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"steward/internal/models"
)

func TestIsOpenAIChatModel(t *testing.T) {
	tests := []struct {
		id   string
		want bool
	}{
		{"gpt-4o", true},
		{"gpt-4.1", true},
		{"gpt-5", true},
		{"gpt-5-mini", true},
		{"o3-mini", true},
		{"chatgpt-4o-latest", true},

		{"text-embedding-3-small", false},
		{"dall-e-3", false},
		{"whisper-1", false},
		{"tts-1", false},
		{"gpt-4o-mini-tts", false},
		{"gpt-4o-realtime-preview", false},
		{"gpt-4o-audio-preview", false},
		{"gpt-3.5-turbo-instruct", false},
		{"ft:gpt-4o:org::abc123", false},

		// snapshot dates are excluded
		{"gpt-4o-2024-08-06", false},
		{"gpt-3.5-turbo-0613", false},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, isOpenAIChatModel(tt.id), "model %q", tt.id)
	}
}

func TestResolveModelConfigKnownModel(t *testing.T) {
	cfg := ResolveModelConfig(models.ModelConfig{
		Provider: "anthropic",
		Model:    "claude-sonnet-4-5",
	})
	assert.Equal(t, 200_000, cfg.ContextWindow)
	assert.Equal(t, 8192, cfg.MaxTokens)
}

func TestResolveModelConfigUnknownModelFallsBack(t *testing.T) {
	cfg := ResolveModelConfig(models.ModelConfig{
		Provider: "openai",
		Model:    "experimental-model",
	})
	assert.Equal(t, fallbackContextWindow, cfg.ContextWindow)
	assert.Equal(t, fallbackMaxTokens, cfg.MaxTokens)
}

func TestResolveModelConfigKeepsExplicitValues(t *testing.T) {
	cfg := ResolveModelConfig(models.ModelConfig{
		Provider:      "anthropic",
		Model:         "claude-sonnet-4-5",
		ContextWindow: 50_000,
		MaxTokens:     1024,
	})
	assert.Equal(t, 50_000, cfg.ContextWindow)
	assert.Equal(t, 1024, cfg.MaxTokens)
}
