package llm

import (
	"context"
	"os"
	"sort"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	anthropicopt "github.com/anthropics/anthropic-sdk-go/option"
	openai "github.com/openai/openai-go/v3"
	openaiopt "github.com/openai/openai-go/v3/option"

	"steward/internal/models"
)

// KnownModel describes a model the assistant can run on.
type KnownModel struct {
	Provider      string `json:"provider"`
	ID            string `json:"id"`
	DisplayName   string `json:"display_name,omitempty"`
	ContextWindow int    `json:"context_window"`
	MaxTokens     int    `json:"max_tokens"`
}

// knownModels is the static registry used to resolve context windows and
// generation defaults. Unknown models fall back to conservative values.
var knownModels = []KnownModel{
	{Provider: "anthropic", ID: "claude-sonnet-4-5", DisplayName: "Claude Sonnet 4.5", ContextWindow: 200_000, MaxTokens: 8192},
	{Provider: "anthropic", ID: "claude-opus-4-1", DisplayName: "Claude Opus 4.1", ContextWindow: 200_000, MaxTokens: 8192},
	{Provider: "anthropic", ID: "claude-haiku-4-5", DisplayName: "Claude Haiku 4.5", ContextWindow: 200_000, MaxTokens: 8192},
	{Provider: "openai", ID: "gpt-5", ContextWindow: 400_000, MaxTokens: 16384},
	{Provider: "openai", ID: "gpt-5-mini", ContextWindow: 400_000, MaxTokens: 16384},
	{Provider: "openai", ID: "gpt-4.1", ContextWindow: 1_000_000, MaxTokens: 16384},
	{Provider: "openai", ID: "gpt-4o", ContextWindow: 128_000, MaxTokens: 8192},
}

const (
	fallbackContextWindow = 128_000
	fallbackMaxTokens     = 4096
)

// LookupModel returns the registry entry for a model ID, if known.
func LookupModel(provider, id string) (KnownModel, bool) {
	for _, m := range knownModels {
		if m.Provider == provider && m.ID == id {
			return m, true
		}
	}
	return KnownModel{}, false
}

// ResolveModelConfig fills the zero-valued fields of a model configuration
// from the registry.
func ResolveModelConfig(cfg models.ModelConfig) models.ModelConfig {
	known, ok := LookupModel(cfg.Provider, cfg.Model)
	if cfg.ContextWindow <= 0 {
		if ok {
			cfg.ContextWindow = known.ContextWindow
		} else {
			cfg.ContextWindow = fallbackContextWindow
		}
	}
	if cfg.MaxTokens <= 0 {
		if ok {
			cfg.MaxTokens = known.MaxTokens
		} else {
			cfg.MaxTokens = fallbackMaxTokens
		}
	}
	return cfg
}

// FetchAvailableModels queries each provider's list-models API, skipping
// providers without an API key. Returns (nil, nil) when nothing could be
// fetched so callers fall back to the static registry.
func FetchAvailableModels(ctx context.Context) ([]KnownModel, error) {
	var all []KnownModel

	if key := os.Getenv("OPENAI_API_KEY"); key != "" {
		if fetched, err := fetchOpenAIModels(ctx, key); err == nil {
			all = append(all, fetched...)
		}
	}
	if key := os.Getenv("ANTHROPIC_API_KEY"); key != "" {
		if fetched, err := fetchAnthropicModels(ctx, key); err == nil {
			all = append(all, fetched...)
		}
	}
	if len(all) == 0 {
		return nil, nil
	}

	sort.Slice(all, func(i, j int) bool {
		if all[i].Provider != all[j].Provider {
			return all[i].Provider < all[j].Provider
		}
		return all[i].ID < all[j].ID
	})
	return all, nil
}

func fetchOpenAIModels(ctx context.Context, apiKey string) ([]KnownModel, error) {
	client := openai.NewClient(openaiopt.WithAPIKey(apiKey))
	page, err := client.Models.List(ctx)
	if err != nil {
		return nil, err
	}

	var result []KnownModel
	for _, m := range page.Data {
		if isOpenAIChatModel(m.ID) {
			result = append(result, KnownModel{Provider: "openai", ID: m.ID})
		}
	}
	return result, nil
}

// isOpenAIChatModel filters the model listing down to chat-capable models,
// dropping embeddings, audio, image, date-pinned snapshots, and
// specialized variants.
func isOpenAIChatModel(id string) bool {
	if strings.HasPrefix(id, "ft:") {
		return false
	}
	for _, sub := range []string{"-tts", "-realtime", "-transcribe", "-instruct",
		"-audio", "-search", "-deep-research", "embedding", "whisper", "dall-e", "moderation"} {
		if strings.Contains(id, sub) {
			return false
		}
	}
	chat := false
	for _, prefix := range []string{"gpt-", "o1", "o3", "o4", "chatgpt-"} {
		if strings.HasPrefix(id, prefix) {
			chat = true
			break
		}
	}
	if !chat {
		return false
	}
	return !hasDateStamp(id)
}

// hasDateStamp detects "-20XX-" snapshot dates and legacy "-0613" style
// suffixes.
func hasDateStamp(id string) bool {
	for i := 0; i+5 < len(id); i++ {
		if id[i] == '-' && id[i+1] == '2' && id[i+2] == '0' &&
			isDigit(id[i+3]) && isDigit(id[i+4]) && id[i+5] == '-' {
			return true
		}
	}
	lastDash := strings.LastIndexByte(id, '-')
	if lastDash >= 0 {
		suffix := id[lastDash+1:]
		if len(suffix) >= 4 && allDigits(suffix) {
			return true
		}
	}
	return false
}

func isDigit(b byte) bool { return b >= '0' && b <= '9' }

func allDigits(s string) bool {
	for i := 0; i < len(s); i++ {
		if !isDigit(s[i]) {
			return false
		}
	}
	return len(s) > 0
}

func fetchAnthropicModels(ctx context.Context, apiKey string) ([]KnownModel, error) {
	client := anthropic.NewClient(anthropicopt.WithAPIKey(apiKey))
	iter := client.Models.ListAutoPaging(ctx, anthropic.ModelListParams{})

	var result []KnownModel
	for iter.Next() {
		m := iter.Current()
		result = append(result, KnownModel{
			Provider:    "anthropic",
			ID:          m.ID,
			DisplayName: m.DisplayName,
		})
	}
	if err := iter.Err(); err != nil {
		return nil, err
	}
	return result, nil
}
