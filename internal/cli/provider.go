package cli

import "strings"

// DetectProvider returns the provider name inferred from a model name.
// Returns "anthropic" for Claude models, "openai" for GPT/o-series models,
// and "anthropic" as the fallback default.
func DetectProvider(model string) string {
	m := strings.ToLower(model)

	if strings.HasPrefix(m, "claude-") {
		return "anthropic"
	}

	if strings.HasPrefix(m, "gpt-") {
		return "openai"
	}
	if strings.HasPrefix(m, "o1") || strings.HasPrefix(m, "o3") || strings.HasPrefix(m, "o4") {
		return "openai"
	}
	if strings.HasPrefix(m, "chatgpt-") {
		return "openai"
	}

	return "anthropic"
}
