package llm

import (
	"context"
	"fmt"
)

// MultiProviderClient dispatches to a provider client based on the request's
// ModelConfig.Provider, so one activity registration serves every provider.
type MultiProviderClient struct {
	openai    *OpenAIClient
	anthropic *AnthropicClient
}

// NewMultiProviderClient creates a client that can dispatch to every
// supported provider.
func NewMultiProviderClient() *MultiProviderClient {
	return &MultiProviderClient{
		openai:    NewOpenAIClient(),
		anthropic: NewAnthropicClient(),
	}
}

func (c *MultiProviderClient) resolve(provider string) (LLMClient, error) {
	switch provider {
	case "anthropic", "":
		return c.anthropic, nil
	case "openai":
		return c.openai, nil
	default:
		return nil, fmt.Errorf("unsupported provider: %s (supported: anthropic, openai)", provider)
	}
}

// Call dispatches an inference request to the configured provider.
func (c *MultiProviderClient) Call(ctx context.Context, request LLMRequest) (LLMResponse, error) {
	client, err := c.resolve(request.ModelConfig.Provider)
	if err != nil {
		return LLMResponse{}, err
	}
	return client.Call(ctx, request)
}

// Compact dispatches a summarization request to the configured provider.
func (c *MultiProviderClient) Compact(ctx context.Context, request CompactRequest) (CompactResponse, error) {
	client, err := c.resolve(request.ModelConfig.Provider)
	if err != nil {
		return CompactResponse{}, err
	}
	return client.Compact(ctx, request)
}
