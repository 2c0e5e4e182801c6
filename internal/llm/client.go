// Package llm provides the provider clients behind the model inference
// activities.
package llm

import (
	"context"
	"fmt"
	"net/http"

	"steward/internal/models"
	"steward/internal/tools"
)

// LLMRequest is one model inference request.
type LLMRequest struct {
	History     []models.ConversationItem `json:"history"`
	ModelConfig models.ModelConfig        `json:"model_config"`
	ToolSpecs   []tools.ToolSpec          `json:"tool_specs"`

	// Instruction tiers, assembled once per session.
	BaseInstructions     string `json:"base_instructions,omitempty"`
	PersonalInstructions string `json:"personal_instructions,omitempty"`
}

// LLMResponse carries the assistant items produced by one request.
type LLMResponse struct {
	Items        []models.ConversationItem `json:"items"`
	FinishReason models.FinishReason       `json:"finish_reason"`
	TokenUsage   models.TokenUsage         `json:"token_usage"`
}

// CompactRequest asks the model to summarize a span of history.
type CompactRequest struct {
	ModelConfig  models.ModelConfig        `json:"model_config"`
	Input        []models.ConversationItem `json:"input"`
	Instructions string                    `json:"instructions"`
}

// CompactResponse is the produced summary.
type CompactResponse struct {
	Summary    string            `json:"summary"`
	TokenUsage models.TokenUsage `json:"token_usage"`
}

// LLMClient is implemented per provider.
type LLMClient interface {
	Call(ctx context.Context, request LLMRequest) (LLMResponse, error)
	Compact(ctx context.Context, request CompactRequest) (CompactResponse, error)
}

// classifyByStatusCode maps an HTTP status to a classified activity error.
// 429 is a rate limit, 408/409 and 5xx are transient, and the remaining
// 4xx are fatal client errors.
func classifyByStatusCode(statusCode int, err error) *models.ActivityError {
	switch {
	case statusCode == http.StatusTooManyRequests:
		return models.NewAPILimitError(fmt.Sprintf("rate limit (%d): %v", statusCode, err))
	case statusCode == http.StatusRequestTimeout || statusCode == http.StatusConflict:
		return models.NewTransientError(fmt.Sprintf("retryable error (%d): %v", statusCode, err))
	case statusCode >= 400 && statusCode < 500:
		return models.NewFatalError(fmt.Sprintf("client error (%d): %v", statusCode, err))
	case statusCode >= 500:
		return models.NewTransientError(fmt.Sprintf("server error (%d): %v", statusCode, err))
	default:
		return models.NewTransientError(fmt.Sprintf("unexpected status (%d): %v", statusCode, err))
	}
}
