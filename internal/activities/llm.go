// Package activities contains the Temporal activity implementations the
// session workflow schedules: model inference, tool execution, MCP
// lifecycle, and session setup.
package activities

import (
	"context"
	"errors"

	"steward/internal/instructions"
	"steward/internal/llm"
	"steward/internal/models"
	"steward/internal/tools"
)

// LLMActivityInput is the input for one model inference call.
type LLMActivityInput struct {
	History     []models.ConversationItem `json:"history"`
	ModelConfig models.ModelConfig        `json:"model_config"`
	ToolSpecs   []tools.ToolSpec          `json:"tool_specs"`

	BaseInstructions     string `json:"base_instructions,omitempty"`
	PersonalInstructions string `json:"personal_instructions,omitempty"`
}

// LLMActivityOutput carries the items the model produced.
type LLMActivityOutput struct {
	Items        []models.ConversationItem `json:"items"`
	FinishReason models.FinishReason       `json:"finish_reason"`
	TokenUsage   models.TokenUsage         `json:"token_usage"`
}

// LLMActivities contains model inference activities.
type LLMActivities struct {
	client llm.LLMClient
}

// NewLLMActivities creates an LLMActivities instance.
func NewLLMActivities(client llm.LLMClient) *LLMActivities {
	return &LLMActivities{client: client}
}

// ExecuteLLMCall runs one inference request. Classified provider errors
// cross the activity boundary as typed application errors so the workflow
// can switch on the type.
func (a *LLMActivities) ExecuteLLMCall(ctx context.Context, input LLMActivityInput) (LLMActivityOutput, error) {
	response, err := a.client.Call(ctx, llm.LLMRequest{
		History:              input.History,
		ModelConfig:          input.ModelConfig,
		ToolSpecs:            input.ToolSpecs,
		BaseInstructions:     input.BaseInstructions,
		PersonalInstructions: input.PersonalInstructions,
	})
	if err != nil {
		var activityErr *models.ActivityError
		if errors.As(err, &activityErr) {
			return LLMActivityOutput{}, models.WrapActivityError(activityErr)
		}
		return LLMActivityOutput{}, err
	}

	return LLMActivityOutput{
		Items:        response.Items,
		FinishReason: response.FinishReason,
		TokenUsage:   response.TokenUsage,
	}, nil
}

// CompactActivityInput is the input for the history summarization call.
type CompactActivityInput struct {
	ModelConfig models.ModelConfig        `json:"model_config"`
	Input       []models.ConversationItem `json:"input"`

	// Instructions overrides the default summarizer prompt when set.
	Instructions string `json:"instructions,omitempty"`
}

// CompactActivityOutput is the produced summary.
type CompactActivityOutput struct {
	Summary    string            `json:"summary"`
	TokenUsage models.TokenUsage `json:"token_usage"`
}

// ExecuteCompact summarizes a span of history for compaction.
func (a *LLMActivities) ExecuteCompact(ctx context.Context, input CompactActivityInput) (CompactActivityOutput, error) {
	prompt := input.Instructions
	if prompt == "" {
		prompt = instructions.SummarizerInstructions
	}

	response, err := a.client.Compact(ctx, llm.CompactRequest{
		ModelConfig:  input.ModelConfig,
		Input:        input.Input,
		Instructions: prompt,
	})
	if err != nil {
		var activityErr *models.ActivityError
		if errors.As(err, &activityErr) {
			return CompactActivityOutput{}, models.WrapActivityError(activityErr)
		}
		return CompactActivityOutput{}, err
	}

	return CompactActivityOutput{
		Summary:    response.Summary,
		TokenUsage: response.TokenUsage,
	}, nil
}
