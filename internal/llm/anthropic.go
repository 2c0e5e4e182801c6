package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"steward/internal/models"
	"steward/internal/tools"
)

// AnthropicClient implements LLMClient over the Anthropic Messages API.
type AnthropicClient struct {
	client anthropic.Client
}

// NewAnthropicClient creates an Anthropic client from the environment.
func NewAnthropicClient() *AnthropicClient {
	return &AnthropicClient{
		client: anthropic.NewClient(option.WithAPIKey(os.Getenv("ANTHROPIC_API_KEY"))),
	}
}

// Call sends one inference request and converts the response into
// conversation items.
func (c *AnthropicClient) Call(ctx context.Context, request LLMRequest) (LLMResponse, error) {
	cfg := ResolveModelConfig(request.ModelConfig)

	messages, err := historyToMessages(request.History)
	if err != nil {
		return LLMResponse{}, fmt.Errorf("build messages: %w", err)
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(cfg.Model),
		MaxTokens: int64(cfg.MaxTokens),
		System:    systemBlocks(request),
		Messages:  messages,
	}
	if cfg.Temperature > 0 {
		params.Temperature = anthropic.Float(cfg.Temperature)
	}
	if len(request.ToolSpecs) > 0 {
		params.Tools = anthropicToolDefs(request.ToolSpecs)
	}

	response, err := c.client.Messages.New(ctx, params)
	if err != nil {
		return LLMResponse{}, classifyAnthropicError(err)
	}

	items, finishReason := parseAnthropicResponse(response)
	return LLMResponse{
		Items:        items,
		FinishReason: finishReason,
		TokenUsage: models.TokenUsage{
			PromptTokens:     int(response.Usage.InputTokens),
			CompletionTokens: int(response.Usage.OutputTokens),
			TotalTokens:      int(response.Usage.InputTokens + response.Usage.OutputTokens),
			CachedTokens:     int(response.Usage.CacheReadInputTokens),
		},
	}, nil
}

// Compact asks the model to summarize a span of history. The summarizer
// prompt arrives in request.Instructions; the history is rendered as a
// single untrusted-data block.
func (c *AnthropicClient) Compact(ctx context.Context, request CompactRequest) (CompactResponse, error) {
	cfg := ResolveModelConfig(request.ModelConfig)

	response, err := c.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(cfg.Model),
		MaxTokens: int64(cfg.MaxTokens),
		System: []anthropic.TextBlockParam{{
			Text: request.Instructions,
		}},
		Messages: []anthropic.MessageParam{{
			Role: anthropic.MessageParamRoleUser,
			Content: []anthropic.ContentBlockParamUnion{{
				OfText: &anthropic.TextBlockParam{Text: RenderHistoryForSummary(request.Input)},
			}},
		}},
	})
	if err != nil {
		return CompactResponse{}, classifyAnthropicError(err)
	}

	var sb strings.Builder
	for _, block := range response.Content {
		if block.Type == "text" {
			sb.WriteString(block.AsText().Text)
		}
	}

	return CompactResponse{
		Summary: sb.String(),
		TokenUsage: models.TokenUsage{
			PromptTokens:     int(response.Usage.InputTokens),
			CompletionTokens: int(response.Usage.OutputTokens),
			TotalTokens:      int(response.Usage.InputTokens + response.Usage.OutputTokens),
		},
	}, nil
}

// systemBlocks builds the cached system prompt: base instructions first,
// then the user's personal instructions.
func systemBlocks(request LLMRequest) []anthropic.TextBlockParam {
	var blocks []anthropic.TextBlockParam
	for _, text := range []string{request.BaseInstructions, request.PersonalInstructions} {
		if text == "" {
			continue
		}
		blocks = append(blocks, anthropic.TextBlockParam{
			Text: text,
			CacheControl: anthropic.CacheControlEphemeralParam{
				TTL: anthropic.CacheControlEphemeralTTLTTL5m,
			},
		})
	}
	return blocks
}

// historyToMessages converts the conversation sequence into Anthropic's
// alternating message format: tool calls ride in assistant content, tool
// results in user content, and orchestrator notes become user text.
func historyToMessages(history []models.ConversationItem) ([]anthropic.MessageParam, error) {
	var messages []anthropic.MessageParam

	i := 0
	for i < len(history) {
		item := history[i]

		switch item.Type {
		case models.ItemTypeUserMessage, models.ItemTypeSystemNote, models.ItemTypeCompactionSummary:
			messages = append(messages, anthropic.MessageParam{
				Role: anthropic.MessageParamRoleUser,
				Content: []anthropic.ContentBlockParamUnion{{
					OfText: &anthropic.TextBlockParam{Text: item.Content},
				}},
			})
			i++

		case models.ItemTypeAssistantMessage, models.ItemTypeFunctionCall:
			var content []anthropic.ContentBlockParamUnion
			if item.Type == models.ItemTypeAssistantMessage {
				if item.Content != "" {
					content = append(content, anthropic.ContentBlockParamUnion{
						OfText: &anthropic.TextBlockParam{Text: item.Content},
					})
				}
				i++
			}
			for i < len(history) && history[i].Type == models.ItemTypeFunctionCall {
				call := history[i]
				var input map[string]interface{}
				if err := json.Unmarshal([]byte(call.Arguments), &input); err != nil {
					return nil, fmt.Errorf("parse arguments for %s: %w", call.Name, err)
				}
				content = append(content, anthropic.ContentBlockParamUnion{
					OfToolUse: &anthropic.ToolUseBlockParam{
						ID:    call.CallID,
						Name:  call.Name,
						Input: input,
					},
				})
				i++
			}
			if len(content) > 0 {
				messages = append(messages, anthropic.MessageParam{
					Role:    anthropic.MessageParamRoleAssistant,
					Content: content,
				})
			}

		case models.ItemTypeFunctionCallOutput:
			isError := item.Output != nil && item.Output.Success != nil && !*item.Output.Success
			text := ""
			if item.Output != nil {
				text = item.Output.Content
			}
			messages = append(messages, anthropic.MessageParam{
				Role: anthropic.MessageParamRoleUser,
				Content: []anthropic.ContentBlockParamUnion{{
					OfToolResult: &anthropic.ToolResultBlockParam{
						ToolUseID: item.CallID,
						Content: []anthropic.ToolResultBlockParamContentUnion{{
							OfText: &anthropic.TextBlockParam{Text: text},
						}},
						IsError: anthropic.Bool(isError),
					},
				}},
			})
			i++

		default:
			// turn markers are internal only
			i++
		}
	}
	return messages, nil
}

func anthropicToolDefs(specs []tools.ToolSpec) []anthropic.ToolUnionParam {
	defs := make([]anthropic.ToolUnionParam, 0, len(specs))
	for _, spec := range specs {
		if spec.RawJSONSchema != nil {
			schema := anthropic.ToolInputSchemaParam{}
			if props, ok := spec.RawJSONSchema["properties"].(map[string]interface{}); ok {
				schema.Properties = props
			}
			if req, ok := spec.RawJSONSchema["required"].([]interface{}); ok {
				for _, r := range req {
					if s, ok := r.(string); ok {
						schema.Required = append(schema.Required, s)
					}
				}
			}
			defs = append(defs, anthropic.ToolUnionParam{
				OfTool: &anthropic.ToolParam{
					Name:        spec.Name,
					Description: anthropic.String(spec.Description),
					InputSchema: schema,
				},
			})
			continue
		}

		properties := make(map[string]interface{})
		var required []string
		for _, p := range spec.Parameters {
			prop := map[string]interface{}{
				"type":        p.Type,
				"description": p.Description,
			}
			if p.Items != nil {
				prop["items"] = p.Items
			}
			properties[p.Name] = prop
			if p.Required {
				required = append(required, p.Name)
			}
		}

		schema := anthropic.ToolInputSchemaParam{Properties: properties}
		if len(required) > 0 {
			schema.Required = required
		}

		defs = append(defs, anthropic.ToolUnionParam{
			OfTool: &anthropic.ToolParam{
				Name:        spec.Name,
				Description: anthropic.String(spec.Description),
				InputSchema: schema,
			},
		})
	}
	return defs
}

func parseAnthropicResponse(response *anthropic.Message) ([]models.ConversationItem, models.FinishReason) {
	var items []models.ConversationItem
	finishReason := models.FinishReasonStop

	for _, block := range response.Content {
		switch block.Type {
		case "text":
			if text := block.AsText().Text; text != "" {
				items = append(items, models.ConversationItem{
					Type:    models.ItemTypeAssistantMessage,
					Content: text,
				})
			}
		case "tool_use":
			toolUse := block.AsToolUse()
			args, err := json.Marshal(toolUse.Input)
			if err != nil {
				args = []byte("{}")
			}
			items = append(items, models.ConversationItem{
				Type:      models.ItemTypeFunctionCall,
				CallID:    toolUse.ID,
				Name:      toolUse.Name,
				Arguments: string(args),
			})
		}
	}

	if len(items) == 0 {
		items = append(items, models.ConversationItem{Type: models.ItemTypeAssistantMessage})
	}

	switch response.StopReason {
	case anthropic.StopReasonToolUse:
		finishReason = models.FinishReasonToolCalls
	case anthropic.StopReasonMaxTokens:
		finishReason = models.FinishReasonLength
	}
	return items, finishReason
}

// classifyAnthropicError maps an API error to a classified activity error.
func classifyAnthropicError(err error) error {
	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "context_length") || strings.Contains(msg, "too many tokens") ||
		strings.Contains(msg, "prompt is too long") {
		return models.NewContextOverflowError(err.Error())
	}
	if apiErr, ok := err.(*anthropic.Error); ok {
		return classifyByStatusCode(apiErr.StatusCode, err)
	}
	if strings.Contains(msg, "rate limit") || strings.Contains(msg, "rate_limit") {
		return models.NewAPILimitError(err.Error())
	}
	return models.NewTransientError(fmt.Sprintf("anthropic api error: %v", err))
}
