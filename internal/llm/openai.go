package llm

import (
	"context"
	"fmt"
	"os"
	"strings"

	openai "github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/openai/openai-go/v3/responses"
	"github.com/openai/openai-go/v3/shared"

	"steward/internal/models"
	"steward/internal/tools"
)

// OpenAIClient implements LLMClient over the Responses API.
type OpenAIClient struct {
	client openai.Client
}

// NewOpenAIClient creates an OpenAI client from the environment.
func NewOpenAIClient() *OpenAIClient {
	return &OpenAIClient{
		client: openai.NewClient(option.WithAPIKey(os.Getenv("OPENAI_API_KEY"))),
	}
}

// Call sends one inference request and converts the response output into
// conversation items.
func (c *OpenAIClient) Call(ctx context.Context, request LLMRequest) (LLMResponse, error) {
	cfg := ResolveModelConfig(request.ModelConfig)

	params := responses.ResponseNewParams{
		Model: shared.ResponsesModel(cfg.Model),
		Input: responses.ResponseNewParamsInputUnion{
			OfInputItemList: responses.ResponseInputParam(historyToInput(request.History)),
		},
	}
	if instructions := joinInstructions(request.BaseInstructions, request.PersonalInstructions); instructions != "" {
		params.Instructions = openai.String(instructions)
	}
	if cfg.Temperature > 0 {
		params.Temperature = openai.Float(cfg.Temperature)
	}
	if cfg.MaxTokens > 0 {
		params.MaxOutputTokens = openai.Int(int64(cfg.MaxTokens))
	}
	if len(request.ToolSpecs) > 0 {
		params.Tools = openAIToolDefs(request.ToolSpecs)
	}

	response, err := c.client.Responses.New(ctx, params)
	if err != nil {
		return LLMResponse{}, classifyOpenAIError(err)
	}

	items, finishReason := parseOpenAIOutput(response)
	return LLMResponse{
		Items:        items,
		FinishReason: finishReason,
		TokenUsage: models.TokenUsage{
			PromptTokens:     int(response.Usage.InputTokens),
			CompletionTokens: int(response.Usage.OutputTokens),
			TotalTokens:      int(response.Usage.TotalTokens),
			CachedTokens:     int(response.Usage.InputTokensDetails.CachedTokens),
		},
	}, nil
}

// Compact asks the model to summarize a span of history.
func (c *OpenAIClient) Compact(ctx context.Context, request CompactRequest) (CompactResponse, error) {
	cfg := ResolveModelConfig(request.ModelConfig)

	params := responses.ResponseNewParams{
		Model:        shared.ResponsesModel(cfg.Model),
		Instructions: openai.String(request.Instructions),
		Input: responses.ResponseNewParamsInputUnion{
			OfString: openai.String(RenderHistoryForSummary(request.Input)),
		},
	}
	if cfg.MaxTokens > 0 {
		params.MaxOutputTokens = openai.Int(int64(cfg.MaxTokens))
	}

	response, err := c.client.Responses.New(ctx, params)
	if err != nil {
		return CompactResponse{}, classifyOpenAIError(err)
	}

	var sb strings.Builder
	for _, outputItem := range response.Output {
		if outputItem.Type != "message" {
			continue
		}
		for _, content := range outputItem.Content {
			if content.Type == "output_text" {
				sb.WriteString(content.Text)
			}
		}
	}

	return CompactResponse{
		Summary: sb.String(),
		TokenUsage: models.TokenUsage{
			PromptTokens:     int(response.Usage.InputTokens),
			CompletionTokens: int(response.Usage.OutputTokens),
			TotalTokens:      int(response.Usage.TotalTokens),
		},
	}, nil
}

func joinInstructions(parts ...string) string {
	var nonEmpty []string
	for _, p := range parts {
		if p != "" {
			nonEmpty = append(nonEmpty, p)
		}
	}
	return strings.Join(nonEmpty, "\n\n")
}

// historyToInput converts the conversation sequence into Responses API
// input items. Orchestrator notes and compaction summaries become user
// messages; turn markers are skipped.
func historyToInput(history []models.ConversationItem) []responses.ResponseInputItemUnionParam {
	items := make([]responses.ResponseInputItemUnionParam, 0, len(history))

	for _, item := range history {
		switch item.Type {
		case models.ItemTypeUserMessage, models.ItemTypeSystemNote, models.ItemTypeCompactionSummary:
			items = append(items, responses.ResponseInputItemUnionParam{
				OfMessage: &responses.EasyInputMessageParam{
					Role: responses.EasyInputMessageRoleUser,
					Content: responses.EasyInputMessageContentUnionParam{
						OfString: openai.String(item.Content),
					},
				},
			})

		case models.ItemTypeAssistantMessage:
			items = append(items, responses.ResponseInputItemUnionParam{
				OfOutputMessage: &responses.ResponseOutputMessageParam{
					Content: []responses.ResponseOutputMessageContentUnionParam{
						{
							OfOutputText: &responses.ResponseOutputTextParam{
								Text:        item.Content,
								Annotations: []responses.ResponseOutputTextAnnotationUnionParam{},
							},
						},
					},
					Status: responses.ResponseOutputMessageStatusCompleted,
				},
			})

		case models.ItemTypeFunctionCall:
			items = append(items, responses.ResponseInputItemUnionParam{
				OfFunctionCall: &responses.ResponseFunctionToolCallParam{
					CallID:    item.CallID,
					Name:      item.Name,
					Arguments: item.Arguments,
				},
			})

		case models.ItemTypeFunctionCallOutput:
			content := ""
			if item.Output != nil {
				content = item.Output.Content
			}
			items = append(items, responses.ResponseInputItemUnionParam{
				OfFunctionCallOutput: &responses.ResponseInputItemFunctionCallOutputParam{
					CallID: item.CallID,
					Output: responses.ResponseInputItemFunctionCallOutputOutputUnionParam{
						OfString: openai.String(content),
					},
				},
			})
		}
	}
	return items
}

// parseOpenAIOutput uses the flat union fields rather than the As* helpers,
// which depend on internal JSON state.
func parseOpenAIOutput(response *responses.Response) ([]models.ConversationItem, models.FinishReason) {
	var items []models.ConversationItem
	hasFunctionCalls := false

	for _, outputItem := range response.Output {
		switch outputItem.Type {
		case "message":
			var text string
			for _, content := range outputItem.Content {
				if content.Type == "output_text" {
					text += content.Text
				}
			}
			if text != "" {
				items = append(items, models.ConversationItem{
					Type:    models.ItemTypeAssistantMessage,
					Content: text,
				})
			}

		case "function_call":
			hasFunctionCalls = true
			items = append(items, models.ConversationItem{
				Type:      models.ItemTypeFunctionCall,
				CallID:    outputItem.CallID,
				Name:      outputItem.Name,
				Arguments: outputItem.Arguments,
			})
		}
	}

	if len(items) == 0 {
		items = append(items, models.ConversationItem{Type: models.ItemTypeAssistantMessage})
	}

	finishReason := models.FinishReasonStop
	if hasFunctionCalls {
		finishReason = models.FinishReasonToolCalls
	} else if response.IncompleteDetails.Reason == "max_output_tokens" {
		finishReason = models.FinishReasonLength
	}
	return items, finishReason
}

func openAIToolDefs(specs []tools.ToolSpec) []responses.ToolUnionParam {
	defs := make([]responses.ToolUnionParam, 0, len(specs))
	for _, spec := range specs {
		if spec.RawJSONSchema != nil {
			defs = append(defs, responses.ToolUnionParam{
				OfFunction: &responses.FunctionToolParam{
					Name:        spec.Name,
					Description: openai.String(spec.Description),
					Parameters:  spec.RawJSONSchema,
				},
			})
			continue
		}

		properties := make(map[string]interface{})
		required := make([]string, 0)
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

		defs = append(defs, responses.ToolUnionParam{
			OfFunction: &responses.FunctionToolParam{
				Name:        spec.Name,
				Description: openai.String(spec.Description),
				Parameters: map[string]interface{}{
					"type":       "object",
					"properties": properties,
					"required":   required,
				},
			},
		})
	}
	return defs
}

// classifyOpenAIError maps an API error to a classified activity error.
func classifyOpenAIError(err error) error {
	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "context_length") || strings.Contains(msg, "maximum context length") {
		return models.NewContextOverflowError(err.Error())
	}
	if apiErr, ok := err.(*openai.Error); ok {
		return classifyByStatusCode(apiErr.StatusCode, err)
	}
	if strings.Contains(msg, "rate_limit") || strings.Contains(msg, "rate limit") {
		return models.NewAPILimitError(err.Error())
	}
	return models.NewTransientError(fmt.Sprintf("openai api error: %v", err))
}
