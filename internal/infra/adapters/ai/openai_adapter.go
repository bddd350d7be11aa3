package ai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/openai/openai-go/v2"
	"github.com/openai/openai-go/v2/option"
	"github.com/openai/openai-go/v2/shared"

	"candidate-screening/internal/domain"
	"candidate-screening/internal/domain/ports/adapter"
)

// Compile-time assurance this adapter satisfies the port
var _ adapter.AIClient = (*OpenAIAdapter)(nil)

// OpenAIAdapter asks Chat Completions for a json_schema constrained answer.
type OpenAIAdapter struct {
	client openai.Client
	model  string
}

// NewOpenAIAdapter also serves OpenAI-compatible gateways when baseURL is set.
func NewOpenAIAdapter(apiKey, model, baseURL string) (*OpenAIAdapter, error) {
	if apiKey == "" {
		return nil, domain.ErrMissingCredentials
	}
	if model == "" {
		model = "gpt-4o-mini"
	}
	opts := []option.RequestOption{option.WithAPIKey(apiKey), option.WithMaxRetries(0)}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(strings.TrimRight(baseURL, "/")+"/"))
	}
	return &OpenAIAdapter{client: openai.NewClient(opts...), model: model}, nil
}

func (o *OpenAIAdapter) RunStructuredPrompt(ctx context.Context, req adapter.PromptRequest) (*adapter.StructuredResult, error) {
	model := modelOrDefault(req.Model, o.model)
	system, err := SystemPrompt(req.Template, req.Schema)
	if err != nil {
		return nil, err
	}
	var schema map[string]any
	if err := json.Unmarshal(req.Schema, &schema); err != nil {
		return nil, domain.Fatal("openai", fmt.Errorf("%w: schema: %v", domain.ErrInvalidArgument, err))
	}

	resp, err := o.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: shared.ChatModel(model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(system),
			openai.UserMessage(req.Input),
		},
		ResponseFormat: openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONSchema: &shared.ResponseFormatJSONSchemaParam{
				JSONSchema: shared.ResponseFormatJSONSchemaJSONSchemaParam{
					Name:   req.Template,
					Schema: schema,
				},
			},
		},
	})
	if err != nil {
		return nil, mapOpenAIError(err)
	}

	for _, c := range resp.Choices {
		if c.Message.Content != "" {
			return &adapter.StructuredResult{
				Raw:      json.RawMessage(c.Message.Content),
				Model:    model,
				Provider: ProviderOpenAI,
				Usage: adapter.Usage{
					PromptTokens:     int(resp.Usage.PromptTokens),
					CompletionTokens: int(resp.Usage.CompletionTokens),
					TotalTokens:      int(resp.Usage.TotalTokens),
				},
			}, nil
		}
	}
	return nil, domain.Permanent("openai", fmt.Errorf("%w: no choice content", domain.ErrSchemaViolation))
}

func mapOpenAIError(err error) error {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		if apiErr.StatusCode == 401 || apiErr.StatusCode == 403 {
			return domain.Fatal("openai", fmt.Errorf("%w: http %d", domain.ErrMissingCredentials, apiErr.StatusCode))
		}
		return &domain.HTTPError{Service: ProviderOpenAI, StatusCode: apiErr.StatusCode, Body: apiErr.Message}
	}
	return err
}
