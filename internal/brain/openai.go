package brain

import (
	"context"
	"fmt"

	"github.com/sashabaranov/go-openai"

	"github.com/abelbrown/astroscan/internal/logging"
)

const openAIDefaultModel = "gpt-4o-mini"

// OpenAIProvider implements the Provider interface for OpenAI chat models
type OpenAIProvider struct {
	apiKey string
	model  string
	client *openai.Client
}

// NewOpenAIProvider creates a new OpenAI provider. baseURL may be empty.
func NewOpenAIProvider(apiKey, model, baseURL string) *OpenAIProvider {
	if model == "" {
		model = openAIDefaultModel
	}
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	return &OpenAIProvider{
		apiKey: apiKey,
		model:  model,
		client: openai.NewClientWithConfig(cfg),
	}
}

func (o *OpenAIProvider) Name() string {
	return "openai"
}

func (o *OpenAIProvider) Available() bool {
	return o.apiKey != ""
}

func (o *OpenAIProvider) Generate(ctx context.Context, req Request) (Response, error) {
	if !o.Available() {
		return Response{}, fmt.Errorf("openai: %w", ErrNotConfigured)
	}

	logging.Debug("OpenAI API request starting", "model", o.model)

	var messages []openai.ChatCompletionMessage
	if req.SystemPrompt != "" {
		messages = append(messages, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: req.SystemPrompt})
	}
	messages = append(messages, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: req.UserPrompt})

	creq := openai.ChatCompletionRequest{
		Model:    o.model,
		Messages: messages,
	}
	if req.MaxTokens > 0 {
		creq.MaxCompletionTokens = req.MaxTokens
	}
	if req.JSON {
		creq.ResponseFormat = &openai.ChatCompletionResponseFormat{Type: openai.ChatCompletionResponseFormatTypeJSONObject}
	}

	resp, err := o.client.CreateChatCompletion(ctx, creq)
	if err != nil {
		return Response{}, fmt.Errorf("OpenAI API call failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return Response{}, fmt.Errorf("OpenAI returned no choices")
	}

	logging.Debug("OpenAI API response parsed", "model", resp.Model, "finish_reason", resp.Choices[0].FinishReason)

	return Response{
		Content: resp.Choices[0].Message.Content,
		Model:   resp.Model,
	}, nil
}
