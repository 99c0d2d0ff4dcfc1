package providers

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	openai "github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
)

// ollamaBackend talks to OpenAI-compatible servers through the official SDK.
// The SDK's own retries are disabled; Client owns the retry policy.
type ollamaBackend struct {
	client *http.Client
}

func (b *ollamaBackend) complete(ctx context.Context, ep Endpoint, req completionRequest) (*ChatResponse, error) {
	opts := []option.RequestOption{
		option.WithAPIKey(apiKeyOrEmpty(ep.APIKey)),
		option.WithHTTPClient(b.client),
		option.WithMaxRetries(0),
		option.WithBaseURL(ep.BaseURL + "/v1/"),
	}
	client := openai.NewClient(opts...)

	params := openai.ChatCompletionNewParams{
		Model: openai.ChatModel(req.Model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.UserMessage([]openai.ChatCompletionContentPartUnionParam{
				openai.ImageContentPart(openai.ChatCompletionContentPartImageImageURLParam{URL: req.ImageURL}),
				openai.TextContentPart(req.Prompt),
			}),
		},
		MaxTokens:   openai.Int(int64(req.MaxTokens)),
		Temperature: openai.Float(req.Temperature),
	}

	completion, err := client.Chat.Completions.New(ctx, params)
	if err != nil {
		return nil, mapOpenAIError(ep, err)
	}

	out := &ChatResponse{
		ID:    completion.ID,
		Model: completion.Model,
		Usage: Usage{
			PromptTokens:     int(completion.Usage.PromptTokens),
			CompletionTokens: int(completion.Usage.CompletionTokens),
			TotalTokens:      int(completion.Usage.TotalTokens),
		},
	}
	for i, choice := range completion.Choices {
		out.Choices = append(out.Choices, Choice{
			Index:        i,
			Message:      Message{Role: string(choice.Message.Role), Content: choice.Message.Content},
			FinishReason: string(choice.FinishReason),
		})
	}
	return out, nil
}

func mapOpenAIError(ep Endpoint, err error) error {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		if apiErr.Message != "" {
			return fmt.Errorf("%s error (status %d): %s", ep.Name, apiErr.StatusCode, apiErr.Message)
		}
		return fmt.Errorf("%s error (status %d)", ep.Name, apiErr.StatusCode)
	}
	return fmt.Errorf("request failed: %w", err)
}

var _ backend = (*ollamaBackend)(nil)
