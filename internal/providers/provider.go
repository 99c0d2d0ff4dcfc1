package providers

import (
	"context"
	"errors"
	"time"
)

const (
	// DefaultModel is the primary OCR model used when a job names none.
	DefaultModel = "tencent/HunyuanOCR"

	// DefaultPrompt is sent when the caller supplies no instruction.
	DefaultPrompt = "Extract only English and Bangla text, Numbers, and Dates from this Bangladesh National ID card. Output the text line by line."

	// DefaultMaxTokens bounds the completion length of every call.
	DefaultMaxTokens = 4096

	// DefaultRepetitionPenalty is sent to vllm-family endpoints only.
	DefaultRepetitionPenalty = 1.05

	// DefaultMaxRetries is the number of retries after the first attempt.
	DefaultMaxRetries = 3
)

var (
	// ErrRetriesExhausted is returned when every attempt of a call failed.
	ErrRetriesExhausted = errors.New("inference retries exhausted")

	// ErrNoChoices is returned by Content when a response carries no choices.
	ErrNoChoices = errors.New("response has no choices")

	// ErrUnknownEndpoint is returned when a route names an endpoint that is not configured.
	ErrUnknownEndpoint = errors.New("unknown endpoint")
)

// Invoker sends one image plus instruction to a vision-language model.
// Implementations must be safe for concurrent use.
type Invoker interface {
	Invoke(ctx context.Context, req InvokeRequest) (*ChatResponse, error)
}

// InvokeRequest describes a single model call.
type InvokeRequest struct {
	// Image is the encoded image (JPEG or PNG) sent inline as a data URL.
	Image []byte

	// Model selects the route. Empty uses DefaultModel.
	Model string

	// Endpoint overrides routing with an explicit base URL.
	Endpoint string

	// Prompt is the text instruction. Empty uses the client's default prompt.
	Prompt string
}

// ChatResponse is the chat-completions shaped reply of a model endpoint.
type ChatResponse struct {
	ID      string   `json:"id"`
	Model   string   `json:"model"`
	Choices []Choice `json:"choices"`
	Usage   Usage    `json:"usage"`

	// Local bookkeeping, never sent by the endpoint.
	Endpoint string        `json:"-"`
	Attempts int           `json:"-"`
	Latency  time.Duration `json:"-"`
}

// Choice is one completion alternative.
type Choice struct {
	Index        int     `json:"index"`
	Message      Message `json:"message"`
	FinishReason string  `json:"finish_reason"`
}

// Message is the assistant message of a choice.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Usage reports token counts when the endpoint provides them.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Content returns the message content of the first choice.
func (r *ChatResponse) Content() (string, error) {
	if r == nil || len(r.Choices) == 0 {
		return "", ErrNoChoices
	}
	return r.Choices[0].Message.Content, nil
}

// NewTextResponse builds a single-choice response. Used by fakes and tests.
func NewTextResponse(content string) *ChatResponse {
	return &ChatResponse{
		Choices: []Choice{{Message: Message{Role: "assistant", Content: content}}},
	}
}
