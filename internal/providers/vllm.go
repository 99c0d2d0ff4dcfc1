package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

const chatCompletionsPath = "/v1/chat/completions"

// completionRequest is the backend-neutral form of one attempt.
type completionRequest struct {
	Model             string
	Prompt            string
	ImageURL          string
	MaxTokens         int
	Temperature       float64
	RepetitionPenalty float64
}

// backend performs a single attempt against an endpoint. Retries live in Client.
type backend interface {
	complete(ctx context.Context, ep Endpoint, req completionRequest) (*ChatResponse, error)
}

// vllmBackend posts raw chat-completions JSON, including the vllm-only
// repetition_penalty parameter.
type vllmBackend struct {
	client *http.Client
}

func (b *vllmBackend) complete(ctx context.Context, ep Endpoint, req completionRequest) (*ChatResponse, error) {
	body := vllmRequest{
		Model: req.Model,
		Messages: []vllmMessage{
			{
				Role: "user",
				Content: []vllmContent{
					{Type: "image_url", ImageURL: &vllmImageURL{URL: req.ImageURL}},
					{Type: "text", Text: req.Prompt},
				},
			},
		},
		MaxTokens:         req.MaxTokens,
		Temperature:       req.Temperature,
		RepetitionPenalty: req.RepetitionPenalty,
	}

	bodyBytes, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, ep.BaseURL+chatCompletionsPath, bytes.NewReader(bodyBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+apiKeyOrEmpty(ep.APIKey))

	resp, err := b.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		var errResp vllmErrorResponse
		if json.Unmarshal(respBody, &errResp) == nil && errResp.Error.Message != "" {
			return nil, fmt.Errorf("%s error (status %d): %s", ep.Name, resp.StatusCode, errResp.Error.Message)
		}
		return nil, fmt.Errorf("%s error (status %d): %s", ep.Name, resp.StatusCode, string(respBody))
	}

	var out ChatResponse
	if err := json.Unmarshal(respBody, &out); err != nil {
		return nil, fmt.Errorf("failed to unmarshal response: %w", err)
	}
	return &out, nil
}

// apiKeyOrEmpty returns the placeholder token self-hosted servers expect.
func apiKeyOrEmpty(key string) string {
	if key == "" {
		return "EMPTY"
	}
	return key
}

type vllmRequest struct {
	Model             string        `json:"model"`
	Messages          []vllmMessage `json:"messages"`
	MaxTokens         int           `json:"max_tokens"`
	Temperature       float64       `json:"temperature"`
	RepetitionPenalty float64       `json:"repetition_penalty,omitempty"`
}

type vllmMessage struct {
	Role    string        `json:"role"`
	Content []vllmContent `json:"content"`
}

type vllmContent struct {
	Type     string        `json:"type"`
	Text     string        `json:"text,omitempty"`
	ImageURL *vllmImageURL `json:"image_url,omitempty"`
}

type vllmImageURL struct {
	URL string `json:"url"`
}

type vllmErrorResponse struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}

var _ backend = (*vllmBackend)(nil)
