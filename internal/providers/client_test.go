package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"image"
	"image/png"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

const chatReply = `{"id":"cmpl-1","object":"chat.completion","created":1,"model":"m","choices":[{"index":0,"message":{"role":"assistant","content":"hello"},"finish_reason":"stop"}],"usage":{"prompt_tokens":3,"completion_tokens":1,"total_tokens":4}}`

func pngBytes(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 4, 4))); err != nil {
		t.Fatalf("png.Encode: %v", err)
	}
	return buf.Bytes()
}

func newTestClient(t *testing.T, vllmURL, ollamaURL string) *Client {
	t.Helper()
	cfg := RouterConfig{
		Endpoints: map[string]Endpoint{"vllm": {BaseURL: vllmURL, Family: FamilyVLLM}},
		Default:   "vllm",
	}
	if ollamaURL != "" {
		cfg.Endpoints["ollama"] = Endpoint{BaseURL: ollamaURL, Family: FamilyOllama}
		cfg.Routes = map[string]string{"qwen3-vl:8b-instruct": "ollama"}
	}
	router, err := NewRouter(cfg, nil)
	if err != nil {
		t.Fatalf("NewRouter() error = %v", err)
	}
	client, err := NewClient(ClientConfig{
		Router:        router,
		RetryDelay:    time.Millisecond,
		MaxRetryDelay: 5 * time.Millisecond,
	})
	if err != nil {
		t.Fatalf("NewClient() error = %v", err)
	}
	return client
}

func TestClientVLLMRequestShape(t *testing.T) {
	var payload map[string]any
	var auth string

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		auth = r.Header.Get("Authorization")
		body, _ := io.ReadAll(r.Body)
		if err := json.Unmarshal(body, &payload); err != nil {
			t.Errorf("unmarshal body: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(chatReply))
	}))
	defer server.Close()

	client := newTestClient(t, server.URL, "")
	resp, err := client.Invoke(context.Background(), InvokeRequest{Image: pngBytes(t)})
	if err != nil {
		t.Fatalf("Invoke() error = %v", err)
	}

	content, err := resp.Content()
	if err != nil || content != "hello" {
		t.Fatalf("Content() = %q, %v", content, err)
	}
	if resp.Attempts != 1 {
		t.Errorf("Attempts = %d, want 1", resp.Attempts)
	}
	if auth != "Bearer EMPTY" {
		t.Errorf("Authorization = %q", auth)
	}
	if got, _ := payload["model"].(string); got != DefaultModel {
		t.Errorf("model = %q, want %q", got, DefaultModel)
	}
	if got, _ := payload["repetition_penalty"].(float64); got != DefaultRepetitionPenalty {
		t.Errorf("repetition_penalty = %v, want %v", payload["repetition_penalty"], DefaultRepetitionPenalty)
	}
	if got, _ := payload["max_tokens"].(float64); got != DefaultMaxTokens {
		t.Errorf("max_tokens = %v", payload["max_tokens"])
	}
	if got, ok := payload["temperature"].(float64); !ok || got != 0 {
		t.Errorf("temperature = %v, want 0", payload["temperature"])
	}

	messages := payload["messages"].([]any)
	content0 := messages[0].(map[string]any)["content"].([]any)
	img := content0[0].(map[string]any)
	url := img["image_url"].(map[string]any)["url"].(string)
	if !strings.HasPrefix(url, "data:image/png;base64,") {
		t.Errorf("image url prefix = %q", url[:30])
	}
	text := content0[1].(map[string]any)["text"].(string)
	if text != DefaultPrompt {
		t.Errorf("prompt = %q, want default", text)
	}
}

func TestClientOllamaOmitsRepetitionPenalty(t *testing.T) {
	var payload map[string]any

	vllm := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("vllm endpoint should not be called")
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer vllm.Close()

	ollama := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &payload)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(chatReply))
	}))
	defer ollama.Close()

	client := newTestClient(t, vllm.URL, ollama.URL)
	resp, err := client.Invoke(context.Background(), InvokeRequest{
		Image:  pngBytes(t),
		Model:  "qwen3-vl:8b-instruct",
		Prompt: "check this",
	})
	if err != nil {
		t.Fatalf("Invoke() error = %v", err)
	}
	if content, _ := resp.Content(); content != "hello" {
		t.Errorf("Content() = %q", content)
	}
	if _, ok := payload["repetition_penalty"]; ok {
		t.Error("ollama request must not carry repetition_penalty")
	}
	if got, _ := payload["model"].(string); got != "qwen3-vl:8b-instruct" {
		t.Errorf("model = %q", got)
	}
}

func TestClientRetry(t *testing.T) {
	tests := []struct {
		name      string
		failures  int32
		wantErr   bool
		wantCalls int32
	}{
		{name: "three failures then success", failures: 3, wantErr: false, wantCalls: 4},
		{name: "four consecutive failures", failures: 4, wantErr: true, wantCalls: 4},
		{name: "no failures", failures: 0, wantErr: false, wantCalls: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var calls atomic.Int32
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if calls.Add(1) <= tt.failures {
					w.WriteHeader(http.StatusServiceUnavailable)
					_, _ = w.Write([]byte(`{"error":{"message":"overloaded"}}`))
					return
				}
				_, _ = w.Write([]byte(chatReply))
			}))
			defer server.Close()

			client := newTestClient(t, server.URL, "")
			resp, err := client.Invoke(context.Background(), InvokeRequest{Image: pngBytes(t)})

			if tt.wantErr {
				if !errors.Is(err, ErrRetriesExhausted) {
					t.Fatalf("Invoke() error = %v, want ErrRetriesExhausted", err)
				}
				if !strings.Contains(err.Error(), "overloaded") {
					t.Errorf("error should carry last failure, got %v", err)
				}
			} else {
				if err != nil {
					t.Fatalf("Invoke() error = %v", err)
				}
				if resp.Attempts != int(tt.wantCalls) {
					t.Errorf("Attempts = %d, want %d", resp.Attempts, tt.wantCalls)
				}
			}
			if got := calls.Load(); got != tt.wantCalls {
				t.Errorf("server calls = %d, want %d", got, tt.wantCalls)
			}
		})
	}
}

func TestClientOverrideEndpoint(t *testing.T) {
	var hit atomic.Bool
	override := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hit.Store(true)
		_, _ = w.Write([]byte(chatReply))
	}))
	defer override.Close()

	client := newTestClient(t, "http://127.0.0.1:1", "")
	if _, err := client.Invoke(context.Background(), InvokeRequest{Image: pngBytes(t), Endpoint: override.URL}); err != nil {
		t.Fatalf("Invoke() error = %v", err)
	}
	if !hit.Load() {
		t.Error("override endpoint was not called")
	}
}

func TestClientContextCancelled(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	client := newTestClient(t, server.URL, "")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := client.Invoke(ctx, InvokeRequest{Image: pngBytes(t)})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Invoke() error = %v, want context.Canceled", err)
	}
}

func TestChatResponseContent(t *testing.T) {
	var nilResp *ChatResponse
	if _, err := nilResp.Content(); !errors.Is(err, ErrNoChoices) {
		t.Errorf("nil response error = %v", err)
	}
	if _, err := (&ChatResponse{}).Content(); !errors.Is(err, ErrNoChoices) {
		t.Errorf("empty response error = %v", err)
	}
	if got, _ := NewTextResponse("x").Content(); got != "x" {
		t.Errorf("Content() = %q", got)
	}
}

func TestClientLive(t *testing.T) {
	cfg := LoadTestConfig()
	if !cfg.HasVLLM() {
		t.Skip("IDSCAN_TEST_VLLM_URL not set")
	}
	client := newTestClient(t, cfg.VLLMURL, cfg.OllamaURL)
	resp, err := client.Invoke(context.Background(), InvokeRequest{Image: pngBytes(t)})
	if err != nil {
		t.Fatalf("Invoke() error = %v", err)
	}
	if _, err := resp.Content(); err != nil {
		t.Errorf("Content() error = %v", err)
	}
}
