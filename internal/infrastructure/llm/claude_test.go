package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"digitalwall/internal/config"
	"digitalwall/internal/ports"
)

func TestCompleteSendsMessagesRequest(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("x-api-key") != "test-key" {
			t.Errorf("missing api key header")
		}
		if r.Header.Get("anthropic-version") != "2023-06-01" {
			t.Errorf("missing version header")
		}

		var req apiRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if req.System != "sys" || len(req.Messages) != 1 || req.Messages[0].Content != "hello" {
			t.Errorf("unexpected request payload: %+v", req)
		}

		json.NewEncoder(w).Encode(map[string]any{
			"content": []map[string]string{
				{"type": "text", "text": "part one "},
				{"type": "text", "text": "part two"},
			},
		})
	}))
	defer srv.Close()

	client := NewClaudeClient(config.AnthropicConfig{
		Endpoint: srv.URL,
		Model:    "claude-test",
		APIKey:   "test-key",
		Version:  "2023-06-01",
	})

	got, err := client.Complete(context.Background(), ports.CompletionRequest{
		System:    "sys",
		Prompt:    "hello",
		MaxTokens: 100,
	})
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if got != "part one part two" {
		t.Fatalf("unexpected response text: %q", got)
	}
}

func TestCompleteSurfacesAPIErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte(`{"error":{"message":"rate limited"}}`))
	}))
	defer srv.Close()

	client := NewClaudeClient(config.AnthropicConfig{
		Endpoint: srv.URL,
		Model:    "claude-test",
		APIKey:   "test-key",
		Version:  "2023-06-01",
	})

	if _, err := client.Complete(context.Background(), ports.CompletionRequest{Prompt: "x"}); err == nil {
		t.Fatal("expected error for non-200 status")
	}
}

func TestCompleteRejectsMisconfiguredClient(t *testing.T) {
	client := NewClaudeClient(config.AnthropicConfig{})
	if _, err := client.Complete(context.Background(), ports.CompletionRequest{Prompt: "x"}); err == nil {
		t.Fatal("expected misconfiguration error")
	}
}
