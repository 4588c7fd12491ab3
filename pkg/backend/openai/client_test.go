package openai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"mercator-hq/ganymede/pkg/backend"
)

func newTestAdapter(t *testing.T, baseURL string) *Adapter {
	t.Helper()
	a, err := New(backend.Config{
		Name:    "openai",
		BaseURL: baseURL,
		APIKey:  "sk-test",
		Model:   "gpt-test",
		Timeout: 5 * time.Second,
	})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	t.Cleanup(func() { a.Close() })
	return a
}

func TestNewValidation(t *testing.T) {
	tests := []struct {
		name string
		cfg  backend.Config
	}{
		{"missing model", backend.Config{APIKey: "sk-x"}},
		{"missing credentials", backend.Config{Model: "gpt-test"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := New(tt.cfg); err == nil {
				t.Error("invalid config accepted")
			}
		})
	}
}

func TestComplete(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer sk-test" {
			t.Errorf("Authorization = %q", got)
		}

		var req chatRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decoding request: %v", err)
		}
		if req.Model != "gpt-test" {
			t.Errorf("model = %q, want configured default", req.Model)
		}
		if len(req.Messages) != 1 || req.Messages[0].Content != "hello" {
			t.Errorf("messages = %+v", req.Messages)
		}

		json.NewEncoder(w).Encode(chatResponse{
			Model: "gpt-test-1",
			Choices: []chatChoice{{
				Message:      chatMessage{Role: "assistant", Content: "hi there"},
				FinishReason: "stop",
			}},
			Usage: chatUsage{PromptTokens: 2, CompletionTokens: 3, TotalTokens: 5},
		})
	}))
	defer server.Close()

	a := newTestAdapter(t, server.URL)
	comp, err := a.Complete(context.Background(), &backend.CompletionRequest{Prompt: "hello"})
	if err != nil {
		t.Fatalf("Complete failed: %v", err)
	}
	if comp.Content != "hi there" {
		t.Errorf("content = %q", comp.Content)
	}
	if comp.Model != "gpt-test-1" {
		t.Errorf("model = %q", comp.Model)
	}
	if comp.Usage.TotalTokens != 5 {
		t.Errorf("usage = %+v", comp.Usage)
	}
}

func TestCompleteContentFiltered(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(chatResponse{
			Model: "gpt-test",
			Choices: []chatChoice{{
				Message:      chatMessage{Role: "assistant", Content: ""},
				FinishReason: "content_filter",
			}},
		})
	}))
	defer server.Close()

	a := newTestAdapter(t, server.URL)
	_, err := a.Complete(context.Background(), &backend.CompletionRequest{Prompt: "x"})

	var cfErr *backend.ContentFilteredError
	if !errors.As(err, &cfErr) {
		t.Fatalf("error = %T %v, want ContentFilteredError", err, err)
	}
}

func TestCompleteEmptyChoices(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(chatResponse{Model: "gpt-test"})
	}))
	defer server.Close()

	a := newTestAdapter(t, server.URL)
	_, err := a.Complete(context.Background(), &backend.CompletionRequest{Prompt: "x"})

	var parseErr *backend.ParseError
	if !errors.As(err, &parseErr) {
		t.Fatalf("error = %T %v, want ParseError", err, err)
	}
}

func TestCompleteStream(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req chatRequest
		json.NewDecoder(r.Body).Decode(&req)
		if !req.Stream {
			t.Error("stream flag not set on wire request")
		}

		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, "data: {\"model\":\"gpt-test\",\"choices\":[{\"delta\":{\"content\":\"Hel\"}}]}\n\n")
		fmt.Fprint(w, ": keepalive comment\n\n")
		fmt.Fprint(w, "data: {\"model\":\"gpt-test\",\"choices\":[{\"delta\":{\"content\":\"lo\"},\"finish_reason\":\"stop\"}]}\n\n")
		fmt.Fprint(w, "data: {\"model\":\"gpt-test\",\"choices\":[],\"usage\":{\"prompt_tokens\":1,\"completion_tokens\":2,\"total_tokens\":3}}\n\n")
		fmt.Fprint(w, "data: [DONE]\n\n")
	}))
	defer server.Close()

	a := newTestAdapter(t, server.URL)
	chunks, err := a.CompleteStream(context.Background(), &backend.CompletionRequest{Prompt: "x"})
	if err != nil {
		t.Fatalf("CompleteStream failed: %v", err)
	}

	var deltas []string
	for chunk := range chunks {
		if chunk.Err != nil {
			t.Fatalf("chunk error: %v", chunk.Err)
		}
		if chunk.Delta != "" {
			deltas = append(deltas, chunk.Delta)
		}
	}
	if len(deltas) != 2 || deltas[0] != "Hel" || deltas[1] != "lo" {
		t.Errorf("deltas = %v", deltas)
	}
}

func TestCompleteStreamUsageTrailer(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, "data: {\"model\":\"gpt-test\",\"choices\":[],\"usage\":{\"prompt_tokens\":4,\"completion_tokens\":6,\"total_tokens\":10}}\n\n")
		fmt.Fprint(w, "data: [DONE]\n\n")
	}))
	defer server.Close()

	a := newTestAdapter(t, server.URL)
	chunks, err := a.CompleteStream(context.Background(), &backend.CompletionRequest{Prompt: "x"})
	if err != nil {
		t.Fatalf("CompleteStream failed: %v", err)
	}

	var usage *backend.TokenUsage
	for chunk := range chunks {
		if chunk.Err != nil {
			t.Fatalf("chunk error: %v", chunk.Err)
		}
		if chunk.Usage != nil {
			usage = chunk.Usage
		}
	}
	if usage == nil || usage.TotalTokens != 10 {
		t.Errorf("usage trailer not surfaced: %+v", usage)
	}
}

func TestHealthCheck(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/models" {
			t.Errorf("path = %s", r.URL.Path)
		}
		w.Write([]byte(`{"data":[]}`))
	}))
	defer server.Close()

	a := newTestAdapter(t, server.URL)
	if err := a.HealthCheck(context.Background()); err != nil {
		t.Errorf("HealthCheck failed: %v", err)
	}
}

func TestTransformRequestDefaults(t *testing.T) {
	temp := 0.7
	req := transformRequest(&backend.CompletionRequest{
		Prompt:      "p",
		Temperature: &temp,
	}, "default-model")

	if req.Model != "default-model" {
		t.Errorf("model = %q", req.Model)
	}
	if req.Temperature == nil || *req.Temperature != 0.7 {
		t.Errorf("temperature = %v", req.Temperature)
	}

	req = transformRequest(&backend.CompletionRequest{Prompt: "p", Model: "override"}, "default-model")
	if req.Model != "override" {
		t.Errorf("explicit model not honored: %q", req.Model)
	}
}
