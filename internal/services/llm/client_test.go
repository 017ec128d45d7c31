package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"callqa/internal/services"
)

func completionServer(t *testing.T, handler func(calls int, w http.ResponseWriter, r *http.Request)) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		handler(int(calls.Add(1)), w, r)
	}))
	t.Cleanup(server.Close)
	return server, &calls
}

func writeChoice(t *testing.T, w http.ResponseWriter, choice map[string]any) {
	t.Helper()
	if err := json.NewEncoder(w).Encode(map[string]any{"choices": []any{choice}}); err != nil {
		t.Errorf("encode response: %v", err)
	}
}

func fastClient(baseURL string, opts ...Option) *Client {
	opts = append([]Option{WithRetryBackoff(0, 0), WithSleeper(func(time.Duration) {})}, opts...)
	return NewClient(Config{APIKey: "test", BaseURL: baseURL, Model: "demo-model", Title: "callqa"}, opts...)
}

func TestClientHealthCheck(t *testing.T) {
	server, _ := completionServer(t, func(_ int, w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer test" {
			t.Errorf("unexpected auth header %q", got)
		}
		if got := r.Header.Get("X-Title"); got != "callqa" {
			t.Errorf("unexpected title header %q", got)
		}
		var body chatCompletionRequest
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if body.Model != "demo-model" || body.ResponseFormat == nil || body.ResponseFormat.Type != "json_object" {
			t.Errorf("unexpected request %+v", body)
		}
		writeChoice(t, w, map[string]any{"message": map[string]any{"content": "```json\n{\"ok\":true}\n```"}})
	})
	if err := fastClient(server.URL).HealthCheck(context.Background()); err != nil {
		t.Fatalf("HealthCheck returned error: %v", err)
	}
}

func TestClientHealthCheckUnauthorized(t *testing.T) {
	server, calls := completionServer(t, func(_ int, w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":"unauthorized"}`))
	})
	err := fastClient(server.URL).HealthCheck(context.Background())
	if !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
	if calls.Load() != 1 {
		t.Fatalf("401 must not be retried, got %d calls", calls.Load())
	}
}

func TestClientRequiresAPIKey(t *testing.T) {
	client := NewClient(Config{Model: "demo"})
	if client.Configured() {
		t.Fatal("client without key should not be configured")
	}
	_, err := client.CompleteJSON(context.Background(), "system", "user")
	if !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
}

func TestClientRequiresPrompts(t *testing.T) {
	_, err := fastClient("http://127.0.0.1:1").CompleteJSON(context.Background(), " ", "user")
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestClientContentFallbacks(t *testing.T) {
	tests := map[string]map[string]any{
		"delta": {"delta": map[string]any{"content": `{"v":1}`}},
		"text":  {"text": `{"v":1}`, "finish_reason": "stop"},
		"tool_calls": {"finish_reason": "tool_calls", "message": map[string]any{
			"content":    "",
			"tool_calls": []any{map[string]any{"type": "function", "function": map[string]any{"name": "x", "arguments": `{"v":1}`}}},
		}},
	}
	for name, choice := range tests {
		t.Run(name, func(t *testing.T) {
			server, _ := completionServer(t, func(_ int, w http.ResponseWriter, _ *http.Request) {
				writeChoice(t, w, choice)
			})
			content, err := fastClient(server.URL).CompleteJSON(context.Background(), "system", "user")
			if err != nil {
				t.Fatalf("CompleteJSON: %v", err)
			}
			if content != `{"v":1}` {
				t.Fatalf("unexpected content %q", content)
			}
		})
	}
}

func TestClientEmptyContentHasSnippet(t *testing.T) {
	server, calls := completionServer(t, func(_ int, w http.ResponseWriter, _ *http.Request) {
		writeChoice(t, w, map[string]any{"finish_reason": "stop", "message": map[string]any{"content": ""}})
	})
	_, err := fastClient(server.URL, WithRetryMaxAttempts(3)).CompleteJSON(context.Background(), "system", "user")
	if !errors.Is(err, services.ErrExternalTool) {
		t.Fatalf("expected external tool error, got %v", err)
	}
	if !strings.Contains(err.Error(), "empty content") || !strings.Contains(err.Error(), "response_snippet=") {
		t.Fatalf("expected empty-content error to include snippet, got %v", err)
	}
	if calls.Load() != 3 {
		t.Fatalf("expected 3 attempts, got %d", calls.Load())
	}
}

func TestClientRetriesOnHTTP429(t *testing.T) {
	server, calls := completionServer(t, func(n int, w http.ResponseWriter, _ *http.Request) {
		if n == 1 {
			w.Header().Set("Retry-After", "1")
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		writeChoice(t, w, map[string]any{"message": map[string]any{"content": `{"ok":true}`}})
	})
	var slept []time.Duration
	client := NewClient(
		Config{APIKey: "test", BaseURL: server.URL, Model: "demo-model"},
		WithSleeper(func(d time.Duration) { slept = append(slept, d) }),
		WithRetryBackoff(0, 10*time.Second),
		WithRetryMaxAttempts(5),
	)
	if _, err := client.CompleteJSON(context.Background(), "system", "user"); err != nil {
		t.Fatalf("CompleteJSON: %v", err)
	}
	if calls.Load() != 2 {
		t.Fatalf("expected 2 calls, got %d", calls.Load())
	}
	if len(slept) != 1 || slept[0] != time.Second {
		t.Fatalf("expected single sleep of 1s, got %v", slept)
	}
}

func TestClientRetriesServerErrorsThenSucceeds(t *testing.T) {
	server, calls := completionServer(t, func(n int, w http.ResponseWriter, _ *http.Request) {
		if n < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		writeChoice(t, w, map[string]any{"message": map[string]any{"content": `{"ok":true}`}})
	})
	if _, err := fastClient(server.URL).CompleteJSON(context.Background(), "system", "user"); err != nil {
		t.Fatalf("CompleteJSON: %v", err)
	}
	if calls.Load() != 3 {
		t.Fatalf("expected 3 calls, got %d", calls.Load())
	}
}

func TestClientTextRequestOmitsResponseFormat(t *testing.T) {
	server, _ := completionServer(t, func(_ int, w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if _, ok := body["response_format"]; ok {
			t.Errorf("text request should not set response_format")
		}
		if body["max_tokens"] != float64(50) {
			t.Errorf("unexpected max_tokens %v", body["max_tokens"])
		}
		writeChoice(t, w, map[string]any{"message": map[string]any{"content": "Agent greets the caller."}})
	})
	got, err := fastClient(server.URL).Complete(context.Background(), Request{System: "s", User: "u", MaxTokens: 50, Text: true}, "intent")
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if got != "Agent greets the caller." {
		t.Fatalf("unexpected content %q", got)
	}
}

func TestClientForwardsRequestID(t *testing.T) {
	server, _ := completionServer(t, func(_ int, w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("X-Request-ID"); got != "req-1" {
			t.Errorf("unexpected request id %q", got)
		}
		writeChoice(t, w, map[string]any{"message": map[string]any{"content": `{}`}})
	})
	ctx := services.WithRequestID(context.Background(), "req-1")
	if _, err := fastClient(server.URL).CompleteJSON(ctx, "system", "user"); err != nil {
		t.Fatalf("CompleteJSON: %v", err)
	}
}

func TestBackoffDelay(t *testing.T) {
	client := NewClient(Config{}, WithRetryBackoff(time.Second, 5*time.Second))
	want := []time.Duration{time.Second, 2 * time.Second, 4 * time.Second, 5 * time.Second, 5 * time.Second}
	for i, w := range want {
		if got := client.backoffDelay(i + 1); got != w {
			t.Fatalf("attempt %d: got %v want %v", i+1, got, w)
		}
	}
}
