package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"voxdub/internal/services"
)

func writeCompletion(t *testing.T, w http.ResponseWriter, choice map[string]any) {
	t.Helper()
	payload := map[string]any{"choices": []any{choice}}
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		t.Errorf("encode response: %v", err)
	}
}

func TestClientHealthCheck(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		writeCompletion(t, w, map[string]any{"message": map[string]any{"content": `{"ok":true}`}})
	}))
	defer server.Close()

	client := NewClient(Config{APIKey: "test", BaseURL: server.URL, Model: "demo-model"})
	if err := client.HealthCheck(context.Background()); err != nil {
		t.Fatalf("HealthCheck returned error: %v", err)
	}
}

func TestClientHealthCheckCodeFence(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeCompletion(t, w, map[string]any{"message": map[string]any{"content": "```json\n{\"ok\":true}\n```"}})
	}))
	defer server.Close()

	client := NewClient(Config{APIKey: "test", BaseURL: server.URL, Model: "demo-model"})
	if err := client.HealthCheck(context.Background()); err != nil {
		t.Fatalf("HealthCheck returned error: %v", err)
	}
}

func TestClientHealthCheckFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_ = json.NewEncoder(w).Encode(map[string]string{"error": "unauthorized"})
	}))
	defer server.Close()

	client := NewClient(Config{APIKey: "bad", BaseURL: server.URL, Model: "demo"})
	err := client.HealthCheck(context.Background())
	if !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected rejected credentials to be a configuration error, got %v", err)
	}
}

func TestCompleteJSONRequiresKey(t *testing.T) {
	client := NewClient(Config{Model: "demo"})
	if client.Configured() {
		t.Fatal("client without key should not be configured")
	}
	_, err := client.CompleteJSON(context.Background(), "system", "user")
	if !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
}

func TestCompleteJSONSendsHeadersAndPrompts(t *testing.T) {
	var got chatCompletionRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer test" || r.Header.Get("X-Title") != "VoxDub" {
			t.Errorf("unexpected headers %v", r.Header)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode request: %v", err)
		}
		writeCompletion(t, w, map[string]any{"message": map[string]any{"content": `{"translation":"hola"}`}})
	}))
	defer server.Close()

	client := NewClient(Config{APIKey: "test", BaseURL: server.URL, Model: "demo-model", Title: "VoxDub"})
	content, err := client.CompleteJSON(context.Background(), "translate", "hello")
	if err != nil {
		t.Fatalf("CompleteJSON: %v", err)
	}
	if content != `{"translation":"hola"}` {
		t.Fatalf("unexpected content %q", content)
	}
	if got.Model != "demo-model" || len(got.Messages) != 2 || got.Messages[1].Content != "hello" {
		t.Fatalf("unexpected request %+v", got)
	}
	if got.ResponseFormat["type"] != jsonResponseType {
		t.Fatalf("expected json response format, got %v", got.ResponseFormat)
	}
}

func TestCompleteJSONToolCallsArguments(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeCompletion(t, w, map[string]any{
			"finish_reason": "tool_calls",
			"message": map[string]any{
				"content": "",
				"tool_calls": []any{
					map[string]any{
						"type": "function",
						"id":   "call_1",
						"function": map[string]any{
							"name":      "translate",
							"arguments": `{"translation":"bonjour"}`,
						},
					},
				},
			},
		})
	}))
	defer server.Close()

	client := NewClient(Config{APIKey: "test", BaseURL: server.URL, Model: "demo-model"})
	content, err := client.CompleteJSON(context.Background(), "translate", "hello")
	if err != nil {
		t.Fatalf("CompleteJSON: %v", err)
	}
	if !strings.Contains(content, "bonjour") {
		t.Fatalf("expected tool call arguments, got %q", content)
	}
}

func TestCompleteJSONDeltaAndLegacyText(t *testing.T) {
	choices := []map[string]any{
		{"delta": map[string]any{"content": `{"translation":"hallo"}`}},
		{"finish_reason": "stop", "text": `{"translation":"hallo"}`},
	}
	for _, choice := range choices {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			writeCompletion(t, w, choice)
		}))
		client := NewClient(Config{APIKey: "test", BaseURL: server.URL, Model: "demo-model"})
		content, err := client.CompleteJSON(context.Background(), "translate", "hello")
		server.Close()
		if err != nil {
			t.Fatalf("CompleteJSON: %v", err)
		}
		var parsed struct {
			Translation string `json:"translation"`
		}
		if err := DecodeLLMJSON(content, &parsed); err != nil || parsed.Translation != "hallo" {
			t.Fatalf("unexpected content %q (%v)", content, err)
		}
	}
}

func TestCompleteJSONEmptyContentHasSnippet(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeCompletion(t, w, map[string]any{"finish_reason": "stop", "message": map[string]any{"content": ""}})
	}))
	defer server.Close()

	client := NewClient(
		Config{APIKey: "test", BaseURL: server.URL, Model: "demo-model"},
		WithRetryBackoff(0, 0),
		WithSleeper(func(time.Duration) {}),
	)
	_, err := client.CompleteJSON(context.Background(), "translate", "hello")
	if !errors.Is(err, services.ErrExternalService) {
		t.Fatalf("expected external service error, got %v", err)
	}
	if !strings.Contains(err.Error(), "empty content") || !strings.Contains(err.Error(), "response_snippet=") {
		t.Fatalf("expected empty-content error to include snippet, got %v", err)
	}
}

func TestClientRetriesOnHTTP429(t *testing.T) {
	var calls int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			w.Header().Set("Retry-After", "1")
			w.WriteHeader(http.StatusTooManyRequests)
			_ = json.NewEncoder(w).Encode(map[string]string{"error": "rate limited"})
			return
		}
		writeCompletion(t, w, map[string]any{"message": map[string]any{"content": `{"translation":"ciao"}`}})
	}))
	defer server.Close()

	var slept []time.Duration
	client := NewClient(
		Config{APIKey: "test", BaseURL: server.URL, Model: "demo-model"},
		WithSleeper(func(d time.Duration) { slept = append(slept, d) }),
		WithRetryBackoff(0, 10*time.Second),
		WithRetryMaxAttempts(5),
	)
	if _, err := client.CompleteJSON(context.Background(), "translate", "hello"); err != nil {
		t.Fatalf("CompleteJSON: %v", err)
	}
	if calls != 2 {
		t.Fatalf("expected 2 calls, got %d", calls)
	}
	if len(slept) != 1 || slept[0] != time.Second {
		t.Fatalf("expected single sleep of 1s, got %v", slept)
	}
}

func TestClientRetriesOnEmptyContentThenSucceeds(t *testing.T) {
	var calls int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		content := ""
		if calls >= 3 {
			content = `{"translation":"olá"}`
		}
		writeCompletion(t, w, map[string]any{"finish_reason": "stop", "message": map[string]any{"content": content}})
	}))
	defer server.Close()

	client := NewClient(
		Config{APIKey: "test", BaseURL: server.URL, Model: "demo-model"},
		WithRetryBackoff(0, 0),
		WithSleeper(func(time.Duration) {}),
		WithRetryMaxAttempts(5),
	)
	if _, err := client.CompleteJSON(context.Background(), "translate", "hello"); err != nil {
		t.Fatalf("CompleteJSON: %v", err)
	}
	if calls != 3 {
		t.Fatalf("expected 3 calls, got %d", calls)
	}
}

func TestDecodeLLMJSONStripsProse(t *testing.T) {
	var parsed struct {
		Translation string `json:"translation"`
	}
	if err := DecodeLLMJSON("Sure! {\"translation\":\"hej\"} Hope that helps.", &parsed); err != nil {
		t.Fatalf("DecodeLLMJSON: %v", err)
	}
	if parsed.Translation != "hej" {
		t.Fatalf("unexpected translation %q", parsed.Translation)
	}
	if err := DecodeLLMJSON("   ", &parsed); err == nil {
		t.Fatal("expected empty payload error")
	}
}
