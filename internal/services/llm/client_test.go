package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"lingocast/internal/failure"
	"lingocast/internal/stage"
)

func writeChoice(t *testing.T, w http.ResponseWriter, choice map[string]any) {
	t.Helper()
	payload := map[string]any{"choices": []any{choice}}
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		t.Errorf("encode response: %v", err)
	}
}

func contentChoice(content string) map[string]any {
	return map[string]any{"message": map[string]any{"content": content}}
}

func TestClientHealthCheck(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test" {
			t.Errorf("unexpected auth header %q", got)
		}
		if got := r.Header.Get("X-Title"); got != "lingocast" {
			t.Errorf("unexpected title header %q", got)
		}
		writeChoice(t, w, contentChoice("```json\n{\"ok\":true}\n```"))
	}))
	defer server.Close()

	client := NewClient(Config{APIKey: "test", BaseURL: server.URL, Model: "demo-model", Title: "lingocast"})
	if err := client.HealthCheck(context.Background()); err != nil {
		t.Fatalf("HealthCheck returned error: %v", err)
	}
}

func TestClientHealthCheckUnauthorizedClassifies(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_ = json.NewEncoder(w).Encode(map[string]any{"error": map[string]string{"message": "No auth credentials found"}})
	}))
	defer server.Close()

	client := NewClient(Config{APIKey: "bad", BaseURL: server.URL, Model: "demo"})
	err := client.HealthCheck(context.Background())
	if err == nil {
		t.Fatal("expected health check to fail")
	}
	if !strings.Contains(err.Error(), "http 401 Unauthorized") {
		t.Fatalf("expected status text in error, got %v", err)
	}
	if pe := failure.NewMapper().Map(err, stage.Translation); pe.Code != failure.CodeAPIKeyInvalid {
		t.Fatalf("code = %s", pe.Code)
	}
}

func TestClientMissingKey(t *testing.T) {
	client := NewClient(Config{BaseURL: "http://127.0.0.1:1"})
	_, err := client.CompleteJSON(context.Background(), "", "system", "user")
	if err == nil {
		t.Fatal("expected error")
	}
	if pe := failure.NewMapper().Map(err, stage.Translation); pe.Code != failure.CodeAPIKeyMissing {
		t.Fatalf("code = %s (%v)", pe.Code, err)
	}
}

func TestCompleteJSONUsesRequestModel(t *testing.T) {
	var models []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req chatCompletionRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		models = append(models, req.Model)
		if req.ResponseFormat["type"] != jsonResponseType {
			t.Errorf("expected json response format, got %v", req.ResponseFormat)
		}
		writeChoice(t, w, contentChoice(`{"ok":true}`))
	}))
	defer server.Close()

	client := NewClient(Config{APIKey: "k", BaseURL: server.URL, Model: "default-model"})
	if _, err := client.CompleteJSON(context.Background(), "fallback-model", "sys", "user"); err != nil {
		t.Fatal(err)
	}
	if _, err := client.CompleteJSON(context.Background(), "", "sys", "user"); err != nil {
		t.Fatal(err)
	}
	if strings.Join(models, ",") != "fallback-model,default-model" {
		t.Fatalf("models = %v", models)
	}
}

func TestCompletionPayloadShapes(t *testing.T) {
	cases := []struct {
		name   string
		choice map[string]any
	}{
		{"tool call", map[string]any{
			"finish_reason": "tool_calls",
			"message": map[string]any{
				"content": "",
				"tool_calls": []any{map[string]any{
					"type":     "function",
					"function": map[string]any{"name": "reply", "arguments": `{"value":"tool"}`},
				}},
			},
		}},
		{"delta", map[string]any{"delta": map[string]any{"content": `{"value":"tool"}`}}},
		{"legacy text", map[string]any{"text": `{"value":"tool"}`}},
		{"prose around json", contentChoice(`Sure! Here it is: {"value":"tool"} Thanks.`)},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				writeChoice(t, w, tc.choice)
			}))
			defer server.Close()
			client := NewClient(Config{APIKey: "k", BaseURL: server.URL, Model: "m"})
			content, err := client.CompleteJSON(context.Background(), "", "sys", "user")
			if err != nil {
				t.Fatalf("CompleteJSON: %v", err)
			}
			var parsed struct {
				Value string `json:"value"`
			}
			if err := DecodeLLMJSON(content, &parsed); err != nil || parsed.Value != "tool" {
				t.Fatalf("decode %q: %+v, %v", content, parsed, err)
			}
		})
	}
}

func TestClientEmptyContentIsMalformed(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeChoice(t, w, map[string]any{"finish_reason": "stop", "message": map[string]any{"content": ""}})
	}))
	defer server.Close()

	client := NewClient(
		Config{APIKey: "test", BaseURL: server.URL, Model: "demo-model"},
		WithRetryBackoff(0, 0),
		WithSleeper(func(time.Duration) {}),
	)
	_, err := client.CompleteJSON(context.Background(), "", "sys", "user")
	if err == nil {
		t.Fatal("expected failure")
	}
	if !strings.Contains(err.Error(), "response_snippet=") || !strings.Contains(err.Error(), "gave up after 3 attempts") {
		t.Fatalf("unexpected error %v", err)
	}
	if pe := failure.NewMapper().Map(err, stage.Translation); pe.Code != failure.CodeProcessingFailed {
		t.Fatalf("code = %s", pe.Code)
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
		writeChoice(t, w, contentChoice(`{"ok":true}`))
	}))
	defer server.Close()

	var slept []time.Duration
	client := NewClient(
		Config{APIKey: "test", BaseURL: server.URL, Model: "demo-model"},
		WithSleeper(func(d time.Duration) { slept = append(slept, d) }),
		WithRetryBackoff(0, 10*time.Second),
		WithRetryMaxAttempts(5),
	)
	if err := client.HealthCheck(context.Background()); err != nil {
		t.Fatalf("HealthCheck returned error: %v", err)
	}
	if calls != 2 {
		t.Fatalf("expected 2 calls, got %d", calls)
	}
	if len(slept) != 1 || slept[0] != time.Second {
		t.Fatalf("expected single sleep of 1s, got %v", slept)
	}
}

func TestClientDoesNotRetryClientErrors(t *testing.T) {
	var calls int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusNotFound)
		_ = json.NewEncoder(w).Encode(map[string]any{"error": map[string]string{"message": "No endpoints found for model nope/nope"}})
	}))
	defer server.Close()

	client := NewClient(Config{APIKey: "test", BaseURL: server.URL}, WithSleeper(func(time.Duration) {}))
	_, err := client.CompleteJSON(context.Background(), "nope/nope", "sys", "user")
	if err == nil || calls != 1 {
		t.Fatalf("expected single failing call, got calls=%d err=%v", calls, err)
	}
	if pe := failure.NewMapper().Map(err, stage.Translation); pe.Code != failure.CodeModelNotFound {
		t.Fatalf("code = %s (%v)", pe.Code, err)
	}
}

func TestBackoffDelayDoublesAndCaps(t *testing.T) {
	client := NewClient(Config{}, WithRetryBackoff(time.Second, 5*time.Second))
	want := []time.Duration{time.Second, 2 * time.Second, 4 * time.Second, 5 * time.Second, 5 * time.Second}
	for i, expected := range want {
		if got := client.retry.backoff(i + 1); got != expected {
			t.Fatalf("attempt %d: delay %v, want %v", i+1, got, expected)
		}
	}
}

func TestParseRetryAfter(t *testing.T) {
	if d, ok := parseRetryAfter("7"); !ok || d != 7*time.Second {
		t.Fatalf("seconds: %v %v", d, ok)
	}
	if _, ok := parseRetryAfter("-1"); ok {
		t.Fatal("negative values are invalid")
	}
	future := time.Now().Add(time.Minute).UTC().Format(http.TimeFormat)
	if d, ok := parseRetryAfter(future); !ok || d <= 0 {
		t.Fatalf("http date: %v %v", d, ok)
	}
	if _, ok := parseRetryAfter("soon"); ok {
		t.Fatal("garbage accepted")
	}
}
