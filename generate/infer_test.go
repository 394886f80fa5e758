package generate

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

// fakeAPI answers both endpoints and records the last request body.
func fakeAPI(t *testing.T, reply string, last *map[string]any) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer test-key" {
			w.WriteHeader(http.StatusUnauthorized)
			w.Write([]byte(`{"error":{"message":"bad key"}}`))
			return
		}
		var body map[string]any
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if last != nil {
			*last = body
		}
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/chat/completions":
			json.NewEncoder(w).Encode(map[string]any{
				"choices": []any{map[string]any{"message": map[string]string{"role": "assistant", "content": reply}}},
			})
		case "/responses":
			json.NewEncoder(w).Encode(map[string]any{
				"output": []any{
					map[string]any{"type": "reasoning"},
					map[string]any{"type": "message", "content": []any{map[string]string{"type": "output_text", "text": reply}}},
				},
			})
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestCompleteChatCompletions(t *testing.T) {
	var last map[string]any
	srv := fakeAPI(t, "weather", &last)
	g := NewGenerator(srv.URL+"/", "test-key", "m1", "chat_completions", 256, 0.2, time.Second)

	got, err := g.Complete(context.Background(), "route this", "is it raining?")
	if err != nil {
		t.Fatal(err)
	}
	if got != "weather" {
		t.Errorf("expected weather, got %q", got)
	}
	if last["model"] != "m1" {
		t.Errorf("expected model m1, got %v", last["model"])
	}
	msgs, _ := last["messages"].([]any)
	if len(msgs) != 2 {
		t.Fatalf("expected system and user messages, got %d", len(msgs))
	}
	if role := msgs[0].(map[string]any)["role"]; role != "system" {
		t.Errorf("expected system message first, got %v", role)
	}
}

func TestCompleteResponsesAPI(t *testing.T) {
	var last map[string]any
	srv := fakeAPI(t, "hello", &last)
	g := NewGenerator(srv.URL, "test-key", "m2", "responses", 0, 0, 0)

	got, err := g.Complete(context.Background(), "sys", "hi")
	if err != nil {
		t.Fatal(err)
	}
	if got != "hello" {
		t.Errorf("expected hello, got %q", got)
	}
	if _, ok := last["input"]; !ok {
		t.Error("responses API request should carry input")
	}
	if _, ok := last["max_output_tokens"]; ok {
		t.Error("zero max tokens should be omitted")
	}
}

func TestZeroTemperatureIsSent(t *testing.T) {
	for _, apiType := range []string{"chat_completions", "responses"} {
		var last map[string]any
		srv := fakeAPI(t, "ok", &last)
		g := NewGenerator(srv.URL, "test-key", "m", apiType, 0, 0, time.Second)
		if _, err := g.Complete(context.Background(), "sys", "hi"); err != nil {
			t.Fatal(err)
		}
		temp, ok := last["temperature"]
		if !ok {
			t.Errorf("%s: temperature 0 was dropped from the request", apiType)
			continue
		}
		if temp != float64(0) {
			t.Errorf("%s: expected temperature 0, got %v", apiType, temp)
		}
	}
}

func TestConverseSendsHistoryAndAppends(t *testing.T) {
	var last map[string]any
	srv := fakeAPI(t, "second answer", &last)
	g := NewGenerator(srv.URL, "test-key", "m", "chat_completions", 0, 0, time.Second)

	conv := NewConversation(5)
	conv.Append("first question", "first answer")

	got, err := g.Converse(context.Background(), conv, "sys", "second question")
	if err != nil {
		t.Fatal(err)
	}
	if got != "second answer" {
		t.Errorf("unexpected reply %q", got)
	}

	msgs, _ := last["messages"].([]any)
	if len(msgs) != 4 {
		t.Fatalf("expected system + 2 history + user = 4 messages, got %d", len(msgs))
	}
	if c := msgs[1].(map[string]any)["content"]; c != "first question" {
		t.Errorf("expected history before the new message, got %v", c)
	}
	if conv.Turns() != 2 {
		t.Errorf("expected 2 turns after success, got %d", conv.Turns())
	}
}

func TestConverseFailureLeavesHistory(t *testing.T) {
	g := NewGenerator("http://127.0.0.1:1", "test-key", "m", "chat_completions", 0, 0, 200*time.Millisecond)
	conv := NewConversation(5)
	if _, err := g.Converse(context.Background(), conv, "sys", "hello"); err == nil {
		t.Fatal("expected transport error")
	}
	if conv.Turns() != 0 {
		t.Errorf("failed exchange must not be recorded, got %d turns", conv.Turns())
	}
}

func TestGeneratorErrors(t *testing.T) {
	srv := fakeAPI(t, "   ", nil)

	if _, err := NewGenerator(srv.URL, "", "m", "chat_completions", 0, 0, 0).Complete(context.Background(), "s", "u"); !errors.Is(err, ErrNotConfigured) {
		t.Errorf("expected ErrNotConfigured, got %v", err)
	}

	if _, err := NewGenerator(srv.URL, "test-key", "m", "chat_completions", 0, 0, 0).Complete(context.Background(), "s", "u"); !errors.Is(err, ErrEmptyReply) {
		t.Errorf("expected ErrEmptyReply for blank reply, got %v", err)
	}

	_, err := NewGenerator(srv.URL, "wrong-key", "m", "chat_completions", 0, 0, 0).Complete(context.Background(), "s", "u")
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected *APIError, got %v", err)
	}
	if apiErr.StatusCode != http.StatusUnauthorized || !strings.Contains(apiErr.Error(), "401") {
		t.Errorf("unexpected API error %v", apiErr)
	}
}

func TestGeneratorErrorPayload(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"error":{"message":"model overloaded","type":"server_error"}}`))
	}))
	defer srv.Close()

	_, err := NewGenerator(srv.URL, "k", "m", "chat_completions", 0, 0, 0).Complete(context.Background(), "s", "u")
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.Message != "model overloaded" {
		t.Errorf("expected API error payload to surface, got %v", err)
	}
}

func TestGeneratorRespectsContext(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err := NewGenerator(srv.URL, "k", "m", "chat_completions", 0, 0, 5*time.Second).Complete(ctx, "s", "u")
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected deadline exceeded, got %v", err)
	}
}
