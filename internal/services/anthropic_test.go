package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/jwebster45206/story-weaver/pkg/chat"
	"github.com/jwebster45206/story-weaver/pkg/retry"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func sseEvent(t *testing.T, w io.Writer, v any) {
	t.Helper()
	b, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("failed to marshal event: %v", err)
	}
	_, _ = fmt.Fprintf(w, "event: message\ndata: %s\n\n", b)
}

func textDelta(text string) map[string]any {
	return map[string]any{
		"type":  "content_block_delta",
		"delta": map[string]any{"type": "text_delta", "text": text},
	}
}

// anthropicRecorder captures request bodies and headers.
type anthropicRecorder struct {
	mu       sync.Mutex
	bodies   []AnthropicChatRequest
	apiKeys  []string
	versions []string
}

func (r *anthropicRecorder) record(t *testing.T, req *http.Request) {
	t.Helper()
	var body AnthropicChatRequest
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		t.Errorf("failed to decode request: %v", err)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.bodies = append(r.bodies, body)
	r.apiKeys = append(r.apiKeys, req.Header.Get("x-api-key"))
	r.versions = append(r.versions, req.Header.Get("anthropic-version"))
}

func TestNewAnthropicService(t *testing.T) {
	service := NewAnthropicService("test-api-key", "claude-3-5-haiku-latest", discardLogger())

	if service.apiKey != "test-api-key" {
		t.Errorf("Expected API key test-api-key, got %s", service.apiKey)
	}
	if service.modelName != "claude-3-5-haiku-latest" {
		t.Errorf("Expected model name claude-3-5-haiku-latest, got %s", service.modelName)
	}
	if service.baseURL != anthropicBaseURL {
		t.Errorf("Expected base URL %s, got %s", anthropicBaseURL, service.baseURL)
	}
	if service.httpClient == nil {
		t.Error("Expected HTTP client to be initialized")
	}
	if service.Name() != "anthropic:claude-3-5-haiku-latest" {
		t.Errorf("Unexpected name %q", service.Name())
	}

	service.WithBaseURL("http://localhost:1234/v1/")
	if service.baseURL != "http://localhost:1234/v1" {
		t.Errorf("Expected trailing slash trimmed, got %s", service.baseURL)
	}
}

func TestAnthropicSession_SendStream(t *testing.T) {
	rec := &anthropicRecorder{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/messages" {
			t.Errorf("Expected path /messages, got %s", r.URL.Path)
		}
		rec.record(t, r)
		w.Header().Set("Content-Type", "text/event-stream")
		sseEvent(t, w, map[string]any{"type": "message_start"})
		sseEvent(t, w, textDelta("The door "))
		sseEvent(t, w, textDelta("creaks open."))
		sseEvent(t, w, map[string]any{"type": "message_stop"})
	}))
	defer server.Close()

	service := NewAnthropicService("k", "claude", discardLogger()).WithBaseURL(server.URL)
	history := []chat.ChatMessage{
		{Role: chat.ChatRoleAgent, Content: "Once upon a time."},
		{Role: chat.ChatRoleAgent, Content: "A castle loomed."},
	}
	session, err := service.StartSession(context.Background(), "You are a narrator.", history)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	var chunks []string
	reply, err := session.SendStream(context.Background(), "Open the door", func(c string) {
		chunks = append(chunks, c)
	})
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if reply != "The door creaks open." {
		t.Errorf("Expected full reply, got %q", reply)
	}
	if len(chunks) != 2 || chunks[0] != "The door " {
		t.Errorf("Unexpected chunks %v", chunks)
	}

	if len(rec.bodies) != 1 {
		t.Fatalf("Expected 1 request, got %d", len(rec.bodies))
	}
	body := rec.bodies[0]
	if rec.apiKeys[0] != "k" || rec.versions[0] != anthropicVersion {
		t.Errorf("Unexpected headers key=%q version=%q", rec.apiKeys[0], rec.versions[0])
	}
	if body.System != "You are a narrator." {
		t.Errorf("Expected system prompt in system field, got %q", body.System)
	}
	if !body.Stream {
		t.Error("Expected stream to be requested")
	}

	// lead-in, merged narrator turns, then the input
	if len(body.Messages) != 3 {
		t.Fatalf("Expected 3 messages, got %d: %+v", len(body.Messages), body.Messages)
	}
	if body.Messages[0].Role != chat.ChatRoleUser || body.Messages[0].Content != anthropicLeadIn {
		t.Errorf("Expected user lead-in, got %+v", body.Messages[0])
	}
	if body.Messages[1].Role != chat.ChatRoleAgent || !strings.Contains(body.Messages[1].Content, "A castle loomed.") {
		t.Errorf("Expected merged narrator message, got %+v", body.Messages[1])
	}
	if body.Messages[2].Content != "Open the door" {
		t.Errorf("Expected input last, got %+v", body.Messages[2])
	}
}

func TestAnthropicSession_HistoryCommittedOnlyOnSuccess(t *testing.T) {
	rec := &anthropicRecorder{}
	var calls int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec.record(t, r)
		calls++
		if calls == 1 {
			w.WriteHeader(http.StatusInternalServerError)
			_, _ = w.Write([]byte(`{"type":"error","error":{"type":"api_error","message":"boom"}}`))
			return
		}
		sseEvent(t, w, textDelta("ok"))
		sseEvent(t, w, map[string]any{"type": "message_stop"})
	}))
	defer server.Close()

	service := NewAnthropicService("k", "claude", discardLogger()).WithBaseURL(server.URL)
	session, _ := service.StartSession(context.Background(), "sys", nil)

	if _, err := session.SendStream(context.Background(), "first", nil); err == nil {
		t.Fatal("Expected error on first send")
	}
	if _, err := session.SendStream(context.Background(), "second", nil); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if _, err := session.SendStream(context.Background(), "third", nil); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	second := rec.bodies[1].Messages
	if len(second) != 1 || second[0].Content != "second" {
		t.Errorf("Expected failed input to be dropped, got %+v", second)
	}
	third := rec.bodies[2].Messages
	if len(third) != 3 || third[1].Content != "ok" || third[2].Content != "third" {
		t.Errorf("Expected committed exchange before third input, got %+v", third)
	}
}

func TestAnthropicStatusErrors(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		body      string
		kind      ErrorKind
		retryable bool
		message   string
	}{
		{
			name:    "unauthorized",
			status:  http.StatusUnauthorized,
			body:    `{"type":"error","error":{"type":"authentication_error","message":"invalid x-api-key"}}`,
			kind:    KindAuth,
			message: "invalid x-api-key",
		},
		{
			name:      "rate limited",
			status:    http.StatusTooManyRequests,
			body:      `{"type":"error","error":{"type":"rate_limit_error","message":"slow down"}}`,
			kind:      KindQuota,
			retryable: true,
			message:   "slow down",
		},
		{
			name:      "plain text body",
			status:    http.StatusBadGateway,
			body:      "bad gateway",
			kind:      KindServer,
			retryable: true,
			message:   "bad gateway",
		},
		{
			name:    "bad request",
			status:  http.StatusBadRequest,
			body:    `{"type":"error","error":{"type":"invalid_request_error","message":"messages: roles must alternate"}}`,
			kind:    KindGeneric,
			message: "messages: roles must alternate",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer server.Close()

			service := NewAnthropicService("k", "claude", discardLogger()).WithBaseURL(server.URL)
			session, _ := service.StartSession(context.Background(), "", nil)
			_, err := session.SendStream(context.Background(), "hi", nil)

			var apiErr *APIError
			if !errors.As(err, &apiErr) {
				t.Fatalf("Expected *APIError, got %T: %v", err, err)
			}
			if apiErr.StatusCode != tt.status {
				t.Errorf("Expected status %d, got %d", tt.status, apiErr.StatusCode)
			}
			if apiErr.Message != tt.message {
				t.Errorf("Expected message %q, got %q", tt.message, apiErr.Message)
			}
			if got := Classify(err); got != tt.kind {
				t.Errorf("Expected kind %v, got %v", tt.kind, got)
			}
			if got := retry.Retryable(err); got != tt.retryable {
				t.Errorf("Expected retryable %v, got %v", tt.retryable, got)
			}
		})
	}
}

func TestAnthropicStreamErrorEvent(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sseEvent(t, w, textDelta("partial"))
		sseEvent(t, w, map[string]any{
			"type":  "error",
			"error": map[string]any{"type": "overloaded_error", "message": "Overloaded"},
		})
	}))
	defer server.Close()

	service := NewAnthropicService("k", "claude", discardLogger()).WithBaseURL(server.URL)
	session, _ := service.StartSession(context.Background(), "", nil)
	reply, err := session.SendStream(context.Background(), "hi", nil)
	if err == nil {
		t.Fatal("Expected error from error event")
	}
	if reply != "" {
		t.Errorf("Expected empty reply on error, got %q", reply)
	}

	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("Expected *APIError, got %T", err)
	}
	if apiErr.StatusCode != 529 || apiErr.Code != "overloaded_error" {
		t.Errorf("Unexpected error fields %+v", apiErr)
	}
	if Classify(err) != KindServer {
		t.Errorf("Expected server kind, got %v", Classify(err))
	}
}

func TestAnthropicStreamSkipsMalformedEvents(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = fmt.Fprint(w, ": ping\n\ndata: {not json\n\n")
		sseEvent(t, w, textDelta("fine"))
	}))
	defer server.Close()

	service := NewAnthropicService("k", "claude", discardLogger()).WithBaseURL(server.URL)
	session, _ := service.StartSession(context.Background(), "", nil)
	reply, err := session.SendStream(context.Background(), "hi", nil)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if reply != "fine" {
		t.Errorf("Expected reply from stream end without message_stop, got %q", reply)
	}
}
