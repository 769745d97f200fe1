package services

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/jwebster45206/story-weaver/pkg/chat"
)

const (
	anthropicBaseURL = "https://api.anthropic.com/v1"
	anthropicVersion = "2023-06-01"

	DefaultAnthropicTemperature = 0.7
	DefaultAnthropicMaxTokens   = 2048

	anthropicLeadIn = "(The story so far follows.)"
)

// AnthropicService implements ModelService for Anthropic Claude. It has no
// image model.
type AnthropicService struct {
	apiKey     string
	modelName  string
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

var _ ModelService = (*AnthropicService)(nil)

type AnthropicChatRequest struct {
	Model         string             `json:"model"`
	MaxTokens     int                `json:"max_tokens"`
	Temperature   *float64           `json:"temperature,omitempty"`
	Messages      []chat.ChatMessage `json:"messages"`
	System        string             `json:"system,omitempty"`
	Stream        bool               `json:"stream,omitempty"`
	StopSequences []string           `json:"stop_sequences,omitempty"`
}

// AnthropicStreamEvent is the subset of server-sent event payloads we read.
type AnthropicStreamEvent struct {
	Type  string `json:"type"`
	Delta struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"delta"`
	Error *AnthropicErrorBody `json:"error,omitempty"`
}

type AnthropicErrorBody struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

func NewAnthropicService(apiKey string, modelName string, logger *slog.Logger) *AnthropicService {
	return &AnthropicService{
		apiKey:    apiKey,
		modelName: modelName,
		baseURL:   anthropicBaseURL,
		httpClient: &http.Client{
			Timeout: 120 * time.Second,
		},
		logger: logger,
	}
}

// WithBaseURL points the service at another endpoint, e.g. a test server.
func (a *AnthropicService) WithBaseURL(baseURL string) *AnthropicService {
	a.baseURL = strings.TrimRight(baseURL, "/")
	return a
}

func (a *AnthropicService) Name() string { return "anthropic:" + a.modelName }

func (a *AnthropicService) StartSession(ctx context.Context, systemPrompt string, history []chat.ChatMessage) (Session, error) {
	a.logger.Debug("Starting anthropic session", "model", a.modelName, "history", len(history))
	return &anthropicSession{svc: a, history: newSessionHistory(systemPrompt, history)}, nil
}

type anthropicSession struct {
	svc     *AnthropicService
	history sessionHistory
}

func (s *anthropicSession) SendStream(ctx context.Context, input string, onChunk func(string)) (string, error) {
	reply, err := s.svc.streamCompletion(ctx, s.history.system, s.history.withInput(input), onChunk)
	if err != nil {
		return "", err
	}
	s.history.commit(input, reply)
	return reply, nil
}

// streamCompletion makes a streaming messages request. The API requires
// alternating roles starting with the user, so consecutive same-role
// messages are merged and replayed narrator context is given a user lead-in.
func (a *AnthropicService) streamCompletion(ctx context.Context, system string, messages []chat.ChatMessage, onChunk func(string)) (string, error) {
	msgs := chat.Collapse(messages)
	if len(msgs) > 0 && msgs[0].Role != chat.ChatRoleUser {
		msgs = append([]chat.ChatMessage{{Role: chat.ChatRoleUser, Content: anthropicLeadIn}}, msgs...)
	}

	temperature := DefaultAnthropicTemperature
	anthropicReq := AnthropicChatRequest{
		Model:       a.modelName,
		MaxTokens:   DefaultAnthropicMaxTokens,
		Temperature: &temperature,
		Messages:    msgs,
		System:      system,
		Stream:      true,
	}

	reqBody, err := json.Marshal(anthropicReq)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", a.baseURL+"/messages", bytes.NewBuffer(reqBody))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}

	// Set required Anthropic headers
	req.Header.Set("x-api-key", a.apiKey)
	req.Header.Set("anthropic-version", anthropicVersion)
	req.Header.Set("content-type", "application/json")
	req.Header.Set("accept", "text/event-stream")

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to make request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return "", anthropicStatusError(resp.StatusCode, body)
	}

	var sb strings.Builder
	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		data, ok := strings.CutPrefix(line, "data:")
		if !ok {
			continue
		}
		data = strings.TrimSpace(data)
		if data == "" {
			continue
		}

		var ev AnthropicStreamEvent
		if err := json.Unmarshal([]byte(data), &ev); err != nil {
			a.logger.Warn("Skipping malformed stream event", "error", err)
			continue
		}
		switch ev.Type {
		case "content_block_delta":
			if ev.Delta.Type == "text_delta" && ev.Delta.Text != "" {
				sb.WriteString(ev.Delta.Text)
				if onChunk != nil {
					onChunk(ev.Delta.Text)
				}
			}
		case "error":
			msg := "stream error"
			status := http.StatusInternalServerError
			if ev.Error != nil {
				msg = ev.Error.Message
				if ev.Error.Type == "overloaded_error" {
					status = 529
				}
			}
			return "", &APIError{Provider: "anthropic", StatusCode: status, Code: errorType(ev.Error), Message: msg}
		case "message_stop":
			return sb.String(), nil
		}
	}
	if err := scanner.Err(); err != nil {
		return "", fmt.Errorf("failed to read response stream: %w", err)
	}
	return sb.String(), nil
}

func anthropicStatusError(status int, body []byte) error {
	var payload struct {
		Error *AnthropicErrorBody `json:"error"`
	}
	msg := strings.TrimSpace(string(body))
	if err := json.Unmarshal(body, &payload); err == nil && payload.Error != nil {
		msg = payload.Error.Message
	}
	return &APIError{Provider: "anthropic", StatusCode: status, Code: errorType(payload.Error), Message: msg}
}

func errorType(e *AnthropicErrorBody) string {
	if e == nil {
		return ""
	}
	return e.Type
}
