package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"github.com/jwebster45206/story-weaver/pkg/chat"
)

const (
	DefaultOpenAIModel      = openai.GPT4oMini
	DefaultOpenAIImageModel = openai.CreateImageModelDallE3
)

// OpenAIService implements ModelService and ImageGenerator on the OpenAI API.
type OpenAIService struct {
	client     *openai.Client
	modelName  string
	imageModel string
	logger     *slog.Logger
}

var (
	_ ModelService   = (*OpenAIService)(nil)
	_ ImageGenerator = (*OpenAIService)(nil)
)

// NewOpenAIService creates the service. An empty baseURL uses the public API.
func NewOpenAIService(apiKey, baseURL, modelName, imageModel string, logger *slog.Logger) *OpenAIService {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	if modelName == "" {
		modelName = DefaultOpenAIModel
	}
	if imageModel == "" {
		imageModel = DefaultOpenAIImageModel
	}
	return &OpenAIService{
		client:     openai.NewClientWithConfig(cfg),
		modelName:  modelName,
		imageModel: imageModel,
		logger:     logger,
	}
}

func (o *OpenAIService) Name() string { return "openai:" + o.modelName }

func (o *OpenAIService) StartSession(ctx context.Context, systemPrompt string, history []chat.ChatMessage) (Session, error) {
	o.logger.Debug("Starting openai session", "model", o.modelName, "history", len(history))
	return &openaiSession{svc: o, history: newSessionHistory(systemPrompt, history)}, nil
}

type openaiSession struct {
	svc     *OpenAIService
	history sessionHistory
}

func (s *openaiSession) SendStream(ctx context.Context, input string, onChunk func(string)) (string, error) {
	msgs := make([]openai.ChatCompletionMessage, 0, len(s.history.messages)+2)
	if s.history.system != "" {
		msgs = append(msgs, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: s.history.system})
	}
	for _, m := range s.history.withInput(input) {
		role := openai.ChatMessageRoleAssistant
		if m.Role == chat.ChatRoleUser {
			role = openai.ChatMessageRoleUser
		}
		// empty assistant messages are rejected by the API
		if m.Content == "" && role == openai.ChatMessageRoleAssistant {
			continue
		}
		msgs = append(msgs, openai.ChatCompletionMessage{Role: role, Content: m.Content})
	}

	stream, err := s.svc.client.CreateChatCompletionStream(ctx, openai.ChatCompletionRequest{
		Model:    s.svc.modelName,
		Messages: msgs,
		Stream:   true,
	})
	if err != nil {
		return "", openaiError(err)
	}
	defer func() { _ = stream.Close() }()

	var sb strings.Builder
	for {
		resp, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return "", openaiError(err)
		}
		if len(resp.Choices) == 0 || resp.Choices[0].Delta.Content == "" {
			continue
		}
		text := resp.Choices[0].Delta.Content
		sb.WriteString(text)
		if onChunk != nil {
			onChunk(text)
		}
	}

	reply := sb.String()
	s.history.commit(input, reply)
	return reply, nil
}

func (o *OpenAIService) GenerateImage(ctx context.Context, prompt string) (string, error) {
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return "", ErrEmptyPrompt
	}

	resp, err := o.client.CreateImage(ctx, openai.ImageRequest{
		Prompt:         prompt,
		Model:          o.imageModel,
		N:              1,
		Size:           openai.CreateImageSize1024x1024,
		ResponseFormat: openai.CreateImageResponseFormatB64JSON,
	})
	if err != nil {
		return "", openaiError(err)
	}
	if len(resp.Data) == 0 {
		o.logger.Warn("Image generation returned no data", "prompt", prompt)
		return "", nil
	}
	if b64 := resp.Data[0].B64JSON; b64 != "" {
		return "data:image/png;base64," + b64, nil
	}
	return resp.Data[0].URL, nil
}

// openaiError converts SDK errors into *APIError, passing others through.
func openaiError(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		code := ""
		if s, ok := apiErr.Code.(string); ok {
			code = s
		}
		return &APIError{Provider: "openai", StatusCode: apiErr.HTTPStatusCode, Code: code, Message: apiErr.Message, Err: err}
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return &APIError{Provider: "openai", StatusCode: reqErr.HTTPStatusCode, Message: fmt.Sprint(reqErr.Err), Err: err}
	}
	return err
}
