package services

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"google.golang.org/genai"

	"github.com/jwebster45206/story-weaver/pkg/chat"
)

const (
	DefaultGeminiModel      = "gemini-2.5-flash"
	DefaultGeminiImageModel = "imagen-3.0-generate-002"
)

// GeminiService implements ModelService and ImageGenerator on the Gemini API.
type GeminiService struct {
	client     *genai.Client
	modelName  string
	imageModel string
	logger     *slog.Logger
}

var (
	_ ModelService   = (*GeminiService)(nil)
	_ ImageGenerator = (*GeminiService)(nil)
)

func NewGeminiService(ctx context.Context, apiKey, modelName, imageModel string, logger *slog.Logger) (*GeminiService, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}
	if modelName == "" {
		modelName = DefaultGeminiModel
	}
	if imageModel == "" {
		imageModel = DefaultGeminiImageModel
	}
	return &GeminiService{
		client:     client,
		modelName:  modelName,
		imageModel: imageModel,
		logger:     logger,
	}, nil
}

func (g *GeminiService) Name() string { return "gemini:" + g.modelName }

func (g *GeminiService) StartSession(ctx context.Context, systemPrompt string, history []chat.ChatMessage) (Session, error) {
	g.logger.Debug("Starting gemini session", "model", g.modelName, "history", len(history))
	return &geminiSession{
		svc:     g,
		history: newSessionHistory(systemPrompt, history),
		config: &genai.GenerateContentConfig{
			SystemInstruction: genai.NewContentFromText(systemPrompt, genai.RoleUser),
			ThinkingConfig:    &genai.ThinkingConfig{ThinkingBudget: genai.Ptr[int32](0)},
		},
	}, nil
}

type geminiSession struct {
	svc     *GeminiService
	history sessionHistory
	config  *genai.GenerateContentConfig
}

func (s *geminiSession) SendStream(ctx context.Context, input string, onChunk func(string)) (string, error) {
	contents := toGeminiContents(s.history.withInput(input))

	var sb strings.Builder
	for resp, err := range s.svc.client.Models.GenerateContentStream(ctx, s.svc.modelName, contents, s.config) {
		if err != nil {
			return "", geminiError(err)
		}
		text := resp.Text()
		if text == "" {
			continue
		}
		sb.WriteString(text)
		if onChunk != nil {
			onChunk(text)
		}
	}

	reply := sb.String()
	s.history.commit(input, reply)
	return reply, nil
}

func (g *GeminiService) GenerateImage(ctx context.Context, prompt string) (string, error) {
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return "", ErrEmptyPrompt
	}

	resp, err := g.client.Models.GenerateImages(ctx, g.imageModel, prompt, &genai.GenerateImagesConfig{
		NumberOfImages: 1,
		OutputMIMEType: "image/jpeg",
	})
	if err != nil {
		return "", geminiError(err)
	}
	if resp == nil || len(resp.GeneratedImages) == 0 || resp.GeneratedImages[0].Image == nil ||
		len(resp.GeneratedImages[0].Image.ImageBytes) == 0 {
		g.logger.Warn("Image generation returned no data", "prompt", prompt)
		return "", nil
	}

	img := resp.GeneratedImages[0].Image
	mime := img.MIMEType
	if mime == "" {
		mime = "image/jpeg"
	}
	return "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(img.ImageBytes), nil
}

func toGeminiContents(msgs []chat.ChatMessage) []*genai.Content {
	out := make([]*genai.Content, 0, len(msgs))
	for _, m := range msgs {
		role := genai.Role(genai.RoleModel)
		if m.Role == chat.ChatRoleUser {
			role = genai.RoleUser
		}
		out = append(out, genai.NewContentFromText(m.Content, role))
	}
	return out
}

// geminiError converts SDK errors into *APIError, passing others through.
func geminiError(err error) error {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return &APIError{Provider: "gemini", StatusCode: apiErr.Code, Code: apiErr.Status, Message: apiErr.Message, Err: err}
	}
	var apiErrPtr *genai.APIError
	if errors.As(err, &apiErrPtr) && apiErrPtr != nil {
		return &APIError{Provider: "gemini", StatusCode: apiErrPtr.Code, Code: apiErrPtr.Status, Message: apiErrPtr.Message, Err: err}
	}
	return err
}
