package services

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jwebster45206/story-weaver/internal/config"
)

const veniceBaseURL = "https://api.venice.ai/api/v1"

// Provider bundles the services selected by configuration. Images is nil when
// the provider has no image model.
type Provider struct {
	Model  ModelService
	Images ImageGenerator
}

// NewProvider builds the model and image services named by cfg.LLMProvider.
// Venice and Ollama speak the OpenAI chat protocol and share its client.
func NewProvider(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Provider, error) {
	var p Provider
	switch cfg.LLMProvider {
	case "gemini":
		svc, err := NewGeminiService(ctx, cfg.GeminiAPIKey, cfg.ModelName, cfg.ImageModelName, logger)
		if err != nil {
			return nil, err
		}
		p = Provider{Model: svc, Images: svc}
	case "openai":
		svc := NewOpenAIService(cfg.OpenAIAPIKey, cfg.OpenAIBaseURL, cfg.ModelName, cfg.ImageModelName, logger)
		p = Provider{Model: svc, Images: svc}
	case "venice":
		p = Provider{Model: NewOpenAIService(cfg.VeniceAPIKey, veniceBaseURL, cfg.ModelName, "", logger)}
	case "ollama":
		p = Provider{Model: NewOpenAIService("ollama", cfg.OllamaURL, cfg.ModelName, "", logger)}
	case "anthropic":
		p = Provider{Model: NewAnthropicService(cfg.AnthropicAPIKey, cfg.ModelName, logger)}
	case "mock":
		mock := NewMockLLM()
		p = Provider{Model: mock, Images: mock}
	default:
		return nil, fmt.Errorf("unsupported LLM provider: %s", cfg.LLMProvider)
	}

	if p.Images != nil {
		cached, err := NewCachedImageGenerator(p.Images, cfg.ImageCacheSize, logger)
		if err != nil {
			return nil, err
		}
		p.Images = cached
	}

	logger.Info("Model provider ready", "provider", cfg.LLMProvider, "model", p.Model.Name(), "images", p.Images != nil)
	return &p, nil
}
