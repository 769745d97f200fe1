package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwebster45206/story-weaver/internal/config"
)

func TestNewProvider(t *testing.T) {
	tests := []struct {
		name       string
		cfg        config.Config
		wantName   string
		wantImages bool
	}{
		{
			name:       "mock",
			cfg:        config.Config{LLMProvider: "mock", ImageCacheSize: 4},
			wantName:   "mock",
			wantImages: true,
		},
		{
			name:       "openai",
			cfg:        config.Config{LLMProvider: "openai", OpenAIAPIKey: "k", ModelName: "gpt-4o-mini", ImageCacheSize: 4},
			wantName:   "openai:gpt-4o-mini",
			wantImages: true,
		},
		{
			name:     "anthropic has no images",
			cfg:      config.Config{LLMProvider: "anthropic", AnthropicAPIKey: "k", ModelName: "claude"},
			wantName: "anthropic:claude",
		},
		{
			name:     "venice",
			cfg:      config.Config{LLMProvider: "venice", VeniceAPIKey: "k", ModelName: "llama-3.3-70b"},
			wantName: "openai:llama-3.3-70b",
		},
		{
			name:     "ollama",
			cfg:      config.Config{LLMProvider: "ollama", OllamaURL: "http://localhost:11434/v1", ModelName: "llama3.2"},
			wantName: "openai:llama3.2",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := NewProvider(context.Background(), &tt.cfg, discardLogger())
			require.NoError(t, err)
			assert.Equal(t, tt.wantName, p.Model.Name())
			assert.Equal(t, tt.wantImages, p.Images != nil)
			if tt.wantImages {
				assert.IsType(t, &CachedImageGenerator{}, p.Images)
			}
		})
	}
}

func TestNewProvider_Unknown(t *testing.T) {
	_, err := NewProvider(context.Background(), &config.Config{LLMProvider: "cohere"}, discardLogger())
	assert.Error(t, err)
}
