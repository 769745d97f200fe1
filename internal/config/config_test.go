package config

import (
	"log/slog"
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("LLM_PROVIDER", "mock")
	t.Setenv("DATA_DIR", t.TempDir())

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if cfg.SaveBackend != "file" {
		t.Errorf("Expected file backend, got %q", cfg.SaveBackend)
	}
	if cfg.SaveSlot != "default" {
		t.Errorf("Expected default slot, got %q", cfg.SaveSlot)
	}
	if cfg.RetryMax != 3 || cfg.RetryInitialDelay != time.Second || cfg.RetryMaxDelay != 30*time.Second {
		t.Errorf("Unexpected retry defaults: %d %v %v", cfg.RetryMax, cfg.RetryInitialDelay, cfg.RetryMaxDelay)
	}
	if cfg.ModelName != "mock" {
		t.Errorf("Expected mock model, got %q", cfg.ModelName)
	}
	if cfg.LogLevel != slog.LevelInfo {
		t.Errorf("Expected info level, got %v", cfg.LogLevel)
	}
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("LLM_PROVIDER", "OpenAI")
	t.Setenv("OPENAI_API_KEY", "sk-test")
	t.Setenv("SAVE_BACKEND", "redis")
	t.Setenv("REDIS_URL", "redis:6379")
	t.Setenv("RETRY_MAX", "5")
	t.Setenv("RETRY_INITIAL_DELAY", "250ms")
	t.Setenv("LOG_LEVEL", "debug")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if cfg.LLMProvider != "openai" {
		t.Errorf("Expected provider to be lower-cased, got %q", cfg.LLMProvider)
	}
	if cfg.ModelName != "gpt-4o-mini" || cfg.ImageModelName != "dall-e-3" {
		t.Errorf("Unexpected model defaults: %q %q", cfg.ModelName, cfg.ImageModelName)
	}
	if cfg.RetryMax != 5 || cfg.RetryInitialDelay != 250*time.Millisecond {
		t.Errorf("Unexpected retry settings: %d %v", cfg.RetryMax, cfg.RetryInitialDelay)
	}
	if cfg.LogLevel != slog.LevelDebug {
		t.Errorf("Expected debug level, got %v", cfg.LogLevel)
	}
}

func TestLoad_OpenAICompatibleProviders(t *testing.T) {
	t.Setenv("LLM_PROVIDER", "ollama")
	t.Setenv("MODEL_NAME", "")
	t.Setenv("OLLAMA_URL", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if cfg.OllamaURL != "http://localhost:11434/v1" {
		t.Errorf("Expected default ollama URL, got %q", cfg.OllamaURL)
	}
	if cfg.ModelName != "llama3.2" {
		t.Errorf("Expected llama3.2, got %q", cfg.ModelName)
	}
	if cfg.ImageModelName != "" {
		t.Errorf("Expected no image model for ollama, got %q", cfg.ImageModelName)
	}
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{"missing gemini key", map[string]string{"LLM_PROVIDER": "gemini", "GEMINI_API_KEY": "", "API_KEY": ""}},
		{"unknown provider", map[string]string{"LLM_PROVIDER": "cohere"}},
		{"missing venice key", map[string]string{"LLM_PROVIDER": "venice", "VENICE_API_KEY": ""}},
		{"unknown backend", map[string]string{"LLM_PROVIDER": "mock", "SAVE_BACKEND": "s3"}},
		{"bad retry count", map[string]string{"LLM_PROVIDER": "mock", "RETRY_MAX": "three"}},
		{"bad duration", map[string]string{"LLM_PROVIDER": "mock", "RETRY_MAX_DELAY": "soon"}},
		{"negative retries", map[string]string{"LLM_PROVIDER": "mock", "RETRY_MAX": "-1"}},
		{"empty cache", map[string]string{"LLM_PROVIDER": "mock", "IMAGE_CACHE_SIZE": "0"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			if _, err := Load(); err == nil {
				t.Error("Expected error")
			}
		})
	}
}

func TestParseLogLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"WARNING": slog.LevelWarn,
		"error":   slog.LevelError,
		"bogus":   slog.LevelInfo,
	}
	for in, want := range tests {
		if got := parseLogLevel(in); got != want {
			t.Errorf("parseLogLevel(%q) = %v, want %v", in, got, want)
		}
	}
}
