package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Environment string
	LogLevel    slog.Level
	LogFile     string

	LLMProvider     string // gemini, anthropic, openai, venice, ollama, mock
	GeminiAPIKey    string
	AnthropicAPIKey string
	OpenAIAPIKey    string
	OpenAIBaseURL   string // for OpenAI-compatible endpoints
	VeniceAPIKey    string
	OllamaURL       string
	ModelName       string
	ImageModelName  string
	RequestTimeout  time.Duration

	SaveBackend string // file, redis, memory
	RedisURL    string
	DataDir     string
	SaveSlot    string
	ExportDir   string

	RetryMax          int
	RetryInitialDelay time.Duration
	RetryMaxDelay     time.Duration

	ImageCacheSize int
}

// Load reads configuration from the environment, after loading an optional
// .env file from the working directory.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Environment: getEnv("ENVIRONMENT", "development"),
		LogLevel:    parseLogLevel(getEnv("LOG_LEVEL", "info")),
		LogFile:     getEnv("LOG_FILE", "story-weaver.log"),

		LLMProvider:     strings.ToLower(getEnv("LLM_PROVIDER", "gemini")),
		GeminiAPIKey:    getEnv("GEMINI_API_KEY", os.Getenv("API_KEY")),
		AnthropicAPIKey: getEnv("ANTHROPIC_API_KEY", ""),
		OpenAIAPIKey:    getEnv("OPENAI_API_KEY", ""),
		OpenAIBaseURL:   getEnv("OPENAI_BASE_URL", ""),
		VeniceAPIKey:    getEnv("VENICE_API_KEY", ""),
		OllamaURL:       getEnv("OLLAMA_URL", "http://localhost:11434/v1"),
		ModelName:       getEnv("MODEL_NAME", ""),
		ImageModelName:  getEnv("IMAGE_MODEL_NAME", ""),

		SaveBackend: strings.ToLower(getEnv("SAVE_BACKEND", "file")),
		RedisURL:    getEnv("REDIS_URL", "localhost:6379"),
		DataDir:     getEnv("DATA_DIR", defaultDataDir()),
		SaveSlot:    getEnv("SAVE_SLOT", "default"),
		ExportDir:   getEnv("EXPORT_DIR", "."),
	}

	var err error
	if cfg.RequestTimeout, err = getDuration("REQUEST_TIMEOUT", 3*time.Minute); err != nil {
		return nil, err
	}
	if cfg.RetryMax, err = getInt("RETRY_MAX", 3); err != nil {
		return nil, err
	}
	if cfg.RetryInitialDelay, err = getDuration("RETRY_INITIAL_DELAY", time.Second); err != nil {
		return nil, err
	}
	if cfg.RetryMaxDelay, err = getDuration("RETRY_MAX_DELAY", 30*time.Second); err != nil {
		return nil, err
	}
	if cfg.ImageCacheSize, err = getInt("IMAGE_CACHE_SIZE", 32); err != nil {
		return nil, err
	}

	if cfg.ModelName == "" {
		cfg.ModelName = defaultModel(cfg.LLMProvider)
	}
	if cfg.ImageModelName == "" {
		cfg.ImageModelName = defaultImageModel(cfg.LLMProvider)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks provider and backend settings.
func (c *Config) Validate() error {
	switch c.LLMProvider {
	case "gemini":
		if c.GeminiAPIKey == "" {
			return fmt.Errorf("GEMINI_API_KEY is required when using the gemini provider")
		}
	case "anthropic":
		if c.AnthropicAPIKey == "" {
			return fmt.Errorf("ANTHROPIC_API_KEY is required when using the anthropic provider")
		}
	case "openai":
		if c.OpenAIAPIKey == "" {
			return fmt.Errorf("OPENAI_API_KEY is required when using the openai provider")
		}
	case "venice":
		if c.VeniceAPIKey == "" {
			return fmt.Errorf("VENICE_API_KEY is required when using the venice provider")
		}
	case "ollama":
		if c.OllamaURL == "" {
			return fmt.Errorf("OLLAMA_URL is required when using the ollama provider")
		}
	case "mock":
	default:
		return fmt.Errorf("invalid LLM provider %q (supported: gemini, anthropic, openai, venice, ollama, mock)", c.LLMProvider)
	}

	switch c.SaveBackend {
	case "file", "memory":
	case "redis":
		if c.RedisURL == "" {
			return fmt.Errorf("REDIS_URL is required when using the redis save backend")
		}
	default:
		return fmt.Errorf("invalid save backend %q (supported: file, redis, memory)", c.SaveBackend)
	}

	if c.SaveSlot == "" {
		return fmt.Errorf("SAVE_SLOT cannot be empty")
	}
	if c.RetryMax < 0 {
		return fmt.Errorf("RETRY_MAX cannot be negative")
	}
	if c.ImageCacheSize < 1 {
		return fmt.Errorf("IMAGE_CACHE_SIZE must be at least 1")
	}
	return nil
}

func defaultModel(provider string) string {
	switch provider {
	case "anthropic":
		return "claude-3-5-haiku-latest"
	case "openai":
		return "gpt-4o-mini"
	case "venice":
		return "llama-3.3-70b"
	case "ollama":
		return "llama3.2"
	case "mock":
		return "mock"
	default:
		return "gemini-2.5-flash"
	}
}

func defaultImageModel(provider string) string {
	switch provider {
	case "openai":
		return "dall-e-3"
	case "gemini":
		return "imagen-3.0-generate-002"
	default:
		return ""
	}
}

func defaultDataDir() string {
	if dir, err := os.UserConfigDir(); err == nil {
		return filepath.Join(dir, "story-weaver")
	}
	return ".story-weaver"
}

func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getInt(key string, defaultValue int) (int, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue, nil
	}
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, raw, err)
	}
	return n, nil
}

func getDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue, nil
	}
	d, err := time.ParseDuration(strings.TrimSpace(raw))
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, raw, err)
	}
	return d, nil
}
