package logger

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/jwebster45206/story-weaver/internal/config"
)

// Setup configures the global slog logger based on environment. The console
// owns stdout, so records go to cfg.LogFile. The returned closer releases
// the file.
func Setup(cfg *config.Config) (*slog.Logger, io.Closer, error) {
	if cfg.LogFile == "" || cfg.LogFile == "-" {
		return SetupWriter(cfg, io.Discard), nopCloser{}, nil
	}
	if dir := filepath.Dir(cfg.LogFile); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, nil, fmt.Errorf("failed to create log directory: %w", err)
		}
	}
	f, err := os.OpenFile(cfg.LogFile, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open log file: %w", err)
	}
	return SetupWriter(cfg, f), f, nil
}

// SetupWriter configures the global slog logger to write to w.
func SetupWriter(cfg *config.Config, w io.Writer) *slog.Logger {
	var handler slog.Handler

	opts := &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}

	if cfg.Environment == "production" {
		// JSON format for production
		handler = slog.NewJSONHandler(w, opts)
	} else {
		// Text format for development
		handler = slog.NewTextHandler(w, opts)
	}

	logger := slog.New(handler)

	// Set as default logger
	slog.SetDefault(logger)

	return logger
}

// WithStory adds the story's genre and save slot to logger context
func WithStory(logger *slog.Logger, genre, slot string) *slog.Logger {
	return logger.With("genre", genre, "slot", slot)
}

// WithError adds error to logger context
func WithError(logger *slog.Logger, err error) *slog.Logger {
	return logger.With("error", err.Error())
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
