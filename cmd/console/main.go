package main

import (
	"context"
	"fmt"
	"os"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/jwebster45206/story-weaver/internal/config"
	"github.com/jwebster45206/story-weaver/internal/engine"
	"github.com/jwebster45206/story-weaver/internal/logger"
	"github.com/jwebster45206/story-weaver/internal/services"
	"github.com/jwebster45206/story-weaver/internal/storage"
	"github.com/jwebster45206/story-weaver/pkg/retry"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log, closer, err := logger.Setup(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to set up logging: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = closer.Close() }()

	log.Info("Starting story weaver console",
		"environment", cfg.Environment,
		"provider", cfg.LLMProvider,
		"save_backend", cfg.SaveBackend)

	ctx := context.Background()

	provider, err := services.NewProvider(ctx, cfg, log)
	if err != nil {
		log.Error("Failed to initialize model provider", "error", err)
		fmt.Fprintf(os.Stderr, "Failed to initialize model provider: %v\n", err)
		os.Exit(1)
	}

	store, err := storage.New(cfg, log)
	if err != nil {
		log.Error("Failed to open save store", "error", err)
		fmt.Fprintf(os.Stderr, "Failed to open save store: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = store.Close() }()

	if rs, ok := store.(*storage.RedisStore); ok {
		if err := rs.WaitForConnection(ctx, 5, 500*time.Millisecond); err != nil {
			fmt.Fprintf(os.Stderr, "Could not connect to Redis at %s: %v\n", cfg.RedisURL, err)
			os.Exit(1)
		}
	} else if err := store.Ping(ctx); err != nil {
		log.Warn("Save store is not reachable, progress will not be saved", "error", err)
	}

	var program *tea.Program
	eng := engine.New(engine.Options{
		Model:  provider.Model,
		Images: provider.Images,
		Store:  store,
		Slot:   cfg.SaveSlot,
		Retry: retry.Policy{
			MaxRetries:   cfg.RetryMax,
			InitialDelay: cfg.RetryInitialDelay,
			MaxDelay:     cfg.RetryMaxDelay,
			MaxJitter:    retry.DefaultMaxJitter,
		},
		RequestTimeout: cfg.RequestTimeout,
		Logger:         log,
		OnUpdate: func(s engine.Snapshot) {
			if program != nil {
				program.Send(snapshotMsg{s})
			}
		},
	})

	program = tea.NewProgram(NewConsoleUI(cfg, eng, log), tea.WithAltScreen())
	if _, err := program.Run(); err != nil {
		log.Error("Console exited with error", "error", err)
		fmt.Fprintf(os.Stderr, "Error running program: %v\n", err)
		os.Exit(1)
	}
	log.Info("Console closed")
}
