// Package storage persists SaveState snapshots in named save slots.
package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/jwebster45206/story-weaver/internal/config"
	"github.com/jwebster45206/story-weaver/pkg/story"
)

// ErrCorruptSave is returned by Load when a stored record cannot be decoded.
var ErrCorruptSave = errors.New("saved story is corrupt")

// SaveStore holds at most one SaveState per slot.
type SaveStore interface {
	// Health and lifecycle
	Ping(ctx context.Context) error
	Close() error

	// Save replaces the slot's record.
	Save(ctx context.Context, slot string, s *story.SaveState) error
	// Load returns nil, nil when the slot is empty.
	Load(ctx context.Context, slot string) (*story.SaveState, error)
	Delete(ctx context.Context, slot string) error
	Exists(ctx context.Context, slot string) (bool, error)
}

// New opens the store selected by cfg.SaveBackend.
func New(cfg *config.Config, logger *slog.Logger) (SaveStore, error) {
	switch cfg.SaveBackend {
	case "file":
		return NewFileStore(cfg.DataDir, logger)
	case "redis":
		return NewRedisStore(cfg.RedisURL, logger)
	case "memory":
		return NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unsupported save backend: %s", cfg.SaveBackend)
	}
}

func encode(s *story.SaveState) ([]byte, error) {
	if s == nil {
		return nil, errors.New("save state is nil")
	}
	data, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal save state: %w", err)
	}
	return data, nil
}

func decode(data []byte) (*story.SaveState, error) {
	var s story.SaveState
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptSave, err)
	}
	if len(s.History) == 0 && s.Config.Genre == "" {
		return nil, fmt.Errorf("%w: record has no story", ErrCorruptSave)
	}
	return &s, nil
}

func validSlot(slot string) error {
	if slot == "" || strings.ContainsAny(slot, `/\:`) || slot == "." || slot == ".." {
		return fmt.Errorf("invalid save slot %q", slot)
	}
	return nil
}
