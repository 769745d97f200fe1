package storage

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/jwebster45206/story-weaver/pkg/story"
)

// FileStore keeps each slot as <dir>/saves/<slot>.json.
type FileStore struct {
	dir    string
	logger *slog.Logger
}

var _ SaveStore = (*FileStore)(nil)

func NewFileStore(dataDir string, logger *slog.Logger) (*FileStore, error) {
	if dataDir == "" {
		dataDir = "./data"
	}
	dir := filepath.Join(dataDir, "saves")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create save directory: %w", err)
	}
	return &FileStore{dir: dir, logger: logger}, nil
}

func (f *FileStore) path(slot string) string {
	return filepath.Join(f.dir, slot+".json")
}

// Ping reports whether the save directory is usable.
func (f *FileStore) Ping(ctx context.Context) error {
	info, err := os.Stat(f.dir)
	if err != nil {
		return fmt.Errorf("save directory unavailable: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("save path %s is not a directory", f.dir)
	}
	return nil
}

func (f *FileStore) Close() error { return nil }

// Save writes to a temp file and renames it over the slot.
func (f *FileStore) Save(ctx context.Context, slot string, s *story.SaveState) error {
	if err := validSlot(slot); err != nil {
		return err
	}
	data, err := encode(s)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(f.dir, slot+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp save file: %w", err)
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("failed to write save file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close save file: %w", err)
	}
	if err := os.Rename(tmpName, f.path(slot)); err != nil {
		f.logger.Error("Failed to save story", "slot", slot, "error", err)
		return fmt.Errorf("failed to save story: %w", err)
	}
	return nil
}

func (f *FileStore) Load(ctx context.Context, slot string) (*story.SaveState, error) {
	if err := validSlot(slot); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(f.path(slot))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read save file: %w", err)
	}
	return decode(data)
}

func (f *FileStore) Delete(ctx context.Context, slot string) error {
	if err := validSlot(slot); err != nil {
		return err
	}
	if err := os.Remove(f.path(slot)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to delete save file: %w", err)
	}
	return nil
}

func (f *FileStore) Exists(ctx context.Context, slot string) (bool, error) {
	if err := validSlot(slot); err != nil {
		return false, err
	}
	_, err := os.Stat(f.path(slot))
	if err == nil {
		return true, nil
	}
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	return false, fmt.Errorf("failed to check save file: %w", err)
}
