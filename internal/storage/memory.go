package storage

import (
	"context"
	"sync"

	"github.com/jwebster45206/story-weaver/pkg/story"
)

// MemoryStore is an in-process SaveStore for tests and the mock provider.
// Records are stored encoded so that Load never aliases a caller's state.
type MemoryStore struct {
	mu        sync.RWMutex
	records   map[string][]byte
	pingError error
	saveError error
	saves     int
}

// Ensure MemoryStore implements SaveStore interface
var _ SaveStore = (*MemoryStore)(nil)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[string][]byte)}
}

// SetPingError configures the store to fail on ping with the given error
func (m *MemoryStore) SetPingError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pingError = err
}

// SetSaveError configures the store to fail every Save
func (m *MemoryStore) SetSaveError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saveError = err
}

// PutRaw stores bytes as-is, e.g. to simulate a corrupt record.
func (m *MemoryStore) PutRaw(slot string, data []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records[slot] = append([]byte(nil), data...)
}

// SaveCount is the number of successful Save calls.
func (m *MemoryStore) SaveCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.saves
}

func (m *MemoryStore) Ping(ctx context.Context) error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.pingError
}

func (m *MemoryStore) Close() error { return nil }

func (m *MemoryStore) Save(ctx context.Context, slot string, s *story.SaveState) error {
	if err := validSlot(slot); err != nil {
		return err
	}
	data, err := encode(s)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saveError != nil {
		return m.saveError
	}
	m.records[slot] = data
	m.saves++
	return nil
}

func (m *MemoryStore) Load(ctx context.Context, slot string) (*story.SaveState, error) {
	if err := validSlot(slot); err != nil {
		return nil, err
	}
	m.mu.RLock()
	data, ok := m.records[slot]
	m.mu.RUnlock()
	if !ok {
		return nil, nil
	}
	return decode(data)
}

func (m *MemoryStore) Delete(ctx context.Context, slot string) error {
	if err := validSlot(slot); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.records, slot)
	return nil
}

func (m *MemoryStore) Exists(ctx context.Context, slot string) (bool, error) {
	if err := validSlot(slot); err != nil {
		return false, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.records[slot]
	return ok, nil
}
