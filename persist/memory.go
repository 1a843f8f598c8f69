package persist

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// memoryStore keeps encoded snapshots in process memory. Snapshots are lost
// at exit.
type memoryStore struct {
	snapshots map[string][]byte
	mu        sync.RWMutex
}

// NewMemoryStore creates an in-process Store.
func NewMemoryStore() Store {
	return &memoryStore{snapshots: make(map[string][]byte)}
}

func (m *memoryStore) Save(_ context.Context, snap Snapshot) error {
	data, err := Encode(snap)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrSaveFailed, err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.snapshots[snap.SessionID] = data
	return nil
}

func (m *memoryStore) Load(_ context.Context, sessionID string) (Snapshot, error) {
	m.mu.RLock()
	data, exists := m.snapshots[sessionID]
	m.mu.RUnlock()

	if !exists {
		return Snapshot{}, fmt.Errorf("%w: %s", ErrSnapshotNotFound, sessionID)
	}
	return Decode(data)
}

func (m *memoryStore) Delete(_ context.Context, sessionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.snapshots, sessionID)
	return nil
}

func (m *memoryStore) List(_ context.Context) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	ids := make([]string, 0, len(m.snapshots))
	for id := range m.snapshots {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

func (m *memoryStore) Close() error { return nil }
