package session

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/tailored-agentic-units/mealplanner/observability"
	"github.com/tailored-agentic-units/mealplanner/persist"
)

const (
	EventCreated  observability.EventType = "session.created"
	EventRestored observability.EventType = "session.restored"
	EventSaved    observability.EventType = "session.saved"
)

// Manager tracks live sessions and, when a persist.Store is configured,
// saves and restores them.
type Manager struct {
	cfg      Config
	store    persist.Store
	observer observability.Observer

	mu       sync.Mutex
	sessions map[string]*Session
}

// NewManager creates a Manager. store may be nil to disable persistence.
func NewManager(cfg *Config, store persist.Store, observer observability.Observer) *Manager {
	c := DefaultConfig()
	if cfg != nil {
		c.Merge(cfg)
	}
	return &Manager{
		cfg:      c,
		store:    store,
		observer: observability.OrNoOp(observer),
		sessions: make(map[string]*Session),
	}
}

// Create starts a new session.
func (m *Manager) Create(ctx context.Context) *Session {
	s := New(&m.cfg, m.observer)

	m.mu.Lock()
	m.sessions[s.ID()] = s
	m.mu.Unlock()

	observability.Emit(ctx, m.observer, EventCreated, observability.LevelInfo, "session", map[string]any{
		"session_id": s.ID(),
	})
	return s
}

// Get returns a live session.
func (m *Manager) Get(id string) (*Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	return s, ok
}

// Open returns the session with id: live, restored from the snapshot
// store, or newly created under that id.
func (m *Manager) Open(ctx context.Context, id string) (*Session, error) {
	if id == "" {
		return m.Create(ctx), nil
	}

	if s, ok := m.Get(id); ok {
		return s, nil
	}

	// Load runs outside m.mu; a racing Open of the same id keeps the first
	// session inserted.
	s := NewWithID(id, &m.cfg, m.observer)
	var restored *persist.Snapshot
	if m.store != nil {
		snap, err := m.store.Load(ctx, id)
		switch {
		case err == nil:
			s.Restore(snap)
			restored = &snap
		case errors.Is(err, persist.ErrSnapshotNotFound):
		default:
			return nil, fmt.Errorf("open session %s: %w", id, err)
		}
	}

	m.mu.Lock()
	if live, ok := m.sessions[id]; ok {
		m.mu.Unlock()
		return live, nil
	}
	m.sessions[id] = s
	m.mu.Unlock()

	if restored != nil {
		observability.Emit(ctx, m.observer, EventRestored, observability.LevelInfo, "session", map[string]any{
			"session_id": id,
			"phase":      restored.Phase,
		})
	}
	return s, nil
}

// Save writes a snapshot of s. It is a no-op without a snapshot store.
func (m *Manager) Save(ctx context.Context, s *Session) error {
	if m.store == nil {
		return nil
	}
	if err := m.store.Save(ctx, s.Snapshot()); err != nil {
		return fmt.Errorf("save session %s: %w", s.ID(), err)
	}
	observability.Emit(ctx, m.observer, EventSaved, observability.LevelVerbose, "session", map[string]any{
		"session_id": s.ID(),
	})
	return nil
}

// Discard forgets a live session and deletes its snapshot.
func (m *Manager) Discard(ctx context.Context, id string) error {
	m.mu.Lock()
	delete(m.sessions, id)
	m.mu.Unlock()

	if m.store == nil {
		return nil
	}
	return m.store.Delete(ctx, id)
}

// List returns the ids of live sessions, sorted.
func (m *Manager) List() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := make([]string, 0, len(m.sessions))
	for id := range m.sessions {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
