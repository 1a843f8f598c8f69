// Package session holds per-conversation runtime state: the state store, the
// active phase and one transcript per phase.
package session

import (
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/tailored-agentic-units/mealplanner/core/protocol"
	"github.com/tailored-agentic-units/mealplanner/observability"
	"github.com/tailored-agentic-units/mealplanner/persist"
	"github.com/tailored-agentic-units/mealplanner/phase"
	"github.com/tailored-agentic-units/mealplanner/state"
)

// Session is one user's conversation. It owns its store exclusively.
type Session struct {
	id          string
	store       *state.Store
	maxMessages int

	turn sync.Mutex

	mu          sync.RWMutex
	active      phase.Phase
	transcripts map[phase.Phase][]protocol.Message
	updated     time.Time
}

// New creates a session with a fresh UUIDv7 identifier.
func New(cfg *Config, observer observability.Observer) *Session {
	return NewWithID(uuid.Must(uuid.NewV7()).String(), cfg, observer)
}

// NewWithID creates a session with a caller-chosen identifier.
func NewWithID(id string, cfg *Config, observer observability.Observer) *Session {
	s := &Session{
		id:          id,
		store:       state.NewStore(observer),
		active:      phase.Inspiration,
		transcripts: make(map[phase.Phase][]protocol.Message),
		updated:     time.Now(),
	}
	if cfg != nil {
		s.maxMessages = cfg.MaxMessages
	}
	return s
}

func (s *Session) ID() string { return s.id }

// Store returns the session's state store.
func (s *Session) Store() *state.Store { return s.store }

// Begin takes the turn lock. The returned function releases it. Only one
// turn runs per session at a time.
func (s *Session) Begin() func() {
	s.turn.Lock()
	return s.turn.Unlock
}

// Active returns the phase that handled the last turn.
func (s *Session) Active() phase.Phase {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.active
}

// SetActive records the phase handling the current turn.
func (s *Session) SetActive(p phase.Phase) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.active = p
	s.updated = time.Now()
}

// UpdatedAt returns when the session last changed phase or transcript.
func (s *Session) UpdatedAt() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.updated
}

// AddMessage appends msg to the transcript of p. When a message cap is
// configured the oldest messages are dropped, never splitting a tool call
// from its results.
func (s *Session) AddMessage(p phase.Phase, msg protocol.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	msgs := append(s.transcripts[p], msg)
	if s.maxMessages > 0 && len(msgs) > s.maxMessages {
		msgs = trim(msgs, s.maxMessages)
	}
	s.transcripts[p] = msgs
	s.updated = time.Now()
}

// Messages returns a defensive copy of the transcript of p.
func (s *Session) Messages(p phase.Phase) []protocol.Message {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return copyMessages(s.transcripts[p])
}

// ClearTranscript drops the transcript of p.
func (s *Session) ClearTranscript(p phase.Phase) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.transcripts, p)
}

// Snapshot captures the session for persistence.
func (s *Session) Snapshot() persist.Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	transcripts := make(map[string][]protocol.Message, len(s.transcripts))
	for p, msgs := range s.transcripts {
		transcripts[string(p)] = copyMessages(msgs)
	}
	return persist.Snapshot{
		SessionID:   s.id,
		Phase:       string(s.active),
		Data:        s.store.Snapshot(),
		Transcripts: transcripts,
		SavedAt:     time.Now().UTC(),
	}
}

// Restore replaces the session's state with snap. Unknown phase names in
// the snapshot are ignored.
func (s *Session) Restore(snap persist.Snapshot) {
	s.store.Restore(snap.Data)

	s.mu.Lock()
	defer s.mu.Unlock()
	if p, err := phase.Parse(snap.Phase); err == nil {
		s.active = p
	}
	s.transcripts = make(map[phase.Phase][]protocol.Message, len(snap.Transcripts))
	for name, msgs := range snap.Transcripts {
		p := phase.Phase(name)
		if !p.Valid() {
			continue
		}
		s.transcripts[p] = copyMessages(msgs)
	}
	s.updated = time.Now()
}

func copyMessages(msgs []protocol.Message) []protocol.Message {
	copied := make([]protocol.Message, len(msgs))
	for i, msg := range msgs {
		copied[i] = msg
		copied[i].ToolCalls = slices.Clone(msg.ToolCalls)
	}
	return copied
}

// trim keeps at most limit trailing messages, advancing past leading tool
// results whose call was dropped.
func trim(msgs []protocol.Message, limit int) []protocol.Message {
	start := len(msgs) - limit
	for start < len(msgs) && msgs[start].Role == protocol.RoleTool {
		start++
	}
	return slices.Clone(msgs[start:])
}
