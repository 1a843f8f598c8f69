// Package state holds per-session conversation state: a tagged-union Value
// type and the mutable Store every phase of a session reads and writes.
//
// A Store is owned by exactly one session. All reads return deep copies and
// all writes store deep copies, so no caller can alias the stored data.
package state

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/tailored-agentic-units/mealplanner/observability"
)

// Store is a mutable key/value map of Values. Safe for concurrent use.
type Store struct {
	mu       sync.RWMutex
	data     map[string]Value
	observer observability.Observer
}

// NewStore creates an empty Store. A nil observer is replaced with
// NoOpObserver.
func NewStore(observer observability.Observer) *Store {
	s := &Store{
		data:     make(map[string]Value),
		observer: observability.OrNoOp(observer),
	}
	s.emit(EventStoreCreate, map[string]any{})
	return s
}

// Get returns a copy of the value at key.
func (s *Store) Get(key string) (Value, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	v, ok := s.data[key]
	if !ok {
		return Value{}, false
	}
	return v.Clone(), true
}

// Lookup resolves a dotted path such as "current_recipe.is_verified".
func (s *Store) Lookup(path string) (Value, bool) {
	parts := splitPath(path)

	s.mu.RLock()
	defer s.mu.RUnlock()

	root, ok := s.data[parts[0]]
	if !ok {
		return Value{}, false
	}
	v, ok := root.lookup(parts[1:])
	if !ok {
		return Value{}, false
	}
	return v.Clone(), true
}

// Has reports whether key is present.
func (s *Store) Has(key string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, ok := s.data[key]
	return ok
}

// Len returns the number of keys.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.data)
}

// Keys returns the stored keys in sorted order.
func (s *Store) Keys() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	keys := make([]string, 0, len(s.data))
	for k := range s.data {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Set stores a copy of v at key, replacing any previous value.
func (s *Store) Set(key string, v Value) error {
	if key == "" {
		return ErrEmptyKey
	}

	s.mu.Lock()
	s.data[key] = v.Clone()
	s.mu.Unlock()

	s.emit(EventStoreSet, map[string]any{"key": key, "kind": v.Kind().String()})
	return nil
}

// SetIfAbsent stores v only when key is not present and reports whether it
// did.
func (s *Store) SetIfAbsent(key string, v Value) (bool, error) {
	if key == "" {
		return false, ErrEmptyKey
	}

	s.mu.Lock()
	if _, exists := s.data[key]; exists {
		s.mu.Unlock()
		return false, nil
	}
	s.data[key] = v.Clone()
	s.mu.Unlock()

	s.emit(EventStoreSet, map[string]any{"key": key, "kind": v.Kind().String()})
	return true, nil
}

// AppendUnique appends v to the list at key unless an equal element is
// already present. An absent key is created as a one-element list. Reports
// whether the list changed.
func (s *Store) AppendUnique(key string, v Value) (bool, error) {
	if key == "" {
		return false, ErrEmptyKey
	}

	s.mu.Lock()
	current, exists := s.data[key]
	if !exists {
		current = Value{kind: KindList}
	}
	if current.kind != KindList {
		s.mu.Unlock()
		return false, fmt.Errorf("%w: %s holds %s", ErrNotList, key, current.kind)
	}
	if current.Contains(v) {
		s.mu.Unlock()
		return false, nil
	}
	current.list = append(current.list, v.Clone())
	s.data[key] = current
	s.mu.Unlock()

	s.emit(EventStoreAppend, map[string]any{"key": key, "len": len(current.list)})
	return true, nil
}

// Remove deletes the first element equal to v from the list at key. A list
// without v is left unchanged. Fails with ErrMissingKey when key is absent.
func (s *Store) Remove(key string, v Value) (bool, error) {
	if key == "" {
		return false, ErrEmptyKey
	}

	s.mu.Lock()
	current, exists := s.data[key]
	if !exists {
		s.mu.Unlock()
		return false, fmt.Errorf("%w: %s", ErrMissingKey, key)
	}
	if current.kind != KindList {
		s.mu.Unlock()
		return false, fmt.Errorf("%w: %s holds %s", ErrNotList, key, current.kind)
	}
	idx := current.Index(v)
	if idx < 0 {
		s.mu.Unlock()
		return false, nil
	}
	next := make([]Value, 0, len(current.list)-1)
	next = append(next, current.list[:idx]...)
	next = append(next, current.list[idx+1:]...)
	s.data[key] = Value{kind: KindList, list: next}
	s.mu.Unlock()

	s.emit(EventStoreRemove, map[string]any{"key": key, "len": len(next)})
	return true, nil
}

// Delete removes keys outright. Missing keys are ignored.
func (s *Store) Delete(keys ...string) {
	s.mu.Lock()
	removed := 0
	for _, k := range keys {
		if _, ok := s.data[k]; ok {
			delete(s.data, k)
			removed++
		}
	}
	s.mu.Unlock()

	if removed > 0 {
		s.emit(EventStoreDelete, map[string]any{"keys": removed})
	}
}

// Snapshot returns a deep copy of the whole store.
func (s *Store) Snapshot() map[string]Value {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string]Value, len(s.data))
	for k, v := range s.data {
		out[k] = v.Clone()
	}
	return out
}

// Record returns the whole store as a single record value.
func (s *Store) Record() Value {
	return Value{kind: KindRecord, rec: s.Snapshot()}
}

// Restore replaces the store contents with a copy of data.
func (s *Store) Restore(data map[string]Value) {
	next := make(map[string]Value, len(data))
	for k, v := range data {
		next[k] = v.Clone()
	}

	s.mu.Lock()
	s.data = next
	s.mu.Unlock()

	s.emit(EventStoreRestore, map[string]any{"keys": len(next)})
}

func (s *Store) emit(typ observability.EventType, data map[string]any) {
	s.observer.OnEvent(context.Background(), observability.Event{
		Type:      typ,
		Level:     observability.LevelVerbose,
		Timestamp: time.Now(),
		Source:    "state",
		Data:      data,
	})
}
