// Package memory implements the three mutators agents use to record user
// preferences in session state: Set, AppendUnique and Remove.
//
// Each mutator returns a Confirmation carrying a human-readable status line
// and a Tag the caller can branch on without parsing text.
package memory

import (
	"errors"
	"fmt"

	"github.com/tailored-agentic-units/mealplanner/state"
)

// ErrEmptyKey is returned when a mutator is called without a key.
var ErrEmptyKey = errors.New("memory key is empty")

// Tag classifies the outcome of a mutator.
type Tag string

const (
	TagStored    Tag = "stored"
	TagUnchanged Tag = "unchanged"
	TagRemoved   Tag = "removed"
)

// Confirmation reports what a mutator did.
type Confirmation struct {
	Status string
	Tag    Tag
}

func (c Confirmation) String() string { return c.Status }

// Set replaces the value at key unconditionally.
func Set(store *state.Store, key string, value state.Value) (Confirmation, error) {
	if key == "" {
		return Confirmation{}, ErrEmptyKey
	}
	if err := store.Set(key, value); err != nil {
		return Confirmation{}, fmt.Errorf("set %s: %w", key, err)
	}
	return stored(key, value), nil
}

// AppendUnique adds value to the list at key when no equal element exists,
// creating the list if needed. Repeating the call is a no-op.
func AppendUnique(store *state.Store, key string, value state.Value) (Confirmation, error) {
	if key == "" {
		return Confirmation{}, ErrEmptyKey
	}
	added, err := store.AppendUnique(key, value)
	if err != nil {
		return Confirmation{}, fmt.Errorf("append to %s: %w", key, err)
	}
	if !added {
		return Confirmation{
			Status: fmt.Sprintf("%q already contains %q", key, value.Describe()),
			Tag:    TagUnchanged,
		}, nil
	}
	return stored(key, value), nil
}

// Remove deletes the first element equal to value from the list at key.
// The key must exist; a missing value is reported as unchanged.
func Remove(store *state.Store, key string, value state.Value) (Confirmation, error) {
	if key == "" {
		return Confirmation{}, ErrEmptyKey
	}
	removed, err := store.Remove(key, value)
	if err != nil {
		return Confirmation{}, fmt.Errorf("remove from %s: %w", key, err)
	}
	if !removed {
		return Confirmation{
			Status: fmt.Sprintf("%q not found in %q", value.Describe(), key),
			Tag:    TagUnchanged,
		}, nil
	}
	return Confirmation{
		Status: fmt.Sprintf("Removed %q: %q", key, value.Describe()),
		Tag:    TagRemoved,
	}, nil
}

func stored(key string, value state.Value) Confirmation {
	return Confirmation{
		Status: fmt.Sprintf("Stored %q: %q", key, value.Describe()),
		Tag:    TagStored,
	}
}
