package profile

import (
	"context"
	"fmt"
	"time"

	"github.com/tailored-agentic-units/mealplanner/observability"
	"github.com/tailored-agentic-units/mealplanner/state"
)

const EventInitialized observability.EventType = "profile.initialized"

// Initializer seeds a session store from a bootstrap document.
type Initializer struct {
	now      func() time.Time
	observer observability.Observer
}

// NewInitializer creates an Initializer using the wall clock.
func NewInitializer(observer observability.Observer) *Initializer {
	return &Initializer{now: time.Now, observer: observability.OrNoOp(observer)}
}

// WithClock overrides the clock used for system_time.
func (i *Initializer) WithClock(now func() time.Time) *Initializer {
	i.now = now
	return i
}

// Initialize copies doc into store the first time it is called for that
// store. The bootstrap marker key records that seeding happened; later
// calls return false and change nothing.
//
// system_time is set when absent. Keys already present in the store are
// left untouched. Every copied value is rebuilt, so the store never shares
// lists or records with doc.
func (i *Initializer) Initialize(ctx context.Context, store *state.Store, doc state.Value) (bool, error) {
	if !doc.IsRecord() {
		return false, fmt.Errorf("%w: state must be an object, got %s", ErrMalformedDocument, doc.Kind())
	}
	if store.Has(state.KeyProfileMarker) {
		return false, nil
	}

	claimed, err := store.SetIfAbsent(state.KeyProfileMarker, state.Bool(true))
	if err != nil || !claimed {
		return false, err
	}

	if _, err := store.SetIfAbsent(state.KeySystemTime, state.String(i.now().Format(time.RFC3339))); err != nil {
		return true, err
	}

	fields, _ := doc.AsRecord()
	copied := 0
	for _, key := range doc.Keys() {
		if key == state.KeyProfileMarker {
			continue
		}
		ok, err := store.SetIfAbsent(key, fields[key].Clone())
		if err != nil {
			return true, err
		}
		if ok {
			copied++
		}
	}

	observability.Emit(ctx, i.observer, EventInitialized, observability.LevelInfo, "profile", map[string]any{
		"keys": copied,
	})
	return true, nil
}
