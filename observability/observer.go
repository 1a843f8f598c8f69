// Package observability is how the meal planner reports what happened during
// a turn: a recipe proposed, a gate reset, a tool rejected. Packages emit
// Events; Observers turn them into log lines or span events.
package observability

import (
	"context"
	"log/slog"
	"time"
)

// Level is an event severity on the OpenTelemetry SeverityNumber scale, so
// a level forwards to a collector unchanged.
type Level int

// Each level is the lowest number of its severity band.
const (
	LevelVerbose Level = 5
	LevelInfo    Level = 9
	LevelWarning Level = 13
	LevelError   Level = 17
)

// bands lists the upper bound of each severity band with its text and slog
// level. Anything above the last band is FATAL.
var bands = []struct {
	max  Level
	text string
	slog slog.Level
}{
	{4, "TRACE", slog.LevelDebug},
	{8, "DEBUG", slog.LevelDebug},
	{12, "INFO", slog.LevelInfo},
	{16, "WARN", slog.LevelWarn},
	{20, "ERROR", slog.LevelError},
}

func (l Level) String() string {
	for _, b := range bands {
		if l <= b.max {
			return b.text
		}
	}
	return "FATAL"
}

// SlogLevel is the slog level a log handler should record l at.
func (l Level) SlogLevel() slog.Level {
	for _, b := range bands {
		if l <= b.max {
			return b.slog
		}
	}
	return slog.LevelError
}

// EventType names an event, prefixed by the emitting package:
// "recipe.verified", "router.resolve", "kernel.tool.call".
type EventType string

// Event is one thing that happened in a session. Source is the emitting
// package; Data holds the attributes an observer may attach to a log line or
// span.
type Event struct {
	Type      EventType
	Level     Level
	Timestamp time.Time
	Source    string
	Data      map[string]any
}

// Observer is handed every event a component emits.
type Observer interface {
	OnEvent(ctx context.Context, event Event)
}

// Emit stamps the event and forwards it. A nil observer is ignored.
func Emit(ctx context.Context, o Observer, typ EventType, level Level, source string, data map[string]any) {
	if o == nil {
		return
	}
	o.OnEvent(ctx, Event{
		Type:      typ,
		Level:     level,
		Timestamp: time.Now(),
		Source:    source,
		Data:      data,
	})
}

// OrNoOp returns o, or NoOpObserver when o is nil.
func OrNoOp(o Observer) Observer {
	if o == nil {
		return NoOpObserver{}
	}
	return o
}

// NoOpObserver discards all events.
type NoOpObserver struct{}

func (NoOpObserver) OnEvent(ctx context.Context, event Event) {}

// MultiObserver fans out events to multiple observers.
type MultiObserver struct {
	observers []Observer
}

// NewMultiObserver creates a MultiObserver that forwards events to all
// non-nil observers.
func NewMultiObserver(observers ...Observer) *MultiObserver {
	filtered := make([]Observer, 0, len(observers))
	for _, obs := range observers {
		if obs != nil {
			filtered = append(filtered, obs)
		}
	}
	return &MultiObserver{observers: filtered}
}

func (m *MultiObserver) OnEvent(ctx context.Context, event Event) {
	for _, obs := range m.observers {
		obs.OnEvent(ctx, event)
	}
}
