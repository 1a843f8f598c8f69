package profile

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"

	"github.com/tailored-agentic-units/mealplanner/observability"
	"github.com/tailored-agentic-units/mealplanner/state"
)

const (
	EventReloaded     observability.EventType = "profile.reloaded"
	EventReloadFailed observability.EventType = "profile.reload_failed"
)

// Source supplies the bootstrap document for new sessions. A file-backed
// Source reloads when the file changes; an invalid edit keeps the previous
// document. Sessions already seeded are never affected.
type Source struct {
	path     string
	observer observability.Observer

	mu  sync.RWMutex
	doc state.Value

	watcher *fsnotify.Watcher
	done    chan struct{}
}

// NewSource loads the document at path, or the embedded default when path
// is empty.
func NewSource(path string, observer observability.Observer) (*Source, error) {
	s := &Source{path: path, observer: observability.OrNoOp(observer)}
	if path == "" {
		s.doc = Default()
		return s, nil
	}
	doc, err := LoadDocument(path)
	if err != nil {
		return nil, err
	}
	s.doc = doc
	return s, nil
}

// Path returns the backing file, or "" for the embedded default.
func (s *Source) Path() string { return s.path }

// Document returns a copy of the current document.
func (s *Source) Document() state.Value {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.doc.Clone()
}

// Reload re-reads the backing file.
func (s *Source) Reload(ctx context.Context) error {
	if s.path == "" {
		return nil
	}
	doc, err := LoadDocument(s.path)
	if err != nil {
		observability.Emit(ctx, s.observer, EventReloadFailed, observability.LevelWarning, "profile", map[string]any{
			"path":  s.path,
			"error": err.Error(),
		})
		return err
	}

	s.mu.Lock()
	s.doc = doc
	s.mu.Unlock()

	observability.Emit(ctx, s.observer, EventReloaded, observability.LevelInfo, "profile", map[string]any{
		"path": s.path,
	})
	return nil
}

// Watch reloads the document whenever its file is written or replaced,
// until ctx is cancelled or Close is called. The parent directory is
// watched so editors that write via rename are picked up.
func (s *Source) Watch(ctx context.Context) error {
	if s.path == "" {
		return nil
	}
	if s.watcher != nil {
		return errors.New("profile source already watching")
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	if err := watcher.Add(filepath.Dir(s.path)); err != nil {
		watcher.Close()
		return fmt.Errorf("watch %s: %w", s.path, err)
	}
	s.watcher = watcher
	s.done = make(chan struct{})

	target := filepath.Clean(s.path)
	go func() {
		defer close(s.done)
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(event.Name) != target {
					continue
				}
				if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) {
					_ = s.Reload(ctx)
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				observability.Emit(ctx, s.observer, EventReloadFailed, observability.LevelWarning, "profile", map[string]any{
					"path":  s.path,
					"error": err.Error(),
				})
			}
		}
	}()
	return nil
}

// Close stops watching.
func (s *Source) Close() error {
	if s.watcher == nil {
		return nil
	}
	err := s.watcher.Close()
	<-s.done
	return err
}
