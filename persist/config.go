package persist

import (
	"fmt"
	"sort"
	"strings"
	"sync"
)

// Config selects the snapshot backend.
type Config struct {
	Backend string `toml:"backend"` // "", memory, file, leveldb
	Path    string `toml:"path"`    // directory for file and leveldb
}

// DefaultConfig disables persistence.
func DefaultConfig() Config {
	return Config{}
}

// Merge applies non-zero values from source into c.
func (c *Config) Merge(source *Config) {
	if source.Backend != "" {
		c.Backend = source.Backend
	}
	if source.Path != "" {
		c.Path = source.Path
	}
}

// Factory opens a Store for a backend.
type Factory func(cfg *Config) (Store, error)

var (
	backends = map[string]Factory{
		"memory": func(*Config) (Store, error) { return NewMemoryStore(), nil },
		"file": func(cfg *Config) (Store, error) {
			if cfg.Path == "" {
				return nil, fmt.Errorf("file backend requires a path")
			}
			return NewFileStore(cfg.Path), nil
		},
		"leveldb": func(cfg *Config) (Store, error) {
			if cfg.Path == "" {
				return nil, fmt.Errorf("leveldb backend requires a path")
			}
			return NewLevelStore(cfg.Path)
		},
	}
	mutex sync.RWMutex
)

// RegisterBackend adds or replaces a named backend.
func RegisterBackend(name string, factory Factory) {
	mutex.Lock()
	defer mutex.Unlock()

	backends[name] = factory
}

// Backends lists registered backend names.
func Backends() []string {
	mutex.RLock()
	defer mutex.RUnlock()

	names := make([]string, 0, len(backends))
	for name := range backends {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Open creates the Store described by cfg. Returns a nil Store when the
// backend is empty, meaning persistence is disabled.
func Open(cfg *Config) (Store, error) {
	name := strings.ToLower(cfg.Backend)
	if name == "" {
		return nil, nil
	}

	mutex.RLock()
	factory, exists := backends[name]
	mutex.RUnlock()

	if !exists {
		return nil, fmt.Errorf("%w: %s", ErrUnknownBackend, cfg.Backend)
	}
	return factory(cfg)
}
