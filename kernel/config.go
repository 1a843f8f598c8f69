package kernel

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"

	"github.com/tailored-agentic-units/mealplanner/agent"
	"github.com/tailored-agentic-units/mealplanner/capability"
	"github.com/tailored-agentic-units/mealplanner/observability"
	"github.com/tailored-agentic-units/mealplanner/persist"
	"github.com/tailored-agentic-units/mealplanner/phase"
	"github.com/tailored-agentic-units/mealplanner/session"
)

const defaultMaxIterations = 10

// Config holds initialization parameters for all kernel subsystems.
// Each subsystem section delegates to that subsystem's config-driven constructor.
type Config struct {
	// Agent is the base model configuration shared by every phase.
	Agent agent.Config `toml:"agent"`
	// Agents overrides Agent per phase, keyed by phase name.
	Agents map[string]agent.Config `toml:"agents"`

	// Profile is the bootstrap document path. Empty uses the embedded default.
	Profile      string `toml:"profile"`
	WatchProfile bool   `toml:"watch_profile"`

	Session    session.Config          `toml:"session"`
	Persist    persist.Config          `toml:"persist"`
	Capability capability.Config       `toml:"capability"`
	Log        observability.LogConfig `toml:"log"`

	MaxIterations int `toml:"max_iterations"`
}

// DefaultConfig returns a Config with sensible defaults for all subsystems.
func DefaultConfig() Config {
	return Config{
		Agent:         agent.DefaultConfig(),
		Session:       session.DefaultConfig(),
		Persist:       persist.DefaultConfig(),
		Capability:    capability.DefaultConfig(),
		Log:           observability.DefaultLogConfig(),
		MaxIterations: defaultMaxIterations,
	}
}

// Merge applies non-zero values from source into c, delegating to each
// subsystem's Merge method.
func (c *Config) Merge(source *Config) {
	c.Agent.Merge(&source.Agent)
	c.Session.Merge(&source.Session)
	c.Persist.Merge(&source.Persist)
	c.Capability.Merge(&source.Capability)
	c.Log.Merge(&source.Log)

	if source.Profile != "" {
		c.Profile = source.Profile
	}
	if source.WatchProfile {
		c.WatchProfile = true
	}
	if source.MaxIterations > 0 {
		c.MaxIterations = source.MaxIterations
	}

	if len(source.Agents) > 0 {
		if c.Agents == nil {
			c.Agents = make(map[string]agent.Config, len(source.Agents))
		}
		for name, cfg := range source.Agents {
			c.Agents[name] = cfg
		}
	}
}

// AgentConfig returns the effective agent configuration of p: the base
// section with the phase override merged on top.
func (c *Config) AgentConfig(p phase.Phase) agent.Config {
	cfg := c.Agent
	if override, ok := c.Agents[string(p)]; ok {
		cfg.Merge(&override)
	}
	return cfg
}

// Validate reports configuration errors that would only surface mid-turn.
func (c *Config) Validate() error {
	var errs []error
	for name := range c.Agents {
		if _, err := phase.Parse(name); err != nil {
			errs = append(errs, fmt.Errorf("agents.%s: %w", name, err))
		}
	}
	if _, err := c.Capability.TimeoutDuration(); err != nil {
		errs = append(errs, err)
	}
	if _, err := observability.ParseLevel(c.Log.Level); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// LoadConfig reads a TOML config file, merges it with defaults, and returns
// the resulting Config. Unknown keys are rejected.
func LoadConfig(filename string) (*Config, error) {
	cfg := DefaultConfig()

	var loaded Config
	meta, err := toml.DecodeFile(filename, &loaded)
	if err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return nil, fmt.Errorf("unknown config keys: %s", strings.Join(keys, ", "))
	}

	cfg.Merge(&loaded)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LoadEnv loads .env style files into the process environment without
// overriding variables that are already set. Missing files are skipped.
func LoadEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("load %s: %w", f, err)
		}
	}
	return nil
}
