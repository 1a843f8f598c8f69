package agent

import (
	"fmt"
	"time"
)

// Config describes one model endpoint.
type Config struct {
	BaseURL     string         `toml:"base_url"`
	Model       string         `toml:"model"`
	APIKeyEnv   string         `toml:"api_key_env"`
	Timeout     string         `toml:"timeout"`
	Temperature *float64       `toml:"temperature"`
	Options     map[string]any `toml:"options"`
}

// DefaultConfig targets the OpenAI API with the key read from
// OPENAI_API_KEY. The model must still be set.
func DefaultConfig() Config {
	return Config{
		BaseURL:   "https://api.openai.com/v1",
		APIKeyEnv: "OPENAI_API_KEY",
		Timeout:   "120s",
	}
}

// Merge applies non-zero values from source into c. Options are merged key
// by key.
func (c *Config) Merge(source *Config) {
	if source.BaseURL != "" {
		c.BaseURL = source.BaseURL
	}
	if source.Model != "" {
		c.Model = source.Model
	}
	if source.APIKeyEnv != "" {
		c.APIKeyEnv = source.APIKeyEnv
	}
	if source.Timeout != "" {
		c.Timeout = source.Timeout
	}
	if source.Temperature != nil {
		t := *source.Temperature
		c.Temperature = &t
	}
	if len(source.Options) > 0 {
		if c.Options == nil {
			c.Options = make(map[string]any, len(source.Options))
		}
		for k, v := range source.Options {
			c.Options[k] = v
		}
	}
}

// TimeoutDuration parses Timeout, defaulting to two minutes.
func (c *Config) TimeoutDuration() (time.Duration, error) {
	if c.Timeout == "" {
		return 120 * time.Second, nil
	}
	d, err := time.ParseDuration(c.Timeout)
	if err != nil {
		return 0, fmt.Errorf("invalid agent timeout %q: %w", c.Timeout, err)
	}
	return d, nil
}
