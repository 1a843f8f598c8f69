package session

// Config holds session parameters.
type Config struct {
	// MaxMessages caps each phase transcript. Zero keeps everything.
	MaxMessages int `toml:"max_messages"`
}

// DefaultConfig returns the default session configuration.
func DefaultConfig() Config {
	return Config{MaxMessages: 200}
}

// Merge applies non-zero values from source into c.
func (c *Config) Merge(source *Config) {
	if source.MaxMessages != 0 {
		c.MaxMessages = source.MaxMessages
	}
}
