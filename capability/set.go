package capability

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/tailored-agentic-units/mealplanner/observability"
)

const (
	EventCallStart    observability.EventType = "capability.call.start"
	EventCallComplete observability.EventType = "capability.call.complete"
	EventCallFailed   observability.EventType = "capability.call.failed"
)

const defaultTimeout = 20 * time.Second

// Set bundles the capabilities available to a session and applies timeouts
// and failure typing to every call. Nil members behave as unavailable.
type Set struct {
	Verifier    Verifier
	Ambient     AmbientSource
	Illustrator Illustrator
	Timeout     time.Duration
	Observer    observability.Observer
}

func (s *Set) timeout() time.Duration {
	if s.Timeout <= 0 {
		return defaultTimeout
	}
	return s.Timeout
}

// Verify calls the verifier.
func (s *Set) Verify(ctx context.Context, candidate Candidate) (Verification, error) {
	if s.Verifier == nil {
		return Verification{}, Unavailable(KindVerify, errors.New("no verifier configured"))
	}
	return call(ctx, s, KindVerify, func(ctx context.Context) (Verification, error) {
		return s.Verifier.Verify(ctx, candidate)
	})
}

// LookupAmbient calls the ambient source. A result with a failed status is
// turned into a Failure.
func (s *Set) LookupAmbient(ctx context.Context, location Location) (Ambient, error) {
	if s.Ambient == nil {
		return Ambient{}, Unavailable(KindAmbient, errors.New("no ambient source configured"))
	}
	result, err := call(ctx, s, KindAmbient, func(ctx context.Context) (Ambient, error) {
		return s.Ambient.Lookup(ctx, location)
	})
	if err != nil {
		return Ambient{}, err
	}
	if result.Status == AmbientFailed {
		return result, Unavailable(KindAmbient, errors.New(result.ErrorMessage))
	}
	return result, nil
}

// Illustrate calls the illustrator.
func (s *Set) Illustrate(ctx context.Context, prompt string) (Illustration, error) {
	if s.Illustrator == nil {
		return Illustration{}, Unavailable(KindIllustrate, errors.New("no illustrator configured"))
	}
	return call(ctx, s, KindIllustrate, func(ctx context.Context) (Illustration, error) {
		return s.Illustrator.Illustrate(ctx, prompt)
	})
}

func call[T any](ctx context.Context, s *Set, kind Kind, fn func(context.Context) (T, error)) (T, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout())
	defer cancel()

	start := time.Now()
	observability.Emit(ctx, s.Observer, EventCallStart, observability.LevelVerbose, "capability", map[string]any{
		"kind": string(kind),
	})

	result, err := fn(ctx)
	if err != nil {
		observability.Emit(ctx, s.Observer, EventCallFailed, observability.LevelWarning, "capability", map[string]any{
			"kind":  string(kind),
			"error": err.Error(),
		})
		var zero T
		return zero, Unavailable(kind, err)
	}

	observability.Emit(ctx, s.Observer, EventCallComplete, observability.LevelVerbose, "capability", map[string]any{
		"kind":        string(kind),
		"duration_ms": time.Since(start).Milliseconds(),
	})
	return result, nil
}

// Config selects the capability transport.
type Config struct {
	NATSURL string `toml:"nats_url"`
	Subject string `toml:"subject"`
	Timeout string `toml:"timeout"` // duration string, e.g. "20s"
}

// DefaultConfig leaves capabilities disconnected.
func DefaultConfig() Config {
	return Config{Subject: "mealplanner.capability", Timeout: "20s"}
}

// Merge applies non-zero values from source into c.
func (c *Config) Merge(source *Config) {
	if source.NATSURL != "" {
		c.NATSURL = source.NATSURL
	}
	if source.Subject != "" {
		c.Subject = source.Subject
	}
	if source.Timeout != "" {
		c.Timeout = source.Timeout
	}
}

// TimeoutDuration parses Timeout.
func (c *Config) TimeoutDuration() (time.Duration, error) {
	if c.Timeout == "" {
		return defaultTimeout, nil
	}
	d, err := time.ParseDuration(c.Timeout)
	if err != nil {
		return 0, fmt.Errorf("invalid capability timeout %q: %w", c.Timeout, err)
	}
	return d, nil
}
