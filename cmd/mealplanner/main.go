// Command mealplanner runs the meal-planning assistant as a terminal chat
// or as a Connect RPC service.
package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/alecthomas/kong"

	"github.com/tailored-agentic-units/mealplanner/kernel"
	"github.com/tailored-agentic-units/mealplanner/observability"
)

// Build-time variables (set via ldflags)
var (
	version = "dev"
	commit  = "unknown"
)

func main() {
	var cli CLI
	ctx := kong.Parse(&cli,
		kong.Name("mealplanner"),
		kong.Description("A conversational meal-planning assistant."),
		kong.UsageOnError(),
		kongVars(),
	)
	ctx.FatalIfErrorf(ctx.Run(&cli.Globals))
}

// runtime is the loaded configuration and process logging.
type runtime struct {
	cfg      *kernel.Config
	logger   *slog.Logger
	observer observability.Observer
	closer   io.Closer
}

// load reads .env files and the config, and installs the process logger.
func (g *Globals) load() (*runtime, error) {
	if err := kernel.LoadEnv(g.EnvFile...); err != nil {
		return nil, err
	}

	cfg := kernel.DefaultConfig()
	if g.Config != "" {
		loaded, err := kernel.LoadConfig(g.Config)
		if err != nil {
			return nil, fmt.Errorf("failed to load config: %w", err)
		}
		cfg = *loaded
	}
	if g.Verbose {
		cfg.Log.Level = "debug"
	}

	logger, closer, err := observability.NewLogger(cfg.Log, os.Stderr)
	if err != nil {
		return nil, err
	}
	slog.SetDefault(logger)
	observability.RegisterObserver("slog", observability.NewSlogObserver(logger))

	observer, err := observability.Resolve(cfg.Log.Observers...)
	if err != nil {
		closer.Close()
		return nil, err
	}

	return &runtime{
		cfg:      &cfg,
		logger:   logger,
		observer: observer,
		closer:   closer,
	}, nil
}

func (r *runtime) kernel() (*kernel.Kernel, error) {
	k, err := kernel.New(r.cfg, kernel.WithObserver(r.observer))
	if err != nil {
		return nil, fmt.Errorf("failed to create kernel: %w", err)
	}
	return k, nil
}

func (c *VersionCmd) Run(*Globals) error {
	fmt.Printf("mealplanner %s (%s)\n", version, commit)
	return nil
}
