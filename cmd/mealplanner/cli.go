package main

import "github.com/alecthomas/kong"

// CLI defines the command-line interface.
type CLI struct {
	Globals

	Chat            ChatCmd            `cmd:"" default:"withargs" help:"Talk to the meal planner in the terminal"`
	Serve           ServeCmd           `cmd:"" help:"Serve conversation turns over Connect RPC"`
	Responder       ResponderCmd       `cmd:"" help:"Answer recipe verification requests over NATS from a curated catalog"`
	ValidateProfile ValidateProfileCmd `cmd:"" help:"Check a bootstrap profile document"`
	Version         VersionCmd         `cmd:"" help:"Show version information"`
}

// Globals are flags shared by every command.
type Globals struct {
	Config  string   `short:"c" type:"path" env:"MEALPLANNER_CONFIG" help:"TOML config file"`
	EnvFile []string `name:"env-file" default:".env" help:"Environment files to load (repeatable)"`
	Verbose bool     `short:"v" help:"Enable debug logging"`
}

// ChatCmd runs the interactive REPL.
type ChatCmd struct {
	Session string `help:"Resume an existing session id"`
	Remote  string `help:"Base URL of a running server; omit to run in process"`
	History string `type:"path" help:"Readline history file (default ~/.mealplanner_history)"`
}

// ServeCmd hosts the Connect service.
type ServeCmd struct {
	Addr string `default:":8080" help:"Listen address"`
}

// ResponderCmd serves capability requests for the configured NATS subject.
type ResponderCmd struct {
	Catalog string `arg:"" type:"existingfile" help:"Recipe catalog (.yaml)"`
	NATS    string `name:"nats" help:"NATS URL (default: capability.nats_url from config)"`
}

// ValidateProfileCmd validates a bootstrap document.
type ValidateProfileCmd struct {
	Path string `arg:"" type:"existingfile" help:"Profile document (.json, .yaml or .yml)"`
}

// VersionCmd shows version information.
type VersionCmd struct{}

func kongVars() kong.Vars {
	return kong.Vars{
		"version": version,
	}
}
