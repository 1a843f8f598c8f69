// Package agent is the language-model boundary. Each workflow phase talks to
// one Agent, which accepts a conversation plus tool definitions and returns
// either final text or tool calls.
package agent

import (
	"context"
	"errors"

	"github.com/tailored-agentic-units/mealplanner/core/protocol"
	"github.com/tailored-agentic-units/mealplanner/core/response"
)

// Sentinel errors for agent construction and lookup.
var (
	ErrAgentNotFound  = errors.New("agent not found")
	ErrAgentExists    = errors.New("agent already registered")
	ErrEmptyAgentName = errors.New("agent name is empty")
	ErrMissingModel   = errors.New("agent model is not configured")
	ErrEmptyResponse  = errors.New("agent returned no choices")
)

// Agent sends a conversation to a model with the tools it may call.
type Agent interface {
	ID() string
	Tools(ctx context.Context, messages []protocol.Message, tools []protocol.Tool) (*response.ToolsResponse, error)
}

// New creates an HTTP agent from configuration.
func New(cfg *Config) (Agent, error) {
	return NewClient(cfg)
}
