// Package mock provides a scripted Agent for tests and offline runs.
package mock

import (
	"context"
	"errors"
	"slices"
	"sync"

	"github.com/tailored-agentic-units/mealplanner/core/protocol"
	"github.com/tailored-agentic-units/mealplanner/core/response"
)

// ErrExhausted is returned when a scripted agent has no responses left.
var ErrExhausted = errors.New("mock agent has no scripted responses left")

// Call records one request made to the agent.
type Call struct {
	Messages []protocol.Message
	Tools    []protocol.Tool
}

// HandlerFunc computes a response from the request.
type HandlerFunc func(ctx context.Context, messages []protocol.Message, tools []protocol.Tool) (*response.ToolsResponse, error)

// Agent replays scripted responses in order, or delegates to a handler.
type Agent struct {
	id string

	mu        sync.Mutex
	responses []*response.ToolsResponse
	handler   HandlerFunc
	calls     []Call
}

// New creates an agent that returns responses one per call.
func New(id string, responses ...*response.ToolsResponse) *Agent {
	return &Agent{id: id, responses: responses}
}

// NewFunc creates an agent that answers every call with fn.
func NewFunc(id string, fn HandlerFunc) *Agent {
	return &Agent{id: id, handler: fn}
}

func (a *Agent) ID() string { return a.id }

// Tools records the call and returns the next scripted response.
func (a *Agent) Tools(ctx context.Context, messages []protocol.Message, tools []protocol.Tool) (*response.ToolsResponse, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	a.mu.Lock()
	a.calls = append(a.calls, Call{
		Messages: slices.Clone(messages),
		Tools:    slices.Clone(tools),
	})
	handler := a.handler
	var next *response.ToolsResponse
	if handler == nil && len(a.responses) > 0 {
		next = a.responses[0]
		a.responses = a.responses[1:]
	}
	a.mu.Unlock()

	if handler != nil {
		return handler(ctx, messages, tools)
	}
	if next == nil {
		return nil, ErrExhausted
	}
	return next, nil
}

// Push appends scripted responses.
func (a *Agent) Push(responses ...*response.ToolsResponse) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.responses = append(a.responses, responses...)
}

// Calls returns the recorded requests.
func (a *Agent) Calls() []Call {
	a.mu.Lock()
	defer a.mu.Unlock()
	return slices.Clone(a.calls)
}

// Remaining reports how many scripted responses are left.
func (a *Agent) Remaining() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.responses)
}
