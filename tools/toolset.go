package tools

import (
	"context"
	"fmt"

	"github.com/tailored-agentic-units/mealplanner/core/protocol"
	"github.com/tailored-agentic-units/mealplanner/phase"
	"github.com/tailored-agentic-units/mealplanner/state"
)

// Toolset exposes the tools one phase may call and routes their calls
// through a Gateway.
type Toolset struct {
	gateway *Gateway
	def     phase.Definition
}

// For returns the toolset of phase p.
func (g *Gateway) For(p phase.Phase) (*Toolset, error) {
	def, err := phase.Lookup(p)
	if err != nil {
		return nil, err
	}
	return &Toolset{gateway: g, def: def}, nil
}

// Phase returns the phase the toolset serves.
func (t *Toolset) Phase() phase.Phase { return t.def.Phase }

// List returns the definitions of the allowed tools in allow-list order.
func (t *Toolset) List() []protocol.Tool {
	out := make([]protocol.Tool, 0, len(t.def.Tools))
	for _, name := range t.def.Tools {
		if tool, ok := Definition(name); ok {
			out = append(out, tool)
		}
	}
	return out
}

// Execute decodes and dispatches one call. Unknown, disallowed and
// malformed calls return an error and change nothing. Only inspiration may
// replace the current recipe; the later phases read it.
func (t *Toolset) Execute(ctx context.Context, call protocol.ToolCall) (Result, error) {
	if !t.def.Allows(call.Name) {
		if _, known := Definition(call.Name); !known {
			return Result{}, fmt.Errorf("%w: %s", ErrUnknownTool, call.Name)
		}
		return Result{}, fmt.Errorf("%w: %s in %s", ErrToolNotAllowed, call.Name, t.def.Phase)
	}
	cmd, err := Decode(call)
	if err != nil {
		return Result{}, err
	}
	if set, ok := cmd.(SetState); ok && set.Key == state.KeyRecipe && t.def.Phase != phase.Inspiration {
		return failure(StatusRejected, fmt.Sprintf(
			"The recipe is fixed during %s. To pick a different dish, the user has to start over.", t.def.Phase)), nil
	}
	return t.gateway.Dispatch(ctx, cmd), nil
}

// ExecuteAll applies calls in order. A failed call does not stop later
// ones; each gets its own result.
func (t *Toolset) ExecuteAll(ctx context.Context, calls []protocol.ToolCall) []Result {
	results := make([]Result, len(calls))
	for i, call := range calls {
		res, err := t.Execute(ctx, call)
		if err != nil {
			res = Result{Content: fmt.Sprintf("error: %s", err), IsError: true}
		}
		results[i] = res
	}
	return results
}
