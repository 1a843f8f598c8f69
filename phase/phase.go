// Package phase defines the workflow phases of a conversation and what each
// phase's agent is told and allowed to do.
package phase

import (
	"errors"
	"fmt"
	"slices"
)

// Phase names one stage of the meal-planning workflow.
type Phase string

const (
	Inspiration Phase = "inspiration"
	Planning    Phase = "planning"
	Execution   Phase = "execution"
)

// ErrUnknownPhase is returned when parsing an unrecognized phase name.
var ErrUnknownPhase = errors.New("unknown phase")

// All returns the phases in workflow order.
func All() []Phase {
	return []Phase{Inspiration, Planning, Execution}
}

// Parse converts a name to a Phase. The empty string parses as Inspiration,
// the phase every new session starts in.
func Parse(name string) (Phase, error) {
	if name == "" {
		return Inspiration, nil
	}
	p := Phase(name)
	if !p.Valid() {
		return "", fmt.Errorf("%w: %s", ErrUnknownPhase, name)
	}
	return p, nil
}

// Valid reports whether p is one of the defined phases.
func (p Phase) Valid() bool {
	return slices.Contains(All(), p)
}

func (p Phase) String() string { return string(p) }
