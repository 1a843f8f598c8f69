package router

import (
	"github.com/tailored-agentic-units/mealplanner/planning"
	"github.com/tailored-agentic-units/mealplanner/recipe"
	"github.com/tailored-agentic-units/mealplanner/state"
)

// Execution status values stored under state.KeyExecutionStatus.
const (
	ExecutionInProgress = "in_progress"
	ExecutionComplete   = "complete"
)

// Signals is the routing view of a session: the gate plus the phase
// completion markers.
type Signals struct {
	Gate      recipe.Gate
	Planning  string
	Execution string
	Restart   bool
}

// ReadSignals derives signals from the store. A gate invariant violation is
// returned as an error.
func ReadSignals(store *state.Store) (Signals, error) {
	_, gate, err := recipe.Current(store)
	if err != nil {
		return Signals{}, err
	}
	text := func(key string) string {
		v, _ := store.Get(key)
		s, _ := v.AsString()
		return s
	}
	return Signals{
		Gate:      gate,
		Planning:  text(state.KeyPlanningStatus),
		Execution: text(state.KeyExecutionStatus),
	}, nil
}

// Predicate decides whether a rule applies.
type Predicate func(Signals) bool

// Always matches every signal set.
func Always() Predicate {
	return func(Signals) bool { return true }
}

// GateIs matches a specific gate state.
func GateIs(g recipe.Gate) Predicate {
	return func(s Signals) bool { return s.Gate == g }
}

// PlanningIs matches a planning status. The empty string matches "no
// planning output yet".
func PlanningIs(status string) Predicate {
	return func(s Signals) bool { return s.Planning == status }
}

// ExecutionIs matches an execution status.
func ExecutionIs(status string) Predicate {
	return func(s Signals) bool { return s.Execution == status }
}

// RestartRequested matches when the user asked to start over.
func RestartRequested() Predicate {
	return func(s Signals) bool { return s.Restart }
}

// Not inverts a predicate.
func Not(p Predicate) Predicate {
	return func(s Signals) bool { return !p(s) }
}

// And matches when every predicate matches.
func And(ps ...Predicate) Predicate {
	return func(s Signals) bool {
		for _, p := range ps {
			if !p(s) {
				return false
			}
		}
		return true
	}
}

// Or matches when any predicate matches.
func Or(ps ...Predicate) Predicate {
	return func(s Signals) bool {
		for _, p := range ps {
			if p(s) {
				return true
			}
		}
		return false
	}
}

var (
	infeasible = PlanningIs(planning.StatusInfeasible)
	feasible   = PlanningIs(planning.StatusFeasible)
	noPlan     = PlanningIs("")
)
