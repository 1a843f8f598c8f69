// Package router selects the active phase for each turn.
//
// Rules are evaluated in order and the first match wins:
//
//	restart        restart requested or execution complete  -> inspiration (workflow cleared)
//	infeasible     planning infeasible while VERIFIED       -> inspiration (gate reset)
//	unverified     gate is not VERIFIED                     -> inspiration
//	plan           VERIFIED with no planning output         -> planning
//	execute        VERIFIED and planning feasible           -> execution
//
// A VERIFIED gate with an unrecognized planning status stays in planning.
package router

import (
	"context"
	"fmt"
	"time"

	"github.com/tailored-agentic-units/mealplanner/observability"
	"github.com/tailored-agentic-units/mealplanner/phase"
	"github.com/tailored-agentic-units/mealplanner/recipe"
	"github.com/tailored-agentic-units/mealplanner/state"
)

const (
	EventResolve observability.EventType = "router.resolve"
	EventHandoff observability.EventType = "router.handoff"
)

// Action is a side effect a rule applies before handing over.
type Action int

const (
	ActionNone Action = iota
	// ActionClear empties the recipe and deletes planning and execution state.
	ActionClear
	// ActionReset returns a VERIFIED recipe to PROPOSED.
	ActionReset
)

// Rule routes to a phase when its predicate matches.
type Rule struct {
	Name      string
	To        phase.Phase
	Predicate Predicate
	Action    Action
}

// DefaultRules returns the routing policy in evaluation order.
func DefaultRules() []Rule {
	return []Rule{
		{
			Name:      "restart",
			To:        phase.Inspiration,
			Predicate: Or(RestartRequested(), ExecutionIs(ExecutionComplete)),
			Action:    ActionClear,
		},
		{
			Name:      "infeasible",
			To:        phase.Inspiration,
			Predicate: And(GateIs(recipe.Verified), infeasible),
			Action:    ActionReset,
		},
		{
			Name:      "unverified",
			To:        phase.Inspiration,
			Predicate: Not(GateIs(recipe.Verified)),
		},
		{
			Name:      "plan",
			To:        phase.Planning,
			Predicate: noPlan,
		},
		{
			Name:      "execute",
			To:        phase.Execution,
			Predicate: feasible,
		},
		{
			Name:      "hold",
			To:        phase.Planning,
			Predicate: Always(),
		},
	}
}

// Input is what the router knows about the incoming turn.
type Input struct {
	Utterance string
	Restart   bool
}

// Handoff is the context carried to a newly activated phase: the latest
// utterance and the recipe record, never the prior transcript.
type Handoff struct {
	From        phase.Phase
	To          phase.Phase
	UserMessage string
	Recipe      recipe.Record
	Reason      string
}

// Decision is the outcome of one routing resolution.
type Decision struct {
	Phase    phase.Phase
	Previous phase.Phase
	Rule     string
	Signals  Signals
	Handoff  *Handoff
}

// Changed reports whether the active phase changes.
func (d Decision) Changed() bool { return d.Phase != d.Previous }

// Router applies rules to a session store.
type Router struct {
	rules    []Rule
	observer observability.Observer
}

// New creates a Router using DefaultRules.
func New(observer observability.Observer) *Router {
	return &Router{rules: DefaultRules(), observer: observability.OrNoOp(observer)}
}

// WithRules replaces the rule set.
func (r *Router) WithRules(rules []Rule) *Router {
	r.rules = rules
	return r
}

// Resolve picks the phase for this turn. Rule actions are applied to the
// store before returning, so the signals seen by the chosen phase reflect
// them.
func (r *Router) Resolve(ctx context.Context, store *state.Store, active phase.Phase, in Input) (Decision, error) {
	if !active.Valid() {
		active = phase.Inspiration
	}

	signals, err := ReadSignals(store)
	if err != nil {
		return Decision{}, fmt.Errorf("read routing signals: %w", err)
	}
	signals.Restart = in.Restart

	var rule *Rule
	for i := range r.rules {
		if r.rules[i].Predicate(signals) {
			rule = &r.rules[i]
			break
		}
	}
	if rule == nil {
		return Decision{}, fmt.Errorf("no routing rule matched gate %s", signals.Gate)
	}

	var reason string
	if rule.Action != ActionNone {
		reason, err = r.apply(ctx, store, rule.Action)
		if err != nil {
			return Decision{}, fmt.Errorf("rule %s: %w", rule.Name, err)
		}
	}

	d := Decision{
		Phase:    rule.To,
		Previous: active,
		Rule:     rule.Name,
		Signals:  signals,
	}

	if d.Changed() || rule.Action != ActionNone {
		rec, err := recipe.Load(store)
		if err != nil {
			return Decision{}, err
		}
		d.Handoff = &Handoff{
			From:        active,
			To:          rule.To,
			UserMessage: in.Utterance,
			Recipe:      rec,
			Reason:      reason,
		}
		r.emit(ctx, EventHandoff, observability.LevelInfo, map[string]any{
			"from": string(active),
			"to":   string(rule.To),
			"rule": rule.Name,
		})
	}

	r.emit(ctx, EventResolve, observability.LevelVerbose, map[string]any{
		"phase":    string(d.Phase),
		"previous": string(d.Previous),
		"rule":     d.Rule,
		"gate":     signals.Gate.String(),
		"planning": signals.Planning,
	})
	return d, nil
}

func (r *Router) apply(ctx context.Context, store *state.Store, action Action) (string, error) {
	gk := recipe.NewGatekeeper(store, r.observer)
	switch action {
	case ActionClear:
		if err := gk.Clear(ctx); err != nil {
			return "", err
		}
		store.Delete(state.PlanningKeys...)
		store.Delete(state.ExecutionKeys...)
		return "workflow restarted", nil
	case ActionReset:
		v, _ := store.Get(state.KeyPlanningReason)
		reason, _ := v.AsString()
		if reason == "" {
			reason = "planning found the recipe infeasible"
		}
		if _, err := gk.Reset(ctx, reason); err != nil {
			return "", err
		}
		return reason, nil
	default:
		return "", nil
	}
}

func (r *Router) emit(ctx context.Context, typ observability.EventType, level observability.Level, data map[string]any) {
	r.observer.OnEvent(ctx, observability.Event{
		Type:      typ,
		Level:     level,
		Timestamp: time.Now(),
		Source:    "router",
		Data:      data,
	})
}
