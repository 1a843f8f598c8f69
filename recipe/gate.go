package recipe

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/tailored-agentic-units/mealplanner/capability"
	"github.com/tailored-agentic-units/mealplanner/observability"
	"github.com/tailored-agentic-units/mealplanner/state"
)

const (
	EventProposed observability.EventType = "recipe.proposed"
	EventVerified observability.EventType = "recipe.verified"
	EventFailed   observability.EventType = "recipe.verification_failed"
	EventReset    observability.EventType = "recipe.reset"
	EventCleared  observability.EventType = "recipe.cleared"
)

// Gate is the verification state of the current recipe.
type Gate int

const (
	NoRecipe Gate = iota
	Proposed
	Verified
)

func (g Gate) String() string {
	switch g {
	case NoRecipe:
		return "NO_RECIPE"
	case Proposed:
		return "PROPOSED"
	case Verified:
		return "VERIFIED"
	default:
		return fmt.Sprintf("Gate(%d)", int(g))
	}
}

// GateOf derives the gate from a record.
func GateOf(r Record) (Gate, error) {
	if r.IsVerified {
		if !r.Populated() {
			return NoRecipe, fmt.Errorf("%w: verified record without source, ingredients or instructions", ErrInvariantViolation)
		}
		if r.VerificationStatus != StatusVerified {
			return NoRecipe, fmt.Errorf("%w: verified record with status %q", ErrInvariantViolation, r.VerificationStatus)
		}
		return Verified, nil
	}
	if r.Populated() {
		return Proposed, nil
	}
	return NoRecipe, nil
}

// Current loads the record and its gate from the store.
func Current(store *state.Store) (Record, Gate, error) {
	r, err := Load(store)
	if err != nil {
		return Record{}, NoRecipe, err
	}
	g, err := GateOf(r)
	return r, g, err
}

// Gatekeeper applies gate transitions to a store and reports them.
type Gatekeeper struct {
	store    *state.Store
	observer observability.Observer
}

// NewGatekeeper binds transitions to store.
func NewGatekeeper(store *state.Store, observer observability.Observer) *Gatekeeper {
	return &Gatekeeper{store: store, observer: observability.OrNoOp(observer)}
}

// Current returns the stored record and gate.
func (g *Gatekeeper) Current() (Record, Gate, error) {
	return Current(g.store)
}

// Propose stores r as the candidate recipe with status pending, replacing
// any previous record. A record claiming to be verified is refused.
func (g *Gatekeeper) Propose(ctx context.Context, r Record) (Gate, error) {
	if r.IsVerified {
		return NoRecipe, ErrDirectVerification
	}
	r.VerificationStatus = StatusPending
	if err := g.store.Set(state.KeyRecipe, r.Value()); err != nil {
		return NoRecipe, err
	}
	g.store.Delete(state.KeyRejectionReason)

	gate, _ := GateOf(r)
	g.emit(ctx, EventProposed, observability.LevelInfo, map[string]any{
		"name":      r.Name,
		"populated": r.Populated(),
		"gate":      gate.String(),
	})
	return gate, nil
}

// Verify applies a verifier result to the proposed record. The gate must be
// PROPOSED. A negative result marks the record failed and returns
// ErrVerificationFailed; a positive one rewrites the record in a single
// write with the verified status and flag.
func (g *Gatekeeper) Verify(ctx context.Context, result capability.Verification) (Record, error) {
	current, gate, err := g.Current()
	if err != nil {
		return Record{}, err
	}
	if gate != Proposed {
		return current, fmt.Errorf("%w: verify from %s", ErrInvalidTransition, gate)
	}

	if !result.Verified {
		current.VerificationStatus = StatusFailed
		if err := g.store.Set(state.KeyRecipe, current.Value()); err != nil {
			return current, err
		}
		g.emit(ctx, EventFailed, observability.LevelWarning, map[string]any{
			"name":   current.Name,
			"reason": result.Reason,
		})
		reason := result.Reason
		if reason == "" {
			reason = "source could not be confirmed"
		}
		return current, fmt.Errorf("%w: %s", ErrVerificationFailed, reason)
	}

	next := merge(current, result)
	next.VerificationStatus = StatusVerified
	next.IsVerified = true

	if err := g.store.Set(state.KeyRecipe, next.Value()); err != nil {
		return current, err
	}
	g.emit(ctx, EventVerified, observability.LevelInfo, map[string]any{
		"name":   next.Name,
		"source": next.SourceURL,
	})
	return next, nil
}

// Reset returns a VERIFIED recipe to PROPOSED, keeping its contents and
// recording why it was rejected.
func (g *Gatekeeper) Reset(ctx context.Context, reason string) (Record, error) {
	current, gate, err := g.Current()
	if err != nil {
		return Record{}, err
	}
	if gate != Verified {
		return current, fmt.Errorf("%w: reset from %s", ErrInvalidTransition, gate)
	}

	current.IsVerified = false
	current.VerificationStatus = StatusRejected
	if err := g.store.Set(state.KeyRecipe, current.Value()); err != nil {
		return current, err
	}
	if reason = strings.TrimSpace(reason); reason != "" {
		if err := g.store.Set(state.KeyRejectionReason, state.String(reason)); err != nil {
			return current, err
		}
	}

	g.emit(ctx, EventReset, observability.LevelInfo, map[string]any{
		"name":   current.Name,
		"reason": reason,
	})
	return current, nil
}

// Clear replaces the record with the empty default, returning the gate to
// NO_RECIPE.
func (g *Gatekeeper) Clear(ctx context.Context) error {
	if err := g.store.Set(state.KeyRecipe, Record{}.Value()); err != nil {
		return err
	}
	g.store.Delete(state.KeyRejectionReason)
	g.emit(ctx, EventCleared, observability.LevelInfo, map[string]any{})
	return nil
}

func merge(r Record, v capability.Verification) Record {
	pick := func(verified, current string) string {
		if strings.TrimSpace(verified) != "" {
			return verified
		}
		return current
	}
	r.Name = pick(v.Name, r.Name)
	r.SourceURL = pick(v.SourceURL, r.SourceURL)
	r.PrepTime = pick(v.PrepTime, r.PrepTime)
	r.CookTime = pick(v.CookTime, r.CookTime)
	r.Servings = pick(v.Servings, r.Servings)
	if len(v.Ingredients) > 0 {
		r.Ingredients = append([]string(nil), v.Ingredients...)
	}
	if len(v.Instructions) > 0 {
		r.Instructions = append([]string(nil), v.Instructions...)
	}
	return r
}

func (g *Gatekeeper) emit(ctx context.Context, typ observability.EventType, level observability.Level, data map[string]any) {
	g.observer.OnEvent(ctx, observability.Event{
		Type:      typ,
		Level:     level,
		Timestamp: time.Now(),
		Source:    "recipe",
		Data:      data,
	})
}
