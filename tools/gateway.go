package tools

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/tailored-agentic-units/mealplanner/capability"
	"github.com/tailored-agentic-units/mealplanner/memory"
	"github.com/tailored-agentic-units/mealplanner/observability"
	"github.com/tailored-agentic-units/mealplanner/planning"
	"github.com/tailored-agentic-units/mealplanner/recipe"
	"github.com/tailored-agentic-units/mealplanner/router"
	"github.com/tailored-agentic-units/mealplanner/state"
)

const (
	EventDispatch       observability.EventType = "tools.dispatch"
	EventDispatchFailed observability.EventType = "tools.dispatch.failed"
)

// Status values reported in Result.Status besides the memory tags.
const (
	StatusProposed           = "proposed"
	StatusVerified           = "verified"
	StatusVerificationFailed = "verification_failed"
	StatusUnavailable        = "unavailable"
	StatusRejected           = "rejected"
	StatusAssessed           = "assessed"
	StatusReported           = "reported"
	StatusCompleted          = "completed"
)

// Result is the tool output fed back to the model. IsError tells the model
// the call did not have its intended effect; Content is always phrased for
// a user, never a stack trace.
type Result struct {
	Content string
	IsError bool
	Status  string
}

// reserved keys are written only by the workflow tools.
var reserved = []string{
	state.KeyProfileMarker,
	state.KeyRejectionReason,
	state.KeyPlanningStatus,
	state.KeyPlanningReason,
	state.KeyExecutionStatus,
	state.KeyExecutionStep,
	state.KeyCompletedSteps,
	state.KeyIllustrations,
}

// Gateway applies commands to one session store.
type Gateway struct {
	store    *state.Store
	gate     *recipe.Gatekeeper
	caps     *capability.Set
	observer observability.Observer
}

// NewGateway binds a gateway to store. A nil caps behaves as if every
// capability were unavailable.
func NewGateway(store *state.Store, caps *capability.Set, observer observability.Observer) *Gateway {
	if caps == nil {
		caps = &capability.Set{}
	}
	observer = observability.OrNoOp(observer)
	return &Gateway{
		store:    store,
		gate:     recipe.NewGatekeeper(store, observer),
		caps:     caps,
		observer: observer,
	}
}

// Dispatch applies cmd synchronously. Failures are reported in the Result;
// the store is left as it was before the failing step.
func (g *Gateway) Dispatch(ctx context.Context, cmd Command) Result {
	start := time.Now()
	var res Result
	switch c := cmd.(type) {
	case SetState:
		res = g.setState(ctx, c)
	case AppendUnique:
		res = g.mutate(c.Key, c.Value, memory.AppendUnique)
	case RemoveValue:
		res = g.mutate(c.Key, c.Value, memory.Remove)
	case CallCapability:
		res = g.callCapability(ctx, c)
	case ReportPlanning:
		res = g.reportPlanning(ctx, c)
	case AssessPlan:
		res = g.assessPlan(ctx)
	case CompleteStep:
		res = g.completeStep(ctx, c)
	default:
		res = failure("", fmt.Sprintf("Unsupported tool request %T.", cmd))
	}

	typ, level := EventDispatch, observability.LevelVerbose
	if res.IsError {
		typ, level = EventDispatchFailed, observability.LevelWarning
	}
	observability.Emit(ctx, g.observer, typ, level, "tools", map[string]any{
		"tool":        cmd.Tool(),
		"status":      res.Status,
		"duration_ms": time.Since(start).Milliseconds(),
	})
	return res
}

func (g *Gateway) setState(ctx context.Context, c SetState) Result {
	if c.Key == state.KeyRecipe {
		return g.propose(ctx, c.Value)
	}
	if slices.Contains(reserved, c.Key) {
		return failure("", reservedMessage(c.Key))
	}
	conf, err := memory.Set(g.store, c.Key, c.Value)
	if err != nil {
		return failure("", describe(err, c.Key))
	}
	return Result{Content: conf.Status, Status: string(conf.Tag)}
}

type mutator func(*state.Store, string, state.Value) (memory.Confirmation, error)

func (g *Gateway) mutate(key string, v state.Value, fn mutator) Result {
	if key == state.KeyRecipe || slices.Contains(reserved, key) {
		return failure("", reservedMessage(key))
	}
	conf, err := fn(g.store, key, v)
	if err != nil {
		return failure("", describe(err, key))
	}
	return Result{Content: conf.Status, Status: string(conf.Tag)}
}

func (g *Gateway) propose(ctx context.Context, v state.Value) Result {
	r, err := recipe.FromValue(v)
	if err != nil {
		return failure("", "That recipe is not in the expected shape: it needs a name, source_url, ingredients and instructions.")
	}
	gate, err := g.gate.Propose(ctx, r)
	if errors.Is(err, recipe.ErrDirectVerification) {
		return failure(StatusRejected, "A recipe can only be marked verified by verify_recipe.")
	}
	if err != nil {
		return failure("", describe(err, state.KeyRecipe))
	}
	g.clearWorkflow()
	return Result{
		Content: fmt.Sprintf("Proposed %q (%s). Call verify_recipe before moving on.", r.Name, gate),
		Status:  StatusProposed,
	}
}

func (g *Gateway) clearWorkflow() {
	g.store.Delete(state.PlanningKeys...)
	g.store.Delete(state.ExecutionKeys...)
}

func (g *Gateway) callCapability(ctx context.Context, c CallCapability) Result {
	switch capability.Kind(c.Kind) {
	case capability.KindVerify:
		return g.verify(ctx, c.Args)
	case capability.KindAmbient:
		return g.lookupAmbient(ctx, c.Args)
	case capability.KindIllustrate:
		return g.illustrate(ctx, c.Args)
	default:
		return failure("", fmt.Sprintf("Unknown capability %q.", c.Kind))
	}
}

func (g *Gateway) verify(ctx context.Context, args state.Value) Result {
	candidate := capability.Candidate{
		Name:        strings.TrimSpace(args.Text("name")),
		SourceURL:   strings.TrimSpace(args.Text("source_url")),
		Description: strings.TrimSpace(args.Text("description")),
	}
	if candidate.Name == "" {
		return failure("", "Tell me which dish to verify.")
	}

	result, err := g.caps.Verify(ctx, candidate)
	if err != nil {
		return failure(StatusUnavailable, "Recipe verification is unavailable right now, so the recipe stays unverified. Try again shortly.")
	}

	current, gate, err := g.gate.Current()
	if err != nil {
		return failure("", describe(err, state.KeyRecipe))
	}
	sameCandidate := gate == recipe.Proposed && strings.EqualFold(current.Name, candidate.Name)

	if !result.Verified {
		if sameCandidate {
			_, err = g.gate.Verify(ctx, result)
		} else {
			err = fmt.Errorf("%w: %s", recipe.ErrVerificationFailed, reasonOr(result.Reason, "source could not be confirmed"))
		}
		return failure(StatusVerificationFailed, fmt.Sprintf("Could not verify %q: %s. Suggest another dish.", candidate.Name, cause(err)))
	}

	if !sameCandidate {
		proposal := recipe.Record{
			Name:         reasonOr(result.Name, candidate.Name),
			SourceURL:    reasonOr(result.SourceURL, candidate.SourceURL),
			Ingredients:  result.Ingredients,
			Instructions: result.Instructions,
			PrepTime:     result.PrepTime,
			CookTime:     result.CookTime,
			Servings:     result.Servings,
		}
		if gate, err := g.gate.Propose(ctx, proposal); err != nil || gate != recipe.Proposed {
			return failure(StatusVerificationFailed, fmt.Sprintf("Could not verify %q: the source did not include ingredients and instructions.", candidate.Name))
		}
	}

	verified, err := g.gate.Verify(ctx, result)
	if err != nil {
		return failure(StatusVerificationFailed, fmt.Sprintf("Could not verify %q: %s.", candidate.Name, cause(err)))
	}
	g.clearWorkflow()
	return Result{
		Content: fmt.Sprintf("Verified %s", verified.Summary()),
		Status:  StatusVerified,
	}
}

func (g *Gateway) lookupAmbient(ctx context.Context, args state.Value) Result {
	loc := capability.Location{
		City:    strings.TrimSpace(args.Text("city")),
		Country: strings.TrimSpace(args.Text("country")),
	}
	if loc.City == "" {
		v, _ := g.store.Get(state.KeyCity)
		loc.City, _ = v.AsString()
	}
	if loc.Country == "" {
		v, _ := g.store.Get(state.KeyCountry)
		loc.Country, _ = v.AsString()
	}
	if loc.City == "" {
		return failure("", "I don't know the user's city yet. Ask for it, then store it with memorize.")
	}

	ambient, err := g.caps.LookupAmbient(ctx, loc)
	if err != nil {
		return failure(StatusUnavailable, fmt.Sprintf("Current conditions for %s are unavailable. Continue without them.", loc))
	}

	fields := map[string]state.Value{
		"location": state.String(reasonOr(ambient.Location, loc.String())),
	}
	var parts []string
	for _, k := range sortedKeys(ambient.Conditions) {
		fields[k] = state.String(ambient.Conditions[k])
		parts = append(parts, fmt.Sprintf("%s: %s", k, ambient.Conditions[k]))
	}
	if err := g.store.Set(state.KeyAmbientContext, state.Record(fields)); err != nil {
		return failure("", describe(err, state.KeyAmbientContext))
	}
	return Result{
		Content: fmt.Sprintf("Conditions in %s: %s", loc, strings.Join(parts, ", ")),
		Status:  string(memory.TagStored),
	}
}

func (g *Gateway) illustrate(ctx context.Context, args state.Value) Result {
	current, gate, err := g.gate.Current()
	if err != nil || gate != recipe.Verified {
		return failure("", "There is no verified recipe to illustrate.")
	}
	stepValue, _ := args.Field("step")
	n, _ := stepValue.AsNumber()
	step := int(n)
	if step < 1 || step > len(current.Instructions) {
		return failure("", fmt.Sprintf("Step must be between 1 and %d.", len(current.Instructions)))
	}

	prompt := strings.TrimSpace(args.Text("prompt"))
	if prompt == "" {
		prompt = fmt.Sprintf("%s, step %d: %s", current.Name, step, current.Instructions[step-1])
	}

	ill, err := g.caps.Illustrate(ctx, prompt)
	if err != nil {
		return failure(StatusUnavailable, "Illustrations are unavailable right now. Describe the step in words instead.")
	}
	if _, err := g.store.AppendUnique(state.KeyIllustrations, state.String(ill.ArtifactID)); err != nil {
		return failure("", describe(err, state.KeyIllustrations))
	}
	return Result{
		Content: fmt.Sprintf("Illustration for step %d ready: %s (version %d)", step, ill.ArtifactID, ill.Version),
		Status:  string(memory.TagStored),
	}
}

func (g *Gateway) assessPlan(ctx context.Context) Result {
	current, gate, err := g.gate.Current()
	if err != nil || gate != recipe.Verified {
		return failure("", "There is no verified recipe to plan for.")
	}
	a := planning.Assess(current, planning.InventoryOf(g.store))

	g.put(ctx, state.KeyMissingIngredients, state.Strings(a.MissingIngredients...))
	g.put(ctx, state.KeyShoppingList, state.Strings(a.ShoppingList...))

	var b strings.Builder
	fmt.Fprintf(&b, "Assessment for %q: %s.", current.Name, a.Status())
	if a.Reason != "" {
		fmt.Fprintf(&b, " %s.", a.Reason)
	}
	if len(a.ShoppingList) > 0 {
		fmt.Fprintf(&b, " Shopping list: %s.", strings.Join(a.ShoppingList, ", "))
	}
	if len(a.Disliked) > 0 {
		fmt.Fprintf(&b, " The user dislikes: %s.", strings.Join(a.Disliked, ", "))
	}
	return Result{Content: b.String(), Status: StatusAssessed}
}

func (g *Gateway) reportPlanning(ctx context.Context, c ReportPlanning) Result {
	current, gate, err := g.gate.Current()
	if err != nil || gate != recipe.Verified {
		return failure("", "There is no verified recipe to report on.")
	}

	if len(c.Missing) > 0 {
		g.put(ctx, state.KeyMissingIngredients, state.Strings(c.Missing...))
		g.put(ctx, state.KeyShoppingList, state.Strings(c.Missing...))
	}

	if !c.Feasible {
		reason := reasonOr(c.Reason, "the plan is not feasible")
		g.put(ctx, state.KeyPlanningStatus, state.String(planning.StatusInfeasible))
		g.put(ctx, state.KeyPlanningReason, state.String(reason))
		if _, err := g.gate.Reset(ctx, reason); err != nil {
			return failure("", describe(err, state.KeyRecipe))
		}
		return Result{
			Content: fmt.Sprintf("%q cannot be made: %s. The user will choose another dish.", current.Name, reason),
			Status:  StatusReported,
		}
	}

	g.put(ctx, state.KeyPlanningStatus, state.String(planning.StatusFeasible))
	g.put(ctx, state.KeyPlanningReason, state.String(c.Reason))
	g.put(ctx, state.KeyExecutionStatus, state.String(router.ExecutionInProgress))
	g.put(ctx, state.KeyExecutionStep, state.Int(1))
	g.put(ctx, state.KeyCompletedSteps, state.List())
	g.put(ctx, state.KeyIllustrations, state.List())
	return Result{
		Content: fmt.Sprintf("%q is ready to cook. Step 1: %s", current.Name, first(current.Instructions)),
		Status:  StatusReported,
	}
}

func (g *Gateway) completeStep(ctx context.Context, c CompleteStep) Result {
	current, gate, err := g.gate.Current()
	if err != nil || gate != recipe.Verified {
		return failure("", "There is no verified recipe in progress.")
	}
	status, _ := g.store.Get(state.KeyExecutionStatus)
	if s, _ := status.AsString(); s != router.ExecutionInProgress {
		return failure("", "Cooking has not started for this recipe.")
	}
	total := len(current.Instructions)
	if c.Step > total {
		return failure("", fmt.Sprintf("This recipe has %d steps.", total))
	}

	if _, err := g.store.AppendUnique(state.KeyCompletedSteps, state.Int(c.Step)); err != nil {
		return failure("", describe(err, state.KeyCompletedSteps))
	}
	done, _ := g.store.Get(state.KeyCompletedSteps)

	next := 0
	for i := 1; i <= total; i++ {
		if !done.Contains(state.Int(i)) {
			next = i
			break
		}
	}
	if next == 0 {
		g.put(ctx, state.KeyExecutionStatus, state.String(router.ExecutionComplete))
		return Result{
			Content: fmt.Sprintf("All %d steps of %q are done. Enjoy the meal.", total, current.Name),
			Status:  StatusCompleted,
		}
	}
	g.put(ctx, state.KeyExecutionStep, state.Int(next))
	return Result{
		Content: fmt.Sprintf("Step %d of %d done. Next, step %d: %s", c.Step, total, next, current.Instructions[next-1]),
		Status:  StatusCompleted,
	}
}

// put writes a workflow key. Set only fails on an empty key and every key
// passed here is a state constant, so a failure is reported as an event
// instead of reaching the model.
func (g *Gateway) put(ctx context.Context, key string, v state.Value) {
	if err := g.store.Set(key, v); err != nil {
		observability.Emit(ctx, g.observer, EventDispatchFailed, observability.LevelError, "tools", map[string]any{
			"key":   key,
			"error": err.Error(),
		})
	}
}

func failure(status, content string) Result {
	return Result{Content: content, IsError: true, Status: status}
}

func reservedMessage(key string) string {
	if key == state.KeyRecipe {
		return "The current recipe is set through verify_recipe or memorize with the full record."
	}
	return fmt.Sprintf("%q is tracked automatically and cannot be changed directly.", key)
}

// describe turns a mutator error into a message a user could read.
func describe(err error, key string) string {
	switch {
	case errors.Is(err, state.ErrMissingKey):
		return fmt.Sprintf("Nothing is stored under %q yet, so there is nothing to remove.", key)
	case errors.Is(err, state.ErrNotList):
		return fmt.Sprintf("%q holds a single value, not a list. Use memorize to replace it.", key)
	case errors.Is(err, memory.ErrEmptyKey), errors.Is(err, state.ErrEmptyKey):
		return "A key is required."
	case errors.Is(err, recipe.ErrInvalidTransition):
		return "The recipe is not in a state that allows that."
	case errors.Is(err, recipe.ErrInvariantViolation), errors.Is(err, recipe.ErrMalformedRecord):
		return "The stored recipe is inconsistent. Propose it again with verify_recipe."
	default:
		return fmt.Sprintf("Could not update %q.", key)
	}
}

// cause strips the sentinel prefix from a verification error.
func cause(err error) string {
	msg := err.Error()
	if i := strings.Index(msg, ": "); i >= 0 && errors.Is(err, recipe.ErrVerificationFailed) {
		return msg[i+2:]
	}
	return msg
}

func reasonOr(s, fallback string) string {
	if strings.TrimSpace(s) == "" {
		return fallback
	}
	return s
}

func first(items []string) string {
	if len(items) == 0 {
		return ""
	}
	return items[0]
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
