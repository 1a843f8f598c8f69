package kernel_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/tailored-agentic-units/mealplanner/agent"
	"github.com/tailored-agentic-units/mealplanner/agent/mock"
	"github.com/tailored-agentic-units/mealplanner/capability"
	"github.com/tailored-agentic-units/mealplanner/core/protocol"
	"github.com/tailored-agentic-units/mealplanner/core/response"
	"github.com/tailored-agentic-units/mealplanner/kernel"
	"github.com/tailored-agentic-units/mealplanner/observability"
	"github.com/tailored-agentic-units/mealplanner/persist"
	"github.com/tailored-agentic-units/mealplanner/phase"
	"github.com/tailored-agentic-units/mealplanner/profile"
	"github.com/tailored-agentic-units/mealplanner/recipe"
	"github.com/tailored-agentic-units/mealplanner/router"
	"github.com/tailored-agentic-units/mealplanner/session"
	"github.com/tailored-agentic-units/mealplanner/state"
	"github.com/tailored-agentic-units/mealplanner/tools"
)

// --- Test helpers ---

var fixedTime = time.Date(2026, 3, 14, 18, 30, 0, 0, time.UTC)

var smoothie = capability.Verification{
	Verified:     true,
	Name:         "Banana smoothie",
	SourceURL:    "https://example.com/smoothie",
	Ingredients:  []string{"banana", "milk"},
	Instructions: []string{"Peel the banana.", "Blend with milk.", "Serve cold."},
	Servings:     "2",
}

func textResponse(content string) *response.ToolsResponse {
	return &response.ToolsResponse{
		Choices: []response.Choice{{
			Message: response.ChoiceMessage{Role: "assistant", Content: content},
		}},
	}
}

func toolResponse(calls ...protocol.ToolCall) *response.ToolsResponse {
	return &response.ToolsResponse{
		Choices: []response.Choice{{
			Message:      response.ChoiceMessage{Role: "assistant", ToolCalls: calls},
			FinishReason: "tool_calls",
		}},
	}
}

func call(id, name, args string) protocol.ToolCall {
	return protocol.ToolCall{ID: id, Name: name, Arguments: args}
}

type captureObserver struct {
	mu     sync.Mutex
	events []observability.Event
}

func (c *captureObserver) OnEvent(_ context.Context, event observability.Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, event)
}

func (c *captureObserver) types() map[observability.EventType]int {
	c.mu.Lock()
	defer c.mu.Unlock()
	counts := make(map[observability.EventType]int)
	for _, e := range c.events {
		counts[e.Type]++
	}
	return counts
}

type harness struct {
	kernel *kernel.Kernel
	store  persist.Store
	agents map[phase.Phase]*mock.Agent
}

func newHarness(t *testing.T, maxIterations int, opts ...kernel.Option) *harness {
	t.Helper()

	h := &harness{
		store:  persist.NewMemoryStore(),
		agents: make(map[phase.Phase]*mock.Agent),
	}

	reg := agent.NewRegistry()
	for _, p := range phase.All() {
		a := mock.New(string(p) + "-agent")
		h.agents[p] = a
		if err := reg.Set(string(p), a); err != nil {
			t.Fatalf("Set(%s) failed: %v", p, err)
		}
	}

	src, err := profile.NewSource("", nil)
	if err != nil {
		t.Fatalf("NewSource failed: %v", err)
	}

	caps := &capability.Set{
		Verifier: capability.VerifierFunc(func(context.Context, capability.Candidate) (capability.Verification, error) {
			return smoothie, nil
		}),
	}

	cfg := kernel.DefaultConfig()
	cfg.MaxIterations = maxIterations

	base := []kernel.Option{
		kernel.WithRegistry(reg),
		kernel.WithManager(session.NewManager(nil, h.store, nil)),
		kernel.WithProfileSource(src),
		kernel.WithCapabilities(caps),
		kernel.WithObserver(observability.NoOpObserver{}),
		kernel.WithClock(func() time.Time { return fixedTime }),
	}

	k, err := kernel.New(&cfg, append(base, opts...)...)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	t.Cleanup(func() { k.Close() })
	h.kernel = k
	return h
}

func (h *harness) session(t *testing.T, id string) *session.Session {
	t.Helper()
	s, ok := h.kernel.Sessions().Get(id)
	if !ok {
		t.Fatalf("session %s not live", id)
	}
	return s
}

// --- Turn ---

func TestTurn_DirectResponse(t *testing.T) {
	h := newHarness(t, 10)
	h.agents[phase.Inspiration].Push(textResponse("How about a curry?"))

	result, err := h.kernel.Turn(context.Background(), "", kernel.Input{Message: "something warm"})
	if err != nil {
		t.Fatalf("Turn failed: %v", err)
	}

	if result.SessionID == "" {
		t.Error("result has no session id")
	}
	if result.Phase != phase.Inspiration {
		t.Errorf("got phase %q, want inspiration", result.Phase)
	}
	if result.Rule != "unverified" {
		t.Errorf("got rule %q, want unverified", result.Rule)
	}
	if result.Response != "How about a curry?" {
		t.Errorf("got response %q", result.Response)
	}
	if result.Iterations != 1 {
		t.Errorf("got %d iterations, want 1", result.Iterations)
	}
	if result.Handoff != nil {
		t.Error("staying in inspiration should not produce a hand-off")
	}

	msgs := h.session(t, result.SessionID).Messages(phase.Inspiration)
	if len(msgs) != 2 {
		t.Fatalf("got %d transcript messages, want 2", len(msgs))
	}
	if msgs[0].Role != protocol.RoleUser || msgs[1].Role != protocol.RoleAssistant {
		t.Errorf("unexpected transcript roles: %s, %s", msgs[0].Role, msgs[1].Role)
	}
}

func TestTurn_BootstrapsOnce(t *testing.T) {
	h := newHarness(t, 10)
	h.agents[phase.Inspiration].Push(textResponse("hello"), textResponse("again"))
	ctx := context.Background()

	first, err := h.kernel.Turn(ctx, "", kernel.Input{Message: "hi"})
	if err != nil {
		t.Fatalf("first Turn failed: %v", err)
	}

	store := h.session(t, first.SessionID).Store()
	marker, _ := store.Get(state.KeyProfileMarker)
	if b, _ := marker.AsBool(); !b {
		t.Fatal("bootstrap marker not set")
	}
	ts, _ := store.Get(state.KeySystemTime)
	if ts.Describe() != fixedTime.Format(time.RFC3339) {
		t.Errorf("got system_time %q", ts.Describe())
	}
	appliances, _ := store.Get(state.KeyAppliances)
	if got := appliances.StringList(); len(got) != 1 || got[0] != "stove" {
		t.Errorf("got cooking_appliances %v", got)
	}

	store.Delete(state.KeySpiceTolerance)

	if _, err := h.kernel.Turn(ctx, first.SessionID, kernel.Input{Message: "hi again"}); err != nil {
		t.Fatalf("second Turn failed: %v", err)
	}
	if store.Has(state.KeySpiceTolerance) {
		t.Error("second turn re-ran the bootstrap")
	}
}

func TestTurn_ToolCall(t *testing.T) {
	h := newHarness(t, 10)
	h.agents[phase.Inspiration].Push(
		toolResponse(call("call_1", phase.ToolMemorizeList, `{"key":"allergies","value":"peanuts"}`)),
		textResponse("Noted."),
	)

	result, err := h.kernel.Turn(context.Background(), "", kernel.Input{Message: "I'm allergic to peanuts"})
	if err != nil {
		t.Fatalf("Turn failed: %v", err)
	}

	if result.Iterations != 2 {
		t.Errorf("got %d iterations, want 2", result.Iterations)
	}
	if len(result.ToolCalls) != 1 {
		t.Fatalf("got %d tool calls, want 1", len(result.ToolCalls))
	}
	tc := result.ToolCalls[0]
	if tc.ID != "call_1" || tc.Name != phase.ToolMemorizeList || tc.Iteration != 1 {
		t.Errorf("unexpected record %+v", tc)
	}
	if tc.IsError {
		t.Errorf("tool call failed: %s", tc.Result)
	}

	allergies, _ := h.session(t, result.SessionID).Store().Get(state.KeyAllergies)
	if !allergies.Contains(state.String("peanuts")) {
		t.Errorf("allergies = %v", allergies.StringList())
	}

	msgs := h.session(t, result.SessionID).Messages(phase.Inspiration)
	if len(msgs) != 4 {
		t.Fatalf("got %d transcript messages, want 4", len(msgs))
	}
	if msgs[2].Role != protocol.RoleTool || msgs[2].ToolCallID != "call_1" {
		t.Errorf("tool result message = %+v", msgs[2])
	}
}

func TestTurn_DisallowedTool(t *testing.T) {
	h := newHarness(t, 10)
	h.agents[phase.Inspiration].Push(
		toolResponse(call("call_1", phase.ToolCompleteStep, `{"step":1}`)),
		textResponse("Let's pick a dish first."),
	)

	result, err := h.kernel.Turn(context.Background(), "", kernel.Input{Message: "done with step one"})
	if err != nil {
		t.Fatalf("Turn failed: %v", err)
	}

	tc := result.ToolCalls[0]
	if !tc.IsError {
		t.Fatal("expected disallowed tool to be reported as an error")
	}
	if !strings.Contains(tc.Result, tools.ErrToolNotAllowed.Error()) {
		t.Errorf("got result %q", tc.Result)
	}
	if tc.Status != "" {
		t.Errorf("rejected call has status %q", tc.Status)
	}
}

func TestTurn_PhaseProgression(t *testing.T) {
	h := newHarness(t, 10)
	ctx := context.Background()

	h.agents[phase.Inspiration].Push(
		toolResponse(call("v1", phase.ToolVerifyRecipe, `{"name":"Banana smoothie"}`)),
		textResponse("Verified a smoothie for you."),
	)
	first, err := h.kernel.Turn(ctx, "", kernel.Input{Message: "a banana smoothie"})
	if err != nil {
		t.Fatalf("inspiration Turn failed: %v", err)
	}
	if first.ToolCalls[0].Status != tools.StatusVerified {
		t.Fatalf("verify status = %q: %s", first.ToolCalls[0].Status, first.ToolCalls[0].Result)
	}
	id := first.SessionID

	h.agents[phase.Planning].Push(
		toolResponse(call("p1", phase.ToolReportPlanning, `{"feasible":true}`)),
		textResponse("You have everything."),
	)
	second, err := h.kernel.Turn(ctx, id, kernel.Input{Message: "I have a blender"})
	if err != nil {
		t.Fatalf("planning Turn failed: %v", err)
	}
	if second.Phase != phase.Planning || second.Previous != phase.Inspiration {
		t.Errorf("got %s -> %s, want inspiration -> planning", second.Previous, second.Phase)
	}
	if second.Handoff == nil {
		t.Fatal("entering planning should produce a hand-off")
	}
	if second.Handoff.Recipe.Name != "Banana smoothie" || second.Handoff.UserMessage != "I have a blender" {
		t.Errorf("hand-off = %+v", second.Handoff)
	}

	calls := h.agents[phase.Planning].Calls()
	system := calls[0].Messages[0]
	if system.Role != protocol.RoleSystem {
		t.Fatalf("first message role = %s, want system", system.Role)
	}
	prompt := system.Text()
	if !strings.Contains(prompt, "## Hand-off") || !strings.Contains(prompt, "Banana smoothie") {
		t.Errorf("planning prompt lacks hand-off context:\n%s", prompt)
	}
	if len(calls[0].Messages) != 2 {
		t.Errorf("planning agent saw %d messages, want system plus the user message", len(calls[0].Messages))
	}

	h.agents[phase.Execution].Push(
		toolResponse(call("e1", phase.ToolCompleteStep, `{"step":1}`)),
		textResponse("Now blend it."),
	)
	third, err := h.kernel.Turn(ctx, id, kernel.Input{Message: "peeled"})
	if err != nil {
		t.Fatalf("execution Turn failed: %v", err)
	}
	if third.Phase != phase.Execution {
		t.Errorf("got phase %q, want execution", third.Phase)
	}
	step, _ := h.session(t, id).Store().Get(state.KeyExecutionStep)
	if n, _ := step.AsNumber(); n != 2 {
		t.Errorf("execution_step = %v, want 2", n)
	}
}

func TestTurn_Restart(t *testing.T) {
	h := newHarness(t, 10)
	ctx := context.Background()

	h.agents[phase.Inspiration].Push(
		toolResponse(call("v1", phase.ToolVerifyRecipe, `{"name":"Banana smoothie"}`)),
		textResponse("Verified."),
		textResponse("What would you like instead?"),
	)
	first, err := h.kernel.Turn(ctx, "", kernel.Input{Message: "smoothie"})
	if err != nil {
		t.Fatalf("Turn failed: %v", err)
	}

	second, err := h.kernel.Turn(ctx, first.SessionID, kernel.Input{Message: "start over", Restart: true})
	if err != nil {
		t.Fatalf("restart Turn failed: %v", err)
	}
	if second.Phase != phase.Inspiration || second.Rule != "restart" {
		t.Errorf("got phase %q rule %q", second.Phase, second.Rule)
	}
	if second.Handoff == nil {
		t.Error("restart should produce a hand-off")
	}

	_, gate, err := recipe.Current(h.session(t, first.SessionID).Store())
	if err != nil {
		t.Fatal(err)
	}
	if gate != recipe.NoRecipe {
		t.Errorf("gate = %s, want NO_RECIPE", gate)
	}
	if n := len(h.session(t, first.SessionID).Messages(phase.Inspiration)); n != 2 {
		t.Errorf("inspiration transcript has %d messages after restart, want 2", n)
	}
}

func TestTurn_MaxIterations(t *testing.T) {
	h := newHarness(t, 3)
	h.agents[phase.Inspiration] = mock.NewFunc("looping", func(context.Context, []protocol.Message, []protocol.Tool) (*response.ToolsResponse, error) {
		return toolResponse(call("m", phase.ToolMemorize, `{"key":"current_mood","value":"hungry"}`)), nil
	})
	if err := h.kernel.Registry().Set(string(phase.Inspiration), h.agents[phase.Inspiration]); err != nil {
		t.Fatal(err)
	}

	result, err := h.kernel.Turn(context.Background(), "", kernel.Input{Message: "hi"})
	if !errors.Is(err, kernel.ErrMaxIterations) {
		t.Fatalf("got error %v, want ErrMaxIterations", err)
	}
	var turnErr *kernel.TurnError
	if !errors.As(err, &turnErr) || turnErr.Stage != kernel.StageAgent {
		t.Fatalf("got %T %v, want TurnError at agent stage", err, err)
	}
	if result == nil || result.Iterations != 3 || len(result.ToolCalls) != 3 {
		t.Fatalf("result = %+v", result)
	}

	snap, err := h.store.Load(context.Background(), result.SessionID)
	if err != nil {
		t.Fatalf("failed turn was not saved: %v", err)
	}
	if snap.Data[state.KeyCurrentMood].Describe() != "hungry" {
		t.Errorf("saved current_mood = %q", snap.Data[state.KeyCurrentMood].Describe())
	}
}

func TestTurn_Errors(t *testing.T) {
	t.Run("empty message", func(t *testing.T) {
		h := newHarness(t, 10)
		_, err := h.kernel.Turn(context.Background(), "", kernel.Input{Message: "  "})
		if !errors.Is(err, kernel.ErrEmptyMessage) {
			t.Errorf("got %v, want ErrEmptyMessage", err)
		}
	})

	t.Run("agent not found", func(t *testing.T) {
		h := newHarness(t, 10, kernel.WithRegistry(agent.NewRegistry()))
		_, err := h.kernel.Turn(context.Background(), "", kernel.Input{Message: "hi"})
		if !errors.Is(err, agent.ErrAgentNotFound) {
			t.Errorf("got %v, want ErrAgentNotFound", err)
		}
	})

	t.Run("agent error", func(t *testing.T) {
		h := newHarness(t, 10)
		_, err := h.kernel.Turn(context.Background(), "", kernel.Input{Message: "hi"})
		if !errors.Is(err, mock.ErrExhausted) {
			t.Errorf("got %v, want mock.ErrExhausted", err)
		}
	})

	t.Run("empty response", func(t *testing.T) {
		h := newHarness(t, 10)
		h.agents[phase.Inspiration].Push(&response.ToolsResponse{})
		_, err := h.kernel.Turn(context.Background(), "", kernel.Input{Message: "hi"})
		if !errors.Is(err, agent.ErrEmptyResponse) {
			t.Errorf("got %v, want ErrEmptyResponse", err)
		}
	})

	t.Run("cancelled context", func(t *testing.T) {
		h := newHarness(t, 10)
		h.agents[phase.Inspiration].Push(textResponse("unused"))
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := h.kernel.Turn(ctx, "", kernel.Input{Message: "hi"})
		if !errors.Is(err, context.Canceled) {
			t.Errorf("got %v, want context.Canceled", err)
		}
	})
}

func TestTurn_ResumesFromSnapshot(t *testing.T) {
	h := newHarness(t, 10)
	ctx := context.Background()
	h.agents[phase.Inspiration].Push(
		toolResponse(call("v1", phase.ToolVerifyRecipe, `{"name":"Banana smoothie"}`)),
		textResponse("Verified."),
	)
	first, err := h.kernel.Turn(ctx, "", kernel.Input{Message: "smoothie"})
	if err != nil {
		t.Fatalf("Turn failed: %v", err)
	}

	planner := mock.New("planner", textResponse("What do you have?"))
	reg := agent.NewRegistry()
	if err := reg.Set(string(phase.Planning), planner); err != nil {
		t.Fatal(err)
	}
	src, _ := profile.NewSource("", nil)
	cfg := kernel.DefaultConfig()
	restarted, err := kernel.New(&cfg,
		kernel.WithRegistry(reg),
		kernel.WithManager(session.NewManager(nil, h.store, nil)),
		kernel.WithProfileSource(src),
		kernel.WithCapabilities(&capability.Set{}),
		kernel.WithObserver(observability.NoOpObserver{}),
	)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	second, err := restarted.Turn(ctx, first.SessionID, kernel.Input{Message: "let's plan"})
	if err != nil {
		t.Fatalf("resumed Turn failed: %v", err)
	}
	if second.Phase != phase.Planning {
		t.Errorf("resumed session routed to %q, want planning", second.Phase)
	}
}

func TestTurn_Events(t *testing.T) {
	obs := &captureObserver{}
	h := newHarness(t, 10, kernel.WithObserver(obs))
	h.agents[phase.Inspiration].Push(
		toolResponse(call("m", phase.ToolMemorize, `{"key":"city","value":"Oslo"}`)),
		textResponse("Oslo it is."),
	)

	if _, err := h.kernel.Turn(context.Background(), "", kernel.Input{Message: "I live in Oslo"}); err != nil {
		t.Fatalf("Turn failed: %v", err)
	}

	counts := obs.types()
	for _, typ := range []observability.EventType{
		kernel.EventBootstrap,
		kernel.EventTurnStart,
		kernel.EventIterationStart,
		kernel.EventToolCall,
		kernel.EventToolComplete,
		kernel.EventResponse,
		kernel.EventTurnComplete,
		router.EventResolve,
	} {
		if counts[typ] == 0 {
			t.Errorf("no %s event emitted", typ)
		}
	}
	if counts[kernel.EventIterationStart] != 2 {
		t.Errorf("got %d iteration events, want 2", counts[kernel.EventIterationStart])
	}
}

func TestTurn_ConcurrentSameSession(t *testing.T) {
	h := newHarness(t, 10)
	const n = 8
	for range n + 1 {
		h.agents[phase.Inspiration].Push(textResponse("ok"))
	}

	first, err := h.kernel.Turn(context.Background(), "", kernel.Input{Message: "hi"})
	if err != nil {
		t.Fatal(err)
	}

	var wg sync.WaitGroup
	for range n {
		wg.Go(func() {
			if _, err := h.kernel.Turn(context.Background(), first.SessionID, kernel.Input{Message: "again"}); err != nil {
				t.Errorf("Turn failed: %v", err)
			}
		})
	}
	wg.Wait()

	if got := len(h.session(t, first.SessionID).Messages(phase.Inspiration)); got != 2*(n+1) {
		t.Errorf("got %d messages, want %d", got, 2*(n+1))
	}
}

// --- New ---

func TestNew_RegistersPhaseAgents(t *testing.T) {
	cfg := kernel.DefaultConfig()
	cfg.Agent.Model = "base-model"
	cfg.Agents = map[string]agent.Config{"planning": {Model: "planner-model"}}

	k, err := kernel.New(&cfg, kernel.WithObserver(observability.NoOpObserver{}))
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	defer k.Close()

	infos := k.Registry().List()
	if len(infos) != 3 {
		t.Fatalf("got %d agents, want 3", len(infos))
	}
	models := make(map[string]string)
	for _, info := range infos {
		models[info.Name] = info.Model
	}
	if models["planning"] != "planner-model" {
		t.Errorf("planning model = %q", models["planning"])
	}
	if models["inspiration"] != "base-model" || models["execution"] != "base-model" {
		t.Errorf("models = %v", models)
	}
	if k.Sessions() == nil {
		t.Error("Sessions() returned nil")
	}
}

func TestNew_UnknownPersistBackend(t *testing.T) {
	cfg := kernel.DefaultConfig()
	cfg.Persist.Backend = "carrier-pigeon"

	_, err := kernel.New(&cfg, kernel.WithObserver(observability.NoOpObserver{}))
	if !errors.Is(err, persist.ErrUnknownBackend) {
		t.Errorf("got %v, want ErrUnknownBackend", err)
	}
}

// --- SystemPrompt ---

func TestSystemPrompt(t *testing.T) {
	store := state.NewStore(nil)
	if err := store.Set(state.KeyCity, state.String("Oslo")); err != nil {
		t.Fatal(err)
	}
	if err := store.Set(state.KeyAllergies, state.Strings("peanuts")); err != nil {
		t.Fatal(err)
	}
	if err := store.Set(state.KeyDislikes, state.List()); err != nil {
		t.Fatal(err)
	}

	def := phase.MustLookup(phase.Inspiration)
	prompt := kernel.SystemPrompt(def, store, nil)

	for _, want := range []string{def.Instruction, "- city: Oslo", `- allergies: ["peanuts"]`, "recipe gate: NO_RECIPE"} {
		if !strings.Contains(prompt, want) {
			t.Errorf("prompt missing %q:\n%s", want, prompt)
		}
	}
	if strings.Contains(prompt, "dislikes") {
		t.Error("empty lists should be omitted")
	}
	if strings.Contains(prompt, "Hand-off") {
		t.Error("prompt without hand-off mentions one")
	}

	withHandoff := kernel.SystemPrompt(def, store, &router.Handoff{
		From:        phase.Planning,
		To:          phase.Inspiration,
		UserMessage: "no oven",
		Reason:      "missing equipment: oven",
	})
	for _, want := range []string{"from the planning phase", "Reason: missing equipment: oven", "Latest user message: no oven"} {
		if !strings.Contains(withHandoff, want) {
			t.Errorf("hand-off prompt missing %q:\n%s", want, withHandoff)
		}
	}
}

func TestNewSession(t *testing.T) {
	h := newHarness(t, 10)
	ctx := context.Background()

	id, err := h.kernel.NewSession(ctx)
	if err != nil {
		t.Fatalf("NewSession failed: %v", err)
	}
	if !h.session(t, id).Store().Has(state.KeyProfileMarker) {
		t.Error("new session was not bootstrapped")
	}
	if _, err := h.store.Load(ctx, id); err != nil {
		t.Errorf("new session was not saved: %v", err)
	}
}
