// Package kernel runs one conversational turn: it seeds the session from the
// bootstrap profile, lets the router pick the phase, and drives that phase's
// agent through its observe/think/act/repeat loop until it answers.
//
// The kernel initializes from configuration via New, creating all subsystems
// internally. Functional options allow test overrides of any subsystem.
//
//	k, err := kernel.New(cfg)
//	result, err := k.Turn(ctx, sessionID, kernel.Input{Message: "something warm tonight"})
package kernel

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/tailored-agentic-units/mealplanner/agent"
	"github.com/tailored-agentic-units/mealplanner/capability"
	"github.com/tailored-agentic-units/mealplanner/capability/natscap"
	"github.com/tailored-agentic-units/mealplanner/core/protocol"
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

const tracerName = "github.com/tailored-agentic-units/mealplanner/kernel"

// Input is one user message.
type Input struct {
	Message string
	// Restart abandons the current recipe and workflow.
	Restart bool
}

// Result holds the outcome of a Turn.
type Result struct {
	SessionID  string
	Phase      phase.Phase      // Phase that handled the turn.
	Previous   phase.Phase      // Phase active before the turn.
	Rule       string           // Routing rule that fired.
	Handoff    *router.Handoff  // Set when the phase changed or a gate action ran.
	Response   string           // Final text response from the agent.
	Iterations int              // Number of loop cycles completed.
	ToolCalls  []ToolCallRecord // Log of all tool invocations.
}

type ToolCallRecord struct {
	protocol.ToolCall
	Iteration int    // Loop cycle in which the call occurred.
	Result    string // Tool result content.
	Status    string // Gateway status label, empty for rejected calls.
	IsError   bool
}

// Option configures a Kernel. Options run before config-driven defaults
// are filled in, so anything set here is kept.
type Option func(*Kernel)

// WithRegistry overrides the config-created agent registry. Agents are
// looked up by phase name.
func WithRegistry(r *agent.Registry) Option {
	return func(k *Kernel) { k.registry = r }
}

// WithCapabilities overrides the config-created capability set.
func WithCapabilities(caps *capability.Set) Option {
	return func(k *Kernel) { k.caps = caps }
}

// WithManager overrides the config-created session manager.
func WithManager(m *session.Manager) Option {
	return func(k *Kernel) { k.manager = m }
}

// WithProfileSource overrides the config-created bootstrap source.
func WithProfileSource(s *profile.Source) Option {
	return func(k *Kernel) { k.profile = s }
}

// WithObserver overrides the default SlogObserver.
func WithObserver(o observability.Observer) Option {
	return func(k *Kernel) { k.observer = o }
}

// WithClock overrides the clock used for system_time at bootstrap.
func WithClock(now func() time.Time) Option {
	return func(k *Kernel) { k.now = now }
}

// Kernel is the turn runtime shared by every session.
type Kernel struct {
	registry      *agent.Registry
	manager       *session.Manager
	caps          *capability.Set
	profile       *profile.Source
	router        *router.Router
	initializer   *profile.Initializer
	observer      observability.Observer
	tracer        trace.Tracer
	now           func() time.Time
	maxIterations int

	closers []func() error
}

// New creates a Kernel from configuration. Subsystems not supplied through
// options are built from their config sections.
func New(cfg *Config, opts ...Option) (*Kernel, error) {
	k := &Kernel{
		maxIterations: cfg.MaxIterations,
		tracer:        otel.Tracer(tracerName),
	}
	for _, opt := range opts {
		opt(k)
	}

	if k.observer == nil {
		k.observer = observability.NewSlogObserver(slog.Default())
	}
	if k.now == nil {
		k.now = time.Now
	}

	if k.registry == nil {
		reg := agent.NewRegistry()
		for _, p := range phase.All() {
			if err := reg.Register(string(p), cfg.AgentConfig(p)); err != nil {
				return nil, fmt.Errorf("failed to register agent %q: %w", p, err)
			}
		}
		k.registry = reg
	}

	if k.manager == nil {
		store, err := persist.Open(&cfg.Persist)
		if err != nil {
			return nil, fmt.Errorf("failed to open snapshot store: %w", err)
		}
		if store != nil {
			k.closers = append(k.closers, store.Close)
		}
		k.manager = session.NewManager(&cfg.Session, store, k.observer)
	}

	if k.caps == nil {
		caps, err := k.connectCapabilities(&cfg.Capability)
		if err != nil {
			k.Close()
			return nil, err
		}
		k.caps = caps
	}

	if k.profile == nil {
		src, err := profile.NewSource(cfg.Profile, k.observer)
		if err != nil {
			k.Close()
			return nil, fmt.Errorf("failed to load profile: %w", err)
		}
		if cfg.WatchProfile {
			if err := src.Watch(context.Background()); err != nil {
				k.Close()
				return nil, fmt.Errorf("failed to watch profile: %w", err)
			}
			k.closers = append(k.closers, src.Close)
		}
		k.profile = src
	}

	k.router = router.New(k.observer)
	k.initializer = profile.NewInitializer(k.observer).WithClock(k.now)
	return k, nil
}

func (k *Kernel) connectCapabilities(cfg *capability.Config) (*capability.Set, error) {
	timeout, err := cfg.TimeoutDuration()
	if err != nil {
		return nil, err
	}
	caps := &capability.Set{Timeout: timeout, Observer: k.observer}
	if cfg.NATSURL == "" {
		return caps, nil
	}

	client, err := natscap.Connect(cfg.NATSURL, cfg.Subject)
	if err != nil {
		return nil, fmt.Errorf("failed to connect capabilities: %w", err)
	}
	k.closers = append(k.closers, client.Close)
	caps.Verifier = client
	caps.Ambient = client
	caps.Illustrator = client
	return caps, nil
}

// Registry returns the kernel's agent registry.
func (k *Kernel) Registry() *agent.Registry { return k.registry }

// Sessions returns the kernel's session manager.
func (k *Kernel) Sessions() *session.Manager { return k.manager }

// Close releases connections and stores opened by New, in reverse order.
func (k *Kernel) Close() error {
	var errs []error
	for i := len(k.closers) - 1; i >= 0; i-- {
		if err := k.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	k.closers = nil
	return errors.Join(errs...)
}

// NewSession creates and bootstraps a session without running a turn, and
// saves it so it can be resumed by id.
func (k *Kernel) NewSession(ctx context.Context) (string, error) {
	s := k.manager.Create(ctx)
	end := s.Begin()
	defer end()

	if _, err := k.initializer.Initialize(ctx, s.Store(), k.profile.Document()); err != nil {
		return "", &TurnError{SessionID: s.ID(), Stage: StageBootstrap, Err: err}
	}
	if err := k.manager.Save(ctx, s); err != nil {
		return "", &TurnError{SessionID: s.ID(), Stage: StagePersist, Err: err}
	}
	return s.ID(), nil
}

// Turn handles one user message for the session with sessionID, creating
// the session when the id is empty or unknown. Exactly one phase runs per
// turn, and turns of the same session are serialized.
//
// The session is saved after every turn that reached the agent, including
// failed ones, so tool effects already applied are not lost.
func (k *Kernel) Turn(ctx context.Context, sessionID string, in Input) (result *Result, err error) {
	ctx, span := k.tracer.Start(ctx, "kernel.Turn")
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	if strings.TrimSpace(in.Message) == "" {
		return nil, ErrEmptyMessage
	}

	s, err := k.manager.Open(ctx, sessionID)
	if err != nil {
		return nil, &TurnError{SessionID: sessionID, Stage: StageSession, Err: err}
	}
	end := s.Begin()
	defer end()

	span.SetAttributes(attribute.String("session.id", s.ID()))
	fail := func(stage string, err error) error {
		observability.Emit(ctx, k.observer, EventError, observability.LevelError, "kernel.Turn", map[string]any{
			"session_id": s.ID(),
			"stage":      stage,
			"error":      err.Error(),
		})
		return &TurnError{SessionID: s.ID(), Stage: stage, Err: err}
	}

	seeded, err := k.initializer.Initialize(ctx, s.Store(), k.profile.Document())
	if err != nil {
		return nil, fail(StageBootstrap, err)
	}
	if seeded {
		observability.Emit(ctx, k.observer, EventBootstrap, observability.LevelInfo, "kernel.Turn", map[string]any{
			"session_id": s.ID(),
			"profile":    k.profile.Path(),
		})
	}

	decision, err := k.router.Resolve(ctx, s.Store(), s.Active(), router.Input{
		Utterance: in.Message,
		Restart:   in.Restart,
	})
	if err != nil {
		return nil, fail(StageRoute, err)
	}
	if decision.Handoff != nil {
		s.ClearTranscript(decision.Phase)
	}
	s.SetActive(decision.Phase)
	span.SetAttributes(
		attribute.String("phase", string(decision.Phase)),
		attribute.String("rule", decision.Rule),
	)

	result = &Result{
		SessionID: s.ID(),
		Phase:     decision.Phase,
		Previous:  decision.Previous,
		Rule:      decision.Rule,
		Handoff:   decision.Handoff,
	}

	observability.Emit(ctx, k.observer, EventTurnStart, observability.LevelInfo, "kernel.Turn", map[string]any{
		"session_id":     s.ID(),
		"phase":          string(decision.Phase),
		"previous":       string(decision.Previous),
		"rule":           decision.Rule,
		"message_length": len(in.Message),
		"max_iterations": k.maxIterations,
	})

	runErr := k.run(ctx, s, decision, in.Message, result)

	if err := k.manager.Save(ctx, s); err != nil {
		return result, fail(StagePersist, errors.Join(runErr, err))
	}
	if runErr != nil {
		return result, fail(StageAgent, runErr)
	}

	observability.Emit(ctx, k.observer, EventTurnComplete, observability.LevelInfo, "kernel.Turn", map[string]any{
		"session_id": s.ID(),
		"phase":      string(result.Phase),
		"iterations": result.Iterations,
		"tool_calls": len(result.ToolCalls),
	})
	return result, nil
}

// run executes the observe/think/act/repeat loop of the chosen phase.
// When maxIterations is 0, the loop runs until the agent produces a final
// response or the context is cancelled.
func (k *Kernel) run(ctx context.Context, s *session.Session, decision router.Decision, message string, result *Result) error {
	p := decision.Phase

	a, err := k.registry.Get(string(p))
	if err != nil {
		return err
	}
	toolset, err := tools.NewGateway(s.Store(), k.caps, k.observer).For(p)
	if err != nil {
		return err
	}
	def := phase.MustLookup(p)

	s.AddMessage(p, protocol.NewMessage(protocol.RoleUser, message))

	for iteration := 0; k.maxIterations == 0 || iteration < k.maxIterations; iteration++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		observability.Emit(ctx, k.observer, EventIterationStart, observability.LevelVerbose, "kernel.run", map[string]any{
			"phase":     string(p),
			"iteration": iteration + 1,
		})

		systemContent := SystemPrompt(def, s.Store(), decision.Handoff)
		messages := buildMessages(systemContent, s.Messages(p))

		resp, err := a.Tools(ctx, messages, toolset.List())
		if err != nil {
			return fmt.Errorf("agent call failed: %w", err)
		}
		if resp == nil || len(resp.Choices) == 0 {
			return agent.ErrEmptyResponse
		}

		choice := resp.Choices[0]
		result.Iterations = iteration + 1

		if len(choice.Message.ToolCalls) == 0 {
			s.AddMessage(p, protocol.NewMessage(protocol.RoleAssistant, choice.Message.Content))
			result.Response = choice.Message.Content

			observability.Emit(ctx, k.observer, EventResponse, observability.LevelInfo, "kernel.run", map[string]any{
				"phase":           string(p),
				"iteration":       iteration + 1,
				"response_length": len(result.Response),
			})
			return nil
		}

		s.AddMessage(p, protocol.Message{
			Role:      protocol.RoleAssistant,
			Content:   choice.Message.Content,
			ToolCalls: choice.Message.ToolCalls,
		})

		for _, tc := range choice.Message.ToolCalls {
			observability.Emit(ctx, k.observer, EventToolCall, observability.LevelVerbose, "kernel.run", map[string]any{
				"iteration": iteration + 1,
				"name":      tc.Name,
			})

			record := ToolCallRecord{ToolCall: tc, Iteration: iteration + 1}

			toolResult, toolErr := toolset.Execute(ctx, tc)
			if toolErr != nil {
				record.Result = fmt.Sprintf("error: %s", toolErr)
				record.IsError = true
			} else {
				record.Result = toolResult.Content
				record.Status = toolResult.Status
				record.IsError = toolResult.IsError
			}

			s.AddMessage(p, protocol.Message{
				Role:       protocol.RoleTool,
				Content:    record.Result,
				ToolCallID: tc.ID,
			})

			observability.Emit(ctx, k.observer, EventToolComplete, observability.LevelVerbose, "kernel.run", map[string]any{
				"iteration": iteration + 1,
				"name":      tc.Name,
				"status":    record.Status,
				"error":     record.IsError,
			})

			result.ToolCalls = append(result.ToolCalls, record)
		}
	}

	return ErrMaxIterations
}

func buildMessages(systemContent string, transcript []protocol.Message) []protocol.Message {
	messages := make([]protocol.Message, 0, len(transcript)+1)
	messages = append(messages, protocol.NewMessage(protocol.RoleSystem, systemContent))
	return append(messages, transcript...)
}

// SystemPrompt assembles the system message for a phase: its instruction,
// the hand-off context when the phase was just entered, and the current
// contents of the store. It is rebuilt every iteration so tool effects are
// visible to the agent.
func SystemPrompt(def phase.Definition, store *state.Store, handoff *router.Handoff) string {
	var b strings.Builder
	b.WriteString(def.Instruction)

	if handoff != nil {
		b.WriteString("\n\n## Hand-off\n")
		fmt.Fprintf(&b, "You are taking over from the %s phase.\n", handoff.From)
		if handoff.Reason != "" {
			fmt.Fprintf(&b, "Reason: %s\n", handoff.Reason)
		}
		if handoff.Recipe.Name != "" {
			fmt.Fprintf(&b, "Recipe: %s\n", handoff.Recipe.Summary())
		}
		fmt.Fprintf(&b, "Latest user message: %s\n", handoff.UserMessage)
	}

	b.WriteString("\n\n## Session state\n")
	if rec, gate, err := recipe.Current(store); err == nil {
		fmt.Fprintf(&b, "- recipe gate: %s\n", gate)
		if rec.Name != "" {
			fmt.Fprintf(&b, "- %s: %s\n", state.KeyRecipe, rec.Summary())
			if def.Phase == phase.Execution {
				for i, step := range rec.Instructions {
					fmt.Fprintf(&b, "  %d. %s\n", i+1, step)
				}
			}
		}
	}
	for _, key := range store.Keys() {
		if key == state.KeyRecipe || key == state.KeyProfileMarker {
			continue
		}
		v, ok := store.Get(key)
		if !ok || v.IsNull() {
			continue
		}
		if v.IsList() && v.Len() == 0 {
			continue
		}
		fmt.Fprintf(&b, "- %s: %s\n", key, v.Describe())
	}
	return strings.TrimRight(b.String(), "\n")
}
