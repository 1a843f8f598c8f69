package agent_test

import (
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/tailored-agentic-units/mealplanner/agent"
	"github.com/tailored-agentic-units/mealplanner/agent/mock"
)

func countingFactory() (agent.Factory, *int) {
	var mu sync.Mutex
	n := 0
	return func(cfg *agent.Config) (agent.Agent, error) {
		mu.Lock()
		defer mu.Unlock()
		n++
		return mock.New(fmt.Sprintf("%s#%d", cfg.Model, n)), nil
	}, &n
}

func TestRegistry_RegisterAndGet(t *testing.T) {
	factory, _ := countingFactory()
	r := agent.NewRegistryWithFactory(factory)

	if err := r.Register("planning", agent.Config{Model: "qwen3:8b"}); err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	a, err := r.Get("planning")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if a.ID() != "qwen3:8b#1" {
		t.Errorf("got ID %q", a.ID())
	}

	// Second Get returns same cached instance
	a2, err := r.Get("planning")
	if err != nil {
		t.Fatalf("second Get failed: %v", err)
	}
	if a.ID() != a2.ID() {
		t.Errorf("cached agent ID mismatch: got %q and %q", a.ID(), a2.ID())
	}
}

func TestRegistry_DefaultFactoryRequiresModel(t *testing.T) {
	r := agent.NewRegistry()
	if err := r.Register("inspiration", agent.Config{}); err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	_, err := r.Get("inspiration")
	if !errors.Is(err, agent.ErrMissingModel) {
		t.Errorf("got %v, want ErrMissingModel", err)
	}
}

func TestRegistry_RegisterEmptyName(t *testing.T) {
	r := agent.NewRegistry()

	err := r.Register("", agent.Config{})
	if !errors.Is(err, agent.ErrEmptyAgentName) {
		t.Errorf("got %v, want ErrEmptyAgentName", err)
	}
}

func TestRegistry_RegisterDuplicate(t *testing.T) {
	r := agent.NewRegistry()

	cfg := agent.Config{Model: "qwen3:8b"}
	if err := r.Register("planning", cfg); err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	err := r.Register("planning", cfg)
	if !errors.Is(err, agent.ErrAgentExists) {
		t.Errorf("got %v, want ErrAgentExists", err)
	}
}

func TestRegistry_GetNotFound(t *testing.T) {
	r := agent.NewRegistry()

	_, err := r.Get("nonexistent")
	if !errors.Is(err, agent.ErrAgentNotFound) {
		t.Errorf("got %v, want ErrAgentNotFound", err)
	}
}

func TestRegistry_Replace(t *testing.T) {
	factory, _ := countingFactory()
	r := agent.NewRegistryWithFactory(factory)

	if err := r.Register("planning", agent.Config{Model: "qwen3:8b"}); err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	a1, err := r.Get("planning")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}

	if err := r.Replace("planning", agent.Config{Model: "llama3"}); err != nil {
		t.Fatalf("Replace failed: %v", err)
	}

	// Get should re-instantiate
	a2, err := r.Get("planning")
	if err != nil {
		t.Fatalf("Get after Replace failed: %v", err)
	}
	if a1.ID() == a2.ID() {
		t.Error("expected new agent instance after Replace, got same ID")
	}
	if a2.ID() != "llama3#2" {
		t.Errorf("got ID %q, want llama3#2", a2.ID())
	}
}

func TestRegistry_ReplaceErrors(t *testing.T) {
	r := agent.NewRegistry()

	if err := r.Replace("", agent.Config{}); !errors.Is(err, agent.ErrEmptyAgentName) {
		t.Errorf("got %v, want ErrEmptyAgentName", err)
	}
	if err := r.Replace("nonexistent", agent.Config{}); !errors.Is(err, agent.ErrAgentNotFound) {
		t.Errorf("got %v, want ErrAgentNotFound", err)
	}
}

func TestRegistry_Set(t *testing.T) {
	r := agent.NewRegistry()
	m := mock.New("scripted")

	if err := r.Set("execution", m); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	got, err := r.Get("execution")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got != agent.Agent(m) {
		t.Error("Get did not return the installed agent")
	}
	if err := r.Set("", m); !errors.Is(err, agent.ErrEmptyAgentName) {
		t.Errorf("got %v, want ErrEmptyAgentName", err)
	}
}

func TestRegistry_List(t *testing.T) {
	r := agent.NewRegistry()

	r.Register("planning", agent.Config{Model: "qwen3:8b"})
	r.Register("execution", agent.Config{Model: "llama3"})

	infos := r.List()
	if len(infos) != 2 {
		t.Fatalf("got %d entries, want 2", len(infos))
	}

	// Sorted by name
	if infos[0].Name != "execution" || infos[0].Model != "llama3" {
		t.Errorf("got first %+v", infos[0])
	}
	if infos[1].Name != "planning" {
		t.Errorf("got second name %q, want %q", infos[1].Name, "planning")
	}
}

func TestRegistry_Unregister(t *testing.T) {
	factory, _ := countingFactory()
	r := agent.NewRegistryWithFactory(factory)

	r.Register("planning", agent.Config{Model: "qwen3:8b"})
	r.Get("planning")

	if err := r.Unregister("planning"); err != nil {
		t.Fatalf("Unregister failed: %v", err)
	}

	_, err := r.Get("planning")
	if !errors.Is(err, agent.ErrAgentNotFound) {
		t.Errorf("got %v, want ErrAgentNotFound after Unregister", err)
	}
	if infos := r.List(); len(infos) != 0 {
		t.Errorf("got %d entries after Unregister, want 0", len(infos))
	}
	if err := r.Unregister("planning"); !errors.Is(err, agent.ErrAgentNotFound) {
		t.Errorf("got %v, want ErrAgentNotFound", err)
	}
}

func TestRegistry_ConcurrentAccess(t *testing.T) {
	factory, created := countingFactory()
	r := agent.NewRegistryWithFactory(factory)

	for i := range 10 {
		name := string(rune('a' + i))
		r.Register(name, agent.Config{Model: "model-" + name})
	}

	var wg sync.WaitGroup
	for range 50 {
		wg.Go(func() {
			r.List()
		})
		wg.Go(func() {
			r.Get("b")
		})
	}
	wg.Wait()

	if *created != 1 {
		t.Errorf("agent created %d times, want 1", *created)
	}
}
