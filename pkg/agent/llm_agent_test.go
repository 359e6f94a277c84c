package agent

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/boristopalov/timetravel/pkg/config"
	"github.com/boristopalov/timetravel/pkg/core"
	"github.com/boristopalov/timetravel/pkg/environment"
)

// MockLLMClient replays canned responses and records the prompts it saw.
type MockLLMClient struct {
	responses []string
	prompts   []string
	err       error
}

func (m *MockLLMClient) Complete(ctx context.Context, model string, prompt string) (string, error) {
	m.prompts = append(m.prompts, prompt)
	if m.err != nil {
		return "", m.err
	}
	if len(m.responses) == 0 {
		return "I have nothing to say", nil
	}
	r := m.responses[0]
	m.responses = m.responses[1:]
	return r, nil
}

func newTestLLMAgent(t *testing.T, client *MockLLMClient) *LLMAgent {
	t.Helper()
	agent, err := NewLLMAgent(
		WithAgentId("test-agent"),
		WithModel(ModelInfo{Id: "mock-model", Config: make(map[string]any)}),
		WithActions(environment.DoorActions),
		WithClient(client),
		WithMemorySize(4),
	)
	if err != nil {
		t.Fatalf("Failed to create agent: %v", err)
	}
	return agent
}

func TestLLMAgent(t *testing.T) {
	obs := environment.NewDoorObservation(environment.DoorClosed, environment.DoorClosed, core.RolePrimary)
	legal := []core.Action{environment.DoorOpen0, environment.DoorOpen1, environment.DoorDoNothing}
	ctx := context.Background()

	t.Run("basic properties", func(t *testing.T) {
		agent := newTestLLMAgent(t, &MockLLMClient{})
		if got := agent.GetID(); got != "test-agent" {
			t.Errorf("agent.GetID() = %v, want %v", got, "test-agent")
		}
		if got := agent.GetModel().Id; got != "mock-model" {
			t.Errorf("agent.GetModel().Id = %v, want %v", got, "mock-model")
		}
	})

	t.Run("parses the answer line", func(t *testing.T) {
		client := &MockLLMClient{responses: []string{"Door 1 looks promising.\nANSWER: open_door_1"}}
		agent := newTestLLMAgent(t, client)
		act, err := agent.Act(ctx, obs, legal)
		if err != nil {
			t.Fatalf("Act: %v", err)
		}
		if act != environment.DoorOpen1 {
			t.Errorf("Act = %s, want OPEN_DOOR_1", environment.DoorActions.Name(act))
		}
		p := client.prompts[0]
		if !strings.Contains(p, "OPEN_DOOR_0, OPEN_DOOR_1, DO_NOTHING") || !strings.Contains(p, obs.String()) {
			t.Errorf("prompt is missing the observation or legal actions:\n%s", p)
		}
	})

	t.Run("retries an illegal answer once", func(t *testing.T) {
		client := &MockLLMClient{responses: []string{"ANSWER: LOCK_DOOR_0", "ANSWER: DO_NOTHING"}}
		agent := newTestLLMAgent(t, client)
		act, err := agent.Act(ctx, obs, legal)
		if err != nil || act != environment.DoorDoNothing {
			t.Fatalf("Act = %d, %v, want DO_NOTHING", act, err)
		}
		if len(client.prompts) != 2 || !strings.Contains(client.prompts[1], "rejected") {
			t.Errorf("second prompt should carry a correction, prompts = %q", client.prompts)
		}
	})

	t.Run("falls back after two bad replies", func(t *testing.T) {
		client := &MockLLMClient{}
		agent := newTestLLMAgent(t, client)
		act, err := agent.Act(ctx, obs, legal)
		if err != nil || act != legal[0] {
			t.Errorf("Act = %d, %v, want fallback %d", act, err, legal[0])
		}
	})

	t.Run("client errors are returned", func(t *testing.T) {
		agent := newTestLLMAgent(t, &MockLLMClient{err: errors.New("boom")})
		if _, err := agent.Act(ctx, obs, legal); err == nil {
			t.Error("expected an error from a failing client")
		}
	})

	t.Run("single legal action skips the model", func(t *testing.T) {
		client := &MockLLMClient{}
		agent := newTestLLMAgent(t, client)
		act, err := agent.Act(ctx, nil, []core.Action{core.ActionAbsent})
		if err != nil || act != core.ActionAbsent || len(client.prompts) != 0 {
			t.Errorf("Act = %d, %v with %d prompts", act, err, len(client.prompts))
		}
	})

	t.Run("remembers steps in later prompts", func(t *testing.T) {
		client := &MockLLMClient{responses: []string{"ANSWER: DO_NOTHING"}}
		agent := newTestLLMAgent(t, client)
		agent.Update(Transition{
			Timeline: core.TimelineOriginal,
			T:        1,
			Obs:      obs,
			Action:   environment.DoorOpen0,
			Reward:   100,
		})
		if _, err := agent.Act(ctx, obs, legal); err != nil {
			t.Fatal(err)
		}
		if !strings.Contains(client.prompts[0], "did OPEN_DOOR_0, reward 100") {
			t.Errorf("memory missing from prompt:\n%s", client.prompts[0])
		}
		agent.Reset()
		if agent.memory.Len() != 0 {
			t.Error("Reset kept memory")
		}
	})

	t.Run("requires a client", func(t *testing.T) {
		if _, err := NewLLMAgent(WithActions(environment.DoorActions)); err == nil {
			t.Error("expected an error without a client")
		}
	})
}

func TestFromConfig(t *testing.T) {
	ctx := context.Background()
	env, err := environment.New(config.EnvConfig{Type: "door", Door: config.DefaultDoorConfig()})
	if err != nil {
		t.Fatal(err)
	}
	spec := env.Spec()

	cases := []struct {
		kind string
		want string
	}{
		{kind: "q", want: "*agent.QAgent"},
		{kind: "random", want: "*agent.RandomAgent"},
		{kind: "scripted", want: "*agent.ScriptedAgent"},
	}
	for _, tc := range cases {
		t.Run(tc.kind, func(t *testing.T) {
			cfg := config.DefaultAgentConfig()
			cfg.Kind = tc.kind
			cfg.Script = []string{"do_nothing", "OPEN_DOOR_1"}
			p, err := FromConfig(ctx, cfg, spec, 1, WithAgentId("a"))
			if err != nil {
				t.Fatalf("FromConfig: %v", err)
			}
			if got := typeName(p); got != tc.want {
				t.Errorf("FromConfig(%s) = %s, want %s", tc.kind, got, tc.want)
			}
			if p.GetID() != "a" {
				t.Errorf("id = %s", p.GetID())
			}
		})
	}

	t.Run("llm", func(t *testing.T) {
		cfg := config.DefaultAgentConfig()
		cfg.Kind = "llm"
		t.Setenv("OPENAI_API_KEY", "test-key")
		p, err := FromConfig(ctx, cfg, spec, 1, WithClient(&MockLLMClient{}))
		if err != nil {
			t.Fatalf("FromConfig: %v", err)
		}
		if _, ok := p.(*LLMAgent); !ok {
			t.Errorf("FromConfig(llm) = %T", p)
		}
	})

	t.Run("bad script", func(t *testing.T) {
		cfg := config.DefaultAgentConfig()
		cfg.Kind = "scripted"
		cfg.Script = []string{"FLY"}
		if _, err := FromConfig(ctx, cfg, spec, 1); !errors.Is(err, core.ErrUnknownAction) {
			t.Errorf("err = %v, want ErrUnknownAction", err)
		}
	})

	t.Run("unknown kind", func(t *testing.T) {
		cfg := config.DefaultAgentConfig()
		cfg.Kind = "oracle"
		if _, err := FromConfig(ctx, cfg, spec, 1); err == nil {
			t.Error("expected an error")
		}
	})
}
