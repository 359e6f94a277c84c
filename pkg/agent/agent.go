package agent

import (
	"context"
	"fmt"

	"github.com/boristopalov/timetravel/pkg/config"
	"github.com/boristopalov/timetravel/pkg/core"
	"github.com/boristopalov/timetravel/pkg/providers"
	"github.com/google/uuid"
)

// Policy picks an action for one role from the legal set.
type Policy interface {
	GetID() string
	// Act returns one of legal. obs is nil while the role is absent.
	Act(ctx context.Context, obs core.Observation, legal []core.Action) (core.Action, error)
}

// Transition is one step as seen by the acting role.
type Transition struct {
	Timeline core.Timeline
	T        int
	Obs      core.Observation
	Action   core.Action
	// Next is nil when the step ended the episode.
	Next   core.Observation
	Reward float64
}

// Learner is a policy that improves from the transitions it took part in.
type Learner interface {
	Policy
	Update(tr Transition)
}

// Resetter is implemented by policies with per-episode state.
type Resetter interface {
	Reset()
}

// Greedy is implemented by policies that can act without exploring. The
// primary's past self uses it when it stops replaying its rollout.
type Greedy interface {
	ActGreedy(obs core.Observation, legal []core.Action) core.Action
}

type ModelInfo struct {
	Id     string         // e.g. "gpt-4o-mini"
	Config map[string]any // model-specific configuration
}

type AgentParams struct {
	AgentID       string
	Actions       core.ActionSet
	Seed          int64
	LearningRate  float64
	Epsilon       float64
	Deterministic bool
	Script        []core.Action
	Client        providers.Client
	Model         ModelInfo
	MemorySize    int
}

type AgentOption func(*AgentParams)

func WithAgentId(id string) AgentOption {
	return func(p *AgentParams) {
		p.AgentID = id
	}
}

func WithActions(actions core.ActionSet) AgentOption {
	return func(p *AgentParams) {
		p.Actions = actions
	}
}

func WithSeed(seed int64) AgentOption {
	return func(p *AgentParams) {
		p.Seed = seed
	}
}

func WithLearningRate(lr float64) AgentOption {
	return func(p *AgentParams) {
		p.LearningRate = lr
	}
}

func WithEpsilon(eps float64) AgentOption {
	return func(p *AgentParams) {
		p.Epsilon = eps
	}
}

func WithDeterministic(deterministic bool) AgentOption {
	return func(p *AgentParams) {
		p.Deterministic = deterministic
	}
}

func WithScript(script ...core.Action) AgentOption {
	return func(p *AgentParams) {
		p.Script = script
	}
}

func WithClient(c providers.Client) AgentOption {
	return func(p *AgentParams) {
		p.Client = c
	}
}

func WithModel(model ModelInfo) AgentOption {
	return func(p *AgentParams) {
		p.Model = model
	}
}

func WithMemorySize(n int) AgentOption {
	return func(p *AgentParams) {
		p.MemorySize = n
	}
}

func defaultAgentParams() *AgentParams {
	return &AgentParams{
		AgentID:      "agent-" + uuid.New().String(),
		LearningRate: 1e-2,
		Epsilon:      0.1,
		Model: ModelInfo{
			Id:     "gpt-4o-mini",
			Config: make(map[string]any),
		},
		MemorySize: 20,
	}
}

func newParams(opts []AgentOption) *AgentParams {
	params := defaultAgentParams()
	for _, opt := range opts {
		opt(params)
	}
	return params
}

// FromConfig builds the policy described by cfg for an environment with the
// given spec. Extra options are applied after the configured ones.
func FromConfig(ctx context.Context, cfg config.AgentConfig, spec core.Spec, seed int64, extra ...AgentOption) (Policy, error) {
	opts := []AgentOption{
		WithActions(spec.Actions),
		WithSeed(seed),
		WithLearningRate(cfg.LearningRate),
		WithEpsilon(cfg.Epsilon),
		WithDeterministic(cfg.Deterministic),
		WithMemorySize(cfg.MemorySize),
		WithModel(ModelInfo{Id: cfg.Model, Config: make(map[string]any)}),
	}

	switch cfg.Kind {
	case "q":
		return NewQAgent(append(opts, extra...)...), nil
	case "random":
		return NewRandomAgent(append(opts, extra...)...), nil
	case "scripted":
		script := make([]core.Action, 0, len(cfg.Script))
		for _, name := range cfg.Script {
			a, err := spec.Actions.Parse(name)
			if err != nil {
				return nil, fmt.Errorf("script for %s: %w", spec.Name, err)
			}
			script = append(script, a)
		}
		opts = append(opts, WithScript(script...))
		return NewScriptedAgent(append(opts, extra...)...), nil
	case "llm":
		client, err := providers.New(ctx, cfg.Provider)
		if err != nil {
			return nil, fmt.Errorf("failed to create %s client: %v", cfg.Provider, err)
		}
		opts = append(opts, WithClient(client))
		return NewLLMAgent(append(opts, extra...)...)
	}
	return nil, fmt.Errorf("unknown agent kind %q", cfg.Kind)
}
