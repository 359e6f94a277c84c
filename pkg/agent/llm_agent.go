package agent

import (
	"context"
	"fmt"
	"log"
	"regexp"
	"slices"
	"strings"

	"github.com/boristopalov/timetravel/pkg/core"
	"github.com/boristopalov/timetravel/pkg/memory"
	"github.com/boristopalov/timetravel/pkg/providers"
)

var answerPattern = regexp.MustCompile(`(?i)ANSWER:\s*([A-Z_0-9]+)`)

// LLMAgent asks a language model for each action. It keeps a short memory of
// its own recent steps and feeds it back into the prompt.
type LLMAgent struct {
	id      string
	model   ModelInfo
	client  providers.Client
	memory  *memory.Memory
	actions core.ActionSet
}

// NewLLMAgent creates a new LLM agent
func NewLLMAgent(opts ...AgentOption) (*LLMAgent, error) {
	params := newParams(opts)
	if params.Client == nil {
		return nil, fmt.Errorf("agent %s: no LLM client", params.AgentID)
	}
	if params.Actions.Len() == 0 {
		return nil, fmt.Errorf("agent %s: empty action set", params.AgentID)
	}

	return &LLMAgent{
		id:      params.AgentID,
		model:   params.Model,
		client:  params.Client,
		memory:  memory.NewMemory(params.MemorySize),
		actions: params.Actions,
	}, nil
}

func (a *LLMAgent) GetID() string {
	return a.id
}

func (a *LLMAgent) GetModel() ModelInfo {
	return a.model
}

func (a *LLMAgent) GetClient() providers.Client {
	return a.client
}

// Act prompts the model and parses its answer. An unparseable or illegal
// answer is retried once with a correction; after that the first legal
// action is used.
func (a *LLMAgent) Act(ctx context.Context, obs core.Observation, legal []core.Action) (core.Action, error) {
	if len(legal) == 0 {
		return core.ActionAbsent, fmt.Errorf("agent %s: no legal actions", a.id)
	}
	if len(legal) == 1 {
		return legal[0], nil
	}

	prompt := a.prompt(obs, legal)
	for attempt := 0; attempt < 2; attempt++ {
		response, err := a.client.Complete(ctx, a.model.Id, prompt)
		if err != nil {
			return core.ActionAbsent, fmt.Errorf("failed to complete prompt: %v", err)
		}
		act, err := a.parse(response, legal)
		if err == nil {
			return act, nil
		}
		log.Printf("Agent %s: %v", a.id, err)
		prompt += fmt.Sprintf("\n\nYour previous reply was rejected (%v). Reply with exactly one line: ANSWER: <ACTION>", err)
	}
	log.Printf("Agent %s: falling back to %s", a.id, a.actions.Name(legal[0]))
	return legal[0], nil
}

func (a *LLMAgent) parse(response string, legal []core.Action) (core.Action, error) {
	m := answerPattern.FindStringSubmatch(response)
	if m == nil {
		return core.ActionAbsent, fmt.Errorf("no ANSWER in reply %q", response)
	}
	act, err := a.actions.Parse(m[1])
	if err != nil {
		return core.ActionAbsent, err
	}
	if !slices.Contains(legal, act) {
		return core.ActionAbsent, fmt.Errorf("action %s is not legal", a.actions.Name(act))
	}
	return act, nil
}

func (a *LLMAgent) prompt(obs core.Observation, legal []core.Action) string {
	var b strings.Builder
	b.WriteString("You are an agent in a time travel game. ")
	b.WriteString("The PRIMARY role acts first. Once it reaches its objective it may travel back to the start, ")
	b.WriteString("which begins a second timeline where its past self replays the episode and a TRAVELER version of it ")
	b.WriteString("can change the world for the past self. Rewards earned before travelling are cancelled.\n\n")

	if obs != nil {
		fmt.Fprintf(&b, "You play the %s role.\n", obs.Role())
		fmt.Fprintf(&b, "Observation: %s\n", obs)
	}

	if recent := a.memory.GetAllMessages(); len(recent) > 0 {
		b.WriteString("\nYour recent steps:\n")
		for _, line := range recent {
			b.WriteString("- " + line + "\n")
		}
	}

	names := make([]string, len(legal))
	for i, act := range legal {
		names[i] = a.actions.Name(act)
	}
	fmt.Fprintf(&b, "\nLegal actions: %s\n", strings.Join(names, ", "))
	b.WriteString("Think briefly, then end your reply with one line of the form ANSWER: <ACTION>.")
	return b.String()
}

// Update remembers the step for later prompts.
func (a *LLMAgent) Update(tr Transition) {
	if tr.Action == core.ActionAbsent {
		return
	}
	seen := "nothing"
	if tr.Obs != nil {
		seen = tr.Obs.String()
	}
	a.memory.Store(memory.Entry{
		Timeline: tr.Timeline,
		T:        tr.T,
		Text:     fmt.Sprintf("saw %s, did %s, reward %g", seen, a.actions.Name(tr.Action), tr.Reward),
	})
}

// Reset forgets the previous episode.
func (a *LLMAgent) Reset() {
	a.memory.Clear()
}
