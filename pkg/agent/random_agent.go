package agent

import (
	"context"
	"fmt"
	"math/rand"
	"slices"

	"github.com/boristopalov/timetravel/pkg/core"
)

// RandomAgent picks uniformly among the legal actions.
type RandomAgent struct {
	id  string
	rng *rand.Rand
}

func NewRandomAgent(opts ...AgentOption) *RandomAgent {
	params := newParams(opts)
	return &RandomAgent{
		id:  params.AgentID,
		rng: rand.New(rand.NewSource(params.Seed)),
	}
}

func (a *RandomAgent) GetID() string {
	return a.id
}

func (a *RandomAgent) Act(_ context.Context, _ core.Observation, legal []core.Action) (core.Action, error) {
	if len(legal) == 0 {
		return core.ActionAbsent, fmt.Errorf("agent %s: no legal actions", a.id)
	}
	return legal[a.rng.Intn(len(legal))], nil
}

// ScriptedAgent submits a fixed list of actions, one per call, whether or not
// they are legal. Once the script runs out it idles on DO_NOTHING, or on the
// first legal action when that is not available.
type ScriptedAgent struct {
	id      string
	script  []core.Action
	pos     int
	actions core.ActionSet
}

func NewScriptedAgent(opts ...AgentOption) *ScriptedAgent {
	params := newParams(opts)
	return &ScriptedAgent{
		id:      params.AgentID,
		script:  params.Script,
		actions: params.Actions,
	}
}

func (a *ScriptedAgent) GetID() string {
	return a.id
}

func (a *ScriptedAgent) Act(_ context.Context, _ core.Observation, legal []core.Action) (core.Action, error) {
	if len(legal) == 0 {
		return core.ActionAbsent, fmt.Errorf("agent %s: no legal actions", a.id)
	}
	if legal[0] == core.ActionAbsent {
		return core.ActionAbsent, nil
	}
	if a.pos < len(a.script) {
		act := a.script[a.pos]
		a.pos++
		return act, nil
	}
	if idle, err := a.actions.Parse("DO_NOTHING"); err == nil && slices.Contains(legal, idle) {
		return idle, nil
	}
	return legal[0], nil
}

// Reset rewinds the script.
func (a *ScriptedAgent) Reset() {
	a.pos = 0
}
