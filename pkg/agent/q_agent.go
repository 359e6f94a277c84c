package agent

import (
	"context"
	"fmt"
	"math"
	"math/rand"

	"github.com/boristopalov/timetravel/pkg/core"
)

// absentRow is the table row for a missing observation: an absent traveler or
// the state after the episode ended. It is never updated, so it stays zero.
const absentRow = -1

// QAgent is a tabular Q-learner keyed by the observation index. Rows are
// created on first use since the maze index space is mostly unreachable.
type QAgent struct {
	id            string
	numActions    int
	lr            float64
	epsilon       float64
	deterministic bool
	q             map[int][]float64
	rng           *rand.Rand
}

func NewQAgent(opts ...AgentOption) *QAgent {
	params := newParams(opts)
	return &QAgent{
		id:            params.AgentID,
		numActions:    params.Actions.Len(),
		lr:            params.LearningRate,
		epsilon:       params.Epsilon,
		deterministic: params.Deterministic,
		q:             make(map[int][]float64),
		rng:           rand.New(rand.NewSource(params.Seed)),
	}
}

func (a *QAgent) GetID() string {
	return a.id
}

func rowIndex(obs core.Observation) int {
	if obs == nil {
		return absentRow
	}
	return obs.Index()
}

func (a *QAgent) row(obs core.Observation) []float64 {
	idx := rowIndex(obs)
	r, ok := a.q[idx]
	if !ok {
		r = make([]float64, a.numActions)
		a.q[idx] = r
	}
	return r
}

// Value returns Q(obs, action). Unknown entries are zero.
func (a *QAgent) Value(obs core.Observation, action core.Action) float64 {
	r, ok := a.q[rowIndex(obs)]
	if !ok || action < 0 || int(action) >= len(r) {
		return 0
	}
	return r[action]
}

// Rows is the number of observations the table has seen.
func (a *QAgent) Rows() int {
	return len(a.q)
}

// Act explores with softmax over the legal Q-values, or uniformly with
// probability epsilon. A deterministic agent always acts greedily.
func (a *QAgent) Act(_ context.Context, obs core.Observation, legal []core.Action) (core.Action, error) {
	if len(legal) == 0 {
		return core.ActionAbsent, fmt.Errorf("agent %s: no legal actions", a.id)
	}
	if len(legal) == 1 || legal[0] == core.ActionAbsent {
		return legal[0], nil
	}
	if a.deterministic {
		return a.ActGreedy(obs, legal), nil
	}
	if a.rng.Float64() > a.epsilon {
		return a.softmax(obs, legal), nil
	}
	return legal[a.rng.Intn(len(legal))], nil
}

// ActGreedy returns the legal action with the highest value; ties go to the
// lowest id.
func (a *QAgent) ActGreedy(obs core.Observation, legal []core.Action) core.Action {
	best := legal[0]
	bestQ := math.Inf(-1)
	for _, act := range legal {
		if act == core.ActionAbsent {
			return act
		}
		if v := a.Value(obs, act); v > bestQ {
			best, bestQ = act, v
		}
	}
	return best
}

func (a *QAgent) softmax(obs core.Observation, legal []core.Action) core.Action {
	top := math.Inf(-1)
	for _, act := range legal {
		top = math.Max(top, a.Value(obs, act))
	}
	weights := make([]float64, len(legal))
	total := 0.0
	for i, act := range legal {
		weights[i] = math.Exp(a.Value(obs, act) - top)
		total += weights[i]
	}
	x := a.rng.Float64() * total
	for i, w := range weights {
		x -= w
		if x < 0 {
			return legal[i]
		}
	}
	return legal[len(legal)-1]
}

// Update applies Q(s,a) += lr * (r + max Q(s',.) - Q(s,a)), undiscounted.
func (a *QAgent) Update(tr Transition) {
	if tr.Action == core.ActionAbsent || int(tr.Action) >= a.numActions || tr.Action < 0 {
		return
	}
	nextQ := 0.0
	if next, ok := a.q[rowIndex(tr.Next)]; ok {
		nextQ = next[0]
		for _, v := range next[1:] {
			nextQ = math.Max(nextQ, v)
		}
	}
	r := a.row(tr.Obs)
	r[tr.Action] += a.lr * (tr.Reward + nextQ - r[tr.Action])
}
