package environment

import (
	"fmt"
	"math/rand"
	"slices"
	"time"

	"github.com/boristopalov/timetravel/pkg/config"
	"github.com/boristopalov/timetravel/pkg/core"
)

// New builds the environment variant named by cfg.Type.
func New(cfg config.EnvConfig) (core.Environment, error) {
	switch cfg.Type {
	case "door":
		return NewDoorEnvironment(cfg.Door), nil
	case "maze":
		return NewMazeEnvironment(cfg.Maze)
	}
	return nil, fmt.Errorf("unknown environment type %q", cfg.Type)
}

type status int

const (
	statusIdle status = iota
	statusRunning
	statusDone
)

// episode is the state an environment keeps across the branch boundary: the
// random source, the run status and the reward ledger of the ORIGINAL
// timeline.
type episode struct {
	rng    *rand.Rand
	status status

	// rewards already handed out in the ORIGINAL timeline that a branch undoes
	timeCostAccrued float64
	goalGranted     float64
}

func newEpisode() episode {
	return episode{
		rng: rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (e *episode) begin(opts core.ResetOptions) {
	if opts.Seed != nil {
		e.rng = rand.New(rand.NewSource(*opts.Seed))
	}
	e.status = statusRunning
	e.timeCostAccrued = 0
	e.goalGranted = 0
}

func (e *episode) checkRunning() error {
	switch e.status {
	case statusIdle:
		return core.ErrNotReset
	case statusDone:
		return core.ErrEpisodeOver
	}
	return nil
}

func (e *episode) finish() {
	e.status = statusDone
}

// accrue records the time cost charged on a step taken in timeline.
func (e *episode) accrue(timeline core.Timeline, cost float64) {
	if timeline == core.TimelineOriginal {
		e.timeCostAccrued += cost
	}
}

// grantGoal records goal reward earned in timeline.
func (e *episode) grantGoal(timeline core.Timeline, reward float64) {
	if timeline == core.TimelineOriginal {
		e.goalGranted += reward
	}
}

// undo returns the reward delta that cancels everything the ORIGINAL
// timeline has paid out so far, and clears the ledger.
func (e *episode) undo() float64 {
	delta := -e.timeCostAccrued - e.goalGranted
	e.timeCostAccrued = 0
	e.goalGranted = 0
	return delta
}

// illegal ends the episode on an illegal joint action.
func (e *episode) illegal(obs core.ObservationPair, info core.Info, penalty float64) core.StepResult {
	e.finish()
	info.Outcome = core.OutcomeIllegal
	return core.StepResult{
		Observations: obs,
		Reward:       penalty,
		Truncated:    true,
		Info:         info,
	}
}

func checkKnown(actions core.ActionSet, a core.JointAction) error {
	if a.Primary != core.ActionAbsent && !actions.Contains(a.Primary) {
		return fmt.Errorf("primary action %d: %w", int(a.Primary), core.ErrUnknownAction)
	}
	if a.Traveler != core.ActionAbsent && !actions.Contains(a.Traveler) {
		return fmt.Errorf("traveler action %d: %w", int(a.Traveler), core.ErrUnknownAction)
	}
	return nil
}

func isLegal(legal []core.Action, a core.Action) bool {
	return slices.Contains(legal, a)
}
