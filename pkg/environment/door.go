package environment

import (
	"fmt"
	"strings"

	"github.com/boristopalov/timetravel/pkg/config"
	"github.com/boristopalov/timetravel/pkg/core"
)

// Door puzzle actions.
const (
	DoorOpen0 core.Action = iota
	DoorOpen1
	DoorLock0
	DoorLock1
	DoorTimeTravel
	DoorDoNothing
)

var DoorActions = core.NewActionSet(
	"OPEN_DOOR_0",
	"OPEN_DOOR_1",
	"LOCK_DOOR_0",
	"LOCK_DOOR_1",
	"TIME_TRAVEL",
	"DO_NOTHING",
)

type DoorState int

const (
	DoorLocked DoorState = iota
	DoorClosed
	DoorOpen
)

const numDoorStates = 3

func (s DoorState) String() string {
	switch s {
	case DoorLocked:
		return "LOCKED"
	case DoorClosed:
		return "CLOSED"
	case DoorOpen:
		return "OPEN"
	}
	return fmt.Sprintf("DoorState(%d)", int(s))
}

type door struct {
	reward float64
	state  DoorState
}

// doorWorld is the world state of the door puzzle.
type doorWorld struct {
	t          int
	timeline   core.Timeline
	doors      [2]door
	rewardDoor int
}

// initialize builds a fresh pair of closed doors. The reward-bearing door is
// redrawn only when preserveGroundTruth is false.
func (w *doorWorld) initialize(preserveGroundTruth bool, timeline core.Timeline, reward float64, draw func() int) {
	if !preserveGroundTruth {
		w.rewardDoor = draw()
	}
	w.t = 0
	w.timeline = timeline
	for i := range w.doors {
		w.doors[i] = door{state: DoorClosed}
	}
	w.doors[w.rewardDoor].reward = reward
}

// DoorEnvironment is the two-door puzzle. In the ORIGINAL timeline the
// primary waits, opens a door, then may travel back. In the BRANCHED timeline
// the traveler can lock a door before the primary's past self opens one.
type DoorEnvironment struct {
	cfg   config.DoorConfig
	ep    episode
	world *doorWorld
}

func NewDoorEnvironment(cfg config.DoorConfig) *DoorEnvironment {
	return &DoorEnvironment{
		cfg: cfg,
		ep:  newEpisode(),
	}
}

func (e *DoorEnvironment) Spec() core.Spec {
	return core.Spec{
		Name:    "door",
		Actions: DoorActions,
		Radix:   doorRadix,
	}
}

func (e *DoorEnvironment) Timeline() core.Timeline {
	if e.world == nil {
		return core.TimelineOriginal
	}
	return e.world.timeline
}

// Reset starts an ORIGINAL episode with a new reward door, or restarts the
// current one in the BRANCHED timeline keeping the reward door.
func (e *DoorEnvironment) Reset(opts core.ResetOptions) (core.ObservationPair, error) {
	if !opts.OriginalTimeline && e.world == nil {
		return core.ObservationPair{}, fmt.Errorf("branched reset: %w", core.ErrNotReset)
	}
	e.ep.begin(opts)
	if e.world == nil {
		e.world = &doorWorld{}
	}
	timeline := core.TimelineBranched
	if opts.OriginalTimeline {
		timeline = core.TimelineOriginal
	}
	e.world.initialize(!opts.OriginalTimeline, timeline, e.cfg.Reward, func() int {
		return e.ep.rng.Intn(2)
	})
	return e.observe(), nil
}

func (e *DoorEnvironment) Step(a core.JointAction) (core.StepResult, error) {
	if err := e.ep.checkRunning(); err != nil {
		return core.StepResult{}, err
	}
	if err := checkKnown(DoorActions, a); err != nil {
		return core.StepResult{}, err
	}

	w := e.world
	if !isLegal(e.LegalActions(core.RolePrimary), a.Primary) ||
		!isLegal(e.LegalActions(core.RoleTraveler), a.Traveler) {
		return e.ep.illegal(e.observe(), core.Info{T: w.t, Timeline: w.timeline}, e.cfg.IllegalPenalty), nil
	}

	w.t++
	res := core.StepResult{Reward: e.cfg.TimeCost}
	e.ep.accrue(w.timeline, e.cfg.TimeCost)

	// the traveler acts on the past before the primary's action resolves
	switch a.Traveler {
	case DoorLock0:
		w.doors[0].state = DoorLocked
	case DoorLock1:
		w.doors[1].state = DoorLocked
	}

	switch a.Primary {
	case DoorOpen0, DoorOpen1:
		d := &w.doors[a.Primary-DoorOpen0]
		d.state = DoorOpen
		res.Reward += d.reward
		res.Info.Outcome = core.OutcomeDoorOpened
		if int(a.Primary-DoorOpen0) != w.rewardDoor {
			res.Info.Outcome = core.OutcomeWrongDoor
		}
		if w.timeline == core.TimelineBranched {
			res.Terminated = true
		} else {
			e.ep.grantGoal(w.timeline, d.reward)
		}
	case DoorTimeTravel:
		res.Reward += e.ep.undo()
		e.world = branchDoors(w)
		w = e.world
		res.Info.Outcome = core.OutcomeBranched
	}

	if !res.Terminated && w.t >= e.cfg.MaxEpisodeLen {
		res.Truncated = true
		res.Info.Outcome = core.OutcomeTimeLimit
	}
	if res.Done() {
		e.ep.finish()
	}

	res.Info.T = w.t
	res.Info.Timeline = w.timeline
	res.Observations = e.observe()
	return res, nil
}

func (e *DoorEnvironment) LegalActions(role core.Role) []core.Action {
	if e.world == nil {
		return nil
	}
	return doorLegalActions(e.world, role)
}

func (e *DoorEnvironment) observe() core.ObservationPair {
	w := e.world
	pair := core.ObservationPair{
		Primary: DoorObservation{Door0: w.doors[0].state, Door1: w.doors[1].state, role: core.RolePrimary},
	}
	if w.timeline == core.TimelineBranched {
		pair.Traveler = DoorObservation{Door0: w.doors[0].state, Door1: w.doors[1].state, role: core.RoleTraveler}
	}
	return pair
}

func (e *DoorEnvironment) Render() string {
	if e.world == nil {
		return "(not reset)\n"
	}
	w := e.world
	var b strings.Builder
	b.WriteString(strings.Repeat("-", 30) + "\n")
	fmt.Fprintf(&b, "t = %d\n", w.t)
	fmt.Fprintf(&b, "timeline: %s\n", w.timeline)
	fmt.Fprintf(&b, "door0: %s, door1: %s\n", w.doors[0].state, w.doors[1].state)
	obs := e.observe()
	fmt.Fprintf(&b, "primary obs: %s\n", obs.Primary)
	if obs.Traveler != nil {
		fmt.Fprintf(&b, "traveler obs: %s\n", obs.Traveler)
	} else {
		b.WriteString("traveler obs: ABSENT\n")
	}
	return b.String()
}

// RewardDoor reveals the hidden ground truth of the current episode, or -1
// before the first reset.
func (e *DoorEnvironment) RewardDoor() int {
	if e.world == nil {
		return -1
	}
	return e.world.rewardDoor
}
