package core

import (
	"fmt"
	"strings"

	"github.com/boristopalov/timetravel/pkg/radix"
)

// Role identifies one of the two agents of an episode.
type Role int

const (
	RolePrimary Role = iota
	RoleTraveler
)

// NumRoles is the cardinality of Role in encoded observations.
const NumRoles = 2

func (r Role) String() string {
	switch r {
	case RolePrimary:
		return "PRIMARY"
	case RoleTraveler:
		return "TRAVELER"
	}
	return fmt.Sprintf("Role(%d)", int(r))
}

// Timeline is the active phase of an episode. ORIGINAL moves to BRANCHED at
// most once and never back.
type Timeline int

const (
	TimelineOriginal Timeline = iota
	TimelineBranched
)

func (t Timeline) String() string {
	switch t {
	case TimelineOriginal:
		return "ORIGINAL"
	case TimelineBranched:
		return "BRANCHED"
	}
	return fmt.Sprintf("Timeline(%d)", int(t))
}

func (t Timeline) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

func (t *Timeline) UnmarshalText(b []byte) error {
	switch string(b) {
	case "ORIGINAL":
		*t = TimelineOriginal
	case "BRANCHED":
		*t = TimelineBranched
	default:
		return fmt.Errorf("unknown timeline %q", b)
	}
	return nil
}

// Action is a variant-specific action id. The ids are part of the wire
// contract with trained policies and must stay stable.
type Action int

// ActionAbsent is the traveler's action while it does not exist yet.
const ActionAbsent Action = -1

// JointAction is the pair of actions submitted to one Step call.
type JointAction struct {
	Primary  Action
	Traveler Action
}

// Observation is a per-role partial view of the world.
type Observation interface {
	Role() Role
	// Fields is the flat fixed-width encoding of the observation.
	Fields() []int
	// Index is the mixed-radix composition of Fields.
	Index() int
	String() string
}

// ObservationPair holds one observation per role. Traveler is nil while the
// traveler is absent.
type ObservationPair struct {
	Primary  Observation
	Traveler Observation
}

// Get returns the observation for role.
func (p ObservationPair) Get(role Role) Observation {
	if role == RoleTraveler {
		return p.Traveler
	}
	return p.Primary
}

// Outcome classifies what a step resolved to.
type Outcome int

const (
	OutcomeNone Outcome = iota
	OutcomeGoal
	OutcomeGoalReached
	OutcomeTrap
	OutcomeProximity
	OutcomeStopped
	OutcomeBranched
	OutcomeDoorOpened
	OutcomeIllegal
	OutcomeTimeLimit
	OutcomeWrongDoor
)

var outcomeNames = [...]string{
	OutcomeNone:        "none",
	OutcomeGoal:        "goal",
	OutcomeGoalReached: "goal_reached",
	OutcomeTrap:        "trap",
	OutcomeProximity:   "proximity",
	OutcomeStopped:     "stopped",
	OutcomeBranched:    "branched",
	OutcomeDoorOpened:  "door_opened",
	OutcomeIllegal:     "illegal",
	OutcomeTimeLimit:   "time_limit",
	OutcomeWrongDoor:   "wrong_door",
}

func (o Outcome) String() string {
	if o >= 0 && int(o) < len(outcomeNames) {
		return outcomeNames[o]
	}
	return fmt.Sprintf("Outcome(%d)", int(o))
}

func (o Outcome) MarshalText() ([]byte, error) {
	return []byte(o.String()), nil
}

// Success reports whether an episode ending with o reached its objective.
// Opening the door without the reward is not a success.
func (o Outcome) Success() bool {
	return o == OutcomeGoal || o == OutcomeStopped || o == OutcomeDoorOpened
}

func (o *Outcome) UnmarshalText(b []byte) error {
	for i, name := range outcomeNames {
		if name == string(b) {
			*o = Outcome(i)
			return nil
		}
	}
	return fmt.Errorf("unknown outcome %q", b)
}

// Info carries auxiliary step data.
type Info struct {
	T        int      `json:"t"`
	Timeline Timeline `json:"timeline"`
	Outcome  Outcome  `json:"outcome"`
}

// StepResult is the result of one Step call.
type StepResult struct {
	Observations ObservationPair
	Reward       float64
	Terminated   bool
	Truncated    bool
	Info         Info
}

// Done reports whether the episode ended on this step.
func (r StepResult) Done() bool {
	return r.Terminated || r.Truncated
}

// ResetOptions controls how an episode starts. The hidden ground truth is
// redrawn only when OriginalTimeline is true.
type ResetOptions struct {
	OriginalTimeline bool
	Seed             *int64
}

// ActionSet names the actions of one variant. Action ids are indices into
// the name list.
type ActionSet struct {
	names []string
}

func NewActionSet(names ...string) ActionSet {
	n := make([]string, len(names))
	copy(n, names)
	return ActionSet{names: n}
}

func (s ActionSet) Len() int {
	return len(s.names)
}

func (s ActionSet) Contains(a Action) bool {
	return a >= 0 && int(a) < len(s.names)
}

func (s ActionSet) Name(a Action) string {
	if a == ActionAbsent {
		return "ABSENT"
	}
	if !s.Contains(a) {
		return fmt.Sprintf("Action(%d)", int(a))
	}
	return s.names[a]
}

// Parse looks an action up by name, case-insensitively.
func (s ActionSet) Parse(name string) (Action, error) {
	name = strings.ToUpper(strings.TrimSpace(name))
	if name == "ABSENT" {
		return ActionAbsent, nil
	}
	for i, n := range s.names {
		if n == name {
			return Action(i), nil
		}
	}
	return ActionAbsent, fmt.Errorf("%w: %q", ErrUnknownAction, name)
}

func (s ActionSet) All() []Action {
	all := make([]Action, len(s.names))
	for i := range s.names {
		all[i] = Action(i)
	}
	return all
}

// Spec describes the action and observation spaces of an environment.
type Spec struct {
	Name    string
	Actions ActionSet
	// Radix holds the cardinalities of Observation.Fields.
	Radix radix.Radix
}
