package core

import (
	"errors"
)

// Environment is the contract between a time-travel environment and the
// agents, training loops and CLIs that drive it.
type Environment interface {
	// Spec describes the action and observation spaces
	Spec() Spec
	// Reset starts a new episode, or a branched one when
	// opts.OriginalTimeline is false
	Reset(opts ResetOptions) (ObservationPair, error)
	// Step resolves one joint action
	Step(action JointAction) (StepResult, error)
	// LegalActions returns the actions role may take in the current state
	LegalActions(role Role) []Action
	// Timeline returns the active timeline
	Timeline() Timeline
	// Render returns a textual snapshot of the world
	Render() string
}

// Errors returned when a caller breaks the Environment contract. Illegal
// actions are not errors; they truncate the episode instead.
var (
	ErrNotReset      = errors.New("environment has not been reset")
	ErrEpisodeOver   = errors.New("episode is over, call Reset")
	ErrUnknownAction = errors.New("unknown action")
)
