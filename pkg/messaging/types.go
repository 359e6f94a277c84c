package messaging

import (
	"time"

	"github.com/boristopalov/timetravel/pkg/core"
)

// Topics published by the experiment runner.
const (
	TopicStep    = "step"
	TopicEpisode = "episode"
	TopicRun     = "run"
)

// Message is one event routed by the broker.
type Message struct {
	From      string    // publisher id
	To        []string  // subscriber ids (empty means broadcast)
	Topic     string    // one of the Topic constants
	Content   any       // StepEvent, EpisodeEvent or RunEvent
	Timestamp time.Time // when the event was published
}

// StepEvent describes one environment step.
type StepEvent struct {
	RunID      string        `json:"run_id"`
	Episode    int           `json:"episode"`
	Step       int           `json:"step"`
	T          int           `json:"t"`
	Timeline   core.Timeline `json:"timeline"`
	Primary    string        `json:"primary"`
	Traveler   string        `json:"traveler"`
	Reward     float64       `json:"reward"`
	Terminated bool          `json:"terminated"`
	Truncated  bool          `json:"truncated"`
	Outcome    core.Outcome  `json:"outcome"`
	Replayed   bool          `json:"replayed"`
	Render     string        `json:"render,omitempty"`
}

// EpisodeEvent summarises a finished episode.
type EpisodeEvent struct {
	RunID    string       `json:"run_id"`
	Episode  int          `json:"episode"`
	Return   float64      `json:"return"`
	Steps    int          `json:"steps"`
	Branched bool         `json:"branched"`
	Outcome  core.Outcome `json:"outcome"`
}

// RunEvent marks the start or end of a run.
type RunEvent struct {
	RunID       string `json:"run_id"`
	Environment string `json:"environment"`
	Episodes    int    `json:"episodes"`
	Finished    bool   `json:"finished"`
}

// Broker routes messages between publishers and subscribers.
type Broker interface {
	// Publish sends a message to specified recipients
	Publish(msg Message) error
	// Subscribe registers a channel to receive messages
	Subscribe(id string, ch chan<- Message) error
	// Unsubscribe removes a subscription
	Unsubscribe(id string) error
}
