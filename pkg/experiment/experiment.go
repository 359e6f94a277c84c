package experiment

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/boristopalov/timetravel/pkg/agent"
	"github.com/boristopalov/timetravel/pkg/core"
	"github.com/boristopalov/timetravel/pkg/messaging"
	"github.com/boristopalov/timetravel/pkg/results"
	"github.com/google/uuid"
)

// Status is a snapshot of a running experiment.
type Status struct {
	Running   bool
	Episode   int
	StartTime time.Time
	EndTime   time.Time
	Errors    []error
}

// Experiment runs episodes of one environment with a primary and a traveler
// policy. Both may be the same policy.
type Experiment struct {
	runID      string
	name       string
	env        core.Environment
	primary    agent.Policy
	traveler   agent.Policy
	episodes   int
	seed       *int64
	replayPast bool
	render     bool
	logEvery   int
	configJSON string

	broker     messaging.Broker
	store      *results.Store
	trajectory *results.TrajectoryWriter

	mu     sync.RWMutex
	status Status
	stats  []EpisodeStats
}

type Option func(*Experiment)

func WithRunID(id string) Option {
	return func(e *Experiment) {
		e.runID = id
	}
}

func WithName(name string) Option {
	return func(e *Experiment) {
		e.name = name
	}
}

func WithEpisodes(n int) Option {
	return func(e *Experiment) {
		e.episodes = n
	}
}

// WithSeed makes the run reproducible: episode i resets with seed+i.
func WithSeed(seed int64) Option {
	return func(e *Experiment) {
		e.seed = &seed
	}
}

func WithReplayPast(replay bool) Option {
	return func(e *Experiment) {
		e.replayPast = replay
	}
}

// WithRender attaches a text snapshot of the world to every step event.
func WithRender(render bool) Option {
	return func(e *Experiment) {
		e.render = render
	}
}

func WithLogEvery(n int) Option {
	return func(e *Experiment) {
		e.logEvery = n
	}
}

// WithConfigJSON stores the encoded configuration alongside the run.
func WithConfigJSON(cfg string) Option {
	return func(e *Experiment) {
		e.configJSON = cfg
	}
}

func WithBroker(b messaging.Broker) Option {
	return func(e *Experiment) {
		e.broker = b
	}
}

func WithStore(s *results.Store) Option {
	return func(e *Experiment) {
		e.store = s
	}
}

func WithTrajectory(w *results.TrajectoryWriter) Option {
	return func(e *Experiment) {
		e.trajectory = w
	}
}

func NewExperiment(env core.Environment, primary, traveler agent.Policy, opts ...Option) *Experiment {
	e := &Experiment{
		runID:      "run-" + uuid.New().String(),
		name:       env.Spec().Name,
		env:        env,
		primary:    primary,
		traveler:   traveler,
		episodes:   1,
		replayPast: true,
		configJSON: "{}",
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *Experiment) RunID() string {
	return e.runID
}

func (e *Experiment) GetStatus() Status {
	e.mu.RLock()
	defer e.mu.RUnlock()
	s := e.status
	s.Errors = append([]error(nil), e.status.Errors...)
	return s
}

// Stats returns the statistics of every finished episode.
func (e *Experiment) Stats() []EpisodeStats {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return append([]EpisodeStats(nil), e.stats...)
}

// Run executes the configured number of episodes and returns their summary.
func (e *Experiment) Run(ctx context.Context) (results.Summary, error) {
	e.mu.Lock()
	e.status = Status{Running: true, StartTime: time.Now()}
	e.stats = e.stats[:0]
	e.mu.Unlock()

	defer func() {
		e.mu.Lock()
		e.status.Running = false
		e.status.EndTime = time.Now()
		e.mu.Unlock()
	}()

	if err := e.recordRun(ctx); err != nil {
		return results.Summary{}, err
	}
	e.publish(messaging.TopicRun, messaging.RunEvent{RunID: e.runID, Environment: e.env.Spec().Name, Episodes: e.episodes})

	log.Printf("Starting run %s: %d episodes of %s", e.runID, e.episodes, e.env.Spec().Name)
	for ep := 0; ep < e.episodes; ep++ {
		e.mu.Lock()
		e.status.Episode = ep
		e.mu.Unlock()

		stats, err := e.RunEpisode(ctx, ep)
		if err != nil {
			e.fail(err)
			return Summarize(e.Stats()), fmt.Errorf("failed to run episode %d: %w", ep, err)
		}
		e.mu.Lock()
		e.stats = append(e.stats, stats)
		e.mu.Unlock()

		if e.store != nil {
			if err := e.store.RecordEpisode(ctx, results.Episode{
				RunID:    e.runID,
				Episode:  ep,
				Return:   stats.Return,
				Steps:    stats.Steps,
				Branched: stats.Branched,
				Outcome:  stats.Outcome,
			}); err != nil {
				e.fail(err)
				log.Printf("Warning: %v", err)
			}
		}
		e.publish(messaging.TopicEpisode, messaging.EpisodeEvent{
			RunID:    e.runID,
			Episode:  ep,
			Return:   stats.Return,
			Steps:    stats.Steps,
			Branched: stats.Branched,
			Outcome:  stats.Outcome,
		})

		if e.logEvery > 0 && (ep+1)%e.logEvery == 0 {
			e.printProgress(ep + 1)
		}
	}

	summary := Summarize(e.Stats())
	printSummary(e.runID, summary)
	e.publish(messaging.TopicRun, messaging.RunEvent{RunID: e.runID, Environment: e.env.Spec().Name, Episodes: e.episodes, Finished: true})
	return summary, nil
}

func (e *Experiment) recordRun(ctx context.Context) error {
	if e.store == nil {
		return nil
	}
	var seed int64
	if e.seed != nil {
		seed = *e.seed
	}
	return e.store.RecordRun(ctx, results.Run{
		ID:          e.runID,
		Name:        e.name,
		Environment: e.env.Spec().Name,
		Episodes:    e.episodes,
		Seed:        seed,
		Config:      e.configJSON,
		StartedAt:   time.Now(),
	})
}

func (e *Experiment) fail(err error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.status.Errors = append(e.status.Errors, err)
}

func (e *Experiment) publish(topic string, content any) {
	if e.broker == nil {
		return
	}
	err := e.broker.Publish(messaging.Message{
		From:      e.runID,
		Topic:     topic,
		Content:   content,
		Timestamp: time.Now(),
	})
	if err != nil {
		log.Printf("Warning: failed to publish %s event: %v", topic, err)
	}
}
