package experiment

import (
	"context"
	"slices"

	"github.com/boristopalov/timetravel/pkg/agent"
	"github.com/boristopalov/timetravel/pkg/core"
	"github.com/boristopalov/timetravel/pkg/messaging"
)

// EpisodeStats summarises one episode.
type EpisodeStats struct {
	Episode  int
	Return   float64
	Steps    int
	Branched bool
	Outcome  core.Outcome
}

// pastStep is what the primary saw and did at one t of the ORIGINAL
// timeline.
type pastStep struct {
	obsIdx int
	action core.Action
}

// RunEpisode plays one episode. In the ORIGINAL timeline only the primary
// acts. In the BRANCHED timeline the traveler acts and the primary's past
// self repeats its ORIGINAL action for as long as it observes exactly what it
// observed then; once the observations diverge it acts greedily.
func (e *Experiment) RunEpisode(ctx context.Context, ep int) (EpisodeStats, error) {
	stats := EpisodeStats{Episode: ep}

	opts := core.ResetOptions{OriginalTimeline: true}
	if e.seed != nil {
		s := *e.seed + int64(ep)
		opts.Seed = &s
	}
	obs, err := e.env.Reset(opts)
	if err != nil {
		return stats, err
	}
	for _, p := range e.policies() {
		if r, ok := p.(agent.Resetter); ok {
			r.Reset()
		}
	}

	actions := e.env.Spec().Actions
	rollout := make(map[int]pastStep)
	t := 0
	for {
		if err := ctx.Err(); err != nil {
			return stats, err
		}

		timeline := e.env.Timeline()
		pObs, tObs := obs.Primary, obs.Traveler
		pLegal := e.env.LegalActions(core.RolePrimary)
		tLegal := e.env.LegalActions(core.RoleTraveler)

		joint := core.JointAction{Primary: core.ActionAbsent, Traveler: core.ActionAbsent}
		replayed := false
		if timeline == core.TimelineOriginal {
			if joint.Primary, err = e.primary.Act(ctx, pObs, pLegal); err != nil {
				return stats, err
			}
		} else {
			if joint.Primary, replayed, err = e.pastSelf(ctx, rollout, t, pObs, pLegal); err != nil {
				return stats, err
			}
			if joint.Traveler, err = e.traveler.Act(ctx, tObs, tLegal); err != nil {
				return stats, err
			}
		}

		res, err := e.env.Step(joint)
		if err != nil {
			return stats, err
		}
		stats.Return += res.Reward
		stats.Steps++
		stats.Outcome = res.Info.Outcome
		if res.Info.Timeline == core.TimelineBranched {
			stats.Branched = true
		}

		if timeline == core.TimelineOriginal {
			rollout[t] = pastStep{obsIdx: pObs.Index(), action: joint.Primary}
			// after travelling the primary continues as the traveler
			next := res.Observations.Primary
			if res.Info.Timeline == core.TimelineBranched {
				next = res.Observations.Traveler
			}
			e.learn(e.primary, timeline, t, pObs, joint.Primary, next, res)
		} else {
			e.learn(e.traveler, timeline, t, tObs, joint.Traveler, res.Observations.Traveler, res)
		}

		step := messaging.StepEvent{
			RunID:      e.runID,
			Episode:    ep,
			Step:       stats.Steps,
			T:          res.Info.T,
			Timeline:   res.Info.Timeline,
			Primary:    actions.Name(joint.Primary),
			Traveler:   actions.Name(joint.Traveler),
			Reward:     res.Reward,
			Terminated: res.Terminated,
			Truncated:  res.Truncated,
			Outcome:    res.Info.Outcome,
			Replayed:   replayed,
		}
		if e.render {
			step.Render = e.env.Render()
		}
		e.recordStep(step)

		if res.Done() {
			return stats, nil
		}
		obs = res.Observations
		t = res.Info.T
	}
}

func (e *Experiment) pastSelf(ctx context.Context, rollout map[int]pastStep, t int, obs core.Observation, legal []core.Action) (core.Action, bool, error) {
	if past, ok := rollout[t]; ok && e.replayPast && obs != nil &&
		obs.Index() == past.obsIdx && slices.Contains(legal, past.action) {
		return past.action, true, nil
	}
	if g, ok := e.primary.(agent.Greedy); ok && len(legal) > 0 {
		return g.ActGreedy(obs, legal), false, nil
	}
	a, err := e.primary.Act(ctx, obs, legal)
	return a, false, err
}

func (e *Experiment) learn(p agent.Policy, timeline core.Timeline, t int, obs core.Observation, action core.Action, next core.Observation, res core.StepResult) {
	l, ok := p.(agent.Learner)
	if !ok {
		return
	}
	if res.Done() {
		next = nil
	}
	l.Update(agent.Transition{
		Timeline: timeline,
		T:        t,
		Obs:      obs,
		Action:   action,
		Next:     next,
		Reward:   res.Reward,
	})
}

func (e *Experiment) recordStep(step messaging.StepEvent) {
	if e.trajectory != nil {
		if err := e.trajectory.Write(step); err != nil {
			e.fail(err)
		}
	}
	e.publish(messaging.TopicStep, step)
}

func (e *Experiment) policies() []agent.Policy {
	if e.primary == e.traveler {
		return []agent.Policy{e.primary}
	}
	return []agent.Policy{e.primary, e.traveler}
}
