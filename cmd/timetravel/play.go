package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/boristopalov/timetravel/pkg/core"
	"github.com/boristopalov/timetravel/pkg/environment"
)

func runPlay(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	env, err := environment.New(cfg.Environment)
	if err != nil {
		return err
	}
	seed, _ := cmd.Flags().GetInt64("seed")
	return play(env, seed, cmd.InOrStdin(), cmd.OutOrStdout())
}

// play reads joint actions from in, one line per step: the primary's action,
// then the traveler's once it exists. "reset" starts a new episode and "quit"
// or EOF ends the session.
func play(env core.Environment, seed int64, in io.Reader, out io.Writer) error {
	actions := env.Spec().Actions
	reset := func() error {
		s := seed
		seed++
		_, err := env.Reset(core.ResetOptions{OriginalTimeline: true, Seed: &s})
		return err
	}
	if err := reset(); err != nil {
		return err
	}

	total := 0.0
	prompt := func() {
		fmt.Fprint(out, env.Render())
		fmt.Fprintf(out, "primary: %s\n", names(actions, env.LegalActions(core.RolePrimary)))
		if env.Timeline() == core.TimelineBranched {
			fmt.Fprintf(out, "traveler: %s\n", names(actions, env.LegalActions(core.RoleTraveler)))
		}
		fmt.Fprint(out, "> ")
	}
	prompt()

	sc := bufio.NewScanner(in)
	for sc.Scan() {
		fields := strings.Fields(sc.Text())
		switch {
		case len(fields) == 0:
			prompt()
			continue
		case fields[0] == "quit" || fields[0] == "exit":
			return nil
		case fields[0] == "reset":
			if err := reset(); err != nil {
				return err
			}
			total = 0
			prompt()
			continue
		}

		joint, err := parseJoint(actions, env.Timeline(), fields)
		if err != nil {
			fmt.Fprintf(out, "%v\n> ", err)
			continue
		}
		res, err := env.Step(joint)
		if errors.Is(err, core.ErrEpisodeOver) {
			fmt.Fprint(out, "episode is over, type reset or quit\n> ")
			continue
		}
		if err != nil {
			return err
		}
		total += res.Reward
		fmt.Fprintf(out, "reward %g (total %g), outcome %s\n", res.Reward, total, res.Info.Outcome)
		if res.Done() {
			fmt.Fprint(out, env.Render())
			fmt.Fprintf(out, "episode over (terminated=%v truncated=%v), type reset or quit\n> ", res.Terminated, res.Truncated)
			continue
		}
		prompt()
	}
	return sc.Err()
}

func parseJoint(actions core.ActionSet, timeline core.Timeline, fields []string) (core.JointAction, error) {
	joint := core.JointAction{Primary: core.ActionAbsent, Traveler: core.ActionAbsent}
	var err error
	if joint.Primary, err = actions.Parse(fields[0]); err != nil {
		return joint, err
	}
	if timeline == core.TimelineBranched {
		if len(fields) < 2 {
			return joint, fmt.Errorf("the traveler needs an action too")
		}
		if joint.Traveler, err = actions.Parse(fields[1]); err != nil {
			return joint, err
		}
	}
	return joint, nil
}

func names(actions core.ActionSet, legal []core.Action) string {
	out := make([]string, len(legal))
	for i, a := range legal {
		out[i] = actions.Name(a)
	}
	return strings.Join(out, " ")
}
