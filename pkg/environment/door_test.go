package environment

import (
	"errors"
	"testing"

	"github.com/boristopalov/timetravel/pkg/config"
	"github.com/boristopalov/timetravel/pkg/core"
)

func seed(v int64) *int64 { return &v }

func original(s int64) core.ResetOptions {
	return core.ResetOptions{OriginalTimeline: true, Seed: seed(s)}
}

func mustStep(t *testing.T, env core.Environment, primary, traveler core.Action) core.StepResult {
	t.Helper()
	res, err := env.Step(core.JointAction{Primary: primary, Traveler: traveler})
	if err != nil {
		t.Fatalf("Step(%d, %d): %v", primary, traveler, err)
	}
	return res
}

func forceRewardDoor(e *DoorEnvironment, d int) {
	e.world.rewardDoor = d
	e.world.doors[d].reward = e.cfg.Reward
	e.world.doors[1-d].reward = 0
}

func TestDoorEpisode(t *testing.T) {
	env := NewDoorEnvironment(config.DefaultDoorConfig())
	obs, err := env.Reset(original(1))
	if err != nil {
		t.Fatalf("Reset: %v", err)
	}
	if obs.Traveler != nil {
		t.Fatalf("traveler observation should be absent in ORIGINAL, got %v", obs.Traveler)
	}
	forceRewardDoor(env, 0)

	res := mustStep(t, env, DoorDoNothing, core.ActionAbsent)
	if res.Reward != 0 || res.Done() || res.Info.T != 1 {
		t.Fatalf("unexpected first step: %+v", res)
	}

	res = mustStep(t, env, DoorOpen0, core.ActionAbsent)
	if res.Reward != 100 {
		t.Errorf("opening the reward door paid %v, want 100", res.Reward)
	}
	if res.Terminated {
		t.Error("opening a door in ORIGINAL must not terminate")
	}

	res = mustStep(t, env, DoorTimeTravel, core.ActionAbsent)
	if res.Reward != -100 {
		t.Errorf("travel step reward = %v, want -100 (undo of the door reward)", res.Reward)
	}
	if res.Info.Timeline != core.TimelineBranched || res.Info.T != 0 {
		t.Errorf("after travel: timeline=%s t=%d, want BRANCHED t=0", res.Info.Timeline, res.Info.T)
	}
	if res.Observations.Traveler == nil {
		t.Fatal("traveler observation missing after branch")
	}
	if got := res.Observations.Primary.(DoorObservation).Door0; got != DoorOpen {
		t.Errorf("door0 after branch = %s, want OPEN carried over", got)
	}
	if env.world.rewardDoor != 0 {
		t.Errorf("reward door changed on branch: %d", env.world.rewardDoor)
	}

	res = mustStep(t, env, DoorDoNothing, DoorLock1)
	if res.Done() {
		t.Fatalf("branch step 1 ended the episode: %+v", res)
	}
	if got := res.Observations.Traveler.(DoorObservation).Door1; got != DoorLocked {
		t.Errorf("door1 = %s, want LOCKED", got)
	}
	legal := env.LegalActions(core.RolePrimary)
	if isLegal(legal, DoorOpen1) || !isLegal(legal, DoorOpen0) {
		t.Errorf("legal actions after lock = %v, want open0 but not open1", legal)
	}

	res = mustStep(t, env, DoorOpen0, DoorDoNothing)
	if res.Reward != 100 || !res.Terminated || res.Truncated {
		t.Errorf("final step = %+v, want reward 100 and terminated", res)
	}
	if _, err := env.Step(core.JointAction{Primary: DoorDoNothing, Traveler: DoorDoNothing}); !errors.Is(err, core.ErrEpisodeOver) {
		t.Errorf("Step after termination: err = %v, want ErrEpisodeOver", err)
	}
}

func TestDoorIllegalActions(t *testing.T) {
	cases := []struct {
		name  string
		setup []core.JointAction
		step  core.JointAction
	}{
		{
			name: "traveler acts in ORIGINAL",
			step: core.JointAction{Primary: DoorDoNothing, Traveler: DoorLock0},
		},
		{
			name: "primary opens at t=0",
			step: core.JointAction{Primary: DoorOpen0, Traveler: core.ActionAbsent},
		},
		{
			name:  "primary travels at t=1",
			setup: []core.JointAction{{Primary: DoorDoNothing, Traveler: core.ActionAbsent}},
			step:  core.JointAction{Primary: DoorTimeTravel, Traveler: core.ActionAbsent},
		},
		{
			name: "absent traveler in BRANCHED",
			setup: []core.JointAction{
				{Primary: DoorDoNothing, Traveler: core.ActionAbsent},
				{Primary: DoorDoNothing, Traveler: core.ActionAbsent},
				{Primary: DoorTimeTravel, Traveler: core.ActionAbsent},
			},
			step: core.JointAction{Primary: DoorDoNothing, Traveler: core.ActionAbsent},
		},
		{
			name: "open a locked door",
			setup: []core.JointAction{
				{Primary: DoorDoNothing, Traveler: core.ActionAbsent},
				{Primary: DoorDoNothing, Traveler: core.ActionAbsent},
				{Primary: DoorTimeTravel, Traveler: core.ActionAbsent},
				{Primary: DoorDoNothing, Traveler: DoorLock0},
			},
			step: core.JointAction{Primary: DoorOpen0, Traveler: DoorDoNothing},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := config.DefaultDoorConfig()
			env := NewDoorEnvironment(cfg)
			if _, err := env.Reset(original(3)); err != nil {
				t.Fatal(err)
			}
			for _, a := range tc.setup {
				mustStep(t, env, a.Primary, a.Traveler)
			}
			before := env.world.t
			res := mustStep(t, env, tc.step.Primary, tc.step.Traveler)
			if !res.Truncated || res.Terminated {
				t.Errorf("got terminated=%v truncated=%v, want truncated only", res.Terminated, res.Truncated)
			}
			if res.Reward != cfg.IllegalPenalty {
				t.Errorf("reward = %v, want %v", res.Reward, cfg.IllegalPenalty)
			}
			if res.Info.Outcome != core.OutcomeIllegal {
				t.Errorf("outcome = %s, want illegal", res.Info.Outcome)
			}
			if env.world.t != before {
				t.Errorf("t advanced from %d to %d on an illegal action", before, env.world.t)
			}
		})
	}
}

func TestDoorTruncation(t *testing.T) {
	cfg := config.DefaultDoorConfig()
	env := NewDoorEnvironment(cfg)
	if _, err := env.Reset(original(5)); err != nil {
		t.Fatal(err)
	}
	var res core.StepResult
	for i := 0; i < cfg.MaxEpisodeLen; i++ {
		if res.Done() {
			t.Fatalf("episode ended early at step %d", i)
		}
		res = mustStep(t, env, DoorDoNothing, core.ActionAbsent)
	}
	if !res.Truncated || res.Terminated {
		t.Errorf("after %d no-ops: terminated=%v truncated=%v", cfg.MaxEpisodeLen, res.Terminated, res.Truncated)
	}
	if res.Reward != 0 {
		t.Errorf("truncation added reward %v", res.Reward)
	}
}

func TestDoorRewardUndo(t *testing.T) {
	cfg := config.DefaultDoorConfig()
	cfg.TimeCost = -1
	env := NewDoorEnvironment(cfg)
	if _, err := env.Reset(original(11)); err != nil {
		t.Fatal(err)
	}
	total := 0.0
	total += mustStep(t, env, DoorDoNothing, core.ActionAbsent).Reward
	total += mustStep(t, env, DoorDoNothing, core.ActionAbsent).Reward
	res := mustStep(t, env, DoorTimeTravel, core.ActionAbsent)
	if res.Reward != 2 {
		t.Errorf("travel reward = %v, want 2 (-1 for the step, +3 undone)", res.Reward)
	}
	total += res.Reward
	if total != 0 {
		t.Errorf("ORIGINAL timeline nets %v, want 0", total)
	}
}

func TestDoorContractErrors(t *testing.T) {
	env := NewDoorEnvironment(config.DefaultDoorConfig())
	if _, err := env.Step(core.JointAction{Primary: DoorDoNothing, Traveler: core.ActionAbsent}); !errors.Is(err, core.ErrNotReset) {
		t.Errorf("Step before Reset: err = %v, want ErrNotReset", err)
	}
	if _, err := env.Reset(core.ResetOptions{OriginalTimeline: false}); !errors.Is(err, core.ErrNotReset) {
		t.Errorf("branched Reset first: err = %v, want ErrNotReset", err)
	}
	if _, err := env.Reset(original(1)); err != nil {
		t.Fatal(err)
	}
	if _, err := env.Step(core.JointAction{Primary: 42, Traveler: core.ActionAbsent}); !errors.Is(err, core.ErrUnknownAction) {
		t.Errorf("unknown action: err = %v, want ErrUnknownAction", err)
	}
}

func TestDoorGroundTruth(t *testing.T) {
	seen := map[int]bool{}
	for s := int64(0); s < 20; s++ {
		env := NewDoorEnvironment(config.DefaultDoorConfig())
		if _, err := env.Reset(original(s)); err != nil {
			t.Fatal(err)
		}
		drawn := env.world.rewardDoor
		seen[drawn] = true

		again := NewDoorEnvironment(config.DefaultDoorConfig())
		if _, err := again.Reset(original(s)); err != nil {
			t.Fatal(err)
		}
		if again.world.rewardDoor != drawn {
			t.Errorf("seed %d: reward door not reproducible", s)
		}

		obs, err := env.Reset(core.ResetOptions{OriginalTimeline: false})
		if err != nil {
			t.Fatal(err)
		}
		if env.world.rewardDoor != drawn {
			t.Errorf("seed %d: branched reset redrew the reward door", s)
		}
		if obs.Traveler == nil || env.Timeline() != core.TimelineBranched {
			t.Errorf("seed %d: branched reset did not enter BRANCHED", s)
		}
	}
	if len(seen) != 2 {
		t.Errorf("reward door never varies across seeds: %v", seen)
	}
}

func TestDoorObservationEncoding(t *testing.T) {
	seen := map[int]DoorObservation{}
	for _, d0 := range []DoorState{DoorLocked, DoorClosed, DoorOpen} {
		for _, d1 := range []DoorState{DoorLocked, DoorClosed, DoorOpen} {
			for _, role := range []core.Role{core.RolePrimary, core.RoleTraveler} {
				o := NewDoorObservation(d0, d1, role)
				decoded, err := DecodeDoorObservation(o.Fields())
				if err != nil {
					t.Fatalf("decode %v: %v", o, err)
				}
				if decoded != o {
					t.Errorf("decode(encode(%v)) = %v", o, decoded)
				}
				fromIdx, err := DoorObservationFromIndex(o.Index())
				if err != nil || fromIdx != o {
					t.Errorf("FromIndex(Index(%v)) = %v, %v", o, fromIdx, err)
				}
				if prev, ok := seen[o.Index()]; ok {
					t.Errorf("%v and %v share index %d", prev, o, o.Index())
				}
				seen[o.Index()] = o
			}
		}
	}
	if len(seen) != doorRadix.Size() {
		t.Errorf("covered %d indices, want %d", len(seen), doorRadix.Size())
	}
}

func TestDoorWrongDoor(t *testing.T) {
	env := NewDoorEnvironment(config.DefaultDoorConfig())
	if _, err := env.Reset(original(2)); err != nil {
		t.Fatal(err)
	}
	forceRewardDoor(env, 0)

	mustStep(t, env, DoorDoNothing, core.ActionAbsent)
	mustStep(t, env, DoorDoNothing, core.ActionAbsent)
	mustStep(t, env, DoorTimeTravel, core.ActionAbsent)
	mustStep(t, env, DoorDoNothing, DoorLock0)
	res := mustStep(t, env, DoorOpen1, DoorDoNothing)

	if !res.Terminated || res.Reward != 0 {
		t.Errorf("opening the empty door = %+v, want terminated with reward 0", res)
	}
	if res.Info.Outcome != core.OutcomeWrongDoor {
		t.Errorf("outcome = %s, want wrong_door", res.Info.Outcome)
	}
	if res.Info.Outcome.Success() {
		t.Error("opening the empty door counted as a success")
	}
}
