package results

import (
	"context"
	"math"
	"path/filepath"
	"testing"
	"time"

	"github.com/boristopalov/timetravel/pkg/core"
	"github.com/boristopalov/timetravel/pkg/messaging"
)

func openStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "results", "runs.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestStore(t *testing.T) {
	ctx := context.Background()
	s := openStore(t)

	run := Run{
		ID:          "run-1",
		Name:        "door",
		Environment: "door",
		Episodes:    4,
		Seed:        42,
		Config:      `{"name":"door"}`,
		StartedAt:   time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
	}
	if err := s.RecordRun(ctx, run); err != nil {
		t.Fatalf("RecordRun: %v", err)
	}
	got, err := s.Run(ctx, "run-1")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if got.Seed != 42 || got.Config != run.Config || !got.StartedAt.Equal(run.StartedAt) {
		t.Errorf("Run = %+v", got)
	}

	eps := []Episode{
		{RunID: "run-1", Episode: 0, Return: 100, Steps: 5, Branched: true, Outcome: core.OutcomeDoorOpened},
		{RunID: "run-1", Episode: 1, Return: 0, Steps: 5, Branched: true, Outcome: core.OutcomeWrongDoor},
		{RunID: "run-1", Episode: 2, Return: -1e6, Steps: 1, Outcome: core.OutcomeIllegal},
		{RunID: "run-1", Episode: 3, Return: 100, Steps: 5, Branched: true, Outcome: core.OutcomeDoorOpened},
	}
	for _, e := range eps {
		if err := s.RecordEpisode(ctx, e); err != nil {
			t.Fatalf("RecordEpisode: %v", err)
		}
	}
	if err := s.RecordEpisode(ctx, eps[0]); err == nil {
		t.Error("expected an error for a duplicate episode")
	}

	back, err := s.Episodes(ctx, "run-1")
	if err != nil {
		t.Fatalf("Episodes: %v", err)
	}
	if len(back) != len(eps) {
		t.Fatalf("Episodes returned %d rows", len(back))
	}
	for i := range eps {
		if back[i] != eps[i] {
			t.Errorf("episode %d = %+v, want %+v", i, back[i], eps[i])
		}
	}

	sum, err := s.Summary(ctx, "run-1")
	if err != nil {
		t.Fatalf("Summary: %v", err)
	}
	mean := (100 + 0 - 1e6 + 100) / 4.0
	if sum.Episodes != 4 || math.Abs(sum.MeanReturn-mean) > 1e-6 {
		t.Errorf("Summary = %+v, want mean %v", sum, mean)
	}
	if sum.BranchRate != 0.75 || sum.SuccessRate != 0.5 {
		t.Errorf("rates = %v / %v, want 0.75 / 0.5", sum.BranchRate, sum.SuccessRate)
	}
	if sum.StdReturn <= 0 {
		t.Errorf("StdReturn = %v", sum.StdReturn)
	}

	empty, err := s.Summary(ctx, "missing")
	if err != nil || empty.Episodes != 0 {
		t.Errorf("Summary of an unknown run = %+v, %v", empty, err)
	}
}

func TestStoreRejectsUnknownRun(t *testing.T) {
	s := openStore(t)
	err := s.RecordEpisode(context.Background(), Episode{RunID: "nope", Outcome: core.OutcomeGoal})
	if err == nil {
		t.Error("expected a foreign key error")
	}
}

func TestTrajectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "traj", "run-1.jsonl.zst")
	w, err := NewTrajectoryWriter(path)
	if err != nil {
		t.Fatalf("NewTrajectoryWriter: %v", err)
	}

	steps := []messaging.StepEvent{
		{RunID: "run-1", Episode: 0, Step: 1, T: 1, Timeline: core.TimelineOriginal, Primary: "DO_NOTHING", Traveler: "ABSENT"},
		{RunID: "run-1", Episode: 0, Step: 2, T: 0, Timeline: core.TimelineBranched, Primary: "TIME_TRAVEL", Traveler: "ABSENT", Reward: -2, Outcome: core.OutcomeBranched},
		{RunID: "run-1", Episode: 0, Step: 3, T: 1, Timeline: core.TimelineBranched, Primary: "DO_NOTHING", Traveler: "LOCK_DOOR_1", Replayed: true},
	}
	for _, s := range steps {
		if err := w.Write(s); err != nil {
			t.Fatalf("Write: %v", err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := w.Write(steps[0]); err == nil {
		t.Error("Write after Close should fail")
	}

	got, err := ReadTrajectory(path)
	if err != nil {
		t.Fatalf("ReadTrajectory: %v", err)
	}
	if len(got) != len(steps) {
		t.Fatalf("read %d steps, want %d", len(got), len(steps))
	}
	for i := range steps {
		if got[i] != steps[i] {
			t.Errorf("step %d = %+v, want %+v", i, got[i], steps[i])
		}
	}
}
