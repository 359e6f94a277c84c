package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "experiment.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("Failed to write config: %v", err)
	}
	return path
}

func TestLoadConfig(t *testing.T) {
	t.Run("overrides defaults", func(t *testing.T) {
		path := writeConfig(t, `
name: maze_run
episodes: 25
seed: 7
environment:
  type: maze
  maze:
    grid_size: 6
    neighborhood: 8
agents:
  primary:
    kind: random
  traveler:
    kind: scripted
    script: [LEFT, WALL_UP]
  shared: false
`)
		cfg, err := LoadConfig(path)
		if err != nil {
			t.Fatalf("LoadConfig: %v", err)
		}
		if cfg.Name != "maze_run" || cfg.Episodes != 25 {
			t.Errorf("unexpected name/episodes: %+v", cfg)
		}
		if cfg.Seed == nil || *cfg.Seed != 7 {
			t.Errorf("seed = %v, want 7", cfg.Seed)
		}
		if cfg.Environment.Maze.GridSize != 6 || cfg.Environment.Maze.Neighborhood != 8 {
			t.Errorf("maze config not applied: %+v", cfg.Environment.Maze)
		}
		// untouched fields keep their defaults
		if cfg.Environment.Maze.GoalReward != 199 {
			t.Errorf("GoalReward = %v, want default 199", cfg.Environment.Maze.GoalReward)
		}
		if cfg.Agents.Traveler.Kind != "scripted" || len(cfg.Agents.Traveler.Script) != 2 {
			t.Errorf("traveler config not applied: %+v", cfg.Agents.Traveler)
		}
		if cfg.Agents.Shared {
			t.Error("shared should be false")
		}
	})

	t.Run("rejects schema violations", func(t *testing.T) {
		cases := map[string]string{
			"unknown env": `
environment:
  type: chess
`,
			"bad neighborhood": `
environment:
  type: maze
  maze:
    neighborhood: 6
`,
			"zero episodes": `
episodes: 0
`,
			"unknown agent kind": `
agents:
  primary:
    kind: sarsa
`,
		}
		for name, body := range cases {
			t.Run(name, func(t *testing.T) {
				if _, err := LoadConfig(writeConfig(t, body)); err == nil {
					t.Error("expected validation error, got nil")
				}
			})
		}
	})

	t.Run("missing file", func(t *testing.T) {
		if _, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
			t.Error("expected error for missing file")
		}
	})
}

func TestDefaultIsValid(t *testing.T) {
	if err := Default().Validate(); err != nil {
		t.Fatalf("default config is invalid: %v", err)
	}
}
