package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"gopkg.in/yaml.v3"
)

type ExperimentConfig struct {
	Name        string       `yaml:"name" json:"name"`
	Episodes    int          `yaml:"episodes" json:"episodes"`
	Seed        *int64       `yaml:"seed" json:"seed"`
	Environment EnvConfig    `yaml:"environment" json:"environment"`
	Agents      AgentsConfig `yaml:"agents" json:"agents"`
	Output      OutputConfig `yaml:"output" json:"output"`
	Logging     LogConfig    `yaml:"logging" json:"logging"`
}

type LogConfig struct {
	// Render includes a text snapshot of the world in every step event.
	Render bool `yaml:"render" json:"render"`
	// Every logs a progress line every N episodes (0 disables).
	Every int `yaml:"every" json:"every"`
}

type OutputConfig struct {
	ResultsDB      string `yaml:"results_db" json:"results_db"`
	TrajectoryPath string `yaml:"trajectory_path" json:"trajectory_path"`
	StreamAddr     string `yaml:"stream_addr" json:"stream_addr"`
}

type AgentsConfig struct {
	Primary  AgentConfig `yaml:"primary" json:"primary"`
	Traveler AgentConfig `yaml:"traveler" json:"traveler"`
	// Shared makes one policy act for both roles, like the original
	// single-agent training scripts.
	Shared bool `yaml:"shared" json:"shared"`
	// ReplayPast makes the primary's past self replay its ORIGINAL actions in
	// the BRANCHED timeline while its observations are unchanged.
	ReplayPast bool `yaml:"replay_past" json:"replay_past"`
}

type AgentConfig struct {
	Kind          string   `yaml:"kind" json:"kind"`
	LearningRate  float64  `yaml:"learning_rate" json:"learning_rate"`
	Epsilon       float64  `yaml:"epsilon" json:"epsilon"`
	Deterministic bool     `yaml:"deterministic" json:"deterministic"`
	Script        []string `yaml:"script" json:"script"`
	Provider      string   `yaml:"provider" json:"provider"`
	Model         string   `yaml:"model" json:"model"`
	MemorySize    int      `yaml:"memory_size" json:"memory_size"`
}

type EnvConfig struct {
	Type string     `yaml:"type" json:"type"`
	Door DoorConfig `yaml:"door" json:"door"`
	Maze MazeConfig `yaml:"maze" json:"maze"`
}

type DoorConfig struct {
	Reward         float64 `yaml:"reward" json:"reward"`
	TimeCost       float64 `yaml:"time_cost" json:"time_cost"`
	IllegalPenalty float64 `yaml:"illegal_penalty" json:"illegal_penalty"`
	MaxEpisodeLen  int     `yaml:"max_episode_len" json:"max_episode_len"`
}

type MazeConfig struct {
	GridSize         int     `yaml:"grid_size" json:"grid_size"`
	GoalReward       float64 `yaml:"goal_reward" json:"goal_reward"`
	TrapPenalty      float64 `yaml:"trap_penalty" json:"trap_penalty"`
	ProximityPenalty float64 `yaml:"proximity_penalty" json:"proximity_penalty"`
	IllegalPenalty   float64 `yaml:"illegal_penalty" json:"illegal_penalty"`
	TimeCost         float64 `yaml:"time_cost" json:"time_cost"`
	MaxEpisodeLen    int     `yaml:"max_episode_len" json:"max_episode_len"`
	// TrapMemory hides raw trap cells and reports which side the trap is on
	// once the observing role has been next to it.
	TrapMemory bool `yaml:"trap_memory" json:"trap_memory"`
	// Neighborhood is 4 or 8.
	Neighborhood int `yaml:"neighborhood" json:"neighborhood"`
}

func DefaultDoorConfig() DoorConfig {
	return DoorConfig{
		Reward:         100,
		TimeCost:       0,
		IllegalPenalty: -1e6,
		MaxEpisodeLen:  3,
	}
}

func DefaultMazeConfig() MazeConfig {
	return MazeConfig{
		GridSize:         5,
		GoalReward:       199,
		TrapPenalty:      -200,
		ProximityPenalty: -200,
		IllegalPenalty:   -200,
		TimeCost:         -1,
		MaxEpisodeLen:    50,
		TrapMemory:       true,
		Neighborhood:     4,
	}
}

func DefaultAgentConfig() AgentConfig {
	return AgentConfig{
		Kind:         "q",
		LearningRate: 1e-2,
		Epsilon:      0.1,
		Provider:     "openai",
		Model:        "gpt-4o-mini",
		MemorySize:   20,
	}
}

// Default returns the configuration used when no file is given.
func Default() *ExperimentConfig {
	return &ExperimentConfig{
		Name:     "time_travel",
		Episodes: 1000,
		Environment: EnvConfig{
			Type: "door",
			Door: DefaultDoorConfig(),
			Maze: DefaultMazeConfig(),
		},
		Agents: AgentsConfig{
			Primary:    DefaultAgentConfig(),
			Traveler:   DefaultAgentConfig(),
			Shared:     true,
			ReplayPast: true,
		},
		Logging: LogConfig{
			Every: 100,
		},
	}
}

// LoadConfig reads a YAML experiment file on top of Default and validates it.
func LoadConfig(path string) (*ExperimentConfig, error) {
	cfg := Default()
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if err := yaml.Unmarshal(raw, cfg); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks the configuration against the experiment schema.
func (c *ExperimentConfig) Validate() error {
	raw, err := json.Marshal(c)
	if err != nil {
		return err
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var doc any
	if err := dec.Decode(&doc); err != nil {
		return err
	}
	if err := experimentSchema.Validate(doc); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

var experimentSchema = jsonschema.MustCompileString("experiment.schema.json", experimentSchemaJSON)
