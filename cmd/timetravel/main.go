package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"os/signal"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/boristopalov/timetravel/pkg/agent"
	"github.com/boristopalov/timetravel/pkg/config"
	"github.com/boristopalov/timetravel/pkg/environment"
	"github.com/boristopalov/timetravel/pkg/experiment"
	"github.com/boristopalov/timetravel/pkg/messaging"
	"github.com/boristopalov/timetravel/pkg/results"
	"github.com/boristopalov/timetravel/pkg/stream"
)

var version = "dev"

func main() {
	rootCmd := &cobra.Command{
		Use:   "timetravel",
		Short: "timetravel runs two-timeline environments where an agent can go back and change its own past.",
	}

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Run an experiment",
		RunE:  runExperiment,
	}
	runCmd.Flags().StringP("config", "c", "", "experiment YAML file")
	runCmd.Flags().String("env", "", "environment variant (door or maze)")
	runCmd.Flags().Int("episodes", 0, "number of episodes")
	runCmd.Flags().Int64("seed", 0, "base seed; episode i uses seed+i")
	runCmd.Flags().String("db", "", "sqlite results database")
	runCmd.Flags().String("trajectories", "", "zstd compressed JSONL trajectory file")
	runCmd.Flags().Bool("render", false, "attach a world snapshot to every step event")
	runCmd.Flags().String("stream-addr", "", "serve step events over websocket on this address")
	runCmd.Flags().Int("log-every", -1, "log progress every N episodes")

	playCmd := &cobra.Command{
		Use:   "play",
		Short: "Play an environment interactively from the terminal",
		RunE:  runPlay,
	}
	playCmd.Flags().String("env", "door", "environment variant (door or maze)")
	playCmd.Flags().Int64("seed", 0, "seed for the first episode")
	playCmd.Flags().StringP("config", "c", "", "experiment YAML file for environment settings")

	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), version)
		},
	}

	for _, envFile := range []string{
		".env",
		"../../.env",
		"../../../.env",
	} {
		if err := godotenv.Load(envFile); err == nil {
			break
		}
	}

	rootCmd.AddCommand(runCmd, playCmd, versionCmd)
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// loadConfig reads the config file if given and applies the flags that were
// set explicitly.
func loadConfig(cmd *cobra.Command) (*config.ExperimentConfig, error) {
	cfg := config.Default()
	if path, _ := cmd.Flags().GetString("config"); path != "" {
		loaded, err := config.LoadConfig(path)
		if err != nil {
			return nil, fmt.Errorf("failed to load config: %v", err)
		}
		cfg = loaded
	}

	flags := cmd.Flags()
	if flags.Changed("env") {
		cfg.Environment.Type, _ = flags.GetString("env")
	}
	if flags.Changed("episodes") {
		cfg.Episodes, _ = flags.GetInt("episodes")
	}
	if flags.Changed("seed") {
		seed, _ := flags.GetInt64("seed")
		cfg.Seed = &seed
	}
	if flags.Changed("db") {
		cfg.Output.ResultsDB, _ = flags.GetString("db")
	}
	if flags.Changed("trajectories") {
		cfg.Output.TrajectoryPath, _ = flags.GetString("trajectories")
	}
	if flags.Changed("render") {
		cfg.Logging.Render, _ = flags.GetBool("render")
	}
	if flags.Changed("stream-addr") {
		cfg.Output.StreamAddr, _ = flags.GetString("stream-addr")
	}
	if flags.Changed("log-every") {
		cfg.Logging.Every, _ = flags.GetInt("log-every")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func runExperiment(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt)
	go func() {
		<-sigChan
		cancel()
	}()

	exp, cleanup, err := buildExperiment(ctx, cfg)
	if err != nil {
		return err
	}
	defer cleanup()

	summary, err := exp.Run(ctx)
	if err != nil {
		return fmt.Errorf("experiment failed: %v", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "run %s: %d episodes, mean return %.2f, branch rate %.1f%%, success rate %.1f%%\n",
		exp.RunID(), summary.Episodes, summary.MeanReturn, summary.BranchRate*100, summary.SuccessRate*100)
	return nil
}

// buildExperiment wires the environment, agents and outputs described by cfg.
// The returned cleanup flushes and closes the outputs.
func buildExperiment(ctx context.Context, cfg *config.ExperimentConfig) (*experiment.Experiment, func(), error) {
	env, err := environment.New(cfg.Environment)
	if err != nil {
		return nil, nil, err
	}
	spec := env.Spec()

	seed := time.Now().UnixNano()
	if cfg.Seed != nil {
		seed = *cfg.Seed
	}

	primary, err := agent.FromConfig(ctx, cfg.Agents.Primary, spec, seed, agent.WithAgentId("primary"))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create primary agent: %v", err)
	}
	traveler := primary
	if !cfg.Agents.Shared {
		traveler, err = agent.FromConfig(ctx, cfg.Agents.Traveler, spec, seed+1, agent.WithAgentId("traveler"))
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create traveler agent: %v", err)
		}
	}
	log.Printf("Created %s and %s for %s", primary.GetID(), traveler.GetID(), spec.Name)

	raw, err := json.Marshal(cfg)
	if err != nil {
		return nil, nil, err
	}
	opts := []experiment.Option{
		experiment.WithName(cfg.Name),
		experiment.WithEpisodes(cfg.Episodes),
		experiment.WithReplayPast(cfg.Agents.ReplayPast),
		experiment.WithRender(cfg.Logging.Render),
		experiment.WithLogEvery(cfg.Logging.Every),
		experiment.WithConfigJSON(string(raw)),
	}
	if cfg.Seed != nil {
		opts = append(opts, experiment.WithSeed(*cfg.Seed))
	}

	var closers []func() error
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			if err := closers[i](); err != nil {
				log.Printf("Warning: %v", err)
			}
		}
	}

	if cfg.Output.ResultsDB != "" {
		store, err := results.Open(cfg.Output.ResultsDB)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open results db: %v", err)
		}
		closers = append(closers, store.Close)
		opts = append(opts, experiment.WithStore(store))
	}
	if cfg.Output.TrajectoryPath != "" {
		traj, err := results.NewTrajectoryWriter(cfg.Output.TrajectoryPath)
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("failed to open trajectory file: %v", err)
		}
		closers = append(closers, traj.Close)
		opts = append(opts, experiment.WithTrajectory(traj))
	}
	if cfg.Output.StreamAddr != "" {
		broker := messaging.NewBroker()
		srv := stream.NewServer(broker)
		go func() {
			if err := srv.ListenAndServe(ctx, cfg.Output.StreamAddr); err != nil {
				log.Printf("Warning: stream server stopped: %v", err)
			}
		}()
		closers = append(closers, func() error {
			broker.Reset()
			return nil
		})
		opts = append(opts, experiment.WithBroker(broker))
	}

	return experiment.NewExperiment(env, primary, traveler, opts...), cleanup, nil
}
