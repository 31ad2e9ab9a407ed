// Package experiments wires the workflows behind the CLI: train,
// evaluate, sweep, watch and inspect. Configuration comes from a YAML
// config directory; the common knobs can be overridden by flags.
package experiments

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/zeu5/pursuit-rl/config"
	"github.com/zeu5/pursuit-rl/logging"
)

var (
	episodes  int
	horizon   int
	saveDir   string
	runs      int
	seed      uint64
	configDir string
	logPretty bool
)

func GetRootCommand() *cobra.Command {
	rootCommand := &cobra.Command{
		Use:   "pursuit-rl",
		Short: "Centralized tabular Q-learning over a predator-prey gridworld",
	}
	rootCommand.PersistentFlags().IntVarP(&episodes, "episodes", "e", 0, "Number of episodes to run (overrides config)")
	rootCommand.PersistentFlags().IntVar(&horizon, "horizon", 0, "Step budget of each episode (overrides config)")
	rootCommand.PersistentFlags().StringVarP(&saveDir, "save", "s", "results", "Save result data in the specified folder")
	rootCommand.PersistentFlags().IntVar(&runs, "runs", 1, "Number of training runs")
	rootCommand.PersistentFlags().Uint64Var(&seed, "seed", 0, "Random seed (overrides config)")
	rootCommand.PersistentFlags().StringVarP(&configDir, "config", "c", "", "Directory with env/agents/observations/rewards/experiment YAML files")
	rootCommand.PersistentFlags().BoolVar(&logPretty, "log-pretty", false, "Log as indented JSON instead of text")
	rootCommand.AddCommand(TrainCommand())
	rootCommand.AddCommand(EvaluateCommand())
	rootCommand.AddCommand(SweepCommand())
	rootCommand.AddCommand(WatchCommand())
	rootCommand.AddCommand(InspectCommand())
	return rootCommand
}

// newLogger builds the process logger once per command invocation.
func newLogger() *slog.Logger {
	if logPretty {
		return slog.New(logging.NewPrettyJSONHandler(os.Stderr, nil))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, nil))
}

// loadConfig resolves the experiment configuration and applies the flag
// overrides on top.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg := config.Default()
	if configDir != "" {
		loaded, err := config.Load(configDir)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}
	if cmd.Flags().Changed("episodes") {
		cfg.Experiment.Runtime.Episodes = episodes
	}
	if cmd.Flags().Changed("horizon") {
		cfg.Experiment.Runtime.Horizon = horizon
	}
	if cmd.Flags().Changed("seed") {
		cfg.Env.Seed = seed
	}
	return cfg, nil
}
