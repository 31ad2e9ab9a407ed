package experiments

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/zeu5/pursuit-rl/telemetry"
	"github.com/zeu5/pursuit-rl/trainer"
)

func EvaluateCommand() *cobra.Command {
	var checkpointPath string
	var evalEpisodes int

	cmd := &cobra.Command{
		Use:   "evaluate",
		Short: "Run greedy episodes from a checkpoint and report summary statistics",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			logger := newLogger()
			ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()

			env, err := cfg.BuildEnvironment(cfg.Env.Seed)
			if err != nil {
				return err
			}
			t, err := trainer.New(cfg.TrainerConfig(""), env, telemetry.NopSink{}, logger)
			if err != nil {
				return err
			}
			if checkpointPath != "" {
				if err := t.RestoreCheckpoint(checkpointPath); err != nil {
					return err
				}
				logger.Info("checkpoint restored", "path", checkpointPath)
			}

			report, err := t.Evaluate(ctx, evalEpisodes)
			if err != nil {
				return err
			}
			fmt.Printf("Episodes:      %d\n", report.Episodes)
			fmt.Printf("Mean length:   %.2f\n", report.MeanLength)
			fmt.Printf("Mean captures: %.2f\n", report.MeanCaptures)
			for _, name := range env.AgentNames() {
				fmt.Printf("Mean reward %-12s %8.2f\n", name+":", report.MeanRewards[name])
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&checkpointPath, "checkpoint", "", "Checkpoint file to evaluate (zero table if unset)")
	cmd.Flags().IntVar(&evalEpisodes, "eval-episodes", 100, "Number of greedy episodes to run")
	return cmd
}
