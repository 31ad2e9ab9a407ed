package experiments

import (
	"fmt"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"golang.org/x/exp/rand"

	"github.com/zeu5/pursuit-rl/gridworld"
	"github.com/zeu5/pursuit-rl/telemetry"
	"github.com/zeu5/pursuit-rl/trainer"
	"github.com/zeu5/pursuit-rl/viewer"
)

func WatchCommand() *cobra.Command {
	var checkpointPath string
	var intervalMs int

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Play episodes back in the terminal with a trained or random policy",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			env, err := cfg.BuildEnvironment(cfg.Env.Seed)
			if err != nil {
				return err
			}

			var policy viewer.PolicyFunc
			if checkpointPath != "" {
				t, err := trainer.New(cfg.TrainerConfig(""), env, telemetry.NopSink{}, newLogger())
				if err != nil {
					return err
				}
				if err := t.RestoreCheckpoint(checkpointPath); err != nil {
					return err
				}
				policy = t.GreedyActions
			} else {
				rng := rand.New(rand.NewSource(cfg.Env.Seed))
				policy = func() (map[string]int, error) {
					actions := make(map[string]int, len(env.Agents))
					for _, name := range env.AgentNames() {
						actions[name] = rng.Intn(gridworld.NumActions)
					}
					return actions, nil
				}
			}

			m := viewer.New(env, policy, time.Duration(intervalMs)*time.Millisecond)
			if _, err := tea.NewProgram(m).Run(); err != nil {
				return fmt.Errorf("viewer: %w", err)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&checkpointPath, "checkpoint", "", "Checkpoint to play greedily (random policy if unset)")
	cmd.Flags().IntVar(&intervalMs, "interval", 300, "Milliseconds between steps")
	return cmd
}
