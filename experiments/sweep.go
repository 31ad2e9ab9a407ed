package experiments

import (
	"fmt"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/zeu5/pursuit-rl/config"
)

// sweepApply sets one parameter on a copy of the config.
func sweepApply(cfg *config.Config, param, value string) error {
	switch param {
	case "size":
		v, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("size value %q: %w", value, err)
		}
		cfg.Env.Size = v
	case "obstacles":
		v, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return fmt.Errorf("obstacles value %q: %w", value, err)
		}
		cfg.Env.ObstaclePercentage = v
	case "alpha":
		v, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return fmt.Errorf("alpha value %q: %w", value, err)
		}
		cfg.Experiment.Learning.Alpha = v
	case "gamma":
		v, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return fmt.Errorf("gamma value %q: %w", value, err)
		}
		cfg.Experiment.Learning.Gamma = v
	case "epsilon_decay":
		v, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return fmt.Errorf("epsilon_decay value %q: %w", value, err)
		}
		cfg.Experiment.Learning.EpsilonDecay = v
	default:
		return fmt.Errorf("unknown sweep parameter %q, available: size, obstacles, alpha, gamma, epsilon_decay", param)
	}
	return nil
}

func SweepCommand() *cobra.Command {
	var param string
	var values string

	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Re-run training across a list of values for one parameter",
		RunE: func(cmd *cobra.Command, args []string) error {
			baseCfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			logger := newLogger()
			ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()

			for _, value := range strings.Split(values, ",") {
				value = strings.TrimSpace(value)
				if value == "" {
					continue
				}
				cfg := *baseCfg
				if err := sweepApply(&cfg, param, value); err != nil {
					return err
				}
				cfg.Experiment.Name = fmt.Sprintf("%s_%s_%s", baseCfg.Experiment.Name, param, value)
				logger.Info("sweep run", "param", param, "value", value)
				if err := runTraining(ctx, &cfg, "", 0, "none"); err != nil {
					return fmt.Errorf("sweep %s=%s: %w", param, value, err)
				}
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&param, "param", "size", "Parameter to sweep")
	cmd.Flags().StringVar(&values, "values", "", "Comma-separated values to sweep over")
	cmd.MarkFlagRequired("values")
	return cmd
}
