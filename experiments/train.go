package experiments

import (
	"context"
	"fmt"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/zeu5/pursuit-rl/analysis"
	"github.com/zeu5/pursuit-rl/archive"
	"github.com/zeu5/pursuit-rl/config"
	"github.com/zeu5/pursuit-rl/gridworld"
	"github.com/zeu5/pursuit-rl/monitor"
	"github.com/zeu5/pursuit-rl/telemetry"
	"github.com/zeu5/pursuit-rl/trainer"
	"github.com/zeu5/pursuit-rl/util"
)

func TrainCommand() *cobra.Command {
	var redisAddr string
	var monitorPort int
	var potentialName string

	cmd := &cobra.Command{
		Use:   "train",
		Short: "Train the centralized Q-learning policy",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()
			return runTraining(ctx, cfg, redisAddr, monitorPort, potentialName)
		},
	}
	cmd.Flags().StringVar(&redisAddr, "redis", "", "Also emit metrics to redis at this address")
	cmd.Flags().IntVar(&monitorPort, "monitor-port", 0, "Serve live run status on this port")
	cmd.Flags().StringVar(&potentialName, "potential", "none", "Shaping potential: none or center")
	return cmd
}

func runTraining(ctx context.Context, cfg *config.Config, redisAddr string, monitorPort int, potentialName string) error {
	logger := newLogger()
	expDir := filepath.Join(saveDir, cfg.Experiment.Name)

	var mon *monitor.Monitor
	if monitorPort > 0 {
		mon = monitor.New(monitorPort, cfg.Experiment.Name, cfg.Experiment.Runtime.Episodes)
		mon.Start(ctx)
		logger.Info("monitor started", "port", monitorPort)
	}

	names := make([]string, 0, runs)
	reports := make([]*trainer.RunReport, 0, runs)
	var agentNames []string

	for run := 0; run < runs; run++ {
		runDir := filepath.Join(expDir, strconv.Itoa(run))
		runName := "run_" + strconv.Itoa(run)

		env, err := cfg.BuildEnvironment(cfg.Env.Seed + uint64(run))
		if err != nil {
			return err
		}
		agentNames = env.AgentNames()

		sinks := []telemetry.Sink{}
		csvSink, err := telemetry.NewCSVSink(filepath.Join(runDir, "metrics.csv"))
		if err != nil {
			return err
		}
		sinks = append(sinks, csvSink)
		if redisAddr != "" {
			redisSink, err := telemetry.NewRedisSink(ctx, redisAddr, cfg.Experiment.Name+":"+runName)
			if err != nil {
				return err
			}
			sinks = append(sinks, redisSink)
		}
		sink := telemetry.NewMultiSink(sinks...)

		tCfg := cfg.TrainerConfig(filepath.Join(runDir, "checkpoint.json"))
		tCfg.Seed = cfg.Env.Seed + uint64(run)
		t, err := trainer.New(tCfg, env, sink, logger.With("run", run))
		if err != nil {
			sink.Close()
			return err
		}
		if potentialName == "center" {
			t.SetPotential(trainer.CenterPotential(env.Size))
		}

		writer, err := archive.NewWriter(filepath.Join(runDir, "archive"), 1000)
		if err != nil {
			sink.Close()
			return err
		}
		t.AddEpisodeHook(func(stats trainer.EpisodeStats) {
			if err := writer.Append(archive.RowFromStats(runName, stats)); err != nil {
				logger.Error("archive episode", "episode", stats.Episode, "err", err)
			}
		})
		if mon != nil {
			attachMonitor(mon, t, env, tCfg.Window)
		}

		logger.Info("training run started",
			"run", run,
			"episodes", tCfg.Episodes,
			"horizon", tCfg.Horizon,
			"grid", env.Size,
			"agents", len(env.Agents),
		)
		report, err := t.Train(ctx)
		if closeErr := writer.Close(); closeErr != nil {
			logger.Error("flush archive", "err", closeErr)
		}
		if closeErr := sink.Close(); closeErr != nil {
			logger.Error("close sinks", "err", closeErr)
		}
		if err != nil {
			return fmt.Errorf("run %d: %w", run, err)
		}
		logger.Info("training run finished", "run", run, "final_epsilon", report.FinalEpsilon)

		names = append(names, runName)
		reports = append(reports, report)
	}

	analyses := analysis.DefaultAnalyses(filepath.Join(expDir, "plots"), agentNames, cfg.Experiment.Window)
	analysis.Compare(0, analyses, names, reports)
	logger.Info("plots written", "dir", filepath.Join(expDir, "plots"))

	summary := []string{"experiment: " + cfg.Experiment.Name}
	for i, report := range reports {
		last := report.Episodes[len(report.Episodes)-1]
		summary = append(summary, fmt.Sprintf(
			"%s: episodes=%d final_epsilon=%.4f unique_states=%d last_length=%d",
			names[i], len(report.Episodes), report.FinalEpsilon, last.UniqueStates, last.Length,
		))
	}
	if err := util.WriteToFile(filepath.Join(expDir, "summary.txt"), summary...); err != nil {
		logger.Error("write summary", "err", err)
	}
	return nil
}

// attachMonitor keeps the live-status server fed from the episode hook.
// The Q-table scan is throttled to once per 100 episodes.
func attachMonitor(mon *monitor.Monitor, t *trainer.Trainer, env *gridworld.Environment, window int) {
	lenWin := telemetry.NewWindow(window)
	capWin := telemetry.NewWindow(window)
	t.AddEpisodeHook(func(stats trainer.EpisodeStats) {
		lenWin.Push(float64(stats.Length))
		capWin.Push(float64(stats.Captures))
		mon.ObserveEpisode(stats, lenWin.Mean(), capWin.Mean())
		mon.ObserveGrid(env)
		if stats.Episode%100 == 0 {
			mon.ObserveQTable(t.QTable())
		}
	})
}
