package experiments

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/zeu5/pursuit-rl/gridworld"
	"github.com/zeu5/pursuit-rl/tabular"
)

func InspectCommand() *cobra.Command {
	var checkpointPath string
	var stateIdx int
	var topK int

	cmd := &cobra.Command{
		Use:   "inspect",
		Short: "Print statistics and Q rows from a saved checkpoint",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			q, err := tabular.LoadQTable(checkpointPath)
			if err != nil {
				return err
			}
			stats := q.Stats()
			fmt.Printf("Checkpoint: %s\n", checkpointPath)
			fmt.Printf("States:     %d\n", stats.States)
			fmt.Printf("Actions:    %d\n", stats.Actions)
			fmt.Printf("Non-zero:   %d (%.2f%%)\n", stats.NonZero,
				100*float64(stats.NonZero)/float64(stats.States*stats.Actions))
			fmt.Printf("Value range: [%.3f, %.3f]\n", stats.MinValue, stats.MaxValue)

			if stateIdx < 0 {
				return nil
			}

			agents := cfg.BuildAgents()
			encoder, err := tabular.NewStateEncoder(cfg.Env.Size, len(agents))
			if err != nil {
				return err
			}
			codec, err := tabular.NewJointActionCodec(len(agents), gridworld.NumActions)
			if err != nil {
				return err
			}
			if encoder.NumStates() != q.NumStates() || codec.NumJointActions() != q.NumActions() {
				return fmt.Errorf("checkpoint is %dx%d but configuration needs %dx%d",
					q.NumStates(), q.NumActions(), encoder.NumStates(), codec.NumJointActions())
			}

			positions, err := encoder.Decode(stateIdx)
			if err != nil {
				return err
			}
			fmt.Printf("\nJoint state %d:\n", stateIdx)
			for i, ag := range agents {
				fmt.Printf("  %-12s at (%d,%d)\n", ag.Name, positions[i].X, positions[i].Y)
			}

			row := q.Row(stateIdx)
			type entry struct {
				idx int
				val float64
			}
			entries := make([]entry, len(row))
			for i, v := range row {
				entries[i] = entry{idx: i, val: v}
			}
			sort.SliceStable(entries, func(i, j int) bool {
				return entries[i].val > entries[j].val
			})
			if topK > len(entries) {
				topK = len(entries)
			}
			actionNames := []string{"right", "up", "left", "down", "noop"}
			fmt.Printf("\nTop %d joint actions:\n", topK)
			for _, e := range entries[:topK] {
				actions, err := codec.Decode(e.idx)
				if err != nil {
					return err
				}
				parts := make([]string, len(actions))
				for i, a := range actions {
					parts[i] = fmt.Sprintf("%s=%s", agents[i].Name, actionNames[a])
				}
				fmt.Printf("  %4d  %10.3f  %v\n", e.idx, e.val, parts)
			}

			greedy, err := codec.Decode(q.ArgMax(stateIdx))
			if err != nil {
				return err
			}
			fmt.Printf("\nGreedy joint action:\n")
			for i, a := range greedy {
				fmt.Printf("  %-12s %s\n", agents[i].Name, actionNames[a])
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&checkpointPath, "checkpoint", "", "Checkpoint file to inspect")
	cmd.Flags().IntVar(&stateIdx, "state", -1, "Joint state index to dump (stats only if unset)")
	cmd.Flags().IntVar(&topK, "top", 5, "Number of joint actions to list for the state")
	cmd.MarkFlagRequired("checkpoint")
	return cmd
}
