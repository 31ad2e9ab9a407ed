package trainer

import (
	"context"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/zeu5/pursuit-rl/gridworld"
	"github.com/zeu5/pursuit-rl/tabular"
)

func newTestEnv(t *testing.T, seed uint64) *gridworld.Environment {
	t.Helper()
	agents := []*gridworld.Agent{
		gridworld.NewAgent("predator_1", gridworld.Predator, "predators"),
		gridworld.NewAgent("prey_1", gridworld.Prey, "preys"),
	}
	env, err := gridworld.NewEnvironment(gridworld.Config{
		Size:               3,
		ObstaclePercentage: 0,
		Seed:               seed,
	}, agents)
	if err != nil {
		t.Fatalf("NewEnvironment: %v", err)
	}
	return env
}

func newTestTrainer(t *testing.T, cfg Config, env *gridworld.Environment) *Trainer {
	t.Helper()
	tr, err := New(cfg, env, nil, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return tr
}

func baseConfig() Config {
	return Config{
		Episodes:     10,
		Horizon:      20,
		Alpha:        0.25,
		Gamma:        0.95,
		EpsilonStart: 1.0,
		EpsilonEnd:   0.1,
		EpsilonDecay: 0.99,
		DecayEvery:   100,
		Seed:         7,
	}
}

func TestBellmanUpdate(t *testing.T) {
	// alpha 1, gamma 0, no shaping: the new value is exactly the reward
	if got := bellman(0, 10, 0, 0, 999, 1, 0); got != 10 {
		t.Errorf("bellman=%v want=10", got)
	}
	// full formula: 0.5 + 0.25*(2 + 0.9*3 - 1 + 0.9*4 - 0.5)
	want := 0.5 + 0.25*(2+0.9*3-1+0.9*4-0.5)
	if got := bellman(0.5, 2, 1, 3, 4, 0.25, 0.9); math.Abs(got-want) > 1e-12 {
		t.Errorf("bellman=%v want=%v", got, want)
	}
	// alpha 0 leaves the value untouched
	if got := bellman(3.5, 100, 0, 0, 100, 0, 0.9); got != 3.5 {
		t.Errorf("bellman with alpha=0 moved the value: %v", got)
	}
}

func TestConfigValidation(t *testing.T) {
	env := newTestEnv(t, 1)
	cfg := baseConfig()
	cfg.Episodes = 0
	if _, err := New(cfg, env, nil, nil); err == nil {
		t.Error("expected error for zero episodes")
	}
	cfg = baseConfig()
	cfg.Horizon = 0
	if _, err := New(cfg, env, nil, nil); err == nil {
		t.Error("expected error for zero horizon")
	}
}

func TestQTableDimensions(t *testing.T) {
	env := newTestEnv(t, 1)
	tr := newTestTrainer(t, baseConfig(), env)
	if got := tr.QTable().NumStates(); got != 81 {
		t.Errorf("NumStates=%d want=81", got)
	}
	if got := tr.QTable().NumActions(); got != 25 {
		t.Errorf("NumActions=%d want=25", got)
	}
}

func TestEpsilonDecaysToFloor(t *testing.T) {
	env := newTestEnv(t, 1)
	cfg := baseConfig()
	cfg.Episodes = 5
	cfg.EpsilonStart = 0.4
	cfg.EpsilonEnd = 0.1
	cfg.EpsilonDecay = 0.5
	cfg.DecayEvery = 1
	tr := newTestTrainer(t, cfg, env)

	report, err := tr.Train(context.Background())
	if err != nil {
		t.Fatalf("Train: %v", err)
	}
	// 0.4 -> 0.2 -> 0.1, then clamped at the floor
	if report.FinalEpsilon != 0.1 {
		t.Errorf("FinalEpsilon=%v want=0.1", report.FinalEpsilon)
	}
	if tr.Epsilon() != 0.1 {
		t.Errorf("Epsilon()=%v want=0.1", tr.Epsilon())
	}
	if report.Episodes[0].Epsilon != 0.4 {
		t.Errorf("first episode epsilon=%v want=0.4", report.Episodes[0].Epsilon)
	}
}

func TestEpsilonDecayCadence(t *testing.T) {
	env := newTestEnv(t, 1)
	cfg := baseConfig()
	cfg.Episodes = 6
	cfg.EpsilonStart = 1.0
	cfg.EpsilonEnd = 0.0
	cfg.EpsilonDecay = 0.5
	cfg.DecayEvery = 3
	tr := newTestTrainer(t, cfg, env)

	report, err := tr.Train(context.Background())
	if err != nil {
		t.Fatalf("Train: %v", err)
	}
	// episodes 1-3 at 1.0, 4-6 at 0.5, final after the second decay
	for ep := 0; ep < 3; ep++ {
		if report.Episodes[ep].Epsilon != 1.0 {
			t.Errorf("episode %d epsilon=%v want=1.0", ep+1, report.Episodes[ep].Epsilon)
		}
	}
	for ep := 3; ep < 6; ep++ {
		if report.Episodes[ep].Epsilon != 0.5 {
			t.Errorf("episode %d epsilon=%v want=0.5", ep+1, report.Episodes[ep].Epsilon)
		}
	}
	if report.FinalEpsilon != 0.25 {
		t.Errorf("FinalEpsilon=%v want=0.25", report.FinalEpsilon)
	}
}

func TestPinnedCandidates(t *testing.T) {
	env := newTestEnv(t, 1)
	cfg := baseConfig()
	cfg.PinnedAgent = "prey_1"
	cfg.PinnedAction = gridworld.ActionNoop
	tr := newTestTrainer(t, cfg, env)

	// prey_1 is the least significant digit, so the compatible joint
	// indices are exactly those congruent to the pinned action mod 5
	want := []int{4, 9, 14, 19, 24}
	if len(tr.pinnedCandidates) != len(want) {
		t.Fatalf("candidates=%v want=%v", tr.pinnedCandidates, want)
	}
	for i, c := range tr.pinnedCandidates {
		if c != want[i] {
			t.Fatalf("candidates=%v want=%v", tr.pinnedCandidates, want)
		}
	}
}

func TestPinnedSelectionStaysInCandidates(t *testing.T) {
	env := newTestEnv(t, 1)
	cfg := baseConfig()
	cfg.PinnedAgent = "prey_1"
	cfg.PinnedAction = gridworld.ActionNoop
	tr := newTestTrainer(t, cfg, env)

	// a huge value outside the candidate set must never be picked
	row := tr.q.Row(0)
	row[7] = 1000
	row[9] = 1

	if got := tr.selectAction(0, 0); got != 9 {
		t.Errorf("greedy pinned selection=%d want=9", got)
	}
	for i := 0; i < 50; i++ {
		idx := tr.selectAction(0, 1.0)
		if idx%5 != gridworld.ActionNoop {
			t.Fatalf("exploratory pinned selection %d violates the pin", idx)
		}
	}
}

func TestPinnedConfigErrors(t *testing.T) {
	env := newTestEnv(t, 1)
	cfg := baseConfig()
	cfg.PinnedAgent = "prey_9"
	cfg.PinnedAction = gridworld.ActionNoop
	if _, err := New(cfg, env, nil, nil); err == nil {
		t.Error("expected error for unknown pinned agent")
	}
	cfg = baseConfig()
	cfg.PinnedAgent = "prey_1"
	cfg.PinnedAction = 5
	if _, err := New(cfg, env, nil, nil); err == nil {
		t.Error("expected error for out-of-range pinned action")
	}
}

func TestCheckpointCadence(t *testing.T) {
	env := newTestEnv(t, 1)
	path := filepath.Join(t.TempDir(), "q.json")
	cfg := baseConfig()
	cfg.Episodes = 4
	cfg.CheckpointEvery = 2
	cfg.CheckpointPath = path
	tr := newTestTrainer(t, cfg, env)

	present := make(map[int]bool)
	tr.AddEpisodeHook(func(stats EpisodeStats) {
		_, err := os.Stat(path)
		present[stats.Episode] = err == nil
	})
	if _, err := tr.Train(context.Background()); err != nil {
		t.Fatalf("Train: %v", err)
	}
	if present[1] {
		t.Error("checkpoint existed before the first cadence point")
	}
	if !present[3] {
		t.Error("checkpoint missing after episode 2")
	}

	q, err := tabular.LoadQTable(path)
	if err != nil {
		t.Fatalf("LoadQTable: %v", err)
	}
	if q.NumStates() != 81 || q.NumActions() != 25 {
		t.Errorf("checkpoint dims %dx%d want 81x25", q.NumStates(), q.NumActions())
	}
}

func TestRestoreCheckpoint(t *testing.T) {
	env := newTestEnv(t, 1)
	tr := newTestTrainer(t, baseConfig(), env)

	good, _ := tabular.NewQTable(81, 25)
	good.Row(3)[5] = 2.5
	goodPath := filepath.Join(t.TempDir(), "good.json")
	if err := good.Save(goodPath); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if err := tr.RestoreCheckpoint(goodPath); err != nil {
		t.Fatalf("RestoreCheckpoint: %v", err)
	}
	if tr.QTable().Row(3)[5] != 2.5 {
		t.Errorf("restored value missing: %v", tr.QTable().Row(3))
	}

	bad, _ := tabular.NewQTable(16, 25)
	badPath := filepath.Join(t.TempDir(), "bad.json")
	if err := bad.Save(badPath); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if err := tr.RestoreCheckpoint(badPath); err == nil {
		t.Error("expected error for dimension mismatch")
	}
}

func TestTrainDeterministic(t *testing.T) {
	run := func() *RunReport {
		env := newTestEnv(t, 42)
		cfg := baseConfig()
		cfg.Episodes = 20
		cfg.Seed = 99
		tr := newTestTrainer(t, cfg, env)
		report, err := tr.Train(context.Background())
		if err != nil {
			t.Fatalf("Train: %v", err)
		}
		return report
	}

	a, b := run(), run()
	if len(a.Episodes) != len(b.Episodes) {
		t.Fatalf("episode counts differ: %d vs %d", len(a.Episodes), len(b.Episodes))
	}
	for i := range a.Episodes {
		ea, eb := a.Episodes[i], b.Episodes[i]
		if ea.Length != eb.Length || ea.Captures != eb.Captures {
			t.Fatalf("episode %d diverged: %+v vs %+v", i+1, ea, eb)
		}
		for name, r := range ea.Rewards {
			if eb.Rewards[name] != r {
				t.Fatalf("episode %d reward for %s diverged: %v vs %v", i+1, name, r, eb.Rewards[name])
			}
		}
	}
}

func TestEpisodeHooksAndUniqueStates(t *testing.T) {
	env := newTestEnv(t, 1)
	cfg := baseConfig()
	cfg.Episodes = 5
	tr := newTestTrainer(t, cfg, env)

	var seen []EpisodeStats
	tr.AddEpisodeHook(func(stats EpisodeStats) { seen = append(seen, stats) })

	report, err := tr.Train(context.Background())
	if err != nil {
		t.Fatalf("Train: %v", err)
	}
	if len(seen) != 5 {
		t.Fatalf("hook fired %d times, want 5", len(seen))
	}
	prev := 0
	for _, stats := range report.Episodes {
		if stats.Length < 1 || stats.Length > cfg.Horizon {
			t.Errorf("episode %d length %d outside [1,%d]", stats.Episode, stats.Length, cfg.Horizon)
		}
		if stats.UniqueStates < prev {
			t.Errorf("unique state count decreased: %d -> %d", prev, stats.UniqueStates)
		}
		prev = stats.UniqueStates
	}
}

func TestTrainStopsOnContextCancel(t *testing.T) {
	env := newTestEnv(t, 1)
	tr := newTestTrainer(t, baseConfig(), env)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	report, err := tr.Train(ctx)
	if err != context.Canceled {
		t.Fatalf("err=%v want=context.Canceled", err)
	}
	if len(report.Episodes) != 0 {
		t.Errorf("ran %d episodes after cancellation", len(report.Episodes))
	}
}

func TestEvaluateGreedy(t *testing.T) {
	env := newTestEnv(t, 1)
	cfg := baseConfig()
	cfg.Episodes = 30
	tr := newTestTrainer(t, cfg, env)
	if _, err := tr.Train(context.Background()); err != nil {
		t.Fatalf("Train: %v", err)
	}

	before := tr.QTable().Stats()
	report, err := tr.Evaluate(context.Background(), 5)
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if report.Episodes != 5 {
		t.Errorf("Episodes=%d want=5", report.Episodes)
	}
	if report.MeanLength < 1 || report.MeanLength > float64(cfg.Horizon) {
		t.Errorf("MeanLength=%v outside [1,%d]", report.MeanLength, cfg.Horizon)
	}
	if after := tr.QTable().Stats(); after != before {
		t.Error("evaluation mutated the q-table")
	}

	if _, err := tr.Evaluate(context.Background(), 0); err == nil {
		t.Error("expected error for zero evaluation episodes")
	}
}

func TestGreedyActionsCoversAllAgents(t *testing.T) {
	env := newTestEnv(t, 1)
	cfg := baseConfig()
	cfg.PinnedAgent = "prey_1"
	cfg.PinnedAction = gridworld.ActionNoop
	tr := newTestTrainer(t, cfg, env)
	env.Reset()

	actions, err := tr.GreedyActions()
	if err != nil {
		t.Fatalf("GreedyActions: %v", err)
	}
	if len(actions) != 2 {
		t.Fatalf("actions=%v want one per agent", actions)
	}
	if actions["prey_1"] != gridworld.ActionNoop {
		t.Errorf("pinned agent action=%d want=%d", actions["prey_1"], gridworld.ActionNoop)
	}
}

func TestCenterPotentialShapesUpdate(t *testing.T) {
	env := newTestEnv(t, 1)
	cfg := baseConfig()
	cfg.Episodes = 3
	tr := newTestTrainer(t, cfg, env)
	tr.SetPotential(CenterPotential(env.Size))
	if _, err := tr.Train(context.Background()); err != nil {
		t.Fatalf("Train with potential: %v", err)
	}
	// nil resets to the zero potential rather than panicking mid-episode
	tr.SetPotential(nil)
	if _, err := tr.runEpisode(1, 0, true); err != nil {
		t.Fatalf("runEpisode after reset: %v", err)
	}
}
