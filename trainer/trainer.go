// Package trainer drives centralized tabular Q-learning over the pursuit
// gridworld: one joint Q-table over joint states and joint actions,
// epsilon-greedy selection with an optional pinned agent, potential-based
// reward shaping and periodic checkpointing.
package trainer

import (
	"context"
	"fmt"
	"log/slog"
	"math"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/stat"

	"github.com/zeu5/pursuit-rl/gridworld"
	"github.com/zeu5/pursuit-rl/tabular"
	"github.com/zeu5/pursuit-rl/telemetry"
)

// PinnedActionNone disables action pinning.
const PinnedActionNone = -1

// Config holds the training parameters. PinnedAgent plus a non-negative
// PinnedAction forces that agent's action every step and restricts the
// greedy search to the remaining agents' joint sub-space.
type Config struct {
	Episodes int
	Horizon  int

	Alpha float64
	Gamma float64

	EpsilonStart float64
	EpsilonEnd   float64
	EpsilonDecay float64
	DecayEvery   int

	CheckpointEvery int
	CheckpointPath  string

	Seed uint64

	PinnedAgent  string
	PinnedAction int

	Window int
}

// EpisodeStats is what one episode produces for metrics, archiving and
// analysis.
type EpisodeStats struct {
	Episode  int                `json:"episode"`
	Length   int                `json:"length"`
	Captures int                `json:"captures"`
	Epsilon  float64            `json:"epsilon"`
	Rewards  map[string]float64 `json:"rewards"`
	// UniqueStates is the cumulative count of distinct joint states
	// visited since training began.
	UniqueStates int `json:"unique_states"`
}

// EpisodeHook is called after every episode with its stats.
type EpisodeHook func(stats EpisodeStats)

// RunReport collects the whole run for offline analysis.
type RunReport struct {
	Episodes     []EpisodeStats
	FinalEpsilon float64
}

// Trainer owns the Q-table and runs the episode loop. It is single
// threaded; nothing else may touch the table while it runs.
type Trainer struct {
	cfg Config
	env *gridworld.Environment

	encoder *tabular.StateEncoder
	codec   *tabular.JointActionCodec
	q       *tabular.QTable

	rng     *rand.Rand
	eps     float64
	sink    telemetry.Sink
	logger  *slog.Logger
	phi     PotentialFunc
	hooks   []EpisodeHook
	visited map[int]bool

	// pinnedCandidates lists the joint action indices compatible with the
	// pinned agent's forced action, in ascending index order. Empty when
	// pinning is disabled.
	pinnedIdx        int
	pinnedCandidates []int

	rewardWindows  map[string]*telemetry.Window
	capturesWindow *telemetry.Window
}

// New validates the configuration against the environment and allocates
// the joint Q-table. A grid/table size mismatch fails here, never at
// update time.
func New(cfg Config, env *gridworld.Environment, sink telemetry.Sink, logger *slog.Logger) (*Trainer, error) {
	if cfg.Episodes <= 0 {
		return nil, fmt.Errorf("episodes must be positive, got %d", cfg.Episodes)
	}
	if cfg.Horizon <= 0 {
		return nil, fmt.Errorf("horizon must be positive, got %d", cfg.Horizon)
	}
	if cfg.DecayEvery <= 0 {
		cfg.DecayEvery = 100
	}
	if cfg.Window <= 0 {
		cfg.Window = 100
	}
	if sink == nil {
		sink = telemetry.NopSink{}
	}
	if logger == nil {
		logger = slog.Default()
	}

	encoder, err := tabular.NewStateEncoder(env.Size, len(env.Agents))
	if err != nil {
		return nil, err
	}
	codec, err := tabular.NewJointActionCodec(len(env.Agents), gridworld.NumActions)
	if err != nil {
		return nil, err
	}
	q, err := tabular.NewQTable(encoder.NumStates(), codec.NumJointActions())
	if err != nil {
		return nil, err
	}

	t := &Trainer{
		cfg:            cfg,
		env:            env,
		encoder:        encoder,
		codec:          codec,
		q:              q,
		rng:            rand.New(rand.NewSource(cfg.Seed)),
		eps:            cfg.EpsilonStart,
		sink:           sink,
		logger:         logger,
		phi:            ZeroPotential,
		visited:        make(map[int]bool),
		pinnedIdx:      -1,
		rewardWindows:  make(map[string]*telemetry.Window),
		capturesWindow: telemetry.NewWindow(cfg.Window),
	}
	for _, name := range env.AgentNames() {
		t.rewardWindows[name] = telemetry.NewWindow(cfg.Window)
	}

	if cfg.PinnedAgent != "" && cfg.PinnedAction != PinnedActionNone {
		if err := t.setupPinning(cfg.PinnedAgent, cfg.PinnedAction); err != nil {
			return nil, err
		}
	}
	return t, nil
}

func (t *Trainer) setupPinning(agent string, action int) error {
	if action < 0 || action >= gridworld.NumActions {
		return fmt.Errorf("pinned action %d outside [0,%d)", action, gridworld.NumActions)
	}
	idx := -1
	for i, name := range t.env.AgentNames() {
		if name == agent {
			idx = i
			break
		}
	}
	if idx < 0 {
		return fmt.Errorf("%w %q, valid agents: %v", gridworld.ErrUnknownAgent, agent, t.env.AgentNames())
	}
	t.pinnedIdx = idx
	for j := 0; j < t.codec.NumJointActions(); j++ {
		actions, err := t.codec.Decode(j)
		if err != nil {
			return err
		}
		if actions[idx] == action {
			t.pinnedCandidates = append(t.pinnedCandidates, j)
		}
	}
	return nil
}

// SetPotential installs the shaping potential. The function must be pure.
func (t *Trainer) SetPotential(phi PotentialFunc) {
	if phi == nil {
		phi = ZeroPotential
	}
	t.phi = phi
}

// AddEpisodeHook registers a hook run after every episode.
func (t *Trainer) AddEpisodeHook(hook EpisodeHook) {
	t.hooks = append(t.hooks, hook)
}

// QTable exposes the table for inspection. Callers must not mutate it
// while training runs.
func (t *Trainer) QTable() *tabular.QTable {
	return t.q
}

// Epsilon returns the current exploration rate.
func (t *Trainer) Epsilon() float64 {
	return t.eps
}

// RestoreCheckpoint replaces the Q-table with one loaded from path. The
// checkpoint dimensions must match the configured state and action spaces.
func (t *Trainer) RestoreCheckpoint(path string) error {
	q, err := tabular.LoadQTable(path)
	if err != nil {
		return err
	}
	if q.NumStates() != t.encoder.NumStates() || q.NumActions() != t.codec.NumJointActions() {
		return fmt.Errorf("checkpoint is %dx%d but configuration needs %dx%d",
			q.NumStates(), q.NumActions(), t.encoder.NumStates(), t.codec.NumJointActions())
	}
	t.q = q
	return nil
}

// Train runs the configured number of episodes. A checkpoint write failure
// aborts the run with the error; the previous checkpoint stays intact.
func (t *Trainer) Train(ctx context.Context) (*RunReport, error) {
	report := &RunReport{Episodes: make([]EpisodeStats, 0, t.cfg.Episodes)}
	for ep := 1; ep <= t.cfg.Episodes; ep++ {
		select {
		case <-ctx.Done():
			report.FinalEpsilon = t.eps
			return report, ctx.Err()
		default:
		}

		stats, err := t.runEpisode(ep, t.eps, true)
		if err != nil {
			return report, fmt.Errorf("episode %d: %w", ep, err)
		}
		report.Episodes = append(report.Episodes, stats)

		t.capturesWindow.Push(float64(stats.Captures))
		for name, r := range stats.Rewards {
			t.rewardWindows[name].Push(r)
		}
		t.emitMetrics(stats)
		for _, hook := range t.hooks {
			hook(stats)
		}

		if ep%t.cfg.DecayEvery == 0 {
			t.eps = math.Max(t.cfg.EpsilonEnd, t.eps*t.cfg.EpsilonDecay)
			t.logger.Info("epsilon decayed",
				"episode", ep,
				"epsilon", t.eps,
				"mean_captures", t.capturesWindow.Mean(),
			)
		}

		if t.cfg.CheckpointEvery > 0 && t.cfg.CheckpointPath != "" && ep%t.cfg.CheckpointEvery == 0 {
			if err := t.q.Save(t.cfg.CheckpointPath); err != nil {
				return report, fmt.Errorf("checkpoint at episode %d: %w", ep, err)
			}
			t.logger.Info("checkpoint saved", "episode", ep, "path", t.cfg.CheckpointPath)
		}
	}
	if t.cfg.CheckpointPath != "" {
		if err := t.q.Save(t.cfg.CheckpointPath); err != nil {
			return report, fmt.Errorf("final checkpoint: %w", err)
		}
	}
	report.FinalEpsilon = t.eps
	return report, nil
}

func (t *Trainer) runEpisode(ep int, eps float64, learn bool) (EpisodeStats, error) {
	t.env.Reset()

	totals := make(map[string]float64, len(t.env.Agents))
	for _, name := range t.env.AgentNames() {
		totals[name] = 0
	}
	length := t.cfg.Horizon

	for step := 0; step < t.cfg.Horizon; step++ {
		positions := t.env.Positions()
		s, err := t.encoder.Encode(positions)
		if err != nil {
			return EpisodeStats{}, err
		}
		t.visited[s] = true

		jointIdx := t.selectAction(s, eps)
		jointActions, err := t.codec.Decode(jointIdx)
		if err != nil {
			return EpisodeStats{}, err
		}
		actions := make(map[string]int, len(jointActions))
		for i, name := range t.env.AgentNames() {
			actions[name] = jointActions[i]
		}

		res, err := t.env.Step(actions)
		if err != nil {
			return EpisodeStats{}, err
		}
		nextPositions := t.env.Positions()
		s2, err := t.encoder.Encode(nextPositions)
		if err != nil {
			return EpisodeStats{}, err
		}
		t.visited[s2] = true

		for name, r := range res.Rewards {
			totals[name] += r
		}

		if learn {
			central := 0.0
			for _, r := range res.Rewards {
				central += r
			}
			phi1 := t.sumPotential(positions)
			phi2 := t.sumPotential(nextPositions)
			row := t.q.Row(s)
			row[jointIdx] = bellman(row[jointIdx], central, phi1, phi2, t.q.Max(s2), t.cfg.Alpha, t.cfg.Gamma)
		}

		if res.Terminated {
			length = step + 1
			break
		}
	}

	return EpisodeStats{
		Episode:      ep,
		Length:       length,
		Captures:     t.env.CapturesTotal(),
		Epsilon:      eps,
		Rewards:      totals,
		UniqueStates: len(t.visited),
	}, nil
}

// selectAction picks a joint action index for state s. In pinned mode the
// search ranges only over the pinned-compatible candidates; otherwise it is
// epsilon-greedy over the full joint row. Argmax ties break to the lowest
// index.
func (t *Trainer) selectAction(s int, eps float64) int {
	if t.pinnedIdx >= 0 {
		if t.rng.Float64() < eps {
			return t.pinnedCandidates[t.rng.Intn(len(t.pinnedCandidates))]
		}
		return t.q.ArgMaxAmong(s, t.pinnedCandidates)
	}
	if t.rng.Float64() < eps {
		return t.rng.Intn(t.codec.NumJointActions())
	}
	return t.q.ArgMax(s)
}

// bellman is the one-step Q-learning target with potential-based shaping
// layered on the raw summed reward. The max over the next state's row is
// off-policy: it ignores how the actual transition was selected.
func bellman(cur, reward, phi1, phi2, maxNext, alpha, gamma float64) float64 {
	return cur + alpha*(reward+gamma*phi2-phi1+gamma*maxNext-cur)
}

func (t *Trainer) sumPotential(positions []gridworld.Point) float64 {
	sum := 0.0
	for _, p := range positions {
		sum += t.phi(p)
	}
	return sum
}

func (t *Trainer) emitMetrics(stats EpisodeStats) {
	emit := func(name string, value float64) {
		if err := t.sink.Emit(stats.Episode, name, value); err != nil {
			t.logger.Error("emit metric", "metric", name, "err", err)
		}
	}
	emit("episode/length", float64(stats.Length))
	for name, r := range stats.Rewards {
		emit(fmt.Sprintf("episode/%s/total_reward", name), r)
		emit(fmt.Sprintf("mean/%s/reward", name), t.rewardWindows[name].Mean())
	}
	emit("episode/captures", float64(stats.Captures))
	emit("mean/captures", t.capturesWindow.Mean())
}

// GreedyActions returns the greedy per-agent action map for the
// environment's current positions, honoring the pinned agent if one is
// configured. Used for playback and evaluation.
func (t *Trainer) GreedyActions() (map[string]int, error) {
	s, err := t.encoder.Encode(t.env.Positions())
	if err != nil {
		return nil, err
	}
	var jointIdx int
	if t.pinnedIdx >= 0 {
		jointIdx = t.q.ArgMaxAmong(s, t.pinnedCandidates)
	} else {
		jointIdx = t.q.ArgMax(s)
	}
	jointActions, err := t.codec.Decode(jointIdx)
	if err != nil {
		return nil, err
	}
	actions := make(map[string]int, len(jointActions))
	for i, name := range t.env.AgentNames() {
		actions[name] = jointActions[i]
	}
	return actions, nil
}

// EvalReport summarizes a greedy evaluation run.
type EvalReport struct {
	Episodes     int
	MeanLength   float64
	MeanCaptures float64
	MeanRewards  map[string]float64
}

// Evaluate runs episodes greedily (epsilon zero, no updates) and reports
// mean episode length, mean captures and per-agent mean rewards.
func (t *Trainer) Evaluate(ctx context.Context, episodes int) (*EvalReport, error) {
	if episodes <= 0 {
		return nil, fmt.Errorf("evaluation episodes must be positive, got %d", episodes)
	}
	lengths := make([]float64, 0, episodes)
	captures := make([]float64, 0, episodes)
	rewards := make(map[string][]float64, len(t.env.Agents))
	for _, name := range t.env.AgentNames() {
		rewards[name] = make([]float64, 0, episodes)
	}

	for ep := 1; ep <= episodes; ep++ {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}
		stats, err := t.runEpisode(ep, 0, false)
		if err != nil {
			return nil, fmt.Errorf("evaluation episode %d: %w", ep, err)
		}
		lengths = append(lengths, float64(stats.Length))
		captures = append(captures, float64(stats.Captures))
		for name, r := range stats.Rewards {
			rewards[name] = append(rewards[name], r)
		}
	}

	report := &EvalReport{
		Episodes:     episodes,
		MeanLength:   stat.Mean(lengths, nil),
		MeanCaptures: stat.Mean(captures, nil),
		MeanRewards:  make(map[string]float64, len(rewards)),
	}
	for name, rs := range rewards {
		report.MeanRewards[name] = stat.Mean(rs, nil)
	}
	return report, nil
}
