package gridworld

import (
	"errors"
	"fmt"
	"sort"

	"golang.org/x/exp/rand"
)

// Base reward constants. A predator pays StepCost every step and earns
// CaptureReward when it is party to a capture; a captured prey pays
// CaptureReward; standing on an obstacle cell costs ObstaclePenalty.
const (
	CaptureReward   = 100.0
	ObstaclePenalty = 200.0
	StepCost        = 5.0
)

var (
	ErrUnknownAgent  = errors.New("unknown agent")
	ErrInvalidAction = errors.New("invalid action")
)

// Config carries the environment construction parameters. Agent order is
// significant: it fixes both the movement order and the canonical encoding
// order used by the joint state/action codecs.
type Config struct {
	Size               int
	ObstaclePercentage float64
	Seed               uint64
}

// ObservationBuilder computes per-agent observations from the environment's
// read-only state. Builders must be pure: no state mutation, no movement.
type ObservationBuilder func(env *Environment) Observations

// RewardFunc computes per-agent additive reward deltas from the
// environment's read-only state. It must not mutate anything.
type RewardFunc func(env *Environment) map[string]float64

// StepResult is everything one environment transition produces.
type StepResult struct {
	Observations Observations
	Rewards      map[string]float64
	Terminated   bool
	Truncated    bool
	Info         map[string]AgentInfo
}

// Environment is the multi-agent pursuit gridworld. It owns agent movement,
// obstacle blocking, capture detection and base rewards. Learning lives
// elsewhere; the environment only runs dynamics.
type Environment struct {
	Size   int
	Agents []*Agent

	// behavior flags, both true by default
	BlockByObstacles bool
	AllowCellSharing bool

	numObstacles int
	obstacles    []Point
	obstacleSet  map[Point]bool

	rng *rand.Rand

	steps            int
	capturesThisStep int
	capturesTotal    int
	captured         map[string]bool

	obsBuilder ObservationBuilder
	rewardFn   RewardFunc
}

// NewEnvironment validates the configuration and builds an environment.
// The RNG is seeded once here; Reset draws from it, so two environments
// constructed with the same seed and driven by the same actions produce
// identical trajectories.
func NewEnvironment(cfg Config, agents []*Agent) (*Environment, error) {
	if cfg.Size <= 0 {
		return nil, fmt.Errorf("grid size must be positive, got %d", cfg.Size)
	}
	if cfg.ObstaclePercentage < 0 || cfg.ObstaclePercentage > 100 {
		return nil, fmt.Errorf("obstacle percentage must be in [0,100], got %f", cfg.ObstaclePercentage)
	}
	if len(agents) == 0 {
		return nil, errors.New("environment needs at least one agent")
	}
	seen := make(map[string]bool, len(agents))
	for _, ag := range agents {
		if seen[ag.Name] {
			return nil, fmt.Errorf("duplicate agent name %q", ag.Name)
		}
		seen[ag.Name] = true
	}
	numObstacles := int(cfg.ObstaclePercentage / 100.0 * float64(cfg.Size*cfg.Size))
	if len(agents)+numObstacles > cfg.Size*cfg.Size {
		return nil, fmt.Errorf("%d agents and %d obstacles do not fit a %dx%d grid",
			len(agents), numObstacles, cfg.Size, cfg.Size)
	}
	return &Environment{
		Size:             cfg.Size,
		Agents:           agents,
		BlockByObstacles: true,
		AllowCellSharing: true,
		numObstacles:     numObstacles,
		obstacleSet:      make(map[Point]bool),
		rng:              rand.New(rand.NewSource(cfg.Seed)),
		captured:         make(map[string]bool),
	}, nil
}

// SetObservationBuilder replaces the default observation builder.
func (e *Environment) SetObservationBuilder(b ObservationBuilder) {
	e.obsBuilder = b
}

// SetRewardFunc installs an additive reward shaping function. Its output is
// added elementwise to the base reward each step.
func (e *Environment) SetRewardFunc(fn RewardFunc) {
	e.rewardFn = fn
}

// Reset starts a new episode: every agent gets a unique start cell sampled
// without replacement, obstacles are sampled from the remaining free cells,
// and all episode counters are zeroed.
func (e *Environment) Reset() (Observations, map[string]AgentInfo) {
	e.steps = 0
	e.capturesThisStep = 0
	e.capturesTotal = 0
	e.captured = make(map[string]bool)

	// one permutation of all cells covers both agents and obstacles,
	// which keeps them disjoint by construction
	perm := e.rng.Perm(e.Size * e.Size)
	for i, ag := range e.Agents {
		cell := perm[i]
		ag.Pos = Point{X: cell / e.Size, Y: cell % e.Size}
	}
	e.obstacles = make([]Point, 0, e.numObstacles)
	e.obstacleSet = make(map[Point]bool, e.numObstacles)
	for _, cell := range perm[len(e.Agents) : len(e.Agents)+e.numObstacles] {
		p := Point{X: cell / e.Size, Y: cell % e.Size}
		e.obstacles = append(e.obstacles, p)
		e.obstacleSet[p] = true
	}

	return e.buildObservations(), e.buildInfo()
}

// Step applies one joint action. Agents missing from the map take noop;
// out-of-range actions or unknown agent names are caller contract
// violations and reject the whole step before anything moves.
func (e *Environment) Step(actions map[string]int) (*StepResult, error) {
	if err := e.validateActions(actions); err != nil {
		return nil, err
	}

	e.capturesThisStep = 0
	e.captured = make(map[string]bool)

	// movement pass, sequential in agent order
	for _, ag := range e.Agents {
		a, ok := actions[ag.Name]
		if !ok {
			a = ActionNoop
		}
		dir := ActionDirection(a)
		candidate := Point{
			X: clamp(ag.Pos.X+dir.X, 0, e.Size-1),
			Y: clamp(ag.Pos.Y+dir.Y, 0, e.Size-1),
		}
		if e.BlockByObstacles && e.obstacleSet[candidate] {
			continue // blocked, same as choosing noop
		}
		ag.Pos = candidate
	}

	// capture detection, grouping once after the full movement pass
	byCell := make(map[Point][]*Agent, len(e.Agents))
	cells := make([]Point, 0, len(e.Agents))
	for _, ag := range e.Agents {
		if _, ok := byCell[ag.Pos]; !ok {
			cells = append(cells, ag.Pos)
		}
		byCell[ag.Pos] = append(byCell[ag.Pos], ag)
	}
	for _, cell := range cells {
		var predators, preys []*Agent
		for _, ag := range byCell[cell] {
			switch ag.Role {
			case Predator:
				predators = append(predators, ag)
			case Prey:
				preys = append(preys, ag)
			}
		}
		if len(predators) == 0 || len(preys) == 0 {
			continue
		}
		for _, prey := range preys {
			e.capturesThisStep++
			e.captured[prey.Name] = true
		}
		// co-located predators are recorded but do not count toward the tally
		for _, pred := range predators {
			e.captured[pred.Name] = true
		}
	}
	e.capturesTotal += e.capturesThisStep
	e.steps++

	rewards := e.baseReward()
	if e.rewardFn != nil {
		for name, delta := range e.rewardFn(e) {
			if _, ok := rewards[name]; ok {
				rewards[name] += delta
			}
		}
	}

	return &StepResult{
		Observations: e.buildObservations(),
		Rewards:      rewards,
		Terminated:   e.capturesTotal >= 1,
		Truncated:    false,
		Info:         e.buildInfo(),
	}, nil
}

func (e *Environment) validateActions(actions map[string]int) error {
	names := make(map[string]bool, len(e.Agents))
	for _, ag := range e.Agents {
		names[ag.Name] = true
	}
	for name, a := range actions {
		if !names[name] {
			return fmt.Errorf("%w %q, valid agents: %v", ErrUnknownAgent, name, e.AgentNames())
		}
		if a < 0 || a >= NumActions {
			return fmt.Errorf("%w %d for agent %q, must be in [0,%d)", ErrInvalidAction, a, name, NumActions)
		}
	}
	return nil
}

func (e *Environment) baseReward() map[string]float64 {
	rewards := make(map[string]float64, len(e.Agents))
	for _, ag := range e.Agents {
		r := 0.0
		switch ag.Role {
		case Predator:
			if e.captured[ag.Name] {
				r += CaptureReward
			}
			r -= StepCost
		case Prey:
			if e.captured[ag.Name] {
				r -= CaptureReward
			}
		}
		// only reachable when obstacle blocking is disabled
		if e.obstacleSet[ag.Pos] {
			r -= ObstaclePenalty
		}
		rewards[ag.Name] = r
	}
	return rewards
}

func (e *Environment) buildObservations() Observations {
	if e.obsBuilder != nil {
		return e.obsBuilder(e)
	}
	return DefaultObservations(e)
}

func (e *Environment) buildInfo() map[string]AgentInfo {
	info := make(map[string]AgentInfo, len(e.Agents))
	for _, ag := range e.Agents {
		info[ag.Name] = ag.info()
	}
	return info
}

// AgentNames returns the agent names in canonical (construction) order.
func (e *Environment) AgentNames() []string {
	names := make([]string, len(e.Agents))
	for i, ag := range e.Agents {
		names[i] = ag.Name
	}
	return names
}

// Positions returns the agent positions in canonical order.
func (e *Environment) Positions() []Point {
	pos := make([]Point, len(e.Agents))
	for i, ag := range e.Agents {
		pos[i] = ag.Pos
	}
	return pos
}

// Obstacles returns the obstacle cells in the order they were sampled.
func (e *Environment) Obstacles() []Point {
	out := make([]Point, len(e.obstacles))
	copy(out, e.obstacles)
	return out
}

// IsObstacle reports whether p is an obstacle cell.
func (e *Environment) IsObstacle(p Point) bool {
	return e.obstacleSet[p]
}

// Captured returns the names recorded in this step's capture set, sorted.
// Both captured prey and the predators party to the capture appear here.
func (e *Environment) Captured() []string {
	names := make([]string, 0, len(e.captured))
	for name := range e.captured {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// IsCaptured reports whether the named agent is in this step's capture set.
func (e *Environment) IsCaptured(name string) bool {
	return e.captured[name]
}

// EpisodeSteps returns the number of steps taken since the last Reset.
func (e *Environment) EpisodeSteps() int {
	return e.steps
}

// CapturesThisStep returns the number of prey captured in the last step.
func (e *Environment) CapturesThisStep() int {
	return e.capturesThisStep
}

// CapturesTotal returns the number of prey captured since the last Reset.
func (e *Environment) CapturesTotal() int {
	return e.capturesTotal
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
