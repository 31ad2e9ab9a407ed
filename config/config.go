// Package config loads the experiment configuration from a directory of
// YAML files, one concern per file: env.yaml, agents.yaml,
// observations.yaml, rewards.yaml and experiment.yaml.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/zeu5/pursuit-rl/gridworld"
	"github.com/zeu5/pursuit-rl/trainer"
)

// Env mirrors env.yaml.
type Env struct {
	Size               int     `yaml:"size"`
	ObstaclePercentage float64 `yaml:"obstacle_percentage"`
	Seed               uint64  `yaml:"seed"`
	BlockByObstacles   *bool   `yaml:"block_by_obstacles"`
	AllowCellSharing   *bool   `yaml:"allow_cell_sharing"`
}

// RoleGroup mirrors one agent group in agents.yaml.
type RoleGroup struct {
	Count   int `yaml:"count"`
	Speed   int `yaml:"speed"`
	Stamina int `yaml:"stamina"`
}

// Agents mirrors agents.yaml.
type Agents struct {
	Predators RoleGroup `yaml:"predators"`
	Preys     RoleGroup `yaml:"preys"`
}

// Observations mirrors observations.yaml.
type Observations struct {
	Type   string `yaml:"type"`
	Params struct {
		Radius           *int  `yaml:"radius"`
		IncludeAgents    *bool `yaml:"include_agents"`
		IncludeObstacles *bool `yaml:"include_obstacles"`
	} `yaml:"params"`
}

// Shaping is one entry of the rewards.yaml shaping list.
type Shaping struct {
	Name   string  `yaml:"name"`
	Weight float64 `yaml:"weight"`
}

// Rewards mirrors rewards.yaml.
type Rewards struct {
	Base struct {
		Enabled bool    `yaml:"enabled"`
		Weight  float64 `yaml:"weight"`
	} `yaml:"base"`
	Shaping []Shaping `yaml:"shaping"`
}

// Experiment mirrors experiment.yaml.
type Experiment struct {
	Name    string `yaml:"name"`
	Runtime struct {
		Episodes int `yaml:"episodes"`
		Horizon  int `yaml:"horizon"`
	} `yaml:"runtime"`
	Learning struct {
		Alpha        float64 `yaml:"alpha"`
		Gamma        float64 `yaml:"gamma"`
		EpsilonStart float64 `yaml:"epsilon_start"`
		EpsilonEnd   float64 `yaml:"epsilon_end"`
		EpsilonDecay float64 `yaml:"epsilon_decay"`
		DecayEvery   int     `yaml:"decay_every"`
	} `yaml:"learning"`
	Checkpoint struct {
		Every int `yaml:"every"`
	} `yaml:"checkpoint"`
	Pinned struct {
		Agent  string `yaml:"agent"`
		Action *int   `yaml:"action"`
	} `yaml:"pinned"`
	Window int `yaml:"window"`
}

// Config is the resolved experiment configuration.
type Config struct {
	Env          Env
	Agents       Agents
	Observations Observations
	Rewards      Rewards
	Experiment   Experiment
}

func loadYAML(path string, key string, out any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	var doc map[string]yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	node, ok := doc[key]
	if !ok {
		return fmt.Errorf("%s: missing top-level key %q", path, key)
	}
	if err := node.Decode(out); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}

// Load reads the five config files from dir.
func Load(dir string) (*Config, error) {
	cfg := &Config{}
	if err := loadYAML(filepath.Join(dir, "env.yaml"), "env", &cfg.Env); err != nil {
		return nil, err
	}
	if err := loadYAML(filepath.Join(dir, "agents.yaml"), "agents", &cfg.Agents); err != nil {
		return nil, err
	}
	if err := loadYAML(filepath.Join(dir, "observations.yaml"), "observations", &cfg.Observations); err != nil {
		return nil, err
	}
	if err := loadYAML(filepath.Join(dir, "rewards.yaml"), "rewards", &cfg.Rewards); err != nil {
		return nil, err
	}
	if err := loadYAML(filepath.Join(dir, "experiment.yaml"), "experiment", &cfg.Experiment); err != nil {
		return nil, err
	}
	return cfg, nil
}

// BuildAgents constructs the agent list in canonical order: predators
// first, then preys, numbered from 1.
func (c *Config) BuildAgents() []*gridworld.Agent {
	agents := make([]*gridworld.Agent, 0, c.Agents.Predators.Count+c.Agents.Preys.Count)
	for i := 0; i < c.Agents.Predators.Count; i++ {
		ag := gridworld.NewAgent(fmt.Sprintf("predator_%d", i+1), gridworld.Predator, fmt.Sprintf("predator_%d", i+1))
		if c.Agents.Predators.Speed > 0 {
			ag.Speed = c.Agents.Predators.Speed
		}
		if c.Agents.Predators.Stamina > 0 {
			ag.Stamina = c.Agents.Predators.Stamina
		}
		agents = append(agents, ag)
	}
	for i := 0; i < c.Agents.Preys.Count; i++ {
		ag := gridworld.NewAgent(fmt.Sprintf("prey_%d", i+1), gridworld.Prey, fmt.Sprintf("prey_%d", i+1))
		if c.Agents.Preys.Speed > 0 {
			ag.Speed = c.Agents.Preys.Speed
		}
		if c.Agents.Preys.Stamina > 0 {
			ag.Stamina = c.Agents.Preys.Stamina
		}
		agents = append(agents, ag)
	}
	return agents
}

// BuildEnvironment constructs the environment with the configured
// observation builder and reward shaping attached.
func (c *Config) BuildEnvironment(seed uint64) (*gridworld.Environment, error) {
	env, err := gridworld.NewEnvironment(gridworld.Config{
		Size:               c.Env.Size,
		ObstaclePercentage: c.Env.ObstaclePercentage,
		Seed:               seed,
	}, c.BuildAgents())
	if err != nil {
		return nil, err
	}
	if c.Env.BlockByObstacles != nil {
		env.BlockByObstacles = *c.Env.BlockByObstacles
	}
	if c.Env.AllowCellSharing != nil {
		env.AllowCellSharing = *c.Env.AllowCellSharing
	}

	obsName := c.Observations.Type
	if obsName == "" {
		obsName = "default"
	}
	obsParams := gridworld.DefaultObservationParams()
	if c.Observations.Params.Radius != nil {
		obsParams.Radius = *c.Observations.Params.Radius
	}
	if c.Observations.Params.IncludeAgents != nil {
		obsParams.IncludeAgents = *c.Observations.Params.IncludeAgents
	}
	if c.Observations.Params.IncludeObstacles != nil {
		obsParams.IncludeObstacles = *c.Observations.Params.IncludeObstacles
	}
	builder, err := gridworld.GetObservationBuilder(obsName, obsParams)
	if err != nil {
		return nil, err
	}
	env.SetObservationBuilder(builder)

	var shapers []gridworld.RewardFunc
	if c.Rewards.Base.Enabled {
		weight := c.Rewards.Base.Weight
		if weight == 0 {
			weight = 1
		}
		fn, err := gridworld.GetRewardFunc("base", gridworld.RewardParams{Weight: weight})
		if err != nil {
			return nil, err
		}
		shapers = append(shapers, fn)
	}
	for _, s := range c.Rewards.Shaping {
		weight := s.Weight
		if weight == 0 {
			weight = 1
		}
		fn, err := gridworld.GetRewardFunc(s.Name, gridworld.RewardParams{Weight: weight})
		if err != nil {
			return nil, err
		}
		shapers = append(shapers, fn)
	}
	if len(shapers) > 0 {
		env.SetRewardFunc(gridworld.CombineRewards(shapers...))
	}
	return env, nil
}

// TrainerConfig resolves the trainer parameters. The checkpoint path is
// decided by the caller (it depends on the save directory).
func (c *Config) TrainerConfig(checkpointPath string) trainer.Config {
	pinnedAction := trainer.PinnedActionNone
	if c.Experiment.Pinned.Action != nil {
		pinnedAction = *c.Experiment.Pinned.Action
	}
	return trainer.Config{
		Episodes:        c.Experiment.Runtime.Episodes,
		Horizon:         c.Experiment.Runtime.Horizon,
		Alpha:           c.Experiment.Learning.Alpha,
		Gamma:           c.Experiment.Learning.Gamma,
		EpsilonStart:    c.Experiment.Learning.EpsilonStart,
		EpsilonEnd:      c.Experiment.Learning.EpsilonEnd,
		EpsilonDecay:    c.Experiment.Learning.EpsilonDecay,
		DecayEvery:      c.Experiment.Learning.DecayEvery,
		CheckpointEvery: c.Experiment.Checkpoint.Every,
		CheckpointPath:  checkpointPath,
		Seed:            c.Env.Seed,
		PinnedAgent:     c.Experiment.Pinned.Agent,
		PinnedAction:    pinnedAction,
		Window:          c.Experiment.Window,
	}
}

// Default returns the configuration used when no config directory is
// given: an 8x8 grid, one predator, one pinned noop prey.
func Default() *Config {
	cfg := &Config{}
	cfg.Env.Size = 8
	cfg.Env.ObstaclePercentage = 10
	cfg.Agents.Predators = RoleGroup{Count: 1, Speed: 1, Stamina: 10}
	cfg.Agents.Preys = RoleGroup{Count: 1, Speed: 3, Stamina: 10}
	cfg.Observations.Type = "default"
	cfg.Experiment.Name = "pursuit"
	cfg.Experiment.Runtime.Episodes = 5000
	cfg.Experiment.Runtime.Horizon = 200
	cfg.Experiment.Learning.Alpha = 0.25
	cfg.Experiment.Learning.Gamma = 0.95
	cfg.Experiment.Learning.EpsilonStart = 1.0
	cfg.Experiment.Learning.EpsilonEnd = 0.1
	cfg.Experiment.Learning.EpsilonDecay = 0.99
	cfg.Experiment.Learning.DecayEvery = 100
	cfg.Experiment.Checkpoint.Every = 1000
	cfg.Experiment.Pinned.Agent = "prey_1"
	noop := gridworld.ActionNoop
	cfg.Experiment.Pinned.Action = &noop
	cfg.Experiment.Window = 100
	return cfg
}
