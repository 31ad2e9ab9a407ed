package gridworld

import (
	"fmt"
	"sort"
)

// RewardParams carries shaper parameters resolved from configuration.
type RewardParams struct {
	Weight float64
}

// BaseRewardFunc re-emits the environment's base reward scaled by weight.
// Useful as a config-toggled term in a combined shaping function.
func BaseRewardFunc(params RewardParams) RewardFunc {
	return func(env *Environment) map[string]float64 {
		rewards := env.baseReward()
		for name, r := range rewards {
			rewards[name] = params.Weight * r
		}
		return rewards
	}
}

// PredatorDistanceReward penalizes each predator by weight times the
// Manhattan distance to its nearest prey. All other agents get zero.
func PredatorDistanceReward(params RewardParams) RewardFunc {
	return func(env *Environment) map[string]float64 {
		rewards := make(map[string]float64, len(env.Agents))
		var preys []*Agent
		for _, ag := range env.Agents {
			rewards[ag.Name] = 0
			if ag.Role == Prey {
				preys = append(preys, ag)
			}
		}
		if len(preys) == 0 {
			return rewards
		}
		for _, ag := range env.Agents {
			if ag.Role != Predator {
				continue
			}
			nearest := ManhattanDist(ag.Pos, preys[0].Pos)
			for _, prey := range preys[1:] {
				if d := ManhattanDist(ag.Pos, prey.Pos); d < nearest {
					nearest = d
				}
			}
			rewards[ag.Name] = -params.Weight * float64(nearest)
		}
		return rewards
	}
}

// SurvivalReward pays each prey weight per step for staying alive.
func SurvivalReward(params RewardParams) RewardFunc {
	return func(env *Environment) map[string]float64 {
		rewards := make(map[string]float64, len(env.Agents))
		for _, ag := range env.Agents {
			if ag.Role == Prey {
				rewards[ag.Name] = params.Weight
			} else {
				rewards[ag.Name] = 0
			}
		}
		return rewards
	}
}

var rewardRegistry = map[string]func(RewardParams) RewardFunc{
	"base":              BaseRewardFunc,
	"predator_distance": PredatorDistanceReward,
	"survival":          SurvivalReward,
}

// GetRewardFunc resolves a shaper by registry name. Unknown names produce
// an error enumerating the valid ones.
func GetRewardFunc(name string, params RewardParams) (RewardFunc, error) {
	ctor, ok := rewardRegistry[name]
	if !ok {
		return nil, fmt.Errorf("unknown reward type %q, available: %v", name, RewardNames())
	}
	return ctor(params), nil
}

// RegisterReward adds a shaper constructor under the given name, replacing
// any existing registration.
func RegisterReward(name string, ctor func(RewardParams) RewardFunc) {
	rewardRegistry[name] = ctor
}

// RewardNames lists the registered shaper names, sorted.
func RewardNames() []string {
	names := make([]string, 0, len(rewardRegistry))
	for name := range rewardRegistry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// CombineRewards sums several shaping functions into one RewardFunc.
func CombineRewards(fns ...RewardFunc) RewardFunc {
	return func(env *Environment) map[string]float64 {
		total := make(map[string]float64, len(env.Agents))
		for _, ag := range env.Agents {
			total[ag.Name] = 0
		}
		for _, fn := range fns {
			for name, r := range fn(env) {
				if _, ok := total[name]; ok {
					total[name] += r
				}
			}
		}
		return total
	}
}
