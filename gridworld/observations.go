package gridworld

import (
	"fmt"
	"math"
	"sort"
)

// Observation is one agent's view of the world. Which fields are populated
// depends on the builder that produced it.
type Observation struct {
	// Local is always the agent's own position.
	Local Point `json:"local"`

	// populated by the default builder
	DistAgents    map[string]int `json:"dist_agents,omitempty"`
	DistObstacles map[string]int `json:"dist_obstacles,omitempty"`

	// populated by the local_radius builder
	VisibleAgents    map[string]VisibleEntry `json:"visible_agents,omitempty"`
	VisibleObstacles map[string]VisibleEntry `json:"visible_obstacles,omitempty"`
	Radius           int                     `json:"radius,omitempty"`
}

// VisibleEntry describes one entity within a radius-limited view.
type VisibleEntry struct {
	RelPos Point `json:"rel_pos"`
	Dist   int   `json:"dist"`
	Role   Role  `json:"role,omitempty"`
}

// Observations maps agent name to that agent's observation.
type Observations map[string]Observation

// ObservationParams carries builder parameters resolved from configuration.
type ObservationParams struct {
	Radius           int
	IncludeAgents    bool
	IncludeObstacles bool
}

// DefaultObservationParams returns the parameter defaults applied when a
// config leaves them unset.
func DefaultObservationParams() ObservationParams {
	return ObservationParams{Radius: 3, IncludeAgents: true, IncludeObstacles: true}
}

// DefaultObservations gives every agent its own position plus integer
// euclidean distances to all other agents and all obstacles.
func DefaultObservations(env *Environment) Observations {
	obs := make(Observations, len(env.Agents))
	for _, ag := range env.Agents {
		distAgents := make(map[string]int)
		for _, other := range env.Agents {
			if other.Name == ag.Name {
				continue
			}
			distAgents[other.Name] = euclideanDist(ag.Pos, other.Pos)
		}
		distObstacles := make(map[string]int)
		for i, p := range env.Obstacles() {
			distObstacles[fmt.Sprintf("obstacle_%d", i)] = euclideanDist(ag.Pos, p)
		}
		obs[ag.Name] = Observation{
			Local:         ag.Pos,
			DistAgents:    distAgents,
			DistObstacles: distObstacles,
		}
	}
	return obs
}

// LocalOnlyObservations gives every agent only its own position.
func LocalOnlyObservations(env *Environment) Observations {
	obs := make(Observations, len(env.Agents))
	for _, ag := range env.Agents {
		obs[ag.Name] = Observation{Local: ag.Pos}
	}
	return obs
}

// LocalRadiusObservations restricts each agent's view to entities within a
// Manhattan radius, reporting relative position, distance and role.
func LocalRadiusObservations(params ObservationParams) ObservationBuilder {
	return func(env *Environment) Observations {
		obs := make(Observations, len(env.Agents))
		for _, ag := range env.Agents {
			visAgents := make(map[string]VisibleEntry)
			if params.IncludeAgents {
				for _, other := range env.Agents {
					if other.Name == ag.Name {
						continue
					}
					d := ManhattanDist(ag.Pos, other.Pos)
					if d > params.Radius {
						continue
					}
					visAgents[other.Name] = VisibleEntry{
						RelPos: Point{X: other.Pos.X - ag.Pos.X, Y: other.Pos.Y - ag.Pos.Y},
						Dist:   d,
						Role:   other.Role,
					}
				}
			}
			visObstacles := make(map[string]VisibleEntry)
			if params.IncludeObstacles {
				for i, p := range env.Obstacles() {
					d := ManhattanDist(ag.Pos, p)
					if d > params.Radius {
						continue
					}
					visObstacles[fmt.Sprintf("obstacle_%d", i)] = VisibleEntry{
						RelPos: Point{X: p.X - ag.Pos.X, Y: p.Y - ag.Pos.Y},
						Dist:   d,
					}
				}
			}
			obs[ag.Name] = Observation{
				Local:            ag.Pos,
				VisibleAgents:    visAgents,
				VisibleObstacles: visObstacles,
				Radius:           params.Radius,
			}
		}
		return obs
	}
}

// observation builders are a dispatch table keyed by config name, not a
// type hierarchy
var observationRegistry = map[string]func(ObservationParams) ObservationBuilder{
	"default": func(ObservationParams) ObservationBuilder {
		return DefaultObservations
	},
	"local_only": func(ObservationParams) ObservationBuilder {
		return LocalOnlyObservations
	},
	"local_radius": LocalRadiusObservations,
}

// GetObservationBuilder resolves a builder by registry name. Unknown names
// produce an error enumerating the valid ones.
func GetObservationBuilder(name string, params ObservationParams) (ObservationBuilder, error) {
	ctor, ok := observationRegistry[name]
	if !ok {
		return nil, fmt.Errorf("unknown observation type %q, available: %v", name, ObservationNames())
	}
	return ctor(params), nil
}

// RegisterObservation adds a builder constructor under the given name,
// replacing any existing registration.
func RegisterObservation(name string, ctor func(ObservationParams) ObservationBuilder) {
	observationRegistry[name] = ctor
}

// ObservationNames lists the registered builder names, sorted.
func ObservationNames() []string {
	names := make([]string, 0, len(observationRegistry))
	for name := range observationRegistry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func euclideanDist(a, b Point) int {
	dx := float64(a.X - b.X)
	dy := float64(a.Y - b.Y)
	return int(math.Sqrt(dx*dx + dy*dy))
}
