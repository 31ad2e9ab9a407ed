package trainer

import "github.com/zeu5/pursuit-rl/gridworld"

// PotentialFunc is a pure scalar function of a position, used only for
// potential-based reward shaping. It must never have side effects.
type PotentialFunc func(p gridworld.Point) float64

// ZeroPotential disables shaping.
func ZeroPotential(gridworld.Point) float64 { return 0 }

// CenterPotential rewards proximity to the grid center: the potential is
// the negated Manhattan distance to the center cell.
func CenterPotential(size int) PotentialFunc {
	center := gridworld.Point{X: size / 2, Y: size / 2}
	return func(p gridworld.Point) float64 {
		return -float64(gridworld.ManhattanDist(p, center))
	}
}
