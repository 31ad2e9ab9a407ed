package gridworld

import "strings"

// BoardString renders the grid as ASCII, origin at the bottom-left.
// Obstacles are '#', predators 'P', prey 'p', other agents 'o'; a cell
// holding both a predator and a prey shows 'X'. Shared by tests and the
// terminal viewer.
func BoardString(env *Environment) string {
	grid := make([][]byte, env.Size)
	for y := range grid {
		grid[y] = make([]byte, env.Size)
		for x := range grid[y] {
			grid[y][x] = '.'
		}
	}
	for _, p := range env.Obstacles() {
		grid[p.Y][p.X] = '#'
	}
	for _, ag := range env.Agents {
		cur := grid[ag.Pos.Y][ag.Pos.X]
		var sym byte
		switch ag.Role {
		case Predator:
			sym = 'P'
		case Prey:
			sym = 'p'
		default:
			sym = 'o'
		}
		if (cur == 'P' && sym == 'p') || (cur == 'p' && sym == 'P') {
			sym = 'X'
		}
		grid[ag.Pos.Y][ag.Pos.X] = sym
	}
	var sb strings.Builder
	for y := env.Size - 1; y >= 0; y-- {
		for x := 0; x < env.Size; x++ {
			sb.WriteByte(grid[y][x])
			sb.WriteByte(' ')
		}
		sb.WriteByte('\n')
	}
	return sb.String()
}
