package gridworld

import (
	"strconv"
	"strings"
)

// Role tags an agent as hunter or hunted. Roles drive capture detection
// and base rewards; everything else about an agent is plain data.
type Role string

const (
	Predator Role = "predator"
	Prey     Role = "prey"
	Other    Role = "other"
)

// Point is a cell on the grid.
type Point struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// ManhattanDist returns the L1 distance between two cells.
func ManhattanDist(a, b Point) int {
	dx := a.X - b.X
	if dx < 0 {
		dx = -dx
	}
	dy := a.Y - b.Y
	if dy < 0 {
		dy = -dy
	}
	return dx + dy
}

// The discrete action set. Every agent moves one cell per step (or stays).
const (
	ActionRight = 0
	ActionUp    = 1
	ActionLeft  = 2
	ActionDown  = 3
	ActionNoop  = 4

	NumActions = 5
)

var actionDirections = [NumActions]Point{
	{X: 1, Y: 0},
	{X: 0, Y: 1},
	{X: -1, Y: 0},
	{X: 0, Y: -1},
	{X: 0, Y: 0},
}

// ActionDirection maps an action to its unit delta. The caller is expected
// to have validated the action.
func ActionDirection(action int) Point {
	return actionDirections[action]
}

// Agent is a value record, not a behavior carrier. It does not pick actions,
// compute rewards or know the environment; it exposes identity and state.
// Only Environment.Step moves it.
type Agent struct {
	Name    string
	Role    Role
	Team    string
	Speed   int
	Stamina int
	Pos     Point
}

// NewAgent builds an agent with the per-role default speed and stamina.
func NewAgent(name string, role Role, team string) *Agent {
	speed := 1
	if role == Prey {
		speed = 3
	}
	return &Agent{
		Name:    name,
		Role:    role,
		Team:    team,
		Speed:   speed,
		Stamina: 10,
	}
}

// SubTeam parses the agent's team string into a sub-team id. Supported
// forms are "predator_2", "2" and empty (sub-team 1).
func (a *Agent) SubTeam() int {
	team := a.Team
	if team == "" {
		return 1
	}
	if i := strings.LastIndex(team, "_"); i >= 0 {
		team = team[i+1:]
	}
	id, err := strconv.Atoi(team)
	if err != nil || id < 1 {
		return 1
	}
	return id
}

// AgentInfo is the diagnostic metadata returned per agent from Reset and Step.
type AgentInfo struct {
	Name    string `json:"name"`
	Role    Role   `json:"role"`
	Team    string `json:"team"`
	Speed   int    `json:"speed"`
	Stamina int    `json:"stamina"`
}

func (a *Agent) info() AgentInfo {
	return AgentInfo{
		Name:    a.Name,
		Role:    a.Role,
		Team:    a.Team,
		Speed:   a.Speed,
		Stamina: a.Stamina,
	}
}
