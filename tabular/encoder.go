// Package tabular holds the joint state/action codecs and the dense Q-table
// used by the centralized trainer. Encodings are positional: the first agent
// in the canonical order is always the most significant digit.
package tabular

import (
	"fmt"

	"github.com/zeu5/pursuit-rl/gridworld"
)

// StateEncoder maps an ordered list of agent positions to one integer via
// mixed-radix encoding with base Size: agent 0's x is most significant,
// then agent 0's y, then agent 1's x, and so on. The encoding is bijective
// onto [0, Size^(2*NumAgents)).
type StateEncoder struct {
	Size      int
	NumAgents int
}

// NewStateEncoder validates the grid size and agent count.
func NewStateEncoder(size, numAgents int) (*StateEncoder, error) {
	if size <= 0 {
		return nil, fmt.Errorf("state encoder needs a positive grid size, got %d", size)
	}
	if numAgents <= 0 {
		return nil, fmt.Errorf("state encoder needs at least one agent, got %d", numAgents)
	}
	return &StateEncoder{Size: size, NumAgents: numAgents}, nil
}

// NumStates returns Size^(2*NumAgents), the size of the joint state space.
func (e *StateEncoder) NumStates() int {
	n := 1
	for i := 0; i < 2*e.NumAgents; i++ {
		n *= e.Size
	}
	return n
}

// Encode maps positions to the joint state index. It is total over legal
// states; an out-of-range coordinate or a wrong position count is an error.
func (e *StateEncoder) Encode(positions []gridworld.Point) (int, error) {
	if len(positions) != e.NumAgents {
		return 0, fmt.Errorf("expected %d positions, got %d", e.NumAgents, len(positions))
	}
	idx := 0
	for i, p := range positions {
		if p.X < 0 || p.X >= e.Size || p.Y < 0 || p.Y >= e.Size {
			return 0, fmt.Errorf("position %d (%d,%d) outside [0,%d)", i, p.X, p.Y, e.Size)
		}
		idx = idx*e.Size + p.X
		idx = idx*e.Size + p.Y
	}
	return idx, nil
}

// Decode recovers the ordered positions from a joint state index.
func (e *StateEncoder) Decode(idx int) ([]gridworld.Point, error) {
	if idx < 0 || idx >= e.NumStates() {
		return nil, fmt.Errorf("state index %d outside [0,%d)", idx, e.NumStates())
	}
	positions := make([]gridworld.Point, e.NumAgents)
	for i := e.NumAgents - 1; i >= 0; i-- {
		positions[i].Y = idx % e.Size
		idx /= e.Size
		positions[i].X = idx % e.Size
		idx /= e.Size
	}
	return positions, nil
}

// JointActionCodec encodes an ordered per-agent action vector to one
// integer via base-NumActions positional encoding, first agent most
// significant. decode(encode(v)) == v for every valid vector v.
type JointActionCodec struct {
	NumAgents  int
	NumActions int
}

// NewJointActionCodec validates the agent and action counts.
func NewJointActionCodec(numAgents, numActions int) (*JointActionCodec, error) {
	if numAgents <= 0 {
		return nil, fmt.Errorf("action codec needs at least one agent, got %d", numAgents)
	}
	if numActions <= 0 {
		return nil, fmt.Errorf("action codec needs a positive action count, got %d", numActions)
	}
	return &JointActionCodec{NumAgents: numAgents, NumActions: numActions}, nil
}

// NumJointActions returns NumActions^NumAgents.
func (c *JointActionCodec) NumJointActions() int {
	n := 1
	for i := 0; i < c.NumAgents; i++ {
		n *= c.NumActions
	}
	return n
}

// Encode maps a per-agent action vector to the joint action index.
func (c *JointActionCodec) Encode(actions []int) (int, error) {
	if len(actions) != c.NumAgents {
		return 0, fmt.Errorf("expected %d actions, got %d", c.NumAgents, len(actions))
	}
	idx := 0
	for i, a := range actions {
		if a < 0 || a >= c.NumActions {
			return 0, fmt.Errorf("action %d for agent %d outside [0,%d)", a, i, c.NumActions)
		}
		idx = idx*c.NumActions + a
	}
	return idx, nil
}

// Decode recovers the per-agent action vector, least significant (last)
// agent first by repeated modulo/divide.
func (c *JointActionCodec) Decode(idx int) ([]int, error) {
	if idx < 0 || idx >= c.NumJointActions() {
		return nil, fmt.Errorf("joint action index %d outside [0,%d)", idx, c.NumJointActions())
	}
	actions := make([]int, c.NumAgents)
	for i := c.NumAgents - 1; i >= 0; i-- {
		actions[i] = idx % c.NumActions
		idx /= c.NumActions
	}
	return actions, nil
}
