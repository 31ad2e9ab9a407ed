package tabular

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// QTable is the dense joint Q-value table: one row per joint state, one
// column per joint action, zero-initialized. The trainer is its sole owner
// and mutator.
type QTable struct {
	numStates  int
	numActions int
	values     []float64 // row-major, len = numStates*numActions
}

// NewQTable allocates a zeroed table.
func NewQTable(numStates, numActions int) (*QTable, error) {
	if numStates <= 0 || numActions <= 0 {
		return nil, fmt.Errorf("q-table dimensions must be positive, got %dx%d", numStates, numActions)
	}
	return &QTable{
		numStates:  numStates,
		numActions: numActions,
		values:     make([]float64, numStates*numActions),
	}, nil
}

func (q *QTable) NumStates() int  { return q.numStates }
func (q *QTable) NumActions() int { return q.numActions }

// Row returns the mutable action-value vector for a state. The bounds are
// the caller's contract; the trainer validates table size against the
// encoder at construction, so an out-of-range state here is a bug.
func (q *QTable) Row(state int) []float64 {
	return q.values[state*q.numActions : (state+1)*q.numActions]
}

// Max returns the largest value in the state's row.
func (q *QTable) Max(state int) float64 {
	row := q.Row(state)
	max := row[0]
	for _, v := range row[1:] {
		if v > max {
			max = v
		}
	}
	return max
}

// ArgMax returns the index of the largest value in the state's row, ties
// broken by the lowest index.
func (q *QTable) ArgMax(state int) int {
	row := q.Row(state)
	best := 0
	for i, v := range row {
		if v > row[best] {
			best = i
		}
	}
	return best
}

// ArgMaxAmong returns the member of candidates whose value is largest,
// ties broken by the earliest candidate. Candidates must be non-empty.
func (q *QTable) ArgMaxAmong(state int, candidates []int) int {
	row := q.Row(state)
	best := candidates[0]
	for _, a := range candidates[1:] {
		if row[a] > row[best] {
			best = a
		}
	}
	return best
}

// checkpoint is the serialized form: a single named array plus its
// dimensions, so a loader can validate before use.
type checkpoint struct {
	States  int       `json:"states"`
	Actions int       `json:"actions"`
	Central []float64 `json:"central"`
}

// Save writes the table under path. The write goes to a temporary file in
// the same directory and is renamed into place, so a crash mid-write never
// clobbers the previous valid checkpoint. Saving over an existing file is
// idempotent.
func (q *QTable) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create checkpoint dir: %w", err)
	}
	data, err := json.Marshal(checkpoint{
		States:  q.numStates,
		Actions: q.numActions,
		Central: q.values,
	})
	if err != nil {
		return fmt.Errorf("marshal checkpoint: %w", err)
	}
	tmpPath := path + ".tmp"
	_ = os.Remove(tmpPath)
	if err := os.WriteFile(tmpPath, data, 0o644); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("write checkpoint: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("rename checkpoint: %w", err)
	}
	return nil
}

// LoadQTable reads a checkpoint written by Save.
func LoadQTable(path string) (*QTable, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read checkpoint: %w", err)
	}
	var cp checkpoint
	if err := json.Unmarshal(data, &cp); err != nil {
		return nil, fmt.Errorf("unmarshal checkpoint: %w", err)
	}
	if cp.States <= 0 || cp.Actions <= 0 || len(cp.Central) != cp.States*cp.Actions {
		return nil, fmt.Errorf("checkpoint dimensions %dx%d do not match %d values",
			cp.States, cp.Actions, len(cp.Central))
	}
	return &QTable{
		numStates:  cp.States,
		numActions: cp.Actions,
		values:     cp.Central,
	}, nil
}

// Stats summarizes the table for inspection and monitoring.
type Stats struct {
	States   int     `json:"states"`
	Actions  int     `json:"actions"`
	NonZero  int     `json:"non_zero"`
	MinValue float64 `json:"min_value"`
	MaxValue float64 `json:"max_value"`
}

// Stats scans the table once and returns summary statistics.
func (q *QTable) Stats() Stats {
	s := Stats{States: q.numStates, Actions: q.numActions}
	if len(q.values) == 0 {
		return s
	}
	s.MinValue = q.values[0]
	s.MaxValue = q.values[0]
	for _, v := range q.values {
		if v != 0 {
			s.NonZero++
		}
		if v < s.MinValue {
			s.MinValue = v
		}
		if v > s.MaxValue {
			s.MaxValue = v
		}
	}
	return s
}
