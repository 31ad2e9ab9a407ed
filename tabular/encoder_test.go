package tabular

import (
	"testing"

	"github.com/zeu5/pursuit-rl/gridworld"
)

func TestJointActionRoundTrip(t *testing.T) {
	for _, numAgents := range []int{1, 2, 3} {
		codec, err := NewJointActionCodec(numAgents, gridworld.NumActions)
		if err != nil {
			t.Fatalf("NewJointActionCodec(%d): %v", numAgents, err)
		}
		for idx := 0; idx < codec.NumJointActions(); idx++ {
			actions, err := codec.Decode(idx)
			if err != nil {
				t.Fatalf("Decode(%d): %v", idx, err)
			}
			back, err := codec.Encode(actions)
			if err != nil {
				t.Fatalf("Encode(%v): %v", actions, err)
			}
			if back != idx {
				t.Fatalf("agents=%d: encode(decode(%d))=%d", numAgents, idx, back)
			}
		}
	}
}

func TestJointActionOrdering(t *testing.T) {
	codec, err := NewJointActionCodec(2, 5)
	if err != nil {
		t.Fatalf("NewJointActionCodec: %v", err)
	}
	// the first agent is the most significant digit
	idx, err := codec.Encode([]int{3, 1})
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if idx != 3*5+1 {
		t.Errorf("index=%d want=%d", idx, 3*5+1)
	}
}

func TestJointActionBounds(t *testing.T) {
	codec, _ := NewJointActionCodec(2, 5)
	if _, err := codec.Encode([]int{5, 0}); err == nil {
		t.Error("expected error for out-of-range action")
	}
	if _, err := codec.Encode([]int{0}); err == nil {
		t.Error("expected error for wrong vector length")
	}
	if _, err := codec.Decode(25); err == nil {
		t.Error("expected error for out-of-range index")
	}
	if _, err := codec.Decode(-1); err == nil {
		t.Error("expected error for negative index")
	}
}

func TestStateEncodeBijective(t *testing.T) {
	enc, err := NewStateEncoder(3, 2)
	if err != nil {
		t.Fatalf("NewStateEncoder: %v", err)
	}
	if enc.NumStates() != 81 {
		t.Fatalf("NumStates=%d want=81", enc.NumStates())
	}
	seen := make(map[int]bool, enc.NumStates())
	for ax := 0; ax < 3; ax++ {
		for ay := 0; ay < 3; ay++ {
			for bx := 0; bx < 3; bx++ {
				for by := 0; by < 3; by++ {
					positions := []gridworld.Point{{X: ax, Y: ay}, {X: bx, Y: by}}
					idx, err := enc.Encode(positions)
					if err != nil {
						t.Fatalf("Encode(%v): %v", positions, err)
					}
					if idx < 0 || idx >= enc.NumStates() {
						t.Fatalf("index %d outside [0,81)", idx)
					}
					if seen[idx] {
						t.Fatalf("collision at index %d for %v", idx, positions)
					}
					seen[idx] = true

					back, err := enc.Decode(idx)
					if err != nil {
						t.Fatalf("Decode(%d): %v", idx, err)
					}
					if back[0] != positions[0] || back[1] != positions[1] {
						t.Fatalf("decode(%d)=%v want=%v", idx, back, positions)
					}
				}
			}
		}
	}
	if len(seen) != enc.NumStates() {
		t.Fatalf("covered %d states, want %d", len(seen), enc.NumStates())
	}
}

func TestStateEncodeMixedRadix(t *testing.T) {
	enc, err := NewStateEncoder(8, 2)
	if err != nil {
		t.Fatalf("NewStateEncoder: %v", err)
	}
	idx, err := enc.Encode([]gridworld.Point{{X: 2, Y: 5}, {X: 7, Y: 1}})
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	want := 2*8*8*8 + 5*8*8 + 7*8 + 1
	if idx != want {
		t.Errorf("index=%d want=%d", idx, want)
	}
}

func TestStateEncodeBounds(t *testing.T) {
	enc, _ := NewStateEncoder(4, 2)
	if _, err := enc.Encode([]gridworld.Point{{X: 4, Y: 0}, {X: 0, Y: 0}}); err == nil {
		t.Error("expected error for out-of-range coordinate")
	}
	if _, err := enc.Encode([]gridworld.Point{{X: 0, Y: 0}}); err == nil {
		t.Error("expected error for wrong position count")
	}
	if _, err := enc.Decode(enc.NumStates()); err == nil {
		t.Error("expected error for out-of-range index")
	}
}
