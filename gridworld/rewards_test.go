package gridworld

import (
	"strings"
	"testing"
)

func TestPredatorDistanceReward(t *testing.T) {
	pred := NewAgent("predator_1", Predator, "predator_1")
	preyNear := NewAgent("prey_1", Prey, "prey_1")
	preyFar := NewAgent("prey_2", Prey, "prey_2")
	env := newTestEnv(t, 8, []*Agent{pred, preyNear, preyFar},
		[]Point{{X: 0, Y: 0}, {X: 2, Y: 1}, {X: 7, Y: 7}})

	fn := PredatorDistanceReward(RewardParams{Weight: 0.5})
	rewards := fn(env)
	// nearest prey is at manhattan distance 3
	if got := rewards["predator_1"]; got != -1.5 {
		t.Errorf("predator shaping=%v want=-1.5", got)
	}
	if rewards["prey_1"] != 0 || rewards["prey_2"] != 0 {
		t.Errorf("prey shaping should be zero, got %v", rewards)
	}
}

func TestSurvivalReward(t *testing.T) {
	pred := NewAgent("predator_1", Predator, "predator_1")
	prey := NewAgent("prey_1", Prey, "prey_1")
	env := newTestEnv(t, 4, []*Agent{pred, prey}, []Point{{X: 0, Y: 0}, {X: 3, Y: 3}})

	fn := SurvivalReward(RewardParams{Weight: 2})
	rewards := fn(env)
	if rewards["prey_1"] != 2 || rewards["predator_1"] != 0 {
		t.Errorf("rewards=%v", rewards)
	}
}

func TestShapingAddedToBaseReward(t *testing.T) {
	pred := NewAgent("predator_1", Predator, "predator_1")
	prey := NewAgent("prey_1", Prey, "prey_1")
	env := newTestEnv(t, 6, []*Agent{pred, prey}, []Point{{X: 0, Y: 0}, {X: 5, Y: 5}})
	env.SetRewardFunc(CombineRewards(
		PredatorDistanceReward(RewardParams{Weight: 1}),
		SurvivalReward(RewardParams{Weight: 1}),
	))

	res, err := env.Step(map[string]int{"predator_1": ActionNoop, "prey_1": ActionNoop})
	if err != nil {
		t.Fatalf("Step: %v", err)
	}
	// base -5 plus distance shaping -10
	if got := res.Rewards["predator_1"]; got != -15 {
		t.Errorf("predator reward=%v want=-15", got)
	}
	// base 0 plus survival 1
	if got := res.Rewards["prey_1"]; got != 1 {
		t.Errorf("prey reward=%v want=1", got)
	}
}

func TestRewardRegistryUnknownName(t *testing.T) {
	_, err := GetRewardFunc("nope", RewardParams{Weight: 1})
	if err == nil {
		t.Fatal("expected error for unknown reward name")
	}
	for _, name := range []string{"base", "predator_distance", "survival"} {
		if !strings.Contains(err.Error(), name) {
			t.Errorf("error %q should enumerate %q", err.Error(), name)
		}
	}
}
