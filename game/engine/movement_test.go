package engine

import (
	"slices"
	"testing"
)

func TestRollD6_Range(t *testing.T) {
	seen := make(map[int]bool)
	for i := 0; i < 5000; i++ {
		v := RollD6()
		if v < 1 || v > 6 {
			t.Fatalf("roll out of range: %d", v)
		}
		seen[v] = true
	}
	if len(seen) != 6 {
		t.Errorf("Expected every face to come up, saw %v", seen)
	}
}

func TestSequenceDie(t *testing.T) {
	d := NewSequenceDie(3, 5)
	got := []int{d.Roll(), d.Roll(), d.Roll()}
	if !slices.Equal(got, []int{3, 5, 3}) {
		t.Errorf("Expected [3 5 3], got %v", got)
	}
	if NewSequenceDie().Roll() != 1 {
		t.Error("Expected an empty sequence to roll 1")
	}
}

func TestResolveMove_Clamp(t *testing.T) {
	b := NewBoard(normalTiles(5))

	plan := ResolveMove(3, 4, b, NewSequenceDie(1))

	if plan.Final != 5 || plan.Landing != 5 {
		t.Errorf("Expected to clamp at 5, got landing %d final %d", plan.Landing, plan.Final)
	}
	if !slices.Equal(plan.Steps, []int{4, 5}) {
		t.Errorf("Expected steps [4 5], got %v", plan.Steps)
	}
	if plan.Teleport != nil {
		t.Errorf("Expected no teleport, got %+v", plan.Teleport)
	}
}

func TestResolveMove_OnLastTile(t *testing.T) {
	b := NewBoard(normalTiles(5))

	plan := ResolveMove(5, 3, b, NewSequenceDie(1))

	if plan.Final != 5 || len(plan.Steps) != 0 || len(plan.Ticks()) != 0 {
		t.Errorf("Expected no movement from the last tile, got %+v", plan)
	}
}

func TestResolveMove_Ladder(t *testing.T) {
	tiles := normalTiles(15)
	tiles[4].Kind, tiles[4].Target = Ladder, 12
	b := NewBoard(tiles)

	plan := ResolveMove(2, 3, b, NewSequenceDie(1))

	if plan.Landing != 5 {
		t.Errorf("Expected landing on 5, got %d", plan.Landing)
	}
	if plan.Final != 12 {
		t.Errorf("Expected final 12, got %d", plan.Final)
	}
	if plan.Teleport == nil || plan.Teleport.Kind != Ladder || plan.Teleport.From != 5 {
		t.Errorf("Expected ladder teleport from 5, got %+v", plan.Teleport)
	}
	if !slices.Equal(plan.Ticks(), []int{3, 4, 5, 12}) {
		t.Errorf("Expected ticks [3 4 5 12], got %v", plan.Ticks())
	}
}

func TestResolveMove_Snake(t *testing.T) {
	tiles := normalTiles(10)
	tiles[7].Kind, tiles[7].Target = Snake, 2
	b := NewBoard(tiles)

	plan := ResolveMove(6, 2, b, NewSequenceDie(1))

	if plan.Final != 2 || plan.Teleport == nil || plan.Teleport.Kind != Snake {
		t.Errorf("Expected snake down to 2, got %+v", plan)
	}
}

func TestResolveMove_UnconnectedSpecialTile(t *testing.T) {
	tiles := normalTiles(10)
	tiles[3].Kind = Ladder
	tiles[5].Kind = Ring
	b := NewBoard(tiles)

	if plan := ResolveMove(1, 3, b, NewSequenceDie(1)); plan.Final != 4 || plan.Teleport != nil {
		t.Errorf("Expected to stay on the ladder without target, got %+v", plan)
	}
	if plan := ResolveMove(1, 5, b, NewSequenceDie(1)); plan.Final != 6 || plan.Teleport != nil {
		t.Errorf("Expected to stay on a lone ring, got %+v", plan)
	}
}

func TestResolveMove_SingleHop(t *testing.T) {
	// Snakes and ladders only point at normal tiles, so a ring peer is the
	// only special tile a teleport can reach
	tiles := normalTiles(20)
	tiles[4].Kind = Ring
	tiles[14].Kind = Ring
	b := NewBoard(tiles)

	plan := ResolveMove(1, 4, b, NewSequenceDie(6, 6))

	if plan.Final != 15 {
		t.Fatalf("Expected ring teleport to 15, got %d", plan.Final)
	}
	if !slices.Equal(plan.Ticks(), []int{2, 3, 4, 5, 15}) {
		t.Errorf("Expected exactly one teleport tick, got %v", plan.Ticks())
	}
}

func TestResolveMove_RingUsesSecondRoll(t *testing.T) {
	tiles := normalTiles(30)
	tiles[9].Kind = Ring
	tiles[19].Kind = Ring
	tiles[24].Kind = Ring
	b := NewBoard(tiles)

	tests := []struct {
		face int
		want int
	}{
		{1, 20}, {3, 20}, {4, 25}, {6, 25},
	}
	for _, tt := range tests {
		plan := ResolveMove(7, 3, b, NewSequenceDie(tt.face))
		if plan.Final != tt.want {
			t.Errorf("ring roll %d: expected %d, got %d", tt.face, tt.want, plan.Final)
		}
		if plan.Teleport == nil || plan.Teleport.RingRoll != tt.face {
			t.Errorf("ring roll %d: expected it recorded, got %+v", tt.face, plan.Teleport)
		}
	}
}

func TestResolveMove_DoesNotMutateBoard(t *testing.T) {
	tiles := normalTiles(12)
	tiles[2].Kind, tiles[2].Target = Ladder, 9
	tiles[5].Kind = Ring
	tiles[7].Kind = Ring
	b := NewBoard(tiles)
	before := b.Tiles()

	for from := 1; from <= 12; from++ {
		for roll := 1; roll <= 6; roll++ {
			ResolveMove(from, roll, b, RandomDie{})
		}
	}

	after := b.Tiles()
	for i := range before {
		if before[i].Target != after[i].Target || before[i].Kind != after[i].Kind ||
			!slices.Equal(before[i].RingTargets, after[i].RingTargets) {
			t.Fatalf("tile %d changed during resolution", i+1)
		}
	}
}

func TestRingDestination(t *testing.T) {
	tests := []struct {
		name    string
		targets []int
		faces   []int
		want    int
	}{
		{"no targets", nil, []int{1, 6}, 0},
		{"single target", []int{7}, []int{1, 2, 3, 4, 5, 6}, 7},
		{"two targets low", []int{7, 9}, []int{1, 2, 3}, 7},
		{"two targets high", []int{7, 9}, []int{4, 5, 6}, 9},
		{"three targets first", []int{7, 9, 11}, []int{1, 2}, 7},
		{"three targets second", []int{7, 9, 11}, []int{3, 4}, 9},
		{"three targets third", []int{7, 9, 11}, []int{5, 6}, 11},
		{"four targets never reach the fourth", []int{7, 9, 11, 13}, []int{5, 6}, 11},
		{"out of range face falls back", []int{7, 9, 11, 13}, []int{7, 8, 0}, 7},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for _, face := range tt.faces {
				if got := RingDestination(tt.targets, face); got != tt.want {
					t.Errorf("face %d: expected %d, got %d", face, tt.want, got)
				}
			}
		})
	}
}

func TestRingDestination_TwoTargetSplitIsStable(t *testing.T) {
	targets := []int{4, 8}
	for i := 0; i < 1000; i++ {
		face := RollD6()
		got := RingDestination(targets, face)
		if face <= 3 && got != 4 {
			t.Fatalf("face %d picked %d", face, got)
		}
		if face >= 4 && got != 8 {
			t.Fatalf("face %d picked %d", face, got)
		}
	}
}
