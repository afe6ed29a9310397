package engine

import (
	"fmt"
	"slices"
)

// ValidateTiles checks that a tile list can be loaded as a board at all.
// Invariant violations the board can repair are not errors here; see AuditTiles.
func ValidateTiles(tiles []Tile) error {
	if len(tiles) == 0 {
		return fmt.Errorf("board validation: %w", ErrEmptyImportData)
	}
	if len(tiles) > MaxBoardTiles {
		return fmt.Errorf("board validation: at most %d tiles allowed, got %d", MaxBoardTiles, len(tiles))
	}
	for i, t := range tiles {
		if !t.Kind.Valid() {
			return fmt.Errorf("board validation: tile %d has unknown kind %q", i+1, t.Kind)
		}
	}
	return nil
}

// AuditTiles lists every board invariant a raw tile list violates, in tile
// order. A board built with NewBoard from the same list has none of them.
func AuditTiles(tiles []Tile) []string {
	var problems []string
	report := func(format string, args ...any) {
		problems = append(problems, fmt.Sprintf(format, args...))
	}

	byID := make(map[int]Tile, len(tiles))
	var rings []int
	for i, t := range tiles {
		if t.ID != i+1 {
			report("tile at position %d has id %d, want %d", i+1, t.ID, i+1)
		}
		if _, dup := byID[t.ID]; dup {
			report("duplicate tile id %d", t.ID)
		} else {
			byID[t.ID] = t
		}
		if t.Kind == Ring {
			rings = append(rings, t.ID)
		}
	}

	for _, t := range tiles {
		if !t.Kind.Valid() {
			report("tile %d: unknown kind %q", t.ID, t.Kind)
			continue
		}
		if t.Kind != Normal && t.Description != "" {
			report("tile %d: %s tiles carry no description", t.ID, t.Kind)
		}

		switch t.Kind {
		case Snake, Ladder:
			if t.Target == 0 {
				break
			}
			dest, ok := byID[t.Target]
			switch {
			case !ok:
				report("tile %d: target %d does not exist", t.ID, t.Target)
			case dest.Kind != Normal:
				report("tile %d: target %d is a %s tile, not normal", t.ID, t.Target, dest.Kind)
			case t.Kind == Snake && t.Target >= t.ID:
				report("tile %d: snake target %d must be lower", t.ID, t.Target)
			case t.Kind == Ladder && t.Target <= t.ID:
				report("tile %d: ladder target %d must be higher", t.ID, t.Target)
			}
		default:
			if t.Target != 0 {
				report("tile %d: %s tiles carry no target", t.ID, t.Kind)
			}
		}

		if t.Kind == Ring {
			want := slices.DeleteFunc(slices.Clone(rings), func(id int) bool { return id == t.ID })
			got := slices.Clone(t.RingTargets)
			slices.Sort(got)
			if !slices.Equal(got, want) {
				report("tile %d: ring targets %v, want %v", t.ID, t.RingTargets, want)
			}
		} else if len(t.RingTargets) > 0 {
			report("tile %d: %s tiles carry no ring targets", t.ID, t.Kind)
		}
	}
	return problems
}
