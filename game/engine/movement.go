package engine

import (
	"math/rand/v2"
	"sync"
)

// Die produces values in [1, DieFaces]
type Die interface {
	Roll() int
}

// RandomDie is a fair six-sided die
type RandomDie struct{}

// Roll returns a uniformly random face
func (RandomDie) Roll() int {
	return rand.IntN(DieFaces) + 1
}

// RollD6 rolls a fair six-sided die
func RollD6() int {
	return RandomDie{}.Roll()
}

// SequenceDie replays a fixed list of faces, wrapping around at the end.
// It is safe for concurrent use.
type SequenceDie struct {
	mu    sync.Mutex
	faces []int
	next  int
}

// NewSequenceDie creates a die that yields faces in order
func NewSequenceDie(faces ...int) *SequenceDie {
	return &SequenceDie{faces: faces}
}

// Roll returns the next face in the sequence, or 1 if the sequence is empty
func (d *SequenceDie) Roll() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.faces) == 0 {
		return 1
	}
	face := d.faces[d.next%len(d.faces)]
	d.next++
	return face
}

// Teleport describes the hop taken from the landing tile
type Teleport struct {
	Kind     TileKind `json:"kind"`
	From     int      `json:"from"`
	To       int      `json:"to"`
	RingRoll int      `json:"ring_roll,omitempty"`
}

// MovePlan is a fully resolved roll: the tiles stepped through, the landing
// tile and at most one teleport hop.
type MovePlan struct {
	TeamID   string    `json:"team_id"`
	Roll     int       `json:"roll"`
	From     int       `json:"from"`
	Steps    []int     `json:"steps"`
	Landing  int       `json:"landing"`
	Teleport *Teleport `json:"teleport,omitempty"`
	Final    int       `json:"final"`
}

// Ticks returns the positions to apply one at a time: every step, then the
// teleport destination if there is one
func (p MovePlan) Ticks() []int {
	ticks := append([]int(nil), p.Steps...)
	if p.Teleport != nil {
		ticks = append(ticks, p.Teleport.To)
	}
	return ticks
}

// ResolveMove computes where a team at from ends up after rolling roll.
//
// The team advances one tile per pip and stops at the last tile rather than
// overshooting. The landing tile is then resolved exactly once: a snake or
// ladder with a target sends the team there, a ring with peers rolls die to
// choose among them, and any other tile leaves the team in place. The board
// is only read. Callers must not pass an empty board.
func ResolveMove(from, roll int, board *Board, die Die) MovePlan {
	plan := MovePlan{Roll: roll, From: from}

	last := board.LastID()
	pos := from
	for i := 0; i < roll && pos < last; i++ {
		pos++
		plan.Steps = append(plan.Steps, pos)
	}
	plan.Landing = pos
	plan.Final = pos

	tile, ok := board.Tile(pos)
	if !ok {
		return plan
	}

	switch tile.Kind {
	case Snake, Ladder:
		if tile.Target > 0 {
			plan.Teleport = &Teleport{Kind: tile.Kind, From: pos, To: tile.Target}
		}
	case Ring:
		if len(tile.RingTargets) > 0 {
			face := die.Roll()
			plan.Teleport = &Teleport{
				Kind:     Ring,
				From:     pos,
				To:       RingDestination(tile.RingTargets, face),
				RingRoll: face,
			}
		}
	}
	if plan.Teleport != nil {
		plan.Final = plan.Teleport.To
	}
	return plan
}

// RingDestination maps a die face onto one of a ring's targets.
//
// One target is always chosen. Two targets split the faces 1-3 and 4-6.
// Three or more split them 1-2, 3-4 and 5-6, so targets past the third are
// never chosen; a face that would select a missing target picks the first.
// Returns 0 if there are no targets.
func RingDestination(targets []int, face int) int {
	switch len(targets) {
	case 0:
		return 0
	case 1:
		return targets[0]
	case 2:
		if face <= 3 {
			return targets[0]
		}
		return targets[1]
	}

	idx := (face - 1) / 2
	if idx < 0 || idx >= len(targets) {
		return targets[0]
	}
	if idx > 2 {
		return targets[0]
	}
	return targets[idx]
}
