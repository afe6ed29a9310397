package engine

import (
	"encoding/json"
	"strings"
)

// TileKind identifies which variant a tile is
type TileKind string

const (
	Normal TileKind = "normal"
	Snake  TileKind = "snake"
	Ladder TileKind = "ladder"
	Ring   TileKind = "ring"

	// legacyRingKind is the kind name used by boards exported from the old web editor
	legacyRingKind = "fairy_ring"

	// Validation constants
	DieFaces            = 6
	StartPosition       = 1
	MaxBoardTiles       = 1000
	MaxTeams            = 64
	WebSocketBufferSize = 256
)

// kindCycle is the order used when cycling a tile through its kinds
var kindCycle = []TileKind{Normal, Snake, Ladder, Ring}

// ParseTileKind converts a kind name to a TileKind. The legacy "fairy_ring"
// spelling is accepted as Ring.
func ParseTileKind(s string) (TileKind, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case string(Normal):
		return Normal, true
	case string(Snake):
		return Snake, true
	case string(Ladder):
		return Ladder, true
	case string(Ring), legacyRingKind:
		return Ring, true
	}
	return "", false
}

// Valid reports whether k is one of the four tile kinds
func (k TileKind) Valid() bool {
	switch k {
	case Normal, Snake, Ladder, Ring:
		return true
	}
	return false
}

// Teleports reports whether landing on a tile of this kind can move a team
func (k TileKind) Teleports() bool {
	return k == Snake || k == Ladder || k == Ring
}

// Next returns the kind that follows k in the editor's cycle order
func (k TileKind) Next() TileKind {
	for i, kind := range kindCycle {
		if kind == k {
			return kindCycle[(i+1)%len(kindCycle)]
		}
	}
	return Normal
}

// Tile is one addressable cell of the board.
//
// Only the fields relevant to Kind are ever populated: Description on normal
// tiles, Target on snakes and ladders, RingTargets on rings. The Board keeps
// that true after every mutation.
type Tile struct {
	ID          int      `json:"id"`
	Label       string   `json:"label"`
	Description string   `json:"description,omitempty"`
	Kind        TileKind `json:"kind"`
	Target      int      `json:"target,omitempty"`
	RingTargets []int    `json:"ringTargets,omitempty"`
}

// UnmarshalJSON accepts both the current field names and the ones written by
// the old web editor (item, task, type, goesTo, fairyOptions).
func (t *Tile) UnmarshalJSON(data []byte) error {
	var raw struct {
		ID           int     `json:"id"`
		Label        *string `json:"label"`
		Item         string  `json:"item"`
		Description  *string `json:"description"`
		Task         string  `json:"task"`
		Kind         string  `json:"kind"`
		Type         string  `json:"type"`
		Target       *int    `json:"target"`
		GoesTo       int     `json:"goesTo"`
		RingTargets  []int   `json:"ringTargets"`
		FairyOptions []int   `json:"fairyOptions"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	*t = Tile{ID: raw.ID}
	t.Label = raw.Item
	if raw.Label != nil {
		t.Label = *raw.Label
	}
	t.Description = raw.Task
	if raw.Description != nil {
		t.Description = *raw.Description
	}

	kindName := raw.Kind
	if kindName == "" {
		kindName = raw.Type
	}
	if kindName == "" {
		t.Kind = Normal
	} else if kind, ok := ParseTileKind(kindName); ok {
		t.Kind = kind
	} else {
		// Unknown kinds are kept verbatim so validation can report them
		t.Kind = TileKind(kindName)
	}

	t.Target = raw.GoesTo
	if raw.Target != nil {
		t.Target = *raw.Target
	}
	t.RingTargets = raw.FairyOptions
	if raw.RingTargets != nil {
		t.RingTargets = raw.RingTargets
	}
	return nil
}

// Destinations returns every tile id a team could be sent to from this tile
func (t Tile) Destinations() []int {
	switch t.Kind {
	case Snake, Ladder:
		if t.Target > 0 {
			return []int{t.Target}
		}
	case Ring:
		return append([]int(nil), t.RingTargets...)
	}
	return nil
}

func (t Tile) clone() Tile {
	c := t
	if t.RingTargets != nil {
		c.RingTargets = append([]int(nil), t.RingTargets...)
	}
	return c
}

// Team is a player entity on the board
type Team struct {
	ID       string   `json:"id"`
	Name     string   `json:"name"`
	Color    string   `json:"color"`
	Position int      `json:"position"`
	Members  []string `json:"members"`
}

func (t Team) clone() Team {
	c := t
	c.Members = append([]string{}, t.Members...)
	return c
}

// TeamUpdate carries the display attributes an edit may change. Nil fields are left alone.
type TeamUpdate struct {
	Name    *string  `json:"name,omitempty"`
	Color   *string  `json:"color,omitempty"`
	Members []string `json:"members,omitempty"`
}

// Role is the local role toggle
type Role string

const (
	RoleLeader      Role = "leader"
	RoleParticipant Role = "participant"
)

// Snapshot is the read-only view handed to renderers after every mutation
type Snapshot struct {
	Tiles      []Tile `json:"tiles"`
	Teams      []Team `json:"teams"`
	Role       Role   `json:"role"`
	EditMode   bool   `json:"edit_mode"`
	MovingTeam string `json:"moving_team,omitempty"`
	LastRoll   int    `json:"last_roll,omitempty"`
	Message    string `json:"message"`
	TotalMoves int    `json:"total_moves"`
}

// MoveHistoryEntry represents a single completed roll in the game history
type MoveHistoryEntry struct {
	TeamID     string   `json:"team_id"`
	TeamName   string   `json:"team_name"`
	Roll       int      `json:"roll"`
	From       int      `json:"from"`
	Landing    int      `json:"landing"`
	To         int      `json:"to"`
	Teleport   TileKind `json:"teleport,omitempty"`
	RingRoll   int      `json:"ring_roll,omitempty"`
	Timestamp  int64    `json:"timestamp"`
	MoveNumber int      `json:"move_number"`
}
