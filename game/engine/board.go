package engine

import "sort"

// IDMap maps tile ids before a structural edit to ids after it. An old id
// that is missing from the map belonged to a tile that no longer exists.
type IDMap map[int]int

// Lookup returns the new id for old, or false when the tile is gone
func (m IDMap) Lookup(old int) (int, bool) {
	id, ok := m[old]
	return id, ok
}

// Board is the ordered tile sequence.
//
// Every exported mutating method leaves the board satisfying all invariants:
// ids are dense and equal to index+1, snake targets point backwards and
// ladder targets forwards at normal tiles only, and every ring targets all
// other rings.
type Board struct {
	tiles []Tile
}

// NewBoard builds a board from tiles, repairing anything that breaks an invariant
func NewBoard(tiles []Tile) *Board {
	b := &Board{}
	b.Replace(tiles)
	return b
}

// Len returns the number of tiles
func (b *Board) Len() int {
	return len(b.tiles)
}

// Empty reports whether the board has no tiles
func (b *Board) Empty() bool {
	return len(b.tiles) == 0
}

// LastID returns the id of the final tile, or 0 on an empty board
func (b *Board) LastID() int {
	return len(b.tiles)
}

// Tile looks up a tile by id
func (b *Board) Tile(id int) (Tile, bool) {
	if id < 1 || id > len(b.tiles) {
		return Tile{}, false
	}
	return b.tiles[id-1].clone(), true
}

// Tiles returns a copy of the whole sequence
func (b *Board) Tiles() []Tile {
	out := make([]Tile, len(b.tiles))
	for i, t := range b.tiles {
		out[i] = t.clone()
	}
	return out
}

// Insert adds a new normal tile at the given 0-based index and renumbers
// the board. A negative or out-of-range index appends.
func (b *Board) Insert(index int) (Tile, IDMap) {
	if index < 0 || index > len(b.tiles) {
		index = len(b.tiles)
	}

	// The new tile carries id 0 until renumbering so it never appears in the id map
	tile := Tile{
		Label:       "New Item 0",
		Description: "Complete task 0",
		Kind:        Normal,
	}

	tiles := make([]Tile, 0, len(b.tiles)+1)
	tiles = append(tiles, b.tiles[:index]...)
	tiles = append(tiles, tile)
	tiles = append(tiles, b.tiles[index:]...)
	b.tiles = tiles

	ids := b.renumber(true)
	return b.tiles[index].clone(), ids
}

// Remove deletes the tile with the given id. References to it are cleared
// and every other reference is remapped to the new ids.
func (b *Board) Remove(id int) (IDMap, bool) {
	if id < 1 || id > len(b.tiles) {
		return nil, false
	}
	b.tiles = append(b.tiles[:id-1], b.tiles[id:]...)
	return b.renumber(false), true
}

// Retype changes a tile's kind and clears the fields the new kind does not carry.
// An autogenerated label is replaced with the default for the new kind; an
// authored label is kept.
func (b *Board) Retype(id int, kind TileKind) bool {
	if !kind.Valid() || id < 1 || id > len(b.tiles) {
		return false
	}
	t := &b.tiles[id-1]
	if t.Kind == kind {
		return true
	}

	relabel := IsAutoLabel(t.Label)
	if kind != Normal {
		t.Description = ""
	} else if t.Description == "" && relabel {
		t.Description = DefaultDescription(t.ID)
	}
	if kind == Normal || kind == Ring {
		t.Target = 0
	}
	if kind != Ring {
		t.RingTargets = nil
	}
	t.Kind = kind
	if relabel {
		t.Label = DefaultLabel(kind, t.ID)
	}

	b.settle()
	return true
}

// CanConnect reports whether Connect(src, dst) would be applied
func (b *Board) CanConnect(src, dst int) bool {
	source, ok := b.Tile(src)
	if !ok || (source.Kind != Snake && source.Kind != Ladder) {
		return false
	}
	dest, ok := b.Tile(dst)
	if !ok || dest.Kind != Normal || dst == src {
		return false
	}
	return validDirection(source.Kind, src, dst)
}

// Connect points a snake or ladder at a destination tile. Destinations that
// are not normal tiles or run the wrong way are rejected.
func (b *Board) Connect(src, dst int) bool {
	if !b.CanConnect(src, dst) {
		return false
	}
	b.tiles[src-1].Target = dst
	return true
}

// ConnectionTargets lists every id Connect(src, id) would accept
func (b *Board) ConnectionTargets(src int) []int {
	var ids []int
	for _, t := range b.tiles {
		if b.CanConnect(src, t.ID) {
			ids = append(ids, t.ID)
		}
	}
	return ids
}

// Duplicate appends a copy of a tile at the end of the board. The copy
// carries no connections of its own.
func (b *Board) Duplicate(id int) (Tile, bool) {
	src, ok := b.Tile(id)
	if !ok {
		return Tile{}, false
	}
	dup := Tile{
		ID:          len(b.tiles) + 1,
		Label:       src.Label + " (Copy)",
		Description: src.Description,
		Kind:        src.Kind,
	}
	b.tiles = append(b.tiles, dup)
	b.settle()
	return b.tiles[len(b.tiles)-1].clone(), true
}

// Edit changes a tile's label and, for normal tiles, its description
func (b *Board) Edit(id int, label, description string) bool {
	if label == "" || id < 1 || id > len(b.tiles) {
		return false
	}
	t := &b.tiles[id-1]
	t.Label = label
	if t.Kind == Normal {
		t.Description = description
	}
	return true
}

// Reset empties the board
func (b *Board) Reset() {
	b.tiles = nil
}

// Replace swaps in a whole new tile sequence, as an import does. Ids are
// reassigned by position and references are remapped through the ids the
// tiles arrived with; anything that cannot be kept consistent is dropped.
func (b *Board) Replace(tiles []Tile) IDMap {
	b.tiles = make([]Tile, len(tiles))
	for i, t := range tiles {
		t = t.clone()
		if !t.Kind.Valid() {
			t.Kind = Normal
		}
		if t.Kind != Normal {
			t.Description = ""
		}
		if t.Kind != Snake && t.Kind != Ladder {
			t.Target = 0
		}
		b.tiles[i] = t
	}
	return b.renumber(false)
}

// RecomputeRingLinks points every ring at all the other rings. A lone ring
// has no targets.
func (b *Board) RecomputeRingLinks() {
	rings := b.ringIDs()
	for i := range b.tiles {
		t := &b.tiles[i]
		if t.Kind != Ring {
			t.RingTargets = nil
			continue
		}
		var others []int
		for _, id := range rings {
			if id != t.ID {
				others = append(others, id)
			}
		}
		t.RingTargets = others
	}
}

// renumber makes ids dense again, remaps every target through the old to
// new table and settles the board. Old ids that repeat keep their first
// position; an id of 0 or below never enters the table. With relabel set,
// autogenerated label and task text follows the new ids; only an insert
// asks for that.
func (b *Board) renumber(relabel bool) IDMap {
	ids := make(IDMap, len(b.tiles))
	for i := range b.tiles {
		t := &b.tiles[i]
		newID := i + 1
		if t.ID > 0 {
			if _, seen := ids[t.ID]; !seen {
				ids[t.ID] = newID
			}
		}
		t.ID = newID
		if relabel {
			t.Label, t.Description = renumberText(t.Label, t.Description, newID)
		}
	}
	for i := range b.tiles {
		t := &b.tiles[i]
		if t.Target == 0 {
			continue
		}
		if id, ok := ids.Lookup(t.Target); ok {
			t.Target = id
		} else {
			t.Target = 0
		}
	}
	b.settle()
	return ids
}

// settle clears targets that now break the directional or target-kind rules
// and rebuilds the ring mesh
func (b *Board) settle() {
	for i := range b.tiles {
		t := &b.tiles[i]
		if t.Target == 0 {
			continue
		}
		dest, ok := b.Tile(t.Target)
		if !ok || dest.Kind != Normal || !validDirection(t.Kind, t.ID, t.Target) {
			t.Target = 0
		}
	}
	b.RecomputeRingLinks()
}

func validDirection(kind TileKind, src, dst int) bool {
	switch kind {
	case Ladder:
		return dst > src
	case Snake:
		return dst < src
	}
	return false
}

// ringIDs returns the ids of all ring tiles in ascending order
func (b *Board) ringIDs() []int {
	var ids []int
	for _, t := range b.tiles {
		if t.Kind == Ring {
			ids = append(ids, t.ID)
		}
	}
	sort.Ints(ids)
	return ids
}
