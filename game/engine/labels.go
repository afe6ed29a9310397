package engine

import (
	"fmt"
	"regexp"
	"strconv"
)

var (
	autoItemPattern = regexp.MustCompile(`New Item \d+`)
	autoTaskPattern = regexp.MustCompile(`Complete task \d+`)
	autoKindPattern = regexp.MustCompile(`^(Snake|Ladder|Fairy Ring) #\d+`)

	// bareKindLabels are the generic labels the classic board ships with
	bareKindLabels = map[string]bool{"Snake": true, "Ladder": true, "Fairy Ring": true}
	wholeAutoLabel = regexp.MustCompile(`^(New Item |Snake #|Ladder #|Fairy Ring #)\d+$`)
)

// DefaultLabel returns the autogenerated label for a tile of the given kind and id
func DefaultLabel(kind TileKind, id int) string {
	switch kind {
	case Snake:
		return fmt.Sprintf("Snake #%d", id)
	case Ladder:
		return fmt.Sprintf("Ladder #%d", id)
	case Ring:
		return fmt.Sprintf("Fairy Ring #%d", id)
	default:
		return fmt.Sprintf("New Item %d", id)
	}
}

// DefaultDescription returns the autogenerated task text for a normal tile
func DefaultDescription(id int) string {
	return fmt.Sprintf("Complete task %d", id)
}

// IsAutoLabel reports whether label was generated rather than authored.
// Empty labels and the bare kind names count as generated.
func IsAutoLabel(label string) bool {
	return label == "" || bareKindLabels[label] || wholeAutoLabel.MatchString(label)
}

// renumberText rewrites the ids embedded in autogenerated label and task
// text. Authored text that does not match a pattern is returned unchanged.
func renumberText(label, description string, id int) (string, string) {
	n := strconv.Itoa(id)
	label = autoItemPattern.ReplaceAllString(label, "New Item "+n)
	label = autoKindPattern.ReplaceAllString(label, "$1 #"+n)
	description = autoTaskPattern.ReplaceAllString(description, "Complete task "+n)
	return label, description
}

// CountKind counts the tiles of a specific kind
func CountKind(tiles []Tile, kind TileKind) int {
	count := 0
	for _, t := range tiles {
		if t.Kind == kind {
			count++
		}
	}
	return count
}

// Displacement returns how far a snake or ladder moves a team (negative for snakes)
func Displacement(t Tile) int {
	if (t.Kind == Snake || t.Kind == Ladder) && t.Target > 0 {
		return t.Target - t.ID
	}
	return 0
}
