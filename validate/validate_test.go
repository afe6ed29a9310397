package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/wricardo/boardgame-tracker/game/engine"
	"github.com/wricardo/boardgame-tracker/game/snapshot"
)

func writeBoard(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("Failed to write board: %v", err)
	}
	return path
}

func hasMessage(messages []string, substr string) bool {
	for _, m := range messages {
		if strings.Contains(m, substr) {
			return true
		}
	}
	return false
}

func TestValidateBoard(t *testing.T) {
	tests := []struct {
		name      string
		content   string
		wantValid bool
		want      string
	}{
		{
			name: "valid board",
			content: `[
				{"id": 1, "label": "Start", "kind": "normal"},
				{"id": 2, "label": "Ladder 2", "kind": "ladder", "target": 5},
				{"id": 3, "label": "Fairy Ring 3", "kind": "ring", "ringTargets": [6]},
				{"id": 4, "label": "Chop yews", "description": "500 logs", "kind": "normal"},
				{"id": 5, "label": "Kill Zulrah", "kind": "normal"},
				{"id": 6, "label": "Fairy Ring 6", "kind": "ring", "ringTargets": [3]},
				{"id": 7, "label": "Snake 7", "kind": "snake", "target": 1},
				{"id": 8, "label": "Finish", "kind": "normal"}
			]`,
			wantValid: true,
			want:      "✓ Ladders: 1 (longest climb 3)",
		},
		{
			name:      "legacy editor fields",
			content:   `[{"id": 1, "item": "Start", "type": "normal"}, {"id": 2, "item": "Ladder", "type": "ladder", "goesTo": 3}, {"id": 3, "item": "End"}]`,
			wantValid: true,
			want:      "✓ Tiles: 3",
		},
		{
			name:      "single ring warns",
			content:   `[{"id": 1, "label": "Start"}, {"id": 2, "label": "Fairy Ring 2", "kind": "ring"}]`,
			wantValid: true,
			want:      "Single ring",
		},
		{
			name:    "invalid JSON",
			content: `{"id": 1`,
			want:    "Failed to load board",
		},
		{
			name:    "empty board",
			content: `[]`,
			want:    "Failed to load board",
		},
		{
			name:    "unknown kind",
			content: `[{"id": 1, "label": "Start", "kind": "portal"}]`,
			want:    "Failed to load board",
		},
		{
			name:    "ladder points down",
			content: `[{"id": 1, "label": "Start"}, {"id": 2, "label": "Ladder 2", "kind": "ladder", "target": 1}]`,
			want:    "ladder target 1 must be higher",
		},
		{
			name:    "snake onto a ladder",
			content: `[{"id": 1, "label": "Start"}, {"id": 2, "label": "Ladder 2", "kind": "ladder", "target": 4}, {"id": 3, "label": "Snake 3", "kind": "snake", "target": 2}, {"id": 4, "label": "End"}]`,
			want:    "target 2 is a ladder tile",
		},
		{
			name:    "gap in ids",
			content: `[{"id": 1, "label": "Start"}, {"id": 3, "label": "Three"}]`,
			want:    "has id 3, want 2",
		},
		{
			name:    "stale ring peers",
			content: `[{"id": 1, "label": "Start"}, {"id": 2, "label": "Ring", "kind": "ring", "ringTargets": [3]}, {"id": 3, "label": "Three"}]`,
			want:    "ring targets [3], want []",
		},
	}

	dir := t.TempDir()
	for i, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeBoard(t, dir, "board"+string(rune('a'+i))+".json", tt.content)

			result := validateBoard(path)

			if result.Valid != tt.wantValid {
				t.Errorf("Expected valid=%v, got %v: %v", tt.wantValid, result.Valid, result.Errors)
			}
			if !hasMessage(result.Errors, tt.want) {
				t.Errorf("Expected a message containing %q, got %v", tt.want, result.Errors)
			}
		})
	}
}

func TestValidateBoard_Compressed(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "osrs.json"+snapshot.CompressedExt)
	tiles := []engine.Tile{
		{ID: 1, Label: "Start", Kind: engine.Normal},
		{ID: 2, Label: "Snake 2", Kind: engine.Snake, Target: 1},
	}
	if err := snapshot.WriteFile(path, tiles); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	result := validateBoard(path)
	if !result.Valid {
		t.Fatalf("Expected a valid compressed board, got %v", result.Errors)
	}
	if !hasMessage(result.Errors, "✓ Snakes: 1 (longest drop 1)") {
		t.Errorf("Unexpected report %v", result.Errors)
	}
}

func TestValidateBoard_MissingFile(t *testing.T) {
	result := validateBoard(filepath.Join(t.TempDir(), "missing.json"))
	if result.Valid {
		t.Error("Expected a missing file to be invalid")
	}
	if result.File != "missing.json" {
		t.Errorf("Expected the base name, got %s", result.File)
	}
}

func TestBoardFiles(t *testing.T) {
	dir := t.TempDir()
	writeBoard(t, dir, "a.json", "[]")
	writeBoard(t, dir, "b.json.zst", "")
	writeBoard(t, dir, "notes.txt", "")

	files, err := boardFiles(dir)
	if err != nil {
		t.Fatalf("boardFiles: %v", err)
	}
	if len(files) != 2 {
		t.Errorf("Expected 2 board files, got %v", files)
	}
}

func TestClassicBoardFileIsValid(t *testing.T) {
	result := validateBoard(filepath.Join("..", "game", "config", "classic.json"))
	if !result.Valid {
		t.Errorf("Expected the bundled classic board to be valid, got %v", result.Errors)
	}
}
