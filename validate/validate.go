// Command validate checks the board files in a boards directory (../boards
// by default, or the directory given as the first argument). It checks:
//   - the file decodes as a board export, plain or zstd compressed
//   - every tile kind is known and the board is within size limits
//   - ids run 1..N without gaps or duplicates
//   - snakes point down, ladders point up, and both target normal tiles
//   - ring peer lists match the rings actually on the board
//
// Boards that fail any check would be repaired when loaded by the server,
// silently changing their connections, so the command exits non-zero.
package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/wricardo/boardgame-tracker/game/engine"
	"github.com/wricardo/boardgame-tracker/game/snapshot"
)

// ValidationResult captures the outcome of validating a single file.
// If Valid is true, Errors contains informational messages; otherwise it
// accumulates the validation errors that were found.
type ValidationResult struct {
	File   string
	Valid  bool
	Errors []string
}

// validateBoard loads and validates a single board file
func validateBoard(filePath string) ValidationResult {
	result := ValidationResult{
		File:   filepath.Base(filePath),
		Valid:  true,
		Errors: []string{},
	}

	tiles, err := snapshot.ReadFile(filePath)
	if err != nil {
		result.Valid = false
		result.Errors = append(result.Errors, fmt.Sprintf("Failed to load board: %v", err))
		return result
	}

	if problems := engine.AuditTiles(tiles); len(problems) > 0 {
		result.Valid = false
		result.Errors = append(result.Errors, problems...)
		return result
	}

	var snakes, ladders, rings int
	var maxClimb, maxDrop int
	for _, t := range tiles {
		switch t.Kind {
		case engine.Snake:
			snakes++
			maxDrop = max(maxDrop, t.ID-t.Target)
		case engine.Ladder:
			ladders++
			maxClimb = max(maxClimb, t.Target-t.ID)
		case engine.Ring:
			rings++
		}
	}

	if rings == 1 {
		// Legal, but the ring has nowhere to send anyone
		result.Errors = append(result.Errors, "⚠ Single ring: it has no peers and never teleports")
	}

	result.Errors = append(result.Errors, fmt.Sprintf("✓ Tiles: %d", len(tiles)))
	result.Errors = append(result.Errors, fmt.Sprintf("✓ Snakes: %d (longest drop %d)", snakes, maxDrop))
	result.Errors = append(result.Errors, fmt.Sprintf("✓ Ladders: %d (longest climb %d)", ladders, maxClimb))
	result.Errors = append(result.Errors, fmt.Sprintf("✓ Rings: %d", rings))

	return result
}

// boardFiles lists plain and compressed board exports in dir
func boardFiles(dir string) ([]string, error) {
	var files []string
	for _, pattern := range []string{"*.json", "*.json" + snapshot.CompressedExt} {
		matches, err := filepath.Glob(filepath.Join(dir, pattern))
		if err != nil {
			return nil, err
		}
		files = append(files, matches...)
	}
	return files, nil
}

// main validates each board file, printing a concise report and exiting with
// non-zero status if any are invalid.
func main() {
	boardsDir := "../boards"
	if len(os.Args) > 1 {
		boardsDir = os.Args[1]
	}
	files, err := boardFiles(boardsDir)
	if err != nil {
		fmt.Printf("Error finding board files: %v\n", err)
		os.Exit(1)
	}
	if len(files) == 0 {
		fmt.Printf("No board files in %s\n", boardsDir)
		return
	}

	allValid := true
	for _, file := range files {
		result := validateBoard(file)

		fmt.Printf("\n%s %s\n", strings.Repeat("=", 20), result.File)

		if result.Valid {
			fmt.Println("✅ VALID")
			for _, info := range result.Errors {
				fmt.Println("  " + info)
			}
		} else {
			fmt.Println("❌ INVALID")
			allValid = false
			for _, err := range result.Errors {
				fmt.Println("  ❌ " + err)
			}
		}
	}

	fmt.Printf("\n%s\n", strings.Repeat("=", 40))
	if allValid {
		fmt.Println("✅ All boards are valid!")
	} else {
		fmt.Println("❌ Some boards have errors")
		os.Exit(1)
	}
}
