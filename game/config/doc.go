// Package config provides the board library and server settings.
//
// The config package handles:
//   - Loading boards from JSON or zstd compressed JSON files
//   - Repairing boards on load so every session starts from a consistent board
//   - Default board management, with a built-in classic board
//   - Board discovery, listing and saving
//   - YAML server settings
//
// Board Format:
//
// Boards are stored as <name>.json or <name>.json.zst in the boards
// directory. A board file is a board export: a list of tiles with id, label,
// description, kind, target and ringTargets. Files written by the old web
// editor (item, task, type, goesTo, fairyOptions) load as well.
//
// Usage:
//
//	manager, err := config.NewManager("boards")
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	tiles, err := manager.LoadBoard("classic")
//	boards, err := manager.ListBoards()
//
// Settings:
//
// LoadSettings reads animation delays, session lifetime, cleanup and refresh
// intervals, the boards directory, the default board and the teams seeded
// into new sessions.
package config
