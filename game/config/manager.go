package config

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/wricardo/boardgame-tracker/game/engine"
	"github.com/wricardo/boardgame-tracker/game/service"
	"github.com/wricardo/boardgame-tracker/game/snapshot"
)

var (
	ErrBoardNotFound = errors.New("board not found")
	ErrInvalidBoard  = errors.New("invalid board")
)

const (
	// ClassicBoardName is the built-in board used when the library has none of its own
	ClassicBoardName = "classic"

	boardExt = ".json"
)

var boardNamePattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_-]{0,63}$`)

//go:embed classic.json
var classicBoardJSON []byte

// ClassicBoard returns the built-in 100 tile board
func ClassicBoard() []engine.Tile {
	tiles, err := snapshot.Unmarshal(classicBoardJSON)
	if err != nil {
		panic(fmt.Sprintf("built-in classic board is invalid: %v", err))
	}
	return engine.NewBoard(tiles).Tiles()
}

// Manager handles board library loading and caching
type Manager struct {
	boardsDir    string
	defaultName  string
	defaultBoard []engine.Tile
	boards       map[string][]engine.Tile
	mu           sync.RWMutex
}

// NewManager creates a new board library over boardsDir
func NewManager(boardsDir string) (*Manager, error) {
	// Ensure boards directory exists
	if _, err := os.Stat(boardsDir); os.IsNotExist(err) {
		return nil, fmt.Errorf("boards directory does not exist: %s", boardsDir)
	}

	m := &Manager{
		boardsDir: boardsDir,
		boards:    make(map[string][]engine.Tile),
	}

	if err := m.loadDefaultBoard(); err != nil {
		return nil, fmt.Errorf("failed to load default board: %w", err)
	}

	return m, nil
}

// ValidBoardName reports whether name can be used as a library file name
func ValidBoardName(name string) bool {
	return boardNamePattern.MatchString(name)
}

// boardPath finds the file for name, preferring plain JSON over compressed
func (m *Manager) boardPath(name string) (string, bool) {
	for _, ext := range []string{boardExt, boardExt + snapshot.CompressedExt} {
		path := filepath.Join(m.boardsDir, name+ext)
		if _, err := os.Stat(path); err == nil {
			return path, true
		}
	}
	return "", false
}

// LoadBoard loads a board by name. The returned tiles are a copy the caller may keep.
func (m *Manager) LoadBoard(name string) ([]engine.Tile, error) {
	name = trimBoardExt(name)
	if !ValidBoardName(name) {
		return nil, fmt.Errorf("%w: bad name %q", ErrInvalidBoard, name)
	}

	m.mu.RLock()
	// Check cache first
	if tiles, exists := m.boards[name]; exists {
		m.mu.RUnlock()
		return copyTiles(tiles), nil
	}
	m.mu.RUnlock()

	m.mu.Lock()
	defer m.mu.Unlock()

	// Double-check after acquiring write lock
	if tiles, exists := m.boards[name]; exists {
		return copyTiles(tiles), nil
	}

	tiles, err := m.readBoard(name)
	if err != nil {
		return nil, err
	}

	m.boards[name] = tiles
	return copyTiles(tiles), nil
}

// readBoard reads and repairs one board from disk. Callers hold the lock.
func (m *Manager) readBoard(name string) ([]engine.Tile, error) {
	path, ok := m.boardPath(name)
	if !ok {
		if name == ClassicBoardName {
			return ClassicBoard(), nil
		}
		return nil, ErrBoardNotFound
	}

	tiles, err := snapshot.ReadFile(path)
	if err != nil {
		if errors.Is(err, snapshot.ErrMalformed) {
			return nil, fmt.Errorf("%w: %v", ErrInvalidBoard, err)
		}
		return nil, fmt.Errorf("failed to read board file: %w", err)
	}

	if problems := engine.AuditTiles(tiles); len(problems) > 0 {
		log.Warn().Str("board", name).Int("problems", len(problems)).Msg("Repairing board on load")
	}
	return engine.NewBoard(tiles).Tiles(), nil
}

// ListBoards returns information about all available boards
func (m *Manager) ListBoards() ([]*service.BoardInfo, error) {
	entries, err := os.ReadDir(m.boardsDir)
	if err != nil {
		return nil, fmt.Errorf("failed to read boards directory: %w", err)
	}

	var boards []*service.BoardInfo
	seen := make(map[string]bool)

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name, compressed, ok := parseBoardFilename(entry.Name())
		if !ok || seen[name] {
			continue
		}

		tiles, err := m.LoadBoard(name)
		if err != nil {
			// Skip invalid boards
			log.Debug().Err(err).Str("file", entry.Name()).Msg("Skipping board")
			continue
		}
		seen[name] = true

		info := describeBoard(name, tiles)
		info.Filename = entry.Name()
		info.Compressed = compressed
		boards = append(boards, info)
	}

	if !seen[ClassicBoardName] {
		info := describeBoard(ClassicBoardName, ClassicBoard())
		info.BuiltIn = true
		boards = append(boards, info)
	}

	sort.Slice(boards, func(i, j int) bool { return boards[i].BoardID < boards[j].BoardID })
	return boards, nil
}

// GetDefault returns a copy of the default board
func (m *Manager) GetDefault() []engine.Tile {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return copyTiles(m.defaultBoard)
}

// DefaultName returns the name of the default board
func (m *Manager) DefaultName() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.defaultName
}

// SetDefault sets the default board by name
func (m *Manager) SetDefault(name string) error {
	tiles, err := m.LoadBoard(name)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.defaultName = trimBoardExt(name)
	m.defaultBoard = tiles
	return nil
}

// RefreshCache drops every cached board so edits on disk are picked up
func (m *Manager) RefreshCache() error {
	m.mu.Lock()
	name := m.defaultName
	m.boards = make(map[string][]engine.Tile)
	m.mu.Unlock()

	if name != "" {
		if err := m.SetDefault(name); err == nil {
			return nil
		}
		log.Warn().Str("board", name).Msg("Default board disappeared, falling back")
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	return m.loadDefaultBoard()
}

// loadDefaultBoard makes classic the default, read from the directory when a
// classic file exists. Callers hold the write lock or own m exclusively.
func (m *Manager) loadDefaultBoard() error {
	name := ClassicBoardName
	tiles, err := m.readBoard(name)
	if err != nil {
		log.Warn().Err(err).Msg("Classic board unusable, using built-in copy")
		tiles = ClassicBoard()
	}
	m.defaultName = name
	m.defaultBoard = tiles
	return nil
}

// SaveBoard writes a board to the library, compressed when asked
func (m *Manager) SaveBoard(name string, tiles []engine.Tile, compressed bool) (*service.BoardInfo, error) {
	name = trimBoardExt(name)
	if !ValidBoardName(name) {
		return nil, fmt.Errorf("%w: bad name %q", ErrInvalidBoard, name)
	}
	if err := engine.ValidateTiles(tiles); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidBoard, err)
	}

	repaired := engine.NewBoard(tiles).Tiles()

	filename := name + boardExt
	if compressed {
		filename += snapshot.CompressedExt
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if err := snapshot.WriteFile(filepath.Join(m.boardsDir, filename), repaired); err != nil {
		return nil, fmt.Errorf("failed to write board file: %w", err)
	}

	// Only one file per name
	other := name + boardExt
	if !compressed {
		other += snapshot.CompressedExt
	}
	if err := os.Remove(filepath.Join(m.boardsDir, other)); err != nil && !os.IsNotExist(err) {
		log.Warn().Err(err).Str("file", other).Msg("Failed to remove stale board file")
	}

	m.boards[name] = repaired
	if name == m.defaultName {
		m.defaultBoard = copyTiles(repaired)
	}

	info := describeBoard(name, repaired)
	info.Filename = filename
	info.Compressed = compressed
	return info, nil
}

func describeBoard(name string, tiles []engine.Tile) *service.BoardInfo {
	return &service.BoardInfo{
		BoardID: name,
		Tiles:   len(tiles),
		Snakes:  engine.CountKind(tiles, engine.Snake),
		Ladders: engine.CountKind(tiles, engine.Ladder),
		Rings:   engine.CountKind(tiles, engine.Ring),
	}
}

func parseBoardFilename(filename string) (name string, compressed bool, ok bool) {
	switch {
	case strings.HasSuffix(filename, boardExt+snapshot.CompressedExt):
		name, compressed = strings.TrimSuffix(filename, boardExt+snapshot.CompressedExt), true
	case strings.HasSuffix(filename, boardExt):
		name = strings.TrimSuffix(filename, boardExt)
	default:
		return "", false, false
	}
	return name, compressed, ValidBoardName(name)
}

func trimBoardExt(name string) string {
	name = strings.TrimSuffix(name, snapshot.CompressedExt)
	return strings.TrimSuffix(name, boardExt)
}

func copyTiles(tiles []engine.Tile) []engine.Tile {
	return engine.NewBoard(tiles).Tiles()
}
