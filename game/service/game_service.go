package service

import (
	"context"
	"errors"
	"time"

	"github.com/wricardo/boardgame-tracker/game/engine"
)

var (
	ErrSessionNotFound = errors.New("session not found")
	ErrInvalidImport   = errors.New("invalid board data")
	ErrNoTeams         = errors.New("no teams on the roster")
)

// GameService defines all tracker operations
type GameService interface {
	// Session Management
	CreateSession(ctx context.Context, req CreateSessionRequest) (*SessionInfo, error)
	GetSession(ctx context.Context, sessionID string) (*SessionInfo, error)
	ListSessions(ctx context.Context) ([]*SessionInfo, error)
	DeleteSession(ctx context.Context, sessionID string) error
	GetState(ctx context.Context, sessionID string) (*engine.Snapshot, error)

	// Board Editing
	InsertTile(ctx context.Context, sessionID string, index int) (*TileResult, error)
	RemoveTile(ctx context.Context, sessionID string, tileID int) (*engine.Snapshot, error)
	RetypeTile(ctx context.Context, sessionID string, tileID int, kind engine.TileKind) (*TileResult, error)
	CycleTile(ctx context.Context, sessionID string, tileID int) (*TileResult, error)
	ConnectTile(ctx context.Context, sessionID string, src, dst int) (*engine.Snapshot, error)
	ConnectionTargets(ctx context.Context, sessionID string, tileID int) ([]int, error)
	DuplicateTile(ctx context.Context, sessionID string, tileID int) (*TileResult, error)
	EditTile(ctx context.Context, sessionID string, tileID int, label, description string) (*TileResult, error)
	ResetBoard(ctx context.Context, sessionID string) (*engine.Snapshot, error)
	ExportBoard(ctx context.Context, sessionID string, compressed bool) ([]byte, error)
	ImportBoard(ctx context.Context, sessionID string, data []byte) (*engine.Snapshot, error)

	// Teams
	AddTeam(ctx context.Context, sessionID string, seed TeamSeed) (*TeamResult, error)
	RemoveTeam(ctx context.Context, sessionID, teamID string) (*engine.Snapshot, error)
	EditTeam(ctx context.Context, sessionID, teamID string, update engine.TeamUpdate) (*TeamResult, error)
	ResetPositions(ctx context.Context, sessionID string) (*engine.Snapshot, error)
	Standings(ctx context.Context, sessionID string) ([]engine.Team, error)

	// Play
	RollAndMove(ctx context.Context, sessionID, teamID string) (*MoveResult, error)
	RollAll(ctx context.Context, sessionID string) (*RollAllResult, error)
	GetMoveHistory(ctx context.Context, sessionID string, opts HistoryOptions) (*HistoryResponse, error)

	// Roles
	SetRole(ctx context.Context, sessionID string, role engine.Role) (*engine.Snapshot, error)
	SetEditMode(ctx context.Context, sessionID string, on bool) (*engine.Snapshot, error)

	// Board Library
	ListBoards(ctx context.Context) ([]*BoardInfo, error)
	LoadBoard(ctx context.Context, name string) ([]engine.Tile, error)
	SaveBoard(ctx context.Context, name string, data []byte, compressed bool) (*BoardInfo, error)
}

// SessionManager defines session storage operations
type SessionManager interface {
	Create(id, boardName string, tiles []engine.Tile) (*Session, error)
	Get(id string) (*Session, error)
	GetOrCreate(id, boardName string, tiles []engine.Tile) (*Session, error)
	List() []*Session
	Delete(id string) error
	UpdateLastAccessed(id string) error
	LastAccessed(id string) (time.Time, error)
}

// BoardManager handles the library of named boards
type BoardManager interface {
	LoadBoard(name string) ([]engine.Tile, error)
	ListBoards() ([]*BoardInfo, error)
	GetDefault() []engine.Tile
	DefaultName() string
	SaveBoard(name string, tiles []engine.Tile, compressed bool) (*BoardInfo, error)
}

// Notifier receives every state change so it can be pushed to clients
type Notifier interface {
	Publish(sessionID, event string, state *engine.Snapshot)
}

// Session represents an active tracker session
type Session struct {
	ID             string
	Engine         *engine.GameEngine
	BoardName      string
	CreatedAt      time.Time
	LastAccessedAt time.Time
}
