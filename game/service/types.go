package service

import (
	"time"

	"github.com/wricardo/boardgame-tracker/game/engine"
)

// Event names published through the Notifier
const (
	EventSessionCreated = "session_created"
	EventSessionDeleted = "session_deleted"
	EventBoardChanged   = "board_changed"
	EventTeamsChanged   = "teams_changed"
	EventRoleChanged    = "role_changed"
	EventMoveStarted    = "move_started"
	EventMoveTick       = "move_tick"
	EventMoveFinished   = "move_finished"
)

// AnimationOptions sets the pause before each tick of an animated move.
// With both delays zero, moves are applied in full before a roll returns.
type AnimationOptions struct {
	StepDelay     time.Duration `json:"step_delay" yaml:"step_delay"`
	TeleportDelay time.Duration `json:"teleport_delay" yaml:"teleport_delay"`
}

// Enabled reports whether moves are played out over time
func (o AnimationOptions) Enabled() bool {
	return o.StepDelay > 0 || o.TeleportDelay > 0
}

// TeamSeed describes a team to add
type TeamSeed struct {
	Name    string   `json:"name" yaml:"name"`
	Color   string   `json:"color,omitempty" yaml:"color"`
	Members []string `json:"members,omitempty" yaml:"members"`
}

// CreateSessionRequest configures a new session
type CreateSessionRequest struct {
	// Board names a board in the library; empty means the default board
	Board string `json:"board,omitempty"`
	// Teams are added in order. When empty and SeedTeams is set, the
	// service's configured default teams are added instead.
	Teams     []TeamSeed `json:"teams,omitempty"`
	SeedTeams bool       `json:"seed_teams,omitempty"`
}

// SessionInfo provides information about a tracker session
type SessionInfo struct {
	ID             string           `json:"id"`
	BoardName      string           `json:"board_name"`
	CreatedAt      time.Time        `json:"created_at"`
	LastAccessedAt time.Time        `json:"last_accessed_at"`
	State          *engine.Snapshot `json:"state"`
}

// TileResult is returned by edits that produce or change one tile
type TileResult struct {
	Tile  engine.Tile      `json:"tile"`
	State *engine.Snapshot `json:"state"`
}

// TeamResult is returned by edits that produce or change one team
type TeamResult struct {
	Team  engine.Team      `json:"team"`
	State *engine.Snapshot `json:"state"`
}

// MoveResult contains the result of a roll
type MoveResult struct {
	TeamID   string           `json:"team_id"`
	TeamName string           `json:"team_name"`
	Roll     int              `json:"roll"`
	Plan     engine.MovePlan  `json:"plan"`
	Animated bool             `json:"animated"`
	Message  string           `json:"message"`
	Events   []GameEvent      `json:"events,omitempty"`
	State    *engine.Snapshot `json:"state"`
}

// RollAllResult contains one move per team, in roster order
type RollAllResult struct {
	Moves []MoveResult     `json:"moves"`
	State *engine.Snapshot `json:"state"`
}

// GameEvent represents an event that occurred during a move
type GameEvent struct {
	Type      string    `json:"type"` // "step", "ladder", "snake", "ring", "finish"
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
	TeamID    string    `json:"team_id,omitempty"`
	Position  int       `json:"position,omitempty"`
}

// HistoryOptions configures move history retrieval
type HistoryOptions struct {
	Page  int    `json:"page"`
	Limit int    `json:"limit"`
	Order string `json:"order"` // "asc" or "desc"
	// TeamID filters to one team's moves when set
	TeamID string `json:"team_id,omitempty"`
}

// HistoryResponse contains paginated move history
type HistoryResponse struct {
	Moves       []engine.MoveHistoryEntry `json:"moves"`
	TotalMoves  int                       `json:"total_moves"`
	Page        int                       `json:"page"`
	PageSize    int                       `json:"page_size"`
	TotalPages  int                       `json:"total_pages"`
	HasNext     bool                      `json:"has_next"`
	HasPrevious bool                      `json:"has_previous"`
}

// BoardInfo provides information about a board in the library
type BoardInfo struct {
	Filename   string `json:"filename,omitempty"`
	BoardID    string `json:"board_id"` // The identifier to use for session creation
	Tiles      int    `json:"tiles"`
	Snakes     int    `json:"snakes"`
	Ladders    int    `json:"ladders"`
	Rings      int    `json:"rings"`
	Compressed bool   `json:"compressed,omitempty"`
	BuiltIn    bool   `json:"built_in,omitempty"`
}
