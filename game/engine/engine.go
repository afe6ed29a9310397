package engine

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"sort"
	"time"

	"github.com/google/uuid"
)

var (
	ErrMoveInProgress  = errors.New("a team is already moving")
	ErrNoMoveInFlight  = errors.New("no move in progress")
	ErrEmptyBoard      = errors.New("board has no tiles")
	ErrUnknownTeam     = errors.New("unknown team")
	ErrUnknownTile     = errors.New("unknown tile")
	ErrNotApplied      = errors.New("operation not applied")
	ErrInvalidKind     = errors.New("invalid tile kind")
	ErrInvalidRoll     = errors.New("roll must be between 1 and 6")
	ErrInvalidRole     = errors.New("invalid role")
	ErrEditNotAllowed  = errors.New("editing requires the leader role with edit mode on")
	ErrTooManyTeams    = errors.New("team limit reached")
	ErrBoardTooLarge   = errors.New("board tile limit reached")
	ErrEmptyTileLabel  = errors.New("tile label cannot be empty")
	ErrEmptyImportData = errors.New("import must contain at least one tile")
)

// Engine provides the main interface for board and play operations
type Engine interface {
	// Board editing
	InsertTile(index int) (Tile, error)
	RemoveTile(id int) error
	RetypeTile(id int, kind TileKind) (Tile, error)
	CycleTileKind(id int) (Tile, error)
	ConnectTile(src, dst int) error
	ConnectionTargets(src int) ([]int, error)
	DuplicateTile(id int) (Tile, error)
	EditTile(id int, label, description string) (Tile, error)
	ResetBoard() error
	ImportBoard(tiles []Tile) error
	ExportBoard() []Tile

	// Roster
	AddTeam(name string) (Team, error)
	RemoveTeam(id string) error
	EditTeam(id string, update TeamUpdate) (Team, error)
	ResetPositions() error
	Teams() []Team
	Team(id string) (Team, bool)
	Standings() []Team

	// Play
	BeginMove(teamID string, roll int) (MovePlan, error)
	AdvanceMove() (int, bool, error)
	RollAndMove(teamID string) (MovePlan, error)
	MoveWithRoll(teamID string, roll int) (MovePlan, error)
	Moving() bool

	// Roles
	SetRole(role Role) error
	SetEditMode(on bool) error
	CanEdit() bool

	// History and views
	GetMoveHistory() []MoveHistoryEntry
	GetLastMove() *MoveHistoryEntry
	Snapshot() *Snapshot
}

// pendingMove is a resolved roll whose ticks have not all been applied yet
type pendingMove struct {
	teamID string
	plan   MovePlan
	ticks  []int
	cursor int
}

// GameEngine implements the Engine interface. It holds the whole state of one
// tracker: the board, the roster, the role toggle and the move in flight.
// It is not safe for concurrent use; callers serialise access.
type GameEngine struct {
	board *Board
	teams []Team
	die   Die

	role     Role
	editMode bool

	moving     *pendingMove
	lastRoll   int
	message    string
	history    []MoveHistoryEntry
	totalMoves int
}

// NewEngine creates an engine over a copy of tiles. A nil die means a fair random die.
func NewEngine(tiles []Tile, die Die) *GameEngine {
	if die == nil {
		die = RandomDie{}
	}
	return &GameEngine{
		board:   NewBoard(tiles),
		teams:   []Team{},
		die:     die,
		role:    RoleLeader,
		message: "Add teams and roll to start",
	}
}

// Board returns the board for read-only use
func (e *GameEngine) Board() *Board {
	return e.board
}

// guard rejects any mutation while a team is moving
func (e *GameEngine) guard() error {
	if e.moving != nil {
		return ErrMoveInProgress
	}
	return nil
}

// InsertTile inserts a normal tile at a 0-based index, appending when the index is out of range
func (e *GameEngine) InsertTile(index int) (Tile, error) {
	if err := e.guard(); err != nil {
		return Tile{}, err
	}
	if e.board.Len() >= MaxBoardTiles {
		return Tile{}, ErrBoardTooLarge
	}
	tile, ids := e.board.Insert(index)
	e.remapPositions(ids)
	e.message = fmt.Sprintf("Inserted tile %d", tile.ID)
	return tile, nil
}

// RemoveTile deletes a tile. Teams standing on it go back to the start.
func (e *GameEngine) RemoveTile(id int) error {
	if err := e.guard(); err != nil {
		return err
	}
	ids, ok := e.board.Remove(id)
	if !ok {
		return fmt.Errorf("remove tile %d: %w", id, ErrUnknownTile)
	}
	e.remapPositions(ids)
	e.message = fmt.Sprintf("Removed tile %d", id)
	return nil
}

// RetypeTile changes a tile's kind
func (e *GameEngine) RetypeTile(id int, kind TileKind) (Tile, error) {
	if err := e.guard(); err != nil {
		return Tile{}, err
	}
	if !kind.Valid() {
		return Tile{}, fmt.Errorf("%w: %q", ErrInvalidKind, kind)
	}
	if !e.board.Retype(id, kind) {
		return Tile{}, fmt.Errorf("retype tile %d: %w", id, ErrUnknownTile)
	}
	tile, _ := e.board.Tile(id)
	e.message = fmt.Sprintf("Tile %d is now a %s tile", id, kind)
	return tile, nil
}

// CycleTileKind moves a tile to the next kind in the order normal, snake, ladder, ring
func (e *GameEngine) CycleTileKind(id int) (Tile, error) {
	tile, ok := e.board.Tile(id)
	if !ok {
		return Tile{}, fmt.Errorf("cycle tile %d: %w", id, ErrUnknownTile)
	}
	return e.RetypeTile(id, tile.Kind.Next())
}

// ConnectTile points a snake or ladder at a destination
func (e *GameEngine) ConnectTile(src, dst int) error {
	if err := e.guard(); err != nil {
		return err
	}
	if _, ok := e.board.Tile(src); !ok {
		return fmt.Errorf("connect tile %d: %w", src, ErrUnknownTile)
	}
	if !e.board.Connect(src, dst) {
		return fmt.Errorf("connect %d -> %d: %w", src, dst, ErrNotApplied)
	}
	e.message = fmt.Sprintf("Tile %d now leads to tile %d", src, dst)
	return nil
}

// ConnectionTargets lists the destinations a tile may be connected to
func (e *GameEngine) ConnectionTargets(src int) ([]int, error) {
	if _, ok := e.board.Tile(src); !ok {
		return nil, fmt.Errorf("connection targets for %d: %w", src, ErrUnknownTile)
	}
	targets := e.board.ConnectionTargets(src)
	if targets == nil {
		targets = []int{}
	}
	return targets, nil
}

// DuplicateTile appends a copy of a tile to the end of the board
func (e *GameEngine) DuplicateTile(id int) (Tile, error) {
	if err := e.guard(); err != nil {
		return Tile{}, err
	}
	if e.board.Len() >= MaxBoardTiles {
		return Tile{}, ErrBoardTooLarge
	}
	tile, ok := e.board.Duplicate(id)
	if !ok {
		return Tile{}, fmt.Errorf("duplicate tile %d: %w", id, ErrUnknownTile)
	}
	e.message = fmt.Sprintf("Duplicated tile %d as tile %d", id, tile.ID)
	return tile, nil
}

// EditTile updates a tile's label and description
func (e *GameEngine) EditTile(id int, label, description string) (Tile, error) {
	if err := e.guard(); err != nil {
		return Tile{}, err
	}
	if label == "" {
		return Tile{}, ErrEmptyTileLabel
	}
	if !e.board.Edit(id, label, description) {
		return Tile{}, fmt.Errorf("edit tile %d: %w", id, ErrUnknownTile)
	}
	tile, _ := e.board.Tile(id)
	return tile, nil
}

// ResetBoard removes every tile. Teams stay on the roster at the start position.
func (e *GameEngine) ResetBoard() error {
	if err := e.guard(); err != nil {
		return err
	}
	e.board.Reset()
	for i := range e.teams {
		e.teams[i].Position = StartPosition
	}
	e.message = "Board cleared"
	return nil
}

// ImportBoard replaces the board wholesale. Teams beyond the new last tile
// return to the start.
func (e *GameEngine) ImportBoard(tiles []Tile) error {
	if err := e.guard(); err != nil {
		return err
	}
	if len(tiles) == 0 {
		return ErrEmptyImportData
	}
	if len(tiles) > MaxBoardTiles {
		return ErrBoardTooLarge
	}
	e.board.Replace(tiles)
	for i := range e.teams {
		if e.teams[i].Position > e.board.Len() || e.teams[i].Position < StartPosition {
			e.teams[i].Position = StartPosition
		}
	}
	e.message = fmt.Sprintf("Imported %d tiles", e.board.Len())
	return nil
}

// ExportBoard returns a copy of the tile sequence
func (e *GameEngine) ExportBoard() []Tile {
	return e.board.Tiles()
}

// remapPositions follows each team through a renumbering. A team whose tile
// no longer exists goes back to the start.
func (e *GameEngine) remapPositions(ids IDMap) {
	for i := range e.teams {
		t := &e.teams[i]
		if id, ok := ids.Lookup(t.Position); ok {
			t.Position = id
		} else {
			t.Position = StartPosition
		}
		t.Position = e.clamp(t.Position)
	}
}

func (e *GameEngine) clamp(pos int) int {
	last := max(e.board.Len(), StartPosition)
	if pos < StartPosition {
		return StartPosition
	}
	if pos > last {
		return last
	}
	return pos
}

// AddTeam adds a team at the start position. An empty name becomes "Team N".
func (e *GameEngine) AddTeam(name string) (Team, error) {
	if err := e.guard(); err != nil {
		return Team{}, err
	}
	if len(e.teams) >= MaxTeams {
		return Team{}, ErrTooManyTeams
	}
	if name == "" {
		name = fmt.Sprintf("Team %d", len(e.teams)+1)
	}
	team := Team{
		ID:       uuid.New().String(),
		Name:     name,
		Color:    fmt.Sprintf("hsl(%d, 70%%, 50%%)", rand.IntN(360)),
		Position: StartPosition,
		Members:  []string{},
	}
	e.teams = append(e.teams, team)
	e.message = fmt.Sprintf("%s joined the board", name)
	return team.clone(), nil
}

// RemoveTeam drops a team from the roster
func (e *GameEngine) RemoveTeam(id string) error {
	if err := e.guard(); err != nil {
		return err
	}
	idx := e.teamIndex(id)
	if idx < 0 {
		return fmt.Errorf("remove team %s: %w", id, ErrUnknownTeam)
	}
	name := e.teams[idx].Name
	e.teams = append(e.teams[:idx], e.teams[idx+1:]...)
	e.message = fmt.Sprintf("%s left the board", name)
	return nil
}

// EditTeam updates a team's display attributes
func (e *GameEngine) EditTeam(id string, update TeamUpdate) (Team, error) {
	if err := e.guard(); err != nil {
		return Team{}, err
	}
	idx := e.teamIndex(id)
	if idx < 0 {
		return Team{}, fmt.Errorf("edit team %s: %w", id, ErrUnknownTeam)
	}
	t := &e.teams[idx]
	if update.Name != nil && *update.Name != "" {
		t.Name = *update.Name
	}
	if update.Color != nil && *update.Color != "" {
		t.Color = *update.Color
	}
	if update.Members != nil {
		t.Members = append([]string{}, update.Members...)
	}
	return t.clone(), nil
}

// ResetPositions sends every team back to the start
func (e *GameEngine) ResetPositions() error {
	if err := e.guard(); err != nil {
		return err
	}
	for i := range e.teams {
		e.teams[i].Position = StartPosition
	}
	e.lastRoll = 0
	e.message = "All teams are back at the start"
	return nil
}

// Teams returns a copy of the roster in the order teams were added
func (e *GameEngine) Teams() []Team {
	out := make([]Team, len(e.teams))
	for i, t := range e.teams {
		out[i] = t.clone()
	}
	return out
}

// Team looks up a team by id
func (e *GameEngine) Team(id string) (Team, bool) {
	idx := e.teamIndex(id)
	if idx < 0 {
		return Team{}, false
	}
	return e.teams[idx].clone(), true
}

// Standings returns the roster ordered by position, leader first. Ties keep roster order.
func (e *GameEngine) Standings() []Team {
	teams := e.Teams()
	sort.SliceStable(teams, func(i, j int) bool {
		return teams[i].Position > teams[j].Position
	})
	return teams
}

func (e *GameEngine) teamIndex(id string) int {
	for i, t := range e.teams {
		if t.ID == id {
			return i
		}
	}
	return -1
}

// BeginMove resolves a roll for a team and holds it as the move in flight.
// Positions are applied by AdvanceMove. A plan with no ticks completes at once.
func (e *GameEngine) BeginMove(teamID string, roll int) (MovePlan, error) {
	if err := e.guard(); err != nil {
		return MovePlan{}, err
	}
	if roll < 1 || roll > DieFaces {
		return MovePlan{}, fmt.Errorf("%w: got %d", ErrInvalidRoll, roll)
	}
	if e.board.Empty() {
		return MovePlan{}, ErrEmptyBoard
	}
	idx := e.teamIndex(teamID)
	if idx < 0 {
		return MovePlan{}, fmt.Errorf("move team %s: %w", teamID, ErrUnknownTeam)
	}

	from := e.clamp(e.teams[idx].Position)
	plan := ResolveMove(from, roll, e.board, e.die)
	plan.TeamID = teamID

	e.lastRoll = roll
	e.moving = &pendingMove{teamID: teamID, plan: plan, ticks: plan.Ticks()}
	e.message = fmt.Sprintf("%s rolled a %d", e.teams[idx].Name, roll)

	if len(e.moving.ticks) == 0 {
		e.finishMove()
	}
	return plan, nil
}

// AdvanceMove applies the next position of the move in flight. It returns
// the team's new position and whether the move is complete.
func (e *GameEngine) AdvanceMove() (int, bool, error) {
	if e.moving == nil {
		return 0, false, ErrNoMoveInFlight
	}
	m := e.moving
	idx := e.teamIndex(m.teamID)
	if idx < 0 {
		// Teams cannot be removed mid-move, but never leave the engine stuck
		e.moving = nil
		return 0, true, fmt.Errorf("advance move for %s: %w", m.teamID, ErrUnknownTeam)
	}

	pos := m.ticks[m.cursor]
	e.teams[idx].Position = pos
	m.cursor++

	if m.cursor >= len(m.ticks) {
		e.finishMove()
		return pos, true, nil
	}
	return pos, false, nil
}

// finishMove records the move in flight and clears it
func (e *GameEngine) finishMove() {
	m := e.moving
	e.moving = nil

	idx := e.teamIndex(m.teamID)
	if idx < 0 {
		return
	}
	team := &e.teams[idx]
	plan := m.plan
	team.Position = plan.Final

	entry := MoveHistoryEntry{
		TeamID:     team.ID,
		TeamName:   team.Name,
		Roll:       plan.Roll,
		From:       plan.From,
		Landing:    plan.Landing,
		To:         plan.Final,
		Timestamp:  time.Now().Unix(),
		MoveNumber: e.totalMoves + 1,
	}
	if plan.Teleport != nil {
		entry.Teleport = plan.Teleport.Kind
		entry.RingRoll = plan.Teleport.RingRoll
	}
	e.history = append(e.history, entry)
	e.totalMoves++
	e.message = describeMove(team.Name, plan, e.board.LastID())
}

func describeMove(name string, plan MovePlan, last int) string {
	var msg string
	switch {
	case plan.Teleport == nil && plan.Landing == plan.From:
		msg = fmt.Sprintf("%s rolled a %d but is already on the last tile", name, plan.Roll)
	case plan.Teleport == nil:
		msg = fmt.Sprintf("%s rolled a %d and moved from %d to %d", name, plan.Roll, plan.From, plan.Final)
	case plan.Teleport.Kind == Ladder:
		msg = fmt.Sprintf("%s rolled a %d and climbed a ladder from %d to %d!", name, plan.Roll, plan.Landing, plan.Final)
	case plan.Teleport.Kind == Snake:
		msg = fmt.Sprintf("%s rolled a %d and slid down a snake from %d to %d", name, plan.Roll, plan.Landing, plan.Final)
	default:
		msg = fmt.Sprintf("%s rolled a %d, stepped into the fairy ring on %d and rolled a %d to teleport to %d",
			name, plan.Roll, plan.Landing, plan.Teleport.RingRoll, plan.Final)
	}
	if plan.Final == last && plan.From != last {
		msg += " and reached the finish!"
	}
	return msg
}

// RollAndMove rolls the engine's die for a team and applies the whole move
func (e *GameEngine) RollAndMove(teamID string) (MovePlan, error) {
	if err := e.guard(); err != nil {
		return MovePlan{}, err
	}
	return e.MoveWithRoll(teamID, e.die.Roll())
}

// MoveWithRoll applies a whole move for a known roll
func (e *GameEngine) MoveWithRoll(teamID string, roll int) (MovePlan, error) {
	plan, err := e.BeginMove(teamID, roll)
	if err != nil {
		return MovePlan{}, err
	}
	for e.moving != nil {
		if _, _, err := e.AdvanceMove(); err != nil {
			return plan, err
		}
	}
	return plan, nil
}

// Moving reports whether a move is in flight
func (e *GameEngine) Moving() bool {
	return e.moving != nil
}

// RollDie rolls the engine's die
func (e *GameEngine) RollDie() int {
	return e.die.Roll()
}

// SetRole switches the local role. Participants cannot stay in edit mode.
func (e *GameEngine) SetRole(role Role) error {
	switch role {
	case RoleLeader, RoleParticipant:
	default:
		return fmt.Errorf("%w: %q", ErrInvalidRole, role)
	}
	e.role = role
	if role != RoleLeader {
		e.editMode = false
	}
	return nil
}

// SetEditMode toggles edit mode. Only a leader may turn it on.
func (e *GameEngine) SetEditMode(on bool) error {
	if on && e.role != RoleLeader {
		return ErrEditNotAllowed
	}
	e.editMode = on
	return nil
}

// Role returns the current local role
func (e *GameEngine) Role() Role {
	return e.role
}

// CanEdit reports whether board edits are currently allowed
func (e *GameEngine) CanEdit() bool {
	return e.role == RoleLeader && e.editMode
}

// GetMoveHistory returns a copy of every completed move
func (e *GameEngine) GetMoveHistory() []MoveHistoryEntry {
	return append([]MoveHistoryEntry{}, e.history...)
}

// GetLastMove returns the last completed move, or nil if there are none
func (e *GameEngine) GetLastMove() *MoveHistoryEntry {
	if len(e.history) == 0 {
		return nil
	}
	last := e.history[len(e.history)-1]
	return &last
}

// Snapshot returns a deep copy of the state for display
func (e *GameEngine) Snapshot() *Snapshot {
	s := &Snapshot{
		Tiles:      e.board.Tiles(),
		Teams:      e.Teams(),
		Role:       e.role,
		EditMode:   e.editMode,
		LastRoll:   e.lastRoll,
		Message:    e.message,
		TotalMoves: e.totalMoves,
	}
	if e.moving != nil {
		s.MovingTeam = e.moving.teamID
	}
	return s
}
