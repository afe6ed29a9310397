package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/wricardo/boardgame-tracker/game/engine"
	"github.com/wricardo/boardgame-tracker/game/snapshot"
)

// Options tunes a GameService. The zero value applies moves instantly,
// publishes nowhere and seeds no teams.
type Options struct {
	Notifier  Notifier
	Animation AnimationOptions
	SeedTeams []TeamSeed
}

// gameServiceImpl implements the GameService interface
type gameServiceImpl struct {
	sessions  SessionManager
	boards    BoardManager
	notifier  Notifier
	animation AnimationOptions
	seedTeams []TeamSeed
	mu        sync.RWMutex

	// animations tracks move goroutines still applying ticks
	animations sync.WaitGroup
}

type nopNotifier struct{}

func (nopNotifier) Publish(string, string, *engine.Snapshot) {}

// NewGameService creates a new tracker service instance
func NewGameService(sessions SessionManager, boards BoardManager, opts Options) GameService {
	notifier := opts.Notifier
	if notifier == nil {
		notifier = nopNotifier{}
	}
	return &gameServiceImpl{
		sessions:  sessions,
		boards:    boards,
		notifier:  notifier,
		animation: opts.Animation,
		seedTeams: append([]TeamSeed(nil), opts.SeedTeams...),
	}
}

// getSession looks up a session and marks it as used. Callers hold s.mu.
func (s *gameServiceImpl) getSession(sessionID string) (*Session, error) {
	sess, err := s.sessions.Get(sessionID)
	if err != nil {
		return nil, fmt.Errorf("session not found: %w", err)
	}
	s.sessions.UpdateLastAccessed(sessionID)
	return sess, nil
}

// editableSession is getSession for board edits, which need the leader role with edit mode on
func (s *gameServiceImpl) editableSession(sessionID string) (*Session, error) {
	sess, err := s.getSession(sessionID)
	if err != nil {
		return nil, err
	}
	if !sess.Engine.CanEdit() {
		return nil, engine.ErrEditNotAllowed
	}
	return sess, nil
}

// leaderSession is getSession for roster changes, which need the leader role
func (s *gameServiceImpl) leaderSession(sessionID string) (*Session, error) {
	sess, err := s.getSession(sessionID)
	if err != nil {
		return nil, err
	}
	if sess.Engine.Role() != engine.RoleLeader {
		return nil, fmt.Errorf("team changes need the leader role: %w", engine.ErrEditNotAllowed)
	}
	return sess, nil
}

// publish pushes the session's current state. Callers hold s.mu so events keep their order.
func (s *gameServiceImpl) publish(sess *Session, event string) *engine.Snapshot {
	state := sess.Engine.Snapshot()
	s.notifier.Publish(sess.ID, event, state)
	return state
}

// sessionInfo builds the public view of a session. The access time is read
// through the session manager, which owns writes to it.
func (s *gameServiceImpl) sessionInfo(sess *Session) *SessionInfo {
	accessed, err := s.sessions.LastAccessed(sess.ID)
	if err != nil {
		accessed = sess.CreatedAt
	}
	return &SessionInfo{
		ID:             sess.ID,
		BoardName:      sess.BoardName,
		CreatedAt:      sess.CreatedAt,
		LastAccessedAt: accessed,
		State:          sess.Engine.Snapshot(),
	}
}

// CreateSession creates a new tracker session
func (s *gameServiceImpl) CreateSession(ctx context.Context, req CreateSessionRequest) (*SessionInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	boardName := req.Board
	var tiles []engine.Tile
	if boardName == "" {
		boardName = s.boards.DefaultName()
		tiles = s.boards.GetDefault()
	} else {
		var err error
		tiles, err = s.boards.LoadBoard(boardName)
		if err != nil {
			// Provide helpful error message with available options
			if available, listErr := s.boards.ListBoards(); listErr == nil && len(available) > 0 {
				ids := make([]string, 0, len(available))
				for _, b := range available {
					ids = append(ids, b.BoardID)
				}
				return nil, fmt.Errorf("board '%s' not available (%w). Available boards: %v", boardName, err, ids)
			}
			return nil, fmt.Errorf("failed to load board %s: %w", boardName, err)
		}
	}

	// Let session manager generate a proper 4-character ID
	sess, err := s.sessions.Create("", boardName, tiles)
	if err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	seeds := req.Teams
	if len(seeds) == 0 && req.SeedTeams {
		seeds = s.seedTeams
	}
	for _, seed := range seeds {
		if _, err := addSeededTeam(sess.Engine, seed); err != nil {
			return nil, fmt.Errorf("seed team %q: %w", seed.Name, err)
		}
	}

	log.Info().Str("session", sess.ID).Str("board", boardName).Int("teams", len(seeds)).Msg("Session created")
	s.publish(sess, EventSessionCreated)
	return s.sessionInfo(sess), nil
}

// addSeededTeam adds a team and applies the seed's optional color and members
func addSeededTeam(e *engine.GameEngine, seed TeamSeed) (engine.Team, error) {
	team, err := e.AddTeam(seed.Name)
	if err != nil {
		return engine.Team{}, err
	}
	if seed.Color == "" && seed.Members == nil {
		return team, nil
	}
	update := engine.TeamUpdate{Members: seed.Members}
	if seed.Color != "" {
		update.Color = &seed.Color
	}
	return e.EditTeam(team.ID, update)
}

// GetSession retrieves session information
func (s *gameServiceImpl) GetSession(ctx context.Context, sessionID string) (*SessionInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, err := s.getSession(sessionID)
	if err != nil {
		return nil, err
	}
	return s.sessionInfo(sess), nil
}

// ListSessions returns all active sessions
func (s *gameServiceImpl) ListSessions(ctx context.Context) ([]*SessionInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sessions := s.sessions.List()
	result := make([]*SessionInfo, 0, len(sessions))
	for _, sess := range sessions {
		result = append(result, s.sessionInfo(sess))
	}
	return result, nil
}

// DeleteSession removes a session
func (s *gameServiceImpl) DeleteSession(ctx context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, err := s.sessions.Get(sessionID)
	if err != nil {
		return fmt.Errorf("session not found: %w", err)
	}
	if err := s.sessions.Delete(sessionID); err != nil {
		return err
	}
	s.notifier.Publish(sess.ID, EventSessionDeleted, nil)
	return nil
}

// GetState returns the current snapshot of a session
func (s *gameServiceImpl) GetState(ctx context.Context, sessionID string) (*engine.Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, err := s.getSession(sessionID)
	if err != nil {
		return nil, err
	}
	return sess.Engine.Snapshot(), nil
}

// editTile runs a board edit that yields one tile and publishes the new board
func (s *gameServiceImpl) editTile(sessionID string, edit func(e *engine.GameEngine) (engine.Tile, error)) (*TileResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, err := s.editableSession(sessionID)
	if err != nil {
		return nil, err
	}
	tile, err := edit(sess.Engine)
	if err != nil {
		return nil, err
	}
	return &TileResult{Tile: tile, State: s.publish(sess, EventBoardChanged)}, nil
}

// editBoard runs a board edit and publishes the new board
func (s *gameServiceImpl) editBoard(sessionID string, edit func(e *engine.GameEngine) error) (*engine.Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, err := s.editableSession(sessionID)
	if err != nil {
		return nil, err
	}
	if err := edit(sess.Engine); err != nil {
		return nil, err
	}
	return s.publish(sess, EventBoardChanged), nil
}

// InsertTile inserts a normal tile at a 0-based index
func (s *gameServiceImpl) InsertTile(ctx context.Context, sessionID string, index int) (*TileResult, error) {
	return s.editTile(sessionID, func(e *engine.GameEngine) (engine.Tile, error) {
		return e.InsertTile(index)
	})
}

// RemoveTile deletes a tile
func (s *gameServiceImpl) RemoveTile(ctx context.Context, sessionID string, tileID int) (*engine.Snapshot, error) {
	return s.editBoard(sessionID, func(e *engine.GameEngine) error {
		return e.RemoveTile(tileID)
	})
}

// RetypeTile changes a tile's kind
func (s *gameServiceImpl) RetypeTile(ctx context.Context, sessionID string, tileID int, kind engine.TileKind) (*TileResult, error) {
	return s.editTile(sessionID, func(e *engine.GameEngine) (engine.Tile, error) {
		return e.RetypeTile(tileID, kind)
	})
}

// CycleTile moves a tile to its next kind
func (s *gameServiceImpl) CycleTile(ctx context.Context, sessionID string, tileID int) (*TileResult, error) {
	return s.editTile(sessionID, func(e *engine.GameEngine) (engine.Tile, error) {
		return e.CycleTileKind(tileID)
	})
}

// ConnectTile points a snake or ladder at a destination
func (s *gameServiceImpl) ConnectTile(ctx context.Context, sessionID string, src, dst int) (*engine.Snapshot, error) {
	return s.editBoard(sessionID, func(e *engine.GameEngine) error {
		return e.ConnectTile(src, dst)
	})
}

// ConnectionTargets lists valid destinations for a tile
func (s *gameServiceImpl) ConnectionTargets(ctx context.Context, sessionID string, tileID int) ([]int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, err := s.getSession(sessionID)
	if err != nil {
		return nil, err
	}
	return sess.Engine.ConnectionTargets(tileID)
}

// DuplicateTile appends a copy of a tile
func (s *gameServiceImpl) DuplicateTile(ctx context.Context, sessionID string, tileID int) (*TileResult, error) {
	return s.editTile(sessionID, func(e *engine.GameEngine) (engine.Tile, error) {
		return e.DuplicateTile(tileID)
	})
}

// EditTile updates a tile's label and description
func (s *gameServiceImpl) EditTile(ctx context.Context, sessionID string, tileID int, label, description string) (*TileResult, error) {
	return s.editTile(sessionID, func(e *engine.GameEngine) (engine.Tile, error) {
		return e.EditTile(tileID, label, description)
	})
}

// ResetBoard clears the board
func (s *gameServiceImpl) ResetBoard(ctx context.Context, sessionID string) (*engine.Snapshot, error) {
	return s.editBoard(sessionID, func(e *engine.GameEngine) error {
		return e.ResetBoard()
	})
}

// ExportBoard encodes the session's board as a snapshot document
func (s *gameServiceImpl) ExportBoard(ctx context.Context, sessionID string, compressed bool) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, err := s.getSession(sessionID)
	if err != nil {
		return nil, err
	}
	return snapshot.Marshal(sess.Engine.ExportBoard(), compressed)
}

// ImportBoard replaces the session's board with a snapshot document
func (s *gameServiceImpl) ImportBoard(ctx context.Context, sessionID string, data []byte) (*engine.Snapshot, error) {
	tiles, err := snapshot.Unmarshal(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidImport, err)
	}
	state, err := s.editBoard(sessionID, func(e *engine.GameEngine) error {
		return e.ImportBoard(tiles)
	})
	if err != nil {
		return nil, err
	}
	log.Info().Str("session", sessionID).Int("tiles", len(tiles)).Msg("Board imported")
	return state, nil
}

// AddTeam adds a team at the start position
func (s *gameServiceImpl) AddTeam(ctx context.Context, sessionID string, seed TeamSeed) (*TeamResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, err := s.leaderSession(sessionID)
	if err != nil {
		return nil, err
	}
	team, err := addSeededTeam(sess.Engine, seed)
	if err != nil {
		return nil, err
	}
	log.Debug().Str("session", sess.ID).Str("team", team.ID).Str("name", team.Name).Msg("Team added")
	return &TeamResult{Team: team, State: s.publish(sess, EventTeamsChanged)}, nil
}

// RemoveTeam drops a team from the roster
func (s *gameServiceImpl) RemoveTeam(ctx context.Context, sessionID, teamID string) (*engine.Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, err := s.leaderSession(sessionID)
	if err != nil {
		return nil, err
	}
	if err := sess.Engine.RemoveTeam(teamID); err != nil {
		return nil, err
	}
	return s.publish(sess, EventTeamsChanged), nil
}

// EditTeam updates a team's name, color or members
func (s *gameServiceImpl) EditTeam(ctx context.Context, sessionID, teamID string, update engine.TeamUpdate) (*TeamResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, err := s.leaderSession(sessionID)
	if err != nil {
		return nil, err
	}
	team, err := sess.Engine.EditTeam(teamID, update)
	if err != nil {
		return nil, err
	}
	return &TeamResult{Team: team, State: s.publish(sess, EventTeamsChanged)}, nil
}

// ResetPositions sends every team back to the start
func (s *gameServiceImpl) ResetPositions(ctx context.Context, sessionID string) (*engine.Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, err := s.leaderSession(sessionID)
	if err != nil {
		return nil, err
	}
	if err := sess.Engine.ResetPositions(); err != nil {
		return nil, err
	}
	return s.publish(sess, EventTeamsChanged), nil
}

// Standings returns the roster ordered by position, leader first
func (s *gameServiceImpl) Standings(ctx context.Context, sessionID string) ([]engine.Team, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, err := s.getSession(sessionID)
	if err != nil {
		return nil, err
	}
	return sess.Engine.Standings(), nil
}

// RollAndMove rolls the die for one team. With animation enabled the move is
// applied in the background and the result only carries the plan.
func (s *gameServiceImpl) RollAndMove(ctx context.Context, sessionID, teamID string) (*MoveResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, err := s.getSession(sessionID)
	if err != nil {
		return nil, err
	}
	e := sess.Engine
	if e.Moving() {
		return nil, engine.ErrMoveInProgress
	}
	team, ok := e.Team(teamID)
	if !ok {
		return nil, fmt.Errorf("roll for team %s: %w", teamID, engine.ErrUnknownTeam)
	}
	roll := e.RollDie()

	if !s.animation.Enabled() {
		plan, err := e.MoveWithRoll(teamID, roll)
		if err != nil {
			return nil, err
		}
		result := s.moveResult(sess, team, plan)
		result.State = s.publish(sess, EventMoveFinished)
		result.Message = result.State.Message
		log.Info().Str("session", sess.ID).Str("team", team.Name).Int("roll", roll).Int("to", plan.Final).Msg("Move applied")
		return result, nil
	}

	plan, err := e.BeginMove(teamID, roll)
	if err != nil {
		return nil, err
	}
	result := s.moveResult(sess, team, plan)
	if !e.Moving() {
		// Nothing to animate
		result.State = s.publish(sess, EventMoveFinished)
		result.Message = result.State.Message
		return result, nil
	}

	result.Animated = true
	result.State = s.publish(sess, EventMoveStarted)
	result.Message = result.State.Message
	s.animations.Add(1)
	go s.animate(sess, plan)
	return result, nil
}

// animate applies the ticks of a move in flight, pausing before each one
func (s *gameServiceImpl) animate(sess *Session, plan engine.MovePlan) {
	defer s.animations.Done()

	ticks := plan.Ticks()
	for i := range ticks {
		delay := s.animation.StepDelay
		if plan.Teleport != nil && i == len(ticks)-1 {
			delay = s.animation.TeleportDelay
		}
		time.Sleep(delay)

		s.mu.Lock()
		pos, done, err := sess.Engine.AdvanceMove()
		if err != nil {
			s.mu.Unlock()
			log.Error().Err(err).Str("session", sess.ID).Str("team", plan.TeamID).Msg("Animated move aborted")
			return
		}
		event := EventMoveTick
		if done {
			event = EventMoveFinished
		}
		s.publish(sess, event)
		s.mu.Unlock()

		log.Debug().Str("session", sess.ID).Str("team", plan.TeamID).Int("position", pos).Bool("done", done).Msg("Move tick")
		if done {
			return
		}
	}
}

// RollAll rolls once for every team in roster order. Moves are always
// applied instantly, one after the other.
func (s *gameServiceImpl) RollAll(ctx context.Context, sessionID string) (*RollAllResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, err := s.getSession(sessionID)
	if err != nil {
		return nil, err
	}
	e := sess.Engine
	if e.Moving() {
		return nil, engine.ErrMoveInProgress
	}
	teams := e.Teams()
	if len(teams) == 0 {
		return nil, fmt.Errorf("roll all: %w", ErrNoTeams)
	}

	result := &RollAllResult{Moves: make([]MoveResult, 0, len(teams))}
	for _, team := range teams {
		plan, err := e.MoveWithRoll(team.ID, e.RollDie())
		if err != nil {
			return nil, fmt.Errorf("roll for %s: %w", team.Name, err)
		}
		move := s.moveResult(sess, team, plan)
		state := s.publish(sess, EventMoveFinished)
		move.Message = state.Message
		result.Moves = append(result.Moves, *move)
		result.State = state
	}
	log.Info().Str("session", sess.ID).Int("teams", len(teams)).Msg("Rolled for every team")
	return result, nil
}

func (s *gameServiceImpl) moveResult(sess *Session, team engine.Team, plan engine.MovePlan) *MoveResult {
	return &MoveResult{
		TeamID:   team.ID,
		TeamName: team.Name,
		Roll:     plan.Roll,
		Plan:     plan,
		Events:   extractMoveEvents(team, plan, sess.Engine.Board().LastID()),
	}
}

// extractMoveEvents describes a resolved move as events
func extractMoveEvents(team engine.Team, plan engine.MovePlan, last int) []GameEvent {
	now := time.Now()
	events := make([]GameEvent, 0, len(plan.Steps)+2)

	for _, step := range plan.Steps {
		events = append(events, GameEvent{
			Type:      "step",
			Message:   fmt.Sprintf("%s moved to %d", team.Name, step),
			Timestamp: now,
			TeamID:    team.ID,
			Position:  step,
		})
	}

	if tp := plan.Teleport; tp != nil {
		var msg string
		switch tp.Kind {
		case engine.Ladder:
			msg = fmt.Sprintf("Ladder from %d to %d", tp.From, tp.To)
		case engine.Snake:
			msg = fmt.Sprintf("Snake from %d to %d", tp.From, tp.To)
		default:
			msg = fmt.Sprintf("Fairy ring on %d rolled %d, teleporting to %d", tp.From, tp.RingRoll, tp.To)
		}
		events = append(events, GameEvent{
			Type:      string(tp.Kind),
			Message:   msg,
			Timestamp: now,
			TeamID:    team.ID,
			Position:  tp.To,
		})
	}

	if plan.Final == last && plan.From != last {
		events = append(events, GameEvent{
			Type:      "finish",
			Message:   fmt.Sprintf("%s reached the finish!", team.Name),
			Timestamp: now,
			TeamID:    team.ID,
			Position:  last,
		})
	}
	return events
}

// GetMoveHistory returns paginated move history
func (s *gameServiceImpl) GetMoveHistory(ctx context.Context, sessionID string, opts HistoryOptions) (*HistoryResponse, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, err := s.getSession(sessionID)
	if err != nil {
		return nil, err
	}

	history := sess.Engine.GetMoveHistory()
	if opts.TeamID != "" {
		filtered := history[:0]
		for _, entry := range history {
			if entry.TeamID == opts.TeamID {
				filtered = append(filtered, entry)
			}
		}
		history = filtered
	}
	total := len(history)

	// Apply defaults
	if opts.Page < 1 {
		opts.Page = 1
	}
	if opts.Limit <= 0 {
		opts.Limit = 20
	}
	if opts.Limit > 100 {
		opts.Limit = 100
	}
	if opts.Order == "" {
		opts.Order = "desc"
	}

	// Calculate pagination
	totalPages := (total + opts.Limit - 1) / opts.Limit
	if totalPages == 0 {
		totalPages = 1
	}

	start := (opts.Page - 1) * opts.Limit
	end := min(start+opts.Limit, total)

	// Get the slice of moves
	var moves []engine.MoveHistoryEntry
	if opts.Order == "desc" {
		// Most recent first
		for i := total - 1 - start; i >= 0 && i >= total-end; i-- {
			moves = append(moves, history[i])
		}
	} else if start < total {
		moves = history[start:end]
	}

	// Ensure moves is not nil
	if moves == nil {
		moves = []engine.MoveHistoryEntry{}
	}

	return &HistoryResponse{
		Moves:       moves,
		TotalMoves:  total,
		Page:        opts.Page,
		PageSize:    opts.Limit,
		TotalPages:  totalPages,
		HasNext:     opts.Page < totalPages,
		HasPrevious: opts.Page > 1,
	}, nil
}

// SetRole switches the local role
func (s *gameServiceImpl) SetRole(ctx context.Context, sessionID string, role engine.Role) (*engine.Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, err := s.getSession(sessionID)
	if err != nil {
		return nil, err
	}
	if err := sess.Engine.SetRole(role); err != nil {
		return nil, err
	}
	return s.publish(sess, EventRoleChanged), nil
}

// SetEditMode toggles board editing
func (s *gameServiceImpl) SetEditMode(ctx context.Context, sessionID string, on bool) (*engine.Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, err := s.getSession(sessionID)
	if err != nil {
		return nil, err
	}
	if err := sess.Engine.SetEditMode(on); err != nil {
		return nil, err
	}
	return s.publish(sess, EventRoleChanged), nil
}

// ListBoards returns the boards in the library
func (s *gameServiceImpl) ListBoards(ctx context.Context) ([]*BoardInfo, error) {
	return s.boards.ListBoards()
}

// LoadBoard loads a board from the library
func (s *gameServiceImpl) LoadBoard(ctx context.Context, name string) ([]engine.Tile, error) {
	return s.boards.LoadBoard(name)
}

// SaveBoard stores a snapshot document in the library under name
func (s *gameServiceImpl) SaveBoard(ctx context.Context, name string, data []byte, compressed bool) (*BoardInfo, error) {
	tiles, err := snapshot.Unmarshal(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidImport, err)
	}
	info, err := s.boards.SaveBoard(name, tiles, compressed)
	if err != nil {
		return nil, err
	}
	log.Info().Str("board", info.BoardID).Int("tiles", info.Tiles).Bool("compressed", compressed).Msg("Board saved")
	return info, nil
}
