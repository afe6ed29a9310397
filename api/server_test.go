package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/mux"
	gorillaws "github.com/gorilla/websocket"

	"github.com/wricardo/boardgame-tracker/game/config"
	"github.com/wricardo/boardgame-tracker/game/engine"
	"github.com/wricardo/boardgame-tracker/game/service"
	"github.com/wricardo/boardgame-tracker/game/snapshot"
	"github.com/wricardo/boardgame-tracker/transport/websocket"
)

// MockGameService implements service.GameService for testing
type MockGameService struct {
	// Session Management
	CreateSessionFunc func(ctx context.Context, req service.CreateSessionRequest) (*service.SessionInfo, error)
	GetSessionFunc    func(ctx context.Context, sessionID string) (*service.SessionInfo, error)
	ListSessionsFunc  func(ctx context.Context) ([]*service.SessionInfo, error)
	DeleteSessionFunc func(ctx context.Context, sessionID string) error
	GetStateFunc      func(ctx context.Context, sessionID string) (*engine.Snapshot, error)

	// Board Editing
	InsertTileFunc        func(ctx context.Context, sessionID string, index int) (*service.TileResult, error)
	RemoveTileFunc        func(ctx context.Context, sessionID string, tileID int) (*engine.Snapshot, error)
	RetypeTileFunc        func(ctx context.Context, sessionID string, tileID int, kind engine.TileKind) (*service.TileResult, error)
	CycleTileFunc         func(ctx context.Context, sessionID string, tileID int) (*service.TileResult, error)
	ConnectTileFunc       func(ctx context.Context, sessionID string, src, dst int) (*engine.Snapshot, error)
	ConnectionTargetsFunc func(ctx context.Context, sessionID string, tileID int) ([]int, error)
	DuplicateTileFunc     func(ctx context.Context, sessionID string, tileID int) (*service.TileResult, error)
	EditTileFunc          func(ctx context.Context, sessionID string, tileID int, label, description string) (*service.TileResult, error)
	ResetBoardFunc        func(ctx context.Context, sessionID string) (*engine.Snapshot, error)
	ExportBoardFunc       func(ctx context.Context, sessionID string, compressed bool) ([]byte, error)
	ImportBoardFunc       func(ctx context.Context, sessionID string, data []byte) (*engine.Snapshot, error)

	// Teams
	AddTeamFunc        func(ctx context.Context, sessionID string, seed service.TeamSeed) (*service.TeamResult, error)
	RemoveTeamFunc     func(ctx context.Context, sessionID, teamID string) (*engine.Snapshot, error)
	EditTeamFunc       func(ctx context.Context, sessionID, teamID string, update engine.TeamUpdate) (*service.TeamResult, error)
	ResetPositionsFunc func(ctx context.Context, sessionID string) (*engine.Snapshot, error)
	StandingsFunc      func(ctx context.Context, sessionID string) ([]engine.Team, error)

	// Play
	RollAndMoveFunc    func(ctx context.Context, sessionID, teamID string) (*service.MoveResult, error)
	RollAllFunc        func(ctx context.Context, sessionID string) (*service.RollAllResult, error)
	GetMoveHistoryFunc func(ctx context.Context, sessionID string, opts service.HistoryOptions) (*service.HistoryResponse, error)

	// Roles
	SetRoleFunc     func(ctx context.Context, sessionID string, role engine.Role) (*engine.Snapshot, error)
	SetEditModeFunc func(ctx context.Context, sessionID string, on bool) (*engine.Snapshot, error)

	// Board Library
	ListBoardsFunc func(ctx context.Context) ([]*service.BoardInfo, error)
	LoadBoardFunc  func(ctx context.Context, name string) ([]engine.Tile, error)
	SaveBoardFunc  func(ctx context.Context, name string, data []byte, compressed bool) (*service.BoardInfo, error)
}

func emptyState() *engine.Snapshot {
	return &engine.Snapshot{Tiles: []engine.Tile{}, Teams: []engine.Team{}, Role: engine.RoleLeader}
}

// Session Management
func (m *MockGameService) CreateSession(ctx context.Context, req service.CreateSessionRequest) (*service.SessionInfo, error) {
	if m.CreateSessionFunc != nil {
		return m.CreateSessionFunc(ctx, req)
	}
	return &service.SessionInfo{ID: "test-session", BoardName: req.Board, CreatedAt: time.Now(), State: emptyState()}, nil
}

func (m *MockGameService) GetSession(ctx context.Context, sessionID string) (*service.SessionInfo, error) {
	if m.GetSessionFunc != nil {
		return m.GetSessionFunc(ctx, sessionID)
	}
	return &service.SessionInfo{ID: sessionID, BoardName: "classic", CreatedAt: time.Now(), State: emptyState()}, nil
}

func (m *MockGameService) ListSessions(ctx context.Context) ([]*service.SessionInfo, error) {
	if m.ListSessionsFunc != nil {
		return m.ListSessionsFunc(ctx)
	}
	return []*service.SessionInfo{}, nil
}

func (m *MockGameService) DeleteSession(ctx context.Context, sessionID string) error {
	if m.DeleteSessionFunc != nil {
		return m.DeleteSessionFunc(ctx, sessionID)
	}
	return nil
}

func (m *MockGameService) GetState(ctx context.Context, sessionID string) (*engine.Snapshot, error) {
	if m.GetStateFunc != nil {
		return m.GetStateFunc(ctx, sessionID)
	}
	return emptyState(), nil
}

// Board Editing
func (m *MockGameService) InsertTile(ctx context.Context, sessionID string, index int) (*service.TileResult, error) {
	if m.InsertTileFunc != nil {
		return m.InsertTileFunc(ctx, sessionID, index)
	}
	return &service.TileResult{State: emptyState()}, nil
}

func (m *MockGameService) RemoveTile(ctx context.Context, sessionID string, tileID int) (*engine.Snapshot, error) {
	if m.RemoveTileFunc != nil {
		return m.RemoveTileFunc(ctx, sessionID, tileID)
	}
	return emptyState(), nil
}

func (m *MockGameService) RetypeTile(ctx context.Context, sessionID string, tileID int, kind engine.TileKind) (*service.TileResult, error) {
	if m.RetypeTileFunc != nil {
		return m.RetypeTileFunc(ctx, sessionID, tileID, kind)
	}
	return &service.TileResult{Tile: engine.Tile{ID: tileID, Kind: kind}, State: emptyState()}, nil
}

func (m *MockGameService) CycleTile(ctx context.Context, sessionID string, tileID int) (*service.TileResult, error) {
	if m.CycleTileFunc != nil {
		return m.CycleTileFunc(ctx, sessionID, tileID)
	}
	return &service.TileResult{State: emptyState()}, nil
}

func (m *MockGameService) ConnectTile(ctx context.Context, sessionID string, src, dst int) (*engine.Snapshot, error) {
	if m.ConnectTileFunc != nil {
		return m.ConnectTileFunc(ctx, sessionID, src, dst)
	}
	return emptyState(), nil
}

func (m *MockGameService) ConnectionTargets(ctx context.Context, sessionID string, tileID int) ([]int, error) {
	if m.ConnectionTargetsFunc != nil {
		return m.ConnectionTargetsFunc(ctx, sessionID, tileID)
	}
	return []int{}, nil
}

func (m *MockGameService) DuplicateTile(ctx context.Context, sessionID string, tileID int) (*service.TileResult, error) {
	if m.DuplicateTileFunc != nil {
		return m.DuplicateTileFunc(ctx, sessionID, tileID)
	}
	return &service.TileResult{State: emptyState()}, nil
}

func (m *MockGameService) EditTile(ctx context.Context, sessionID string, tileID int, label, description string) (*service.TileResult, error) {
	if m.EditTileFunc != nil {
		return m.EditTileFunc(ctx, sessionID, tileID, label, description)
	}
	return &service.TileResult{Tile: engine.Tile{ID: tileID, Label: label, Description: description}, State: emptyState()}, nil
}

func (m *MockGameService) ResetBoard(ctx context.Context, sessionID string) (*engine.Snapshot, error) {
	if m.ResetBoardFunc != nil {
		return m.ResetBoardFunc(ctx, sessionID)
	}
	return emptyState(), nil
}

func (m *MockGameService) ExportBoard(ctx context.Context, sessionID string, compressed bool) ([]byte, error) {
	if m.ExportBoardFunc != nil {
		return m.ExportBoardFunc(ctx, sessionID, compressed)
	}
	return []byte("[]"), nil
}

func (m *MockGameService) ImportBoard(ctx context.Context, sessionID string, data []byte) (*engine.Snapshot, error) {
	if m.ImportBoardFunc != nil {
		return m.ImportBoardFunc(ctx, sessionID, data)
	}
	return emptyState(), nil
}

// Teams
func (m *MockGameService) AddTeam(ctx context.Context, sessionID string, seed service.TeamSeed) (*service.TeamResult, error) {
	if m.AddTeamFunc != nil {
		return m.AddTeamFunc(ctx, sessionID, seed)
	}
	return &service.TeamResult{Team: engine.Team{ID: "team-1", Name: seed.Name, Position: 1}, State: emptyState()}, nil
}

func (m *MockGameService) RemoveTeam(ctx context.Context, sessionID, teamID string) (*engine.Snapshot, error) {
	if m.RemoveTeamFunc != nil {
		return m.RemoveTeamFunc(ctx, sessionID, teamID)
	}
	return emptyState(), nil
}

func (m *MockGameService) EditTeam(ctx context.Context, sessionID, teamID string, update engine.TeamUpdate) (*service.TeamResult, error) {
	if m.EditTeamFunc != nil {
		return m.EditTeamFunc(ctx, sessionID, teamID, update)
	}
	return &service.TeamResult{Team: engine.Team{ID: teamID}, State: emptyState()}, nil
}

func (m *MockGameService) ResetPositions(ctx context.Context, sessionID string) (*engine.Snapshot, error) {
	if m.ResetPositionsFunc != nil {
		return m.ResetPositionsFunc(ctx, sessionID)
	}
	return emptyState(), nil
}

func (m *MockGameService) Standings(ctx context.Context, sessionID string) ([]engine.Team, error) {
	if m.StandingsFunc != nil {
		return m.StandingsFunc(ctx, sessionID)
	}
	return []engine.Team{}, nil
}

// Play
func (m *MockGameService) RollAndMove(ctx context.Context, sessionID, teamID string) (*service.MoveResult, error) {
	if m.RollAndMoveFunc != nil {
		return m.RollAndMoveFunc(ctx, sessionID, teamID)
	}
	return &service.MoveResult{TeamID: teamID, Roll: 1, State: emptyState()}, nil
}

func (m *MockGameService) RollAll(ctx context.Context, sessionID string) (*service.RollAllResult, error) {
	if m.RollAllFunc != nil {
		return m.RollAllFunc(ctx, sessionID)
	}
	return &service.RollAllResult{Moves: []service.MoveResult{}, State: emptyState()}, nil
}

func (m *MockGameService) GetMoveHistory(ctx context.Context, sessionID string, opts service.HistoryOptions) (*service.HistoryResponse, error) {
	if m.GetMoveHistoryFunc != nil {
		return m.GetMoveHistoryFunc(ctx, sessionID, opts)
	}
	return &service.HistoryResponse{
		Moves:      []engine.MoveHistoryEntry{},
		Page:       opts.Page,
		PageSize:   opts.Limit,
		TotalPages: 1,
	}, nil
}

// Roles
func (m *MockGameService) SetRole(ctx context.Context, sessionID string, role engine.Role) (*engine.Snapshot, error) {
	if m.SetRoleFunc != nil {
		return m.SetRoleFunc(ctx, sessionID, role)
	}
	state := emptyState()
	state.Role = role
	return state, nil
}

func (m *MockGameService) SetEditMode(ctx context.Context, sessionID string, on bool) (*engine.Snapshot, error) {
	if m.SetEditModeFunc != nil {
		return m.SetEditModeFunc(ctx, sessionID, on)
	}
	state := emptyState()
	state.EditMode = on
	return state, nil
}

// Board Library
func (m *MockGameService) ListBoards(ctx context.Context) ([]*service.BoardInfo, error) {
	if m.ListBoardsFunc != nil {
		return m.ListBoardsFunc(ctx)
	}
	return []*service.BoardInfo{}, nil
}

func (m *MockGameService) LoadBoard(ctx context.Context, name string) ([]engine.Tile, error) {
	if m.LoadBoardFunc != nil {
		return m.LoadBoardFunc(ctx, name)
	}
	return []engine.Tile{{ID: 1, Label: "Start", Kind: engine.Normal}}, nil
}

func (m *MockGameService) SaveBoard(ctx context.Context, name string, data []byte, compressed bool) (*service.BoardInfo, error) {
	if m.SaveBoardFunc != nil {
		return m.SaveBoardFunc(ctx, name, data, compressed)
	}
	return &service.BoardInfo{BoardID: name, Compressed: compressed}, nil
}

// Test helpers
func setupTestServer(t *testing.T, mockService *MockGameService) *Server {
	t.Helper()
	hub := websocket.NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go hub.Run(ctx)
	return NewServer(mockService, hub)
}

func makeRequest(method, path string, body interface{}) *http.Request {
	var bodyBytes []byte
	if body != nil {
		bodyBytes, _ = json.Marshal(body)
	}
	req := httptest.NewRequest(method, path, bytes.NewBuffer(bodyBytes))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func parseResponse(t *testing.T, w *httptest.ResponseRecorder, target interface{}) {
	t.Helper()
	if err := json.Unmarshal(w.Body.Bytes(), target); err != nil {
		t.Fatalf("Failed to parse response: %v", err)
	}
}

func serve(t *testing.T, m *MockGameService, req *http.Request) *httptest.ResponseRecorder {
	t.Helper()
	w := httptest.NewRecorder()
	setupTestServer(t, m).ServeHTTP(w, req)
	return w
}

// Session Management Tests

func TestCreateSession(t *testing.T) {
	tests := []struct {
		name           string
		requestBody    interface{}
		setupMock      func(*MockGameService)
		expectedStatus int
		validateResp   func(*testing.T, *httptest.ResponseRecorder)
	}{
		{
			name:        "Create session with default board",
			requestBody: nil,
			setupMock: func(m *MockGameService) {
				m.CreateSessionFunc = func(ctx context.Context, req service.CreateSessionRequest) (*service.SessionInfo, error) {
					if req.Board != "" || req.SeedTeams {
						t.Errorf("Expected an empty request, got %+v", req)
					}
					return &service.SessionInfo{ID: "ab12", BoardName: "classic", CreatedAt: time.Now()}, nil
				}
			},
			expectedStatus: http.StatusCreated,
			validateResp: func(t *testing.T, w *httptest.ResponseRecorder) {
				var resp service.SessionInfo
				parseResponse(t, w, &resp)
				if resp.ID != "ab12" {
					t.Errorf("Expected session ID ab12, got %s", resp.ID)
				}
			},
		},
		{
			name:        "Create session with board and seeded teams",
			requestBody: map[string]interface{}{"board": "osrs", "seed_teams": true},
			setupMock: func(m *MockGameService) {
				m.CreateSessionFunc = func(ctx context.Context, req service.CreateSessionRequest) (*service.SessionInfo, error) {
					if req.Board != "osrs" || !req.SeedTeams {
						t.Errorf("Unexpected request %+v", req)
					}
					return &service.SessionInfo{ID: "cd34", BoardName: req.Board}, nil
				}
			},
			expectedStatus: http.StatusCreated,
			validateResp: func(t *testing.T, w *httptest.ResponseRecorder) {
				var resp service.SessionInfo
				parseResponse(t, w, &resp)
				if resp.BoardName != "osrs" {
					t.Errorf("Expected board osrs, got %s", resp.BoardName)
				}
			},
		},
		{
			name:        "Unknown board",
			requestBody: map[string]string{"board": "missing"},
			setupMock: func(m *MockGameService) {
				m.CreateSessionFunc = func(ctx context.Context, req service.CreateSessionRequest) (*service.SessionInfo, error) {
					return nil, fmt.Errorf("board 'missing' not available (%w)", config.ErrBoardNotFound)
				}
			},
			expectedStatus: http.StatusNotFound,
		},
		{
			name:        "Handle service error",
			requestBody: nil,
			setupMock: func(m *MockGameService) {
				m.CreateSessionFunc = func(ctx context.Context, req service.CreateSessionRequest) (*service.SessionInfo, error) {
					return nil, fmt.Errorf("service error")
				}
			},
			expectedStatus: http.StatusInternalServerError,
			validateResp: func(t *testing.T, w *httptest.ResponseRecorder) {
				var resp map[string]string
				parseResponse(t, w, &resp)
				if resp["error"] != "service error" {
					t.Errorf("Expected error message 'service error', got %s", resp["error"])
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockService := &MockGameService{}
			if tt.setupMock != nil {
				tt.setupMock(mockService)
			}

			w := serve(t, mockService, makeRequest("POST", "/api/sessions", tt.requestBody))

			if w.Code != tt.expectedStatus {
				t.Errorf("Expected status %d, got %d", tt.expectedStatus, w.Code)
			}
			if tt.validateResp != nil {
				tt.validateResp(t, w)
			}
		})
	}
}

func TestListSessions(t *testing.T) {
	now := time.Now()
	sessions := func() []*service.SessionInfo {
		return []*service.SessionInfo{
			{ID: "old", BoardName: "classic", CreatedAt: now.Add(-2 * time.Hour), LastAccessedAt: now.Add(-time.Hour)},
			{ID: "new", BoardName: "osrs", CreatedAt: now.Add(-time.Hour), LastAccessedAt: now},
			{ID: "mid", BoardName: "classic", CreatedAt: now.Add(-90 * time.Minute), LastAccessedAt: now.Add(-30 * time.Minute)},
		}
	}

	tests := []struct {
		name      string
		query     string
		wantIDs   []string
		wantTotal float64
	}{
		{"default sort by access, newest first", "", []string{"new", "mid", "old"}, 3},
		{"created ascending", "?sort=created&order=asc", []string{"old", "mid", "new"}, 3},
		{"limit", "?limit=1", []string{"new"}, 3},
		{"board filter", "?board=classic", []string{"mid", "old"}, 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := &MockGameService{
				ListSessionsFunc: func(ctx context.Context) ([]*service.SessionInfo, error) {
					return sessions(), nil
				},
			}

			w := serve(t, m, makeRequest("GET", "/api/sessions"+tt.query, nil))

			if w.Code != http.StatusOK {
				t.Fatalf("Expected status 200, got %d", w.Code)
			}
			var resp struct {
				Count    int                    `json:"count"`
				Total    float64                `json:"total"`
				Sessions []*service.SessionInfo `json:"sessions"`
			}
			parseResponse(t, w, &resp)
			if resp.Total != tt.wantTotal {
				t.Errorf("Expected total %v, got %v", tt.wantTotal, resp.Total)
			}
			var got []string
			for _, s := range resp.Sessions {
				got = append(got, s.ID)
			}
			if strings.Join(got, ",") != strings.Join(tt.wantIDs, ",") {
				t.Errorf("Expected %v, got %v", tt.wantIDs, got)
			}
		})
	}

	t.Run("service error", func(t *testing.T) {
		m := &MockGameService{
			ListSessionsFunc: func(ctx context.Context) ([]*service.SessionInfo, error) {
				return nil, fmt.Errorf("boom")
			},
		}
		w := serve(t, m, makeRequest("GET", "/api/sessions", nil))
		if w.Code != http.StatusInternalServerError {
			t.Errorf("Expected status 500, got %d", w.Code)
		}
	})
}

func TestGetSession(t *testing.T) {
	tests := []struct {
		name           string
		sessionID      string
		expectedStatus int
	}{
		{"Get existing session", "ab12", http.StatusOK},
		{"Session not found", "nope", http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := &MockGameService{
				GetSessionFunc: func(ctx context.Context, sessionID string) (*service.SessionInfo, error) {
					if sessionID != "ab12" {
						return nil, fmt.Errorf("session not found: %w", service.ErrSessionNotFound)
					}
					return &service.SessionInfo{ID: sessionID, State: emptyState()}, nil
				},
			}

			req := makeRequest("GET", "/api/sessions/"+tt.sessionID, nil)
			req = mux.SetURLVars(req, map[string]string{"id": tt.sessionID})
			w := httptest.NewRecorder()
			setupTestServer(t, m).handleGetSession(w, req)

			if w.Code != tt.expectedStatus {
				t.Errorf("Expected status %d, got %d", tt.expectedStatus, w.Code)
			}
		})
	}
}

func TestDeleteSession(t *testing.T) {
	var deleted string
	m := &MockGameService{
		DeleteSessionFunc: func(ctx context.Context, sessionID string) error {
			if sessionID == "gone" {
				return service.ErrSessionNotFound
			}
			deleted = sessionID
			return nil
		},
	}

	w := serve(t, m, makeRequest("DELETE", "/api/sessions/ab12", nil))
	if w.Code != http.StatusOK || deleted != "ab12" {
		t.Errorf("Expected ab12 deleted with 200, got %d (%q)", w.Code, deleted)
	}

	w = serve(t, m, makeRequest("DELETE", "/api/sessions/gone", nil))
	if w.Code != http.StatusNotFound {
		t.Errorf("Expected status 404, got %d", w.Code)
	}
}

func TestStatusMapping(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{fmt.Errorf("session not found: %w", service.ErrSessionNotFound), http.StatusNotFound},
		{fmt.Errorf("remove tile 9: %w", engine.ErrUnknownTile), http.StatusNotFound},
		{fmt.Errorf("move team x: %w", engine.ErrUnknownTeam), http.StatusNotFound},
		{engine.ErrMoveInProgress, http.StatusConflict},
		{engine.ErrEditNotAllowed, http.StatusForbidden},
		{fmt.Errorf("connect 3 -> 9: %w", engine.ErrNotApplied), http.StatusUnprocessableEntity},
		{fmt.Errorf("roll all: %w", service.ErrNoTeams), http.StatusUnprocessableEntity},
		{fmt.Errorf("%w: %w", service.ErrInvalidImport, snapshot.ErrMalformed), http.StatusBadRequest},
		{fmt.Errorf("%w: bad name", config.ErrInvalidBoard), http.StatusBadRequest},
		{errors.New("disk on fire"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			if got := statusFor(tt.err); got != tt.want {
				t.Errorf("Expected %d, got %d", tt.want, got)
			}
		})
	}
}

// Board Editing Tests

func TestInsertTile(t *testing.T) {
	tests := []struct {
		name      string
		body      interface{}
		wantIndex int
	}{
		{"append when index omitted", nil, -1},
		{"explicit index", map[string]int{"index": 0}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var gotIndex int
			m := &MockGameService{
				InsertTileFunc: func(ctx context.Context, sessionID string, index int) (*service.TileResult, error) {
					gotIndex = index
					return &service.TileResult{Tile: engine.Tile{ID: 1, Label: "New Item 1"}, State: emptyState()}, nil
				},
			}

			w := serve(t, m, makeRequest("POST", "/api/sessions/ab12/tiles", tt.body))

			if w.Code != http.StatusCreated {
				t.Fatalf("Expected status 201, got %d", w.Code)
			}
			if gotIndex != tt.wantIndex {
				t.Errorf("Expected index %d, got %d", tt.wantIndex, gotIndex)
			}
		})
	}

	t.Run("edit not allowed", func(t *testing.T) {
		m := &MockGameService{
			InsertTileFunc: func(ctx context.Context, sessionID string, index int) (*service.TileResult, error) {
				return nil, engine.ErrEditNotAllowed
			},
		}
		w := serve(t, m, makeRequest("POST", "/api/sessions/ab12/tiles", nil))
		if w.Code != http.StatusForbidden {
			t.Errorf("Expected status 403, got %d", w.Code)
		}
	})
}

func TestRetypeTile(t *testing.T) {
	tests := []struct {
		name           string
		path           string
		body           interface{}
		wantKind       engine.TileKind
		expectedStatus int
	}{
		{"ring", "/api/sessions/ab12/tiles/4/kind", map[string]string{"kind": "ring"}, engine.Ring, http.StatusOK},
		{"legacy fairy ring spelling", "/api/sessions/ab12/tiles/4/kind", map[string]string{"kind": "fairy_ring"}, engine.Ring, http.StatusOK},
		{"unknown kind", "/api/sessions/ab12/tiles/4/kind", map[string]string{"kind": "portal"}, "", http.StatusBadRequest},
		{"bad tile id", "/api/sessions/ab12/tiles/zero/kind", map[string]string{"kind": "snake"}, "", http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var gotKind engine.TileKind
			m := &MockGameService{
				RetypeTileFunc: func(ctx context.Context, sessionID string, tileID int, kind engine.TileKind) (*service.TileResult, error) {
					gotKind = kind
					return &service.TileResult{Tile: engine.Tile{ID: tileID, Kind: kind}, State: emptyState()}, nil
				},
			}

			w := serve(t, m, makeRequest("PUT", tt.path, tt.body))

			if w.Code != tt.expectedStatus {
				t.Fatalf("Expected status %d, got %d: %s", tt.expectedStatus, w.Code, w.Body.String())
			}
			if gotKind != tt.wantKind {
				t.Errorf("Expected kind %q, got %q", tt.wantKind, gotKind)
			}
		})
	}
}

func TestConnectTile(t *testing.T) {
	m := &MockGameService{
		ConnectTileFunc: func(ctx context.Context, sessionID string, src, dst int) (*engine.Snapshot, error) {
			if src == 10 && dst == 2 {
				return emptyState(), nil
			}
			return nil, fmt.Errorf("connect %d -> %d: %w", src, dst, engine.ErrNotApplied)
		},
		ConnectionTargetsFunc: func(ctx context.Context, sessionID string, tileID int) ([]int, error) {
			return []int{1, 2, 4}, nil
		},
	}

	w := serve(t, m, makeRequest("POST", "/api/sessions/ab12/tiles/10/connect", map[string]int{"target": 2}))
	if w.Code != http.StatusOK {
		t.Errorf("Expected status 200, got %d", w.Code)
	}

	w = serve(t, m, makeRequest("POST", "/api/sessions/ab12/tiles/10/connect", map[string]int{"target": 19}))
	if w.Code != http.StatusUnprocessableEntity {
		t.Errorf("Expected status 422, got %d", w.Code)
	}

	w = serve(t, m, makeRequest("GET", "/api/sessions/ab12/tiles/10/targets", nil))
	var resp struct {
		Tile    int   `json:"tile"`
		Targets []int `json:"targets"`
	}
	parseResponse(t, w, &resp)
	if resp.Tile != 10 || len(resp.Targets) != 3 {
		t.Errorf("Unexpected targets response %+v", resp)
	}
}

func TestEditAndDuplicateTile(t *testing.T) {
	m := &MockGameService{
		EditTileFunc: func(ctx context.Context, sessionID string, tileID int, label, description string) (*service.TileResult, error) {
			if label == "" {
				return nil, engine.ErrEmptyTileLabel
			}
			return &service.TileResult{Tile: engine.Tile{ID: tileID, Label: label, Description: description}}, nil
		},
	}

	w := serve(t, m, makeRequest("PATCH", "/api/sessions/ab12/tiles/3", map[string]string{"label": "Kill Zulrah", "description": "Any style"}))
	var result service.TileResult
	parseResponse(t, w, &result)
	if w.Code != http.StatusOK || result.Tile.Label != "Kill Zulrah" {
		t.Errorf("Expected edited tile, got %d %+v", w.Code, result.Tile)
	}

	w = serve(t, m, makeRequest("PATCH", "/api/sessions/ab12/tiles/3", map[string]string{"label": ""}))
	if w.Code != http.StatusUnprocessableEntity {
		t.Errorf("Expected status 422 for an empty label, got %d", w.Code)
	}

	w = serve(t, m, makeRequest("POST", "/api/sessions/ab12/tiles/3/duplicate", nil))
	if w.Code != http.StatusCreated {
		t.Errorf("Expected status 201, got %d", w.Code)
	}
}

func TestExportBoard(t *testing.T) {
	m := &MockGameService{
		ExportBoardFunc: func(ctx context.Context, sessionID string, compressed bool) ([]byte, error) {
			return snapshot.Marshal([]engine.Tile{{ID: 1, Label: "Start", Kind: engine.Normal}}, compressed)
		},
	}

	w := serve(t, m, makeRequest("GET", "/api/sessions/ab12/board", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Expected JSON content type, got %s", ct)
	}
	if !strings.Contains(w.Header().Get("Content-Disposition"), "board-ab12.json") {
		t.Errorf("Unexpected disposition %s", w.Header().Get("Content-Disposition"))
	}

	w = serve(t, m, makeRequest("GET", "/api/sessions/ab12/board?compressed=true", nil))
	if ct := w.Header().Get("Content-Type"); ct != "application/zstd" {
		t.Errorf("Expected zstd content type, got %s", ct)
	}
	if !snapshot.IsCompressed(w.Body.Bytes()) {
		t.Error("Expected a zstd frame")
	}
}

func TestImportBoard(t *testing.T) {
	var got []byte
	m := &MockGameService{
		ImportBoardFunc: func(ctx context.Context, sessionID string, data []byte) (*engine.Snapshot, error) {
			got = data
			if !json.Valid(data) {
				return nil, fmt.Errorf("%w: %w", service.ErrInvalidImport, snapshot.ErrMalformed)
			}
			return emptyState(), nil
		},
	}

	body := `[{"id":1,"label":"Start","kind":"normal"}]`
	req := httptest.NewRequest("PUT", "/api/sessions/ab12/board", strings.NewReader(body))
	w := serve(t, m, req)
	if w.Code != http.StatusOK || string(got) != body {
		t.Errorf("Expected the raw body to be imported, got %d %q", w.Code, got)
	}

	req = httptest.NewRequest("PUT", "/api/sessions/ab12/board", strings.NewReader("not json"))
	w = serve(t, m, req)
	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected status 400, got %d", w.Code)
	}
}

// Team and Play Tests

func TestAddAndEditTeam(t *testing.T) {
	m := &MockGameService{
		AddTeamFunc: func(ctx context.Context, sessionID string, seed service.TeamSeed) (*service.TeamResult, error) {
			return &service.TeamResult{Team: engine.Team{ID: "t1", Name: seed.Name, Color: seed.Color, Members: seed.Members}}, nil
		},
		EditTeamFunc: func(ctx context.Context, sessionID, teamID string, update engine.TeamUpdate) (*service.TeamResult, error) {
			if update.Name == nil || *update.Name != "Renamed" || update.Color != nil {
				t.Errorf("Unexpected update %+v", update)
			}
			return &service.TeamResult{Team: engine.Team{ID: teamID, Name: *update.Name}}, nil
		},
	}

	w := serve(t, m, makeRequest("POST", "/api/sessions/ab12/teams", map[string]interface{}{
		"name": "GWD Squad", "color": "#DAA520", "members": []string{"Bandos"},
	}))
	var added service.TeamResult
	parseResponse(t, w, &added)
	if w.Code != http.StatusCreated || added.Team.Name != "GWD Squad" || added.Team.Members[0] != "Bandos" {
		t.Errorf("Unexpected add response %d %+v", w.Code, added.Team)
	}

	w = serve(t, m, makeRequest("PATCH", "/api/sessions/ab12/teams/t1", map[string]string{"name": "Renamed"}))
	if w.Code != http.StatusOK {
		t.Errorf("Expected status 200, got %d", w.Code)
	}
}

func TestResetPositionsRoute(t *testing.T) {
	called := false
	m := &MockGameService{
		ResetPositionsFunc: func(ctx context.Context, sessionID string) (*engine.Snapshot, error) {
			called = true
			return emptyState(), nil
		},
		EditTeamFunc: func(ctx context.Context, sessionID, teamID string, update engine.TeamUpdate) (*service.TeamResult, error) {
			t.Error("reset must not be routed as a team edit")
			return nil, nil
		},
	}

	w := serve(t, m, makeRequest("POST", "/api/sessions/ab12/teams/reset", nil))
	if w.Code != http.StatusOK || !called {
		t.Errorf("Expected reset to be called, got %d", w.Code)
	}
}

func TestRoll(t *testing.T) {
	tests := []struct {
		name           string
		body           interface{}
		setupMock      func(*MockGameService)
		expectedStatus int
	}{
		{
			name: "instant move",
			body: map[string]string{"team_id": "t1"},
			setupMock: func(m *MockGameService) {
				m.RollAndMoveFunc = func(ctx context.Context, sessionID, teamID string) (*service.MoveResult, error) {
					return &service.MoveResult{TeamID: teamID, Roll: 4, Plan: engine.MovePlan{From: 1, Final: 5}}, nil
				}
			},
			expectedStatus: http.StatusOK,
		},
		{
			name: "animated move",
			body: map[string]string{"team_id": "t1"},
			setupMock: func(m *MockGameService) {
				m.RollAndMoveFunc = func(ctx context.Context, sessionID, teamID string) (*service.MoveResult, error) {
					return &service.MoveResult{TeamID: teamID, Roll: 4, Animated: true}, nil
				}
			},
			expectedStatus: http.StatusAccepted,
		},
		{
			name:           "missing team",
			body:           map[string]string{},
			expectedStatus: http.StatusBadRequest,
		},
		{
			name: "move in progress",
			body: map[string]string{"team_id": "t2"},
			setupMock: func(m *MockGameService) {
				m.RollAndMoveFunc = func(ctx context.Context, sessionID, teamID string) (*service.MoveResult, error) {
					return nil, engine.ErrMoveInProgress
				}
			},
			expectedStatus: http.StatusConflict,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := &MockGameService{}
			if tt.setupMock != nil {
				tt.setupMock(m)
			}

			w := serve(t, m, makeRequest("POST", "/api/sessions/ab12/roll", tt.body))

			if w.Code != tt.expectedStatus {
				t.Errorf("Expected status %d, got %d: %s", tt.expectedStatus, w.Code, w.Body.String())
			}
		})
	}
}

func TestRollAll(t *testing.T) {
	m := &MockGameService{
		RollAllFunc: func(ctx context.Context, sessionID string) (*service.RollAllResult, error) {
			return &service.RollAllResult{Moves: []service.MoveResult{{TeamName: "Red"}, {TeamName: "Blue"}}}, nil
		},
	}

	w := serve(t, m, makeRequest("POST", "/api/sessions/ab12/roll-all", nil))
	var resp service.RollAllResult
	parseResponse(t, w, &resp)
	if w.Code != http.StatusOK || len(resp.Moves) != 2 {
		t.Errorf("Expected 2 moves, got %d %+v", w.Code, resp)
	}
}

func TestGetHistory(t *testing.T) {
	tests := []struct {
		name     string
		query    string
		wantOpts service.HistoryOptions
	}{
		{"defaults", "", service.HistoryOptions{Page: 1, Limit: 20, Order: "desc"}},
		{"explicit", "?page=3&limit=5&order=asc&team=t1", service.HistoryOptions{Page: 3, Limit: 5, Order: "asc", TeamID: "t1"}},
		{"invalid values fall back", "?page=-1&limit=abc&order=sideways", service.HistoryOptions{Page: 1, Limit: 20, Order: "desc"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got service.HistoryOptions
			m := &MockGameService{
				GetMoveHistoryFunc: func(ctx context.Context, sessionID string, opts service.HistoryOptions) (*service.HistoryResponse, error) {
					got = opts
					return &service.HistoryResponse{Moves: []engine.MoveHistoryEntry{}}, nil
				},
			}

			w := serve(t, m, makeRequest("GET", "/api/sessions/ab12/history"+tt.query, nil))

			if w.Code != http.StatusOK {
				t.Fatalf("Expected status 200, got %d", w.Code)
			}
			if got != tt.wantOpts {
				t.Errorf("Expected %+v, got %+v", tt.wantOpts, got)
			}
		})
	}
}

func TestSetRoleAndEditMode(t *testing.T) {
	m := &MockGameService{
		SetRoleFunc: func(ctx context.Context, sessionID string, role engine.Role) (*engine.Snapshot, error) {
			if role != engine.RoleLeader && role != engine.RoleParticipant {
				return nil, fmt.Errorf("%w: %q", engine.ErrInvalidRole, role)
			}
			state := emptyState()
			state.Role = role
			return state, nil
		},
	}

	w := serve(t, m, makeRequest("PUT", "/api/sessions/ab12/role", map[string]string{"role": "Participant"}))
	var state engine.Snapshot
	parseResponse(t, w, &state)
	if w.Code != http.StatusOK || state.Role != engine.RoleParticipant {
		t.Errorf("Expected participant role, got %d %s", w.Code, state.Role)
	}

	w = serve(t, m, makeRequest("PUT", "/api/sessions/ab12/role", map[string]string{"role": "admin"}))
	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected status 400 for an unknown role, got %d", w.Code)
	}

	w = serve(t, m, makeRequest("PUT", "/api/sessions/ab12/edit-mode", map[string]bool{"enabled": true}))
	parseResponse(t, w, &state)
	if !state.EditMode {
		t.Error("Expected edit mode on")
	}
}

// Board Library Tests

func TestBoards(t *testing.T) {
	var savedName string
	var savedCompressed bool
	m := &MockGameService{
		ListBoardsFunc: func(ctx context.Context) ([]*service.BoardInfo, error) {
			return []*service.BoardInfo{{BoardID: "classic", Tiles: 100, BuiltIn: true}}, nil
		},
		LoadBoardFunc: func(ctx context.Context, name string) ([]engine.Tile, error) {
			if name != "classic" {
				return nil, config.ErrBoardNotFound
			}
			return []engine.Tile{
				{ID: 1, Label: "Start", Kind: engine.Normal},
				{ID: 2, Label: "Ladder 2", Kind: engine.Ladder, Target: 1},
			}, nil
		},
		SaveBoardFunc: func(ctx context.Context, name string, data []byte, compressed bool) (*service.BoardInfo, error) {
			savedName, savedCompressed = name, compressed
			return &service.BoardInfo{BoardID: name, Compressed: compressed}, nil
		},
	}

	w := serve(t, m, makeRequest("GET", "/api/boards", nil))
	var boards []*service.BoardInfo
	parseResponse(t, w, &boards)
	if len(boards) != 1 || boards[0].BoardID != "classic" {
		t.Errorf("Unexpected boards %+v", boards)
	}

	w = serve(t, m, makeRequest("GET", "/api/boards/classic.json", nil))
	var board struct {
		BoardID string        `json:"board_id"`
		Tiles   []engine.Tile `json:"tiles"`
		Issues  []string      `json:"issues"`
	}
	parseResponse(t, w, &board)
	if board.BoardID != "classic" || len(board.Tiles) != 2 {
		t.Errorf("Unexpected board %+v", board)
	}
	if len(board.Issues) == 0 {
		t.Error("Expected the downward ladder to be reported")
	}

	w = serve(t, m, makeRequest("GET", "/api/boards/missing", nil))
	if w.Code != http.StatusNotFound {
		t.Errorf("Expected status 404, got %d", w.Code)
	}

	req := httptest.NewRequest("PUT", "/api/boards/mine?compressed=true", strings.NewReader(`[{"id":1,"label":"Start"}]`))
	w = serve(t, m, req)
	if w.Code != http.StatusCreated || savedName != "mine" || !savedCompressed {
		t.Errorf("Expected compressed board 'mine' saved, got %d %q %v", w.Code, savedName, savedCompressed)
	}
}

// Health and WebSocket Tests

func TestHealth(t *testing.T) {
	w := serve(t, &MockGameService{}, makeRequest("GET", "/healthz", nil))
	var resp map[string]string
	parseResponse(t, w, &resp)
	if w.Code != http.StatusOK || resp["status"] != "healthy" {
		t.Errorf("Unexpected health response %d %v", w.Code, resp)
	}
}

func TestWebSocket(t *testing.T) {
	m := &MockGameService{
		GetStateFunc: func(ctx context.Context, sessionID string) (*engine.Snapshot, error) {
			if sessionID != "ab12" {
				return nil, service.ErrSessionNotFound
			}
			state := emptyState()
			state.Message = "hello"
			return state, nil
		},
	}

	t.Run("missing session parameter", func(t *testing.T) {
		w := serve(t, m, makeRequest("GET", "/ws", nil))
		if w.Code != http.StatusBadRequest {
			t.Errorf("Expected status 400, got %d", w.Code)
		}
	})

	t.Run("unknown session", func(t *testing.T) {
		w := serve(t, m, makeRequest("GET", "/ws?session=nope", nil))
		if w.Code != http.StatusNotFound {
			t.Errorf("Expected status 404, got %d", w.Code)
		}
	})

	t.Run("hub disabled", func(t *testing.T) {
		w := httptest.NewRecorder()
		NewServer(m, nil).ServeHTTP(w, makeRequest("GET", "/ws?session=ab12", nil))
		if w.Code != http.StatusServiceUnavailable {
			t.Errorf("Expected status 503, got %d", w.Code)
		}
	})

	t.Run("initial state", func(t *testing.T) {
		server := httptest.NewServer(setupTestServer(t, m))
		defer server.Close()

		wsURL := "ws" + strings.TrimPrefix(server.URL, "http") + "/ws?session=ab12"
		conn, _, err := gorillaws.DefaultDialer.Dial(wsURL, nil)
		if err != nil {
			t.Fatalf("Failed to connect to WebSocket: %v", err)
		}
		defer conn.Close()

		conn.SetReadDeadline(time.Now().Add(time.Second))
		var message websocket.Message
		if err := conn.ReadJSON(&message); err != nil {
			t.Fatalf("Failed to read initial message: %v", err)
		}
		if message.Event != websocket.EventState || message.State.Message != "hello" {
			t.Errorf("Unexpected initial message %+v", message)
		}
	})
}
