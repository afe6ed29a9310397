package api

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog/log"

	"github.com/wricardo/boardgame-tracker/game/config"
	"github.com/wricardo/boardgame-tracker/game/engine"
	"github.com/wricardo/boardgame-tracker/game/service"
	"github.com/wricardo/boardgame-tracker/game/snapshot"
	"github.com/wricardo/boardgame-tracker/transport/websocket"
)

// maxUploadBytes caps board documents accepted by import and save
const maxUploadBytes = 8 << 20

// Server represents the REST API server
type Server struct {
	service service.GameService
	hub     *websocket.Hub
	router  *mux.Router
}

// NewServer creates a new API server. hub may be nil, in which case /ws is unavailable.
func NewServer(gameService service.GameService, hub *websocket.Hub) *Server {
	s := &Server{
		service: gameService,
		hub:     hub,
		router:  mux.NewRouter(),
	}

	s.setupRoutes()
	return s
}

// setupRoutes configures all API routes
func (s *Server) setupRoutes() {
	s.router.Use(logRequests)

	api := s.router.PathPrefix("/api").Subrouter()

	// Session management
	api.HandleFunc("/sessions", s.handleCreateSession).Methods("POST")
	api.HandleFunc("/sessions", s.handleListSessions).Methods("GET")
	api.HandleFunc("/sessions/{id}", s.handleGetSession).Methods("GET")
	api.HandleFunc("/sessions/{id}", s.handleDeleteSession).Methods("DELETE")
	api.HandleFunc("/sessions/{id}/state", s.handleGetState).Methods("GET")

	// Board editing
	api.HandleFunc("/sessions/{id}/tiles", s.handleInsertTile).Methods("POST")
	api.HandleFunc("/sessions/{id}/tiles/{tile}", s.handleEditTile).Methods("PATCH")
	api.HandleFunc("/sessions/{id}/tiles/{tile}", s.handleRemoveTile).Methods("DELETE")
	api.HandleFunc("/sessions/{id}/tiles/{tile}/kind", s.handleRetypeTile).Methods("PUT")
	api.HandleFunc("/sessions/{id}/tiles/{tile}/cycle", s.handleCycleTile).Methods("POST")
	api.HandleFunc("/sessions/{id}/tiles/{tile}/connect", s.handleConnectTile).Methods("POST")
	api.HandleFunc("/sessions/{id}/tiles/{tile}/targets", s.handleConnectionTargets).Methods("GET")
	api.HandleFunc("/sessions/{id}/tiles/{tile}/duplicate", s.handleDuplicateTile).Methods("POST")
	api.HandleFunc("/sessions/{id}/board", s.handleExportBoard).Methods("GET")
	api.HandleFunc("/sessions/{id}/board", s.handleImportBoard).Methods("PUT")
	api.HandleFunc("/sessions/{id}/board", s.handleResetBoard).Methods("DELETE")

	// Teams
	api.HandleFunc("/sessions/{id}/teams", s.handleAddTeam).Methods("POST")
	api.HandleFunc("/sessions/{id}/teams/reset", s.handleResetPositions).Methods("POST")
	api.HandleFunc("/sessions/{id}/teams/{team}", s.handleEditTeam).Methods("PATCH")
	api.HandleFunc("/sessions/{id}/teams/{team}", s.handleRemoveTeam).Methods("DELETE")
	api.HandleFunc("/sessions/{id}/standings", s.handleStandings).Methods("GET")

	// Play
	api.HandleFunc("/sessions/{id}/roll", s.handleRoll).Methods("POST")
	api.HandleFunc("/sessions/{id}/roll-all", s.handleRollAll).Methods("POST")
	api.HandleFunc("/sessions/{id}/history", s.handleGetHistory).Methods("GET")

	// Roles
	api.HandleFunc("/sessions/{id}/role", s.handleSetRole).Methods("PUT")
	api.HandleFunc("/sessions/{id}/edit-mode", s.handleSetEditMode).Methods("PUT")

	// Board library
	api.HandleFunc("/boards", s.handleListBoards).Methods("GET")
	api.HandleFunc("/boards/{name}", s.handleGetBoard).Methods("GET")
	api.HandleFunc("/boards/{name}", s.handleSaveBoard).Methods("PUT")

	s.router.HandleFunc("/healthz", s.handleHealth).Methods("GET")

	// WebSocket
	s.router.HandleFunc("/ws", s.handleWebSocket)

	// Static files (if needed)
	s.router.PathPrefix("/").Handler(http.FileServer(http.Dir("./static/")))
}

// ServeHTTP implements http.Handler
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// statusRecorder captures the status code for request logging
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// Hijack lets the websocket upgrader take over the connection
func (r *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := r.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("response writer does not support hijacking")
	}
	return h.Hijack()
}

func logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		log.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", rec.status).
			Dur("took", time.Since(start)).
			Msg("HTTP request")
	})
}

// Response helpers
func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

// respondServiceError maps a service error to its HTTP status
func respondServiceError(w http.ResponseWriter, err error) {
	respondError(w, statusFor(err), err.Error())
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, service.ErrSessionNotFound),
		errors.Is(err, engine.ErrUnknownTeam),
		errors.Is(err, engine.ErrUnknownTile),
		errors.Is(err, config.ErrBoardNotFound):
		return http.StatusNotFound
	case errors.Is(err, engine.ErrMoveInProgress):
		return http.StatusConflict
	case errors.Is(err, engine.ErrEditNotAllowed):
		return http.StatusForbidden
	case errors.Is(err, service.ErrInvalidImport),
		errors.Is(err, engine.ErrInvalidKind),
		errors.Is(err, engine.ErrInvalidRole),
		errors.Is(err, engine.ErrEmptyImportData),
		errors.Is(err, config.ErrInvalidBoard):
		return http.StatusBadRequest
	case errors.Is(err, engine.ErrNotApplied),
		errors.Is(err, engine.ErrEmptyTileLabel),
		errors.Is(err, engine.ErrTooManyTeams),
		errors.Is(err, engine.ErrBoardTooLarge),
		errors.Is(err, engine.ErrEmptyBoard),
		errors.Is(err, service.ErrNoTeams):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

// decodeBody decodes an optional JSON body. An empty body leaves dst untouched.
func decodeBody(r *http.Request, dst interface{}) error {
	if r.Body == nil {
		return nil
	}
	err := json.NewDecoder(r.Body).Decode(dst)
	if errors.Is(err, io.EOF) {
		return nil
	}
	return err
}

func tileParam(w http.ResponseWriter, r *http.Request) (int, bool) {
	id, err := strconv.Atoi(mux.Vars(r)["tile"])
	if err != nil || id < 1 {
		respondError(w, http.StatusBadRequest, "tile must be a positive integer")
		return 0, false
	}
	return id, true
}

func queryBool(r *http.Request, name string) bool {
	v, _ := strconv.ParseBool(r.URL.Query().Get(name))
	return v
}

// Session Handlers

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var req service.CreateSessionRequest
	if err := decodeBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	session, err := s.service.CreateSession(r.Context(), req)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusCreated, session)
}

func (s *Server) handleListSessions(w http.ResponseWriter, r *http.Request) {
	sessions, err := s.service.ListSessions(r.Context())
	if err != nil {
		respondServiceError(w, err)
		return
	}

	// Parse query parameters
	query := r.URL.Query()
	sortBy := query.Get("sort")    // "created", "accessed" (default)
	order := query.Get("order")    // "asc", "desc" (default: "desc")
	limitStr := query.Get("limit") // number of sessions to return
	board := query.Get("board")    // only sessions created from this board

	// Set defaults
	if sortBy == "" {
		sortBy = "accessed"
	}
	if order == "" {
		order = "desc"
	}

	if board != "" {
		filtered := sessions[:0]
		for _, sess := range sessions {
			if sess.BoardName == board {
				filtered = append(filtered, sess)
			}
		}
		sessions = filtered
	}
	total := len(sessions)

	// Sort sessions
	sort.Slice(sessions, func(i, j int) bool {
		var ti, tj time.Time
		if sortBy == "created" {
			ti, tj = sessions[i].CreatedAt, sessions[j].CreatedAt
		} else { // "accessed"
			ti, tj = sessions[i].LastAccessedAt, sessions[j].LastAccessedAt
		}

		if order == "asc" {
			return ti.Before(tj)
		}
		return ti.After(tj) // desc
	})

	// Apply limit if specified
	limit := len(sessions)
	if limitStr != "" {
		if l, err := strconv.Atoi(limitStr); err == nil && l > 0 && l < len(sessions) {
			limit = l
		}
	}
	sessions = sessions[:limit]

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"count":    len(sessions),
		"total":    total,
		"sessions": sessions,
		"sort":     sortBy,
		"order":    order,
	})
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	session, err := s.service.GetSession(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, session)
}

func (s *Server) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	sessionID := mux.Vars(r)["id"]

	if err := s.service.DeleteSession(r.Context(), sessionID); err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{
		"message": fmt.Sprintf("Session %s deleted", sessionID),
	})
}

func (s *Server) handleGetState(w http.ResponseWriter, r *http.Request) {
	state, err := s.service.GetState(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, state)
}

// Board Handlers

func (s *Server) handleInsertTile(w http.ResponseWriter, r *http.Request) {
	var req struct {
		// Index is 0-based; omitted or out of range appends
		Index *int `json:"index,omitempty"`
	}
	if err := decodeBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	index := -1
	if req.Index != nil {
		index = *req.Index
	}

	result, err := s.service.InsertTile(r.Context(), mux.Vars(r)["id"], index)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusCreated, result)
}

func (s *Server) handleEditTile(w http.ResponseWriter, r *http.Request) {
	tileID, ok := tileParam(w, r)
	if !ok {
		return
	}
	var req struct {
		Label       string `json:"label"`
		Description string `json:"description"`
	}
	if err := decodeBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	result, err := s.service.EditTile(r.Context(), mux.Vars(r)["id"], tileID, req.Label, req.Description)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, result)
}

func (s *Server) handleRemoveTile(w http.ResponseWriter, r *http.Request) {
	tileID, ok := tileParam(w, r)
	if !ok {
		return
	}

	state, err := s.service.RemoveTile(r.Context(), mux.Vars(r)["id"], tileID)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, state)
}

func (s *Server) handleRetypeTile(w http.ResponseWriter, r *http.Request) {
	tileID, ok := tileParam(w, r)
	if !ok {
		return
	}
	var req struct {
		Kind string `json:"kind"`
	}
	if err := decodeBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	kind, ok := engine.ParseTileKind(req.Kind)
	if !ok {
		respondError(w, http.StatusBadRequest, fmt.Sprintf("unknown tile kind %q (want normal, snake, ladder or ring)", req.Kind))
		return
	}

	result, err := s.service.RetypeTile(r.Context(), mux.Vars(r)["id"], tileID, kind)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, result)
}

func (s *Server) handleCycleTile(w http.ResponseWriter, r *http.Request) {
	tileID, ok := tileParam(w, r)
	if !ok {
		return
	}

	result, err := s.service.CycleTile(r.Context(), mux.Vars(r)["id"], tileID)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, result)
}

func (s *Server) handleConnectTile(w http.ResponseWriter, r *http.Request) {
	tileID, ok := tileParam(w, r)
	if !ok {
		return
	}
	var req struct {
		Target int `json:"target"`
	}
	if err := decodeBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	state, err := s.service.ConnectTile(r.Context(), mux.Vars(r)["id"], tileID, req.Target)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, state)
}

func (s *Server) handleConnectionTargets(w http.ResponseWriter, r *http.Request) {
	tileID, ok := tileParam(w, r)
	if !ok {
		return
	}

	targets, err := s.service.ConnectionTargets(r.Context(), mux.Vars(r)["id"], tileID)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"tile":    tileID,
		"targets": targets,
	})
}

func (s *Server) handleDuplicateTile(w http.ResponseWriter, r *http.Request) {
	tileID, ok := tileParam(w, r)
	if !ok {
		return
	}

	result, err := s.service.DuplicateTile(r.Context(), mux.Vars(r)["id"], tileID)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusCreated, result)
}

func (s *Server) handleResetBoard(w http.ResponseWriter, r *http.Request) {
	state, err := s.service.ResetBoard(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, state)
}

func (s *Server) handleExportBoard(w http.ResponseWriter, r *http.Request) {
	sessionID := mux.Vars(r)["id"]
	compressed := queryBool(r, "compressed")

	data, err := s.service.ExportBoard(r.Context(), sessionID, compressed)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	filename := "board-" + sessionID + ".json"
	contentType := "application/json"
	if compressed {
		filename += snapshot.CompressedExt
		contentType = "application/zstd"
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}

func (s *Server) handleImportBoard(w http.ResponseWriter, r *http.Request) {
	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxUploadBytes))
	if err != nil {
		respondError(w, http.StatusRequestEntityTooLarge, "board document too large")
		return
	}

	state, err := s.service.ImportBoard(r.Context(), mux.Vars(r)["id"], data)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, state)
}

// Team Handlers

func (s *Server) handleAddTeam(w http.ResponseWriter, r *http.Request) {
	var seed service.TeamSeed
	if err := decodeBody(r, &seed); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	result, err := s.service.AddTeam(r.Context(), mux.Vars(r)["id"], seed)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusCreated, result)
}

func (s *Server) handleEditTeam(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	var update engine.TeamUpdate
	if err := decodeBody(r, &update); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	result, err := s.service.EditTeam(r.Context(), vars["id"], vars["team"], update)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, result)
}

func (s *Server) handleRemoveTeam(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)

	state, err := s.service.RemoveTeam(r.Context(), vars["id"], vars["team"])
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, state)
}

func (s *Server) handleResetPositions(w http.ResponseWriter, r *http.Request) {
	state, err := s.service.ResetPositions(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, state)
}

func (s *Server) handleStandings(w http.ResponseWriter, r *http.Request) {
	teams, err := s.service.Standings(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"standings": teams,
	})
}

// Play Handlers

func (s *Server) handleRoll(w http.ResponseWriter, r *http.Request) {
	var req struct {
		TeamID string `json:"team_id"`
	}
	if err := decodeBody(r, &req); err != nil || req.TeamID == "" {
		respondError(w, http.StatusBadRequest, "team_id is required")
		return
	}

	result, err := s.service.RollAndMove(r.Context(), mux.Vars(r)["id"], req.TeamID)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	status := http.StatusOK
	if result.Animated {
		status = http.StatusAccepted
	}
	respondJSON(w, status, result)
}

func (s *Server) handleRollAll(w http.ResponseWriter, r *http.Request) {
	result, err := s.service.RollAll(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, result)
}

func (s *Server) handleGetHistory(w http.ResponseWriter, r *http.Request) {
	// Parse query parameters
	opts := service.HistoryOptions{
		Page:  1,
		Limit: 20,
		Order: "desc",
	}

	query := r.URL.Query()
	if pageStr := query.Get("page"); pageStr != "" {
		if p, err := strconv.Atoi(pageStr); err == nil && p > 0 {
			opts.Page = p
		}
	}

	if limitStr := query.Get("limit"); limitStr != "" {
		if l, err := strconv.Atoi(limitStr); err == nil && l > 0 {
			opts.Limit = l
		}
	}

	if order := query.Get("order"); order == "asc" || order == "desc" {
		opts.Order = order
	}
	opts.TeamID = query.Get("team")

	history, err := s.service.GetMoveHistory(r.Context(), mux.Vars(r)["id"], opts)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, history)
}

// Role Handlers

func (s *Server) handleSetRole(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Role string `json:"role"`
	}
	if err := decodeBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	state, err := s.service.SetRole(r.Context(), mux.Vars(r)["id"], engine.Role(strings.ToLower(req.Role)))
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, state)
}

func (s *Server) handleSetEditMode(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Enabled bool `json:"enabled"`
	}
	if err := decodeBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	state, err := s.service.SetEditMode(r.Context(), mux.Vars(r)["id"], req.Enabled)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, state)
}

// Board Library Handlers

func (s *Server) handleListBoards(w http.ResponseWriter, r *http.Request) {
	boards, err := s.service.ListBoards(r.Context())
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, boards)
}

func (s *Server) handleGetBoard(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]

	// Accept file names as well as board ids
	name = strings.TrimSuffix(strings.TrimSuffix(name, snapshot.CompressedExt), ".json")

	tiles, err := s.service.LoadBoard(r.Context(), name)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"board_id": name,
		"tiles":    tiles,
		"issues":   engine.AuditTiles(tiles),
	})
}

func (s *Server) handleSaveBoard(w http.ResponseWriter, r *http.Request) {
	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxUploadBytes))
	if err != nil {
		respondError(w, http.StatusRequestEntityTooLarge, "board document too large")
		return
	}

	info, err := s.service.SaveBoard(r.Context(), mux.Vars(r)["name"], data, queryBool(r, "compressed"))
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusCreated, info)
}

// WebSocket Handler

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	sessionID := r.URL.Query().Get("session")
	if sessionID == "" {
		http.Error(w, "session parameter required", http.StatusBadRequest)
		return
	}
	if s.hub == nil {
		http.Error(w, "WebSocket updates are disabled", http.StatusServiceUnavailable)
		return
	}

	// Verify session exists
	state, err := s.service.GetState(r.Context(), sessionID)
	if err != nil {
		http.Error(w, "Invalid session", http.StatusNotFound)
		return
	}

	// Upgrade to WebSocket
	s.hub.ServeWS(w, r, sessionID, state)
}

// Health check
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"status": "healthy",
	})
}
