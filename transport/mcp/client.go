package mcp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/wricardo/boardgame-tracker/game/engine"
	"github.com/wricardo/boardgame-tracker/game/service"
)

// Client is a thin MCP client that proxies to the REST API
type Client struct {
	baseURL    string
	httpClient *http.Client
	mcpServer  *server.MCPServer
}

// NewClient creates a new MCP client that calls the REST API
func NewClient(baseURL string) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}

	c.initMCPServer()
	return c
}

// initMCPServer initializes the MCP server with all tools
func (c *Client) initMCPServer() {
	c.mcpServer = server.NewMCPServer(
		"Board Game Tracker",
		"1.0.0",
		server.WithToolCapabilities(true),
		server.WithInstructions(`Board Game Tracker - MCP Interface

This is a thin client that proxies all requests to the REST API server.

A session holds a numbered board of tiles (normal, snake, ladder, fairy ring)
and a roster of teams. Teams roll a six-sided die and move forward; snakes and
ladders send a team to their target, rings send it to a random peer ring.

AVAILABLE TOOLS:
- create_session, list_sessions: manage tracker sessions
- board_state: tiles, teams and the last roll
- roll_and_move, roll_all: play turns
- add_team, remove_team, standings: manage the roster
- set_role, set_edit_mode: board edits need the leader role and edit mode on
- insert_tile, remove_tile, retype_tile, connect_tile, duplicate_tile, edit_tile, reset_board: edit the board
- describe_tile: details for a single tile
- move_history: past rolls
- list_boards: boards available for new sessions
- game_instructions: full rules`),
	)

	// Register all tools
	c.registerTools()
}

func sessionProp() map[string]interface{} {
	return map[string]interface{}{
		"type":        "string",
		"description": "Session ID",
	}
}

func tileProp(description string) map[string]interface{} {
	return map[string]interface{}{
		"type":        "integer",
		"description": description,
	}
}

// registerTools registers all MCP tools
func (c *Client) registerTools() {
	// Session management
	c.mcpServer.AddTool(mcp.Tool{
		Name:        "create_session",
		Description: "Create a new tracker session from a board in the library",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"board": map[string]interface{}{
					"type":        "string",
					"description": "Board to load (optional, defaults to the server's default board)",
				},
				"teams": map[string]interface{}{
					"type":        "array",
					"items":       map[string]interface{}{"type": "string"},
					"description": "Team names to add (optional)",
				},
				"seed_teams": map[string]interface{}{
					"type":        "boolean",
					"description": "Add the server's configured starter teams when no teams are given",
				},
			},
		},
	}, c.handleCreateSession)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "list_sessions",
		Description: "List all active tracker sessions",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}, c.handleListSessions)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "board_state",
		Description: "Get the board, the teams and the last roll of a session",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{"session_id": sessionProp()},
			Required:   []string{"session_id"},
		},
	}, c.handleBoardState)

	// Play
	c.mcpServer.AddTool(mcp.Tool{
		Name:        "roll_and_move",
		Description: "Roll the die for one team and move it",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"session_id": sessionProp(),
				"team_id": map[string]interface{}{
					"type":        "string",
					"description": "Team to move",
				},
			},
			Required: []string{"session_id", "team_id"},
		},
	}, c.handleRollAndMove)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "roll_all",
		Description: "Roll and move every team once, in roster order",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{"session_id": sessionProp()},
			Required:   []string{"session_id"},
		},
	}, c.handleRollAll)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "move_history",
		Description: "Get roll history for a session",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"session_id": sessionProp(),
				"page": map[string]interface{}{
					"type":        "integer",
					"description": "Page number",
				},
				"limit": map[string]interface{}{
					"type":        "integer",
					"description": "Items per page",
				},
				"team_id": map[string]interface{}{
					"type":        "string",
					"description": "Only show this team's rolls",
				},
			},
			Required: []string{"session_id"},
		},
	}, c.handleMoveHistory)

	// Teams
	c.mcpServer.AddTool(mcp.Tool{
		Name:        "add_team",
		Description: "Add a team at the start tile (leader role only)",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"session_id": sessionProp(),
				"name": map[string]interface{}{
					"type":        "string",
					"description": "Team name (optional, defaults to 'Team N')",
				},
				"color": map[string]interface{}{
					"type":        "string",
					"description": "Token color, e.g. #4169E1 (optional)",
				},
				"members": map[string]interface{}{
					"type":        "array",
					"items":       map[string]interface{}{"type": "string"},
					"description": "Member names (optional)",
				},
			},
			Required: []string{"session_id"},
		},
	}, c.handleAddTeam)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "remove_team",
		Description: "Remove a team from the roster (leader role only)",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"session_id": sessionProp(),
				"team_id": map[string]interface{}{
					"type":        "string",
					"description": "Team to remove",
				},
			},
			Required: []string{"session_id", "team_id"},
		},
	}, c.handleRemoveTeam)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "standings",
		Description: "List teams ordered by board position",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{"session_id": sessionProp()},
			Required:   []string{"session_id"},
		},
	}, c.handleStandings)

	// Roles
	c.mcpServer.AddTool(mcp.Tool{
		Name:        "set_role",
		Description: "Switch the session between the leader and participant roles",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"session_id": sessionProp(),
				"role": map[string]interface{}{
					"type": "string",
					"enum": []string{string(engine.RoleLeader), string(engine.RoleParticipant)},
				},
			},
			Required: []string{"session_id", "role"},
		},
	}, c.handleSetRole)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "set_edit_mode",
		Description: "Turn board editing on or off (leader role only)",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"session_id": sessionProp(),
				"enabled": map[string]interface{}{
					"type": "boolean",
				},
			},
			Required: []string{"session_id", "enabled"},
		},
	}, c.handleSetEditMode)

	// Board editing
	c.mcpServer.AddTool(mcp.Tool{
		Name:        "insert_tile",
		Description: "Insert a normal tile. Later tiles are renumbered and connections follow them.",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"session_id": sessionProp(),
				"index":      tileProp("0-based position to insert at (optional, appends when omitted)"),
			},
			Required: []string{"session_id"},
		},
	}, c.handleInsertTile)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "remove_tile",
		Description: "Remove a tile. Connections into it are cleared.",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"session_id": sessionProp(),
				"tile":       tileProp("Tile ID (1-based)"),
			},
			Required: []string{"session_id", "tile"},
		},
	}, c.handleRemoveTile)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "retype_tile",
		Description: "Change a tile's kind. Snakes and ladders get a default target and rings join the ring mesh.",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"session_id": sessionProp(),
				"tile":       tileProp("Tile ID (1-based)"),
				"kind": map[string]interface{}{
					"type": "string",
					"enum": []string{string(engine.Normal), string(engine.Snake), string(engine.Ladder), string(engine.Ring)},
				},
			},
			Required: []string{"session_id", "tile", "kind"},
		},
	}, c.handleRetypeTile)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "connect_tile",
		Description: "Point a snake or ladder at a new target. Snakes go down, ladders go up, targets must be normal tiles.",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"session_id": sessionProp(),
				"tile":       tileProp("Snake or ladder tile ID"),
				"target":     tileProp("Target tile ID"),
			},
			Required: []string{"session_id", "tile", "target"},
		},
	}, c.handleConnectTile)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "duplicate_tile",
		Description: "Append a copy of a tile at the end of the board",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"session_id": sessionProp(),
				"tile":       tileProp("Tile ID to copy"),
			},
			Required: []string{"session_id", "tile"},
		},
	}, c.handleDuplicateTile)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "edit_tile",
		Description: "Change a tile's label and description",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"session_id": sessionProp(),
				"tile":       tileProp("Tile ID"),
				"label": map[string]interface{}{
					"type":        "string",
					"description": "New label (must not be empty)",
				},
				"description": map[string]interface{}{
					"type":        "string",
					"description": "New description (optional)",
				},
			},
			Required: []string{"session_id", "tile", "label"},
		},
	}, c.handleEditTile)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "reset_board",
		Description: "Replace the board with the built-in default board and send every team to the start",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{"session_id": sessionProp()},
			Required:   []string{"session_id"},
		},
	}, c.handleResetBoard)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "describe_tile",
		Description: "Get detailed information about a single tile, including where it sends teams and who is standing on it",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"session_id": sessionProp(),
				"tile":       tileProp("Tile ID"),
			},
			Required: []string{"session_id", "tile"},
		},
	}, c.handleDescribeTile)

	// Library
	c.mcpServer.AddTool(mcp.Tool{
		Name:        "list_boards",
		Description: "List boards available for new sessions",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}, c.handleListBoards)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "game_instructions",
		Description: "Get the rules of the board and how the tools fit together",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}, c.handleGameInstructions)
}

// GetMCPServer returns the underlying MCP server for serving
func (c *Client) GetMCPServer() *server.MCPServer {
	return c.mcpServer
}

// Helper methods for API calls

func (c *Client) apiCall(ctx context.Context, method, path string, body interface{}, result interface{}) error {
	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reqBody = bytes.NewBuffer(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return err
	}

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		var errResp map[string]string
		json.NewDecoder(resp.Body).Decode(&errResp)
		if msg, ok := errResp["error"]; ok {
			return fmt.Errorf("%s", msg)
		}
		return fmt.Errorf("API error: %d", resp.StatusCode)
	}

	if result != nil {
		return json.NewDecoder(resp.Body).Decode(result)
	}

	return nil
}

func sessionPath(sessionID string, parts ...string) string {
	path := "/api/sessions/" + url.PathEscape(sessionID)
	for _, p := range parts {
		path += "/" + p
	}
	return path
}

// arguments returns the tool arguments, tolerating a missing object
func arguments(request mcp.CallToolRequest) map[string]interface{} {
	args, _ := request.Params.Arguments.(map[string]interface{})
	if args == nil {
		return map[string]interface{}{}
	}
	return args
}

// intArg reads a JSON number argument
func intArg(args map[string]interface{}, name string) (int, bool) {
	switch v := args[name].(type) {
	case float64:
		return int(v), true
	case int:
		return v, true
	}
	return 0, false
}

func stringsArg(args map[string]interface{}, name string) []string {
	raw, _ := args[name].([]interface{})
	out := make([]string, 0, len(raw))
	for _, r := range raw {
		if s, ok := r.(string); ok && s != "" {
			out = append(out, s)
		}
	}
	return out
}

func requireTile(args map[string]interface{}, name string) (int, *mcp.CallToolResult) {
	id, ok := intArg(args, name)
	if !ok || id < 1 {
		return 0, mcp.NewToolResultError(fmt.Sprintf("%s must be a positive tile id", name))
	}
	return id, nil
}

// Tool handlers

func (c *Client) handleCreateSession(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := arguments(request)

	body := service.CreateSessionRequest{}
	body.Board, _ = args["board"].(string)
	body.SeedTeams, _ = args["seed_teams"].(bool)
	for _, name := range stringsArg(args, "teams") {
		body.Teams = append(body.Teams, service.TeamSeed{Name: name})
	}

	var session service.SessionInfo
	if err := c.apiCall(ctx, "POST", "/api/sessions", body, &session); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	result := fmt.Sprintf("Created session: %s\nBoard: %s\n\n%s", session.ID, session.BoardName, formatBoardState(session.State))
	return mcp.NewToolResultText(result), nil
}

func (c *Client) handleListSessions(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var response struct {
		Count    int                   `json:"count"`
		Sessions []service.SessionInfo `json:"sessions"`
	}

	if err := c.apiCall(ctx, "GET", "/api/sessions", nil, &response); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	result := fmt.Sprintf("Active Sessions (%d):\n\n", response.Count)
	for _, s := range response.Sessions {
		teams := 0
		if s.State != nil {
			teams = len(s.State.Teams)
		}
		result += fmt.Sprintf("- %s (Board: %s, Teams: %d, Created: %s)\n",
			s.ID, s.BoardName, teams, s.CreatedAt.Format("15:04:05"))
	}

	return mcp.NewToolResultText(result), nil
}

func (c *Client) handleBoardState(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sessionID, _ := arguments(request)["session_id"].(string)

	var state engine.Snapshot
	if err := c.apiCall(ctx, "GET", sessionPath(sessionID, "state"), nil, &state); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultText(formatBoardState(&state)), nil
}

func (c *Client) handleRollAndMove(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := arguments(request)
	sessionID, _ := args["session_id"].(string)
	teamID, _ := args["team_id"].(string)

	var result service.MoveResult
	err := c.apiCall(ctx, "POST", sessionPath(sessionID, "roll"), map[string]string{"team_id": teamID}, &result)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultText(formatMoveResult(&result)), nil
}

func (c *Client) handleRollAll(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sessionID, _ := arguments(request)["session_id"].(string)

	var result service.RollAllResult
	if err := c.apiCall(ctx, "POST", sessionPath(sessionID, "roll-all"), nil, &result); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	var b strings.Builder
	b.WriteString(fmt.Sprintf("Rolled for %d teams\n\n", len(result.Moves)))
	for _, move := range result.Moves {
		b.WriteString(formatMoveLine(&move))
		b.WriteString("\n")
	}
	b.WriteString("\n")
	b.WriteString(formatStandings(standingsOf(result.State)))
	return mcp.NewToolResultText(b.String()), nil
}

func (c *Client) handleMoveHistory(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := arguments(request)
	sessionID, _ := args["session_id"].(string)

	params := url.Values{}
	if page, ok := intArg(args, "page"); ok {
		params.Set("page", fmt.Sprint(page))
	}
	if limit, ok := intArg(args, "limit"); ok {
		params.Set("limit", fmt.Sprint(limit))
	}
	if teamID, _ := args["team_id"].(string); teamID != "" {
		params.Set("team", teamID)
	}

	path := sessionPath(sessionID, "history")
	if len(params) > 0 {
		path += "?" + params.Encode()
	}

	var history service.HistoryResponse
	if err := c.apiCall(ctx, "GET", path, nil, &history); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultText(formatHistory(&history)), nil
}

func (c *Client) handleAddTeam(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := arguments(request)
	sessionID, _ := args["session_id"].(string)

	seed := service.TeamSeed{Members: stringsArg(args, "members")}
	seed.Name, _ = args["name"].(string)
	seed.Color, _ = args["color"].(string)

	var result service.TeamResult
	if err := c.apiCall(ctx, "POST", sessionPath(sessionID, "teams"), seed, &result); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultText(fmt.Sprintf("Added %s (id %s) at tile %d", result.Team.Name, result.Team.ID, result.Team.Position)), nil
}

func (c *Client) handleRemoveTeam(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := arguments(request)
	sessionID, _ := args["session_id"].(string)
	teamID, _ := args["team_id"].(string)

	var state engine.Snapshot
	if err := c.apiCall(ctx, "DELETE", sessionPath(sessionID, "teams", url.PathEscape(teamID)), nil, &state); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultText(fmt.Sprintf("Removed team %s\n\n%s", teamID, formatStandings(standingsOf(&state)))), nil
}

func (c *Client) handleStandings(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sessionID, _ := arguments(request)["session_id"].(string)

	var response struct {
		Standings []engine.Team `json:"standings"`
	}
	if err := c.apiCall(ctx, "GET", sessionPath(sessionID, "standings"), nil, &response); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultText(formatStandings(response.Standings)), nil
}

func (c *Client) handleSetRole(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := arguments(request)
	sessionID, _ := args["session_id"].(string)
	role, _ := args["role"].(string)

	var state engine.Snapshot
	if err := c.apiCall(ctx, "PUT", sessionPath(sessionID, "role"), map[string]string{"role": role}, &state); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultText(fmt.Sprintf("Role: %s | Edit mode: %s", state.Role, onOff(state.EditMode))), nil
}

func (c *Client) handleSetEditMode(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := arguments(request)
	sessionID, _ := args["session_id"].(string)
	enabled, _ := args["enabled"].(bool)

	var state engine.Snapshot
	if err := c.apiCall(ctx, "PUT", sessionPath(sessionID, "edit-mode"), map[string]bool{"enabled": enabled}, &state); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultText(fmt.Sprintf("Role: %s | Edit mode: %s", state.Role, onOff(state.EditMode))), nil
}

func (c *Client) handleInsertTile(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := arguments(request)
	sessionID, _ := args["session_id"].(string)

	body := map[string]int{}
	if index, ok := intArg(args, "index"); ok {
		body["index"] = index
	}

	var result service.TileResult
	if err := c.apiCall(ctx, "POST", sessionPath(sessionID, "tiles"), body, &result); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultText("Inserted " + formatTileLine(result.Tile, nil)), nil
}

func (c *Client) handleRemoveTile(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := arguments(request)
	sessionID, _ := args["session_id"].(string)
	tileID, errResult := requireTile(args, "tile")
	if errResult != nil {
		return errResult, nil
	}

	var state engine.Snapshot
	if err := c.apiCall(ctx, "DELETE", sessionPath(sessionID, "tiles", fmt.Sprint(tileID)), nil, &state); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultText(fmt.Sprintf("Removed tile %d. The board now has %d tiles.", tileID, len(state.Tiles))), nil
}

func (c *Client) handleRetypeTile(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := arguments(request)
	sessionID, _ := args["session_id"].(string)
	kind, _ := args["kind"].(string)
	tileID, errResult := requireTile(args, "tile")
	if errResult != nil {
		return errResult, nil
	}

	var result service.TileResult
	err := c.apiCall(ctx, "PUT", sessionPath(sessionID, "tiles", fmt.Sprint(tileID), "kind"), map[string]string{"kind": kind}, &result)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultText("Updated " + formatTileLine(result.Tile, nil)), nil
}

func (c *Client) handleConnectTile(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := arguments(request)
	sessionID, _ := args["session_id"].(string)
	tileID, errResult := requireTile(args, "tile")
	if errResult != nil {
		return errResult, nil
	}
	target, errResult := requireTile(args, "target")
	if errResult != nil {
		return errResult, nil
	}

	var state engine.Snapshot
	err := c.apiCall(ctx, "POST", sessionPath(sessionID, "tiles", fmt.Sprint(tileID), "connect"), map[string]int{"target": target}, &state)
	if err != nil {
		// Point the caller at the legal choices
		var options struct {
			Targets []int `json:"targets"`
		}
		if c.apiCall(ctx, "GET", sessionPath(sessionID, "tiles", fmt.Sprint(tileID), "targets"), nil, &options) == nil && len(options.Targets) > 0 {
			return mcp.NewToolResultError(fmt.Sprintf("%s\nValid targets: %s", err, joinInts(options.Targets))), nil
		}
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultText(fmt.Sprintf("Tile %d now sends teams to tile %d", tileID, target)), nil
}

func (c *Client) handleDuplicateTile(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := arguments(request)
	sessionID, _ := args["session_id"].(string)
	tileID, errResult := requireTile(args, "tile")
	if errResult != nil {
		return errResult, nil
	}

	var result service.TileResult
	if err := c.apiCall(ctx, "POST", sessionPath(sessionID, "tiles", fmt.Sprint(tileID), "duplicate"), nil, &result); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultText("Appended " + formatTileLine(result.Tile, nil)), nil
}

func (c *Client) handleEditTile(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := arguments(request)
	sessionID, _ := args["session_id"].(string)
	label, _ := args["label"].(string)
	description, _ := args["description"].(string)
	tileID, errResult := requireTile(args, "tile")
	if errResult != nil {
		return errResult, nil
	}

	body := map[string]string{"label": label, "description": description}
	var result service.TileResult
	if err := c.apiCall(ctx, "PATCH", sessionPath(sessionID, "tiles", fmt.Sprint(tileID)), body, &result); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultText("Updated " + formatTileLine(result.Tile, nil)), nil
}

func (c *Client) handleResetBoard(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sessionID, _ := arguments(request)["session_id"].(string)

	var state engine.Snapshot
	if err := c.apiCall(ctx, "DELETE", sessionPath(sessionID, "board"), nil, &state); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultText("Board reset\n\n" + formatBoardState(&state)), nil
}

func (c *Client) handleDescribeTile(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := arguments(request)
	sessionID, _ := args["session_id"].(string)
	tileID, errResult := requireTile(args, "tile")
	if errResult != nil {
		return errResult, nil
	}

	var state engine.Snapshot
	if err := c.apiCall(ctx, "GET", sessionPath(sessionID, "state"), nil, &state); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	if tileID > len(state.Tiles) {
		return mcp.NewToolResultError(fmt.Sprintf("Tile %d is out of range. The board has tiles 1-%d", tileID, len(state.Tiles))), nil
	}
	tile := state.Tiles[tileID-1]

	var b strings.Builder
	b.WriteString(fmt.Sprintf("Tile %d\n━━━━━━━━━━━━━━━━━━━━━━━━\n", tile.ID))
	b.WriteString(fmt.Sprintf("Label: %s\n", tile.Label))
	if tile.Description != "" {
		b.WriteString(fmt.Sprintf("Description: %s\n", tile.Description))
	}
	b.WriteString(fmt.Sprintf("Kind: %s\n", tile.Kind))

	switch tile.Kind {
	case engine.Snake, engine.Ladder:
		if tile.Target > 0 {
			b.WriteString(fmt.Sprintf("Sends teams to: tile %d\n", tile.Target))
		} else {
			b.WriteString("Sends teams to: nowhere yet (no target set)\n")
		}
	case engine.Ring:
		if len(tile.RingTargets) > 0 {
			b.WriteString(fmt.Sprintf("Sends teams to one of: %s (chosen by a die roll)\n", joinInts(tile.RingTargets)))
		} else {
			b.WriteString("Sends teams to: nowhere (no other rings on the board)\n")
		}
	}

	var here []string
	for _, team := range state.Teams {
		if team.Position == tile.ID {
			here = append(here, team.Name)
		}
	}
	if len(here) > 0 {
		b.WriteString(fmt.Sprintf("Teams here: %s\n", strings.Join(here, ", ")))
	}

	var feeders []string
	for _, other := range state.Tiles {
		for _, dst := range other.Destinations() {
			if dst == tile.ID {
				feeders = append(feeders, fmt.Sprintf("%d (%s)", other.ID, other.Kind))
			}
		}
	}
	if len(feeders) > 0 {
		b.WriteString(fmt.Sprintf("Reached from: %s\n", strings.Join(feeders, ", ")))
	}

	return mcp.NewToolResultText(b.String()), nil
}

func (c *Client) handleListBoards(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var boards []service.BoardInfo
	if err := c.apiCall(ctx, "GET", "/api/boards", nil, &boards); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	result := "Available Boards:\n\n"
	for _, board := range boards {
		result += fmt.Sprintf("• %s\n  Tiles: %d, Snakes: %d, Ladders: %d, Rings: %d\n",
			board.BoardID, board.Tiles, board.Snakes, board.Ladders, board.Rings)
		if board.BuiltIn {
			result += "  (built in)\n"
		}
		result += "\n"
	}

	return mcp.NewToolResultText(result), nil
}

func (c *Client) handleGameInstructions(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	instructions := `Board Game Tracker - Complete Instructions

THE BOARD:
Tiles are numbered from 1. Tile 1 is the start, the last tile is the finish.
Every tile has a label and an optional description of the task it stands for.

TILE KINDS:
• normal - nothing happens when a team lands here
• snake  - sends the team DOWN to its target tile
• ladder - sends the team UP to its target tile
• ring   - a fairy ring; sends the team to another ring chosen by a die roll

MOVEMENT:
• A roll is a six-sided die (1-6)
• The team walks forward one tile per pip and stops at the finish instead of overshooting
• Only the tile a team lands on is resolved; tiles passed on the way are ignored
• A team teleports at most once per roll, even if it lands on another snake, ladder or ring
• Ring rolls wrap: with three other rings a roll of 4 picks the first ring again

CONNECTIONS:
• Snake and ladder targets must be normal tiles
• Snakes point to a lower tile, ladders to a higher tile
• Inserting or removing tiles renumbers the board and every connection follows its tile
• Use describe_tile to see where a tile leads and which tiles lead to it

ROLES:
• leader: may edit teams, and may edit the board once edit mode is on
• participant: may only roll
• Use set_role and set_edit_mode to switch

SUGGESTED FLOW:
1. list_boards, then create_session with a board and team names
2. board_state to see the tiles and where each team stands
3. roll_and_move for one team, or roll_all to play a full round
4. standings and move_history to follow the race

WINNING:
The first team to reach the last tile leads the standings. The tracker does
not end the game; keep rolling or reset with reset_board.`

	return mcp.NewToolResultText(instructions), nil
}

// Formatting helpers

func onOff(v bool) string {
	if v {
		return "on"
	}
	return "off"
}

func joinInts(values []int) string {
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = fmt.Sprint(v)
	}
	return strings.Join(parts, ", ")
}

func formatTileLine(tile engine.Tile, teams []string) string {
	line := fmt.Sprintf("%3d. [%s] %s", tile.ID, tile.Kind, tile.Label)
	switch {
	case tile.Target > 0 && (tile.Kind == engine.Snake || tile.Kind == engine.Ladder):
		line += fmt.Sprintf(" -> %d", tile.Target)
	case tile.Kind == engine.Ring && len(tile.RingTargets) > 0:
		line += " -> {" + joinInts(tile.RingTargets) + "}"
	}
	if len(teams) > 0 {
		line += "  <" + strings.Join(teams, ", ") + ">"
	}
	return line
}

func formatBoardState(state *engine.Snapshot) string {
	if state == nil {
		return "No board state available"
	}

	var result strings.Builder

	result.WriteString(fmt.Sprintf("Tiles: %d | Teams: %d | Role: %s | Edit mode: %s | Moves: %d\n",
		len(state.Tiles), len(state.Teams), state.Role, onOff(state.EditMode), state.TotalMoves))
	if state.LastRoll > 0 {
		result.WriteString(fmt.Sprintf("Last roll: %d\n", state.LastRoll))
	}
	if state.MovingTeam != "" {
		result.WriteString(fmt.Sprintf("Moving: %s\n", state.MovingTeam))
	}
	result.WriteString("\n")

	occupants := map[int][]string{}
	for _, team := range state.Teams {
		occupants[team.Position] = append(occupants[team.Position], team.Name)
	}
	for _, tile := range state.Tiles {
		result.WriteString(formatTileLine(tile, occupants[tile.ID]))
		result.WriteString("\n")
	}

	if len(state.Teams) > 0 {
		result.WriteString("\n")
		result.WriteString(formatStandings(standingsOf(state)))
	}

	if state.Message != "" {
		result.WriteString(fmt.Sprintf("\nMessage: %s", state.Message))
	}

	return result.String()
}

// standingsOf orders a snapshot's teams by position, keeping roster order on ties
func standingsOf(state *engine.Snapshot) []engine.Team {
	if state == nil {
		return nil
	}
	teams := append([]engine.Team(nil), state.Teams...)
	for i := 1; i < len(teams); i++ {
		for j := i; j > 0 && teams[j].Position > teams[j-1].Position; j-- {
			teams[j], teams[j-1] = teams[j-1], teams[j]
		}
	}
	return teams
}

func formatStandings(teams []engine.Team) string {
	if len(teams) == 0 {
		return "Standings: no teams"
	}
	var b strings.Builder
	b.WriteString("Standings:\n")
	for i, team := range teams {
		b.WriteString(fmt.Sprintf("%d. %s (id %s) - tile %d", i+1, team.Name, team.ID, team.Position))
		if len(team.Members) > 0 {
			b.WriteString(" [" + strings.Join(team.Members, ", ") + "]")
		}
		b.WriteString("\n")
	}
	return b.String()
}

func formatMoveLine(result *service.MoveResult) string {
	p := result.Plan
	line := fmt.Sprintf("%s rolled %d: %d -> %d", result.TeamName, result.Roll, p.From, p.Landing)
	if p.Teleport != nil {
		line += fmt.Sprintf(" -> %d (%s)", p.Teleport.To, p.Teleport.Kind)
		if p.Teleport.RingRoll > 0 {
			line += fmt.Sprintf(", ring roll %d", p.Teleport.RingRoll)
		}
	}
	return line
}

func formatMoveResult(result *service.MoveResult) string {
	var b strings.Builder
	b.WriteString(formatMoveLine(result))
	b.WriteString("\n")
	if result.Animated {
		b.WriteString("The move is being played out; check board_state for the final position.\n")
	}
	if result.Message != "" {
		b.WriteString(result.Message + "\n")
	}

	if len(result.Events) > 0 {
		b.WriteString("Events:\n")
		for _, event := range result.Events {
			b.WriteString(fmt.Sprintf("- %s: %s\n", event.Type, event.Message))
		}
	}

	if result.State != nil {
		b.WriteString("\n")
		b.WriteString(formatStandings(standingsOf(result.State)))
	}
	return b.String()
}

func formatHistory(history *service.HistoryResponse) string {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("Move History (Page %d/%d) - Total: %d\n\n",
		history.Page, history.TotalPages, history.TotalMoves))

	for _, move := range history.Moves {
		b.WriteString(fmt.Sprintf("%d. %s rolled %d: %d -> %d", move.MoveNumber, move.TeamName, move.Roll, move.From, move.Landing))
		if move.Teleport != "" {
			b.WriteString(fmt.Sprintf(" -> %d (%s)", move.To, move.Teleport))
		}
		b.WriteString("\n")
	}
	if len(history.Moves) == 0 {
		b.WriteString("(no moves)\n")
	}

	return b.String()
}
