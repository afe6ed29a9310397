// Package mcp exposes the tracker to AI agents over the Model Context Protocol.
//
// The Client is a thin proxy: every tool call becomes a request against the
// REST API, and the JSON reply is rendered as plain text for the agent. It
// can serve stdio directly or be mounted on an HTTP endpoint through
// GetMCPServer.
//
// MCP Tools:
//   - create_session, list_sessions, board_state
//   - roll_and_move, roll_all, move_history
//   - add_team, remove_team, standings
//   - set_role, set_edit_mode
//   - insert_tile, remove_tile, retype_tile, connect_tile, duplicate_tile,
//     edit_tile, reset_board, describe_tile
//   - list_boards, game_instructions
//
// Usage:
//
//	client := mcp.NewClient("http://localhost:8080")
//	server.ServeStdio(client.GetMCPServer())
package mcp
