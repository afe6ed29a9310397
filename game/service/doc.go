// Package service provides the business logic layer for the board tracker.
//
// The service package implements:
//   - Multi-session tracker management
//   - Board library access and snapshot import/export
//   - Roll processing, optionally animated tick by tick
//   - Edit permissions for the leader and participant roles
//   - Move history pagination
//
// Core Interfaces:
//
// GameService is the main service interface providing high-level operations.
// SessionManager handles session creation, retrieval, and lifecycle.
// BoardManager serves the library of named boards.
// Notifier receives the new snapshot after every change.
//
// Architecture:
//
// The service layer sits between the transport layer (HTTP/WebSocket/MCP) and
// the engine. One service mutex serialises every operation, including the
// ticks applied by an animated move, so a session's engine is never touched
// concurrently.
//
// Usage:
//
//	sessionMgr := session.NewManager()
//	boardMgr, _ := config.NewManager("boards")
//	svc := service.NewGameService(sessionMgr, boardMgr, service.Options{Notifier: hub})
//
//	info, err := svc.CreateSession(ctx, service.CreateSessionRequest{SeedTeams: true})
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	result, err := svc.RollAndMove(ctx, info.ID, info.State.Teams[0].ID)
package service
