// Package session provides in-memory session management for the board tracker.
//
// The session package implements:
//   - Thread-safe session storage and retrieval
//   - Unique session ID generation
//   - Session lifecycle management
//   - Session cleanup and expiration
//
// Core Types:
//
// Manager is the session manager that handles all session operations. Each
// session owns its own engine.GameEngine, so boards and rosters are never
// shared between sessions.
//
// Session Identifiers:
//
// Sessions use 4-character hex IDs for easy reference, generated with
// cryptographic randomness. Lookups are case-insensitive.
//
// Usage:
//
//	manager := session.NewManager()
//
//	sess, err := manager.Create("", "classic", tiles)
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	sess, err = manager.Get(sess.ID)
//
// Cleanup:
//
// Sessions are never written to disk. They are deleted explicitly or removed
// by CleanupExpiredSessions once they have been idle for longer than the
// configured lifetime.
package session
