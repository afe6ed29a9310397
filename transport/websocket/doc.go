// Package websocket pushes tracker state to viewers over WebSocket.
//
// The package uses a hub-and-spoke model where a central Hub manages all
// connections. Each client connection has a read goroutine, which only
// processes pongs and close frames, and a write goroutine that delivers
// queued messages and pings.
//
// Message Protocol:
//
// Every message is a JSON object {session_id, event, state}. A client
// first receives the "state" event with the current snapshot, then one
// message per change published by the service (board_changed, move_tick,
// move_finished and so on). The session_deleted event carries no state and
// is followed by a close frame.
//
// Usage:
//
//	hub := websocket.NewHub()
//	go hub.Run(ctx)
//
//	svc := service.NewGameService(sessions, boards, service.Options{Notifier: hub})
//	http.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
//		hub.ServeWS(w, r, r.URL.Query().Get("session"), nil)
//	})
package websocket
