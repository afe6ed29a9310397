// Package api provides the HTTP REST API for the board tracker.
//
// Endpoints:
//
// Sessions:
//   - POST   /api/sessions                 create ({board, teams, seed_teams})
//   - GET    /api/sessions                 list (?sort=created|accessed&order=asc|desc&limit=N&board=name)
//   - GET    /api/sessions/{id}            session info with state
//   - DELETE /api/sessions/{id}            delete
//   - GET    /api/sessions/{id}/state      current snapshot
//
// Board editing (leader role with edit mode on):
//   - POST   /api/sessions/{id}/tiles                    insert ({index}, omitted appends)
//   - PATCH  /api/sessions/{id}/tiles/{tile}             edit label and description
//   - DELETE /api/sessions/{id}/tiles/{tile}             remove
//   - PUT    /api/sessions/{id}/tiles/{tile}/kind        retype ({kind})
//   - POST   /api/sessions/{id}/tiles/{tile}/cycle       next kind
//   - POST   /api/sessions/{id}/tiles/{tile}/connect     connect ({target})
//   - GET    /api/sessions/{id}/tiles/{tile}/targets     valid connection targets
//   - POST   /api/sessions/{id}/tiles/{tile}/duplicate   append a copy
//   - GET    /api/sessions/{id}/board                    export (?compressed=true for zstd)
//   - PUT    /api/sessions/{id}/board                    import a JSON or zstd document
//   - DELETE /api/sessions/{id}/board                    clear the board
//
// Teams and play:
//   - POST   /api/sessions/{id}/teams          add ({name, color, members})
//   - PATCH  /api/sessions/{id}/teams/{team}   edit
//   - DELETE /api/sessions/{id}/teams/{team}   remove
//   - POST   /api/sessions/{id}/teams/reset    everyone back to the start
//   - GET    /api/sessions/{id}/standings      roster by position
//   - POST   /api/sessions/{id}/roll           roll for one team ({team_id})
//   - POST   /api/sessions/{id}/roll-all       roll for every team
//   - GET    /api/sessions/{id}/history        paginated (?page&limit&order&team)
//   - PUT    /api/sessions/{id}/role           {role: leader|participant}
//   - PUT    /api/sessions/{id}/edit-mode      {enabled}
//
// Board library:
//   - GET /api/boards          list
//   - GET /api/boards/{name}   tiles plus a consistency report
//   - PUT /api/boards/{name}   save a document (?compressed=true stores .json.zst)
//
// Other: GET /healthz, and /ws?session=<id> for live updates.
//
// Error Handling:
//
// Errors are returned as JSON {"error": "message"}. Missing sessions, teams,
// tiles and boards map to 404, a move in flight to 409, a refused edit to
// 403, malformed input to 400 and operations that cannot apply to 422.
// A roll that will be animated answers 202 with the resolved plan.
package api
