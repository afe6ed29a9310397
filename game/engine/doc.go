// Package engine provides the core logic of the board tracker.
//
// The engine package implements:
//   - The Board: an ordered, densely numbered tile sequence with snake,
//     ladder and fairy ring tiles, and the edits that keep its ids,
//     connections and ring mesh consistent
//   - Movement: die rolls resolved into step-by-step moves with a single
//     teleport hop
//   - GameEngine: the application state of one tracker (board, team roster,
//     role toggle, move in flight and roll history)
//
// Core Types:
//
// The Engine interface defines the main contract for tracker operations,
// implemented by GameEngine. Board owns the tiles and is only ever read by
// ResolveMove. A MovePlan is a resolved roll whose Ticks are applied one at a
// time with AdvanceMove, so a caller can animate a move without the engine
// knowing about time.
//
// Usage:
//
//	e := engine.NewEngine(tiles, nil)
//	team, _ := e.AddTeam("Barrows Bros")
//
//	plan, err := e.RollAndMove(team.ID)
//	if err != nil {
//		log.Fatal(err)
//	}
//	fmt.Println(plan.Final, e.Snapshot().Message)
//
// Rules:
//
// A team advances one tile per pip and stops on the last tile instead of
// overshooting. Landing on a snake or ladder moves the team to its target;
// landing on a fairy ring rolls a second die to pick one of the other rings.
// A tile reached by teleport is never resolved again in the same roll.
package engine
