// Command analyze prints quick, human-readable statistics about the boards in
// a boards directory. It summarizes tile counts by kind, how far snakes and
// ladders move a team, the size of the fairy ring mesh, and a seeded Monte
// Carlo estimate of how many rolls a lone team needs to reach the finish.
package main

import (
	"context"
	"fmt"
	"math/rand/v2"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/urfave/cli/v3"

	"github.com/wricardo/boardgame-tracker/game/engine"
	"github.com/wricardo/boardgame-tracker/game/snapshot"
)

// maxTurns stops a simulated game that never finishes
const maxTurns = 10000

// BoardStats summarizes one board
type BoardStats struct {
	Tiles   int
	Counts  map[engine.TileKind]int
	Climb   int // total tiles gained over all ladders
	Drop    int // total tiles lost over all snakes
	Longest struct {
		Climb, Drop int
	}
	RingMesh int
	// Set when simulation ran
	Sim *SimStats
}

// SimStats holds the Monte Carlo estimate
type SimStats struct {
	Trials   int
	Mean     float64
	Median   int
	Min, Max int
	Stuck    int // trials that hit maxTurns
}

// seededDie is a deterministic die for reproducible runs
type seededDie struct {
	r *rand.Rand
}

func newSeededDie(seed uint64) *seededDie {
	return &seededDie{r: rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))}
}

func (d *seededDie) Roll() int {
	return d.r.IntN(engine.DieFaces) + 1
}

func analyzeTiles(tiles []engine.Tile) BoardStats {
	stats := BoardStats{
		Tiles:  len(tiles),
		Counts: map[engine.TileKind]int{},
	}
	for _, t := range tiles {
		stats.Counts[t.Kind]++
		switch t.Kind {
		case engine.Ladder:
			if t.Target > 0 {
				stats.Climb += t.Target - t.ID
				stats.Longest.Climb = max(stats.Longest.Climb, t.Target-t.ID)
			}
		case engine.Snake:
			if t.Target > 0 {
				stats.Drop += t.ID - t.Target
				stats.Longest.Drop = max(stats.Longest.Drop, t.ID-t.Target)
			}
		}
	}
	stats.RingMesh = stats.Counts[engine.Ring]
	return stats
}

// simulate plays trials solo games and records turns to finish
func simulate(tiles []engine.Tile, trials int, seed uint64) *SimStats {
	board := engine.NewBoard(tiles)
	die := newSeededDie(seed)
	last := board.LastID()

	turns := make([]int, 0, trials)
	sim := &SimStats{Trials: trials}
	total := 0
	for i := 0; i < trials; i++ {
		pos, n := 1, 0
		for pos != last && n < maxTurns {
			plan := engine.ResolveMove(pos, die.Roll(), board, die)
			pos = plan.Final
			n++
		}
		if pos != last {
			sim.Stuck++
		}
		turns = append(turns, n)
		total += n
	}
	if trials == 0 {
		return sim
	}

	slices.Sort(turns)
	sim.Mean = float64(total) / float64(trials)
	sim.Median = turns[trials/2]
	sim.Min = turns[0]
	sim.Max = turns[trials-1]
	return sim
}

func analyzeBoard(path string, trials int, seed uint64) (BoardStats, error) {
	tiles, err := snapshot.ReadFile(path)
	if err != nil {
		return BoardStats{}, err
	}
	stats := analyzeTiles(tiles)
	if trials > 0 {
		stats.Sim = simulate(tiles, trials, seed)
	}
	return stats, nil
}

func report(name string, stats BoardStats) string {
	var b strings.Builder
	fmt.Fprintf(&b, "\n=== Analyzing %s ===\n", name)
	fmt.Fprintf(&b, "Tiles: %d\n", stats.Tiles)
	fmt.Fprintf(&b, "Normal: %d | Snakes: %d | Ladders: %d | Rings: %d\n",
		stats.Counts[engine.Normal], stats.Counts[engine.Snake], stats.Counts[engine.Ladder], stats.Counts[engine.Ring])
	fmt.Fprintf(&b, "Ladders climb %d tiles in total (longest %d)\n", stats.Climb, stats.Longest.Climb)
	fmt.Fprintf(&b, "Snakes drop %d tiles in total (longest %d)\n", stats.Drop, stats.Longest.Drop)

	switch stats.RingMesh {
	case 0:
		b.WriteString("Fairy rings: none\n")
	case 1:
		b.WriteString("⚠️  Fairy rings: one ring with no peers, it never teleports\n")
	default:
		fmt.Fprintf(&b, "Fairy rings: %d, each links to %d others\n", stats.RingMesh, stats.RingMesh-1)
	}

	if stats.Drop > stats.Climb {
		b.WriteString("⚠️  Snakes outweigh ladders; games will run long\n")
	}

	if sim := stats.Sim; sim != nil && sim.Trials > 0 {
		fmt.Fprintf(&b, "Rolls to finish over %d games: mean %.1f, median %d, min %d, max %d\n",
			sim.Trials, sim.Mean, sim.Median, sim.Min, sim.Max)
		if sim.Stuck > 0 {
			fmt.Fprintf(&b, "⚠️  %d games never finished within %d rolls\n", sim.Stuck, maxTurns)
		} else {
			b.WriteString("✅ Every simulated game finished\n")
		}
	}
	return b.String()
}

func boardFiles(dir string) ([]string, error) {
	var files []string
	for _, pattern := range []string{"*.json", "*.json" + snapshot.CompressedExt} {
		matches, err := filepath.Glob(filepath.Join(dir, pattern))
		if err != nil {
			return nil, err
		}
		files = append(files, matches...)
	}
	slices.Sort(files)
	return files, nil
}

func run(ctx context.Context, cmd *cli.Command) error {
	dir := cmd.Args().First()
	if dir == "" {
		dir = "boards"
	}
	files, err := boardFiles(dir)
	if err != nil {
		return err
	}
	if len(files) == 0 {
		return fmt.Errorf("no board files in %s", dir)
	}

	for _, file := range files {
		stats, err := analyzeBoard(file, cmd.Int("trials"), uint64(cmd.Int64("seed")))
		if err != nil {
			fmt.Printf("\n=== %s ===\nError loading board: %v\n", filepath.Base(file), err)
			continue
		}
		fmt.Print(report(filepath.Base(file), stats))
	}
	return nil
}

func main() {
	cmd := &cli.Command{
		Name:      "analyze",
		Usage:     "print statistics for every board in a directory",
		ArgsUsage: "[boards-dir]",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:  "trials",
				Value: 1000,
				Usage: "simulated games per board (0 disables simulation)",
			},
			&cli.Int64Flag{
				Name:  "seed",
				Value: 1,
				Usage: "seed for the simulated die",
			},
		},
		Action: run,
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
