package mosaic

import (
	"fmt"
	"math"

	"github.com/irfansharif/collage/internal/rng"
)

// Pattern selects which cells of the grid are revealed.
type Pattern string

const (
	PatternRandom     Pattern = "random"
	PatternClustered  Pattern = "clustered"
	PatternPortrait   Pattern = "portrait"
	PatternSilhouette Pattern = "silhouette"
)

// Patterns lists the selection strategies.
var Patterns = []Pattern{PatternRandom, PatternClustered, PatternPortrait, PatternSilhouette}

// ParsePattern parses a pattern name. The empty string means "pick one at
// random" and is returned as is.
func ParsePattern(s string) (Pattern, error) {
	if s == "" {
		return "", nil
	}
	for _, p := range Patterns {
		if string(p) == s {
			return p, nil
		}
	}
	return "", fmt.Errorf("unknown mosaic pattern %q", s)
}

// clusterSeedFraction of the grid is seeded before cluster growth.
const clusterSeedFraction = 0.05

// Grid is a gridSize x gridSize selection, indexed [row][col].
type Grid [][]bool

func newGrid(n int) Grid {
	if n <= 0 {
		panic(fmt.Sprintf("mosaic: non-positive grid size %d", n))
	}
	g := make(Grid, n)
	for i := range g {
		g[i] = make([]bool, n)
	}
	return g
}

// Count returns the number of selected cells.
func (g Grid) Count() int {
	n := 0
	for _, row := range g {
		for _, v := range row {
			if v {
				n++
			}
		}
	}
	return n
}

func checkPercentage(p float64) {
	if math.IsNaN(p) || p < 0 || p > 100 {
		panic(fmt.Sprintf("mosaic: reveal percentage %v outside [0, 100]", p))
	}
}

// CreateRandomPattern selects each cell independently with probability
// revealPercentage/100.
func CreateRandomPattern(r *rng.RNG, gridSize int, revealPercentage float64) Grid {
	checkPercentage(revealPercentage)
	g := newGrid(gridSize)
	p := revealPercentage / 100
	for row := range g {
		for col := range g[row] {
			g[row][col] = r.Bool(p)
		}
	}
	return g
}

type cell struct{ row, col int }

// CreateClusteredPattern seeds a few cells and grows 4-connected clusters
// from them until exactly floor(gridSize² · revealPercentage/100) cells are
// selected. When the frontier is empty (every cluster is boxed in by the grid
// edge or already selected cells) a fresh seed is injected instead.
func CreateClusteredPattern(r *rng.RNG, gridSize int, revealPercentage float64) Grid {
	checkPercentage(revealPercentage)
	g := newGrid(gridSize)
	total := gridSize * gridSize
	target := int(math.Floor(float64(total) * revealPercentage / 100))
	if target > total {
		target = total
	}

	seeds := int(math.Round(float64(total) * clusterSeedFraction))
	if seeds < 1 {
		seeds = 1
	}
	if seeds > target {
		seeds = target
	}

	count := 0
	for ; count < seeds; count++ {
		c := randomUnselected(r, g)
		g[c.row][c.col] = true
	}

	// Each iteration selects exactly one new cell, so this runs at most
	// target-seeds times.
	for count < target {
		next := growStep(r, g)
		g[next.row][next.col] = true
		count++
	}
	return g
}

// growStep picks the next cell to select: a random frontier cell, or a fresh
// seed when there is no frontier. g must have an unselected cell.
func growStep(r *rng.RNG, g Grid) cell {
	frontier := frontierOf(g)
	if len(frontier) == 0 {
		return randomUnselected(r, g)
	}
	return rng.Choice(r, frontier)
}

func randomUnselected(r *rng.RNG, g Grid) cell {
	var free []cell
	for row := range g {
		for col := range g[row] {
			if !g[row][col] {
				free = append(free, cell{row, col})
			}
		}
	}
	return rng.Choice(r, free)
}

func frontierOf(g Grid) []cell {
	n := len(g)
	var out []cell
	for row := 0; row < n; row++ {
		for col := 0; col < n; col++ {
			if g[row][col] {
				continue
			}
			if (row > 0 && g[row-1][col]) || (row < n-1 && g[row+1][col]) ||
				(col > 0 && g[row][col-1]) || (col < n-1 && g[row][col+1]) {
				out = append(out, cell{row, col})
			}
		}
	}
	return out
}

// region is a predicate over normalized cell centres in [0,1]².
type region func(x, y float64) bool

// heuristicPattern selects cells inside the region with an elevated
// probability and cells outside with a much lower one. These are rough
// stand-ins for face and body detection, not detectors.
func heuristicPattern(r *rng.RNG, gridSize int, revealPercentage float64, inside region) Grid {
	checkPercentage(revealPercentage)
	g := newGrid(gridSize)
	p := revealPercentage / 100
	pIn := math.Min(1, p+0.25)
	pOut := p * 0.25
	for row := range g {
		for col := range g[row] {
			x := (float64(col) + 0.5) / float64(gridSize)
			y := (float64(row) + 0.5) / float64(gridSize)
			if inside(x, y) {
				g[row][col] = r.Bool(pIn)
			} else {
				g[row][col] = r.Bool(pOut)
			}
		}
	}
	return g
}

// CreatePortraitPattern favours an upright oval where a face would sit.
func CreatePortraitPattern(r *rng.RNG, gridSize int, revealPercentage float64) Grid {
	return heuristicPattern(r, gridSize, revealPercentage, func(x, y float64) bool {
		dx, dy := (x-0.5)/0.32, (y-0.45)/0.42
		return dx*dx+dy*dy <= 1
	})
}

// CreateSilhouettePattern favours a head and shoulders outline.
func CreateSilhouettePattern(r *rng.RNG, gridSize int, revealPercentage float64) Grid {
	return heuristicPattern(r, gridSize, revealPercentage, func(x, y float64) bool {
		dx, dy := x-0.5, y-0.3
		if dx*dx+dy*dy <= 0.18*0.18 {
			return true
		}
		return y >= 0.5 && math.Abs(dx) <= 0.15+(y-0.5)*0.8
	})
}

// CreatePattern dispatches on pattern.
func CreatePattern(r *rng.RNG, pattern Pattern, gridSize int, revealPercentage float64) Grid {
	switch pattern {
	case PatternRandom:
		return CreateRandomPattern(r, gridSize, revealPercentage)
	case PatternClustered:
		return CreateClusteredPattern(r, gridSize, revealPercentage)
	case PatternPortrait:
		return CreatePortraitPattern(r, gridSize, revealPercentage)
	case PatternSilhouette:
		return CreateSilhouettePattern(r, gridSize, revealPercentage)
	default:
		panic(fmt.Sprintf("mosaic: unknown pattern %q", pattern))
	}
}
