// Package mosaic implements the grid mosaic generator: the canvas is split
// into a square grid, a subset of cells is chosen by one of several
// selection patterns, and each cell shows its share of a source image,
// optionally rotated a quarter turn or swapped with a region further along.
package mosaic

import (
	"fmt"
	"math"

	"go.uber.org/zap"

	"github.com/irfansharif/collage/internal/canvas"
	"github.com/irfansharif/collage/internal/geom"
	"github.com/irfansharif/collage/internal/rng"
	"github.com/irfansharif/collage/internal/shapes"
)

// Operation is the per-cell transformation.
type Operation string

const (
	Reveal Operation = "reveal"
	Rotate Operation = "rotate"
	Swap   Operation = "swap"
)

// Operations lists the cell operations.
var Operations = []Operation{Reveal, Rotate, Swap}

// ParseOperation parses an operation name; empty means "pick one".
func ParseOperation(s string) (Operation, error) {
	if s == "" {
		return "", nil
	}
	for _, op := range Operations {
		if string(op) == s {
			return op, nil
		}
	}
	return "", fmt.Errorf("unknown mosaic operation %q", s)
}

// swapShift is how many cells a swapped cell's source is offset by, in both
// axes, wrapping around the image.
const swapShift = 2

// Options fixes mosaic parameters. Zero values, and nil percentages, are
// sampled from Ranges; a non-nil percentage is used as is, 0 included.
type Options struct {
	GridSize            int
	Pattern             Pattern
	RevealPercentage    *float64
	Operation           Operation
	Shape               shapes.Ref // zero: a random shape per cell
	TransformPercentage *float64   // share of cells rotated/swapped
}

// Percent returns a pointer to v, for fixing an Options percentage.
func Percent(v float64) *float64 { return &v }

// Ranges bounds the values sampled for unset Options. The zero Ranges means
// DefaultRanges.
type Ranges struct {
	MinGridSize, MaxGridSize int
	MinReveal, MaxReveal     float64
	TransformPercentage      float64
	Shapes                   []shapes.Ref
}

// DefaultRanges returns the ranges used when no configuration is supplied.
func DefaultRanges() Ranges {
	return Ranges{
		MinGridSize:         4,
		MaxGridSize:         12,
		MinReveal:           40,
		MaxReveal:           85,
		TransformPercentage: 35,
		Shapes: []shapes.Ref{
			{Family: shapes.FamilyBasic, Key: "square"},
			{Family: shapes.FamilyBasic, Key: "circle"},
			{Family: shapes.FamilyBasic, Key: "diamond"},
		},
	}
}

// Cell is one drawable grid cell.
type Cell struct {
	Row, Col    int
	GridSize    int
	Rect        geom.Box     // canvas pixels, floored and padded by 1px
	Shape       shapes.Ref
	Outline     []geom.Point // clip path in canvas pixels
	Operation   Operation
	Transformed bool    // selected by the transform grid
	Angle       float64 // degrees
	Image       int
}

func (c Cell) ClipPath() []geom.Point      { return c.Outline }
func (c Cell) DestRect() geom.Box          { return c.Rect }
func (c Cell) Pivot() geom.Point           { return c.Rect.Center() }
func (c Cell) ImageIndex() int             { return c.Image }
func (c Cell) Opacity() float64            { return 1 }
func (c Cell) Rotation() float64           { return c.Angle }
func (c Cell) BlendMode() canvas.BlendMode { return canvas.SourceOver }
func (c Cell) Order() float64              { return float64(c.Row*c.GridSize + c.Col) }

// SourceRect returns the region of a w x h image that corresponds to the
// cell's grid coordinate. Swapped cells read from swapShift cells further
// along, wrapping around the image.
func (c Cell) SourceRect(w, h int) geom.Box {
	sw := float64(w) / float64(c.GridSize)
	sh := float64(h) / float64(c.GridSize)
	x := float64(c.Col) * sw
	y := float64(c.Row) * sh
	if c.Operation == Swap && c.Transformed {
		x = math.Mod(x+swapShift*sw, float64(w))
		y = math.Mod(y+swapShift*sh, float64(h))
	}
	return geom.MakeBox(x, y, sw, sh)
}

// Mosaic is the generator output.
type Mosaic struct {
	GridSize         int
	Pattern          Pattern
	RevealPercentage float64
	Operation        Operation
	Cells            []Cell
}

// Generate builds a mosaic for a canvasW x canvasH canvas drawing from
// numImages images. It reports false, drawing nothing, when there are no
// images or the canvas has no area.
func Generate(
	r *rng.RNG, opts Options, ranges Ranges, resolver shapes.Resolver,
	canvasW, canvasH, numImages int, logger *zap.Logger,
) (Mosaic, bool) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if numImages <= 0 || canvasW <= 0 || canvasH <= 0 {
		return Mosaic{}, false
	}
	if ranges.MaxGridSize == 0 {
		ranges = DefaultRanges()
	}

	m := Mosaic{
		GridSize:  opts.GridSize,
		Pattern:   opts.Pattern,
		Operation: opts.Operation,
	}
	if m.GridSize < 0 {
		panic(fmt.Sprintf("mosaic: negative grid size %d", m.GridSize))
	}
	if m.GridSize == 0 {
		m.GridSize = r.RangeInt(ranges.MinGridSize, ranges.MaxGridSize)
	}
	if m.Pattern == "" {
		m.Pattern = rng.Choice(r, Patterns)
	}
	if opts.RevealPercentage != nil {
		m.RevealPercentage = *opts.RevealPercentage
	} else {
		m.RevealPercentage = r.Between(ranges.MinReveal, ranges.MaxReveal)
	}
	if m.Operation == "" {
		m.Operation = rng.Choice(r, Operations)
	}
	transformPct := ranges.TransformPercentage
	if opts.TransformPercentage != nil {
		transformPct = *opts.TransformPercentage
	}

	n := m.GridSize
	var visible, transformed Grid
	if m.Operation == Reveal {
		visible = CreatePattern(r, m.Pattern, n, m.RevealPercentage)
		transformed = newGrid(n)
	} else {
		visible = newGrid(n)
		for row := range visible {
			for col := range visible[row] {
				visible[row][col] = true
			}
		}
		transformed = CreateRandomPattern(r, n, transformPct)
	}

	image := r.Intn(numImages)
	cw := float64(canvasW) / float64(n)
	ch := float64(canvasH) / float64(n)
	for row := 0; row < n; row++ {
		for col := 0; col < n; col++ {
			if !visible[row][col] {
				continue
			}
			c := Cell{
				Row:         row,
				Col:         col,
				GridSize:    n,
				Operation:   m.Operation,
				Transformed: transformed[row][col],
				Image:       image,
				Rect: geom.MakeBox(
					math.Floor(float64(col)*cw), math.Floor(float64(row)*ch),
					math.Floor(cw)+1, math.Floor(ch)+1,
				),
			}
			c.Shape = opts.Shape
			if c.Shape.IsZero() && len(ranges.Shapes) > 0 {
				c.Shape = rng.Choice(r, ranges.Shapes)
			}
			if c.Operation == Rotate && c.Transformed {
				c.Angle = 90
			}
			c.Outline = c.Rect.Corners()
			if s, ok := lookup(resolver, c.Shape); ok {
				c.Outline = shapes.Place(s, c.Rect, 0)
			} else if !c.Shape.IsZero() {
				logger.Warn("unresolved cell shape, using the cell rectangle",
					zap.Stringer("shape", c.Shape))
			}
			m.Cells = append(m.Cells, c)
		}
	}
	logger.Debug("generated mosaic",
		zap.Int("grid", n),
		zap.String("pattern", string(m.Pattern)),
		zap.String("operation", string(m.Operation)),
		zap.Int("cells", len(m.Cells)))
	return m, true
}

func lookup(resolver shapes.Resolver, ref shapes.Ref) (shapes.Shape, bool) {
	if resolver == nil || ref.IsZero() {
		return nil, false
	}
	return resolver.Lookup(ref)
}
