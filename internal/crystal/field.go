package crystal

import (
	"math"

	"go.uber.org/zap"

	"github.com/irfansharif/collage/internal/geom"
	"github.com/irfansharif/collage/internal/rng"
	"github.com/irfansharif/collage/internal/shapes"
)

// fieldAttemptsPerCrystal bounds centre placement: a field of n crystals
// gets n·fieldAttemptsPerCrystal rejection-sampling attempts in total.
const fieldAttemptsPerCrystal = 100

// FieldOptions configures a multi-crystal field.
type FieldOptions struct {
	Count            int
	MinSize, MaxSize float64 // crystal diameter, px
	// Overlap allows crystals to overlap; otherwise centres are rejected
	// until their discs are disjoint.
	Overlap bool
	// Outlines are the shapes crystals are confined to, one picked at random
	// per crystal.
	Outlines []shapes.Shape
	Crystal  Options
}

// Field is a set of isolated crystals.
type Field struct {
	Slots     []geom.Box // the square each crystal was placed in
	Crystals  []Crystal
	Fragments []Fragment // all facets, ordered crystal by crystal
	Attempts  int
}

type disc struct {
	center geom.Point
	radius float64
}

// GenerateField places up to opts.Count crystals by rejection sampling and
// generates each one inside a randomly chosen, randomly rotated outline.
// Fewer crystals than requested are placed when the attempt budget runs out.
func GenerateField(r *rng.RNG, opts FieldOptions, canvasW, canvasH, numImages int, logger *zap.Logger) (Field, bool) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if numImages <= 0 || canvasW <= 0 || canvasH <= 0 {
		return Field{}, false
	}
	if len(opts.Outlines) == 0 {
		opts.Outlines = CrystalOutlines(shapes.Default())
	}
	maxSize := math.Min(opts.MaxSize, math.Min(float64(canvasW), float64(canvasH)))
	minSize := math.Min(opts.MinSize, maxSize)

	var f Field
	var placed []disc
	budget := opts.Count * fieldAttemptsPerCrystal
	for f.Attempts < budget && len(placed) < opts.Count {
		f.Attempts++
		size := r.Between(minSize, maxSize)
		half := size / 2
		center := geom.MakePoint(
			r.Between(half, float64(canvasW)-half),
			r.Between(half, float64(canvasH)-half),
		)
		if !opts.Overlap && overlapsAny(center, half, placed) {
			continue
		}
		placed = append(placed, disc{center: center, radius: half})
	}
	if len(placed) < opts.Count {
		logger.Debug("field attempt budget exhausted",
			zap.Int("placed", len(placed)), zap.Int("requested", opts.Count))
	}

	for layer, d := range placed {
		outline := rng.Choice(r, opts.Outlines)
		box := geom.MakeBox(d.center.X-d.radius, d.center.Y-d.radius, 2*d.radius, 2*d.radius)
		f.Slots = append(f.Slots, box)
		co := opts.Crystal
		co.Outline = shapes.Place(outline, box, r.Between(0, 360))
		c, ok := Generate(r, co, canvasW, canvasH, numImages, logger)
		if !ok {
			continue
		}
		for i := range c.Fragments {
			c.Fragments[i].Layer = layer
		}
		f.Crystals = append(f.Crystals, c)
		f.Fragments = append(f.Fragments, c.Fragments...)
	}
	return f, true
}

func overlapsAny(c geom.Point, radius float64, placed []disc) bool {
	for _, d := range placed {
		if geom.Dist(c, d.center) < radius+d.radius {
			return true
		}
	}
	return false
}

// CrystalOutlines returns the shapes registered in the crystal family.
func CrystalOutlines(r *shapes.Registry) []shapes.Shape {
	var out []shapes.Shape
	for _, ref := range r.Keys(shapes.FamilyCrystal) {
		if s, ok := r.Lookup(ref); ok {
			out = append(out, s)
		}
	}
	return out
}
