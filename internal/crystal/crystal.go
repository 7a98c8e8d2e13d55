// Package crystal implements the crystal facet generator. Seed points are
// scattered by a spatial pattern, a Voronoi partition is approximated by
// assigning a dense sample lattice to the nearest seed, and each seed's
// samples are wrapped in a convex hull to form a facet. Facets are shaded by
// distance from the crystal centre: inner facets are more opaque and less
// rotated than outer ones.
package crystal

import (
	"fmt"
	"math"
	"sort"

	"go.uber.org/zap"

	"github.com/irfansharif/collage/internal/canvas"
	"github.com/irfansharif/collage/internal/geom"
	"github.com/irfansharif/collage/internal/rng"
)

// ImageMode selects how images are assigned to facets.
type ImageMode string

const (
	// Unique gives every facet its own randomly chosen image.
	Unique ImageMode = "unique"
	// Single fills every facet of a crystal from one image.
	Single ImageMode = "single"
)

// ImageModes lists the assignment modes.
var ImageModes = []ImageMode{Unique, Single}

// ParseImageMode parses an image mode; empty means "pick one".
func ParseImageMode(s string) (ImageMode, error) {
	if s == "" {
		return "", nil
	}
	for _, m := range ImageModes {
		if string(m) == s {
			return m, nil
		}
	}
	return "", fmt.Errorf("unknown crystal image mode %q", s)
}

const (
	minFacets = 6
	// facetCeilingJitter is the most the facet ceiling is raised above
	// MaxFacets.
	facetCeilingJitter = 10
	// minGroupSamples is the fewest lattice samples a seed needs to form a
	// facet.
	minGroupSamples = 3
	// minFacetArea drops hulls that collapsed to a sliver, in px².
	minFacetArea = 1e-6

	defaultMinResolution = 30
	defaultMaxResolution = 100
	defaultMaxRotation   = 25
)

// Options configures one crystal.
type Options struct {
	MaxFacets  int
	Complexity float64 // (0, 1]; scales the facet count
	Pattern    Pattern // empty: random
	ImageMode  ImageMode
	// Resolution is the sample lattice size per axis. Zero picks one from
	// the facet count, clamped to [MinResolution, MaxResolution].
	Resolution                   int
	MinResolution, MaxResolution int
	MaxRotation                  float64 // degrees, for the outermost facets

	// Center and Size place an unconstrained crystal; zero values fill the
	// canvas.
	Center geom.Point
	Size   float64
	// Outline, in canvas pixels, confines the crystal ("isolated" mode).
	Outline []geom.Point

	// BlendWeights picks each facet's blend mode. Empty means source-over.
	BlendWeights map[canvas.BlendMode]float64
}

// Fragment is one facet.
type Fragment struct {
	Polygon  []geom.Point
	Center   geom.Point
	Bounds   geom.Box
	Dest     geom.Box // where the image is laid out
	Image    int
	Alpha    float64
	Angle    float64 // degrees
	Blend    canvas.BlendMode
	Distance float64 // normalized distance from the crystal centre, [0, 1]
	Index    int     // seed index, the tie-breaker
	Layer    int     // crystal index within a field
}

func (f Fragment) ClipPath() []geom.Point       { return f.Polygon }
func (f Fragment) DestRect() geom.Box           { return f.Dest }
func (f Fragment) SourceRect(w, h int) geom.Box { return geom.CoverCrop(float64(w), float64(h), f.Dest) }
func (f Fragment) Pivot() geom.Point            { return f.Center }
func (f Fragment) ImageIndex() int              { return f.Image }
func (f Fragment) Opacity() float64             { return f.Alpha }
func (f Fragment) Rotation() float64            { return f.Angle }
func (f Fragment) BlendMode() canvas.BlendMode  { return f.Blend }
func (f Fragment) Order() float64               { return float64(f.Layer)*1e9 + f.Distance }

// Crystal is the generator output.
type Crystal struct {
	Pattern    Pattern
	ImageMode  ImageMode
	Target     int // facet target after complexity scaling
	Resolution int
	Region     geom.Box
	Center     geom.Point
	Seeds      []geom.Point
	Injected   int
	Fragments  []Fragment
}

// FacetTarget returns the number of seeds to aim for: the ceiling is
// MaxFacets raised by up to facetCeilingJitter, scaled by complexity, and
// never below minFacets.
func FacetTarget(r *rng.RNG, maxFacets int, complexity float64) int {
	if maxFacets <= 0 {
		panic(fmt.Sprintf("crystal: non-positive max facets %d", maxFacets))
	}
	if math.IsNaN(complexity) || complexity <= 0 || complexity > 1 {
		panic(fmt.Sprintf("crystal: complexity %v outside (0, 1]", complexity))
	}
	ceiling := maxFacets + r.RangeInt(0, facetCeilingJitter)
	target := int(math.Floor(float64(ceiling) * complexity))
	if target < minFacets {
		target = minFacets
	}
	return target
}

// AutoResolution scales the lattice with the facet count.
func AutoResolution(target, lo, hi int) int {
	res := int(math.Round(12 * math.Sqrt(float64(target))))
	if res < lo {
		res = lo
	}
	if res > hi {
		res = hi
	}
	return res
}

// Generate builds one crystal on a canvasW x canvasH canvas with numImages
// images to draw from. It reports false when there are no images or no
// canvas. Facets that degenerate are dropped; a crystal with fewer facets
// than targeted is still a success.
func Generate(r *rng.RNG, opts Options, canvasW, canvasH, numImages int, logger *zap.Logger) (Crystal, bool) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if numImages <= 0 || canvasW <= 0 || canvasH <= 0 {
		return Crystal{}, false
	}
	if opts.MinResolution == 0 {
		opts.MinResolution = defaultMinResolution
	}
	if opts.MaxResolution == 0 {
		opts.MaxResolution = defaultMaxResolution
	}
	if opts.MaxRotation == 0 {
		opts.MaxRotation = defaultMaxRotation
	}

	c := Crystal{Pattern: opts.Pattern, ImageMode: opts.ImageMode}
	if c.Pattern == "" {
		c.Pattern = rng.Choice(r, Patterns)
	}
	if c.ImageMode == "" {
		c.ImageMode = rng.Choice(r, ImageModes)
	}
	c.Target = FacetTarget(r, opts.MaxFacets, opts.Complexity)
	c.Resolution = opts.Resolution
	if c.Resolution == 0 {
		c.Resolution = AutoResolution(c.Target, opts.MinResolution, opts.MaxResolution)
	}
	if c.Resolution < minGroupSamples {
		panic(fmt.Sprintf("crystal: resolution %d too coarse", c.Resolution))
	}

	// The region the lattice covers.
	canvasBox := geom.MakeBox(0, 0, float64(canvasW), float64(canvasH))
	switch {
	case opts.Outline != nil:
		if len(opts.Outline) < 3 {
			panic(fmt.Sprintf("crystal: outline with %d vertices", len(opts.Outline)))
		}
		c.Region = geom.BoundsOf(opts.Outline)
		c.Center = geom.Centroid(opts.Outline)
	case opts.Size > 0:
		c.Center = opts.Center
		c.Region = geom.MakeBox(c.Center.X-opts.Size/2, c.Center.Y-opts.Size/2, opts.Size, opts.Size)
	default:
		c.Region = canvasBox
		c.Center = canvasBox.Center()
	}
	if c.Region.Empty() {
		return c, true
	}

	stepX := c.Region.W / float64(c.Resolution)
	stepY := c.Region.H / float64(c.Resolution)
	field := &seedField{
		r:       r,
		center:  c.Center,
		radius:  0.5 * math.Min(c.Region.W, c.Region.H),
		bounds:  c.Region.Inset(math.Max(stepX, stepY)),
		outline: opts.Outline,
		spacing: minSeedSpacing * math.Max(stepX, stepY),
	}
	c.Seeds, c.Injected = field.seeds(c.Pattern, c.Target)
	if c.Injected > 0 {
		logger.Debug("injected fill-in seeds", zap.Int("count", c.Injected), zap.Int("target", c.Target))
	}
	if len(c.Seeds) == 0 {
		return c, true
	}

	groups := assign(c.Seeds, c.Region, c.Resolution, opts.Outline)

	single := -1
	if c.ImageMode == Single {
		single = r.Intn(numImages)
	}
	blends, weights := blendTable(opts.BlendWeights)

	for i, group := range groups {
		if len(group) < minGroupSamples {
			logger.Debug("dropping facet with too few samples", zap.Int("seed", i), zap.Int("samples", len(group)))
			continue
		}
		hull := geom.ConvexHull(group)
		if len(hull) < 3 || geom.Area(hull) <= minFacetArea {
			logger.Debug("dropping degenerate facet", zap.Int("seed", i))
			continue
		}
		f := Fragment{
			Polygon: hull,
			Center:  geom.Centroid(hull),
			Bounds:  geom.BoundsOf(hull),
			Index:   i,
			Blend:   canvas.SourceOver,
		}
		f.Dest = f.Bounds
		if single >= 0 {
			f.Image = single
			f.Dest = c.Region
		} else {
			f.Image = r.Intn(numImages)
		}
		if len(blends) > 0 {
			f.Blend = blends[rng.WeightedIndex(r, weights)]
		}
		c.Fragments = append(c.Fragments, f)
	}

	shade(r, c.Center, c.Fragments, opts.MaxRotation)
	sort.SliceStable(c.Fragments, func(i, j int) bool {
		a, b := c.Fragments[i], c.Fragments[j]
		if a.Distance != b.Distance {
			return a.Distance < b.Distance
		}
		return a.Index < b.Index
	})

	logger.Debug("generated crystal",
		zap.String("pattern", string(c.Pattern)),
		zap.String("images", string(c.ImageMode)),
		zap.Int("target", c.Target),
		zap.Int("seeds", len(c.Seeds)),
		zap.Int("facets", len(c.Fragments)),
		zap.Int("resolution", c.Resolution))
	return c, true
}

// assign approximates the Voronoi partition of region: every lattice sample
// goes to its nearest seed (squared distance). A sample stands for its
// lattice cell, so the cell's corners join the group as well, which closes
// the seams between neighbouring hulls. With an outline, samples and corners
// outside it are left out.
func assign(seeds []geom.Point, region geom.Box, res int, outline []geom.Point) [][]geom.Point {
	groups := make([][]geom.Point, len(seeds))
	stepX := region.W / float64(res)
	stepY := region.H / float64(res)
	inside := func(p geom.Point) bool { return outline == nil || geom.PointInPolygon(p, outline) }

	for row := 0; row < res; row++ {
		for col := 0; col < res; col++ {
			s := geom.MakePoint(region.X+(float64(col)+0.5)*stepX, region.Y+(float64(row)+0.5)*stepY)
			if !inside(s) {
				continue
			}
			nearest, best := 0, math.Inf(1)
			for i, seed := range seeds {
				if d := geom.Dist2(s, seed); d < best {
					nearest, best = i, d
				}
			}
			groups[nearest] = append(groups[nearest], s)
			for _, d := range [4][2]float64{{-0.5, -0.5}, {0.5, -0.5}, {0.5, 0.5}, {-0.5, 0.5}} {
				corner := geom.MakePoint(s.X+d[0]*stepX, s.Y+d[1]*stepY)
				if inside(corner) {
					groups[nearest] = append(groups[nearest], corner)
				}
			}
		}
	}
	return groups
}

// shade sets opacity, rotation and normalized distance for each facet. The
// further a facet sits from the centre, the fainter and more rotated it is.
func shade(r *rng.RNG, center geom.Point, frags []Fragment, maxRotation float64) {
	maxDist := 0.0
	for _, f := range frags {
		maxDist = math.Max(maxDist, geom.Dist(f.Center, center))
	}
	for i := range frags {
		d := 0.0
		if maxDist > 0 {
			d = geom.Dist(frags[i].Center, center) / maxDist
		}
		frags[i].Distance = d
		frags[i].Alpha = clamp(1-0.45*d+r.Jitter(0.05), 0.35, 1)
		frags[i].Angle = r.Sign()*d*maxRotation + r.Jitter(2)
	}
}

// blendTable flattens weights into parallel slices in a fixed order so the
// weighted draw is reproducible.
func blendTable(weights map[canvas.BlendMode]float64) ([]canvas.BlendMode, []float64) {
	var modes []canvas.BlendMode
	var ws []float64
	for _, m := range canvas.BlendModes {
		if w, ok := weights[m]; ok {
			modes = append(modes, m)
			ws = append(ws, w)
		}
	}
	return modes, ws
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
