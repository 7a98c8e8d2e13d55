package crystal

import (
	"fmt"
	"math"

	"github.com/irfansharif/collage/internal/geom"
	"github.com/irfansharif/collage/internal/rng"
)

// Pattern is the spatial distribution of Voronoi seed points.
type Pattern string

const (
	Radial   Pattern = "radial"
	Grid     Pattern = "grid"
	Random   Pattern = "random"
	Clusters Pattern = "clusters"
	Spiral   Pattern = "spiral"
)

// Patterns lists the seed distributions.
var Patterns = []Pattern{Radial, Grid, Random, Clusters, Spiral}

// ParsePattern parses a seed pattern name; empty means "pick one".
func ParsePattern(s string) (Pattern, error) {
	if s == "" {
		return "", nil
	}
	for _, p := range Patterns {
		if string(p) == s {
			return p, nil
		}
	}
	return "", fmt.Errorf("unknown crystal pattern %q", s)
}

const (
	// maxPointAttempts bounds the retries spent placing any single seed point,
	// both for pattern seeds that land too close to a neighbour and for
	// injected fill-in points.
	maxPointAttempts = 10
	// minSeedSpacing is the minimum distance between seeds, in sample steps.
	minSeedSpacing = 3
	// injectBelow triggers fill-in injection when fewer than this fraction of
	// the target seeds survive placement.
	injectBelow = 0.8
	spiralTurns = 3
)

// seedField places seed points inside a region.
type seedField struct {
	r       *rng.RNG
	center  geom.Point
	radius  float64
	bounds  geom.Box // seeds are kept inside this (inset) box
	outline []geom.Point
	spacing float64

	clusterCenters []geom.Point
}

func (f *seedField) polar(c geom.Point, angle, radius float64) geom.Point {
	return geom.MakePoint(c.X+radius*math.Cos(angle), c.Y+radius*math.Sin(angle))
}

// candidate proposes the i'th of n seeds for the pattern. Each call draws
// fresh jitter, so retries land somewhere else.
func (f *seedField) candidate(p Pattern, i, n int) geom.Point {
	r, R := f.r, f.radius
	switch p {
	case Radial:
		if i == 0 {
			return f.center
		}
		angle := 2*math.Pi*float64(i-1)/float64(n-1) + r.Jitter(0.2)
		return f.polar(f.center, angle, R*r.Between(0.15, 1))
	case Grid:
		k := int(math.Ceil(math.Sqrt(float64(n))))
		cell := 2 * R / float64(k)
		col, row := i%k, i/k
		x := f.center.X - R + (float64(col)+0.5)*cell + r.Jitter(0.35*cell)
		y := f.center.Y - R + (float64(row)+0.5)*cell + r.Jitter(0.35*cell)
		return geom.MakePoint(x, y)
	case Random:
		return f.polar(f.center, r.Between(0, 2*math.Pi), R*r.Next())
	case Clusters:
		cc := f.clusterCenters[i%len(f.clusterCenters)]
		return f.polar(cc, r.Between(0, 2*math.Pi), 0.35*R*math.Sqrt(r.Next()))
	case Spiral:
		t := (float64(i) + 0.5) / float64(n)
		angle := t*spiralTurns*2*math.Pi + r.Jitter(0.15)
		return f.polar(f.center, angle, R*math.Sqrt(t)*r.Between(0.9, 1.1))
	default:
		panic(fmt.Sprintf("crystal: unknown pattern %q", p))
	}
}

func (f *seedField) contains(p geom.Point) bool {
	if !p.IsFinite() {
		panic(fmt.Sprintf("crystal: non-finite seed point %v", p))
	}
	b := f.bounds
	if p.X < b.X || p.X > b.X+b.W || p.Y < b.Y || p.Y > b.Y+b.H {
		return false
	}
	return f.outline == nil || geom.PointInPolygon(p, f.outline)
}

func (f *seedField) spaced(p geom.Point, seeds []geom.Point) bool {
	min2 := f.spacing * f.spacing
	for _, s := range seeds {
		if geom.Dist2(p, s) < min2 {
			return false
		}
	}
	return true
}

// place tries up to maxPointAttempts proposals and returns the first that is
// inside the field and far enough from the existing seeds.
func (f *seedField) place(propose func() geom.Point, seeds []geom.Point) (geom.Point, bool) {
	for attempt := 0; attempt < maxPointAttempts; attempt++ {
		p := propose()
		if f.contains(p) && f.spaced(p, seeds) {
			return p, true
		}
	}
	return geom.Point{}, false
}

// seeds generates up to n seed points with pattern p. Pattern points that
// cannot be placed are dropped; if fewer than injectBelow·n survive, random
// contained points are injected until n is reached or a point exhausts its
// attempts.
func (f *seedField) seeds(p Pattern, n int) (seeds []geom.Point, injected int) {
	if p == Clusters {
		m := f.r.RangeInt(2, 4)
		for j := 0; j < m; j++ {
			angle := 2*math.Pi*float64(j)/float64(m) + f.r.Jitter(0.5)
			f.clusterCenters = append(f.clusterCenters, f.polar(f.center, angle, f.radius*f.r.Between(0.3, 0.7)))
		}
	}

	for i := 0; i < n; i++ {
		pt, ok := f.place(func() geom.Point { return f.candidate(p, i, n) }, seeds)
		if ok {
			seeds = append(seeds, pt)
		}
	}

	if float64(len(seeds)) >= injectBelow*float64(n) {
		return seeds, 0
	}
	for len(seeds) < n {
		pt, ok := f.place(f.randomPoint, seeds)
		if !ok {
			break
		}
		seeds = append(seeds, pt)
		injected++
	}
	return seeds, injected
}

func (f *seedField) randomPoint() geom.Point {
	if f.outline != nil {
		if p, ok := geom.SamplePolygon(f.r, f.outline); ok {
			return p
		}
	}
	b := f.bounds
	return geom.MakePoint(b.X+f.r.Next()*b.W, b.Y+f.r.Next()*b.H)
}
