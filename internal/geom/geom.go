// Package geom provides the 2D primitives shared by the generators and the
// compositor:
// - Points, axis-aligned boxes and affine transforms
// - Convex hulls (Graham scan) and point-in-polygon tests
// - Polygon bounds, area, centroid and triangulation
// - Aspect-correct source cropping
package geom

import (
	"fmt"
	"math"
)

// Point represents a 2D point or vector in Cartesian coordinates.
type Point struct {
	X float64 `json:"x" yaml:"x"`
	Y float64 `json:"y" yaml:"y"`
}

// Box represents an axis-aligned rectangle.
type Box struct {
	X float64 `json:"x" yaml:"x"`
	Y float64 `json:"y" yaml:"y"`
	W float64 `json:"width" yaml:"width"`
	H float64 `json:"height" yaml:"height"`
}

// Affine represents a 2D affine transform in row-major form:
// [ a b c ]
// [ d e f ]
// where (x', y') = (a*x + b*y + c, d*x + e*y + f)
type Affine struct {
	A float64
	B float64
	C float64
	D float64
	E float64
	F float64
}

func MakePoint(x, y float64) Point               { return Point{X: x, Y: y} }
func MakeBox(x, y, w, h float64) Box             { return Box{X: x, Y: y, W: w, H: h} }
func MakeAffine(a, b, c, d, e, f float64) Affine { return Affine{A: a, B: b, C: c, D: d, E: e, F: f} }

// Identity is the identity transform.
var Identity = MakeAffine(1, 0, 0, 0, 1, 0)

func Translate(x, y float64) Affine { return MakeAffine(1, 0, x, 0, 1, y) }
func Scale(sx, sy float64) Affine   { return MakeAffine(sx, 0, 0, 0, sy, 0) }

// Rotate returns a rotation by theta radians. With y pointing down (canvas
// coordinates) positive angles turn clockwise on screen.
func Rotate(theta float64) Affine {
	s, c := math.Sincos(theta)
	return MakeAffine(c, -s, 0, s, c, 0)
}

// RotateAbout returns a rotation by theta radians about p.
func RotateAbout(theta float64, p Point) Affine {
	return Translate(p.X, p.Y).Mul(Rotate(theta)).Mul(Translate(-p.X, -p.Y))
}

func (p Point) Add(q Point) Point     { return Point{p.X + q.X, p.Y + q.Y} }
func (p Point) Sub(q Point) Point     { return Point{p.X - q.X, p.Y - q.Y} }
func (p Point) Scale(s float64) Point { return Point{p.X * s, p.Y * s} }

// IsFinite reports whether both coordinates are finite numbers.
func (p Point) IsFinite() bool {
	return !math.IsNaN(p.X) && !math.IsNaN(p.Y) && !math.IsInf(p.X, 0) && !math.IsInf(p.Y, 0)
}

// Cross returns the z component of (b-a) x (c-a). Positive for a
// counter-clockwise turn in y-up coordinates.
func Cross(a, b, c Point) float64 {
	return (b.X-a.X)*(c.Y-a.Y) - (b.Y-a.Y)*(c.X-a.X)
}

func Dist(p, q Point) float64 { return math.Sqrt(Dist2(p, q)) }

// Dist2 is the squared Euclidean distance; enough for nearest-point
// comparisons.
func Dist2(p, q Point) float64 {
	dx := p.X - q.X
	dy := p.Y - q.Y
	return dx*dx + dy*dy
}

// MulPoint applies the affine transform to a point.
func (t Affine) MulPoint(p Point) Point {
	return Point{
		X: t.A*p.X + t.B*p.Y + t.C,
		Y: t.D*p.X + t.E*p.Y + t.F,
	}
}

// Mul composes two affine transforms (applies u then t).
func (t Affine) Mul(u Affine) Affine {
	return MakeAffine(
		t.A*u.A+t.B*u.D,
		t.A*u.B+t.B*u.E,
		t.A*u.C+t.B*u.F+t.C,
		t.D*u.A+t.E*u.D,
		t.D*u.B+t.E*u.E,
		t.D*u.C+t.E*u.F+t.F,
	)
}

// Inv returns the inverse of the affine transform.
// Returns an error if the transform is not invertible (determinant is zero).
func (t Affine) Inv() (Affine, error) {
	det := t.A*t.E - t.B*t.D
	if math.Abs(det) < 1e-10 {
		return Affine{}, fmt.Errorf("affine transform is not invertible (determinant ≈ 0)")
	}
	return MakeAffine(
		t.E/det, -t.B/det, (t.B*t.F-t.C*t.E)/det,
		-t.D/det, t.A/det, (t.C*t.D-t.A*t.F)/det,
	), nil
}

// Apply transforms every point of pts, returning a new slice.
func (t Affine) Apply(pts []Point) []Point {
	out := make([]Point, len(pts))
	for i, p := range pts {
		out[i] = t.MulPoint(p)
	}
	return out
}

// Center returns the center of the box.
func (b Box) Center() Point { return Point{b.X + 0.5*b.W, b.Y + 0.5*b.H} }

// Area returns W*H.
func (b Box) Area() float64 { return b.W * b.H }

// Empty reports whether the box has no area.
func (b Box) Empty() bool { return b.W <= 0 || b.H <= 0 }

// Corners returns the four corners clockwise from the top-left (y down).
func (b Box) Corners() []Point {
	return []Point{
		{b.X, b.Y},
		{b.X + b.W, b.Y},
		{b.X + b.W, b.Y + b.H},
		{b.X, b.Y + b.H},
	}
}

// Overlaps reports whether two boxes share interior area. Touching edges do
// not count as overlap.
func (b Box) Overlaps(o Box) bool {
	return b.X < o.X+o.W && o.X < b.X+b.W && b.Y < o.Y+o.H && o.Y < b.Y+b.H
}

// Intersect returns the overlapping region of b and o, or a zero box if they
// do not overlap.
func (b Box) Intersect(o Box) Box {
	x0 := math.Max(b.X, o.X)
	y0 := math.Max(b.Y, o.Y)
	x1 := math.Min(b.X+b.W, o.X+o.W)
	y1 := math.Min(b.Y+b.H, o.Y+o.H)
	if x1 <= x0 || y1 <= y0 {
		return Box{}
	}
	return MakeBox(x0, y0, x1-x0, y1-y0)
}

// Inset shrinks the box by d on every side.
func (b Box) Inset(d float64) Box {
	return MakeBox(b.X+d, b.Y+d, b.W-2*d, b.H-2*d)
}

// CoverCrop returns the largest source rectangle, centred in a srcW x srcH
// image, whose aspect ratio matches dst. Drawing it into dst fills dst
// without distortion (the "object-fit: cover" crop).
func CoverCrop(srcW, srcH float64, dst Box) Box {
	if srcW <= 0 || srcH <= 0 || dst.W <= 0 || dst.H <= 0 {
		return Box{}
	}
	aspect := dst.W / dst.H
	if srcW/srcH > aspect {
		w := srcH * aspect
		return MakeBox(0.5*(srcW-w), 0, w, srcH)
	}
	h := srcW / aspect
	return MakeBox(0, 0.5*(srcH-h), srcW, h)
}
