// Package shapes holds the mask shape registry. Shapes are referenced from
// templates by a family/key pair and resolve to one of a closed set of
// descriptor variants, each able to produce a normalized outline usable both
// for clipping and for stroking.
package shapes

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"sort"
	"strings"

	"github.com/irfansharif/collage/internal/geom"
)

// Ref names a shape as family/key (e.g. "basic/circle").
type Ref struct {
	Family string
	Key    string
}

// ParseRef parses "family/key". A bare key is placed in the basic family.
func ParseRef(s string) (Ref, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Ref{}, fmt.Errorf("empty shape reference")
	}
	family, key, found := strings.Cut(s, "/")
	if !found {
		return Ref{Family: FamilyBasic, Key: s}, nil
	}
	if family == "" || key == "" || strings.Contains(key, "/") {
		return Ref{}, fmt.Errorf("malformed shape reference %q", s)
	}
	return Ref{Family: family, Key: key}, nil
}

// MustParseRef is ParseRef for package-level literals.
func MustParseRef(s string) Ref {
	r, err := ParseRef(s)
	if err != nil {
		panic(err)
	}
	return r
}

func (r Ref) String() string { return r.Family + "/" + r.Key }

// IsZero reports whether the reference is unset.
func (r Ref) IsZero() bool { return r.Family == "" && r.Key == "" }

func (r Ref) MarshalText() ([]byte, error) {
	if r.IsZero() {
		return nil, nil
	}
	return []byte(r.String()), nil
}

// UnmarshalText parses a reference. Empty text yields the zero Ref, which
// template validation reports as missing.
func (r *Ref) UnmarshalText(b []byte) error {
	if len(strings.TrimSpace(string(b))) == 0 {
		*r = Ref{}
		return nil
	}
	parsed, err := ParseRef(string(b))
	if err != nil {
		return err
	}
	*r = parsed
	return nil
}

// Shape is a mask shape descriptor. The set of implementations is closed:
// Polygon, Ellipse and Star.
type Shape interface {
	// Outline returns the shape as a polygon inside the unit box [0,1]x[0,1].
	Outline() []geom.Point
	// Kind names the descriptor variant.
	Kind() string

	isShape()
}

// Polygon is an explicit outline in unit coordinates.
type Polygon struct {
	Points []geom.Point
}

// Ellipse is the ellipse inscribed in the unit box, approximated with
// Segments vertices.
type Ellipse struct {
	Segments int
}

// Star is a star with Points tips; Inner is the inner radius as a fraction of
// the outer one.
type Star struct {
	Points int
	Inner  float64
}

const defaultEllipseSegments = 64

func (p Polygon) Outline() []geom.Point { return append([]geom.Point(nil), p.Points...) }
func (Polygon) Kind() string            { return "polygon" }
func (Polygon) isShape()                {}

func (e Ellipse) Outline() []geom.Point {
	n := e.Segments
	if n < 8 {
		n = defaultEllipseSegments
	}
	pts := make([]geom.Point, n)
	for i := range pts {
		theta := 2 * math.Pi * float64(i) / float64(n)
		pts[i] = geom.MakePoint(0.5+0.5*math.Cos(theta), 0.5+0.5*math.Sin(theta))
	}
	return pts
}
func (Ellipse) Kind() string { return "ellipse" }
func (Ellipse) isShape()     {}

func (s Star) Outline() []geom.Point {
	n := s.Points
	if n < 3 {
		n = 5
	}
	inner := s.Inner
	if inner <= 0 || inner >= 1 {
		inner = 0.45
	}
	pts := make([]geom.Point, 0, 2*n)
	for i := 0; i < 2*n; i++ {
		r := 0.5
		if i%2 == 1 {
			r *= inner
		}
		theta := -math.Pi/2 + math.Pi*float64(i)/float64(n)
		pts = append(pts, geom.MakePoint(0.5+r*math.Cos(theta), 0.5+r*math.Sin(theta)))
	}
	return pts
}
func (Star) Kind() string { return "star" }
func (Star) isShape()     {}

// Place maps a shape's unit outline into box, rotated by rotation degrees
// about the box center.
func Place(s Shape, box geom.Box, rotation float64) []geom.Point {
	t := geom.Translate(box.X, box.Y).Mul(geom.Scale(box.W, box.H))
	if rotation != 0 {
		t = geom.RotateAbout(rotation*math.Pi/180, box.Center()).Mul(t)
	}
	return t.Apply(s.Outline())
}

// Resolver resolves shape references. Registry implements it.
type Resolver interface {
	Lookup(ref Ref) (Shape, bool)
}

// Registry maps references to shape descriptors.
type Registry struct {
	shapes map[Ref]Shape
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{shapes: make(map[Ref]Shape)}
}

// Register adds (or replaces) a shape.
func (r *Registry) Register(ref Ref, s Shape) {
	r.shapes[ref] = s
}

// Lookup resolves ref. The second return is false for unknown references.
func (r *Registry) Lookup(ref Ref) (Shape, bool) {
	s, ok := r.shapes[ref]
	return s, ok
}

// Families returns the registered family names, sorted.
func (r *Registry) Families() []string {
	seen := make(map[string]bool)
	var out []string
	for ref := range r.shapes {
		if !seen[ref.Family] {
			seen[ref.Family] = true
			out = append(out, ref.Family)
		}
	}
	sort.Strings(out)
	return out
}

// Keys returns the references registered under family, sorted by key.
func (r *Registry) Keys(family string) []Ref {
	var out []Ref
	for ref := range r.shapes {
		if ref.Family == family {
			out = append(out, ref)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}

// Len returns the number of registered shapes.
func (r *Registry) Len() int { return len(r.shapes) }

// LoadFile registers polygon shapes from a JSON file of the form
//
//	[{"family": "custom", "key": "kite", "path": [x0, y0, x1, y1, ...]}]
//
// with coordinates in the unit box.
func (r *Registry) LoadFile(path string) error {
	type rawShape struct {
		Family string    `json:"family"`
		Key    string    `json:"key"`
		Path   []float64 `json:"path"` // flat [x0,y0,x1,y1,...]
	}

	b, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading shapes: %w", err)
	}
	var raw []rawShape
	if err := json.Unmarshal(b, &raw); err != nil {
		return fmt.Errorf("parsing shapes %s: %w", path, err)
	}

	for i, rs := range raw {
		if rs.Family == "" || rs.Key == "" {
			return fmt.Errorf("shape %d in %s: missing family or key", i, path)
		}
		flat := rs.Path
		if len(flat)%2 != 0 {
			return fmt.Errorf("shape %s/%s: odd coordinate count %d", rs.Family, rs.Key, len(flat))
		}
		pts := make([]geom.Point, 0, len(flat)/2)
		for j := 0; j+1 < len(flat); j += 2 {
			pts = append(pts, geom.MakePoint(flat[j], flat[j+1]))
		}
		if len(pts) < 3 {
			return fmt.Errorf("shape %s/%s: %d vertices < 3", rs.Family, rs.Key, len(pts))
		}
		r.Register(Ref{Family: rs.Family, Key: rs.Key}, Polygon{Points: pts})
	}
	return nil
}
