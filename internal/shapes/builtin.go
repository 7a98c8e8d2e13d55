package shapes

import "github.com/irfansharif/collage/internal/geom"

// Built-in families.
const (
	FamilyBasic   = "basic"
	FamilyCrystal = "crystal"
)

func pts(coords ...float64) []geom.Point {
	out := make([]geom.Point, 0, len(coords)/2)
	for i := 0; i+1 < len(coords); i += 2 {
		out = append(out, geom.MakePoint(coords[i], coords[i+1]))
	}
	return out
}

// Default returns a registry populated with the built-in basic and crystal
// families.
func Default() *Registry {
	r := NewRegistry()

	basic := map[string]Shape{
		"square":   Polygon{Points: pts(0, 0, 1, 0, 1, 1, 0, 1)},
		"circle":   Ellipse{Segments: defaultEllipseSegments},
		"triangle": Polygon{Points: pts(0.5, 0, 1, 1, 0, 1)},
		"diamond":  Polygon{Points: pts(0.5, 0, 1, 0.5, 0.5, 1, 0, 0.5)},
		"hexagon":  Polygon{Points: pts(0.25, 0, 0.75, 0, 1, 0.5, 0.75, 1, 0.25, 1, 0, 0.5)},
		"octagon": Polygon{Points: pts(
			0.3, 0, 0.7, 0, 1, 0.3, 1, 0.7, 0.7, 1, 0.3, 1, 0, 0.7, 0, 0.3)},
		"star": Star{Points: 5, Inner: 0.45},
		"arch": Polygon{Points: arch()},
		"pill": Polygon{Points: pill()},
	}
	for key, s := range basic {
		r.Register(Ref{Family: FamilyBasic, Key: key}, s)
	}

	// Outlines for isolated crystals.
	crystal := map[string]Shape{
		"hexagon": Polygon{Points: pts(0.5, 0, 0.93, 0.25, 0.93, 0.75, 0.5, 1, 0.07, 0.75, 0.07, 0.25)},
		"irregular": Polygon{Points: pts(
			0.42, 0, 0.78, 0.08, 1, 0.38, 0.9, 0.74, 0.6, 1, 0.22, 0.92, 0, 0.6, 0.08, 0.2)},
		"angular": Polygon{Points: pts(
			0.5, 0, 0.85, 0.2, 1, 0.55, 0.7, 0.62, 0.78, 1, 0.3, 0.85, 0, 0.5, 0.2, 0.35)},
		"elongated": Polygon{Points: pts(0.5, 0, 0.72, 0.3, 0.66, 0.8, 0.5, 1, 0.34, 0.8, 0.28, 0.3)},
	}
	for key, s := range crystal {
		r.Register(Ref{Family: FamilyCrystal, Key: key}, s)
	}
	return r
}

// arch is a rectangle with a semicircular top.
func arch() []geom.Point {
	out := Ellipse{Segments: 32}.Outline()
	// Upper half of the circle (y <= 0.5 in canvas coordinates), then the
	// two bottom corners.
	var top []geom.Point
	for i := 16; i <= 32; i++ {
		top = append(top, out[i%32])
	}
	return append(top, geom.MakePoint(1, 1), geom.MakePoint(0, 1))
}

// pill is a vertical capsule.
func pill() []geom.Point {
	circle := Ellipse{Segments: 32}.Outline()
	var out []geom.Point
	for i := 16; i <= 32; i++ { // top cap
		p := circle[i%32]
		out = append(out, geom.MakePoint(0.25+0.5*p.X, 0.5*p.Y))
	}
	for i := 0; i <= 16; i++ { // bottom cap
		p := circle[i]
		out = append(out, geom.MakePoint(0.25+0.5*p.X, 0.5+0.5*p.Y))
	}
	return out
}
