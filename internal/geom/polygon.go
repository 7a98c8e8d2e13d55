package geom

import (
	"fmt"
	"math"
	"sort"

	"github.com/rclancey/earcut"

	"github.com/irfansharif/collage/internal/rng"
)

// ConvexHull returns the convex hull of points using a Graham scan: the
// lowest-y (then lowest-x) point is the pivot, the rest are sorted by polar
// angle around it (ties broken by distance) and non-left turns are discarded.
// Inputs with fewer than 3 points are returned unchanged. Duplicate and
// collinear points are tolerated; an all-collinear input yields fewer than 3
// points.
func ConvexHull(points []Point) []Point {
	if len(points) < 3 {
		return append([]Point(nil), points...)
	}

	pivot := 0
	for i, p := range points {
		q := points[pivot]
		if p.Y < q.Y || (p.Y == q.Y && p.X < q.X) {
			pivot = i
		}
	}
	p0 := points[pivot]

	rest := make([]Point, 0, len(points)-1)
	for i, p := range points {
		if i != pivot {
			rest = append(rest, p)
		}
	}
	sort.SliceStable(rest, func(i, j int) bool {
		ai := math.Atan2(rest[i].Y-p0.Y, rest[i].X-p0.X)
		aj := math.Atan2(rest[j].Y-p0.Y, rest[j].X-p0.X)
		if ai != aj {
			return ai < aj
		}
		return Dist2(p0, rest[i]) < Dist2(p0, rest[j])
	})

	hull := make([]Point, 0, len(points))
	hull = append(hull, p0)
	for _, p := range rest {
		for len(hull) >= 2 && Cross(hull[len(hull)-2], hull[len(hull)-1], p) <= 0 {
			hull = hull[:len(hull)-1]
		}
		if len(hull) == 1 && p == hull[0] {
			continue // duplicate of the pivot
		}
		hull = append(hull, p)
	}
	return hull
}

// PointInPolygon reports whether p lies inside polygon using the ray-casting
// parity test. The polygon is implicitly closed.
func PointInPolygon(p Point, polygon []Point) bool {
	inside := false
	n := len(polygon)
	for i, j := 0, n-1; i < n; j, i = i, i+1 {
		a, b := polygon[i], polygon[j]
		if (a.Y > p.Y) != (b.Y > p.Y) &&
			p.X < (b.X-a.X)*(p.Y-a.Y)/(b.Y-a.Y)+a.X {
			inside = !inside
		}
	}
	return inside
}

// BoundsOf returns the axis-aligned bounding box of points. Empty input
// returns the zero box.
func BoundsOf(points []Point) Box {
	if len(points) == 0 {
		return Box{}
	}
	xmin, xmax := math.MaxFloat64, -math.MaxFloat64
	ymin, ymax := math.MaxFloat64, -math.MaxFloat64
	for _, p := range points {
		xmin = math.Min(xmin, p.X)
		xmax = math.Max(xmax, p.X)
		ymin = math.Min(ymin, p.Y)
		ymax = math.Max(ymax, p.Y)
	}
	return MakeBox(xmin, ymin, xmax-xmin, ymax-ymin)
}

// Centroid returns the vertex average of the polygon.
func Centroid(points []Point) Point {
	if len(points) == 0 {
		return Point{}
	}
	var c Point
	for _, p := range points {
		c = c.Add(p)
	}
	return c.Scale(1 / float64(len(points)))
}

// Triangulate splits a simple polygon into triangles using the earcut
// algorithm.
func Triangulate(polygon []Point) ([][3]Point, error) {
	if len(polygon) < 3 {
		return nil, fmt.Errorf("degenerate polygon (%d vertices < 3)", len(polygon))
	}

	// Flat coordinate array, [x0, y0, x1, y1, ..., xn, yn].
	coords := make([]float64, len(polygon)*2)
	for i, p := range polygon {
		coords[i*2] = p.X
		coords[i*2+1] = p.Y
	}

	indices, err := earcut.Earcut(coords, nil /* holeIndices */, 2 /* dim */)
	if err != nil {
		return nil, fmt.Errorf("triangulating %d-vertex polygon: %w", len(polygon), err)
	}
	if len(indices)%3 != 0 {
		return nil, fmt.Errorf("invalid triangle index count %d", len(indices))
	}

	triangles := make([][3]Point, len(indices)/3)
	for t := range triangles {
		for v := 0; v < 3; v++ {
			idx := indices[t*3+v]
			triangles[t][v] = Point{X: coords[idx*2], Y: coords[idx*2+1]}
		}
	}
	return triangles, nil
}

func triangleArea(t [3]Point) float64 {
	return math.Abs(Cross(t[0], t[1], t[2])) / 2
}

// Area returns the area of a simple polygon. Degenerate polygons (fewer than
// three vertices, or collapsed to a line) have zero area.
func Area(polygon []Point) float64 {
	triangles, err := Triangulate(polygon)
	if err != nil {
		return 0
	}
	area := 0.0
	for _, t := range triangles {
		area += triangleArea(t)
	}
	return area
}

// SamplePolygon returns a point drawn uniformly from the interior of a simple
// polygon: a triangle is picked with probability proportional to its area,
// then a point inside it is drawn with barycentric coordinates.
func SamplePolygon(g *rng.RNG, polygon []Point) (Point, bool) {
	triangles, err := Triangulate(polygon)
	if err != nil || len(triangles) == 0 {
		return Point{}, false
	}
	weights := make([]float64, len(triangles))
	total := 0.0
	for i, t := range triangles {
		weights[i] = triangleArea(t)
		total += weights[i]
	}
	if total == 0 {
		return Point{}, false
	}
	t := triangles[rng.WeightedIndex(g, weights)]
	r1 := math.Sqrt(g.Next())
	r2 := g.Next()
	a, b, c := 1-r1, r1*(1-r2), r1*r2
	return Point{
		X: a*t[0].X + b*t[1].X + c*t[2].X,
		Y: a*t[0].Y + b*t[1].Y + c*t[2].Y,
	}, true
}
