package geom

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/irfansharif/collage/internal/rng"
)

// insideOrOn reports whether p is inside or on the boundary of a convex
// polygon wound counter-clockwise (y-up).
func insideOrOn(p Point, hull []Point) bool {
	for i := range hull {
		a, b := hull[i], hull[(i+1)%len(hull)]
		if Cross(a, b, p) < -1e-9 {
			return false
		}
	}
	return true
}

func TestConvexHullContainsInputs(t *testing.T) {
	g := rng.New(5)
	for trial := 0; trial < 50; trial++ {
		n := 3 + g.Intn(60)
		pts := make([]Point, n)
		for i := range pts {
			pts[i] = MakePoint(g.Between(-100, 100), g.Between(-100, 100))
		}
		hull := ConvexHull(pts)
		require.GreaterOrEqual(t, len(hull), 3)
		for _, p := range pts {
			require.True(t, insideOrOn(p, hull), "point %v outside hull %v", p, hull)
		}
	}
}

func TestConvexHullSquareWithInterior(t *testing.T) {
	pts := []Point{{0, 0}, {1, 1}, {2, 2}, {0, 2}, {2, 0}, {1, 0}, {0.5, 1.5}}
	hull := ConvexHull(pts)
	assert.ElementsMatch(t, []Point{{0, 0}, {2, 0}, {2, 2}, {0, 2}}, hull)
}

func TestConvexHullDegenerate(t *testing.T) {
	two := []Point{{1, 1}, {2, 2}}
	assert.Equal(t, two, ConvexHull(two))

	// Duplicates and collinear points must not loop or panic.
	dups := []Point{{1, 1}, {1, 1}, {1, 1}, {1, 1}}
	assert.Less(t, len(ConvexHull(dups)), 3)

	line := []Point{{0, 0}, {1, 1}, {2, 2}, {3, 3}}
	assert.Less(t, len(ConvexHull(line)), 3)

	withDups := []Point{{0, 0}, {0, 0}, {4, 0}, {4, 0}, {4, 4}, {0, 4}, {0, 4}}
	assert.Len(t, ConvexHull(withDups), 4)
}

func TestPointInPolygon(t *testing.T) {
	square := []Point{{0, 0}, {10, 0}, {10, 10}, {0, 10}}
	assert.True(t, PointInPolygon(MakePoint(5, 5), square))
	assert.False(t, PointInPolygon(MakePoint(15, 5), square))
	assert.False(t, PointInPolygon(MakePoint(-1, -1), square))

	// Concave "L" shape.
	ell := []Point{{0, 0}, {10, 0}, {10, 4}, {4, 4}, {4, 10}, {0, 10}}
	assert.True(t, PointInPolygon(MakePoint(2, 8), ell))
	assert.False(t, PointInPolygon(MakePoint(8, 8), ell))
}

func TestBoundsOf(t *testing.T) {
	assert.Equal(t, Box{}, BoundsOf(nil))
	b := BoundsOf([]Point{{1, 2}, {-3, 5}, {4, -1}})
	assert.Equal(t, MakeBox(-3, -1, 7, 6), b)
}

func TestBoxOverlaps(t *testing.T) {
	a := MakeBox(0, 0, 10, 10)
	assert.True(t, a.Overlaps(MakeBox(5, 5, 10, 10)))
	assert.False(t, a.Overlaps(MakeBox(10, 0, 5, 5)), "touching edges do not overlap")
	assert.Equal(t, MakeBox(5, 5, 5, 5), a.Intersect(MakeBox(5, 5, 10, 10)))
	assert.Equal(t, Box{}, a.Intersect(MakeBox(20, 20, 1, 1)))
}

func TestAreaAndTriangulate(t *testing.T) {
	square := []Point{{0, 0}, {4, 0}, {4, 4}, {0, 4}}
	assert.InDelta(t, 16, Area(square), 1e-9)

	ell := []Point{{0, 0}, {10, 0}, {10, 4}, {4, 4}, {4, 10}, {0, 10}}
	assert.InDelta(t, 64, Area(ell), 1e-9)

	assert.Zero(t, Area([]Point{{0, 0}, {1, 1}}))
	_, err := Triangulate([]Point{{0, 0}})
	assert.Error(t, err)
}

func TestSamplePolygon(t *testing.T) {
	g := rng.New(1)
	tri := []Point{{0, 0}, {10, 0}, {0, 10}}
	for i := 0; i < 200; i++ {
		p, ok := SamplePolygon(g, tri)
		require.True(t, ok)
		assert.True(t, p.X >= -1e-9 && p.Y >= -1e-9 && p.X+p.Y <= 10+1e-9, "sample %v outside", p)
	}
	_, ok := SamplePolygon(g, []Point{{0, 0}})
	assert.False(t, ok)
}

func TestCoverCrop(t *testing.T) {
	// Wide source into a square destination crops the sides.
	c := CoverCrop(200, 100, MakeBox(0, 0, 50, 50))
	assert.Equal(t, MakeBox(50, 0, 100, 100), c)

	// Tall source into a wide destination crops top and bottom.
	c = CoverCrop(100, 200, MakeBox(0, 0, 100, 50))
	assert.Equal(t, MakeBox(0, 75, 100, 50), c)

	assert.Equal(t, Box{}, CoverCrop(0, 10, MakeBox(0, 0, 1, 1)))
}

func TestAffine(t *testing.T) {
	p := MakePoint(1, 0)
	r := Rotate(math.Pi / 2).MulPoint(p)
	assert.InDelta(t, 0, r.X, 1e-9)
	assert.InDelta(t, 1, r.Y, 1e-9)

	about := RotateAbout(math.Pi, MakePoint(5, 5)).MulPoint(MakePoint(6, 5))
	assert.InDelta(t, 4, about.X, 1e-9)
	assert.InDelta(t, 5, about.Y, 1e-9)

	tr := Translate(3, 4).Mul(Scale(2, 2))
	inv, err := tr.Inv()
	require.NoError(t, err)
	back := inv.MulPoint(tr.MulPoint(MakePoint(7, -2)))
	assert.InDelta(t, 7, back.X, 1e-9)
	assert.InDelta(t, -2, back.Y, 1e-9)

	_, err = Scale(0, 1).Inv()
	assert.Error(t, err)
}
