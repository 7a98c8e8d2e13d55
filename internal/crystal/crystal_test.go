package crystal

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/irfansharif/collage/internal/canvas"
	"github.com/irfansharif/collage/internal/geom"
	"github.com/irfansharif/collage/internal/rng"
	"github.com/irfansharif/collage/internal/shapes"
)

func defaultOptions() Options {
	return Options{MaxFacets: 25, Complexity: 1}
}

func TestFacetTargetBounds(t *testing.T) {
	r := rng.New(1)
	for i := 0; i < 500; i++ {
		n := FacetTarget(r, 25, 1)
		assert.GreaterOrEqual(t, n, 25)
		assert.LessOrEqual(t, n, 35)

		assert.Equal(t, minFacets, FacetTarget(r, 3, 0.1))
	}
	assert.Panics(t, func() { FacetTarget(r, 0, 1) })
	assert.Panics(t, func() { FacetTarget(r, 10, 0) })
	assert.Panics(t, func() { FacetTarget(r, 10, math.NaN()) })
}

func TestAutoResolution(t *testing.T) {
	assert.Equal(t, 30, AutoResolution(6, 30, 100))
	assert.Equal(t, 60, AutoResolution(25, 30, 100))
	assert.Equal(t, 100, AutoResolution(200, 30, 100))
}

func TestGenerateFacetCount(t *testing.T) {
	for seed := int64(0); seed < 30; seed++ {
		c, ok := Generate(rng.New(seed), defaultOptions(), 400, 400, 3, nil)
		require.True(t, ok)
		assert.GreaterOrEqual(t, len(c.Fragments), 6, "seed %d", seed)
		assert.LessOrEqual(t, len(c.Fragments), 35, "seed %d", seed)
		for _, f := range c.Fragments {
			assert.GreaterOrEqual(t, len(f.Polygon), 3)
			assert.True(t, f.Image >= 0 && f.Image < 3)
		}
	}
}

func TestGenerateEveryPattern(t *testing.T) {
	for _, p := range Patterns {
		t.Run(string(p), func(t *testing.T) {
			opts := defaultOptions()
			opts.Pattern = p
			c, ok := Generate(rng.New(4), opts, 300, 500, 2, nil)
			require.True(t, ok)
			assert.Equal(t, p, c.Pattern)
			assert.GreaterOrEqual(t, len(c.Fragments), 6)
		})
	}
}

func TestGenerateNoImages(t *testing.T) {
	_, ok := Generate(rng.New(1), defaultOptions(), 400, 400, 0, nil)
	assert.False(t, ok)
	_, ok = GenerateField(rng.New(1), FieldOptions{Count: 2, MinSize: 50, MaxSize: 80, Crystal: defaultOptions()}, 400, 400, 0, nil)
	assert.False(t, ok)
}

func TestGenerateDeterministic(t *testing.T) {
	for seed := int64(0); seed < 10; seed++ {
		a, _ := Generate(rng.New(seed), defaultOptions(), 320, 240, 4, nil)
		b, _ := Generate(rng.New(seed), defaultOptions(), 320, 240, 4, nil)
		require.Equal(t, a, b, "seed %d", seed)
	}
}

func TestCenterOutOrderAndShading(t *testing.T) {
	opts := defaultOptions()
	opts.MaxRotation = 20
	c, ok := Generate(rng.New(8), opts, 400, 400, 2, nil)
	require.True(t, ok)
	frags := c.Fragments
	require.NotEmpty(t, frags)

	for i := 1; i < len(frags); i++ {
		assert.LessOrEqual(t, frags[i-1].Distance, frags[i].Distance)
		assert.Less(t, frags[i-1].Order(), frags[i].Order()+1e-12)
	}
	for _, f := range frags {
		assert.GreaterOrEqual(t, f.Alpha, 0.35)
		assert.LessOrEqual(t, f.Alpha, 1.0)
		assert.LessOrEqual(t, math.Abs(f.Angle), f.Distance*20+2)
	}
	inner, outer := frags[0], frags[len(frags)-1]
	assert.Equal(t, 1.0, outer.Distance)
	assert.Greater(t, inner.Alpha, outer.Alpha)
}

func TestImageModes(t *testing.T) {
	opts := defaultOptions()
	opts.ImageMode = Single
	c, ok := Generate(rng.New(2), opts, 400, 400, 5, nil)
	require.True(t, ok)
	for _, f := range c.Fragments {
		assert.Equal(t, c.Fragments[0].Image, f.Image)
		assert.Equal(t, c.Region, f.DestRect())
	}

	opts.ImageMode = Unique
	c, ok = Generate(rng.New(2), opts, 400, 400, 5, nil)
	require.True(t, ok)
	seen := map[int]bool{}
	for _, f := range c.Fragments {
		seen[f.Image] = true
		assert.Equal(t, f.Bounds, f.DestRect())
	}
	assert.Greater(t, len(seen), 1)
}

func TestBlendWeights(t *testing.T) {
	opts := defaultOptions()
	opts.BlendWeights = map[canvas.BlendMode]float64{canvas.Multiply: 1}
	c, _ := Generate(rng.New(2), opts, 200, 200, 1, nil)
	for _, f := range c.Fragments {
		assert.Equal(t, canvas.Multiply, f.BlendMode())
	}
}

func TestIsolatedContainment(t *testing.T) {
	reg := shapes.Default()
	for _, ref := range reg.Keys(shapes.FamilyCrystal) {
		s, _ := reg.Lookup(ref)
		for seed := int64(0); seed < 5; seed++ {
			r := rng.New(seed)
			outline := shapes.Place(s, geom.MakeBox(50, 40, 260, 300), r.Between(0, 360))
			opts := defaultOptions()
			opts.Outline = outline
			c, ok := Generate(r, opts, 400, 400, 3, nil)
			require.True(t, ok)
			require.NotEmpty(t, c.Fragments, "%s seed %d", ref, seed)
			for _, f := range c.Fragments {
				for _, v := range f.Polygon {
					require.True(t, geom.PointInPolygon(v, outline), "%s seed %d vertex %v", ref, seed, v)
				}
			}
		}
	}
}

func TestSeedInjection(t *testing.T) {
	outline := []geom.Point{{X: 100, Y: 100}, {X: 200, Y: 100}, {X: 150, Y: 200}}
	f := &seedField{
		r:       rng.New(3),
		center:  geom.MakePoint(-500, -500), // pattern points all miss
		radius:  10,
		bounds:  geom.BoundsOf(outline),
		outline: outline,
		spacing: 5,
	}
	seeds, injected := f.seeds(Random, 8)
	assert.Len(t, seeds, 8)
	assert.Equal(t, 8, injected)
	for _, s := range seeds {
		assert.True(t, geom.PointInPolygon(s, outline))
	}
}

func TestSeedInjectionGivesUp(t *testing.T) {
	outline := geom.MakeBox(0, 0, 10, 10).Corners()
	f := &seedField{
		r:       rng.New(3),
		center:  geom.MakePoint(-500, -500),
		radius:  10,
		bounds:  geom.BoundsOf(outline),
		outline: outline,
		spacing: 50, // room for one point only
	}
	seeds, injected := f.seeds(Grid, 6)
	assert.Len(t, seeds, 1)
	assert.Equal(t, 1, injected)
}

func TestGenerateField(t *testing.T) {
	opts := FieldOptions{
		Count:   4,
		MinSize: 80,
		MaxSize: 120,
		Crystal: Options{MaxFacets: 12, Complexity: 1},
	}
	f, ok := GenerateField(rng.New(6), opts, 600, 600, 3, nil)
	require.True(t, ok)
	require.Len(t, f.Slots, 4)
	assert.LessOrEqual(t, f.Attempts, opts.Count*fieldAttemptsPerCrystal)

	for i := range f.Slots {
		for j := i + 1; j < len(f.Slots); j++ {
			a, b := f.Slots[i], f.Slots[j]
			assert.GreaterOrEqual(t, geom.Dist(a.Center(), b.Center()), (a.W+b.W)/2-1e-9)
		}
	}
	layer := 0
	for _, frag := range f.Fragments {
		assert.GreaterOrEqual(t, frag.Layer, layer)
		layer = frag.Layer
	}
}

func TestGenerateFieldBudget(t *testing.T) {
	// Crystals as large as the canvas can't all fit without overlap.
	opts := FieldOptions{Count: 5, MinSize: 200, MaxSize: 200, Crystal: Options{MaxFacets: 6, Complexity: 1}}
	f, ok := GenerateField(rng.New(1), opts, 200, 200, 1, nil)
	require.True(t, ok)
	assert.Len(t, f.Slots, 1)
	assert.Equal(t, opts.Count*fieldAttemptsPerCrystal, f.Attempts)

	opts.Overlap = true
	f, _ = GenerateField(rng.New(1), opts, 200, 200, 1, nil)
	assert.Len(t, f.Slots, 5)
}
