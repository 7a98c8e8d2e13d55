package app

import (
	"context"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/irfansharif/collage/internal/canvas"
	"github.com/irfansharif/collage/internal/config"
	"github.com/irfansharif/collage/internal/feedback"
	"github.com/irfansharif/collage/internal/geom"
	"github.com/irfansharif/collage/internal/images"
	"github.com/irfansharif/collage/internal/render"
	"github.com/irfansharif/collage/internal/shapes"
	"github.com/irfansharif/collage/internal/template"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m,
		goleak.IgnoreTopFunction("database/sql.(*DB).connectionOpener"),
	)
}

func solid(c color.RGBA) image.Image {
	im := image.NewRGBA(image.Rect(0, 0, 32, 32))
	draw.Draw(im, im.Bounds(), image.NewUniform(c), image.Point{}, draw.Src)
	return im
}

func newTestApp(t *testing.T, pool *images.Pool) (*App, *feedback.MemoryStore) {
	t.Helper()
	reg := template.NewRegistry(nil)
	for _, tm := range template.Builtin() {
		reg.Put(tm)
	}
	store := feedback.NewMemoryStore()
	a := New(Deps{
		Shapes:    shapes.Default(),
		Templates: reg,
		Images:    pool,
		Store:     store,
		Settings:  render.DefaultSettings(),
		Seed:      100,
	})
	return a, store
}

func defaultPool() *images.Pool {
	return images.FromImages(
		solid(color.RGBA{R: 255, A: 255}),
		solid(color.RGBA{G: 255, A: 255}),
		solid(color.RGBA{B: 255, A: 255}),
	)
}

func TestHistory(t *testing.T) {
	h := NewHistory(10)
	assert.Nil(t, h.Current())
	assert.Nil(t, h.Iter(true))

	a := h.Add("a", 1, render.Result{})
	b := h.Add("b", 2, render.Result{})
	c := h.Add("c", 3, render.Result{})
	assert.Equal(t, 3, h.Len())
	assert.Equal(t, c, h.Current())

	assert.Equal(t, a, h.Iter(true), "wraps forward")
	assert.Equal(t, c, h.Iter(false), "wraps backward")
	assert.Equal(t, b, h.Iter(false))

	require.True(t, h.Remove(b.ID))
	assert.False(t, h.Remove(b.ID))
	assert.Equal(t, a, h.Iter(true), "restarts from the first entry after removal")
	assert.Equal(t, []*Entry{a, c}, h.Entries())

	assert.Equal(t, int64(11), h.IncrementSeed())
	assert.Equal(t, int64(12), h.IncrementSeed())
}

func TestView(t *testing.T) {
	v := NewView(200, 100)
	v.SetZoom(100)
	assert.Equal(t, maxZoom, v.Zoom)
	v.SetZoom(0)
	assert.Equal(t, minZoom, v.Zoom)

	v.Fit(400, 400)
	assert.Equal(t, 0.25, v.Zoom)
	assert.Equal(t, 50.0, v.PanX)
	assert.Equal(t, 0.0, v.PanY)

	p := geom.MakePoint(123, 45)
	back := v.ScreenToCanvas(v.Transform().MulPoint(p))
	assert.InDelta(t, p.X, back.X, 1e-9)
	assert.InDelta(t, p.Y, back.Y, 1e-9)

	anchor := v.ScreenToCanvas(geom.MakePoint(80, 30))
	v.ZoomAt(2, 80, 30)
	assert.Equal(t, 0.5, v.Zoom)
	after := v.ScreenToCanvas(geom.MakePoint(80, 30))
	assert.InDelta(t, anchor.X, after.X, 1e-9)
	assert.InDelta(t, anchor.Y, after.Y, 1e-9)

	v.ResetTo(geom.MakePoint(10, 10))
	assert.Equal(t, 1.0, v.Zoom)
	assert.Equal(t, 90.0, v.PanX)
	assert.Equal(t, 40.0, v.PanY)
}

func TestViewNDC(t *testing.T) {
	v := NewView(200, 100)
	v.Fit(400, 200)
	m := v.NDCMatrix()
	ndc := func(x, y float64) (float32, float32) {
		return m[0]*float32(x) + m[4]*float32(y) + m[12], m[1]*float32(x) + m[5]*float32(y) + m[13]
	}
	x, y := ndc(0, 0)
	assert.InDelta(t, -1, x, 1e-6)
	assert.InDelta(t, 1, y, 1e-6)
	x, y = ndc(400, 200)
	assert.InDelta(t, 1, x, 1e-6)
	assert.InDelta(t, -1, y, 1e-6)
	x, y = ndc(200, 100)
	assert.InDelta(t, 0, x, 1e-6)
	assert.InDelta(t, 0, y, 1e-6)
}

func TestCycleTemplate(t *testing.T) {
	a, _ := newTestApp(t, defaultPool())
	keys := a.Templates.Keys()
	require.NotEmpty(t, keys)
	assert.Equal(t, keys[0], a.CurrentTemplate())

	assert.Equal(t, keys[1], a.CycleTemplate(true))
	assert.Equal(t, keys[0], a.CycleTemplate(false))
	assert.Equal(t, keys[len(keys)-1], a.CycleTemplate(false))
	assert.Equal(t, keys[0], a.CycleTemplate(true))

	require.NoError(t, a.SetTemplate("grid-quad"))
	assert.Equal(t, "grid-quad", a.CurrentTemplate())
	assert.ErrorIs(t, a.SetTemplate("nope"), ErrUnknownTemplate)
}

func TestGenerateReproducible(t *testing.T) {
	ctx := context.Background()
	a, _ := newTestApp(t, defaultPool())

	s1, s2 := canvas.NewGG(80, 60), canvas.NewGG(80, 60)
	e1, res, err := a.Generate(ctx, "grid-quad", 42, s1)
	require.NoError(t, err)
	assert.Equal(t, render.Drawn, res.Outcome)
	assert.Equal(t, 4, res.Stats.Drawn)
	require.NotNil(t, e1)
	assert.Equal(t, "grid-quad", e1.Key)
	assert.Equal(t, int64(42), e1.Seed)
	assert.Len(t, e1.Params.Placements, 4)

	e2, _, err := a.Generate(ctx, e1.Key, e1.Seed, s2)
	require.NoError(t, err)
	assert.NotEqual(t, e1.ID, e2.ID)
	assert.Equal(t, s1.Image(), s2.Image())
	assert.Len(t, a.History(), 2)
}

func TestGenerateFailures(t *testing.T) {
	ctx := context.Background()
	a, _ := newTestApp(t, defaultPool())
	s := canvas.NewGG(40, 40)

	e, _, err := a.Generate(ctx, "ghost", 1, s)
	assert.ErrorIs(t, err, ErrUnknownTemplate)
	assert.Nil(t, e)

	a.Templates.Put(template.Template{Key: "broken", Placements: []template.MaskPlacement{{
		MaskName: shapes.MustParseRef("basic/nope"), X: 0.5, Y: 0.5, Width: 0.5, Height: 0.5,
	}}})
	e, res, err := a.Generate(ctx, "broken", 1, s)
	assert.ErrorIs(t, err, render.ErrInvalidTemplate)
	assert.Equal(t, render.Invalid, res.Outcome)
	require.NotNil(t, e, "invalid renders are kept in history")
	assert.Error(t, a.Like(ctx, e.ID), "invalid renders cannot be rated")

	a.SetImages(&images.Pool{})
	e, res, err = a.Generate(ctx, "grid-quad", 1, s)
	assert.ErrorIs(t, err, render.ErrNothingToDraw)
	assert.Equal(t, render.NothingToDraw, res.Outcome)
	assert.Nil(t, e)
	assert.Len(t, a.History(), 1)
}

func TestRegenerateAndStep(t *testing.T) {
	ctx := context.Background()
	a, _ := newTestApp(t, defaultPool())
	require.NoError(t, a.SetTemplate("grid-quad"))
	s := canvas.NewGG(40, 40)

	e1, _, err := a.Regenerate(ctx, s)
	require.NoError(t, err)
	e2, _, err := a.Regenerate(ctx, s)
	require.NoError(t, err)
	assert.Equal(t, int64(101), e1.Seed)
	assert.Equal(t, int64(102), e2.Seed)
	assert.Equal(t, e2, a.Current())

	prev, err := a.Previous(ctx, s)
	require.NoError(t, err)
	assert.Equal(t, e1, prev)
	assert.Equal(t, e1, a.Current())

	// Stepping back re-renders the same pixels.
	again := canvas.NewGG(40, 40)
	_, _, err = a.Generate(ctx, e1.Key, e1.Seed, again)
	require.NoError(t, err)
	assert.Equal(t, again.Image(), s.Image())
}

func TestLikeRelearns(t *testing.T) {
	ctx := context.Background()
	a, store := newTestApp(t, defaultPool())
	s := canvas.NewGG(40, 40)

	e, _, err := a.Generate(ctx, "grid-quad", 7, s)
	require.NoError(t, err)
	before, ok := a.Templates.Parameterized("grid-quad")
	require.True(t, ok)
	assert.True(t, before.Placements[0].ParameterRanges.X.Derived)

	require.NoError(t, a.Like(ctx, e.ID))
	require.NotNil(t, e.Liked)
	assert.True(t, *e.Liked)

	recs, err := store.ForTemplate(ctx, "grid-quad")
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, e.Seed, recs[0].Seed)
	assert.Equal(t, e.Params, recs[0].Params)

	after, ok := a.Templates.Parameterized("grid-quad")
	require.True(t, ok)
	x := after.Placements[0].ParameterRanges.X
	assert.False(t, x.Derived)
	assert.InDelta(t, e.Params.Placements[0].X, x.Mid(), 1e-9)

	require.NoError(t, a.Dislike(ctx, e.ID))
	assert.False(t, *e.Liked)
	assert.Error(t, a.Like(ctx, EntryID(999)))
}

func TestRateSeedUsesRenderedParams(t *testing.T) {
	ctx := context.Background()
	a, store := newTestApp(t, defaultPool())
	s := canvas.NewGG(40, 40)

	first, _, err := a.Generate(ctx, "grid-quad", 500, s)
	require.NoError(t, err)
	seen := first.Params

	// Liking another seed narrows the ranges seed 500 now renders with.
	other, _, err := a.Generate(ctx, "grid-quad", 7, s)
	require.NoError(t, err)
	require.NoError(t, a.Like(ctx, other.ID))

	// A later session sharing the store rates seed 500 without re-rendering.
	later := New(Deps{
		Shapes:    shapes.Default(),
		Templates: a.Templates,
		Images:    defaultPool(),
		Store:     store,
		Settings:  render.DefaultSettings(),
		Seed:      1,
	})
	require.NoError(t, later.RateSeed(ctx, "grid-quad", first.Seed, true))

	recs, err := store.ForTemplate(ctx, "grid-quad")
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, first.Seed, recs[1].Seed)
	assert.Equal(t, seen, recs[1].Params)

	assert.ErrorIs(t, later.RateSeed(ctx, "grid-quad", 123456, true), ErrNotRendered)
	assert.ErrorIs(t, later.RateSeed(ctx, "ghost", first.Seed, true), ErrUnknownTemplate)
}

func TestStepRefreshesParams(t *testing.T) {
	ctx := context.Background()
	a, store := newTestApp(t, defaultPool())
	s := canvas.NewGG(40, 40)

	first, _, err := a.Generate(ctx, "grid-quad", 500, s)
	require.NoError(t, err)
	other, _, err := a.Generate(ctx, "grid-quad", 7, s)
	require.NoError(t, err)
	require.NoError(t, a.Like(ctx, other.ID))

	// Stepping back re-renders seed 500 with the learned ranges; the entry
	// and the stored snapshot follow what is now on screen.
	e, err := a.Previous(ctx, s)
	require.NoError(t, err)
	require.Equal(t, first.ID, e.ID)
	snap, ok, err := store.Snapshot(ctx, "grid-quad", first.Seed)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, e.Params, snap.Params)

	require.NoError(t, a.Like(ctx, e.ID))
	recs, err := store.ForTemplate(ctx, "grid-quad")
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, snap.Params, recs[1].Params)
}

func writePNG(t *testing.T, path string, c color.RGBA) {
	t.Helper()
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()
	require.NoError(t, png.Encode(f, solid(c)))
}

func TestOpen(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	cfg := config.DefaultConfig()
	cfg.Seed = 5
	cfg.Paths.Templates = filepath.Join(dir, "templates")
	cfg.Paths.Images = filepath.Join(dir, "images")
	cfg.Paths.FeedbackDB = filepath.Join(dir, "state", "feedback.db")

	require.NoError(t, os.MkdirAll(cfg.Paths.Templates, 0755))
	require.NoError(t, os.MkdirAll(cfg.Paths.Images, 0755))
	writePNG(t, filepath.Join(cfg.Paths.Images, "a.png"), color.RGBA{R: 200, A: 255})
	require.NoError(t, os.WriteFile(filepath.Join(cfg.Paths.Templates, "solo.yaml"), []byte(`
key: solo
placements:
  - maskName: basic/circle
    x: 0.5
    y: 0.5
    width: 0.6
    height: 0.6
`), 0644))

	a, err := Open(ctx, cfg, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, a.Images().Len())
	_, ok := a.Templates.Get("solo")
	assert.True(t, ok)
	_, ok = a.Templates.Get("grid-quad")
	assert.True(t, ok)

	e, _, err := a.Generate(ctx, "solo", 1, canvas.NewGG(30, 30))
	require.NoError(t, err)
	require.NoError(t, a.Like(ctx, e.ID))
	require.NoError(t, a.Close())

	// Feedback persists: a reopened session starts from the learned ranges.
	a, err = Open(ctx, cfg, nil)
	require.NoError(t, err)
	defer func() { require.NoError(t, a.Close()) }()
	pt, ok := a.Templates.Parameterized("solo")
	require.True(t, ok)
	assert.False(t, pt.Placements[0].ParameterRanges.X.Derived)
}

func TestOpenMissingImages(t *testing.T) {
	cfg := config.DefaultConfig()
	dir := t.TempDir()
	cfg.Paths.Templates = filepath.Join(dir, "none")
	cfg.Paths.Images = filepath.Join(dir, "missing")
	cfg.Paths.FeedbackDB = ""

	a, err := Open(context.Background(), cfg, nil)
	require.NoError(t, err)
	defer a.Close()
	assert.False(t, a.Images().Ready())

	_, res, err := a.Regenerate(context.Background(), canvas.NewGG(10, 10))
	assert.ErrorIs(t, err, render.ErrNothingToDraw)
	assert.Equal(t, render.NothingToDraw, res.Outcome)
}
