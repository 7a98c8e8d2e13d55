package feedback

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/irfansharif/collage/internal/rng"
	"github.com/irfansharif/collage/internal/shapes"
	"github.com/irfansharif/collage/internal/template"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m,
		// database/sql's connection opener outlives Close briefly.
		goleak.IgnoreTopFunction("database/sql.(*DB).connectionOpener"),
	)
}

func quad() template.Template {
	var ps []template.MaskPlacement
	for _, c := range [][2]float64{{0.25, 0.25}, {0.75, 0.25}} {
		ps = append(ps, template.MaskPlacement{
			MaskName: shapes.MustParseRef("basic/square"),
			X:        c[0],
			Y:        c[1],
			Width:    0.4,
			Height:   0.4,
		})
	}
	return template.Template{Key: "quad", Placements: ps}
}

func params(x, y, rot float64) template.Params {
	return template.Params{Placements: []template.PlacementParams{
		{X: x, Y: y, Width: 0.4, Height: 0.4, Rotation: rot},
		{X: 0.75, Y: 0.25, Width: 0.4, Height: 0.4},
	}}
}

func TestLearnNarrowsAroundLikedValues(t *testing.T) {
	pt := template.Parameterize(quad())
	var recs []Record
	for _, x := range []float64{0.49, 0.5, 0.51, 0.495, 0.505} {
		recs = append(recs, NewRecord("quad", 1, params(x, 0.25, 0), true))
	}

	out := Learn(pt, recs)
	r := out.Placements[0].ParameterRanges.X
	assert.LessOrEqual(t, r.Width(), 0.2)
	assert.InDelta(t, 0.5, r.Mid(), 0.02)
	assert.False(t, r.Derived)

	// Learned ranges win over the derived ones when randomizing.
	g := rng.New(1)
	for i := 0; i < 50; i++ {
		x := template.Randomize(out, g).Placements[0].X
		assert.GreaterOrEqual(t, x, r.Min)
		assert.LessOrEqual(t, x, r.Max)
	}
}

func TestLearnSpread(t *testing.T) {
	pt := template.Parameterize(quad())
	recs := []Record{
		NewRecord("quad", 1, params(0.2, 0.99, 0), true),
		NewRecord("quad", 2, params(0.6, 1.0, 30), true),
		NewRecord("quad", 3, params(0.9, 0.5, 90), false),
	}
	out := Learn(pt, recs)
	p0 := out.Placements[0].ParameterRanges

	assert.InDelta(t, 0.18, p0.X.Min, 1e-9)
	assert.InDelta(t, 0.62, p0.X.Max, 1e-9)
	assert.Equal(t, -3.0, p0.Rotation.Min)
	assert.Equal(t, 33.0, p0.Rotation.Max)
	// A narrow band near the edge is clamped.
	assert.InDelta(t, 0.995-narrowHalfBand, p0.Y.Min, 1e-9)
	assert.Equal(t, 1.0, p0.Y.Max)

	// Identical liked values for the second placement collapse to the band.
	p1 := out.Placements[1].ParameterRanges
	assert.InDelta(t, 0.75-narrowHalfBand, p1.X.Min, 1e-9)
	assert.InDelta(t, 0.75+narrowHalfBand, p1.X.Max, 1e-9)

	// Input untouched.
	assert.Equal(t, template.Parameterize(quad()), pt)
}

func TestLearnNoSignal(t *testing.T) {
	pt := template.Parameterize(quad())
	assert.Equal(t, pt, Learn(pt, nil))

	disliked := []Record{
		NewRecord("quad", 1, params(0.1, 0.1, 0), false),
		NewRecord("quad", 2, params(0.9, 0.9, 0), false),
	}
	assert.Equal(t, pt, Learn(pt, disliked))

	other := []Record{NewRecord("elsewhere", 1, params(0.1, 0.1, 0), true)}
	assert.Equal(t, pt, Learn(pt, other))
}

func TestLearnShortRecords(t *testing.T) {
	pt := template.Parameterize(quad())
	short := NewRecord("quad", 1, template.Params{Placements: []template.PlacementParams{
		{X: 0.3, Y: 0.3, Width: 0.4, Height: 0.4},
	}}, true)
	out := Learn(pt, []Record{short})
	assert.False(t, out.Placements[0].ParameterRanges.X.Derived)
	assert.Equal(t, pt.Placements[1], out.Placements[1])
}

func testStore(t *testing.T, s Store) {
	ctx := context.Background()
	a := NewRecord("quad", 7, params(0.5, 0.5, 10), true)
	b := NewRecord("other", 8, params(0.1, 0.2, 0), false)
	c := NewRecord("quad", 9, params(0.4, 0.6, -5), false)
	for _, r := range []Record{a, b, c} {
		require.NoError(t, s.Append(ctx, r))
	}

	got, err := s.ForTemplate(ctx, "quad")
	require.NoError(t, err)
	require.Len(t, got, 2)
	for i, want := range []Record{a, c} {
		assert.Equal(t, want.ID, got[i].ID)
		assert.Equal(t, want.TemplateKey, got[i].TemplateKey)
		assert.Equal(t, want.Seed, got[i].Seed)
		assert.Equal(t, want.Liked, got[i].Liked)
		assert.Equal(t, want.Params, got[i].Params)
		assert.True(t, want.Timestamp.Equal(got[i].Timestamp))
	}

	none, err := s.ForTemplate(ctx, "missing")
	require.NoError(t, err)
	assert.Empty(t, none)

	_, ok, err := s.Snapshot(ctx, "quad", 7)
	require.NoError(t, err)
	assert.False(t, ok)

	first := Snapshot{TemplateKey: "quad", Seed: 7, Params: params(0.1, 0.2, 0), Timestamp: time.Now().UTC()}
	require.NoError(t, s.SaveSnapshot(ctx, first))
	require.NoError(t, s.SaveSnapshot(ctx, Snapshot{TemplateKey: "quad", Seed: 8, Params: params(0.9, 0.9, 0), Timestamp: time.Now().UTC()}))
	got7, ok, err := s.Snapshot(ctx, "quad", 7)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, first.Params, got7.Params)
	assert.True(t, first.Timestamp.Equal(got7.Timestamp))

	// A re-render of the same seed replaces the snapshot.
	second := Snapshot{TemplateKey: "quad", Seed: 7, Params: params(0.6, 0.7, 12), Timestamp: time.Now().UTC()}
	require.NoError(t, s.SaveSnapshot(ctx, second))
	got7, ok, err = s.Snapshot(ctx, "quad", 7)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, second.Params, got7.Params)

	_, ok, err = s.Snapshot(ctx, "other", 7)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMemoryStore(t *testing.T) {
	testStore(t, NewMemoryStore())
}

func TestSQLiteStore(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "feedback.db")
	s, err := OpenSQLite(ctx, path)
	require.NoError(t, err)
	testStore(t, s)
	require.NoError(t, s.Close())

	// Records survive a reopen.
	s, err = OpenSQLite(ctx, path)
	require.NoError(t, err)
	defer s.Close()
	got, err := s.ForTemplate(ctx, "quad")
	require.NoError(t, err)
	assert.Len(t, got, 2)
	snap, ok, err := s.Snapshot(ctx, "quad", 7)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, params(0.6, 0.7, 12), snap.Params)
}

func TestOpen(t *testing.T) {
	s, closeFn, err := Open(context.Background(), "")
	require.NoError(t, err)
	assert.IsType(t, &MemoryStore{}, s)
	assert.NoError(t, closeFn())
}

func TestLearnerApply(t *testing.T) {
	ctx := context.Background()
	reg := template.NewRegistry(nil)
	reg.Put(quad())
	store := NewMemoryStore()
	l := &Learner{Store: store}

	pt, err := l.Apply(ctx, reg, "quad")
	require.NoError(t, err)
	assert.Equal(t, template.Parameterize(quad()), pt)

	for i := 0; i < 3; i++ {
		require.NoError(t, store.Append(ctx, NewRecord("quad", int64(i), params(0.3, 0.25, 0), true)))
	}
	pt, err = l.Apply(ctx, reg, "quad")
	require.NoError(t, err)
	cached, ok := reg.Parameterized("quad")
	require.True(t, ok)
	assert.Equal(t, pt, cached)
	assert.InDelta(t, 0.3, cached.Placements[0].ParameterRanges.X.Mid(), 1e-9)

	_, err = l.Apply(ctx, reg, "ghost")
	assert.Error(t, err)
}
