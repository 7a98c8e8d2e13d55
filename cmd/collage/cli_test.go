package main

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/anthonynsimon/bild/imgio"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/irfansharif/collage/internal/app"
	"github.com/irfansharif/collage/internal/config"
	"github.com/irfansharif/collage/internal/feedback"
)

// setup points the globals at a fresh workspace and returns a command to run
// against, with output captured.
func setup(t *testing.T) (*cobra.Command, *bytes.Buffer, string) {
	t.Helper()
	logger = zap.NewNop()
	dir := t.TempDir()

	cfg = config.DefaultConfig()
	cfg.Seed = 11
	cfg.Canvas.Width, cfg.Canvas.Height = 48, 32
	cfg.Paths.Templates = filepath.Join(dir, "templates")
	cfg.Paths.Images = filepath.Join(dir, "images")
	cfg.Paths.FeedbackDB = filepath.Join(dir, "feedback.db")
	require.NoError(t, os.MkdirAll(cfg.Paths.Templates, 0755))

	cmd := &cobra.Command{}
	cmd.SetContext(context.Background())
	var out bytes.Buffer
	cmd.SetOut(&out)
	return cmd, &out, dir
}

func writeImages(t *testing.T, dir string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(dir, 0755))
	for i, c := range []color.RGBA{{R: 220, A: 255}, {G: 220, A: 255}} {
		im := image.NewRGBA(image.Rect(0, 0, 16, 16))
		for p := 0; p < len(im.Pix); p += 4 {
			im.Pix[p], im.Pix[p+1], im.Pix[p+2], im.Pix[p+3] = c.R, c.G, c.B, c.A
		}
		f, err := os.Create(filepath.Join(dir, string(rune('a'+i))+".png"))
		require.NoError(t, err)
		require.NoError(t, png.Encode(f, im))
		require.NoError(t, f.Close())
	}
}

func TestRenderCmd(t *testing.T) {
	cmd, out, dir := setup(t)
	writeImages(t, cfg.Paths.Images)

	renderTemplate, renderSeed = "grid-quad", 3
	renderOut = filepath.Join(dir, "out", "quad.png")
	renderWidth, renderHeight = 60, 40
	defer func() { renderOut, renderWidth, renderHeight = "", 0, 0 }()

	require.NoError(t, runRender(cmd, nil))
	assert.Contains(t, out.String(), "grid-quad seed=3")

	im, err := imgio.Open(renderOut)
	require.NoError(t, err)
	assert.Equal(t, 60, im.Bounds().Dx())
	assert.Equal(t, 40, im.Bounds().Dy())
}

func TestRenderCmdWithoutImages(t *testing.T) {
	cmd, _, dir := setup(t)
	renderTemplate, renderSeed = "grid-quad", 3
	renderOut = filepath.Join(dir, "never.png")
	defer func() { renderOut = "" }()

	assert.Error(t, runRender(cmd, nil))
	assert.NoFileExists(t, renderOut)
}

func TestValidateCmd(t *testing.T) {
	cmd, out, _ := setup(t)
	require.NoError(t, os.WriteFile(filepath.Join(cfg.Paths.Templates, "bad.yaml"), []byte(`
key: bad
placements:
  - maskName: basic/nope
    x: 0.5
    y: 0.5
    width: 0.5
    height: 0.5
`), 0644))

	require.NoError(t, runValidate(cmd, []string{"grid-quad", "crystal"}))
	assert.Contains(t, out.String(), "grid-quad: ok")

	out.Reset()
	err := runValidate(cmd, []string{"bad", "ghost"})
	assert.ErrorIs(t, err, errInvalidTemplates)
	assert.Contains(t, out.String(), "unresolved shape basic/nope")
	assert.Contains(t, out.String(), "ghost: unknown template")

	out.Reset()
	assert.ErrorIs(t, runValidate(cmd, nil), errInvalidTemplates)
}

func TestTemplatesCmd(t *testing.T) {
	cmd, out, _ := setup(t)
	require.NoError(t, runTemplates(cmd, nil))
	assert.Contains(t, out.String(), "grid-quad")
	assert.Contains(t, out.String(), "crystal-field")
	assert.Contains(t, out.String(), "placements")
}

func TestFeedbackAndLearnCmds(t *testing.T) {
	cmd, out, dir := setup(t)
	writeImages(t, cfg.Paths.Images)
	defer func() { renderOut = "" }()

	require.NoError(t, runLearn(cmd, []string{"grid-quad"}))
	assert.Contains(t, out.String(), "derived: true")

	// Rating a seed nothing rendered has no parameters to record.
	feedbackTemplate, feedbackSeed, feedbackDislike = "grid-quad", 9, false
	assert.ErrorIs(t, runFeedback(cmd, nil), app.ErrNotRendered)

	renderAt := func(seed int64) {
		renderTemplate, renderSeed = "grid-quad", seed
		renderOut = filepath.Join(dir, "out", fmt.Sprintf("quad-%d.png", seed))
		require.NoError(t, runRender(cmd, nil))
	}
	renderAt(500)
	renderAt(9)

	out.Reset()
	require.NoError(t, runFeedback(cmd, nil))
	assert.Contains(t, out.String(), "grid-quad seed=9 liked")

	// A fresh session reads the stored like back and learns from it.
	out.Reset()
	require.NoError(t, runLearn(cmd, []string{"grid-quad"}))
	assert.NotContains(t, out.String(), "derived: true")
	assert.Contains(t, out.String(), "mask: basic/square")

	// Seed 500 is rated with what render drew, not with the ranges learned
	// from seed 9 since.
	feedbackSeed, feedbackDislike = 500, true
	out.Reset()
	require.NoError(t, runFeedback(cmd, nil))
	assert.Contains(t, out.String(), "grid-quad seed=500 disliked")

	ctx := context.Background()
	store, err := feedback.OpenSQLite(ctx, cfg.Paths.FeedbackDB)
	require.NoError(t, err)
	defer store.Close()
	snap, ok, err := store.Snapshot(ctx, "grid-quad", 500)
	require.NoError(t, err)
	require.True(t, ok)
	recs, err := store.ForTemplate(ctx, "grid-quad")
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, int64(500), recs[1].Seed)
	assert.False(t, recs[1].Liked)
	assert.Equal(t, snap.Params, recs[1].Params)

	assert.Error(t, runLearn(cmd, []string{"ghost"}))
}
