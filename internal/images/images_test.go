package images

import (
	"context"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func writePNG(t *testing.T, path string, w, h int) {
	t.Helper()
	im := image.NewRGBA(image.Rect(0, 0, w, h))
	im.Set(0, 0, color.White)
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()
	require.NoError(t, png.Encode(f, im))
}

func TestLoadDir(t *testing.T) {
	dir := t.TempDir()
	writePNG(t, filepath.Join(dir, "b.png"), 30, 20)
	writePNG(t, filepath.Join(dir, "a.png"), 10, 10)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "broken.png"), []byte("nope"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o644))

	p, err := LoadDir(context.Background(), dir, nil)
	require.NoError(t, err)
	require.Equal(t, 2, p.Len())
	assert.True(t, p.Ready())
	assert.Equal(t, "a.png", p.At(0).Name)
	assert.Equal(t, 30, p.At(1).Width())
	assert.Equal(t, 20, p.At(1).Height())
	assert.Len(t, p.Images(), 2)
}

func TestLoadDirMissing(t *testing.T) {
	_, err := LoadDir(context.Background(), filepath.Join(t.TempDir(), "missing"), nil)
	assert.Error(t, err)
}

func TestReady(t *testing.T) {
	var nilPool *Pool
	assert.False(t, nilPool.Ready())
	assert.False(t, FromImages().Ready())
	assert.False(t, FromImages(image.NewRGBA(image.Rect(0, 0, 1, 1)), nil).Ready())
	assert.True(t, FromImages(image.NewRGBA(image.Rect(0, 0, 1, 1))).Ready())
}
