package palette

import (
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/irfansharif/collage/internal/geom"
	"github.com/irfansharif/collage/internal/rng"
)

func TestBackgroundIsLight(t *testing.T) {
	r := rng.New(3)
	for i := 0; i < 20; i++ {
		c := Background(r)
		assert.Equal(t, uint8(255), c.A)
		// Light backgrounds call for dark strokes.
		assert.Equal(t, uint8(20), Contrast(c).R)
	}
}

func TestParseHex(t *testing.T) {
	c, err := ParseHex("#ff0000")
	require.NoError(t, err)
	assert.Equal(t, color.RGBA{R: 255, A: 255}, c)

	c, err = ParseHex("#0f0")
	require.NoError(t, err)
	assert.Equal(t, color.RGBA{G: 255, A: 255}, c)

	c, err = ParseHex("")
	require.NoError(t, err)
	assert.Equal(t, DefaultBackground, c)

	_, err = ParseHex("red")
	assert.Error(t, err)
}

type fakeSurface struct{ c color.Color }

func (f fakeSurface) PixelAt(x, y int) color.Color { return f.c }

func TestProbe(t *testing.T) {
	dark := Probe(fakeSurface{c: color.RGBA{A: 255}}, geom.MakePoint(1, 1))
	assert.Equal(t, uint8(245), dark.R)

	light := Probe(fakeSurface{c: color.White}, geom.MakePoint(1, 1))
	assert.Equal(t, uint8(20), light.R)
}
