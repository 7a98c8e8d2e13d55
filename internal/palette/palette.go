// Package palette provides colour helpers for compositions: HSV-generated
// background colours, hex parsing and contrast selection for outline strokes
// based on what is already drawn beneath them.
package palette

import (
	"fmt"
	"image/color"

	"github.com/lucasb-eyer/go-colorful"

	"github.com/irfansharif/collage/internal/geom"
	"github.com/irfansharif/collage/internal/rng"
)

// DefaultBackground is used when a template names none.
var DefaultBackground = color.RGBA{R: 245, G: 242, B: 235, A: 255}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func toRGBA(c colorful.Color) color.RGBA {
	r, g, b := c.Clamped().RGB255()
	return color.RGBA{R: r, G: g, B: b, A: 255}
}

// hsb converts hue in [0,100), saturation and brightness in [0,100] to RGBA.
func hsb(h, s, b float64) color.RGBA {
	hue := h * 3.6
	sat := clamp(s/100.0, 0, 1)
	bright := clamp(b/100.0, 0, 1)
	return toRGBA(colorful.Hsv(hue, sat, bright))
}

// Background returns a random soft background colour: low saturation, high
// brightness.
func Background(r *rng.RNG) color.RGBA {
	return hsb(r.Next()*100, r.Between(5, 25), r.Between(85, 98))
}

// ParseHex parses "#rrggbb" (or "#rgb"). An empty string yields
// DefaultBackground.
func ParseHex(s string) (color.RGBA, error) {
	if s == "" {
		return DefaultBackground, nil
	}
	if len(s) == 4 && s[0] == '#' {
		s = fmt.Sprintf("#%c%c%c%c%c%c", s[1], s[1], s[2], s[2], s[3], s[3])
	}
	c, err := colorful.Hex(s)
	if err != nil {
		return color.RGBA{}, fmt.Errorf("invalid colour %q: %w", s, err)
	}
	return toRGBA(c), nil
}

// Contrast returns near-black or near-white, whichever stands out against c.
func Contrast(c color.Color) color.RGBA {
	cf, ok := colorful.MakeColor(c)
	if !ok { // fully transparent
		return color.RGBA{A: 255}
	}
	l, _, _ := cf.Lab()
	if l > 0.6 {
		return color.RGBA{R: 20, G: 20, B: 20, A: 255}
	}
	return color.RGBA{R: 245, G: 245, B: 245, A: 255}
}

// PixelReader is the readback part of a drawing surface.
type PixelReader interface {
	PixelAt(x, y int) color.Color
}

// Probe reads the pixel under p and returns a stroke colour that contrasts
// with it.
func Probe(s PixelReader, p geom.Point) color.RGBA {
	return Contrast(s.PixelAt(int(p.X), int(p.Y)))
}
