// Package canvas defines the imperative 2D drawing surface the compositor
// draws through, and a raster implementation of it.
//
// The surface mirrors a browser canvas context: a save/restore state stack
// carrying the current transform, clip region, blend mode and global alpha;
// image drawing with source and destination rectangles; polygon fill and
// stroke; and pixel readback.
package canvas

import (
	"fmt"
	"image"
	"image/color"

	"github.com/irfansharif/collage/internal/geom"
)

// BlendMode selects how drawn pixels combine with the surface.
type BlendMode string

const (
	SourceOver    BlendMode = "source-over"
	Multiply      BlendMode = "multiply"
	HardLight     BlendMode = "hard-light"
	DestinationIn BlendMode = "destination-in"
)

// BlendModes lists the supported modes.
var BlendModes = []BlendMode{SourceOver, Multiply, HardLight, DestinationIn}

// ParseBlendMode parses a blend mode name. The empty string is SourceOver.
func ParseBlendMode(s string) (BlendMode, error) {
	if s == "" {
		return SourceOver, nil
	}
	for _, m := range BlendModes {
		if string(m) == s {
			return m, nil
		}
	}
	return "", fmt.Errorf("unknown blend mode %q", s)
}

// Surface is a 2D drawing context. Implementations are not safe for
// concurrent use; at most one render writes to a surface at a time.
type Surface interface {
	Width() int
	Height() int

	// Save pushes the current state (transform, clip, blend mode, alpha);
	// Restore pops it.
	Save()
	Restore()

	// Translate, Rotate (radians, clockwise on screen) and Scale modify the
	// current transform; subsequent geometry is mapped through it.
	Translate(x, y float64)
	Rotate(theta float64)
	Scale(sx, sy float64)

	// ClipPolygon intersects the clip region with the polygon.
	ClipPolygon(polygon []geom.Point)

	SetBlendMode(mode BlendMode)
	SetAlpha(alpha float64)

	// DrawImage draws the src region of img into the dst rectangle.
	DrawImage(img image.Image, src, dst geom.Box)

	FillPolygon(polygon []geom.Point, c color.Color)
	StrokePolygon(polygon []geom.Point, c color.Color, width float64)

	// Clear fills the whole surface with c, ignoring clip and transform.
	Clear(c color.Color)

	// PixelAt reads back a pixel; out-of-bounds reads are transparent.
	PixelAt(x, y int) color.Color

	Image() image.Image
}
