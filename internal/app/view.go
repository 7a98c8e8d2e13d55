package app

import (
	"math"

	"github.com/irfansharif/collage/internal/geom"
)

const (
	minZoom = 0.1
	maxZoom = 8.0
)

// View is the preview's zoom and pan over a rendered canvas. Screen = canvas
// * Zoom + Pan.
type View struct {
	Zoom          float64
	PanX, PanY    float64
	Width, Height int // viewport, in framebuffer pixels
}

// NewView creates a new view state with default values.
func NewView(width, height int) *View {
	return &View{
		Zoom:   1.0,
		Width:  width,
		Height: height,
	}
}

// SetZoom sets the zoom level, clamping to valid range.
func (vs *View) SetZoom(zoom float64) {
	vs.Zoom = math.Max(minZoom, math.Min(maxZoom, zoom))
}

// ZoomAt scales the zoom by factor, keeping the canvas point under the screen
// position (sx, sy) fixed.
func (vs *View) ZoomAt(factor, sx, sy float64) {
	anchor := vs.ScreenToCanvas(geom.MakePoint(sx, sy))
	vs.SetZoom(vs.Zoom * factor)
	vs.PanX = sx - anchor.X*vs.Zoom
	vs.PanY = sy - anchor.Y*vs.Zoom
}

// SetPan sets the pan position to the given coordinates.
func (vs *View) SetPan(x, y float64) {
	vs.PanX = x
	vs.PanY = y
}

// PanBy shifts the view by (dx, dy) screen pixels.
func (vs *View) PanBy(dx, dy float64) {
	vs.PanX += dx
	vs.PanY += dy
}

// SetViewport updates the viewport dimensions.
func (vs *View) SetViewport(width, height int) {
	vs.Width = width
	vs.Height = height
}

// ResetTo resets zoom to 1.0 and pans to center the given canvas point in the
// viewport.
func (vs *View) ResetTo(pos geom.Point) {
	vs.Zoom = 1.0
	vs.PanX = float64(vs.Width)/2.0 - pos.X
	vs.PanY = float64(vs.Height)/2.0 - pos.Y
}

// Fit zooms so a w x h canvas fills the viewport, letterboxed, and centres it.
func (vs *View) Fit(w, h int) {
	if w <= 0 || h <= 0 || vs.Width <= 0 || vs.Height <= 0 {
		vs.ResetTo(geom.MakePoint(float64(w)/2, float64(h)/2))
		return
	}
	vs.SetZoom(math.Min(float64(vs.Width)/float64(w), float64(vs.Height)/float64(h)))
	vs.PanX = (float64(vs.Width) - float64(w)*vs.Zoom) / 2
	vs.PanY = (float64(vs.Height) - float64(h)*vs.Zoom) / 2
}

// Transform maps canvas coordinates to screen coordinates.
func (vs *View) Transform() geom.Affine {
	return geom.Translate(vs.PanX, vs.PanY).Mul(geom.Scale(vs.Zoom, vs.Zoom))
}

// ScreenToCanvas inverts Transform.
func (vs *View) ScreenToCanvas(p geom.Point) geom.Point {
	return geom.MakePoint((p.X-vs.PanX)/vs.Zoom, (p.Y-vs.PanY)/vs.Zoom)
}

// NDCMatrix is the column-major 4x4 matrix taking canvas coordinates to GL
// normalized device coordinates for the current viewport (y up).
func (vs *View) NDCMatrix() [16]float32 {
	w, h := math.Max(1, float64(vs.Width)), math.Max(1, float64(vs.Height))
	ndc := geom.MakeAffine(2/w, 0, -1, 0, -2/h, 1)
	return affineToMatrix4(ndc.Mul(vs.Transform()))
}

func affineToMatrix4(t geom.Affine) [16]float32 {
	return [16]float32{
		float32(t.A), float32(t.D), 0, 0,
		float32(t.B), float32(t.E), 0, 0,
		0, 0, 1, 0,
		float32(t.C), float32(t.F), 0, 1,
	}
}
