// Package render composites drawable units onto a canvas surface.
//
// Every generator (template placements, mosaic cells and crystal facets)
// produces Units, and a single Compositor draws them: sorted by Order,
// clipped to their outline, rotated about their pivot, blended and faded.
// The Engine ties template validation, randomization, the generators and
// the compositor together.
package render

import (
	"github.com/irfansharif/collage/internal/canvas"
	"github.com/irfansharif/collage/internal/crystal"
	"github.com/irfansharif/collage/internal/geom"
	"github.com/irfansharif/collage/internal/mosaic"
)

// Unit is one drawable: an image region shown through a clip path.
type Unit interface {
	// ClipPath is the mask outline in canvas pixels.
	ClipPath() []geom.Point
	// DestRect is where the image is laid out, before rotation.
	DestRect() geom.Box
	// SourceRect is the region of a w x h image to draw into DestRect.
	SourceRect(w, h int) geom.Box
	// Pivot is the point the image rotates about.
	Pivot() geom.Point
	ImageIndex() int
	Opacity() float64
	// Rotation is in degrees.
	Rotation() float64
	BlendMode() canvas.BlendMode
	// Order sorts units back to front.
	Order() float64
}

var (
	_ Unit = Placement{}
	_ Unit = mosaic.Cell{}
	_ Unit = crystal.Fragment{}
)

// Placement is a resolved template mask placement.
type Placement struct {
	Index   int          // position in the template
	Outline []geom.Point // placed and rotated, canvas pixels
	Box     geom.Box     // the unrotated placement box
	Angle   float64
	Image   int
	Blend   canvas.BlendMode
}

func (p Placement) ClipPath() []geom.Point       { return p.Outline }
func (p Placement) DestRect() geom.Box           { return p.Box }
func (p Placement) SourceRect(w, h int) geom.Box { return geom.CoverCrop(float64(w), float64(h), p.Box) }
func (p Placement) Pivot() geom.Point            { return p.Box.Center() }
func (p Placement) ImageIndex() int              { return p.Image }
func (p Placement) Opacity() float64             { return 1 }
func (p Placement) Rotation() float64            { return p.Angle }
func (p Placement) BlendMode() canvas.BlendMode  { return p.Blend }
func (p Placement) Order() float64               { return float64(p.Index) }
