package canvas

import (
	"image"
	"image/color"
	"image/draw"
	"math"

	"github.com/anthonynsimon/bild/blend"
	"github.com/anthonynsimon/bild/fcolor"
	"github.com/anthonynsimon/bild/transform"
	"github.com/fogleman/gg"
	xdraw "golang.org/x/image/draw"
	"golang.org/x/image/math/f64"

	"github.com/irfansharif/collage/internal/geom"
)

type state struct {
	xform geom.Affine
	clips [][]geom.Point // device space
	blend BlendMode
	alpha float64
}

// GG is a raster Surface backed by fogleman/gg. Every DrawImage renders into
// a transparent layer through the clip mask and is then composited onto the
// surface with the current blend mode and alpha, restricted to the dirty
// rectangle.
type GG struct {
	im    *image.RGBA
	dc    *gg.Context
	state state
	stack []state
}

var _ Surface = (*GG)(nil)

// NewGG returns a transparent w x h surface.
func NewGG(w, h int) *GG {
	im := image.NewRGBA(image.Rect(0, 0, w, h))
	return &GG{
		im:    im,
		dc:    gg.NewContextForRGBA(im),
		state: state{xform: geom.Identity, blend: SourceOver, alpha: 1},
	}
}

func (s *GG) Width() int  { return s.im.Bounds().Dx() }
func (s *GG) Height() int { return s.im.Bounds().Dy() }

func (s *GG) Save() {
	saved := s.state
	saved.clips = append([][]geom.Point(nil), s.state.clips...)
	s.stack = append(s.stack, saved)
}

func (s *GG) Restore() {
	if len(s.stack) == 0 {
		return
	}
	s.state = s.stack[len(s.stack)-1]
	s.stack = s.stack[:len(s.stack)-1]
}

func (s *GG) Translate(x, y float64) { s.state.xform = s.state.xform.Mul(geom.Translate(x, y)) }
func (s *GG) Rotate(theta float64)   { s.state.xform = s.state.xform.Mul(geom.Rotate(theta)) }
func (s *GG) Scale(sx, sy float64)   { s.state.xform = s.state.xform.Mul(geom.Scale(sx, sy)) }

func (s *GG) ClipPolygon(polygon []geom.Point) {
	s.state.clips = append(s.state.clips, s.state.xform.Apply(polygon))
}

func (s *GG) SetBlendMode(mode BlendMode) { s.state.blend = mode }

func (s *GG) SetAlpha(alpha float64) { s.state.alpha = math.Max(0, math.Min(1, alpha)) }

func (s *GG) Image() image.Image { return s.im }

func (s *GG) PixelAt(x, y int) color.Color {
	if !(image.Point{X: x, Y: y}).In(s.im.Bounds()) {
		return color.Transparent
	}
	return s.im.At(x, y)
}

func (s *GG) Clear(c color.Color) {
	s.dc.ResetClip()
	s.dc.SetColor(c)
	s.dc.Clear()
}

// clipMask rasterizes the intersection of the current clip polygons. It
// returns nil when nothing is clipped.
func (s *GG) clipMask() *image.Alpha {
	if len(s.state.clips) == 0 {
		return nil
	}
	mc := gg.NewContext(s.Width(), s.Height())
	for i, poly := range s.state.clips {
		tracePolygon(mc, poly)
		if i < len(s.state.clips)-1 {
			mc.Clip()
			continue
		}
		mc.SetRGBA(1, 1, 1, 1)
		mc.Fill()
	}
	return mc.AsMask()
}

// clipBounds returns the device-space bounds of the clip region, or the whole
// surface when nothing is clipped.
func (s *GG) clipBounds() geom.Box {
	b := geom.MakeBox(0, 0, float64(s.Width()), float64(s.Height()))
	for _, poly := range s.state.clips {
		b = b.Intersect(geom.BoundsOf(poly))
	}
	return b
}

func tracePolygon(dc *gg.Context, poly []geom.Point) {
	dc.NewSubPath()
	for i, p := range poly {
		if i == 0 {
			dc.MoveTo(p.X, p.Y)
		} else {
			dc.LineTo(p.X, p.Y)
		}
	}
	dc.ClosePath()
}

func (s *GG) DrawImage(img image.Image, src, dst geom.Box) {
	if img == nil || src.Empty() || dst.Empty() {
		return
	}

	srcRect := image.Rect(
		int(math.Floor(src.X)), int(math.Floor(src.Y)),
		int(math.Ceil(src.X+src.W)), int(math.Ceil(src.Y+src.H)),
	).Intersect(img.Bounds())
	if srcRect.Empty() {
		return
	}
	crop := transform.Crop(img, srcRect)

	// Source pixel space -> device space.
	m := s.state.xform.
		Mul(geom.Translate(dst.X, dst.Y)).
		Mul(geom.Scale(dst.W/src.W, dst.H/src.H)).
		Mul(geom.Translate(-src.X, -src.Y))

	srcBox := geom.MakeBox(float64(srcRect.Min.X), float64(srcRect.Min.Y),
		float64(srcRect.Dx()), float64(srcRect.Dy()))
	dirty := geom.BoundsOf(m.Apply(srcBox.Corners())).Intersect(s.clipBounds())
	region := image.Rect(
		int(math.Floor(dirty.X)), int(math.Floor(dirty.Y)),
		int(math.Ceil(dirty.X+dirty.W)), int(math.Ceil(dirty.Y+dirty.H)),
	).Intersect(s.im.Bounds())
	if region.Empty() {
		return
	}

	layer := image.NewRGBA(s.im.Bounds())
	var opts *xdraw.Options
	if mask := s.clipMask(); mask != nil {
		opts = &xdraw.Options{DstMask: mask, DstMaskP: image.Point{}}
	}
	aff := f64.Aff3{m.A, m.B, m.C, m.D, m.E, m.F}
	xdraw.BiLinear.Transform(layer, aff, crop, crop.Bounds(), xdraw.Over, opts)

	s.composite(layer, region)
}

// composite blends layer onto the surface inside region. Pixels the layer
// does not cover are left alone (except under destination-in) so repeated
// draws don't accumulate rounding from the float round trip.
func (s *GG) composite(layer *image.RGBA, region image.Rectangle) {
	bg := s.im.SubImage(region)
	fg := layer.SubImage(region)
	out := blend.Blend(bg, fg, compositeFunc(s.state.blend, s.state.alpha))
	if s.state.blend == DestinationIn {
		draw.Draw(s.im, region, out, image.Point{}, draw.Src)
		return
	}
	for y := 0; y < out.Rect.Dy(); y++ {
		for x := 0; x < out.Rect.Dx(); x++ {
			li := layer.PixOffset(region.Min.X+x, region.Min.Y+y)
			if layer.Pix[li+3] == 0 {
				continue
			}
			si := s.im.PixOffset(region.Min.X+x, region.Min.Y+y)
			oi := out.PixOffset(x, y)
			copy(s.im.Pix[si:si+4], out.Pix[oi:oi+4])
		}
	}
}

// compositeFunc returns the per-pixel compositing function for mode, with
// the source scaled by alpha. Pixels are premultiplied on the way in and out;
// the separable blend is applied to straight colour, following the W3C
// compositing formula
//
//	co = as*(1-ab)*Cs + as*ab*B(Cb,Cs) + (1-as)*ab*Cb
//	ao = as + ab*(1-as)
func compositeFunc(mode BlendMode, alpha float64) func(bg, fg fcolor.RGBAF64) fcolor.RGBAF64 {
	mix := func(cb, cs float64) float64 { return cs }
	switch mode {
	case Multiply:
		mix = func(cb, cs float64) float64 { return cb * cs }
	case HardLight:
		mix = func(cb, cs float64) float64 {
			if cs <= 0.5 {
				return 2 * cb * cs
			}
			return 1 - 2*(1-cb)*(1-cs)
		}
	}

	return func(bg, fg fcolor.RGBAF64) fcolor.RGBAF64 {
		as := fg.A * alpha
		ab := bg.A
		if mode == DestinationIn {
			return fcolor.RGBAF64{R: bg.R * as, G: bg.G * as, B: bg.B * as, A: ab * as}
		}
		if as == 0 {
			return bg
		}
		cs := unpremultiply(fg)
		cb := unpremultiply(bg)
		ch := func(b, s float64) float64 {
			return as*(1-ab)*s + as*ab*mix(b, s) + (1-as)*ab*b
		}
		return fcolor.RGBAF64{
			R: ch(cb.R, cs.R),
			G: ch(cb.G, cs.G),
			B: ch(cb.B, cs.B),
			A: as + ab*(1-as),
		}
	}
}

func unpremultiply(c fcolor.RGBAF64) fcolor.RGBAF64 {
	if c.A == 0 {
		return fcolor.RGBAF64{}
	}
	return fcolor.RGBAF64{R: c.R / c.A, G: c.G / c.A, B: c.B / c.A, A: c.A}
}

func (s *GG) withClip(fn func()) {
	if mask := s.clipMask(); mask != nil {
		_ = s.dc.SetMask(mask) // same size by construction
	}
	fn()
	s.dc.ResetClip()
}

func (s *GG) FillPolygon(polygon []geom.Point, c color.Color) {
	if len(polygon) < 3 {
		return
	}
	s.withClip(func() {
		tracePolygon(s.dc, s.state.xform.Apply(polygon))
		s.dc.SetColor(c)
		s.dc.Fill()
	})
}

func (s *GG) StrokePolygon(polygon []geom.Point, c color.Color, width float64) {
	if len(polygon) < 2 {
		return
	}
	s.withClip(func() {
		tracePolygon(s.dc, s.state.xform.Apply(polygon))
		s.dc.SetColor(c)
		s.dc.SetLineWidth(width)
		s.dc.Stroke()
	})
}
