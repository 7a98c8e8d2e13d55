package render

import (
	"context"
	"errors"
	"image"
	"math"
	"sort"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/irfansharif/collage/internal/canvas"
	"github.com/irfansharif/collage/internal/geom"
	"github.com/irfansharif/collage/internal/palette"
)

// Sentinel errors returned by the engine. Each maps to an Outcome.
var (
	ErrNothingToDraw   = errors.New("nothing to draw")
	ErrInvalidTemplate = errors.New("invalid template")
	ErrBusy            = errors.New("render already in progress")
)

// Stats describes one Draw call.
type Stats struct {
	Units    int
	Drawn    int
	Skipped  int // units with no usable image or a degenerate clip
	Duration time.Duration
}

// DrawOptions controls the compositor.
type DrawOptions struct {
	// Stroke outlines every unit with a colour that contrasts with the
	// pixel under its centroid.
	Stroke      bool
	StrokeWidth float64
}

// Compositor draws units onto a surface.
type Compositor struct {
	Logger *zap.Logger
}

// Draw composites units onto s back to front. Units whose image index is out
// of range, whose image is missing or whose clip path is degenerate are
// skipped. A done ctx refuses the draw up front; once started, a draw runs to
// completion.
func (c *Compositor) Draw(ctx context.Context, s canvas.Surface, units []Unit, imgs []image.Image, opts DrawOptions) (Stats, error) {
	start := time.Now()
	stats := Stats{Units: len(units)}
	if err := ctx.Err(); err != nil {
		return stats, err
	}

	sorted := append([]Unit(nil), units...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Order() < sorted[j].Order() })

	for _, u := range sorted {
		if !c.drawUnit(s, u, imgs, opts) {
			stats.Skipped++
			continue
		}
		stats.Drawn++
	}
	stats.Duration = time.Since(start)
	return stats, nil
}

func (c *Compositor) drawUnit(s canvas.Surface, u Unit, imgs []image.Image, opts DrawOptions) bool {
	idx := u.ImageIndex()
	if idx < 0 || idx >= len(imgs) || imgs[idx] == nil {
		c.logger().Debug("skipping unit without image", zap.Int("image", idx))
		return false
	}
	clip := u.ClipPath()
	if len(clip) < 3 {
		return false
	}
	img := imgs[idx]
	b := img.Bounds()
	src := u.SourceRect(b.Dx(), b.Dy())
	dst := u.DestRect()
	if src.Empty() || dst.Empty() {
		return false
	}
	// SourceRect is relative to the image origin.
	src = geom.MakeBox(src.X+float64(b.Min.X), src.Y+float64(b.Min.Y), src.W, src.H)

	s.Save()
	s.ClipPolygon(clip)
	if rot := u.Rotation(); rot != 0 {
		p := u.Pivot()
		s.Translate(p.X, p.Y)
		s.Rotate(rot * math.Pi / 180)
		s.Translate(-p.X, -p.Y)
	}
	s.SetBlendMode(u.BlendMode())
	s.SetAlpha(u.Opacity())
	s.DrawImage(img, src, dst)
	s.Restore()

	if opts.Stroke {
		width := opts.StrokeWidth
		if width <= 0 {
			width = 1
		}
		s.Save()
		s.StrokePolygon(clip, palette.Probe(s, geom.Centroid(clip)), width)
		s.Restore()
	}
	return true
}

func (c *Compositor) logger() *zap.Logger {
	if c.Logger == nil {
		return zap.NewNop()
	}
	return c.Logger
}

// Guard admits at most one render at a time. A second request while one is
// in flight is refused rather than queued.
type Guard struct {
	busy atomic.Bool
}

// TryAcquire claims the guard, returning ErrBusy when it is held. The
// returned release function must be called exactly once.
func (g *Guard) TryAcquire() (release func(), err error) {
	if !g.busy.CompareAndSwap(false, true) {
		return nil, ErrBusy
	}
	return func() { g.busy.Store(false) }, nil
}

// Busy reports whether a render holds the guard.
func (g *Guard) Busy() bool { return g.busy.Load() }
