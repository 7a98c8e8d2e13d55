package render

import (
	"context"
	"fmt"
	"image/color"
	"math"
	"sync"

	"go.uber.org/zap"

	"github.com/irfansharif/collage/internal/canvas"
	"github.com/irfansharif/collage/internal/config"
	"github.com/irfansharif/collage/internal/crystal"
	"github.com/irfansharif/collage/internal/geom"
	"github.com/irfansharif/collage/internal/images"
	"github.com/irfansharif/collage/internal/mosaic"
	"github.com/irfansharif/collage/internal/palette"
	"github.com/irfansharif/collage/internal/rng"
	"github.com/irfansharif/collage/internal/shapes"
	"github.com/irfansharif/collage/internal/template"
)

// Outcome classifies a render request.
type Outcome int

const (
	Drawn Outcome = iota
	// NothingToDraw: no images, or a zero-area canvas. The surface is left
	// untouched.
	NothingToDraw
	// Invalid: the template failed validation. The surface shows the
	// invalid hatch.
	Invalid
	// Skipped: another render held the surface.
	Skipped
	// Cancelled: the context was done before drawing began. The surface is
	// left untouched.
	Cancelled
)

func (o Outcome) String() string {
	switch o {
	case Drawn:
		return "drawn"
	case NothingToDraw:
		return "nothing-to-draw"
	case Invalid:
		return "invalid"
	case Skipped:
		return "skipped"
	case Cancelled:
		return "cancelled"
	}
	return fmt.Sprintf("outcome(%d)", int(o))
}

// Result describes a render.
type Result struct {
	Outcome Outcome
	Stats   Stats
	Seed    int64
	// Params snapshots the randomized values, for feedback.
	Params template.Params
	// Instance is the randomized template drawn, for placement templates.
	Instance template.Template
}

// FieldSettings sizes crystal fields. Sizes are fractions of the short canvas
// side.
type FieldSettings struct {
	Count            int
	MinSize, MaxSize float64
	Overlap          bool
}

// Settings are the engine-wide defaults a template does not override.
type Settings struct {
	Background string // empty: a random soft colour per render
	Mosaic     mosaic.Ranges
	Crystal    crystal.Options
	Field      FieldSettings
	Draw       DrawOptions
}

// SettingsFromConfig maps configuration onto engine settings.
func SettingsFromConfig(cfg *config.Config) (Settings, error) {
	s := Settings{
		Background: cfg.Canvas.Background,
		Mosaic: mosaic.Ranges{
			MinGridSize:         cfg.Mosaic.MinGridSize,
			MaxGridSize:         cfg.Mosaic.MaxGridSize,
			MinReveal:           cfg.Mosaic.MinReveal,
			MaxReveal:           cfg.Mosaic.MaxReveal,
			TransformPercentage: cfg.Mosaic.TransformPercent,
			Shapes:              mosaic.DefaultRanges().Shapes,
		},
		Crystal: crystal.Options{
			MaxFacets:     cfg.Crystal.MaxFacets,
			Complexity:    cfg.Crystal.Complexity,
			MinResolution: cfg.Crystal.MinResolution,
			MaxResolution: cfg.Crystal.MaxResolution,
			MaxRotation:   cfg.Crystal.MaxRotation,
			BlendWeights:  make(map[canvas.BlendMode]float64),
		},
		Field: FieldSettings{
			Count:   cfg.Crystal.FieldCount,
			MinSize: cfg.Crystal.FieldMinSize,
			MaxSize: cfg.Crystal.FieldMaxSize,
			Overlap: cfg.Crystal.FieldOverlap,
		},
		Draw: DrawOptions{
			Stroke:      cfg.Render.StrokeOutlines,
			StrokeWidth: cfg.Render.StrokeWidth,
		},
	}
	if cfg.Mosaic.Shape != "" {
		ref, err := shapes.ParseRef(cfg.Mosaic.Shape)
		if err != nil {
			return Settings{}, fmt.Errorf("mosaic shape: %w", err)
		}
		s.Mosaic.Shapes = []shapes.Ref{ref}
	}
	for name, w := range cfg.Render.BlendWeights {
		mode, err := canvas.ParseBlendMode(name)
		if err != nil {
			return Settings{}, fmt.Errorf("blend weights: %w", err)
		}
		s.Crystal.BlendWeights[mode] = w
	}
	return s, nil
}

// DefaultSettings are the settings of the default configuration.
func DefaultSettings() Settings {
	s, err := SettingsFromConfig(config.DefaultConfig())
	if err != nil {
		panic(err)
	}
	return s
}

// Engine renders templates and procedural compositions onto surfaces.
type Engine struct {
	shapes     *shapes.Registry
	settings   Settings
	logger     *zap.Logger
	compositor Compositor
	guards     sync.Map // canvas.Surface -> *Guard
}

// NewEngine returns an engine resolving shapes through reg.
func NewEngine(reg *shapes.Registry, settings Settings, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		shapes:     reg,
		settings:   settings,
		logger:     logger,
		compositor: Compositor{Logger: logger},
	}
}

func (e *Engine) guard(s canvas.Surface) *Guard {
	g, _ := e.guards.LoadOrStore(s, &Guard{})
	return g.(*Guard)
}

// Busy reports whether a render is in flight on s.
func (e *Engine) Busy(s canvas.Surface) bool { return e.guard(s).Busy() }

// generated is what a generator hands the compositor.
type generated struct {
	units  []Unit
	params template.Params
	inst   template.Template
}

// render runs the shared request path: guard, readiness, background, draw.
// gen returns false when it has nothing to draw.
func (e *Engine) render(
	ctx context.Context, s canvas.Surface, pool *images.Pool, r *rng.RNG, bg string,
	gen func(w, h, numImages int) (generated, bool),
) (Result, error) {
	release, err := e.guard(s).TryAcquire()
	if err != nil {
		return Result{Outcome: Skipped, Seed: r.Seed()}, err
	}
	defer release()

	res := Result{Seed: r.Seed()}
	if !pool.Ready() || s.Width() <= 0 || s.Height() <= 0 {
		res.Outcome = NothingToDraw
		return res, ErrNothingToDraw
	}

	bgColour, err := e.background(bg, r)
	if err != nil {
		res.Outcome = Invalid
		return res, fmt.Errorf("%w: background: %w", ErrInvalidTemplate, err)
	}
	out, ok := gen(s.Width(), s.Height(), pool.Len())
	if !ok {
		res.Outcome = NothingToDraw
		return res, ErrNothingToDraw
	}
	res.Params = out.params
	res.Instance = out.inst
	if err := ctx.Err(); err != nil {
		res.Outcome = Cancelled
		return res, err
	}

	s.Clear(bgColour)
	stats, err := e.compositor.Draw(ctx, s, out.units, pool.Images(), e.settings.Draw)
	res.Stats = stats
	if err != nil {
		res.Outcome = Cancelled
		return res, err
	}
	res.Outcome = Drawn
	e.logger.Debug("rendered",
		zap.Int64("seed", res.Seed),
		zap.Int("units", stats.Units),
		zap.Int("drawn", stats.Drawn),
		zap.Duration("took", stats.Duration))
	return res, nil
}

func (e *Engine) background(tmpl string, r *rng.RNG) (color.RGBA, error) {
	switch {
	case tmpl != "":
		return palette.ParseHex(tmpl)
	case e.settings.Background != "":
		return palette.ParseHex(e.settings.Background)
	default:
		return palette.Background(r), nil
	}
}

// RenderTemplate validates, randomizes and draws pt. Procedural templates
// are dispatched to their generator.
func (e *Engine) RenderTemplate(ctx context.Context, s canvas.Surface, pool *images.Pool, pt template.ParameterizedTemplate, r *rng.RNG) (Result, error) {
	if res := template.Validate(pt.Template, e.shapes); !res.Valid {
		release, err := e.guard(s).TryAcquire()
		if err != nil {
			return Result{Outcome: Skipped, Seed: r.Seed()}, err
		}
		defer release()
		e.logger.Warn("refusing invalid template",
			zap.String("template", pt.Key), zap.Error(res.Err(pt.Key)))
		PaintInvalid(s)
		return Result{Outcome: Invalid, Seed: r.Seed()}, fmt.Errorf("%w: %w", ErrInvalidTemplate, res.Err(pt.Key))
	}

	switch pt.Generator {
	case template.Mosaic:
		opts, err := mosaicOptions(pt.Procedural)
		if err != nil {
			return Result{Outcome: Invalid, Seed: r.Seed()}, fmt.Errorf("%w: %w", ErrInvalidTemplate, err)
		}
		return e.renderMosaic(ctx, s, pool, opts, pt.Background, r)
	case template.Crystal:
		return e.renderCrystal(ctx, s, pool, pt.Procedural, pt.Background, r)
	case template.CrystalField:
		return e.renderField(ctx, s, pool, pt.Procedural, pt.Background, r)
	}

	return e.render(ctx, s, pool, r, pt.Background, func(w, h, n int) (generated, bool) {
		inst := template.Randomize(pt, r)
		units, err := PlacementUnits(inst, e.shapes, w, h, n, r)
		if err != nil {
			// Validation resolved every shape; this is a registry race.
			e.logger.Error("resolving placements", zap.Error(err))
			return generated{}, false
		}
		return generated{units: units, params: template.Snapshot(inst), inst: inst}, true
	})
}

// RenderMosaic draws a grid mosaic. Unset options are randomized.
func (e *Engine) RenderMosaic(ctx context.Context, s canvas.Surface, pool *images.Pool, opts mosaic.Options, r *rng.RNG) (Result, error) {
	return e.renderMosaic(ctx, s, pool, opts, "", r)
}

func (e *Engine) renderMosaic(ctx context.Context, s canvas.Surface, pool *images.Pool, opts mosaic.Options, bg string, r *rng.RNG) (Result, error) {
	return e.render(ctx, s, pool, r, bg, func(w, h, n int) (generated, bool) {
		m, ok := mosaic.Generate(r, opts, e.settings.Mosaic, e.shapes, w, h, n, e.logger)
		if !ok {
			return generated{}, false
		}
		units := make([]Unit, len(m.Cells))
		for i, c := range m.Cells {
			units[i] = c
		}
		return generated{units: units, params: template.Params{Extra: map[string]float64{
			"gridSize":         float64(m.GridSize),
			"revealPercentage": m.RevealPercentage,
			"cells":            float64(len(m.Cells)),
		}}}, true
	})
}

func mosaicOptions(p *template.Procedural) (mosaic.Options, error) {
	var opts mosaic.Options
	if p == nil {
		return opts, nil
	}
	pattern, err := mosaic.ParsePattern(p.Pattern)
	if err != nil {
		return opts, err
	}
	op, err := mosaic.ParseOperation(p.Operation)
	if err != nil {
		return opts, err
	}
	shape, err := p.ShapeRef()
	if err != nil {
		return opts, err
	}
	return mosaic.Options{
		GridSize:         p.GridSize,
		Pattern:          pattern,
		RevealPercentage: p.RevealPercentage,
		Operation:        op,
		Shape:            shape,
	}, nil
}

// crystalOptions merges template settings over the engine defaults.
func (e *Engine) crystalOptions(p *template.Procedural) (crystal.Options, error) {
	opts := e.settings.Crystal
	defaults := DefaultSettings().Crystal
	if opts.MaxFacets <= 0 {
		opts.MaxFacets = defaults.MaxFacets
	}
	if opts.Complexity <= 0 {
		opts.Complexity = defaults.Complexity
	}
	if p == nil {
		return opts, nil
	}
	if p.MaxFacets > 0 {
		opts.MaxFacets = p.MaxFacets
	}
	if p.Complexity > 0 {
		opts.Complexity = p.Complexity
	}
	if p.Resolution > 0 {
		opts.Resolution = p.Resolution
	}
	var err error
	if opts.Pattern, err = crystal.ParsePattern(p.Pattern); err != nil {
		return opts, err
	}
	if opts.ImageMode, err = crystal.ParseImageMode(p.ImageMode); err != nil {
		return opts, err
	}
	return opts, nil
}

// RenderCrystal draws one crystal. With an outline set the crystal is
// isolated inside it, centred on the canvas.
func (e *Engine) RenderCrystal(ctx context.Context, s canvas.Surface, pool *images.Pool, p *template.Procedural, r *rng.RNG) (Result, error) {
	return e.renderCrystal(ctx, s, pool, p, "", r)
}

func (e *Engine) renderCrystal(ctx context.Context, s canvas.Surface, pool *images.Pool, p *template.Procedural, bg string, r *rng.RNG) (Result, error) {
	opts, err := e.crystalOptions(p)
	if err != nil {
		return Result{Outcome: Invalid, Seed: r.Seed()}, fmt.Errorf("%w: %w", ErrInvalidTemplate, err)
	}
	var outline shapes.Shape
	if p != nil && p.Outline != "" {
		ref, err := p.OutlineRef()
		if err != nil {
			return Result{Outcome: Invalid, Seed: r.Seed()}, fmt.Errorf("%w: %w", ErrInvalidTemplate, err)
		}
		var ok bool
		if outline, ok = e.shapes.Lookup(ref); !ok {
			return Result{Outcome: Invalid, Seed: r.Seed()}, fmt.Errorf("%w: unresolved outline %s", ErrInvalidTemplate, ref)
		}
	}

	return e.render(ctx, s, pool, r, bg, func(w, h, n int) (generated, bool) {
		co := opts
		if outline != nil {
			side := 0.8 * math.Min(float64(w), float64(h))
			box := geom.MakeBox((float64(w)-side)/2, (float64(h)-side)/2, side, side)
			co.Outline = shapes.Place(outline, box, r.Between(0, 360))
		}
		c, ok := crystal.Generate(r, co, w, h, n, e.logger)
		if !ok {
			return generated{}, false
		}
		return generated{units: fragmentUnits(c.Fragments), params: template.Params{Extra: map[string]float64{
			"target":     float64(c.Target),
			"facets":     float64(len(c.Fragments)),
			"resolution": float64(c.Resolution),
		}}}, true
	})
}

// RenderField draws a field of isolated crystals.
func (e *Engine) RenderField(ctx context.Context, s canvas.Surface, pool *images.Pool, p *template.Procedural, r *rng.RNG) (Result, error) {
	return e.renderField(ctx, s, pool, p, "", r)
}

func (e *Engine) renderField(ctx context.Context, s canvas.Surface, pool *images.Pool, p *template.Procedural, bg string, r *rng.RNG) (Result, error) {
	opts, err := e.crystalOptions(p)
	if err != nil {
		return Result{Outcome: Invalid, Seed: r.Seed()}, fmt.Errorf("%w: %w", ErrInvalidTemplate, err)
	}
	fs := e.settings.Field
	if fs.Count <= 0 || fs.MaxSize <= 0 {
		fs = DefaultSettings().Field
	}
	if p != nil {
		if p.Count > 0 {
			fs.Count = p.Count
		}
		fs.Overlap = fs.Overlap || p.Overlap
	}

	return e.render(ctx, s, pool, r, bg, func(w, h, n int) (generated, bool) {
		short := math.Min(float64(w), float64(h))
		f, ok := crystal.GenerateField(r, crystal.FieldOptions{
			Count:    fs.Count,
			MinSize:  fs.MinSize * short,
			MaxSize:  fs.MaxSize * short,
			Overlap:  fs.Overlap,
			Outlines: crystal.CrystalOutlines(e.shapes),
			Crystal:  opts,
		}, w, h, n, e.logger)
		if !ok {
			return generated{}, false
		}
		return generated{units: fragmentUnits(f.Fragments), params: template.Params{Extra: map[string]float64{
			"crystals": float64(len(f.Crystals)),
			"facets":   float64(len(f.Fragments)),
			"attempts": float64(f.Attempts),
		}}}, true
	})
}

func fragmentUnits(frags []crystal.Fragment) []Unit {
	units := make([]Unit, len(frags))
	for i, f := range frags {
		units[i] = f
	}
	return units
}

// PlacementUnits resolves the placements of a randomized template into units.
// Placement coordinates are the centre of the placement box as canvas
// fractions. Images are dealt from a shuffled deck so placements repeat an
// image only once every image has been used.
func PlacementUnits(t template.Template, resolver shapes.Resolver, canvasW, canvasH, numImages int, r *rng.RNG) ([]Unit, error) {
	if numImages <= 0 {
		return nil, nil
	}
	deck := make([]int, numImages)
	for i := range deck {
		deck[i] = i
	}
	deck = rng.Shuffle(r, deck)

	cw, ch := float64(canvasW), float64(canvasH)
	units := make([]Unit, 0, len(t.Placements))
	for i, p := range t.Placements {
		s, ok := resolver.Lookup(p.MaskName)
		if !ok {
			return nil, fmt.Errorf("placement %d: unresolved shape %s", i, p.MaskName)
		}
		box := geom.MakeBox((p.X-p.Width/2)*cw, (p.Y-p.Height/2)*ch, p.Width*cw, p.Height*ch)

		blend := canvas.SourceOver
		switch {
		case p.BlendMode != "":
			mode, err := canvas.ParseBlendMode(p.BlendMode)
			if err != nil {
				return nil, fmt.Errorf("placement %d: %w", i, err)
			}
			blend = mode
		case len(t.BlendModes) > 0:
			mode, err := canvas.ParseBlendMode(rng.Choice(r, t.BlendModes))
			if err != nil {
				return nil, err
			}
			blend = mode
		}

		units = append(units, Placement{
			Index:   i,
			Outline: shapes.Place(s, box, p.Rotation),
			Box:     box,
			Angle:   p.Rotation,
			Image:   deck[i%len(deck)],
			Blend:   blend,
		})
	}
	return units, nil
}

var (
	invalidBackground = color.RGBA{R: 0x2b, G: 0x2b, B: 0x2b, A: 0xff}
	invalidStripe     = color.RGBA{R: 0xd0, G: 0x30, B: 0x30, A: 0xff}
)

// hatchSpacing is the distance between invalid-state stripes, px.
const hatchSpacing = 24

// PaintInvalid fills s with the diagonal hatch shown for refused templates.
func PaintInvalid(s canvas.Surface) {
	w, h := float64(s.Width()), float64(s.Height())
	s.Save()
	defer s.Restore()
	s.SetBlendMode(canvas.SourceOver)
	s.SetAlpha(1)
	s.Clear(invalidBackground)
	for x := -h; x < w; x += hatchSpacing {
		s.FillPolygon([]geom.Point{
			{X: x, Y: 0}, {X: x + hatchSpacing/3, Y: 0},
			{X: x + hatchSpacing/3 + h, Y: h}, {X: x + h, Y: h},
		}, invalidStripe)
	}
}
