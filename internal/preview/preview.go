// Package preview shows a collage session in an OpenGL window.
//
// The collage is rendered on the CPU into a canvas surface and uploaded as a
// texture; the window only pans and zooms over it.
package preview

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/anthonynsimon/bild/imgio"
	"github.com/go-gl/gl/v4.1-core/gl"
	"github.com/go-gl/glfw/v3.3/glfw"
	"go.uber.org/zap"

	"github.com/irfansharif/collage/internal/app"
	"github.com/irfansharif/collage/internal/canvas"
	"github.com/irfansharif/collage/internal/render"
)

// Options configure the preview window.
type Options struct {
	CanvasWidth, CanvasHeight int
	WindowWidth, WindowHeight int
	// SnapshotDir receives PNG snapshots (P key).
	SnapshotDir string
}

// Preview is an interactive window over an app session. It must be created
// and run on the main OS thread.
type Preview struct {
	app    *app.App
	opts   Options
	logger *zap.Logger

	window  *glfw.Window
	shaders *ShaderManager
	quad    *Quad
	view    *app.View
	surface *canvas.GG
	input   *input

	last       render.Result
	lastEntry  *app.Entry
	lastStatus string
}

// New creates the window and GL state.
func New(a *app.App, opts Options, logger *zap.Logger) (*Preview, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.WindowWidth <= 0 || opts.WindowHeight <= 0 {
		opts.WindowWidth, opts.WindowHeight = 1280, 960
	}

	if err := glfw.Init(); err != nil {
		return nil, fmt.Errorf("failed to initialize GLFW: %w", err)
	}

	// Configure GLFW window hints - use OpenGL 4.1.
	glfw.DefaultWindowHints()
	glfw.WindowHint(glfw.Resizable, glfw.True)
	glfw.WindowHint(glfw.OpenGLProfile, glfw.OpenGLCoreProfile)
	glfw.WindowHint(glfw.OpenGLForwardCompatible, glfw.True)
	glfw.WindowHint(glfw.ContextVersionMajor, 4)
	glfw.WindowHint(glfw.ContextVersionMinor, 1)

	window, err := glfw.CreateWindow(opts.WindowWidth, opts.WindowHeight, "Collage", nil, nil)
	if err != nil {
		glfw.Terminate()
		return nil, fmt.Errorf("failed to create window: %w", err)
	}
	window.MakeContextCurrent()

	if err := gl.Init(); err != nil {
		glfw.Terminate()
		return nil, fmt.Errorf("failed to initialize OpenGL: %w", err)
	}
	shaders, err := NewShaderManager()
	if err != nil {
		glfw.Terminate()
		return nil, err
	}

	cw, ch := window.GetFramebufferSize()
	p := &Preview{
		app:     a,
		opts:    opts,
		logger:  logger,
		window:  window,
		shaders: shaders,
		quad:    NewQuad(),
		view:    app.NewView(cw, ch),
		surface: canvas.NewGG(opts.CanvasWidth, opts.CanvasHeight),
	}
	p.input = newInput(p)
	p.input.setupCallbacks(window)
	return p, nil
}

// Run renders the first composition and loops until the window closes or ctx
// is done.
func (p *Preview) Run(ctx context.Context) error {
	defer p.close()

	p.regenerate(ctx)
	p.view.Fit(p.opts.CanvasWidth, p.opts.CanvasHeight)

	for !p.window.ShouldClose() {
		if ctx.Err() != nil {
			return nil
		}
		p.input.handleContinuousRegeneration(ctx)
		p.input.handleContinuousPanning()

		w, h := p.window.GetFramebufferSize()
		gl.Viewport(0, 0, int32(w), int32(h))
		gl.ClearColor(0.12, 0.12, 0.12, 1)
		gl.Clear(gl.COLOR_BUFFER_BIT)

		p.shaders.SetTransform(p.view.NDCMatrix())
		p.quad.Draw()
		p.window.SwapBuffers()
		glfw.PollEvents()
	}
	return nil
}

func (p *Preview) close() {
	p.quad.Delete()
	p.shaders.Delete()
	p.window.Destroy()
	glfw.Terminate()
}

// regenerate renders the current template with the next seed.
func (p *Preview) regenerate(ctx context.Context) {
	e, res, err := p.app.Regenerate(ctx, p.surface)
	p.show(e, res, err)
}

// step re-renders an earlier (or later) history entry.
func (p *Preview) step(ctx context.Context, next bool) {
	e, err := p.app.Step(ctx, p.surface, next)
	if e == nil && err == nil {
		return
	}
	var res render.Result
	if e != nil {
		res = render.Result{Outcome: e.Outcome, Seed: e.Seed}
	}
	p.show(e, res, err)
}

func (p *Preview) show(e *app.Entry, res render.Result, err error) {
	p.last, p.lastEntry = res, e
	if err != nil {
		p.logger.Warn("render failed",
			zap.String("template", p.app.CurrentTemplate()), zap.Stringer("outcome", res.Outcome), zap.Error(err))
	}
	if res.Outcome == render.Drawn || res.Outcome == render.Invalid {
		p.quad.Upload(p.surface.Image())
	}
	p.lastStatus = ""
	p.updateTitle()
}

func (p *Preview) rate(ctx context.Context, liked bool) {
	e := p.app.Current()
	if e == nil {
		return
	}
	var err error
	if liked {
		err = p.app.Like(ctx, e.ID)
	} else {
		err = p.app.Dislike(ctx, e.ID)
	}
	if err != nil {
		p.logger.Warn("feedback failed", zap.Error(err))
		p.lastStatus = "feedback failed"
	} else if liked {
		p.lastStatus = "liked"
	} else {
		p.lastStatus = "disliked"
	}
	p.updateTitle()
}

func (p *Preview) snapshot() {
	e := p.app.Current()
	if e == nil {
		return
	}
	dir := p.opts.SnapshotDir
	if dir == "" {
		dir = "."
	}
	path := filepath.Join(dir, fmt.Sprintf("%s-%d.png", e.Key, e.Seed))
	if err := imgio.Save(path, p.surface.Image(), imgio.PNGEncoder()); err != nil {
		p.logger.Warn("snapshot failed", zap.String("path", path), zap.Error(err))
		p.lastStatus = "snapshot failed"
	} else {
		p.logger.Info("snapshot saved", zap.String("path", path))
		p.lastStatus = "saved " + filepath.Base(path)
	}
	p.updateTitle()
}

func (p *Preview) updateTitle() {
	title := fmt.Sprintf("Collage: %s (seed %d, %s, %d units, %s)",
		p.app.CurrentTemplate(), p.last.Seed, p.last.Outcome,
		p.last.Stats.Drawn, p.last.Stats.Duration.Round(time.Millisecond))
	if p.lastStatus != "" {
		title += " " + p.lastStatus
	}
	p.window.SetTitle(title)
}
