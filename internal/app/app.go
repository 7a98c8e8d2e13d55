// Package app holds an interactive collage session: the loaded shapes,
// templates, images and feedback, the render history and the current
// template.
package app

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/irfansharif/collage/internal/canvas"
	"github.com/irfansharif/collage/internal/config"
	"github.com/irfansharif/collage/internal/feedback"
	"github.com/irfansharif/collage/internal/images"
	"github.com/irfansharif/collage/internal/render"
	"github.com/irfansharif/collage/internal/rng"
	"github.com/irfansharif/collage/internal/shapes"
	"github.com/irfansharif/collage/internal/template"
)

const maxGenerationAttempts = 10 // maximum number of seeds tried for a composition that draws something

// ErrUnknownTemplate is returned for a template key the registry lacks.
var ErrUnknownTemplate = errors.New("unknown template")

// ErrNotRendered is returned when rating a seed no session has rendered.
var ErrNotRendered = errors.New("composition never rendered")

// Deps are the collaborators of a session.
type Deps struct {
	Shapes    *shapes.Registry
	Templates *template.Registry
	Images    *images.Pool
	Store     feedback.Store
	Settings  render.Settings
	Logger    *zap.Logger
	Seed      int64
}

// App encapsulates the session state and logic.
type App struct {
	Shapes    *shapes.Registry
	Templates *template.Registry
	Engine    *render.Engine
	Learner   *feedback.Learner

	logger *zap.Logger

	mu         sync.Mutex
	images     *images.Pool
	history    *History
	currentKey string

	watcher *template.Watcher
	closers []func() error
}

// New creates a session from already loaded collaborators. The first
// template (by key) is current.
func New(d Deps) *App {
	if d.Logger == nil {
		d.Logger = zap.NewNop()
	}
	if d.Store == nil {
		d.Store = feedback.NewMemoryStore()
	}
	if d.Templates == nil {
		d.Templates = template.NewRegistry(d.Logger)
	}
	a := &App{
		Shapes:    d.Shapes,
		Templates: d.Templates,
		Engine:    render.NewEngine(d.Shapes, d.Settings, d.Logger),
		Learner:   &feedback.Learner{Store: d.Store, Logger: d.Logger},
		logger:    d.Logger,
		images:    d.Images,
		history:   NewHistory(d.Seed),
	}
	if keys := d.Templates.Keys(); len(keys) > 0 {
		a.currentKey = keys[0]
	}
	return a
}

// Open loads everything cfg points at: shapes, built-in and on-disk
// templates, the image directory and the feedback store. Templates with
// recorded feedback start out learned.
func Open(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*App, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	shapeReg := shapes.Default()
	if cfg.Paths.Shapes != "" {
		if err := shapeReg.LoadFile(cfg.Paths.Shapes); err != nil {
			return nil, err
		}
	}

	templates := template.NewRegistry(logger)
	for _, t := range template.Builtin() {
		templates.Put(t)
	}
	if _, err := templates.LoadDir(cfg.Paths.Templates); err != nil {
		return nil, err
	}

	pool, err := loadImages(ctx, cfg.Paths.Images, logger)
	if err != nil {
		return nil, err
	}

	settings, err := render.SettingsFromConfig(cfg)
	if err != nil {
		return nil, err
	}

	store, closeStore, err := feedback.Open(ctx, cfg.Paths.FeedbackDB)
	if err != nil {
		return nil, err
	}

	seed := cfg.Seed
	if seed == 0 {
		seed = rng.ClockSeed()
	}
	a := New(Deps{
		Shapes:    shapeReg,
		Templates: templates,
		Images:    pool,
		Store:     store,
		Settings:  settings,
		Logger:    logger,
		Seed:      seed,
	})
	a.closers = append(a.closers, closeStore)
	a.relearn(ctx, templates.Keys())

	logger.Info("session opened",
		zap.Int("shapes", shapeReg.Len()),
		zap.Int("templates", templates.Len()),
		zap.Int("images", pool.Len()),
		zap.Int64("seed", seed))
	return a, nil
}

// loadImages tolerates a missing directory: the session then renders nothing
// until images are reloaded.
func loadImages(ctx context.Context, dir string, logger *zap.Logger) (*images.Pool, error) {
	pool, err := images.LoadDir(ctx, dir, logger)
	if errors.Is(err, fs.ErrNotExist) {
		logger.Warn("image directory missing", zap.String("dir", dir))
		return &images.Pool{}, nil
	}
	return pool, err
}

// Close stops the template watcher and closes the feedback store.
func (a *App) Close() error {
	if a.watcher != nil {
		a.watcher.Stop()
	}
	var errs []error
	for _, c := range a.closers {
		errs = append(errs, c())
	}
	return errors.Join(errs...)
}

// Watch reloads templates from dir as files change, relearning the
// templates each reload touches.
func (a *App) Watch(ctx context.Context, dir string) error {
	w, err := template.NewWatcher(dir, a.Templates, a.logger, func(path string, keys []string) {
		a.relearn(ctx, keys)
	})
	if err != nil {
		return err
	}
	if err := w.Start(ctx); err != nil {
		return err
	}
	a.watcher = w
	return nil
}

func (a *App) relearn(ctx context.Context, keys []string) {
	for _, key := range keys {
		if _, err := a.Learner.Apply(ctx, a.Templates, key); err != nil {
			a.logger.Warn("failed to learn template", zap.String("key", key), zap.Error(err))
		}
	}
}

// Images returns the image pool.
func (a *App) Images() *images.Pool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.images
}

// SetImages swaps the image pool, for example after the directory changed.
func (a *App) SetImages(p *images.Pool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.images = p
}

// History returns the session's render history.
func (a *App) History() []*Entry {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.history.Entries()
}

// Current returns the current history entry, or nil.
func (a *App) Current() *Entry {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.history.Current()
}

// CurrentTemplate returns the key Regenerate renders.
func (a *App) CurrentTemplate() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.currentKey
}

// SetTemplate makes key current.
func (a *App) SetTemplate(key string) error {
	if _, ok := a.Templates.Get(key); !ok {
		return fmt.Errorf("%w: %q", ErrUnknownTemplate, key)
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.currentKey = key
	return nil
}

// CycleTemplate makes the next (or previous) template by key current,
// wrapping around, and returns it.
func (a *App) CycleTemplate(next bool) string {
	keys := a.Templates.Keys()
	a.mu.Lock()
	defer a.mu.Unlock()
	if len(keys) == 0 {
		a.currentKey = ""
		return ""
	}
	pos := -1
	for i, k := range keys {
		if k == a.currentKey {
			pos = i
			break
		}
	}
	direction := 1
	if !next {
		direction = -1
	}
	if pos == -1 && !next {
		pos = 0
	}
	a.currentKey = keys[(pos+direction+len(keys))%len(keys)]
	return a.currentKey
}

// Generate renders template key with seed onto s and records the result.
// Compositions that draw no unit are retried with the following seeds.
// Unknown keys are not recorded.
func (a *App) Generate(ctx context.Context, key string, seed int64, s canvas.Surface) (*Entry, render.Result, error) {
	res, err := a.renderKey(ctx, key, seed, s)
	if errors.Is(err, ErrUnknownTemplate) {
		return nil, res, err
	}
	if res.Outcome != render.Drawn && res.Outcome != render.Invalid {
		return nil, res, err
	}
	a.saveSnapshot(ctx, key, res)
	a.mu.Lock()
	defer a.mu.Unlock()
	e := a.history.Add(key, res.Seed, res)
	return e, res, err
}

// saveSnapshot remembers what a drawn composition rendered with so feedback
// given later, possibly from another session, records the same values.
func (a *App) saveSnapshot(ctx context.Context, key string, res render.Result) {
	if res.Outcome != render.Drawn {
		return
	}
	snap := feedback.Snapshot{TemplateKey: key, Seed: res.Seed, Params: res.Params, Timestamp: time.Now().UTC()}
	if err := a.Learner.Store.SaveSnapshot(ctx, snap); err != nil {
		a.logger.Warn("failed to save render snapshot",
			zap.String("key", key), zap.Int64("seed", res.Seed), zap.Error(err))
	}
}

func (a *App) renderKey(ctx context.Context, key string, seed int64, s canvas.Surface) (render.Result, error) {
	pt, ok := a.Templates.Parameterized(key)
	if !ok {
		return render.Result{Outcome: render.Invalid, Seed: seed}, fmt.Errorf("%w: %q", ErrUnknownTemplate, key)
	}
	pool := a.Images()

	var res render.Result
	var err error
	for attempt := 0; attempt < maxGenerationAttempts; attempt++ {
		res, err = a.Engine.RenderTemplate(ctx, s, pool, pt, rng.New(seed+int64(attempt)))
		if err != nil || res.Stats.Drawn > 0 {
			return res, err
		}
		a.logger.Debug("composition drew nothing, retrying",
			zap.String("key", key), zap.Int64("seed", res.Seed))
	}
	a.logger.Warn("no composition drew anything",
		zap.String("key", key), zap.Int("attempts", maxGenerationAttempts))
	return res, err
}

// Regenerate renders the current template with the next session seed.
func (a *App) Regenerate(ctx context.Context, s canvas.Surface) (*Entry, render.Result, error) {
	a.mu.Lock()
	key := a.currentKey
	seed := a.history.IncrementSeed()
	a.mu.Unlock()
	return a.Generate(ctx, key, seed, s)
}

// Step moves through the history (forward when next) and re-renders the
// entry landed on. It returns nil when the history is empty.
func (a *App) Step(ctx context.Context, s canvas.Surface, next bool) (*Entry, error) {
	a.mu.Lock()
	e := a.history.Iter(next)
	if e != nil {
		a.currentKey = e.Key
	}
	a.mu.Unlock()
	if e == nil {
		return nil, nil
	}
	res, err := a.renderKey(ctx, e.Key, e.Seed, s)
	if err != nil && res.Outcome != render.Invalid {
		return e, err
	}
	if res.Outcome == render.Drawn && res.Seed == e.Seed {
		// Learning since the first render may have moved the values.
		a.saveSnapshot(ctx, e.Key, res)
		a.mu.Lock()
		e.Params = res.Params
		a.mu.Unlock()
	}
	return e, nil
}

// Previous re-renders the entry before the current one.
func (a *App) Previous(ctx context.Context, s canvas.Surface) (*Entry, error) {
	return a.Step(ctx, s, false)
}

// Like records positive feedback for entry id and relearns its template.
func (a *App) Like(ctx context.Context, id EntryID) error { return a.rate(ctx, id, true) }

// Dislike records negative feedback for entry id.
func (a *App) Dislike(ctx context.Context, id EntryID) error { return a.rate(ctx, id, false) }

func (a *App) rate(ctx context.Context, id EntryID, liked bool) error {
	a.mu.Lock()
	e, ok := a.history.Get(id)
	if !ok {
		a.mu.Unlock()
		return fmt.Errorf("no history entry %d", id)
	}
	if e.Outcome != render.Drawn {
		a.mu.Unlock()
		return fmt.Errorf("entry %d was not drawn (%s)", id, e.Outcome)
	}
	e.Liked = &liked
	rec := feedback.NewRecord(e.Key, e.Seed, e.Params, liked)
	a.mu.Unlock()
	return a.record(ctx, rec)
}

// RateSeed records feedback for the composition key last rendered at seed,
// in this session or an earlier one sharing the store. Seeds never rendered
// are an error: their parameters would be re-derived from ranges learned
// since, not the ones shown.
func (a *App) RateSeed(ctx context.Context, key string, seed int64, liked bool) error {
	if _, ok := a.Templates.Get(key); !ok {
		return fmt.Errorf("%w: %q", ErrUnknownTemplate, key)
	}
	snap, ok, err := a.Learner.Store.Snapshot(ctx, key, seed)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: %s seed %d", ErrNotRendered, key, seed)
	}
	return a.record(ctx, feedback.NewRecord(key, seed, snap.Params, liked))
}

func (a *App) record(ctx context.Context, rec feedback.Record) error {
	if err := a.Learner.Store.Append(ctx, rec); err != nil {
		return fmt.Errorf("recording feedback: %w", err)
	}
	a.logger.Info("feedback recorded",
		zap.String("key", rec.TemplateKey),
		zap.Int64("seed", rec.Seed),
		zap.Bool("liked", rec.Liked))
	_, err := a.Learner.Apply(ctx, a.Templates, rec.TemplateKey)
	return err
}
