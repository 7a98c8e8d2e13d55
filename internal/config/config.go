// Package config holds the collage engine configuration, loaded from YAML with
// environment overrides.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the collage engine.
type Config struct {
	Canvas  CanvasConfig  `yaml:"canvas"`
	Mosaic  MosaicConfig  `yaml:"mosaic"`
	Crystal CrystalConfig `yaml:"crystal"`
	Render  RenderConfig  `yaml:"render"`
	Paths   PathsConfig   `yaml:"paths"`
	Logging LoggingConfig `yaml:"logging"`

	// Seed fixes the randomization seed; zero means wall-clock entropy.
	Seed int64 `yaml:"seed"`
}

// CanvasConfig sizes the output surface.
type CanvasConfig struct {
	Width      int    `yaml:"width"`
	Height     int    `yaml:"height"`
	Background string `yaml:"background"` // "#rrggbb"; empty picks a random soft colour
}

// MosaicConfig bounds the values sampled when a mosaic option is unset.
type MosaicConfig struct {
	MinGridSize      int     `yaml:"min_grid_size"`
	MaxGridSize      int     `yaml:"max_grid_size"`
	MinReveal        float64 `yaml:"min_reveal"` // percent
	MaxReveal        float64 `yaml:"max_reveal"`
	TransformPercent float64 `yaml:"transform_percent"`
	Shape            string  `yaml:"shape"` // default cell shape; empty randomizes
}

// CrystalConfig parameterizes the facet generator.
type CrystalConfig struct {
	MaxFacets     int     `yaml:"max_facets"`
	Complexity    float64 `yaml:"complexity"` // (0, 1]
	MinResolution int     `yaml:"min_resolution"`
	MaxResolution int     `yaml:"max_resolution"`
	MaxRotation   float64 `yaml:"max_rotation"` // degrees, outermost facets
	FieldCount    int     `yaml:"field_count"`
	FieldMinSize  float64 `yaml:"field_min_size"` // fraction of the short canvas side
	FieldMaxSize  float64 `yaml:"field_max_size"`
	FieldOverlap  bool    `yaml:"field_overlap"`
}

// RenderConfig controls compositing.
type RenderConfig struct {
	StrokeOutlines bool               `yaml:"stroke_outlines"`
	StrokeWidth    float64            `yaml:"stroke_width"`
	BlendWeights   map[string]float64 `yaml:"blend_weights"` // blend mode -> relative weight
}

// PathsConfig locates on-disk collaborators.
type PathsConfig struct {
	Templates  string `yaml:"templates"`
	Images     string `yaml:"images"`
	Shapes     string `yaml:"shapes"` // optional extra shape file
	FeedbackDB string `yaml:"feedback_db"`
}

// LoggingConfig configures the zap logger.
type LoggingConfig struct {
	Level       string `yaml:"level"` // debug, info, warn, error
	Development bool   `yaml:"development"`
	File        string `yaml:"file"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Canvas: CanvasConfig{
			Width:  1200,
			Height: 1200,
		},
		Mosaic: MosaicConfig{
			MinGridSize:      4,
			MaxGridSize:      12,
			MinReveal:        40,
			MaxReveal:        85,
			TransformPercent: 35,
		},
		Crystal: CrystalConfig{
			MaxFacets:     25,
			Complexity:    0.8,
			MinResolution: 30,
			MaxResolution: 100,
			MaxRotation:   25,
			FieldCount:    4,
			FieldMinSize:  0.25,
			FieldMaxSize:  0.45,
		},
		Render: RenderConfig{
			StrokeWidth: 2,
			BlendWeights: map[string]float64{
				"source-over": 6,
				"multiply":    2,
				"hard-light":  1,
			},
		},
		Paths: PathsConfig{
			Templates:  "templates",
			Images:     "images",
			FeedbackDB: filepath.Join(".collage", "feedback.db"),
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Load loads configuration from a YAML file, falling back to defaults when
// the file doesn't exist.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg.applyEnvOverrides()
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.applyEnvOverrides()
	return cfg, nil
}

// Save saves configuration to a YAML file.
func (c *Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

func (c *Config) applyEnvOverrides() {
	if s := os.Getenv("COLLAGE_SEED"); s != "" {
		if seed, err := strconv.ParseInt(s, 10, 64); err == nil {
			c.Seed = seed
		}
	}
	if dir := os.Getenv("COLLAGE_TEMPLATES"); dir != "" {
		c.Paths.Templates = dir
	}
	if dir := os.Getenv("COLLAGE_IMAGES"); dir != "" {
		c.Paths.Images = dir
	}
	if path := os.Getenv("COLLAGE_FEEDBACK_DB"); path != "" {
		c.Paths.FeedbackDB = path
	}
	if os.Getenv("COLLAGE_DEBUG") != "" {
		c.Logging.Level = "debug"
	}
}

// Validate checks the configuration for values the generators cannot work
// with.
func (c *Config) Validate() error {
	if c.Canvas.Width <= 0 || c.Canvas.Height <= 0 {
		return fmt.Errorf("canvas size must be positive, got %dx%d", c.Canvas.Width, c.Canvas.Height)
	}
	if c.Mosaic.MinGridSize < 1 || c.Mosaic.MaxGridSize < c.Mosaic.MinGridSize {
		return fmt.Errorf("invalid mosaic grid size range [%d, %d]", c.Mosaic.MinGridSize, c.Mosaic.MaxGridSize)
	}
	if c.Mosaic.MinReveal < 0 || c.Mosaic.MaxReveal > 100 || c.Mosaic.MaxReveal < c.Mosaic.MinReveal {
		return fmt.Errorf("invalid mosaic reveal range [%g, %g]", c.Mosaic.MinReveal, c.Mosaic.MaxReveal)
	}
	if c.Mosaic.TransformPercent < 0 || c.Mosaic.TransformPercent > 100 {
		return fmt.Errorf("invalid mosaic transform percent %g", c.Mosaic.TransformPercent)
	}
	if c.Crystal.MaxFacets < 1 {
		return fmt.Errorf("crystal max_facets must be positive, got %d", c.Crystal.MaxFacets)
	}
	if c.Crystal.Complexity <= 0 || c.Crystal.Complexity > 1 {
		return fmt.Errorf("crystal complexity must be in (0, 1], got %g", c.Crystal.Complexity)
	}
	if c.Crystal.MinResolution < 3 || c.Crystal.MaxResolution < c.Crystal.MinResolution {
		return fmt.Errorf("invalid crystal resolution range [%d, %d]", c.Crystal.MinResolution, c.Crystal.MaxResolution)
	}
	if c.Crystal.FieldMinSize <= 0 || c.Crystal.FieldMaxSize < c.Crystal.FieldMinSize {
		return fmt.Errorf("invalid crystal field size range [%g, %g]", c.Crystal.FieldMinSize, c.Crystal.FieldMaxSize)
	}
	for mode, w := range c.Render.BlendWeights {
		if w < 0 {
			return fmt.Errorf("negative blend weight for %s", mode)
		}
	}
	return nil
}
