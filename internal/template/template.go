// Package template holds the collage template model: an ordered list of mask
// placements (or a reference to a procedural generator) plus defaults, the
// parameterizer that derives randomization ranges, and the randomizer that
// instantiates a template from them.
package template

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"

	"github.com/irfansharif/collage/internal/rng"
	"github.com/irfansharif/collage/internal/shapes"
)

// Generator names how a template produces drawable units.
type Generator string

const (
	// Placements draws the template's mask placements.
	Placements   Generator = ""
	Mosaic       Generator = "mosaic"
	Crystal      Generator = "crystal"
	CrystalField Generator = "crystal-field"
)

// Generators lists the known generators.
var Generators = []Generator{Placements, Mosaic, Crystal, CrystalField}

// Range is a closed interval values are sampled from, optionally snapped to
// multiples of Step above Min.
type Range struct {
	Min  float64 `json:"min" yaml:"min"`
	Max  float64 `json:"max" yaml:"max"`
	Step float64 `json:"step,omitempty" yaml:"step,omitempty"`
	// Derived marks a range produced by the parameterizer rather than
	// authored or learned.
	Derived bool `json:"derived,omitempty" yaml:"derived,omitempty"`
}

// Sample draws a value from the range. A range with Min > Max or non-finite
// bounds is a programming error and panics.
func (r Range) Sample(g *rng.RNG) float64 {
	if math.IsNaN(r.Min) || math.IsNaN(r.Max) || math.IsInf(r.Min, 0) || math.IsInf(r.Max, 0) || r.Min > r.Max {
		panic(fmt.Sprintf("template: invalid range [%v, %v]", r.Min, r.Max))
	}
	v := g.Between(r.Min, r.Max)
	if r.Step > 0 {
		v = r.Min + math.Round((v-r.Min)/r.Step)*r.Step
		v = math.Min(v, r.Max)
	}
	return v
}

// Width returns Max - Min.
func (r Range) Width() float64 { return r.Max - r.Min }

// Mid returns the midpoint.
func (r Range) Mid() float64 { return (r.Min + r.Max) / 2 }

// ParameterRanges holds optional per-attribute ranges for a placement.
type ParameterRanges struct {
	X        *Range `json:"x,omitempty" yaml:"x,omitempty"`
	Y        *Range `json:"y,omitempty" yaml:"y,omitempty"`
	Width    *Range `json:"width,omitempty" yaml:"width,omitempty"`
	Height   *Range `json:"height,omitempty" yaml:"height,omitempty"`
	Rotation *Range `json:"rotation,omitempty" yaml:"rotation,omitempty"`
}

// Attr identifies a placement attribute.
type Attr int

const (
	AttrX Attr = iota
	AttrY
	AttrWidth
	AttrHeight
	AttrRotation
)

// Attrs lists every attribute in a fixed order.
var Attrs = []Attr{AttrX, AttrY, AttrWidth, AttrHeight, AttrRotation}

func (a Attr) String() string {
	return [...]string{"x", "y", "width", "height", "rotation"}[a]
}

// Get returns the range for a, or nil.
func (pr *ParameterRanges) Get(a Attr) *Range {
	if pr == nil {
		return nil
	}
	return *pr.slot(a)
}

// Set replaces the range for a.
func (pr *ParameterRanges) Set(a Attr, r *Range) { *pr.slot(a) = r }

func (pr *ParameterRanges) slot(a Attr) **Range {
	switch a {
	case AttrX:
		return &pr.X
	case AttrY:
		return &pr.Y
	case AttrWidth:
		return &pr.Width
	case AttrHeight:
		return &pr.Height
	case AttrRotation:
		return &pr.Rotation
	}
	panic(fmt.Sprintf("template: unknown attribute %d", a))
}

// Complete reports whether every attribute has a range.
func (pr *ParameterRanges) Complete() bool {
	for _, a := range Attrs {
		if pr.Get(a) == nil {
			return false
		}
	}
	return true
}

func (pr *ParameterRanges) clone() *ParameterRanges {
	if pr == nil {
		return nil
	}
	out := &ParameterRanges{}
	for _, a := range Attrs {
		if r := pr.Get(a); r != nil {
			c := *r
			out.Set(a, &c)
		}
	}
	return out
}

// MaskPlacement is one shape instance. Coordinates are fractions of the
// canvas; rotation is in degrees about the placement centre.
type MaskPlacement struct {
	MaskName        shapes.Ref       `json:"maskName" yaml:"maskName"`
	X               float64          `json:"x" yaml:"x"`
	Y               float64          `json:"y" yaml:"y"`
	Width           float64          `json:"width" yaml:"width"`
	Height          float64          `json:"height" yaml:"height"`
	Rotation        float64          `json:"rotation,omitempty" yaml:"rotation,omitempty"`
	BlendMode       string           `json:"blendMode,omitempty" yaml:"blendMode,omitempty"`
	ParameterRanges *ParameterRanges `json:"parameterRanges,omitempty" yaml:"parameterRanges,omitempty"`
}

// Value returns the current value of attribute a.
func (p *MaskPlacement) Value(a Attr) float64 { return *p.field(a) }

// SetValue sets attribute a.
func (p *MaskPlacement) SetValue(a Attr, v float64) { *p.field(a) = v }

func (p *MaskPlacement) field(a Attr) *float64 {
	switch a {
	case AttrX:
		return &p.X
	case AttrY:
		return &p.Y
	case AttrWidth:
		return &p.Width
	case AttrHeight:
		return &p.Height
	case AttrRotation:
		return &p.Rotation
	}
	panic(fmt.Sprintf("template: unknown attribute %d", a))
}

func (p MaskPlacement) clone() MaskPlacement {
	p.ParameterRanges = p.ParameterRanges.clone()
	return p
}

// GlobalVariance is the fallback jitter for attributes without a range:
// position is a canvas fraction, size a fraction of the current size and
// rotation a fraction of 180°. Zero disables the attribute's jitter.
type GlobalVariance struct {
	Position float64 `json:"position,omitempty" yaml:"position,omitempty"`
	Size     float64 `json:"size,omitempty" yaml:"size,omitempty"`
	Rotation float64 `json:"rotation,omitempty" yaml:"rotation,omitempty"`
}

// Procedural carries generator settings for procedural templates. Unset
// values are randomized at render time.
type Procedural struct {
	// Mosaic.
	GridSize         int      `json:"gridSize,omitempty" yaml:"gridSize,omitempty"`
	Pattern          string   `json:"pattern,omitempty" yaml:"pattern,omitempty"`
	RevealPercentage *float64 `json:"revealPercentage,omitempty" yaml:"revealPercentage,omitempty"` // nil: sampled; 0 reveals nothing
	Operation        string   `json:"operation,omitempty" yaml:"operation,omitempty"`
	ShapeType        string   `json:"shapeType,omitempty" yaml:"shapeType,omitempty"`

	// Crystal and crystal field.
	MaxFacets  int     `json:"maxFacets,omitempty" yaml:"maxFacets,omitempty"`
	Complexity float64 `json:"complexity,omitempty" yaml:"complexity,omitempty"`
	ImageMode  string  `json:"imageMode,omitempty" yaml:"imageMode,omitempty"`
	Resolution int     `json:"resolution,omitempty" yaml:"resolution,omitempty"`
	Outline    string  `json:"outline,omitempty" yaml:"outline,omitempty"` // crystal shape for an isolated crystal
	Count      int     `json:"count,omitempty" yaml:"count,omitempty"`
	Overlap    bool    `json:"overlap,omitempty" yaml:"overlap,omitempty"`
}

// OutlineRef resolves the Outline setting. A bare key names a shape in the
// crystal family.
func (p *Procedural) OutlineRef() (shapes.Ref, error) {
	if !strings.Contains(p.Outline, "/") {
		return shapes.ParseRef(shapes.FamilyCrystal + "/" + p.Outline)
	}
	return shapes.ParseRef(p.Outline)
}

// ShapeRef resolves the ShapeType setting; the zero Ref when unset.
func (p *Procedural) ShapeRef() (shapes.Ref, error) {
	if p.ShapeType == "" {
		return shapes.Ref{}, nil
	}
	return shapes.ParseRef(p.ShapeType)
}

// Template is a named arrangement of placements, or a procedural generator
// reference, plus defaults.
type Template struct {
	Key            string          `json:"key" yaml:"key"`
	Name           string          `json:"name,omitempty" yaml:"name,omitempty"`
	Background     string          `json:"backgroundColor,omitempty" yaml:"backgroundColor,omitempty"`
	Generator      Generator       `json:"generator,omitempty" yaml:"generator,omitempty"`
	Procedural     *Procedural     `json:"procedural,omitempty" yaml:"procedural,omitempty"`
	BlendModes     []string        `json:"blendModes,omitempty" yaml:"blendModes,omitempty"`
	GlobalVariance *GlobalVariance `json:"globalVariance,omitempty" yaml:"globalVariance,omitempty"`
	Placements     []MaskPlacement `json:"placements" yaml:"placements"`
}

// Clone returns a deep copy.
func (t Template) Clone() Template {
	if t.Procedural != nil {
		p := *t.Procedural
		t.Procedural = &p
	}
	if t.GlobalVariance != nil {
		gv := *t.GlobalVariance
		t.GlobalVariance = &gv
	}
	if t.BlendModes != nil {
		t.BlendModes = append([]string(nil), t.BlendModes...)
	}
	if t.Placements != nil {
		placements := make([]MaskPlacement, len(t.Placements))
		for i, p := range t.Placements {
			placements[i] = p.clone()
		}
		t.Placements = placements
	}
	return t
}

// ParameterizedTemplate is a template whose placements all carry complete
// parameter ranges.
type ParameterizedTemplate struct {
	Template
}

// Clone returns a deep copy.
func (pt ParameterizedTemplate) Clone() ParameterizedTemplate {
	return ParameterizedTemplate{Template: pt.Template.Clone()}
}

// Marshal encodes t as JSON, the interchange format.
func Marshal(t Template) ([]byte, error) {
	return json.MarshalIndent(t, "", "  ")
}

// Unmarshal decodes a JSON template.
func Unmarshal(b []byte) (Template, error) {
	var t Template
	if err := json.Unmarshal(b, &t); err != nil {
		return Template{}, fmt.Errorf("decoding template: %w", err)
	}
	return t, nil
}
