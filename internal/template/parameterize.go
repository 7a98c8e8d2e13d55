package template

import (
	"fmt"
	"math"

	"github.com/irfansharif/collage/internal/rng"
)

// Derived range half-widths.
const (
	positionSpread = 0.2  // canvas fraction
	sizeSpread     = 0.1  // fraction of the current size
	rotationSpread = 15.0 // degrees

	// MinSize is the smallest width or height a placement may take.
	MinSize = 0.01
)

// Domain returns the valid bounds for attribute a. Rotation is unbounded.
func Domain(a Attr) (lo, hi float64) {
	switch a {
	case AttrX, AttrY:
		return 0, 1
	case AttrWidth, AttrHeight:
		return MinSize, 1
	default:
		return math.Inf(-1), math.Inf(1)
	}
}

// ClampTo clamps v into the domain of a.
func ClampTo(a Attr, v float64) float64 {
	lo, hi := Domain(a)
	return math.Max(lo, math.Min(hi, v))
}

// DeriveRange returns the default range for attribute a around v.
func DeriveRange(a Attr, v float64) Range {
	var r Range
	switch a {
	case AttrX, AttrY:
		r = Range{Min: v - positionSpread, Max: v + positionSpread}
	case AttrWidth, AttrHeight:
		r = Range{Min: v * (1 - sizeSpread), Max: v * (1 + sizeSpread)}
	case AttrRotation:
		r = Range{Min: v - rotationSpread, Max: v + rotationSpread}
	}
	r.Min, r.Max = ClampTo(a, r.Min), ClampTo(a, r.Max)
	r.Derived = true
	return r
}

// Parameterize derives default ranges for every placement attribute that has
// none. Existing ranges are kept as they are, so parameterizing an already
// parameterized template changes nothing. The input is not modified.
func Parameterize(t Template) ParameterizedTemplate {
	out := t.Clone()
	for i := range out.Placements {
		p := &out.Placements[i]
		if p.ParameterRanges == nil {
			p.ParameterRanges = &ParameterRanges{}
		}
		for _, a := range Attrs {
			if p.ParameterRanges.Get(a) != nil {
				continue
			}
			r := DeriveRange(a, p.Value(a))
			p.ParameterRanges.Set(a, &r)
		}
	}
	return ParameterizedTemplate{Template: out}
}

// jitter applies global variance to v. The second return is false when the
// variance for a is unset.
func (gv *GlobalVariance) jitter(g *rng.RNG, a Attr, v float64) (float64, bool) {
	if gv == nil {
		return v, false
	}
	switch a {
	case AttrX, AttrY:
		if gv.Position == 0 {
			return v, false
		}
		return v + g.Jitter(gv.Position), true
	case AttrWidth, AttrHeight:
		if gv.Size == 0 {
			return v, false
		}
		return v * (1 + g.Jitter(gv.Size)), true
	default:
		if gv.Rotation == 0 {
			return v, false
		}
		return v + g.Jitter(gv.Rotation*180), true
	}
}

// Randomize returns a new template instance. For each attribute, in order of
// precedence: an authored or learned range is sampled; otherwise non-zero
// global variance jitters the current value; otherwise a derived range is
// sampled; otherwise the value passes through. Results are clamped to the
// attribute domain. The instance carries no ranges, and the input is never
// modified.
func Randomize(pt ParameterizedTemplate, g *rng.RNG) Template {
	out := pt.Template.Clone()
	for i := range out.Placements {
		p := &out.Placements[i]
		for _, a := range Attrs {
			cur := p.Value(a)
			r := p.ParameterRanges.Get(a)
			var v float64
			if r != nil && !r.Derived {
				v = r.Sample(g)
			} else if j, ok := out.GlobalVariance.jitter(g, a, cur); ok {
				v = j
			} else if r != nil {
				v = r.Sample(g)
			} else {
				v = cur
			}
			if math.IsNaN(v) || math.IsInf(v, 0) {
				panic(fmt.Sprintf("template %s: placement %d %s became %v", pt.Key, i, a, v))
			}
			p.SetValue(a, ClampTo(a, v))
		}
		p.ParameterRanges = nil
	}
	return out
}

// PlacementParams is the value snapshot of one placement.
type PlacementParams struct {
	X        float64 `json:"x"`
	Y        float64 `json:"y"`
	Width    float64 `json:"width"`
	Height   float64 `json:"height"`
	Rotation float64 `json:"rotation"`
}

// Value returns attribute a.
func (pp PlacementParams) Value(a Attr) float64 {
	switch a {
	case AttrX:
		return pp.X
	case AttrY:
		return pp.Y
	case AttrWidth:
		return pp.Width
	case AttrHeight:
		return pp.Height
	default:
		return pp.Rotation
	}
}

// Params is the parameter snapshot of a rendered composition, recorded with
// feedback. Extra carries procedural generator values (grid size, facet
// count, ...) for reference.
type Params struct {
	Placements []PlacementParams  `json:"placements,omitempty"`
	Extra      map[string]float64 `json:"extra,omitempty"`
}

// Snapshot captures the placement values of a template instance.
func Snapshot(t Template) Params {
	var p Params
	for _, pl := range t.Placements {
		p.Placements = append(p.Placements, PlacementParams{
			X: pl.X, Y: pl.Y, Width: pl.Width, Height: pl.Height, Rotation: pl.Rotation,
		})
	}
	return p
}
