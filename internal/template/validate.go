package template

import (
	"fmt"
	"math"
	"strings"

	"github.com/irfansharif/collage/internal/canvas"
	"github.com/irfansharif/collage/internal/crystal"
	"github.com/irfansharif/collage/internal/mosaic"
	"github.com/irfansharif/collage/internal/palette"
	"github.com/irfansharif/collage/internal/shapes"
)

// Problem is one validation failure. Placement is -1 for template-level
// problems.
type Problem struct {
	Placement int
	Field     string
	Message   string
	// MissingShape is set when a maskName does not resolve.
	MissingShape *shapes.Ref
}

func (p Problem) String() string {
	if p.Placement < 0 {
		return fmt.Sprintf("%s: %s", p.Field, p.Message)
	}
	return fmt.Sprintf("placements[%d].%s: %s", p.Placement, p.Field, p.Message)
}

// ValidationResult is the outcome of Validate.
type ValidationResult struct {
	Valid    bool
	Problems []Problem
}

// Err returns nil for a valid result and a *ValidationError otherwise.
func (r ValidationResult) Err(key string) error {
	if r.Valid {
		return nil
	}
	return &ValidationError{Key: key, Problems: r.Problems}
}

// MissingShapes returns the unresolved shape references.
func (r ValidationResult) MissingShapes() []shapes.Ref {
	var out []shapes.Ref
	for _, p := range r.Problems {
		if p.MissingShape != nil {
			out = append(out, *p.MissingShape)
		}
	}
	return out
}

// ValidationError reports every problem found in a template.
type ValidationError struct {
	Key      string
	Problems []Problem
}

func (e *ValidationError) Error() string {
	msgs := make([]string, len(e.Problems))
	for i, p := range e.Problems {
		msgs[i] = p.String()
	}
	return fmt.Sprintf("invalid template %q: %s", e.Key, strings.Join(msgs, "; "))
}

type validator struct {
	problems []Problem
}

func (v *validator) add(placement int, field, format string, args ...interface{}) {
	v.problems = append(v.problems, Problem{Placement: placement, Field: field, Message: fmt.Sprintf(format, args...)})
}

func finite(f float64) bool { return !math.IsNaN(f) && !math.IsInf(f, 0) }

// Validate checks t against the shape registry and the model's invariants.
// It never stops at the first problem.
func Validate(t Template, resolver shapes.Resolver) ValidationResult {
	v := &validator{}

	if strings.TrimSpace(t.Key) == "" {
		v.add(-1, "key", "missing")
	}
	if _, err := palette.ParseHex(t.Background); err != nil {
		v.add(-1, "backgroundColor", "%v", err)
	}
	for _, m := range t.BlendModes {
		if _, err := canvas.ParseBlendMode(m); err != nil {
			v.add(-1, "blendModes", "%v", err)
		}
	}
	if gv := t.GlobalVariance; gv != nil {
		for _, f := range []struct {
			name string
			val  float64
		}{{"position", gv.Position}, {"size", gv.Size}, {"rotation", gv.Rotation}} {
			if !finite(f.val) || f.val < 0 || f.val > 1 {
				v.add(-1, "globalVariance."+f.name, "%v outside [0, 1]", f.val)
			}
		}
	}

	known := false
	for _, g := range Generators {
		known = known || g == t.Generator
	}
	switch {
	case !known:
		v.add(-1, "generator", "unknown generator %q", t.Generator)
	case t.Generator == Placements:
		if len(t.Placements) == 0 {
			v.add(-1, "placements", "a placement template needs at least one placement")
		}
	default:
		validateProcedural(v, t, resolver)
	}

	for i, p := range t.Placements {
		validatePlacement(v, i, p, resolver)
	}

	return ValidationResult{Valid: len(v.problems) == 0, Problems: v.problems}
}

func validatePlacement(v *validator, i int, p MaskPlacement, resolver shapes.Resolver) {
	switch {
	case p.MaskName.IsZero():
		v.add(i, "maskName", "missing")
	case resolver == nil:
		v.add(i, "maskName", "no shape registry to resolve %s", p.MaskName)
	default:
		if _, ok := resolver.Lookup(p.MaskName); !ok {
			ref := p.MaskName
			v.problems = append(v.problems, Problem{
				Placement:    i,
				Field:        "maskName",
				Message:      fmt.Sprintf("unresolved shape %s", ref),
				MissingShape: &ref,
			})
		}
	}

	for _, a := range Attrs {
		val := p.Value(a)
		if !finite(val) {
			v.add(i, a.String(), "not a finite number")
			continue
		}
		switch a {
		case AttrX, AttrY:
			if val < 0 || val > 1 {
				v.add(i, a.String(), "%v outside [0, 1]", val)
			}
		case AttrWidth, AttrHeight:
			if val <= 0 || val > 1 {
				v.add(i, a.String(), "%v outside (0, 1]", val)
			}
		}
	}

	if p.BlendMode != "" {
		if _, err := canvas.ParseBlendMode(p.BlendMode); err != nil {
			v.add(i, "blendMode", "%v", err)
		}
	}

	for _, a := range Attrs {
		r := p.ParameterRanges.Get(a)
		if r == nil {
			continue
		}
		field := "parameterRanges." + a.String()
		switch {
		case !finite(r.Min) || !finite(r.Max) || !finite(r.Step):
			v.add(i, field, "not finite")
		case r.Min > r.Max:
			v.add(i, field, "min %v > max %v", r.Min, r.Max)
		case r.Step < 0:
			v.add(i, field, "negative step %v", r.Step)
		}
	}
}

func validateProcedural(v *validator, t Template, resolver shapes.Resolver) {
	p := t.Procedural
	if p == nil {
		return // everything randomized
	}
	if p.GridSize < 0 {
		v.add(-1, "procedural.gridSize", "negative")
	}
	if r := p.RevealPercentage; r != nil && (*r < 0 || *r > 100) {
		v.add(-1, "procedural.revealPercentage", "%v outside [0, 100]", *r)
	}
	if p.MaxFacets < 0 {
		v.add(-1, "procedural.maxFacets", "negative")
	}
	if p.Complexity < 0 || p.Complexity > 1 {
		v.add(-1, "procedural.complexity", "%v outside [0, 1]", p.Complexity)
	}
	if p.Resolution != 0 && p.Resolution < 3 {
		v.add(-1, "procedural.resolution", "%d too coarse", p.Resolution)
	}
	if p.Count < 0 {
		v.add(-1, "procedural.count", "negative")
	}

	switch t.Generator {
	case Mosaic:
		if _, err := mosaic.ParsePattern(p.Pattern); err != nil {
			v.add(-1, "procedural.pattern", "%v", err)
		}
		if _, err := mosaic.ParseOperation(p.Operation); err != nil {
			v.add(-1, "procedural.operation", "%v", err)
		}
		if p.ShapeType != "" {
			validateShapeRef(v, "procedural.shapeType", p.ShapeType, resolver)
		}
	case Crystal, CrystalField:
		if _, err := crystal.ParsePattern(p.Pattern); err != nil {
			v.add(-1, "procedural.pattern", "%v", err)
		}
		if _, err := crystal.ParseImageMode(p.ImageMode); err != nil {
			v.add(-1, "procedural.imageMode", "%v", err)
		}
		if p.Outline != "" {
			ref, err := p.OutlineRef()
			if err != nil {
				v.add(-1, "procedural.outline", "%v", err)
			} else if _, ok := lookup(resolver, ref); !ok {
				v.problems = append(v.problems, Problem{
					Placement:    -1,
					Field:        "procedural.outline",
					Message:      fmt.Sprintf("unresolved shape %s", ref),
					MissingShape: &ref,
				})
			}
		}
	}
}

func validateShapeRef(v *validator, field, s string, resolver shapes.Resolver) {
	ref, err := shapes.ParseRef(s)
	if err != nil {
		v.add(-1, field, "%v", err)
		return
	}
	if _, ok := lookup(resolver, ref); !ok {
		v.problems = append(v.problems, Problem{
			Placement:    -1,
			Field:        field,
			Message:      fmt.Sprintf("unresolved shape %s", ref),
			MissingShape: &ref,
		})
	}
}

func lookup(resolver shapes.Resolver, ref shapes.Ref) (shapes.Shape, bool) {
	if resolver == nil {
		return nil, false
	}
	return resolver.Lookup(ref)
}
