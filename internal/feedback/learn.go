package feedback

import (
	"context"
	"fmt"
	"math"

	"go.uber.org/zap"

	"github.com/irfansharif/collage/internal/template"
)

// Learning constants. Position and size are canvas fractions, rotation is in
// degrees.
const (
	spreadThreshold   = 0.05
	spreadPad         = 0.02
	narrowHalfBand    = 0.075
	rotationThreshold = 5.0
	rotationPad       = 3.0
	rotationHalfBand  = 10.0
)

func policy(a template.Attr) (threshold, pad, halfBand float64) {
	if a == template.AttrRotation {
		return rotationThreshold, rotationPad, rotationHalfBand
	}
	return spreadThreshold, spreadPad, narrowHalfBand
}

// Learn pulls the ranges of pt toward the values seen in liked records for the
// same template, placement by placement. When the liked values of an attribute
// are spread out the range becomes their extent plus a pad; otherwise it
// collapses to a fixed band around their mean. Without any liked record for
// the template, pt is returned unchanged. pt is never modified.
func Learn(pt template.ParameterizedTemplate, records []Record) template.ParameterizedTemplate {
	var liked []template.Params
	for _, r := range records {
		if r.TemplateKey == pt.Key && r.Liked {
			liked = append(liked, r.Params)
		}
	}
	if len(liked) == 0 {
		return pt
	}

	out := pt.Clone()
	for i := range out.Placements {
		p := &out.Placements[i]
		for _, a := range template.Attrs {
			lo, hi := math.Inf(1), math.Inf(-1)
			sum, n := 0.0, 0
			for _, params := range liked {
				// Records from before the template changed shape.
				if i >= len(params.Placements) {
					continue
				}
				v := params.Placements[i].Value(a)
				if math.IsNaN(v) || math.IsInf(v, 0) {
					continue
				}
				lo, hi = math.Min(lo, v), math.Max(hi, v)
				sum += v
				n++
			}
			if n == 0 {
				continue
			}

			threshold, pad, halfBand := policy(a)
			var r template.Range
			if hi-lo > threshold {
				r = template.Range{Min: lo - pad, Max: hi + pad}
			} else {
				mean := sum / float64(n)
				r = template.Range{Min: mean - halfBand, Max: mean + halfBand}
			}
			r.Min, r.Max = template.ClampTo(a, r.Min), template.ClampTo(a, r.Max)
			if prev := p.ParameterRanges.Get(a); prev != nil {
				r.Step = prev.Step
			}
			if p.ParameterRanges == nil {
				p.ParameterRanges = &template.ParameterRanges{}
			}
			p.ParameterRanges.Set(a, &r)
		}
	}
	return out
}

// Learner applies feedback from a store to templates in a registry.
type Learner struct {
	Store  Store
	Logger *zap.Logger
}

// Apply relearns key from scratch: the template's derived ranges are
// recomputed, adjusted by every recorded signal and written back to the
// registry. It returns the resulting template.
func (l *Learner) Apply(ctx context.Context, reg *template.Registry, key string) (template.ParameterizedTemplate, error) {
	t, ok := reg.Get(key)
	if !ok {
		return template.ParameterizedTemplate{}, fmt.Errorf("unknown template %q", key)
	}
	records, err := l.Store.ForTemplate(ctx, key)
	if err != nil {
		return template.ParameterizedTemplate{}, err
	}
	pt := Learn(template.Parameterize(t), records)
	reg.SetParameterized(pt)

	if l.Logger != nil {
		l.Logger.Debug("learned template ranges",
			zap.String("template", key), zap.Int("records", len(records)))
	}
	return pt, nil
}
