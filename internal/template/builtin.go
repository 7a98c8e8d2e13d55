package template

import "github.com/irfansharif/collage/internal/shapes"

func place(ref string, x, y, w, h, rot float64) MaskPlacement {
	return MaskPlacement{MaskName: shapes.MustParseRef(ref), X: x, Y: y, Width: w, Height: h, Rotation: rot}
}

// Builtin returns the templates available without any template directory.
func Builtin() []Template {
	return []Template{
		{
			Key:  "grid-quad",
			Name: "Four panels",
			Placements: []MaskPlacement{
				place("basic/square", 0.25, 0.25, 0.48, 0.48, 0),
				place("basic/square", 0.75, 0.25, 0.48, 0.48, 0),
				place("basic/square", 0.25, 0.75, 0.48, 0.48, 0),
				place("basic/square", 0.75, 0.75, 0.48, 0.48, 0),
			},
		},
		{
			Key:        "constellation",
			Name:       "Constellation",
			Background: "#10131a",
			BlendModes: []string{"source-over", "hard-light"},
			GlobalVariance: &GlobalVariance{
				Position: 0.05,
				Rotation: 0.1,
			},
			Placements: []MaskPlacement{
				place("basic/circle", 0.5, 0.5, 0.42, 0.42, 0),
				place("basic/star", 0.2, 0.22, 0.22, 0.22, 12),
				place("basic/hexagon", 0.8, 0.25, 0.24, 0.24, -8),
				place("basic/diamond", 0.22, 0.8, 0.2, 0.26, 0),
				place("basic/triangle", 0.78, 0.78, 0.26, 0.22, 20),
			},
		},
		{
			Key:        "arches",
			Name:       "Arcade",
			Background: "#f2ede4",
			BlendModes: []string{"source-over", "multiply"},
			Placements: []MaskPlacement{
				place("basic/arch", 0.2, 0.55, 0.26, 0.6, 0),
				place("basic/arch", 0.5, 0.5, 0.26, 0.7, 0),
				place("basic/arch", 0.8, 0.55, 0.26, 0.6, 0),
			},
		},
		{
			Key:        "mosaic",
			Name:       "Mosaic",
			Generator:  Mosaic,
			Procedural: &Procedural{},
		},
		{
			Key:        "mosaic-portrait",
			Name:       "Portrait mosaic",
			Generator:  Mosaic,
			Procedural: &Procedural{Pattern: "portrait", GridSize: 10, ShapeType: "basic/square"},
		},
		{
			Key:        "crystal",
			Name:       "Crystal",
			Generator:  Crystal,
			Procedural: &Procedural{},
		},
		{
			Key:        "crystal-isolated",
			Name:       "Isolated crystal",
			Background: "#0b0b0f",
			Generator:  Crystal,
			Procedural: &Procedural{Outline: "hexagon", ImageMode: "single"},
		},
		{
			Key:        "crystal-field",
			Name:       "Crystal field",
			Background: "#0b0b0f",
			Generator:  CrystalField,
			Procedural: &Procedural{Count: 5},
		},
	}
}
