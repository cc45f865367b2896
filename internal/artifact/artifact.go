// Package artifact holds the artifact data model, the registry that owns
// every artifact record, and the popularity scan used for parent selection.
package artifact

import "morphogen/internal/dna"

// Artifact is one generated piece. Everything except InteractionCount is
// fixed at creation.
type Artifact struct {
	ID               uint64     `json:"id"`
	Generation       uint64     `json:"generation"`
	BirthTick        uint64     `json:"birth_tick"`
	Genome           dna.Genome `json:"genome"`
	InteractionCount uint64     `json:"interaction_count"`
	ParentA          uint64     `json:"parent_a,omitempty"`
	ParentB          uint64     `json:"parent_b,omitempty"`
	IsGenesis        bool       `json:"is_genesis"`
}

// HasParents reports whether the artifact was bred.
func (a Artifact) HasParents() bool {
	return a.ParentA != 0 && a.ParentB != 0
}

// Properties are the visual traits derived from a genome.
type Properties struct {
	ColorHue       uint64 `json:"color_hue"`       // [0, 360)
	Pattern        uint64 `json:"pattern"`         // [0, 10)
	Complexity     uint64 `json:"complexity"`      // [0, 100)
	SizeMultiplier uint64 `json:"size_multiplier"` // [1, 5]
}

// PropertiesOf decodes a genome into its traits.
func PropertiesOf(g dna.Genome) Properties {
	return Properties{
		ColorHue:       g.Digit(1, 360),
		Pattern:        g.Digit(360, 10),
		Complexity:     g.Digit(3600, 100),
		SizeMultiplier: g.Digit(360000, 5) + 1,
	}
}
