package evolution

import (
	"fmt"

	"morphogen/internal/artifact"
)

// Metadata is the descriptive document a host publishes for an artifact,
// shaped like common token metadata.
type Metadata struct {
	Name        string      `json:"name"`
	Description string      `json:"description"`
	Genome      string      `json:"genome"`
	Attributes  []Attribute `json:"attributes"`
}

// Attribute is one trait entry.
type Attribute struct {
	TraitType   string `json:"trait_type"`
	Value       any    `json:"value"`
	DisplayType string `json:"display_type,omitempty"`
}

// Metadata describes artifact id.
func (e *Engine) Metadata(id uint64) (Metadata, error) {
	a, err := e.Artifact(id)
	if err != nil {
		return Metadata{}, err
	}
	return describe(a), nil
}

func describe(a artifact.Artifact) Metadata {
	p := artifact.PropertiesOf(a.Genome)

	origin := "Genesis"
	desc := fmt.Sprintf("Genesis artifact seeded at tick %d.", a.BirthTick)
	if !a.IsGenesis {
		origin = "Bred"
		desc = fmt.Sprintf("Generation %d artifact bred from #%d and #%d at tick %d.", a.Generation, a.ParentA, a.ParentB, a.BirthTick)
	}

	attrs := []Attribute{
		{TraitType: "Origin", Value: origin},
		{TraitType: "Generation", Value: a.Generation, DisplayType: "number"},
		{TraitType: "Color Hue", Value: p.ColorHue, DisplayType: "number"},
		{TraitType: "Pattern", Value: p.Pattern},
		{TraitType: "Complexity", Value: p.Complexity, DisplayType: "number"},
		{TraitType: "Size Multiplier", Value: p.SizeMultiplier, DisplayType: "number"},
		{TraitType: "Interactions", Value: a.InteractionCount, DisplayType: "number"},
		{TraitType: "Birth Tick", Value: a.BirthTick, DisplayType: "number"},
	}
	if a.HasParents() {
		attrs = append(attrs,
			Attribute{TraitType: "Parent A", Value: a.ParentA},
			Attribute{TraitType: "Parent B", Value: a.ParentB},
		)
	}

	return Metadata{
		Name:        fmt.Sprintf("Morphogen #%d", a.ID),
		Description: desc,
		Genome:      a.Genome.String(),
		Attributes:  attrs,
	}
}
