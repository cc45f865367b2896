package evolution

import (
	"errors"

	"morphogen/internal/artifact"
)

// Artifact returns a copy of the artifact with id.
func (e *Engine) Artifact(id uint64) (artifact.Artifact, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	a, ok := e.registry.Get(id)
	if !ok {
		return artifact.Artifact{}, opError("get artifact", id, ErrNotFound, "")
	}
	return a, nil
}

// Properties returns the traits derived from id's genome.
func (e *Engine) Properties(id uint64) (artifact.Properties, error) {
	a, err := e.Artifact(id)
	if err != nil {
		return artifact.Properties{}, err
	}
	return artifact.PropertiesOf(a.Genome), nil
}

// Lineage returns every ancestor of id, oldest generation first.
func (e *Engine) Lineage(id uint64) ([]artifact.Artifact, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	anc, err := e.registry.Ancestors(id)
	if errors.Is(err, artifact.ErrUnknown) {
		return nil, opError("lineage", id, ErrNotFound, "")
	}
	return anc, err
}

// Generation returns the ids of artifacts born in generation gen.
func (e *Engine) Generation(gen uint64) []uint64 {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.registry.InGeneration(gen)
}

// Artifacts returns a copy of every artifact in id order.
func (e *Engine) Artifacts() []artifact.Artifact {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.registry.All()
}

// TotalSupply returns the number of artifacts.
func (e *Engine) TotalSupply() uint64 {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.registry.TotalSupply()
}

// CurrentGeneration returns the generation of the most recently bred artifact.
func (e *Engine) CurrentGeneration() uint64 {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.currentGeneration
}

// Stats is a point-in-time summary of the scheduler.
type Stats struct {
	Seeded              bool   `json:"seeded"`
	TotalSupply         uint64 `json:"total_supply"`
	GenesisCount        int    `json:"genesis_count"`
	CurrentGeneration   uint64 `json:"current_generation"`
	Interval            uint64 `json:"interval"`
	CurrentTick         uint64 `json:"current_tick"`
	LastEvolutionTick   uint64 `json:"last_evolution_tick"`
	NextEvolutionTick   uint64 `json:"next_evolution_tick"`
	TicksUntilEvolution uint64 `json:"ticks_until_evolution"`
	Due                 bool   `json:"due"`
	MostPopular         uint64 `json:"most_popular,omitempty"`
}

// Stats summarizes the engine state.
func (e *Engine) Stats() Stats {
	e.mu.RLock()
	defer e.mu.RUnlock()

	tick := e.clock.CurrentTick()
	next := e.nextEvolutionTick()
	s := Stats{
		Seeded:            e.seeded,
		TotalSupply:       e.registry.TotalSupply(),
		GenesisCount:      e.registry.GenesisCount(),
		CurrentGeneration: e.currentGeneration,
		Interval:          e.cfg.Interval,
		CurrentTick:       tick,
		LastEvolutionTick: e.lastEvolutionTick,
		NextEvolutionTick: next,
		Due:               tick >= next,
	}
	if !s.Due {
		s.TicksUntilEvolution = next - tick
	}
	if id, ok := e.registry.MostPopular(); ok {
		s.MostPopular = id
	}
	return s
}
