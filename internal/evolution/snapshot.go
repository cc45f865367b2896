package evolution

import (
	"fmt"

	"morphogen/internal/artifact"
	"morphogen/internal/entropy"
)

// Snapshot is the complete persisted state of an Engine.
type Snapshot struct {
	Seeded            bool                `json:"seeded"`
	CurrentGeneration uint64              `json:"current_generation"`
	LastEvolutionTick uint64              `json:"last_evolution_tick"`
	Artifacts         []artifact.Artifact `json:"artifacts"`
}

// Snapshot copies the engine state.
func (e *Engine) Snapshot() Snapshot {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return Snapshot{
		Seeded:            e.seeded,
		CurrentGeneration: e.currentGeneration,
		LastEvolutionTick: e.lastEvolutionTick,
		Artifacts:         e.registry.All(),
	}
}

// Restore builds an engine from a snapshot after checking every registry
// invariant. Restoring emits no events.
func Restore(cfg Config, clock entropy.Clock, provider entropy.Provider, snap Snapshot, opts ...Option) (*Engine, error) {
	e, err := New(cfg, clock, provider, opts...)
	if err != nil {
		return nil, err
	}
	reg, err := rebuild(snap, cfg.MaxGenesis)
	if err != nil {
		return nil, err
	}

	e.mu.Lock()
	e.registry = reg
	e.seeded = snap.Seeded
	e.currentGeneration = snap.CurrentGeneration
	e.lastEvolutionTick = snap.LastEvolutionTick
	e.mu.Unlock()
	return e, nil
}

func rebuild(snap Snapshot, maxGenesis int) (*artifact.Registry, error) {
	invalid := func(format string, args ...any) error {
		return fmt.Errorf("%w: %s", ErrInvalidSnapshot, fmt.Sprintf(format, args...))
	}

	if !snap.Seeded {
		if len(snap.Artifacts) > 0 || snap.CurrentGeneration != 0 || snap.LastEvolutionTick != 0 {
			return nil, invalid("unseeded snapshot carries state")
		}
		return artifact.NewRegistry(), nil
	}
	if len(snap.Artifacts) == 0 {
		return nil, invalid("seeded snapshot has no artifacts")
	}

	reg := artifact.NewRegistry()
	var bred uint64
	for _, a := range snap.Artifacts {
		if a.IsGenesis {
			if bred > 0 {
				return nil, invalid("genesis artifact %d after bred artifacts", a.ID)
			}
			if !a.Genome.InRange() {
				return nil, invalid("genesis artifact %d genome out of range", a.ID)
			}
		} else {
			bred++
			// Each evolution breeds exactly one artifact one generation up.
			if a.Generation != bred {
				return nil, invalid("bred artifact %d has generation %d, expected %d", a.ID, a.Generation, bred)
			}
		}
		if err := reg.Insert(a); err != nil {
			return nil, invalid("%v", err)
		}
	}

	if reg.GenesisCount() == 0 {
		return nil, invalid("no genesis artifacts")
	}
	if reg.GenesisCount() > maxGenesis {
		return nil, invalid("%d genesis artifacts exceed max_genesis %d", reg.GenesisCount(), maxGenesis)
	}
	if snap.CurrentGeneration != bred {
		return nil, invalid("current generation %d, expected %d", snap.CurrentGeneration, bred)
	}
	last := snap.Artifacts[len(snap.Artifacts)-1]
	if snap.LastEvolutionTick != last.BirthTick {
		return nil, invalid("last evolution tick %d does not match newest artifact tick %d", snap.LastEvolutionTick, last.BirthTick)
	}
	return reg, nil
}
