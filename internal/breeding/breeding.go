// Package breeding implements offspring genome arithmetic.
//
// All division is floor division on non-negative integers. Results are never
// clamped back into dna.Modulus: generational drift is part of the design.
package breeding

import (
	"math/big"

	"morphogen/internal/dna"
	"morphogen/internal/entropy"
)

const (
	// Scale is the fixed-point denominator for every factor below.
	Scale = 1000

	// BoostRange bounds the breeding random factor to [0, BoostRange).
	BoostRange = 1000

	// MutationRollRange is the die size for the mutation roll.
	MutationRollRange = 100
	// MutationChance is how many faces of the die trigger a mutation (10%).
	MutationChance = 10

	// MutationFloor and MutationSpan give mutation factors in [900, 1099].
	MutationFloor = 900
	MutationSpan  = 200
)

var bigScale = big.NewInt(Scale)

// Breed averages the parents and applies an upward boost of 0 to 99.9%:
//
//	combined = (a + b) / 2
//	result   = combined * (1000 + fresh mod 1000) / 1000
func Breed(a, b dna.Genome, fresh entropy.Value) dna.Genome {
	combined := new(big.Int).Add(a.Big(), b.Big())
	combined.Rsh(combined, 1)
	return scale(combined, Scale+fresh.Mod(BoostRange))
}

// Mutate rolls fresh mod 100; below 10 the genome is scaled by
// ((clock mod 200) + 900) / 1000, otherwise it is returned unchanged.
func Mutate(g dna.Genome, roll entropy.Value, clock uint64) dna.Genome {
	out, _ := mutate(g, roll, clock)
	return out
}

func mutate(g dna.Genome, roll entropy.Value, clock uint64) (dna.Genome, uint64) {
	if roll.Mod(MutationRollRange) >= MutationChance {
		return g, 0
	}
	factor := MutationFactor(clock)
	return scale(g.Big(), factor), factor
}

// MutationFactor returns the scaling factor a mutation at clock would apply.
func MutationFactor(clock uint64) uint64 {
	return clock%MutationSpan + MutationFloor
}

// Result describes one offspring computation.
type Result struct {
	Genome dna.Genome
	// Bred is the genome after Breed and before Mutate.
	Bred dna.Genome
	// Boost is the breeding random factor in [0, 1000).
	Boost uint64
	// Mutated reports whether the mutation roll fired.
	Mutated bool
	// MutationFactor is the applied factor, 0 when Mutated is false.
	MutationFactor uint64
}

// Cross runs Breed then Mutate and reports the intermediate values.
func Cross(a, b dna.Genome, breedSeed, mutationSeed entropy.Value, clock uint64) Result {
	bred := Breed(a, b, breedSeed)
	out, factor := mutate(bred, mutationSeed, clock)
	return Result{
		Genome:         out,
		Bred:           bred,
		Boost:          breedSeed.Mod(BoostRange),
		Mutated:        factor != 0,
		MutationFactor: factor,
	}
}

func scale(n *big.Int, factor uint64) dna.Genome {
	n = new(big.Int).Mul(n, new(big.Int).SetUint64(factor))
	n.Quo(n, bigScale)
	g, _ := dna.FromBig(n)
	return g
}
