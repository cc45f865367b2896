// Package dna derives and represents artifact genomes.
package dna

import (
	"fmt"
	"math/big"
)

// Modulus bounds freshly generated genomes: every genesis genome is in [0, Modulus).
const Modulus uint64 = 1_000_000_000_000_000_000

var bigModulus = new(big.Int).SetUint64(Modulus)

// Genome is an immutable non-negative integer of arbitrary size.
// Breeding never re-clamps, so genomes of later generations may exceed
// Modulus; big.Int keeps that drift exact instead of wrapping.
// The zero value is the genome 0.
type Genome struct {
	n *big.Int
}

// FromUint64 returns the genome n.
func FromUint64(n uint64) Genome {
	return Genome{n: new(big.Int).SetUint64(n)}
}

// FromBig returns a genome holding a copy of n. Negative values are rejected.
func FromBig(n *big.Int) (Genome, error) {
	if n == nil {
		return Genome{}, nil
	}
	if n.Sign() < 0 {
		return Genome{}, fmt.Errorf("genome cannot be negative: %s", n)
	}
	return Genome{n: new(big.Int).Set(n)}, nil
}

// Parse decodes a base-10 genome.
func Parse(s string) (Genome, error) {
	n, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return Genome{}, fmt.Errorf("invalid genome %q", s)
	}
	return FromBig(n)
}

// Big returns a copy of the genome's value.
func (g Genome) Big() *big.Int {
	if g.n == nil {
		return new(big.Int)
	}
	return new(big.Int).Set(g.n)
}

// Digit returns (g / div) mod mod, the building block for derived properties.
func (g Genome) Digit(div, mod uint64) uint64 {
	q := g.Big()
	if div > 1 {
		q.Quo(q, new(big.Int).SetUint64(div))
	}
	return q.Mod(q, new(big.Int).SetUint64(mod)).Uint64()
}

// InRange reports whether g < Modulus.
func (g Genome) InRange() bool {
	return g.Big().Cmp(bigModulus) < 0
}

// Cmp compares g and o the way big.Int.Cmp does.
func (g Genome) Cmp(o Genome) int {
	return g.Big().Cmp(o.Big())
}

// Equal reports whether g and o hold the same value.
func (g Genome) Equal(o Genome) bool {
	return g.Cmp(o) == 0
}

// String returns the base-10 form of g.
func (g Genome) String() string {
	return g.Big().String()
}

// MarshalText implements encoding.TextMarshaler so JSON carries genomes as
// decimal strings rather than lossy floats.
func (g Genome) MarshalText() ([]byte, error) {
	return []byte(g.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (g *Genome) UnmarshalText(text []byte) error {
	parsed, err := Parse(string(text))
	if err != nil {
		return err
	}
	*g = parsed
	return nil
}
