package dna

import (
	"math/big"

	"morphogen/internal/entropy"

	"golang.org/x/crypto/sha3"
)

// Generate derives a genome in [0, Modulus) from seed material.
//
// The packed preimage is seed || discriminator || clock || scalar, each
// integer widened to a 32-byte big-endian word. The Keccak-256 digest of
// that preimage, read as an unsigned integer, is reduced mod Modulus.
// Generate is pure: equal inputs always give equal genomes.
func Generate(seed entropy.Value, discriminator, clock, scalar uint64) Genome {
	h := sha3.NewLegacyKeccak256()
	h.Write(seed[:])
	h.Write(entropy.Word(discriminator))
	h.Write(entropy.Word(clock))
	h.Write(entropy.Word(scalar))

	n := new(big.Int).SetBytes(h.Sum(nil))
	return Genome{n: n.Mod(n, bigModulus)}
}
