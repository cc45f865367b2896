package entropy

import (
	crand "crypto/rand"
	"encoding/binary"
	"fmt"

	"golang.org/x/crypto/sha3"
)

// Provider hands out seed material for the current tick.
type Provider interface {
	// Fresh returns the seed for discriminator at the current tick.
	Fresh(discriminator uint64) Value
	// Scalar returns a secondary per-tick chain-state value (difficulty analog).
	Scalar() uint64
}

// Clock is a monotonic progress counter (block height analog).
type Clock interface {
	CurrentTick() uint64
}

// Chain is a Keccak-256 hash chain keyed by a salt and driven by a Clock.
// Equal salt, tick and discriminator always yield the same Value.
type Chain struct {
	salt  Value
	clock Clock
}

// NewChain returns a Chain provider reading ticks from clock.
func NewChain(salt Value, clock Clock) *Chain {
	return &Chain{salt: salt, clock: clock}
}

// Salt returns the chain's salt so hosts can persist it.
func (c *Chain) Salt() Value {
	return c.salt
}

// Fresh implements Provider.
func (c *Chain) Fresh(discriminator uint64) Value {
	return c.At(c.clock.CurrentTick(), discriminator)
}

// At returns the Value the chain produced (or will produce) at tick for discriminator.
func (c *Chain) At(tick, discriminator uint64) Value {
	h := sha3.NewLegacyKeccak256()
	h.Write(c.salt[:])
	h.Write(Word(tick))
	h.Write(Word(discriminator))
	var v Value
	copy(v[:], h.Sum(nil))
	return v
}

// Scalar implements Provider.
func (c *Chain) Scalar() uint64 {
	return c.ScalarAt(c.clock.CurrentTick())
}

// ScalarAt returns the chain-state scalar for tick.
func (c *Chain) ScalarAt(tick uint64) uint64 {
	h := sha3.NewLegacyKeccak256()
	h.Write(c.salt[:])
	h.Write([]byte("scalar"))
	h.Write(Word(tick))
	return binary.BigEndian.Uint64(h.Sum(nil)[:8])
}

// NewSalt generates a random salt using crypto/rand.
func NewSalt() (Value, error) {
	var v Value
	if _, err := crand.Read(v[:]); err != nil {
		return v, fmt.Errorf("read random salt: %w", err)
	}
	return v, nil
}
