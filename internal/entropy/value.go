// Package entropy supplies the seed material and tick clock the evolution
// engine draws on.
//
// A Value plays the role of a block hash: 256 bits that nobody can predict
// before the tick they belong to, but that anyone can recompute afterwards.
// Providers must therefore be pure functions of their salt, the current
// tick and the caller's discriminator.
package entropy

import (
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"math/big"
)

// Size is the width of a Value in bytes.
const Size = 32

// Value is 256 bits of seed material, interpreted big-endian when treated as a number.
type Value [Size]byte

// FromUint64 returns the Value whose numeric interpretation is n.
func FromUint64(n uint64) Value {
	var v Value
	binary.BigEndian.PutUint64(v[Size-8:], n)
	return v
}

// ParseValue decodes a hex string (with or without 0x prefix) into a Value.
func ParseValue(s string) (Value, error) {
	var v Value
	if len(s) >= 2 && s[0] == '0' && (s[1] == 'x' || s[1] == 'X') {
		s = s[2:]
	}
	raw, err := hex.DecodeString(s)
	if err != nil {
		return v, fmt.Errorf("decode entropy value: %w", err)
	}
	if len(raw) != Size {
		return v, fmt.Errorf("entropy value must be %d bytes, got %d", Size, len(raw))
	}
	copy(v[:], raw)
	return v, nil
}

// Big returns the numeric interpretation of v.
func (v Value) Big() *big.Int {
	return new(big.Int).SetBytes(v[:])
}

// Mod returns v mod m. m must be non-zero.
func (v Value) Mod(m uint64) uint64 {
	r := new(big.Int).Mod(v.Big(), new(big.Int).SetUint64(m))
	return r.Uint64()
}

// IsZero reports whether every byte of v is zero.
func (v Value) IsZero() bool {
	return v == Value{}
}

// String returns the hex encoding of v with a 0x prefix.
func (v Value) String() string {
	return "0x" + hex.EncodeToString(v[:])
}

// MarshalText implements encoding.TextMarshaler.
func (v Value) MarshalText() ([]byte, error) {
	return []byte(v.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (v *Value) UnmarshalText(text []byte) error {
	parsed, err := ParseValue(string(text))
	if err != nil {
		return err
	}
	*v = parsed
	return nil
}

// Word encodes n as a 32-byte big-endian word, the packed width of a 256-bit integer.
func Word(n uint64) []byte {
	w := FromUint64(n)
	return w[:]
}
