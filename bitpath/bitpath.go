// Package bitpath implements the fixed-length bit string used to route
// descent through the binary Patricia trie in package trie. Every key is
// hashed down to a 256-bit routing path before it enters the trie; branch
// prefixes are themselves bit-paths, just shorter than 256 bits.
package bitpath

import (
	"bytes"
	"fmt"

	"github.com/holiman/uint256"
)

// MaxLen is the number of bits in a full routing path (B in the spec).
const MaxLen = 256

const byteLen = MaxLen / 8

// Path is an immutable bit string of up to MaxLen bits. The zero value is
// the empty (zero-length) path.
type Path struct {
	bits   [byteLen]byte
	length int
}

// FromHash builds the full-length routing path from a 32-byte hash.
func FromHash(h [32]byte) Path {
	return Path{bits: h, length: MaxLen}
}

// FromBits builds a path of the given bit length from a big-endian packed
// byte slice. Bits beyond length are ignored. Panics if length is out of
// [0, MaxLen] or b is too short to hold length bits.
func FromBits(b []byte, length int) Path {
	if length < 0 || length > MaxLen {
		panic(fmt.Sprintf("bitpath: invalid length %d", length))
	}
	nbytes := (length + 7) / 8
	if len(b) < nbytes {
		panic("bitpath: buffer shorter than length")
	}
	var p Path
	copy(p.bits[:nbytes], b[:nbytes])
	p.length = length
	p.maskTail()
	return p
}

// maskTail zeroes out any bits beyond p.length within the last meaningful
// byte, so two paths built from differently-padded buffers compare equal.
func (p *Path) maskTail() {
	if p.length == MaxLen {
		return
	}
	fullBytes := p.length / 8
	rem := p.length % 8
	if rem != 0 {
		mask := byte(0xFF << (8 - rem))
		p.bits[fullBytes] &= mask
		fullBytes++
	}
	for i := fullBytes; i < byteLen; i++ {
		p.bits[i] = 0
	}
}

// Len reports the number of significant bits in the path.
func (p Path) Len() int { return p.length }

// Bit returns the bit at position i (0 = most significant). Panics if i is
// out of range.
func (p Path) Bit(i int) uint8 {
	if i < 0 || i >= p.length {
		panic(fmt.Sprintf("bitpath: bit index %d out of range (len %d)", i, p.length))
	}
	return (p.bits[i/8] >> (7 - uint(i%8))) & 1
}

// Prefix returns the first k bits of p as its own path. Panics if k is out
// of [0, p.Len()].
func (p Path) Prefix(k int) Path {
	if k < 0 || k > p.length {
		panic(fmt.Sprintf("bitpath: prefix length %d out of range (len %d)", k, p.length))
	}
	out := Path{bits: p.bits, length: k}
	out.maskTail()
	return out
}

// Suffix returns the bits of p from position k onward, re-based so the
// result's bit 0 is p's bit k. Panics if k is out of [0, p.Len()].
func (p Path) Suffix(k int) Path {
	if k < 0 || k > p.length {
		panic(fmt.Sprintf("bitpath: suffix offset %d out of range (len %d)", k, p.length))
	}
	n := p.length - k
	var out Path
	for i := 0; i < n; i++ {
		if p.Bit(k+i) == 1 {
			out.bits[i/8] |= 1 << (7 - uint(i%8))
		}
	}
	out.length = n
	return out
}

// CommonPrefix returns the longest path that prefixes both p and other.
func (p Path) CommonPrefix(other Path) Path {
	max := p.length
	if other.length < max {
		max = other.length
	}
	i := 0
	for ; i < max; i++ {
		if p.Bit(i) != other.Bit(i) {
			break
		}
	}
	return p.Prefix(i)
}

// StartsWith reports whether other is a prefix of p.
func (p Path) StartsWith(other Path) bool {
	if other.length > p.length {
		return false
	}
	return p.Prefix(other.length).Equal(other)
}

// Equal reports whether p and other carry the same length and bits.
func (p Path) Equal(other Path) bool {
	return p.length == other.length && p.bits == other.bits
}

// Cmp orders two paths. A path is "less than" another only when it is a
// proper prefix of the other; otherwise comparison is lexicographic over
// the shared bits. For two routing paths (both length MaxLen) this reduces
// to plain lexicographic (equivalently numeric) ordering.
func (p Path) Cmp(other Path) int {
	if p.length == MaxLen && other.length == MaxLen {
		a := new(uint256.Int).SetBytes32(p.bits[:])
		b := new(uint256.Int).SetBytes32(other.bits[:])
		return a.Cmp(b)
	}
	max := p.length
	if other.length < max {
		max = other.length
	}
	for i := 0; i < max; i++ {
		pb, ob := p.Bit(i), other.Bit(i)
		if pb != ob {
			if pb < ob {
				return -1
			}
			return 1
		}
	}
	switch {
	case p.length < other.length:
		return -1
	case p.length > other.length:
		return 1
	default:
		return 0
	}
}

// Less reports whether p sorts strictly before other under Cmp.
func (p Path) Less(other Path) bool { return p.Cmp(other) < 0 }

// Bytes returns the big-endian packed byte representation, its length
// equal to ceil(Len()/8). Bits beyond Len() within the final byte are zero.
func (p Path) Bytes() []byte {
	n := (p.length + 7) / 8
	out := make([]byte, n)
	copy(out, p.bits[:n])
	return out
}

// String renders the path as a 0/1 string, for debugging and test output.
func (p Path) String() string {
	var b bytes.Buffer
	for i := 0; i < p.length; i++ {
		if p.Bit(i) == 1 {
			b.WriteByte('1')
		} else {
			b.WriteByte('0')
		}
	}
	return b.String()
}
