package trie

import (
	"encoding/binary"

	"golang.org/x/crypto/sha3"
)

// HashSize is the width in bytes of every node and value hash.
const HashSize = 32

// Hash is a 32-byte digest identifying a node's content.
type Hash [HashSize]byte

// Domain-separation tags, pinned so hashes of different node kinds can never
// collide with one another regardless of their serialized content.
const (
	tagLeaf   byte = 0x00
	tagBranch byte = 0x01
	tagValue  byte = 0x02
	tagEmpty  byte = 0xFF
)

// EmptyHash is the root hash of a trie holding no entries.
var EmptyHash = keccak([]byte{tagEmpty})

func keccak(parts ...[]byte) Hash {
	d := sha3.NewLegacyKeccak256()
	for _, p := range parts {
		d.Write(p)
	}
	var h Hash
	d.Sum(h[:0])
	return h
}

// encodeLen packs a bit-length (0..256) as a big-endian uint16, wide enough
// to carry the full routing-path length without ambiguity.
func encodeLen(n int) []byte {
	var b [2]byte
	binary.BigEndian.PutUint16(b[:], uint16(n))
	return b[:]
}

func hashValue(v []byte) Hash {
	return keccak([]byte{tagValue}, v)
}
