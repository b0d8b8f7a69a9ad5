package trie

import (
	"errors"

	"github.com/latticechain/authmap/bitpath"
)

// Node is the closed tagged variant of the two node shapes: a branch routes,
// a leaf carries a value. There is no third kind and no open polymorphism.
type Node interface {
	contentHash() Hash
}

// ChildRef is how a branch node refers to a child: the child's own routing
// prefix plus its content hash. Children are never referenced by pointer or
// by storage address directly — the storage key is always recoverable from
// the prefix alone.
type ChildRef struct {
	Prefix bitpath.Path
	Hash   Hash
}

// LeafNode carries a full-length routing path and the value stored there.
type LeafNode struct {
	Path  bitpath.Path
	Value []byte
}

// contentHash implements hash(leaf) = H(TAG_LEAF || path || len(path) || H(value)).
func (n *LeafNode) contentHash() Hash {
	return hashLeaf(n.Path, n.Value)
}

func hashLeaf(path bitpath.Path, value []byte) Hash {
	vh := hashValue(value)
	return keccak([]byte{tagLeaf}, path.Bytes(), encodeLen(path.Len()), vh[:])
}

// BranchNode always has exactly two children, selected by the bit
// immediately following the branch's own prefix.
type BranchNode struct {
	Prefix bitpath.Path
	Left   ChildRef // child whose prefix continues the branch's prefix with bit 0
	Right  ChildRef // child whose prefix continues the branch's prefix with bit 1
}

// contentHash implements hash(branch), which depends only on the children,
// not on the branch's own prefix — a branch is always reached through a
// parent ChildRef that already names that prefix.
func (n *BranchNode) contentHash() Hash {
	return hashBranch(n.Left.Prefix, n.Left.Hash, n.Right.Prefix, n.Right.Hash)
}

func hashBranch(leftPrefix bitpath.Path, leftHash Hash, rightPrefix bitpath.Path, rightHash Hash) Hash {
	return keccak(
		[]byte{tagBranch},
		leftPrefix.Bytes(), encodeLen(leftPrefix.Len()), leftHash[:],
		rightPrefix.Bytes(), encodeLen(rightPrefix.Len()), rightHash[:],
	)
}

const (
	nodeTypeLeaf   byte = 1
	nodeTypeBranch byte = 2
)

var (
	errShortNodeEncoding = errors.New("trie: truncated node encoding")
	errUnknownNodeType   = errors.New("trie: unknown node type byte")
)

// encodeNode serializes a node for storage. Every prefix field is padded to
// a constant 32 bytes so the layout doesn't depend on path length. Layout:
//
//	leaf:   0x01 | pathLen(2) | pathBytes(32) | valueLen(4) | value
//	branch: 0x02 | prefixLen(2) | prefixBytes(32)
//	        | leftPrefixLen(2)  | leftPrefixBytes(32)  | leftHash(32)
//	        | rightPrefixLen(2) | rightPrefixBytes(32) | rightHash(32)
func encodeNode(n Node) []byte {
	switch v := n.(type) {
	case *LeafNode:
		out := make([]byte, 0, 1+2+32+4+len(v.Value))
		out = append(out, nodeTypeLeaf)
		out = append(out, encodeLen(v.Path.Len())...)
		out = append(out, fixedBytes(v.Path)...)
		var lb [4]byte
		putUint32(lb[:], uint32(len(v.Value)))
		out = append(out, lb[:]...)
		out = append(out, v.Value...)
		return out
	case *BranchNode:
		out := make([]byte, 0, 1+3*(2+32)+2*32)
		out = append(out, nodeTypeBranch)
		out = append(out, encodeLen(v.Prefix.Len())...)
		out = append(out, fixedBytes(v.Prefix)...)
		out = append(out, encodeLen(v.Left.Prefix.Len())...)
		out = append(out, fixedBytes(v.Left.Prefix)...)
		out = append(out, v.Left.Hash[:]...)
		out = append(out, encodeLen(v.Right.Prefix.Len())...)
		out = append(out, fixedBytes(v.Right.Prefix)...)
		out = append(out, v.Right.Hash[:]...)
		return out
	default:
		panic("trie: unknown node type")
	}
}

// fixedBytes pads a path's packed representation out to 32 bytes.
func fixedBytes(p bitpath.Path) []byte {
	var out [32]byte
	copy(out[:], p.Bytes())
	return out[:]
}

func putUint32(b []byte, v uint32) {
	b[0] = byte(v >> 24)
	b[1] = byte(v >> 16)
	b[2] = byte(v >> 8)
	b[3] = byte(v)
}

func getUint32(b []byte) uint32 {
	return uint32(b[0])<<24 | uint32(b[1])<<16 | uint32(b[2])<<8 | uint32(b[3])
}

func getUint16(b []byte) int {
	return int(b[0])<<8 | int(b[1])
}

// decodeNode is the inverse of encodeNode.
func decodeNode(raw []byte) (Node, error) {
	if len(raw) < 1 {
		return nil, errShortNodeEncoding
	}
	switch raw[0] {
	case nodeTypeLeaf:
		if len(raw) < 1+2+32+4 {
			return nil, errShortNodeEncoding
		}
		pathLen := getUint16(raw[1:3])
		path := bitpath.FromBits(raw[3:35], pathLen)
		valLen := getUint32(raw[35:39])
		if len(raw) < 39+int(valLen) {
			return nil, errShortNodeEncoding
		}
		value := append([]byte{}, raw[39:39+int(valLen)]...)
		return &LeafNode{Path: path, Value: value}, nil
	case nodeTypeBranch:
		const want = 1 + (2 + 32) + 2*(2+32+32)
		if len(raw) < want {
			return nil, errShortNodeEncoding
		}
		off := 1
		prefixLen := getUint16(raw[off : off+2])
		off += 2 + 32 // branch's own prefix is redundant with children; skip over it

		leftLen := getUint16(raw[off : off+2])
		off += 2
		leftPrefix := bitpath.FromBits(raw[off:off+32], leftLen)
		off += 32
		var leftHash Hash
		copy(leftHash[:], raw[off:off+32])
		off += 32

		rightLen := getUint16(raw[off : off+2])
		off += 2
		rightPrefix := bitpath.FromBits(raw[off:off+32], rightLen)
		off += 32
		var rightHash Hash
		copy(rightHash[:], raw[off:off+32])

		prefix := leftPrefix.CommonPrefix(rightPrefix)
		if prefix.Len() != prefixLen {
			return nil, errShortNodeEncoding
		}
		return &BranchNode{
			Prefix: prefix,
			Left:   ChildRef{Prefix: leftPrefix, Hash: leftHash},
			Right:  ChildRef{Prefix: rightPrefix, Hash: rightHash},
		}, nil
	default:
		return nil, errUnknownNodeType
	}
}
