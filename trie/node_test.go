package trie

import (
	"bytes"
	"testing"

	"github.com/latticechain/authmap/bitpath"
)

func TestEncodeDecodeLeafNode(t *testing.T) {
	path := routingPath([]byte("apple"))
	leaf := &LeafNode{Path: path, Value: []byte("A")}

	raw := encodeNode(leaf)
	decoded, err := decodeNode(raw)
	if err != nil {
		t.Fatalf("decodeNode: %v", err)
	}
	got, ok := decoded.(*LeafNode)
	if !ok {
		t.Fatalf("expected *LeafNode, got %T", decoded)
	}
	if !got.Path.Equal(leaf.Path) {
		t.Fatal("decoded path mismatch")
	}
	if !bytes.Equal(got.Value, leaf.Value) {
		t.Fatalf("decoded value = %q, want %q", got.Value, leaf.Value)
	}
	if got.contentHash() != leaf.contentHash() {
		t.Fatal("decoded leaf hashes differently than original")
	}
}

func TestEncodeDecodeBranchNode(t *testing.T) {
	leftPath := routingPath([]byte("apple"))
	rightPath := routingPath([]byte("banana"))
	cp := leftPath.CommonPrefix(rightPath)

	branch := &BranchNode{
		Prefix: cp,
		Left:   ChildRef{Prefix: leftPath, Hash: hashLeaf(leftPath, []byte("A"))},
		Right:  ChildRef{Prefix: rightPath, Hash: hashLeaf(rightPath, []byte("B"))},
	}

	raw := encodeNode(branch)
	decoded, err := decodeNode(raw)
	if err != nil {
		t.Fatalf("decodeNode: %v", err)
	}
	got, ok := decoded.(*BranchNode)
	if !ok {
		t.Fatalf("expected *BranchNode, got %T", decoded)
	}
	if !got.Prefix.Equal(branch.Prefix) {
		t.Fatal("decoded prefix mismatch")
	}
	if got.Left.Hash != branch.Left.Hash || !got.Left.Prefix.Equal(branch.Left.Prefix) {
		t.Fatal("decoded left child mismatch")
	}
	if got.Right.Hash != branch.Right.Hash || !got.Right.Prefix.Equal(branch.Right.Prefix) {
		t.Fatal("decoded right child mismatch")
	}
	if got.contentHash() != branch.contentHash() {
		t.Fatal("decoded branch hashes differently than original")
	}
}

func TestDecodeNodeRejectsShortInput(t *testing.T) {
	if _, err := decodeNode(nil); err != errShortNodeEncoding {
		t.Fatalf("expected errShortNodeEncoding for empty input, got %v", err)
	}
	if _, err := decodeNode([]byte{nodeTypeLeaf, 0x00}); err != errShortNodeEncoding {
		t.Fatalf("expected errShortNodeEncoding for truncated leaf, got %v", err)
	}
}

func TestDecodeNodeRejectsUnknownType(t *testing.T) {
	if _, err := decodeNode([]byte{0xFF}); err != errUnknownNodeType {
		t.Fatalf("expected errUnknownNodeType, got %v", err)
	}
}

func TestDecodeNodeRejectsInconsistentBranchPrefix(t *testing.T) {
	leftPath := routingPath([]byte("apple"))
	rightPath := routingPath([]byte("banana"))
	cp := leftPath.CommonPrefix(rightPath)

	branch := &BranchNode{
		Prefix: cp,
		Left:   ChildRef{Prefix: leftPath, Hash: hashLeaf(leftPath, []byte("A"))},
		Right:  ChildRef{Prefix: rightPath, Hash: hashLeaf(rightPath, []byte("B"))},
	}
	raw := encodeNode(branch)

	// Corrupt the stored prefix length field (byte offset 1-2) so it no
	// longer matches what the children's common prefix recomputes to.
	corrupted := append([]byte{}, raw...)
	corrupted[1] = 0xFF
	corrupted[2] = 0xFF

	if _, err := decodeNode(corrupted); err != errShortNodeEncoding {
		t.Fatalf("expected errShortNodeEncoding for inconsistent prefix, got %v", err)
	}
}

func TestContentHashExcludesBranchOwnPrefix(t *testing.T) {
	// Construct two paths with a guaranteed non-empty common prefix
	// (both start with a 1 bit), rather than relying on the hash of
	// arbitrary keys to happen to share one.
	leftPath := bitpath.FromBits([]byte{0b10000000}, 8)
	rightPath := bitpath.FromBits([]byte{0b10000001}, 8)
	cp := leftPath.CommonPrefix(rightPath)
	if cp.Len() == 0 {
		t.Fatal("test setup: expected a non-empty common prefix")
	}

	left := ChildRef{Prefix: leftPath, Hash: hashLeaf(leftPath, []byte("A"))}
	right := ChildRef{Prefix: rightPath, Hash: hashLeaf(rightPath, []byte("B"))}

	a := &BranchNode{Prefix: cp, Left: left, Right: right}
	// A different own-prefix (still a valid prefix of both children, just
	// shorter) must not change the content hash: only children matter.
	b := &BranchNode{Prefix: cp.Prefix(cp.Len() - 1), Left: left, Right: right}

	if a.contentHash() != b.contentHash() {
		t.Fatal("branch content hash must not depend on the branch's own prefix")
	}
}

func TestBitpathSanityForRoutingPaths(t *testing.T) {
	p := routingPath([]byte("apple"))
	if p.Len() != bitpath.MaxLen {
		t.Fatalf("routing path length = %d, want %d", p.Len(), bitpath.MaxLen)
	}
}
