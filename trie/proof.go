package trie

import (
	"time"

	"github.com/latticechain/authmap/bitpath"
)

// ProofValueKind distinguishes a revealed leaf value from an opaque sibling
// hash within a proof entry.
type ProofValueKind uint8

const (
	ProofValueLeaf ProofValueKind = iota
	ProofValueHash
)

// ProofValue is either the revealed bytes of a leaf or the hash of a
// collapsed subtree.
type ProofValue struct {
	Kind  ProofValueKind
	Value []byte
	Hash  Hash
}

// LeafValue builds a revealed-leaf proof value.
func LeafValue(v []byte) ProofValue {
	return ProofValue{Kind: ProofValueLeaf, Value: append([]byte{}, v...)}
}

// HashValue builds an opaque sibling-hash proof value.
func HashValue(h Hash) ProofValue {
	return ProofValue{Kind: ProofValueHash, Hash: h}
}

// ProofEntry pairs a routing path with what the proof reveals at that path.
type ProofEntry struct {
	Path  bitpath.Path
	Value ProofValue
}

// MapProof is the payload a verifier needs: a list of entries in strictly
// increasing routing-path order, plus the external keys the proof was built
// to attest (for existence or non-existence).
type MapProof struct {
	Entries       []ProofEntry
	RequestedKeys [][]byte
}

// Prove builds a single-key proof for key.
func (m *Map) Prove(key []byte) (*MapProof, error) {
	return m.ProveMulti([][]byte{key})
}

// ProveMulti builds a proof that attests existence or non-existence for
// every key in keys.
func (m *Map) ProveMulti(keys [][]byte) (*MapProof, error) {
	defer func(start time.Time) { observeLatency(m.metrics.opLatency, "prove", start) }(time.Now())

	paths := make([]bitpath.Path, len(keys))
	for i, k := range keys {
		paths[i] = routingPath(k)
	}

	proof := &MapProof{RequestedKeys: append([][]byte{}, keys...)}

	root, hasRoot, err := m.store.getRoot()
	if err != nil {
		return nil, err
	}
	if hasRoot {
		var entries []ProofEntry
		if err := m.proveKeys(ChildRef{Prefix: root.Prefix, Hash: root.Hash}, paths, &entries); err != nil {
			return nil, err
		}
		proof.Entries = entries
	}

	mode := "single"
	if len(keys) > 1 {
		mode = "batch"
	}
	m.metrics.proofsBuilt.WithLabelValues(mode).Inc()
	return proof, nil
}

// proveKeys walks the subtree at ref, emitting one entry per leaf or
// collapsed-subtree boundary needed to attest every path in paths. A side of
// a branch is only descended into when at least one requested path actually
// continues into it (StartsWith its child prefix); otherwise the whole side
// collapses to a single Hash entry. Because left subtrees always sort before
// right subtrees, entries come out in strictly increasing routing-path order
// for free — this is the only shape the verifier requires.
func (m *Map) proveKeys(ref ChildRef, paths []bitpath.Path, out *[]ProofEntry) error {
	node, ok, err := m.store.get(ref.Prefix)
	if err != nil {
		return err
	}
	if !ok {
		return &StorageError{Op: "prove", Err: errShortNodeEncoding}
	}

	switch n := node.(type) {
	case *LeafNode:
		// Always reveal the leaf itself rather than just its hash. A
		// mismatch can only occur here when ref is the trie's single
		// root leaf (any recursive descent from a branch only reaches a
		// leaf when anyStartsWith already guaranteed a requested path
		// equals it) — and a single-entry trie's proof has nothing else
		// to hide behind: the whole root commitment *is* this leaf, so
		// proving any other key absent requires exposing it in full, not
		// just its hash, per reconstructRoot's singleton-entry rule.
		*out = append(*out, ProofEntry{Path: n.Path, Value: LeafValue(n.Value)})
		return nil

	case *BranchNode:
		bitPos := n.Prefix.Len()
		var left, right []bitpath.Path
		for _, p := range paths {
			if p.Bit(bitPos) == 0 {
				left = append(left, p)
			} else {
				right = append(right, p)
			}
		}

		if anyStartsWith(left, n.Left.Prefix) {
			if err := m.proveKeys(n.Left, left, out); err != nil {
				return err
			}
		} else {
			*out = append(*out, ProofEntry{Path: n.Left.Prefix, Value: HashValue(n.Left.Hash)})
		}

		if anyStartsWith(right, n.Right.Prefix) {
			if err := m.proveKeys(n.Right, right, out); err != nil {
				return err
			}
		} else {
			*out = append(*out, ProofEntry{Path: n.Right.Prefix, Value: HashValue(n.Right.Hash)})
		}
		return nil
	}
	return nil
}

func anyStartsWith(paths []bitpath.Path, prefix bitpath.Path) bool {
	for _, p := range paths {
		if p.StartsWith(prefix) {
			return true
		}
	}
	return false
}
