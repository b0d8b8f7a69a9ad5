// Package trie implements a persistent binary Patricia trie whose root hash
// commits to a set of key/value entries, together with construction and
// verification of existence and non-existence proofs over that commitment.
package trie

import (
	"time"

	"github.com/ethereum/go-ethereum/log"

	"github.com/latticechain/authmap/bitpath"
	"github.com/latticechain/authmap/storage"
)

// routingPath hashes an external key down to its fixed-length routing path.
func routingPath(key []byte) bitpath.Path {
	return bitpath.FromHash(keccak(key))
}

// Map is the trie engine: insertion, deletion, lookup, and root-hash
// evaluation over a storage.Database. It is single-writer; readers may run
// concurrently against a consistent snapshot of the backing store.
type Map struct {
	store   *nodeStore
	db      storage.Database
	metrics *metricsSet
}

// Option configures a Map at construction time.
type Option func(*Map)

// WithCacheSize enables a bounded read-through node cache of the given size
// in bytes. Without this option the trie runs uncached; behavior is
// identical either way.
func WithCacheSize(bytes int) Option {
	return func(m *Map) { m.store = newNodeStore(m.db, bytes) }
}

// New builds a Map over db. The trie starts empty unless db already holds a
// root pointer from a prior session.
func New(db storage.Database, opts ...Option) *Map {
	m := &Map{db: db, metrics: newMetrics()}
	m.store = newNodeStore(db, 0)
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Get looks up key and returns its value, or (nil, nil) if absent.
func (m *Map) Get(key []byte) ([]byte, error) {
	defer func(start time.Time) { observeLatency(m.metrics.opLatency, "get", start) }(time.Now())

	p := routingPath(key)
	root, hasRoot, err := m.store.getRoot()
	if err != nil {
		return nil, err
	}
	if !hasRoot {
		m.metrics.gets.WithLabelValues("miss").Inc()
		return nil, nil
	}
	v, err := m.getAt(ChildRef{Prefix: root.Prefix, Hash: root.Hash}, p)
	if err != nil {
		return nil, err
	}
	if v == nil {
		m.metrics.gets.WithLabelValues("miss").Inc()
	} else {
		m.metrics.gets.WithLabelValues("hit").Inc()
	}
	return v, nil
}

func (m *Map) getAt(ref ChildRef, p bitpath.Path) ([]byte, error) {
	node, ok, err := m.store.get(ref.Prefix)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, &StorageError{Op: "get", Err: errShortNodeEncoding}
	}
	switch n := node.(type) {
	case *LeafNode:
		if n.Path.Equal(p) {
			return n.Value, nil
		}
		return nil, nil
	case *BranchNode:
		child := n.Left
		if p.Bit(n.Prefix.Len()) == 1 {
			child = n.Right
		}
		if !p.StartsWith(child.Prefix) {
			return nil, nil
		}
		return m.getAt(child, p)
	}
	return nil, nil
}

// Put inserts or overwrites key with value.
func (m *Map) Put(key, value []byte) error {
	defer func(start time.Time) { observeLatency(m.metrics.opLatency, "put", start) }(time.Now())

	p := routingPath(key)
	v := append([]byte{}, value...)
	batch := m.db.NewBatch()

	root, hasRoot, err := m.store.getRoot()
	if err != nil {
		return err
	}

	var newRoot ChildRef
	if !hasRoot {
		leaf := &LeafNode{Path: p, Value: v}
		if err := m.store.put(batch, p, leaf); err != nil {
			return err
		}
		newRoot = ChildRef{Prefix: p, Hash: leaf.contentHash()}
		m.metrics.mutations.WithLabelValues("insert").Inc()
	} else {
		outcome := ""
		newRoot, outcome, err = m.putChild(batch, ChildRef{Prefix: root.Prefix, Hash: root.Hash}, p, v)
		if err != nil {
			return err
		}
		m.metrics.mutations.WithLabelValues(outcome).Inc()
	}

	if err := m.store.putRoot(batch, rootPointer{Prefix: newRoot.Prefix, Hash: newRoot.Hash}); err != nil {
		return err
	}
	if err := batch.Write(); err != nil {
		log.Error("trie put failed to commit", "err", err)
		return &StorageError{Op: "commit", Err: err}
	}
	log.Debug("trie put", "path", p, "root", newRoot.Hash)
	return nil
}

// putChild inserts p/value below ref, returning the new ref for that
// position and a label describing what happened, for metrics.
func (m *Map) putChild(batch storage.Batch, ref ChildRef, p bitpath.Path, value []byte) (ChildRef, string, error) {
	matchLen := ref.Prefix.CommonPrefix(p).Len()

	if matchLen == ref.Prefix.Len() {
		node, ok, err := m.store.get(ref.Prefix)
		if err != nil {
			return ChildRef{}, "", err
		}
		if !ok {
			return ChildRef{}, "", &StorageError{Op: "put", Err: errShortNodeEncoding}
		}
		switch n := node.(type) {
		case *LeafNode:
			// ref.Prefix.Len() == bitpath.MaxLen here, so matchLen == MaxLen means p == n.Path exactly.
			n.Value = value
			if err := m.store.put(batch, ref.Prefix, n); err != nil {
				return ChildRef{}, "", err
			}
			return ChildRef{Prefix: ref.Prefix, Hash: n.contentHash()}, "overwrite", nil
		case *BranchNode:
			bit := p.Bit(n.Prefix.Len())
			child := &n.Left
			if bit == 1 {
				child = &n.Right
			}
			newChild, outcome, err := m.putChild(batch, *child, p, value)
			if err != nil {
				return ChildRef{}, "", err
			}
			*child = newChild
			if err := m.store.put(batch, n.Prefix, n); err != nil {
				return ChildRef{}, "", err
			}
			return ChildRef{Prefix: n.Prefix, Hash: n.contentHash()}, outcome, nil
		}
	}

	// Split: ref names a node whose prefix diverges from p at bit matchLen.
	// The old subtree is left untouched at its existing storage key; a new
	// branch at the common prefix gets the old subtree and a fresh leaf as
	// children.
	cp := ref.Prefix.Prefix(matchLen)
	newLeaf := &LeafNode{Path: p, Value: value}
	if err := m.store.put(batch, p, newLeaf); err != nil {
		return ChildRef{}, "", err
	}
	newLeafRef := ChildRef{Prefix: p, Hash: newLeaf.contentHash()}

	branch := &BranchNode{Prefix: cp}
	if p.Bit(matchLen) == 0 {
		branch.Left, branch.Right = newLeafRef, ref
	} else {
		branch.Left, branch.Right = ref, newLeafRef
	}
	if err := m.store.put(batch, cp, branch); err != nil {
		return ChildRef{}, "", err
	}
	return ChildRef{Prefix: cp, Hash: branch.contentHash()}, "split", nil
}

// Remove deletes key if present; it is a no-op otherwise.
func (m *Map) Remove(key []byte) error {
	defer func(start time.Time) { observeLatency(m.metrics.opLatency, "remove", start) }(time.Now())

	p := routingPath(key)
	root, hasRoot, err := m.store.getRoot()
	if err != nil {
		return err
	}
	if !hasRoot {
		m.metrics.mutations.WithLabelValues("noop").Inc()
		return nil
	}

	batch := m.db.NewBatch()
	node, ok, err := m.store.get(root.Prefix)
	if err != nil {
		return err
	}
	if !ok {
		return &StorageError{Op: "remove", Err: errShortNodeEncoding}
	}

	if leaf, isLeaf := node.(*LeafNode); isLeaf {
		if !leaf.Path.Equal(p) {
			m.metrics.mutations.WithLabelValues("noop").Inc()
			return nil
		}
		if err := m.store.delete(batch, root.Prefix); err != nil {
			return err
		}
		if err := m.store.deleteRoot(batch); err != nil {
			return err
		}
		if err := batch.Write(); err != nil {
			log.Error("trie remove failed to commit", "err", err)
			return &StorageError{Op: "commit", Err: err}
		}
		log.Debug("trie remove emptied trie", "path", p)
		return nil
	}

	newRef, removed, err := m.removeChild(batch, ChildRef{Prefix: root.Prefix, Hash: root.Hash}, p)
	if err != nil {
		return err
	}
	if !removed {
		m.metrics.mutations.WithLabelValues("noop").Inc()
		return nil
	}
	// newRef is never nil here: a branch root always has two children, so
	// removing one leaf from beneath it can collapse at most down to the
	// surviving sibling, never to nothing.
	if err := m.store.putRoot(batch, rootPointer{Prefix: newRef.Prefix, Hash: newRef.Hash}); err != nil {
		return err
	}
	if err := batch.Write(); err != nil {
		log.Error("trie remove failed to commit", "err", err)
		return &StorageError{Op: "commit", Err: err}
	}
	m.metrics.mutations.WithLabelValues("collapse").Inc()
	log.Debug("trie remove", "path", p, "root", newRef.Hash)
	return nil
}

// removeChild deletes p from beneath ref. It returns the new ChildRef for
// this position, whether anything was removed, and an error. removed is
// false (no-op) when p is not present beneath ref.
func (m *Map) removeChild(batch storage.Batch, ref ChildRef, p bitpath.Path) (*ChildRef, bool, error) {
	node, ok, err := m.store.get(ref.Prefix)
	if err != nil {
		return nil, false, err
	}
	if !ok {
		return nil, false, &StorageError{Op: "remove", Err: errShortNodeEncoding}
	}

	switch n := node.(type) {
	case *LeafNode:
		if !n.Path.Equal(p) {
			return &ref, false, nil
		}
		if err := m.store.delete(batch, ref.Prefix); err != nil {
			return nil, false, err
		}
		return nil, true, nil

	case *BranchNode:
		bit := p.Bit(n.Prefix.Len())
		child, sibling := &n.Left, &n.Right
		if bit == 1 {
			child, sibling = &n.Right, &n.Left
		}
		if !p.StartsWith(child.Prefix) {
			return &ref, false, nil
		}

		newChild, removed, err := m.removeChild(batch, *child, p)
		if err != nil {
			return nil, false, err
		}
		if !removed {
			return &ref, false, nil
		}

		if newChild == nil {
			// child's subtree vanished: this branch now has one child left
			// and must be collapsed away entirely.
			if err := m.store.delete(batch, n.Prefix); err != nil {
				return nil, false, err
			}
			return sibling, true, nil
		}

		*child = *newChild
		if err := m.store.put(batch, n.Prefix, n); err != nil {
			return nil, false, err
		}
		return &ChildRef{Prefix: n.Prefix, Hash: n.contentHash()}, true, nil
	}
	return &ref, false, nil
}

// RootHash returns the current root hash, or EmptyHash if the trie holds no
// entries.
func (m *Map) RootHash() (Hash, error) {
	root, hasRoot, err := m.store.getRoot()
	if err != nil {
		return Hash{}, err
	}
	if !hasRoot {
		return EmptyHash, nil
	}
	return root.Hash, nil
}
