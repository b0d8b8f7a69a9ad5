package trie

import (
	"errors"
	"testing"
)

func TestVerifyRejectsTamperedRoot(t *testing.T) {
	m := newTestMap()
	must(t, m.Put([]byte("apple"), []byte("A")))
	must(t, m.Put([]byte("apricot"), []byte("B")))
	root, _ := m.RootHash()

	proof, err := m.Prove([]byte("apple"))
	if err != nil {
		t.Fatalf("Prove: %v", err)
	}

	// Flip a bit of a Hash-kind sibling entry, so the reconstructed root
	// no longer matches the true root, but the proof's own shape stays
	// intact (still well-ordered, still non-nested).
	tampered := false
	for i := range proof.Entries {
		if proof.Entries[i].Value.Kind == ProofValueHash {
			proof.Entries[i].Value.Hash[0] ^= 0xFF
			tampered = true
			break
		}
	}
	if !tampered {
		t.Fatal("test setup: expected at least one Hash-kind sibling entry")
	}

	_, err = Verify(proof, root)
	if err == nil {
		t.Fatal("expected Verify to reject a tampered proof")
	}
	var mismatch *ProofRootMismatchError
	if !errors.As(err, &mismatch) {
		t.Fatalf("expected ProofRootMismatchError, got %T: %v", err, err)
	}
}

func TestVerifyRejectsReorderedEntries(t *testing.T) {
	m := newTestMap()
	keys := []string{"alpha", "beta", "gamma", "delta"}
	for i, k := range keys {
		must(t, m.Put([]byte(k), []byte{byte(i)}))
	}
	root, _ := m.RootHash()

	var all [][]byte
	for _, k := range keys {
		all = append(all, []byte(k))
	}
	proof, err := m.ProveMulti(all)
	if err != nil {
		t.Fatalf("ProveMulti: %v", err)
	}
	if len(proof.Entries) < 2 {
		t.Fatal("test setup: need at least two entries to reorder")
	}
	proof.Entries[0], proof.Entries[1] = proof.Entries[1], proof.Entries[0]

	_, err = Verify(proof, root)
	if err == nil {
		t.Fatal("expected Verify to reject a reordered proof")
	}
	var malformed *ProofMalformedError
	if !errors.As(err, &malformed) {
		t.Fatalf("expected ProofMalformedError, got %T: %v", err, err)
	}
}

func TestVerifyRejectsWrongRoot(t *testing.T) {
	m := newTestMap()
	must(t, m.Put([]byte("apple"), []byte("A")))
	proof, err := m.Prove([]byte("apple"))
	if err != nil {
		t.Fatalf("Prove: %v", err)
	}

	var wrongRoot Hash
	wrongRoot[0] = 0x42

	_, err = Verify(proof, wrongRoot)
	var mismatch *ProofRootMismatchError
	if !errors.As(err, &mismatch) {
		t.Fatalf("expected ProofRootMismatchError, got %T: %v", err, err)
	}
}

func TestVerifyRejectsNestedEntries(t *testing.T) {
	m := newTestMap()
	must(t, m.Put([]byte("apple"), []byte("A")))
	must(t, m.Put([]byte("apricot"), []byte("B")))
	root, _ := m.RootHash()

	proof, err := m.ProveMulti([][]byte{[]byte("apple"), []byte("apricot")})
	if err != nil {
		t.Fatalf("ProveMulti: %v", err)
	}
	if len(proof.Entries) < 2 {
		t.Fatal("test setup: need at least two entries")
	}
	// Replace the second entry's path with a prefix of the first, to
	// construct an artificial path-nesting violation.
	proof.Entries[1].Path = proof.Entries[0].Path.Prefix(proof.Entries[0].Path.Len() - 1)

	_, err = Verify(proof, root)
	if err == nil {
		t.Fatal("expected Verify to reject nested entries")
	}
	var malformed *ProofMalformedError
	if !errors.As(err, &malformed) {
		t.Fatalf("expected ProofMalformedError, got %T: %v", err, err)
	}
}

func TestVerifyUncoveredKey(t *testing.T) {
	m := newTestMap()
	keys := []string{"alpha", "beta", "gamma"}
	for i, k := range keys {
		must(t, m.Put([]byte(k), []byte{byte(i)}))
	}
	root, _ := m.RootHash()

	proof, err := m.Prove([]byte("alpha"))
	if err != nil {
		t.Fatalf("Prove: %v", err)
	}
	// Append "beta" to the requested keys without widening the proof's
	// entries: the existing collapsed-hash entry covering beta's subtree
	// never gets opened, so the verifier cannot answer for it.
	proof.RequestedKeys = append(proof.RequestedKeys, []byte("beta"))

	_, err = Verify(proof, root)
	if err == nil {
		t.Fatal("expected Verify to reject an under-covered key")
	}
	var uncovered *ProofKeyUncoveredError
	if !errors.As(err, &uncovered) {
		t.Fatalf("expected ProofKeyUncoveredError, got %T: %v", err, err)
	}
}

func TestVerifyEmptyProofAgainstEmptyRoot(t *testing.T) {
	m := newTestMap()
	root, _ := m.RootHash()

	proof := &MapProof{RequestedKeys: [][]byte{[]byte("k")}}
	got, err := Verify(proof, root)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if v, ok := got["k"]; !ok || v != nil {
		t.Fatalf("expected absent, got %q (present=%v)", v, ok)
	}
}

func TestVerifySingleHashEntryWithRequestedKeysIsMalformed(t *testing.T) {
	proof := &MapProof{
		Entries:       []ProofEntry{{Path: routingPath([]byte("x")).Prefix(4), Value: HashValue(Hash{1})}},
		RequestedKeys: [][]byte{[]byte("k")},
	}
	_, err := Verify(proof, Hash{1})
	var malformed *ProofMalformedError
	if !errors.As(err, &malformed) {
		t.Fatalf("expected ProofMalformedError, got %T: %v", err, err)
	}
}
