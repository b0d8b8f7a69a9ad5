package trie

import (
	"sort"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/latticechain/authmap/bitpath"
)

// verifyMetrics is a package-level metrics set for the standalone Verify
// function, which (unlike Map's own operations) has no Map instance to hang
// its counters off of.
var verifyMetrics = newMetrics()

// Collectors returns the standalone verifier's Prometheus collectors, for
// callers that invoke Verify without going through a Map.
func VerifierCollectors() []prometheus.Collector {
	return []prometheus.Collector{verifyMetrics.verifications, verifyMetrics.opLatency}
}

// Verify reconstructs a candidate root hash from proof alone and checks it
// against expectedRoot. On success it returns, for every one of the proof's
// requested keys, the key's value (present) or nil (absent). It never
// "guesses" around malformed input: any structural defect, root mismatch, or
// under-covered key produces a single typed error.
func Verify(proof *MapProof, expectedRoot Hash) (map[string][]byte, error) {
	start := time.Now()
	result, err := verify(proof, expectedRoot)
	observeLatency(verifyMetrics.opLatency, "verify", start)
	verifyMetrics.verifications.WithLabelValues(verifyOutcome(err)).Inc()
	return result, err
}

func verifyOutcome(err error) string {
	switch err.(type) {
	case nil:
		return "accepted"
	case *ProofRootMismatchError:
		return "root_mismatch"
	case *ProofMalformedError:
		return "malformed"
	case *ProofKeyUncoveredError:
		return "key_uncovered"
	default:
		return "error"
	}
}

func verify(proof *MapProof, expectedRoot Hash) (map[string][]byte, error) {
	entries := proof.Entries

	for i := 0; i+1 < len(entries); i++ {
		if !entries[i].Path.Less(entries[i+1].Path) {
			return nil, &ProofMalformedError{Reason: "entries are not strictly increasing in routing-path order"}
		}
	}
	for _, e := range entries {
		if e.Value.Kind == ProofValueLeaf && e.Path.Len() != bitpath.MaxLen {
			return nil, &ProofMalformedError{Reason: "leaf entry does not carry a full-length routing path"}
		}
	}
	for i := range entries {
		for j := range entries {
			if i == j {
				continue
			}
			if entries[j].Path.StartsWith(entries[i].Path) {
				return nil, &ProofMalformedError{Reason: "one proof entry's path nests inside another's"}
			}
		}
	}

	candidateRoot, err := reconstructRoot(entries, proof.RequestedKeys)
	if err != nil {
		return nil, err
	}
	if candidateRoot != expectedRoot {
		return nil, &ProofRootMismatchError{Expected: expectedRoot, Got: candidateRoot}
	}

	result := make(map[string][]byte, len(proof.RequestedKeys))
	for _, key := range proof.RequestedKeys {
		p := routingPath(key)
		value, ok, err := answerFor(entries, p)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, &ProofKeyUncoveredError{Key: key}
		}
		result[string(key)] = value
	}
	return result, nil
}

// reconstructRoot computes the candidate root hash implied by entries alone,
// handling the zero- and single-entry special cases before falling back to
// the general contour rebuild.
func reconstructRoot(entries []ProofEntry, requestedKeys [][]byte) (Hash, error) {
	switch len(entries) {
	case 0:
		return EmptyHash, nil
	case 1:
		e := entries[0]
		if e.Value.Kind == ProofValueHash && len(requestedKeys) > 0 {
			return Hash{}, &ProofMalformedError{Reason: "a single collapsed-hash entry cannot attest any requested key"}
		}
		if e.Value.Kind == ProofValueLeaf {
			return hashLeaf(e.Path, e.Value.Value), nil
		}
		return e.Value.Hash, nil
	default:
		topPrefix, hash, err := rebuildHash(entries)
		if err != nil {
			return Hash{}, err
		}
		if topPrefix.Len() != 0 {
			return Hash{}, &ProofMalformedError{Reason: "entries do not cover the full root — missing a sibling at the top level"}
		}
		return hash, nil
	}
}

// rebuildHash is the contour construction: it recursively folds a sorted,
// validated entry list into the hash of the unique binary Patricia subtree
// those entries form. It never needs to know where within a larger trie this
// subtree sits — it learns its own prefix from its children.
func rebuildHash(entries []ProofEntry) (bitpath.Path, Hash, error) {
	if len(entries) == 1 {
		e := entries[0]
		if e.Value.Kind == ProofValueLeaf {
			return e.Path, hashLeaf(e.Path, e.Value.Value), nil
		}
		return e.Path, e.Value.Hash, nil
	}

	m := commonPrefixLenAll(entries)
	left, right := splitAtBit(entries, m)

	leftPrefix, leftHash, err := rebuildHash(left)
	if err != nil {
		return bitpath.Path{}, Hash{}, err
	}
	rightPrefix, rightHash, err := rebuildHash(right)
	if err != nil {
		return bitpath.Path{}, Hash{}, err
	}
	return leftPrefix.CommonPrefix(rightPrefix), hashBranch(leftPrefix, leftHash, rightPrefix, rightHash), nil
}

// answerFor locates the entry whose territory contains p, among a sorted,
// validated, non-empty entry list, and derives the per-key answer: present
// (value, true), absent (nil, true), or uncovered (nil, false) when p falls
// inside an opaque collapsed subtree the proof never opened.
func answerFor(entries []ProofEntry, p bitpath.Path) ([]byte, bool, error) {
	switch len(entries) {
	case 0:
		return nil, true, nil
	case 1:
		e := entries[0]
		if e.Value.Kind == ProofValueLeaf && e.Path.Equal(p) {
			return e.Value.Value, true, nil
		}
		return nil, true, nil
	}

	e := locate(entries, p)
	if e.Value.Kind == ProofValueLeaf && e.Path.Equal(p) {
		return e.Value.Value, true, nil
	}
	if e.Path.Len() == bitpath.MaxLen {
		// A concrete, different leaf: definite proof of absence.
		return nil, true, nil
	}
	// A collapsed subtree: the proof doesn't reveal whether p lies within it.
	return nil, false, nil
}

// locate walks a sorted, non-empty entry list down to the single entry whose
// territory contains p, using the same common-prefix split as rebuildHash.
func locate(entries []ProofEntry, p bitpath.Path) ProofEntry {
	for len(entries) > 1 {
		m := commonPrefixLenAll(entries)
		left, right := splitAtBit(entries, m)
		if p.Bit(m) == 0 {
			entries = left
		} else {
			entries = right
		}
	}
	return entries[0]
}

// commonPrefixLenAll returns the length of the longest prefix shared by
// every entry's path in the (non-empty) slice.
func commonPrefixLenAll(entries []ProofEntry) int {
	cp := entries[0].Path
	for _, e := range entries[1:] {
		cp = cp.CommonPrefix(e.Path)
	}
	return cp.Len()
}

// splitAtBit partitions a sorted slice, every entry of which shares its
// first m bits, into the contiguous run with bit m equal to 0 and the
// contiguous run with bit m equal to 1.
func splitAtBit(entries []ProofEntry, m int) (left, right []ProofEntry) {
	idx := sort.Search(len(entries), func(i int) bool {
		return entries[i].Path.Bit(m) == 1
	})
	return entries[:idx], entries[idx:]
}
