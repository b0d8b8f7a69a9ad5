package trie

import (
	"fmt"

	"github.com/ethereum/go-ethereum/rlp"

	"github.com/latticechain/authmap/bitpath"
)

// rlpProofEntry is the wire shape of a ProofEntry: path bytes and bit-length
// are carried separately so a short prefix can't be confused with a
// differently-padded one, exactly mirroring the in-memory encoding rule.
type rlpProofEntry struct {
	PathBytes []byte
	PathLen   uint16
	Kind      uint8
	Value     []byte
	Hash      [HashSize]byte
}

type rlpMapProof struct {
	Entries       []rlpProofEntry
	RequestedKeys [][]byte
}

// EncodeProof serializes a MapProof to its canonical wire form: length-
// prefixed fields, entry ordering preserved exactly.
func EncodeProof(proof *MapProof) ([]byte, error) {
	enc := rlpMapProof{RequestedKeys: proof.RequestedKeys}
	for _, e := range proof.Entries {
		re := rlpProofEntry{
			PathBytes: e.Path.Bytes(),
			PathLen:   uint16(e.Path.Len()),
			Kind:      uint8(e.Value.Kind),
		}
		if e.Value.Kind == ProofValueLeaf {
			re.Value = e.Value.Value
		} else {
			re.Hash = e.Value.Hash
		}
		enc.Entries = append(enc.Entries, re)
	}
	out, err := rlp.EncodeToBytes(&enc)
	if err != nil {
		return nil, fmt.Errorf("trie: encode proof: %w", err)
	}
	return out, nil
}

// DecodeProof is the inverse of EncodeProof.
func DecodeProof(data []byte) (*MapProof, error) {
	var enc rlpMapProof
	if err := rlp.DecodeBytes(data, &enc); err != nil {
		return nil, fmt.Errorf("trie: decode proof: %w", err)
	}
	proof := &MapProof{RequestedKeys: enc.RequestedKeys}
	for _, re := range enc.Entries {
		path := bitpath.FromBits(re.PathBytes, int(re.PathLen))
		var val ProofValue
		if ProofValueKind(re.Kind) == ProofValueLeaf {
			val = LeafValue(re.Value)
		} else {
			val = HashValue(re.Hash)
		}
		proof.Entries = append(proof.Entries, ProofEntry{Path: path, Value: val})
	}
	return proof, nil
}
