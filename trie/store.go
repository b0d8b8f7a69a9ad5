package trie

import (
	"fmt"

	"github.com/VictoriaMetrics/fastcache"

	"github.com/latticechain/authmap/bitpath"
	"github.com/latticechain/authmap/storage"
)

// Storage key namespace tags, so the distinguished root-pointer slot can
// never collide with a node entry regardless of the node's own prefix bytes.
const (
	keyTagRoot byte = 0x00
	keyTagNode byte = 0x01
)

// storageKey derives an injective, stable storage key from a routing
// prefix: a namespace tag, the prefix's bit-length, then its packed bytes.
// Two different prefixes can never collide because the length field
// disambiguates prefixes that would otherwise share a byte suffix.
func storageKey(p bitpath.Path) []byte {
	b := p.Bytes()
	key := make([]byte, 0, 1+2+len(b))
	key = append(key, keyTagNode)
	key = append(key, byte(p.Len()>>8), byte(p.Len()))
	key = append(key, b...)
	return key
}

var rootKey = []byte{keyTagRoot}

// rootPointer names the current root node: its prefix (0 bits for a branch
// root, MaxLen bits for a single-leaf root) and its content hash, stored
// together so RootHash never needs to fetch the node itself.
type rootPointer struct {
	Prefix bitpath.Path
	Hash   Hash
}

func encodeRootPointer(rp rootPointer) []byte {
	out := make([]byte, 0, 2+32+HashSize)
	out = append(out, byte(rp.Prefix.Len()>>8), byte(rp.Prefix.Len()))
	out = append(out, fixedBytes(rp.Prefix)...)
	out = append(out, rp.Hash[:]...)
	return out
}

func decodeRootPointer(raw []byte) (rootPointer, error) {
	if len(raw) != 2+32+HashSize {
		return rootPointer{}, errShortNodeEncoding
	}
	length := getUint16(raw[0:2])
	prefix := bitpath.FromBits(raw[2:34], length)
	var h Hash
	copy(h[:], raw[34:34+HashSize])
	return rootPointer{Prefix: prefix, Hash: h}, nil
}

// nodeStore adapts package storage's ordered key/value contract to the
// trie's node model, with an optional bounded read-through cache in front
// of it. The trie is correct with cache set to nil; the cache only saves
// repeated deserialization of hot nodes.
type nodeStore struct {
	db    storage.Database
	cache *fastcache.Cache
}

func newNodeStore(db storage.Database, cacheSizeBytes int) *nodeStore {
	var cache *fastcache.Cache
	if cacheSizeBytes > 0 {
		cache = fastcache.New(cacheSizeBytes)
	}
	return &nodeStore{db: db, cache: cache}
}

func (s *nodeStore) get(prefix bitpath.Path) (Node, bool, error) {
	key := storageKey(prefix)

	if s.cache != nil {
		if raw, ok := s.cache.HasGet(nil, key); ok {
			n, err := decodeNode(raw)
			if err != nil {
				return nil, false, &StorageError{Op: "decode", Err: err}
			}
			return n, true, nil
		}
	}

	raw, err := s.db.Get(key)
	if err == storage.ErrNotFound {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, &StorageError{Op: "get", Err: err}
	}
	n, err := decodeNode(raw)
	if err != nil {
		return nil, false, &StorageError{Op: "decode", Err: err}
	}
	if s.cache != nil {
		s.cache.Set(key, raw)
	}
	return n, true, nil
}

func (s *nodeStore) put(batch storage.Batch, prefix bitpath.Path, n Node) error {
	key := storageKey(prefix)
	raw := encodeNode(n)
	if err := batch.Put(key, raw); err != nil {
		return &StorageError{Op: "put", Err: err}
	}
	if s.cache != nil {
		s.cache.Set(key, raw)
	}
	return nil
}

func (s *nodeStore) delete(batch storage.Batch, prefix bitpath.Path) error {
	key := storageKey(prefix)
	if err := batch.Delete(key); err != nil {
		return &StorageError{Op: "delete", Err: err}
	}
	if s.cache != nil {
		s.cache.Del(key)
	}
	return nil
}

func (s *nodeStore) getRoot() (rootPointer, bool, error) {
	raw, err := s.db.Get(rootKey)
	if err == storage.ErrNotFound {
		return rootPointer{}, false, nil
	}
	if err != nil {
		return rootPointer{}, false, &StorageError{Op: "get-root", Err: err}
	}
	rp, err := decodeRootPointer(raw)
	if err != nil {
		return rootPointer{}, false, &StorageError{Op: "decode-root", Err: fmt.Errorf("%w", err)}
	}
	return rp, true, nil
}

func (s *nodeStore) putRoot(batch storage.Batch, rp rootPointer) error {
	if err := batch.Put(rootKey, encodeRootPointer(rp)); err != nil {
		return &StorageError{Op: "put-root", Err: err}
	}
	return nil
}

func (s *nodeStore) deleteRoot(batch storage.Batch) error {
	if err := batch.Delete(rootKey); err != nil {
		return &StorageError{Op: "delete-root", Err: err}
	}
	return nil
}
