package storage

import (
	"github.com/cockroachdb/pebble"
)

// PebbleDB is a Database backed by a cockroachdb/pebble instance on disk.
// It is the persistent counterpart to MemoryDB: same contract, durable
// storage, suitable for a trie whose root must survive a process restart.
type PebbleDB struct {
	db *pebble.DB
}

// OpenPebbleDB opens (creating if absent) a pebble store at dir.
func OpenPebbleDB(dir string) (*PebbleDB, error) {
	db, err := pebble.Open(dir, &pebble.Options{})
	if err != nil {
		return nil, err
	}
	return &PebbleDB{db: db}, nil
}

func (p *PebbleDB) Has(key []byte) (bool, error) {
	v, closer, err := p.db.Get(key)
	if err == pebble.ErrNotFound {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	closer.Close()
	_ = v
	return true, nil
}

func (p *PebbleDB) Get(key []byte) ([]byte, error) {
	v, closer, err := p.db.Get(key)
	if err == pebble.ErrNotFound {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	defer closer.Close()
	out := make([]byte, len(v))
	copy(out, v)
	return out, nil
}

func (p *PebbleDB) Put(key, value []byte) error {
	return p.db.Set(key, value, pebble.Sync)
}

func (p *PebbleDB) Delete(key []byte) error {
	return p.db.Delete(key, pebble.Sync)
}

func (p *PebbleDB) Close() error {
	return p.db.Close()
}

// NewBatch creates a new atomic batch writer.
func (p *PebbleDB) NewBatch() Batch {
	return &pebbleBatch{db: p.db, batch: p.db.NewBatch()}
}

// NewIterator returns an iterator over all keys carrying the given prefix.
func (p *PebbleDB) NewIterator(prefix []byte) Iterator {
	upper := append(append([]byte{}, prefix...))
	upper = incrementPrefix(upper)

	it, err := p.db.NewIter(&pebble.IterOptions{
		LowerBound: prefix,
		UpperBound: upper,
	})
	if err != nil {
		return &pebbleIterator{err: err}
	}
	return &pebbleIterator{it: it, started: false}
}

// incrementPrefix returns the smallest byte slice that is strictly greater
// than every slice carrying prefix p, used as an iterator upper bound. A
// prefix of all 0xFF bytes has no successor; nil (unbounded) is returned.
func incrementPrefix(p []byte) []byte {
	out := append([]byte{}, p...)
	for i := len(out) - 1; i >= 0; i-- {
		if out[i] != 0xFF {
			out[i]++
			return out[:i+1]
		}
	}
	return nil
}

type pebbleBatch struct {
	db    *pebble.DB
	batch *pebble.Batch
	size  int
}

func (b *pebbleBatch) Put(key, value []byte) error {
	b.size += len(key) + len(value)
	return b.batch.Set(key, value, nil)
}

func (b *pebbleBatch) Delete(key []byte) error {
	b.size += len(key)
	return b.batch.Delete(key, nil)
}

func (b *pebbleBatch) ValueSize() int { return b.size }

func (b *pebbleBatch) Write() error {
	return b.batch.Commit(pebble.Sync)
}

func (b *pebbleBatch) Reset() {
	b.batch.Reset()
	b.size = 0
}

type pebbleIterator struct {
	it      *pebble.Iterator
	started bool
	err     error
}

func (it *pebbleIterator) Next() bool {
	if it.it == nil {
		return false
	}
	if !it.started {
		it.started = true
		return it.it.First()
	}
	return it.it.Next()
}

func (it *pebbleIterator) Key() []byte {
	if it.it == nil || !it.started {
		return nil
	}
	return it.it.Key()
}

func (it *pebbleIterator) Value() []byte {
	if it.it == nil || !it.started {
		return nil
	}
	v, _ := it.it.ValueAndErr()
	return v
}

func (it *pebbleIterator) Release() {
	if it.it != nil {
		it.it.Close()
	}
}
