package itemstore

import (
	"github.com/cuemby/estore/pkg/codec"
	"github.com/cuemby/estore/pkg/kv"
)

// ScanIterator streams (key, reassembled value) pairs over a range of
// the item store without buffering the whole range; each split record
// is reassembled lazily, only as that element is yielded, per C2's
// scan-streaming contract.
type ScanIterator struct {
	store *Store
	tx    *kv.Transaction
	inner *kv.RangeIterator
	key   []byte
	value []byte
	err   error
}

// Scan returns a streaming iterator over item keys in [begin, end)
// (or reversed). limit <= 0 means unbounded.
func (s *Store) Scan(tx *kv.Transaction, begin, end []byte, reverse bool, limit int) (*ScanIterator, error) {
	inner, err := tx.GetRange(s.sub, itemsRegion, begin, end, reverse, limit)
	if err != nil {
		return nil, err
	}
	return &ScanIterator{store: s, tx: tx, inner: inner}, nil
}

// Next advances the iterator, reassembling the next element's value.
// Returns false once the range is exhausted or a reassembly error
// occurs; check Err() to distinguish the two.
func (it *ScanIterator) Next() bool {
	if !it.inner.Next() {
		return false
	}
	pair := it.inner.Pair()
	env, err := decodeEnvelope(pair.Value, string(pair.Key))
	if err != nil {
		it.err = err
		return false
	}
	var payload []byte
	if env.flags&flagSplit != 0 {
		desc, err := decodeSplitDescriptor(env.payload, string(pair.Key))
		if err != nil {
			it.err = err
			return false
		}
		payload, err = it.store.reassemble(it.tx, pair.Key, desc)
		if err != nil {
			it.err = err
			return false
		}
	} else {
		payload = env.payload
	}
	if env.flags&flagCompressed != 0 {
		decompressed, err := codec.Decompress(payload)
		if err != nil {
			it.err = err
			return false
		}
		payload = decompressed
	}
	it.key = pair.Key
	it.value = payload
	return true
}

// Pair returns the current (key, value); valid only after Next returns true.
func (it *ScanIterator) Pair() (key, value []byte) {
	return it.key, it.value
}

// Err returns the error that stopped iteration, if any.
func (it *ScanIterator) Err() error {
	return it.err
}
