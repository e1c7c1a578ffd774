package kv

import (
	"encoding/binary"
	"errors"

	"go.etcd.io/bbolt"
)

// ErrReadOnly is returned when a write operation is attempted against a
// read-only (View) transaction.
var ErrReadOnly = errors.New("kv: write attempted on read-only transaction")

// Transaction is a single, non-shareable handle onto one bbolt
// transaction. It must not be retained or used outside the Update/View
// callback that produced it — the same single-threaded-value rule the
// host KV contract places on its own transaction objects.
type Transaction struct {
	btx      *bbolt.Tx
	writable bool
	version  Version
}

// Version returns the Version this transaction will commit as (zero for
// a read-only View transaction). Valid to call at any point during a
// write transaction: the reservation happens before the Update callback
// runs, not after.
func (t *Transaction) Version() Version { return t.version }

// openBuckets walks (and, if create, creates) the nested bucket chain
// for path, returning the innermost bucket.
func (t *Transaction) openBuckets(path []string, create bool) (*bbolt.Bucket, error) {
	if len(path) == 0 {
		return nil, errors.New("kv: empty bucket path")
	}
	var b *bbolt.Bucket
	for i, seg := range path {
		key := []byte(seg)
		if i == 0 {
			if create {
				bucket, err := t.btx.CreateBucketIfNotExists(key)
				if err != nil {
					return nil, err
				}
				b = bucket
			} else {
				b = t.btx.Bucket(key)
			}
		} else {
			if create {
				bucket, err := b.CreateBucketIfNotExists(key)
				if err != nil {
					return nil, err
				}
				b = bucket
			} else {
				b = b.Bucket(key)
			}
		}
		if b == nil {
			return nil, nil
		}
	}
	return b, nil
}

// region resolves a Subspace's region bucket ("items", "blobs",
// "indexes", "metadata"), creating the chain on write access.
func (t *Transaction) region(sub Subspace, region string, create bool) (*bbolt.Bucket, error) {
	full := append(append([]string(nil), sub.path...), region)
	return t.openBuckets(full, create)
}

// Get reads the value at key within sub's region, or nil if absent.
func (t *Transaction) Get(sub Subspace, region string, key []byte) ([]byte, error) {
	b, err := t.region(sub, region, false)
	if err != nil || b == nil {
		return nil, err
	}
	v := b.Get(key)
	if v == nil {
		return nil, nil
	}
	// bbolt values are only valid for the lifetime of the transaction;
	// copy so callers can retain the result past it.
	cp := make([]byte, len(v))
	copy(cp, v)
	return cp, nil
}

// Set writes value at key within sub's region.
func (t *Transaction) Set(sub Subspace, region string, key, value []byte) error {
	if !t.writable {
		return ErrReadOnly
	}
	b, err := t.region(sub, region, true)
	if err != nil {
		return err
	}
	return b.Put(key, value)
}

// Clear removes key within sub's region, a no-op if it does not exist.
func (t *Transaction) Clear(sub Subspace, region string, key []byte) error {
	if !t.writable {
		return ErrReadOnly
	}
	b, err := t.region(sub, region, false)
	if err != nil || b == nil {
		return err
	}
	return b.Delete(key)
}

// ClearRange removes every key in [begin, end) within sub's region.
func (t *Transaction) ClearRange(sub Subspace, region string, begin, end []byte) error {
	if !t.writable {
		return ErrReadOnly
	}
	b, err := t.region(sub, region, false)
	if err != nil || b == nil {
		return err
	}
	c := b.Cursor()
	var keys [][]byte
	for k, _ := c.Seek(begin); k != nil && (end == nil || bytesLess(k, end)); k, _ = c.Next() {
		keys = append(keys, append([]byte(nil), k...))
	}
	for _, k := range keys {
		if err := b.Delete(k); err != nil {
			return err
		}
	}
	return nil
}

// ClearPrefix removes every key in sub's region that starts with prefix.
func (t *Transaction) ClearPrefix(sub Subspace, region string, prefix []byte) error {
	return t.ClearRange(sub, region, prefix, StrInc(prefix))
}

// Exists reports whether key is present within sub's region.
func (t *Transaction) Exists(sub Subspace, region string, key []byte) (bool, error) {
	v, err := t.Get(sub, region, key)
	return v != nil, err
}

// AtomicAdd adds delta to the 8-byte big-endian counter stored at key,
// creating it (as delta) if absent. Because bbolt serializes all
// read-write transactions, a plain read-modify-write here is already
// atomic with respect to every other writer.
func (t *Transaction) AtomicAdd(sub Subspace, region string, key []byte, delta int64) (int64, error) {
	if !t.writable {
		return 0, ErrReadOnly
	}
	b, err := t.region(sub, region, true)
	if err != nil {
		return 0, err
	}
	cur := int64(0)
	if raw := b.Get(key); raw != nil {
		cur = int64(binary.BigEndian.Uint64(raw))
	}
	next := cur + delta
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, uint64(next))
	if err := b.Put(key, buf); err != nil {
		return 0, err
	}
	return next, nil
}

// KVPair is one (key, value) yielded by a range scan.
type KVPair struct {
	Key   []byte
	Value []byte
}

// RangeIterator streams key/value pairs without buffering the whole
// range, so large scans (item backfills, index rebuilds) do not hold
// the entire result set in memory at once.
type RangeIterator struct {
	cursor  *bbolt.Cursor
	begin   []byte
	end     []byte
	reverse bool
	limit   int
	seen    int
	started bool
	k, v    []byte
}

// GetRange returns a streaming iterator over [begin, end) (or (end,
// begin] in reverse) within sub's region. limit <= 0 means unbounded.
func (t *Transaction) GetRange(sub Subspace, region string, begin, end []byte, reverse bool, limit int) (*RangeIterator, error) {
	b, err := t.region(sub, region, false)
	if err != nil {
		return nil, err
	}
	if b == nil {
		return &RangeIterator{}, nil
	}
	return &RangeIterator{
		cursor:  b.Cursor(),
		begin:   begin,
		end:     end,
		reverse: reverse,
		limit:   limit,
	}, nil
}

// Next advances the iterator, returning false once the range or limit
// is exhausted.
func (r *RangeIterator) Next() bool {
	if r.cursor == nil {
		return false
	}
	if r.limit > 0 && r.seen >= r.limit {
		return false
	}
	var k, v []byte
	if !r.started {
		r.started = true
		if r.reverse {
			if r.end != nil {
				k, v = r.cursor.Seek(r.end)
				if k == nil {
					k, v = r.cursor.Last()
				} else if bytesGTE(k, r.end) {
					k, v = r.cursor.Prev()
				}
			} else {
				k, v = r.cursor.Last()
			}
		} else {
			k, v = r.cursor.Seek(r.begin)
		}
	} else if r.reverse {
		k, v = r.cursor.Prev()
	} else {
		k, v = r.cursor.Next()
	}
	if k == nil {
		r.k, r.v = nil, nil
		return false
	}
	if !r.reverse && r.end != nil && bytesGTE(k, r.end) {
		r.k, r.v = nil, nil
		return false
	}
	if r.reverse && r.begin != nil && bytesLess(k, r.begin) {
		r.k, r.v = nil, nil
		return false
	}
	r.k = append([]byte(nil), k...)
	r.v = append([]byte(nil), v...)
	r.seen++
	return true
}

// Pair returns the current key/value; valid only after Next returns true.
func (r *RangeIterator) Pair() KVPair {
	return KVPair{Key: r.k, Value: r.v}
}

func bytesLess(a, b []byte) bool { return compareBytes(a, b) < 0 }
func bytesGTE(a, b []byte) bool  { return compareBytes(a, b) >= 0 }

func compareBytes(a, b []byte) int {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	for i := 0; i < n; i++ {
		if a[i] != b[i] {
			if a[i] < b[i] {
				return -1
			}
			return 1
		}
	}
	switch {
	case len(a) < len(b):
		return -1
	case len(a) > len(b):
		return 1
	default:
		return 0
	}
}

// StrInc returns the lexicographically smallest byte string strictly
// greater than every string with prefix p — the standard trick for
// turning a prefix into an exclusive range end. A prefix of all 0xFF
// bytes (or empty) has no such bound and StrInc returns nil, meaning
// "no upper bound".
func StrInc(p []byte) []byte {
	out := append([]byte(nil), p...)
	for i := len(out) - 1; i >= 0; i-- {
		if out[i] < 0xFF {
			out[i]++
			return out[:i+1]
		}
	}
	return nil
}
