/*
Package kv adapts go.etcd.io/bbolt into the ordered, transactional
key-value contract the rest of estore is written against: a
single-writer, serialized-transaction store with ranged, lexicographic
byte-key scans and atomic commits.

bbolt plays the role FoundationDB's transaction layer plays in the
source system this package's contract is modeled on: copy-on-write
B+tree storage, one read-write transaction at a time, ACID commits.
Its nested-bucket facility stands in for the directory layer (Directory
below); its globally increasing internal transaction id does not by
itself give a usable "commit version" sequence (it is an allocator
counter, not guaranteed to advance on every write in lockstep with
callers' expectations), so this package keeps its own persisted,
strictly-increasing Version counter, bumped once per committed write
transaction, as the concrete stand-in for the host KV's versionstamp.
*/
package kv

import (
	"go.etcd.io/bbolt"
)

// Version is a monotonically increasing, KV-assigned commit marker. It
// stands in for the real system's versionstamp: every committed write
// transaction is assigned a strictly greater Version than the one
// before it, and Versions are safe to compare and persist.
type Version uint64

// DB is a single estore instance's physical store.
type DB struct {
	bolt *bbolt.DB
}

var metaBucket = []byte("__estore_meta__")
var versionKey = []byte("version")

// Open opens (creating if absent) a bbolt-backed store at path.
func Open(path string) (*DB, error) {
	b, err := bbolt.Open(path, 0600, nil)
	if err != nil {
		return nil, err
	}
	if err := b.Update(func(btx *bbolt.Tx) error {
		_, err := btx.CreateBucketIfNotExists(metaBucket)
		return err
	}); err != nil {
		b.Close()
		return nil, err
	}
	return &DB{bolt: b}, nil
}

// Close releases the underlying file handle.
func (db *DB) Close() error {
	return db.bolt.Close()
}

// Update runs fn inside a single read-write transaction. The Version fn
// sees via Transaction.Version is reserved before fn runs, not assigned
// after — callers that stamp a write with "this transaction's version"
// (the C3 Version index kind) need it while still building their write
// set, and bbolt's all-or-nothing commit means an error from fn discards
// the reservation along with everything else fn wrote, so no Version is
// ever observably consumed by a failed transaction.
func (db *DB) Update(fn func(tx *Transaction) error) (Version, error) {
	var version Version
	err := db.bolt.Update(func(btx *bbolt.Tx) error {
		v, err := bumpVersion(btx)
		if err != nil {
			return err
		}
		tx := &Transaction{btx: btx, writable: true, version: v}
		if err := fn(tx); err != nil {
			return err
		}
		version = v
		return nil
	})
	return version, err
}

// View runs fn inside a read-only, snapshot-isolated transaction.
func (db *DB) View(fn func(tx *Transaction) error) error {
	return db.bolt.View(func(btx *bbolt.Tx) error {
		tx := &Transaction{btx: btx, writable: false}
		return fn(tx)
	})
}

// CurrentVersion returns the last committed Version without starting a
// write transaction.
func (db *DB) CurrentVersion() (Version, error) {
	var v Version
	err := db.bolt.View(func(btx *bbolt.Tx) error {
		b := btx.Bucket(metaBucket)
		raw := b.Get(versionKey)
		v = decodeVersion(raw)
		return nil
	})
	return v, err
}

func bumpVersion(btx *bbolt.Tx) (Version, error) {
	b := btx.Bucket(metaBucket)
	cur := decodeVersion(b.Get(versionKey))
	next := cur + 1
	if err := b.Put(versionKey, encodeVersion(next)); err != nil {
		return 0, err
	}
	return next, nil
}

func encodeVersion(v Version) []byte {
	buf := make([]byte, 8)
	for i := 7; i >= 0; i-- {
		buf[i] = byte(v)
		v >>= 8
	}
	return buf
}

func decodeVersion(raw []byte) Version {
	var v Version
	for _, c := range raw {
		v = v<<8 | Version(c)
	}
	return v
}
