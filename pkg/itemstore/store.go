package itemstore

import (
	"fmt"

	"github.com/cuemby/estore/pkg/codec"
	"github.com/cuemby/estore/pkg/estoreerr"
	"github.com/cuemby/estore/pkg/kv"
)

// blobsRegion mirrors the spec's "blobs/<key>/<i>" chunk key space; it
// lives alongside the "items" region within the same subspace rather
// than requiring callers to manage a second Subspace.
const blobsRegion = "blobs"
const itemsRegion = "items"

// Store implements C2 against a single entity type's item subspace.
// Compress controls whether inline/split payloads are flate-compressed
// before framing.
type Store struct {
	sub      kv.Subspace
	compress bool
}

// New returns an item store scoped to sub, an entity type's item
// subspace. When compress is true, payloads are flate-compressed before
// envelope framing.
func New(sub kv.Subspace, compress bool) *Store {
	return &Store{sub: sub, compress: compress}
}

// Write frames and stores raw at key, clearing any prior chunk range
// under blobs/<key>/ unconditionally first — preserving I3 even when
// the previous value at key was not a recognized envelope.
func (s *Store) Write(tx *kv.Transaction, key []byte, raw []byte) error {
	if err := s.clearChunks(tx, key); err != nil {
		return err
	}

	payload := raw
	flags := byte(0)
	if s.compress {
		compressed, err := codec.Compress(raw, 0)
		if err != nil {
			return err
		}
		payload = compressed
		flags |= flagCompressed
	}

	if len(payload) <= ChunkThreshold {
		return tx.Set(s.sub, itemsRegion, key, encodeEnvelope(envelope{flags: flags, payload: payload}))
	}

	chunkCount := (len(payload) + chunkSize - 1) / chunkSize
	for i := 0; i < chunkCount; i++ {
		start := i * chunkSize
		end := start + chunkSize
		if end > len(payload) {
			end = len(payload)
		}
		chunkKey := chunkKeyFor(key, i)
		if err := tx.Set(s.sub, blobsRegion, chunkKey, payload[start:end]); err != nil {
			return err
		}
	}

	desc := splitDescriptor{totalLen: uint64(len(payload)), chunkCount: uint32(chunkCount), chunkSize: uint32(chunkSize)}
	env := envelope{flags: flags | flagSplit, payload: encodeSplitDescriptor(desc)}
	return tx.Set(s.sub, itemsRegion, key, encodeEnvelope(env))
}

// Read returns the reassembled raw bytes at key, or nil if absent.
func (s *Store) Read(tx *kv.Transaction, key []byte) ([]byte, error) {
	raw, err := tx.Get(s.sub, itemsRegion, key)
	if err != nil || raw == nil {
		return nil, err
	}
	env, err := decodeEnvelope(raw, string(key))
	if err != nil {
		return nil, err
	}

	var payload []byte
	if env.flags&flagSplit != 0 {
		desc, err := decodeSplitDescriptor(env.payload, string(key))
		if err != nil {
			return nil, err
		}
		payload, err = s.reassemble(tx, key, desc)
		if err != nil {
			return nil, err
		}
	} else {
		payload = env.payload
	}

	if env.flags&flagCompressed != 0 {
		return codec.Decompress(payload)
	}
	return payload, nil
}

func (s *Store) reassemble(tx *kv.Transaction, key []byte, desc splitDescriptor) ([]byte, error) {
	out := make([]byte, 0, desc.totalLen)
	for i := uint32(0); i < desc.chunkCount; i++ {
		chunk, err := tx.Get(s.sub, blobsRegion, chunkKeyFor(key, int(i)))
		if err != nil {
			return nil, err
		}
		if chunk == nil {
			return nil, &estoreerr.CorruptValue{ID: string(key), Reason: fmt.Sprintf("missing chunk %d of %d", i, desc.chunkCount)}
		}
		out = append(out, chunk...)
	}
	if uint64(len(out)) != desc.totalLen {
		return nil, &estoreerr.CorruptValue{ID: string(key), Reason: "reassembled length mismatch"}
	}
	return out, nil
}

// Delete removes key's envelope and any chunk range under it.
func (s *Store) Delete(tx *kv.Transaction, key []byte) error {
	if err := s.clearChunks(tx, key); err != nil {
		return err
	}
	return tx.Clear(s.sub, itemsRegion, key)
}

// Exists reports whether key has a stored envelope.
func (s *Store) Exists(tx *kv.Transaction, key []byte) (bool, error) {
	return tx.Exists(s.sub, itemsRegion, key)
}

// Size returns the logical (pre-compression, pre-chunk) byte length
// stored at key, or -1 if absent.
func (s *Store) Size(tx *kv.Transaction, key []byte) (int, error) {
	raw, err := tx.Get(s.sub, itemsRegion, key)
	if err != nil || raw == nil {
		return -1, err
	}
	env, err := decodeEnvelope(raw, string(key))
	if err != nil {
		return -1, err
	}
	if env.flags&flagCompressed != 0 {
		logical, err := s.Read(tx, key)
		if err != nil {
			return -1, err
		}
		return len(logical), nil
	}
	if env.flags&flagSplit != 0 {
		desc, err := decodeSplitDescriptor(env.payload, string(key))
		if err != nil {
			return -1, err
		}
		return int(desc.totalLen), nil
	}
	return len(env.payload), nil
}

func (s *Store) clearChunks(tx *kv.Transaction, key []byte) error {
	prefix := append(append([]byte(nil), key...), '/')
	return tx.ClearPrefix(s.sub, blobsRegion, prefix)
}

func chunkKeyFor(key []byte, i int) []byte {
	out := append(append([]byte(nil), key...), '/')
	out = append(out, []byte(fmt.Sprintf("%d", i))...)
	return out
}
