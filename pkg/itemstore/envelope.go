/*
Package itemstore implements C2: the value envelope and chunking layer
that every record write and read passes through. It operates entirely
within a kv.Transaction against a caller-supplied blob subspace,
grounded on the same "frame every value, chunk the large ones" pattern
the teacher's original BoltDB layer glossed over by storing whole JSON
blobs directly — chunking here is the piece estore adds so a single
oversized record cannot blow past the KV's per-value practical limit.
*/
package itemstore

import (
	"encoding/binary"

	"github.com/cuemby/estore/pkg/estoreerr"
)

// envelopeMagic identifies an estore item envelope so corrupt or
// foreign values are rejected rather than misparsed.
var envelopeMagic = [4]byte{'e', 's', 't', 'r'}

const envelopeVersion byte = 1

const (
	flagInline byte = 0
	flagSplit  byte = 1
	flagCompressed byte = 1 << 1
)

// ChunkThreshold is the post-compression payload size above which a
// write switches to split/chunked mode. Defaults to 90KiB, chosen with
// margin below bbolt's practical per-value comfort zone; pkg/config
// and pkg/estore.Open may lower or raise it for a given process before
// any store is opened.
var ChunkThreshold = 90 * 1024

// chunkSize is the size of each chunk written under blobs/<key>/<i>.
const chunkSize = 64 * 1024

// envelope is the 6-byte fixed header framing every stored value:
// 4-byte magic | 1-byte version | 1-byte flags, followed by the
// payload (inline bytes, or a splitDescriptor for chunked values).
type envelope struct {
	flags   byte
	payload []byte
}

func encodeEnvelope(e envelope) []byte {
	out := make([]byte, 0, 6+len(e.payload))
	out = append(out, envelopeMagic[:]...)
	out = append(out, envelopeVersion, e.flags)
	out = append(out, e.payload...)
	return out
}

func decodeEnvelope(raw []byte, keyForError string) (envelope, error) {
	if len(raw) < 6 {
		return envelope{}, &estoreerr.CorruptValue{ID: keyForError, Reason: "value shorter than envelope header"}
	}
	if raw[0] != envelopeMagic[0] || raw[1] != envelopeMagic[1] || raw[2] != envelopeMagic[2] || raw[3] != envelopeMagic[3] {
		return envelope{}, &estoreerr.CorruptValue{ID: keyForError, Reason: "bad envelope magic"}
	}
	if raw[4] != envelopeVersion {
		return envelope{}, &estoreerr.CorruptValue{ID: keyForError, Reason: "unknown envelope version"}
	}
	return envelope{flags: raw[5], payload: raw[6:]}, nil
}

// splitDescriptor is the payload of a split envelope: enough metadata
// to reassemble the chunk range without touching the chunk keys
// themselves until reassembly actually needs them.
type splitDescriptor struct {
	totalLen   uint64
	chunkCount uint32
	chunkSize  uint32
}

func encodeSplitDescriptor(d splitDescriptor) []byte {
	buf := make([]byte, 16)
	binary.BigEndian.PutUint64(buf[0:8], d.totalLen)
	binary.BigEndian.PutUint32(buf[8:12], d.chunkCount)
	binary.BigEndian.PutUint32(buf[12:16], d.chunkSize)
	return buf
}

func decodeSplitDescriptor(raw []byte, keyForError string) (splitDescriptor, error) {
	if len(raw) != 16 {
		return splitDescriptor{}, &estoreerr.CorruptValue{ID: keyForError, Reason: "malformed split descriptor"}
	}
	return splitDescriptor{
		totalLen:   binary.BigEndian.Uint64(raw[0:8]),
		chunkCount: binary.BigEndian.Uint32(raw[8:12]),
		chunkSize:  binary.BigEndian.Uint32(raw[12:16]),
	}, nil
}
