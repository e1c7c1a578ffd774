/*
Package cursor implements C11: opaque continuation tokens that let a
paged scan resume exactly where it left off, bound to the query plan
that produced it so a resumed scan against a different plan (a changed
predicate, a rebuilt index) fails loudly instead of returning
silently-wrong results.

A token's wire format is a flat binary layout rather than a
self-describing one (no protobuf/JSON framing): version byte, scan-type
byte, reverse flag, the last key seen (behind a 4-byte big-endian
length prefix), the remaining and original limits (8 bytes each, -1
when unset), and a fixed 32-byte plan fingerprint. The token is then
base64url-encoded for safe transport in URLs and JSON string fields.
*/
package cursor

import (
	"crypto/sha256"
	"encoding/base64"
	"encoding/binary"
	"errors"
	"sort"
	"strings"

	"github.com/cuemby/estore/pkg/estoreerr"
)

// tokenVersion is bumped whenever the wire layout changes incompatibly;
// a token encoding a different version always fails to decode as
// ContinuationMalformed rather than silently misparsing.
const tokenVersion = 1

// ScanType tags what kind of operation produced the cursor, purely for
// diagnostics — it is not used to select decode behavior.
type ScanType byte

const (
	ScanIndex ScanType = iota
	ScanFullScan
	ScanGraphTraversal
)

// Plan captures the query shape a continuation token is bound to: an
// operator description plus the index names and sort fields involved,
// in the order used for fingerprinting only (sorted), not execution.
type Plan struct {
	OperatorDescription string
	IndexNames          []string
	SortFields          []string
}

// Fingerprint returns a stable hash of the plan, order-independent in
// the index name and sort field lists.
func (p Plan) Fingerprint() [32]byte {
	names := append([]string(nil), p.IndexNames...)
	sort.Strings(names)
	fields := append([]string(nil), p.SortFields...)
	sort.Strings(fields)
	h := sha256.New()
	h.Write([]byte(p.OperatorDescription))
	h.Write([]byte{0})
	h.Write([]byte(strings.Join(names, ",")))
	h.Write([]byte{0})
	h.Write([]byte(strings.Join(fields, ",")))
	var out [32]byte
	copy(out[:], h.Sum(nil))
	return out
}

// Token is the decoded form of a continuation cursor.
type Token struct {
	ScanType       ScanType
	Reverse        bool
	LastKey        []byte
	RemainingLimit int64 // -1 means unset (unlimited)
	OriginalLimit  int64 // -1 means unset (unlimited)
	Fingerprint    [32]byte
}

// Encode serializes t into a flat binary buffer.
func Encode(t Token) []byte {
	buf := []byte{tokenVersion, byte(t.ScanType), boolByte(t.Reverse)}
	buf = appendLenPrefixed(buf, t.LastKey)
	buf = appendInt64(buf, t.RemainingLimit)
	buf = appendInt64(buf, t.OriginalLimit)
	buf = append(buf, t.Fingerprint[:]...)
	return buf
}

// Decode reverses Encode, returning a *estoreerr.ContinuationError with
// Kind ContinuationMalformed on any structural failure.
func Decode(raw []byte) (Token, error) {
	if len(raw) < 3 {
		return Token{}, malformed("token too short")
	}
	if raw[0] != tokenVersion {
		return Token{}, malformed("unsupported token version")
	}
	t := Token{ScanType: ScanType(raw[1]), Reverse: raw[2] != 0}
	rest := raw[3:]

	lastKey, rest, err := readLenPrefixed(rest)
	if err != nil {
		return Token{}, malformed(err.Error())
	}
	t.LastKey = lastKey

	remaining, rest, err := readInt64(rest)
	if err != nil {
		return Token{}, malformed(err.Error())
	}
	t.RemainingLimit = remaining

	original, rest, err := readInt64(rest)
	if err != nil {
		return Token{}, malformed(err.Error())
	}
	t.OriginalLimit = original

	if len(rest) != 32 {
		return Token{}, malformed("bad fingerprint length")
	}
	copy(t.Fingerprint[:], rest)
	return t, nil
}

// EncodeString returns the base64url, unpadded transport form of t.
func EncodeString(t Token) string {
	return base64.RawURLEncoding.EncodeToString(Encode(t))
}

// DecodeString reverses EncodeString.
func DecodeString(s string) (Token, error) {
	raw, err := base64.RawURLEncoding.DecodeString(s)
	if err != nil {
		return Token{}, malformed("not valid base64url")
	}
	return Decode(raw)
}

// VerifyPlan checks t's fingerprint against plan, returning a
// ContinuationPlanMismatch error on disagreement — a resumed scan must
// never silently run against a different plan than produced the token.
func VerifyPlan(t Token, plan Plan) error {
	if t.Fingerprint != plan.Fingerprint() {
		return &estoreerr.ContinuationError{Kind: estoreerr.ContinuationPlanMismatch, Detail: "token was issued for a different query plan"}
	}
	return nil
}

func malformed(detail string) error {
	return &estoreerr.ContinuationError{Kind: estoreerr.ContinuationMalformed, Detail: detail}
}

func boolByte(b bool) byte {
	if b {
		return 1
	}
	return 0
}

func appendLenPrefixed(buf, v []byte) []byte {
	lenBuf := make([]byte, 4)
	binary.BigEndian.PutUint32(lenBuf, uint32(len(v)))
	buf = append(buf, lenBuf...)
	return append(buf, v...)
}

func readLenPrefixed(raw []byte) ([]byte, []byte, error) {
	if len(raw) < 4 {
		return nil, nil, errors.New("truncated length prefix")
	}
	n := binary.BigEndian.Uint32(raw[:4])
	raw = raw[4:]
	if uint32(len(raw)) < n {
		return nil, nil, errors.New("truncated payload")
	}
	return append([]byte(nil), raw[:n]...), raw[n:], nil
}

func appendInt64(buf []byte, v int64) []byte {
	out := make([]byte, 8)
	binary.BigEndian.PutUint64(out, uint64(v))
	return append(buf, out...)
}

func readInt64(raw []byte) (int64, []byte, error) {
	if len(raw) < 8 {
		return 0, nil, errors.New("truncated int64")
	}
	return int64(binary.BigEndian.Uint64(raw[:8])), raw[8:], nil
}
