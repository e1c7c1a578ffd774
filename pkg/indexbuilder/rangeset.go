/*
Package indexbuilder implements C6: bringing one or more indexes from
writeOnly to readable by backfilling entries()-per-kind over the full
item range, crash-safely and without duplicate work.
*/
package indexbuilder

import (
	"encoding/binary"
	"sort"
	"strings"
)

// Range is a half-open byte-key interval [Begin, End) still awaiting
// indexing. A nil End means "through the end of the keyspace".
type Range struct {
	Begin, End []byte
}

// RangeSet is the builder's persisted progress record: the set of
// intervals not yet processed. The full item range is the initial
// value; an empty set means the backfill is complete.
type RangeSet struct {
	Ranges []Range
}

// FullRange returns a RangeSet covering the entire keyspace.
func FullRange() RangeSet {
	return RangeSet{Ranges: []Range{{Begin: nil, End: nil}}}
}

// Done reports whether every range has been processed.
func (rs RangeSet) Done() bool {
	return len(rs.Ranges) == 0
}

// Pop removes and returns the first range, for the next batch to work.
func (rs RangeSet) Pop() (Range, RangeSet, bool) {
	if len(rs.Ranges) == 0 {
		return Range{}, rs, false
	}
	r := rs.Ranges[0]
	rest := RangeSet{Ranges: append([]Range(nil), rs.Ranges[1:]...)}
	return r, rest, true
}

// Requeue pushes back the remainder of a partially processed range
// (lastProcessedKey, end) so the next batch resumes exactly where this
// one stopped (I4: progress advances only over committed ranges).
func (rs RangeSet) Requeue(remainder Range, complete bool) RangeSet {
	if complete {
		return rs
	}
	return RangeSet{Ranges: append([]Range{remainder}, rs.Ranges...)}
}

// TargetKey derives the progress record key for a set of target index
// names: the sorted, '+'-joined name list, per the source's progress
// key convention.
func TargetKey(names []string) string {
	sorted := append([]string(nil), names...)
	sort.Strings(sorted)
	return strings.Join(sorted, "+")
}

// EncodeRangeSet serializes rs as a flat length-prefixed byte sequence.
func EncodeRangeSet(rs RangeSet) []byte {
	buf := make([]byte, 4)
	binary.BigEndian.PutUint32(buf, uint32(len(rs.Ranges)))
	for _, r := range rs.Ranges {
		buf = appendLenPrefixed(buf, r.Begin)
		buf = appendLenPrefixed(buf, r.End)
	}
	return buf
}

func appendLenPrefixed(buf, v []byte) []byte {
	lenBuf := make([]byte, 4)
	if v == nil {
		binary.BigEndian.PutUint32(lenBuf, 0xFFFFFFFF) // sentinel for nil vs empty
		return append(buf, lenBuf...)
	}
	binary.BigEndian.PutUint32(lenBuf, uint32(len(v)))
	buf = append(buf, lenBuf...)
	return append(buf, v...)
}

// DecodeRangeSet reverses EncodeRangeSet.
func DecodeRangeSet(raw []byte) (RangeSet, error) {
	if len(raw) < 4 {
		return RangeSet{}, errTruncated
	}
	n := binary.BigEndian.Uint32(raw[:4])
	raw = raw[4:]
	ranges := make([]Range, 0, n)
	for i := uint32(0); i < n; i++ {
		begin, rest, err := readLenPrefixed(raw)
		if err != nil {
			return RangeSet{}, err
		}
		raw = rest
		end, rest2, err := readLenPrefixed(raw)
		if err != nil {
			return RangeSet{}, err
		}
		raw = rest2
		ranges = append(ranges, Range{Begin: begin, End: end})
	}
	return RangeSet{Ranges: ranges}, nil
}

func readLenPrefixed(raw []byte) ([]byte, []byte, error) {
	if len(raw) < 4 {
		return nil, nil, errTruncated
	}
	n := binary.BigEndian.Uint32(raw[:4])
	raw = raw[4:]
	if n == 0xFFFFFFFF {
		return nil, raw, nil
	}
	if uint32(len(raw)) < n {
		return nil, nil, errTruncated
	}
	return append([]byte(nil), raw[:n]...), raw[n:], nil
}
