package index

import (
	"testing"

	"github.com/cuemby/estore/pkg/entity"
	"github.com/cuemby/estore/pkg/query"
	"github.com/cuemby/estore/pkg/tuple"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type edgeRecord struct {
	id, from, to, edge string
}

func (e edgeRecord) ID() tuple.Element  { return tuple.Str(e.id) }
func (e edgeRecord) Type() *entity.Type { return nil }
func (e edgeRecord) FieldValue(name string) query.FieldValue { return query.Null() }

func TestGraphAdjacencyEntries(t *testing.T) {
	d := &Descriptor{
		IndexDescriptor: entity.IndexDescriptor{Name: "follows", Kind: entity.IndexGraph},
		GraphMode:       GraphAdjacency,
		Bidirectional:   true,
		From:            func(rec entity.Record) (tuple.Element, bool) { return tuple.Str(rec.(edgeRecord).from), true },
		To:              func(rec entity.Record) (tuple.Element, bool) { return tuple.Str(rec.(edgeRecord).to), true },
		Edge:            func(rec entity.Record) (string, bool) { return rec.(edgeRecord).edge, true },
	}
	rec := edgeRecord{id: "e1", from: "u1", to: "u2", edge: "follows"}
	entries, err := Entries(d, rec.ID(), rec)
	require.NoError(t, err)
	assert.Len(t, entries, 2)
}

func TestGraphTripleEntries(t *testing.T) {
	d := &Descriptor{
		IndexDescriptor: entity.IndexDescriptor{Name: "triples", Kind: entity.IndexGraph},
		GraphMode:       GraphTriple,
		Subject:         func(rec entity.Record) (tuple.Element, bool) { return tuple.Str(rec.(edgeRecord).from), true },
		Predicate:       func(rec entity.Record) (string, bool) { return rec.(edgeRecord).edge, true },
		Object:          func(rec entity.Record) (tuple.Element, bool) { return tuple.Str(rec.(edgeRecord).to), true },
	}
	rec := edgeRecord{id: "e1", from: "alice", to: "bob", edge: "knows"}
	entries, err := Entries(d, rec.ID(), rec)
	require.NoError(t, err)
	assert.Len(t, entries, 3) // SPO, POS, OSP
}

func TestFullTextEntries(t *testing.T) {
	d := &Descriptor{
		IndexDescriptor: entity.IndexDescriptor{Name: "search", Kind: entity.IndexFullText},
		Tokenize: func(rec entity.Record) []string {
			return []string{"hello", "world", "hello"}
		},
	}
	rec := edgeRecord{id: "doc-1"}
	entries, err := Entries(d, rec.ID(), rec)
	require.NoError(t, err)
	assert.Len(t, entries, 2) // deduplicated tokens, frequency in value
}

func TestRankEntries(t *testing.T) {
	d := &Descriptor{
		IndexDescriptor: entity.IndexDescriptor{Name: "leaderboard", Kind: entity.IndexRank},
		Score:           func(rec entity.Record) (tuple.Element, bool) { return tuple.Int(100), true },
	}
	rec := edgeRecord{id: "p1"}
	entries, err := Entries(d, rec.ID(), rec)
	require.NoError(t, err)
	require.Len(t, entries, 1)
}

func TestSpatialEntries(t *testing.T) {
	d := &Descriptor{
		IndexDescriptor: entity.IndexDescriptor{Name: "geo", Kind: entity.IndexSpatial},
		Location: func(rec entity.Record) (float64, float64, bool) {
			return 37.7749, -122.4194, true
		},
	}
	rec := edgeRecord{id: "loc-1"}
	entries, err := Entries(d, rec.ID(), rec)
	require.NoError(t, err)
	require.Len(t, entries, 1)
}

func TestMortonEncodeDecodeApproximatelyRoundTrips(t *testing.T) {
	code := MortonEncode(37.7749, -122.4194)
	lat, lon := MortonDecode(code)
	assert.InDelta(t, 37.7749, lat, 0.01)
	assert.InDelta(t, -122.4194, lon, 0.01)
}

func TestPermutedEntries(t *testing.T) {
	d := &Descriptor{
		IndexDescriptor: entity.IndexDescriptor{Name: "perm", Kind: entity.IndexPermuted},
		Permutations: [][]string{
			{"a", "b"},
			{"b", "a"},
		},
		FieldValue: func(rec entity.Record, field string) (tuple.Element, bool) {
			return tuple.Str(field), true
		},
	}
	rec := edgeRecord{id: "p1"}
	entries, err := Entries(d, rec.ID(), rec)
	require.NoError(t, err)
	assert.Len(t, entries, 2)
}

func TestVectorEntries(t *testing.T) {
	d := &Descriptor{
		IndexDescriptor: entity.IndexDescriptor{Name: "embeddings", Kind: entity.IndexVector},
		Vector: func(rec entity.Record) ([]float64, bool) {
			return []float64{0.1, 0.2, 0.3}, true
		},
	}
	rec := edgeRecord{id: "v1"}
	entries, err := Entries(d, rec.ID(), rec)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Len(t, entries[0].Value, 24)
}
