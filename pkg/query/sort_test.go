package query

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSortRecordsAscendingDescending(t *testing.T) {
	recs := []any{
		fakeRecord{fields: map[string]FieldValue{"total": Int64(3)}},
		fakeRecord{fields: map[string]FieldValue{"total": Int64(1)}},
		fakeRecord{fields: map[string]FieldValue{"total": Int64(2)}},
	}
	acc := Accessor{FieldName: "total"}

	asc := append([]any(nil), recs...)
	SortRecords(asc, []SortDescriptor{{Accessor: acc}})
	assert.Equal(t, []int64{1, 2, 3}, totals(asc))

	desc := append([]any(nil), recs...)
	SortRecords(desc, []SortDescriptor{{Accessor: acc, Descending: true}})
	assert.Equal(t, []int64{3, 2, 1}, totals(desc))
}

func TestSortRecordsMultiKeyTieBreak(t *testing.T) {
	recs := []any{
		fakeRecord{fields: map[string]FieldValue{"group": String("b"), "total": Int64(1)}},
		fakeRecord{fields: map[string]FieldValue{"group": String("a"), "total": Int64(2)}},
		fakeRecord{fields: map[string]FieldValue{"group": String("a"), "total": Int64(1)}},
	}
	SortRecords(recs, []SortDescriptor{
		{Accessor: Accessor{FieldName: "group"}},
		{Accessor: Accessor{FieldName: "total"}},
	})
	groups := make([]string, len(recs))
	for i, r := range recs {
		g, _ := r.(fakeRecord).Subscript("group").AsString()
		groups[i] = g
	}
	assert.Equal(t, []string{"a", "a", "b"}, groups)
}

func totals(recs []any) []int64 {
	out := make([]int64, len(recs))
	for i, r := range recs {
		v, _ := r.(fakeRecord).Subscript("total").AsInt64()
		out[i] = v
	}
	return out
}
