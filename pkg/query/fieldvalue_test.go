package query

import (
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTotalOrderAcrossKinds(t *testing.T) {
	values := []FieldValue{
		Null(), Bool(true), Int64(0), Double(0), String(""), Data(nil), Array(),
	}
	for i := 0; i < len(values)-1; i++ {
		assert.Truef(t, Compare(values[i], values[i+1]) < 0, "kind %d should sort before kind %d", values[i].Kind(), values[i+1].Kind())
	}
}

func TestInt64Ordering(t *testing.T) {
	values := []FieldValue{Int64(-5), Int64(0), Int64(3), Int64(100)}
	shuffled := []FieldValue{values[2], values[0], values[3], values[1]}
	sort.Slice(shuffled, func(i, j int) bool { return Compare(shuffled[i], shuffled[j]) < 0 })
	assert.Equal(t, values, shuffled)
}

func TestArrayLexicographicOrdering(t *testing.T) {
	a := Array(Int64(1), Int64(2))
	b := Array(Int64(1), Int64(3))
	c := Array(Int64(1), Int64(2), Int64(0))
	assert.True(t, Compare(a, b) < 0)
	assert.True(t, Compare(a, c) < 0)
}

func TestIsNil(t *testing.T) {
	assert.True(t, Null().IsNil())
	assert.False(t, Int64(0).IsNil())
}
