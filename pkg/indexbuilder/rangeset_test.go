package indexbuilder

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFullRangeIsNotDone(t *testing.T) {
	rs := FullRange()
	assert.False(t, rs.Done())
}

func TestEmptyRangeSetIsDone(t *testing.T) {
	assert.True(t, RangeSet{}.Done())
}

func TestPopAndRequeue(t *testing.T) {
	rs := FullRange()
	r, rest, ok := rs.Pop()
	require.True(t, ok)
	assert.Nil(t, r.Begin)
	assert.Nil(t, r.End)
	assert.True(t, rest.Done())

	next := rest.Requeue(Range{Begin: []byte("b"), End: nil}, false)
	assert.False(t, next.Done())
	assert.Equal(t, []byte("b"), next.Ranges[0].Begin)

	done := rest.Requeue(Range{}, true)
	assert.True(t, done.Done())
}

func TestTargetKeySortsAndJoinsNames(t *testing.T) {
	assert.Equal(t, "a+b", TargetKey([]string{"b", "a"}))
	assert.Equal(t, "solo", TargetKey([]string{"solo"}))
}

func TestEncodeDecodeRangeSetRoundTrips(t *testing.T) {
	rs := RangeSet{Ranges: []Range{
		{Begin: []byte("a"), End: []byte("m")},
		{Begin: nil, End: nil},
		{Begin: []byte(""), End: []byte("z")},
	}}
	raw := EncodeRangeSet(rs)
	decoded, err := DecodeRangeSet(raw)
	require.NoError(t, err)
	require.Len(t, decoded.Ranges, 3)
	assert.Equal(t, []byte("a"), decoded.Ranges[0].Begin)
	assert.Equal(t, []byte("m"), decoded.Ranges[0].End)
	assert.Nil(t, decoded.Ranges[1].Begin)
	assert.Nil(t, decoded.Ranges[1].End)
	assert.Equal(t, []byte(""), decoded.Ranges[2].Begin)
}

func TestDecodeRangeSetTruncatedErrors(t *testing.T) {
	_, err := DecodeRangeSet([]byte{0, 0})
	assert.Error(t, err)

	_, err = DecodeRangeSet(nil)
	assert.Error(t, err)
}
