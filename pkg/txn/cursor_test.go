package txn

import (
	"testing"

	"github.com/cuemby/estore/pkg/cursor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sequenceFetcher(all []int) PageFetcher[int] {
	return func(afterKey []byte, batchSize int) ([]int, [][]byte, error) {
		start := 0
		if afterKey != nil {
			for i, v := range all {
				if byte(v) == afterKey[0] {
					start = i + 1
					break
				}
			}
		}
		end := start + batchSize
		if end > len(all) {
			end = len(all)
		}
		items := all[start:end]
		keys := make([][]byte, len(items))
		for i, v := range items {
			keys[i] = []byte{byte(v)}
		}
		return items, keys, nil
	}
}

func testPlan() cursor.Plan {
	return cursor.Plan{OperatorDescription: "scan:widgets", IndexNames: []string{"by-name"}}
}

func TestCursorPagesUntilDone(t *testing.T) {
	all := []int{1, 2, 3, 4, 5}
	c := NewBuilder(sequenceFetcher(all), testPlan()).BatchSize(2).Build()

	page1, state1, err := c.Next()
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2}, page1)
	assert.Equal(t, More, state1)

	page2, state2, err := c.Next()
	require.NoError(t, err)
	assert.Equal(t, []int{3, 4}, page2)
	assert.Equal(t, More, state2)

	page3, state3, err := c.Next()
	require.NoError(t, err)
	assert.Equal(t, []int{5}, page3)
	assert.Equal(t, Done, state3)

	page4, state4, err := c.Next()
	require.NoError(t, err)
	assert.Empty(t, page4)
	assert.Equal(t, Empty, state4)
}

func TestCursorRespectsLimit(t *testing.T) {
	all := []int{1, 2, 3, 4, 5}
	c := NewBuilder(sequenceFetcher(all), testPlan()).BatchSize(10).Limit(3).Build()

	items, state, err := c.Next()
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2, 3}, items)
	assert.Equal(t, Done, state)
}

func TestCursorCollectDrainsEverything(t *testing.T) {
	all := []int{1, 2, 3, 4, 5}
	c := NewBuilder(sequenceFetcher(all), testPlan()).BatchSize(2).Build()

	items, err := c.Collect()
	require.NoError(t, err)
	assert.Equal(t, all, items)
}

func TestCursorStreamStopsEarly(t *testing.T) {
	all := []int{1, 2, 3, 4, 5}
	c := NewBuilder(sequenceFetcher(all), testPlan()).BatchSize(2).Build()

	var seen []int
	err := c.Stream(func(v int) bool {
		seen = append(seen, v)
		return v < 3
	})
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2, 3}, seen)
}

func TestCursorTokenRoundTripsThroughResume(t *testing.T) {
	all := []int{1, 2, 3, 4, 5}
	c := NewBuilder(sequenceFetcher(all), testPlan()).BatchSize(2).Build()

	_, _, err := c.Next()
	require.NoError(t, err)
	tok := c.Token()

	resumed, err := Resume(sequenceFetcher(all), tok, testPlan())
	require.NoError(t, err)

	rest, err := resumed.Collect()
	require.NoError(t, err)
	assert.Equal(t, []int{3, 4, 5}, rest)
}

func TestResumeRejectsMismatchedPlan(t *testing.T) {
	all := []int{1, 2, 3}
	c := NewBuilder(sequenceFetcher(all), testPlan()).Build()
	_, _, err := c.Next()
	require.NoError(t, err)
	tok := c.Token()

	otherPlan := cursor.Plan{OperatorDescription: "scan:other"}
	_, err = Resume(sequenceFetcher(all), tok, otherPlan)
	assert.Error(t, err)
}

func TestCursorEmptyFetchYieldsEmptyState(t *testing.T) {
	c := NewBuilder(sequenceFetcher(nil), testPlan()).Build()
	items, state, err := c.Next()
	require.NoError(t, err)
	assert.Empty(t, items)
	assert.Equal(t, Empty, state)
}
