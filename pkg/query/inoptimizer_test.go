package query

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStrategySelector(t *testing.T) {
	assert.Equal(t, StrategyUnion, StrategySelector(3, true))
	assert.Equal(t, StrategyBoundedRangeScan, StrategySelector(100, true))
	assert.Equal(t, StrategyFullScan, StrategySelector(100, false))
	assert.Equal(t, StrategyFullScan, StrategySelector(1_000_000, true))
}

func TestUseBloomFilter(t *testing.T) {
	assert.False(t, UseBloomFilter(10))
	assert.True(t, UseBloomFilter(51))
}

func TestInUnionDeduplicates(t *testing.T) {
	plan := InUnion{
		Values: []FieldValue{String("a"), String("b")},
		Lookup: func(v FieldValue) ([]string, error) {
			s, _ := v.AsString()
			if s == "a" {
				return []string{"1", "2"}, nil
			}
			return []string{"2", "3"}, nil
		},
	}
	ids, err := plan.Execute()
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"1", "2", "3"}, ids)
}

func TestInJoinFiltersCandidates(t *testing.T) {
	plan := InJoin{
		Values: []FieldValue{String("x"), String("y")},
		Scan: func() ([]ScanCandidate, error) {
			return []ScanCandidate{
				{ID: "1", Value: String("x")},
				{ID: "2", Value: String("z")},
				{ID: "3", Value: String("y")},
			}, nil
		},
	}
	ids, err := plan.Execute()
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"1", "3"}, ids)
}

func TestInJoinWithBloomFilter(t *testing.T) {
	bloom := NewBloomFilter(2, 0.01)
	bloom.Add("x")
	bloom.Add("y")
	plan := InJoin{
		Values: []FieldValue{String("x"), String("y")},
		Bloom:  bloom,
		Scan: func() ([]ScanCandidate, error) {
			return []ScanCandidate{
				{ID: "1", Value: String("x")},
				{ID: "2", Value: String("z")},
			}, nil
		},
	}
	ids, err := plan.Execute()
	require.NoError(t, err)
	assert.Equal(t, []string{"1"}, ids)
}
