package query

// Strategy names the execution plan chosen for an IN predicate against
// an indexed field.
type Strategy int

const (
	// StrategyUnion converts a small value set into many independent
	// point lookups (InUnion): cheap when the set is small.
	StrategyUnion Strategy = iota
	// StrategyBoundedRangeScan scans a bounded index range and probes
	// each candidate against the value set (InJoin), optionally behind
	// a bloom filter when the set is large enough that probing every
	// scanned key directly would be wasteful.
	StrategyBoundedRangeScan
	// StrategyFullScan falls back to scanning without an index bound at
	// all — chosen when the value set is unbounded or too large for
	// either of the above to pay off.
	StrategyFullScan
)

// inUnionThreshold is the value-set size below which point lookups beat
// a range scan outright.
const inUnionThreshold = 8

// inBloomThreshold is the value-set size above which a bounded range
// scan should use a bloom filter to reject non-matching candidates
// before doing a full FieldValue comparison.
const inBloomThreshold = 50

// boundedRangeLimit is the value-set size above which even a bounded
// range scan is assumed to cost more than a full scan (the bound no
// longer meaningfully narrows the range).
const boundedRangeLimit = 10000

// StrategySelector picks an execution strategy for an IN predicate over
// n distinct values, where indexBounded reports whether the field has
// an index that can produce a bounded range for this value set.
func StrategySelector(n int, indexBounded bool) Strategy {
	switch {
	case n <= inUnionThreshold:
		return StrategyUnion
	case indexBounded && n <= boundedRangeLimit:
		return StrategyBoundedRangeScan
	default:
		return StrategyFullScan
	}
}

// UseBloomFilter reports whether a bounded range scan for n values
// should pre-filter candidates with a bloom filter before the exact
// FieldValue comparison.
func UseBloomFilter(n int) bool {
	return n > inBloomThreshold
}

// InUnion is the plan for a small IN value set: one point lookup per
// value via Lookup, deduplicating results by their caller-assigned key.
type InUnion struct {
	Values []FieldValue
	Lookup func(v FieldValue) ([]string, error)
}

// Execute runs every point lookup and returns the union of results,
// deduplicated.
func (u InUnion) Execute() ([]string, error) {
	seen := make(map[string]struct{})
	var out []string
	for _, v := range u.Values {
		ids, err := u.Lookup(v)
		if err != nil {
			return nil, err
		}
		for _, id := range ids {
			if _, ok := seen[id]; ok {
				continue
			}
			seen[id] = struct{}{}
			out = append(out, id)
		}
	}
	return out, nil
}

// InJoin is the plan for a larger IN value set: a single bounded range
// scan via Scan, with each candidate probed against Values (optionally
// behind a bloom filter supplied by the caller).
type InJoin struct {
	Values []FieldValue
	Scan   func() ([]ScanCandidate, error)
	Bloom  *BloomFilter // nil disables pre-filtering
}

// ScanCandidate is one row yielded by a bounded range scan, paired with
// the FieldValue to probe against the IN set.
type ScanCandidate struct {
	ID    string
	Value FieldValue
}

// Execute runs the scan and filters candidates against the value set.
func (j InJoin) Execute() ([]string, error) {
	rows, err := j.Scan()
	if err != nil {
		return nil, err
	}
	set := make(map[string]struct{}, len(j.Values))
	for _, v := range j.Values {
		set[v.String()] = struct{}{}
	}
	var out []string
	for _, r := range rows {
		key := r.Value.String()
		if j.Bloom != nil && !j.Bloom.MayContain(key) {
			continue
		}
		if _, ok := set[key]; ok {
			out = append(out, r.ID)
		}
	}
	return out, nil
}
