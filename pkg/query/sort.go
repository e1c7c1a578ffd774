package query

import "sort"

// SortDescriptor orders records by a field accessor, ascending or
// descending. Descending is implemented by flipping the comparison —
// FieldValue ordering is a total order, so the flip is its own
// involution and stable either direction.
type SortDescriptor struct {
	Accessor   Accessor
	Descending bool
}

// SortRecords sorts recs in place according to descriptors, applied in
// order as tie-breaks.
func SortRecords(recs []any, descriptors []SortDescriptor) {
	sort.SliceStable(recs, func(i, j int) bool {
		for _, d := range descriptors {
			vi := d.Accessor.Resolve(recs[i])
			vj := d.Accessor.Resolve(recs[j])
			c := Compare(vi, vj)
			if d.Descending {
				c = -c
			}
			if c != 0 {
				return c < 0
			}
		}
		return false
	})
}
