package txn

import (
	"github.com/cuemby/estore/pkg/cursor"
)

// ResultState reports what a Cursor step produced.
type ResultState int

const (
	// More indicates the page returned is full-sized; further pages may
	// exist.
	More ResultState = iota
	// Done indicates the page returned was the last one, either because
	// it came back short or the cursor's Limit was reached.
	Done
	// Empty indicates the fetch produced no items at all.
	Empty
)

// PageFetcher retrieves up to batchSize items starting after afterKey
// (nil on the first call), returning the items and the key of each item
// in the same order for resumption.
type PageFetcher[T any] func(afterKey []byte, batchSize int) (items []T, keys [][]byte, err error)

const defaultBatchSize = 100

// Builder configures a Cursor before first use.
type Builder[T any] struct {
	fetch     PageFetcher[T]
	plan      cursor.Plan
	scanType  cursor.ScanType
	reverse   bool
	batchSize int
	limit     int64 // -1 means unlimited
}

// NewBuilder starts building a cursor that pages through fetch's
// results, bound to plan for continuation-token verification.
func NewBuilder[T any](fetch PageFetcher[T], plan cursor.Plan) *Builder[T] {
	return &Builder[T]{fetch: fetch, plan: plan, batchSize: defaultBatchSize, limit: -1}
}

// ScanType records what kind of scan produced this cursor's pages, for
// diagnostics embedded in its continuation tokens.
func (b *Builder[T]) ScanType(t cursor.ScanType) *Builder[T] {
	b.scanType = t
	return b
}

// Reverse pages the underlying scan in descending key order.
func (b *Builder[T]) Reverse(reverse bool) *Builder[T] {
	b.reverse = reverse
	return b
}

// BatchSize sets how many items each Next call fetches.
func (b *Builder[T]) BatchSize(n int) *Builder[T] {
	if n > 0 {
		b.batchSize = n
	}
	return b
}

// Limit caps the total number of items the cursor will ever yield.
func (b *Builder[T]) Limit(n int64) *Builder[T] {
	if n > 0 {
		b.limit = n
	}
	return b
}

// Build returns a fresh Cursor starting from the beginning of the scan.
func (b *Builder[T]) Build() *Cursor[T] {
	return &Cursor[T]{
		fetch:     b.fetch,
		plan:      b.plan,
		scanType:  b.scanType,
		reverse:   b.reverse,
		batchSize: b.batchSize,
		remaining: b.limit,
		original:  b.limit,
	}
}

// Resume reconstructs a Cursor from a previously issued token, rejecting
// it with *estoreerr.ContinuationError if tok was not issued for plan.
func Resume[T any](fetch PageFetcher[T], tok cursor.Token, plan cursor.Plan) (*Cursor[T], error) {
	if err := cursor.VerifyPlan(tok, plan); err != nil {
		return nil, err
	}
	return &Cursor[T]{
		fetch:     fetch,
		plan:      plan,
		scanType:  tok.ScanType,
		reverse:   tok.Reverse,
		batchSize: defaultBatchSize,
		afterKey:  tok.LastKey,
		remaining: tok.RemainingLimit,
		original:  tok.OriginalLimit,
	}, nil
}

// Cursor pages through a PageFetcher's results, tracking the key to
// resume from and an overall item limit, and can be serialized to an
// opaque continuation token at any point between pages.
type Cursor[T any] struct {
	fetch     PageFetcher[T]
	plan      cursor.Plan
	scanType  cursor.ScanType
	reverse   bool
	batchSize int
	afterKey  []byte
	remaining int64 // -1 means unlimited
	original  int64
	done      bool
}

// Next fetches the next page. Once it returns Done or Empty, further
// calls return Empty with no items.
func (c *Cursor[T]) Next() ([]T, ResultState, error) {
	if c.done {
		return nil, Empty, nil
	}

	size := c.batchSize
	if c.remaining >= 0 && int64(size) > c.remaining {
		size = int(c.remaining)
	}
	if size == 0 {
		c.done = true
		return nil, Done, nil
	}

	items, keys, err := c.fetch(c.afterKey, size)
	if err != nil {
		return nil, Empty, err
	}
	if len(items) == 0 {
		c.done = true
		return nil, Empty, nil
	}

	if len(keys) > 0 {
		c.afterKey = keys[len(keys)-1]
	}
	if c.remaining >= 0 {
		c.remaining -= int64(len(items))
	}

	state := More
	if len(items) < size || c.remaining == 0 {
		state = Done
		c.done = true
	}
	return items, state, nil
}

// Stream calls yield for every remaining item in order, stopping early
// if yield returns false.
func (c *Cursor[T]) Stream(yield func(T) bool) error {
	for {
		items, state, err := c.Next()
		if err != nil {
			return err
		}
		for _, it := range items {
			if !yield(it) {
				return nil
			}
		}
		if state != More {
			return nil
		}
	}
}

// Collect drains the cursor into a single slice.
func (c *Cursor[T]) Collect() ([]T, error) {
	var out []T
	err := c.Stream(func(t T) bool {
		out = append(out, t)
		return true
	})
	return out, err
}

// Token returns a continuation token capturing the cursor's current
// position, suitable for Resume.
func (c *Cursor[T]) Token() cursor.Token {
	return cursor.Token{
		ScanType:       c.scanType,
		Reverse:        c.reverse,
		LastKey:        c.afterKey,
		RemainingLimit: c.remaining,
		OriginalLimit:  c.original,
		Fingerprint:    c.plan.Fingerprint(),
	}
}
