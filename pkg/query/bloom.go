package query

import (
	"hash/fnv"
	"math"
)

// BloomFilter is a small fixed-size bloom filter used to cheaply reject
// non-matching candidates in InJoin before the exact FieldValue
// comparison runs. No third-party probabilistic-data-structure library
// appears anywhere in the retrieved dependency set, so this uses only
// hash/fnv and a plain bit slice.
type BloomFilter struct {
	bits  []uint64
	nHash int
	nBits int
}

// NewBloomFilter sizes a filter for approximately n elements at the
// given false-positive rate.
func NewBloomFilter(n int, falsePositiveRate float64) *BloomFilter {
	if n <= 0 {
		n = 1
	}
	if falsePositiveRate <= 0 || falsePositiveRate >= 1 {
		falsePositiveRate = 0.01
	}
	m := optimalBits(n, falsePositiveRate)
	k := optimalHashCount(m, n)
	if k < 1 {
		k = 1
	}
	words := (m + 63) / 64
	return &BloomFilter{bits: make([]uint64, words), nHash: k, nBits: m}
}

func optimalBits(n int, p float64) int {
	m := -(float64(n) * math.Log(p)) / (math.Ln2 * math.Ln2)
	if m < 64 {
		m = 64
	}
	return int(m)
}

func optimalHashCount(m, n int) int {
	if n == 0 {
		return 1
	}
	return int(float64(m)/float64(n)*math.Ln2 + 0.5)
}

func (f *BloomFilter) hashes(key string) []uint64 {
	h1 := fnv.New64a()
	_, _ = h1.Write([]byte(key))
	base1 := h1.Sum64()
	h2 := fnv.New64()
	_, _ = h2.Write([]byte(key))
	base2 := h2.Sum64()
	out := make([]uint64, f.nHash)
	for i := 0; i < f.nHash; i++ {
		out[i] = (base1 + uint64(i)*base2) % uint64(f.nBits)
	}
	return out
}

// Add records key as present.
func (f *BloomFilter) Add(key string) {
	for _, h := range f.hashes(key) {
		f.bits[h/64] |= 1 << (h % 64)
	}
}

// MayContain reports whether key might have been added; false means
// definitely not added.
func (f *BloomFilter) MayContain(key string) bool {
	for _, h := range f.hashes(key) {
		if f.bits[h/64]&(1<<(h%64)) == 0 {
			return false
		}
	}
	return true
}
