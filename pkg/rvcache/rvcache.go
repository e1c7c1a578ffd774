/*
Package rvcache implements C7: a process-wide cache of the store's last
observed read version, letting read-only transactions start from a
cached version instead of paying a fresh version-fetch round trip on
every read. A cached version is only usable when the caller's staleness
budget tolerates it; Semantics expresses that budget as either a bound
on how old the version may be or an explicit minimum version to catch
up to.
*/
package rvcache

import (
	"sync"
	"time"

	"github.com/cuemby/estore/pkg/kv"
	"github.com/cuemby/estore/pkg/log"
	"github.com/cuemby/estore/pkg/metrics"
)

// Semantics describes how stale a read is willing to be.
type Semantics struct {
	// MaxStaleness bounds how long ago the cached version may have been
	// observed. Zero means "no cached read; always fetch fresh" (Strict).
	MaxStaleness time.Duration
	// AtLeast, when non-zero, requires the cached version to be >= this
	// value; a stale cache entry below it is treated as a miss.
	AtLeast kv.Version
}

// Strict never serves a cached version.
func Strict() Semantics { return Semantics{} }

// Default tolerates reads up to 5 seconds stale.
func Default() Semantics { return Semantics{MaxStaleness: 5 * time.Second} }

// Relaxed tolerates reads up to 30 seconds stale.
func Relaxed() Semantics { return Semantics{MaxStaleness: 30 * time.Second} }

// VeryRelaxed tolerates reads up to 60 seconds stale.
func VeryRelaxed() Semantics { return Semantics{MaxStaleness: 60 * time.Second} }

// AtLeast requires the cached version to be at or past v.
func AtLeast(v kv.Version) Semantics { return Semantics{MaxStaleness: VeryRelaxed().MaxStaleness, AtLeast: v} }

// MaxStalenessOf tolerates reads up to d stale.
func MaxStalenessOf(d time.Duration) Semantics { return Semantics{MaxStaleness: d} }

// Statistics reports the cache's lifetime hit/miss counters.
type Statistics struct {
	Hits              uint64
	Misses            uint64
	LastCommitVersion kv.Version
}

// HitRatio returns Hits / (Hits + Misses), or 0 if there have been no
// lookups yet.
func (s Statistics) HitRatio() float64 {
	total := s.Hits + s.Misses
	if total == 0 {
		return 0
	}
	return float64(s.Hits) / float64(total)
}

// Cache is the process-wide read-version cache. It is safe for
// concurrent use by every in-flight transaction.
type Cache struct {
	mu         sync.Mutex
	version    kv.Version
	observedAt time.Time
	hits       uint64
	misses     uint64
	hasVersion bool
}

// New returns an empty cache.
func New() *Cache {
	return &Cache{}
}

// Get returns a usable cached version under sem, or (0, false) on a
// cache miss requiring a fresh fetch.
func (c *Cache) Get(sem Semantics) (kv.Version, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, at, has := c.version, c.observedAt, c.hasVersion

	miss := func() (kv.Version, bool) {
		c.misses++
		metrics.ReadVersionCacheMissesTotal.Inc()
		return 0, false
	}

	if !has || sem.MaxStaleness <= 0 {
		return miss()
	}
	if sem.AtLeast != 0 && v < sem.AtLeast {
		return miss()
	}
	if time.Since(at) > sem.MaxStaleness {
		return miss()
	}
	c.hits++
	metrics.ReadVersionCacheHitsTotal.Inc()
	return v, true
}

// UpdateFromRead records a version observed by a read transaction. It
// only advances the cache, never regresses it — a reader racing ahead
// of a slower concurrent reader must not clobber a newer cached value.
func (c *Cache) UpdateFromRead(v kv.Version) {
	c.update(v)
}

// UpdateFromCommit records a version produced by a just-committed write
// transaction, which is always at least as fresh as anything previously
// cached.
func (c *Cache) UpdateFromCommit(v kv.Version) {
	c.update(v)
}

func (c *Cache) update(v kv.Version) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.hasVersion && v <= c.version {
		return
	}
	c.version = v
	c.observedAt = time.Now()
	c.hasVersion = true
}

// Invalidate drops the cached version, forcing the next Get to miss
// regardless of staleness budget. Used after operations (directory
// changes, index rebuild resets) whose effects a stale cached version
// could otherwise mask.
func (c *Cache) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.version = 0
	c.observedAt = time.Time{}
	c.hasVersion = false
	log.WithComponent("rvcache").Debug().Msg("read-version cache invalidated")
}

// Statistics returns a snapshot of the cache's lifetime counters. Hits
// and misses are also exported live via Prometheus
// (estore_readversion_cache_hits_total / _misses_total); this accessor
// exists for callers that want a point-in-time struct, e.g. a status
// CLI command.
func (c *Cache) Statistics() Statistics {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Statistics{Hits: c.hits, Misses: c.misses, LastCommitVersion: c.version}
}
