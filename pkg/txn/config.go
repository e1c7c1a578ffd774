package txn

import (
	"time"

	"github.com/cuemby/estore/pkg/rvcache"
)

// Config configures one Save call's isolation and failure-handling
// policy. The zero value matches Default() except that FailFast is
// false, so every commit check runs.
type Config struct {
	// ReadOnly transactions never reach the item-store/index write path;
	// Save rejects a non-empty ChangeSet under a read-only Config.
	ReadOnly bool
	// CacheSemantics states how stale a read version from the process-wide
	// read-version cache (C7) this transaction tolerates. Save does not
	// consult it: Save's reads run inside its own write transaction and
	// always see the latest committed state.
	CacheSemantics rvcache.Semantics
	// FailFast stops CommitCheckRegistry.ExecuteAll at the first failing
	// check instead of collecting every failure.
	FailFast bool
	// Timeout bounds how long Save may run before returning
	// *estoreerr.Timeout; zero means no timeout.
	Timeout time.Duration
	// Auth identifies the caller for field-security checks (pkg/fieldsec).
	// Nil means an anonymous, unauthenticated caller.
	Auth any
}

// Default is for ordinary interactive single-record saves: strict reads,
// fail-fast commit checks, no timeout.
func Default() Config {
	return Config{CacheSemantics: rvcache.Strict(), FailFast: true}
}

// Batch is for large multi-record imports: relaxed reads, every commit
// check runs so a caller can report all violations at once.
func Batch() Config {
	return Config{CacheSemantics: rvcache.Relaxed(), FailFast: false}
}

// System is for internal maintenance writes (index builder, migrations):
// strict reads, fail-fast, a generous timeout.
func System() Config {
	return Config{CacheSemantics: rvcache.Strict(), FailFast: true, Timeout: 5 * time.Minute}
}

// Interactive is for user-facing request/response saves: a short
// timeout so a stuck save fails back to the caller quickly.
func Interactive() Config {
	return Config{CacheSemantics: rvcache.Strict(), FailFast: true, Timeout: 10 * time.Second}
}

// LongRunning disables the timeout entirely, for saves driven by a
// long background job.
func LongRunning() Config {
	return Config{CacheSemantics: rvcache.Default(), FailFast: true}
}

// ReadOnlyConfig performs no writes and always fetches a fresh version.
func ReadOnlyConfig() Config {
	return Config{ReadOnly: true, CacheSemantics: rvcache.Strict()}
}

// ReadOnlyCached performs no writes and tolerates the default cache
// staleness budget, for read-heavy paths that can't justify a fresh
// version fetch on every call.
func ReadOnlyCached() Config {
	return Config{ReadOnly: true, CacheSemantics: rvcache.Default()}
}
