package txn

import (
	"context"
	"time"

	"github.com/cuemby/estore/pkg/log"
	"github.com/rs/zerolog"
)

// PostCommitMode selects how a PostCommitHook runs relative to the
// Save call that triggered it and to other hooks.
type PostCommitMode int

const (
	// Sequential runs the hook inline, blocking Save's return until it
	// finishes, before the next registered hook starts.
	Sequential PostCommitMode = iota
	// Concurrent runs the hook in its own goroutine, but Save still waits
	// for every concurrent hook to finish before returning.
	Concurrent
	// Retrying runs the hook inline like Sequential, retrying up to
	// MaxAttempts times with Backoff between attempts on error.
	Retrying
	// Delayed schedules the hook to run After has elapsed, without
	// blocking Save's return at all.
	Delayed
	// FireAndForget launches the hook in a goroutine and does not wait
	// for it, swallowing any error it returns (logged, not propagated).
	FireAndForget
)

// PostCommitHook runs after a transaction has committed successfully.
type PostCommitHook struct {
	Name        string
	Mode        PostCommitMode
	Func        func(ctx context.Context, cs *ChangeSet) error
	MaxAttempts int           // Retrying only; defaults to 3 if unset
	Backoff     time.Duration // Retrying only; defaults to 100ms if unset
	After       time.Duration // Delayed only
}

// PostCommitRegistry holds the hooks that run after every successful commit.
type PostCommitRegistry struct {
	hooks []PostCommitHook
}

// NewPostCommitRegistry returns an empty registry.
func NewPostCommitRegistry() *PostCommitRegistry {
	return &PostCommitRegistry{}
}

// Register adds hook to the registry.
func (r *PostCommitRegistry) Register(hook PostCommitHook) {
	r.hooks = append(r.hooks, hook)
}

// ExecuteAll runs every registered hook against cs per its mode. It
// blocks until every Sequential, Concurrent, and Retrying hook has
// finished; Delayed and FireAndForget hooks run detached and never
// block the caller.
func (r *PostCommitRegistry) ExecuteAll(ctx context.Context, cs *ChangeSet) {
	logger := log.WithComponent("txn.postcommit")
	var pending []func()

	for _, hook := range r.hooks {
		hook := hook
		switch hook.Mode {
		case Sequential:
			if err := hook.Func(ctx, cs); err != nil {
				logger.Error().Err(err).Str("hook", hook.Name).Msg("post-commit hook failed")
			}
		case Concurrent:
			done := make(chan struct{})
			pending = append(pending, func() { <-done })
			go func() {
				defer close(done)
				if err := hook.Func(ctx, cs); err != nil {
					logger.Error().Err(err).Str("hook", hook.Name).Msg("post-commit hook failed")
				}
			}()
		case Retrying:
			runRetrying(ctx, logger, hook, cs)
		case Delayed:
			go func() {
				timer := time.NewTimer(hook.After)
				defer timer.Stop()
				select {
				case <-timer.C:
				case <-ctx.Done():
					return
				}
				if err := hook.Func(ctx, cs); err != nil {
					logger.Error().Err(err).Str("hook", hook.Name).Msg("delayed post-commit hook failed")
				}
			}()
		case FireAndForget:
			go func() {
				if err := hook.Func(ctx, cs); err != nil {
					logger.Error().Err(err).Str("hook", hook.Name).Msg("fire-and-forget post-commit hook failed")
				}
			}()
		}
	}

	for _, wait := range pending {
		wait()
	}
}

func runRetrying(ctx context.Context, logger zerolog.Logger, hook PostCommitHook, cs *ChangeSet) {
	attempts := hook.MaxAttempts
	if attempts <= 0 {
		attempts = 3
	}
	backoff := hook.Backoff
	if backoff <= 0 {
		backoff = 100 * time.Millisecond
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err := hook.Func(ctx, cs); err != nil {
			lastErr = err
			logger.Warn().Err(err).Str("hook", hook.Name).Int("attempt", attempt).Msg("post-commit hook attempt failed")
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return
			}
			continue
		}
		return
	}
	logger.Error().Err(lastErr).Str("hook", hook.Name).Int("attempts", attempts).Msg("post-commit hook exhausted retries")
}
