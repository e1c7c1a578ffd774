package health

import (
	"context"
	"fmt"
	"time"

	"github.com/cuemby/estore/pkg/entity"
	"github.com/cuemby/estore/pkg/index"
	"github.com/cuemby/estore/pkg/indexbuilder"
	"github.com/cuemby/estore/pkg/kv"
)

// StoreChecker verifies the underlying bbolt database still answers a
// trivial read transaction.
type StoreChecker struct {
	DB *kv.DB
}

// Check opens and immediately closes a read-only transaction.
func (c *StoreChecker) Check(ctx context.Context) Result {
	start := time.Now()
	if err := c.DB.View(func(tx *kv.Transaction) error { return nil }); err != nil {
		return Result{Healthy: false, Message: fmt.Sprintf("store unreachable: %v", err), CheckedAt: start, Duration: time.Since(start)}
	}
	return Result{Healthy: true, Message: "ok", CheckedAt: start, Duration: time.Since(start)}
}

// Type reports this as an in-process check, not an HTTP/TCP probe.
func (c *StoreChecker) Type() CheckType { return CheckTypeExec }

// BuilderChecker reports a target index build as unhealthy for as long as
// the backfill has pending ranges and a target has not yet reached
// readable: the index cannot serve queries yet. A target that has never
// been started counts as pending (with no persisted progress,
// PendingRanges reports the full keyspace as one range), so it reports
// unhealthy too. A finished backfill (no pending ranges), or pending
// ranges with every target already readable, reports healthy.
type BuilderChecker struct {
	DB      *kv.DB
	Builder *indexbuilder.Builder
	Targets []*index.Descriptor
}

// Check reads the builder's current progress and each target's lifecycle
// state.
func (c *BuilderChecker) Check(ctx context.Context) Result {
	start := time.Now()
	pending, err := c.Builder.PendingRanges(c.Targets)
	if err != nil {
		return Result{Healthy: false, Message: fmt.Sprintf("index builder progress unreadable: %v", err), CheckedAt: start, Duration: time.Since(start)}
	}
	if pending == 0 {
		return Result{Healthy: true, Message: "backfill complete", CheckedAt: start, Duration: time.Since(start)}
	}

	var notReadable []string
	err = c.DB.View(func(tx *kv.Transaction) error {
		for _, d := range c.Targets {
			state, err := c.Builder.IndexStates().State(tx, d.Name)
			if err != nil {
				return err
			}
			if state != entity.StateReadable {
				notReadable = append(notReadable, d.Name)
			}
		}
		return nil
	})
	if err != nil {
		return Result{Healthy: false, Message: fmt.Sprintf("index state unreadable: %v", err), CheckedAt: start, Duration: time.Since(start)}
	}
	if len(notReadable) > 0 {
		return Result{
			Healthy:   false,
			Message:   fmt.Sprintf("%d pending ranges, not yet readable: %v", pending, notReadable),
			CheckedAt: start,
			Duration:  time.Since(start),
		}
	}
	return Result{Healthy: true, Message: fmt.Sprintf("%d pending ranges, all targets already readable", pending), CheckedAt: start, Duration: time.Since(start)}
}

// Type reports this as an in-process check, not an HTTP/TCP probe.
func (c *BuilderChecker) Type() CheckType { return CheckTypeExec }
