package indexbuilder

import (
	"strconv"

	"github.com/cuemby/estore/pkg/codec"
	"github.com/cuemby/estore/pkg/entity"
	"github.com/cuemby/estore/pkg/estoreerr"
	"github.com/cuemby/estore/pkg/index"
	"github.com/cuemby/estore/pkg/itemstore"
	"github.com/cuemby/estore/pkg/kv"
	"github.com/cuemby/estore/pkg/metrics"
)

// DefaultBatchSize bounds how many items one builder transaction reads
// and re-indexes, keeping a single batch's bbolt write transaction
// short-lived even over a large backfill.
const DefaultBatchSize = 500

const progressRegion = "metadata"

func progressKey(targetKey string) []byte {
	return []byte("builder-progress/" + targetKey)
}

// Builder implements C6: it drives one or more writeOnly indexes on a
// type to readable by replaying every stored item's Entries() against
// them, batch by batch, resuming from persisted progress after a crash
// (I4).
type Builder struct {
	db       *kv.DB
	dir      *kv.Directory
	states   *index.StateManager
	dispatch *index.Dispatcher
	store    *itemstore.Store
	t        *entity.Type
	basePath []string

	BatchSize int
}

// New returns a builder for type t, scoped to its own item subspace and
// index subspaces.
func New(db *kv.DB, dir *kv.Directory, t *entity.Type, store *itemstore.Store) *Builder {
	metaSub := dir.Open(t.DirectoryPath)
	states := index.NewStateManager(metaSub)
	return &Builder{
		db:        db,
		dir:       dir,
		states:    states,
		dispatch:  index.NewDispatcher(dir, states),
		store:     store,
		t:         t,
		basePath:  t.DirectoryPath,
		BatchSize: DefaultBatchSize,
	}
}

// Start transitions every named index from disabled to writeOnly (a
// no-op for ones already writeOnly), then batches the full backfill,
// making each index readable once the backfill completes. clearFirst,
// when true, implements a rebuild: the target indexes' entry and
// violation regions are wiped and progress reset to the full range
// before backfilling resumes.
func (b *Builder) Start(targets []*index.Descriptor, clearFirst bool) error {
	targetKey := TargetKey(descriptorNames(targets))
	itemType := b.t.Name
	targetCount := strconv.Itoa(len(targets))

	if err := b.ensureWriteOnly(targets, clearFirst); err != nil {
		return err
	}

	if clearFirst {
		if err := b.clearTargets(targets); err != nil {
			return err
		}
		if _, err := b.db.Update(func(tx *kv.Transaction) error {
			return b.saveProgress(tx, targetKey, FullRange())
		}); err != nil {
			return err
		}
	} else {
		if _, err := b.db.Update(func(tx *kv.Transaction) error {
			_, err := b.loadOrInitProgress(tx, targetKey)
			return err
		}); err != nil {
			return err
		}
	}

	for {
		done, err := b.runBatch(targetKey, targets)
		if err != nil {
			metrics.BuilderErrorsTotal.WithLabelValues(itemType, targetCount).Inc()
			return err
		}
		if done {
			return b.makeReadable(targets)
		}
	}
}

// RunBatch processes a single outstanding batch and reports whether the
// backfill is now complete. Exposed so callers (e.g. a CLI step-mode
// flag, or a test) can drive the builder one batch at a time instead of
// via Start's tight loop.
func (b *Builder) RunBatch(targets []*index.Descriptor) (bool, error) {
	return b.runBatch(TargetKey(descriptorNames(targets)), targets)
}

func (b *Builder) runBatch(targetKey string, targets []*index.Descriptor) (bool, error) {
	itemType := b.t.Name
	targetCount := strconv.Itoa(len(targets))
	timer := metrics.NewTimer()

	var done bool
	var indexed int
	_, err := b.db.Update(func(tx *kv.Transaction) error {
		progress, err := b.loadOrInitProgress(tx, targetKey)
		if err != nil {
			return err
		}
		r, rest, ok := progress.Pop()
		if !ok {
			done = true
			return nil
		}

		// Read one item past the batch so a batch that ends exactly at the
		// range's last item is already known to be complete.
		it, err := b.store.Scan(tx, r.Begin, r.End, false, b.BatchSize+1)
		if err != nil {
			return err
		}

		var lastKey []byte
		count := 0
		more := false
		for it.Next() {
			if count == b.BatchSize {
				more = true
				break
			}
			key, raw := it.Pair()
			rec := b.t.NewRecord()
			if err := codec.Decode(raw, rec); err != nil {
				return err
			}
			if err := b.dispatch.Apply(tx, b.basePath, targets, nil, rec, rec.ID()); err != nil {
				return err
			}
			lastKey = append([]byte(nil), key...)
			count++
		}
		if it.Err() != nil {
			return it.Err()
		}

		complete := !more
		var remainder Range
		if !complete {
			remainder = Range{Begin: kv.StrInc(lastKey), End: r.End}
		}
		next := rest.Requeue(remainder, complete)
		indexed = count

		if err := b.saveProgress(tx, targetKey, next); err != nil {
			return err
		}
		done = next.Done()
		return nil
	})

	metrics.BatchesProcessedTotal.WithLabelValues(itemType, targetCount).Inc()
	timer.ObserveDurationVec(metrics.BatchDuration, itemType, targetCount)
	if err != nil {
		return false, err
	}
	metrics.ItemsIndexedTotal.WithLabelValues(itemType, targetCount).Add(float64(indexed))
	return done, nil
}

// ensureWriteOnly moves every target index to writeOnly: disabled
// indexes via Enable, and — only when rebuild asks for it — readable
// indexes via Rebuild. Indexes already writeOnly are left untouched, so
// Start is safe to call again against a builder that crashed mid-backfill.
func (b *Builder) ensureWriteOnly(targets []*index.Descriptor, rebuild bool) error {
	_, err := b.db.Update(func(tx *kv.Transaction) error {
		for _, d := range targets {
			state, err := b.states.State(tx, d.Name)
			if err != nil {
				return err
			}
			switch state {
			case entity.StateDisabled:
				if err := b.states.Enable(tx, d.Name); err != nil {
					return err
				}
			case entity.StateReadable:
				if rebuild {
					if err := b.states.Rebuild(tx, d.Name); err != nil {
						return err
					}
				}
			}
		}
		return nil
	})
	return err
}

func (b *Builder) makeReadable(targets []*index.Descriptor) error {
	_, err := b.db.Update(func(tx *kv.Transaction) error {
		for _, d := range targets {
			state, err := b.states.State(tx, d.Name)
			if err != nil {
				return err
			}
			if state == entity.StateWriteOnly {
				if err := b.states.MakeReadable(tx, d.Name); err != nil {
					return err
				}
			}
		}
		return nil
	})
	return err
}

func (b *Builder) clearTargets(targets []*index.Descriptor) error {
	_, err := b.db.Update(func(tx *kv.Transaction) error {
		for _, d := range targets {
			sub := b.dispatch.IndexSubspace(b.basePath, d.Name)
			if err := tx.ClearPrefix(sub, "entries", nil); err != nil {
				return err
			}
			if err := tx.ClearPrefix(sub, "metadata", []byte("violation/"+d.Name+"/")); err != nil {
				return err
			}
		}
		return nil
	})
	return err
}

func (b *Builder) loadProgress(tx *kv.Transaction, targetKey string) (RangeSet, error) {
	raw, err := tx.Get(b.dir.Open(b.basePath), progressRegion, progressKey(targetKey))
	if err != nil {
		return RangeSet{}, err
	}
	if raw == nil {
		return RangeSet{}, &estoreerr.NotFound{EntityType: b.t.Name, ID: targetKey}
	}
	return DecodeRangeSet(raw)
}

func (b *Builder) loadOrInitProgress(tx *kv.Transaction, targetKey string) (RangeSet, error) {
	p, err := b.loadProgress(tx, targetKey)
	if _, isNotFound := err.(*estoreerr.NotFound); isNotFound {
		full := FullRange()
		return full, b.saveProgress(tx, targetKey, full)
	}
	return p, err
}

func (b *Builder) saveProgress(tx *kv.Transaction, targetKey string, rs RangeSet) error {
	return tx.Set(b.dir.Open(b.basePath), progressRegion, progressKey(targetKey), EncodeRangeSet(rs))
}

// PendingRanges reports how many unprocessed key ranges remain for
// targets' backfill, for a periodic metrics collector to sample. A
// target that has never been started reports one range (the full
// keyspace); a finished backfill reports zero.
func (b *Builder) PendingRanges(targets []*index.Descriptor) (int, error) {
	targetKey := TargetKey(descriptorNames(targets))
	var n int
	err := b.db.View(func(tx *kv.Transaction) error {
		progress, err := b.loadProgress(tx, targetKey)
		if _, isNotFound := err.(*estoreerr.NotFound); isNotFound {
			n = len(FullRange().Ranges)
			return nil
		}
		if err != nil {
			return err
		}
		n = len(progress.Ranges)
		return nil
	})
	return n, err
}

// IndexStates exposes the builder's state manager so a health checker can
// read each target's current lifecycle state without duplicating the
// directory-resolution logic in New.
func (b *Builder) IndexStates() *index.StateManager {
	return b.states
}

func descriptorNames(targets []*index.Descriptor) []string {
	names := make([]string, len(targets))
	for i, d := range targets {
		names[i] = d.Name
	}
	return names
}
