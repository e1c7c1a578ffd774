package index

import (
	"bytes"
	"encoding/binary"

	"github.com/cuemby/estore/pkg/entity"
	"github.com/cuemby/estore/pkg/estoreerr"
	"github.com/cuemby/estore/pkg/kv"
	"github.com/cuemby/estore/pkg/tuple"
)

const entriesRegion = "entries"
const violationsRegion = "metadata"

// Dispatcher implements C4: given (oldRecord?, newRecord?) it invokes
// each maintained index's apply step, honoring sparse/unique and I7
// state gating.
type Dispatcher struct {
	dir    *kv.Directory
	states *StateManager
}

// NewDispatcher returns a dispatcher bound to the directory layer and
// an entity type's state manager.
func NewDispatcher(dir *kv.Directory, states *StateManager) *Dispatcher {
	return &Dispatcher{dir: dir, states: states}
}

func (disp *Dispatcher) indexSubspace(basePath []string, name string) kv.Subspace {
	return disp.dir.Open(append(append([]string(nil), basePath...), "indexes", name))
}

// IndexSubspace exposes indexSubspace to callers outside the package
// (the online index builder) that need to clear an index's regions
// directly ahead of a rebuild.
func (disp *Dispatcher) IndexSubspace(basePath []string, name string) kv.Subspace {
	return disp.indexSubspace(basePath, name)
}

// Apply runs the maintenance step for every descriptor whose state is
// writeOnly or readable (I7), deriving the subspace once per index and
// honoring sparse/unique as C4 requires.
func (disp *Dispatcher) Apply(tx *kv.Transaction, basePath []string, descriptors []*Descriptor, oldRec, newRec entity.Record, id tuple.Element) error {
	for _, d := range descriptors {
		state, err := disp.states.State(tx, d.Name)
		if err != nil {
			return err
		}
		if state != entity.StateWriteOnly && state != entity.StateReadable {
			continue
		}
		sub := disp.indexSubspace(basePath, d.Name)
		switch d.Kind {
		case entity.IndexCount:
			if err := disp.applyCount(tx, sub, d, oldRec, newRec); err != nil {
				return err
			}
		case entity.IndexSum:
			if err := disp.applySum(tx, sub, d, oldRec, newRec); err != nil {
				return err
			}
		case entity.IndexVersion:
			if err := disp.applyVersion(tx, sub, d, newRec, id); err != nil {
				return err
			}
		default:
			if err := disp.applyEntrySet(tx, sub, d, oldRec, newRec, id); err != nil {
				return err
			}
		}
	}
	return nil
}

func (disp *Dispatcher) applyEntrySet(tx *kv.Transaction, sub kv.Subspace, d *Descriptor, oldRec, newRec entity.Record, id tuple.Element) error {
	var oldEntries, newEntries []Entry
	var err error
	if oldRec != nil {
		oldEntries, err = Entries(d, id, oldRec)
		if err != nil {
			return err
		}
	}
	if newRec != nil {
		newEntries, err = Entries(d, id, newRec)
		if err != nil {
			return err
		}
	}

	oldSet := entrySet(oldEntries)
	newSet := entrySet(newEntries)

	// Diff by whole-entry (key, value) identity, matching the source
	// algorithm's old\new / new\old set difference: a key whose stored
	// value changed is both cleared and re-set, net effect an overwrite.
	for key, oldEntry := range oldSet {
		newEntry, stillPresent := newSet[key]
		if stillPresent && bytes.Equal(oldEntry.Value, newEntry.Value) {
			continue
		}
		if err := tx.Clear(sub, entriesRegion, []byte(key)); err != nil {
			return err
		}
	}
	for key, e := range newSet {
		if oldEntry, present := oldSet[key]; present && bytes.Equal(oldEntry.Value, e.Value) {
			continue
		}
		if d.Unique {
			conflict, err := disp.checkUnique(tx, sub, d, e)
			if err != nil {
				return err
			}
			if conflict {
				continue
			}
		}
		if err := tx.Set(sub, entriesRegion, []byte(key), e.Value); err != nil {
			return err
		}
	}
	return nil
}

// checkUnique reports whether writing e would create a second entry
// with the same value tuple (I5) pointing at a different primary id. It
// scans the [ValuePrefix, StrInc(ValuePrefix)) range — every entry
// whose key starts with the value tuple, regardless of which id it
// ends in — for any key other than e.Key itself. A conflict is recorded
// into the metadata uniqueness-violations set rather than necessarily
// aborting the transaction; I5 enforcement vs. abort policy is the
// orchestrator's call (C8), not the dispatcher's.
func (disp *Dispatcher) checkUnique(tx *kv.Transaction, sub kv.Subspace, d *Descriptor, e Entry) (bool, error) {
	if len(e.ValuePrefix) == 0 {
		return false, nil
	}
	it, err := tx.GetRange(sub, entriesRegion, e.ValuePrefix, kv.StrInc(e.ValuePrefix), false, 0)
	if err != nil {
		return false, err
	}
	conflict := false
	for it.Next() {
		pair := it.Pair()
		if bytes.Equal(pair.Key, e.Key) {
			continue
		}
		conflict = true
		break
	}
	if !conflict {
		return false, nil
	}
	violation := &estoreerr.UniquenessViolation{IndexName: d.Name, Key: string(e.ValuePrefix)}
	if err := tx.Set(sub, violationsRegion, []byte("violation/"+d.Name+"/"+string(e.Key)), []byte(violation.Error())); err != nil {
		return false, err
	}
	return true, nil
}

func entrySet(entries []Entry) map[string]Entry {
	out := make(map[string]Entry, len(entries))
	for _, e := range entries {
		out[string(e.Key)] = e
	}
	return out
}

func (disp *Dispatcher) applyCount(tx *kv.Transaction, sub kv.Subspace, d *Descriptor, oldRec, newRec entity.Record) error {
	var oldGroup, newGroup tuple.Element
	var haveOld, haveNew bool
	if oldRec != nil {
		g, err := d.GroupKey(oldRec)
		if err != nil {
			return err
		}
		oldGroup, haveOld = g, true
	}
	if newRec != nil {
		g, err := d.GroupKey(newRec)
		if err != nil {
			return err
		}
		newGroup, haveNew = g, true
	}
	switch {
	case haveOld && haveNew && tuple.Compare(tuple.Pack(oldGroup), tuple.Pack(newGroup)) == 0:
		return nil
	case haveOld && haveNew:
		if _, err := tx.AtomicAdd(sub, entriesRegion, tuple.Pack(oldGroup), -1); err != nil {
			return err
		}
		_, err := tx.AtomicAdd(sub, entriesRegion, tuple.Pack(newGroup), 1)
		return err
	case haveNew:
		_, err := tx.AtomicAdd(sub, entriesRegion, tuple.Pack(newGroup), 1)
		return err
	case haveOld:
		_, err := tx.AtomicAdd(sub, entriesRegion, tuple.Pack(oldGroup), -1)
		return err
	default:
		return nil
	}
}

func (disp *Dispatcher) applySum(tx *kv.Transaction, sub kv.Subspace, d *Descriptor, oldRec, newRec entity.Record) error {
	var oldGroup, newGroup tuple.Element
	var oldAmount, newAmount int64
	var haveOld, haveNew bool
	if oldRec != nil {
		g, err := d.GroupKey(oldRec)
		if err != nil {
			return err
		}
		a, err := d.Amount(oldRec)
		if err != nil {
			return err
		}
		oldGroup, oldAmount, haveOld = g, a, true
	}
	if newRec != nil {
		g, err := d.GroupKey(newRec)
		if err != nil {
			return err
		}
		a, err := d.Amount(newRec)
		if err != nil {
			return err
		}
		newGroup, newAmount, haveNew = g, a, true
	}
	switch {
	case haveOld && haveNew && tuple.Compare(tuple.Pack(oldGroup), tuple.Pack(newGroup)) == 0:
		delta := newAmount - oldAmount
		if delta == 0 {
			return nil
		}
		_, err := tx.AtomicAdd(sub, entriesRegion, tuple.Pack(newGroup), delta)
		return err
	case haveOld && haveNew:
		if _, err := tx.AtomicAdd(sub, entriesRegion, tuple.Pack(oldGroup), -oldAmount); err != nil {
			return err
		}
		_, err := tx.AtomicAdd(sub, entriesRegion, tuple.Pack(newGroup), newAmount)
		return err
	case haveNew:
		_, err := tx.AtomicAdd(sub, entriesRegion, tuple.Pack(newGroup), newAmount)
		return err
	case haveOld:
		_, err := tx.AtomicAdd(sub, entriesRegion, tuple.Pack(oldGroup), -oldAmount)
		return err
	default:
		return nil
	}
}

// applyVersion appends one entry per write, keyed by (id, this
// transaction's commit Version) — it never clears a prior entry, since
// the kind exists to keep a per-record write history rather than
// current-state lookup. A delete leaves history in place: there is no
// "current" entry to retract. With d.RetentionKeepLastN set, older
// entries beyond the most recent N for id are trimmed after the append.
func (disp *Dispatcher) applyVersion(tx *kv.Transaction, sub kv.Subspace, d *Descriptor, newRec entity.Record, id tuple.Element) error {
	if newRec == nil {
		return nil
	}
	key := tuple.Pack(id, tuple.Int(int64(tx.Version())))
	if err := tx.Set(sub, entriesRegion, key, nil); err != nil {
		return err
	}
	if d.RetentionKeepLastN <= 0 {
		return nil
	}
	return disp.trimVersionHistory(tx, sub, d, id)
}

// trimVersionHistory clears every entry for id beyond the most recent
// RetentionKeepLastN, walking id's key range newest-first.
func (disp *Dispatcher) trimVersionHistory(tx *kv.Transaction, sub kv.Subspace, d *Descriptor, id tuple.Element) error {
	prefix := tuple.Pack(id)
	it, err := tx.GetRange(sub, entriesRegion, prefix, kv.StrInc(prefix), true, 0)
	if err != nil {
		return err
	}
	var stale [][]byte
	kept := 0
	for it.Next() {
		kept++
		if kept > d.RetentionKeepLastN {
			stale = append(stale, append([]byte(nil), it.Pair().Key...))
		}
	}
	for _, k := range stale {
		if err := tx.Clear(sub, entriesRegion, k); err != nil {
			return err
		}
	}
	return nil
}

// CountValue reads the current counter for a Count/Sum index's group key.
func CountValue(tx *kv.Transaction, sub kv.Subspace, group tuple.Element) (int64, error) {
	raw, err := tx.Get(sub, entriesRegion, tuple.Pack(group))
	if err != nil || raw == nil {
		return 0, err
	}
	return int64(binary.BigEndian.Uint64(raw)), nil
}
