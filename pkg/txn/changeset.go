package txn

import (
	"github.com/cuemby/estore/pkg/entity"
	"github.com/cuemby/estore/pkg/tuple"
)

// opKind tags whether a change-set entry inserts/updates or deletes.
type opKind int

const (
	opUpsert opKind = iota
	opDelete
)

// resourceKey identifies one (type, id) pair a change-set entry touches,
// and is also the unit of Save's exclusive-save lock.
type resourceKey struct {
	typeName string
	id       string
}

type change struct {
	kind opKind
	typ  *entity.Type
	id   tuple.Element
	rec  entity.Record // nil for opDelete
}

// ChangeSet accumulates the record-level writes a single Save call will
// apply atomically. Two opposing operations queued against the same
// resource cancel out rather than both being applied — an Insert
// immediately followed by a Delete of the same id is a no-op, not a
// write-then-delete.
type ChangeSet struct {
	ops map[resourceKey]change
	// order preserves insertion order for ops whose relative sequencing
	// could matter to commit checks inspecting the set.
	order []resourceKey
}

// NewChangeSet returns an empty change set.
func NewChangeSet() *ChangeSet {
	return &ChangeSet{ops: make(map[resourceKey]change)}
}

// put installs c under k. If k already holds an opposing operation
// (upsert vs. delete), the two cancel: the resource is dropped from the
// set entirely rather than left pointing at whichever queued last. Two
// same-kind operations against the same resource simply replace one
// another (the later upsert's record wins).
func (cs *ChangeSet) put(k resourceKey, c change) {
	existing, exists := cs.ops[k]
	if exists && existing.kind != c.kind {
		cs.Rollback(c.typ, c.id)
		return
	}
	if !exists {
		cs.order = append(cs.order, k)
	}
	cs.ops[k] = c
}

// Insert queues rec to be written (created or updated) for typ.
func (cs *ChangeSet) Insert(typ *entity.Type, rec entity.Record) {
	k := resourceKey{typeName: typ.Name, id: string(tuple.Pack(rec.ID()))}
	cs.put(k, change{kind: opUpsert, typ: typ, id: rec.ID(), rec: rec})
}

// Delete queues the record with id for typ to be removed.
func (cs *ChangeSet) Delete(typ *entity.Type, id tuple.Element) {
	k := resourceKey{typeName: typ.Name, id: string(tuple.Pack(id))}
	cs.put(k, change{kind: opDelete, typ: typ, id: id})
}

// Rollback discards a previously queued operation against (typ, id)
// without replacing it — after Rollback, that resource is untouched by
// this change set.
func (cs *ChangeSet) Rollback(typ *entity.Type, id tuple.Element) {
	k := resourceKey{typeName: typ.Name, id: string(tuple.Pack(id))}
	if _, exists := cs.ops[k]; !exists {
		return
	}
	delete(cs.ops, k)
	for i, kk := range cs.order {
		if kk == k {
			cs.order = append(cs.order[:i], cs.order[i+1:]...)
			break
		}
	}
}

// Len reports how many distinct resources this change set touches.
func (cs *ChangeSet) Len() int { return len(cs.order) }

// Empty reports whether the change set has no queued operations.
func (cs *ChangeSet) Empty() bool { return len(cs.order) == 0 }

// changes returns the queued operations in insertion order.
func (cs *ChangeSet) changes() []change {
	out := make([]change, 0, len(cs.order))
	for _, k := range cs.order {
		out = append(out, cs.ops[k])
	}
	return out
}
