package entity

import (
	"encoding/binary"

	"github.com/cuemby/estore/pkg/kv"
)

// PolymorphicMirror implements C10: when a type declares a polymorphic
// directory distinct from its own, every save/delete writes/deletes in
// both directories atomically (I6). The own-directory write is keyed by
// the record id alone; the polymorphic-directory write is keyed by the
// type's TypeCode plus the record id, so a fetch across the shared
// directory can discriminate the concrete type before deserializing.
type PolymorphicMirror struct {
	dir *kv.Directory
}

// NewPolymorphicMirror constructs a mirror bound to the KV directory layer.
func NewPolymorphicMirror(dir *kv.Directory) *PolymorphicMirror {
	return &PolymorphicMirror{dir: dir}
}

// OwnSubspace returns the type's own item subspace: own/items/<typeTag>.
func (m *PolymorphicMirror) OwnSubspace(t *Type) kv.Subspace {
	path := append(append([]string(nil), t.DirectoryPath...), "own", "items", t.Name)
	return m.dir.Open(path)
}

// PolySubspace returns the shared polymorphic item subspace:
// poly/items/<typeCode>, or the zero Subspace if t has no mirror.
func (m *PolymorphicMirror) PolySubspace(t *Type) (kv.Subspace, bool) {
	if !t.HasPolymorphicMirror() {
		return kv.Subspace{}, false
	}
	path := append(append([]string(nil), t.PolymorphicPath...), "poly", "items", typeCodeKey(t.TypeCode))
	return m.dir.Open(path), true
}

// Write mirrors a record write into both the own and (if declared)
// polymorphic directories within tx, so both land in the same KV
// transaction as the caller's other writes (I2/I6).
func (m *PolymorphicMirror) Write(tx *kv.Transaction, t *Type, id, value []byte) error {
	own := m.OwnSubspace(t)
	if err := tx.Set(own, "items", id, value); err != nil {
		return err
	}
	if poly, ok := m.PolySubspace(t); ok {
		if err := tx.Set(poly, "items", id, value); err != nil {
			return err
		}
	}
	return nil
}

// Delete mirrors a record delete into both directories.
func (m *PolymorphicMirror) Delete(tx *kv.Transaction, t *Type, id []byte) error {
	own := m.OwnSubspace(t)
	if err := tx.Clear(own, "items", id); err != nil {
		return err
	}
	if poly, ok := m.PolySubspace(t); ok {
		if err := tx.Clear(poly, "items", id); err != nil {
			return err
		}
	}
	return nil
}

// ScanForType streams every (key, value) entry of t's own per-type
// subspace within the shared polymorphic directory, for callers
// implementing a cross-type polymorphic fetch one type at a time. It
// returns ok=false and a nil iterator when t has no polymorphic mirror.
// Entries of other types under the same poly directory are not scanned.
func (m *PolymorphicMirror) ScanForType(tx *kv.Transaction, t *Type) (*kv.RangeIterator, bool, error) {
	poly, ok := m.PolySubspace(t)
	if !ok {
		return nil, false, nil
	}
	it, err := tx.GetRange(poly, "items", nil, nil, false, 0)
	return it, true, err
}

func typeCodeKey(code uint32) string {
	buf := make([]byte, 4)
	binary.BigEndian.PutUint32(buf, code)
	return string(buf)
}
