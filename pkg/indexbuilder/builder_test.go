package indexbuilder

import (
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/cuemby/estore/pkg/entity"
	"github.com/cuemby/estore/pkg/index"
	"github.com/cuemby/estore/pkg/itemstore"
	"github.com/cuemby/estore/pkg/kv"
	"github.com/cuemby/estore/pkg/query"
	"github.com/cuemby/estore/pkg/tuple"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type widgetItem struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type widgetRecord struct{ widgetItem }

func (w *widgetRecord) ID() tuple.Element { return tuple.Str(w.widgetItem.ID) }
func (w *widgetRecord) Type() *entity.Type { return nil }
func (w *widgetRecord) FieldValue(name string) query.FieldValue {
	switch name {
	case "name":
		return query.String(w.widgetItem.Name)
	default:
		return query.Null()
	}
}

func openTestDB(t *testing.T) *kv.DB {
	t.Helper()
	dir := t.TempDir()
	db, err := kv.Open(filepath.Join(dir, "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func seedWidgets(t *testing.T, db *kv.DB, store *itemstore.Store, items []widgetItem) {
	t.Helper()
	_, err := db.Update(func(tx *kv.Transaction) error {
		for _, it := range items {
			raw, err := json.Marshal(it)
			require.NoError(t, err)
			if err := store.Write(tx, tuple.Pack(tuple.Str(it.ID)), raw); err != nil {
				return err
			}
		}
		return nil
	})
	require.NoError(t, err)
}

func widgetType() *entity.Type {
	return &entity.Type{
		Name:          "widget",
		Fields:        []string{"name"},
		DirectoryPath: []string{"widgets"},
		NewRecord: func() entity.Record {
			return &widgetRecord{}
		},
	}
}

func TestBuilderBackfillsAndMakesIndexReadable(t *testing.T) {
	db := openTestDB(t)
	dir := kv.NewDirectory()
	typ := widgetType()
	store := itemstore.New(dir.Open(typ.DirectoryPath), false)

	seedWidgets(t, db, store, []widgetItem{
		{ID: "1", Name: "alpha"},
		{ID: "2", Name: "beta"},
		{ID: "3", Name: "alpha"},
	})

	desc := &index.Descriptor{
		IndexDescriptor: entity.IndexDescriptor{Name: "by-name", Kind: entity.IndexScalar, Fields: []string{"name"}},
	}

	b := New(db, dir, typ, store)
	b.BatchSize = 2 // force multiple batches over 3 items
	err := b.Start([]*index.Descriptor{desc}, false)
	require.NoError(t, err)

	err = db.View(func(tx *kv.Transaction) error {
		sm := index.NewStateManager(dir.Open(typ.DirectoryPath))
		state, err := sm.State(tx, "by-name")
		require.NoError(t, err)
		assert.Equal(t, entity.StateReadable, state)

		disp := index.NewDispatcher(dir, sm)
		sub := disp.IndexSubspace(typ.DirectoryPath, "by-name")
		it, err := tx.GetRange(sub, "entries", tuple.Pack(tuple.Str("alpha")), kv.StrInc(tuple.Pack(tuple.Str("alpha"))), false, 0)
		require.NoError(t, err)
		count := 0
		for it.Next() {
			count++
		}
		assert.Equal(t, 2, count, "two widgets named alpha")
		return nil
	})
	require.NoError(t, err)
}

func TestBuilderResumesAfterPartialBatch(t *testing.T) {
	db := openTestDB(t)
	dir := kv.NewDirectory()
	typ := widgetType()
	store := itemstore.New(dir.Open(typ.DirectoryPath), false)
	seedWidgets(t, db, store, []widgetItem{
		{ID: "1", Name: "x"},
		{ID: "2", Name: "y"},
	})

	desc := &index.Descriptor{
		IndexDescriptor: entity.IndexDescriptor{Name: "by-name", Kind: entity.IndexScalar, Fields: []string{"name"}},
	}
	b := New(db, dir, typ, store)
	b.BatchSize = 1

	done, err := b.RunBatch([]*index.Descriptor{desc})
	require.NoError(t, err)
	assert.False(t, done, "one batch of size 1 over 2 items is not complete")

	done, err = b.RunBatch([]*index.Descriptor{desc})
	require.NoError(t, err)
	assert.True(t, done)
}

func TestBuilderClearFirstWipesPriorEntries(t *testing.T) {
	db := openTestDB(t)
	dir := kv.NewDirectory()
	typ := widgetType()
	store := itemstore.New(dir.Open(typ.DirectoryPath), false)
	seedWidgets(t, db, store, []widgetItem{{ID: "1", Name: "stale"}})

	desc := &index.Descriptor{
		IndexDescriptor: entity.IndexDescriptor{Name: "by-name", Kind: entity.IndexScalar, Fields: []string{"name"}},
	}
	b := New(db, dir, typ, store)
	require.NoError(t, b.Start([]*index.Descriptor{desc}, false))

	// Rebuild from scratch with an empty item store; clearFirst must
	// remove the index's prior entries rather than leave stale data.
	_, err := db.Update(func(tx *kv.Transaction) error {
		return store.Delete(tx, tuple.Pack(tuple.Str("1")))
	})
	require.NoError(t, err)

	require.NoError(t, b.Start([]*index.Descriptor{desc}, true))

	err = db.View(func(tx *kv.Transaction) error {
		sm := index.NewStateManager(dir.Open(typ.DirectoryPath))
		disp := index.NewDispatcher(dir, sm)
		sub := disp.IndexSubspace(typ.DirectoryPath, "by-name")
		it, err := tx.GetRange(sub, "entries", nil, nil, false, 0)
		require.NoError(t, err)
		assert.False(t, it.Next(), "cleared rebuild over an empty item store leaves no entries")
		return nil
	})
	require.NoError(t, err)
}
