package itemstore

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/cuemby/estore/pkg/kv"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestDB(t *testing.T) *kv.DB {
	t.Helper()
	db, err := kv.Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestWriteReadInline(t *testing.T) {
	db := openTestDB(t)
	sub := kv.NewDirectory().Open([]string{"orders"})
	store := New(sub, false)

	_, err := db.Update(func(tx *kv.Transaction) error {
		return store.Write(tx, []byte("order-1"), []byte(`{"total":42}`))
	})
	require.NoError(t, err)

	err = db.View(func(tx *kv.Transaction) error {
		v, err := store.Read(tx, []byte("order-1"))
		require.NoError(t, err)
		assert.Equal(t, []byte(`{"total":42}`), v)
		return nil
	})
	require.NoError(t, err)
}

func TestWriteReadSplit(t *testing.T) {
	db := openTestDB(t)
	sub := kv.NewDirectory().Open([]string{"orders"})
	store := New(sub, false)

	large := bytes.Repeat([]byte("x"), ChunkThreshold+5000)

	_, err := db.Update(func(tx *kv.Transaction) error {
		return store.Write(tx, []byte("order-big"), large)
	})
	require.NoError(t, err)

	err = db.View(func(tx *kv.Transaction) error {
		v, err := store.Read(tx, []byte("order-big"))
		require.NoError(t, err)
		assert.Equal(t, large, v)
		return nil
	})
	require.NoError(t, err)
}

func TestWriteReadCompressed(t *testing.T) {
	db := openTestDB(t)
	sub := kv.NewDirectory().Open([]string{"orders"})
	store := New(sub, true)

	raw := bytes.Repeat([]byte("abc"), 1000)
	_, err := db.Update(func(tx *kv.Transaction) error {
		return store.Write(tx, []byte("order-c"), raw)
	})
	require.NoError(t, err)

	err = db.View(func(tx *kv.Transaction) error {
		v, err := store.Read(tx, []byte("order-c"))
		require.NoError(t, err)
		assert.Equal(t, raw, v)
		return nil
	})
	require.NoError(t, err)
}

func TestOverwriteClearsOldChunks(t *testing.T) {
	db := openTestDB(t)
	sub := kv.NewDirectory().Open([]string{"orders"})
	store := New(sub, false)

	large := bytes.Repeat([]byte("y"), ChunkThreshold+5000)
	_, err := db.Update(func(tx *kv.Transaction) error {
		return store.Write(tx, []byte("order-x"), large)
	})
	require.NoError(t, err)

	small := []byte("small now")
	_, err = db.Update(func(tx *kv.Transaction) error {
		return store.Write(tx, []byte("order-x"), small)
	})
	require.NoError(t, err)

	err = db.View(func(tx *kv.Transaction) error {
		v, err := store.Read(tx, []byte("order-x"))
		require.NoError(t, err)
		assert.Equal(t, small, v)

		it, err := tx.GetRange(sub, blobsRegion, []byte("order-x/"), kv.StrInc([]byte("order-x/")), false, 0)
		require.NoError(t, err)
		assert.False(t, it.Next(), "old chunk range must be cleared on overwrite")
		return nil
	})
	require.NoError(t, err)
}

func TestDeleteRemovesEnvelopeAndChunks(t *testing.T) {
	db := openTestDB(t)
	sub := kv.NewDirectory().Open([]string{"orders"})
	store := New(sub, false)

	large := bytes.Repeat([]byte("z"), ChunkThreshold+1000)
	_, err := db.Update(func(tx *kv.Transaction) error {
		return store.Write(tx, []byte("order-d"), large)
	})
	require.NoError(t, err)

	_, err = db.Update(func(tx *kv.Transaction) error {
		return store.Delete(tx, []byte("order-d"))
	})
	require.NoError(t, err)

	err = db.View(func(tx *kv.Transaction) error {
		v, err := store.Read(tx, []byte("order-d"))
		require.NoError(t, err)
		assert.Nil(t, v)
		exists, err := store.Exists(tx, []byte("order-d"))
		require.NoError(t, err)
		assert.False(t, exists)
		return nil
	})
	require.NoError(t, err)
}

func TestMissingChunkIsCorrupt(t *testing.T) {
	db := openTestDB(t)
	sub := kv.NewDirectory().Open([]string{"orders"})
	store := New(sub, false)

	large := bytes.Repeat([]byte("w"), ChunkThreshold+1000)
	_, err := db.Update(func(tx *kv.Transaction) error {
		return store.Write(tx, []byte("order-m"), large)
	})
	require.NoError(t, err)

	_, err = db.Update(func(tx *kv.Transaction) error {
		return tx.Clear(sub, blobsRegion, chunkKeyFor([]byte("order-m"), 0))
	})
	require.NoError(t, err)

	err = db.View(func(tx *kv.Transaction) error {
		_, err := store.Read(tx, []byte("order-m"))
		assert.Error(t, err)
		return nil
	})
	require.NoError(t, err)
}

func TestScanStreamsAndReassembles(t *testing.T) {
	db := openTestDB(t)
	sub := kv.NewDirectory().Open([]string{"orders"})
	store := New(sub, false)

	_, err := db.Update(func(tx *kv.Transaction) error {
		if err := store.Write(tx, []byte("a"), []byte("small-a")); err != nil {
			return err
		}
		big := bytes.Repeat([]byte("b"), ChunkThreshold+2000)
		if err := store.Write(tx, []byte("b"), big); err != nil {
			return err
		}
		return store.Write(tx, []byte("c"), []byte("small-c"))
	})
	require.NoError(t, err)

	err = db.View(func(tx *kv.Transaction) error {
		it, err := store.Scan(tx, nil, nil, false, 0)
		require.NoError(t, err)
		var keys []string
		for it.Next() {
			k, v := it.Pair()
			keys = append(keys, string(k))
			if string(k) == "b" {
				assert.Len(t, v, ChunkThreshold+2000)
			}
		}
		require.NoError(t, it.Err())
		assert.Equal(t, []string{"a", "b", "c"}, keys)
		return nil
	})
	require.NoError(t, err)
}

func TestSize(t *testing.T) {
	db := openTestDB(t)
	sub := kv.NewDirectory().Open([]string{"orders"})
	store := New(sub, false)

	_, err := db.Update(func(tx *kv.Transaction) error {
		return store.Write(tx, []byte("order-s"), []byte("12345"))
	})
	require.NoError(t, err)

	err = db.View(func(tx *kv.Transaction) error {
		n, err := store.Size(tx, []byte("order-s"))
		require.NoError(t, err)
		assert.Equal(t, 5, n)
		return nil
	})
	require.NoError(t, err)
}
