package kv

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	dir := t.TempDir()
	db, err := Open(filepath.Join(dir, "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestSetGetDelete(t *testing.T) {
	db := openTestDB(t)
	dirLayer := NewDirectory()
	sub := dirLayer.Open([]string{"orders"})

	_, err := db.Update(func(tx *Transaction) error {
		return tx.Set(sub, "items", []byte("a"), []byte("1"))
	})
	require.NoError(t, err)

	err = db.View(func(tx *Transaction) error {
		v, err := tx.Get(sub, "items", []byte("a"))
		require.NoError(t, err)
		assert.Equal(t, []byte("1"), v)
		return nil
	})
	require.NoError(t, err)

	_, err = db.Update(func(tx *Transaction) error {
		return tx.Clear(sub, "items", []byte("a"))
	})
	require.NoError(t, err)

	err = db.View(func(tx *Transaction) error {
		v, err := tx.Get(sub, "items", []byte("a"))
		require.NoError(t, err)
		assert.Nil(t, v)
		return nil
	})
	require.NoError(t, err)
}

func TestVersionMonotonic(t *testing.T) {
	db := openTestDB(t)
	sub := NewDirectory().Open([]string{"orders"})

	v1, err := db.Update(func(tx *Transaction) error {
		return tx.Set(sub, "items", []byte("a"), []byte("1"))
	})
	require.NoError(t, err)

	v2, err := db.Update(func(tx *Transaction) error {
		return tx.Set(sub, "items", []byte("b"), []byte("2"))
	})
	require.NoError(t, err)

	assert.Greater(t, uint64(v2), uint64(v1))

	cur, err := db.CurrentVersion()
	require.NoError(t, err)
	assert.Equal(t, v2, cur)
}

func TestRangeIteratorStreams(t *testing.T) {
	db := openTestDB(t)
	sub := NewDirectory().Open([]string{"orders"})

	_, err := db.Update(func(tx *Transaction) error {
		for _, k := range []string{"a", "b", "c", "d"} {
			if err := tx.Set(sub, "items", []byte(k), []byte(k)); err != nil {
				return err
			}
		}
		return nil
	})
	require.NoError(t, err)

	var seen []string
	err = db.View(func(tx *Transaction) error {
		it, err := tx.GetRange(sub, "items", []byte("b"), []byte("d"), false, 0)
		require.NoError(t, err)
		for it.Next() {
			seen = append(seen, string(it.Pair().Key))
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"b", "c"}, seen)
}

func TestAtomicAdd(t *testing.T) {
	db := openTestDB(t)
	sub := NewDirectory().Open([]string{"orders"})

	_, err := db.Update(func(tx *Transaction) error {
		_, err := tx.AtomicAdd(sub, "metadata", []byte("count"), 5)
		return err
	})
	require.NoError(t, err)

	_, err = db.Update(func(tx *Transaction) error {
		v, err := tx.AtomicAdd(sub, "metadata", []byte("count"), -2)
		assert.Equal(t, int64(3), v)
		return err
	})
	require.NoError(t, err)
}

func TestClearPrefix(t *testing.T) {
	db := openTestDB(t)
	sub := NewDirectory().Open([]string{"orders"})

	_, err := db.Update(func(tx *Transaction) error {
		for _, k := range []string{"idxA/1", "idxA/2", "idxB/1"} {
			if err := tx.Set(sub, "indexes", []byte(k), []byte("v")); err != nil {
				return err
			}
		}
		return nil
	})
	require.NoError(t, err)

	_, err = db.Update(func(tx *Transaction) error {
		return tx.ClearPrefix(sub, "indexes", []byte("idxA/"))
	})
	require.NoError(t, err)

	err = db.View(func(tx *Transaction) error {
		it, err := tx.GetRange(sub, "indexes", nil, nil, false, 0)
		require.NoError(t, err)
		var keys []string
		for it.Next() {
			keys = append(keys, string(it.Pair().Key))
		}
		assert.Equal(t, []string{"idxB/1"}, keys)
		return nil
	})
	require.NoError(t, err)
}

func TestStrInc(t *testing.T) {
	assert.Equal(t, []byte{0x01, 0x01}, StrInc([]byte{0x01, 0x00}))
	assert.Nil(t, StrInc([]byte{0xFF, 0xFF}))
	assert.Nil(t, StrInc(nil))
}
