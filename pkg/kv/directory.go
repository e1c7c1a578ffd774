package kv

// Subspace identifies a hierarchical directory path under which an
// entity type's keys live, e.g. []string{"orders"} or
// []string{"poly", "document"} for a shared polymorphic directory.
// It carries no open handle; buckets are created lazily the first time
// a transaction touches them, matching bbolt's CreateBucketIfNotExists
// idiom used throughout the teacher's storage layer.
type Subspace struct {
	path []string
}

// Directory is the entity-facing handle for opening and removing
// Subspaces. It has no state of its own beyond identity; all actual
// bucket management happens per-transaction.
type Directory struct{}

// NewDirectory returns the (stateless) directory layer handle.
func NewDirectory() *Directory { return &Directory{} }

// Open returns a Subspace for path. The path's buckets are created on
// first write, not here; Open never touches the store.
func (d *Directory) Open(path []string) Subspace {
	cp := append([]string(nil), path...)
	return Subspace{path: cp}
}

// Remove deletes every bucket under path, transactionally.
func (d *Directory) Remove(tx *Transaction, path []string) error {
	if !tx.writable {
		return ErrReadOnly
	}
	if len(path) == 0 {
		return nil
	}
	parent, err := tx.openBuckets(path[:len(path)-1], true)
	if err != nil {
		return err
	}
	return parent.DeleteBucket([]byte(path[len(path)-1]))
}
