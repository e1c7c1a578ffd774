/*
Package txn implements C8: the transaction orchestrator that turns a
caller's ChangeSet into a single committed KV transaction, running
field-security checks, index maintenance (C4), polymorphic mirroring
(C10), and registered commit/post-commit hooks around it, and
publishing the transaction's lifecycle as events.
*/
package txn

import (
	"context"
	"fmt"
	"sync"

	"github.com/cuemby/estore/pkg/codec"
	"github.com/cuemby/estore/pkg/entity"
	"github.com/cuemby/estore/pkg/estoreerr"
	"github.com/cuemby/estore/pkg/events"
	"github.com/cuemby/estore/pkg/fieldsec"
	"github.com/cuemby/estore/pkg/index"
	"github.com/cuemby/estore/pkg/itemstore"
	"github.com/cuemby/estore/pkg/kv"
	"github.com/cuemby/estore/pkg/rvcache"
	"github.com/cuemby/estore/pkg/tuple"
	"github.com/google/uuid"
)

// TypeBinding wires one registered entity.Type to its item store, index
// targets, and state manager, everything Save needs to maintain it.
type TypeBinding struct {
	Type    *entity.Type
	Store   *itemstore.Store
	Indexes []*index.Descriptor

	// polyStore mirrors Store's envelope/chunk format into the shared
	// polymorphic directory (C10); nil when Type declares no mirror.
	// It must use the same itemstore.Store framing as Store — writing
	// the polymorphic side through PolymorphicMirror's raw tx.Set would
	// collide with Store's envelope at the same key.
	polyStore *itemstore.Store
	dispatch  *index.Dispatcher
}

// Orchestrator is the process-wide C8 composition root: one per open
// store, shared by every Save call.
type Orchestrator struct {
	db     *kv.DB
	dir    *kv.Directory
	mirror *entity.PolymorphicMirror
	Cache  *rvcache.Cache

	CommitChecks *CommitCheckRegistry
	PostCommit   *PostCommitRegistry
	Listeners    *TransactionListenerRegistry

	bindingsMu sync.RWMutex
	bindings   map[string]*TypeBinding

	locks sync.Map // resourceKey -> struct{}
}

// New returns an orchestrator bound to db's directory layer.
func New(db *kv.DB, dir *kv.Directory) *Orchestrator {
	return &Orchestrator{
		db:           db,
		dir:          dir,
		mirror:       entity.NewPolymorphicMirror(dir),
		Cache:        rvcache.New(),
		CommitChecks: NewCommitCheckRegistry(),
		PostCommit:   NewPostCommitRegistry(),
		Listeners:    NewTransactionListenerRegistry(),
		bindings:     make(map[string]*TypeBinding),
	}
}

// RegisterType binds t to its own item subspace and index set, making
// it eligible for Save. compress controls item-store payload compression.
func (o *Orchestrator) RegisterType(t *entity.Type, indexes []*index.Descriptor, compress bool) *TypeBinding {
	sub := o.mirror.OwnSubspace(t)
	states := index.NewStateManager(o.dir.Open(t.DirectoryPath))
	b := &TypeBinding{
		Type:     t,
		Store:    itemstore.New(sub, compress),
		Indexes:  indexes,
		dispatch: index.NewDispatcher(o.dir, states),
	}
	if polySub, ok := o.mirror.PolySubspace(t); ok {
		b.polyStore = itemstore.New(polySub, compress)
	}
	o.bindingsMu.Lock()
	o.bindings[t.Name] = b
	o.bindingsMu.Unlock()
	return b
}

func (o *Orchestrator) binding(typeName string) (*TypeBinding, bool) {
	o.bindingsMu.RLock()
	defer o.bindingsMu.RUnlock()
	b, ok := o.bindings[typeName]
	return b, ok
}

// Binding returns the TypeBinding registered for typeName, or nil if
// that type was never registered. Exposed for callers (the estore
// composition root's Get path) that need direct item-store access
// without going through Save.
func (o *Orchestrator) Binding(typeName string) *TypeBinding {
	b, _ := o.binding(typeName)
	return b
}

// nextTxnID mints a globally unique transaction ID, the same
// uuid.New().String() pattern the host fleet uses for every
// operator-facing resource ID (service, task, node) rather than a
// per-process counter that would collide across restarts or replicas.
func (o *Orchestrator) nextTxnID() string {
	return "txn-" + uuid.New().String()
}

// Save runs cs as a single atomic transaction under cfg, acquiring an
// exclusive lock on every resource cs touches, maintaining indexes and
// polymorphic mirrors, running registered commit checks before the
// underlying KV commit and post-commit hooks after it, and publishing
// the transaction's lifecycle events throughout.
func (o *Orchestrator) Save(ctx context.Context, cfg Config, cs *ChangeSet) error {
	if cfg.ReadOnly && !cs.Empty() {
		return fmt.Errorf("estore: read-only transaction config given a non-empty change set")
	}
	if cs.Empty() {
		return nil
	}

	keys, err := o.acquireLocks(cs)
	if err != nil {
		return err
	}
	defer o.releaseLocks(keys)

	if cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.Timeout)
		defer cancel()
	}

	txnID := o.nextTxnID()
	o.Listeners.Publish(&events.Event{TransactionID: txnID, Type: events.EventTransactionCreated})
	defer o.Listeners.Publish(&events.Event{TransactionID: txnID, Type: events.EventTransactionClosed})

	if err := ctx.Err(); err != nil {
		o.Listeners.Publish(&events.Event{TransactionID: txnID, Type: events.EventTransactionCancelled})
		return &estoreerr.Timeout{Operation: "save:" + txnID}
	}

	o.Listeners.Publish(&events.Event{TransactionID: txnID, Type: events.EventTransactionCommitting})

	version, err := o.db.Update(func(tx *kv.Transaction) error {
		for _, c := range cs.changes() {
			if ctx.Err() != nil {
				return &estoreerr.Timeout{Operation: "save:" + txnID}
			}
			if err := o.applyChange(tx, cfg, c); err != nil {
				return err
			}
		}
		if ctx.Err() != nil {
			return &estoreerr.Timeout{Operation: "save:" + txnID}
		}
		return o.CommitChecks.ExecuteAll(ctx, cs, cfg.FailFast)
	})

	if err != nil {
		o.Listeners.Publish(&events.Event{TransactionID: txnID, Type: events.EventTransactionFailed, Message: err.Error()})
		return err
	}

	o.Cache.UpdateFromCommit(version)
	o.Listeners.Publish(&events.Event{TransactionID: txnID, Type: events.EventTransactionCommitted})
	o.PostCommit.ExecuteAll(ctx, cs)
	return nil
}

func (o *Orchestrator) applyChange(tx *kv.Transaction, cfg Config, c change) error {
	binding, ok := o.binding(c.typ.Name)
	if !ok {
		return fmt.Errorf("estore: type %q is not registered", c.typ.Name)
	}

	idKey := tuple.Pack(c.id)
	oldRaw, err := binding.Store.Read(tx, idKey)
	if err != nil {
		return err
	}
	var oldRec entity.Record
	if oldRaw != nil {
		oldRec = c.typ.NewRecord()
		if err := codec.Decode(oldRaw, oldRec); err != nil {
			return err
		}
	}

	var newRec entity.Record
	switch c.kind {
	case opUpsert:
		newRec = c.rec
		if err := fieldsec.ValidateWrite(c.typ, oldRec, newRec, cfg.Auth); err != nil {
			return err
		}
		raw, err := codec.Encode(newRec)
		if err != nil {
			return err
		}
		if err := binding.Store.Write(tx, idKey, raw); err != nil {
			return err
		}
		if binding.polyStore != nil {
			if err := binding.polyStore.Write(tx, idKey, raw); err != nil {
				return err
			}
		}
	case opDelete:
		if oldRec == nil {
			return nil
		}
		if err := binding.Store.Delete(tx, idKey); err != nil {
			return err
		}
		if binding.polyStore != nil {
			if err := binding.polyStore.Delete(tx, idKey); err != nil {
				return err
			}
		}
	}

	return binding.dispatch.Apply(tx, c.typ.DirectoryPath, binding.Indexes, oldRec, newRec, c.id)
}

func (o *Orchestrator) acquireLocks(cs *ChangeSet) ([]resourceKey, error) {
	var acquired []resourceKey
	for _, k := range cs.order {
		if _, loaded := o.locks.LoadOrStore(k, struct{}{}); loaded {
			o.releaseLocks(acquired)
			return nil, &estoreerr.ConcurrentSave{Resource: k.typeName + "/" + k.id}
		}
		acquired = append(acquired, k)
	}
	return acquired, nil
}

func (o *Orchestrator) releaseLocks(keys []resourceKey) {
	for _, k := range keys {
		o.locks.Delete(k)
	}
}

// Close releases the orchestrator's background resources (the
// transaction event broker).
func (o *Orchestrator) Close() {
	o.Listeners.Close()
}
