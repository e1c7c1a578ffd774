/*
Package estore is the composition root: it opens the bbolt-backed KV
store, wires up the directory layer, the read-version cache, the
transaction orchestrator and its registries, the Prometheus metrics
collector, and a health registry, and hands entity types off to
RegisterType so application code and estorectl share one path into the
store. It plays the role pkg/manager.Manager plays in the teacher — the
single struct every CLI command and integration test opens once and
threads through everything else.
*/
package estore

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/cuemby/estore/pkg/codec"
	"github.com/cuemby/estore/pkg/config"
	"github.com/cuemby/estore/pkg/entity"
	"github.com/cuemby/estore/pkg/health"
	"github.com/cuemby/estore/pkg/index"
	"github.com/cuemby/estore/pkg/indexbuilder"
	"github.com/cuemby/estore/pkg/itemstore"
	"github.com/cuemby/estore/pkg/kv"
	"github.com/cuemby/estore/pkg/log"
	"github.com/cuemby/estore/pkg/metrics"
	"github.com/cuemby/estore/pkg/tuple"
	"github.com/cuemby/estore/pkg/txn"
)

// Store is an open estore instance.
type Store struct {
	cfg          config.Config
	db           *kv.DB
	dir          *kv.Directory
	Orchestrator *txn.Orchestrator
	Health       *health.Registry
	collector    *metrics.Collector

	buildersMu sync.Mutex
	builders   map[string]*indexbuilder.Builder
	indexes    map[string][]*index.Descriptor
}

// Open opens (creating if absent) the bbolt file under cfg.DataDir,
// applies cfg's item-store and read-semantics settings, and starts the
// metrics collector and health registry. Every entity.Type the caller
// intends to use must then be registered via RegisterType before Save
// touches it.
func Open(cfg config.Config) (*Store, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	itemstore.ChunkThreshold = cfg.ChunkThresholdBytes

	if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
		return nil, err
	}
	db, err := kv.Open(filepath.Join(cfg.DataDir, "estore.db"))
	if err != nil {
		return nil, err
	}

	dir := kv.NewDirectory()
	orch := txn.New(db, dir)

	s := &Store{
		cfg:          cfg,
		db:           db,
		dir:          dir,
		Orchestrator: orch,
		Health:       health.NewRegistry(),
		collector:    metrics.NewCollector(config.MetricsSampleInterval),
		builders:     make(map[string]*indexbuilder.Builder),
		indexes:      make(map[string][]*index.Descriptor),
	}

	s.Health.Register("store", &health.StoreChecker{DB: db}, health.Config{
		Interval: 15 * time.Second,
		Timeout:  2 * time.Second,
		Retries:  2,
	})
	s.collector.AddSampler(func() {
		metrics.ReadVersionCacheHitRatio.Set(orch.Cache.Statistics().HitRatio())
	})
	s.collector.Start()

	log.WithComponent("estore").Info().Str("data_dir", cfg.DataDir).Msg("store opened")
	return s, nil
}

// Close stops the metrics collector and health registry and closes the
// underlying bbolt file.
func (s *Store) Close() error {
	s.collector.Stop()
	s.Health.Close()
	s.Orchestrator.Close()
	return s.db.Close()
}

// RegisterType binds t to the store, making it eligible for Save,
// Get, and an index builder. It also registers a BuilderChecker for t's
// indexes so /readyz reflects an in-progress rebuild on this type.
func (s *Store) RegisterType(t *entity.Type, indexes []*index.Descriptor) *txn.TypeBinding {
	binding := s.Orchestrator.RegisterType(t, indexes, s.cfg.Compression)

	builder := indexbuilder.New(s.db, s.dir, t, binding.Store)
	builder.BatchSize = s.cfg.BuilderBatchSize
	s.buildersMu.Lock()
	s.builders[t.Name] = builder
	s.indexes[t.Name] = indexes
	s.buildersMu.Unlock()

	s.Health.Register("builder:"+t.Name, &health.BuilderChecker{DB: s.db, Builder: builder, Targets: indexes}, health.Config{
		Interval: 15 * time.Second,
		Timeout:  2 * time.Second,
		Retries:  1,
	})
	return binding
}

// Builder returns the index builder registered for typeName, or nil if
// that type was never registered.
func (s *Store) Builder(typeName string) *indexbuilder.Builder {
	s.buildersMu.Lock()
	defer s.buildersMu.Unlock()
	return s.builders[typeName]
}

// Indexes returns the descriptors typeName was registered with, or nil
// if that type was never registered or was registered with none.
func (s *Store) Indexes(typeName string) []*index.Descriptor {
	s.buildersMu.Lock()
	defer s.buildersMu.Unlock()
	return s.indexes[typeName]
}

// Index returns the single descriptor named indexName among typeName's
// registered indexes, or nil if no such index exists.
func (s *Store) Index(typeName, indexName string) *index.Descriptor {
	for _, d := range s.Indexes(typeName) {
		if d.Name == indexName {
			return d
		}
	}
	return nil
}

// Update runs fn in a single read-write KV transaction. It is exposed
// for operators driving index lifecycle transitions directly — an
// operation Save has no ChangeSet shape for — rather than through
// application writes.
func (s *Store) Update(fn func(tx *kv.Transaction) error) error {
	_, err := s.db.Update(fn)
	return err
}

// Save runs cs under cfg through the transaction orchestrator.
func (s *Store) Save(ctx context.Context, cfg txn.Config, cs *txn.ChangeSet) error {
	return s.Orchestrator.Save(ctx, cfg, cs)
}

// Get reads and decodes the record with id for t, or returns (nil,
// false) if no such record exists. It takes no txn.Config and never
// uses the read-version cache: it reads the latest committed state
// directly within a db.View, bypassing Save entirely since a get touches
// no commit checks or indexes.
func (s *Store) Get(t *entity.Type, id tuple.Element) (entity.Record, bool, error) {
	binding := s.Orchestrator.Binding(t.Name)
	if binding == nil {
		return nil, false, fmt.Errorf("estore: type %q is not registered", t.Name)
	}
	var (
		rec   entity.Record
		found bool
	)
	err := s.db.View(func(tx *kv.Transaction) error {
		raw, err := binding.Store.Read(tx, tuple.Pack(id))
		if err != nil {
			return err
		}
		if raw == nil {
			return nil
		}
		r := t.NewRecord()
		if err := codec.Decode(raw, r); err != nil {
			return err
		}
		rec, found = r, true
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	return rec, found, nil
}
