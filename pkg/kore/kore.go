// Package kore is the public facade of the embeddable kore storage engine
// (spec.md §6): an `Instance` that binds the LSM Engine, the HNSW vector
// façade, and the property-graph overlay into the single process-wide
// handle spec.md §4.11's Coordinator describes. It replaces the teacher's
// pkg/ignite stub of the same name and shape — open/close/wipe plus
// set/get/delete — generalized to kore's full operation surface.
package kore

import (
	"context"
	"sync"

	"github.com/koredb/kore/internal/engine"
	"github.com/koredb/kore/internal/graph"
	"github.com/koredb/kore/internal/hnsw"
	"github.com/koredb/kore/internal/sstable"
	"github.com/koredb/kore/internal/wal"
	"github.com/koredb/kore/pkg/logger"
	"github.com/koredb/kore/pkg/options"
	"go.uber.org/zap"
)

// Instance is the primary entry point for interacting with a kore store:
// the owned Engine instance plus the graph façade and the per-collection
// HNSW indexers layered on top of it, as §4.11 describes ("Collaborators
// (documents, vectors, graph) obtain a handle to the engine").
type Instance struct {
	engine *engine.Engine
	graph  *graph.Graph
	log    *zap.SugaredLogger
	opts   *options.Options

	vecMu  sync.Mutex
	vector map[string]*collectionIndex // collection name -> its HNSW state
}

// collectionIndex is one collection's HNSW index plus its background
// indexer, created lazily on first vector access and hydrated from the
// KV store's vec:<coll>: records at that point, per spec.md §4.9.
type collectionIndex struct {
	index   *hnsw.Index
	indexer *hnsw.Indexer
}

// Open creates or opens a kore store rooted at the directory named by
// opts (or WithDataDir), replaying its WAL and segment set. service names
// the logger the teacher's pkg/ignite.NewInstance already threads through
// pkg/logger.
func Open(ctx context.Context, service string, opts ...options.OptionFunc) (*Instance, error) {
	log := logger.New(service)

	resolved := options.NewDefaultOptions()
	for _, opt := range opts {
		opt(&resolved)
	}

	eng, err := engine.New(ctx, &resolved, log)
	if err != nil {
		return nil, err
	}

	i := &Instance{
		engine: eng,
		log:    log,
		opts:   &resolved,
		vector: make(map[string]*collectionIndex),
	}
	i.graph = graph.New(eng, log)
	return i, nil
}

// Close releases every resource the instance owns: the background indexer
// for each touched collection (after it applies its queued jobs), then the
// engine. The MemTable is not flushed; its writes remain in the WAL.
func (i *Instance) Close() error {
	i.vecMu.Lock()
	for _, c := range i.vector {
		c.indexer.Close()
	}
	i.vector = make(map[string]*collectionIndex)
	i.vecMu.Unlock()

	return i.engine.Close()
}

// Wipe discards all data and reopens an empty store in place, dropping
// every in-memory HNSW index along with it (there is nothing left to index).
func (i *Instance) Wipe() error {
	i.vecMu.Lock()
	for _, c := range i.vector {
		c.indexer.Close()
	}
	i.vector = make(map[string]*collectionIndex)
	i.vecMu.Unlock()

	return i.engine.Wipe()
}

// Put writes key=value, per spec.md §6 put(key, value).
func (i *Instance) Put(key, value []byte, urgent bool) error {
	return i.engine.Put(key, value, urgent)
}

// Delete tombstones key, per spec.md §6 delete(key).
func (i *Instance) Delete(key []byte, urgent bool) error {
	return i.engine.Delete(key, urgent)
}

// WriteBatch commits records atomically, per spec.md §6 write_batch.
func (i *Instance) WriteBatch(records []wal.Record, urgent bool) error {
	return i.engine.WriteBatch(records, urgent)
}

// Get implements spec.md §6 get(key) → Option<Value>.
func (i *Instance) Get(key []byte) ([]byte, bool) {
	return i.engine.Get(key)
}

// ScanPrefix implements spec.md §6 scan_prefix(prefix) → Sequence<Value>,
// keyed by key for caller convenience.
func (i *Instance) ScanPrefix(prefix []byte) map[string][]byte {
	return i.engine.ScanPrefix(prefix)
}

// ScanPrefixKeys implements spec.md §6 scan_prefix_keys(prefix) → Sequence<Key>.
func (i *Instance) ScanPrefixKeys(prefix []byte) []string {
	return i.engine.ScanPrefixKeys(prefix)
}

// SearchVectors implements spec.md §6 search_vectors(prefix, query, k): the
// brute-force path over the MemTable and segments directly, bypassing
// HNSW. VectorSearch is the HNSW-backed equivalent for a named collection.
func (i *Instance) SearchVectors(prefix []byte, query []float32, k int) []sstable.ScoredKey {
	return i.engine.SearchVectors(prefix, query, k)
}

// Graph returns the property-graph and document-collection façade bound
// to this instance's engine.
func (i *Instance) Graph() *graph.Graph { return i.graph }

// Transaction implements spec.md §6's transaction(block) primitive: block
// receives an open *graph.Transaction to buffer writes against. A nil
// return from block commits; any other return rolls the buffer back and
// propagates that error to the caller.
func (i *Instance) Transaction(urgent bool, block func(tx *graph.Transaction) error) error {
	tx := i.graph.Begin()
	if err := block(tx); err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit(urgent)
}

// DataDir returns the directory this instance's segments and WAL live in.
func (i *Instance) DataDir() string { return i.engine.DataDir() }
