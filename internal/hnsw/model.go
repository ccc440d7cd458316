// Package hnsw implements the Hierarchical Navigable Small World proximity
// graph kore layers over vector collections (spec.md §4.9). It repurposes
// the architectural slot the teacher's internal/index package occupied — a
// concurrent-safe, RWMutex-guarded in-memory structure, populated
// asynchronously from the write path and always advisory against the
// durable log — generalizing it from a Bitcask key→segment-offset map into
// a multi-layer similarity graph.
package hnsw

import (
	"math"
	"math/rand"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"
)

// node is one indexed vector: its owned copy, precomputed magnitude,
// assigned level, and per-layer neighbor sets.
type node struct {
	id        string
	vector    []float32
	magnitude float32
	level     int
	neighbors []map[string]struct{} // neighbors[layer] = set of neighbor ids
}

// Index is one collection's HNSW graph. Parameters M, EfConstruction, and
// EfSearch mirror options.hnswOptions; levelMult = 1/ln(M).
type Index struct {
	mu    sync.RWMutex
	nodes map[string]*node

	entryNode atomic.Pointer[string]
	maxLevel  atomic.Int32
	size      atomic.Int64

	m              int
	efConstruction int
	efSearch       int
	levelMult      float64

	rndMu sync.Mutex
	rnd   *rand.Rand

	log *zap.SugaredLogger
}

// Config configures a new Index.
type Config struct {
	M              int
	EfConstruction int
	EfSearch       int
	Logger         *zap.SugaredLogger
}

// New returns an empty Index ready to accept inserts and serve searches
// (which return empty results until the first insert completes).
func New(cfg Config) *Index {
	m := cfg.M
	if m <= 0 {
		m = 16
	}
	efc := cfg.EfConstruction
	if efc <= 0 {
		efc = 200
	}
	efs := cfg.EfSearch
	if efs <= 0 {
		efs = 50
	}

	return &Index{
		nodes:          make(map[string]*node),
		m:              m,
		efConstruction: efc,
		efSearch:       efs,
		levelMult:      1 / math.Log(float64(m)),
		rnd:            rand.New(rand.NewSource(0xC0FFEE)),
		log:            cfg.Logger,
	}
}

// Size returns the number of vectors currently indexed.
func (idx *Index) Size() int64 { return idx.size.Load() }
