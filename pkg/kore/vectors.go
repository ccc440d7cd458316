package kore

import (
	"strings"

	"github.com/koredb/kore/internal/codec"
	"github.com/koredb/kore/internal/hnsw"
	"github.com/koredb/kore/internal/wal"
	koreErrors "github.com/koredb/kore/pkg/errors"
)

// validateVecComponent rejects a ':' (0x3A) byte in coll or id. Per spec.md
// §3, the colon-delimited components of a vec:<coll>:<id> key must not
// themselves contain a colon — letting one through would silently shift
// where idFromVecKey splits the key and return the wrong id.
func validateVecComponent(field, value string) error {
	if strings.ContainsRune(value, ':') {
		return koreErrors.NewFieldFormatError(field, value, "must not contain ':' (0x3A), the key-schema separator").
			WithRule("no_colon")
	}
	return nil
}

// vecKey returns the storage key for one collection's vector record:
// vec:<coll>:<id>, per spec.md's key schema.
func vecKey(coll, id string) []byte {
	return []byte("vec:" + coll + ":" + id)
}

func vecPrefix(coll string) []byte {
	return []byte("vec:" + coll + ":")
}

// engineChunkScanner adapts Instance's already-materialized ScanPrefix
// result into the hnsw.ChunkScanner interface the indexer's hydration
// pass consumes. The engine's scan is not itself incremental, but paging
// through the result in fixed-size slices still gives Hydrate's caller
// the cooperative-yield shape spec.md §4.9 describes, and keeps the
// indexer's hydration logic identical regardless of what backs it.
type engineChunkScanner struct {
	entries []hnsw.KeyValue
	pos     int
}

func (s *engineChunkScanner) NextChunk(n int) ([]hnsw.KeyValue, bool) {
	if s.pos >= len(s.entries) {
		return nil, false
	}
	end := s.pos + n
	if end > len(s.entries) {
		end = len(s.entries)
	}
	chunk := s.entries[s.pos:end]
	s.pos = end
	return chunk, s.pos < len(s.entries)
}

// collection returns (creating and hydrating on first access) the HNSW
// index and background indexer for coll.
func (i *Instance) collection(coll string) *collectionIndex {
	i.vecMu.Lock()
	defer i.vecMu.Unlock()

	if c, ok := i.vector[coll]; ok {
		return c
	}

	index := hnsw.New(hnsw.Config{
		M:              i.opts.HNSWOptions.M,
		EfConstruction: i.opts.HNSWOptions.EfConstruction,
		EfSearch:       i.opts.HNSWOptions.EfSearch,
		Logger:         i.log,
	})
	indexer := hnsw.NewIndexer(index)

	raw := i.engine.ScanPrefix(vecPrefix(coll))
	entries := make([]hnsw.KeyValue, 0, len(raw))
	for k, v := range raw {
		entries = append(entries, hnsw.KeyValue{Key: []byte(k), Value: v})
	}
	indexer.Hydrate(&engineChunkScanner{entries: entries}, 256, idFromVecKey)

	c := &collectionIndex{index: index, indexer: indexer}
	i.vector[coll] = c
	return c
}

func idFromVecKey(key []byte) string {
	s := string(key)
	// vec:<coll>:<id> — id is everything after the second ':'.
	first := indexByte(s, ':')
	second := indexByte(s[first+1:], ':') + first + 1
	return s[second+1:]
}

func indexByte(s string, b byte) int {
	for i := 0; i < len(s); i++ {
		if s[i] == b {
			return i
		}
	}
	return -1
}

// VectorInsert implements spec.md §6 vector_insert(coll, id, vec): it
// writes the authoritative vec:<coll>:<id> record to the KV store, then
// enqueues the vector for background HNSW indexing. The KV write is
// always authoritative; HNSW visibility trails by at most the indexer's
// backlog, per spec.md §4.9.
func (i *Instance) VectorInsert(coll, id string, vector []float32, urgent bool) error {
	if err := validateVecComponent("coll", coll); err != nil {
		return err
	}
	if err := validateVecComponent("id", id); err != nil {
		return err
	}
	value := codec.EncodeVector(codec.Magnitude(vector), vector)
	if err := i.engine.Put(vecKey(coll, id), value, urgent); err != nil {
		return err
	}
	i.collection(coll).indexer.Enqueue(id, vector)
	return nil
}

// VectorInsertBatch implements spec.md §6 vector_insert_batch(coll, map):
// one atomic KV batch covering every vector, followed by enqueuing each
// for HNSW indexing.
func (i *Instance) VectorInsertBatch(coll string, vectors map[string][]float32, urgent bool) error {
	if len(vectors) == 0 {
		return nil
	}
	if err := validateVecComponent("coll", coll); err != nil {
		return err
	}
	for id := range vectors {
		if err := validateVecComponent("id", id); err != nil {
			return err
		}
	}

	batch := make([]wal.Record, 0, len(vectors))
	for id, v := range vectors {
		batch = append(batch, wal.Record{Key: vecKey(coll, id), Value: codec.EncodeVector(codec.Magnitude(v), v)})
	}
	if err := i.engine.WriteBatch(batch, urgent); err != nil {
		return err
	}

	c := i.collection(coll)
	for id, v := range vectors {
		c.indexer.Enqueue(id, v)
	}
	return nil
}

// VectorSearch implements spec.md §6 vector_search(coll, query, k): served
// from HNSW once warm (index size > 0), falling back to the brute-force
// search_vectors path over MemTable and segments on a cold start, per
// spec.md §4.9's "search behavior" note.
func (i *Instance) VectorSearch(coll string, query []float32, k int) []hnsw.ScoredID {
	c := i.collection(coll)
	if c.index.Size() > 0 {
		return c.index.Search(query, k)
	}

	scored := i.engine.SearchVectors(vecPrefix(coll), query, k)
	out := make([]hnsw.ScoredID, len(scored))
	for idx, s := range scored {
		out[idx] = hnsw.ScoredID{ID: idFromVecKey(s.Key), Score: s.Score}
	}
	return out
}

// VectorDrain implements spec.md §6 vector_drain(coll): blocks until every
// vector enqueued for coll before this call has been applied to HNSW.
// Useful for tests and controlled shutdown.
func (i *Instance) VectorDrain(coll string) {
	i.collection(coll).indexer.Drain()
}
