package hnsw

import (
	"fmt"
	"testing"

	"github.com/koredb/kore/internal/codec"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestIndex() *Index {
	return New(Config{M: 8, EfConstruction: 32, EfSearch: 16, Logger: zap.NewNop().Sugar()})
}

func TestSearchEmptyIndex(t *testing.T) {
	idx := newTestIndex()
	require.Nil(t, idx.Search([]float32{1, 0, 0}, 1))
}

func TestInsertAndSearchFindsExactMatch(t *testing.T) {
	idx := newTestIndex()
	idx.Insert("a", []float32{1, 0, 0})
	idx.Insert("b", []float32{0, 1, 0})
	idx.Insert("c", []float32{1, 0, 0})

	results := idx.Search([]float32{1, 0, 0}, 2)
	require.Len(t, results, 2)
	ids := map[string]bool{results[0].ID: true, results[1].ID: true}
	require.True(t, ids["a"])
	require.True(t, ids["c"])
}

func TestInsertManyConvergesToReasonableRecall(t *testing.T) {
	idx := newTestIndex()
	for i := 0; i < 200; i++ {
		v := []float32{float32(i), 1, 0}
		idx.Insert(fmt.Sprintf("id-%d", i), v)
	}
	require.EqualValues(t, 200, idx.Size())

	results := idx.Search([]float32{199, 1, 0}, 5)
	require.Len(t, results, 5)
}

func TestIndexerHydrateAndDrain(t *testing.T) {
	idx := newTestIndex()
	indexer := NewIndexer(idx)
	defer indexer.Close()

	indexer.Enqueue("live-1", []float32{1, 0, 0})
	indexer.Drain()

	require.EqualValues(t, 1, idx.Size())
	results := idx.Search([]float32{1, 0, 0}, 1)
	require.Len(t, results, 1)
	require.Equal(t, "live-1", results[0].ID)
}

type fakeScanner struct {
	entries []KeyValue
	pos     int
}

func (f *fakeScanner) NextChunk(n int) ([]KeyValue, bool) {
	if f.pos >= len(f.entries) {
		return nil, false
	}
	end := f.pos + n
	if end > len(f.entries) {
		end = len(f.entries)
	}
	chunk := f.entries[f.pos:end]
	f.pos = end
	return chunk, f.pos < len(f.entries)
}

func TestIndexerHydrateScansAllChunks(t *testing.T) {
	idx := newTestIndex()
	indexer := NewIndexer(idx)
	defer indexer.Close()

	vec := func(v ...float32) []byte {
		return codec.EncodeVector(codec.Magnitude(v), v)
	}

	scanner := &fakeScanner{entries: []KeyValue{
		{Key: []byte("vec:c:x"), Value: vec(1, 0, 0)},
		{Key: []byte("vec:c:y"), Value: vec(0, 1, 0)},
		{Key: []byte("vec:c:z"), Value: vec(0, 0, 1)},
	}}

	indexer.Hydrate(scanner, 2, func(key []byte) string { return string(key) })
	indexer.Drain()

	require.EqualValues(t, 3, idx.Size())
}
