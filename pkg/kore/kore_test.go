package kore

import (
	"context"
	"testing"

	"github.com/koredb/kore/internal/graph"
	"github.com/koredb/kore/pkg/options"
	"github.com/stretchr/testify/require"
)

func newTestInstance(t *testing.T) *Instance {
	t.Helper()
	dir := t.TempDir()
	inst, err := Open(context.Background(), "kore-test", options.WithDataDir(dir))
	require.NoError(t, err)
	t.Cleanup(func() { inst.Close() })
	return inst
}

func TestPutGetDelete(t *testing.T) {
	inst := newTestInstance(t)

	require.NoError(t, inst.Put([]byte("a"), []byte("1"), true))
	v, ok := inst.Get([]byte("a"))
	require.True(t, ok)
	require.Equal(t, "1", string(v))

	require.NoError(t, inst.Delete([]byte("a"), true))
	_, ok = inst.Get([]byte("a"))
	require.False(t, ok)
}

func TestScanPrefix(t *testing.T) {
	inst := newTestInstance(t)

	require.NoError(t, inst.Put([]byte("k1"), []byte("v1"), true))
	require.NoError(t, inst.Put([]byte("k2"), []byte("v2"), true))
	require.NoError(t, inst.Put([]byte("other"), []byte("v3"), true))

	keys := inst.ScanPrefixKeys([]byte("k"))
	require.Equal(t, []string{"k1", "k2"}, keys)
}

func TestVectorInsertAndSearchBeforeAndAfterDrain(t *testing.T) {
	inst := newTestInstance(t)

	require.NoError(t, inst.VectorInsert("images", "v1", []float32{1, 0, 0}, true))
	require.NoError(t, inst.VectorInsert("images", "v2", []float32{0, 1, 0}, true))

	results := inst.VectorSearch("images", []float32{1, 0, 0}, 1)
	require.Len(t, results, 1)

	inst.VectorDrain("images")
	results = inst.VectorSearch("images", []float32{1, 0, 0}, 1)
	require.Len(t, results, 1)
	require.Equal(t, "v1", results[0].ID)
}

func TestVectorInsertBatch(t *testing.T) {
	inst := newTestInstance(t)

	require.NoError(t, inst.VectorInsertBatch("docs", map[string][]float32{
		"a": {1, 0},
		"b": {0, 1},
	}, true))
	inst.VectorDrain("docs")

	results := inst.VectorSearch("docs", []float32{1, 0}, 2)
	require.Len(t, results, 2)
}

func TestGraphFacadeAndTransaction(t *testing.T) {
	inst := newTestInstance(t)

	require.NoError(t, inst.Graph().PutNode(graph.Node{ID: "n1", Labels: []string{"Person"}}, true))
	n, ok := inst.Graph().GetNode("n1")
	require.True(t, ok)
	require.Equal(t, "n1", n.ID)

	err := inst.Transaction(true, func(tx *graph.Transaction) error {
		return tx.PutEdge(graph.Edge{Src: "n1", Type: "KNOWS", Dst: "n2"})
	})
	require.NoError(t, err)
	require.Equal(t, []string{"n2"}, inst.Graph().OutboundTargetIDs("n1", "KNOWS"))
}

func TestWipeClearsVectorState(t *testing.T) {
	inst := newTestInstance(t)

	require.NoError(t, inst.VectorInsert("images", "v1", []float32{1, 0}, true))
	inst.VectorDrain("images")
	require.NoError(t, inst.Wipe())

	_, ok := inst.Get([]byte("vec:images:v1"))
	require.False(t, ok)
}

func TestVectorInsertRejectsColonInComponent(t *testing.T) {
	inst := newTestInstance(t)

	require.Error(t, inst.VectorInsert("im:ages", "v1", []float32{1, 0}, true))
	require.Error(t, inst.VectorInsert("images", "v:1", []float32{1, 0}, true))
	require.Error(t, inst.VectorInsertBatch("im:ages", map[string][]float32{"a": {1, 0}}, true))
	require.Error(t, inst.VectorInsertBatch("images", map[string][]float32{"a:b": {1, 0}}, true))
}
