package compaction

import (
	"path/filepath"
	"testing"

	"github.com/koredb/kore/internal/sstable"
	"github.com/koredb/kore/pkg/options"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func writeSegment(t *testing.T, name string, entries []sstable.Entry) *sstable.Reader {
	t.Helper()
	opts := options.NewDefaultOptions()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, sstable.WriteFile(path, sstable.NewSliceSource(entries), &opts))
	r, err := sstable.Open(path, 4)
	require.NoError(t, err)
	t.Cleanup(func() { r.Close() })
	return r
}

func TestMergeNewestWinsAndDropsTombstones(t *testing.T) {
	oldSeg := writeSegment(t, "segment_1.sst", []sstable.Entry{
		{Key: []byte("a"), Value: []byte("old-a")},
		{Key: []byte("b"), Value: []byte("old-b")},
	})
	newSeg := writeSegment(t, "segment_2.sst", []sstable.Entry{
		{Key: []byte("a"), Value: []byte("new-a")},
		{Key: []byte("c"), Value: nil}, // tombstone, never existed in oldSeg either
	})

	src := Merge([]*sstable.Reader{oldSeg, newSeg}, zap.NewNop().Sugar())

	var got []sstable.Entry
	for {
		k, v, ok := src.Next()
		if !ok {
			break
		}
		got = append(got, sstable.Entry{Key: append([]byte(nil), k...), Value: append([]byte(nil), v...)})
	}

	require.Equal(t, []sstable.Entry{
		{Key: []byte("a"), Value: []byte("new-a")},
		{Key: []byte("b"), Value: []byte("old-b")},
	}, got)
}

func TestRunProducesQueryableSegment(t *testing.T) {
	s1 := writeSegment(t, "segment_1.sst", []sstable.Entry{{Key: []byte("x"), Value: []byte("1")}})
	s2 := writeSegment(t, "segment_2.sst", []sstable.Entry{{Key: []byte("x"), Value: []byte("2")}})

	dir := t.TempDir()
	opts := options.NewDefaultOptions()
	path, err := Run(dir, []*sstable.Reader{s1, s2}, 1700000000000, &opts, zap.NewNop().Sugar())
	require.NoError(t, err)

	r, err := sstable.Open(path, 4)
	require.NoError(t, err)
	defer r.Close()

	v, ok := r.Find([]byte("x"))
	require.True(t, ok)
	require.Equal(t, "2", string(v))
}
