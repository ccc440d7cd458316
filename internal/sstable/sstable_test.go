package sstable

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/koredb/kore/internal/codec"
	"github.com/koredb/kore/pkg/options"
	"github.com/stretchr/testify/require"
)

func writeTestSegment(t *testing.T, entries []Entry) *Reader {
	t.Helper()
	path := filepath.Join(t.TempDir(), "segment_00001.sst")
	opts := options.NewDefaultOptions()
	require.NoError(t, WriteFile(path, NewSliceSource(entries), &opts))

	r, err := Open(path, 2)
	require.NoError(t, err)
	t.Cleanup(func() { r.Close() })
	return r
}

func TestWriteAndFind(t *testing.T) {
	r := writeTestSegment(t, []Entry{
		{Key: []byte("a"), Value: []byte("1")},
		{Key: []byte("b"), Value: []byte("2")},
		{Key: []byte("c"), Value: []byte("3")},
	})

	v, ok := r.Find([]byte("b"))
	require.True(t, ok)
	require.Equal(t, "2", string(v))

	_, ok = r.Find([]byte("missing"))
	require.False(t, ok)
}

func TestScanByPrefix(t *testing.T) {
	r := writeTestSegment(t, []Entry{
		{Key: []byte("doc:a:1"), Value: []byte("1")},
		{Key: []byte("doc:a:2"), Value: []byte("2")},
		{Key: []byte("doc:b:1"), Value: []byte("3")},
		{Key: []byte("zzz"), Value: []byte("4")},
	})

	var got []string
	r.ScanByPrefix([]byte("doc:a:"), func(key, value []byte) {
		got = append(got, string(key))
	})
	require.Equal(t, []string{"doc:a:1", "doc:a:2"}, got)
}

func TestFooterVerification(t *testing.T) {
	path := filepath.Join(t.TempDir(), "segment_00001.sst")
	opts := options.NewDefaultOptions()
	require.NoError(t, WriteFile(path, NewSliceSource(nil), &opts))

	r, err := Open(path, 2)
	require.NoError(t, err)
	r.Close()
}

func TestOpenRejectsCorruptFooter(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.sst")
	require.NoError(t, os.WriteFile(path, make([]byte, FooterSize), 0o644))

	_, err := Open(path, 2)
	require.Error(t, err)
}

func TestFindTopVectors(t *testing.T) {
	vec := func(v ...float32) []byte {
		return codec.EncodeVector(codec.Magnitude(v), v)
	}
	r := writeTestSegment(t, []Entry{
		{Key: []byte("vec:c:a"), Value: vec(1, 0, 0)},
		{Key: []byte("vec:c:b"), Value: vec(0, 1, 0)},
		{Key: []byte("vec:c:c"), Value: vec(1, 0, 0)},
	})

	results := r.FindTopVectors([]byte("vec:c:"), []float32{1, 0, 0}, 2)
	require.Len(t, results, 2)
	require.InDelta(t, 1.0, results[0].Score, 1e-3)
	require.InDelta(t, 1.0, results[1].Score, 1e-3)
}
