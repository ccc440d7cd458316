package wal

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func testLogger(t *testing.T) *zap.SugaredLogger {
	t.Helper()
	return zap.NewNop().Sugar()
}

func TestAppendAndReplay(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "kore.wal")

	w, err := Open(path, testLogger(t))
	require.NoError(t, err)

	require.NoError(t, w.AppendBatch([]Record{{Key: []byte("k1"), Value: []byte("v1")}}, true))
	require.NoError(t, w.AppendBatch([]Record{
		{Key: []byte("k2"), Value: []byte("v2")},
		{Key: []byte("k3"), Value: []byte("v3")},
	}, true))
	require.NoError(t, w.Close())

	var batches [][]Record
	require.NoError(t, Replay(path, func(batch []Record) {
		batches = append(batches, batch)
	}))

	require.Len(t, batches, 2)
	require.Len(t, batches[0], 1)
	require.Len(t, batches[1], 2)
	require.Equal(t, "k1", string(batches[0][0].Key))
	require.Equal(t, "k3", string(batches[1][1].Key))
}

func TestReplayMissingFileIsNotError(t *testing.T) {
	require.NoError(t, Replay(filepath.Join(t.TempDir(), "nope.wal"), func([]Record) {}))
}

func TestReplayDiscardsTruncatedTailBatch(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "kore.wal")

	w, err := Open(path, testLogger(t))
	require.NoError(t, err)
	require.NoError(t, w.AppendBatch([]Record{{Key: []byte("k1"), Value: []byte("v1")}}, true))
	require.NoError(t, w.AppendBatch([]Record{{Key: []byte("k2"), Value: []byte("v2")}}, true))
	require.NoError(t, w.Close())

	// Truncate the last few bytes, simulating a crash mid-write of the
	// second batch's COMMIT tag.
	info, err := os.Stat(path)
	require.NoError(t, err)
	require.NoError(t, os.Truncate(path, info.Size()-3))

	var batches [][]Record
	require.NoError(t, Replay(path, func(batch []Record) {
		batches = append(batches, batch)
	}))

	// The first batch, fully committed before the truncation, must survive;
	// the truncated second batch must not appear at all.
	require.Len(t, batches, 1)
	require.Equal(t, "k1", string(batches[0][0].Key))
}

func TestReplayDiscardsCRCMismatch(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "kore.wal")

	w, err := Open(path, testLogger(t))
	require.NoError(t, err)
	require.NoError(t, w.AppendBatch([]Record{{Key: []byte("k1"), Value: []byte("v1")}}, true))
	require.NoError(t, w.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	// Flip a byte inside the key payload, invalidating its CRC.
	corrupt := append([]byte(nil), data...)
	keyOffset := 4 + 4 + 4 + 4 + 8 // BEGIN tag, PUT tag, key size, value size, CRC
	corrupt[keyOffset] ^= 0xFF
	require.NoError(t, os.WriteFile(path, corrupt, 0644))

	var batches [][]Record
	require.NoError(t, Replay(path, func(batch []Record) {
		batches = append(batches, batch)
	}))
	require.Empty(t, batches)
}

func TestAppendBatchRejectsEmpty(t *testing.T) {
	dir := t.TempDir()
	w, err := Open(filepath.Join(dir, "kore.wal"), testLogger(t))
	require.NoError(t, err)
	defer w.Close()

	require.Error(t, w.AppendBatch(nil, true))
}
