package seginfo

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFlushAndCompactedSegmentNames(t *testing.T) {
	require.Equal(t, "segment_3.sst", FlushSegmentName("segment", 3))
	require.Equal(t, "compacted_1690000000.sst", CompactedSegmentName(1690000000))
}

func TestParseSegmentID(t *testing.T) {
	id, ok := ParseSegmentID("segment", "segment_42.sst")
	require.True(t, ok)
	require.Equal(t, uint64(42), id)

	_, ok = ParseSegmentID("segment", "compacted_1690000000.sst")
	require.False(t, ok)

	_, ok = ParseSegmentID("segment", "MANIFEST")
	require.False(t, ok)
}

func TestIsSegmentFile(t *testing.T) {
	require.True(t, IsSegmentFile("segment", "segment_1.sst"))
	require.True(t, IsSegmentFile("segment", "compacted_123.sst"))
	require.False(t, IsSegmentFile("segment", "MANIFEST"))
	require.False(t, IsSegmentFile("segment", "MANIFEST.tmp"))
}

func TestNextSegmentID(t *testing.T) {
	require.Equal(t, uint64(1), NextSegmentID("segment", nil))
	require.Equal(t, uint64(4), NextSegmentID("segment", []string{"segment_1.sst", "segment_3.sst", "compacted_99.sst"}))
}

func TestManifestRoundTrip(t *testing.T) {
	dir := t.TempDir()

	names, err := ReadManifest(dir)
	require.NoError(t, err)
	require.Nil(t, names)

	want := []string{"segment_1.sst", "segment_2.sst"}
	require.NoError(t, WriteManifest(dir, want))

	got, err := ReadManifest(dir)
	require.NoError(t, err)
	require.Equal(t, want, got)

	_, err = os.Stat(filepath.Join(dir, ManifestTmpName))
	require.True(t, os.IsNotExist(err))
}

func TestScanSegmentFiles(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"segment_1.sst", "segment_2.sst", "compacted_5.sst", "MANIFEST"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("x"), 0o644))
	}

	got, err := ScanSegmentFiles(dir, "segment")
	require.NoError(t, err)
	require.ElementsMatch(t, []string{"segment_1.sst", "segment_2.sst", "compacted_5.sst"}, got)
}
