// Package seginfo names and discovers segment files on disk.
//
// Filename formats:
//
//	<prefix>_<n>.sst    — a segment produced by a MemTable flush, n monotone,
//	                      prefix configurable via options.SegmentOptions
//	                      (default "segment").
//	compacted_<ts>.sst  — a segment emitted by compaction, ts a Unix nanosecond
//	                      timestamp (compaction output never collides with a
//	                      flush-produced name, so no counter is needed for it).
//	MANIFEST            — newline-separated list of active segment filenames,
//	                      in ascending age/newness order.
//	MANIFEST.tmp        — transient file written during an atomic advance.
package seginfo

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"

	"github.com/koredb/kore/pkg/filesys"
)

const (
	compactedPrefix = "compacted_"
	segmentExt      = ".sst"

	// ManifestName is the filename of the active MANIFEST.
	ManifestName = "MANIFEST"
	// ManifestTmpName is the filename used while advancing the MANIFEST.
	ManifestTmpName = "MANIFEST.tmp"
)

// FlushSegmentName returns the filename for a flush-produced segment with
// sequence number n under the given prefix.
func FlushSegmentName(prefix string, n uint64) string {
	return fmt.Sprintf("%s_%d%s", prefix, n, segmentExt)
}

// CompactedSegmentName returns the filename for a compaction-produced
// segment stamped with the given Unix-nanosecond timestamp.
func CompactedSegmentName(timestampNanos int64) string {
	return fmt.Sprintf("%s%d%s", compactedPrefix, timestampNanos, segmentExt)
}

// ParseSegmentID extracts the sequence number from a <prefix>_<n>.sst
// filename. It returns false for any other filename shape, including
// compacted_<ts>.sst.
func ParseSegmentID(prefix, filename string) (uint64, bool) {
	filename = filepath.Base(filename)
	want := prefix + "_"
	if !strings.HasPrefix(filename, want) || !strings.HasSuffix(filename, segmentExt) {
		return 0, false
	}
	core := strings.TrimSuffix(strings.TrimPrefix(filename, want), segmentExt)
	id, err := strconv.ParseUint(core, 10, 64)
	if err != nil {
		return 0, false
	}
	return id, true
}

// IsSegmentFile reports whether filename looks like a segment produced by
// either a flush (under prefix) or a compaction.
func IsSegmentFile(prefix, filename string) bool {
	filename = filepath.Base(filename)
	if !strings.HasSuffix(filename, segmentExt) {
		return false
	}
	return strings.HasPrefix(filename, prefix+"_") || strings.HasPrefix(filename, compactedPrefix)
}

// ScanSegmentFiles lists every <prefix>_*.sst and compacted_*.sst file
// directly inside dir, used as the MANIFEST-absent fallback on Open.
func ScanSegmentFiles(dir, prefix string) ([]string, error) {
	entries, err := filesys.ReadDir(filepath.Join(dir, "*"+segmentExt))
	if err != nil {
		return nil, fmt.Errorf("failed to scan segment directory %s: %w", dir, err)
	}

	var out []string
	for _, e := range entries {
		if IsSegmentFile(prefix, e) {
			out = append(out, filepath.Base(e))
		}
	}
	slices.Sort(out)
	return out, nil
}

// NextSegmentID returns 1 + the highest <prefix>_<n>.sst sequence number
// found among filenames, or 1 if none are flush-produced segments.
func NextSegmentID(prefix string, filenames []string) uint64 {
	var max uint64
	for _, f := range filenames {
		if id, ok := ParseSegmentID(prefix, f); ok && id > max {
			max = id
		}
	}
	return max + 1
}

// ReadManifest reads the newline-separated list of active segment filenames
// from dir/MANIFEST. A missing MANIFEST is not an error: callers fall back
// to ScanSegmentFiles.
func ReadManifest(dir string) ([]string, error) {
	path := filepath.Join(dir, ManifestName)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read manifest %s: %w", path, err)
	}

	var out []string
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line != "" {
			out = append(out, line)
		}
	}
	return out, nil
}

// WriteManifest atomically replaces dir/MANIFEST with the given ordered list
// of segment filenames: write dir/MANIFEST.tmp, fsync it, AtomicRename over
// dir/MANIFEST (which fsyncs the directory).
func WriteManifest(dir string, filenames []string) error {
	tmpPath := filepath.Join(dir, ManifestTmpName)
	finalPath := filepath.Join(dir, ManifestName)

	content := strings.Join(filenames, "\n")
	if len(filenames) > 0 {
		content += "\n"
	}

	f, err := os.Create(tmpPath)
	if err != nil {
		return fmt.Errorf("failed to create manifest temp file: %w", err)
	}
	if _, err := f.WriteString(content); err != nil {
		f.Close()
		return fmt.Errorf("failed to write manifest temp file: %w", err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return fmt.Errorf("failed to sync manifest temp file: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to close manifest temp file: %w", err)
	}

	if err := filesys.AtomicRename(tmpPath, finalPath); err != nil {
		return fmt.Errorf("failed to advance manifest: %w", err)
	}
	return nil
}
