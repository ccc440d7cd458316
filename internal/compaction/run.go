package compaction

import (
	"path/filepath"

	"github.com/koredb/kore/internal/sstable"
	"github.com/koredb/kore/pkg/options"
	"github.com/koredb/kore/pkg/seginfo"
	"go.uber.org/zap"
)

// Run merges readers (oldest→newest) into a single new segment file named
// compacted_<timestampNanos>.sst inside dir, per spec.md §4.7/§4.8. The
// caller supplies timestampNanos (time-related calls are kept out of this
// package so it stays trivially testable) and is responsible for the
// writer-lock discipline and MANIFEST advance around the call.
func Run(dir string, readers []*sstable.Reader, timestampNanos int64, opts *options.Options, log *zap.SugaredLogger) (path string, err error) {
	src := Merge(readers, log)
	path = filepath.Join(dir, seginfo.CompactedSegmentName(timestampNanos))
	if err := sstable.WriteFile(path, src, opts); err != nil {
		return "", err
	}
	if log != nil {
		log.Infow("compaction produced new segment", "path", path, "inputs", len(readers))
	}
	return path, nil
}
