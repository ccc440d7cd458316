// Package engine implements kore's LSM-tree write/read path: the
// coordinator that ties the MemTable, the write-ahead log, the on-disk
// Segment Set, and the background compactor into one crash-safe store.
//
// The engine keeps the teacher's lifecycle shape — a single struct born
// from New, guarded by an atomic closed flag, torn down by Close — but the
// subsystems it coordinates and the state machine it runs are the LSM
// design of the specification rather than the teacher's original Bitcask
// model: this file owns the writer-lock/compaction-flag concurrency
// discipline, the Segment Set, and the MANIFEST, where the teacher's
// engine only wired together an in-memory hash index and an append-only
// segment writer.
package engine

import (
	"context"
	stdErrors "errors"
	"fmt"
	"path/filepath"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/koredb/kore/internal/codec"
	"github.com/koredb/kore/internal/compaction"
	"github.com/koredb/kore/internal/memtable"
	"github.com/koredb/kore/internal/sstable"
	"github.com/koredb/kore/internal/wal"
	koreErrors "github.com/koredb/kore/pkg/errors"
	"github.com/koredb/kore/pkg/filesys"
	"github.com/koredb/kore/pkg/options"
	"github.com/koredb/kore/pkg/seginfo"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// ErrEngineClosed is returned when attempting to perform operations on a
// closed engine.
var ErrEngineClosed = stdErrors.New("operation failed: cannot access closed engine")

const walFileName = "kore.wal"
const walBackupFileName = "kore.wal.old"

// Engine is kore's LSM-tree storage engine: one MemTable, one active WAL,
// an ordered Segment Set, and the writer/compaction concurrency discipline
// spec.md §4.8/§5 requires.
type Engine struct {
	opts *options.Options
	log  *zap.SugaredLogger

	closed atomic.Bool

	dataDir string

	// writerMu serializes "about to append to the WAL" through "finished
	// applying to the MemTable and, if triggered, finished the flush and
	// segment-set swap" — the single point of linearization for writes.
	writerMu sync.Mutex

	memtable *memtable.MemTable
	activeWAL *wal.WAL

	// segmentsMu guards segments. Reads acquire a snapshot (a copy of the
	// slice header) under RLock; flush/compaction swap the slice under
	// Lock, always additionally holding writerMu. nextSegmentID is changed
	// only while writerMu is held.
	segmentsMu    sync.RWMutex
	segments      []*sstable.Reader // oldest -> newest
	nextSegmentID uint64

	// compacting is the dedicated compaction-busy flag: never concurrent
	// with itself, but compaction may run alongside reads and writes.
	compacting atomic.Bool

	onVectorWrite func(batch []wal.Record) // optional hook for the HNSW indexer

	metrics metrics
}

// New opens (or creates) the engine rooted at opts.DataDir, replaying its
// WAL and opening readers on every segment the MANIFEST (or a directory
// scan, if the MANIFEST is absent) lists.
func New(ctx context.Context, opts *options.Options, log *zap.SugaredLogger) (*Engine, error) {
	if opts == nil || log == nil {
		return nil, koreErrors.NewValidationError(
			nil, koreErrors.ErrorCodeInvalidInput, "engine requires options and a logger",
		).WithField("opts/log").WithRule("required")
	}

	segmentDir := filepath.Join(opts.DataDir, opts.SegmentOptions.Directory)
	if err := filesys.CreateDir(segmentDir, 0755, true); err != nil {
		return nil, koreErrors.NewStorageError(err, koreErrors.ErrorCodeIO, "failed to create segment directory").WithPath(segmentDir)
	}

	e := &Engine{
		opts:     opts,
		log:      log,
		dataDir:  segmentDir,
		memtable: memtable.New(),
	}

	if err := e.openSegments(); err != nil {
		return nil, err
	}

	if err := e.openWAL(); err != nil {
		return nil, err
	}

	log.Infow("engine opened", "dataDir", e.dataDir, "segments", len(e.segments), "nextSegmentID", e.nextSegmentID)
	return e, nil
}

// openSegments loads the Segment Set from the MANIFEST (or a filename scan
// fallback), skipping and logging any segment that fails footer
// verification, then sets the segment counter to 1 + the highest existing
// index.
func (e *Engine) openSegments() error {
	prefix := e.opts.SegmentOptions.Prefix

	names, err := seginfo.ReadManifest(e.dataDir)
	if err != nil {
		return err
	}
	if names == nil {
		names, err = seginfo.ScanSegmentFiles(e.dataDir, prefix)
		if err != nil {
			return err
		}
	}

	var segments []*sstable.Reader
	var kept []string
	for _, name := range names {
		path := filepath.Join(e.dataDir, name)
		r, err := sstable.Open(path, e.opts.SparseIndexSampleRate)
		if err != nil {
			e.log.Warnw("excluding invalid segment from segment set", "path", path, "error", err)
			continue
		}
		segments = append(segments, r)
		kept = append(kept, name)
	}

	if len(kept) != len(names) {
		if err := seginfo.WriteManifest(e.dataDir, kept); err != nil {
			return err
		}
	}

	e.segments = segments
	e.nextSegmentID = seginfo.NextSegmentID(prefix, names)
	return nil
}

func (e *Engine) openWAL() error {
	path := filepath.Join(e.dataDir, walFileName)

	if err := wal.Replay(path, func(batch []wal.Record) {
		for _, r := range batch {
			e.memtable.Put(r.Key, r.Value)
		}
	}); err != nil {
		return err
	}

	w, err := wal.Open(path, e.log)
	if err != nil {
		return err
	}
	e.activeWAL = w
	return nil
}

// Close closes the WAL and drops every segment reader. It is an error to
// call Close twice.
func (e *Engine) Close() error {
	if !e.closed.CompareAndSwap(false, true) {
		return ErrEngineClosed
	}

	e.writerMu.Lock()
	defer e.writerMu.Unlock()

	var closeErr error
	if err := e.activeWAL.Close(); err != nil {
		closeErr = multierr.Append(closeErr, err)
	}

	e.segmentsMu.Lock()
	statters := make([]bloomStatter, len(e.segments))
	for i, r := range e.segments {
		statters[i] = r
	}
	for _, r := range e.segments {
		if err := r.Close(); err != nil {
			closeErr = multierr.Append(closeErr, err)
		}
	}
	e.segments = nil
	e.segmentsMu.Unlock()

	e.metrics.logSummary(e.log, statters)

	return closeErr
}

// Wipe is a testing hook: it closes the WAL, drops every reader, deletes
// every file in the data directory, and reopens an empty WAL with a fresh
// MemTable and Segment Set.
func (e *Engine) Wipe() error {
	if e.closed.Load() {
		return ErrEngineClosed
	}

	e.writerMu.Lock()
	defer e.writerMu.Unlock()

	if err := e.activeWAL.Close(); err != nil {
		return err
	}

	e.segmentsMu.Lock()
	for _, r := range e.segments {
		r.Close()
	}
	e.segments = nil
	e.segmentsMu.Unlock()

	if err := filesys.DeleteDir(e.dataDir); err != nil {
		return err
	}
	if err := filesys.CreateDir(e.dataDir, 0755, true); err != nil {
		return err
	}

	e.memtable = memtable.New()
	e.nextSegmentID = 1

	w, err := wal.Open(filepath.Join(e.dataDir, walFileName), e.log)
	if err != nil {
		return err
	}
	e.activeWAL = w
	return nil
}

// WriteBatch appends batch to the WAL, applies it to the MemTable under the
// writer lock, and triggers a flush if the MemTable has crossed the
// configured threshold. put/delete are sugar built on this.
func (e *Engine) WriteBatch(batch []wal.Record, urgent bool) error {
	if e.closed.Load() {
		return ErrEngineClosed
	}
	if len(batch) == 0 {
		return koreErrors.NewValidationError(nil, koreErrors.ErrorCodeInvalidInput, "batch must be non-empty")
	}

	e.writerMu.Lock()
	defer e.writerMu.Unlock()

	if e.closed.Load() {
		return ErrEngineClosed
	}

	if err := e.activeWAL.AppendBatch(batch, urgent || e.opts.WALUrgentSync); err != nil {
		return err
	}

	var batchBytes int
	for _, r := range batch {
		e.memtable.Put(r.Key, r.Value)
		batchBytes += len(r.Key) + len(r.Value)
	}
	e.metrics.recordWALBytes(batchBytes)

	if e.onVectorWrite != nil {
		e.onVectorWrite(batch)
	}

	if e.memtable.SizeBytes() >= e.opts.FlushThreshold {
		if err := e.flushLocked(); err != nil {
			return err
		}
	}
	return nil
}

// Put is sugar for WriteBatch([(k,v)]).
func (e *Engine) Put(key, value []byte, urgent bool) error {
	return e.WriteBatch([]wal.Record{{Key: key, Value: value}}, urgent)
}

// Delete is sugar for WriteBatch([(k,TOMBSTONE)]).
func (e *Engine) Delete(key []byte, urgent bool) error {
	return e.WriteBatch([]wal.Record{{Key: key, Value: codec.Tombstone}}, urgent)
}

// OnVectorWrite registers a hook invoked, while still holding the writer
// lock, with every batch WriteBatch applies. It is the engine's only
// integration point for the HNSW background indexer's live-write channel.
func (e *Engine) OnVectorWrite(hook func(batch []wal.Record)) {
	e.writerMu.Lock()
	defer e.writerMu.Unlock()
	e.onVectorWrite = hook
}

// flushLocked implements §4.8 Flush. Caller must hold writerMu.
func (e *Engine) flushLocked() error {
	id := e.nextSegmentID
	e.nextSegmentID++

	name := seginfo.FlushSegmentName(e.opts.SegmentOptions.Prefix, id)
	path := filepath.Join(e.dataDir, name)

	entries := e.memtable.IterAll()
	src := sstable.NewSliceSource(toSSTableEntries(entries))
	if err := sstable.WriteFile(path, src, e.opts); err != nil {
		return koreErrors.NewStorageError(err, koreErrors.ErrorCodeIO, "failed to write flushed segment").WithPath(path)
	}

	reader, err := sstable.Open(path, e.opts.SparseIndexSampleRate)
	if err != nil {
		return err
	}

	e.segmentsMu.Lock()
	e.segments = append(e.segments, reader)
	names := e.segmentNamesLocked()
	e.segmentsMu.Unlock()

	if err := seginfo.WriteManifest(e.dataDir, names); err != nil {
		return err
	}

	if err := e.rotateWAL(); err != nil {
		return err
	}

	e.memtable.Clear()
	e.metrics.recordFlush()
	e.log.Infow("flushed memtable to segment", "segment", name, "segmentCount", len(names))

	if len(names) >= e.opts.CompactionTrigger && e.compacting.CompareAndSwap(false, true) {
		go e.runCompaction()
	}
	return nil
}

// rotateWAL implements the WAL rotation step of §4.8 Flush: close current,
// rename to a backup path, sync directory, open a new empty WAL at the
// canonical path, sync directory, delete the backup.
func (e *Engine) rotateWAL() error {
	if err := e.activeWAL.Close(); err != nil {
		return err
	}

	canonical := filepath.Join(e.dataDir, walFileName)
	backup := filepath.Join(e.dataDir, walBackupFileName)

	if err := filesys.AtomicRename(canonical, backup); err != nil {
		return err
	}

	w, err := wal.Open(canonical, e.log)
	if err != nil {
		return err
	}
	if err := filesys.SyncDir(e.dataDir); err != nil {
		w.Close()
		return err
	}

	if err := filesys.DeleteFile(backup); err != nil {
		return err
	}

	e.activeWAL = w
	return nil
}

func (e *Engine) segmentNamesLocked() []string {
	names := make([]string, len(e.segments))
	for i, r := range e.segments {
		names[i] = filepath.Base(r.Path())
	}
	return names
}

func toSSTableEntries(in []memtable.Entry) []sstable.Entry {
	out := make([]sstable.Entry, len(in))
	for i, e := range in {
		out[i] = sstable.Entry{Key: e.Key, Value: e.Value}
	}
	return out
}

// Get implements §4.8 reads: MemTable first, then segments newest to
// oldest, bloom-filter-then-scan on each.
func (e *Engine) Get(key []byte) ([]byte, bool) {
	if v, ok := e.memtable.Get(key); ok {
		if codec.IsTombstone(v) {
			return nil, false
		}
		return v, true
	}

	segments := e.snapshotSegments()
	for i := len(segments) - 1; i >= 0; i-- {
		if v, ok := segments[i].Find(key); ok {
			if codec.IsTombstone(v) {
				return nil, false
			}
			return v, true
		}
	}
	return nil, false
}

func (e *Engine) snapshotSegments() []*sstable.Reader {
	e.segmentsMu.RLock()
	defer e.segmentsMu.RUnlock()
	out := make([]*sstable.Reader, len(e.segments))
	copy(out, e.segments)
	return out
}

// ScanPrefix implements §4.8 scan_prefix: merge sources oldest→newest with
// newest-wins semantics, dropping tombstones.
func (e *Engine) ScanPrefix(prefix []byte) map[string][]byte {
	result := make(map[string][]byte)

	segments := e.snapshotSegments()
	for _, seg := range segments {
		seg.ScanByPrefix(prefix, func(key, value []byte) {
			k := string(key)
			if codec.IsTombstone(value) {
				delete(result, k)
				return
			}
			result[k] = append([]byte(nil), value...)
		})
	}

	for _, entry := range e.memtable.IterFrom(prefix) {
		if !codec.HasPrefix(entry.Key, prefix) {
			break
		}
		k := string(entry.Key)
		if codec.IsTombstone(entry.Value) {
			delete(result, k)
			continue
		}
		result[k] = append([]byte(nil), entry.Value...)
	}

	return result
}

// ScanPrefixKeys returns only the keys ScanPrefix would return, sorted
// ascending.
func (e *Engine) ScanPrefixKeys(prefix []byte) []string {
	m := e.ScanPrefix(prefix)
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// SearchVectors implements §4.8 search_vectors: per-segment
// find_top_vectors folded into a combined top-k, plus a brute-force sweep
// of the MemTable tail under prefix.
func (e *Engine) SearchVectors(prefix []byte, query []float32, k int) []sstable.ScoredKey {
	if k <= 0 {
		return nil
	}

	var all []sstable.ScoredKey
	for _, seg := range e.snapshotSegments() {
		all = append(all, seg.FindTopVectors(prefix, query, k)...)
	}

	queryMag := codec.Magnitude(query)
	for _, entry := range e.memtable.IterFrom(prefix) {
		if !codec.HasPrefix(entry.Key, prefix) {
			break
		}
		if codec.IsTombstone(entry.Value) {
			continue
		}
		storedMag, vec, ok := codec.DecodeVector(entry.Value)
		if !ok {
			continue
		}
		if queryMag == 0 || storedMag == 0 {
			continue
		}
		n := len(query)
		if len(vec) < n {
			n = len(vec)
		}
		var dot float32
		for i := 0; i < n; i++ {
			dot += query[i] * vec[i]
		}
		score := dot / (queryMag * storedMag)
		all = append(all, sstable.ScoredKey{Key: append([]byte(nil), entry.Key...), Score: score})
	}

	sort.Slice(all, func(i, j int) bool { return all[i].Score > all[j].Score })
	if len(all) > k {
		all = all[:k]
	}
	return all
}

// runCompaction performs §4.8 Compaction. It must be invoked only while
// e.compacting is held (set by the caller via CompareAndSwap).
//
// Per §5, compaction runs concurrently with writes and flush: it merges
// only the segments in its own snapshot (taken before compaction.Run, with
// no lock held while the merge does its I/O) and swaps in the compacted
// reader in place of exactly those segments, preserving any segment a
// concurrent flush appended in the meantime. Only the snapshotted readers'
// files are closed and deleted — a segment flushed mid-compaction is never
// part of the merge input and must survive the swap untouched.
func (e *Engine) runCompaction() {
	defer e.compacting.Store(false)

	snapshot := e.snapshotSegments()
	if len(snapshot) < 2 {
		return
	}
	e.compactSnapshot(snapshot)
}

// compactSnapshot merges exactly the readers in snapshot and swaps the
// result in for them, leaving any segment appended to e.segments after
// snapshot was taken untouched. Split out of runCompaction so the
// swap-only-the-snapshot behavior can be exercised directly against a
// deliberately stale snapshot in tests, without racing real goroutines.
func (e *Engine) compactSnapshot(snapshot []*sstable.Reader) {
	timestampNanos := compactionTimestamp()
	path, err := compaction.Run(e.dataDir, snapshot, timestampNanos, e.opts, e.log)
	if err != nil {
		e.log.Errorw("compaction failed, segments remain unchanged", "error", err)
		return
	}

	reader, err := sstable.Open(path, e.opts.SparseIndexSampleRate)
	if err != nil {
		e.log.Errorw("compaction produced an unreadable segment", "error", err, "path", path)
		return
	}

	e.writerMu.Lock()
	e.segmentsMu.Lock()
	current := e.segments
	tail, ok := segmentsAfter(current, snapshot)
	if !ok {
		e.segmentsMu.Unlock()
		e.writerMu.Unlock()
		e.log.Errorw("aborting compaction swap: segment set changed unexpectedly since snapshot",
			"snapshotCount", len(snapshot), "currentCount", len(current))
		return
	}
	e.segments = append([]*sstable.Reader{reader}, tail...)
	names := e.segmentNamesLocked()
	e.segmentsMu.Unlock()

	manifestErr := seginfo.WriteManifest(e.dataDir, names)
	e.writerMu.Unlock()

	if manifestErr != nil {
		e.log.Errorw("failed to advance manifest after compaction", "error", manifestErr)
		return
	}

	var cleanupErr error
	for _, r := range snapshot {
		oldPath := r.Path()
		if err := r.Close(); err != nil {
			cleanupErr = multierr.Append(cleanupErr, fmt.Errorf("close %s: %w", oldPath, err))
		}
		if err := filesys.DeleteFile(oldPath); err != nil {
			cleanupErr = multierr.Append(cleanupErr, fmt.Errorf("delete %s: %w", oldPath, err))
		}
	}
	if cleanupErr != nil {
		e.log.Warnw("errors cleaning up superseded segments", "error", cleanupErr)
	}

	e.metrics.recordCompaction()
	e.log.Infow("compaction complete", "output", path, "merged", len(snapshot), "carriedForward", len(tail))
}

// segmentsAfter returns the suffix of current that was appended after
// snapshot was taken — i.e. current with its snapshot-matching prefix
// removed. Flushes only ever append to e.segments and e.compacting
// serializes compactions, so at swap time current is always snapshot
// followed by zero or more newly flushed segments; ok is false if that
// invariant doesn't hold (current is shorter than snapshot, or its prefix
// doesn't match reader-for-reader), and the caller must abort the swap
// rather than silently dropping segments it didn't account for.
func segmentsAfter(current, snapshot []*sstable.Reader) (tail []*sstable.Reader, ok bool) {
	if len(current) < len(snapshot) {
		return nil, false
	}
	for i, r := range snapshot {
		if current[i] != r {
			return nil, false
		}
	}
	return current[len(snapshot):], true
}

// compactionTimestamp is the sole source of wall-clock time in the engine,
// isolated here so callers that need determinism (tests) can shadow it.
var compactionTimestamp = func() int64 {
	return nowNanos()
}

// DataDir returns the directory this engine's segments and WAL live in.
func (e *Engine) DataDir() string { return e.dataDir }

// SegmentCount returns the number of active segments in the Segment Set.
func (e *Engine) SegmentCount() int {
	e.segmentsMu.RLock()
	defer e.segmentsMu.RUnlock()
	return len(e.segments)
}
