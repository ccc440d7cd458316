// Package wal implements kore's write-ahead log: an append-only,
// batch-framed, CRC-protected record log. Every write_batch call is
// serialized into one contiguous frame and appended in a single write; a
// crash mid-batch can leave a partial frame on disk, which replay discards
// as a whole, so a batch is applied either completely or not at all.
//
// The active-file lifecycle (open for append, recover cleanly on restart)
// follows the same shape as the teacher's segment storage: position at the
// end of an existing file on reopen, or create fresh if none exists. What
// differs is the content: this package frames discrete CRC-checked batches
// rather than a raw append-only byte stream.
package wal

import (
	"hash/crc32"
	"io"
	"os"
	"sync"

	"github.com/koredb/kore/internal/codec"
	koreErrors "github.com/koredb/kore/pkg/errors"
	"go.uber.org/zap"
)

const (
	tagBegin  uint32 = 1
	tagPut    uint32 = 2
	tagCommit uint32 = 3

	// maxFieldSize is the safety limit spec requires replay to enforce on
	// key_size/value_size: 50 MB.
	maxFieldSize uint32 = 50 * 1024 * 1024
)

// Record is a single key/value pair within a batch. A zero-length Value is
// a tombstone.
type Record struct {
	Key, Value []byte
}

// WAL is the active write-ahead log file.
type WAL struct {
	mu   sync.Mutex
	file *os.File
	log  *zap.SugaredLogger
}

// Open opens (creating if absent) the WAL file at path for append, and
// positions it at end-of-file for subsequent writes.
func Open(path string, log *zap.SugaredLogger) (*WAL, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR|os.O_APPEND, 0644)
	if err != nil {
		return nil, koreErrors.NewStorageError(err, koreErrors.ErrorCodeIO, "failed to open WAL file").WithPath(path)
	}
	if _, err := f.Seek(0, io.SeekEnd); err != nil {
		f.Close()
		return nil, koreErrors.NewStorageError(err, koreErrors.ErrorCodeIO, "failed to seek WAL to end").WithPath(path)
	}
	return &WAL{file: f, log: log}, nil
}

// frame serializes a batch as
//
//	RECORD_BEGIN
//	  { RECORD_PUT key_size value_size crc32 key value }*
//	RECORD_COMMIT
func frame(batch []Record) []byte {
	buf := make([]byte, 0, 64*len(batch)+8)
	buf = codec.PutUint32(buf, tagBegin)
	for _, r := range batch {
		buf = codec.PutUint32(buf, tagPut)
		buf = codec.PutUint32(buf, uint32(len(r.Key)))
		buf = codec.PutUint32(buf, uint32(len(r.Value)))

		h := crc32.NewIEEE()
		h.Write(r.Key)
		h.Write(r.Value)
		buf = codec.PutUint64(buf, uint64(h.Sum32()))

		buf = append(buf, r.Key...)
		buf = append(buf, r.Value...)
	}
	buf = codec.PutUint32(buf, tagCommit)
	return buf
}

// AppendBatch serializes batch into a single contiguous frame and writes it
// once to the log. If urgent, the write is forced to device before
// returning.
func (w *WAL) AppendBatch(batch []Record, urgent bool) error {
	if len(batch) == 0 {
		return koreErrors.NewValidationError(nil, koreErrors.ErrorCodeInvalidInput, "batch must be non-empty")
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	buf := frame(batch)
	if _, err := w.file.Write(buf); err != nil {
		return koreErrors.NewStorageError(err, koreErrors.ErrorCodeIO, "failed to append WAL batch")
	}
	if urgent {
		if err := w.file.Sync(); err != nil {
			return koreErrors.NewStorageError(err, koreErrors.ErrorCodeIO, "failed to sync WAL")
		}
	}
	return nil
}

// Flush forces buffered writes to device.
func (w *WAL) Flush() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.file.Sync(); err != nil {
		return koreErrors.NewStorageError(err, koreErrors.ErrorCodeIO, "failed to flush WAL")
	}
	return nil
}

// Close closes the underlying file.
func (w *WAL) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.file.Close()
}

// Path returns the filesystem path of the underlying file.
func (w *WAL) Path() string {
	return w.file.Name()
}
