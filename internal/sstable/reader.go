package sstable

import (
	"os"
	"sync/atomic"

	"github.com/koredb/kore/internal/bloom"
	"github.com/koredb/kore/internal/codec"
	koreErrors "github.com/koredb/kore/pkg/errors"
	"golang.org/x/sys/unix"
)

// sample is one entry of the sparse in-memory index: a sampled key and the
// byte offset, within the data section, where its record begins.
type sample struct {
	key    []byte
	offset int
}

// Reader is a memory-mapped, read-only view of one segment file. Every
// lookup/scan operation starts from an independent cursor so concurrent
// callers never interfere with each other.
type Reader struct {
	path       string
	data       []byte // memory-mapped file contents
	dataEnd    int    // end of the data section == bloom filter start
	filter     *bloom.Filter
	sparse     []sample
	sampleRate int

	// bloomChecks/bloomFalsePositives track MaybeContains's accuracy on this
	// segment: a false positive is a MaybeContains hit whose scan comes up
	// empty. Fed into internal/engine's metrics summary on Close.
	bloomChecks         atomic.Int64
	bloomFalsePositives atomic.Int64
}

// Open memory-maps path, verifies its footer, loads its bloom filter, and
// builds a sparse index by sampling every sampleRate-th key in the data
// section. A segment that fails footer verification is reported as an error
// so the caller (LSM Engine.Open) can exclude it from the Segment Set.
func Open(path string, sampleRate int) (*Reader, error) {
	if sampleRate <= 0 {
		sampleRate = 128
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, koreErrors.NewStorageError(err, koreErrors.ErrorCodeIO, "failed to open segment").WithPath(path)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, koreErrors.NewStorageError(err, koreErrors.ErrorCodeIO, "failed to stat segment").WithPath(path)
	}
	size := int(info.Size())
	if size < FooterSize {
		return nil, koreErrors.NewCorruptSegmentError(path, nil)
	}

	data, err := unix.Mmap(int(f.Fd()), 0, size, unix.PROT_READ, unix.MAP_SHARED)
	if err != nil {
		return nil, koreErrors.NewStorageError(err, koreErrors.ErrorCodeIO, "failed to mmap segment").WithPath(path)
	}

	footer, ok := DecodeFooter(data[size-FooterSize:])
	if !ok || footer.Magic != Magic {
		unix.Munmap(data)
		return nil, koreErrors.NewCorruptSegmentError(path, nil)
	}
	if footer.Version != Version {
		unix.Munmap(data)
		return nil, koreErrors.NewUnsupportedVersionError(path, footer.Version)
	}

	filterBytes := data[footer.BloomOffset : size-FooterSize]
	filter, err := bloom.Decode(filterBytes)
	if err != nil {
		unix.Munmap(data)
		return nil, koreErrors.NewCorruptSegmentError(path, err)
	}

	r := &Reader{
		path:       path,
		data:       data,
		dataEnd:    int(footer.BloomOffset),
		filter:     filter,
		sampleRate: sampleRate,
	}
	r.buildSparseIndex()
	return r, nil
}

func (r *Reader) buildSparseIndex() {
	off := 0
	i := 0
	for off < r.dataEnd {
		recOff := off
		if off+8 > r.dataEnd {
			break
		}
		keySize := int(codec.Uint32(r.data[off:]))
		valueSize := int(codec.Uint32(r.data[off+4:]))
		keyStart := off + 8
		if keyStart+keySize+valueSize > r.dataEnd {
			break
		}
		if i%r.sampleRate == 0 {
			key := append([]byte(nil), r.data[keyStart:keyStart+keySize]...)
			r.sparse = append(r.sparse, sample{key: key, offset: recOff})
		}
		off = keyStart + keySize + valueSize
		i++
	}
}

// cursorFor returns the data-section byte offset to start scanning from for
// target: the greatest sampled offset whose key is <= target, or 0 if target
// sorts before every sample.
func (r *Reader) cursorFor(target []byte) int {
	lo, hi := 0, len(r.sparse)
	for lo < hi {
		mid := (lo + hi) / 2
		if codec.Compare(r.sparse[mid].key, target) <= 0 {
			lo = mid + 1
		} else {
			hi = mid
		}
	}
	if lo == 0 {
		return 0
	}
	return r.sparse[lo-1].offset
}

// readRecordAt decodes the record starting at off, returning the key, value,
// and the offset just past the record.
func (r *Reader) readRecordAt(off int) (key, value []byte, next int) {
	keySize := int(codec.Uint32(r.data[off:]))
	valueSize := int(codec.Uint32(r.data[off+4:]))
	keyStart := off + 8
	key = r.data[keyStart : keyStart+keySize]
	value = r.data[keyStart+keySize : keyStart+keySize+valueSize]
	next = keyStart + keySize + valueSize
	return key, value, next
}

// Find performs a point lookup: bloom-filter check, then binary search into
// the sparse index, then a linear scan from the resulting cursor.
func (r *Reader) Find(target []byte) (value []byte, found bool) {
	if !r.filter.MaybeContains(target) {
		return nil, false
	}
	r.bloomChecks.Add(1)

	off := r.cursorFor(target)
	for off < r.dataEnd {
		key, value, next := r.readRecordAt(off)
		cmp := codec.Compare(key, target)
		if cmp == 0 {
			return value, true
		}
		if cmp > 0 {
			r.bloomFalsePositives.Add(1)
			return nil, false
		}
		off = next
	}
	r.bloomFalsePositives.Add(1)
	return nil, false
}

// BloomStats returns the count of MaybeContains hits that proceeded to a
// scan, and how many of those scans failed to find the key (a bloom false
// positive).
func (r *Reader) BloomStats() (checks, falsePositives int64) {
	return r.bloomChecks.Load(), r.bloomFalsePositives.Load()
}

// ScanByPrefix calls sink for every (key, value) whose key begins with
// prefix, in ascending order. Allocation only happens for matching records:
// the prefix test itself is performed against the mmap'd bytes directly.
func (r *Reader) ScanByPrefix(prefix []byte, sink func(key, value []byte)) {
	off := r.cursorFor(prefix)
	for off < r.dataEnd {
		key, value, next := r.readRecordAt(off)
		if codec.Compare(key, prefix) < 0 {
			off = next
			continue
		}
		if !codec.HasPrefix(key, prefix) {
			return
		}
		sink(key, value)
		off = next
	}
}

// Close unmaps the segment file. Callers must ensure no concurrent Find/Scan
// call is in flight.
func (r *Reader) Close() error {
	return unix.Munmap(r.data)
}

// Path returns the filesystem path of the underlying segment file.
func (r *Reader) Path() string { return r.path }
