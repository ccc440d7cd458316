package sstable

import (
	"bufio"
	"os"

	"github.com/koredb/kore/internal/bloom"
	"github.com/koredb/kore/internal/codec"
	"github.com/koredb/kore/pkg/options"
)

// Source yields ascending (key, value) pairs to be written. SliceSource
// (used for MemTable flushes) and the compactor's merge source both
// satisfy this shape.
type Source interface {
	// Next returns the next entry in ascending key order, or ok=false when
	// exhausted.
	Next() (key, value []byte, ok bool)
}

// WriteFile writes every record Source yields to a new segment file at path:
// the data section first, then a bloom filter built over every key seen,
// then the fixed footer. The file is forced to device and closed before
// returning.
func WriteFile(path string, src Source, opts *options.Options) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}

	w := bufio.NewWriter(f)
	var offset uint64

	var bits, hashes uint32 = options.DefaultBloomBits, options.DefaultBloomHashCount
	if opts != nil && opts.BloomOptions != nil {
		bits = opts.BloomOptions.Bits
		hashes = opts.BloomOptions.HashCount
	}
	filter := bloom.New(bits, hashes)

	for {
		key, value, ok := src.Next()
		if !ok {
			break
		}
		rec := make([]byte, 0, 8+len(key)+len(value))
		rec = codec.PutUint32(rec, uint32(len(key)))
		rec = codec.PutUint32(rec, uint32(len(value)))
		rec = append(rec, key...)
		rec = append(rec, value...)

		n, err := w.Write(rec)
		if err != nil {
			f.Close()
			return err
		}
		offset += uint64(n)
		filter.Add(key)
	}

	bloomOffset := offset
	if _, err := w.Write(filter.Encode()); err != nil {
		f.Close()
		return err
	}

	footer := Footer{BloomOffset: bloomOffset, Version: Version, Magic: Magic}
	if _, err := w.Write(footer.Encode()); err != nil {
		f.Close()
		return err
	}

	if err := w.Flush(); err != nil {
		f.Close()
		return err
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// SliceSource adapts an in-memory ascending slice of entries to Source, used
// by both the MemTable flush path and tests.
type SliceSource struct {
	entries []Entry
	pos     int
}

// Entry is a single key/value pair.
type Entry struct {
	Key, Value []byte
}

// NewSliceSource wraps entries, which must already be in ascending key order.
func NewSliceSource(entries []Entry) *SliceSource {
	return &SliceSource{entries: entries}
}

// Next implements Source.
func (s *SliceSource) Next() (key, value []byte, ok bool) {
	if s.pos >= len(s.entries) {
		return nil, nil, false
	}
	e := s.entries[s.pos]
	s.pos++
	return e.Key, e.Value, true
}
