package wal

import (
	"hash/crc32"
	"io"
	"os"

	"github.com/koredb/kore/internal/codec"
)

// Sink receives each fully-committed batch during replay, in the order
// those batches were written.
type Sink func(batch []Record)

// Replay reads the WAL file at path from offset 0, accumulating PUT records
// into a pending batch; on COMMIT it hands the batch to sink and clears it.
// On any framing or CRC failure, a field exceeding maxFieldSize, truncated
// data, or an unknown tag, replay stops without invoking sink for the
// incomplete batch — every batch already handed to sink before the stop
// remains valid.
func Replay(path string, sink Sink) error {
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return err
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return err
	}

	off := 0
	var pending []Record

	readU32 := func() (uint32, bool) {
		if off+4 > len(data) {
			return 0, false
		}
		v := codec.Uint32(data[off:])
		off += 4
		return v, true
	}
	readU64 := func() (uint64, bool) {
		if off+8 > len(data) {
			return 0, false
		}
		v := codec.Uint64(data[off:])
		off += 8
		return v, true
	}

	for off < len(data) {
		tag, ok := readU32()
		if !ok {
			return nil // truncated tag: stop, nothing more to discard
		}

		switch tag {
		case tagBegin:
			pending = nil

		case tagPut:
			keySize, ok := readU32()
			if !ok {
				return nil
			}
			valueSize, ok := readU32()
			if !ok {
				return nil
			}
			if keySize > maxFieldSize || valueSize > maxFieldSize {
				return nil
			}
			crc, ok := readU64()
			if !ok {
				return nil
			}
			if off+int(keySize)+int(valueSize) > len(data) {
				return nil // truncated payload
			}
			key := data[off : off+int(keySize)]
			off += int(keySize)
			value := data[off : off+int(valueSize)]
			off += int(valueSize)

			h := crc32.NewIEEE()
			h.Write(key)
			h.Write(value)
			if uint64(h.Sum32()) != crc {
				return nil // CRC mismatch: discard incomplete batch, stop
			}

			keyCopy := append([]byte(nil), key...)
			valueCopy := append([]byte(nil), value...)
			pending = append(pending, Record{Key: keyCopy, Value: valueCopy})

		case tagCommit:
			sink(pending)
			pending = nil

		default:
			return nil // unknown tag: stop
		}
	}

	return nil
}
