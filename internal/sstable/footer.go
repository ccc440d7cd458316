// Package sstable implements the immutable on-disk segment format: a data
// section of ascending (key,value) records, a bloom filter section, and a
// fixed 16-byte footer. Segments are produced in one pass by the writer
// (flush or compaction) and consumed by a memory-mapped reader that never
// mutates the file.
package sstable

import "github.com/koredb/kore/internal/codec"

// FooterSize is the exact size, in bytes, of the trailing footer: the format
// fixes 16 bytes with an explicit version field (see SPEC_FULL.md open
// questions; some LSM lineages use a 12-byte footer, this one never does).
const FooterSize = 16

// Magic identifies a valid kore segment file. It spells "KORE" in ASCII.
const Magic uint32 = 0x4B4F5245

// Version is the only footer version this reader accepts.
const Version uint32 = 1

// Footer is the fixed trailer written at the end of every segment file.
type Footer struct {
	BloomOffset uint64
	Version     uint32
	Magic       uint32
}

// Encode serializes the footer in its fixed 16-byte little-endian layout.
func (f Footer) Encode() []byte {
	out := make([]byte, 0, FooterSize)
	out = codec.PutUint64(out, f.BloomOffset)
	out = codec.PutUint32(out, f.Version)
	out = codec.PutUint32(out, f.Magic)
	return out
}

// DecodeFooter parses the last FooterSize bytes of a segment file.
func DecodeFooter(b []byte) (Footer, bool) {
	if len(b) != FooterSize {
		return Footer{}, false
	}
	f := Footer{
		BloomOffset: codec.Uint64(b[0:8]),
		Version:     codec.Uint32(b[8:12]),
		Magic:       codec.Uint32(b[12:16]),
	}
	return f, true
}

// Verify reports whether the footer has the expected magic and version.
func (f Footer) Verify() bool {
	return f.Magic == Magic && f.Version == Version
}
