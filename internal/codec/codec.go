// Package codec defines the byte-key ordering and the little-endian wire
// encodings shared by the write-ahead log, the SSTable format, and the
// vector payload layout.
//
// Every on-disk integer is little-endian; every on-disk float is IEEE-754
// binary32 little-endian. Key ordering is unsigned lexicographic over raw
// bytes, independent of any encoding used for the value.
package codec

import (
	"encoding/binary"
	"math"
)

// Compare returns -1, 0, or 1 according to unsigned lexicographic order of a
// and b: bytes are compared as values in [0, 255] over the common prefix,
// and the shorter sequence is smaller when the prefix is equal.
func Compare(a, b []byte) int {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	for i := 0; i < n; i++ {
		if a[i] != b[i] {
			if a[i] < b[i] {
				return -1
			}
			return 1
		}
	}
	switch {
	case len(a) < len(b):
		return -1
	case len(a) > len(b):
		return 1
	default:
		return 0
	}
}

// Less reports whether a sorts strictly before b.
func Less(a, b []byte) bool { return Compare(a, b) < 0 }

// HasPrefix reports whether key begins with prefix, without any allocation.
func HasPrefix(key, prefix []byte) bool {
	if len(key) < len(prefix) {
		return false
	}
	for i := range prefix {
		if key[i] != prefix[i] {
			return false
		}
	}
	return true
}

// PutUint32 appends the little-endian encoding of v to dst.
func PutUint32(dst []byte, v uint32) []byte {
	var buf [4]byte
	binary.LittleEndian.PutUint32(buf[:], v)
	return append(dst, buf[:]...)
}

// PutUint64 appends the little-endian encoding of v to dst.
func PutUint64(dst []byte, v uint64) []byte {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], v)
	return append(dst, buf[:]...)
}

// Uint32 decodes a little-endian uint32 from the first 4 bytes of b.
func Uint32(b []byte) uint32 { return binary.LittleEndian.Uint32(b) }

// Uint64 decodes a little-endian uint64 from the first 8 bytes of b.
func Uint64(b []byte) uint64 { return binary.LittleEndian.Uint64(b) }

// PutFloat32 appends the little-endian IEEE-754 binary32 encoding of v to dst.
func PutFloat32(dst []byte, v float32) []byte {
	return PutUint32(dst, math.Float32bits(v))
}

// Float32 decodes a little-endian IEEE-754 binary32 from the first 4 bytes of b.
func Float32(b []byte) float32 { return math.Float32frombits(Uint32(b)) }

// IsTombstone reports whether value represents a deletion marker, i.e. has
// zero length. A zero-length value is never a legitimate live value.
func IsTombstone(value []byte) bool { return len(value) == 0 }

// Tombstone is the canonical empty-value deletion marker.
var Tombstone = []byte{}
