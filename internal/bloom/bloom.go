// Package bloom implements a serializable bloom filter over a segment's
// keys. The bit array and hash-function count are fixed per filter and
// written alongside an SSTable's data section so a reader can load the exact
// filter a writer built, without recomputing it.
//
// The shape mirrors the hash-functions-plus-bit-array structure used across
// the LSM family for membership filters, generalized here to double hashing
// over a single polynomial base hash rather than one function per k, so
// serialization only needs to persist two seeds' worth of state: none, since
// both derived hashes come from the same base.
package bloom

import "github.com/koredb/kore/internal/codec"

// Filter is a fixed-size bloom filter with m bits and k hash functions,
// derived by double hashing from one polynomial base hash.
type Filter struct {
	m    uint32
	k    uint32
	bits []byte // ceil(m/8) bytes
}

// New allocates an empty Filter with m bits and k hash functions.
func New(m, k uint32) *Filter {
	if m == 0 {
		m = 1
	}
	if k == 0 {
		k = 1
	}
	return &Filter{m: m, k: k, bits: make([]byte, (m+7)/8)}
}

// polynomialHash is the base hash double hashing derives both probe
// positions from: a simple rolling polynomial hash over the key bytes.
func polynomialHash(key []byte) (h1, h2 uint32) {
	var a, b uint32 = 2166136261, 16777619 // FNV-ish seeds, distinct primes
	for _, c := range key {
		a = a*31 + uint32(c)
		b = b*37 + uint32(c)
	}
	return a, b
}

func (f *Filter) positions(key []byte) []uint32 {
	h1, h2 := polynomialHash(key)
	out := make([]uint32, f.k)
	for i := uint32(0); i < f.k; i++ {
		// Kirsch-Mitzenmacher double hashing: g_i(x) = h1(x) + i*h2(x) mod m.
		out[i] = (h1 + i*h2) % f.m
	}
	return out
}

// Add records key's membership.
func (f *Filter) Add(key []byte) {
	for _, pos := range f.positions(key) {
		f.bits[pos/8] |= 1 << (pos % 8)
	}
}

// MaybeContains reports whether key may be present. False means definitely
// absent; true means possibly present (subject to the filter's false
// positive rate).
func (f *Filter) MaybeContains(key []byte) bool {
	for _, pos := range f.positions(key) {
		if f.bits[pos/8]&(1<<(pos%8)) == 0 {
			return false
		}
	}
	return true
}

// Encode serializes the filter as {m:u32, k:u32, bits}.
func (f *Filter) Encode() []byte {
	out := make([]byte, 0, 8+len(f.bits))
	out = codec.PutUint32(out, f.m)
	out = codec.PutUint32(out, f.k)
	out = append(out, f.bits...)
	return out
}

// Decode parses a filter previously produced by Encode.
func Decode(b []byte) (*Filter, error) {
	if len(b) < 8 {
		return nil, errShortBuffer
	}
	m := codec.Uint32(b[0:4])
	k := codec.Uint32(b[4:8])
	want := int((m + 7) / 8)
	rest := b[8:]
	if len(rest) < want {
		return nil, errShortBuffer
	}
	bits := make([]byte, want)
	copy(bits, rest[:want])
	return &Filter{m: m, k: k, bits: bits}, nil
}

// EncodedSize returns the number of bytes Encode will produce.
func (f *Filter) EncodedSize() int { return 8 + len(f.bits) }
