package sstable

import (
	"container/heap"

	"github.com/koredb/kore/internal/codec"
)

// ScoredKey is a single vector search result.
type ScoredKey struct {
	Key   []byte
	Score float32
}

// scoredHeap is a min-heap over Score, used to keep only the top K results
// while scanning.
type scoredHeap []ScoredKey

func (h scoredHeap) Len() int            { return len(h) }
func (h scoredHeap) Less(i, j int) bool  { return h[i].Score < h[j].Score }
func (h scoredHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *scoredHeap) Push(x interface{}) { *h = append(*h, x.(ScoredKey)) }
func (h *scoredHeap) Pop() interface{} {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}

// cosine computes cosine similarity given precomputed magnitudes. Score is 0
// if either magnitude is 0, per spec.
func cosine(query []float32, queryMag float32, stored []float32, storedMag float32) float32 {
	if queryMag == 0 || storedMag == 0 {
		return 0
	}
	n := len(query)
	if len(stored) < n {
		n = len(stored)
	}
	var dot float32
	for i := 0; i < n; i++ {
		dot += query[i] * stored[i]
	}
	return dot / (queryMag * storedMag)
}

// FindTopVectors scans every record whose key begins with prefix, decodes
// each value as {stored_magnitude, floats...}, and returns up to k
// (key, score) pairs sorted by score descending. Tombstones are skipped.
func (r *Reader) FindTopVectors(prefix []byte, query []float32, k int) []ScoredKey {
	if k <= 0 {
		return nil
	}
	queryMag := codec.Magnitude(query)

	h := &scoredHeap{}
	heap.Init(h)

	r.ScanByPrefix(prefix, func(key, value []byte) {
		if codec.IsTombstone(value) {
			return
		}
		storedMag, vec, ok := codec.DecodeVector(value)
		if !ok {
			return
		}
		score := cosine(query, queryMag, vec, storedMag)

		if h.Len() < k {
			keyCopy := append([]byte(nil), key...)
			heap.Push(h, ScoredKey{Key: keyCopy, Score: score})
			return
		}
		if h.Len() > 0 && score > (*h)[0].Score {
			keyCopy := append([]byte(nil), key...)
			heap.Pop(h)
			heap.Push(h, ScoredKey{Key: keyCopy, Score: score})
		}
	})

	out := make([]ScoredKey, h.Len())
	for i := len(out) - 1; i >= 0; i-- {
		out[i] = heap.Pop(h).(ScoredKey)
	}
	return out
}
