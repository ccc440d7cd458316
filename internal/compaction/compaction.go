// Package compaction implements the k-way merge that folds multiple
// segments into one, newest-wins, dropping tombstones along the way.
package compaction

import (
	"container/heap"

	"github.com/koredb/kore/internal/codec"
	"github.com/koredb/kore/internal/sstable"
	"go.uber.org/zap"
)

// mergeItem is one candidate record in the merge heap: a key/value pulled
// from a particular segment, tagged with that segment's rank (higher rank =
// newer segment, wins ties on equal keys).
type mergeItem struct {
	key, value []byte
	rank       int
	srcIndex   int // index into the cursors slice this item came from
}

type mergeHeap []mergeItem

func (h mergeHeap) Len() int { return len(h) }
func (h mergeHeap) Less(i, j int) bool {
	c := codec.Compare(h[i].key, h[j].key)
	if c != 0 {
		return c < 0
	}
	// Equal keys: the newer (higher-rank) record must surface first so the
	// merge loop's skip-duplicates step keeps it and discards the rest.
	return h[i].rank > h[j].rank
}
func (h mergeHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *mergeHeap) Push(x interface{}) { *h = append(*h, x.(mergeItem)) }
func (h *mergeHeap) Pop() interface{} {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}

// cursor walks one segment's records in ascending key order. Compaction
// needs a full scan rather than a prefix scan, so newCursor runs
// Reader.ScanByPrefix with a nil prefix and copies every record of the
// segment into memory up front.
type cursor struct {
	entries []sstable.Entry
	pos     int
}

func newCursor(r *sstable.Reader) *cursor {
	var entries []sstable.Entry
	r.ScanByPrefix(nil, func(key, value []byte) {
		entries = append(entries, sstable.Entry{
			Key:   append([]byte(nil), key...),
			Value: append([]byte(nil), value...),
		})
	})
	return &cursor{entries: entries}
}

func (c *cursor) next() (key, value []byte, ok bool) {
	if c.pos >= len(c.entries) {
		return nil, nil, false
	}
	e := c.entries[c.pos]
	c.pos++
	return e.Key, e.Value, true
}

// mergeSource is an sstable.Source that performs the k-way merge itself,
// so the merged result is fed to sstable.WriteFile one record at a time
// without building a separate merged copy; each input cursor still holds
// a full in-memory copy of its segment's records.
type mergeSource struct {
	cursors []*cursor
	h       mergeHeap
	log     *zap.SugaredLogger
}

// Merge builds a Source over readers (oldest first, newest last) that
// yields the compacted stream: one record per distinct key, newest segment
// wins, tombstones dropped. readers must be ordered oldest→newest to match
// spec.md's Segment Set convention; rank is derived from position in the
// slice.
func Merge(readers []*sstable.Reader, log *zap.SugaredLogger) sstable.Source {
	cursors := make([]*cursor, len(readers))
	h := make(mergeHeap, 0, len(readers))
	for i, r := range readers {
		cursors[i] = newCursor(r)
		if key, value, ok := cursors[i].next(); ok {
			h = append(h, mergeItem{key: key, value: value, rank: i, srcIndex: i})
		}
	}
	heap.Init(&h)
	return &mergeSource{cursors: cursors, h: h, log: log}
}

// Next implements sstable.Source, yielding compacted (key, value) pairs in
// ascending order with tombstones elided.
func (m *mergeSource) Next() (key, value []byte, ok bool) {
	for m.h.Len() > 0 {
		top := heap.Pop(&m.h).(mergeItem)

		if nk, nv, nok := m.cursors[top.srcIndex].next(); nok {
			heap.Push(&m.h, mergeItem{key: nk, value: nv, rank: top.rank, srcIndex: top.srcIndex})
		}

		// Drain and discard every older duplicate of this key from the heap.
		for m.h.Len() > 0 && codec.Compare(m.h[0].key, top.key) == 0 {
			dup := heap.Pop(&m.h).(mergeItem)
			if nk, nv, nok := m.cursors[dup.srcIndex].next(); nok {
				heap.Push(&m.h, mergeItem{key: nk, value: nv, rank: dup.rank, srcIndex: dup.srcIndex})
			}
		}

		if codec.IsTombstone(top.value) {
			continue
		}
		return top.key, top.value, true
	}
	return nil, nil, false
}
