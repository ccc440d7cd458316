package hnsw

import (
	"container/heap"
	"math"
	"sort"

	"github.com/koredb/kore/internal/codec"
)

// ScoredID is one search result: a node id and its cosine similarity to the
// query (higher is closer).
type ScoredID struct {
	ID    string
	Score float32
}

func cosine(a []float32, aMag float32, b []float32, bMag float32) float32 {
	if aMag == 0 || bMag == 0 {
		return 0
	}
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	var dot float32
	for i := 0; i < n; i++ {
		dot += a[i] * b[i]
	}
	return dot / (aMag * bMag)
}

// sampleLevel draws ℓ = floor(-ln(U) * levelMult), U ~ Uniform(0,1].
func (idx *Index) sampleLevel() int {
	idx.rndMu.Lock()
	u := idx.rnd.Float64()
	idx.rndMu.Unlock()
	if u <= 0 {
		u = math.SmallestNonzeroFloat64
	}
	return int(math.Floor(-math.Log(u) * idx.levelMult))
}

// Insert adds vector v under id. The Indexer calls it from its worker
// goroutine and, through Hydrate, from the caller's goroutine; idx.mu
// serializes concurrent calls. Inserting an id that is already indexed
// replaces its node and leaves Size unchanged.
func (idx *Index) Insert(id string, v []float32) {
	mag := codec.Magnitude(v)
	level := idx.sampleLevel()

	idx.mu.Lock()

	if len(idx.nodes) == 0 {
		n := &node{id: id, vector: v, magnitude: mag, level: level, neighbors: newNeighborSets(level)}
		idx.nodes[id] = n
		idCopy := id
		idx.entryNode.Store(&idCopy)
		idx.maxLevel.Store(int32(level))
		idx.mu.Unlock()
		idx.size.Add(1)
		return
	}

	entryPtr := idx.entryNode.Load()
	current := *entryPtr
	maxLevel := int(idx.maxLevel.Load())

	// Greedy descent from maxLevel down to level+1: zoom toward the query
	// one layer at a time, moving only on strict improvement.
	for layer := maxLevel; layer > level; layer-- {
		current = idx.greedyClimb(v, mag, current, layer)
	}

	_, existed := idx.nodes[id]
	newNode := &node{id: id, vector: v, magnitude: mag, level: level, neighbors: newNeighborSets(level)}
	idx.nodes[id] = newNode

	top := level
	if maxLevel < top {
		top = maxLevel
	}
	for layer := top; layer >= 0; layer-- {
		candidates := idx.searchLayerLocked(v, mag, current, idx.efConstruction, layer)
		best := selectTopM(candidates, idx.m)

		for _, c := range best {
			idx.connectLocked(id, c.ID, layer)
			idx.connectLocked(c.ID, id, layer)
			idx.pruneLocked(c.ID, layer)
		}
		if len(best) > 0 {
			current = best[0].ID
		}
	}

	if level > maxLevel {
		idCopy := id
		idx.entryNode.Store(&idCopy)
		idx.maxLevel.Store(int32(level))
	}

	idx.mu.Unlock()
	if !existed {
		idx.size.Add(1)
	}
}

// greedyClimb moves from current to the neighbor (at layer) with strictly
// greater similarity to (v, mag), repeating until no improvement is found.
// Caller must hold idx.mu (read or write).
func (idx *Index) greedyClimb(v []float32, mag float32, current string, layer int) string {
	best := current
	bestScore := idx.scoreOf(v, mag, current)

	for {
		improved := false
		n := idx.nodes[best]
		if n == nil || layer >= len(n.neighbors) {
			break
		}
		for neighborID := range n.neighbors[layer] {
			score := idx.scoreOf(v, mag, neighborID)
			if score > bestScore {
				bestScore = score
				best = neighborID
				improved = true
			}
		}
		if !improved {
			break
		}
	}
	return best
}

func (idx *Index) scoreOf(v []float32, mag float32, id string) float32 {
	n := idx.nodes[id]
	if n == nil {
		return -1
	}
	return cosine(v, mag, n.vector, n.magnitude)
}

// candidate pairs an id with its similarity score, used by both the
// construction-time candidate heap and the final top-k result.
type candidate struct {
	id    string
	score float32
}

// maxHeap orders candidates by score descending (highest similarity first).
type maxHeap []candidate

func (h maxHeap) Len() int            { return len(h) }
func (h maxHeap) Less(i, j int) bool  { return h[i].score > h[j].score }
func (h maxHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *maxHeap) Push(x interface{}) { *h = append(*h, x.(candidate)) }
func (h *maxHeap) Pop() interface{} {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}

// minHeap orders candidates by score ascending, so the worst result sits at
// the top and is cheap to evict once the heap is at capacity ef.
type minHeap []candidate

func (h minHeap) Len() int            { return len(h) }
func (h minHeap) Less(i, j int) bool  { return h[i].score < h[j].score }
func (h minHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *minHeap) Push(x interface{}) { *h = append(*h, x.(candidate)) }
func (h *minHeap) Pop() interface{} {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}

// searchLayerLocked returns up to ef nearest known ids to (v, mag) at layer,
// starting the exploration from entry. Caller must hold idx.mu.
func (idx *Index) searchLayerLocked(v []float32, mag float32, entry string, ef int, layer int) []candidate {
	visited := map[string]struct{}{entry: {}}

	entryScore := idx.scoreOf(v, mag, entry)
	candidates := &maxHeap{{id: entry, score: entryScore}}
	heap.Init(candidates)
	results := &minHeap{{id: entry, score: entryScore}}
	heap.Init(results)

	for candidates.Len() > 0 {
		top := heap.Pop(candidates).(candidate)

		if results.Len() > 0 && top.score < (*results)[0].score && results.Len() >= ef {
			break
		}

		n := idx.nodes[top.id]
		if n == nil || layer >= len(n.neighbors) {
			continue
		}
		for neighborID := range n.neighbors[layer] {
			if _, seen := visited[neighborID]; seen {
				continue
			}
			visited[neighborID] = struct{}{}

			score := idx.scoreOf(v, mag, neighborID)
			if results.Len() < ef || score > (*results)[0].score {
				heap.Push(candidates, candidate{id: neighborID, score: score})
				heap.Push(results, candidate{id: neighborID, score: score})
				if results.Len() > ef {
					heap.Pop(results)
				}
			}
		}
	}

	out := make([]candidate, results.Len())
	for i := len(out) - 1; i >= 0; i-- {
		out[i] = heap.Pop(results).(candidate)
	}
	return out
}

// selectTopM returns the m highest-scoring candidates, sorted descending.
func selectTopM(candidates []candidate, m int) []candidate {
	sortDescending(candidates)
	if len(candidates) > m {
		candidates = candidates[:m]
	}
	return candidates
}

func sortDescending(c []candidate) {
	sort.Slice(c, func(i, j int) bool { return c[i].score > c[j].score })
}

// connectLocked adds a directed edge from -> to at layer. Caller must hold
// idx.mu for write.
func (idx *Index) connectLocked(from, to string, layer int) {
	n := idx.nodes[from]
	if n == nil || layer >= len(n.neighbors) {
		return
	}
	n.neighbors[layer][to] = struct{}{}
}

// pruneLocked trims id's neighbor set at layer back to at most idx.m
// entries, keeping the highest-similarity neighbors. Caller must hold
// idx.mu for write.
func (idx *Index) pruneLocked(id string, layer int) {
	n := idx.nodes[id]
	if n == nil || layer >= len(n.neighbors) || len(n.neighbors[layer]) <= idx.m {
		return
	}

	scored := make([]candidate, 0, len(n.neighbors[layer]))
	for neighborID := range n.neighbors[layer] {
		scored = append(scored, candidate{id: neighborID, score: idx.scoreOf(n.vector, n.magnitude, neighborID)})
	}
	kept := selectTopM(scored, idx.m)

	fresh := make(map[string]struct{}, len(kept))
	for _, c := range kept {
		fresh[c.id] = struct{}{}
	}
	n.neighbors[layer] = fresh
}

// Search returns up to k nearest ids to query by cosine similarity,
// descending. Returns nil if the index is empty.
func (idx *Index) Search(query []float32, k int) []ScoredID {
	if k <= 0 {
		return nil
	}

	idx.mu.RLock()
	defer idx.mu.RUnlock()

	if len(idx.nodes) == 0 {
		return nil
	}

	mag := codec.Magnitude(query)
	entryPtr := idx.entryNode.Load()
	current := *entryPtr
	maxLevel := int(idx.maxLevel.Load())

	for layer := maxLevel; layer >= 1; layer-- {
		current = idx.greedyClimb(query, mag, current, layer)
	}

	ef := idx.efSearch
	if ef < k {
		ef = k
	}
	candidates := idx.searchLayerLocked(query, mag, current, ef, 0)
	sortDescending(candidates)
	if len(candidates) > k {
		candidates = candidates[:k]
	}

	out := make([]ScoredID, len(candidates))
	for i, c := range candidates {
		out[i] = ScoredID{ID: c.id, Score: c.score}
	}
	return out
}

func newNeighborSets(level int) []map[string]struct{} {
	sets := make([]map[string]struct{}, level+1)
	for i := range sets {
		sets[i] = make(map[string]struct{})
	}
	return sets
}
