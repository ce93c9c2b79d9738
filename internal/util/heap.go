package util

import "container/heap"

// Candidate is a graph node or flat-index row paired with its distance to
// whatever query is currently being evaluated. It is the common currency
// passed between the flat and HNSW search paths and the neighbor-selection
// logic in the hnsw package.
type Candidate struct {
	ID       uint32
	Distance float32
}

// MaxHeap is a bounded max-heap over Candidate.Distance: once it holds
// maxSize candidates, PushCandidate only admits a new one by evicting the
// current worst (the one with the largest distance), so the heap always
// holds the maxSize closest candidates seen so far. Both the flat index's
// top-k scan and HNSW's beam search keep a "closest so far" set this way;
// giving the heap itself the bound keeps that invariant in one place
// instead of duplicated at every call site.
type MaxHeap struct {
	candidates []*Candidate
	maxSize    int
}

// NewMaxHeap creates a max-heap bounded to maxSize candidates. maxSize <= 0
// means unbounded.
func NewMaxHeap(maxSize int) *MaxHeap {
	cap := maxSize
	if cap < 0 {
		cap = 0
	}
	return &MaxHeap{
		candidates: make([]*Candidate, 0, cap),
		maxSize:    maxSize,
	}
}

func (h *MaxHeap) Len() int { return len(h.candidates) }

func (h *MaxHeap) Less(i, j int) bool {
	return h.candidates[i].Distance > h.candidates[j].Distance // root is the largest distance
}

func (h *MaxHeap) Swap(i, j int) {
	h.candidates[i], h.candidates[j] = h.candidates[j], h.candidates[i]
}

func (h *MaxHeap) Push(x interface{}) {
	h.candidates = append(h.candidates, x.(*Candidate))
}

func (h *MaxHeap) Pop() interface{} {
	old := h.candidates
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	h.candidates = old[0 : n-1]
	return item
}

// PushCandidate admits c into the heap. Once the heap is at capacity, c is
// admitted only if it beats the current worst candidate, which is then
// evicted; a worse-or-equal c is dropped silently. Returns true if c was
// admitted.
func (h *MaxHeap) PushCandidate(c *Candidate) bool {
	if h.maxSize <= 0 || h.Len() < h.maxSize {
		heap.Push(h, c)
		return true
	}
	if c.Distance >= h.candidates[0].Distance {
		return false
	}
	heap.Pop(h)
	heap.Push(h, c)
	return true
}

// PopCandidate removes and returns the worst (largest-distance) candidate.
func (h *MaxHeap) PopCandidate() *Candidate {
	if h.Len() == 0 {
		return nil
	}
	return heap.Pop(h).(*Candidate)
}

// Top returns the worst candidate without removing it.
func (h *MaxHeap) Top() *Candidate {
	if h.Len() == 0 {
		return nil
	}
	return h.candidates[0]
}

// Sorted drains the heap and returns its contents ordered nearest-first.
// The heap is empty after this call.
func (h *MaxHeap) Sorted() []*Candidate {
	result := make([]*Candidate, h.Len())
	for i := len(result) - 1; i >= 0; i-- {
		result[i] = h.PopCandidate()
	}
	return result
}

// MinHeap is an unbounded min-heap over Candidate.Distance, used as the
// exploration frontier in HNSW's beam search: every node reachable from the
// current frontier must be considered regardless of how it compares to the
// current best set, so (unlike MaxHeap) it is never capacity-bounded - the
// sizeHint argument to NewMinHeap only sizes the initial backing array.
type MinHeap struct {
	candidates []*Candidate
}

// NewMinHeap creates a min-heap with backing capacity sized for
// sizeHint elements.
func NewMinHeap(sizeHint int) *MinHeap {
	if sizeHint < 0 {
		sizeHint = 0
	}
	return &MinHeap{candidates: make([]*Candidate, 0, sizeHint)}
}

func (h *MinHeap) Len() int { return len(h.candidates) }

func (h *MinHeap) Less(i, j int) bool {
	return h.candidates[i].Distance < h.candidates[j].Distance
}

func (h *MinHeap) Swap(i, j int) {
	h.candidates[i], h.candidates[j] = h.candidates[j], h.candidates[i]
}

func (h *MinHeap) Push(x interface{}) {
	h.candidates = append(h.candidates, x.(*Candidate))
}

func (h *MinHeap) Pop() interface{} {
	old := h.candidates
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	h.candidates = old[0 : n-1]
	return item
}

// PushCandidate adds a candidate to the frontier.
func (h *MinHeap) PushCandidate(c *Candidate) {
	heap.Push(h, c)
}

// PopCandidate removes and returns the nearest candidate on the frontier.
func (h *MinHeap) PopCandidate() *Candidate {
	if h.Len() == 0 {
		return nil
	}
	return heap.Pop(h).(*Candidate)
}
