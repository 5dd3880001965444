package router

import (
	"fmt"
	"strings"
	"sync"
	"sync/atomic"

	"fpgaroute/internal/rrgraph"
)

// =============================================================================
// Priority queue
// =============================================================================

// HeapEntry is one candidate in the search frontier.
type HeapEntry struct {
	Total float32
	Node  rrgraph.NodeID
}

// less orders entries by total cost; node id breaks ties so a single
// worker pops in a reproducible order.
func (e HeapEntry) less(o HeapEntry) bool {
	if e.Total != o.Total {
		return e.Total < o.Total
	}
	return e.Node < o.Node
}

// PriorityQueue is the frontier shared by the search workers.
//
// TryPop blocks while the queue is empty but other popped entries are still
// being expanded, and returns false once the queue is empty and every
// popped entry has been marked Done. Every successful TryPop must be
// followed by exactly one Done after the entry's successors are pushed.
type PriorityQueue interface {
	// Push adds an entry, keeping heap order.
	Push(e HeapEntry)
	// PushUnordered appends an entry; Build must be called before popping.
	PushUnordered(e HeapEntry)
	// Build restores heap order after PushUnordered.
	Build()
	TryPop() (HeapEntry, bool)
	Done()
	Empty() bool
	// Reset drops every entry and zeroes the counters.
	Reset()
	// Counts returns pushes and pops since the last Reset.
	Counts() (pushes, pops uint64)
}

// QueueKind selects a PriorityQueue implementation.
type QueueKind int

const (
	QueueBinary QueueKind = iota
	QueueFourAry
	QueueMulti
)

func (k QueueKind) String() string {
	switch k {
	case QueueBinary:
		return "binary"
	case QueueFourAry:
		return "four_ary"
	case QueueMulti:
		return "multi_queue"
	default:
		return fmt.Sprintf("QueueKind(%d)", int(k))
	}
}

// ParseQueueKind parses the names produced by QueueKind.String.
func ParseQueueKind(s string) (QueueKind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "binary":
		return QueueBinary, nil
	case "four_ary", "4ary":
		return QueueFourAry, nil
	case "multi_queue", "multiqueue":
		return QueueMulti, nil
	default:
		return 0, fmt.Errorf("unknown queue kind %q", s)
	}
}

// newQueue builds the queue selected by kind for the given worker count.
func newQueue(kind QueueKind, workers, queuesPerThread int) PriorityQueue {
	switch kind {
	case QueueFourAry:
		return NewConcurrentHeap(4)
	case QueueMulti:
		return NewMultiQueue(max(1, workers*queuesPerThread))
	default:
		return NewConcurrentHeap(2)
	}
}

// =============================================================================
// d-ary heap
// =============================================================================

// dheap is an unsynchronized d-ary min-heap of entries.
type dheap struct {
	arity int
	items []HeapEntry
}

func (h *dheap) push(e HeapEntry) {
	h.items = append(h.items, e)
	h.up(len(h.items) - 1)
}

func (h *dheap) pop() HeapEntry {
	top := h.items[0]
	last := len(h.items) - 1
	h.items[0] = h.items[last]
	h.items = h.items[:last]
	if last > 0 {
		h.down(0)
	}
	return top
}

func (h *dheap) build() {
	if len(h.items) < 2 {
		return
	}
	for i := (len(h.items) - 2) / h.arity; i >= 0; i-- {
		h.down(i)
	}
}

func (h *dheap) up(i int) {
	for i > 0 {
		parent := (i - 1) / h.arity
		if !h.items[i].less(h.items[parent]) {
			return
		}
		h.items[i], h.items[parent] = h.items[parent], h.items[i]
		i = parent
	}
}

func (h *dheap) down(i int) {
	n := len(h.items)
	for {
		first := i*h.arity + 1
		if first >= n {
			return
		}
		best := first
		for c := first + 1; c < first+h.arity && c < n; c++ {
			if h.items[c].less(h.items[best]) {
				best = c
			}
		}
		if !h.items[best].less(h.items[i]) {
			return
		}
		h.items[i], h.items[best] = h.items[best], h.items[i]
		i = best
	}
}

// =============================================================================
// ConcurrentHeap
// =============================================================================

// ConcurrentHeap is a d-ary heap behind one mutex. It pops in exact order,
// which makes it the reference choice for one or two workers.
type ConcurrentHeap struct {
	mu   sync.Mutex
	cond *sync.Cond
	heap dheap
	// outstanding counts entries pushed but not yet marked Done.
	outstanding int64

	pushes atomic.Uint64
	pops   atomic.Uint64
}

// NewConcurrentHeap creates a heap of the given arity (2 or 4 are typical).
func NewConcurrentHeap(arity int) *ConcurrentHeap {
	q := &ConcurrentHeap{heap: dheap{arity: max(arity, 2)}}
	q.cond = sync.NewCond(&q.mu)
	return q
}

// Push implements PriorityQueue.
func (q *ConcurrentHeap) Push(e HeapEntry) {
	q.mu.Lock()
	q.heap.push(e)
	q.outstanding++
	q.mu.Unlock()
	q.pushes.Add(1)
	q.cond.Signal()
}

// PushUnordered implements PriorityQueue.
func (q *ConcurrentHeap) PushUnordered(e HeapEntry) {
	q.mu.Lock()
	q.heap.items = append(q.heap.items, e)
	q.outstanding++
	q.mu.Unlock()
	q.pushes.Add(1)
}

// Build implements PriorityQueue.
func (q *ConcurrentHeap) Build() {
	q.mu.Lock()
	q.heap.build()
	q.mu.Unlock()
}

// TryPop implements PriorityQueue.
func (q *ConcurrentHeap) TryPop() (HeapEntry, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for len(q.heap.items) == 0 {
		if q.outstanding == 0 {
			return HeapEntry{}, false
		}
		q.cond.Wait()
	}
	q.pops.Add(1)
	return q.heap.pop(), true
}

// Done implements PriorityQueue.
func (q *ConcurrentHeap) Done() {
	q.mu.Lock()
	q.outstanding--
	drained := q.outstanding == 0
	q.mu.Unlock()
	if drained {
		q.cond.Broadcast()
	}
}

// Empty implements PriorityQueue.
func (q *ConcurrentHeap) Empty() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.heap.items) == 0
}

// Len returns the number of queued entries.
func (q *ConcurrentHeap) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.heap.items)
}

// Reset implements PriorityQueue.
func (q *ConcurrentHeap) Reset() {
	q.mu.Lock()
	q.heap.items = q.heap.items[:0]
	q.outstanding = 0
	q.mu.Unlock()
	q.pushes.Store(0)
	q.pops.Store(0)
}

// Counts implements PriorityQueue.
func (q *ConcurrentHeap) Counts() (uint64, uint64) {
	return q.pushes.Load(), q.pops.Load()
}
