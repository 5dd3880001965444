package router

import (
	"math"
	"math/rand/v2"
	"runtime"
	"sync"
	"sync/atomic"
)

// =============================================================================
// MultiQueue
// =============================================================================

// subQueue is one heap of a MultiQueue. top caches the best total cost so
// poppers can compare queues without locking.
type subQueue struct {
	mu   sync.Mutex
	heap dheap
	top  atomic.Uint32
	_    [40]byte
}

func (s *subQueue) refreshTop() {
	if len(s.heap.items) == 0 {
		s.top.Store(math.Float32bits(float32(math.Inf(1))))
		return
	}
	s.top.Store(math.Float32bits(s.heap.items[0].Total))
}

func (s *subQueue) topTotal() float32 {
	return math.Float32frombits(s.top.Load())
}

// MultiQueue spreads the frontier over several heaps. Push goes to a random
// heap; TryPop takes the better top of two random heaps. Pop order is only
// approximately by cost, which the pruning rules tolerate.
type MultiQueue struct {
	queues      []subQueue
	outstanding atomic.Int64
	next        int

	pushes atomic.Uint64
	pops   atomic.Uint64
}

// NewMultiQueue creates a multi-queue with n heaps.
func NewMultiQueue(n int) *MultiQueue {
	q := &MultiQueue{queues: make([]subQueue, max(n, 1))}
	for i := range q.queues {
		q.queues[i].heap.arity = 4
		q.queues[i].refreshTop()
	}
	return q
}

// Push implements PriorityQueue.
func (q *MultiQueue) Push(e HeapEntry) {
	q.outstanding.Add(1)
	s := &q.queues[rand.IntN(len(q.queues))]
	s.mu.Lock()
	s.heap.push(e)
	s.refreshTop()
	s.mu.Unlock()
	q.pushes.Add(1)
}

// PushUnordered implements PriorityQueue. Entries are dealt round-robin so
// seeding is reproducible. It must not run concurrently with other calls.
func (q *MultiQueue) PushUnordered(e HeapEntry) {
	q.outstanding.Add(1)
	s := &q.queues[q.next]
	q.next = (q.next + 1) % len(q.queues)
	s.heap.items = append(s.heap.items, e)
	q.pushes.Add(1)
}

// Build implements PriorityQueue.
func (q *MultiQueue) Build() {
	for i := range q.queues {
		s := &q.queues[i]
		s.mu.Lock()
		s.heap.build()
		s.refreshTop()
		s.mu.Unlock()
	}
}

// TryPop implements PriorityQueue.
func (q *MultiQueue) TryPop() (HeapEntry, bool) {
	for {
		if q.outstanding.Load() == 0 {
			return HeapEntry{}, false
		}
		if e, ok := q.popTwoChoice(); ok {
			q.pops.Add(1)
			return e, true
		}
		if e, ok := q.popAny(); ok {
			q.pops.Add(1)
			return e, true
		}
		runtime.Gosched()
	}
}

func (q *MultiQueue) popTwoChoice() (HeapEntry, bool) {
	i := rand.IntN(len(q.queues))
	j := rand.IntN(len(q.queues))
	if q.queues[j].topTotal() < q.queues[i].topTotal() {
		i = j
	}
	return q.queues[i].tryPop()
}

func (q *MultiQueue) popAny() (HeapEntry, bool) {
	for i := range q.queues {
		if e, ok := q.queues[i].tryPop(); ok {
			return e, true
		}
	}
	return HeapEntry{}, false
}

func (s *subQueue) tryPop() (HeapEntry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.heap.items) == 0 {
		return HeapEntry{}, false
	}
	e := s.heap.pop()
	s.refreshTop()
	return e, true
}

// Done implements PriorityQueue.
func (q *MultiQueue) Done() {
	q.outstanding.Add(-1)
}

// Empty implements PriorityQueue.
func (q *MultiQueue) Empty() bool {
	for i := range q.queues {
		s := &q.queues[i]
		s.mu.Lock()
		n := len(s.heap.items)
		s.mu.Unlock()
		if n > 0 {
			return false
		}
	}
	return true
}

// Reset implements PriorityQueue.
func (q *MultiQueue) Reset() {
	for i := range q.queues {
		s := &q.queues[i]
		s.mu.Lock()
		s.heap.items = s.heap.items[:0]
		s.refreshTop()
		s.mu.Unlock()
	}
	q.next = 0
	q.outstanding.Store(0)
	q.pushes.Store(0)
	q.pops.Store(0)
}

// Counts implements PriorityQueue.
func (q *MultiQueue) Counts() (uint64, uint64) {
	return q.pushes.Load(), q.pops.Load()
}
