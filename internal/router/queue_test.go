package router

import (
	"math/rand/v2"
	"sort"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fpgaroute/internal/rrgraph"
)

func TestDHeap_PopsInOrder(t *testing.T) {
	for _, arity := range []int{2, 4} {
		h := dheap{arity: arity}
		rng := rand.New(rand.NewPCG(1, uint64(arity)))
		var want []HeapEntry
		for i := 0; i < 500; i++ {
			e := HeapEntry{Total: float32(rng.IntN(50)), Node: rrgraph.NodeID(i)}
			want = append(want, e)
			if i%2 == 0 {
				h.push(e)
			} else {
				h.items = append(h.items, e)
			}
		}
		h.build()
		sort.Slice(want, func(i, j int) bool { return want[i].less(want[j]) })

		var got []HeapEntry
		for len(h.items) > 0 {
			got = append(got, h.pop())
		}
		assert.Equal(t, want, got, "arity %d", arity)
	}
}

func TestConcurrentHeap_Sequential(t *testing.T) {
	q := NewConcurrentHeap(2)
	assert.True(t, q.Empty())

	q.PushUnordered(HeapEntry{Total: 3, Node: 1})
	q.PushUnordered(HeapEntry{Total: 1, Node: 7})
	q.PushUnordered(HeapEntry{Total: 1, Node: 2})
	q.Build()
	q.Push(HeapEntry{Total: 2, Node: 5})
	assert.Equal(t, 4, q.Len())

	var order []rrgraph.NodeID
	for {
		e, ok := q.TryPop()
		if !ok {
			break
		}
		order = append(order, e.Node)
		q.Done()
	}
	// equal totals pop by node id
	assert.Equal(t, []rrgraph.NodeID{2, 7, 5, 1}, order)

	pushes, pops := q.Counts()
	assert.Equal(t, uint64(4), pushes)
	assert.Equal(t, uint64(4), pops)

	q.Reset()
	pushes, pops = q.Counts()
	assert.Zero(t, pushes)
	assert.Zero(t, pops)
	assert.True(t, q.Empty())
}

// drainTree makes workers expand an implicit binary tree of n nodes through
// q: popping node i pushes 2i+1 and 2i+2. Every node must be popped exactly
// once and every worker must return.
func drainTree(t *testing.T, q PriorityQueue, workers, n int) {
	t.Helper()
	q.PushUnordered(HeapEntry{Total: 0, Node: 0})
	q.Build()

	seen := make([]atomic.Int32, n)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				e, ok := q.TryPop()
				if !ok {
					return
				}
				seen[e.Node].Add(1)
				for _, c := range []int{2*int(e.Node) + 1, 2*int(e.Node) + 2} {
					if c < n {
						q.Push(HeapEntry{Total: float32(c % 17), Node: rrgraph.NodeID(c)})
					}
				}
				q.Done()
			}
		}()
	}
	wg.Wait()

	for i := range seen {
		require.Equal(t, int32(1), seen[i].Load(), "node %d", i)
	}
	pushes, pops := q.Counts()
	assert.Equal(t, uint64(n), pushes)
	assert.Equal(t, uint64(n), pops)
	assert.True(t, q.Empty())
}

func TestQueues_ConcurrentDrain(t *testing.T) {
	tests := []struct {
		name    string
		queue   func() PriorityQueue
		workers int
	}{
		{"binary_1", func() PriorityQueue { return NewConcurrentHeap(2) }, 1},
		{"binary_8", func() PriorityQueue { return NewConcurrentHeap(2) }, 8},
		{"four_ary_8", func() PriorityQueue { return NewConcurrentHeap(4) }, 8},
		{"multi_queue_1", func() PriorityQueue { return NewMultiQueue(2) }, 1},
		{"multi_queue_8", func() PriorityQueue { return NewMultiQueue(16) }, 8},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := tt.queue()
			drainTree(t, q, tt.workers, 5000)

			// a reset queue can be reused
			q.Reset()
			drainTree(t, q, tt.workers, 300)
		})
	}
}

func TestMultiQueue_SeedsAreDealtRoundRobin(t *testing.T) {
	q := NewMultiQueue(3)
	for i := 0; i < 7; i++ {
		q.PushUnordered(HeapEntry{Total: float32(i), Node: rrgraph.NodeID(i)})
	}
	q.Build()
	assert.Len(t, q.queues[0].heap.items, 3)
	assert.Len(t, q.queues[1].heap.items, 2)
	assert.Len(t, q.queues[2].heap.items, 2)
	assert.Equal(t, float32(0), q.queues[0].topTotal())
	assert.Equal(t, float32(1), q.queues[1].topTotal())
	assert.False(t, q.Empty())

	q.Reset()
	assert.True(t, q.Empty())
	_, ok := q.TryPop()
	assert.False(t, ok)
}

func TestParseQueueKind(t *testing.T) {
	tests := []struct {
		in   string
		want QueueKind
	}{
		{"", QueueBinary},
		{"binary", QueueBinary},
		{"four_ary", QueueFourAry},
		{"4ary", QueueFourAry},
		{"multi_queue", QueueMulti},
		{"MultiQueue", QueueMulti},
	}
	for _, tt := range tests {
		got, err := ParseQueueKind(tt.in)
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
		assert.Equal(t, got, must(ParseQueueKind(got.String())))
	}
	_, err := ParseQueueKind("fibonacci")
	assert.Error(t, err)
}

func TestNewQueue(t *testing.T) {
	assert.IsType(t, &ConcurrentHeap{}, newQueue(QueueBinary, 4, 2))
	assert.Equal(t, 4, newQueue(QueueFourAry, 4, 2).(*ConcurrentHeap).heap.arity)
	mq := newQueue(QueueMulti, 4, 3).(*MultiQueue)
	assert.Len(t, mq.queues, 12)
}

func must[T any](v T, err error) T {
	if err != nil {
		panic(err)
	}
	return v
}
