package router

import (
	"math"
	"sync"
	"sync/atomic"

	"fpgaroute/internal/rrgraph"
)

// =============================================================================
// Per-node routing state
// =============================================================================

// NodeState is the best record known for a node in the current search.
type NodeState struct {
	Total     float32
	Back      float32
	Prev      rrgraph.EdgeID
	RUpstream float32
}

// unvisited is the state of every node outside the touched lists.
var unvisited = NodeState{
	Total:     float32(math.Inf(1)),
	Back:      float32(math.Inf(1)),
	Prev:      rrgraph.NoEdge,
	RUpstream: 0,
}

// Reached reports whether the search found a path into the node.
func (s NodeState) Reached() bool { return !math.IsInf(float64(s.Back), 1) }

// stripe is one lock of the striped lock table, padded to its own cache line.
type stripe struct {
	sync.Mutex
	_ [56]byte
}

// StateTable holds the routing state of every node. Fields are stored as
// atomics so pruning may read them without a lock; every write happens
// under the node's stripe lock through LockedUpdate.
//
// Nodes written during a search are recorded in the writing worker's
// touched list, and Reset restores only those.
type StateTable struct {
	total []atomic.Uint32
	back  []atomic.Uint32
	prev  []atomic.Int32
	rUp   []atomic.Uint32

	stripes []stripe
	touched [][]rrgraph.NodeID
}

// NewStateTable allocates state for numNodes nodes. stripes <= 0 gives
// every node its own lock.
func NewStateTable(numNodes, stripes, workers int) *StateTable {
	if stripes <= 0 || stripes > numNodes {
		stripes = max(numNodes, 1)
	}
	t := &StateTable{
		total:   make([]atomic.Uint32, numNodes),
		back:    make([]atomic.Uint32, numNodes),
		prev:    make([]atomic.Int32, numNodes),
		rUp:     make([]atomic.Uint32, numNodes),
		stripes: make([]stripe, stripes),
		touched: make([][]rrgraph.NodeID, max(workers, 1)),
	}
	for i := 0; i < numNodes; i++ {
		t.store(rrgraph.NodeID(i), unvisited)
	}
	return t
}

func (t *StateTable) lock(n rrgraph.NodeID) *stripe {
	return &t.stripes[int(n)%len(t.stripes)]
}

func (t *StateTable) load(n rrgraph.NodeID) NodeState {
	return NodeState{
		Total:     math.Float32frombits(t.total[n].Load()),
		Back:      math.Float32frombits(t.back[n].Load()),
		Prev:      rrgraph.EdgeID(t.prev[n].Load()),
		RUpstream: math.Float32frombits(t.rUp[n].Load()),
	}
}

func (t *StateTable) store(n rrgraph.NodeID, s NodeState) {
	t.total[n].Store(math.Float32bits(s.Total))
	t.back[n].Store(math.Float32bits(s.Back))
	t.prev[n].Store(int32(s.Prev))
	t.rUp[n].Store(math.Float32bits(s.RUpstream))
}

// Total reads the stored total cost without locking.
func (t *StateTable) Total(n rrgraph.NodeID) float32 {
	return math.Float32frombits(t.total[n].Load())
}

// Back reads the stored backward cost without locking.
func (t *StateTable) Back(n rrgraph.NodeID) float32 {
	return math.Float32frombits(t.back[n].Load())
}

// Prev reads the stored predecessor edge without locking.
func (t *StateTable) Prev(n rrgraph.NodeID) rrgraph.EdgeID {
	return rrgraph.EdgeID(t.prev[n].Load())
}

// Snapshot returns a consistent copy of the node's record.
func (t *StateTable) Snapshot(n rrgraph.NodeID) NodeState {
	l := t.lock(n)
	l.Lock()
	s := t.load(n)
	l.Unlock()
	return s
}

// LockedUpdate runs fn on the node's record under its lock and stores the
// result when fn accepts it. fn must not touch other nodes.
func (t *StateTable) LockedUpdate(n rrgraph.NodeID, worker int, fn func(cur NodeState) (NodeState, bool)) bool {
	l := t.lock(n)
	l.Lock()
	cur := t.load(n)
	next, ok := fn(cur)
	if ok {
		if math.IsInf(float64(cur.Total), 1) {
			t.touched[worker] = append(t.touched[worker], n)
		}
		t.store(n, next)
	}
	l.Unlock()
	return ok
}

// NumTouched returns the number of nodes written since the last Reset.
func (t *StateTable) NumTouched() int {
	total := 0
	for _, list := range t.touched {
		total += len(list)
	}
	return total
}

// Reset restores every touched node to the unvisited state. It must not
// run concurrently with a search.
func (t *StateTable) Reset() {
	for w, list := range t.touched {
		for _, n := range list {
			t.store(n, unvisited)
		}
		t.touched[w] = list[:0]
	}
}
