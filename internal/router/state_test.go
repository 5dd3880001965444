package router

import (
	"math"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"

	"fpgaroute/internal/rrgraph"
)

func TestStateTable_UpdateAndReset(t *testing.T) {
	st := NewStateTable(8, 0, 2)
	for i := 0; i < 8; i++ {
		s := st.Snapshot(rrgraph.NodeID(i))
		assert.False(t, s.Reached())
		assert.Equal(t, rrgraph.NoEdge, s.Prev)
	}

	set := func(n rrgraph.NodeID, worker int, back float32) bool {
		return st.LockedUpdate(n, worker, func(cur NodeState) (NodeState, bool) {
			if back >= cur.Back {
				return cur, false
			}
			return NodeState{Total: back + 1, Back: back, Prev: rrgraph.EdgeID(n), RUpstream: 2}, true
		})
	}

	assert.True(t, set(3, 0, 5))
	assert.True(t, set(3, 1, 4))
	assert.False(t, set(3, 1, 6))
	assert.True(t, set(5, 1, 1))

	assert.Equal(t, float32(4), st.Back(3))
	assert.Equal(t, float32(5), st.Total(3))
	assert.Equal(t, rrgraph.EdgeID(3), st.Prev(3))
	assert.Equal(t, NodeState{Total: 5, Back: 4, Prev: 3, RUpstream: 2}, st.Snapshot(3))
	// a node is listed once, by the worker that first reached it
	assert.Equal(t, 2, st.NumTouched())

	st.Reset()
	assert.Zero(t, st.NumTouched())
	assert.True(t, math.IsInf(float64(st.Total(3)), 1))
	assert.Equal(t, unvisited, st.Snapshot(5))
}

func TestStateTable_ConcurrentMinimum(t *testing.T) {
	for _, stripes := range []int{0, 1, 3} {
		st := NewStateTable(4, stripes, 8)
		var wg sync.WaitGroup
		for w := 0; w < 8; w++ {
			wg.Add(1)
			go func(worker int) {
				defer wg.Done()
				for i := 0; i < 500; i++ {
					back := float32((i*7+worker*13)%997) + 1
					n := rrgraph.NodeID(i % 4)
					st.LockedUpdate(n, worker, func(cur NodeState) (NodeState, bool) {
						if back >= cur.Back {
							return cur, false
						}
						return NodeState{Total: back, Back: back, Prev: rrgraph.EdgeID(worker)}, true
					})
				}
			}(w)
		}
		wg.Wait()

		for n := 0; n < 4; n++ {
			want := float32(math.Inf(1))
			for w := 0; w < 8; w++ {
				for i := n; i < 500; i += 4 {
					want = min(want, float32((i*7+w*13)%997)+1)
				}
			}
			assert.Equal(t, want, st.Back(rrgraph.NodeID(n)), "stripes %d node %d", stripes, n)
		}
		assert.Equal(t, 4, st.NumTouched())
	}
}
