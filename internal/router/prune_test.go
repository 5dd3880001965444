package router

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fpgaroute/internal/rrgraph"
)

const pruneTarget rrgraph.NodeID = 9

func newPruner(t *testing.T, mode PruningMode, params CostParams, targetBack float32) *pruner {
	t.Helper()
	st := NewStateTable(10, 0, 1)
	if targetBack >= 0 {
		ok := st.LockedUpdate(pruneTarget, 0, func(NodeState) (NodeState, bool) {
			return NodeState{Total: targetBack, Back: targetBack, Prev: 3}, true
		})
		require.True(t, ok)
	}
	return &pruner{mode: mode, params: params, target: pruneTarget, state: st}
}

func TestPreferredEdge(t *testing.T) {
	tests := []struct {
		name               string
		candidate, current rrgraph.EdgeID
		want               bool
	}{
		{"same_edge", 4, 4, false},
		{"seeded_record_kept", 4, rrgraph.NoEdge, false},
		{"both_seeded", rrgraph.NoEdge, rrgraph.NoEdge, false},
		{"seed_replaces_edge", rrgraph.NoEdge, 4, true},
		{"lower_edge_wins", 2, 4, true},
		{"higher_edge_loses", 6, 4, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, preferredEdge(tt.candidate, tt.current))
		})
	}
}

func TestPruner_PostTarget(t *testing.T) {
	params := CostParams{AstarFac: 2, PostTargetPruneFac: 1}
	p := newPruner(t, PruneDeterministic, params, 10)

	// expected = (14-8)/2 = 3 -> 11 > 10
	assert.True(t, p.postTarget(14, 8))
	// expected = 2 -> 10, equality is kept
	assert.False(t, p.postTarget(12, 8))

	// the offset and factor shrink the estimate
	p.params.PostTargetPruneOffset = 1
	assert.False(t, p.postTarget(14, 8))
	p.params.PostTargetPruneOffset = 0
	p.params.PostTargetPruneFac = 0
	assert.False(t, p.postTarget(100, 10))
	assert.True(t, p.postTarget(100, 10.5))

	// without a lookahead factor the estimate is taken as is
	p = newPruner(t, PruneDeterministic, CostParams{PostTargetPruneFac: 1}, 10)
	assert.True(t, p.postTarget(10.5, 10))

	// nothing is pruned before the target is reached
	p = newPruner(t, PruneDeterministic, params, -1)
	assert.False(t, p.postTarget(1e30, 1e29))
}

func TestPruner_RejectAgainst(t *testing.T) {
	best := NodeState{Total: 5, Back: 5, Prev: 4}
	n := rrgraph.NodeID(1)

	det := newPruner(t, PruneDeterministic, CostParams{PostTargetPruneFac: 1}, -1)
	assert.True(t, det.rejectAgainst(best, n, 6, 6, 2), "worse back")
	assert.False(t, det.rejectAgainst(best, n, 4, 4, 9), "better back")
	assert.False(t, det.rejectAgainst(best, n, 5, 5, 2), "tie, lower edge")
	assert.True(t, det.rejectAgainst(best, n, 5, 5, 6), "tie, higher edge")
	assert.True(t, det.rejectAgainst(best, n, 5, 5, 4), "tie, same edge")
	assert.False(t, det.rejectAgainst(unvisited, n, 1e30, 1e30, 0), "unvisited")

	relaxed := newPruner(t, PruneRelaxed, CostParams{PostTargetPruneFac: 1}, -1)
	assert.True(t, relaxed.rejectAgainst(best, n, 5, 5, 2), "relaxed rejects every tie")
	assert.False(t, relaxed.rejectAgainst(best, n, 4, 4, 9))

	// candidates that cannot beat the target are rejected, except for the target itself
	reached := newPruner(t, PruneDeterministic, CostParams{PostTargetPruneFac: 1}, 3)
	assert.True(t, reached.rejectAgainst(unvisited, n, 4, 4, 0))
	assert.False(t, reached.rejectAgainst(NodeState{Back: 3.5, Prev: 3}, pruneTarget, 3.2, 3.2, 0))
}

func TestPruner_Reject(t *testing.T) {
	p := newPruner(t, PruneDeterministic, CostParams{PostTargetPruneFac: 1}, -1)
	n := rrgraph.NodeID(2)
	p.state.LockedUpdate(n, 0, func(NodeState) (NodeState, bool) {
		return NodeState{Total: 5, Back: 5, Prev: 4}, true
	})
	assert.True(t, p.reject(n, 5, 5, 7))
	assert.False(t, p.reject(n, 5, 5, 1))
	assert.False(t, p.reject(n, 4, 4, 7))
}

func TestPruner_SkipStalePop(t *testing.T) {
	n := rrgraph.NodeID(2)
	setup := func(mode PruningMode) *pruner {
		p := newPruner(t, mode, CostParams{PostTargetPruneFac: 1}, -1)
		p.state.LockedUpdate(n, 0, func(NodeState) (NodeState, bool) {
			return NodeState{Total: 5, Back: 5, Prev: 4}, true
		})
		return p
	}

	det := setup(PruneDeterministic)
	assert.False(t, det.skipStalePop(n, 5, 5))
	assert.True(t, det.skipStalePop(n, 6, 5))
	assert.True(t, det.skipStalePop(n, 4, 5))

	relaxed := setup(PruneRelaxed)
	assert.False(t, relaxed.skipStalePop(n, 5, 5))
	assert.True(t, relaxed.skipStalePop(n, 6, 5))
	assert.False(t, relaxed.skipStalePop(n, 4, 5))

	// a current entry is still dropped once it cannot beat the target
	reached := newPruner(t, PruneDeterministic, CostParams{PostTargetPruneFac: 1}, 4)
	reached.state.LockedUpdate(n, 0, func(NodeState) (NodeState, bool) {
		return NodeState{Total: 5, Back: 5, Prev: 4}, true
	})
	assert.True(t, reached.skipStalePop(n, 5, 5))
}

func TestParsePruningMode(t *testing.T) {
	for _, s := range []string{"", "deterministic", "Deterministic"} {
		m, err := ParsePruningMode(s)
		require.NoError(t, err)
		assert.Equal(t, PruneDeterministic, m)
	}
	m, err := ParsePruningMode("relaxed")
	require.NoError(t, err)
	assert.Equal(t, PruneRelaxed, m)
	assert.Equal(t, "relaxed", m.String())

	_, err = ParsePruningMode("greedy")
	assert.Error(t, err)
}
