package router

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fpgaroute/internal/routetree"
	"fpgaroute/internal/rrgraph"
	"fpgaroute/pkg/apperror"
)

func TestRouteConnection_Diamond(t *testing.T) {
	f := newDiamond(t)
	r := newTestRouter(t, f.g, WithThreads(1))
	tree := f.tree(t)

	res, err := r.RouteConnection(context.Background(), tree, f.sink, dijkstraParams(),
		f.g.Grid().FullBoundingBox(), ConnectionParams{})
	require.NoError(t, err)
	require.Equal(t, StatusFound, res.Status)
	assert.True(t, res.Found())
	assert.Equal(t, ModeNormal, res.Mode)
	assert.NotEmpty(t, res.SearchID)

	// both branches cost the same; the lower edge into ip wins
	require.Less(t, f.g.FindEdge(f.b, f.ip), f.g.FindEdge(f.d, f.ip))
	assert.Equal(t, []rrgraph.NodeID{f.src, f.opin, f.a, f.b, f.ip, f.sink}, res.Nodes)
	assert.Equal(t, []rrgraph.EdgeID{
		f.g.FindEdge(f.src, f.opin),
		f.g.FindEdge(f.opin, f.a),
		f.g.FindEdge(f.a, f.b),
		f.g.FindEdge(f.b, f.ip),
		f.g.FindEdge(f.ip, f.sink),
	}, res.Edges)

	// every hop: buffered R=1 switch into an R=1 node gives R_up=2 and
	// Tdel = 1 + (2-0.5)*1 = 2.5; congestion is the type's base cost
	const crit = 0.5
	want := float32(0)
	for _, base := range []float32{1, 1, 1, 0.95, 0} {
		want += (1-crit)*base + crit*2.5
	}
	assert.InDelta(t, want, res.BackwardCost, 1e-5)
	assert.Equal(t, res.BackwardCost, res.TotalCost)
	assert.InDelta(t, 2, res.RUpstream, 1e-6)

	hops := res.Hops()
	require.Len(t, hops, 5)
	for i, h := range hops {
		assert.Equal(t, res.Nodes[i+1], h.Node)
		assert.Equal(t, res.Edges[i], h.Edge)
		assert.InDelta(t, 2, h.RUpstream, 1e-6)
		assert.InDelta(t, 2.5*float32(i+1), h.Tdel, 1e-5)
	}
	assert.Equal(t, f.src, res.Attach())
	_, err = tree.AddBranch(res.Attach(), res.Hops())
	require.NoError(t, err)
}

func TestRouteConnection_DiamondMatchesReference(t *testing.T) {
	f := newDiamond(t)
	for _, threads := range []int{1, 2, 8} {
		t.Run(fmt.Sprintf("threads_%d", threads), func(t *testing.T) {
			r := newTestRouter(t, f.g, WithThreads(threads))
			tree := f.tree(t)
			bb := f.g.Grid().FullBoundingBox()

			res, err := r.RouteConnection(context.Background(), tree, f.sink, dijkstraParams(), bb, ConnectionParams{})
			require.NoError(t, err)
			ref, err := ReferenceSearch(context.Background(), f.g, NewOccupancy(f.g), tree, f.sink, dijkstraParams(), bb, false)
			require.NoError(t, err)

			require.True(t, ref.Found)
			assert.Equal(t, ref.Nodes, res.Nodes)
			assert.Equal(t, ref.Edges, res.Edges)
			assert.Equal(t, ref.BackwardCost, res.BackwardCost)
		})
	}
}

// routed is the comparable part of a result.
type routed struct {
	Nodes []rrgraph.NodeID
	Edges []rrgraph.EdgeID
	Back  float32
}

var netSinks = [][2]int{{6, 6}, {2, 7}, {7, 1}, {4, 4}, {0, 5}}

// routeNet routes netSinks from the block at (1,1) one after another,
// growing the tree, and checks every connection against the reference.
func routeNet(t *testing.T, g *rrgraph.Graph, cost CostParams, opts ...Option) []routed {
	t.Helper()
	ctx := context.Background()
	r := newTestRouter(t, g, opts...)
	tree, err := routetree.New(g, blockNode(t, g, rrgraph.Source, 1, 1, 0), 0, 0)
	require.NoError(t, err)
	bb := g.Grid().FullBoundingBox()

	var out []routed
	for _, xy := range netSinks {
		sink := blockNode(t, g, rrgraph.Sink, xy[0], xy[1], 0)
		res, err := r.RouteConnection(ctx, tree, sink, cost, bb, ConnectionParams{})
		require.NoError(t, err)
		require.Equal(t, StatusFound, res.Status, "sink %v", xy)

		ref, err := ReferenceSearch(ctx, g, NewOccupancy(g), tree, sink, cost, bb, false)
		require.NoError(t, err)
		require.True(t, ref.Found)
		assert.Equal(t, ref.BackwardCost, res.BackwardCost, "sink %v", xy)
		assert.Equal(t, ref.Edges, res.Edges, "sink %v", xy)

		out = append(out, routed{Nodes: res.Nodes, Edges: res.Edges, Back: res.BackwardCost})
		_, err = tree.AddBranch(res.Attach(), res.Hops())
		require.NoError(t, err)
	}
	return out
}

func TestRouteConnection_Deterministic(t *testing.T) {
	g := device(t, smallSpec())

	timing := dijkstraParams()
	timing.Criticality = 1

	for _, cost := range []struct {
		name   string
		params CostParams
	}{
		{"balanced", dijkstraParams()},
		{"timing", timing},
	} {
		t.Run(cost.name, func(t *testing.T) {
			baseline := routeNet(t, g, cost.params, WithThreads(1))

			configs := []struct {
				name string
				opts []Option
			}{
				{"binary_2", []Option{WithThreads(2)}},
				{"binary_8", []Option{WithThreads(8)}},
				{"four_ary_8", []Option{WithThreads(8), WithQueue(QueueFourAry)}},
				{"multi_queue_8", []Option{WithThreads(8), WithQueue(QueueMulti), WithQueuesPerThread(2)}},
				{"striped_locks_8", []Option{WithThreads(8), WithLockStripes(16)}},
			}
			for _, c := range configs {
				t.Run(c.name, func(t *testing.T) {
					for run := 0; run < 3; run++ {
						assert.Equal(t, baseline, routeNet(t, g, cost.params, c.opts...))
					}
				})
			}
		})
	}
}

func TestRouteConnection_RelaxedPruningIsOptimal(t *testing.T) {
	g := device(t, smallSpec())
	ctx := context.Background()
	r := newTestRouter(t, g, WithThreads(4), WithPruning(PruneRelaxed))
	tree, err := routetree.New(g, blockNode(t, g, rrgraph.Source, 1, 1, 0), 0, 0)
	require.NoError(t, err)
	bb := g.Grid().FullBoundingBox()

	for _, xy := range netSinks {
		sink := blockNode(t, g, rrgraph.Sink, xy[0], xy[1], 0)
		res, err := r.RouteConnection(ctx, tree, sink, dijkstraParams(), bb, ConnectionParams{})
		require.NoError(t, err)
		require.True(t, res.Found())

		ref, err := ReferenceSearch(ctx, g, NewOccupancy(g), tree, sink, dijkstraParams(), bb, false)
		require.NoError(t, err)
		// ties may resolve differently, the cost may not
		assert.Equal(t, ref.BackwardCost, res.BackwardCost)

		_, err = tree.AddBranch(res.Attach(), res.Hops())
		require.NoError(t, err)
	}
}

func TestRouteConnection_UnbufferedGraph(t *testing.T) {
	spec := smallSpec()
	spec.PassTransistor = true
	g := device(t, spec)
	ctx := context.Background()
	r := newTestRouter(t, g, WithThreads(4))
	tree, err := routetree.New(g, blockNode(t, g, rrgraph.Source, 0, 0, 0), 0, 0)
	require.NoError(t, err)

	res, err := r.RouteConnection(ctx, tree, blockNode(t, g, rrgraph.Sink, 5, 5, 0), dijkstraParams(),
		g.Grid().FullBoundingBox(), ConnectionParams{})
	require.NoError(t, err)
	require.True(t, res.Found())

	// upstream resistance accumulates across pass transistors
	hops := res.Hops()
	grew := false
	for i := 1; i < len(hops); i++ {
		sw := g.Switch(g.EdgeSwitch(hops[i].Edge))
		if !sw.Buffered && hops[i].RUpstream > hops[i-1].RUpstream {
			grew = true
		}
		assert.GreaterOrEqual(t, hops[i].Tdel, hops[i-1].Tdel)
	}
	assert.True(t, grew)
}

func TestRouteConnection_StaysInBoundingBox(t *testing.T) {
	g := device(t, smallSpec())
	rec := newRecorder()
	r := newTestRouter(t, g, WithThreads(4), WithObserver(rec))
	tree, err := routetree.New(g, blockNode(t, g, rrgraph.Source, 1, 1, 0), 0, 0)
	require.NoError(t, err)

	bb := rrgraph.BoundingBox{XMin: 1, XMax: 5, YMin: 1, YMax: 5}
	res, err := r.RouteConnection(context.Background(), tree, blockNode(t, g, rrgraph.Sink, 5, 4, 0),
		dijkstraParams(), bb, ConnectionParams{})
	require.NoError(t, err)
	require.True(t, res.Found())

	require.NotEmpty(t, rec.committed)
	for _, n := range rec.committed {
		assert.True(t, bb.Contains(g.Node(n)), "node %d outside %s", n, bb)
	}
	for _, n := range res.Nodes {
		assert.True(t, bb.Contains(g.Node(n)))
	}
	// the target is committed but never pushed
	assert.Contains(t, rec.committed, res.Sink)
	assert.NotContains(t, rec.pushed, res.Sink)
	assert.Equal(t, bb, res.SearchedBB)
}

func TestRouteConnection_InputPinsOfOtherBlocksAreSkipped(t *testing.T) {
	g := device(t, smallSpec())
	rec := newRecorder()
	r := newTestRouter(t, g, WithThreads(2), WithObserver(rec))
	tree, err := routetree.New(g, blockNode(t, g, rrgraph.Source, 0, 0, 0), 0, 0)
	require.NoError(t, err)
	sink := blockNode(t, g, rrgraph.Sink, 3, 3, 0)

	_, err = r.RouteConnection(context.Background(), tree, sink, dijkstraParams(),
		g.Grid().FullBoundingBox(), ConnectionParams{})
	require.NoError(t, err)

	target := g.Grid().TileBB(3, 3, 0)
	for _, n := range rec.committed {
		node := g.Node(n)
		if node.Type == rrgraph.IPin {
			assert.True(t, target.Encloses(node), "input pin %d outside the target block", n)
		}
	}
}

func TestRouteConnection_Retry(t *testing.T) {
	g := device(t, smallSpec())
	ctx := context.Background()
	r := newTestRouter(t, g, WithThreads(2))
	tree, err := routetree.New(g, blockNode(t, g, rrgraph.Source, 1, 1, 0), 0, 0)
	require.NoError(t, err)
	sink := blockNode(t, g, rrgraph.Sink, 6, 6, 0)

	small := rrgraph.BoundingBox{XMin: 0, XMax: 3, YMin: 0, YMax: 3}
	res, err := r.RouteConnection(ctx, tree, sink, dijkstraParams(), small, ConnectionParams{})
	require.NoError(t, err)
	assert.Equal(t, StatusRetry, res.Status)
	assert.Nil(t, res.Unroutable)
	assert.Empty(t, res.Nodes)
	assert.Positive(t, res.Touched)

	res, err = r.RouteConnection(ctx, tree, sink, dijkstraParams(), g.Grid().FullBoundingBox(), ConnectionParams{})
	require.NoError(t, err)
	assert.Equal(t, StatusFound, res.Status)

	stats := r.Stats()
	assert.Equal(t, uint64(2), stats.Searches)
	assert.Equal(t, uint64(1), stats.Retries)
	assert.Zero(t, stats.Unroutable)
}

func TestRouteConnection_Unroutable(t *testing.T) {
	f := newDiamond(t)
	ctx := context.Background()
	r := newTestRouter(t, f.g, WithThreads(2))
	tree := f.tree(t)

	t.Run("no_path_in_full_device", func(t *testing.T) {
		res, err := r.RouteConnection(ctx, tree, f.sink2, dijkstraParams(), f.g.Grid().FullBoundingBox(), ConnectionParams{})
		require.NoError(t, err)
		assert.Equal(t, StatusUnroutable, res.Status)
		require.NotNil(t, res.Unroutable)
		assert.Equal(t, ReasonNoPath, res.Unroutable.Reason)
		assert.Equal(t, f.src, res.Unroutable.Source)
		assert.Contains(t, res.Unroutable.Describe(f.g), "SINK")
		assert.True(t, apperror.IsWarning(res.Unroutable.Err()))
	})

	t.Run("no_source_in_box", func(t *testing.T) {
		bb := rrgraph.BoundingBox{XMin: 1, XMax: 1, YMin: 1, YMax: 1}
		res, err := r.RouteConnection(ctx, tree, f.sink, dijkstraParams(), bb, ConnectionParams{})
		require.NoError(t, err)
		assert.Equal(t, StatusUnroutable, res.Status)
		require.NotNil(t, res.Unroutable)
		assert.Equal(t, ReasonNoSource, res.Unroutable.Reason)
		assert.Zero(t, res.Pushes)
	})

	t.Run("partial_box_is_retry", func(t *testing.T) {
		bb := rrgraph.BoundingBox{XMin: 0, XMax: 1, YMin: 0, YMax: 0}
		res, err := r.RouteConnection(ctx, tree, f.sink, dijkstraParams(), bb, ConnectionParams{})
		require.NoError(t, err)
		assert.Equal(t, StatusRetry, res.Status)
	})

	assert.Equal(t, uint64(2), r.Stats().Unroutable)
	assert.Equal(t, uint64(1), r.Stats().Retries)
}

func TestRouteConnection_LogsCarrySearchID(t *testing.T) {
	f := newDiamond(t)
	var buf bytes.Buffer
	log := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	r := newTestRouter(t, f.g, WithThreads(2), WithLogger(log))
	buf.Reset()

	res, err := r.RouteConnection(context.Background(), f.tree(t), f.sink2, dijkstraParams(),
		f.g.Grid().FullBoundingBox(), ConnectionParams{})
	require.NoError(t, err)
	require.Equal(t, StatusUnroutable, res.Status)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.NotEmpty(t, lines)
	for _, line := range lines {
		var rec map[string]any
		require.NoError(t, json.Unmarshal([]byte(line), &rec))
		assert.Equal(t, res.SearchID, rec["search_id"], "record %q", rec["msg"])
	}
	assert.Contains(t, buf.String(), "connection is unroutable")
}

func TestRouteConnection_Errors(t *testing.T) {
	f := newDiamond(t)
	other := newDiamond(t)
	r := newTestRouter(t, f.g, WithThreads(2))
	ctx := context.Background()
	full := f.g.Grid().FullBoundingBox()

	foreign, err := routetree.New(other.g, other.src, 0, 0)
	require.NoError(t, err)

	badCost := dijkstraParams()
	badCost.Criticality = 2

	canceled, cancel := context.WithCancel(ctx)
	cancel()

	tests := []struct {
		name string
		ctx  context.Context
		tree *routetree.Tree
		sink rrgraph.NodeID
		cost CostParams
		bb   rrgraph.BoundingBox
		code apperror.ErrorCode
	}{
		{"nil_tree", ctx, nil, f.sink, dijkstraParams(), full, apperror.CodeNilInput},
		{"foreign_tree", ctx, foreign, f.sink, dijkstraParams(), full, apperror.CodeInvalidRouteTree},
		{"sink_out_of_range", ctx, f.tree(t), rrgraph.NodeID(f.g.NumNodes()), dijkstraParams(), full, apperror.CodeInvalidTarget},
		{"negative_sink", ctx, f.tree(t), rrgraph.NoNode, dijkstraParams(), full, apperror.CodeInvalidTarget},
		{"empty_box", ctx, f.tree(t), f.sink, dijkstraParams(), rrgraph.BoundingBox{XMin: 1, XMax: 0}, apperror.CodeInvalidBoundingBox},
		{"bad_cost", ctx, f.tree(t), f.sink, badCost, full, apperror.CodeInvalidCostParams},
		{"canceled", canceled, f.tree(t), f.sink, dijkstraParams(), full, apperror.CodeTimeout},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := r.RouteConnection(tt.ctx, tt.tree, tt.sink, tt.cost, tt.bb, ConnectionParams{})
			require.Error(t, err)
			assert.Nil(t, res)
			assert.True(t, apperror.Is(err, tt.code), "got %v", err)
			if tt.code != apperror.CodeTimeout {
				assert.True(t, apperror.IsCritical(err))
			}
		})
	}
}

func TestRouter_UnsupportedModes(t *testing.T) {
	f := newDiamond(t)
	r := newTestRouter(t, f.g, WithThreads(1))

	_, err := r.FindAllShortestPaths(context.Background(), f.tree(t), dijkstraParams(),
		f.g.Grid().FullBoundingBox(), ConnectionParams{})
	assert.True(t, apperror.Is(err, apperror.CodeUnimplementedMode))
	assert.True(t, apperror.IsCritical(err))

	assert.NoError(t, r.SetRCVEnabled(false))
	err = r.SetRCVEnabled(true)
	assert.True(t, apperror.Is(err, apperror.CodeUnimplementedMode))
}

func TestRouter_Close(t *testing.T) {
	f := newDiamond(t)
	r, err := New(f.g, ZeroLookahead{}, NewOccupancy(f.g), WithThreads(4), WithLogger(quietLog))
	require.NoError(t, err)
	assert.Equal(t, 4, r.Threads())
	assert.Same(t, f.g, r.Graph())

	require.NoError(t, r.Close())
	require.NoError(t, r.Close())

	_, err = r.RouteConnection(context.Background(), f.tree(t), f.sink, dijkstraParams(),
		f.g.Grid().FullBoundingBox(), ConnectionParams{})
	assert.ErrorIs(t, err, ErrRouterClosed)
	assert.True(t, apperror.IsCritical(err))
}

func TestNew_Errors(t *testing.T) {
	f := newDiamond(t)

	_, err := New(nil, ZeroLookahead{}, NewOccupancy(f.g))
	assert.True(t, apperror.Is(err, apperror.CodeNilInput))
	_, err = New(f.g, nil, NewOccupancy(f.g))
	assert.True(t, apperror.Is(err, apperror.CodeNilInput))
	_, err = New(f.g, ZeroLookahead{}, nil)
	assert.True(t, apperror.Is(err, apperror.CodeNilInput))
}

func TestRouter_DetailedStats(t *testing.T) {
	g := device(t, smallSpec())
	r := newTestRouter(t, g, WithThreads(2), WithDetailedStats(true))
	tree, err := routetree.New(g, blockNode(t, g, rrgraph.Source, 1, 1, 0), 0, 0)
	require.NoError(t, err)

	res, err := r.RouteConnection(context.Background(), tree, blockNode(t, g, rrgraph.Sink, 4, 4, 0),
		dijkstraParams(), g.Grid().FullBoundingBox(), ConnectionParams{})
	require.NoError(t, err)
	require.True(t, res.Found())

	stats := r.Stats()
	assert.True(t, stats.Detailed())
	assert.Equal(t, res.Pushes, stats.HeapPushes)
	assert.Equal(t, res.Pops, stats.HeapPops)

	// the SOURCE seed is an intra-cluster push; wires are inter-cluster
	intraPushes, _ := stats.ClusterTotals(IntraCluster)
	interPushes, interPops := stats.ClusterTotals(InterCluster)
	assert.Equal(t, uint64(1), intraPushes)
	assert.Positive(t, interPushes)
	assert.Positive(t, interPops)
	assert.Equal(t, stats.HeapPushes, intraPushes+interPushes)
	assert.Positive(t, stats.PathSearchTime)

	r.ResetStats()
	assert.Zero(t, r.Stats().Searches)
}

// =============================================================================
// High fanout
// =============================================================================

func hfTree(t *testing.T, f diamond, path ...rrgraph.NodeID) (*routetree.Tree, *routetree.SpatialLookup) {
	t.Helper()
	tree := f.tree(t)
	hops := make([]routetree.Hop, 0, len(path))
	prev := f.src
	for _, n := range path {
		hops = append(hops, routetree.Hop{Node: n, Edge: f.g.FindEdge(prev, n)})
		prev = n
	}
	_, err := tree.AddBranch(f.src, hops)
	require.NoError(t, err)

	lookup := routetree.NewSpatialLookup(f.g.Grid(), 1)
	lookup.Rebuild(tree)
	return tree, lookup
}

func TestRouteConnectionHighFanout(t *testing.T) {
	ctx := context.Background()
	f := newDiamond(t)
	netBB := f.g.Grid().FullBoundingBox()

	t.Run("localized", func(t *testing.T) {
		r := newTestRouter(t, f.g, WithThreads(2), WithHighFanout(0, 0))
		tree, lookup := hfTree(t, f, f.opin, f.a, f.b)

		res, err := r.RouteConnectionHighFanout(ctx, tree, f.sink, dijkstraParams(), netBB, lookup, ConnectionParams{})
		require.NoError(t, err)
		require.Equal(t, StatusFound, res.Status)
		assert.Equal(t, ModeHighFanout, res.Mode)
		assert.False(t, res.FellBack)
		assert.Equal(t, rrgraph.BoundingBox{XMin: 1, XMax: 1, YMin: 0, YMax: 1}, res.HighFanoutBB)
		assert.Equal(t, []rrgraph.NodeID{f.b, f.ip, f.sink}, res.Nodes)
	})

	t.Run("too_little_routing_seeds_whole_tree", func(t *testing.T) {
		r := newTestRouter(t, f.g, WithThreads(2), WithHighFanout(10, 3))
		tree, lookup := hfTree(t, f, f.opin, f.a, f.b)

		res, err := r.RouteConnectionHighFanout(ctx, tree, f.sink, dijkstraParams(), netBB, lookup, ConnectionParams{})
		require.NoError(t, err)
		require.Equal(t, StatusFound, res.Status)
		assert.Equal(t, netBB, res.HighFanoutBB)
		assert.False(t, res.FellBack)
		assert.Equal(t, f.b, res.Attach())
	})

	t.Run("falls_back_to_full_tree", func(t *testing.T) {
		r := newTestRouter(t, f.g, WithThreads(2), WithHighFanout(0, 0))
		tree, lookup := hfTree(t, f, f.opin, f.a, f.w)

		res, err := r.RouteConnectionHighFanout(ctx, tree, f.sink, dijkstraParams(), netBB, lookup, ConnectionParams{})
		require.NoError(t, err)
		require.Equal(t, StatusFound, res.Status)
		assert.True(t, res.FellBack)
		assert.Equal(t, rrgraph.BoundingBox{XMin: 1, XMax: 1, YMin: 1, YMax: 1}, res.HighFanoutBB)
		assert.Equal(t, netBB, res.SearchedBB)
		assert.Equal(t, []rrgraph.NodeID{f.a, f.b, f.ip, f.sink}, res.Nodes)
		assert.Equal(t, uint64(1), r.Stats().HighFanoutFallbacks)
	})

	t.Run("nil_lookup", func(t *testing.T) {
		r := newTestRouter(t, f.g, WithThreads(1))
		_, err := r.RouteConnectionHighFanout(ctx, f.tree(t), f.sink, dijkstraParams(), netBB, nil, ConnectionParams{})
		assert.True(t, apperror.Is(err, apperror.CodeNilInput))
	})
}

func TestAdjustHighFanoutBB(t *testing.T) {
	net := rrgraph.BoundingBox{XMin: 0, XMax: 10, YMin: 0, YMax: 10, LayerMin: 0, LayerMax: 1}
	got := adjustHighFanoutBB(rrgraph.BoundingBox{XMin: 1, XMax: 4, YMin: 8, YMax: 9}, net, 3)
	assert.Equal(t, rrgraph.BoundingBox{XMin: 0, XMax: 7, YMin: 5, YMax: 10, LayerMin: 0, LayerMax: 1}, got)
}
