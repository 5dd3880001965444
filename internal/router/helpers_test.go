package router

import (
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"fpgaroute/internal/routetree"
	"fpgaroute/internal/rrgraph"
)

var quietLog = slog.New(slog.NewTextHandler(io.Discard, nil))

// diamond: two equal-cost routes from the source to sink, one dead-end wire
// and one unreachable sink.
//
//	src(0,0) -> opin -> a CHANX y0 -> b CHANY x1 -> ip(1,1) -> sink(1,1)
//	                 \-> c CHANY x0 -> d CHANX y1 -/
//	                     a -> w CHANY x1 y1 (dead end)
//	ip2(0,1) -> sink2(0,1) (no way in)
type diamond struct {
	g *rrgraph.Graph

	src, opin, a, c, b, d, ip, sink, ip2, sink2, w rrgraph.NodeID
}

func newDiamond(t *testing.T) diamond {
	t.Helper()
	bld := rrgraph.NewBuilder()
	bld.SetGrid(2, 2, 1)
	sw := bld.AddSwitch(rrgraph.Switch{Name: "buf", R: 1, Tdel: 1, Buffered: true, Configurable: true})
	rc := bld.AddRC(rrgraph.RCData{R: 1, C: 1})

	node := func(typ rrgraph.NodeType, xl, xh, yl, yh int16) rrgraph.NodeID {
		return bld.AddNode(rrgraph.Node{Type: typ, XLow: xl, XHigh: xh, YLow: yl, YHigh: yh, Capacity: 1, RCIndex: rc})
	}
	f := diamond{}
	f.src = node(rrgraph.Source, 0, 0, 0, 0)
	f.opin = node(rrgraph.OPin, 0, 0, 0, 0)
	f.a = node(rrgraph.ChanX, 0, 1, 0, 0)
	f.c = node(rrgraph.ChanY, 0, 0, 0, 1)
	f.b = node(rrgraph.ChanY, 1, 1, 0, 1)
	f.d = node(rrgraph.ChanX, 0, 1, 1, 1)
	f.ip = node(rrgraph.IPin, 1, 1, 1, 1)
	f.sink = node(rrgraph.Sink, 1, 1, 1, 1)
	f.ip2 = node(rrgraph.IPin, 0, 0, 1, 1)
	f.sink2 = node(rrgraph.Sink, 0, 0, 1, 1)
	f.w = node(rrgraph.ChanY, 1, 1, 1, 1)

	bld.AddEdge(f.src, f.opin, sw)
	bld.AddEdge(f.opin, f.a, sw)
	bld.AddEdge(f.opin, f.c, sw)
	bld.AddEdge(f.a, f.b, sw)
	bld.AddEdge(f.a, f.w, sw)
	bld.AddEdge(f.c, f.d, sw)
	bld.AddEdge(f.b, f.ip, sw)
	bld.AddEdge(f.d, f.ip, sw)
	bld.AddEdge(f.ip, f.sink, sw)
	bld.AddEdge(f.ip2, f.sink2, sw)
	f.g = bld.MustBuild()
	return f
}

func (f diamond) tree(t *testing.T) *routetree.Tree {
	t.Helper()
	tree, err := routetree.New(f.g, f.src, 0, 0)
	require.NoError(t, err)
	return tree
}

// dijkstraParams disables the lookahead so every test search is exact.
func dijkstraParams() CostParams {
	p := DefaultCostParams()
	p.AstarFac = 0
	return p
}

func mustTree(t *testing.T, g *rrgraph.Graph, root rrgraph.NodeID) *routetree.Tree {
	t.Helper()
	tree, err := routetree.New(g, root, 0, 0)
	require.NoError(t, err)
	return tree
}

func newTestRouter(t *testing.T, g *rrgraph.Graph, opts ...Option) *ParallelRouter {
	t.Helper()
	opts = append([]Option{WithLogger(quietLog)}, opts...)
	r, err := New(g, ZeroLookahead{}, NewOccupancy(g), opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = r.Close() })
	return r
}

// device is a small generated island-style architecture.
func device(t *testing.T, spec rrgraph.GridSpec) *rrgraph.Graph {
	t.Helper()
	g, err := rrgraph.Generate(spec)
	require.NoError(t, err)
	return g
}

func smallSpec() rrgraph.GridSpec {
	return rrgraph.GridSpec{Width: 8, Height: 8, Layers: 1, ChannelWidth: 4, SegmentLength: 2, PinsPerTile: 2}
}

// blockNode finds the SOURCE or SINK of the block at (x, y, layer).
func blockNode(t *testing.T, g *rrgraph.Graph, typ rrgraph.NodeType, x, y, layer int) rrgraph.NodeID {
	t.Helper()
	for i := 0; i < g.NumNodes(); i++ {
		n := g.Node(rrgraph.NodeID(i))
		if n.Type == typ && int(n.XLow) == x && int(n.YLow) == y && int(n.Layer) == layer {
			return rrgraph.NodeID(i)
		}
	}
	t.Fatalf("no %s at (%d,%d,%d)", typ, x, y, layer)
	return rrgraph.NoNode
}

// recorder is an Observer that keeps every committed and pushed node.
type recorder struct {
	mu        sync.Mutex
	committed []rrgraph.NodeID
	pushed    []rrgraph.NodeID
	workers   map[int]struct{}
}

func newRecorder() *recorder {
	return &recorder{workers: make(map[int]struct{})}
}

func (r *recorder) OnPush(worker int, node rrgraph.NodeID, _ float32) {
	r.mu.Lock()
	r.pushed = append(r.pushed, node)
	r.workers[worker] = struct{}{}
	r.mu.Unlock()
}

func (r *recorder) OnCommit(worker int, node rrgraph.NodeID, _ NodeState) {
	r.mu.Lock()
	r.committed = append(r.committed, node)
	r.workers[worker] = struct{}{}
	r.mu.Unlock()
}
