package router

import (
	"fpgaroute/internal/rrgraph"
)

// Lookahead estimates the remaining cost from a node to the target.
// Implementations must be safe for concurrent use by search workers.
type Lookahead interface {
	ExpectedCost(g *rrgraph.Graph, node, target rrgraph.NodeID, params *CostParams, rUpstream float32) float32
}

// ZeroLookahead always estimates zero, which turns the search into Dijkstra.
type ZeroLookahead struct{}

// ExpectedCost implements Lookahead.
func (ZeroLookahead) ExpectedCost(*rrgraph.Graph, rrgraph.NodeID, rrgraph.NodeID, *CostParams, float32) float32 {
	return 0
}

// ManhattanLookahead charges the cheapest wire hop for every wire the path
// must still cross. On devices where consecutive resources on a path abut
// it never over-estimates.
type ManhattanLookahead struct {
	// WireDelay is a lower bound on the delay of entering any wire.
	WireDelay float32
	// WireCongestion is a lower bound on the congestion cost of a wire.
	WireCongestion float32
	// Span is the largest extent of any node, in tiles.
	Span int
}

// NewManhattanLookahead derives the per-wire bounds from g. baseCongestion
// is the smallest congestion cost the congestion oracle charges for a wire.
func NewManhattanLookahead(g *rrgraph.Graph, baseCongestion float32) *ManhattanLookahead {
	la := &ManhattanLookahead{WireCongestion: max(baseCongestion, 0), Span: 1}
	first := true
	for n := 0; n < g.NumNodes(); n++ {
		from := rrgraph.NodeID(n)
		node := g.Node(from)
		la.Span = max(la.Span, int(node.XHigh-node.XLow)+1, int(node.YHigh-node.YLow)+1)

		lo, hi := g.EdgeRange(from)
		for e := lo; e < hi; e++ {
			to := g.EdgeSink(e)
			if !g.Node(to).Type.IsWire() {
				continue
			}
			d := minEdgeDelay(g, from, e, to)
			if first || d < la.WireDelay {
				la.WireDelay = d
				first = false
			}
		}
	}
	la.WireDelay = max(la.WireDelay, 0)
	return la
}

// minEdgeDelay evaluates the delay of an edge with the smallest upstream
// resistance the cost model can produce for it.
func minEdgeDelay(g *rrgraph.Graph, from rrgraph.NodeID, e rrgraph.EdgeID, to rrgraph.NodeID) float32 {
	sw := g.Switch(g.EdgeSwitch(e))
	rc := g.RC(to)
	rUp := sw.R + rc.R
	return edgeDelay(sw, rc, g.RC(from).R, rUp)
}

// ExpectedCost implements Lookahead.
func (la *ManhattanLookahead) ExpectedCost(g *rrgraph.Graph, node, target rrgraph.NodeID, params *CostParams, _ float32) float32 {
	n, t := g.Node(node), g.Node(target)
	dx := max(0, int(t.XLow)-int(n.XHigh), int(n.XLow)-int(t.XHigh))
	dy := max(0, int(t.YLow)-int(n.YHigh), int(n.YLow)-int(t.YHigh))
	wires := (dx + dy) / (la.Span + 1)
	if wires == 0 {
		return 0
	}
	perWire := (1-params.Criticality)*la.WireCongestion + params.Criticality*la.WireDelay
	return float32(wires) * perWire
}
