package router

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fpgaroute/internal/rrgraph"
)

type flatCongestion float32

func (c flatCongestion) CongestionCost(rrgraph.NodeID, float32) float32 { return float32(c) }

type flatLookahead float32

func (l flatLookahead) ExpectedCost(*rrgraph.Graph, rrgraph.NodeID, rrgraph.NodeID, *CostParams, float32) float32 {
	return float32(l)
}

// costGraph: A(CHANX) -buf-> B(CHANY), A -pass-> C(CHANX), A -buf-> P(IPIN),
// B -short-> P
type costGraph struct {
	g          *rrgraph.Graph
	a, b, c, p rrgraph.NodeID
}

func newCostGraph(t *testing.T) costGraph {
	t.Helper()
	bld := rrgraph.NewBuilder()
	bld.SetGrid(2, 2, 1)
	buf := bld.AddSwitch(rrgraph.Switch{Name: "buf", R: 5, Tdel: 1, Cinternal: 0.5, Buffered: true, Configurable: true})
	pass := bld.AddSwitch(rrgraph.Switch{Name: "pass", R: 5, Tdel: 1, Cinternal: 0.5, Configurable: true})
	short := bld.AddSwitch(rrgraph.Switch{Name: "short"})
	wire := bld.AddRC(rrgraph.RCData{R: 10, C: 2})
	pin := bld.AddRC(rrgraph.RCData{R: 0, C: 1})

	f := costGraph{}
	f.a = bld.AddNode(rrgraph.Node{Type: rrgraph.ChanX, XHigh: 1, Capacity: 1, RCIndex: wire})
	f.b = bld.AddNode(rrgraph.Node{Type: rrgraph.ChanY, XLow: 1, XHigh: 1, YHigh: 1, Capacity: 1, RCIndex: wire})
	f.c = bld.AddNode(rrgraph.Node{Type: rrgraph.ChanX, YLow: 1, XHigh: 1, YHigh: 1, Capacity: 1, RCIndex: wire})
	f.p = bld.AddNode(rrgraph.Node{Type: rrgraph.IPin, Capacity: 1, RCIndex: pin})
	bld.AddEdge(f.a, f.b, buf)
	bld.AddEdge(f.a, f.c, pass)
	bld.AddEdge(f.a, f.p, buf)
	bld.AddEdge(f.b, f.p, short)
	f.g = bld.MustBuild()
	return f
}

func (f costGraph) model(params CostParams) costModel {
	return costModel{g: f.g, la: ZeroLookahead{}, cong: flatCongestion(2), params: params, target: f.p}
}

func TestCostModel_Evaluate(t *testing.T) {
	f := newCostGraph(t)
	params := CostParams{Criticality: 0.5}

	tests := []struct {
		name     string
		params   CostParams
		from, to rrgraph.NodeID
		fromBack float32
		fromR    float32
		wantR    float32
		wantBack float32
	}{
		{
			// buffered: R_up = 0 + 5 + 10; Tdel = 1 + (15-5)*2 + (15-5)*0.5 = 26
			name: "buffered_resets_upstream_r", params: params,
			from: f.a, to: f.b, fromBack: 1, fromR: 3,
			wantR: 15, wantBack: 1 + 0.5*2 + 0.5*26,
		},
		{
			name: "bend_cost_on_turn", params: CostParams{Criticality: 0.5, BendCost: 0.25},
			from: f.a, to: f.b, fromBack: 1, fromR: 3,
			wantR: 15, wantBack: 1 + 0.5*2 + 0.5*26 + 0.25,
		},
		{
			// pass transistor: R_up = 3 + 5 + 10; Tdel = 1 + 13*2 + 13*0.5 = 33.5
			name: "unbuffered_accumulates_upstream_r", params: CostParams{Criticality: 0.5, BendCost: 0.25},
			from: f.a, to: f.c, fromBack: 1, fromR: 3,
			wantR: 18, wantBack: 1 + 0.5*2 + 0.5*33.5,
		},
		{
			name: "non_configurable_edge_has_no_congestion", params: params,
			from: f.b, to: f.p, fromBack: 2, fromR: 0,
			wantR: 0, wantBack: 2,
		},
		{
			name: "pure_congestion", params: CostParams{Criticality: 0},
			from: f.a, to: f.b, fromBack: 0, fromR: 0,
			wantR: 15, wantBack: 2,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := f.model(tt.params)
			e := f.g.FindEdge(tt.from, tt.to)
			require.True(t, e.Valid())

			got := m.evaluate(tt.from, tt.fromBack, tt.fromR, e, tt.to)
			assert.InDelta(t, tt.wantR, got.rUpstream, 1e-5)
			assert.InDelta(t, tt.wantBack, got.back, 1e-4)
			assert.Equal(t, got.back, got.total)
		})
	}
}

func TestCostModel_ChokePoints(t *testing.T) {
	f := newCostGraph(t)
	m := f.model(CostParams{Criticality: 0.5})
	e := f.g.FindEdge(f.a, f.p)

	// R_up = 5; Tdel = 1 + 5*1 + (5-5)*0.5 = 6
	plain := m.evaluate(f.a, 0, 0, e, f.p)
	assert.InDelta(t, 0.5*2+0.5*6, plain.back, 1e-5)

	m.chokePoints = map[rrgraph.NodeID]int{f.p: 2}
	discounted := m.evaluate(f.a, 0, 0, e, f.p)
	assert.InDelta(t, 0.5*0.5+0.5*6, discounted.back, 1e-5)

	// wires are never discounted
	m.chokePoints[f.b] = 3
	wire := m.evaluate(f.a, 0, 0, f.g.FindEdge(f.a, f.b), f.b)
	assert.InDelta(t, 0.5*2+0.5*26, wire.back, 1e-4)
}

func TestCostModel_TotalCost(t *testing.T) {
	f := newCostGraph(t)
	m := f.model(CostParams{AstarFac: 1.5, AstarOffset: 1})
	m.la = flatLookahead(4)
	assert.InDelta(t, 3+1.5*3, m.totalCost(f.b, 3, 0), 1e-6)

	// offset larger than the estimate clamps to zero
	m.params.AstarOffset = 10
	assert.Equal(t, float32(3), m.totalCost(f.b, 3, 0))
}

func TestEdgeDelay(t *testing.T) {
	sw := &rrgraph.Switch{Tdel: 2, Cinternal: 1}
	rc := rrgraph.RCData{R: 4, C: 3}
	// 2 + (10 - 2)*3 + (10 - 0.5*6)*1
	assert.InDelta(t, 2+24+7, edgeDelay(sw, rc, 6, 10), 1e-6)
}
