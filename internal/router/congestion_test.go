package router

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"fpgaroute/internal/rrgraph"
)

func TestOccupancy_Pricing(t *testing.T) {
	f := newDiamond(t)
	occ := NewOccupancy(f.g)

	assert.InDelta(t, 1, occ.CongestionCost(f.a, 0.5), 1e-6)
	assert.InDelta(t, 0.95, occ.CongestionCost(f.ip, 0.5), 1e-6)
	assert.Zero(t, occ.CongestionCost(f.sink, 0.5))

	// one user fills capacity 1; the next one overuses it by one
	occ.Add(f.a, 1)
	assert.Equal(t, int32(1), occ.Occupancy(f.a))
	assert.InDelta(t, 1.5, occ.CongestionCost(f.a, 0.5), 1e-6)
	assert.InDelta(t, 2, occ.CongestionCost(f.a, 1), 1e-6)
	assert.Zero(t, occ.Overused())

	occ.AddPath([]rrgraph.NodeID{f.a, f.b})
	assert.Equal(t, 1, occ.Overused())

	occ.UpdateHistory(0.5)
	// history 1 + 1*0.5, present 1 + 2*0.5
	assert.InDelta(t, 1.5*2, occ.CongestionCost(f.a, 0.5), 1e-6)
	assert.InDelta(t, 1.5, occ.CongestionCost(f.b, 0.5), 1e-6)

	occ.SetBaseCost(rrgraph.ChanY, 2)
	assert.Equal(t, float32(2), occ.BaseCost(rrgraph.ChanY))

	occ.Reset()
	assert.Equal(t, int32(0), occ.Occupancy(f.a))
	assert.InDelta(t, 1, occ.CongestionCost(f.a, 0.5), 1e-6)
}

func TestOccupancy_NonConfigurableSet(t *testing.T) {
	bld := rrgraph.NewBuilder()
	bld.SetGrid(2, 1, 1)
	sw := bld.AddSwitch(rrgraph.Switch{Name: "buf", R: 1, Tdel: 1, Buffered: true, Configurable: true})
	short := bld.AddSwitch(rrgraph.Switch{Name: "short"})
	rc := bld.AddRC(rrgraph.RCData{R: 1, C: 1})
	x := bld.AddNode(rrgraph.Node{Type: rrgraph.ChanX, XHigh: 1, Capacity: 1, RCIndex: rc})
	y1 := bld.AddNode(rrgraph.Node{Type: rrgraph.ChanY, Capacity: 1, RCIndex: rc})
	y2 := bld.AddNode(rrgraph.Node{Type: rrgraph.ChanY, XLow: 1, XHigh: 1, Capacity: 1, RCIndex: rc})
	bld.AddEdge(x, y1, sw)
	bld.AddEdge(y1, y2, short)
	g := bld.MustBuild()

	occ := NewOccupancy(g)
	// entering either member commits both
	assert.InDelta(t, 2, occ.CongestionCost(y1, 0.5), 1e-6)
	assert.InDelta(t, 2, occ.CongestionCost(y2, 0.5), 1e-6)
	assert.InDelta(t, 1, occ.CongestionCost(x, 0.5), 1e-6)

	occ.Add(y2, 1)
	assert.InDelta(t, 1+1.5, occ.CongestionCost(y1, 0.5), 1e-6)
}
