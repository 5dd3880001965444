package router

import (
	"fpgaroute/internal/rrgraph"
)

// Congestion prices the use of a node by one more connection.
// Implementations must be safe for concurrent reads during a search.
type Congestion interface {
	CongestionCost(node rrgraph.NodeID, presFac float32) float32
}

// DefaultBaseCost is the per-type base cost used by NewOccupancy.
var DefaultBaseCost = [rrgraph.NumNodeTypes]float32{
	rrgraph.Source: 1,
	rrgraph.Sink:   0,
	rrgraph.IPin:   0.95,
	rrgraph.OPin:   1,
	rrgraph.ChanX:  1,
	rrgraph.ChanY:  1,
}

// Occupancy tracks how many connections use each node and prices overuse
// as base x history x present-overuse. A node in a non-configurable set is
// charged the cost of the whole set, since entering any member commits all
// of them.
//
// Occupancy is modified between searches only.
type Occupancy struct {
	g        *rrgraph.Graph
	occ      []int32
	hist     []float32
	baseCost [rrgraph.NumNodeTypes]float32
}

// NewOccupancy creates an empty occupancy table for g.
func NewOccupancy(g *rrgraph.Graph) *Occupancy {
	o := &Occupancy{
		g:        g,
		occ:      make([]int32, g.NumNodes()),
		hist:     make([]float32, g.NumNodes()),
		baseCost: DefaultBaseCost,
	}
	for i := range o.hist {
		o.hist[i] = 1
	}
	return o
}

// SetBaseCost overrides the base cost of a node type.
func (o *Occupancy) SetBaseCost(t rrgraph.NodeType, cost float32) {
	o.baseCost[t] = cost
}

// BaseCost returns the base cost of a node type.
func (o *Occupancy) BaseCost(t rrgraph.NodeType) float32 { return o.baseCost[t] }

// CongestionCost implements Congestion.
func (o *Occupancy) CongestionCost(node rrgraph.NodeID, presFac float32) float32 {
	cost := o.single(node, presFac)
	if set := o.g.NonConfigSet(node); set != rrgraph.NoSet {
		for _, m := range o.g.NonConfigSetMembers(set) {
			if m != node {
				cost += o.single(m, presFac)
			}
		}
	}
	return cost
}

func (o *Occupancy) single(n rrgraph.NodeID, presFac float32) float32 {
	node := o.g.Node(n)
	pres := float32(1)
	if over := o.occ[n] + 1 - node.Capacity; over > 0 {
		pres += float32(over) * presFac
	}
	return o.baseCost[node.Type] * o.hist[n] * pres
}

// Add changes the occupancy of a node by delta.
func (o *Occupancy) Add(n rrgraph.NodeID, delta int32) {
	o.occ[n] += delta
}

// AddPath occupies every node of a committed path.
func (o *Occupancy) AddPath(nodes []rrgraph.NodeID) {
	for _, n := range nodes {
		o.occ[n]++
	}
}

// Occupancy returns the number of users of n.
func (o *Occupancy) Occupancy(n rrgraph.NodeID) int32 { return o.occ[n] }

// Overused counts nodes used beyond their capacity.
func (o *Occupancy) Overused() int {
	count := 0
	for i, occ := range o.occ {
		if occ > o.g.Node(rrgraph.NodeID(i)).Capacity {
			count++
		}
	}
	return count
}

// UpdateHistory accumulates the current overuse into the history cost.
func (o *Occupancy) UpdateHistory(accFac float32) {
	for i, occ := range o.occ {
		if over := occ - o.g.Node(rrgraph.NodeID(i)).Capacity; over > 0 {
			o.hist[i] += float32(over) * accFac
		}
	}
}

// Reset clears occupancy and history.
func (o *Occupancy) Reset() {
	for i := range o.occ {
		o.occ[i] = 0
		o.hist[i] = 1
	}
}

// Footprint calls visit, in node order, for every node whose price a search
// inside bb can observe and whose occupancy or history differs from an empty
// table. A node outside bb is observable when its non-configurable set has a
// member inside bb.
func (o *Occupancy) Footprint(bb rrgraph.BoundingBox, visit func(n rrgraph.NodeID, occ int32, hist float32)) {
	var sets map[int32]bool
	for i := range o.occ {
		n := rrgraph.NodeID(i)
		if set := o.g.NonConfigSet(n); set != rrgraph.NoSet && bb.Contains(o.g.Node(n)) {
			if sets == nil {
				sets = make(map[int32]bool)
			}
			sets[set] = true
		}
	}
	for i, occ := range o.occ {
		if occ == 0 && o.hist[i] == 1 {
			continue
		}
		n := rrgraph.NodeID(i)
		if bb.Contains(o.g.Node(n)) || sets[o.g.NonConfigSet(n)] {
			visit(n, occ, o.hist[i])
		}
	}
}
