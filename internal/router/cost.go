package router

import (
	"math"

	"fpgaroute/internal/rrgraph"
)

// =============================================================================
// Cost model
// =============================================================================

// candidate is the cost of reaching a node through one edge.
type candidate struct {
	total     float32
	back      float32
	rUpstream float32
}

// costModel evaluates edges for one search. It is built once per search
// and only read afterwards.
type costModel struct {
	g      *rrgraph.Graph
	la     Lookahead
	cong   Congestion
	params CostParams
	target rrgraph.NodeID
	// chokePoints is nil unless choke-point discounting applies.
	chokePoints map[rrgraph.NodeID]int
}

// evaluate computes the candidate for reaching to over edge e from a node
// whose settled state is (fromBack, fromR).
func (m *costModel) evaluate(from rrgraph.NodeID, fromBack, fromR float32, e rrgraph.EdgeID, to rrgraph.NodeID) candidate {
	sw := m.g.Switch(m.g.EdgeSwitch(e))
	rc := m.g.RC(to)

	rUp := fromR
	if sw.Buffered {
		rUp = 0
	}
	rUp += sw.R
	rUp += rc.R

	tdel := edgeDelay(sw, rc, m.g.RC(from).R, rUp)

	// A non-configurable edge stays inside a node set that was charged on entry.
	var cong float32
	if sw.Configurable {
		cong = m.cong.CongestionCost(to, m.params.PresFac)
	}
	toType := m.g.Node(to).Type
	if m.chokePoints != nil && toType == rrgraph.IPin {
		if bucket, ok := m.chokePoints[to]; ok {
			cong /= float32(math.Pow(2, float64(bucket)))
		}
	}

	back := fromBack
	back += (1 - m.params.Criticality) * cong
	back += m.params.Criticality * tdel

	if m.params.BendCost != 0 {
		fromType := m.g.Node(from).Type
		if (fromType == rrgraph.ChanX && toType == rrgraph.ChanY) ||
			(fromType == rrgraph.ChanY && toType == rrgraph.ChanX) {
			back += m.params.BendCost
		}
	}

	return candidate{
		total:     m.totalCost(to, back, rUp),
		back:      back,
		rUpstream: rUp,
	}
}

// totalCost adds the scaled lookahead to a backward cost.
func (m *costModel) totalCost(n rrgraph.NodeID, back, rUp float32) float32 {
	expected := m.la.ExpectedCost(m.g, n, m.target, &m.params, rUp)
	return back + m.params.AstarFac*max(0, expected-m.params.AstarOffset)
}

// edgeDelay is the Elmore delay of entering a node through a switch, given
// the upstream resistance at the end of that node. Half of the node's own
// resistance drives its capacitance. The switch's internal capacitance
// loads the predecessor; it is charged here because the switch is only
// known once the successor is reached.
func edgeDelay(sw *rrgraph.Switch, rc rrgraph.RCData, fromR, rUp float32) float32 {
	rdel := rUp - 0.5*rc.R
	tdel := sw.Tdel + rdel*rc.C
	rdelAdjust := rUp - 0.5*fromR
	tdel += rdelAdjust * sw.Cinternal
	return tdel
}
