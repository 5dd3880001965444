package rrgraph

import (
	"fpgaroute/pkg/cache"
)

// NoSet marks a node that belongs to no non-configurable set.
const NoSet int32 = -1

// =============================================================================
// Graph
// =============================================================================

// Graph is the read-only routing-resource graph.
//
// # Edge Storage
//
// Outgoing edges are stored in compressed sparse row form: the edges of node
// n occupy the half-open range [offsets[n], offsets[n+1]) and an EdgeID is the
// index into that flat array. Edges of a node keep the order in which the
// Builder received them, so iteration order never depends on map order.
//
// # Concurrency
//
// A Graph never changes after Build. All methods are safe for concurrent use.
type Graph struct {
	nodes    []Node
	switches []Switch
	rc       []RCData

	offsets    []int32
	edgeSource []NodeID
	edgeSink   []NodeID
	edgeSwitch []SwitchID

	nodeSet    []int32
	setMembers [][]NodeID

	grid        *Grid
	fingerprint string
}

// NumNodes returns the number of nodes.
func (g *Graph) NumNodes() int { return len(g.nodes) }

// NumEdges returns the number of edges.
func (g *Graph) NumEdges() int { return len(g.edgeSink) }

// NumSwitches returns the size of the switch table.
func (g *Graph) NumSwitches() int { return len(g.switches) }

// Node returns a pointer into the node table. The caller must not modify it.
func (g *Graph) Node(id NodeID) *Node { return &g.nodes[id] }

// HasNode reports whether id is a valid node of this graph.
func (g *Graph) HasNode(id NodeID) bool { return id >= 0 && int(id) < len(g.nodes) }

// EdgeRange returns the half-open range of outgoing edge ids of n.
func (g *Graph) EdgeRange(n NodeID) (first, last EdgeID) {
	return EdgeID(g.offsets[n]), EdgeID(g.offsets[n+1])
}

// OutDegree returns the number of outgoing edges of n.
func (g *Graph) OutDegree(n NodeID) int {
	return int(g.offsets[n+1] - g.offsets[n])
}

// EdgeSource returns the node an edge leaves.
func (g *Graph) EdgeSource(e EdgeID) NodeID { return g.edgeSource[e] }

// EdgeSink returns the node an edge enters.
func (g *Graph) EdgeSink(e EdgeID) NodeID { return g.edgeSink[e] }

// EdgeSwitch returns the switch programming an edge.
func (g *Graph) EdgeSwitch(e EdgeID) SwitchID { return g.edgeSwitch[e] }

// Switch returns the switch description.
func (g *Graph) Switch(id SwitchID) *Switch { return &g.switches[id] }

// RC returns the resistance and capacitance of a node.
func (g *Graph) RC(n NodeID) RCData { return g.rc[g.nodes[n].RCIndex] }

// NumRC returns the number of RC entries.
func (g *Graph) NumRC() int { return len(g.rc) }

// FindEdge returns the first edge from -> to, or NoEdge.
func (g *Graph) FindEdge(from, to NodeID) EdgeID {
	first, last := g.EdgeRange(from)
	for e := first; e < last; e++ {
		if g.edgeSink[e] == to {
			return e
		}
	}
	return NoEdge
}

// NonConfigSet returns the non-configurable set of n, or NoSet.
func (g *Graph) NonConfigSet(n NodeID) int32 { return g.nodeSet[n] }

// NonConfigSetMembers returns the nodes of a set in ascending id order.
func (g *Graph) NonConfigSetMembers(set int32) []NodeID {
	if set < 0 || int(set) >= len(g.setMembers) {
		return nil
	}
	return g.setMembers[set]
}

// NumNonConfigSets returns the number of non-configurable sets.
func (g *Graph) NumNonConfigSets() int { return len(g.setMembers) }

// Grid returns the device floorplan.
func (g *Graph) Grid() *Grid { return g.grid }

// Fingerprint identifies the graph contents. Two graphs built from the same
// description have the same fingerprint.
func (g *Graph) Fingerprint() string { return g.fingerprint }

// =============================================================================
// Fingerprint
// =============================================================================

func (g *Graph) computeFingerprint() string {
	h := cache.NewHasher()
	h.Int64(int64(g.grid.Width))
	h.Int64(int64(g.grid.Height))
	h.Int64(int64(g.grid.Layers))
	for _, b := range g.grid.Blocks() {
		h.Int64(int64(b.X))
		h.Int64(int64(b.Y))
		h.Int64(int64(b.Layer))
		h.Int64(int64(b.Width))
		h.Int64(int64(b.Height))
	}

	for _, sw := range g.switches {
		h.String(sw.Name)
		h.Float32(sw.R)
		h.Float32(sw.Tdel)
		h.Float32(sw.Cinternal)
		h.Int64(boolBits(sw.Buffered, sw.Configurable))
	}
	for _, rc := range g.rc {
		h.Float32(rc.R)
		h.Float32(rc.C)
	}
	for i := range g.nodes {
		n := &g.nodes[i]
		h.Int64(int64(n.Type))
		h.Int64(int64(n.Layer))
		h.Int64(int64(n.XLow))
		h.Int64(int64(n.XHigh))
		h.Int64(int64(n.YLow))
		h.Int64(int64(n.YHigh))
		h.Int64(int64(n.Capacity))
		h.Int64(int64(n.RCIndex))
		h.Int64(boolBits(n.Intra, false))
	}
	for e := range g.edgeSink {
		h.Int64(int64(g.edgeSource[e]))
		h.Int64(int64(g.edgeSink[e]))
		h.Int64(int64(g.edgeSwitch[e]))
	}
	return h.Hex()
}

func boolBits(a, b bool) int64 {
	var v int64
	if a {
		v |= 1
	}
	if b {
		v |= 2
	}
	return v
}
