// Package routetree holds the partial routing of one net: a tree of routing
// resources rooted at the net's SOURCE, with the upstream resistance and
// Elmore delay accumulated along every branch.
//
// A Tree is written by one goroutine (the net router between connection
// searches) and read concurrently by search workers while a search runs.
// It is never modified during a search.
package routetree

import (
	"fmt"

	"fpgaroute/internal/rrgraph"
	"fpgaroute/pkg/apperror"
	"fpgaroute/pkg/cache"
)

// Node is one routing resource in the tree.
type Node struct {
	RRNode   rrgraph.NodeID
	Parent   *Node
	Children []*Node
	// Edge is the graph edge from Parent into this node; NoEdge for the root.
	Edge rrgraph.EdgeID

	RUpstream float32
	Tdel      float32

	// ReExpand is false for terminal pins, which may end a branch but must
	// not be used as an intermediate hop by a later connection.
	ReExpand bool
}

// Hop is one step of a found path, in source-to-sink order.
type Hop struct {
	Node      rrgraph.NodeID
	Edge      rrgraph.EdgeID
	RUpstream float32
	Tdel      float32
}

// Tree is the route tree of one net.
type Tree struct {
	g    *rrgraph.Graph
	root *Node
	byRR map[rrgraph.NodeID]*Node
}

// New creates a tree containing only root.
func New(g *rrgraph.Graph, root rrgraph.NodeID, rUpstream, tdel float32) (*Tree, error) {
	if g == nil {
		return nil, apperror.New(apperror.CodeNilInput, "route tree needs a graph")
	}
	if !g.HasNode(root) {
		return nil, apperror.NewCritical(apperror.CodeInvalidRouteTree,
			fmt.Sprintf("route tree root %d is not a graph node", root))
	}
	rt := &Node{
		RRNode:    root,
		Edge:      rrgraph.NoEdge,
		RUpstream: rUpstream,
		Tdel:      tdel,
		ReExpand:  reExpand(g.Node(root).Type),
	}
	return &Tree{
		g:    g,
		root: rt,
		byRR: map[rrgraph.NodeID]*Node{root: rt},
	}, nil
}

func reExpand(t rrgraph.NodeType) bool {
	return t != rrgraph.IPin && t != rrgraph.Sink
}

// Root returns the tree root.
func (t *Tree) Root() *Node { return t.root }

// Graph returns the graph the tree was built on.
func (t *Tree) Graph() *rrgraph.Graph { return t.g }

// Len returns the number of nodes in the tree.
func (t *Tree) Len() int { return len(t.byRR) }

// Lookup finds the tree node for a graph node.
func (t *Tree) Lookup(n rrgraph.NodeID) (*Node, bool) {
	node, ok := t.byRR[n]
	return node, ok
}

// Contains reports whether a graph node is part of the tree.
func (t *Tree) Contains(n rrgraph.NodeID) bool {
	_, ok := t.byRR[n]
	return ok
}

// AddBranch attaches a chain of hops below attachTo. The first hop's edge
// must leave attachTo. It returns the new tree nodes in hop order.
func (t *Tree) AddBranch(attachTo rrgraph.NodeID, hops []Hop) ([]*Node, error) {
	parent, ok := t.byRR[attachTo]
	if !ok {
		return nil, apperror.Newf(apperror.CodeInvalidRouteTree, "attach point %d is not in the route tree", attachTo)
	}

	prev := attachTo
	for i, h := range hops {
		if t.byRR[h.Node] != nil {
			return nil, apperror.Newf(apperror.CodeInvalidRouteTree, "hop %d: node %d is already routed", i, h.Node)
		}
		if !h.Edge.Valid() || t.g.EdgeSource(h.Edge) != prev || t.g.EdgeSink(h.Edge) != h.Node {
			return nil, apperror.Newf(apperror.CodeInvalidRouteTree, "hop %d: edge %d does not join %d to %d", i, h.Edge, prev, h.Node)
		}
		prev = h.Node
	}

	added := make([]*Node, 0, len(hops))
	for _, h := range hops {
		child := &Node{
			RRNode:    h.Node,
			Parent:    parent,
			Edge:      h.Edge,
			RUpstream: h.RUpstream,
			Tdel:      h.Tdel,
			ReExpand:  reExpand(t.g.Node(h.Node).Type),
		}
		parent.Children = append(parent.Children, child)
		t.byRR[h.Node] = child
		added = append(added, child)
		parent = child
	}
	return added, nil
}

// Nodes returns every tree node in pre-order, parents before children and
// children in insertion order.
func (t *Tree) Nodes() []*Node {
	out := make([]*Node, 0, len(t.byRR))
	stack := []*Node{t.root}
	for len(stack) > 0 {
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		out = append(out, n)
		for i := len(n.Children) - 1; i >= 0; i-- {
			stack = append(stack, n.Children[i])
		}
	}
	return out
}

// BoundingBox is the region spanned by the routing so far. A wire crossing
// the boundary counts as inside, so the low bounds use the far end of each
// node and the high bounds its near end.
func (t *Tree) BoundingBox() rrgraph.BoundingBox {
	grid := t.g.Grid()
	bb := rrgraph.BoundingBox{
		XMin: grid.Width - 1, YMin: grid.Height - 1, LayerMin: grid.Layers - 1,
	}
	for n := range t.byRR {
		node := t.g.Node(n)
		bb.XMin = min(bb.XMin, int(node.XHigh))
		bb.YMin = min(bb.YMin, int(node.YHigh))
		bb.LayerMin = min(bb.LayerMin, int(node.Layer))
		bb.XMax = max(bb.XMax, int(node.XLow))
		bb.YMax = max(bb.YMax, int(node.YLow))
		bb.LayerMax = max(bb.LayerMax, int(node.Layer))
	}
	// A lone long wire leaves the box inverted.
	if bb.XMin > bb.XMax {
		bb.XMin, bb.XMax = bb.XMax, bb.XMin
	}
	if bb.YMin > bb.YMax {
		bb.YMin, bb.YMax = bb.YMax, bb.YMin
	}
	return bb
}

// Fingerprint identifies the tree shape and the electrical values seeded
// from it.
func (t *Tree) Fingerprint() string {
	h := cache.NewHasher()
	for _, n := range t.Nodes() {
		h.Int64(int64(n.RRNode))
		h.Int64(int64(n.Edge))
		h.Float32(n.RUpstream)
		h.Float32(n.Tdel)
	}
	return h.Hex()
}

// Path returns the graph nodes from the root down to n.
func (t *Tree) Path(n rrgraph.NodeID) []rrgraph.NodeID {
	node, ok := t.byRR[n]
	if !ok {
		return nil
	}
	var rev []rrgraph.NodeID
	for ; node != nil; node = node.Parent {
		rev = append(rev, node.RRNode)
	}
	for i, j := 0, len(rev)-1; i < j; i, j = i+1, j-1 {
		rev[i], rev[j] = rev[j], rev[i]
	}
	return rev
}
