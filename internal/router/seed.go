package router

import (
	"fpgaroute/internal/routetree"
	"fpgaroute/internal/rrgraph"
)

// =============================================================================
// Route-tree seeding
// =============================================================================

// seedTree puts the route tree on the queue in pre-order, parents before
// children. Terminal pins are not seeded. In flat mode the walk does not
// descend into input pins of other blocks.
func (r *ParallelRouter) seedTree(task *searchTask, tree *routetree.Tree, netBB rrgraph.BoundingBox) {
	s := getScratch()
	defer putScratch(s)

	stack := append(s.stack[:0], tree.Root())
	for len(stack) > 0 {
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if n.ReExpand {
			r.seedNode(task, n, netBB)
		}
		for i := len(n.Children) - 1; i >= 0; i-- {
			child := n.Children[i]
			if r.opts.flat && !r.relevantToTarget(child.RRNode, task.target) {
				continue
			}
			stack = append(stack, child)
		}
	}
	s.stack = stack
}

// seedNode offers one route-tree node as a starting point. Its backward
// cost is the delay already accumulated in the tree; it carries no
// congestion cost and no predecessor edge.
func (r *ParallelRouter) seedNode(task *searchTask, n *routetree.Node, netBB rrgraph.BoundingBox) {
	node := r.g.Node(n.RRNode)
	if !netBB.Contains(node) {
		return
	}

	back := task.cost.params.Criticality * n.Tdel
	total := task.cost.totalCost(n.RRNode, back, n.RUpstream)
	next := NodeState{Total: total, Back: back, Prev: rrgraph.NoEdge, RUpstream: n.RUpstream}

	ok := r.state.LockedUpdate(n.RRNode, 0, func(cur NodeState) (NodeState, bool) {
		if task.prune.rejectAgainst(cur, n.RRNode, total, back, rrgraph.NoEdge) {
			return cur, false
		}
		return next, true
	})
	if !ok {
		return
	}
	r.queue.PushUnordered(HeapEntry{Total: total, Node: n.RRNode})
	if r.opts.detailedStats {
		r.counters[0].push(node)
	}
	if r.opts.observer != nil {
		r.opts.observer.OnCommit(0, n.RRNode, next)
		r.opts.observer.OnPush(0, n.RRNode, total)
	}
}

// relevantToTarget reports whether a node may serve as a branch point in
// flat mode: anything but an input pin of a block other than the target's.
func (r *ParallelRouter) relevantToTarget(n, target rrgraph.NodeID) bool {
	node := r.g.Node(n)
	if node.Type != rrgraph.IPin {
		return true
	}
	return r.sameTile(node, r.g.Node(target))
}

func (r *ParallelRouter) sameTile(a, b *rrgraph.Node) bool {
	if a.Layer != b.Layer {
		return false
	}
	grid := r.g.Grid()
	ax, ay := grid.BlockOrigin(int(a.XLow), int(a.YLow), int(a.Layer))
	bx, by := grid.BlockOrigin(int(b.XLow), int(b.YLow), int(b.Layer))
	return ax == bx && ay == by
}

// =============================================================================
// High-fanout seeding
// =============================================================================

// binOrder visits the target bin first, then its neighbours.
var binOrder = [3]int{0, -1, +1}

// seedHighFanout seeds only the routing near the target, found through the
// spatial lookup. When the target's own bin holds enough channel routing on
// the target's layer the scan stops there. It returns the box to search:
// a margin around the seeded routing, or netBB when too little was found
// and the whole tree was seeded instead.
func (r *ParallelRouter) seedHighFanout(task *searchTask, tree *routetree.Tree, netBB rrgraph.BoundingBox, lookup *routetree.SpatialLookup) (rrgraph.BoundingBox, bool) {
	target := r.g.Node(task.target)
	targetLayer := target.Layer
	binX, binY := lookup.BinOf(int(target.XLow), int(target.YLow))

	hfBB := rrgraph.NodeBox(target)
	chanNodes := 0
	sameLayer := false

bins:
	for _, dx := range binOrder {
		for _, dy := range binOrder {
			for _, tn := range lookup.Bin(binX+dx, binY+dy) {
				if !tn.ReExpand {
					continue
				}
				if r.opts.flat && !r.relevantToTarget(tn.RRNode, task.target) {
					continue
				}
				node := r.g.Node(tn.RRNode)
				if !netBB.Contains(node) {
					continue
				}
				if node.Layer == targetLayer {
					sameLayer = true
				}

				r.seedNode(task, tn, netBB)
				hfBB = expandHighFanoutBB(hfBB, netBB, node)
				if node.Type.IsWire() {
					chanNodes++
				}
			}

			if dx == 0 && dy == 0 && chanNodes > r.opts.hfMinNodes && sameLayer {
				break bins
			}
		}
	}

	if chanNodes <= r.opts.hfMinNodes || !sameLayer {
		r.seedTree(task, tree, netBB)
		return netBB, false
	}
	return adjustHighFanoutBB(hfBB, netBB, r.opts.hfMargin), true
}

// expandHighFanoutBB grows bb over the node, clipping x and y to netBB.
func expandHighFanoutBB(bb, netBB rrgraph.BoundingBox, n *rrgraph.Node) rrgraph.BoundingBox {
	bb.XMin = max(netBB.XMin, min(bb.XMin, int(n.XLow)))
	bb.YMin = max(netBB.YMin, min(bb.YMin, int(n.YLow)))
	bb.XMax = min(netBB.XMax, max(bb.XMax, int(n.XHigh)))
	bb.YMax = min(netBB.YMax, max(bb.YMax, int(n.YHigh)))
	bb.LayerMin = min(bb.LayerMin, int(n.Layer))
	bb.LayerMax = max(bb.LayerMax, int(n.Layer))
	return bb
}

// adjustHighFanoutBB adds margin tiles around bb inside netBB and opens
// the layer range to the net's.
func adjustHighFanoutBB(bb, netBB rrgraph.BoundingBox, margin int) rrgraph.BoundingBox {
	bb.XMin = max(netBB.XMin, bb.XMin-margin)
	bb.YMin = max(netBB.YMin, bb.YMin-margin)
	bb.XMax = min(netBB.XMax, bb.XMax+margin)
	bb.YMax = min(netBB.YMax, bb.YMax+margin)
	bb.LayerMin = min(netBB.LayerMin, bb.LayerMin)
	bb.LayerMax = max(netBB.LayerMax, bb.LayerMax)
	return bb
}
