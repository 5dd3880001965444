package router

import (
	"container/heap"
	"context"
	"fmt"

	"fpgaroute/internal/routetree"
	"fpgaroute/internal/rrgraph"
	"fpgaroute/pkg/apperror"
)

// =============================================================================
// Reference search
// =============================================================================

// ReferencePath is the outcome of ReferenceSearch.
type ReferencePath struct {
	Found        bool
	Nodes        []rrgraph.NodeID
	Edges        []rrgraph.EdgeID
	BackwardCost float32
	// Expanded counts popped entries that were not stale.
	Expanded int
}

// ReferenceSearch runs a single-threaded label-correcting search from the
// route tree to sink inside bb. It uses the same edge costs, seeding rules
// and predecessor tie-break as the parallel router but no lookahead and no
// post-target pruning, and it runs until its queue is empty. On graphs
// where edge costs do not depend on the path taken its result is the
// optimum the parallel router must reproduce.
func ReferenceSearch(ctx context.Context, g *rrgraph.Graph, cong Congestion, tree *routetree.Tree, sink rrgraph.NodeID, cost CostParams, bb rrgraph.BoundingBox, flat bool) (*ReferencePath, error) {
	if g == nil || cong == nil || tree == nil {
		return nil, apperror.NewCritical(apperror.CodeNilInput, "reference search needs a graph, a congestion oracle and a route tree")
	}
	if tree.Graph() != g {
		return nil, apperror.NewCritical(apperror.CodeInvalidRouteTree, "route tree was built on a different graph")
	}
	if !g.HasNode(sink) {
		return nil, apperror.NewCritical(apperror.CodeInvalidTarget,
			fmt.Sprintf("target node %d is not a graph node", sink))
	}
	if err := cost.Validate(); err != nil {
		return nil, err
	}

	s := &refSearch{
		g:        g,
		cost:     costModel{g: g, la: ZeroLookahead{}, cong: cong, params: cost, target: sink},
		target:   sink,
		bb:       bb,
		targetBB: targetBoundingBox(g, sink),
		flat:     flat,
		rec:      make(map[rrgraph.NodeID]NodeState),
	}
	s.seed(tree)
	heap.Init(&s.pq)

	for s.pq.Len() > 0 {
		if err := ctx.Err(); err != nil {
			return nil, apperror.Wrap(err, apperror.CodeTimeout, "reference search interrupted")
		}
		it := heap.Pop(&s.pq).(refItem)
		cur := s.rec[it.node]
		if it.back > cur.Back {
			continue
		}
		s.expanded++
		s.expand(it.node, cur)
	}
	return s.path(tree)
}

type refSearch struct {
	g        *rrgraph.Graph
	cost     costModel
	target   rrgraph.NodeID
	bb       rrgraph.BoundingBox
	targetBB rrgraph.BoundingBox
	flat     bool

	rec      map[rrgraph.NodeID]NodeState
	pq       refHeap
	expanded int
}

func (s *refSearch) record(n rrgraph.NodeID) NodeState {
	if st, ok := s.rec[n]; ok {
		return st
	}
	return unvisited
}

// offer keeps the candidate if it beats the record or wins the tie.
func (s *refSearch) offer(n rrgraph.NodeID, st NodeState) bool {
	best := s.record(n)
	if st.Back > best.Back {
		return false
	}
	if st.Back == best.Back && !preferredEdge(st.Prev, best.Prev) {
		return false
	}
	s.rec[n] = st
	return true
}

func (s *refSearch) seed(tree *routetree.Tree) {
	stack := []*routetree.Node{tree.Root()}
	for len(stack) > 0 {
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if n.ReExpand && s.bb.Contains(s.g.Node(n.RRNode)) {
			back := s.cost.params.Criticality * n.Tdel
			if s.offer(n.RRNode, NodeState{Total: back, Back: back, Prev: rrgraph.NoEdge, RUpstream: n.RUpstream}) {
				s.pq = append(s.pq, refItem{back: back, node: n.RRNode})
			}
		}
		for i := len(n.Children) - 1; i >= 0; i-- {
			child := n.Children[i]
			if s.flat && !s.relevant(child.RRNode) {
				continue
			}
			stack = append(stack, child)
		}
	}
}

func (s *refSearch) relevant(n rrgraph.NodeID) bool {
	node := s.g.Node(n)
	if node.Type != rrgraph.IPin {
		return true
	}
	target := s.g.Node(s.target)
	if node.Layer != target.Layer {
		return false
	}
	grid := s.g.Grid()
	ax, ay := grid.BlockOrigin(int(node.XLow), int(node.YLow), int(node.Layer))
	bx, by := grid.BlockOrigin(int(target.XLow), int(target.YLow), int(target.Layer))
	return ax == bx && ay == by
}

func (s *refSearch) expand(from rrgraph.NodeID, cur NodeState) {
	first, last := s.g.EdgeRange(from)
	for e := first; e < last; e++ {
		to := s.g.EdgeSink(e)
		toNode := s.g.Node(to)
		if !s.bb.Contains(toNode) {
			continue
		}
		if toNode.Type == rrgraph.IPin && !s.targetBB.Encloses(toNode) {
			continue
		}
		cand := s.cost.evaluate(from, cur.Back, cur.RUpstream, e, to)
		if !s.offer(to, NodeState{Total: cand.back, Back: cand.back, Prev: e, RUpstream: cand.rUpstream}) {
			continue
		}
		if to != s.target {
			heap.Push(&s.pq, refItem{back: cand.back, node: to})
		}
	}
}

func (s *refSearch) path(tree *routetree.Tree) (*ReferencePath, error) {
	out := &ReferencePath{Expanded: s.expanded}
	end, ok := s.rec[s.target]
	if !ok {
		return out, nil
	}

	var rev []rrgraph.EdgeID
	n := s.target
	for prev := end.Prev; prev.Valid(); prev = s.record(n).Prev {
		if len(rev) > s.g.NumNodes() {
			return nil, apperror.NewCritical(apperror.CodeInternal, "reference predecessor chain does not terminate")
		}
		rev = append(rev, prev)
		n = s.g.EdgeSource(prev)
	}
	if _, ok := tree.Lookup(n); !ok {
		return nil, apperror.NewCritical(apperror.CodeInternal,
			fmt.Sprintf("reference path starts at node %d, which is not in the route tree", n))
	}

	out.Found = true
	out.BackwardCost = end.Back
	out.Nodes = append(out.Nodes, n)
	for i := len(rev) - 1; i >= 0; i-- {
		out.Edges = append(out.Edges, rev[i])
		out.Nodes = append(out.Nodes, s.g.EdgeSink(rev[i]))
	}
	return out, nil
}

// refItem orders by backward cost, then node id.
type refItem struct {
	back float32
	node rrgraph.NodeID
}

type refHeap []refItem

func (h refHeap) Len() int { return len(h) }

func (h refHeap) Less(i, j int) bool {
	if h[i].back != h[j].back {
		return h[i].back < h[j].back
	}
	return h[i].node < h[j].node
}

func (h refHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *refHeap) Push(x any) { *h = append(*h, x.(refItem)) }

func (h *refHeap) Pop() any {
	old := *h
	it := old[len(old)-1]
	*h = old[:len(old)-1]
	return it
}
