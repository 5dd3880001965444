package router

import (
	"fmt"
	"time"

	"fpgaroute/internal/routetree"
	"fpgaroute/internal/rrgraph"
	"fpgaroute/pkg/apperror"
)

// Status is the outcome of a connection search.
type Status int

const (
	// StatusFound means a path into the sink was found.
	StatusFound Status = iota
	// StatusRetry means no path exists inside the bounding box, which was
	// smaller than the device; retry with a wider box.
	StatusRetry
	// StatusUnroutable means no path exists at all, or the route tree
	// offered no starting point.
	StatusUnroutable
)

func (s Status) String() string {
	switch s {
	case StatusFound:
		return "found"
	case StatusRetry:
		return "retry"
	case StatusUnroutable:
		return "unroutable"
	default:
		return fmt.Sprintf("Status(%d)", int(s))
	}
}

// Mode labels how the search was seeded.
const (
	ModeNormal     = "normal"
	ModeHighFanout = "high_fanout"
)

// Unroutable describes a connection the search could not route.
type Unroutable struct {
	Source rrgraph.NodeID
	Sink   rrgraph.NodeID
	BB     rrgraph.BoundingBox
	Reason string
}

// Describe formats the failure with the location of both endpoints.
func (u *Unroutable) Describe(g *rrgraph.Graph) string {
	return fmt.Sprintf("cannot route from %s to %s within %s: %s",
		describeNode(g, u.Source), describeNode(g, u.Sink), u.BB, u.Reason)
}

// Err converts the failure into a warning-severity error for callers that
// propagate it as one.
func (u *Unroutable) Err() error {
	return apperror.NewWarning(apperror.CodeUnroutable,
		fmt.Sprintf("no path from node %d to node %d: %s", u.Source, u.Sink, u.Reason)).
		WithDetails("source", int32(u.Source)).
		WithDetails("sink", int32(u.Sink)).
		WithDetails("bbox", u.BB.String())
}

func describeNode(g *rrgraph.Graph, n rrgraph.NodeID) string {
	if g == nil || !g.HasNode(n) {
		return fmt.Sprintf("node %d", n)
	}
	node := g.Node(n)
	return fmt.Sprintf("%s %d at (%d,%d)..(%d,%d) layer %d",
		node.Type, n, node.XLow, node.YLow, node.XHigh, node.YHigh, node.Layer)
}

// Result is the outcome of one connection search.
type Result struct {
	Status   Status
	SearchID string
	Mode     string

	Sink rrgraph.NodeID
	// Nodes runs from the route-tree node the path leaves to the sink;
	// Edges[i] joins Nodes[i] to Nodes[i+1].
	Nodes []rrgraph.NodeID
	Edges []rrgraph.EdgeID

	BackwardCost float32
	TotalCost    float32
	RUpstream    float32

	hops []routetree.Hop

	// SearchedBB is the box of the last search run; for high fanout it is
	// the localized box unless the search fell back.
	SearchedBB   rrgraph.BoundingBox
	HighFanoutBB rrgraph.BoundingBox
	// FellBack is set when a high fanout search was repeated on the full tree.
	FellBack bool

	Pushes   uint64
	Pops     uint64
	Touched  int
	Duration time.Duration

	Unroutable *Unroutable
}

// Found reports whether a path was found.
func (r *Result) Found() bool { return r.Status == StatusFound }

// Attach returns the route-tree node the path branches from.
func (r *Result) Attach() rrgraph.NodeID {
	if len(r.Nodes) == 0 {
		return rrgraph.NoNode
	}
	return r.Nodes[0]
}

// Hops returns the new branch for routetree.Tree.AddBranch, with the
// upstream resistance and accumulated delay of every new node.
func (r *Result) Hops() []routetree.Hop {
	return r.hops
}
