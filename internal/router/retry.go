package router

import (
	"context"

	"fpgaroute/internal/rrgraph"
)

// Reasons recorded in Unroutable.
const (
	ReasonNoSource = "no source in route tree"
	ReasonNoPath   = "no path within the full device"
)

// failedSearch decides what a search that did not reach the sink inside bb
// means. Only a search over the whole device is final; anything smaller
// is returned for a retry with a wider box.
func (r *ParallelRouter) failedSearch(ctx context.Context, res *Result, source, sink rrgraph.NodeID, bb rrgraph.BoundingBox) Status {
	if r.g.Grid().IsFullDevice(bb) {
		res.Unroutable = &Unroutable{Source: source, Sink: sink, BB: bb, Reason: ReasonNoPath}
		r.log.InfoContext(ctx, "connection is unroutable", "detail", res.Unroutable.Describe(r.g))
		return StatusUnroutable
	}
	r.log.WarnContext(ctx, "no routing path for connection, leaving unrouted to retry later",
		"sink", sink, "bbox", bb.String())
	return StatusRetry
}

// noSource records a search whose route tree offered no starting point
// inside the box. It is reported as final, never as a retry.
func (r *ParallelRouter) noSource(ctx context.Context, res *Result, source, sink rrgraph.NodeID, bb rrgraph.BoundingBox) Status {
	res.Unroutable = &Unroutable{Source: source, Sink: sink, BB: bb, Reason: ReasonNoSource}
	r.log.InfoContext(ctx, "no source in route tree", "detail", res.Unroutable.Describe(r.g))
	return StatusUnroutable
}
