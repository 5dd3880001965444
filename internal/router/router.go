// Package router finds minimum-cost paths from a net's route tree to one
// of its sinks over a routing-resource graph, using a pool of workers that
// drain one shared priority queue.
//
// # Search
//
// Each connection search seeds the queue with the route tree, then every
// worker pops entries, discards stale ones and expands the rest. A
// successor is evaluated without a lock, pre-screened without a lock and
// committed under the successor's stripe lock only if it still improves
// the stored record. The target is committed but never pushed; once it has
// a cost, post-target pruning bounds the remaining work.
//
// # Determinism
//
// The result does not depend on the number of workers or their schedule:
// records only change on strictly lower backward cost or, on equal cost,
// towards the preferred predecessor edge. This holds when edge costs do
// not depend on the path taken, which is the case on graphs with buffered
// switches.
//
// # Thread Safety
//
// A ParallelRouter runs one search at a time; concurrent calls are
// serialized. The graph, route tree, lookahead and congestion oracle are
// read concurrently by the workers and must not change during a call.
//
// # Example Usage
//
//	r, err := router.New(g, router.ZeroLookahead{}, router.NewOccupancy(g), router.WithThreads(4))
//	if err != nil {
//	    return err
//	}
//	defer r.Close()
//
//	res, err := r.RouteConnection(ctx, tree, sink, router.DefaultCostParams(), bb, router.ConnectionParams{})
//	if err != nil {
//	    return err // contract violation
//	}
//	switch res.Status {
//	case router.StatusFound:
//	    tree.AddBranch(res.Attach(), res.Hops())
//	case router.StatusRetry:
//	    // widen the box and try again
//	}
package router

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"

	"fpgaroute/internal/routetree"
	"fpgaroute/internal/rrgraph"
	"fpgaroute/pkg/apperror"
	"fpgaroute/pkg/logger"
	"fpgaroute/pkg/telemetry"
)

// ErrRouterClosed is returned by searches on a closed router.
var ErrRouterClosed = apperror.NewCritical(apperror.CodeRouterClosed, "router is closed")

// ParallelRouter is the connection router. Create it with New.
type ParallelRouter struct {
	g    *rrgraph.Graph
	la   Lookahead
	cong Congestion
	opts options
	log  *slog.Logger

	state    *StateTable
	queue    PriorityQueue
	pool     *workerPool
	counters []workerCounters

	// mu serializes searches and Close.
	mu     sync.Mutex
	gen    uint64
	closed bool

	statsMu sync.Mutex
	stats   Stats
}

// searchRun accumulates the outcome of one public call, which may run
// more than one search.
type searchRun struct {
	res   *Result
	stats Stats
	start time.Time
}

// New creates a router for g and starts its workers.
func New(g *rrgraph.Graph, la Lookahead, cong Congestion, opts ...Option) (*ParallelRouter, error) {
	if g == nil {
		return nil, apperror.NewCritical(apperror.CodeNilInput, "router needs a graph")
	}
	if la == nil || cong == nil {
		return nil, apperror.NewCritical(apperror.CodeNilInput, "router needs a lookahead and a congestion oracle")
	}

	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	r := &ParallelRouter{
		g:        g,
		la:       la,
		cong:     cong,
		opts:     o,
		log:      o.logger(),
		state:    NewStateTable(g.NumNodes(), o.lockStripes, o.threads),
		counters: make([]workerCounters, o.threads),
	}
	r.queue = o.customQueue
	if r.queue == nil {
		r.queue = newQueue(o.queue, o.threads, o.queuesPerThread)
	}
	r.pool = newWorkerPool(o.threads, r.drain)

	if o.metrics != nil {
		o.metrics.SetWorkerThreads(o.threads)
	}
	r.log.Debug("router started",
		"threads", o.threads,
		"queue", o.queue.String(),
		"pruning", o.pruning.String(),
		"nodes", g.NumNodes())
	return r, nil
}

// Threads returns the number of workers, the caller included.
func (r *ParallelRouter) Threads() int { return r.pool.size() }

// Graph returns the graph the router searches.
func (r *ParallelRouter) Graph() *rrgraph.Graph { return r.g }

// =============================================================================
// Public searches
// =============================================================================

// RouteConnection searches from the whole route tree to sink inside bb.
//
// An error is returned only for contract violations (critical severity) or
// a closed router. Failing to find a path is reported in Result.Status.
// Once started, a search runs to exhaustion; ctx carries tracing and
// logging values and is checked only before the search starts.
func (r *ParallelRouter) RouteConnection(ctx context.Context, tree *routetree.Tree, sink rrgraph.NodeID, cost CostParams, bb rrgraph.BoundingBox, conn ConnectionParams) (*Result, error) {
	if err := r.validate(ctx, tree, sink, cost, bb); err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil, ErrRouterClosed
	}

	run := r.begin(ModeNormal, sink, bb)
	ctx, span := telemetry.StartSpan(ctx, telemetry.SpanRouteConnection,
		telemetry.WithAttributes(telemetry.ConnectionAttributes(run.res.SearchID,
			int64(tree.Root().RRNode), int64(sink), bb.String(), ModeNormal, r.Threads())...))
	defer span.End()
	ctx = logger.ContextWithSearchID(ctx, run.res.SearchID)

	status := r.routeFromTree(ctx, run, r.newTask(sink, cost, conn, bb), tree)
	return r.finish(ctx, run, tree, status)
}

// RouteConnectionHighFanout searches from the part of the route tree near
// sink, found through lookup, inside a box localized around that routing.
// When the localized search fails it is repeated once from the whole tree
// inside netBB.
func (r *ParallelRouter) RouteConnectionHighFanout(ctx context.Context, tree *routetree.Tree, sink rrgraph.NodeID, cost CostParams, netBB rrgraph.BoundingBox, lookup *routetree.SpatialLookup, conn ConnectionParams) (*Result, error) {
	if err := r.validate(ctx, tree, sink, cost, netBB); err != nil {
		return nil, err
	}
	if lookup == nil {
		return nil, apperror.NewCritical(apperror.CodeNilInput, "high fanout search needs a spatial lookup")
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil, ErrRouterClosed
	}

	run := r.begin(ModeHighFanout, sink, netBB)
	ctx, span := telemetry.StartSpan(ctx, telemetry.SpanRouteConnection,
		telemetry.WithAttributes(telemetry.ConnectionAttributes(run.res.SearchID,
			int64(tree.Root().RRNode), int64(sink), netBB.String(), ModeHighFanout, r.Threads())...))
	defer span.End()
	ctx = logger.ContextWithSearchID(ctx, run.res.SearchID)

	source := tree.Root().RRNode
	task := r.newTask(sink, cost, conn, netBB)
	hfBB, localized := r.seedHighFanout(task, tree, netBB, lookup)
	task.bb = hfBB
	run.res.HighFanoutBB = hfBB
	run.res.SearchedBB = hfBB

	r.queue.Build()
	if r.queue.Empty() {
		return r.finish(ctx, run, tree, r.noSource(ctx, run.res, source, sink, netBB))
	}

	r.log.DebugContext(ctx, "routing connection",
		"sink", sink, "mode", ModeHighFanout, "bbox", hfBB.String(), "localized", localized)
	r.search(run, task)
	if r.reached(sink) {
		return r.finish(ctx, run, tree, StatusFound)
	}

	r.log.WarnContext(ctx, "no routing path found in high-fanout mode, retrying with full route tree",
		"net", conn.NetID, "sink", sink)
	run.res.FellBack = true
	run.res.Touched += r.state.NumTouched()
	r.state.Reset()
	r.queue.Reset()

	status := r.routeFromTree(ctx, run, r.newTask(sink, cost, conn, netBB), tree)
	return r.finish(ctx, run, tree, status)
}

// FindAllShortestPaths would compute paths to every node in bb. The
// parallel router does not support it.
func (r *ParallelRouter) FindAllShortestPaths(_ context.Context, _ *routetree.Tree, _ CostParams, _ rrgraph.BoundingBox, _ ConnectionParams) ([]NodeState, error) {
	return nil, apperror.NewCritical(apperror.CodeUnimplementedMode,
		"all-shortest-paths search is not supported by the parallel router")
}

// SetRCVEnabled toggles routing cost valleys (hold-time aware delay
// budgets). The parallel router supports only the disabled state.
func (r *ParallelRouter) SetRCVEnabled(enable bool) error {
	if enable {
		return apperror.NewCritical(apperror.CodeUnimplementedMode,
			"routing cost valleys are not supported by the parallel router")
	}
	return nil
}

// Stats returns the counters accumulated since creation or ResetStats.
func (r *ParallelRouter) Stats() Stats {
	r.statsMu.Lock()
	defer r.statsMu.Unlock()
	return r.stats
}

// ResetStats zeroes the accumulated counters.
func (r *ParallelRouter) ResetStats() {
	r.statsMu.Lock()
	r.stats = Stats{}
	r.statsMu.Unlock()
}

// Close stops the workers. Later searches fail with ErrRouterClosed.
func (r *ParallelRouter) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil
	}
	r.closed = true
	r.pool.close()
	return nil
}

// =============================================================================
// Setup
// =============================================================================

func (r *ParallelRouter) validate(ctx context.Context, tree *routetree.Tree, sink rrgraph.NodeID, cost CostParams, bb rrgraph.BoundingBox) error {
	if err := ctx.Err(); err != nil {
		return apperror.Wrap(err, apperror.CodeTimeout, "search not started")
	}
	if tree == nil {
		return apperror.NewCritical(apperror.CodeNilInput, "route tree is nil")
	}
	if tree.Graph() != r.g {
		return apperror.NewCritical(apperror.CodeInvalidRouteTree, "route tree was built on a different graph")
	}
	if !r.g.HasNode(sink) {
		return apperror.NewCritical(apperror.CodeInvalidTarget,
			fmt.Sprintf("target node %d is not a graph node", sink)).WithDetails("sink", int32(sink))
	}
	if !bb.Valid() {
		return apperror.NewCritical(apperror.CodeInvalidBoundingBox,
			fmt.Sprintf("bounding box %s is empty", bb))
	}
	if err := cost.Validate(); err != nil {
		return apperror.Wrap(err, apperror.CodeInvalidCostParams, "invalid cost parameters").
			WithSeverity(apperror.SeverityCritical)
	}
	return nil
}

func (r *ParallelRouter) begin(mode string, sink rrgraph.NodeID, bb rrgraph.BoundingBox) *searchRun {
	return &searchRun{
		res: &Result{
			SearchID:   uuid.NewString(),
			Mode:       mode,
			Sink:       sink,
			SearchedBB: bb,
		},
		start: time.Now(),
	}
}

// newTask builds the immutable description of one search.
func (r *ParallelRouter) newTask(sink rrgraph.NodeID, cost CostParams, conn ConnectionParams, bb rrgraph.BoundingBox) *searchTask {
	task := &searchTask{
		target:   sink,
		bb:       bb,
		targetBB: targetBoundingBox(r.g, sink),
		cost: costModel{
			g:      r.g,
			la:     r.la,
			cong:   r.cong,
			params: cost,
			target: sink,
		},
		prune: pruner{
			mode:   r.opts.pruning,
			params: cost,
			target: sink,
			state:  r.state,
		},
	}
	if r.opts.chokePoints && r.opts.flat {
		task.cost.chokePoints = conn.ChokePoints
	}
	return task
}

// targetBoundingBox is the region an input pin must lie in to lead to the
// target: the whole block for a SINK, the node itself otherwise.
func targetBoundingBox(g *rrgraph.Graph, sink rrgraph.NodeID) rrgraph.BoundingBox {
	n := g.Node(sink)
	if n.Type == rrgraph.Sink {
		return g.Grid().TileBB(int(n.XLow), int(n.YLow), int(n.Layer))
	}
	return rrgraph.NodeBox(n)
}

// routeFromTree seeds the whole tree and searches inside task.bb.
func (r *ParallelRouter) routeFromTree(ctx context.Context, run *searchRun, task *searchTask, tree *routetree.Tree) Status {
	source := tree.Root().RRNode
	r.seedTree(task, tree, task.bb)
	r.queue.Build()
	if r.queue.Empty() {
		return r.noSource(ctx, run.res, source, task.target, task.bb)
	}

	r.log.DebugContext(ctx, "routing connection",
		"sink", task.target, "mode", run.res.Mode, "bbox", task.bb.String())
	r.search(run, task)
	run.res.SearchedBB = task.bb
	if !r.reached(task.target) {
		return r.failedSearch(ctx, run.res, source, task.target, task.bb)
	}
	return StatusFound
}

func (r *ParallelRouter) reached(n rrgraph.NodeID) bool {
	return !math.IsInf(float64(r.state.Total(n)), 1)
}

// =============================================================================
// Drain
// =============================================================================

// search releases the workers on a seeded queue and collects the counters.
func (r *ParallelRouter) search(run *searchRun, task *searchTask) {
	begin := time.Now()
	r.gen++
	task.gen = r.gen
	r.pool.execute(task)

	pushes, pops := r.queue.Counts()
	run.res.Pushes += pushes
	run.res.Pops += pops
	run.stats.HeapPushes += pushes
	run.stats.HeapPops += pops
	r.queue.Reset()
	for i := range r.counters {
		r.counters[i].drainInto(&run.stats)
	}
	run.stats.PathSearchTime += time.Since(begin)
}

// drain is the body of every worker.
func (r *ParallelRouter) drain(task *searchTask, worker int) {
	for {
		e, ok := r.queue.TryPop()
		if !ok {
			return
		}
		r.process(task, worker, e)
		r.queue.Done()
	}
}

func (r *ParallelRouter) process(task *searchTask, worker int, e HeapEntry) {
	if r.opts.detailedStats {
		r.counters[worker].pop(r.g.Node(e.Node))
	}
	if task.prune.skipStalePop(e.Node, e.Total, r.state.Back(e.Node)) {
		return
	}
	cur := r.state.Snapshot(e.Node)
	// The record may have improved since the first check.
	if task.prune.skipStalePop(e.Node, e.Total, cur.Back) {
		return
	}
	r.expand(task, worker, e.Node, cur)
}

// expand offers every successor of from that lies in the search box.
func (r *ParallelRouter) expand(task *searchTask, worker int, from rrgraph.NodeID, cur NodeState) {
	first, last := r.g.EdgeRange(from)
	for e := first; e < last; e++ {
		to := r.g.EdgeSink(e)
		toNode := r.g.Node(to)
		if !task.bb.Contains(toNode) {
			continue
		}
		// Input pins of other blocks cannot lead to the target.
		if toNode.Type == rrgraph.IPin && !task.targetBB.Encloses(toNode) {
			continue
		}
		r.relax(task, worker, from, cur, e, to, toNode)
	}
}

// relax evaluates one edge and commits the candidate if it survives
// pruning under the successor's lock.
func (r *ParallelRouter) relax(task *searchTask, worker int, from rrgraph.NodeID, cur NodeState, e rrgraph.EdgeID, to rrgraph.NodeID, toNode *rrgraph.Node) {
	cand := task.cost.evaluate(from, cur.Back, cur.RUpstream, e, to)
	if task.prune.reject(to, cand.total, cand.back, e) {
		return
	}

	next := NodeState{Total: cand.total, Back: cand.back, Prev: e, RUpstream: cand.rUpstream}
	committed := r.state.LockedUpdate(to, worker, func(best NodeState) (NodeState, bool) {
		if task.prune.rejectAgainst(best, to, cand.total, cand.back, e) {
			return best, false
		}
		return next, true
	})
	if !committed {
		return
	}
	if r.opts.observer != nil {
		r.opts.observer.OnCommit(worker, to, next)
	}
	if to == task.target {
		return
	}

	r.queue.Push(HeapEntry{Total: cand.total, Node: to})
	if r.opts.detailedStats {
		r.counters[worker].push(toNode)
	}
	if r.opts.observer != nil {
		r.opts.observer.OnPush(worker, to, cand.total)
	}
}

// =============================================================================
// Result
// =============================================================================

// finish turns the final state into a Result, resets the per-search state
// and records counters, metrics and trace attributes.
func (r *ParallelRouter) finish(ctx context.Context, run *searchRun, tree *routetree.Tree, status Status) (*Result, error) {
	res := run.res
	res.Status = status
	res.Touched += r.state.NumTouched()

	var err error
	if status == StatusFound {
		err = r.extract(res, tree)
	}
	r.state.Reset()
	r.queue.Reset()
	if err != nil {
		telemetry.SetError(ctx, err)
		return nil, err
	}
	res.Duration = time.Since(run.start)

	run.stats.Searches = 1
	switch status {
	case StatusRetry:
		run.stats.Retries = 1
	case StatusUnroutable:
		run.stats.Unroutable = 1
	}
	if res.FellBack {
		run.stats.HighFanoutFallbacks = 1
	}
	r.statsMu.Lock()
	r.stats.Add(run.stats)
	r.statsMu.Unlock()

	if m := r.opts.metrics; m != nil {
		m.RecordConnection(res.Mode, status.String(), res.Duration, res.Touched)
		if status == StatusRetry {
			m.RecordRetry()
		}
		if res.FellBack {
			m.RecordHighFanoutFallback()
		}
		run.stats.Export(m)
	}

	telemetry.SetAttributes(ctx, telemetry.OutcomeAttributes(status.String(),
		res.Pushes, res.Pops, res.Touched, len(res.Nodes), float64(res.BackwardCost))...)
	if res.Unroutable != nil {
		telemetry.RecordError(ctx, res.Unroutable.Err())
	}
	return res, nil
}

// extract follows predecessor edges from the sink back to the route tree.
func (r *ParallelRouter) extract(res *Result, tree *routetree.Tree) error {
	s := getScratch()
	defer putScratch(s)

	rev := s.edges[:0]
	n := res.Sink
	for {
		prev := r.state.Prev(n)
		if !prev.Valid() {
			break
		}
		if len(rev) > r.g.NumNodes() {
			return apperror.NewCritical(apperror.CodeInternal,
				fmt.Sprintf("predecessor chain of sink %d does not terminate", res.Sink))
		}
		rev = append(rev, prev)
		n = r.g.EdgeSource(prev)
	}
	s.edges = rev

	attach, ok := tree.Lookup(n)
	if !ok {
		return apperror.NewCritical(apperror.CodeInternal,
			fmt.Sprintf("path to sink %d starts at node %d, which is not in the route tree", res.Sink, n))
	}

	res.Nodes = make([]rrgraph.NodeID, 0, len(rev)+1)
	res.Edges = make([]rrgraph.EdgeID, 0, len(rev))
	res.hops = make([]routetree.Hop, 0, len(rev))
	res.Nodes = append(res.Nodes, n)

	tdel := attach.Tdel
	from := n
	for i := len(rev) - 1; i >= 0; i-- {
		e := rev[i]
		to := r.g.EdgeSink(e)
		rUp := r.state.load(to).RUpstream
		tdel += edgeDelay(r.g.Switch(r.g.EdgeSwitch(e)), r.g.RC(to), r.g.RC(from).R, rUp)

		res.Nodes = append(res.Nodes, to)
		res.Edges = append(res.Edges, e)
		res.hops = append(res.hops, routetree.Hop{Node: to, Edge: e, RUpstream: rUp, Tdel: tdel})
		from = to
	}

	st := r.state.load(res.Sink)
	res.BackwardCost = st.Back
	res.TotalCost = st.Total
	res.RUpstream = st.RUpstream
	return nil
}
