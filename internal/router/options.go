package router

import (
	"log/slog"
	"runtime"

	"fpgaroute/internal/rrgraph"
	"fpgaroute/pkg/logger"
	"fpgaroute/pkg/metrics"
)

// Observer receives search events. Calls come from worker goroutines
// concurrently and must not block.
type Observer interface {
	// OnPush is called for every entry put on the queue, seeds included.
	OnPush(worker int, node rrgraph.NodeID, total float32)
	// OnCommit is called when a node's record is replaced.
	OnCommit(worker int, node rrgraph.NodeID, state NodeState)
}

type options struct {
	threads         int
	queue           QueueKind
	queuesPerThread int
	customQueue     PriorityQueue
	pruning         PruningMode
	lockStripes     int
	hfMinNodes      int
	hfMargin        int
	detailedStats   bool
	flat            bool
	chokePoints     bool
	log             *slog.Logger
	metrics         *metrics.Metrics
	observer        Observer
}

func defaultOptions() options {
	return options{
		threads:         runtime.NumCPU(),
		queue:           QueueBinary,
		queuesPerThread: 2,
		pruning:         PruneDeterministic,
		hfMinNodes:      2,
		hfMargin:        3,
	}
}

// Option configures a ParallelRouter.
type Option func(*options)

// WithThreads sets the number of search workers, the calling goroutine included.
func WithThreads(n int) Option {
	return func(o *options) { o.threads = max(n, 1) }
}

// WithQueue selects the built-in queue implementation.
func WithQueue(kind QueueKind) Option {
	return func(o *options) { o.queue = kind }
}

// WithQueuesPerThread sets the heap count per worker of the multi-queue.
func WithQueuesPerThread(n int) Option {
	return func(o *options) { o.queuesPerThread = max(n, 1) }
}

// WithCustomQueue replaces the built-in queue.
func WithCustomQueue(q PriorityQueue) Option {
	return func(o *options) { o.customQueue = q }
}

// WithPruning selects deterministic or relaxed tie handling.
func WithPruning(mode PruningMode) Option {
	return func(o *options) { o.pruning = mode }
}

// WithLockStripes bounds the lock table; 0 gives each node its own lock.
func WithLockStripes(n int) Option {
	return func(o *options) { o.lockStripes = n }
}

// WithHighFanout sets the channel-node count the target bin must exceed
// and the margin added around localized routing.
func WithHighFanout(minNodes, margin int) Option {
	return func(o *options) {
		o.hfMinNodes = max(minNodes, 0)
		o.hfMargin = max(margin, 0)
	}
}

// WithDetailedStats enables per node type and cluster class counters.
func WithDetailedStats(on bool) Option {
	return func(o *options) { o.detailedStats = on }
}

// WithFlat enables flat routing: intra-cluster pins of other blocks are
// not used as branch points.
func WithFlat(on bool) Option {
	return func(o *options) { o.flat = on }
}

// WithChokePoints enables choke-point discounting of input pins. It has an
// effect only together with WithFlat.
func WithChokePoints(on bool) Option {
	return func(o *options) { o.chokePoints = on }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.log = l }
}

// WithMetrics exports per-search counters to m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(o *options) { o.metrics = m }
}

// WithObserver installs a search observer.
func WithObserver(obs Observer) Option {
	return func(o *options) { o.observer = obs }
}

func (o *options) logger() *slog.Logger {
	if o.log != nil {
		return logger.WithSearchContext(o.log)
	}
	return logger.WithComponent("router")
}
