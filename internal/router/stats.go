package router

import (
	"time"

	"fpgaroute/internal/rrgraph"
	"fpgaroute/pkg/metrics"
)

// Cluster classes of the detailed counters.
const (
	InterCluster = 0
	IntraCluster = 1
)

var clusterNames = [2]string{"inter", "intra"}

// ClusterName labels a cluster class in reports and metrics.
func ClusterName(class int) string { return clusterNames[class] }

// Stats aggregates search counters. The per-type arrays are filled only
// with detailed stats enabled.
type Stats struct {
	Searches   uint64
	HeapPushes uint64
	HeapPops   uint64

	Pushes [rrgraph.NumNodeTypes][2]uint64
	Pops   [rrgraph.NumNodeTypes][2]uint64

	Retries             uint64
	Unroutable          uint64
	HighFanoutFallbacks uint64

	PathSearchTime time.Duration
}

// Add accumulates o into s.
func (s *Stats) Add(o Stats) {
	s.Searches += o.Searches
	s.HeapPushes += o.HeapPushes
	s.HeapPops += o.HeapPops
	for t := range s.Pushes {
		for c := range s.Pushes[t] {
			s.Pushes[t][c] += o.Pushes[t][c]
			s.Pops[t][c] += o.Pops[t][c]
		}
	}
	s.Retries += o.Retries
	s.Unroutable += o.Unroutable
	s.HighFanoutFallbacks += o.HighFanoutFallbacks
	s.PathSearchTime += o.PathSearchTime
}

// Detailed reports whether any per-type counter is set.
func (s *Stats) Detailed() bool {
	for t := range s.Pushes {
		for c := range s.Pushes[t] {
			if s.Pushes[t][c] != 0 || s.Pops[t][c] != 0 {
				return true
			}
		}
	}
	return false
}

// ClusterTotals sums pushes and pops of one cluster class.
func (s *Stats) ClusterTotals(class int) (pushes, pops uint64) {
	for t := range s.Pushes {
		pushes += s.Pushes[t][class]
		pops += s.Pops[t][class]
	}
	return pushes, pops
}

// Export adds the heap counters to Prometheus. Call it with per-search
// deltas, not with running totals.
func (s *Stats) Export(m *metrics.Metrics) {
	if m == nil {
		return
	}
	if !s.Detailed() {
		m.RecordHeapOps("all", "all", s.HeapPushes, s.HeapPops)
		return
	}
	for t := range s.Pushes {
		for c := range s.Pushes[t] {
			if s.Pushes[t][c] == 0 && s.Pops[t][c] == 0 {
				continue
			}
			m.RecordHeapOps(rrgraph.NodeType(t).String(), clusterNames[c], s.Pushes[t][c], s.Pops[t][c])
		}
	}
}

// workerCounters are written only by their worker and read after the
// search joins.
type workerCounters struct {
	pushes [rrgraph.NumNodeTypes][2]uint64
	pops   [rrgraph.NumNodeTypes][2]uint64
	_      [64]byte
}

func clusterOf(n *rrgraph.Node) int {
	if n.Intra {
		return IntraCluster
	}
	return InterCluster
}

func (c *workerCounters) push(n *rrgraph.Node) { c.pushes[n.Type][clusterOf(n)]++ }

func (c *workerCounters) pop(n *rrgraph.Node) { c.pops[n.Type][clusterOf(n)]++ }

func (c *workerCounters) drainInto(s *Stats) {
	for t := range c.pushes {
		for k := range c.pushes[t] {
			s.Pushes[t][k] += c.pushes[t][k]
			s.Pops[t][k] += c.pops[t][k]
		}
	}
	*c = workerCounters{}
}
