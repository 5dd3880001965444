package report

import (
	"time"

	"fpgaroute/internal/netrouter"
	"fpgaroute/internal/router"
	"fpgaroute/internal/rrgraph"
)

// DeviceInfo - описание устройства в отчёте
type DeviceInfo struct {
	Width, Height, Layers int
	Nodes, Edges          int
	Fingerprint           string
}

// ConnectionRecord - строка таблицы соединений
type ConnectionRecord struct {
	Net          int
	SinkIndex    int
	Sink         int32
	Criticality  float64
	Status       string
	Mode         string
	Attempts     int
	FromCache    bool
	PathLength   int
	BackwardCost float64
	Delay        float64
	Pushes       uint64
	Pops         uint64
	Duration     time.Duration
}

// HeapRow - операции с очередью по типу узла и классу кластера
type HeapRow struct {
	NodeType string
	Cluster  string
	Pushes   uint64
	Pops     uint64
}

// Run - всё, что попадает в отчёт о прогоне
type Run struct {
	Name    string
	Title   string
	Device  DeviceInfo
	Threads int
	Queue   string
	Pruning string

	Nets           int
	Connections    []ConnectionRecord
	Routed         int
	Unroutable     int
	Retries        int
	CacheHits      int
	HighFanoutNets int
	Fallbacks      int
	Overused       int

	Searches   uint64
	HeapPushes uint64
	HeapPops   uint64
	Heap       []HeapRow

	SearchTime  time.Duration
	Duration    time.Duration
	GeneratedAt time.Time
}

// RouteRate - доля найденных соединений
func (r *Run) RouteRate() float64 {
	if len(r.Connections) == 0 {
		return 0
	}
	return float64(r.Routed) / float64(len(r.Connections))
}

// NewRun собирает отчёт из результатов маршрутизации цепей и статистики роутера
func NewRun(name string, g *rrgraph.Graph, results []*netrouter.NetResult, sum netrouter.Summary, stats router.Stats) *Run {
	grid := g.Grid()
	run := &Run{
		Name: name,
		Device: DeviceInfo{
			Width:       grid.Width,
			Height:      grid.Height,
			Layers:      grid.Layers,
			Nodes:       g.NumNodes(),
			Edges:       g.NumEdges(),
			Fingerprint: g.Fingerprint(),
		},
		Nets:           sum.Nets,
		Routed:         sum.Routed,
		Unroutable:     sum.Unroutable,
		Retries:        sum.Retries,
		CacheHits:      sum.CacheHits,
		HighFanoutNets: sum.HighFanoutNets,
		Fallbacks:      sum.Fallbacks,
		Overused:       sum.Overused,
		Searches:       stats.Searches,
		HeapPushes:     stats.HeapPushes,
		HeapPops:       stats.HeapPops,
		SearchTime:     stats.PathSearchTime,
		Duration:       sum.Duration,
		GeneratedAt:    time.Now(),
	}

	for _, res := range results {
		for _, c := range res.Connections {
			run.Connections = append(run.Connections, ConnectionRecord{
				Net:          c.NetID,
				SinkIndex:    c.SinkIndex,
				Sink:         int32(c.Sink),
				Criticality:  float64(c.Criticality),
				Status:       c.Status.String(),
				Mode:         c.Mode,
				Attempts:     c.Attempts,
				FromCache:    c.FromCache,
				PathLength:   len(c.Nodes),
				BackwardCost: float64(c.BackwardCost),
				Delay:        float64(c.Delay),
				Pushes:       c.Pushes,
				Pops:         c.Pops,
				Duration:     c.Duration,
			})
		}
	}

	// Детальные счётчики есть только при router.detailed_stats
	for t := range stats.Pushes {
		for c := range stats.Pushes[t] {
			if stats.Pushes[t][c] == 0 && stats.Pops[t][c] == 0 {
				continue
			}
			run.Heap = append(run.Heap, HeapRow{
				NodeType: rrgraph.NodeType(t).String(),
				Cluster:  router.ClusterName(c),
				Pushes:   stats.Pushes[t][c],
				Pops:     stats.Pops[t][c],
			})
		}
	}
	return run
}
