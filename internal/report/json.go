package report

import (
	"context"
	"encoding/json"
	"time"
)

// JSONGenerator генератор JSON отчётов для внешней диагностики
type JSONGenerator struct{}

// NewJSONGenerator создаёт новый генератор
func NewJSONGenerator() *JSONGenerator {
	return &JSONGenerator{}
}

// Format возвращает формат генератора
func (g *JSONGenerator) Format() string { return FormatJSON }

// JSONReport структура JSON отчёта
type JSONReport struct {
	Metadata    JSONMetadata      `json:"metadata"`
	Device      JSONDevice        `json:"device"`
	Router      JSONRouter        `json:"router"`
	Summary     JSONSummary       `json:"summary"`
	Heap        []JSONHeapRow     `json:"heap,omitempty"`
	Connections []*JSONConnection `json:"connections,omitempty"`
}

type JSONMetadata struct {
	Title       string `json:"title"`
	Name        string `json:"name"`
	GeneratedAt string `json:"generatedAt"`
	Version     string `json:"version"`
}

type JSONDevice struct {
	Width       int    `json:"width"`
	Height      int    `json:"height"`
	Layers      int    `json:"layers"`
	Nodes       int    `json:"nodes"`
	Edges       int    `json:"edges"`
	Fingerprint string `json:"fingerprint"`
}

type JSONRouter struct {
	Threads int    `json:"threads"`
	Queue   string `json:"queue,omitempty"`
	Pruning string `json:"pruning,omitempty"`
}

type JSONSummary struct {
	Nets           int     `json:"nets"`
	Connections    int     `json:"connections"`
	Routed         int     `json:"routed"`
	Unroutable     int     `json:"unroutable"`
	RouteRate      float64 `json:"routeRate"`
	Retries        int     `json:"retries"`
	CacheHits      int     `json:"cacheHits"`
	HighFanoutNets int     `json:"highFanoutNets"`
	Fallbacks      int     `json:"fallbacks"`
	Overused       int     `json:"overused"`
	Searches       uint64  `json:"searches"`
	HeapPushes     uint64  `json:"heapPushes"`
	HeapPops       uint64  `json:"heapPops"`
	SearchTimeMs   float64 `json:"searchTimeMs"`
	DurationMs     float64 `json:"durationMs"`
}

type JSONHeapRow struct {
	NodeType string `json:"nodeType"`
	Cluster  string `json:"cluster"`
	Pushes   uint64 `json:"pushes"`
	Pops     uint64 `json:"pops"`
}

type JSONConnection struct {
	Net          int     `json:"net"`
	SinkIndex    int     `json:"sinkIndex"`
	Sink         int32   `json:"sink"`
	Criticality  float64 `json:"criticality"`
	Status       string  `json:"status"`
	Mode         string  `json:"mode"`
	Attempts     int     `json:"attempts"`
	FromCache    bool    `json:"fromCache"`
	PathLength   int     `json:"pathLength"`
	BackwardCost float64 `json:"backwardCost"`
	Delay        float64 `json:"delay"`
	Pushes       uint64  `json:"pushes"`
	Pops         uint64  `json:"pops"`
	DurationMs   float64 `json:"durationMs"`
}

// Generate генерирует JSON отчёт
func (g *JSONGenerator) Generate(ctx context.Context, run *Run) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	report := JSONReport{
		Metadata: JSONMetadata{
			Title:       title(run),
			Name:        run.Name,
			GeneratedAt: run.GeneratedAt.Format(time.RFC3339),
			Version:     "1.0",
		},
		Device: JSONDevice{
			Width:       run.Device.Width,
			Height:      run.Device.Height,
			Layers:      run.Device.Layers,
			Nodes:       run.Device.Nodes,
			Edges:       run.Device.Edges,
			Fingerprint: run.Device.Fingerprint,
		},
		Router: JSONRouter{
			Threads: run.Threads,
			Queue:   run.Queue,
			Pruning: run.Pruning,
		},
		Summary: JSONSummary{
			Nets:           run.Nets,
			Connections:    len(run.Connections),
			Routed:         run.Routed,
			Unroutable:     run.Unroutable,
			RouteRate:      run.RouteRate(),
			Retries:        run.Retries,
			CacheHits:      run.CacheHits,
			HighFanoutNets: run.HighFanoutNets,
			Fallbacks:      run.Fallbacks,
			Overused:       run.Overused,
			Searches:       run.Searches,
			HeapPushes:     run.HeapPushes,
			HeapPops:       run.HeapPops,
			SearchTimeMs:   milliseconds(run.SearchTime),
			DurationMs:     milliseconds(run.Duration),
		},
	}

	for _, h := range run.Heap {
		report.Heap = append(report.Heap, JSONHeapRow(h))
	}

	for _, c := range run.Connections {
		report.Connections = append(report.Connections, &JSONConnection{
			Net:          c.Net,
			SinkIndex:    c.SinkIndex,
			Sink:         c.Sink,
			Criticality:  c.Criticality,
			Status:       c.Status,
			Mode:         c.Mode,
			Attempts:     c.Attempts,
			FromCache:    c.FromCache,
			PathLength:   c.PathLength,
			BackwardCost: c.BackwardCost,
			Delay:        c.Delay,
			Pushes:       c.Pushes,
			Pops:         c.Pops,
			DurationMs:   milliseconds(c.Duration),
		})
	}

	return json.MarshalIndent(report, "", "  ")
}

func milliseconds(d time.Duration) float64 {
	return float64(d.Microseconds()) / 1000
}
