package metrics

import (
	"runtime"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// RuntimeCollector собирает метрики runtime на момент scrape
type RuntimeCollector struct {
	goroutines *prometheus.Desc
	heapAlloc  *prometheus.Desc
	heapSys    *prometheus.Desc
	gcPause    *prometheus.Desc
	gcRuns     *prometheus.Desc
	gomaxprocs *prometheus.Desc
}

// NewRuntimeCollector создаёт новый коллектор runtime метрик
func NewRuntimeCollector(namespace, subsystem string) *RuntimeCollector {
	desc := func(name, help string) *prometheus.Desc {
		return prometheus.NewDesc(prometheus.BuildFQName(namespace, subsystem, name), help, nil, nil)
	}
	return &RuntimeCollector{
		goroutines: desc("runtime_goroutines", "Number of goroutines"),
		heapAlloc:  desc("runtime_heap_alloc_bytes", "Heap bytes allocated and still in use"),
		heapSys:    desc("runtime_heap_sys_bytes", "Heap bytes obtained from system"),
		gcPause:    desc("runtime_gc_last_pause_seconds", "Last GC pause duration"),
		gcRuns:     desc("runtime_gc_runs_total", "Total number of completed GC cycles"),
		gomaxprocs: desc("runtime_gomaxprocs", "Current GOMAXPROCS"),
	}
}

// Describe implements prometheus.Collector
func (c *RuntimeCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.goroutines
	ch <- c.heapAlloc
	ch <- c.heapSys
	ch <- c.gcPause
	ch <- c.gcRuns
	ch <- c.gomaxprocs
}

// Collect implements prometheus.Collector
func (c *RuntimeCollector) Collect(ch chan<- prometheus.Metric) {
	var stats runtime.MemStats
	runtime.ReadMemStats(&stats)

	ch <- prometheus.MustNewConstMetric(c.goroutines, prometheus.GaugeValue, float64(runtime.NumGoroutine()))
	ch <- prometheus.MustNewConstMetric(c.heapAlloc, prometheus.GaugeValue, float64(stats.HeapAlloc))
	ch <- prometheus.MustNewConstMetric(c.heapSys, prometheus.GaugeValue, float64(stats.HeapSys))
	ch <- prometheus.MustNewConstMetric(c.gcRuns, prometheus.CounterValue, float64(stats.NumGC))
	ch <- prometheus.MustNewConstMetric(c.gomaxprocs, prometheus.GaugeValue, float64(runtime.GOMAXPROCS(0)))

	// Последняя пауза GC
	if stats.NumGC > 0 {
		ch <- prometheus.MustNewConstMetric(c.gcPause, prometheus.GaugeValue, float64(stats.PauseNs[(stats.NumGC+255)%256])/1e9)
	}
}

// Timer для измерения времени выполнения
type Timer struct {
	start    time.Time
	observer prometheus.Observer
}

// NewTimer создаёт новый таймер
func NewTimer(histogram *prometheus.HistogramVec, labels ...string) *Timer {
	return &Timer{
		start:    time.Now(),
		observer: histogram.WithLabelValues(labels...),
	}
}

// ObserveDuration записывает длительность
func (t *Timer) ObserveDuration() time.Duration {
	duration := time.Since(t.start)
	t.observer.Observe(duration.Seconds())
	return duration
}
