package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics глобальный контейнер метрик роутера
type Metrics struct {
	// Поиск соединений
	ConnectionsTotal    *prometheus.CounterVec
	SearchDuration      *prometheus.HistogramVec
	NodesTouched        prometheus.Histogram
	RetriesTotal        prometheus.Counter
	HighFanoutFallbacks prometheus.Counter

	// Цепи
	NetDuration *prometheus.HistogramVec

	// Куча
	HeapPushesTotal *prometheus.CounterVec
	HeapPopsTotal   *prometheus.CounterVec

	// Пул воркеров
	WorkerThreads prometheus.Gauge

	// Кэш маршрутов
	RouteCacheLookups *prometheus.CounterVec

	// Устройство
	DeviceNodes prometheus.Gauge
	DeviceEdges prometheus.Gauge

	// Информация о сборке
	ServiceInfo *prometheus.GaugeVec
}

var defaultMetrics *Metrics

// InitMetrics инициализирует метрики
func InitMetrics(namespace, subsystem string) *Metrics {
	m := &Metrics{
		ConnectionsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "connections_total",
				Help:      "Total number of connection searches by mode and outcome",
			},
			[]string{"mode", "status"},
		),

		SearchDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "search_duration_seconds",
				Help:      "Duration of a single connection search",
				Buckets:   []float64{.00005, .0001, .00025, .0005, .001, .0025, .005, .01, .025, .05, .1, .5},
			},
			[]string{"mode"},
		),

		NetDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "net_duration_seconds",
				Help:      "Duration of routing all sinks of one net",
				Buckets:   []float64{.0005, .001, .0025, .005, .01, .025, .05, .1, .25, .5, 1, 5},
			},
			[]string{"mode"},
		),

		NodesTouched: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "nodes_touched",
				Help:      "Number of routing resources whose state was written during a search",
				Buckets:   prometheus.ExponentialBuckets(16, 4, 9),
			},
		),

		RetriesTotal: promauto.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "retries_total",
				Help:      "Searches that failed inside a partial bounding box and were returned for retry",
			},
		),

		HighFanoutFallbacks: promauto.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "high_fanout_fallbacks_total",
				Help:      "High fanout searches that fell back to the full route tree",
			},
		),

		HeapPushesTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "heap_pushes_total",
				Help:      "Heap pushes by node type and cluster class",
			},
			[]string{"node_type", "cluster"},
		),

		HeapPopsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "heap_pops_total",
				Help:      "Heap pops by node type and cluster class",
			},
			[]string{"node_type", "cluster"},
		),

		WorkerThreads: promauto.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "worker_threads",
				Help:      "Number of search workers including the calling goroutine",
			},
		),

		RouteCacheLookups: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "route_cache_lookups_total",
				Help:      "Route cache lookups by result",
			},
			[]string{"result"},
		),

		DeviceNodes: promauto.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "device_nodes",
				Help:      "Routing resources in the loaded device",
			},
		),

		DeviceEdges: promauto.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "device_edges",
				Help:      "Programmable connections in the loaded device",
			},
		),

		ServiceInfo: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "service_info",
				Help:      "Build information",
			},
			[]string{"version", "environment"},
		),
	}

	defaultMetrics = m
	return m
}

// Get возвращает глобальные метрики
func Get() *Metrics {
	if defaultMetrics == nil {
		return InitMetrics("fpgaroute", "router")
	}
	return defaultMetrics
}

// RecordConnection записывает исход одного поиска
func (m *Metrics) RecordConnection(mode, status string, duration time.Duration, touched int) {
	m.ConnectionsTotal.WithLabelValues(mode, status).Inc()
	m.SearchDuration.WithLabelValues(mode).Observe(duration.Seconds())
	m.NodesTouched.Observe(float64(touched))
}

// NetTimer начинает замер маршрутизации цепи
func (m *Metrics) NetTimer(mode string) *Timer {
	return NewTimer(m.NetDuration, mode)
}

// RecordRetry учитывает неудачу в частичном bounding box
func (m *Metrics) RecordRetry() {
	m.RetriesTotal.Inc()
}

// RecordHighFanoutFallback учитывает откат на полное дерево
func (m *Metrics) RecordHighFanoutFallback() {
	m.HighFanoutFallbacks.Inc()
}

// RecordHeapOps добавляет счётчики кучи для типа узла
func (m *Metrics) RecordHeapOps(nodeType, cluster string, pushes, pops uint64) {
	if pushes > 0 {
		m.HeapPushesTotal.WithLabelValues(nodeType, cluster).Add(float64(pushes))
	}
	if pops > 0 {
		m.HeapPopsTotal.WithLabelValues(nodeType, cluster).Add(float64(pops))
	}
}

// SetWorkerThreads фиксирует размер пула
func (m *Metrics) SetWorkerThreads(n int) {
	m.WorkerThreads.Set(float64(n))
}

// RecordCacheLookup учитывает попадание или промах кэша маршрутов
func (m *Metrics) RecordCacheLookup(hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	m.RouteCacheLookups.WithLabelValues(result).Inc()
}

// SetDeviceSize записывает размер графа ресурсов
func (m *Metrics) SetDeviceSize(nodes, edges int) {
	m.DeviceNodes.Set(float64(nodes))
	m.DeviceEdges.Set(float64(edges))
}

// SetServiceInfo устанавливает информацию о сервисе
func (m *Metrics) SetServiceInfo(version, environment string) {
	m.ServiceInfo.WithLabelValues(version, environment).Set(1)
}

// Handler возвращает HTTP handler для /metrics
func Handler() http.Handler {
	return promhttp.Handler()
}

// NewMetricsServer собирает HTTP сервер для /metrics и /health
func NewMetricsServer(port int) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK")) //nolint:errcheck // health endpoint, ошибка записи не критична
	})

	return &http.Server{
		Addr:         ":" + strconv.Itoa(port),
		Handler:      mux,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
}
