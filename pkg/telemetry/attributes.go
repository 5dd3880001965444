package telemetry

import (
	"go.opentelemetry.io/otel/attribute"
)

// Имена span'ов
const (
	SpanRouteConnection = "router.route_connection"
	SpanRouteNet        = "netrouter.route_net"
	SpanLoadDevice      = "rrgraph.load_device"
	SpanRouteRun        = "fpgaroute.route"
)

// Стандартные ключи атрибутов
const (
	// Соединение
	AttrSearchID = "route.search_id"
	AttrSource   = "route.source"
	AttrSink     = "route.sink"
	AttrBBox     = "route.bbox"
	AttrMode     = "route.mode"
	AttrThreads  = "route.threads"

	// Исход поиска
	AttrStatus       = "route.status"
	AttrPushes       = "route.heap_pushes"
	AttrPops         = "route.heap_pops"
	AttrTouched      = "route.nodes_touched"
	AttrBackwardCost = "route.backward_cost"
	AttrPathLength   = "route.path_length"

	// Цепь
	AttrNetID  = "net.id"
	AttrFanout = "net.fanout"

	// Устройство
	AttrDeviceNodes = "device.nodes"
	AttrDeviceEdges = "device.edges"
)

// ConnectionAttributes возвращает атрибуты запроса на соединение
func ConnectionAttributes(searchID string, source, sink int64, bbox, mode string, threads int) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(AttrSearchID, searchID),
		attribute.Int64(AttrSource, source),
		attribute.Int64(AttrSink, sink),
		attribute.String(AttrBBox, bbox),
		attribute.String(AttrMode, mode),
		attribute.Int(AttrThreads, threads),
	}
}

// OutcomeAttributes возвращает атрибуты результата поиска
func OutcomeAttributes(status string, pushes, pops uint64, touched, pathLength int, backwardCost float64) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(AttrStatus, status),
		attribute.Int64(AttrPushes, int64(pushes)),
		attribute.Int64(AttrPops, int64(pops)),
		attribute.Int(AttrTouched, touched),
		attribute.Int(AttrPathLength, pathLength),
		attribute.Float64(AttrBackwardCost, backwardCost),
	}
}

// NetAttributes возвращает атрибуты цепи
func NetAttributes(netID, fanout int) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.Int(AttrNetID, netID),
		attribute.Int(AttrFanout, fanout),
	}
}

// DeviceAttributes возвращает атрибуты графа ресурсов
func DeviceAttributes(nodes, edges int) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.Int(AttrDeviceNodes, nodes),
		attribute.Int(AttrDeviceEdges, edges),
	}
}
