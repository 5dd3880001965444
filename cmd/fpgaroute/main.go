// Package main is the entry point for the fpgaroute command.
//
// fpgaroute routes synthetic or file-described FPGA nets connection by
// connection with the parallel timing-driven router and writes a report
// of the run.
//
// # Commands
//
//	fpgaroute route   - build the device, generate nets, route them, write reports
//	fpgaroute verify  - compare the parallel router against the reference search
//	fpgaroute device  - write the configured device as a YAML description
//
// # Configuration
//
// Configuration is loaded with the following priority (highest to lowest):
//  1. Environment variables (prefix: FPGAROUTE_)
//  2. Config file (--config, FPGAROUTE_CONFIG, fpgaroute.yaml, config/fpgaroute.yaml)
//  3. Default values from pkg/config/loader.go
//
// Key configuration options (environment variable format):
//
//	# Router
//	FPGAROUTE_ROUTER_THREADS      - Worker goroutines including the caller
//	FPGAROUTE_ROUTER_QUEUE        - binary, four_ary, multi_queue
//	FPGAROUTE_ROUTER_PRUNING      - deterministic, relaxed
//	FPGAROUTE_ROUTER_BB_FACTOR    - Net bounding box expansion in tiles
//
//	# Device
//	FPGAROUTE_DEVICE_FILE         - YAML device description (empty: synthetic)
//	FPGAROUTE_DEVICE_WIDTH        - Synthetic grid width
//	FPGAROUTE_DEVICE_CHANNEL_WIDTH - Tracks per channel
//
//	# Caching
//	FPGAROUTE_CACHE_ENABLED       - Cache connection searches (default: false)
//	FPGAROUTE_CACHE_DRIVER        - memory, redis
//
//	# Observability
//	FPGAROUTE_METRICS_ENABLED     - Serve Prometheus metrics while routing
//	FPGAROUTE_TRACING_ENABLED     - Export OpenTelemetry spans over OTLP
//
// # Usage
//
//	fpgaroute route --config config/fpgaroute.yaml
//	fpgaroute route --threads 8 --nets 500 --seed 3
//	fpgaroute verify --samples 100 --threads 1,2,8
//	fpgaroute device --out device.yaml
package main

func main() {
	Execute()
}
