package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"fpgaroute/internal/rrgraph"
	"fpgaroute/pkg/apperror"
	"fpgaroute/pkg/config"
	"fpgaroute/pkg/logger"
	"fpgaroute/pkg/telemetry"
)

var (
	// Global flags
	configPath string
	verbose    bool
)

var rootCmd = &cobra.Command{
	Use:   "fpgaroute",
	Short: "Parallel timing-driven FPGA connection router",
	Long: `Routes FPGA nets connection by connection over a routing-resource graph.
Every connection search runs on a pool of workers and produces the same
path regardless of the number of threads.

Examples:
  fpgaroute route --threads 8                 # Route the configured nets
  fpgaroute verify --samples 50               # Check against the reference search
  fpgaroute device --out device.yaml          # Dump the synthetic device`,
	Version:       "1.0.0",
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Exit statuses
const (
	exitOK          = 0
	exitFailure     = 1   // anything not classified below
	exitInvalid     = 2   // bad configuration, device or arguments
	exitContract    = 3   // router contract violation
	exitUnroutable  = 4   // run finished with unroutable connections
	exitUnsupported = 5   // requested mode is not implemented
	exitInterrupted = 130 // cancelled by a signal or a deadline
)

// Execute runs the root command
func Execute() {
	err := rootCmd.Execute()
	if err == nil {
		return
	}
	if apperror.IsWarning(err) {
		fmt.Fprintln(os.Stderr, "warning:", err)
	} else {
		fmt.Fprintln(os.Stderr, err)
	}
	os.Exit(exitCode(err))
}

// exitCode classifies err by severity first and then by its gRPC status,
// which groups the router error codes the same way RPC callers see them.
func exitCode(err error) int {
	switch {
	case err == nil:
		return exitOK
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return exitInterrupted
	case apperror.IsWarning(err):
		return exitUnroutable
	}

	code := status.Code(apperror.ToGRPC(err))
	switch {
	case code == codes.Unimplemented:
		return exitUnsupported
	case apperror.IsCritical(err):
		return exitContract
	case code == codes.InvalidArgument, code == codes.NotFound:
		return exitInvalid
	case code == codes.DeadlineExceeded:
		return exitInterrupted
	default:
		return exitFailure
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", os.Getenv("FPGAROUTE_CONFIG"), "config file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")
}

// =========================================================================
// Shared setup
// =========================================================================

// loadConfig loads the configuration and initializes the global logger.
func loadConfig() (*config.Config, error) {
	cfg, err := config.LoadFile(configPath)
	if err != nil {
		return nil, apperror.Wrap(err, apperror.CodeInvalidArgument, "failed to load config")
	}
	if verbose {
		cfg.Log.Level = "debug"
	}

	logger.InitWithConfig(logger.Config{
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		Output:     cfg.Log.Output,
		FilePath:   cfg.Log.FilePath,
		MaxSize:    cfg.Log.MaxSize,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAge:     cfg.Log.MaxAge,
		Compress:   cfg.Log.Compress,
	})
	return cfg, nil
}

// initTracing starts the trace provider and returns its shutdown function.
// A failed exporter only disables tracing.
func initTracing(ctx context.Context, cfg *config.Config) func() {
	if !cfg.Tracing.Enabled {
		return func() {}
	}
	serviceName := cfg.Tracing.ServiceName
	if serviceName == "" {
		serviceName = cfg.App.Name
	}
	tp, err := telemetry.Init(ctx, telemetry.Config{
		Enabled:     true,
		Endpoint:    cfg.Tracing.Endpoint,
		ServiceName: serviceName,
		Version:     cfg.App.Version,
		Environment: cfg.App.Environment,
		SampleRate:  cfg.Tracing.SampleRate,
	})
	if err != nil {
		logger.Log.Warn("Failed to init telemetry", "error", err)
		return func() {}
	}
	logger.Log.Info("Telemetry initialized", "endpoint", cfg.Tracing.Endpoint)

	return func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tp.Shutdown(shutdownCtx); err != nil {
			logger.Log.Warn("Failed to shutdown telemetry", "error", err)
		}
	}
}

// buildDevice loads the device file or generates the synthetic device.
func buildDevice(ctx context.Context, cfg *config.Config) (*rrgraph.Graph, error) {
	ctx, span := telemetry.StartSpan(ctx, telemetry.SpanLoadDevice)
	defer span.End()

	if cfg.Device.File != "" {
		g, err := rrgraph.LoadYAMLFile(cfg.Device.File)
		if err != nil {
			telemetry.SetError(ctx, err)
			return nil, err
		}
		telemetry.SetAttributes(ctx, telemetry.DeviceAttributes(g.NumNodes(), g.NumEdges())...)
		logger.Log.Info("Device loaded", "file", cfg.Device.File, "nodes", g.NumNodes(), "edges", g.NumEdges())
		return g, nil
	}

	g, err := rrgraph.Generate(gridSpec(&cfg.Device))
	if err != nil {
		telemetry.SetError(ctx, err)
		return nil, err
	}
	telemetry.SetAttributes(ctx, telemetry.DeviceAttributes(g.NumNodes(), g.NumEdges())...)
	logger.Log.Info("Device generated",
		"width", cfg.Device.Width,
		"height", cfg.Device.Height,
		"layers", cfg.Device.Layers,
		"nodes", g.NumNodes(),
		"edges", g.NumEdges(),
	)
	return g, nil
}

func gridSpec(d *config.DeviceConfig) rrgraph.GridSpec {
	return rrgraph.GridSpec{
		Width:          d.Width,
		Height:         d.Height,
		Layers:         d.Layers,
		ChannelWidth:   d.ChannelWidth,
		SegmentLength:  d.SegmentLength,
		PinsPerTile:    d.PinsPerTile,
		PassTransistor: d.PassTransistor,
	}
}
