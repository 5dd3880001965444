package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"fpgaroute/internal/netrouter"
	"fpgaroute/internal/report"
	"fpgaroute/internal/router"
	"fpgaroute/internal/rrgraph"
	"fpgaroute/pkg/apperror"
	"fpgaroute/pkg/cache"
	"fpgaroute/pkg/config"
	"fpgaroute/pkg/logger"
	"fpgaroute/pkg/metrics"
	"fpgaroute/pkg/telemetry"
)

var routeFlags struct {
	threads int
	nets    int
	seed    int64
	formats []string
}

var routeCmd = &cobra.Command{
	Use:   "route",
	Short: "Route generated nets on the configured device",
	Long: `Build the device, generate nets with the configured seed and route every
connection once. Connections are committed to the route tree and the
occupancy table as soon as they are found.

Examples:
  fpgaroute route
  fpgaroute route --threads 1 --nets 50
  fpgaroute route --format xlsx --format pdf`,
	Args: cobra.NoArgs,
	RunE: runRoute,
}

func init() {
	routeCmd.Flags().IntVar(&routeFlags.threads, "threads", 0, "worker threads (overrides router.threads)")
	routeCmd.Flags().IntVar(&routeFlags.nets, "nets", 0, "number of nets (overrides nets.count)")
	routeCmd.Flags().Int64Var(&routeFlags.seed, "seed", 0, "net generator seed (overrides nets.seed)")
	routeCmd.Flags().StringSliceVar(&routeFlags.formats, "format", nil, "report formats: xlsx, pdf, json (overrides report.formats)")
	rootCmd.AddCommand(routeCmd)
}

func runRoute(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	applyRouteFlags(cmd, cfg)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing := initTracing(ctx, cfg)
	defer shutdownTracing()

	ctx, span := telemetry.StartSpan(ctx, telemetry.SpanRouteRun)
	defer span.End()

	// =========================================================================
	// Metrics
	// =========================================================================
	var m *metrics.Metrics
	if cfg.Metrics.Enabled {
		m = metrics.InitMetrics(cfg.Metrics.Namespace, cfg.Metrics.Subsystem)
		m.SetServiceInfo(cfg.App.Version, cfg.App.Environment)
		prometheus.MustRegister(metrics.NewRuntimeCollector(cfg.Metrics.Namespace, "process"))
	}

	g, err := buildDevice(ctx, cfg)
	if err != nil {
		return err
	}
	telemetry.SetAttributes(ctx, telemetry.DeviceAttributes(g.NumNodes(), g.NumEdges())...)
	if m != nil {
		m.SetDeviceSize(g.NumNodes(), g.NumEdges())
	}

	nets, err := netrouter.GenerateNets(g, cfg.Nets.Count, cfg.Nets.MaxFanout, cfg.Nets.Seed)
	if err != nil {
		return err
	}

	// =========================================================================
	// Route cache
	// =========================================================================
	var routes *cache.RouteCache
	if cfg.Cache.Enabled {
		base, err := cache.New(cache.FromConfig(&cfg.Cache))
		if err != nil {
			logger.Log.Warn("Failed to create cache, continuing without cache", "error", err)
		} else {
			defer base.Close()
			routes = cache.NewRouteCache(base, cfg.Cache.DefaultTTL)
			removed, err := routes.SwitchGraph(ctx, g.Fingerprint())
			if err != nil {
				logger.Log.Warn("Failed to check cached device", "error", err)
			}
			logger.Log.Info("Route cache initialized",
				"driver", cfg.Cache.Driver,
				"ttl", cfg.Cache.DefaultTTL,
				"stale_routes_removed", removed,
			)
		}
	}

	// =========================================================================
	// Router
	// =========================================================================
	occ := router.NewOccupancy(g)
	opts, err := router.OptionsFromConfig(&cfg.Router)
	if err != nil {
		return err
	}
	opts = append(opts, router.WithLogger(logger.WithComponent("router")))
	if m != nil {
		opts = append(opts, router.WithMetrics(m))
	}
	la := router.NewManhattanLookahead(g, min(occ.BaseCost(rrgraph.ChanX), occ.BaseCost(rrgraph.ChanY)))
	r, err := router.New(g, la, occ, opts...)
	if err != nil {
		return err
	}
	defer r.Close()

	nrOpts := []netrouter.Option{}
	if routes != nil {
		nrOpts = append(nrOpts, netrouter.WithCache(routes))
	}
	if m != nil {
		nrOpts = append(nrOpts, netrouter.WithMetrics(m))
	}
	nr, err := netrouter.New(r, occ, router.CostParamsFromConfig(&cfg.Router),
		netrouter.ConfigFromRouter(&cfg.Router, &cfg.Cache), nrOpts...)
	if err != nil {
		return err
	}

	logger.Info("Starting routing",
		"nets", len(nets),
		"threads", r.Threads(),
		"queue", cfg.Router.Queue,
		"pruning", cfg.Router.Pruning,
		"cache_enabled", routes != nil,
	)

	// =========================================================================
	// Run
	// =========================================================================
	var (
		results []*netrouter.NetResult
		sum     netrouter.Summary
	)
	eg, egCtx := errgroup.WithContext(ctx)
	routed := make(chan struct{})

	if m != nil {
		srv := metrics.NewMetricsServer(cfg.Metrics.Port)
		eg.Go(func() error {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("metrics server: %w", err)
			}
			return nil
		})
		eg.Go(func() error {
			select {
			case <-routed:
			case <-egCtx.Done():
			}
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})
	}

	eg.Go(func() error {
		defer close(routed)
		var err error
		results, sum, err = nr.RouteNets(egCtx, nets)
		return err
	})
	if err := eg.Wait(); err != nil {
		telemetry.SetError(ctx, err)
		return err
	}

	printSummary(cmd.OutOrStdout(), sum, r.Stats())
	if err := writeReports(ctx, cfg, g, r, results, sum); err != nil {
		return err
	}

	if sum.Unroutable > 0 {
		return apperror.NewWarning(apperror.CodeUnroutable,
			fmt.Sprintf("%d of %d connections are unroutable", sum.Unroutable, sum.Connections)).
			WithDetails("unroutable", sum.Unroutable)
	}
	return nil
}

func writeReports(ctx context.Context, cfg *config.Config, g *rrgraph.Graph, r *router.ParallelRouter,
	results []*netrouter.NetResult, sum netrouter.Summary) error {
	if len(cfg.Report.Formats) == 0 {
		return nil
	}
	run := report.NewRun(cfg.App.Name, g, results, sum, r.Stats())
	run.Title = cfg.Report.Title
	run.Threads = r.Threads()
	run.Queue = cfg.Router.Queue
	run.Pruning = cfg.Router.Pruning

	paths, err := report.WriteFiles(ctx, cfg.Report.OutputDir, cfg.Report.Formats, run)
	if err != nil {
		return err
	}
	for _, p := range paths {
		logger.Info("Report written", "path", p)
	}
	return nil
}

func applyRouteFlags(cmd *cobra.Command, cfg *config.Config) {
	flags := cmd.Flags()
	if flags.Changed("threads") {
		cfg.Router.Threads = routeFlags.threads
	}
	if flags.Changed("nets") {
		cfg.Nets.Count = routeFlags.nets
	}
	if flags.Changed("seed") {
		cfg.Nets.Seed = routeFlags.seed
	}
	if flags.Changed("format") {
		cfg.Report.Formats = routeFlags.formats
	}
}

func printSummary(w io.Writer, sum netrouter.Summary, stats router.Stats) {
	fmt.Fprintf(w, "nets:            %d\n", sum.Nets)
	fmt.Fprintf(w, "connections:     %d\n", sum.Connections)
	fmt.Fprintf(w, "routed:          %d\n", sum.Routed)
	fmt.Fprintf(w, "unroutable:      %d\n", sum.Unroutable)
	fmt.Fprintf(w, "retries:         %d\n", sum.Retries)
	fmt.Fprintf(w, "cache hits:      %d\n", sum.CacheHits)
	fmt.Fprintf(w, "high fanout:     %d nets, %d fallbacks\n", sum.HighFanoutNets, sum.Fallbacks)
	fmt.Fprintf(w, "overused nodes:  %d\n", sum.Overused)
	fmt.Fprintf(w, "heap pushes:     %d\n", stats.HeapPushes)
	fmt.Fprintf(w, "heap pops:       %d\n", stats.HeapPops)
	fmt.Fprintf(w, "search time:     %s\n", stats.PathSearchTime)
	fmt.Fprintf(w, "total time:      %s\n", sum.Duration)
}
