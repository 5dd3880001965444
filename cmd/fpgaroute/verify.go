package main

import (
	"context"
	"fmt"
	"math"
	"slices"

	"github.com/spf13/cobra"

	"fpgaroute/internal/netrouter"
	"fpgaroute/internal/router"
	"fpgaroute/internal/routetree"
	"fpgaroute/internal/rrgraph"
	"fpgaroute/pkg/config"
	"fpgaroute/pkg/logger"
)

var verifyFlags struct {
	samples int
	threads []int
}

var verifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Check the parallel router against the reference search",
	Long: `Route the first sink of generated nets from a fresh route tree without a
lookahead. Every thread count must find the reference cost and the same
path as the first thread count.

Examples:
  fpgaroute verify
  fpgaroute verify --samples 200 --threads 1,4,16`,
	Args: cobra.NoArgs,
	RunE: runVerify,
}

func init() {
	verifyCmd.Flags().IntVar(&verifyFlags.samples, "samples", 50, "connections to check")
	verifyCmd.Flags().IntSliceVar(&verifyFlags.threads, "threads", []int{1, 2, 8}, "thread counts to compare")
	rootCmd.AddCommand(verifyCmd)
}

// costTolerance absorbs float32 summation order differences.
const costTolerance = 1e-4

type sample struct {
	source rrgraph.NodeID
	sink   rrgraph.NodeID
}

type verifyPath struct {
	found bool
	nodes []rrgraph.NodeID
	edges []rrgraph.EdgeID
	cost  float32
}

func runVerify(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if len(verifyFlags.threads) == 0 {
		return fmt.Errorf("--threads needs at least one value")
	}

	g, err := buildDevice(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	nets, err := netrouter.GenerateNets(g, verifyFlags.samples, 1, cfg.Nets.Seed)
	if err != nil {
		return err
	}
	samples := make([]sample, 0, len(nets))
	for _, n := range nets {
		samples = append(samples, sample{source: n.Source, sink: n.Sinks[0]})
	}

	cost := router.CostParamsFromConfig(&cfg.Router)
	cost.AstarFac = 0
	ctx := cmd.Context()

	ref, err := referencePaths(ctx, g, cost, cfg.Router.Flat, samples)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	var first []verifyPath
	failed := 0
	for _, threads := range verifyFlags.threads {
		paths, err := parallelPaths(ctx, g, cfg, threads, cost, samples)
		if err != nil {
			return err
		}

		costMismatch, pathMismatch := 0, 0
		for i, p := range paths {
			if p.found != ref[i].found || math.Abs(float64(p.cost-ref[i].cost)) > costTolerance {
				costMismatch++
				logger.Log.Warn("Cost differs from reference",
					"threads", threads, "source", samples[i].source, "sink", samples[i].sink,
					"cost", p.cost, "reference", ref[i].cost)
			}
			if first != nil && (!slices.Equal(p.nodes, first[i].nodes) || !slices.Equal(p.edges, first[i].edges)) {
				pathMismatch++
				logger.Log.Warn("Path differs between thread counts",
					"threads", threads, "source", samples[i].source, "sink", samples[i].sink)
			}
		}
		if first == nil {
			first = paths
		}
		failed += costMismatch + pathMismatch
		fmt.Fprintf(out, "threads %-3d  samples %-5d  cost mismatches %-4d  path mismatches %d\n",
			threads, len(samples), costMismatch, pathMismatch)
	}

	if failed > 0 {
		return fmt.Errorf("verification failed: %d mismatches", failed)
	}
	fmt.Fprintln(out, "ok")
	return nil
}

func referencePaths(ctx context.Context, g *rrgraph.Graph, cost router.CostParams, flat bool, samples []sample) ([]verifyPath, error) {
	occ := router.NewOccupancy(g)
	full := g.Grid().FullBoundingBox()
	out := make([]verifyPath, len(samples))
	for i, s := range samples {
		tree, err := routetree.New(g, s.source, 0, 0)
		if err != nil {
			return nil, err
		}
		p, err := router.ReferenceSearch(ctx, g, occ, tree, s.sink, cost, full, flat)
		if err != nil {
			return nil, err
		}
		out[i] = verifyPath{found: p.Found, nodes: p.Nodes, edges: p.Edges, cost: p.BackwardCost}
	}
	return out, nil
}

func parallelPaths(ctx context.Context, g *rrgraph.Graph, cfg *config.Config, threads int, cost router.CostParams, samples []sample) ([]verifyPath, error) {
	occ := router.NewOccupancy(g)
	opts, err := router.OptionsFromConfig(&cfg.Router)
	if err != nil {
		return nil, err
	}
	opts = append(opts,
		router.WithThreads(threads),
		router.WithLogger(logger.WithComponent("router")),
	)
	r, err := router.New(g, router.ZeroLookahead{}, occ, opts...)
	if err != nil {
		return nil, err
	}
	defer r.Close()

	full := g.Grid().FullBoundingBox()
	out := make([]verifyPath, len(samples))
	for i, s := range samples {
		tree, err := routetree.New(g, s.source, 0, 0)
		if err != nil {
			return nil, err
		}
		res, err := r.RouteConnection(ctx, tree, s.sink, cost, full, router.ConnectionParams{SinkIndex: i})
		if err != nil {
			return nil, err
		}
		out[i] = verifyPath{found: res.Found(), nodes: res.Nodes, edges: res.Edges, cost: res.BackwardCost}
	}
	return out, nil
}
