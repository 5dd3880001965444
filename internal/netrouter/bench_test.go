package netrouter

import (
	"context"
	"fmt"
	"testing"

	"fpgaroute/internal/router"
	"fpgaroute/internal/rrgraph"
)

var benchSpec = rrgraph.GridSpec{
	Width: 16, Height: 16, Layers: 1, ChannelWidth: 8, SegmentLength: 4, PinsPerTile: 4,
}

func benchRouteNets(b *testing.B, opts ...router.Option) {
	g := rrgraph.MustGenerate(benchSpec)
	nets, err := GenerateNets(g, 40, 8, 42)
	if err != nil {
		b.Fatal(err)
	}
	occ := router.NewOccupancy(g)
	la := router.NewManhattanLookahead(g, occ.BaseCost(rrgraph.ChanX))
	opts = append(opts, router.WithLogger(quietLog))

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		b.StopTimer()
		occ = router.NewOccupancy(g)
		r, err := router.New(g, la, occ, opts...)
		if err != nil {
			b.Fatal(err)
		}
		nr, err := New(r, occ, router.DefaultCostParams(), Config{BBFactor: 3}, WithLogger(quietLog))
		if err != nil {
			b.Fatal(err)
		}
		b.StartTimer()

		if _, _, err := nr.RouteNets(context.Background(), nets); err != nil {
			b.Fatal(err)
		}

		b.StopTimer()
		_ = r.Close()
		b.StartTimer()
	}
}

func BenchmarkRouteNets_Threads(b *testing.B) {
	for _, threads := range []int{1, 2, 4, 8} {
		b.Run(fmt.Sprintf("threads_%d", threads), func(b *testing.B) {
			benchRouteNets(b, router.WithThreads(threads))
		})
	}
}

func BenchmarkRouteNets_Queues(b *testing.B) {
	for _, kind := range []router.QueueKind{router.QueueBinary, router.QueueFourAry, router.QueueMulti} {
		b.Run(kind.String(), func(b *testing.B) {
			benchRouteNets(b, router.WithThreads(4), router.WithQueue(kind))
		})
	}
}

func BenchmarkRouteNets_Pruning(b *testing.B) {
	for _, mode := range []router.PruningMode{router.PruneDeterministic, router.PruneRelaxed} {
		b.Run(mode.String(), func(b *testing.B) {
			benchRouteNets(b, router.WithThreads(4), router.WithPruning(mode))
		})
	}
}
