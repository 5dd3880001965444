package netrouter

import (
	"fmt"
	"math/rand/v2"
	"sort"

	"fpgaroute/internal/rrgraph"
	"fpgaroute/pkg/apperror"
)

// Net - одна цепь: источник и набор приёмников с критичностью по времени
type Net struct {
	ID     int
	Source rrgraph.NodeID
	Sinks  []rrgraph.NodeID
	// Criticality[i] относится к Sinks[i], значения в [0, 1)
	Criticality []float32
}

// Fanout - число приёмников
func (n Net) Fanout() int { return len(n.Sinks) }

// Validate проверяет цепь относительно графа
func (n Net) Validate(g *rrgraph.Graph) error {
	if !g.HasNode(n.Source) {
		return apperror.NewCritical(apperror.CodeInvalidTarget,
			fmt.Sprintf("net %d: source %d is not a graph node", n.ID, n.Source))
	}
	if len(n.Sinks) == 0 {
		return apperror.NewCritical(apperror.CodeInvalidTarget,
			fmt.Sprintf("net %d has no sinks", n.ID))
	}
	if len(n.Criticality) != 0 && len(n.Criticality) != len(n.Sinks) {
		return apperror.NewCritical(apperror.CodeInvalidArgument,
			fmt.Sprintf("net %d: %d criticalities for %d sinks", n.ID, len(n.Criticality), len(n.Sinks)))
	}
	for _, s := range n.Sinks {
		if !g.HasNode(s) {
			return apperror.NewCritical(apperror.CodeInvalidTarget,
				fmt.Sprintf("net %d: sink %d is not a graph node", n.ID, s))
		}
	}
	return nil
}

// criticality приёмника i; без заданных значений - 0
func (n Net) criticality(i int) float32 {
	if len(n.Criticality) == 0 {
		return 0
	}
	return n.Criticality[i]
}

// order - порядок маршрутизации приёмников: по убыванию критичности,
// при равенстве - по индексу
func (n Net) order() []int {
	idx := make([]int, len(n.Sinks))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool {
		return n.criticality(idx[a]) > n.criticality(idx[b])
	})
	return idx
}

// BoundingBox - рамка терминалов цепи, расширенная на factor клеток и
// обрезанная по устройству. Слои берутся все.
func (n Net) BoundingBox(g *rrgraph.Graph, factor int) rrgraph.BoundingBox {
	bb := rrgraph.NodeBox(g.Node(n.Source))
	for _, s := range n.Sinks {
		bb = bb.Cover(g.Node(s))
	}
	full := g.Grid().FullBoundingBox()
	bb = bb.Expand(max(factor, 0))
	bb.LayerMin, bb.LayerMax = full.LayerMin, full.LayerMax
	return bb.Clip(full)
}

// maxGeneratedCriticality не даёт соединению полностью игнорировать
// перегрузку
const maxGeneratedCriticality = 0.99

// GenerateNets строит n случайных цепей на устройстве g: источник блока и
// от 1 до maxFanout приёмников других блоков. Результат зависит только от
// графа и seed.
func GenerateNets(g *rrgraph.Graph, n, maxFanout int, seed int64) ([]Net, error) {
	if g == nil {
		return nil, apperror.New(apperror.CodeNilInput, "net generation needs a graph")
	}
	if n < 0 {
		return nil, apperror.NewWithField(apperror.CodeInvalidArgument, "net count must be non-negative", "nets.count")
	}

	var sources, sinks []rrgraph.NodeID
	for i := 0; i < g.NumNodes(); i++ {
		switch g.Node(rrgraph.NodeID(i)).Type {
		case rrgraph.Source:
			sources = append(sources, rrgraph.NodeID(i))
		case rrgraph.Sink:
			sinks = append(sinks, rrgraph.NodeID(i))
		}
	}
	if len(sources) == 0 || len(sinks) < 2 {
		return nil, apperror.New(apperror.CodeInvalidDevice,
			fmt.Sprintf("device has %d sources and %d sinks, need at least 1 and 2", len(sources), len(sinks)))
	}
	maxFanout = min(max(maxFanout, 1), len(sinks)-1)

	rng := rand.New(rand.NewPCG(uint64(seed), 0x9e3779b97f4a7c15))
	grid := g.Grid()
	block := func(id rrgraph.NodeID) [3]int {
		node := g.Node(id)
		x, y := grid.BlockOrigin(int(node.XLow), int(node.YLow), int(node.Layer))
		return [3]int{x, y, int(node.Layer)}
	}

	nets := make([]Net, 0, n)
	for i := 0; i < n; i++ {
		src := sources[rng.IntN(len(sources))]
		home := block(src)
		fanout := 1 + rng.IntN(maxFanout)

		net := Net{ID: i, Source: src}
		picked := make(map[rrgraph.NodeID]struct{}, fanout)
		// приёмники своего блока пропускаем; число попыток ограничено
		for attempt := 0; len(net.Sinks) < fanout && attempt < 8*fanout+16; attempt++ {
			s := sinks[rng.IntN(len(sinks))]
			if _, dup := picked[s]; dup || block(s) == home {
				continue
			}
			picked[s] = struct{}{}
			net.Sinks = append(net.Sinks, s)
			net.Criticality = append(net.Criticality, float32(rng.Float64()*maxGeneratedCriticality))
		}
		if len(net.Sinks) == 0 {
			continue
		}
		nets = append(nets, net)
	}
	return nets, nil
}
