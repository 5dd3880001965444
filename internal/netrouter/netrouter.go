// Package netrouter маршрутизирует цепи поверх router.ParallelRouter:
// соединения одной цепи ищутся по очереди (по убыванию критичности),
// найденные пути добавляются в дерево маршрута цепи и в таблицу занятости.
//
// Это однопроходный потребитель роутера соединений: цикла
// rip-up-and-reroute здесь нет.
package netrouter

import (
	"context"
	"log/slog"
	"time"

	"fpgaroute/internal/router"
	"fpgaroute/internal/routetree"
	"fpgaroute/internal/rrgraph"
	"fpgaroute/pkg/apperror"
	"fpgaroute/pkg/cache"
	"fpgaroute/pkg/config"
	"fpgaroute/pkg/logger"
	"fpgaroute/pkg/metrics"
	"fpgaroute/pkg/telemetry"
)

// Config - параметры маршрутизации цепей
type Config struct {
	BBFactor            int // расширение рамки цепи, клеток
	HighFanoutThreshold int // 0 - режим high fanout выключен
	HighFanoutBinSize   int // <= 0 - подбирается по рамке и числу приёмников
	CacheTTL            time.Duration
}

// ConfigFromRouter собирает Config из секций router и cache
func ConfigFromRouter(rc *config.RouterConfig, cc *config.CacheConfig) Config {
	cfg := Config{
		BBFactor:            rc.BBFactor,
		HighFanoutThreshold: rc.HighFanoutThreshold,
		HighFanoutBinSize:   rc.HighFanoutBinSize,
	}
	if cc != nil {
		cfg.CacheTTL = cc.DefaultTTL
	}
	return cfg
}

// Connection - итог маршрутизации одного приёмника
type Connection struct {
	NetID       int
	SinkIndex   int
	Sink        rrgraph.NodeID
	Criticality float32

	Status   router.Status
	Mode     string
	Attempts int
	// FromCache - путь взят из кэша, поиск не запускался
	FromCache bool
	FellBack  bool
	BB        rrgraph.BoundingBox
	Reason    string

	// Nodes - от узла дерева, от которого отходит ветка, до приёмника
	Nodes        []rrgraph.NodeID
	BackwardCost float32
	TotalCost    float32
	Delay        float32

	Pushes   uint64
	Pops     uint64
	Duration time.Duration
}

// NetResult - итог маршрутизации цепи
type NetResult struct {
	Net         Net
	Tree        *routetree.Tree
	Connections []Connection
	HighFanout  bool
	Duration    time.Duration
}

// Routed - число найденных соединений
func (r *NetResult) Routed() int {
	n := 0
	for i := range r.Connections {
		if r.Connections[i].Status == router.StatusFound {
			n++
		}
	}
	return n
}

// Unroutable - число соединений без пути
func (r *NetResult) Unroutable() int {
	return len(r.Connections) - r.Routed()
}

// Summary - сводка по прогону нескольких цепей
type Summary struct {
	Nets           int
	Connections    int
	Routed         int
	Unroutable     int
	Retries        int
	CacheHits      int
	HighFanoutNets int
	Fallbacks      int
	Overused       int
	Duration       time.Duration
}

// NetRouter маршрутизирует цепи одну за другой. Не потокобезопасен:
// параллелизм живёт внутри поиска одного соединения.
type NetRouter struct {
	router  *router.ParallelRouter
	g       *rrgraph.Graph
	occ     *router.Occupancy
	cost    router.CostParams
	cfg     Config
	routes  *cache.RouteCache
	metrics *metrics.Metrics
	log     *slog.Logger
	graphFP string
}

// Option настраивает NetRouter
type Option func(*NetRouter)

// WithCache включает кэш найденных путей
func WithCache(rc *cache.RouteCache) Option {
	return func(nr *NetRouter) { nr.routes = rc }
}

// WithLogger задаёт логгер
func WithLogger(l *slog.Logger) Option {
	return func(nr *NetRouter) { nr.log = l }
}

// WithMetrics включает учёт обращений к кэшу
func WithMetrics(m *metrics.Metrics) Option {
	return func(nr *NetRouter) { nr.metrics = m }
}

// New создаёт NetRouter. occ должен быть тем же объектом, что передан
// роутеру как Congestion, иначе занятость не повлияет на стоимость.
func New(r *router.ParallelRouter, occ *router.Occupancy, cost router.CostParams, cfg Config, opts ...Option) (*NetRouter, error) {
	if r == nil || occ == nil {
		return nil, apperror.NewCritical(apperror.CodeNilInput, "net router needs a connection router and an occupancy table")
	}
	if err := cost.Validate(); err != nil {
		return nil, err
	}

	nr := &NetRouter{
		router: r,
		g:      r.Graph(),
		occ:    occ,
		cost:   cost,
		cfg:    cfg,
	}
	for _, opt := range opts {
		opt(nr)
	}
	if nr.log == nil {
		nr.log = logger.WithComponent("netrouter")
	}
	if nr.routes != nil {
		nr.graphFP = nr.g.Fingerprint()
		if nr.metrics != nil && nr.routes.OnLookup == nil {
			nr.routes.OnLookup = nr.metrics.RecordCacheLookup
		}
	}
	return nr, nil
}

// RouteNets маршрутизирует цепи по порядку и собирает сводку
func (nr *NetRouter) RouteNets(ctx context.Context, nets []Net) ([]*NetResult, Summary, error) {
	start := time.Now()
	results := make([]*NetResult, 0, len(nets))
	var sum Summary

	for _, net := range nets {
		res, err := nr.RouteNet(ctx, net)
		if err != nil {
			return results, sum, err
		}
		results = append(results, res)

		sum.Nets++
		if res.HighFanout {
			sum.HighFanoutNets++
		}
		for i := range res.Connections {
			c := &res.Connections[i]
			sum.Connections++
			sum.Retries += c.Attempts - 1
			if c.Status == router.StatusFound {
				sum.Routed++
			} else {
				sum.Unroutable++
			}
			if c.FromCache {
				sum.CacheHits++
			}
			if c.FellBack {
				sum.Fallbacks++
			}
		}
	}

	sum.Overused = nr.occ.Overused()
	sum.Duration = time.Since(start)
	nr.log.InfoContext(ctx, "nets routed",
		"nets", sum.Nets,
		"connections", sum.Connections,
		"routed", sum.Routed,
		"unroutable", sum.Unroutable,
		"retries", sum.Retries,
		"cache_hits", sum.CacheHits,
		"overused", sum.Overused,
		"duration", sum.Duration,
	)
	return results, sum, nil
}

// RouteNet маршрутизирует все приёмники цепи. Неразводимое соединение
// ошибкой не считается: оно попадает в результат со StatusUnroutable.
func (nr *NetRouter) RouteNet(ctx context.Context, net Net) (*NetResult, error) {
	ctx, span := telemetry.StartSpan(ctx, telemetry.SpanRouteNet,
		telemetry.WithAttributes(telemetry.NetAttributes(net.ID, net.Fanout())...))
	defer span.End()

	if err := net.Validate(nr.g); err != nil {
		telemetry.SetError(ctx, err)
		return nil, err
	}

	start := time.Now()
	tree, err := routetree.New(nr.g, net.Source, 0, 0)
	if err != nil {
		telemetry.SetError(ctx, err)
		return nil, err
	}
	nr.occ.Add(net.Source, 1)

	netBB := net.BoundingBox(nr.g, nr.cfg.BBFactor)
	res := &NetResult{Net: net, Tree: tree}

	var lookup *routetree.SpatialLookup
	if nr.cfg.HighFanoutThreshold > 0 && net.Fanout() >= nr.cfg.HighFanoutThreshold {
		bin := nr.cfg.HighFanoutBinSize
		if bin <= 0 {
			bin = routetree.AutoBinSize(netBB, net.Fanout())
		}
		lookup = routetree.NewSpatialLookup(nr.g.Grid(), bin)
		lookup.Rebuild(tree)
		res.HighFanout = true
	}
	if nr.metrics != nil {
		mode := router.ModeNormal
		if res.HighFanout {
			mode = router.ModeHighFanout
		}
		defer nr.metrics.NetTimer(mode).ObserveDuration()
	}

	for _, i := range net.order() {
		conn, err := nr.routeSink(ctx, net, i, tree, lookup, netBB)
		if err != nil {
			telemetry.SetError(ctx, err)
			return res, err
		}
		res.Connections = append(res.Connections, conn)
	}

	res.Duration = time.Since(start)
	nr.log.DebugContext(ctx, "net routed",
		"net", net.ID,
		"fanout", net.Fanout(),
		"high_fanout", res.HighFanout,
		"routed", res.Routed(),
		"unroutable", res.Unroutable(),
		"bbox", netBB.String(),
		"duration", res.Duration,
	)
	return res, nil
}

// routeSink ищет путь к приёмнику i. На StatusRetry рамка расширяется до
// всего устройства, и поиск повторяется один раз.
func (nr *NetRouter) routeSink(ctx context.Context, net Net, i int, tree *routetree.Tree,
	lookup *routetree.SpatialLookup, netBB rrgraph.BoundingBox) (conn Connection, err error) {
	sink := net.Sinks[i]
	cost := nr.cost
	cost.Criticality = net.criticality(i)

	conn = Connection{NetID: net.ID, SinkIndex: i, Sink: sink, Criticality: cost.Criticality}
	start := time.Now()
	defer func() { conn.Duration = time.Since(start) }()

	mode := router.ModeNormal
	if lookup != nil {
		mode = router.ModeHighFanout
	}
	full := nr.g.Grid().FullBoundingBox()
	params := router.ConnectionParams{NetID: net.ID, SinkIndex: i}

	for bb := netBB; ; bb = full {
		conn.Attempts++
		conn.BB = bb
		conn.Mode = mode

		var key cache.RouteKey
		if nr.routes != nil {
			key = nr.routeKey(tree, sink, bb, cost, mode)
			if br, ok := nr.lookupCached(ctx, key); ok {
				if err := nr.commit(tree, lookup, br.attach, br.hops); err != nil {
					return conn, err
				}
				conn.Status = router.StatusFound
				conn.FromCache = true
				conn.Nodes = br.nodes()
				conn.BackwardCost = br.back
				conn.TotalCost = br.total
				conn.Delay = br.hops[len(br.hops)-1].Tdel
				return conn, nil
			}
		}

		var res *router.Result
		if lookup != nil {
			res, err = nr.router.RouteConnectionHighFanout(ctx, tree, sink, cost, bb, lookup, params)
		} else {
			res, err = nr.router.RouteConnection(ctx, tree, sink, cost, bb, params)
		}
		if err != nil {
			return conn, err
		}
		conn.Pushes += res.Pushes
		conn.Pops += res.Pops
		conn.FellBack = conn.FellBack || res.FellBack

		switch res.Status {
		case router.StatusFound:
			hops := res.Hops()
			if err := nr.commit(tree, lookup, res.Attach(), hops); err != nil {
				return conn, err
			}
			if nr.routes != nil {
				nr.store(ctx, key, res)
			}
			conn.Status = router.StatusFound
			conn.Nodes = res.Nodes
			conn.BackwardCost = res.BackwardCost
			conn.TotalCost = res.TotalCost
			if len(hops) > 0 {
				conn.Delay = hops[len(hops)-1].Tdel
			}
			return conn, nil

		case router.StatusRetry:
			if nr.g.Grid().IsFullDevice(bb) {
				conn.Status = router.StatusUnroutable
				conn.Reason = router.ReasonNoPath
				return conn, nil
			}

		default:
			conn.Status = router.StatusUnroutable
			if res.Unroutable != nil {
				conn.Reason = res.Unroutable.Reason
			}
			return conn, nil
		}
	}
}

// commit добавляет ветку в дерево, занятость и пространственный индекс
func (nr *NetRouter) commit(tree *routetree.Tree, lookup *routetree.SpatialLookup, attach rrgraph.NodeID, hops []routetree.Hop) error {
	added, err := tree.AddBranch(attach, hops)
	if err != nil {
		return err
	}
	path := make([]rrgraph.NodeID, len(added))
	for i, n := range added {
		path[i] = n.RRNode
	}
	nr.occ.AddPath(path)
	if lookup != nil {
		lookup.AddAll(nr.g, added)
	}
	return nil
}

// =============================================================================
// Кэш путей
// =============================================================================

func (nr *NetRouter) routeKey(tree *routetree.Tree, sink rrgraph.NodeID, bb rrgraph.BoundingBox, cost router.CostParams, mode string) cache.RouteKey {
	return cache.RouteKey{
		Graph:             nr.graphFP,
		Tree:              tree.Fingerprint(),
		Sink:              int32(sink),
		BBox:              bb.Array(),
		Cost:              cost.Key(),
		Congestion:        nr.congestionKey(bb),
		Mode:              mode,
	}
}

// congestionKey - отпечаток цен, которые видит поиск в рамке bb: базовые
// стоимости типов и узлы с ненулевой занятостью или историей. Изменения
// за пределами рамки ключ не меняют.
func (nr *NetRouter) congestionKey(bb rrgraph.BoundingBox) string {
	h := cache.NewHasher()
	for t := 0; t < rrgraph.NumNodeTypes; t++ {
		h.Float32(nr.occ.BaseCost(rrgraph.NodeType(t)))
	}
	nr.occ.Footprint(bb, func(n rrgraph.NodeID, occ int32, hist float32) {
		h.Int64(int64(n))
		h.Int64(int64(occ))
		h.Float32(hist)
	})
	return h.Short()
}

// cachedBranch - ветка, восстановленная из кэша
type cachedBranch struct {
	attach      rrgraph.NodeID
	hops        []routetree.Hop
	back, total float32
}

func (b *cachedBranch) nodes() []rrgraph.NodeID {
	nodes := make([]rrgraph.NodeID, 0, len(b.hops)+1)
	nodes = append(nodes, b.attach)
	for _, h := range b.hops {
		nodes = append(nodes, h.Node)
	}
	return nodes
}

// lookupCached возвращает ветку из кэша. Ошибка бэкенда и несогласованная
// запись считаются промахом.
func (nr *NetRouter) lookupCached(ctx context.Context, key cache.RouteKey) (*cachedBranch, bool) {
	cached, hit, err := nr.routes.Get(ctx, key)
	if err != nil {
		nr.log.WarnContext(ctx, "route cache lookup failed", "error", err)
		return nil, false
	}
	if !hit {
		return nil, false
	}

	n := len(cached.Nodes) - 1
	if n < 1 || len(cached.Edges) != n || len(cached.HopRUpstream) != n || len(cached.HopTdel) != n {
		nr.log.WarnContext(ctx, "inconsistent cached route ignored", "key", key.String())
		return nil, false
	}
	br := &cachedBranch{
		attach: rrgraph.NodeID(cached.Nodes[0]),
		hops:   make([]routetree.Hop, n),
		back:   cached.BackwardCost,
		total:  cached.TotalCost,
	}
	for i := range br.hops {
		br.hops[i] = routetree.Hop{
			Node:      rrgraph.NodeID(cached.Nodes[i+1]),
			Edge:      rrgraph.EdgeID(cached.Edges[i]),
			RUpstream: cached.HopRUpstream[i],
			Tdel:      cached.HopTdel[i],
		}
	}
	return br, true
}

func (nr *NetRouter) store(ctx context.Context, key cache.RouteKey, res *router.Result) {
	hops := res.Hops()
	route := &cache.CachedRoute{
		Nodes:        make([]int32, len(res.Nodes)),
		Edges:        make([]int32, len(res.Edges)),
		HopRUpstream: make([]float32, len(hops)),
		HopTdel:      make([]float32, len(hops)),
		BackwardCost: res.BackwardCost,
		TotalCost:    res.TotalCost,
	}
	for i, n := range res.Nodes {
		route.Nodes[i] = int32(n)
	}
	for i, e := range res.Edges {
		route.Edges[i] = int32(e)
	}
	for i, h := range hops {
		route.HopRUpstream[i] = h.RUpstream
		route.HopTdel[i] = h.Tdel
	}
	if err := nr.routes.Set(ctx, key, route, nr.cfg.CacheTTL); err != nil {
		nr.log.WarnContext(ctx, "failed to cache route", "error", err)
	}
}
