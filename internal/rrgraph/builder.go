package rrgraph

import (
	"fmt"
	"sort"

	"fpgaroute/pkg/apperror"
)

// =============================================================================
// Builder
// =============================================================================

// Builder accumulates a device description and produces an immutable Graph.
//
// Ids are handed out in call order: the first AddNode returns node 0, the
// first AddSwitch returns switch 0 and so on. Edges may be added in any order;
// Build groups them by source node while preserving the relative order of the
// edges of each node.
//
// Non-configurable sets may be given explicitly with AddNonConfigSet. When
// none are given they are inferred as the connected components of
// non-configurable edges.
type Builder struct {
	nodes    []Node
	switches []Switch
	rc       []RCData
	edges    []rawEdge
	sets     [][]NodeID

	grid   *Grid
	blocks []Block
}

type rawEdge struct {
	from, to NodeID
	sw       SwitchID
}

// Block is a rectangular logic block occupying several tiles.
type Block struct {
	X      int `yaml:"x"`
	Y      int `yaml:"y"`
	Layer  int `yaml:"layer"`
	Width  int `yaml:"width"`
	Height int `yaml:"height"`
}

// NewBuilder creates an empty builder.
func NewBuilder() *Builder {
	return &Builder{}
}

// AddSwitch registers a switch and returns its id.
func (b *Builder) AddSwitch(sw Switch) SwitchID {
	b.switches = append(b.switches, sw)
	return SwitchID(len(b.switches) - 1)
}

// AddRC registers an RC entry and returns its index.
func (b *Builder) AddRC(rc RCData) int32 {
	b.rc = append(b.rc, rc)
	return int32(len(b.rc) - 1)
}

// AddNode registers a node and returns its id.
func (b *Builder) AddNode(n Node) NodeID {
	b.nodes = append(b.nodes, n)
	return NodeID(len(b.nodes) - 1)
}

// AddEdge registers a directed edge programmed by sw.
func (b *Builder) AddEdge(from, to NodeID, sw SwitchID) {
	b.edges = append(b.edges, rawEdge{from: from, to: to, sw: sw})
}

// AddNonConfigSet declares nodes that are permanently connected.
func (b *Builder) AddNonConfigSet(members ...NodeID) {
	set := append([]NodeID(nil), members...)
	b.sets = append(b.sets, set)
}

// SetGrid sets the device extent. Without it the extent is inferred from
// the node coordinates.
func (b *Builder) SetGrid(width, height, layers int) {
	b.grid = NewGrid(width, height, layers)
}

// SetBlock records a multi-tile block; it is applied during Build.
func (b *Builder) SetBlock(x, y, layer, w, h int) {
	b.blocks = append(b.blocks, Block{X: x, Y: y, Layer: layer, Width: w, Height: h})
}

// NumNodes returns the number of nodes added so far.
func (b *Builder) NumNodes() int { return len(b.nodes) }

// Build validates the description and freezes it. All problems found are
// reported together.
func (b *Builder) Build() (*Graph, error) {
	verrs := apperror.NewValidationErrors()

	if len(b.nodes) == 0 {
		return nil, apperror.New(apperror.CodeEmptyGraph, "device has no nodes")
	}

	grid := b.grid
	if grid == nil {
		grid = inferGrid(b.nodes)
	}
	if grid.Width <= 0 || grid.Height <= 0 || grid.Layers <= 0 {
		return nil, apperror.NewWithField(apperror.CodeInvalidDevice,
			fmt.Sprintf("grid %dx%dx%d is empty", grid.Width, grid.Height, grid.Layers), "grid")
	}
	for _, blk := range b.blocks {
		if err := grid.SetBlock(blk.X, blk.Y, blk.Layer, blk.Width, blk.Height); err != nil {
			verrs.Add(apperror.Wrap(err, apperror.CodeInvalidDevice, "invalid block"))
		}
	}

	b.validateSwitches(verrs)
	b.validateNodes(grid, verrs)
	b.validateEdges(verrs)
	if verrs.HasErrors() {
		return nil, verrs.Err()
	}

	g := &Graph{
		nodes:    append([]Node(nil), b.nodes...),
		switches: append([]Switch(nil), b.switches...),
		rc:       append([]RCData(nil), b.rc...),
		grid:     grid,
	}
	g.buildCSR(b.edges)

	if err := g.buildSets(b.sets); err != nil {
		return nil, err
	}

	g.fingerprint = g.computeFingerprint()
	return g, nil
}

// MustBuild is Build for fixtures; it panics on invalid input.
func (b *Builder) MustBuild() *Graph {
	g, err := b.Build()
	if err != nil {
		panic(err)
	}
	return g
}

// =============================================================================
// Validation
// =============================================================================

func (b *Builder) validateSwitches(verrs *apperror.ValidationErrors) {
	for i, sw := range b.switches {
		if sw.R < 0 || sw.Tdel < 0 || sw.Cinternal < 0 {
			verrs.Add(apperror.NewWithField(apperror.CodeInvalidSwitch,
				fmt.Sprintf("switch %d (%s) has negative electrical parameters", i, sw.Name), "switches"))
		}
	}
	for i, rc := range b.rc {
		if rc.R < 0 || rc.C < 0 {
			verrs.Add(apperror.NewWithField(apperror.CodeInvalidNode,
				fmt.Sprintf("rc entry %d has negative values", i), "rc"))
		}
	}
}

func (b *Builder) validateNodes(grid *Grid, verrs *apperror.ValidationErrors) {
	for i := range b.nodes {
		n := &b.nodes[i]
		switch {
		case int(n.Type) >= NumNodeTypes:
			verrs.Add(apperror.Newf(apperror.CodeInvalidNode, "node %d has unknown type %d", i, n.Type))
		case n.RCIndex < 0 || int(n.RCIndex) >= len(b.rc):
			verrs.Add(apperror.Newf(apperror.CodeInvalidNode, "node %d references unknown rc entry %d", i, n.RCIndex))
		case n.XLow > n.XHigh || n.YLow > n.YHigh:
			verrs.Add(apperror.Newf(apperror.CodeInvalidNode, "node %d has an inverted extent", i))
		case !grid.InBounds(int(n.XLow), int(n.YLow), int(n.Layer)) ||
			!grid.InBounds(int(n.XHigh), int(n.YHigh), int(n.Layer)):
			verrs.Add(apperror.Newf(apperror.CodeInvalidNode, "node %d lies outside the %dx%dx%d grid",
				i, grid.Width, grid.Height, grid.Layers))
		case n.Capacity < 0:
			verrs.Add(apperror.Newf(apperror.CodeInvalidNode, "node %d has negative capacity", i))
		}
	}
}

func (b *Builder) validateEdges(verrs *apperror.ValidationErrors) {
	numNodes := NodeID(len(b.nodes))
	for i, e := range b.edges {
		if e.from < 0 || e.from >= numNodes || e.to < 0 || e.to >= numNodes {
			verrs.Add(apperror.Newf(apperror.CodeDanglingEdge,
				"edge %d (%d -> %d) references a missing node", i, e.from, e.to))
			continue
		}
		if e.sw < 0 || int(e.sw) >= len(b.switches) {
			verrs.Add(apperror.Newf(apperror.CodeInvalidSwitch,
				"edge %d (%d -> %d) references unknown switch %d", i, e.from, e.to, e.sw))
		}
	}
}

func inferGrid(nodes []Node) *Grid {
	w, h, l := 0, 0, 0
	for i := range nodes {
		w = max(w, int(nodes[i].XHigh)+1)
		h = max(h, int(nodes[i].YHigh)+1)
		l = max(l, int(nodes[i].Layer)+1)
	}
	return NewGrid(w, h, l)
}

// =============================================================================
// Freezing
// =============================================================================

// buildCSR is a stable counting sort of edges by source node.
func (g *Graph) buildCSR(edges []rawEdge) {
	n := len(g.nodes)
	g.offsets = make([]int32, n+1)
	for _, e := range edges {
		g.offsets[e.from+1]++
	}
	for i := 0; i < n; i++ {
		g.offsets[i+1] += g.offsets[i]
	}

	g.edgeSource = make([]NodeID, len(edges))
	g.edgeSink = make([]NodeID, len(edges))
	g.edgeSwitch = make([]SwitchID, len(edges))

	next := make([]int32, n)
	copy(next, g.offsets[:n])
	for _, e := range edges {
		pos := next[e.from]
		next[e.from]++
		g.edgeSource[pos] = e.from
		g.edgeSink[pos] = e.to
		g.edgeSwitch[pos] = e.sw
	}
}

// buildSets assigns set ids. Explicit sets are checked against the
// non-configurable edges; otherwise sets are the components of those edges.
func (g *Graph) buildSets(explicit [][]NodeID) error {
	g.nodeSet = make([]int32, len(g.nodes))
	for i := range g.nodeSet {
		g.nodeSet[i] = NoSet
	}

	if len(explicit) == 0 {
		g.inferSets()
		return nil
	}

	verrs := apperror.NewValidationErrors()
	for id, members := range explicit {
		for _, m := range members {
			switch {
			case !g.HasNode(m):
				verrs.Add(apperror.Newf(apperror.CodeNonConfigSet, "set %d references missing node %d", id, m))
			case g.nodeSet[m] != NoSet:
				verrs.Add(apperror.Newf(apperror.CodeNonConfigSet, "node %d is in sets %d and %d", m, g.nodeSet[m], id))
			default:
				g.nodeSet[m] = int32(id)
			}
		}
		sorted := append([]NodeID(nil), members...)
		sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
		g.setMembers = append(g.setMembers, sorted)
	}

	for e := range g.edgeSink {
		if g.switches[g.edgeSwitch[e]].Configurable {
			continue
		}
		from, to := g.edgeSource[e], g.edgeSink[e]
		if g.nodeSet[from] == NoSet || g.nodeSet[from] != g.nodeSet[to] {
			verrs.Add(apperror.Newf(apperror.CodeNonConfigSet,
				"non-configurable edge %d -> %d crosses set boundaries", from, to))
		}
	}
	return verrs.Err()
}

func (g *Graph) inferSets() {
	parent := make([]int32, len(g.nodes))
	for i := range parent {
		parent[i] = int32(i)
	}
	find := func(x int32) int32 {
		for parent[x] != x {
			parent[x] = parent[parent[x]]
			x = parent[x]
		}
		return x
	}

	inSet := make([]bool, len(g.nodes))
	for e := range g.edgeSink {
		if g.switches[g.edgeSwitch[e]].Configurable {
			continue
		}
		a, b := find(int32(g.edgeSource[e])), find(int32(g.edgeSink[e]))
		inSet[g.edgeSource[e]] = true
		inSet[g.edgeSink[e]] = true
		if a != b {
			// Smaller root wins so set ids follow node order.
			if a < b {
				parent[b] = a
			} else {
				parent[a] = b
			}
		}
	}

	rootSet := make(map[int32]int32)
	for i := range g.nodes {
		if !inSet[i] {
			continue
		}
		root := find(int32(i))
		id, ok := rootSet[root]
		if !ok {
			id = int32(len(g.setMembers))
			rootSet[root] = id
			g.setMembers = append(g.setMembers, nil)
		}
		g.nodeSet[i] = id
		g.setMembers[id] = append(g.setMembers[id], NodeID(i))
	}
}
