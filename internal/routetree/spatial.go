package routetree

import (
	"math"

	"fpgaroute/internal/rrgraph"
)

// SpatialLookup bins route-tree nodes by grid location so that high-fanout
// seeding can find the routing near a sink without walking the whole tree.
// A node is filed under the bin of its low corner and, when different, the
// bin of its high corner.
type SpatialLookup struct {
	binSize int
	nx, ny  int
	bins    [][]*Node
}

// NewSpatialLookup creates an empty lookup covering grid with square bins of
// binSize tiles.
func NewSpatialLookup(grid *rrgraph.Grid, binSize int) *SpatialLookup {
	binSize = max(binSize, 1)
	nx := (grid.Width + binSize - 1) / binSize
	ny := (grid.Height + binSize - 1) / binSize
	return &SpatialLookup{
		binSize: binSize,
		nx:      nx,
		ny:      ny,
		bins:    make([][]*Node, nx*ny),
	}
}

// AutoBinSize picks a bin edge so that each bin holds about four sinks' worth
// of the net's bounding box area.
func AutoBinSize(netBB rrgraph.BoundingBox, fanout int) int {
	if fanout < 1 {
		return 1
	}
	areaPerSink := float64(netBB.Area()) / float64(fanout)
	return max(1, int(math.Sqrt(4*areaPerSink)))
}

// BinSize returns the bin edge length in tiles.
func (s *SpatialLookup) BinSize() int { return s.binSize }

// Dims returns the number of bins along x and y.
func (s *SpatialLookup) Dims() (int, int) { return s.nx, s.ny }

// BinOf maps a grid location to its bin.
func (s *SpatialLookup) BinOf(x, y int) (int, int) {
	return x / s.binSize, y / s.binSize
}

// Bin returns the nodes filed in bin (bx, by); nil when out of range.
func (s *SpatialLookup) Bin(bx, by int) []*Node {
	if bx < 0 || bx >= s.nx || by < 0 || by >= s.ny {
		return nil
	}
	return s.bins[by*s.nx+bx]
}

// Add files a tree node.
func (s *SpatialLookup) Add(g *rrgraph.Graph, n *Node) {
	rr := g.Node(n.RRNode)
	lx, ly := s.BinOf(int(rr.XLow), int(rr.YLow))
	hx, hy := s.BinOf(int(rr.XHigh), int(rr.YHigh))
	s.put(lx, ly, n)
	if lx != hx || ly != hy {
		s.put(hx, hy, n)
	}
}

// AddAll files several nodes, e.g. a freshly added branch.
func (s *SpatialLookup) AddAll(g *rrgraph.Graph, nodes []*Node) {
	for _, n := range nodes {
		s.Add(g, n)
	}
}

func (s *SpatialLookup) put(bx, by int, n *Node) {
	if bx < 0 || bx >= s.nx || by < 0 || by >= s.ny {
		return
	}
	i := by*s.nx + bx
	s.bins[i] = append(s.bins[i], n)
}

// Clear empties every bin.
func (s *SpatialLookup) Clear() {
	for i := range s.bins {
		s.bins[i] = nil
	}
}

// Rebuild refiles every node of t.
func (s *SpatialLookup) Rebuild(t *Tree) {
	s.Clear()
	s.AddAll(t.Graph(), t.Nodes())
}

// Len returns the number of filed entries; nodes spanning two bins count twice.
func (s *SpatialLookup) Len() int {
	total := 0
	for _, b := range s.bins {
		total += len(b)
	}
	return total
}
