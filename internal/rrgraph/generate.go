package rrgraph

import (
	"fpgaroute/pkg/apperror"
)

// GridSpec parameterizes a synthetic island-style device.
type GridSpec struct {
	Width         int
	Height        int
	Layers        int
	ChannelWidth  int // tracks per channel
	SegmentLength int // tiles spanned by a full-length wire
	PinsPerTile   int // input pins and output pins per tile
	// PassTransistor makes wire-to-wire switches unbuffered.
	PassTransistor bool
	// Blocks places multi-tile blocks; all other tiles are 1x1.
	Blocks []Block
}

// Switch ids of a generated device.
const (
	SwitchDelayless SwitchID = iota
	SwitchOPin
	SwitchWire
	SwitchIPin
	SwitchVia
)

// Electrical constants of a generated device, in ohms, seconds and farads.
const (
	genWireRPerTile float32 = 100
	genWireCPerTile float32 = 20e-15
	genPinC         float32 = 2e-15
)

// Validate checks the spec before generation.
func (s GridSpec) Validate() error {
	verrs := apperror.NewValidationErrors()
	check := func(ok bool, field, msg string) {
		if !ok {
			verrs.Add(apperror.NewWithField(apperror.CodeInvalidDevice, msg, field))
		}
	}
	check(s.Width >= 1, "width", "width must be at least 1")
	check(s.Height >= 1, "height", "height must be at least 1")
	check(s.Layers >= 1, "layers", "layers must be at least 1")
	check(s.ChannelWidth >= 1, "channel_width", "channel width must be at least 1")
	check(s.SegmentLength >= 1, "segment_length", "segment length must be at least 1")
	check(s.PinsPerTile >= 1, "pins_per_tile", "pins per tile must be at least 1")
	check(s.Width <= 1<<14 && s.Height <= 1<<14 && s.Layers <= 64, "grid", "grid is too large")
	return verrs.Err()
}

// Generate builds a deterministic island-style device:
//
//	SOURCE -> OPIN -> CHANX/CHANY ... CHANX/CHANY -> IPIN -> SINK
//
// Every block owns one SOURCE and one SINK spanning its footprint, and every
// tile of a block owns PinsPerTile output and input pins. Each row carries a
// horizontal channel and each column a vertical channel of ChannelWidth
// tracks. Wires of track t start where (coordinate + t) is a multiple of
// SegmentLength, so segment boundaries are staggered across tracks. Switch
// boxes are disjoint: a wire endpoint connects only to wires on the same
// track. Layers are joined by vias at the low end of every horizontal wire.
//
// The same spec always yields the same node and edge numbering.
func Generate(spec GridSpec) (*Graph, error) {
	if err := spec.Validate(); err != nil {
		return nil, err
	}

	gen := newGenerator(spec)
	if err := gen.placeBlocks(); err != nil {
		return nil, err
	}
	gen.addBlocks()
	gen.addWires()
	gen.connectPins()
	gen.connectSwitchBoxes()
	gen.connectVias()
	return gen.b.Build()
}

// MustGenerate is Generate for fixtures.
func MustGenerate(spec GridSpec) *Graph {
	g, err := Generate(spec)
	if err != nil {
		panic(err)
	}
	return g
}

// =============================================================================
// Generator
// =============================================================================

type generator struct {
	spec GridSpec
	b    *Builder
	grid *Grid

	pinRC  int32
	wireRC []int32 // by wire length

	// tile pins, indexed by tileIndex
	opins [][]NodeID
	ipins [][]NodeID

	// chanx[layer][y][track][x] is the wire covering x on that track
	chanx [][][][]NodeID
	// chany[layer][x][track][y]
	chany [][][][]NodeID

	wires []NodeID
	seen  map[[2]NodeID]struct{}
}

func newGenerator(spec GridSpec) *generator {
	b := NewBuilder()
	b.SetGrid(spec.Width, spec.Height, spec.Layers)
	for _, blk := range spec.Blocks {
		b.SetBlock(blk.X, blk.Y, blk.Layer, blk.Width, blk.Height)
	}

	wireSw := Switch{Name: "wire", R: 150, Tdel: 60e-12, Cinternal: 5e-15, Buffered: true, Configurable: true}
	if spec.PassTransistor {
		wireSw = Switch{Name: "wire_pass", R: 400, Tdel: 25e-12, Cinternal: 3e-15, Buffered: false, Configurable: true}
	}
	b.AddSwitch(Switch{Name: "delayless", Buffered: true, Configurable: true})
	b.AddSwitch(Switch{Name: "opin", R: 80, Tdel: 30e-12, Buffered: true, Configurable: true})
	b.AddSwitch(wireSw)
	b.AddSwitch(Switch{Name: "ipin", R: 0, Tdel: 45e-12, Buffered: true, Configurable: true})
	b.AddSwitch(Switch{Name: "via", R: 250, Tdel: 90e-12, Cinternal: 8e-15, Buffered: true, Configurable: true})

	gen := &generator{
		spec: spec,
		b:    b,
		grid: NewGrid(spec.Width, spec.Height, spec.Layers),
		seen: make(map[[2]NodeID]struct{}),
	}
	gen.pinRC = b.AddRC(RCData{R: 0, C: genPinC})
	gen.wireRC = make([]int32, spec.SegmentLength+1)
	for l := 1; l <= spec.SegmentLength; l++ {
		gen.wireRC[l] = b.AddRC(RCData{R: genWireRPerTile * float32(l), C: genWireCPerTile * float32(l)})
	}
	return gen
}

func (gen *generator) placeBlocks() error {
	for _, blk := range gen.spec.Blocks {
		if err := gen.grid.SetBlock(blk.X, blk.Y, blk.Layer, blk.Width, blk.Height); err != nil {
			return apperror.Wrap(err, apperror.CodeInvalidDevice, "invalid block")
		}
	}
	return nil
}

func (gen *generator) tileIndex(x, y, l int) int {
	return (l*gen.spec.Height+y)*gen.spec.Width + x
}

// addBlocks creates SOURCE, SINK and pins. Tiles are visited row-major, so a
// block origin always precedes the other tiles of its block.
func (gen *generator) addBlocks() {
	s := gen.spec
	n := s.Width * s.Height * s.Layers
	gen.opins = make([][]NodeID, n)
	gen.ipins = make([][]NodeID, n)
	sources := make(map[int]NodeID)
	sinks := make(map[int]NodeID)

	for l := 0; l < s.Layers; l++ {
		for y := 0; y < s.Height; y++ {
			for x := 0; x < s.Width; x++ {
				ox, oy := gen.grid.BlockOrigin(x, y, l)
				origin := gen.tileIndex(ox, oy, l)
				if ox == x && oy == y {
					bb := gen.grid.TileBB(x, y, l)
					capacity := int32(bb.Area() * s.PinsPerTile)
					sources[origin] = gen.b.AddNode(blockNode(Source, bb, capacity, gen.pinRC))
					sinks[origin] = gen.b.AddNode(blockNode(Sink, bb, capacity, gen.pinRC))
				}

				tile := gen.tileIndex(x, y, l)
				for p := 0; p < s.PinsPerTile; p++ {
					op := gen.b.AddNode(tileNode(OPin, x, y, l, gen.pinRC))
					gen.b.AddEdge(sources[origin], op, SwitchDelayless)
					gen.opins[tile] = append(gen.opins[tile], op)
				}
				for p := 0; p < s.PinsPerTile; p++ {
					ip := gen.b.AddNode(tileNode(IPin, x, y, l, gen.pinRC))
					gen.b.AddEdge(ip, sinks[origin], SwitchDelayless)
					gen.ipins[tile] = append(gen.ipins[tile], ip)
				}
			}
		}
	}
}

func blockNode(t NodeType, bb BoundingBox, capacity, rc int32) Node {
	return Node{
		Type:     t,
		Layer:    int16(bb.LayerMin),
		XLow:     int16(bb.XMin),
		XHigh:    int16(bb.XMax),
		YLow:     int16(bb.YMin),
		YHigh:    int16(bb.YMax),
		Capacity: capacity,
		RCIndex:  rc,
		Intra:    true,
	}
}

func tileNode(t NodeType, x, y, l int, rc int32) Node {
	return Node{
		Type:     t,
		Layer:    int16(l),
		XLow:     int16(x),
		XHigh:    int16(x),
		YLow:     int16(y),
		YHigh:    int16(y),
		Capacity: 1,
		RCIndex:  rc,
	}
}

// addWires lays out staggered segments on every track of every channel.
func (gen *generator) addWires() {
	s := gen.spec
	gen.chanx = make([][][][]NodeID, s.Layers)
	gen.chany = make([][][][]NodeID, s.Layers)

	for l := 0; l < s.Layers; l++ {
		gen.chanx[l] = make([][][]NodeID, s.Height)
		for y := 0; y < s.Height; y++ {
			gen.chanx[l][y] = make([][]NodeID, s.ChannelWidth)
			for t := 0; t < s.ChannelWidth; t++ {
				gen.chanx[l][y][t] = gen.layTrack(ChanX, l, y, t, s.Width)
			}
		}
	}
	for l := 0; l < s.Layers; l++ {
		gen.chany[l] = make([][][]NodeID, s.Width)
		for x := 0; x < s.Width; x++ {
			gen.chany[l][x] = make([][]NodeID, s.ChannelWidth)
			for t := 0; t < s.ChannelWidth; t++ {
				gen.chany[l][x][t] = gen.layTrack(ChanY, l, x, t, s.Height)
			}
		}
	}
}

// layTrack splits one track of length span into segments and returns the
// covering wire per position.
func (gen *generator) layTrack(t NodeType, layer, fixed, track, span int) []NodeID {
	L := gen.spec.SegmentLength
	cover := make([]NodeID, span)
	for lo := 0; lo < span; {
		hi := lo
		for hi+1 < span && (hi+1+track)%L != 0 {
			hi++
		}
		n := Node{Type: t, Layer: int16(layer), Capacity: 1, RCIndex: gen.wireRC[hi-lo+1]}
		if t == ChanX {
			n.XLow, n.XHigh = int16(lo), int16(hi)
			n.YLow, n.YHigh = int16(fixed), int16(fixed)
		} else {
			n.XLow, n.XHigh = int16(fixed), int16(fixed)
			n.YLow, n.YHigh = int16(lo), int16(hi)
		}
		id := gen.b.AddNode(n)
		gen.wires = append(gen.wires, id)
		for p := lo; p <= hi; p++ {
			cover[p] = id
		}
		lo = hi + 1
	}
	return cover
}

// pinTracks returns the tracks a pin connects to.
func (gen *generator) pinTracks(pin int) []int {
	s := gen.spec
	var tracks []int
	for t := pin; t < s.ChannelWidth; t += s.PinsPerTile {
		tracks = append(tracks, t)
	}
	if len(tracks) == 0 {
		tracks = append(tracks, pin%s.ChannelWidth)
	}
	return tracks
}

func (gen *generator) connectPins() {
	s := gen.spec
	for l := 0; l < s.Layers; l++ {
		for y := 0; y < s.Height; y++ {
			for x := 0; x < s.Width; x++ {
				tile := gen.tileIndex(x, y, l)
				for p, op := range gen.opins[tile] {
					for _, t := range gen.pinTracks(p) {
						gen.b.AddEdge(op, gen.chanx[l][y][t][x], SwitchOPin)
						gen.b.AddEdge(op, gen.chany[l][x][t][y], SwitchOPin)
					}
				}
				for p, ip := range gen.ipins[tile] {
					for _, t := range gen.pinTracks(p) {
						gen.b.AddEdge(gen.chanx[l][y][t][x], ip, SwitchIPin)
						gen.b.AddEdge(gen.chany[l][x][t][y], ip, SwitchIPin)
					}
				}
			}
		}
	}
}

// connectSwitchBoxes joins every wire endpoint to the perpendicular wire on
// the same track and to the straight continuation, in both directions.
func (gen *generator) connectSwitchBoxes() {
	s := gen.spec
	for _, w := range gen.wires {
		n := gen.b.nodes[w]
		l := int(n.Layer)
		track := gen.trackOf(w, &n)
		if n.Type == ChanX {
			y := int(n.YLow)
			for _, x := range []int{int(n.XLow), int(n.XHigh)} {
				gen.link(w, gen.chany[l][x][track][y], SwitchWire)
			}
			if int(n.XHigh)+1 < s.Width {
				gen.link(w, gen.chanx[l][y][track][int(n.XHigh)+1], SwitchWire)
			}
		} else {
			x := int(n.XLow)
			for _, y := range []int{int(n.YLow), int(n.YHigh)} {
				gen.link(w, gen.chanx[l][y][track][x], SwitchWire)
			}
			if int(n.YHigh)+1 < s.Height {
				gen.link(w, gen.chany[l][x][track][int(n.YHigh)+1], SwitchWire)
			}
		}
	}
}

func (gen *generator) connectVias() {
	s := gen.spec
	for l := 0; l+1 < s.Layers; l++ {
		for y := 0; y < s.Height; y++ {
			for t := 0; t < s.ChannelWidth; t++ {
				row := gen.chanx[l][y][t]
				for x := 0; x < s.Width; x++ {
					if x > 0 && row[x] == row[x-1] {
						continue
					}
					gen.link(row[x], gen.chanx[l+1][y][t][x], SwitchVia)
				}
			}
		}
	}
}

// trackOf recovers the track index of a wire from the channel tables.
func (gen *generator) trackOf(w NodeID, n *Node) int {
	l := int(n.Layer)
	for t := 0; t < gen.spec.ChannelWidth; t++ {
		if n.Type == ChanX && gen.chanx[l][n.YLow][t][n.XLow] == w {
			return t
		}
		if n.Type == ChanY && gen.chany[l][n.XLow][t][n.YLow] == w {
			return t
		}
	}
	return 0
}

// link adds a <-> b once.
func (gen *generator) link(a, b NodeID, sw SwitchID) {
	if a == b {
		return
	}
	key := [2]NodeID{min(a, b), max(a, b)}
	if _, ok := gen.seen[key]; ok {
		return
	}
	gen.seen[key] = struct{}{}
	gen.b.AddEdge(a, b, sw)
	gen.b.AddEdge(b, a, sw)
}
