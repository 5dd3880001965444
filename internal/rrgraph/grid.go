package rrgraph

import "fmt"

// Grid is the device floorplan. Every tile belongs to exactly one block;
// by default a block covers a single tile.
type Grid struct {
	Width  int
	Height int
	Layers int

	tiles []tile
}

type tile struct {
	ox, oy int16 // block origin
	w, h   int16 // block footprint
}

// NewGrid creates a grid of single-tile blocks.
func NewGrid(width, height, layers int) *Grid {
	g := &Grid{Width: width, Height: height, Layers: layers}
	g.tiles = make([]tile, width*height*layers)
	for l := 0; l < layers; l++ {
		for y := 0; y < height; y++ {
			for x := 0; x < width; x++ {
				g.tiles[g.index(x, y, l)] = tile{ox: int16(x), oy: int16(y), w: 1, h: 1}
			}
		}
	}
	return g
}

func (g *Grid) index(x, y, layer int) int {
	return (layer*g.Height+y)*g.Width + x
}

// InBounds reports whether a tile coordinate exists.
func (g *Grid) InBounds(x, y, layer int) bool {
	return x >= 0 && x < g.Width && y >= 0 && y < g.Height && layer >= 0 && layer < g.Layers
}

// SetBlock places a w x h block with its origin at (x, y).
func (g *Grid) SetBlock(x, y, layer, w, h int) error {
	if w < 1 || h < 1 || !g.InBounds(x, y, layer) || !g.InBounds(x+w-1, y+h-1, layer) {
		return fmt.Errorf("block %dx%d at (%d,%d,%d) does not fit a %dx%dx%d grid",
			w, h, x, y, layer, g.Width, g.Height, g.Layers)
	}
	for dy := 0; dy < h; dy++ {
		for dx := 0; dx < w; dx++ {
			g.tiles[g.index(x+dx, y+dy, layer)] = tile{ox: int16(x), oy: int16(y), w: int16(w), h: int16(h)}
		}
	}
	return nil
}

// TileBB is the rectangle of the block occupying (x, y, layer).
func (g *Grid) TileBB(x, y, layer int) BoundingBox {
	if !g.InBounds(x, y, layer) {
		return BoundingBox{XMin: x, XMax: x, YMin: y, YMax: y, LayerMin: layer, LayerMax: layer}
	}
	t := g.tiles[g.index(x, y, layer)]
	return BoundingBox{
		XMin: int(t.ox), XMax: int(t.ox + t.w - 1),
		YMin: int(t.oy), YMax: int(t.oy + t.h - 1),
		LayerMin: layer, LayerMax: layer,
	}
}

// BlockOrigin returns the origin tile of the block at (x, y, layer).
func (g *Grid) BlockOrigin(x, y, layer int) (int, int) {
	if !g.InBounds(x, y, layer) {
		return x, y
	}
	t := g.tiles[g.index(x, y, layer)]
	return int(t.ox), int(t.oy)
}

// FullBoundingBox covers the whole device.
func (g *Grid) FullBoundingBox() BoundingBox {
	return BoundingBox{
		XMin: 0, XMax: g.Width - 1,
		YMin: 0, YMax: g.Height - 1,
		LayerMin: 0, LayerMax: g.Layers - 1,
	}
}

// IsFullDevice reports whether bb equals the device extent exactly.
func (g *Grid) IsFullDevice(bb BoundingBox) bool {
	return bb == g.FullBoundingBox()
}

// Blocks lists every multi-tile block once.
func (g *Grid) Blocks() []Block {
	var out []Block
	for l := 0; l < g.Layers; l++ {
		for y := 0; y < g.Height; y++ {
			for x := 0; x < g.Width; x++ {
				t := g.tiles[g.index(x, y, l)]
				if int(t.ox) == x && int(t.oy) == y && (t.w > 1 || t.h > 1) {
					out = append(out, Block{X: x, Y: y, Layer: l, Width: int(t.w), Height: int(t.h)})
				}
			}
		}
	}
	return out
}
