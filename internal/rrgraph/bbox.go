package rrgraph

import "fmt"

// BoundingBox is an inclusive window [XMin,XMax] x [YMin,YMax] x [LayerMin,LayerMax].
type BoundingBox struct {
	XMin, XMax         int
	YMin, YMax         int
	LayerMin, LayerMax int
}

// Valid reports whether every range is non-empty.
func (b BoundingBox) Valid() bool {
	return b.XMin <= b.XMax && b.YMin <= b.YMax && b.LayerMin <= b.LayerMax
}

// Contains reports whether the node overlaps the box. A long wire that
// crosses the boundary counts as inside; only nodes lying entirely outside
// are excluded.
func (b BoundingBox) Contains(n *Node) bool {
	return int(n.XHigh) >= b.XMin && int(n.XLow) <= b.XMax &&
		int(n.YHigh) >= b.YMin && int(n.YLow) <= b.YMax &&
		int(n.Layer) >= b.LayerMin && int(n.Layer) <= b.LayerMax
}

// Encloses reports whether the node lies entirely within the box.
func (b BoundingBox) Encloses(n *Node) bool {
	return int(n.XLow) >= b.XMin && int(n.XHigh) <= b.XMax &&
		int(n.YLow) >= b.YMin && int(n.YHigh) <= b.YMax &&
		int(n.Layer) >= b.LayerMin && int(n.Layer) <= b.LayerMax
}

// ContainsPoint reports whether (x, y, layer) is inside the box.
func (b BoundingBox) ContainsPoint(x, y, layer int) bool {
	return x >= b.XMin && x <= b.XMax && y >= b.YMin && y <= b.YMax &&
		layer >= b.LayerMin && layer <= b.LayerMax
}

// Expand grows the box by margin tiles in x and y. Layers are untouched.
func (b BoundingBox) Expand(margin int) BoundingBox {
	return BoundingBox{
		XMin: b.XMin - margin, XMax: b.XMax + margin,
		YMin: b.YMin - margin, YMax: b.YMax + margin,
		LayerMin: b.LayerMin, LayerMax: b.LayerMax,
	}
}

// Clip intersects the box with limit.
func (b BoundingBox) Clip(limit BoundingBox) BoundingBox {
	return BoundingBox{
		XMin: max(b.XMin, limit.XMin), XMax: min(b.XMax, limit.XMax),
		YMin: max(b.YMin, limit.YMin), YMax: min(b.YMax, limit.YMax),
		LayerMin: max(b.LayerMin, limit.LayerMin), LayerMax: min(b.LayerMax, limit.LayerMax),
	}
}

// Union returns the smallest box covering both.
func (b BoundingBox) Union(o BoundingBox) BoundingBox {
	return BoundingBox{
		XMin: min(b.XMin, o.XMin), XMax: max(b.XMax, o.XMax),
		YMin: min(b.YMin, o.YMin), YMax: max(b.YMax, o.YMax),
		LayerMin: min(b.LayerMin, o.LayerMin), LayerMax: max(b.LayerMax, o.LayerMax),
	}
}

// Cover grows the box to include the node's extent.
func (b BoundingBox) Cover(n *Node) BoundingBox {
	return b.Union(NodeBox(n))
}

// NodeBox is the extent of a node as a box.
func NodeBox(n *Node) BoundingBox {
	return BoundingBox{
		XMin: int(n.XLow), XMax: int(n.XHigh),
		YMin: int(n.YLow), YMax: int(n.YHigh),
		LayerMin: int(n.Layer), LayerMax: int(n.Layer),
	}
}

// Equal compares all six bounds.
func (b BoundingBox) Equal(o BoundingBox) bool {
	return b == o
}

// Area is the number of tiles covered per layer.
func (b BoundingBox) Area() int {
	if !b.Valid() {
		return 0
	}
	return (b.XMax - b.XMin + 1) * (b.YMax - b.YMin + 1)
}

// Array returns the bounds in xmin, xmax, ymin, ymax, layer min, layer max order.
func (b BoundingBox) Array() [6]int32 {
	return [6]int32{
		int32(b.XMin), int32(b.XMax), int32(b.YMin), int32(b.YMax),
		int32(b.LayerMin), int32(b.LayerMax),
	}
}

func (b BoundingBox) String() string {
	return fmt.Sprintf("[%d..%d]x[%d..%d]x[%d..%d]",
		b.XMin, b.XMax, b.YMin, b.YMax, b.LayerMin, b.LayerMax)
}
