// Package rrgraph holds the immutable routing-resource graph of a device:
// wire segments and pins as nodes, programmable switches as edges.
//
// A Graph is built once through a Builder (or Generate / LoadYAML) and is
// read-only afterwards, so any number of search workers may read it without
// synchronization.
package rrgraph

import (
	"fmt"
	"strings"
)

// =============================================================================
// Identifiers
// =============================================================================

// NodeID identifies a routing resource.
type NodeID int32

// EdgeID identifies an outgoing edge. Edges of one node are contiguous, so
// comparing EdgeIDs gives a total order that is stable across runs.
type EdgeID int32

// SwitchID indexes the switch table.
type SwitchID int32

// NoNode and NoEdge mark an absent node or predecessor edge.
const (
	NoNode NodeID = -1
	NoEdge EdgeID = -1
)

// Valid reports whether the id refers to a node.
func (n NodeID) Valid() bool { return n >= 0 }

// Valid reports whether the id refers to an edge.
func (e EdgeID) Valid() bool { return e >= 0 }

// =============================================================================
// Node types
// =============================================================================

// NodeType is the kind of routing resource.
type NodeType uint8

const (
	Source NodeType = iota
	Sink
	IPin
	OPin
	ChanX
	ChanY

	numNodeTypes
)

// NumNodeTypes is the number of distinct node types.
const NumNodeTypes = int(numNodeTypes)

var nodeTypeNames = [...]string{"SOURCE", "SINK", "IPIN", "OPIN", "CHANX", "CHANY"}

func (t NodeType) String() string {
	if int(t) < len(nodeTypeNames) {
		return nodeTypeNames[t]
	}
	return fmt.Sprintf("NodeType(%d)", uint8(t))
}

// IsWire reports whether the node is a routing channel segment.
func (t NodeType) IsWire() bool { return t == ChanX || t == ChanY }

// ParseNodeType parses the names produced by NodeType.String, case-insensitively.
func ParseNodeType(s string) (NodeType, error) {
	up := strings.ToUpper(strings.TrimSpace(s))
	for i, name := range nodeTypeNames {
		if name == up {
			return NodeType(i), nil
		}
	}
	return 0, fmt.Errorf("unknown node type %q", s)
}

// MarshalText encodes the type by name.
func (t NodeType) MarshalText() ([]byte, error) {
	if int(t) >= len(nodeTypeNames) {
		return nil, fmt.Errorf("invalid node type %d", uint8(t))
	}
	return []byte(t.String()), nil
}

// UnmarshalText decodes a type name.
func (t *NodeType) UnmarshalText(b []byte) error {
	v, err := ParseNodeType(string(b))
	if err != nil {
		return err
	}
	*t = v
	return nil
}

// =============================================================================
// Nodes, switches, RC data
// =============================================================================

// Node is one routing resource. Extents are inclusive grid coordinates.
type Node struct {
	Type     NodeType
	Layer    int16
	XLow     int16
	XHigh    int16
	YLow     int16
	YHigh    int16
	Capacity int32
	RCIndex  int32
	// Intra marks resources inside a logic cluster; used only to split counters.
	Intra bool
}

// Switch describes the electrical behaviour of a programmable connection.
type Switch struct {
	Name      string
	R         float32
	Tdel      float32
	Cinternal float32
	Buffered  bool
	// Configurable is false for permanent connections (non-configurable node sets).
	Configurable bool
}

// RCData is the lumped resistance and capacitance of a node.
type RCData struct {
	R float32
	C float32
}
