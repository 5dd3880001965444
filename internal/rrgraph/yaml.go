package rrgraph

import (
	"fmt"
	"io"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"

	"fpgaroute/pkg/apperror"
)

// deviceDoc is the on-disk device description.
type deviceDoc struct {
	Grid          gridDoc     `yaml:"grid"`
	Blocks        []Block     `yaml:"blocks,omitempty"`
	Switches      []switchDoc `yaml:"switches"`
	RC            []rcDoc     `yaml:"rc"`
	Nodes         []nodeDoc   `yaml:"nodes"`
	Edges         []idList    `yaml:"edges"`
	NonConfigSets []idList    `yaml:"non_config_sets,omitempty"`
}

// idList is written on one line: [from, to, switch] or a set's members.
type idList []int32

func (l idList) MarshalYAML() (any, error) {
	n := &yaml.Node{Kind: yaml.SequenceNode, Style: yaml.FlowStyle}
	for _, v := range l {
		n.Content = append(n.Content, &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!int", Value: strconv.Itoa(int(v))})
	}
	return n, nil
}

type gridDoc struct {
	Width  int `yaml:"width"`
	Height int `yaml:"height"`
	Layers int `yaml:"layers"`
}

type switchDoc struct {
	Name         string  `yaml:"name"`
	R            float32 `yaml:"r"`
	Tdel         float32 `yaml:"tdel"`
	Cinternal    float32 `yaml:"cinternal,omitempty"`
	Buffered     bool    `yaml:"buffered"`
	Configurable bool    `yaml:"configurable"`
}

type rcDoc struct {
	R float32 `yaml:"r"`
	C float32 `yaml:"c"`
}

type nodeDoc struct {
	Type     NodeType `yaml:"type"`
	Layer    int16    `yaml:"layer,omitempty"`
	XLow     int16    `yaml:"xlow"`
	XHigh    int16    `yaml:"xhigh"`
	YLow     int16    `yaml:"ylow"`
	YHigh    int16    `yaml:"yhigh"`
	Capacity int32    `yaml:"capacity"`
	RC       int32    `yaml:"rc"`
	Intra    bool     `yaml:"intra,omitempty"`
}

// LoadYAML reads a device description. Edges are [from, to, switch]
// triples; node ids are positions in the nodes list.
func LoadYAML(r io.Reader) (*Graph, error) {
	var doc deviceDoc
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil {
		return nil, apperror.Wrap(err, apperror.CodeInvalidDevice, "failed to parse device description")
	}

	b := NewBuilder()
	if doc.Grid.Width > 0 || doc.Grid.Height > 0 || doc.Grid.Layers > 0 {
		b.SetGrid(doc.Grid.Width, doc.Grid.Height, max(doc.Grid.Layers, 1))
	}
	for _, blk := range doc.Blocks {
		b.SetBlock(blk.X, blk.Y, blk.Layer, blk.Width, blk.Height)
	}
	for _, sw := range doc.Switches {
		b.AddSwitch(Switch(sw))
	}
	for _, rc := range doc.RC {
		b.AddRC(RCData(rc))
	}
	for _, n := range doc.Nodes {
		b.AddNode(Node{
			Type:     n.Type,
			Layer:    n.Layer,
			XLow:     n.XLow,
			XHigh:    n.XHigh,
			YLow:     n.YLow,
			YHigh:    n.YHigh,
			Capacity: n.Capacity,
			RCIndex:  n.RC,
			Intra:    n.Intra,
		})
	}
	for i, e := range doc.Edges {
		if len(e) != 3 {
			return nil, apperror.Newf(apperror.CodeInvalidDevice,
				"edge %d must be [from, to, switch], got %d values", i, len(e))
		}
		b.AddEdge(NodeID(e[0]), NodeID(e[1]), SwitchID(e[2]))
	}
	for _, set := range doc.NonConfigSets {
		members := make([]NodeID, len(set))
		for i, m := range set {
			members[i] = NodeID(m)
		}
		b.AddNonConfigSet(members...)
	}
	return b.Build()
}

// LoadYAMLFile reads a device description from disk.
func LoadYAMLFile(path string) (*Graph, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, apperror.Wrap(err, apperror.CodeInvalidDevice, fmt.Sprintf("cannot open device file %s", path))
	}
	defer f.Close()
	return LoadYAML(f)
}

// WriteYAML writes g in the format read by LoadYAML. Non-configurable sets
// are written explicitly.
func WriteYAML(w io.Writer, g *Graph) error {
	doc := deviceDoc{
		Grid:   gridDoc{Width: g.grid.Width, Height: g.grid.Height, Layers: g.grid.Layers},
		Blocks: g.grid.Blocks(),
	}
	for _, sw := range g.switches {
		doc.Switches = append(doc.Switches, switchDoc(sw))
	}
	for _, rc := range g.rc {
		doc.RC = append(doc.RC, rcDoc(rc))
	}
	doc.Nodes = make([]nodeDoc, len(g.nodes))
	for i := range g.nodes {
		n := &g.nodes[i]
		doc.Nodes[i] = nodeDoc{
			Type:     n.Type,
			Layer:    n.Layer,
			XLow:     n.XLow,
			XHigh:    n.XHigh,
			YLow:     n.YLow,
			YHigh:    n.YHigh,
			Capacity: n.Capacity,
			RC:       n.RCIndex,
			Intra:    n.Intra,
		}
	}
	doc.Edges = make([]idList, len(g.edgeSink))
	for e := range g.edgeSink {
		doc.Edges[e] = idList{int32(g.edgeSource[e]), int32(g.edgeSink[e]), int32(g.edgeSwitch[e])}
	}
	for _, members := range g.setMembers {
		set := make(idList, len(members))
		for i, m := range members {
			set[i] = int32(m)
		}
		doc.NonConfigSets = append(doc.NonConfigSets, set)
	}

	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(&doc); err != nil {
		return fmt.Errorf("encode device: %w", err)
	}
	return enc.Close()
}

// WriteYAMLFile writes g to path.
func WriteYAMLFile(path string, g *Graph) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create device file: %w", err)
	}
	if err := WriteYAML(f, g); err != nil {
		_ = f.Close() //nolint:errcheck // the encode error wins
		return err
	}
	return f.Close()
}
