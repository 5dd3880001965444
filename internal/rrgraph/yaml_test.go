package rrgraph

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fpgaroute/pkg/apperror"
)

const tinyDevice = `
grid: {width: 3, height: 1, layers: 1}
switches:
  - {name: buf, r: 10, tdel: 1e-11, buffered: true, configurable: true}
  - {name: short, r: 0, tdel: 0, buffered: false, configurable: false}
rc:
  - {r: 0, c: 1e-15}
  - {r: 50, c: 2e-14}
nodes:
  - {type: source, xlow: 0, xhigh: 0, ylow: 0, yhigh: 0, capacity: 1, rc: 0}
  - {type: OPIN, xlow: 0, xhigh: 0, ylow: 0, yhigh: 0, capacity: 1, rc: 0}
  - {type: CHANX, xlow: 0, xhigh: 2, ylow: 0, yhigh: 0, capacity: 1, rc: 1}
  - {type: CHANX, xlow: 2, xhigh: 2, ylow: 0, yhigh: 0, capacity: 1, rc: 1}
  - {type: IPIN, xlow: 2, xhigh: 2, ylow: 0, yhigh: 0, capacity: 1, rc: 0}
  - {type: SINK, xlow: 2, xhigh: 2, ylow: 0, yhigh: 0, capacity: 1, rc: 0}
edges:
  - [0, 1, 0]
  - [1, 2, 0]
  - [2, 3, 1]
  - [3, 4, 0]
  - [4, 5, 0]
`

func TestLoadYAML(t *testing.T) {
	g, err := LoadYAML(strings.NewReader(tinyDevice))
	require.NoError(t, err)

	assert.Equal(t, 6, g.NumNodes())
	assert.Equal(t, 5, g.NumEdges())
	assert.Equal(t, Source, g.Node(0).Type)
	assert.Equal(t, ChanX, g.Node(2).Type)
	assert.Equal(t, float32(50), g.RC(3).R)
	assert.False(t, g.Switch(g.EdgeSwitch(2)).Configurable)
	assert.Equal(t, []NodeID{2, 3}, g.NonConfigSetMembers(g.NonConfigSet(2)))
}

func TestYAML_RoundTrip(t *testing.T) {
	g := MustGenerate(GridSpec{
		Width: 4, Height: 3, Layers: 2, ChannelWidth: 2, SegmentLength: 2, PinsPerTile: 1,
		Blocks: []Block{{X: 0, Y: 1, Layer: 1, Width: 2, Height: 2}},
	})

	path := filepath.Join(t.TempDir(), "device.yaml")
	require.NoError(t, WriteYAMLFile(path, g))

	loaded, err := LoadYAMLFile(path)
	require.NoError(t, err)

	assert.Equal(t, g.Fingerprint(), loaded.Fingerprint())
	assert.Equal(t, g.NumNonConfigSets(), loaded.NumNonConfigSets())
	assert.Equal(t, g.Grid().Blocks(), loaded.Grid().Blocks())
}

func TestYAML_EdgesAreFlowSequences(t *testing.T) {
	g, err := LoadYAML(strings.NewReader(tinyDevice))
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, WriteYAML(&buf, g))
	assert.Contains(t, buf.String(), "- [0, 1, 0]")
	assert.Contains(t, buf.String(), "type: CHANX")
	assert.Contains(t, buf.String(), "- [2, 3]")
}

func TestLoadYAML_Errors(t *testing.T) {
	tests := []struct {
		name string
		doc  string
		code apperror.ErrorCode
	}{
		{"syntax", "grid: [", apperror.CodeInvalidDevice},
		{"unknown field", "grid: {width: 1, height: 1, layers: 1}\nbogus: 1\n", apperror.CodeInvalidDevice},
		{"bad node type", "nodes:\n  - {type: WIRE}\n", apperror.CodeInvalidDevice},
		{"short edge", strings.Replace(tinyDevice, "[4, 5, 0]", "[4, 5]", 1), apperror.CodeInvalidDevice},
		{"dangling edge", strings.Replace(tinyDevice, "[4, 5, 0]", "[4, 9, 0]", 1), apperror.CodeDanglingEdge},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadYAML(strings.NewReader(tt.doc))
			require.Error(t, err)
			assert.True(t, apperror.Is(err, tt.code), "got %v", err)
		})
	}
}

func TestLoadYAMLFile_Missing(t *testing.T) {
	_, err := LoadYAMLFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.True(t, apperror.Is(err, apperror.CodeInvalidDevice))
}
