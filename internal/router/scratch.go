package router

import (
	"sync"

	"fpgaroute/internal/routetree"
	"fpgaroute/internal/rrgraph"
)

// scratch holds the temporary buffers of one search: the reversed
// predecessor chain and the seeding stack.
type scratch struct {
	edges []rrgraph.EdgeID
	stack []*routetree.Node
}

var scratchPool = sync.Pool{
	New: func() any {
		return &scratch{
			edges: make([]rrgraph.EdgeID, 0, 64),
			stack: make([]*routetree.Node, 0, 64),
		}
	},
}

func getScratch() *scratch {
	return scratchPool.Get().(*scratch)
}

func putScratch(s *scratch) {
	// Buffers grown past 64k entries are left to the GC.
	if cap(s.edges) > 1<<16 || cap(s.stack) > 1<<16 {
		return
	}
	clear(s.stack[:cap(s.stack)])
	s.edges = s.edges[:0]
	s.stack = s.stack[:0]
	scratchPool.Put(s)
}
