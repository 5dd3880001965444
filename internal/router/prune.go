package router

import (
	"fmt"
	"strings"

	"fpgaroute/internal/rrgraph"
)

// =============================================================================
// Pruning
// =============================================================================

// PruningMode selects how ties in backward cost are resolved.
type PruningMode int

const (
	// PruneDeterministic keeps the preferred predecessor edge on ties, so the
	// result does not depend on thread scheduling.
	PruneDeterministic PruningMode = iota
	// PruneRelaxed rejects every tie. Faster, but results may vary between runs.
	PruneRelaxed
)

func (m PruningMode) String() string {
	switch m {
	case PruneDeterministic:
		return "deterministic"
	case PruneRelaxed:
		return "relaxed"
	default:
		return fmt.Sprintf("PruningMode(%d)", int(m))
	}
}

// ParsePruningMode parses "deterministic" or "relaxed".
func ParsePruningMode(s string) (PruningMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "deterministic":
		return PruneDeterministic, nil
	case "relaxed":
		return PruneRelaxed, nil
	default:
		return 0, fmt.Errorf("unknown pruning mode %q", s)
	}
}

// pruner decides whether a candidate may replace a node's record.
type pruner struct {
	mode   PruningMode
	params CostParams
	target rrgraph.NodeID
	state  *StateTable
}

// postTarget reports whether a candidate cannot beat the best path into the
// target found so far. The heuristic part of total is turned into an
// under-estimate by dividing out astar_fac and applying the post-target
// offset and factor. Equality is never pruned.
func (p *pruner) postTarget(total, back float32) bool {
	expected := total - back
	if p.params.AstarFac > 0.001 {
		expected /= p.params.AstarFac
	}
	expected = max(0, expected-p.params.PostTargetPruneOffset)
	expected *= p.params.PostTargetPruneFac
	return back+expected > p.state.Back(p.target)
}

// reject tests a candidate against the node's record read without a lock.
// A pass must be confirmed with rejectAgainst under the lock.
func (p *pruner) reject(n rrgraph.NodeID, total, back float32, edge rrgraph.EdgeID) bool {
	return p.rejectAgainst(NodeState{Back: p.state.Back(n), Prev: p.state.Prev(n)}, n, total, back, edge)
}

// rejectAgainst tests a candidate against a given record of node n.
func (p *pruner) rejectAgainst(best NodeState, n rrgraph.NodeID, total, back float32, edge rrgraph.EdgeID) bool {
	if n != p.target && p.postTarget(total, back) {
		return true
	}
	if back > best.Back {
		return true
	}
	if back == best.Back {
		if p.mode == PruneRelaxed {
			return true
		}
		return !preferredEdge(edge, best.Prev)
	}
	return false
}

// preferredEdge reports whether a tie should move the predecessor from
// current to candidate. A node seeded from the route tree (no edge) keeps
// that record; otherwise the lower edge id wins.
func preferredEdge(candidate, current rrgraph.EdgeID) bool {
	switch {
	case candidate == current:
		return false
	case !current.Valid():
		return false
	case !candidate.Valid():
		return true
	default:
		return candidate < current
	}
}

// skipStalePop reports whether a popped entry no longer describes the
// node's best record, or can no longer improve the target. back is the
// node's backward cost as the caller last saw it.
func (p *pruner) skipStalePop(n rrgraph.NodeID, poppedTotal, back float32) bool {
	stored := p.state.Total(n)
	if p.mode == PruneDeterministic {
		if poppedTotal != stored {
			return true
		}
	} else if poppedTotal > stored {
		return true
	}
	return n != p.target && p.postTarget(poppedTotal, back)
}
