package router

import (
	"fmt"
	"math"

	"fpgaroute/internal/rrgraph"
	"fpgaroute/pkg/apperror"
)

// =============================================================================
// Cost parameters
// =============================================================================

// CostParams are the per-connection weights of the cost model.
type CostParams struct {
	// Criticality blends congestion (0) and delay (1).
	Criticality float32
	// AstarFac scales the lookahead estimate; 0 turns the search into Dijkstra.
	AstarFac float32
	// AstarOffset is subtracted from the lookahead estimate before scaling.
	AstarOffset float32
	// PostTargetPruneFac and PostTargetPruneOffset shape the under-estimate
	// used to discard candidates once the target has been reached.
	PostTargetPruneFac    float32
	PostTargetPruneOffset float32
	// BendCost is charged when a path turns between horizontal and vertical wires.
	BendCost float32
	// PresFac is the present-congestion factor handed to the congestion oracle.
	PresFac float32
}

// DefaultCostParams returns a balanced timing/congestion setting.
func DefaultCostParams() CostParams {
	return CostParams{
		Criticality:        0.5,
		AstarFac:           1.2,
		PostTargetPruneFac: 1.0,
		PresFac:            0.5,
	}
}

// Validate rejects parameters the search cannot run with.
func (p CostParams) Validate() error {
	verrs := apperror.NewValidationErrors()
	for _, f := range []struct {
		name string
		v    float32
	}{
		{"criticality", p.Criticality},
		{"astar_fac", p.AstarFac},
		{"astar_offset", p.AstarOffset},
		{"post_target_prune_fac", p.PostTargetPruneFac},
		{"post_target_prune_offset", p.PostTargetPruneOffset},
		{"bend_cost", p.BendCost},
		{"pres_fac", p.PresFac},
	} {
		if math.IsNaN(float64(f.v)) || math.IsInf(float64(f.v), 0) {
			verrs.Add(apperror.NewWithField(apperror.CodeInvalidCostParams,
				fmt.Sprintf("%s must be finite, got %g", f.name, f.v), f.name))
		}
	}
	if p.Criticality < 0 || p.Criticality > 1 {
		verrs.Add(apperror.NewWithField(apperror.CodeInvalidCostParams,
			fmt.Sprintf("criticality must be in [0, 1], got %g", p.Criticality), "criticality"))
	}
	if p.AstarFac < 0 {
		verrs.Add(apperror.NewWithField(apperror.CodeInvalidCostParams, "astar_fac must be non-negative", "astar_fac"))
	}
	if p.PostTargetPruneFac < 0 {
		verrs.Add(apperror.NewWithField(apperror.CodeInvalidCostParams,
			"post_target_prune_fac must be non-negative", "post_target_prune_fac"))
	}
	if p.BendCost < 0 {
		verrs.Add(apperror.NewWithField(apperror.CodeInvalidCostParams, "bend_cost must be non-negative", "bend_cost"))
	}
	if p.PresFac < 0 {
		verrs.Add(apperror.NewWithField(apperror.CodeInvalidCostParams, "pres_fac must be non-negative", "pres_fac"))
	}
	return verrs.Err()
}

// Key flattens the parameters for cache keys.
func (p CostParams) Key() []float64 {
	return []float64{
		float64(p.Criticality), float64(p.AstarFac), float64(p.AstarOffset),
		float64(p.PostTargetPruneFac), float64(p.PostTargetPruneOffset),
		float64(p.BendCost), float64(p.PresFac),
	}
}

// =============================================================================
// Connection parameters
// =============================================================================

// ConnectionParams identify the connection being routed and carry its
// connection-specific hints.
type ConnectionParams struct {
	NetID     int
	SinkIndex int
	// ChokePoints maps input pins to the bucket of sinks reachable through
	// them. Used only by the flat router with choke-point discounting on.
	ChokePoints map[rrgraph.NodeID]int
}
