package router

import (
	"fpgaroute/pkg/apperror"
	"fpgaroute/pkg/config"
)

// OptionsFromConfig translates the router section of the configuration.
func OptionsFromConfig(cfg *config.RouterConfig) ([]Option, error) {
	queue, err := ParseQueueKind(cfg.Queue)
	if err != nil {
		return nil, apperror.Wrap(err, apperror.CodeInvalidArgument, "router.queue").WithField("router.queue")
	}
	pruning, err := ParsePruningMode(cfg.Pruning)
	if err != nil {
		return nil, apperror.Wrap(err, apperror.CodeInvalidArgument, "router.pruning").WithField("router.pruning")
	}
	return []Option{
		WithThreads(cfg.Threads),
		WithQueue(queue),
		WithQueuesPerThread(cfg.QueuesPerThread),
		WithPruning(pruning),
		WithLockStripes(cfg.LockStripes),
		WithHighFanout(cfg.HighFanoutMinNodes, cfg.HighFanoutBBMargin),
		WithDetailedStats(cfg.DetailedStats),
		WithFlat(cfg.Flat),
		WithChokePoints(cfg.ChokePoints),
	}, nil
}

// CostParamsFromConfig reads the default cost parameters.
func CostParamsFromConfig(cfg *config.RouterConfig) CostParams {
	return CostParams{
		Criticality:           float32(cfg.Criticality),
		AstarFac:              float32(cfg.AstarFac),
		AstarOffset:           float32(cfg.AstarOffset),
		PostTargetPruneFac:    float32(cfg.PostTargetPruneFac),
		PostTargetPruneOffset: float32(cfg.PostTargetPruneOffset),
		BendCost:              float32(cfg.BendCost),
		PresFac:               float32(cfg.PresFac),
	}
}
