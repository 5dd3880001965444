package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"
)

// CachedRoute - найденный путь в виде, не зависящем от пакетов роутера
type CachedRoute struct {
	Nodes        []int32   `json:"nodes"`
	Edges        []int32   `json:"edges"`
	HopRUpstream []float32 `json:"hop_r_upstream"`
	HopTdel      []float32 `json:"hop_tdel"`
	BackwardCost float32   `json:"backward_cost"`
	TotalCost    float32   `json:"total_cost"`
	ComputedAt   time.Time `json:"computed_at"`
}

// RouteCache кэш найденных путей поверх Cache
type RouteCache struct {
	cache      Cache
	defaultTTL time.Duration

	// OnLookup вызывается после каждого Get (метрики попаданий)
	OnLookup func(hit bool)
}

// NewRouteCache создаёт кэш путей
func NewRouteCache(cache Cache, defaultTTL time.Duration) *RouteCache {
	if defaultTTL <= 0 {
		defaultTTL = 10 * time.Minute
	}
	return &RouteCache{
		cache:      cache,
		defaultTTL: defaultTTL,
	}
}

// Get возвращает путь по ключу; промах - (nil, false, nil)
func (rc *RouteCache) Get(ctx context.Context, key RouteKey) (*CachedRoute, bool, error) {
	k := key.String()

	data, err := rc.cache.Get(ctx, k)
	if err != nil {
		rc.lookup(false)
		if errors.Is(err, ErrKeyNotFound) {
			return nil, false, nil
		}
		return nil, false, err
	}

	var route CachedRoute
	if err := json.Unmarshal(data, &route); err != nil || len(route.Nodes) == 0 {
		// Повреждённая запись - удаляем, ошибку удаления игнорируем
		_ = rc.cache.Delete(ctx, k) //nolint:errcheck // best effort cleanup
		rc.lookup(false)
		return nil, false, nil
	}

	rc.lookup(true)
	return &route, true, nil
}

// Set сохраняет путь
func (rc *RouteCache) Set(ctx context.Context, key RouteKey, route *CachedRoute, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = rc.defaultTTL
	}

	route.ComputedAt = time.Now()

	data, err := json.Marshal(route)
	if err != nil {
		return err
	}

	return rc.cache.Set(ctx, key.String(), data, ttl)
}

// InvalidateGraph удаляет все пути, найденные на устройстве
func (rc *RouteCache) InvalidateGraph(ctx context.Context, graph string) (int64, error) {
	return rc.cache.DeleteByPrefix(ctx, GraphPrefix(graph))
}

// currentGraphKey хранит отпечаток устройства последнего запуска
const currentGraphKey = "device:current"

// SwitchGraph запоминает устройство запуска. Если прошлый запуск шёл на
// другом устройстве, его пути удаляются; возвращает число удалённых записей.
func (rc *RouteCache) SwitchGraph(ctx context.Context, graph string) (int64, error) {
	var removed int64
	prev, err := rc.cache.Get(ctx, currentGraphKey)
	switch {
	case err == nil && string(prev) != graph:
		if removed, err = rc.InvalidateGraph(ctx, string(prev)); err != nil {
			return 0, err
		}
	case err != nil && !errors.Is(err, ErrKeyNotFound):
		return 0, err
	}
	return removed, rc.cache.Set(ctx, currentGraphKey, []byte(graph), rc.defaultTTL)
}

// Stats проксирует статистику нижележащего кэша
func (rc *RouteCache) Stats(ctx context.Context) (*Stats, error) {
	return rc.cache.Stats(ctx)
}

func (rc *RouteCache) lookup(hit bool) {
	if rc.OnLookup != nil {
		rc.OnLookup(hit)
	}
}
