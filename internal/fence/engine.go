// 包 fence：围栏构建与点查询
package fence

import (
	"context"
	"fmt"
	"sync"
	"time"

	"qk-fence/internal/logger"
	"qk-fence/internal/metrics"
	"qk-fence/internal/store"
	"qk-fence/internal/tilecode"
)

// Lookup：查询所需的持久化能力
type Lookup interface {
	LookupCells(ctx context.Context, cells []tilecode.Cell) ([]store.Square, error)
	LevelRange(ctx context.Context) (int, int, error)
}

// Match：一条命中记录；任一级别的命中都表示点位于该围栏内
type Match struct {
	SquareID  int64  `json:"square_id"`
	FenceID   int64  `json:"fence_id"`
	FenceName string `json:"fence_name"`
	Level     int    `json:"level"`
	Quadkey   string `json:"quadkey"`
}

// Options：引擎参数，零值表示使用默认
type Options struct {
	CacheSize int
	CacheTTL  time.Duration
}

// 文档注释：查询引擎
// 背景：点 → 最大级别 quadkey → 祖先链 → 持久层匹配；默认级别取库中已存储的最小/最大级别，首次查询时读取。
// 约束：并发安全；Reload 在重新导入后刷新级别范围并清空缓存。
type Engine struct {
	lookup Lookup
	cache  *lru

	mu       sync.RWMutex
	minLevel int
	maxLevel int
}

func NewEngine(l Lookup, opt Options) *Engine {
	if opt.CacheSize <= 0 {
		opt.CacheSize = 4096
	}
	if opt.CacheTTL <= 0 {
		opt.CacheTTL = time.Hour
	}
	return &Engine{lookup: l, cache: newLRU(opt.CacheSize, opt.CacheTTL)}
}

// Levels：当前默认查询级别范围
func (e *Engine) Levels(ctx context.Context) (int, int, error) {
	e.mu.RLock()
	lo, hi := e.minLevel, e.maxLevel
	e.mu.RUnlock()
	if hi > 0 {
		return lo, hi, nil
	}
	return e.Reload(ctx)
}

// Reload：重新读取级别范围并清空缓存
func (e *Engine) Reload(ctx context.Context) (int, int, error) {
	lo, hi, err := e.lookup.LevelRange(ctx)
	if err != nil {
		return 0, 0, err
	}
	e.mu.Lock()
	e.minLevel, e.maxLevel = lo, hi
	e.mu.Unlock()
	e.cache.purge()
	logger.L().Info("fence_levels_loaded", "min", lo, "max", hi)
	return lo, hi, nil
}

// Query：以库中级别范围查询
func (e *Engine) Query(ctx context.Context, lat, lon float64) ([]Match, error) {
	lo, hi, err := e.Levels(ctx)
	if err != nil {
		return nil, err
	}
	return e.QueryLevels(ctx, lat, lon, hi, lo)
}

// 文档注释：按指定级别范围查询
// 约束：maxLevel ∈ [1,32]，minLevel ∈ [1,maxLevel]；结果按级别从细到粗排列。
func (e *Engine) QueryLevels(ctx context.Context, lat, lon float64, maxLevel, minLevel int) ([]Match, error) {
	t0 := time.Now()
	metrics.QueriesTotal.Inc()
	defer func() { metrics.QueryDurationMs.Observe(float64(time.Since(t0).Microseconds()) / 1000) }()

	x, y, err := tilecode.GeoToTile(lat, lon, maxLevel)
	if err != nil {
		return nil, err
	}
	qk, err := tilecode.TileToQuadkey(x, y, maxLevel)
	if err != nil {
		return nil, err
	}
	chain, err := tilecode.AncestorChain(qk, maxLevel, minLevel)
	if err != nil {
		return nil, err
	}
	key := cacheKey{qk: qk, maxLevel: maxLevel, minLevel: minLevel}
	if v, ok := e.cache.get(key); ok {
		metrics.LRUHitsTotal.Inc()
		return v, nil
	}
	rows, err := e.lookup.LookupCells(ctx, chain)
	if err != nil {
		return nil, fmt.Errorf("lookup: %w", err)
	}
	out := make([]Match, 0, len(rows))
	for _, r := range rows {
		s, err := tilecode.QuadkeyToString(r.Quadkey, r.Level)
		if err != nil {
			return nil, err
		}
		out = append(out, Match{SquareID: r.SquareID, FenceID: r.FenceID, FenceName: r.FenceName, Level: r.Level, Quadkey: s})
	}
	if len(out) == 0 {
		metrics.EmptyResultsTotal.Inc()
	}
	e.cache.set(key, out)
	logger.L().Debug("fence_query", "lat", lat, "lon", lon, "tile_x", x, "tile_y", y, "level", maxLevel, "hits", len(out))
	return out, nil
}
