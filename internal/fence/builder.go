package fence

import (
	"context"
	"fmt"
	"runtime"
	"sync"
	"time"

	"qk-fence/internal/compact"
	"qk-fence/internal/logger"
	"qk-fence/internal/metrics"
	"qk-fence/internal/raster"
)

// Inserter：围栏写入能力
type Inserter interface {
	InsertFence(ctx context.Context, name string, areas []*compact.Area) (int64, error)
}

// Builder：把一组多边形（已投影到瓦片坐标）填充为 Area 并写入为一个围栏
type Builder struct {
	Store   Inserter
	Level   int
	Workers int
}

type fillResult struct {
	area *compact.Area
	err  error
}

// 文档注释：并行填充
// 背景：每个多边形独立填充，各 worker 持有私有 Area，互不通信；结果按输入顺序返回。
// 约束：任一多边形失败即返回错误；ctx 取消后不再派发新任务。
func (b *Builder) Fill(ctx context.Context, polygons [][]raster.Ring) ([]*compact.Area, error) {
	workers := b.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	if workers > len(polygons) {
		workers = len(polygons)
	}
	results := make([]fillResult, len(polygons))
	jobs := make(chan int)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				t0 := time.Now()
				a, err := compact.Fill(polygons[i], b.Level)
				results[i] = fillResult{area: a, err: err}
				if err != nil {
					continue
				}
				metrics.FillDurationMs.Observe(float64(time.Since(t0).Milliseconds()))
				metrics.FillSquares.Observe(float64(a.Len()))
				metrics.FillMergesTotal.Add(float64(a.Merges()))
				logger.L().Debug("fence_fill_shape", "shape", i, "squares", a.Len(), "merges", a.Merges(), "ms", time.Since(t0).Milliseconds())
			}
		}()
	}
dispatch:
	for i := range polygons {
		select {
		case jobs <- i:
		case <-ctx.Done():
			break dispatch
		}
	}
	close(jobs)
	wg.Wait()
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	areas := make([]*compact.Area, len(polygons))
	for i, r := range results {
		if r.err != nil {
			return nil, fmt.Errorf("shape %d: %w", i, r.err)
		}
		areas[i] = r.area
	}
	return areas, nil
}

// Build：填充并写入；返回 fence_id 与各多边形的 Area
func (b *Builder) Build(ctx context.Context, name string, polygons [][]raster.Ring) (int64, []*compact.Area, error) {
	areas, err := b.Fill(ctx, polygons)
	if err != nil {
		return 0, nil, err
	}
	total := 0
	for _, a := range areas {
		total += a.Len()
	}
	logger.L().Info("fence_fill_done", "fence", name, "shapes", len(areas), "squares", total, "level", b.Level)
	id, err := b.Store.InsertFence(ctx, name, areas)
	if err != nil {
		return 0, nil, err
	}
	metrics.FencesInsertedTotal.Inc()
	return id, areas, nil
}
