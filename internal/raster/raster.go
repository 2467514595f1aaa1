// 包 raster：基于活动边表（AET）的扫描线多边形填充
package raster

import (
	"errors"
	"fmt"
	"iter"
	"math"
)

var ErrInvalidGeometry = errors.New("invalid geometry")

// Span：第 Y 行上 [X0, X1] 闭区间；X0 > X1 表示该对边之间没有完整瓦片
// 右边界取 floor(xRight) 且包含在内，与既有索引输出一致：0..4 的正方形每行覆盖 0..4 共 5 列，而不是 0..3。
type Span struct {
	Y  int64
	X0 int64
	X1 int64
}

// Empty：区间内无瓦片
func (s Span) Empty() bool { return s.X0 > s.X1 }

// 文档注释：扫描线填充
// 背景：所有环的边汇入同一张边表，外环与洞仅通过每行交点数量体现，不单独标记。
// 约束：几何校验在返回序列前完成；序列惰性求值，可重复遍历，每次得到相同结果。
// 行范围为 [yMin, yMax)，顶行不参与，避免共享顶点被重复覆盖。
func Rasterize(rings []Ring) (iter.Seq[Span], error) {
	var edges []Edge
	yMin := int64(math.MaxInt64)
	yMax := int64(math.MinInt64)
	for i, r := range rings {
		if len(r) < 3 {
			return nil, fmt.Errorf("%w: ring %d has %d vertices", ErrInvalidGeometry, i, len(r))
		}
		re := ringEdges(r)
		if len(re) == 0 {
			return nil, fmt.Errorf("%w: ring %d has no crossing edges", ErrInvalidGeometry, i)
		}
		for _, v := range r {
			yMin = min(yMin, v.Y)
			yMax = max(yMax, v.Y)
		}
		edges = append(edges, re...)
	}
	sortEdges(edges)

	return func(yield func(Span) bool) {
		var active []activeEdge
		next := 0
		for y := yMin; y < yMax; y++ {
			for next < len(edges) && edges[next].YMin == y {
				active = append(active, edges[next].activate())
				next++
			}
			kept := active[:0]
			for _, e := range active {
				if e.yMax != y {
					kept = append(kept, e)
				}
			}
			active = kept
			sortActive(active)

			// 奇数条活动边时末尾一条不成对，静默忽略
			for i := 0; i+1 < len(active); i += 2 {
				s := Span{
					Y:  y,
					X0: int64(math.RoundToEven(active[i].x)),
					X1: int64(math.Floor(active[i+1].x)),
				}
				if !yield(s) {
					return
				}
			}
			for i := range active {
				active[i].x += active[i].invSlope
			}
		}
	}, nil
}

// Collect：展开全部区间，便于测试与调试
func Collect(seq iter.Seq[Span]) []Span {
	var out []Span
	for s := range seq {
		out = append(out, s)
	}
	return out
}
