package raster

import "sort"

// Vertex：固定级别下的整数瓦片坐标
type Vertex struct {
	X int64
	Y int64
}

// Ring：闭合环，末点隐式连回首点
type Ring []Vertex

// 文档注释：多边形边（不含水平边）
// 约束：YMin < YMax；XMin 为 YMin 端点的 x；InvSlope 为 Δx/Δy，竖直边为 0。
type Edge struct {
	YMin     int64
	YMax     int64
	XMin     float64
	InvSlope float64
}

// 扫描期间的活动边；X 为当前行的交点，每行递增 InvSlope
type activeEdge struct {
	yMax     int64
	x        float64
	invSlope float64
}

func newEdge(v0, v1 Vertex) Edge {
	e := Edge{YMin: v0.Y, YMax: v1.Y, XMin: float64(v0.X)}
	if v1.Y < v0.Y {
		e.YMin, e.YMax = v1.Y, v0.Y
		e.XMin = float64(v1.X)
	}
	if v0.X != v1.X {
		e.InvSlope = float64(v1.X-v0.X) / float64(v1.Y-v0.Y)
	}
	return e
}

// ringEdges：按首尾相接生成环的非水平边
func ringEdges(r Ring) []Edge {
	out := make([]Edge, 0, len(r))
	for i := range r {
		v0 := r[i]
		v1 := r[(i+1)%len(r)]
		if v0.Y != v1.Y {
			out = append(out, newEdge(v0, v1))
		}
	}
	return out
}

func (e Edge) activate() activeEdge {
	return activeEdge{yMax: e.YMax, x: e.XMin, invSlope: e.InvSlope}
}

// edgeLess：边按 (YMin, XMin) 升序
func edgeLess(a, b Edge) bool {
	if a.YMin != b.YMin {
		return a.YMin < b.YMin
	}
	return a.XMin < b.XMin
}

func sortEdges(edges []Edge) {
	sort.SliceStable(edges, func(i, j int) bool { return edgeLess(edges[i], edges[j]) })
}

// activeLess：活动边按当前 x 升序
func activeLess(a, b activeEdge) bool { return a.x < b.x }

func sortActive(active []activeEdge) {
	sort.SliceStable(active, func(i, j int) bool { return activeLess(active[i], active[j]) })
}
