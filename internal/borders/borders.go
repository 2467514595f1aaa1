// 包 borders：从 GeoJSON 读取行政边界，并投影为瓦片坐标环
package borders

import (
	"errors"
	"fmt"
	"os"

	"qk-fence/internal/logger"
	"qk-fence/internal/raster"
	"qk-fence/internal/tilecode"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

var ErrNotFound = errors.New("region not found")

// DefaultNameProp：Natural Earth 国家边界中的名称字段
const DefaultNameProp = "ADMIN"

// 文档注释：边界数据源
// 约束：仅收录 Polygon / MultiPolygon 要素；同名要素的多面合并到一起，顺序与文件一致。
type Source struct {
	names  []string
	shapes map[string]orb.MultiPolygon
}

// Load：读取 GeoJSON FeatureCollection 文件
func Load(path, nameProp string) (*Source, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read borders: %w", err)
	}
	return Parse(b, nameProp)
}

// Parse：解析 GeoJSON FeatureCollection；nameProp 为空时使用 ADMIN
func Parse(data []byte, nameProp string) (*Source, error) {
	if nameProp == "" {
		nameProp = DefaultNameProp
	}
	fc, err := geojson.UnmarshalFeatureCollection(data)
	if err != nil {
		return nil, fmt.Errorf("parse borders: %w", err)
	}
	s := &Source{shapes: make(map[string]orb.MultiPolygon)}
	for i, f := range fc.Features {
		name, _ := f.Properties[nameProp].(string)
		if name == "" {
			logger.L().Debug("borders_skip_unnamed", "feature", i)
			continue
		}
		var mp orb.MultiPolygon
		switch g := f.Geometry.(type) {
		case orb.Polygon:
			mp = orb.MultiPolygon{g}
		case orb.MultiPolygon:
			mp = g
		default:
			logger.L().Debug("borders_skip_geometry", "feature", i, "name", name, "type", fmt.Sprintf("%T", f.Geometry))
			continue
		}
		if _, ok := s.shapes[name]; !ok {
			s.names = append(s.names, name)
		}
		s.shapes[name] = append(s.shapes[name], mp...)
	}
	return s, nil
}

// Names：全部区域名称，按文件顺序
func (s *Source) Names() []string { return append([]string(nil), s.names...) }

// Shapes：区域的多面，每个多边形为若干 (lon, lat) 环
func (s *Source) Shapes(name string) (orb.MultiPolygon, error) {
	mp, ok := s.shapes[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	return mp, nil
}

// 文档注释：把多面投影为瓦片坐标环
// 背景：低级别下大量相邻顶点落入同一瓦片，连续重复顶点先去重；去重后不足 3 点或只剩同一行的环丢弃，
// 全部环都被丢弃的多边形不产出，最终得到空 Area 而非错误。
func Project(mp orb.MultiPolygon, level int) ([][]raster.Ring, error) {
	if err := tilecode.CheckLevel(level); err != nil {
		return nil, err
	}
	var out [][]raster.Ring
	for pi, poly := range mp {
		var rings []raster.Ring
		for ri, ring := range poly {
			r, err := projectRing(ring, level)
			if err != nil {
				return nil, err
			}
			if len(r) < 3 || flat(r) {
				logger.L().Debug("borders_ring_collapsed", "polygon", pi, "ring", ri, "level", level)
				continue
			}
			rings = append(rings, r)
		}
		if len(rings) > 0 {
			out = append(out, rings)
		}
	}
	return out, nil
}

func projectRing(ring orb.Ring, level int) (raster.Ring, error) {
	out := make(raster.Ring, 0, len(ring))
	for _, p := range ring {
		x, y, err := tilecode.GeoToTile(p.Lat(), p.Lon(), level)
		if err != nil {
			return nil, err
		}
		v := raster.Vertex{X: int64(x), Y: int64(y)}
		if n := len(out); n > 0 && out[n-1] == v {
			continue
		}
		out = append(out, v)
	}
	// GeoJSON 环首尾重复，闭合由扫描隐式完成
	for len(out) > 1 && out[len(out)-1] == out[0] {
		out = out[:len(out)-1]
	}
	return out, nil
}

// flat：全部顶点位于同一行，扫描不会产生交点
func flat(r raster.Ring) bool {
	for _, v := range r[1:] {
		if v.Y != r[0].Y {
			return false
		}
	}
	return true
}
