package compact

import (
	"fmt"

	"qk-fence/internal/raster"
	"qk-fence/internal/tilecode"
)

// 文档注释：扫描线填充并压缩为 Area
// 背景：偶数行直接写入、不尝试合并；奇数行经 Insert 级联合并。该行奇偶切换与既有索引输出逐位一致，
// 是否属于有意的优化尚无定论，修改前需与产品确认。
// 约束：坐标必须位于 [0, 2^level) 内；无几何（rings 为空）得到空 Area。
func Fill(rings []raster.Ring, level int) (*Area, error) {
	if err := tilecode.CheckLevel(level); err != nil {
		return nil, err
	}
	spans, err := raster.Rasterize(rings)
	if err != nil {
		return nil, err
	}
	limit := int64(1) << level
	area := NewArea()
	for s := range spans {
		if s.Empty() {
			continue
		}
		if s.Y < 0 || s.Y >= limit || s.X0 < 0 || s.X1 >= limit {
			return nil, fmt.Errorf("%w: span %+v outside level %d grid", raster.ErrInvalidGeometry, s, level)
		}
		merge := s.Y%2 != 0
		for x := s.X0; x <= s.X1; x++ {
			qk, err := tilecode.TileToQuadkey(uint32(x), uint32(s.Y), level)
			if err != nil {
				return nil, err
			}
			if merge {
				err = area.Insert(qk, level)
			} else {
				err = area.Add(qk, level)
			}
			if err != nil {
				return nil, err
			}
		}
	}
	return area, nil
}
