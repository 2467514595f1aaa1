// 包 compact：四叉树流式压缩，兄弟四格齐备时合并为父格
package compact

import (
	"sort"

	"qk-fence/internal/tilecode"
)

// 文档注释：多级 quadkey 集合（level → 去重集合）
// 约束：仅归属于一次填充过程，不做并发保护；交给持久化后不再修改。
type Area struct {
	levels map[int]map[uint64]struct{}
	merges int
}

func NewArea() *Area {
	return &Area{levels: make(map[int]map[uint64]struct{})}
}

func (a *Area) level(level int) map[uint64]struct{} {
	z, ok := a.levels[level]
	if !ok {
		z = make(map[uint64]struct{})
		a.levels[level] = z
	}
	return z
}

// 文档注释：插入并尝试级联合并
// 背景：末位为 3 的格到达时，若同级已有 qk-1/qk-2/qk-3，则删去三者并以父格继续向上尝试。
// 约束：调用方需保证同一父格下 0/1/2 先于 3 插入，本函数不做缓冲或重排。
func (a *Area) Insert(qk uint64, level int) error {
	if err := tilecode.CheckLevel(level); err != nil {
		return err
	}
	for {
		z := a.level(level)
		if qk&3 == 3 && level > tilecode.MinLevel && has(z, qk-1) && has(z, qk-2) && has(z, qk-3) {
			delete(z, qk-1)
			delete(z, qk-2)
			delete(z, qk-3)
			qk >>= 2
			level--
			a.merges++
			continue
		}
		z[qk] = struct{}{}
		return nil
	}
}

// Add：直接写入，不尝试合并
func (a *Area) Add(qk uint64, level int) error {
	if err := tilecode.CheckLevel(level); err != nil {
		return err
	}
	a.level(level)[qk] = struct{}{}
	return nil
}

func has(z map[uint64]struct{}, qk uint64) bool {
	_, ok := z[qk]
	return ok
}

// Contains：判断 (level, qk) 是否存在
func (a *Area) Contains(qk uint64, level int) bool {
	z, ok := a.levels[level]
	if !ok {
		return false
	}
	return has(z, qk)
}

// Levels：非空级别，升序
func (a *Area) Levels() []int {
	out := make([]int, 0, len(a.levels))
	for l, z := range a.levels {
		if len(z) > 0 {
			out = append(out, l)
		}
	}
	sort.Ints(out)
	return out
}

// Quadkeys：某级全部 quadkey，升序
func (a *Area) Quadkeys(level int) []uint64 {
	z := a.levels[level]
	out := make([]uint64, 0, len(z))
	for qk := range z {
		out = append(out, qk)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Cells：按级别、quadkey 升序展开全部条目
func (a *Area) Cells() []tilecode.Cell {
	var out []tilecode.Cell
	for _, l := range a.Levels() {
		for _, qk := range a.Quadkeys(l) {
			out = append(out, tilecode.Cell{Quadkey: qk, Level: l})
		}
	}
	return out
}

// Len：条目总数
func (a *Area) Len() int {
	n := 0
	for _, z := range a.levels {
		n += len(z)
	}
	return n
}

// Merges：合并次数（每次以父格替换四个子格）
func (a *Area) Merges() int { return a.merges }
