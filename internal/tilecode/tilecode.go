// 包 tilecode：经纬度 ↔ 瓦片坐标 ↔ quadkey 整数/字符串的相互转换
package tilecode

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/maptile"
)

const (
	MinLevel = 1
	// 每级占 2 位，64 位 quadkey 最多容纳 32 级
	MaxLevel = 32

	maxLatitude  = 85.05112877980659
	maxLongitude = 180 - 1e-9

	fractionMaxZoom = 31
)

var ErrLevelOutOfRange = errors.New("level out of range")

// Cell：某一级别上的 quadkey
type Cell struct {
	Quadkey uint64
	Level   int
}

// CheckLevel：校验级别位于 [1, 32]
func CheckLevel(level int) error {
	if level < MinLevel || level > MaxLevel {
		return fmt.Errorf("%w: %d", ErrLevelOutOfRange, level)
	}
	return nil
}

// 文档注释：经纬度转瓦片坐标（Web Mercator / slippy map）
// 背景：maptile 的缩放因子为 uint32，第 32 级溢出为 0；因此最多按第 31 级取分数坐标，再乘 2^(level-31)。
// 约束：纬度截断到墨卡托有效范围，经度截断到 [-180, 180)，保证结果落在 [0, 2^level) 内。
func GeoToTile(lat, lon float64, level int) (uint32, uint32, error) {
	if err := CheckLevel(level); err != nil {
		return 0, 0, err
	}
	lat = math.Max(-maxLatitude, math.Min(maxLatitude, lat))
	lon = math.Max(-180, math.Min(maxLongitude, lon))
	z := min(level, fractionMaxZoom)
	f := maptile.Fraction(orb.Point{lon, lat}, maptile.Zoom(z))
	scale := math.Ldexp(1, level-z)
	last := math.Ldexp(1, level) - 1
	x := gridIndex(f[0]*scale, last)
	y := gridIndex(f[1]*scale, last)
	if lat <= -maxLatitude {
		// 南侧截断：maptile 在第 z 级返回 2^z-1，放大后不是本级末行
		y = uint32(last)
	}
	return x, y, nil
}

func gridIndex(v, last float64) uint32 {
	return uint32(math.Max(0, math.Min(last, math.Floor(v))))
}

// 文档注释：瓦片坐标转 quadkey 整数
// 背景：自高位到低位逐级交织 x/y 的比特，x 位贡献 1，y 位贡献 2；0=NW 1=NE 2=SW 3=SE。
func TileToQuadkey(x, y uint32, level int) (uint64, error) {
	if err := CheckLevel(level); err != nil {
		return 0, err
	}
	var q uint64
	for i := level; i > 0; i-- {
		mask := uint32(1) << (i - 1)
		q <<= 2
		if x&mask != 0 {
			q |= 1
		}
		if y&mask != 0 {
			q |= 2
		}
	}
	return q, nil
}

// QuadkeyToTile：TileToQuadkey 的逆运算
func QuadkeyToTile(qk uint64, level int) (uint32, uint32, error) {
	if err := CheckLevel(level); err != nil {
		return 0, 0, err
	}
	var x, y uint32
	for i := level; i > 0; i-- {
		digit := (qk >> (2 * (i - 1))) & 3
		mask := uint32(1) << (i - 1)
		if digit&1 != 0 {
			x |= mask
		}
		if digit&2 != 0 {
			y |= mask
		}
	}
	return x, y, nil
}

// 文档注释：quadkey 格式化为 level 位四进制字符串，高位在前
func QuadkeyToString(qk uint64, level int) (string, error) {
	if err := CheckLevel(level); err != nil {
		return "", err
	}
	var b strings.Builder
	b.Grow(level)
	for i := 0; i < level; i++ {
		shift := uint((level - i - 1) * 2)
		b.WriteByte(byte('0' + (qk>>shift)&3))
	}
	return b.String(), nil
}

// ParseQuadkey：解析四进制字符串，级别即字符串长度
func ParseQuadkey(s string) (uint64, int, error) {
	level := len(s)
	if err := CheckLevel(level); err != nil {
		return 0, 0, err
	}
	var q uint64
	for i := 0; i < level; i++ {
		c := s[i]
		if c < '0' || c > '3' {
			return 0, 0, fmt.Errorf("bad quadkey digit %q at %d", c, i)
		}
		q = q<<2 | uint64(c-'0')
	}
	return q, level, nil
}

// 文档注释：祖先链
// 背景：由 level 逐级右移 2 位直到 minLevel（含），第一个元素为 quadkey 本身。
// 约束：minLevel 需位于 [1, level]。
func AncestorChain(qk uint64, level, minLevel int) ([]Cell, error) {
	if err := CheckLevel(level); err != nil {
		return nil, err
	}
	if minLevel < MinLevel || minLevel > level {
		return nil, fmt.Errorf("%w: min %d above %d", ErrLevelOutOfRange, minLevel, level)
	}
	out := make([]Cell, 0, level-minLevel+1)
	for l := level; l >= minLevel; l-- {
		out = append(out, Cell{Quadkey: qk, Level: l})
		qk >>= 2
	}
	return out, nil
}

// GeoToQuadkey：经纬度直接编码为指定级别的 quadkey
func GeoToQuadkey(lat, lon float64, level int) (uint64, error) {
	x, y, err := GeoToTile(lat, lon, level)
	if err != nil {
		return 0, err
	}
	return TileToQuadkey(x, y, level)
}
