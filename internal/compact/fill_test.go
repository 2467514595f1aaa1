package compact

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"qk-fence/internal/raster"
	"qk-fence/internal/tilecode"
)

func TestFillSquare(t *testing.T) {
	rings := []raster.Ring{{{0, 0}, {4, 0}, {4, 4}, {0, 4}}}
	a, err := Fill(rings, 3)
	require.NoError(t, err)

	assert.Equal(t, []int{1, 3}, a.Levels())
	assert.Equal(t, []uint64{0}, a.Quadkeys(1))

	var keys []string
	for _, qk := range a.Quadkeys(3) {
		s, err := tilecode.QuadkeyToString(qk, 3)
		require.NoError(t, err)
		keys = append(keys, s)
	}
	// x=4 列落在相邻父格，只有偶数行的兄弟，无法合并
	assert.Equal(t, []string{"100", "102", "120", "122"}, keys)
}

// 覆盖判定：每个被扫描的瓦片都能在 Area 的某一级祖先上找到
func TestFillCoversEveryScannedTile(t *testing.T) {
	const level = 8
	rings := []raster.Ring{
		{{20, 30}, {80, 10}, {160, 60}, {160, 180}, {80, 120}, {20, 150}},
		{{60, 60}, {100, 60}, {100, 90}, {60, 90}},
	}
	a, err := Fill(rings, level)
	require.NoError(t, err)
	require.NotZero(t, a.Len())

	spans, err := raster.Rasterize(rings)
	require.NoError(t, err)
	for s := range spans {
		for x := s.X0; x <= s.X1; x++ {
			qk, err := tilecode.TileToQuadkey(uint32(x), uint32(s.Y), level)
			require.NoError(t, err)
			chain, err := tilecode.AncestorChain(qk, level, 1)
			require.NoError(t, err)
			found := 0
			for _, c := range chain {
				if a.Contains(c.Quadkey, c.Level) {
					found++
				}
			}
			assert.Equal(t, 1, found, "tile (%d,%d)", x, s.Y)
		}
	}
}

func TestFillRejectsOutOfGrid(t *testing.T) {
	_, err := Fill([]raster.Ring{{{0, 0}, {9, 0}, {9, 9}, {0, 9}}}, 3)
	assert.ErrorIs(t, err, raster.ErrInvalidGeometry)

	_, err = Fill(nil, 0)
	assert.ErrorIs(t, err, tilecode.ErrLevelOutOfRange)
}

func TestFillEmpty(t *testing.T) {
	a, err := Fill(nil, 10)
	require.NoError(t, err)
	assert.Zero(t, a.Len())
	assert.Empty(t, a.Levels())
}
