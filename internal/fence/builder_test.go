package fence

import (
	"context"
	"testing"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"qk-fence/internal/borders"
	"qk-fence/internal/compact"
	"qk-fence/internal/migrate"
	"qk-fence/internal/raster"
	"qk-fence/internal/store"
	"qk-fence/internal/utils"
)

func newStore(t *testing.T) *store.Store {
	t.Helper()
	db, err := utils.OpenSQLite(":memory:")
	require.NoError(t, err)
	require.NoError(t, migrate.EnsureSchema(db))
	st := store.AttachDB(db)
	t.Cleanup(func() { _ = st.Close() })
	return st
}

func box(minLon, minLat, maxLon, maxLat float64) orb.Polygon {
	return orb.Polygon{{{minLon, minLat}, {maxLon, minLat}, {maxLon, maxLat}, {minLon, maxLat}, {minLon, minLat}}}
}

func TestBuildThenQuery(t *testing.T) {
	ctx := context.Background()
	st := newStore(t)
	const level = 10

	polys, err := borders.Project(orb.MultiPolygon{box(-10, -10, 10, 10), box(20, 20, 25, 25)}, level)
	require.NoError(t, err)
	require.Len(t, polys, 2)

	b := &Builder{Store: st, Level: level, Workers: 2}
	id, areas, err := b.Build(ctx, "Boxland", polys)
	require.NoError(t, err)
	require.Len(t, areas, 2)
	for _, a := range areas {
		assert.Positive(t, a.Len())
		assert.Positive(t, a.Merges())
	}

	e := NewEngine(st, Options{})
	lo, hi, err := e.Levels(ctx)
	require.NoError(t, err)
	assert.Equal(t, level, hi)
	assert.Less(t, lo, hi)

	for _, p := range [][2]float64{{0, 0}, {-9.5, 9.5}, {5, -3}, {22, 22}} {
		got, err := e.Query(ctx, p[0], p[1])
		require.NoError(t, err)
		require.Len(t, got, 1, "point %v", p)
		assert.Equal(t, id, got[0].FenceID)
		assert.Equal(t, "Boxland", got[0].FenceName)
	}

	got, err := e.Query(ctx, 50, 50)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestFillKeepsInputOrder(t *testing.T) {
	polys := [][]raster.Ring{
		{{{0, 0}, {8, 0}, {8, 8}, {0, 8}}},
		{{{0, 0}, {2, 0}, {2, 2}, {0, 2}}},
		{},
	}
	b := &Builder{Level: 5, Workers: 3}
	areas, err := b.Fill(context.Background(), polys)
	require.NoError(t, err)
	require.Len(t, areas, 3)

	want, err := compact.Fill(polys[1], 5)
	require.NoError(t, err)
	assert.Equal(t, want.Cells(), areas[1].Cells())
	assert.Greater(t, areas[0].Len(), 0)
	assert.Zero(t, areas[2].Len())
}

func TestFillReportsShapeError(t *testing.T) {
	b := &Builder{Level: 5}
	_, err := b.Fill(context.Background(), [][]raster.Ring{{{{0, 0}, {1, 1}}}})
	assert.ErrorIs(t, err, raster.ErrInvalidGeometry)
}

func TestFillCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	b := &Builder{Level: 5, Workers: 1}
	_, err := b.Fill(ctx, [][]raster.Ring{{{{0, 0}, {2, 0}, {2, 2}}}})
	assert.ErrorIs(t, err, context.Canceled)
}
