package borders

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"qk-fence/internal/raster"
	"qk-fence/internal/tilecode"
)

const sample = `{
  "type": "FeatureCollection",
  "features": [
    {"type": "Feature", "properties": {"ADMIN": "Squareland"},
     "geometry": {"type": "Polygon", "coordinates": [[[-10, -10], [10, -10], [10, 10], [-10, 10], [-10, -10]]]}},
    {"type": "Feature", "properties": {"ADMIN": "Islands"},
     "geometry": {"type": "MultiPolygon", "coordinates": [
        [[[20, 20], [30, 20], [30, 30], [20, 30], [20, 20]]],
        [[[40, 0], [40.0001, 0], [40.0001, 0.0001], [40, 0]]]
     ]}},
    {"type": "Feature", "properties": {"ADMIN": "Squareland"},
     "geometry": {"type": "Polygon", "coordinates": [[[50, 50], [51, 50], [51, 51], [50, 50]]]}},
    {"type": "Feature", "properties": {"NAME": "anonymous"},
     "geometry": {"type": "Polygon", "coordinates": [[[0, 0], [1, 0], [1, 1], [0, 0]]]}},
    {"type": "Feature", "properties": {"ADMIN": "Pointy"},
     "geometry": {"type": "Point", "coordinates": [1, 1]}}
  ]
}`

func TestParse(t *testing.T) {
	s, err := Parse([]byte(sample), "")
	require.NoError(t, err)
	assert.Equal(t, []string{"Squareland", "Islands"}, s.Names())

	mp, err := s.Shapes("Squareland")
	require.NoError(t, err)
	assert.Len(t, mp, 2)

	_, err = s.Shapes("Atlantis")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestLoadFromFile(t *testing.T) {
	p := filepath.Join(t.TempDir(), "countries.geojson")
	require.NoError(t, os.WriteFile(p, []byte(sample), 0o644))
	s, err := Load(p, "NAME")
	require.NoError(t, err)
	assert.Equal(t, []string{"anonymous"}, s.Names())

	_, err = Load(filepath.Join(t.TempDir(), "missing.geojson"), "")
	assert.Error(t, err)
}

func TestProjectDropsCollapsedRings(t *testing.T) {
	s, err := Parse([]byte(sample), "")
	require.NoError(t, err)
	mp, err := s.Shapes("Islands")
	require.NoError(t, err)

	polys, err := Project(mp, 6)
	require.NoError(t, err)
	// 第二个岛在 6 级下收缩为一个瓦片
	require.Len(t, polys, 1)
	require.Len(t, polys[0], 1)

	ring := polys[0][0]
	assert.Len(t, ring, 4)
	x, y, err := tilecode.GeoToTile(30, 20, 6)
	require.NoError(t, err)
	assert.Contains(t, ring, raster.Vertex{X: int64(x), Y: int64(y)})
}

func TestProjectLevelOutOfRange(t *testing.T) {
	_, err := Project(nil, 0)
	assert.ErrorIs(t, err, tilecode.ErrLevelOutOfRange)
}
