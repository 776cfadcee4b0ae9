package db

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joeblew999/cultivar-map/internal/grid"
	"github.com/joeblew999/cultivar-map/internal/i18n"
	"github.com/joeblew999/cultivar-map/internal/legend"
)

const cellsJSON = `{"type":"FeatureCollection","features":[
 {"type":"Feature","id":"c1","properties":{"Legends":"Forest,stock","SourceMaps":"habitats,runoff"},
  "geometry":{"type":"Polygon","coordinates":[[[0,0],[1,0],[1,1],[0,1],[0,0]]]}},
 {"type":"Feature","id":"c2","properties":{"Legends":"ghost","SourceMaps":"habitats"},
  "geometry":{"type":"Polygon","coordinates":[[[1,0],[2,0],[2,1],[1,1],[1,0]]]}},
 {"type":"Feature","id":"c3","properties":{"Legends":"a,b","SourceMaps":"habitats"},
  "geometry":{"type":"Polygon","coordinates":[[[2,0],[3,0],[3,1],[2,1],[2,0]]]}}
]}`

func fixtures(t *testing.T) (*grid.Dataset, *legend.Catalog) {
	t.Helper()
	cells, err := grid.Load([]byte(cellsJSON))
	require.NoError(t, err)
	catalog := legend.NewCatalog([]legend.LayerLegends{
		{Layer: "habitat_map", Legends: []legend.Legend{{
			ID: "habitats", Source: "Habitats",
			Entries: []legend.Entry{legend.Value{ID: "forest", Label: i18n.Text{"en": "Forest"}, Fill: "#0f0"}},
		}}},
		{Layer: "runoff", Legends: []legend.Legend{{
			ID: "runoff",
			Entries: []legend.Entry{legend.Ramp{ID: "stock", Stops: []string{"#fff", "#000"}}},
		}}},
	})
	return cells, catalog
}

func TestLoadAndQuery(t *testing.T) {
	ctx := context.Background()
	conn, err := Open(InMemory)
	require.NoError(t, err)
	defer conn.Close()

	cells, catalog := fixtures(t)
	require.NoError(t, Load(ctx, conn, cells, catalog))

	tables, err := Tables(ctx, conn)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"cell_refs", "grid_cells", "legend_entries"}, tables)

	res, err := Query(ctx, conn, "SELECT id, min_lon, max_lon FROM grid_cells ORDER BY id")
	require.NoError(t, err)
	assert.Equal(t, []string{"id", "min_lon", "max_lon"}, res.Columns)
	require.Len(t, res.Rows, 3)
	assert.Equal(t, "c2", res.Rows[1]["id"])
	assert.Equal(t, 2.0, res.Rows[1]["max_lon"])

	res, err = Query(ctx, conn, "SELECT count(*) AS n FROM cell_refs")
	require.NoError(t, err)
	assert.EqualValues(t, 3, res.Rows[0]["n"], "mismatched cell c3 contributes no refs")

	res, err = Query(ctx, conn, "SELECT kind, stop_count FROM legend_entries WHERE entry_id = ?", "stock")
	require.NoError(t, err)
	require.Len(t, res.Rows, 1)
	assert.Equal(t, "ramp", res.Rows[0]["kind"])

	missing, err := UnresolvedRefs(ctx, conn)
	require.NoError(t, err)
	assert.Equal(t, []string{"c2: habitats/ghost"}, missing)

	// Reloading replaces the tables.
	require.NoError(t, Load(ctx, conn, cells, catalog))
	res, err = Query(ctx, conn, "SELECT count(*) AS n FROM grid_cells")
	require.NoError(t, err)
	assert.EqualValues(t, 3, res.Rows[0]["n"])

	_, err = Query(ctx, conn, "SELECT * FROM nowhere")
	assert.Error(t, err)
}

func TestOpenFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "cultivar.duckdb")
	conn, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, conn.Close())
	assert.FileExists(t, path)
}
