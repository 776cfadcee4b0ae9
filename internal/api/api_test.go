package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"testing"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/humatest"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/joeblew999/cultivar-map/internal/db"
	"github.com/joeblew999/cultivar-map/internal/metrics"
)

func testServices(t *testing.T) *Services {
	t.Helper()
	svc, err := Load(context.Background(), "testdata")
	require.NoError(t, err)
	svc.Version = "test"
	return svc
}

func testAPI(t *testing.T, svc *Services) humatest.TestAPI {
	t.Helper()
	cfg := WithFormats(huma.DefaultConfig("cultivar test", "1.0.0"))
	cfg.Transformers = append(cfg.Transformers, LinkTransformer())
	_, api := humatest.New(t, cfg)
	huma.AutoRegister(api, NewAPIHandler(svc))
	NewInfoHandler(svc).RegisterRoutes(api)
	NewDBHandler(svc).RegisterRoutes(api)
	return api
}

func decode[T any](t *testing.T, body []byte) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(body, &v))
	return v
}

func TestLoadErrors(t *testing.T) {
	_, err := Load(context.Background(), t.TempDir())
	assert.Error(t, err)
}

func TestHealthAndInfo(t *testing.T) {
	api := testAPI(t, testServices(t))

	resp := api.Get("/health")
	require.Equal(t, http.StatusOK, resp.Code)
	health := decode[HealthBody](t, resp.Body.Bytes())
	assert.Equal(t, "ok", health.Status)
	assert.Equal(t, "test", health.Version)
	assert.Contains(t, resp.Header().Values("Link"), `</api/v1/info>; rel="info"`)

	resp = api.Get("/api/v1/info")
	require.Equal(t, http.StatusOK, resp.Code)
	info := decode[InfoBody](t, resp.Body.Bytes())
	assert.Equal(t, "cultivar-map", info.Name)
	assert.Equal(t, []string{"en", "es"}, info.Languages)
	assert.Equal(t, 5, info.Layers)
	assert.Equal(t, 3, info.Cells)
	assert.False(t, info.DB)
	assert.NotContains(t, info.Features, "duckdb")
}

func TestLayers(t *testing.T) {
	api := testAPI(t, testServices(t))

	resp := api.Get("/api/v1/layers?lang=es")
	require.Equal(t, http.StatusOK, resp.Code)
	body := decode[LayersBody](t, resp.Body.Bytes())
	assert.Equal(t, "es", body.Lang)
	require.Len(t, body.Base, 2)
	assert.Equal(t, "Mapa de hábitats", body.Base[0].Title)
	assert.Equal(t, "© Estudio de hábitats", body.Base[0].Attribution)
	assert.Equal(t, "base", body.Base[0].Kind)
	require.Len(t, body.Overlays, 2)
	assert.Equal(t, 0.9, body.Overlays[0].Opacity)
	assert.True(t, body.Overlays[0].DefaultOn)
	require.Len(t, body.Underlays, 1)
	assert.Equal(t, 1.0, body.Underlays[0].Opacity)

	resp = api.Get("/api/v1/layers", "Accept-Language: es-CO,es;q=0.9")
	assert.Equal(t, "es", decode[LayersBody](t, resp.Body.Bytes()).Lang)

	resp = api.Get("/api/v1/layers?lang=fr")
	assert.Equal(t, "en", decode[LayersBody](t, resp.Body.Bytes()).Lang)
}

func TestLayer(t *testing.T) {
	api := testAPI(t, testServices(t))

	resp := api.Get("/api/v1/layers/water_risk")
	require.Equal(t, http.StatusOK, resp.Code)
	layer := decode[LayerSummary](t, resp.Body.Bytes())
	assert.Equal(t, "Water risk", layer.Title)
	assert.Empty(t, layer.Attribution)
	assert.Contains(t, resp.Header().Values("Link"), `</api/v1/layers/water_risk>; rel="self"`)
	assert.Contains(t, resp.Header().Values("Link"), `</api/v1/layers/water_risk/legends>; rel="legends"; method="GET"; title="Catalog legends"`)
	assert.NotContains(t, strings.Join(resp.Header().Values("Link"), ","), `rel="attach"`)

	resp = api.Get("/api/v1/layers/rio_frio")
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Contains(t, resp.Header().Values("Link"),
		`</api/v1/viewer/overlays/rio_frio?enabled=true>; rel="attach"; method="POST"; title="Show on the map"`)

	resp = api.Get("/api/v1/layers/nope")
	assert.Equal(t, http.StatusNotFound, resp.Code)
}

func TestLayerLegends(t *testing.T) {
	api := testAPI(t, testServices(t))

	resp := api.Get("/api/v1/layers/habitat_map/legends")
	require.Equal(t, http.StatusOK, resp.Code)
	var legends []struct {
		ID      string `json:"legend_id"`
		Source  string `json:"source"`
		Entries []struct {
			ID   string `json:"entry_id"`
			Type string `json:"type"`
		} `json:"entries"`
	}
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &legends))
	require.Len(t, legends, 1)
	assert.Equal(t, "habitats", legends[0].ID)
	assert.Equal(t, "Habitats", legends[0].Source)
	require.Len(t, legends[0].Entries, 2)
	assert.Equal(t, "wetland", legends[0].Entries[1].ID)

	resp = api.Get("/api/v1/layers/rio_frio/legends")
	require.Equal(t, http.StatusOK, resp.Code)
	assert.JSONEq(t, `[]`, resp.Body.String())

	resp = api.Get("/api/v1/layers/nope/legends")
	assert.Equal(t, http.StatusNotFound, resp.Code)
}

func TestGrid(t *testing.T) {
	api := testAPI(t, testServices(t))

	resp := api.Get("/api/v1/grid")
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, "application/geo+json", resp.Header().Get("Content-Type"))
	var fc struct {
		Type     string `json:"type"`
		Features []struct {
			ID string `json:"id"`
		} `json:"features"`
	}
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &fc))
	assert.Equal(t, "FeatureCollection", fc.Type)
	require.Len(t, fc.Features, 3)
	assert.Equal(t, "c1", fc.Features[0].ID)
}

func TestCellsPagination(t *testing.T) {
	api := testAPI(t, testServices(t))

	resp := api.Get("/api/v1/grid/cells?limit=2")
	require.Equal(t, http.StatusOK, resp.Code)
	page := decode[struct {
		Total int           `json:"total"`
		Data  []CellSummary `json:"data"`
	}](t, resp.Body.Bytes())
	assert.Equal(t, 3, page.Total)
	require.Len(t, page.Data, 2)
	assert.Equal(t, "c1", page.Data[0].ID)
	assert.Equal(t, [][2]float64{{10.7, -74.2}, {10.8, -74.1}}, page.Data[0].Bounds)

	links := strings.Join(resp.Header().Values("Link"), ", ")
	assert.Contains(t, links, `</api/v1/grid/cells?offset=2&limit=2>; rel="next"`)
	assert.NotContains(t, links, `rel="prev"`)

	resp = api.Get("/api/v1/grid/cells?offset=2&limit=2")
	page = decode[struct {
		Total int           `json:"total"`
		Data  []CellSummary `json:"data"`
	}](t, resp.Body.Bytes())
	require.Len(t, page.Data, 1)
	assert.Equal(t, "c3", page.Data[0].ID)
}

func TestCellLegend(t *testing.T) {
	api := testAPI(t, testServices(t))

	tests := []struct {
		name       string
		path       string
		mismatch   bool
		groups     []string
		entries    [][]string
		unresolved []string
	}{
		{
			name:    "grouped by source in first-seen order",
			path:    "/api/v1/grid/c1/legend",
			groups:  []string{"Habitat map", "Water risk"},
			entries: [][]string{{"forest", "wetland"}, {"stock"}},
		},
		{
			name:     "length mismatch yields no groups",
			path:     "/api/v1/grid/c2/legend",
			mismatch: true,
		},
		{
			name:       "unresolved entries are dropped",
			path:       "/api/v1/grid/c3/legend",
			groups:     []string{"Habitat map"},
			entries:    [][]string{{}},
			unresolved: []string{"habitats/ghost"},
		},
		{
			name:    "spanish names",
			path:    "/api/v1/grid/c1/legend?lang=es",
			groups:  []string{"Mapa de hábitats", "Riesgo hídrico"},
			entries: [][]string{{"forest", "wetland"}, {"stock"}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := api.Get(tt.path)
			require.Equal(t, http.StatusOK, resp.Code)
			body := decode[LegendBody](t, resp.Body.Bytes())
			assert.Equal(t, tt.mismatch, body.Mismatch)
			require.Len(t, body.Groups, len(tt.groups))
			for i, g := range body.Groups {
				assert.Equal(t, tt.groups[i], g.LayerName)
				ids := []string{}
				for _, e := range g.Entries {
					ids = append(ids, e.ID)
				}
				assert.Equal(t, tt.entries[i], ids)
			}
			if tt.unresolved == nil {
				assert.Empty(t, body.Unresolved)
			} else {
				assert.Equal(t, tt.unresolved, body.Unresolved)
			}
		})
	}

	resp := api.Get("/api/v1/grid/c9/legend")
	assert.Equal(t, http.StatusNotFound, resp.Code)
}

func TestCellLegendMsgpack(t *testing.T) {
	api := testAPI(t, testServices(t))

	resp := api.Get("/api/v1/grid/c1/legend", "Accept: application/msgpack")
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, "application/msgpack", resp.Header().Get("Content-Type"))

	var body LegendBody
	require.NoError(t, msgpack.Unmarshal(resp.Body.Bytes(), &body))
	assert.Equal(t, "c1", body.Cell)
	require.Len(t, body.Groups, 2)
	assert.Equal(t, "runoff", body.Groups[1].Source)
	require.Len(t, body.Groups[1].Entries, 1)
	assert.Equal(t, []string{"#08306b", "#6baed6", "#f7fbff"}, body.Groups[1].Entries[0].Stops)
}

func TestResolveLegend(t *testing.T) {
	api := testAPI(t, testServices(t))

	mismatches := testutil.ToFloat64(metrics.ResolutionsTotal.WithLabelValues("mismatch"))
	missing := testutil.ToFloat64(metrics.UnresolvedEntriesTotal)

	resp := api.Post("/api/v1/legend/resolve?lang=es", map[string]any{
		"legends":    "rivers, forest ,nope",
		"sourceMaps": "runoff,habitats,runoff",
	})
	require.Equal(t, http.StatusOK, resp.Code)
	body := decode[LegendBody](t, resp.Body.Bytes())
	assert.Equal(t, "es", body.Lang)
	require.Len(t, body.Groups, 2)
	assert.Equal(t, "Riesgo hídrico", body.Groups[0].LayerName)
	require.Len(t, body.Groups[0].Entries, 1)
	assert.Equal(t, "line", body.Groups[0].Entries[0].Type)
	assert.Equal(t, []string{"runoff/nope"}, body.Unresolved)
	assert.Equal(t, missing+1, testutil.ToFloat64(metrics.UnresolvedEntriesTotal))

	resp = api.Post("/api/v1/legend/resolve", map[string]any{
		"legends":    "a,b",
		"sourceMaps": "x",
	})
	require.Equal(t, http.StatusOK, resp.Code)
	body = decode[LegendBody](t, resp.Body.Bytes())
	assert.True(t, body.Mismatch)
	assert.Empty(t, body.Groups)
	assert.Equal(t, mismatches+1, testutil.ToFloat64(metrics.ResolutionsTotal.WithLabelValues("mismatch")))
}

func TestDBUnavailable(t *testing.T) {
	api := testAPI(t, testServices(t))

	assert.Equal(t, http.StatusServiceUnavailable, api.Get("/api/v1/tables").Code)
	assert.Equal(t, http.StatusServiceUnavailable,
		api.Post("/api/v1/query", map[string]any{"query": "SELECT 1"}).Code)
	assert.Equal(t, http.StatusServiceUnavailable, api.Get("/api/v1/unresolved").Code)
}

func TestDBQuery(t *testing.T) {
	svc := testServices(t)
	conn, err := db.Open(db.InMemory)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	require.NoError(t, db.Load(context.Background(), conn, svc.Grid, svc.Catalog))
	svc.DB = conn
	api := testAPI(t, svc)

	resp := api.Get("/api/v1/tables")
	require.Equal(t, http.StatusOK, resp.Code)
	tables := decode[struct {
		Tables []string `json:"tables"`
	}](t, resp.Body.Bytes())
	assert.ElementsMatch(t, []string{"cell_refs", "grid_cells", "legend_entries"}, tables.Tables)

	resp = api.Post("/api/v1/query", map[string]any{
		"query": "SELECT id FROM grid_cells ORDER BY id",
	})
	require.Equal(t, http.StatusOK, resp.Code)
	out := decode[struct {
		Columns []string         `json:"columns"`
		Rows    []map[string]any `json:"rows"`
		Count   int              `json:"count"`
	}](t, resp.Body.Bytes())
	assert.Equal(t, []string{"id"}, out.Columns)
	assert.Equal(t, 3, out.Count)
	assert.Equal(t, "c1", out.Rows[0]["id"])

	resp = api.Post("/api/v1/query", map[string]any{"query": "SELECT * FROM nowhere"})
	assert.Equal(t, http.StatusBadRequest, resp.Code)

	resp = api.Get("/api/v1/unresolved")
	require.Equal(t, http.StatusOK, resp.Code)
	unresolved := decode[struct {
		Refs  []string `json:"refs"`
		Count int      `json:"count"`
	}](t, resp.Body.Bytes())
	assert.Equal(t, []string{"c3: habitats/ghost"}, unresolved.Refs)
	assert.Equal(t, 1, unresolved.Count)

	info := decode[InfoBody](t, api.Get("/api/v1/info").Body.Bytes())
	assert.True(t, info.DB)
	assert.Contains(t, info.Features, "duckdb")
}
