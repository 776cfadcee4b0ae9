package templates

import (
	"context"
	"html/template"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/joeblew999/cultivar-map/internal/i18n"
	"github.com/joeblew999/cultivar-map/internal/legend"
)

func embeddedRenderer(t *testing.T) *Renderer {
	t.Helper()
	r, err := New("")
	require.NoError(t, err)
	return r
}

func float(v float64) *float64 { return &v }

func TestEmbeddedFragments(t *testing.T) {
	r := embeddedRenderer(t)
	for _, name := range []string{
		"legend-table", "legend-row", "legend-icon", "info-sections",
		"home-panel", "layers-panel", "base-details", "grid-panel", "layer-checkbox",
		"select-option", "viewer-page",
	} {
		assert.True(t, r.Has(name), name)
	}
	assert.Equal(t, "", r.Dir())
}

func TestLegendTable(t *testing.T) {
	r := embeddedRenderer(t)
	entries := []legend.Entry{
		legend.Value{ID: "forest", Label: i18n.Text{"en": "Forest"}, Fill: "#00ff00"},
		legend.Line{ID: "river", Label: i18n.Text{"en": "River"}, Fill: "#0000ff", Stroke: "#000"},
		legend.Ramp{
			ID:     "stock",
			Stops:  []string{"#fff", "#888", "#000"},
			Labels: i18n.Lines{"en": {"High", "", "Low"}},
			Min:    float(0.2), Max: float(0.6),
		},
		legend.Ramp{ID: "broken", Stops: []string{"#fff"}},
		legend.Unknown{ID: "h", Type: "hatch"},
	}

	rows := legend.RenderEntries(entries, "en")
	html, err := r.Render("legend-table", LegendTable{Title: "Habitats", Rows: rows})
	require.NoError(t, err)
	rampID := rows[2].Icon.(legend.Gradient).ID

	for _, want := range []string{
		`<h6 class="legend-title">Habitats</h6>`,
		`<rect x="1" y="1" width="8" height="8" rx="1" fill="#00ff00" stroke="none"/>`,
		`stroke="#000" stroke-width="3"`,
		`stroke="#0000ff" stroke-width="2"`,
		`rowspan="3"`,
		`style="height: 3rem"`,
		`<linearGradient id="` + rampID + `"`,
		`<stop offset="50%" stop-color="#888"/>`,
		`fill="url(#` + rampID + `)"`,
		`class="legend-ramp-highlight"`,
		`>High</td>`,
		`>Low</td>`,
		"\u00a0</td>",
		`class="legend-problem legend-bad_ramp"`,
		`>BAD RAMP</td>`,
		`>Unknown Legend Entry Type [hatch]</td>`,
	} {
		assert.Contains(t, html, want)
	}
	assert.Equal(t, 7, strings.Count(html, "<tr"), "forest, river, three ramp rows, two placeholders")
}

func TestPanels(t *testing.T) {
	r := embeddedRenderer(t)

	home, err := r.Render("home-panel", HomePanel{
		Title:    "Welcome",
		Sections: []Section{{Title: "About", Content: template.HTML("<b>Bold</b>")}, {Content: "Plain"}},
		Button:   "Get started",
	})
	require.NoError(t, err)
	assert.Contains(t, home, "<h2>Welcome</h2>")
	assert.Contains(t, home, "<h5>About</h5><p><b>Bold</b></p><p>Plain</p>")
	assert.Contains(t, home, "/api/v1/viewer/panels/left?tab=layers")

	layers, err := r.Render("layers-panel", LayersPanel{
		Title:     "Layers",
		GridTitle: "5k grid squares",
		Grid:      true,
		Underlays: []Option{{ID: "satellite_imagery", Title: "Satellite", On: true}},
		Overlays:  []Option{{ID: "rio_frio", Title: "Rio Frio"}},
		Base:      []Option{{ID: "none", Title: "None"}, {ID: "habitat_map", Title: "Habitats", On: true}},
		Opacity:   0.9,
		Legends:   []LegendTable{{Title: "Habitats"}},
	})
	require.NoError(t, err)
	assert.Contains(t, layers, `id="underlays-satellite_imagery"`)
	assert.Contains(t, layers, `/api/v1/viewer/overlays/rio_frio?enabled=`)
	assert.Contains(t, layers, `<option value="habitat_map" selected>Habitats</option>`)
	assert.Contains(t, layers, `<option value="none">None</option>`)
	assert.Contains(t, layers, "90%")
	assert.Equal(t, 2, strings.Count(layers, " checked"), "grid and satellite")
	assert.Contains(t, layers, `<div id="base-details">`)
	assert.Contains(t, layers, `<h6 class="legend-title">Habitats</h6>`)

	grid, err := r.Render("grid-panel", GridPanel{
		Title: "Grid",
		Cell:  "cell-1",
		Groups: []GridGroup{
			{LayerName: "Habitat map", Legend: LegendTable{Rows: []legend.Row{{Label: "Forest", RowSpan: 1, Icon: legend.Swatch{Fill: "#0f0", Stroke: "none"}}}}},
			{LayerName: "UNDEFINED"},
		},
		Empty: "Nothing here",
	})
	require.NoError(t, err)
	assert.Equal(t, 2, strings.Count(grid, "<hr>"))
	assert.Contains(t, grid, `<h4 class="grid-layer-name">Habitat map</h4>`)
	assert.NotContains(t, grid, "Nothing here")

	empty, err := r.Render("grid-panel", GridPanel{Title: "Grid", Cell: "cell-2", Empty: "Nothing here"})
	require.NoError(t, err)
	assert.Contains(t, empty, "Nothing here")
}

func TestViewerPage(t *testing.T) {
	r := embeddedRenderer(t)
	html, err := r.Render("viewer-page", Page{
		Title:     "Opportunity map",
		Lang:      "es",
		Languages: []LangLink{{Code: "en", Href: "/viewer?lang=en"}, {Code: "es", Href: "/viewer?lang=es", Active: true}},
		Signals:   `{"error":""}`,
		Init:      "@get('/api/v1/viewer/panels')",
		MapConfig: `{"zoom":10}`,
	})
	require.NoError(t, err)
	assert.Contains(t, html, `<html lang="es">`)
	assert.Contains(t, html, `data-signals="{&#34;error&#34;:&#34;&#34;}"`)
	assert.Contains(t, html, `<a href="/viewer?lang=es" class="active">es</a>`)
}

func TestOverrideAndReload(t *testing.T) {
	dir := t.TempDir()
	r, err := New(dir)
	require.NoError(t, err, "an empty override dir is allowed")

	require.NoError(t, os.WriteFile(filepath.Join(dir, "home.html"),
		[]byte(`{{define "home-panel"}}custom {{.Title}}{{end}}`), 0o644))
	require.NoError(t, r.Reload())

	out, err := r.Render("home-panel", HomePanel{Title: "Hi"})
	require.NoError(t, err)
	assert.Equal(t, "custom Hi", out)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "home.html"), []byte(`{{define "home-panel"}}{{end`), 0o644))
	assert.Error(t, r.Reload())
	out, err = r.Render("home-panel", HomePanel{Title: "Hi"})
	require.NoError(t, err)
	assert.Equal(t, "custom Hi", out, "failed reload keeps the previous set")

	_, err = r.Render("missing", nil)
	assert.Error(t, err)
}

func TestWatch(t *testing.T) {
	defer goleak.VerifyNone(t)

	dir := t.TempDir()
	r, err := New(dir)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	reloaded := make(chan error, 8)
	done := make(chan error, 1)
	go func() {
		done <- r.Watch(ctx, 20*time.Millisecond, func(err error) { reloaded <- err })
	}()

	// Give the watcher time to register the directory.
	time.Sleep(100 * time.Millisecond)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "note.txt"), []byte("ignored"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "grid.html"),
		[]byte(`{{define "grid-panel"}}watched{{end}}`), 0o644))

	select {
	case err := <-reloaded:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("no reload after write")
	}
	out, err := r.Render("grid-panel", GridPanel{})
	require.NoError(t, err)
	assert.Equal(t, "watched", out)

	cancel()
	assert.NoError(t, <-done)

	assert.Error(t, embeddedRenderer(t).Watch(context.Background(), time.Millisecond, nil))
}
