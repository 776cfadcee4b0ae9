package viewer

import (
	"context"
	"fmt"
	"html/template"

	"github.com/danielgtaylor/huma/v2"

	"github.com/joeblew999/cultivar-map/internal/api"
	"github.com/joeblew999/cultivar-map/internal/humastar"
	"github.com/joeblew999/cultivar-map/internal/i18n"
	"github.com/joeblew999/cultivar-map/internal/legend"
	"github.com/joeblew999/cultivar-map/internal/metrics"
	"github.com/joeblew999/cultivar-map/internal/service"
	"github.com/joeblew999/cultivar-map/internal/session"
	"github.com/joeblew999/cultivar-map/internal/templates"
	"github.com/joeblew999/cultivar-map/internal/view"
)

// Panels renders every panel tab and the current state signals. The page
// calls it once on load.
func (h *Handler) Panels(ctx context.Context, input *humastar.SessionInput) (*huma.StreamResponse, error) {
	return h.stream(input.Session, func(sse humastar.SSE, s *session.Session) {
		st, _ := s.Snapshot()
		lang := s.Lang()
		sse.Patch(h.Render("home-panel", h.homePanel(lang)), "#home")
		sse.Patch(h.Render("layers-panel", h.layersPanel(st, lang)), "#layers")
		sse.Patch(h.Render("grid-panel", h.gridPanel(st, lang)), "#grid")
		sse.Signals(stateSignals(st))
	}), nil
}

type PanelInput struct {
	Session string `cookie:"cultivar_session" doc:"Viewer session id"`
	Side    string `path:"side" enum:"left,right" doc:"Side panel"`
	Tab     string `query:"tab" enum:"home,layers,grid" doc:"Tab to show, keeps the current one when empty"`
}

// OpenPanel opens a side panel, optionally switching its tab.
func (h *Handler) OpenPanel(ctx context.Context, input *PanelInput) (*huma.StreamResponse, error) {
	side := view.Side(input.Side)
	if input.Tab != "" && !tabOnSide(side, input.Tab) {
		return nil, huma.Error400BadRequest("tab " + input.Tab + " is not on the " + input.Side + " panel")
	}
	return h.stream(input.Session, func(sse humastar.SSE, s *session.Session) {
		h.apply(sse, s, "panel", input.Side, func(c *view.Controller) error {
			c.OpenPanel(side, input.Tab)
			return nil
		})
	}), nil
}

// ClosePanel closes a side panel.
func (h *Handler) ClosePanel(ctx context.Context, input *PanelInput) (*huma.StreamResponse, error) {
	return h.stream(input.Session, func(sse humastar.SSE, s *session.Session) {
		h.apply(sse, s, "panel", input.Side, func(c *view.Controller) error {
			c.ClosePanel(view.Side(input.Side))
			return nil
		})
	}), nil
}

func tabOnSide(side view.Side, tab string) bool {
	switch side {
	case view.Left:
		return tab == view.TabHome || tab == view.TabLayers
	case view.Right:
		return tab == view.TabGrid
	}
	return false
}

func (h *Handler) homePanel(lang string) templates.HomePanel {
	home := h.svc.Layers.Site().Home
	return templates.HomePanel{
		Title:    home.Title.Resolve(lang),
		Sections: sections(home.Sections, lang),
		Button:   optional(home.ButtonText, lang),
	}
}

func (h *Handler) layersPanel(st view.State, lang string) templates.LayersPanel {
	layers := h.svc.Layers
	site := layers.Site()

	gridTitle := optional(site.Grid.Title, lang)
	if gridTitle == "" {
		gridTitle = site.Label("grid", lang)
	}
	p := templates.LayersPanel{
		Title:           site.Label("layers", lang),
		GridTitle:       gridTitle,
		Grid:            st.Grid,
		UnderlayHeading: site.Label("underlays", lang),
		OverlayHeading:  site.Label("overlays", lang),
		BaseHeading:     site.Label("base_layer", lang),
		OpacityHeading:  site.Label("opacity", lang),
		Opacity:         st.Opacity,
	}
	for _, d := range layers.Underlays() {
		p.Underlays = append(p.Underlays, option(d, lang, st.UnderlayOn(d.ID)))
	}
	for _, d := range layers.Overlays() {
		p.Overlays = append(p.Overlays, option(d, lang, st.OverlayOn(d.ID)))
	}
	p.Base = append(p.Base, templates.Option{ID: view.NoBase, Title: site.Label("none", lang), On: st.Base == view.NoBase})
	for _, d := range layers.Base() {
		p.Base = append(p.Base, option(d, lang, st.Base == d.ID))
	}
	h.baseDetails(&p, st.Base, lang)
	return p
}

// baseDetails fills the legends and info sections of the active base
// layer.
func (h *Handler) baseDetails(p *templates.LayersPanel, base, lang string) {
	p.Legends, p.Sections = nil, nil
	desc, _, ok := h.svc.Layers.Get(base)
	if !ok {
		return
	}
	for i, l := range h.svc.Catalog.ForLayer(base) {
		rows := legend.RenderLegend(l, lang)
		metrics.Placeholders(legend.Problems(rows))
		p.Legends = append(p.Legends, templates.LegendTable{
			Title: optional(l.Title, lang),
			Rows:  legend.Scoped(rows, fmt.Sprintf("base%d", i)),
		})
	}
	p.Sections = sections(desc.InfoSections, lang)
}

func (h *Handler) gridPanel(st view.State, lang string) templates.GridPanel {
	site := h.svc.Layers.Site()
	p := templates.GridPanel{
		Title:    site.GridPanel.Title.Resolve(lang),
		Sections: sections(site.GridPanel.Sections, lang),
		Cell:     st.Cell,
		Empty:    site.Label("no_legend", lang),
	}
	if st.Cell == "" {
		return p
	}
	cell, err := h.svc.Grid.Get(st.Cell)
	if err != nil {
		return p
	}
	groups := h.svc.Resolver.Resolve(cell.Legends, cell.SourceMaps, lang)
	missing, mismatch := h.svc.Resolver.Unresolved(cell.Legends, cell.SourceMaps)
	api.RecordResolution(groups, len(missing), mismatch)
	for i, g := range groups {
		rows := legend.RenderEntries(g.Entries, lang)
		metrics.Placeholders(legend.Problems(rows))
		p.Groups = append(p.Groups, templates.GridGroup{
			LayerName: g.LayerName,
			Legend:    templates.LegendTable{Rows: legend.Scoped(rows, fmt.Sprintf("cell%d", i))},
		})
	}
	return p
}

func option(d service.LayerDescriptor, lang string, on bool) templates.Option {
	return templates.Option{ID: d.ID, Title: d.ShortTitle.Resolve(lang), On: on}
}

// sections converts configured info sections. Their copy is trusted HTML.
func sections(in []service.InfoSection, lang string) []templates.Section {
	out := make([]templates.Section, 0, len(in))
	for _, s := range in {
		out = append(out, templates.Section{
			Title:   template.HTML(optional(s.Title, lang)),
			Content: template.HTML(optional(s.Content, lang)),
		})
	}
	return out
}

// optional resolves t, treating a missing text as blank rather than
// UNDEFINED.
func optional(t i18n.Text, lang string) string {
	if len(t) == 0 {
		return ""
	}
	return t.Resolve(lang)
}
