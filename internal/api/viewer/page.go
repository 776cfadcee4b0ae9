package viewer

import (
	"encoding/json"
	"net/http"
	"net/url"

	"go.uber.org/zap"

	"github.com/joeblew999/cultivar-map/internal/humastar"
	"github.com/joeblew999/cultivar-map/internal/session"
	"github.com/joeblew999/cultivar-map/internal/templates"
	"github.com/joeblew999/cultivar-map/internal/view"
)

// mapConfig is the data-map attribute read by the Leaflet shim.
type mapConfig struct {
	Center  [2]float64 `json:"center"`
	Zoom    int        `json:"zoom"`
	MinZoom int        `json:"minZoom,omitempty"`
	MaxZoom int        `json:"maxZoom,omitempty"`
	WMSURL  string     `json:"wmsUrl"`
	GridURL string     `json:"gridUrl"`
	Stroke  string     `json:"gridStroke,omitempty"`
	Weight  float64    `json:"gridWeight,omitempty"`
}

// ServePage renders the viewer document. ?lang= switches the session
// language and ?cell= opens a cell's legend.
func (h *Handler) ServePage(w http.ResponseWriter, r *http.Request) {
	var id string
	if c, err := r.Cookie(session.CookieName); err == nil {
		id = c.Value
	}
	s := h.session(id, r.Header.Get("Accept-Language"), func(c *http.Cookie) {
		http.SetCookie(w, c)
	})

	q := r.URL.Query()
	if lang := q.Get("lang"); lang != "" {
		s.SetLang(h.svc.Langs.Match(lang, ""))
	}
	if cellID := q.Get("cell"); cellID != "" {
		if cell, err := h.svc.Grid.Get(cellID); err == nil {
			cmds, _, _ := s.Do(func(c *view.Controller) error {
				c.ShowCell(cell.ID)
				return nil
			})
			h.publish(s, "cell", cell.ID, cmds)
		}
	}

	page, err := h.page(s)
	if err != nil {
		h.logger.Error("viewer_page_failed", zap.Error(err))
		http.Error(w, "viewer unavailable", http.StatusInternalServerError)
		return
	}
	html, err := h.Renderer.Render("viewer-page", page)
	if err != nil {
		h.logger.Error("viewer_page_failed", zap.Error(err))
		http.Error(w, "viewer unavailable", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	_, _ = w.Write([]byte(html))
}

func (h *Handler) page(s *session.Session) (templates.Page, error) {
	site := h.svc.Layers.Site()
	lang := s.Lang()
	st, _ := s.Snapshot()

	signals := stateSignals(st)
	signals["lat"] = nil
	signals["lng"] = nil
	pd := humastar.PageData{Signals: signals, Inits: []string{"/api/v1/viewer/panels"}}

	cfg, err := json.Marshal(mapConfig{
		Center:  site.Map.Center,
		Zoom:    site.Map.Zoom,
		MinZoom: site.Map.MinZoom,
		MaxZoom: site.Map.MaxZoom,
		WMSURL:  site.Map.WMSURL,
		GridURL: "/api/v1/grid",
		Stroke:  site.Grid.Stroke,
		Weight:  site.Grid.Weight,
	})
	if err != nil {
		return templates.Page{}, err
	}

	links := make([]templates.LangLink, 0, len(site.Languages))
	for _, code := range site.Languages {
		links = append(links, templates.LangLink{
			Code:   code,
			Href:   "/viewer?" + url.Values{"lang": {code}}.Encode(),
			Active: code == lang,
		})
	}

	return templates.Page{
		Title:     site.Title.Resolve(lang),
		Lang:      lang,
		Languages: links,
		Signals:   pd.SignalsJSON(),
		Init:      pd.DataInit(),
		MapConfig: string(cfg),
		HomeTab:   site.Label("home", lang),
		LayersTab: site.Label("layers", lang),
		GridTab:   site.Label("grid", lang),
	}, nil
}
