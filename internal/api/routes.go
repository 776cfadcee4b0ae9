// Package api defines the Huma API routes and handlers.
package api

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/danielgtaylor/huma/v2"

	"github.com/joeblew999/cultivar-map/internal/grid"
	"github.com/joeblew999/cultivar-map/internal/humastar"
	"github.com/joeblew999/cultivar-map/internal/i18n"
	"github.com/joeblew999/cultivar-map/internal/legend"
	"github.com/joeblew999/cultivar-map/internal/metrics"
	"github.com/joeblew999/cultivar-map/internal/service"
	"github.com/joeblew999/cultivar-map/internal/view"
)

// Services holds the dependencies of the API handlers. DB is nil when the
// DuckDB mirror is disabled.
type Services struct {
	Layers   *service.LayerService
	Catalog  *legend.Catalog
	Grid     *grid.Dataset
	Resolver *legend.Resolver
	Langs    *i18n.Matcher
	DB       *sql.DB
	Version  string
	DataDir  string
}

// Types

type IDInput struct {
	ID string `path:"id" doc:"Layer ID" example:"zona_bananera"`
}

// LangInput selects the display language. An explicit ?lang= wins over
// Accept-Language.
type LangInput struct {
	Lang           string `query:"lang" doc:"Language code" example:"es"`
	AcceptLanguage string `header:"Accept-Language" doc:"Preferred languages"`
}

type HealthBody struct {
	Status  string `json:"status" doc:"Health status" example:"ok"`
	Version string `json:"version" doc:"API version" example:"1.0.0"`
}

// LayerSummary is a layer descriptor with its text resolved for one
// language.
type LayerSummary struct {
	ID          string  `json:"id" doc:"Layer ID"`
	Kind        string  `json:"kind" enum:"base,overlay,underlay" doc:"Layer collection"`
	WMSName     string  `json:"wms_name" doc:"Remote WMS layer name"`
	Title       string  `json:"title" doc:"Localized short title"`
	Attribution string  `json:"attribution,omitempty" doc:"Localized attribution"`
	DefaultOn   bool    `json:"default_on" doc:"Attached when a session starts"`
	Opacity     float64 `json:"opacity" doc:"Configured opacity"`
}

var (
	legendsAction = humastar.ActionDef{Rel: "legends", Pattern: "/api/v1/layers/%s/legends", Method: "GET", Title: "Catalog legends"}
	layerActions  = map[string][]humastar.ActionDef{
		string(view.KindOverlay): {
			legendsAction,
			{Rel: "attach", Pattern: "/api/v1/viewer/overlays/%s?enabled=true", Method: "POST", Title: "Show on the map"},
			{Rel: "detach", Pattern: "/api/v1/viewer/overlays/%s?enabled=false", Method: "POST", Title: "Hide from the map"},
		},
		string(view.KindUnderlay): {
			legendsAction,
			{Rel: "attach", Pattern: "/api/v1/viewer/underlays/%s?enabled=true", Method: "POST", Title: "Show on the map"},
			{Rel: "detach", Pattern: "/api/v1/viewer/underlays/%s?enabled=false", Method: "POST", Title: "Hide from the map"},
		},
	}
)

// Actions lists the layer's legends and, for overlays and underlays, the
// viewer toggles. Base layers are selected through the "base" signal.
func (l LayerSummary) Actions() []humastar.Action {
	if defs, ok := layerActions[l.Kind]; ok {
		return humastar.ActionsFor(l.ID, defs...)
	}
	return humastar.ActionsFor(l.ID, legendsAction)
}

type LayersBody struct {
	Lang      string         `json:"lang" doc:"Language the titles are resolved in"`
	Base      []LayerSummary `json:"base" doc:"Mutually exclusive base layers"`
	Overlays  []LayerSummary `json:"overlays" doc:"Overlay layers, stacked above the base"`
	Underlays []LayerSummary `json:"underlays" doc:"Underlay layers, stacked below the base"`
}

type LayerOutput struct {
	Body LayerSummary
}

type LayersOutput struct {
	Body LayersBody
}

type LegendsOutput struct {
	Body []legend.LegendRecord
}

// APIHandler holds all REST API handlers. Methods named Register* are
// auto-discovered by huma.AutoRegister.
type APIHandler struct {
	svc *Services
}

func NewAPIHandler(svc *Services) *APIHandler {
	return &APIHandler{svc: svc}
}

// RegisterHealth registers health check routes.
func (h *APIHandler) RegisterHealth(api huma.API) {
	huma.Get(api, "/health", h.GetHealth, huma.OperationTags("health"))
}

// RegisterLayers registers the read-only layer routes.
func (h *APIHandler) RegisterLayers(api huma.API) {
	huma.Get(api, "/api/v1/layers", h.GetLayers, huma.OperationTags("layers"))
	huma.Get(api, "/api/v1/layers/{id}", h.GetLayer, huma.OperationTags("layers"))
	huma.Get(api, "/api/v1/layers/{id}/legends", h.GetLayerLegends, huma.OperationTags("layers", "legends"))
}

// Handlers

func (h *APIHandler) GetHealth(ctx context.Context, input *struct{}) (*struct{ Body HealthBody }, error) {
	return &struct{ Body HealthBody }{Body: HealthBody{Status: "ok", Version: h.version()}}, nil
}

func (h *APIHandler) GetLayers(ctx context.Context, input *LangInput) (*LayersOutput, error) {
	lang := h.lang(input)
	layers := h.svc.Layers
	return &LayersOutput{Body: LayersBody{
		Lang:      lang,
		Base:      h.summaries(layers.Base(), view.KindBase, lang),
		Overlays:  h.summaries(layers.Overlays(), view.KindOverlay, lang),
		Underlays: h.summaries(layers.Underlays(), view.KindUnderlay, lang),
	}}, nil
}

func (h *APIHandler) GetLayer(ctx context.Context, input *struct {
	IDInput
	LangInput
}) (*LayerOutput, error) {
	desc, kind, ok := h.svc.Layers.Get(input.ID)
	if !ok {
		return nil, huma.Error404NotFound("layer not found")
	}
	return &LayerOutput{Body: summary(desc, kind, h.lang(&input.LangInput))}, nil
}

func (h *APIHandler) GetLayerLegends(ctx context.Context, input *IDInput) (*LegendsOutput, error) {
	if _, _, ok := h.svc.Layers.Get(input.ID); !ok {
		return nil, huma.Error404NotFound("layer not found")
	}
	legends := h.svc.Catalog.ForLayer(input.ID)
	out := make([]legend.LegendRecord, 0, len(legends))
	for _, l := range legends {
		out = append(out, l.Record())
	}
	return &LegendsOutput{Body: out}, nil
}

func (h *APIHandler) summaries(descs []service.LayerDescriptor, kind view.Kind, lang string) []LayerSummary {
	out := make([]LayerSummary, 0, len(descs))
	for _, d := range descs {
		out = append(out, summary(d, kind, lang))
	}
	return out
}

func summary(d service.LayerDescriptor, kind view.Kind, lang string) LayerSummary {
	s := LayerSummary{
		ID:        d.ID,
		Kind:      string(kind),
		WMSName:   d.WMSName,
		Title:     d.ShortTitle.Resolve(lang),
		DefaultOn: d.DefaultOn,
		Opacity:   d.Opacity,
	}
	if len(d.Attribution) > 0 {
		s.Attribution = d.Attribution.Resolve(lang)
	}
	return s
}

func (h *APIHandler) lang(input *LangInput) string {
	return h.svc.Langs.Match(input.Lang, input.AcceptLanguage)
}

func (h *APIHandler) version() string {
	if h.svc.Version == "" {
		return "dev"
	}
	return h.svc.Version
}

// Grid types

// CellSummary is one grid cell without its geometry.
type CellSummary struct {
	ID         string       `json:"id" doc:"Cell ID"`
	Legends    string       `json:"legends" doc:"Comma-separated legend entry ids"`
	SourceMaps string       `json:"sourceMaps" doc:"Comma-separated source-layer keys, parallel to legends"`
	Bounds     [][2]float64 `json:"bounds" doc:"[[south, west], [north, east]]"`
}

type GridOutput struct {
	ContentType string `header:"Content-Type"`
	Body        []byte
}

type CellsInput struct {
	Offset int `query:"offset" minimum:"0" default:"0" doc:"Items to skip"`
	Limit  int `query:"limit" minimum:"0" maximum:"1000" default:"100" doc:"Page size, 0 for all"`
}

type CellsOutput struct {
	Body humastar.PageBody[CellSummary]
}

type CellLegendInput struct {
	ID string `path:"id" doc:"Grid cell ID" example:"c1"`
	LangInput
}

// LegendBody is the resolved legend of a cell or of raw reference fields.
type LegendBody struct {
	Cell       string               `json:"cell,omitempty" yaml:"cell,omitempty" msgpack:"cell,omitempty" doc:"Grid cell ID"`
	Lang       string               `json:"lang" yaml:"lang" msgpack:"lang" doc:"Language the groups are resolved in"`
	Mismatch   bool                 `json:"mismatch" yaml:"mismatch" msgpack:"mismatch" doc:"The two reference fields have different lengths"`
	Groups     []legend.GroupRecord `json:"groups" yaml:"groups" msgpack:"groups" doc:"Resolved groups in first-seen order"`
	Unresolved []string             `json:"unresolved" yaml:"unresolved" msgpack:"unresolved" doc:"References the catalog has no entry for, as source/entry"`
}

type LegendOutput struct {
	Body LegendBody
}

type ResolveInput struct {
	LangInput
	Body struct {
		Legends    string `json:"legends" doc:"Comma-separated legend entry ids" example:"forest,stock"`
		SourceMaps string `json:"sourceMaps" doc:"Comma-separated source-layer keys" example:"habitats,runoff"`
	}
}

// RegisterGrid registers the grid dataset and legend resolution routes.
func (h *APIHandler) RegisterGrid(api huma.API) {
	huma.Get(api, "/api/v1/grid", h.GetGrid, huma.OperationTags("grid"))
	huma.Get(api, "/api/v1/grid/cells", h.GetCells, huma.OperationTags("grid"))
	huma.Get(api, "/api/v1/grid/{id}/legend", h.GetCellLegend, huma.OperationTags("grid", "legends"))
	huma.Post(api, "/api/v1/legend/resolve", h.ResolveLegend, huma.OperationTags("legends"))
}

func (h *APIHandler) GetGrid(ctx context.Context, input *struct{}) (*GridOutput, error) {
	data, err := h.svc.Grid.GeoJSON()
	if err != nil {
		return nil, huma.Error500InternalServerError("Failed to encode grid", err)
	}
	return &GridOutput{ContentType: "application/geo+json", Body: data}, nil
}

func (h *APIHandler) GetCells(ctx context.Context, input *CellsInput) (*CellsOutput, error) {
	features := h.svc.Grid.Features()
	cells := make([]CellSummary, 0, len(features))
	for _, f := range features {
		cells = append(cells, CellSummary{
			ID:         f.ID,
			Legends:    f.Legends,
			SourceMaps: f.SourceMaps,
			Bounds:     view.LatLngBounds(f.Geometry.Bound()),
		})
	}
	return &CellsOutput{Body: humastar.Paginate(cells, input.Offset, input.Limit)}, nil
}

func (h *APIHandler) GetCellLegend(ctx context.Context, input *CellLegendInput) (*LegendOutput, error) {
	body, err := h.CellLegend(input.ID, h.lang(&input.LangInput))
	if errors.Is(err, grid.ErrNoFeature) {
		return nil, huma.Error404NotFound("cell not found")
	}
	if err != nil {
		return nil, huma.Error500InternalServerError("Failed to read cell", err)
	}
	return &LegendOutput{Body: body}, nil
}

// CellLegend resolves the legend of grid cell id in lang.
func (h *APIHandler) CellLegend(id, lang string) (LegendBody, error) {
	cell, err := h.svc.Grid.Get(id)
	if err != nil {
		return LegendBody{}, err
	}
	body := h.resolve(cell.Legends, cell.SourceMaps, lang)
	body.Cell = cell.ID
	return body, nil
}

func (h *APIHandler) ResolveLegend(ctx context.Context, input *ResolveInput) (*LegendOutput, error) {
	return &LegendOutput{Body: h.resolve(input.Body.Legends, input.Body.SourceMaps, h.lang(&input.LangInput))}, nil
}

func (h *APIHandler) resolve(entries, sources, lang string) LegendBody {
	groups := h.svc.Resolver.Resolve(entries, sources, lang)
	missing, mismatch := h.svc.Resolver.Unresolved(entries, sources)
	RecordResolution(groups, len(missing), mismatch)

	body := LegendBody{
		Lang:       lang,
		Mismatch:   mismatch,
		Groups:     make([]legend.GroupRecord, 0, len(groups)),
		Unresolved: make([]string, 0, len(missing)),
	}
	for _, g := range groups {
		body.Groups = append(body.Groups, g.Record())
	}
	for _, ref := range missing {
		body.Unresolved = append(body.Unresolved, strings.ToLower(ref.Source)+"/"+ref.Entry)
	}
	return body
}

// RecordResolution counts one resolution by outcome.
func RecordResolution(groups []legend.Group, missing int, mismatch bool) {
	outcome := "ok"
	switch {
	case mismatch:
		outcome = "mismatch"
	case len(groups) == 0:
		outcome = "empty"
	}
	metrics.ResolutionsTotal.WithLabelValues(outcome).Inc()
	if missing > 0 {
		metrics.UnresolvedEntriesTotal.Add(float64(missing))
	}
}
