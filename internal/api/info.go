package api

import (
	"context"

	"github.com/danielgtaylor/huma/v2"
)

type InfoHandler struct {
	svc *Services
}

func NewInfoHandler(svc *Services) *InfoHandler {
	return &InfoHandler{svc: svc}
}

func (h *InfoHandler) RegisterRoutes(api huma.API) {
	huma.Get(api, "/api/v1/info", h.GetInfo, huma.OperationTags("health"))
}

type InfoBody struct {
	Name      string   `json:"name" doc:"Service name"`
	Version   string   `json:"version" doc:"Service version"`
	DataDir   string   `json:"data_dir" doc:"Data directory path"`
	DB        bool     `json:"db" doc:"Whether the DuckDB mirror is available"`
	Languages []string `json:"languages" doc:"Configured languages, default first"`
	Layers    int      `json:"layers" doc:"Configured WMS layers"`
	Legends   int      `json:"legends" doc:"Layers with catalog legends"`
	Cells     int      `json:"cells" doc:"Grid cells"`
	Features  []string `json:"features" doc:"Available features"`
}

func (h *InfoHandler) GetInfo(ctx context.Context, input *struct{}) (*struct{ Body InfoBody }, error) {
	features := []string{"wms", "legends", "grid", "viewer"}
	if h.svc.DB != nil {
		features = append(features, "duckdb")
	}
	return &struct{ Body InfoBody }{Body: InfoBody{
		Name:      "cultivar-map",
		Version:   (&APIHandler{svc: h.svc}).version(),
		DataDir:   h.svc.DataDir,
		DB:        h.svc.DB != nil,
		Languages: h.svc.Layers.Site().Languages,
		Layers:    h.svc.Layers.Len(),
		Legends:   len(h.svc.Catalog.Layers()),
		Cells:     h.svc.Grid.Len(),
		Features:  features,
	}}, nil
}
