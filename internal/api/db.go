package api

import (
	"context"

	"github.com/danielgtaylor/huma/v2"

	"github.com/joeblew999/cultivar-map/internal/db"
)

// DBHandler serves the DuckDB mirror of the grid and the legend catalog.
type DBHandler struct {
	svc *Services
}

// NewDBHandler creates a new database handler.
func NewDBHandler(svc *Services) *DBHandler {
	return &DBHandler{svc: svc}
}

// RegisterRoutes registers database routes with Huma.
func (h *DBHandler) RegisterRoutes(api huma.API) {
	huma.Get(api, "/api/v1/tables", h.ListTables, huma.OperationTags("db"))
	huma.Post(api, "/api/v1/query", h.Query, huma.OperationTags("db"))
	huma.Get(api, "/api/v1/unresolved", h.ListUnresolved, huma.OperationTags("db"))
}

// TablesOutput is the response for listing tables.
type TablesOutput struct {
	Body struct {
		Tables []string `json:"tables" doc:"List of table names"`
	}
}

// ListTables returns all DuckDB tables.
func (h *DBHandler) ListTables(ctx context.Context, input *struct{}) (*TablesOutput, error) {
	if h.svc.DB == nil {
		return nil, huma.Error503ServiceUnavailable("Database not available")
	}
	tables, err := db.Tables(ctx, h.svc.DB)
	if err != nil {
		return nil, huma.Error500InternalServerError("Failed to list tables", err)
	}
	out := &TablesOutput{}
	out.Body.Tables = tables
	return out, nil
}

// QueryInput is the input for SQL queries.
type QueryInput struct {
	Body struct {
		Query string `json:"query" required:"true" minLength:"1" doc:"SQL query to execute" example:"SELECT id, legends FROM grid_cells"`
	}
}

// QueryOutput is the response for SQL queries.
type QueryOutput struct {
	Body struct {
		Columns []string         `json:"columns" doc:"Column names"`
		Rows    []map[string]any `json:"rows" doc:"Query results"`
		Count   int              `json:"count" doc:"Number of rows returned"`
	}
}

// Query executes a SQL query against DuckDB.
func (h *DBHandler) Query(ctx context.Context, input *QueryInput) (*QueryOutput, error) {
	if h.svc.DB == nil {
		return nil, huma.Error503ServiceUnavailable("Database not available")
	}
	res, err := db.Query(ctx, h.svc.DB, input.Body.Query)
	if err != nil {
		return nil, huma.Error400BadRequest("Query failed: " + err.Error())
	}
	out := &QueryOutput{}
	out.Body.Columns = res.Columns
	out.Body.Rows = res.Rows
	out.Body.Count = len(res.Rows)
	return out, nil
}

// UnresolvedOutput is the response for listing unresolved cell references.
type UnresolvedOutput struct {
	Body struct {
		Refs  []string `json:"refs" doc:"Unresolved references as 'cell: source/entry'" example:"r2c1: habitats/ghost"`
		Count int      `json:"count" doc:"Number of unresolved references"`
	}
}

// ListUnresolved returns the cell references the legend catalog cannot
// resolve, joined in DuckDB.
func (h *DBHandler) ListUnresolved(ctx context.Context, input *struct{}) (*UnresolvedOutput, error) {
	if h.svc.DB == nil {
		return nil, huma.Error503ServiceUnavailable("Database not available")
	}
	refs, err := db.UnresolvedRefs(ctx, h.svc.DB)
	if err != nil {
		return nil, huma.Error500InternalServerError("Failed to list unresolved references", err)
	}
	out := &UnresolvedOutput{}
	out.Body.Refs = refs
	out.Body.Count = len(refs)
	return out, nil
}
