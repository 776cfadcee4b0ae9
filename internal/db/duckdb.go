// Package db mirrors the grid and the legend catalog into DuckDB so they can
// be explored with ad-hoc SQL.
package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	_ "github.com/marcboeker/go-duckdb"
	"github.com/paulmach/orb/encoding/wkt"

	"github.com/joeblew999/cultivar-map/internal/grid"
	"github.com/joeblew999/cultivar-map/internal/legend"
)

// InMemory opens a database that lives only as long as the process.
const InMemory = "memory"

// Open opens the DuckDB database at path, or an in-memory one when path is
// InMemory.
func Open(path string) (*sql.DB, error) {
	dsn := ""
	if path != InMemory {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("create duckdb directory: %w", err)
		}
		dsn = path
	}
	conn, err := sql.Open("duckdb", dsn)
	if err != nil {
		return nil, fmt.Errorf("open duckdb: %w", err)
	}
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("open duckdb: %w", err)
	}
	return conn, nil
}

var schema = []string{
	`CREATE OR REPLACE TABLE grid_cells (
		id VARCHAR PRIMARY KEY,
		legends VARCHAR,
		source_maps VARCHAR,
		min_lon DOUBLE, min_lat DOUBLE, max_lon DOUBLE, max_lat DOUBLE,
		geometry_wkt VARCHAR
	)`,
	`CREATE OR REPLACE TABLE cell_refs (
		cell_id VARCHAR,
		seq INTEGER,
		entry_id VARCHAR,
		source_key VARCHAR
	)`,
	`CREATE OR REPLACE TABLE legend_entries (
		layer VARCHAR,
		legend_id VARCHAR,
		source_key VARCHAR,
		seq INTEGER,
		entry_id VARCHAR,
		kind VARCHAR,
		label_json VARCHAR,
		fill VARCHAR,
		stroke VARCHAR,
		stop_count INTEGER
	)`,
}

// Load replaces the mirror tables with the current grid and catalog.
// Source keys and entry ids in cell_refs and legend_entries are lower-cased
// so they join the way the catalog resolves them.
func Load(ctx context.Context, conn *sql.DB, cells *grid.Dataset, catalog *legend.Catalog) error {
	tx, err := conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin load: %w", err)
	}
	defer tx.Rollback()

	for _, stmt := range schema {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("create tables: %w", err)
		}
	}
	if err := loadCells(ctx, tx, cells); err != nil {
		return err
	}
	if err := loadEntries(ctx, tx, catalog); err != nil {
		return err
	}
	return tx.Commit()
}

func loadCells(ctx context.Context, tx *sql.Tx, cells *grid.Dataset) error {
	cellStmt, err := tx.PrepareContext(ctx, `INSERT INTO grid_cells VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare grid_cells: %w", err)
	}
	defer cellStmt.Close()
	refStmt, err := tx.PrepareContext(ctx, `INSERT INTO cell_refs VALUES (?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare cell_refs: %w", err)
	}
	defer refStmt.Close()

	for _, f := range cells.Features() {
		b := f.Geometry.Bound()
		if _, err := cellStmt.ExecContext(ctx, f.ID, f.Legends, f.SourceMaps,
			b.Min.Lon(), b.Min.Lat(), b.Max.Lon(), b.Max.Lat(), wkt.MarshalString(f.Geometry)); err != nil {
			return fmt.Errorf("insert cell %s: %w", f.ID, err)
		}
		refs, ok := legend.Pair(f.Legends, f.SourceMaps)
		if !ok {
			continue
		}
		for i, r := range refs {
			if _, err := refStmt.ExecContext(ctx, f.ID, i, strings.ToLower(r.Entry), strings.ToLower(r.Source)); err != nil {
				return fmt.Errorf("insert refs of %s: %w", f.ID, err)
			}
		}
	}
	return nil
}

func loadEntries(ctx context.Context, tx *sql.Tx, catalog *legend.Catalog) error {
	stmt, err := tx.PrepareContext(ctx, `INSERT INTO legend_entries VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare legend_entries: %w", err)
	}
	defer stmt.Close()

	for _, ll := range catalog.Layers() {
		for _, l := range ll.Legends {
			for i, e := range l.Entries {
				rec := legend.RecordOf(e)
				label, err := json.Marshal(rec.Label)
				if err != nil {
					return err
				}
				if _, err := stmt.ExecContext(ctx, ll.Layer, l.ID, strings.ToLower(l.Source), i, strings.ToLower(rec.ID), rec.Type,
					string(label), rec.Fill, rec.Stroke, len(rec.Stops)); err != nil {
					return fmt.Errorf("insert entry %s/%s: %w", l.ID, rec.ID, err)
				}
			}
		}
	}
	return nil
}

// Tables lists the tables in the database.
func Tables(ctx context.Context, conn *sql.DB) ([]string, error) {
	rows, err := conn.QueryContext(ctx, "SHOW TABLES")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	tables := []string{}
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		tables = append(tables, name)
	}
	return tables, rows.Err()
}

// Result is a generic query result.
type Result struct {
	Columns []string
	Rows    []map[string]any
}

// Query runs an arbitrary query and collects every row.
func Query(ctx context.Context, conn *sql.DB, query string, args ...any) (Result, error) {
	rows, err := conn.QueryContext(ctx, query, args...)
	if err != nil {
		return Result{}, err
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return Result{}, err
	}
	res := Result{Columns: columns, Rows: []map[string]any{}}
	for rows.Next() {
		values := make([]any, len(columns))
		ptrs := make([]any, len(columns))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return Result{}, err
		}
		row := make(map[string]any, len(columns))
		for i, col := range columns {
			row[col] = values[i]
		}
		res.Rows = append(res.Rows, row)
	}
	return res, rows.Err()
}

// UnresolvedRefs returns cell references with no matching catalog entry,
// as "cell_id: source/entry".
func UnresolvedRefs(ctx context.Context, conn *sql.DB) ([]string, error) {
	res, err := Query(ctx, conn, `
		SELECT r.cell_id || ': ' || r.source_key || '/' || r.entry_id AS ref
		FROM cell_refs r
		LEFT JOIN legend_entries e ON e.source_key = r.source_key AND e.entry_id = r.entry_id
		WHERE e.entry_id IS NULL
		ORDER BY r.cell_id, r.seq`)
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(res.Rows))
	for _, row := range res.Rows {
		out = append(out, fmt.Sprint(row["ref"]))
	}
	return out, nil
}
