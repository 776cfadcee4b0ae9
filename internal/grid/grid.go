// Package grid loads the grid-cell dataset and finds the cell under a
// clicked point.
//
// Each cell is a GeoJSON polygon with two parallel comma-separated
// properties: Legends (legend entry ids) and SourceMaps (source-layer
// keys). The pairing at index i means the cell exhibits entry i of source i.
package grid

import (
	"errors"
	"fmt"
	"os"
	"strconv"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/paulmach/orb/planar"
)

// Property names carrying a cell's legend references.
const (
	LegendsProperty    = "Legends"
	SourceMapsProperty = "SourceMaps"
)

// ErrNoFeature is returned when no cell matches an id or point.
var ErrNoFeature = errors.New("grid feature not found")

// Feature is one grid cell.
type Feature struct {
	ID         string
	Legends    string
	SourceMaps string
	Geometry   orb.Geometry
}

// Dataset is the read-only grid.
type Dataset struct {
	features []Feature
	byID     map[string]int
	bound    orb.Bound
	fc       *geojson.FeatureCollection
}

// Load decodes a GeoJSON FeatureCollection. Features without an id get
// their index as id; the id is written back so clients can echo it.
// Features without a geometry cannot be clicked and are dropped.
func Load(data []byte) (*Dataset, error) {
	fc, err := geojson.UnmarshalFeatureCollection(data)
	if err != nil {
		return nil, fmt.Errorf("decode grid: %w", err)
	}

	d := &Dataset{
		features: make([]Feature, 0, len(fc.Features)),
		byID:     make(map[string]int, len(fc.Features)),
		fc:       fc,
	}
	kept := make([]*geojson.Feature, 0, len(fc.Features))
	for i, gf := range fc.Features {
		if gf.Geometry == nil {
			continue
		}
		kept = append(kept, gf)
		id := featureID(gf, i)
		gf.ID = id
		if _, dup := d.byID[id]; dup {
			return nil, fmt.Errorf("decode grid: duplicate feature id %q", id)
		}
		d.byID[id] = len(d.features)
		d.features = append(d.features, Feature{
			ID:         id,
			Legends:    gf.Properties.MustString(LegendsProperty, ""),
			SourceMaps: gf.Properties.MustString(SourceMapsProperty, ""),
			Geometry:   gf.Geometry,
		})
		if len(d.features) == 1 {
			d.bound = gf.Geometry.Bound()
		} else {
			d.bound = d.bound.Union(gf.Geometry.Bound())
		}
	}
	fc.Features = kept
	return d, nil
}

// LoadFile reads a grid from path.
func LoadFile(path string) (*Dataset, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read grid: %w", err)
	}
	return Load(data)
}

func featureID(f *geojson.Feature, index int) string {
	switch v := f.ID.(type) {
	case string:
		if v != "" {
			return v
		}
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case int:
		return strconv.Itoa(v)
	}
	if v, ok := f.Properties["id"]; ok && v != nil {
		return fmt.Sprint(v)
	}
	return strconv.Itoa(index)
}

// Features returns all cells in file order.
func (d *Dataset) Features() []Feature {
	return d.features
}

// Len returns the number of cells.
func (d *Dataset) Len() int {
	return len(d.features)
}

// Get returns the cell with id.
func (d *Dataset) Get(id string) (Feature, error) {
	i, ok := d.byID[id]
	if !ok {
		return Feature{}, fmt.Errorf("cell %q: %w", id, ErrNoFeature)
	}
	return d.features[i], nil
}

// At returns the first cell containing p.
func (d *Dataset) At(p orb.Point) (Feature, error) {
	for _, f := range d.features {
		if !f.Geometry.Bound().Contains(p) {
			continue
		}
		if contains(f.Geometry, p) {
			return f, nil
		}
	}
	return Feature{}, fmt.Errorf("point %v: %w", p, ErrNoFeature)
}

func contains(g orb.Geometry, p orb.Point) bool {
	switch geom := g.(type) {
	case orb.Polygon:
		return planar.PolygonContains(geom, p)
	case orb.MultiPolygon:
		return planar.MultiPolygonContains(geom, p)
	case orb.Bound:
		return geom.Contains(p)
	default:
		return false
	}
}

// Bound is the extent of all cells, used to fit the map view.
func (d *Dataset) Bound() orb.Bound {
	return d.bound
}

// GeoJSON re-encodes the dataset with ids filled in.
func (d *Dataset) GeoJSON() ([]byte, error) {
	return d.fc.MarshalJSON()
}
