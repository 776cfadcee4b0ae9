package grid

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const gridJSON = `{
  "type": "FeatureCollection",
  "features": [
    {
      "type": "Feature",
      "id": "cell-1",
      "properties": {"Legends": "forest,stock", "SourceMaps": "habitats,water_runoff_opportunities"},
      "geometry": {"type": "Polygon", "coordinates": [[[-74.2,10.7],[-74.1,10.7],[-74.1,10.8],[-74.2,10.8],[-74.2,10.7]]]}
    },
    {
      "type": "Feature",
      "properties": {"id": 7},
      "geometry": {"type": "Polygon", "coordinates": [[[-74.1,10.7],[-74.0,10.7],[-74.0,10.8],[-74.1,10.8],[-74.1,10.7]]]}
    },
    {
      "type": "Feature",
      "properties": {"Legends": "a"},
      "geometry": {"type": "MultiPolygon", "coordinates": [[[[-74.2,10.8],[-74.1,10.8],[-74.1,10.9],[-74.2,10.9],[-74.2,10.8]]]]}
    }
  ]
}`

func testDataset(t *testing.T) *Dataset {
	t.Helper()
	d, err := Load([]byte(gridJSON))
	require.NoError(t, err)
	return d
}

func TestLoad(t *testing.T) {
	d := testDataset(t)
	require.Equal(t, 3, d.Len())

	fs := d.Features()
	assert.Equal(t, "cell-1", fs[0].ID)
	assert.Equal(t, "forest,stock", fs[0].Legends)
	assert.Equal(t, "habitats,water_runoff_opportunities", fs[0].SourceMaps)
	assert.Equal(t, "7", fs[1].ID, "id taken from properties")
	assert.Empty(t, fs[1].Legends)
	assert.Equal(t, "2", fs[2].ID, "id falls back to index")
	assert.Equal(t, "a", fs[2].Legends)
	assert.Empty(t, fs[2].SourceMaps)
}

func TestLoadErrors(t *testing.T) {
	_, err := Load([]byte(`not json`))
	assert.Error(t, err)

	_, err = Load([]byte(`{"type":"FeatureCollection","features":[
	  {"type":"Feature","id":"a","properties":{},"geometry":{"type":"Point","coordinates":[0,0]}},
	  {"type":"Feature","id":"a","properties":{},"geometry":{"type":"Point","coordinates":[1,1]}}]}`))
	assert.ErrorContains(t, err, "duplicate")
}

func TestGet(t *testing.T) {
	d := testDataset(t)

	f, err := d.Get("cell-1")
	require.NoError(t, err)
	assert.Equal(t, "cell-1", f.ID)

	_, err = d.Get("cell-9")
	assert.True(t, errors.Is(err, ErrNoFeature))
}

func TestAt(t *testing.T) {
	d := testDataset(t)

	tests := []struct {
		name  string
		point orb.Point
		want  string
		found bool
	}{
		{"first cell", orb.Point{-74.15, 10.75}, "cell-1", true},
		{"second cell", orb.Point{-74.05, 10.72}, "7", true},
		{"multipolygon cell", orb.Point{-74.15, 10.85}, "2", true},
		{"outside", orb.Point{-73.0, 10.75}, "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, err := d.At(tt.point)
			if !tt.found {
				assert.ErrorIs(t, err, ErrNoFeature)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, f.ID)
		})
	}
}

func TestBound(t *testing.T) {
	d := testDataset(t)
	b := d.Bound()
	assert.InDelta(t, -74.2, b.Min.Lon(), 1e-9)
	assert.InDelta(t, 10.7, b.Min.Lat(), 1e-9)
	assert.InDelta(t, -74.0, b.Max.Lon(), 1e-9)
	assert.InDelta(t, 10.9, b.Max.Lat(), 1e-9)
}

func TestGeoJSONCarriesIDs(t *testing.T) {
	d := testDataset(t)
	data, err := d.GeoJSON()
	require.NoError(t, err)

	var doc struct {
		Features []struct {
			ID any `json:"id"`
		} `json:"features"`
	}
	require.NoError(t, json.Unmarshal(data, &doc))
	require.Len(t, doc.Features, 3)
	assert.Equal(t, "cell-1", doc.Features[0].ID)
	assert.Equal(t, "7", doc.Features[1].ID)
	assert.Equal(t, "2", doc.Features[2].ID)
}

func TestLoadDropsEmptyGeometry(t *testing.T) {
	d, err := Load([]byte(`{"type":"FeatureCollection","features":[
	  {"type":"Feature","id":"a","properties":{},"geometry":{"type":"Point","coordinates":[0,0]}},
	  {"type":"Feature","id":"b","properties":{},"geometry":null},
	  {"type":"Feature","properties":{},"geometry":{"type":"Point","coordinates":[1,1]}}]}`))
	require.NoError(t, err)
	assert.Equal(t, 2, d.Len())

	data, err := d.GeoJSON()
	require.NoError(t, err)
	var doc struct {
		Features []struct {
			ID any `json:"id"`
		} `json:"features"`
	}
	require.NoError(t, json.Unmarshal(data, &doc))
	require.Len(t, doc.Features, 2)
	for _, f := range doc.Features {
		id, ok := f.ID.(string)
		require.True(t, ok)
		_, err := d.Get(id)
		assert.NoError(t, err)
	}
	assert.Equal(t, "2", doc.Features[1].ID)
}
