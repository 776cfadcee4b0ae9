package legend

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/joeblew999/cultivar-map/internal/i18n"
)

// Legend is a named, ordered set of entries. Source is the key grid
// features use to reference it; it defaults to the owning layer id.
type Legend struct {
	ID      string
	Source  string
	Title   i18n.Text
	Entries []Entry
}

// LegendRecord is the wire form of a Legend.
type LegendRecord struct {
	ID      string    `json:"legend_id" yaml:"legend_id" msgpack:"legend_id" doc:"Legend identifier" example:"habitats"`
	Source  string    `json:"source,omitempty" yaml:"source,omitempty" msgpack:"source,omitempty" doc:"Source-layer key referenced by grid features"`
	Title   i18n.Text `json:"legend_title" yaml:"legend_title" msgpack:"legend_title" doc:"Localized legend title"`
	Entries []Record  `json:"entries" yaml:"entries" msgpack:"entries" doc:"Ordered legend entries"`
}

// Record converts the legend to wire form.
func (l Legend) Record() LegendRecord {
	return LegendRecord{ID: l.ID, Source: l.Source, Title: l.Title, Entries: Records(l.Entries)}
}

// MarshalJSON encodes the legend in its wire form.
func (l Legend) MarshalJSON() ([]byte, error) {
	return json.Marshal(l.Record())
}

// UnmarshalJSON decodes the wire form, typing each entry by its kind.
func (l *Legend) UnmarshalJSON(data []byte) error {
	var rec LegendRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return err
	}
	l.ID = rec.ID
	l.Source = rec.Source
	l.Title = rec.Title
	l.Entries = make([]Entry, 0, len(rec.Entries))
	for _, r := range rec.Entries {
		l.Entries = append(l.Entries, r.Entry())
	}
	return nil
}

// LayerLegends is the set of legends owned by one layer.
type LayerLegends struct {
	Layer   string   `json:"layer"`
	Legends []Legend `json:"legends"`
}

// Catalog maps layers and source keys to their legends. It is read-only
// after construction and safe for concurrent use.
type Catalog struct {
	layers   []LayerLegends
	byLayer  map[string][]Legend
	bySource map[string][]Legend
	owner    map[string]string
}

// NewCatalog indexes layers. When two layers claim the same source key the
// first one owns it.
func NewCatalog(layers []LayerLegends) *Catalog {
	c := &Catalog{
		layers:   layers,
		byLayer:  make(map[string][]Legend, len(layers)),
		bySource: make(map[string][]Legend),
		owner:    make(map[string]string),
	}
	for li := range layers {
		ll := &layers[li]
		for i := range ll.Legends {
			lg := &ll.Legends[i]
			if lg.Source == "" {
				lg.Source = ll.Layer
			}
			key := normalize(lg.Source)
			c.bySource[key] = append(c.bySource[key], *lg)
			if _, ok := c.owner[key]; !ok {
				c.owner[key] = ll.Layer
			}
		}
		c.byLayer[ll.Layer] = append(c.byLayer[ll.Layer], ll.Legends...)
	}
	return c
}

// LoadCatalog decodes a legends.json document: an ordered array of
// {layer, legends} objects.
func LoadCatalog(r io.Reader) (*Catalog, error) {
	var layers []LayerLegends
	if err := json.NewDecoder(r).Decode(&layers); err != nil {
		return nil, fmt.Errorf("decode legend catalog: %w", err)
	}
	return NewCatalog(layers), nil
}

// LoadCatalogFile reads a legend catalog from path.
func LoadCatalogFile(path string) (*Catalog, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open legend catalog: %w", err)
	}
	defer f.Close()
	return LoadCatalog(f)
}

// Layers returns the catalog in file order.
func (c *Catalog) Layers() []LayerLegends {
	return c.layers
}

// Lookup returns the legends referenced by a source key, in catalog order.
func (c *Catalog) Lookup(source string) []Legend {
	return c.bySource[normalize(source)]
}

// LookupEntry finds an entry by source key and entry id, ignoring case.
// A miss is normal: callers skip identifiers that do not resolve.
func (c *Catalog) LookupEntry(source, id string) (Entry, bool) {
	want := normalize(id)
	for _, lg := range c.bySource[normalize(source)] {
		for _, e := range lg.Entries {
			if normalize(e.EntryID()) == want {
				return e, true
			}
		}
	}
	return nil, false
}

// Owner returns the id of the layer owning a source key.
func (c *Catalog) Owner(source string) (string, bool) {
	layer, ok := c.owner[normalize(source)]
	return layer, ok
}

// ForLayer returns the legends owned by a layer.
func (c *Catalog) ForLayer(layer string) []Legend {
	return c.byLayer[layer]
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
