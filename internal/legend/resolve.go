package legend

import (
	"strings"

	"github.com/joeblew999/cultivar-map/internal/i18n"
)

// LayerNamer resolves a layer id to its localized short title.
type LayerNamer interface {
	LayerTitle(layerID, lang string) (string, bool)
}

// Group is the resolved legend for one source layer of a grid feature.
type Group struct {
	Source    string
	LayerName string
	Entries   []Entry
}

// GroupRecord is the wire form of a Group.
type GroupRecord struct {
	Source    string   `json:"source" yaml:"source" msgpack:"source" doc:"Source-layer key"`
	LayerName string   `json:"layerName" yaml:"layer_name" msgpack:"layerName" doc:"Localized name of the owning layer"`
	Entries   []Record `json:"entries" yaml:"entries" msgpack:"entries" doc:"Resolved entries in reference order"`
}

// Record converts the group to wire form.
func (g Group) Record() GroupRecord {
	return GroupRecord{Source: g.Source, LayerName: g.LayerName, Entries: Records(g.Entries)}
}

// Ref is one (entry, source) pair taken from a feature.
type Ref struct {
	Entry  string
	Source string
}

// Resolver turns a grid feature's parallel reference fields into display
// groups. It holds no mutable state.
type Resolver struct {
	catalog *Catalog
	names   LayerNamer
}

// NewResolver returns a resolver over catalog. names may be nil, in which
// case every group is titled i18n.Undefined.
func NewResolver(catalog *Catalog, names LayerNamer) *Resolver {
	return &Resolver{catalog: catalog, names: names}
}

// SplitRefs splits a comma-separated field into trimmed tokens. A blank
// field has no tokens.
func SplitRefs(field string) []string {
	if strings.TrimSpace(field) == "" {
		return nil
	}
	parts := strings.Split(field, ",")
	for i, p := range parts {
		parts[i] = strings.TrimSpace(p)
	}
	return parts
}

// Pair correlates the two fields by index. It returns false when the token
// counts differ.
func Pair(entries, sources string) ([]Ref, bool) {
	ids := SplitRefs(entries)
	srcs := SplitRefs(sources)
	if len(ids) != len(srcs) {
		return nil, false
	}
	refs := make([]Ref, len(ids))
	for i := range ids {
		refs[i] = Ref{Entry: ids[i], Source: srcs[i]}
	}
	return refs, true
}

type bucket struct {
	source string
	ids    []string
}

// group buckets refs by source, keeping first-seen bucket order and
// reference order inside each bucket. Sources match case-insensitively;
// a bucket keeps the first spelling seen.
func group(refs []Ref) []bucket {
	var buckets []bucket
	index := make(map[string]int)
	for _, r := range refs {
		key := normalize(r.Source)
		i, ok := index[key]
		if !ok {
			i = len(buckets)
			index[key] = i
			buckets = append(buckets, bucket{source: r.Source})
		}
		buckets[i].ids = append(buckets[i].ids, r.Entry)
	}
	return buckets
}

// Resolve groups a feature's references by source layer and resolves each
// entry id. Mismatched fields yield no groups; ids that do not resolve are
// dropped from their group.
func (r *Resolver) Resolve(entries, sources, lang string) []Group {
	refs, ok := Pair(entries, sources)
	if !ok {
		return nil
	}
	buckets := group(refs)
	groups := make([]Group, 0, len(buckets))
	for _, b := range buckets {
		g := Group{Source: b.source, LayerName: r.layerName(b.source, lang)}
		for _, id := range b.ids {
			if e, ok := r.catalog.LookupEntry(b.source, id); ok {
				g.Entries = append(g.Entries, e)
			}
		}
		groups = append(groups, g)
	}
	return groups
}

// Unresolved lists the references that Resolve would drop, or reports a
// length mismatch between the two fields.
func (r *Resolver) Unresolved(entries, sources string) (missing []Ref, mismatch bool) {
	refs, ok := Pair(entries, sources)
	if !ok {
		return nil, true
	}
	for _, ref := range refs {
		if _, ok := r.catalog.LookupEntry(ref.Source, ref.Entry); !ok {
			missing = append(missing, ref)
		}
	}
	return missing, false
}

func (r *Resolver) layerName(source, lang string) string {
	if r.names == nil {
		return i18n.Undefined
	}
	layer, ok := r.catalog.Owner(source)
	if !ok {
		return i18n.Undefined
	}
	if name, ok := r.names.LayerTitle(layer, lang); ok {
		return name
	}
	return i18n.Undefined
}

// Count returns the number of entries across groups.
func Count(groups []Group) int {
	n := 0
	for _, g := range groups {
		n += len(g.Entries)
	}
	return n
}
