// Package legend resolves grid-cell legend references against the legend
// catalog and turns legend entries into display rows.
//
// An [Entry] is one of [Value], [Line], [Ramp] or [Unknown]. Entries decode
// from the flat [Record] form used by legends.json; a record whose type is
// not recognised becomes an Unknown entry rather than a decode error.
package legend

import "github.com/joeblew999/cultivar-map/internal/i18n"

// Kind is the declared type of a legend entry.
type Kind string

const (
	KindValue Kind = "value"
	KindLine  Kind = "line"
	KindRamp  Kind = "ramp"
)

// Entry is one explainable symbol of a legend.
type Entry interface {
	EntryID() string
	Kind() Kind
	isEntry()
}

// Value is a filled and/or stroked swatch.
type Value struct {
	ID     string
	Label  i18n.Text
	Fill   string
	Stroke string
}

// Line is a line sample. With both colours set, Stroke is drawn as a wider
// casing underneath Fill.
type Line struct {
	ID     string
	Label  i18n.Text
	Fill   string
	Stroke string
}

// Ramp is a vertical gradient with one tick label per stop. Min and Max,
// when both set, mark a highlighted sub-range in [0,1].
type Ramp struct {
	ID     string
	Label  i18n.Text
	Stops  []string
	Labels i18n.Lines
	Min    *float64
	Max    *float64
}

// Unknown carries an entry whose type is not recognised.
type Unknown struct {
	ID    string
	Type  string
	Label i18n.Text
}

func (e Value) EntryID() string   { return e.ID }
func (e Line) EntryID() string    { return e.ID }
func (e Ramp) EntryID() string    { return e.ID }
func (e Unknown) EntryID() string { return e.ID }

func (Value) Kind() Kind     { return KindValue }
func (Line) Kind() Kind      { return KindLine }
func (Ramp) Kind() Kind      { return KindRamp }
func (e Unknown) Kind() Kind { return Kind(e.Type) }

func (Value) isEntry()   {}
func (Line) isEntry()    {}
func (Ramp) isEntry()    {}
func (Unknown) isEntry() {}

// Record is the flat wire form of an entry.
type Record struct {
	ID     string     `json:"entry_id" yaml:"entry_id" msgpack:"entry_id" doc:"Entry identifier" example:"forest"`
	Type   string     `json:"type" yaml:"type" msgpack:"type" doc:"Entry kind: value, line or ramp" example:"value"`
	Label  i18n.Text  `json:"label,omitempty" yaml:"label,omitempty" msgpack:"label,omitempty" doc:"Localized label"`
	Fill   string     `json:"fill,omitempty" yaml:"fill,omitempty" msgpack:"fill,omitempty" doc:"Fill colour (CSS)" example:"#2e7d32"`
	Stroke string     `json:"stroke,omitempty" yaml:"stroke,omitempty" msgpack:"stroke,omitempty" doc:"Stroke colour (CSS)"`
	Stops  []string   `json:"stops,omitempty" yaml:"stops,omitempty" msgpack:"stops,omitempty" doc:"Gradient stop colours, top to bottom"`
	Labels i18n.Lines `json:"labels,omitempty" yaml:"labels,omitempty" msgpack:"labels,omitempty" doc:"Localized tick labels, one per stop"`
	Min    *float64   `json:"min,omitempty" yaml:"min,omitempty" msgpack:"min,omitempty" minimum:"0" maximum:"1" doc:"Highlight range start"`
	Max    *float64   `json:"max,omitempty" yaml:"max,omitempty" msgpack:"max,omitempty" minimum:"0" maximum:"1" doc:"Highlight range end"`
}

// Entry converts the record to its typed variant.
func (r Record) Entry() Entry {
	switch Kind(r.Type) {
	case KindValue:
		return Value{ID: r.ID, Label: r.Label, Fill: r.Fill, Stroke: r.Stroke}
	case KindLine:
		return Line{ID: r.ID, Label: r.Label, Fill: r.Fill, Stroke: r.Stroke}
	case KindRamp:
		return Ramp{ID: r.ID, Label: r.Label, Stops: r.Stops, Labels: r.Labels, Min: r.Min, Max: r.Max}
	default:
		return Unknown{ID: r.ID, Type: r.Type, Label: r.Label}
	}
}

// RecordOf converts an entry back to its wire form.
func RecordOf(e Entry) Record {
	switch v := e.(type) {
	case Value:
		return Record{ID: v.ID, Type: string(KindValue), Label: v.Label, Fill: v.Fill, Stroke: v.Stroke}
	case Line:
		return Record{ID: v.ID, Type: string(KindLine), Label: v.Label, Fill: v.Fill, Stroke: v.Stroke}
	case Ramp:
		return Record{ID: v.ID, Type: string(KindRamp), Label: v.Label, Stops: v.Stops, Labels: v.Labels, Min: v.Min, Max: v.Max}
	case Unknown:
		return Record{ID: v.ID, Type: v.Type, Label: v.Label}
	default:
		return Record{}
	}
}

// Records converts a list of entries to wire form.
func Records(entries []Entry) []Record {
	out := make([]Record, 0, len(entries))
	for _, e := range entries {
		out = append(out, RecordOf(e))
	}
	return out
}
