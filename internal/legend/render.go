package legend

import (
	"fmt"
	"hash/fnv"
	"math"
	"strings"
)

const (
	// BadRamp labels the placeholder row for a ramp missing stops or labels.
	BadRamp = "BAD RAMP"

	rampRowUnit   = 20.0
	rampBarInset  = 2.0
	nbsp          = "\u00a0"
	tickRowHeight = "1rem"
)

// Problem classifies placeholder rows.
type Problem string

const (
	ProblemNone        Problem = ""
	ProblemBadRamp     Problem = "bad_ramp"
	ProblemUnknownKind Problem = "unknown_kind"
)

// Row is one table row of a rendered legend.
type Row struct {
	Icon    Icon
	Label   string
	RowSpan int
	Height  string // CSS height of the first cell, "" for the default
	Problem Problem
}

// Icon is the iconography cell of a row: Swatch, LineSample or Gradient.
type Icon interface{ isIcon() }

// Swatch is an 8x8 rounded square on a 10x10 viewBox.
type Swatch struct {
	Fill   string
	Stroke string
}

// Stroke is one diagonal line of a LineSample.
type Stroke struct {
	Color string
	Width float64
}

// LineSample is a diagonal line on a 10x10 viewBox, strokes drawn in order.
type LineSample struct {
	Strokes []Stroke
}

// Rect is an SVG rectangle in viewBox units.
type Rect struct {
	X, Y, Width, Height float64
}

// GradientStop is a colour at an offset in percent.
type GradientStop struct {
	Offset float64
	Color  string
}

// Gradient is a vertical ramp bar on a 10 x ViewHeight viewBox, with an
// optional bordered highlight over part of the bar.
type Gradient struct {
	ID         string
	ViewHeight float64
	Stops      []GradientStop
	Bar        Rect
	Highlight  *Rect
}

func (Swatch) isIcon()     {}
func (LineSample) isIcon() {}
func (Gradient) isIcon()   {}

// Render turns one entry into rows for lang. It never fails: malformed
// ramps and unknown kinds become a single placeholder row.
func Render(e Entry, lang string) []Row {
	switch v := e.(type) {
	case Value:
		return []Row{{
			Icon:    Swatch{Fill: orNone(v.Fill), Stroke: orNone(v.Stroke)},
			Label:   v.Label.Resolve(lang),
			RowSpan: 1,
		}}
	case Line:
		return []Row{{
			Icon:    LineSample{Strokes: lineStrokes(v)},
			Label:   v.Label.Resolve(lang),
			RowSpan: 1,
		}}
	case Ramp:
		return renderRamp(v, lang)
	case Unknown:
		return []Row{unknownRow(v.Type)}
	default:
		return []Row{unknownRow("")}
	}
}

// RenderLegend renders every entry of a legend in order.
func RenderLegend(l Legend, lang string) []Row {
	return RenderEntries(l.Entries, lang)
}

// RenderEntries renders a list of entries in order.
func RenderEntries(entries []Entry, lang string) []Row {
	var rows []Row
	for _, e := range entries {
		rows = append(rows, Render(e, lang)...)
	}
	return rows
}

func unknownRow(kind string) Row {
	return Row{
		Label:   fmt.Sprintf("Unknown Legend Entry Type [%s]", kind),
		RowSpan: 1,
		Problem: ProblemUnknownKind,
	}
}

func badRampRow() Row {
	return Row{Label: BadRamp, RowSpan: 1, Problem: ProblemBadRamp}
}

func orNone(color string) string {
	if color == "" {
		return "none"
	}
	return color
}

// lineStrokes draws the stroke colour as a wider casing under the fill
// colour when both are set.
func lineStrokes(l Line) []Stroke {
	switch {
	case l.Stroke != "" && l.Fill != "":
		return []Stroke{{Color: l.Stroke, Width: 3}, {Color: l.Fill, Width: 2}}
	case l.Stroke != "":
		return []Stroke{{Color: l.Stroke, Width: 2}}
	default:
		return []Stroke{{Color: orNone(l.Fill), Width: 2}}
	}
}

// StopOffsets spaces n gradient stops evenly over [0,100] percent.
func StopOffsets(n int) []float64 {
	if n <= 0 {
		return nil
	}
	if n == 1 {
		return []float64{0}
	}
	interval := 100 / float64(n-1)
	offsets := make([]float64, n)
	for k := range offsets {
		offsets[k] = math.Min(100, float64(k)*interval)
	}
	return offsets
}

// HighlightRect places the [min,max] sub-range over bar. It returns nil
// unless 0 <= min <= max <= 1.
func HighlightRect(bar Rect, from, to *float64) *Rect {
	if from == nil || to == nil {
		return nil
	}
	lo, hi := *from, *to
	if lo < 0 || hi > 1 || lo > hi {
		return nil
	}
	return &Rect{
		X:      bar.X - 0.5,
		Y:      bar.Y + lo*bar.Height,
		Width:  bar.Width + 1,
		Height: (hi - lo) * bar.Height,
	}
}

func renderRamp(r Ramp, lang string) []Row {
	labels, ok := r.Labels.Resolve(lang)
	n := len(r.Stops)
	if n < 2 || !ok || len(labels) != n {
		return []Row{badRampRow()}
	}

	view := float64(n) * rampRowUnit
	bar := Rect{X: 1, Y: rampBarInset, Width: 8, Height: view - 2*rampBarInset}
	offsets := StopOffsets(n)
	stops := make([]GradientStop, n)
	for k, color := range r.Stops {
		stops[k] = GradientStop{Offset: offsets[k], Color: color}
	}

	rows := make([]Row, 0, n)
	rows = append(rows, Row{
		Icon: Gradient{
			ID:         gradientID(r.ID),
			ViewHeight: view,
			Stops:      stops,
			Bar:        bar,
			Highlight:  HighlightRect(bar, r.Min, r.Max),
		},
		Label:   tick(labels[0]),
		RowSpan: n,
		Height:  fmt.Sprintf("%drem", n),
	})
	for _, text := range labels[1:] {
		rows = append(rows, Row{Label: tick(text), RowSpan: 1, Height: tickRowHeight})
	}
	return rows
}

func tick(text string) string {
	if strings.TrimSpace(text) == "" {
		return nbsp
	}
	return text
}

// gradientID builds an SVG id from the entry id. The readable part is
// lossy, so a hash of the raw id keeps distinct entries apart.
func gradientID(entryID string) string {
	var b strings.Builder
	b.WriteString("ramp-")
	for _, r := range strings.ToLower(entryID) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '-' || r == '_' {
			b.WriteRune(r)
		} else {
			b.WriteRune('_')
		}
	}
	h := fnv.New32a()
	h.Write([]byte(entryID))
	fmt.Fprintf(&b, "-%08x", h.Sum32())
	return b.String()
}

// Scoped prefixes the gradient ids in rows with scope, so the same ramp can
// appear in more than one table of a page without duplicate DOM ids.
func Scoped(rows []Row, scope string) []Row {
	out := make([]Row, len(rows))
	for i, r := range rows {
		if g, ok := r.Icon.(Gradient); ok {
			g.ID = scope + "-" + g.ID
			r.Icon = g
		}
		out[i] = r
	}
	return out
}

// Problems counts placeholder rows by problem.
func Problems(rows []Row) map[Problem]int {
	out := map[Problem]int{}
	for _, r := range rows {
		if r.Problem != ProblemNone {
			out[r.Problem]++
		}
	}
	return out
}
