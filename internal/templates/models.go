package templates

import (
	"html/template"

	"github.com/joeblew999/cultivar-map/internal/legend"
)

// Section is an info section with trusted HTML copy.
type Section struct {
	Title   template.HTML
	Content template.HTML
}

// LegendTable is a titled table of legend rows.
type LegendTable struct {
	Title string
	Rows  []legend.Row
}

// Option is a layer in a checkbox list or select.
type Option struct {
	ID    string
	Title string
	On    bool
}

// HomePanel is the left panel's home tab.
type HomePanel struct {
	Title    string
	Sections []Section
	Button   string
}

// LayersPanel is the left panel's layer tab.
type LayersPanel struct {
	Title           string
	GridTitle       string
	Grid            bool
	UnderlayHeading string
	Underlays       []Option
	OverlayHeading  string
	Overlays        []Option
	BaseHeading     string
	Base            []Option
	OpacityHeading  string
	Opacity         float64
	Legends         []LegendTable
	Sections        []Section
}

// GridGroup is one resolved source layer of a clicked cell.
type GridGroup struct {
	LayerName string
	Legend    LegendTable
}

// GridPanel is the right panel's grid tab.
type GridPanel struct {
	Title    string
	Sections []Section
	Cell     string
	Groups   []GridGroup
	Empty    string
}

// LangLink switches the page language.
type LangLink struct {
	Code   string
	Href   string
	Active bool
}

// Page is the full viewer document.
type Page struct {
	Title     string
	Lang      string
	Languages []LangLink
	Signals   string
	Init      string
	MapConfig string
	HomeTab   string
	LayersTab string
	GridTab   string
}
