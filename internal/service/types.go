// Package service holds the static site configuration of the dashboard and
// the read-only layer registry built from it.
package service

import "github.com/joeblew999/cultivar-map/internal/i18n"

// SiteConfig is the content of site.yaml.
type SiteConfig struct {
	Languages       []string             `yaml:"languages" json:"languages" doc:"Supported two-letter language codes"`
	DefaultLanguage string               `yaml:"default_language" json:"defaultLanguage" doc:"Language used when negotiation fails"`
	Title           i18n.Text            `yaml:"title" json:"title" doc:"Page title"`
	Map             MapConfig            `yaml:"map" json:"map"`
	Base            []LayerDescriptor    `yaml:"base_layers" json:"baseLayers" doc:"Mutually exclusive base layers in display order"`
	Overlays        []LayerDescriptor    `yaml:"overlay_layers" json:"overlayLayers" doc:"Overlays stacked above the base layer"`
	Underlays       []LayerDescriptor    `yaml:"underlay_layers" json:"underlayLayers" doc:"Underlays stacked below the base layer"`
	Grid            GridConfig           `yaml:"grid" json:"grid"`
	Home            Panel                `yaml:"info_panel" json:"infoPanel" doc:"Home tab copy"`
	GridPanel       Panel                `yaml:"grid_panel" json:"gridPanel" doc:"Grid tab copy"`
	Labels          map[string]i18n.Text `yaml:"labels" json:"labels" doc:"UI labels keyed by name"`
}

// MapConfig positions the map and names the raster service.
type MapConfig struct {
	Center  [2]float64 `yaml:"center" json:"center" doc:"Initial [lat, lon]"`
	Zoom    int        `yaml:"zoom" json:"zoom" doc:"Initial zoom level"`
	WMSURL  string     `yaml:"wms_url" json:"wmsUrl" doc:"WMS endpoint the browser loads layers from"`
	MinZoom int        `yaml:"min_zoom" json:"minZoom"`
	MaxZoom int        `yaml:"max_zoom" json:"maxZoom"`
}

// LayerDescriptor describes one raster layer.
type LayerDescriptor struct {
	ID           string        `yaml:"id" json:"id" doc:"Layer identifier" example:"habitat_map"`
	WMSName      string        `yaml:"wms_name" json:"wmsName" doc:"Layer name on the WMS server"`
	ShortTitle   i18n.Text     `yaml:"short_title" json:"shortTitle" doc:"Localized display name"`
	Attribution  i18n.Text     `yaml:"attribution" json:"attribution,omitempty" doc:"Localized attribution"`
	InfoSections []InfoSection `yaml:"info_sections" json:"infoSections,omitempty" doc:"Explanatory text shown with the layer"`
	DefaultOn    bool          `yaml:"default_on" json:"defaultOn" doc:"Enabled when a session starts"`
	Opacity      float64       `yaml:"opacity" json:"opacity" doc:"Opacity for overlays and underlays"`
}

// InfoSection is a titled paragraph. Content is trusted HTML from the
// site configuration.
type InfoSection struct {
	Title   i18n.Text `yaml:"section_title" json:"sectionTitle,omitempty"`
	Content i18n.Text `yaml:"section_content" json:"sectionContent"`
}

// Panel is the copy of a side panel tab.
type Panel struct {
	Title      i18n.Text     `yaml:"title" json:"title"`
	Sections   []InfoSection `yaml:"info_sections" json:"infoSections"`
	ButtonText i18n.Text     `yaml:"button_text" json:"buttonText,omitempty"`
}

// GridConfig styles the grid polygon layer.
type GridConfig struct {
	Title     i18n.Text `yaml:"title" json:"title"`
	DefaultOn bool      `yaml:"default_on" json:"defaultOn"`
	Stroke    string    `yaml:"stroke" json:"stroke"`
	Weight    float64   `yaml:"weight" json:"weight"`
}

// Label returns the localized UI label name, or name itself when the site
// does not define it.
func (s *SiteConfig) Label(name, lang string) string {
	t, ok := s.Labels[name]
	if !ok {
		return name
	}
	return t.Resolve(lang)
}
