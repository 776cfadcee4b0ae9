package service

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/joeblew999/cultivar-map/internal/view"
)

// Opacities applied when a descriptor leaves opacity unset.
const (
	DefaultOverlayOpacity  = 0.9
	DefaultUnderlayOpacity = 1.0
)

// ParseSite decodes site.yaml and fills defaults.
func ParseSite(data []byte) (*SiteConfig, error) {
	var site SiteConfig
	if err := yaml.Unmarshal(data, &site); err != nil {
		return nil, fmt.Errorf("decode site config: %w", err)
	}
	if len(site.Languages) == 0 {
		site.Languages = []string{"en"}
	}
	if site.DefaultLanguage == "" {
		site.DefaultLanguage = site.Languages[0]
	}
	for i := range site.Overlays {
		if site.Overlays[i].Opacity == 0 {
			site.Overlays[i].Opacity = DefaultOverlayOpacity
		}
	}
	for i := range site.Underlays {
		if site.Underlays[i].Opacity == 0 {
			site.Underlays[i].Opacity = DefaultUnderlayOpacity
		}
	}
	return &site, nil
}

// LoadSite reads and decodes site.yaml.
func LoadSite(path string) (*SiteConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read site config: %w", err)
	}
	return ParseSite(data)
}

type registered struct {
	desc LayerDescriptor
	kind view.Kind
}

// LayerService is the read-only layer registry. It is safe for concurrent
// use since nothing mutates it after construction.
type LayerService struct {
	site *SiteConfig
	byID map[string]registered
}

// NewLayerService indexes the site's layers. Layer ids must be unique
// across all three collections and must not collide with the reserved ids
// "none" and "grid".
func NewLayerService(site *SiteConfig) (*LayerService, error) {
	s := &LayerService{site: site, byID: make(map[string]registered)}
	add := func(kind view.Kind, ds []LayerDescriptor) error {
		for _, d := range ds {
			switch {
			case d.ID == "":
				return fmt.Errorf("%s layer with empty id", kind)
			case d.ID == view.NoBase || d.ID == view.GridLayerID:
				return fmt.Errorf("layer id %q is reserved", d.ID)
			case d.WMSName == "":
				return fmt.Errorf("layer %q has no wms_name", d.ID)
			}
			if _, dup := s.byID[d.ID]; dup {
				return fmt.Errorf("layer %q defined twice", d.ID)
			}
			s.byID[d.ID] = registered{desc: d, kind: kind}
		}
		return nil
	}
	if err := add(view.KindBase, site.Base); err != nil {
		return nil, err
	}
	if err := add(view.KindOverlay, site.Overlays); err != nil {
		return nil, err
	}
	if err := add(view.KindUnderlay, site.Underlays); err != nil {
		return nil, err
	}
	return s, nil
}

// Site returns the underlying configuration.
func (s *LayerService) Site() *SiteConfig {
	return s.site
}

// Get returns a layer by ID.
func (s *LayerService) Get(id string) (LayerDescriptor, view.Kind, bool) {
	r, ok := s.byID[id]
	return r.desc, r.kind, ok
}

// Base returns the base layer descriptors in display order.
func (s *LayerService) Base() []LayerDescriptor { return s.site.Base }

func (s *LayerService) Overlays() []LayerDescriptor { return s.site.Overlays }

func (s *LayerService) Underlays() []LayerDescriptor { return s.site.Underlays }

// Len returns the number of registered layers.
func (s *LayerService) Len() int {
	return len(s.byID)
}

// LayerTitle returns the localized short title of a layer.
func (s *LayerService) LayerTitle(layerID, lang string) (string, bool) {
	r, ok := s.byID[layerID]
	if !ok {
		return "", false
	}
	return r.desc.ShortTitle.Resolve(lang), true
}

// Attribution returns the localized attribution of a layer, or "" when it
// has none.
func (s *LayerService) Attribution(layerID, lang string) string {
	r, ok := s.byID[layerID]
	if !ok || len(r.desc.Attribution) == 0 {
		return ""
	}
	return r.desc.Attribution.Resolve(lang)
}

// ViewLayers converts the registry into the controller's layer set.
func (s *LayerService) ViewLayers() view.Layers {
	conv := func(kind view.Kind, ds []LayerDescriptor) []view.Layer {
		out := make([]view.Layer, len(ds))
		for i, d := range ds {
			out[i] = view.Layer{ID: d.ID, Kind: kind, WMSName: d.WMSName, Opacity: d.Opacity, DefaultOn: d.DefaultOn}
		}
		return out
	}
	return view.Layers{
		Base:      conv(view.KindBase, s.site.Base),
		Overlays:  conv(view.KindOverlay, s.site.Overlays),
		Underlays: conv(view.KindUnderlay, s.site.Underlays),
		Grid:      view.Layer{ID: view.GridLayerID, Kind: view.KindGrid, Opacity: 1, DefaultOn: s.site.Grid.DefaultOn},
	}
}
