// Package view owns the active view state of one map instance: which base
// layer is selected, which overlays and underlays are on, whether the grid
// is shown, and which side panels are open. Every change goes through the
// Controller, which mirrors it onto a Surface.
package view

import (
	"errors"
	"fmt"
	"math"
	"slices"

	"github.com/paulmach/orb"
)

// NoBase is the base layer selection that shows no base layer.
const NoBase = "none"

// GridLayerID identifies the grid polygon layer on the surface.
const GridLayerID = "grid"

// DefaultOpacity is the base layer opacity of a fresh view.
const DefaultOpacity = 0.9

var (
	ErrUnknownLayer = errors.New("unknown layer")
	ErrOpacityRange = errors.New("opacity must be within [0, 1]")
)

// Side names a side panel.
type Side string

const (
	Left  Side = "left"
	Right Side = "right"
)

// Panel tabs.
const (
	TabHome   = "home"
	TabLayers = "layers"
	TabGrid   = "grid"
)

// Panel is the state of one side panel.
type Panel struct {
	Open bool   `json:"open"`
	Tab  string `json:"tab"`
}

// State is the active view state. Overlays and Underlays hold enabled ids
// in configured order.
type State struct {
	Base      string   `json:"base"`
	Opacity   float64  `json:"opacity"`
	Overlays  []string `json:"overlays"`
	Underlays []string `json:"underlays"`
	Grid      bool     `json:"grid"`
	Cell      string   `json:"cell,omitempty"`
	Left      Panel    `json:"left"`
	Right     Panel    `json:"right"`
}

// OverlayOn reports whether overlay id is enabled.
func (s State) OverlayOn(id string) bool { return slices.Contains(s.Overlays, id) }

// UnderlayOn reports whether underlay id is enabled.
func (s State) UnderlayOn(id string) bool { return slices.Contains(s.Underlays, id) }

// Layers is the configured layer set, each collection in display order.
type Layers struct {
	Base      []Layer
	Overlays  []Layer
	Underlays []Layer
	Grid      Layer
}

// Controller applies view transitions. It is not safe for concurrent use;
// callers serialize access per map instance.
type Controller struct {
	layers  Layers
	surface Surface
	state   State
}

// NewController returns a controller in the initial state: no base layer,
// nothing enabled, both panels closed.
func NewController(layers Layers, surface Surface) *Controller {
	if layers.Grid.ID == "" {
		layers.Grid.ID = GridLayerID
	}
	layers.Grid.Kind = KindGrid
	return &Controller{
		layers:  layers,
		surface: surface,
		state: State{
			Base:    NoBase,
			Opacity: DefaultOpacity,
			Left:    Panel{Tab: TabHome},
			Right:   Panel{Tab: TabGrid},
		},
	}
}

// Start applies the landing view: every layer flagged DefaultOn is
// enabled and the left panel opens on the home tab.
func (c *Controller) Start() {
	for _, l := range c.layers.Underlays {
		if l.DefaultOn {
			_ = c.ToggleUnderlay(l.ID, true)
		}
	}
	for _, l := range c.layers.Base {
		if l.DefaultOn {
			_ = c.SelectBaseLayer(l.ID)
			break
		}
	}
	for _, l := range c.layers.Overlays {
		if l.DefaultOn {
			_ = c.ToggleOverlay(l.ID, true)
		}
	}
	if c.layers.Grid.DefaultOn {
		c.ToggleGrid(true)
	}
	c.OpenPanel(Left, TabHome)
}

// State returns a copy of the current state.
func (c *Controller) State() State {
	s := c.state
	s.Overlays = slices.Clone(s.Overlays)
	s.Underlays = slices.Clone(s.Underlays)
	return s
}

// Layers returns the configured layer set.
func (c *Controller) Layers() Layers {
	return c.layers
}

// SelectBaseLayer makes id the only attached base layer, or detaches every
// base layer when id is NoBase. Enabled overlays are brought back to the
// front afterwards.
func (c *Controller) SelectBaseLayer(id string) error {
	if id == NoBase {
		for _, l := range c.layers.Base {
			c.surface.Detach(l.ID)
		}
		c.state.Base = NoBase
		return nil
	}

	l, ok := find(c.layers.Base, id)
	if !ok {
		return fmt.Errorf("base layer %q: %w", id, ErrUnknownLayer)
	}
	for _, other := range c.layers.Base {
		if other.ID != id {
			c.surface.Detach(other.ID)
		}
	}
	l.Opacity = c.state.Opacity
	c.surface.Attach(l)
	c.surface.SetOpacity(l.ID, c.state.Opacity)
	c.state.Base = id
	c.raiseOverlays()
	return nil
}

// SetBaseLayerOpacity changes the opacity of the active base layer. The
// value is kept for later selections even when no base layer is active.
func (c *Controller) SetBaseLayerOpacity(value float64) error {
	if math.IsNaN(value) || value < 0 || value > 1 {
		return fmt.Errorf("%v: %w", value, ErrOpacityRange)
	}
	c.state.Opacity = value
	if c.state.Base != NoBase {
		c.surface.SetOpacity(c.state.Base, value)
	}
	return nil
}

// ToggleOverlay attaches or detaches an overlay.
func (c *Controller) ToggleOverlay(id string, enabled bool) error {
	l, ok := find(c.layers.Overlays, id)
	if !ok {
		return fmt.Errorf("overlay %q: %w", id, ErrUnknownLayer)
	}
	if enabled {
		c.surface.Attach(l)
		c.surface.BringToFront(l.ID)
	} else {
		c.surface.Detach(l.ID)
	}
	c.state.Overlays = setEnabled(c.layers.Overlays, c.state.Overlays, id, enabled)
	return nil
}

// ToggleUnderlay attaches or detaches an underlay, then raises the active
// base layer and every enabled overlay above it.
func (c *Controller) ToggleUnderlay(id string, enabled bool) error {
	l, ok := find(c.layers.Underlays, id)
	if !ok {
		return fmt.Errorf("underlay %q: %w", id, ErrUnknownLayer)
	}
	if enabled {
		c.surface.Attach(l)
	} else {
		c.surface.Detach(l.ID)
	}
	c.state.Underlays = setEnabled(c.layers.Underlays, c.state.Underlays, id, enabled)
	if c.state.Base != NoBase {
		c.surface.BringToFront(c.state.Base)
	}
	c.raiseOverlays()
	return nil
}

// ToggleGrid shows or hides the grid layer. Hiding it closes the right
// panel.
func (c *Controller) ToggleGrid(enabled bool) {
	if enabled {
		c.surface.Attach(c.layers.Grid)
	} else {
		c.surface.Detach(c.layers.Grid.ID)
		c.state.Right.Open = false
	}
	c.state.Grid = enabled
}

// ShowCell records the clicked grid cell and opens the right panel on the
// grid tab.
func (c *Controller) ShowCell(id string) {
	c.state.Cell = id
	c.OpenPanel(Right, TabGrid)
}

// FitBounds moves the map to b.
func (c *Controller) FitBounds(b orb.Bound) {
	c.surface.FitBounds(b)
}

// OpenPanel opens a side panel on tab. An empty tab keeps the current one.
func (c *Controller) OpenPanel(side Side, tab string) {
	p := c.panel(side)
	if p == nil {
		return
	}
	p.Open = true
	if tab != "" {
		p.Tab = tab
	}
}

// ClosePanel closes a side panel.
func (c *Controller) ClosePanel(side Side) {
	if p := c.panel(side); p != nil {
		p.Open = false
	}
}

func (c *Controller) panel(side Side) *Panel {
	switch side {
	case Left:
		return &c.state.Left
	case Right:
		return &c.state.Right
	default:
		return nil
	}
}

func (c *Controller) raiseOverlays() {
	for _, id := range c.state.Overlays {
		c.surface.BringToFront(id)
	}
}

func find(layers []Layer, id string) (Layer, bool) {
	for _, l := range layers {
		if l.ID == id {
			return l, true
		}
	}
	return Layer{}, false
}

// setEnabled returns the enabled ids after the change, ordered as in
// configured.
func setEnabled(configured []Layer, enabled []string, id string, on bool) []string {
	out := make([]string, 0, len(enabled)+1)
	for _, l := range configured {
		if l.ID == id {
			if on {
				out = append(out, id)
			}
			continue
		}
		if slices.Contains(enabled, l.ID) {
			out = append(out, l.ID)
		}
	}
	return out
}
