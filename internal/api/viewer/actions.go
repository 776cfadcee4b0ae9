package viewer

import (
	"context"
	"errors"

	"github.com/danielgtaylor/huma/v2"
	"github.com/paulmach/orb"

	"github.com/joeblew999/cultivar-map/internal/grid"
	"github.com/joeblew999/cultivar-map/internal/humastar"
	"github.com/joeblew999/cultivar-map/internal/session"
	"github.com/joeblew999/cultivar-map/internal/templates"
	"github.com/joeblew999/cultivar-map/internal/view"
)

// SelectBase switches the base layer to the bound "base" signal and
// re-renders the base layer's legends.
func (h *Handler) SelectBase(ctx context.Context, input *humastar.SessionSignalsInput) (*huma.StreamResponse, error) {
	signals, err := input.MustParse()
	if err != nil {
		return nil, err
	}
	id := signals.String("base")
	if id == "" {
		return nil, huma.Error400BadRequest("base is required")
	}
	if _, kind, ok := h.svc.Layers.Get(id); id != view.NoBase && (!ok || kind != view.KindBase) {
		return nil, huma.Error404NotFound("base layer not found")
	}

	return h.stream(input.Session, func(sse humastar.SSE, s *session.Session) {
		st, ok := h.apply(sse, s, "base", id, func(c *view.Controller) error {
			return c.SelectBaseLayer(id)
		})
		if !ok {
			return
		}
		var p templates.LayersPanel
		h.baseDetails(&p, st.Base, s.Lang())
		sse.Patch(h.Render("base-details", p), "#base-details")
	}), nil
}

// SetOpacity applies the bound "opacity" signal to the base layer.
func (h *Handler) SetOpacity(ctx context.Context, input *humastar.SessionSignalsInput) (*huma.StreamResponse, error) {
	signals, err := input.MustParse()
	if err != nil {
		return nil, err
	}
	value, ok := signals.Float("opacity")
	if !ok {
		return nil, huma.Error400BadRequest("opacity is required")
	}
	if value < 0 || value > 1 {
		return nil, huma.Error400BadRequest(view.ErrOpacityRange.Error())
	}

	return h.stream(input.Session, func(sse humastar.SSE, s *session.Session) {
		h.apply(sse, s, "opacity", "", func(c *view.Controller) error {
			return c.SetBaseLayerOpacity(value)
		})
	}), nil
}

type ToggleInput struct {
	Session string `cookie:"cultivar_session" doc:"Viewer session id"`
	ID      string `path:"id" doc:"Layer ID" example:"rio_frio"`
	Enabled bool   `query:"enabled" doc:"Attach (true) or detach (false) the layer"`
}

// ToggleOverlay attaches or detaches an overlay.
func (h *Handler) ToggleOverlay(ctx context.Context, input *ToggleInput) (*huma.StreamResponse, error) {
	return h.toggle(input, view.KindOverlay, "overlay", func(c *view.Controller) error {
		return c.ToggleOverlay(input.ID, input.Enabled)
	})
}

// ToggleUnderlay attaches or detaches an underlay.
func (h *Handler) ToggleUnderlay(ctx context.Context, input *ToggleInput) (*huma.StreamResponse, error) {
	return h.toggle(input, view.KindUnderlay, "underlay", func(c *view.Controller) error {
		return c.ToggleUnderlay(input.ID, input.Enabled)
	})
}

func (h *Handler) toggle(input *ToggleInput, kind view.Kind, op string, fn func(c *view.Controller) error) (*huma.StreamResponse, error) {
	if _, k, ok := h.svc.Layers.Get(input.ID); !ok || k != kind {
		return nil, huma.Error404NotFound(string(kind) + " layer not found")
	}
	return h.stream(input.Session, func(sse humastar.SSE, s *session.Session) {
		h.apply(sse, s, op, input.ID, fn)
	}), nil
}

type GridInput struct {
	Session string `cookie:"cultivar_session" doc:"Viewer session id"`
	Enabled bool   `query:"enabled" doc:"Show (true) or hide (false) the grid"`
}

// ToggleGrid shows or hides the grid layer. Hiding it closes the grid
// panel.
func (h *Handler) ToggleGrid(ctx context.Context, input *GridInput) (*huma.StreamResponse, error) {
	return h.stream(input.Session, func(sse humastar.SSE, s *session.Session) {
		h.apply(sse, s, "grid", view.GridLayerID, func(c *view.Controller) error {
			c.ToggleGrid(input.Enabled)
			return nil
		})
	}), nil
}

// ClickGrid shows the legend of a grid cell, given either the "cell"
// signal or the clicked "lat"/"lng" point. A cell picked by id is also
// brought into view.
func (h *Handler) ClickGrid(ctx context.Context, input *humastar.SessionSignalsInput) (*huma.StreamResponse, error) {
	signals, err := input.MustParse()
	if err != nil {
		return nil, err
	}

	var (
		cell grid.Feature
		fit  bool
	)
	lat, latOK := signals.Float("lat")
	lng, lngOK := signals.Float("lng")
	switch id := signals.String("cell"); {
	case latOK && lngOK:
		cell, err = h.svc.Grid.At(orb.Point{lng, lat})
	case id != "":
		cell, err = h.svc.Grid.Get(id)
		fit = true
	default:
		return nil, huma.Error400BadRequest("cell or lat/lng is required")
	}
	if errors.Is(err, grid.ErrNoFeature) {
		return nil, huma.Error404NotFound("no grid cell there")
	}
	if err != nil {
		return nil, huma.Error500InternalServerError("grid lookup failed", err)
	}

	return h.stream(input.Session, func(sse humastar.SSE, s *session.Session) {
		st, ok := h.apply(sse, s, "cell", cell.ID, func(c *view.Controller) error {
			c.ShowCell(cell.ID)
			if fit {
				c.FitBounds(cell.Geometry.Bound())
			}
			return nil
		})
		if !ok {
			return
		}
		sse.Patch(h.Render("grid-panel", h.gridPanel(st, s.Lang())), "#grid")
	}), nil
}
