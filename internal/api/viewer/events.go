package viewer

import (
	"context"

	"github.com/danielgtaylor/huma/v2"
	"go.uber.org/zap"

	"github.com/joeblew999/cultivar-map/internal/humastar"
	"github.com/joeblew999/cultivar-map/internal/metrics"
	"github.com/joeblew999/cultivar-map/internal/session"
	"github.com/joeblew999/cultivar-map/internal/view"
)

// MapCommandEvent is the custom DOM event carrying surface commands to the
// Leaflet shim.
const MapCommandEvent = "map-command"

// Events streams the session's surface commands. On connect it replays the
// attached layers bottom to top, so a reloaded page or a reconnecting
// stream rebuilds the map from the server's state.
func (h *Handler) Events(ctx context.Context, input *humastar.SessionInput) (*huma.StreamResponse, error) {
	return h.stream(input.Session, func(sse humastar.SSE, s *session.Session) {
		events, cancel := h.bus.Subscribe(s.ID)
		defer cancel()
		metrics.EventStreams.Inc()
		defer metrics.EventStreams.Dec()

		st, replay := s.Snapshot()
		if st.Cell != "" {
			if cell, err := h.svc.Grid.Get(st.Cell); err == nil {
				replay = append(replay, view.Command{Op: view.OpFitBounds, Bounds: view.LatLngBounds(cell.Geometry.Bound())})
			}
		}
		if err := h.send(sse, replay, s.Lang()); err != nil {
			return
		}

		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-events:
				if !ok {
					return
				}
				if err := h.send(sse, ev.Commands, s.Lang()); err != nil {
					h.logger.Debug("event_stream_closed", zap.String("session", s.ID), zap.Error(err))
					return
				}
			}
		}
	}), nil
}

// send dispatches cmds as one map-command event, filling in layer
// attributions for lang.
func (h *Handler) send(sse humastar.SSE, cmds []view.Command, lang string) error {
	out := make([]view.Command, len(cmds))
	for i, c := range cmds {
		if c.Op == view.OpAttach && c.Kind != view.KindGrid {
			c.Attribution = h.svc.Layers.Attribution(c.Layer, lang)
		}
		out[i] = c
	}
	return sse.DispatchCustomEvent(MapCommandEvent, map[string]any{"commands": out})
}
