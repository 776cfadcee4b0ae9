// Package viewer contains the Datastar SSE handlers that drive the map
// viewer page.
//
// Each browser session owns a view controller. Action handlers run one
// transition, patch the affected panel and signals on their own response,
// and publish the resulting surface commands on the event bus. The
// session's events stream forwards those commands to the Leaflet shim as
// map-command custom events.
package viewer

import (
	"errors"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"go.uber.org/zap"

	"github.com/joeblew999/cultivar-map/internal/api"
	"github.com/joeblew999/cultivar-map/internal/humastar"
	"github.com/joeblew999/cultivar-map/internal/metrics"
	"github.com/joeblew999/cultivar-map/internal/service"
	"github.com/joeblew999/cultivar-map/internal/session"
	"github.com/joeblew999/cultivar-map/internal/templates"
	"github.com/joeblew999/cultivar-map/internal/view"
)

// Handler serves the viewer page and its SSE endpoints.
type Handler struct {
	humastar.Handler
	svc      *api.Services
	sessions *session.Manager
	bus      *service.EventBus
	logger   *zap.Logger
}

// New creates the viewer handler.
func New(svc *api.Services, sessions *session.Manager, bus *service.EventBus, renderer *templates.Renderer, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		Handler:  humastar.Handler{Renderer: renderer},
		svc:      svc,
		sessions: sessions,
		bus:      bus,
		logger:   logger,
	}
}

func (h *Handler) RegisterRoutes(api huma.API) {
	tags := huma.OperationTags("viewer")
	huma.Get(api, "/api/v1/viewer/panels", h.Panels, tags)
	huma.Post(api, "/api/v1/viewer/panels/{side}", h.OpenPanel, tags)
	huma.Delete(api, "/api/v1/viewer/panels/{side}", h.ClosePanel, tags)
	huma.Post(api, "/api/v1/viewer/base", h.SelectBase, tags)
	huma.Post(api, "/api/v1/viewer/opacity", h.SetOpacity, tags)
	huma.Post(api, "/api/v1/viewer/overlays/{id}", h.ToggleOverlay, tags)
	huma.Post(api, "/api/v1/viewer/underlays/{id}", h.ToggleUnderlay, tags)
	huma.Post(api, "/api/v1/viewer/grid", h.ToggleGrid, tags)
	huma.Post(api, "/api/v1/viewer/grid/click", h.ClickGrid, tags)
	huma.Get(api, "/api/v1/viewer/events", h.Events, tags)
}

// stream runs fn with the caller's session, creating one (and its cookie)
// when the cookie is missing or stale.
func (h *Handler) stream(id string, fn func(sse humastar.SSE, s *session.Session)) *huma.StreamResponse {
	var s *session.Session
	return h.Stream(
		func(ctx huma.Context) {
			s = h.session(id, ctx.Header("Accept-Language"), func(c *http.Cookie) {
				ctx.AppendHeader("Set-Cookie", c.String())
			})
		},
		func(sse humastar.SSE) { fn(sse, s) },
	)
}

func (h *Handler) session(id, acceptLanguage string, setCookie func(*http.Cookie)) *session.Session {
	s, created := h.sessions.GetOrCreate(id, h.svc.Langs.Match("", acceptLanguage))
	if created {
		metrics.SessionsActive.Set(float64(h.sessions.Len()))
		h.logger.Debug("session_created", zap.String("session", s.ID))
		setCookie(session.Cookie(s.ID))
	}
	return s
}

// apply runs one transition, publishes its surface commands and sends the
// resulting state signals. A failed transition sends the error signal.
func (h *Handler) apply(sse humastar.SSE, s *session.Session, op, id string, fn func(c *view.Controller) error) (view.State, bool) {
	cmds, st, err := s.Do(fn)
	metrics.Transition(op, err)
	if err != nil {
		h.logger.Debug("view_transition_failed",
			zap.String("session", s.ID), zap.String("op", op), zap.String("id", id), zap.Error(err))
		sse.Error(errorMessage(err), stateSignals(st))
		return st, false
	}
	h.publish(s, op, id, cmds)
	sse.Signals(stateSignals(st))
	return st, true
}

func (h *Handler) publish(s *session.Session, op, id string, cmds []view.Command) {
	if len(cmds) == 0 {
		return
	}
	if dropped := h.bus.Publish(service.Event{Session: s.ID, Op: op, Layer: id, Commands: cmds}); dropped > 0 {
		h.logger.Warn("map_commands_dropped",
			zap.String("session", s.ID), zap.String("op", op), zap.Int("streams", dropped))
	}
}

// stateSignals mirrors the view state into the page's Datastar signals.
func stateSignals(st view.State) map[string]any {
	return map[string]any{
		"base":      st.Base,
		"opacity":   st.Opacity,
		"grid":      st.Grid,
		"cell":      st.Cell,
		"leftOpen":  st.Left.Open,
		"leftTab":   st.Left.Tab,
		"rightOpen": st.Right.Open,
		"error":     "",
	}
}

func errorMessage(err error) string {
	switch {
	case errors.Is(err, view.ErrUnknownLayer):
		return "Unknown layer"
	case errors.Is(err, view.ErrOpacityRange):
		return "Opacity must be between 0 and 100%"
	default:
		return err.Error()
	}
}
