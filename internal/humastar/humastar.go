// Package humastar bridges Huma (REST/OpenAPI) with Datastar (SSE/hypermedia).
//
// It provides:
//   - SSE: Huma streaming → Datastar SSE protocol via [SSE] and [NewSSE]
//   - Signals: Datastar signal parsing via [Signals] and [ParseSignals]
//   - Sessions: cookie-carrying inputs via [SessionInput] and [SessionSignalsInput]
//   - Handler: Embeddable base for SSE handlers via [Handler]
package humastar

import (
	"bytes"
	"encoding/json"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humago"
	"github.com/starfederation/datastar-go/datastar"

	"github.com/joeblew999/cultivar-map/internal/templates"
)

// Handler is an embeddable base for Huma handlers that produce Datastar SSE
// responses.
type Handler struct {
	Renderer *templates.Renderer
}

// Stream returns a Huma StreamResponse that calls fn with a ready SSE helper.
// before, if not nil, runs first and may still set response headers.
func (h *Handler) Stream(before func(ctx huma.Context), fn func(sse SSE)) *huma.StreamResponse {
	return &huma.StreamResponse{
		Body: func(humaCtx huma.Context) {
			if before != nil {
				before(humaCtx)
			}
			fn(NewSSE(humaCtx))
		},
	}
}

// Render renders a named fragment. A failing template yields an HTML
// comment so the patch still lands.
func (h *Handler) Render(name string, data any) string {
	var buf bytes.Buffer
	if err := h.Renderer.RenderToBuffer(&buf, name, data); err != nil {
		return "<!-- " + name + ": render failed -->"
	}
	return buf.String()
}

// SSE wraps a Datastar SSE generator with shortcuts for the patterns the
// viewer uses.
type SSE struct {
	*datastar.ServerSentEventGenerator
}

// NewSSE creates a Datastar SSE helper from a Huma streaming context.
func NewSSE(ctx huma.Context) SSE {
	r, w := humago.Unwrap(ctx)
	return SSE{datastar.NewSSE(w, r)}
}

// Patch sends HTML to replace inner content at a CSS selector.
func (s SSE) Patch(html, selector string) {
	s.PatchElements(html,
		datastar.WithSelector(selector),
		datastar.WithModeInner(),
		datastar.WithViewTransitions(),
	)
}

// Error sends the error signal to the UI together with any other signals
// that must land in the same patch.
func (s SSE) Error(msg string, signals map[string]any) {
	out := make(map[string]any, len(signals)+1)
	for k, v := range signals {
		out[k] = v
	}
	out["error"] = msg
	s.MarshalAndPatchSignals(out)
}

// Signals sends arbitrary signals to the UI.
func (s SSE) Signals(signals map[string]any) {
	s.MarshalAndPatchSignals(signals)
}

// Signals is a flat view of the Datastar signals sent with a request.
type Signals map[string]any

// ParseSignals parses Datastar signals from a raw request body. An empty
// body has no signals.
func ParseSignals(body []byte) (Signals, error) {
	if len(bytes.TrimSpace(body)) == 0 {
		return Signals{}, nil
	}
	var signals Signals
	if err := json.Unmarshal(body, &signals); err != nil {
		return nil, err
	}
	return signals, nil
}

// String returns a string signal value, or empty string if not found.
func (s Signals) String(key string) string {
	if str, ok := s[key].(string); ok {
		return str
	}
	return ""
}

// Float returns a number signal, accepting numeric strings from range
// inputs. ok is false when the signal is absent or not a number.
func (s Signals) Float(key string) (v float64, ok bool) {
	switch n := s[key].(type) {
	case float64:
		return n, true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	case string:
		var f float64
		if err := json.Unmarshal([]byte(n), &f); err != nil {
			return 0, false
		}
		return f, true
	}
	return 0, false
}

// SessionInput identifies the viewer session of a GET request.
type SessionInput struct {
	Session string `cookie:"cultivar_session" doc:"Viewer session id"`
}

// SessionSignalsInput carries the viewer session and the posted signals.
type SessionSignalsInput struct {
	Session string `cookie:"cultivar_session" doc:"Viewer session id"`
	RawBody []byte
}

// MustParse parses signals or returns a Huma 400 error.
func (i *SessionSignalsInput) MustParse() (Signals, error) {
	signals, err := ParseSignals(i.RawBody)
	if err != nil {
		return nil, huma.Error400BadRequest("Invalid request data: " + err.Error())
	}
	return signals, nil
}
