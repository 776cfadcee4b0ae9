// Package metrics exposes Prometheus counters for the legend pipeline and
// the viewer.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	ResolutionsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "cultivar_legend_resolutions_total",
		Help: "Grid feature legend resolutions by outcome (ok, mismatch, empty)",
	}, []string{"outcome"})
	UnresolvedEntriesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "cultivar_legend_unresolved_entries_total",
		Help: "Legend entry references dropped because the catalog has no such entry",
	})
	PlaceholderRowsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "cultivar_legend_placeholder_rows_total",
		Help: "Rendered placeholder rows by problem",
	}, []string{"problem"})
	ViewTransitionsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "cultivar_view_transitions_total",
		Help: "Viewer state transitions by operation and result",
	}, []string{"op", "result"})
	SessionsActive = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "cultivar_sessions_active",
		Help: "Live viewer sessions",
	})
	EventStreams = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "cultivar_event_streams",
		Help: "Open viewer event streams",
	})
	HTTPDurationMs = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "cultivar_http_duration_ms",
		Help:    "HTTP request duration in milliseconds",
		Buckets: []float64{1, 5, 10, 20, 50, 100, 200, 500, 1000},
	}, []string{"method", "code"})
)

func init() {
	prometheus.MustRegister(ResolutionsTotal)
	prometheus.MustRegister(UnresolvedEntriesTotal)
	prometheus.MustRegister(PlaceholderRowsTotal)
	prometheus.MustRegister(ViewTransitionsTotal)
	prometheus.MustRegister(SessionsActive)
	prometheus.MustRegister(EventStreams)
	prometheus.MustRegister(HTTPDurationMs)
}

// Transition records one view transition.
func Transition(op string, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	ViewTransitionsTotal.WithLabelValues(op, result).Inc()
}

// Placeholders records placeholder row counts keyed by problem.
func Placeholders[P ~string](counts map[P]int) {
	for p, n := range counts {
		PlaceholderRowsTotal.WithLabelValues(string(p)).Add(float64(n))
	}
}

// Handler serves the registered metrics.
func Handler() http.Handler { return promhttp.Handler() }
