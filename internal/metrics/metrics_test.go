package metrics

import (
	"errors"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTransition(t *testing.T) {
	before := testutil.ToFloat64(ViewTransitionsTotal.WithLabelValues("base", "error"))
	Transition("base", errors.New("unknown layer"))
	Transition("base", nil)
	assert.Equal(t, before+1, testutil.ToFloat64(ViewTransitionsTotal.WithLabelValues("base", "error")))
}

func TestPlaceholders(t *testing.T) {
	type problem string
	before := testutil.ToFloat64(PlaceholderRowsTotal.WithLabelValues("bad_ramp"))
	Placeholders(map[problem]int{"bad_ramp": 2})
	assert.Equal(t, before+2, testutil.ToFloat64(PlaceholderRowsTotal.WithLabelValues("bad_ramp")))
}

func TestHandler(t *testing.T) {
	ResolutionsTotal.WithLabelValues("ok").Inc()

	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	require.Equal(t, 200, rec.Code)
	assert.Contains(t, rec.Body.String(), `cultivar_legend_resolutions_total{outcome="ok"}`)
}
