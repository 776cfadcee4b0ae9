package api

import (
	"context"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joeblew999/cultivar-map/internal/grid"
)

func TestCheck(t *testing.T) {
	want := []Issue{
		{Kind: "bad_ramp", Where: "water_risk/stock/broken", Detail: "en, es"},
		{Kind: IssueMismatch, Where: "c2", Detail: "2 legends, 1 source maps"},
		{Kind: IssueUnresolved, Where: "c3", Detail: "habitats/ghost"},
	}
	got := Check(testServices(t))
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Check() mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, "unresolved: c3 (habitats/ghost)", got[2].String())
}

func TestHandlerCellLegend(t *testing.T) {
	h := NewAPIHandler(testServices(t))

	body, err := h.CellLegend("c1", "es")
	require.NoError(t, err)
	assert.Equal(t, "c1", body.Cell)
	require.Len(t, body.Groups, 2)
	assert.Equal(t, "Mapa de hábitats", body.Groups[0].LayerName)
	assert.Empty(t, body.Unresolved)

	_, err = h.CellLegend("c9", "en")
	assert.ErrorIs(t, err, grid.ErrNoFeature)
}

func TestShippedDataIsClean(t *testing.T) {
	svc, err := Load(context.Background(), "../../data")
	require.NoError(t, err)
	assert.Empty(t, Check(svc))
	assert.Equal(t, 9, svc.Grid.Len())
}
