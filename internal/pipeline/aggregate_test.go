package pipeline

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAggregate_PositionalAlignment(t *testing.T) {
	flat := flatten(t,
		curve(10, 0.1, point(1, "g"), point(2, "r"), point(3, "i")),
		curve(20, 0.2, point(4, "z"), point(5, "g")),
	)

	table := Aggregate(flat)
	require.Equal(t, 2, table.Len())

	assert.Equal(t, []int64{10, 20}, table.IDs)
	assert.Equal(t, []int{3, 2}, table.NObs)
	assert.Equal(t, []float64{0.1, 0.2}, table.Meta["REDSHIFT"])

	want := map[string]interface{}{
		"MJD":        [][]float64{{1, 2, 3}, {4, 5}},
		"BAND":       [][]string{{"g", "r", "i"}, {"z", "g"}},
		"PHOTFLAG":   [][]int64{{DetectionBit, DetectionBit, DetectionBit}, {DetectionBit, DetectionBit}},
		"FLUXCAL":    [][]float64{{10, 10, 10}, {10, 10}},
		"FLUXCALERR": [][]float64{{1, 1, 1}, {1, 1}},
	}
	if diff := cmp.Diff(want, table.Obs); diff != "" {
		t.Errorf("observation lists mismatch (-want +got):\n%s", diff)
	}
}

func TestAggregate_RestoresOriginalOrder(t *testing.T) {
	flat := flatten(t, curve(1, 0.1, point(1, "g"), point(2, "r"), point(3, "i"), point(4, "z")))

	// Reverse the row order; aggregation must sort back by original index
	rows := []int{3, 2, 1, 0}
	table := Aggregate(flat.Select(rows))

	assert.Equal(t, [][]float64{{1, 2, 3, 4}}, table.Obs["MJD"])
	assert.Equal(t, [][]string{{"g", "r", "i", "z"}}, table.Obs["BAND"])
}

func TestAggregate_FirstAppearanceOrder(t *testing.T) {
	flat := flatten(t,
		curve(300, 0.3, point(1, "g")),
		curve(100, 0.1, point(2, "g")),
		curve(200, 0.2, point(3, "g")),
	)

	table := Aggregate(flat)
	assert.Equal(t, []int64{300, 100, 200}, table.IDs)
	assert.Equal(t, []float64{0.3, 0.1, 0.2}, table.Meta["REDSHIFT"])
}

func TestAggregate_DropsObjectsWithoutRows(t *testing.T) {
	flat := flatten(t,
		curve(1, 0.1, point(1, "g")),
		curve(2, 0.2),
		curve(3, 0.3, point(2, "r")),
	)

	table := Aggregate(flat)
	assert.Equal(t, []int64{1, 3}, table.IDs)
	assert.Equal(t, []float64{0.1, 0.3}, table.Meta["REDSHIFT"])
}

func TestAggregate_Empty(t *testing.T) {
	flat := flatten(t, curve(1, 0.1))

	table := Aggregate(flat)
	assert.Equal(t, 0, table.Len())
	assert.Equal(t, [][]float64{}, table.Obs["MJD"])
	assert.Equal(t, []float64{}, table.Meta["REDSHIFT"])
}

func TestFilterMinObservations(t *testing.T) {
	flat := flatten(t,
		curve(1, 0.1, point(1, "g")),
		curve(2, 0.2, point(1, "g"), point(2, "g")),
		curve(3, 0.3, point(1, "g"), point(2, "g"), point(3, "g")),
	)
	table := Aggregate(flat)

	tests := []struct {
		min  int
		want []int64
	}{
		{0, []int64{1, 2, 3}},
		{-1, []int64{1, 2, 3}},
		{1, []int64{1, 2, 3}},
		{2, []int64{2, 3}},
		{3, []int64{3}},
		{4, []int64{}},
	}

	for _, tt := range tests {
		out := FilterMinObservations(table, tt.min)
		assert.Equal(t, tt.want, out.IDs, "min=%d", tt.min)
		for i, id := range out.IDs {
			assert.Len(t, out.Obs["MJD"].([][]float64)[i], int(id))
		}
	}
}
