package pipeline

import (
	"math"
	"testing"

	"github.com/basekick-labs/lcparquet/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func flatten(t *testing.T, records ...*models.LightCurve) *FlatTable {
	t.Helper()
	flat, err := Flatten(records, "SNID")
	require.NoError(t, err)
	return flat
}

func TestBandFilter(t *testing.T) {
	flat := flatten(t, curve(1, 0.1, point(1, "g"), point(2, "r"), point(3, "g")))

	out, stats, err := ApplyFilters(flat, BandFilter{Column: "BAND", Band: "g"})
	require.NoError(t, err)

	assert.Equal(t, []string{"g", "g"}, out.Obs["BAND"])
	assert.Equal(t, []float64{1, 3}, out.Obs["MJD"])
	assert.Equal(t, []int{0, 2}, out.Index)
	assert.Equal(t, []FilterStat{{Name: "band=g", Rows: 2}}, stats)
}

func TestBandFilter_NoMatchIsEmpty(t *testing.T) {
	flat := flatten(t, curve(1, 0.1, point(1, "g")))

	out, _, err := ApplyFilters(flat, BandFilter{Column: "BAND", Band: "Y"})
	require.NoError(t, err)
	assert.Equal(t, 0, out.Len())
}

func TestQualityFilter_Bitmask(t *testing.T) {
	tests := []struct {
		name string
		flag int64
		keep bool
	}{
		{"no flags", 0, false},
		{"detection", DetectionBit, true},
		{"detection with other bits", DetectionBit | 2 | 8, true},
		{"saturated only", SaturationBit, false},
		{"saturated detection", DetectionBit | SaturationBit, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := point(1, "g")
			p.flag = tt.flag
			flat := flatten(t, curve(1, 0.1, p))

			out, _, err := ApplyFilters(flat, QualityFilter{Column: "PHOTFLAG"})
			require.NoError(t, err)
			assert.Equal(t, tt.keep, out.Len() == 1)
		})
	}
}

func TestSNRFilter_ZeroErrorPolarity(t *testing.T) {
	points := []obs{
		{band: "g", flag: DetectionBit, flux: 5, fluxErr: 0, mjd: 1},  // +Inf
		{band: "g", flag: DetectionBit, flux: -5, fluxErr: 0, mjd: 2}, // -Inf
		{band: "g", flag: DetectionBit, flux: 0, fluxErr: 0, mjd: 3},  // NaN
		{band: "g", flag: DetectionBit, flux: 50, fluxErr: 10, mjd: 4},
		{band: "g", flag: DetectionBit, flux: 49, fluxErr: 10, mjd: 5},
	}
	flat := flatten(t, curve(1, 0.1, points...))

	out, _, err := ApplyFilters(flat, SNRFilter{Flux: "FLUXCAL", FluxErr: "FLUXCALERR", Min: 5})
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 4}, out.Obs["MJD"])

	// +Inf still passes an enormous finite threshold
	out, _, err = ApplyFilters(flat, SNRFilter{Flux: "FLUXCAL", FluxErr: "FLUXCALERR", Min: math.MaxFloat64})
	require.NoError(t, err)
	assert.Equal(t, []float64{1}, out.Obs["MJD"])
}

func TestSNRFilter_WidensIntegerFlux(t *testing.T) {
	lc := curve(1, 0.1, point(1, "g"), point(2, "g"))
	lc.Obs["FLUXCAL"] = []int64{30, 10}
	flat := flatten(t, lc)

	out, _, err := ApplyFilters(flat, SNRFilter{Flux: "FLUXCAL", FluxErr: "FLUXCALERR", Min: 20})
	require.NoError(t, err)
	assert.Equal(t, []float64{1}, out.Obs["MJD"])
}

func TestApplyFilters_Monotonic(t *testing.T) {
	var points []obs
	for i := 0; i < 20; i++ {
		p := obs{band: []string{"g", "r"}[i%2], flag: DetectionBit, flux: float64(i), fluxErr: 2, mjd: float64(i)}
		if i%3 == 0 {
			p.flag |= SaturationBit
		}
		points = append(points, p)
	}
	flat := flatten(t, curve(1, 0.1, points...), curve(2, 0.2, points[:7]...))

	filters := []Filter{
		BandFilter{Column: "BAND", Band: "g"},
		QualityFilter{Column: "PHOTFLAG"},
		SNRFilter{Flux: "FLUXCAL", FluxErr: "FLUXCALERR", Min: 3},
	}
	out, stats, err := ApplyFilters(flat, filters...)
	require.NoError(t, err)
	require.Len(t, stats, 3)

	prev := flat.Len()
	for _, s := range stats {
		assert.LessOrEqual(t, s.Rows, prev, s.Name)
		prev = s.Rows
	}
	assert.Equal(t, out.Len(), prev)

	// Every surviving row is present unchanged in the input
	for i := 0; i < out.Len(); i++ {
		row := out.Row(i)
		assert.Equal(t, "g", row["BAND"])
		assert.Zero(t, row["PHOTFLAG"].(int64)&SaturationBit)
		assert.GreaterOrEqual(t, row["FLUXCAL"].(float64)/row["FLUXCALERR"].(float64), 3.0)
	}
}

func TestApplyFilters_NoFilters(t *testing.T) {
	flat := flatten(t, curve(1, 0.1, point(1, "g")))

	out, stats, err := ApplyFilters(flat)
	require.NoError(t, err)
	assert.Same(t, flat, out)
	assert.Empty(t, stats)
}

func TestApplyFilters_EmptyInputPassesThrough(t *testing.T) {
	flat := flatten(t)

	out, stats, err := ApplyFilters(flat,
		BandFilter{Column: "BAND", Band: "g"},
		QualityFilter{Column: "PHOTFLAG"},
		SNRFilter{Flux: "FLUXCAL", FluxErr: "FLUXCALERR", Min: 5},
	)
	require.NoError(t, err)
	assert.Equal(t, 0, out.Len())
	assert.Equal(t, []FilterStat{{Name: "band=g"}, {Name: "photflag"}, {Name: "s2n>=5"}}, stats)
}

func TestApplyFilters_SchemaErrors(t *testing.T) {
	flat := flatten(t, curve(1, 0.1, point(1, "g")))

	_, _, err := ApplyFilters(flat, BandFilter{Column: "FILTER", Band: "g"})
	assert.ErrorIs(t, err, ErrMissingColumn)

	_, _, err = ApplyFilters(flat, QualityFilter{Column: "BAND"})
	assert.ErrorIs(t, err, ErrColumnType)

	_, _, err = ApplyFilters(flat, SNRFilter{Flux: "BAND", FluxErr: "FLUXCALERR", Min: 1})
	assert.ErrorIs(t, err, ErrColumnType)
}
