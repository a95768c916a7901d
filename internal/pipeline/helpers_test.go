package pipeline

import (
	"github.com/basekick-labs/lcparquet/pkg/models"
)

// obs is one observation in test fixtures
type obs struct {
	band    string
	flag    int64
	flux    float64
	fluxErr float64
	mjd     float64
}

// curve builds a SNANA-shaped light curve with SNID, a redshift and the given observations
func curve(snid int64, z float64, points ...obs) *models.LightCurve {
	lc := &models.LightCurve{
		Meta:      map[string]interface{}{"SNID": snid, "REDSHIFT": z},
		MetaNames: []string{"SNID", "REDSHIFT"},
		Obs:       map[string]interface{}{},
		ObsNames:  []string{"MJD", "BAND", "PHOTFLAG", "FLUXCAL", "FLUXCALERR"},
	}
	mjd := make([]float64, len(points))
	band := make([]string, len(points))
	flag := make([]int64, len(points))
	flux := make([]float64, len(points))
	fluxErr := make([]float64, len(points))
	for i, p := range points {
		mjd[i] = p.mjd
		band[i] = p.band
		flag[i] = p.flag
		flux[i] = p.flux
		fluxErr[i] = p.fluxErr
	}
	lc.Obs["MJD"] = mjd
	lc.Obs["BAND"] = band
	lc.Obs["PHOTFLAG"] = flag
	lc.Obs["FLUXCAL"] = flux
	lc.Obs["FLUXCALERR"] = fluxErr
	return lc
}

func point(mjd float64, band string) obs {
	return obs{band: band, flag: DetectionBit, flux: 10, fluxErr: 1, mjd: mjd}
}

func floatPtr(f float64) *float64 {
	return &f
}
