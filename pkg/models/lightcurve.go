package models

import "fmt"

// LightCurve represents a single astronomical object as decoded from a
// HEAD/PHOT file pair. Meta holds one scalar per header column and Obs holds
// one typed slice per photometry column; every Obs slice has the same length.
//
// Scalar values are int64, float64, string or bool. Obs slices are []int64,
// []float64, []string or []bool.
type LightCurve struct {
	Meta      map[string]interface{} `json:"meta"`
	MetaNames []string               `json:"meta_names"` // header column order
	Obs       map[string]interface{} `json:"obs"`
	ObsNames  []string               `json:"obs_names"` // photometry column order
}

// Len returns the number of observations. It fails when the observation
// arrays do not all have the same length.
func (lc *LightCurve) Len() (int, error) {
	n := -1
	for _, name := range lc.ObsNames {
		col, ok := lc.Obs[name]
		if !ok {
			return 0, fmt.Errorf("observation column %s missing", name)
		}
		l, ok := ColumnLen(col)
		if !ok {
			return 0, fmt.Errorf("observation column %s: unsupported type %T", name, col)
		}
		if n == -1 {
			n = l
		} else if l != n {
			return 0, fmt.Errorf("observation column %s has %d values, want %d", name, l, n)
		}
	}
	if n == -1 {
		return 0, nil
	}
	return n, nil
}

// ColumnLen returns the length of a typed column slice
func ColumnLen(col interface{}) (int, bool) {
	switch c := col.(type) {
	case []int64:
		return len(c), true
	case []float64:
		return len(c), true
	case []string:
		return len(c), true
	case []bool:
		return len(c), true
	default:
		return 0, false
	}
}

// ColumnType returns a short type name for a typed column slice or scalar,
// "unknown" for anything else.
func ColumnType(v interface{}) string {
	switch v.(type) {
	case []int64, int64:
		return "int64"
	case []float64, float64:
		return "float64"
	case []string, string:
		return "string"
	case []bool, bool:
		return "bool"
	default:
		return "unknown"
	}
}
