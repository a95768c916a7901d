package pipeline

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/basekick-labs/lcparquet/pkg/models"
)

// newColumn returns an empty typed column for a scalar or slice of the same type
func newColumn(like interface{}, capacity int) (interface{}, error) {
	switch like.(type) {
	case int64, []int64:
		return make([]int64, 0, capacity), nil
	case float64, []float64:
		return make([]float64, 0, capacity), nil
	case string, []string:
		return make([]string, 0, capacity), nil
	case bool, []bool:
		return make([]bool, 0, capacity), nil
	default:
		return nil, fmt.Errorf("%w: %T", ErrColumnType, like)
	}
}

// appendScalar appends a scalar to a typed column of the same type
func appendScalar(col, v interface{}) (interface{}, bool) {
	switch c := col.(type) {
	case []int64:
		x, ok := v.(int64)
		return append(c, x), ok
	case []float64:
		x, ok := v.(float64)
		return append(c, x), ok
	case []string:
		x, ok := v.(string)
		return append(c, x), ok
	case []bool:
		x, ok := v.(bool)
		return append(c, x), ok
	}
	return col, false
}

// appendColumn appends all values of src to dst; both must have the same type
func appendColumn(dst, src interface{}) (interface{}, bool) {
	switch d := dst.(type) {
	case []int64:
		s, ok := src.([]int64)
		return append(d, s...), ok
	case []float64:
		s, ok := src.([]float64)
		return append(d, s...), ok
	case []string:
		s, ok := src.([]string)
		return append(d, s...), ok
	case []bool:
		s, ok := src.([]bool)
		return append(d, s...), ok
	}
	return dst, false
}

// take gathers the given positions of a typed column into a new column
func take(col interface{}, idx []int) interface{} {
	switch c := col.(type) {
	case []int64:
		out := make([]int64, len(idx))
		for i, j := range idx {
			out[i] = c[j]
		}
		return out
	case []float64:
		out := make([]float64, len(idx))
		for i, j := range idx {
			out[i] = c[j]
		}
		return out
	case []string:
		out := make([]string, len(idx))
		for i, j := range idx {
			out[i] = c[j]
		}
		return out
	case []bool:
		out := make([]bool, len(idx))
		for i, j := range idx {
			out[i] = c[j]
		}
		return out
	}
	return nil
}

// valueAt returns position i of a typed column
func valueAt(col interface{}, i int) interface{} {
	switch c := col.(type) {
	case []int64:
		return c[i]
	case []float64:
		return c[i]
	case []string:
		return c[i]
	case []bool:
		return c[i]
	}
	return nil
}

// takeLists gathers one list per group from a typed column. The result is
// [][]int64, [][]float64, [][]string or [][]bool.
func takeLists(col interface{}, groups [][]int) interface{} {
	switch c := col.(type) {
	case []int64:
		out := make([][]int64, len(groups))
		for g, rows := range groups {
			out[g] = take(c, rows).([]int64)
		}
		return out
	case []float64:
		out := make([][]float64, len(groups))
		for g, rows := range groups {
			out[g] = take(c, rows).([]float64)
		}
		return out
	case []string:
		out := make([][]string, len(groups))
		for g, rows := range groups {
			out[g] = take(c, rows).([]string)
		}
		return out
	case []bool:
		out := make([][]bool, len(groups))
		for g, rows := range groups {
			out[g] = take(c, rows).([]bool)
		}
		return out
	}
	return nil
}

// coerceID converts a raw identifier to int64. Strings may carry the fixed
// width padding of FITS character columns.
func coerceID(v interface{}) (int64, bool) {
	switch x := v.(type) {
	case int64:
		return x, true
	case float64:
		// Bounds check required before conversion to int64
		if x != math.Trunc(x) || x >= math.MaxInt64 || x < math.MinInt64 {
			return 0, false
		}
		return int64(x), true
	case string:
		n, err := strconv.ParseInt(strings.TrimSpace(x), 10, 64)
		if err != nil {
			return 0, false
		}
		return n, true
	default:
		return 0, false
	}
}

// typeName is the type tag used in schema comparisons
func typeName(v interface{}) string {
	return models.ColumnType(v)
}
