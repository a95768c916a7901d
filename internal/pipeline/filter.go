package pipeline

import "fmt"

// SNANA PHOTFLAG bits
const (
	DetectionBit  int64 = 4096
	SaturationBit int64 = 1024
)

// RowPredicate reports whether a row of the table it was bound to survives
type RowPredicate func(row int) bool

// Filter is a row-level predicate. Bind resolves the columns it reads on a
// specific table; a missing or mistyped column is a schema error.
type Filter interface {
	Name() string
	Bind(t *FlatTable) (RowPredicate, error)
}

// FilterStat records how many rows survived a filter
type FilterStat struct {
	Name string
	Rows int
}

// ApplyFilters keeps the rows that pass every filter, preserving row order.
// Filters run one after another, which is equivalent to their conjunction.
// A table flattened from zero records has no columns to bind against and
// passes through every filter unchanged.
func ApplyFilters(t *FlatTable, filters ...Filter) (*FlatTable, []FilterStat, error) {
	stats := make([]FilterStat, 0, len(filters))
	for _, f := range filters {
		if t.Len() == 0 && len(t.Schema.Obs) == 0 {
			stats = append(stats, FilterStat{Name: f.Name()})
			continue
		}

		keep, err := f.Bind(t)
		if err != nil {
			return nil, nil, fmt.Errorf("filter %s: %w", f.Name(), err)
		}

		rows := make([]int, 0, t.Len())
		for i := 0; i < t.Len(); i++ {
			if keep(i) {
				rows = append(rows, i)
			}
		}
		if len(rows) != t.Len() {
			t = t.Select(rows)
		}
		stats = append(stats, FilterStat{Name: f.Name(), Rows: t.Len()})
	}
	return t, stats, nil
}

// BandFilter keeps rows whose band label equals Band exactly
type BandFilter struct {
	Column string
	Band   string
}

func (f BandFilter) Name() string { return "band=" + f.Band }

func (f BandFilter) Bind(t *FlatTable) (RowPredicate, error) {
	bands, err := stringColumn(t, f.Column)
	if err != nil {
		return nil, err
	}
	return func(row int) bool { return bands[row] == f.Band }, nil
}

// QualityFilter keeps detections that are not saturated:
// flag&DetectionBit != 0 and flag&SaturationBit == 0.
type QualityFilter struct {
	Column string
}

func (f QualityFilter) Name() string { return "photflag" }

func (f QualityFilter) Bind(t *FlatTable) (RowPredicate, error) {
	flags, err := intColumn(t, f.Column)
	if err != nil {
		return nil, err
	}
	return func(row int) bool {
		flag := flags[row]
		return flag&DetectionBit != 0 && flag&SaturationBit == 0
	}, nil
}

// SNRFilter keeps rows with Flux/FluxErr >= Min using IEEE-754 division.
// A zero error gives +Inf for positive flux (kept for any finite Min), -Inf
// for negative flux and NaN for zero flux (both dropped).
type SNRFilter struct {
	Flux    string
	FluxErr string
	Min     float64
}

func (f SNRFilter) Name() string { return fmt.Sprintf("s2n>=%g", f.Min) }

func (f SNRFilter) Bind(t *FlatTable) (RowPredicate, error) {
	flux, err := floatColumn(t, f.Flux)
	if err != nil {
		return nil, err
	}
	fluxErr, err := floatColumn(t, f.FluxErr)
	if err != nil {
		return nil, err
	}
	return func(row int) bool {
		return flux[row]/fluxErr[row] >= f.Min
	}, nil
}

func obsColumn(t *FlatTable, name string) (interface{}, error) {
	col, ok := t.Obs[name]
	if !ok {
		return nil, fmt.Errorf("%w: observation %s", ErrMissingColumn, name)
	}
	return col, nil
}

func stringColumn(t *FlatTable, name string) ([]string, error) {
	col, err := obsColumn(t, name)
	if err != nil {
		return nil, err
	}
	s, ok := col.([]string)
	if !ok {
		return nil, fmt.Errorf("%w: %s is %s, want string", ErrColumnType, name, typeName(col))
	}
	return s, nil
}

func intColumn(t *FlatTable, name string) ([]int64, error) {
	col, err := obsColumn(t, name)
	if err != nil {
		return nil, err
	}
	s, ok := col.([]int64)
	if !ok {
		return nil, fmt.Errorf("%w: %s is %s, want int64", ErrColumnType, name, typeName(col))
	}
	return s, nil
}

// floatColumn returns a float view of a numeric column, widening integers
func floatColumn(t *FlatTable, name string) ([]float64, error) {
	col, err := obsColumn(t, name)
	if err != nil {
		return nil, err
	}
	switch c := col.(type) {
	case []float64:
		return c, nil
	case []int64:
		out := make([]float64, len(c))
		for i, v := range c {
			out[i] = float64(v)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("%w: %s is %s, want numeric", ErrColumnType, name, typeName(col))
	}
}
