// Package pipeline turns decoded light curves into the aggregated output table.
//
// The flow is strictly linear:
//
//	Flatten -> ApplyFilters -> Aggregate -> FilterMinObservations
//
// Each stage returns a new table and never mutates its input. Objects whose
// rows are all filtered out produce no group, so they never reach the output
// regardless of the observation-count threshold.
package pipeline

import (
	"fmt"
	"sort"

	"github.com/basekick-labs/lcparquet/pkg/models"
	"github.com/rs/zerolog"
	"gonum.org/v1/gonum/stat"
)

// Options is the immutable filter configuration of one run
type Options struct {
	IDColumn string

	Band       string // empty disables the band filter
	BandColumn string

	PhotFlag       bool
	PhotFlagColumn string

	MinS2N        *float64 // nil disables the signal-to-noise filter
	FluxColumn    string
	FluxErrColumn string

	MinObservations int // 0 disables the cardinality filter
}

// DefaultOptions returns options with SNANA column names and every filter disabled
func DefaultOptions() Options {
	return Options{
		IDColumn:       "SNID",
		BandColumn:     "BAND",
		PhotFlagColumn: "PHOTFLAG",
		FluxColumn:     "FLUXCAL",
		FluxErrColumn:  "FLUXCALERR",
	}
}

// Filters returns the enabled row filters
func (o Options) Filters() []Filter {
	var filters []Filter
	if o.Band != "" {
		filters = append(filters, BandFilter{Column: o.BandColumn, Band: o.Band})
	}
	if o.PhotFlag {
		filters = append(filters, QualityFilter{Column: o.PhotFlagColumn})
	}
	if o.MinS2N != nil {
		filters = append(filters, SNRFilter{Flux: o.FluxColumn, FluxErr: o.FluxErrColumn, Min: *o.MinS2N})
	}
	return filters
}

// ObservationSummary describes the per-object observation counts of the output
type ObservationSummary struct {
	Total  int
	Min    int
	Max    int
	Mean   float64
	Median float64
}

// Report counts what each stage kept
type Report struct {
	InputObjects   int
	FlatRows       int
	Filters        []FilterStat
	FilteredRows   int
	GroupedObjects int
	OutputObjects  int
	Observations   ObservationSummary
}

// Run executes the whole pipeline
func Run(records []*models.LightCurve, opts Options, logger zerolog.Logger) (*Table, *Report, error) {
	report := &Report{InputObjects: len(records)}

	flat, err := Flatten(records, opts.IDColumn)
	if err != nil {
		return nil, nil, fmt.Errorf("flatten: %w", err)
	}
	report.FlatRows = flat.Len()
	logger.Debug().
		Int("objects", len(records)).
		Int("rows", flat.Len()).
		Msg("Flattened light curves")

	filtered, stats, err := ApplyFilters(flat, opts.Filters()...)
	if err != nil {
		return nil, nil, err
	}
	report.Filters = stats
	report.FilteredRows = filtered.Len()
	for _, s := range stats {
		logger.Debug().Str("filter", s.Name).Int("rows", s.Rows).Msg("Applied row filter")
	}

	table := Aggregate(filtered)
	report.GroupedObjects = table.Len()

	table = FilterMinObservations(table, opts.MinObservations)
	report.OutputObjects = table.Len()
	report.Observations = summarize(table.NObs)

	logger.Debug().
		Int("grouped", report.GroupedObjects).
		Int("min_nobs", opts.MinObservations).
		Int("objects", report.OutputObjects).
		Msg("Aggregated light curves")

	return table, report, nil
}

// summarize computes the observation count distribution
func summarize(counts []int) ObservationSummary {
	if len(counts) == 0 {
		return ObservationSummary{}
	}

	x := make([]float64, len(counts))
	s := ObservationSummary{Min: counts[0], Max: counts[0]}
	for i, n := range counts {
		x[i] = float64(n)
		s.Total += n
		if n < s.Min {
			s.Min = n
		}
		if n > s.Max {
			s.Max = n
		}
	}
	sort.Float64s(x)
	s.Mean = stat.Mean(x, nil)
	s.Median = stat.Quantile(0.5, stat.LinInterp, x, nil)
	return s
}
