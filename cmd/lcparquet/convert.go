package main

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/basekick-labs/lcparquet/internal/config"
	"github.com/basekick-labs/lcparquet/internal/database"
	"github.com/basekick-labs/lcparquet/internal/inspect"
	"github.com/basekick-labs/lcparquet/internal/logger"
	"github.com/basekick-labs/lcparquet/internal/output"
	"github.com/basekick-labs/lcparquet/internal/pipeline"
	"github.com/basekick-labs/lcparquet/internal/shutdown"
	"github.com/basekick-labs/lcparquet/internal/snana"
	"github.com/basekick-labs/lcparquet/internal/storage"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// runConvert loads every HEAD/PHOT pair under cfg.Input, runs the pipeline
// and writes the result to cfg.Output. The summary line goes to stdout.
func runConvert(ctx context.Context, cfg *config.Config, coordinator *shutdown.Coordinator, stdout io.Writer) error {
	start := time.Now()
	runID := uuid.New().String()
	runLog := log.With().Str("run_id", runID).Logger()

	opts := storageOptions(cfg)

	inLoc, err := storage.ParseLocation(cfg.Input, true)
	if err != nil {
		return fmt.Errorf("input: %w", err)
	}
	outLoc, err := storage.ParseLocation(cfg.Output, false)
	if err != nil {
		return fmt.Errorf("output: %w", err)
	}

	in, err := storage.Open(ctx, inLoc, opts, false, logger.Get("storage"))
	if err != nil {
		return fmt.Errorf("failed to open input %s: %w", cfg.Input, err)
	}
	coordinator.Register("input-storage", in, shutdown.PriorityInput)

	loader := snana.NewLoader(in, cfg.Load.Workers, logger.Get("loader"))
	pairs, err := loader.Discover(ctx, inLoc.Path)
	if err != nil {
		return err
	}
	records, err := loader.Load(ctx, pairs)
	if err != nil {
		return err
	}

	table, report, err := pipeline.Run(records, pipelineOptions(cfg), logger.Get("pipeline"))
	if err != nil {
		return err
	}

	out, err := storage.Open(ctx, outLoc, opts, true, logger.Get("storage"))
	if err != nil {
		return fmt.Errorf("failed to open output %s: %w", cfg.Output, err)
	}
	coordinator.Register("output-storage", out, shutdown.PriorityOutput)
	if err := warnOverwrite(ctx, out, outLoc, runLog); err != nil {
		return err
	}

	writer := output.NewParquetWriter(&cfg.Parquet, logger.Get("output"))
	info := output.RunInfo{
		RunID:        runID,
		InputObjects: report.InputObjects,
		Filters:      filterNames(report, cfg.Filter.MinNobs),
	}
	size, err := writer.Write(ctx, out, outLoc.Path, table, info)
	if err != nil {
		return err
	}

	if cfg.Parquet.Verify {
		if err := verify(ctx, outLoc, table.Len(), coordinator); err != nil {
			return err
		}
	}

	fmt.Fprintf(stdout, "%s %d / %d\n", cfg.Output, report.OutputObjects, report.InputObjects)

	runLog.Info().
		Int("file_pairs", len(pairs)).
		Int("input_objects", report.InputObjects).
		Int("flat_rows", report.FlatRows).
		Dict("filters", filterDict(report)).
		Int("filtered_rows", report.FilteredRows).
		Int("grouped_objects", report.GroupedObjects).
		Int("output_objects", report.OutputObjects).
		Int("observations", report.Observations.Total).
		Int("nobs_min", report.Observations.Min).
		Float64("nobs_median", report.Observations.Median).
		Float64("nobs_mean", report.Observations.Mean).
		Int("nobs_max", report.Observations.Max).
		Int("size", size).
		Dur("duration", time.Since(start)).
		Msg("Conversion complete")

	return nil
}

// warnOverwrite logs when the output already exists. The write replaces it.
func warnOverwrite(ctx context.Context, out storage.Backend, loc storage.Location, logger zerolog.Logger) error {
	exists, err := out.Exists(ctx, loc.Path)
	if err != nil {
		return fmt.Errorf("failed to check output %s: %w", loc, err)
	}
	if exists {
		logger.Warn().Str("output", loc.String()).Msg("Overwriting existing output")
	}
	return nil
}

// verify reads a local output file back through DuckDB
func verify(ctx context.Context, loc storage.Location, want int, coordinator *shutdown.Coordinator) error {
	if loc.Scheme != "local" {
		log.Warn().Str("output", loc.String()).Msg("Skipping verification of remote output")
		return nil
	}

	db, err := database.New(ctx, &database.Config{}, logger.Get("duckdb"))
	if err != nil {
		return err
	}
	coordinator.Register("duckdb", db, shutdown.PriorityDatabase)

	summary, err := inspect.Verify(ctx, db, loc.String(), want)
	if err != nil {
		return err
	}
	log.Info().
		Str("path", summary.Path).
		Int64("rows", summary.Rows).
		Int64("observations", summary.Observations).
		Msg("Verified output")
	return nil
}

func storageOptions(cfg *config.Config) storage.Options {
	s := cfg.Storage
	return storage.Options{
		S3: storage.S3Config{
			Region:    s.S3Region,
			Endpoint:  s.S3Endpoint,
			AccessKey: s.S3AccessKey,
			SecretKey: s.S3SecretKey,
			UseSSL:    s.S3UseSSL,
			PathStyle: s.S3PathStyle,
		},
		Azure: storage.AzureBlobConfig{
			ConnectionString:   s.AzureConnectionString,
			AccountName:        s.AzureAccountName,
			AccountKey:         s.AzureAccountKey,
			SASToken:           s.AzureSASToken,
			Endpoint:           s.AzureEndpoint,
			UseManagedIdentity: s.AzureUseManagedIdentity,
		},
	}
}

func pipelineOptions(cfg *config.Config) pipeline.Options {
	return pipeline.Options{
		IDColumn:        cfg.Columns.ID,
		Band:            cfg.Filter.Band,
		BandColumn:      cfg.Columns.Band,
		PhotFlag:        cfg.Filter.PhotFlag,
		PhotFlagColumn:  cfg.Columns.PhotFlag,
		MinS2N:          cfg.Filter.MinS2N,
		FluxColumn:      cfg.Columns.Flux,
		FluxErrColumn:   cfg.Columns.FluxErr,
		MinObservations: cfg.Filter.MinNobs,
	}
}

// filterNames lists the applied filters for the file metadata
func filterNames(report *pipeline.Report, minNobs int) []string {
	names := make([]string, 0, len(report.Filters)+1)
	for _, f := range report.Filters {
		names = append(names, f.Name)
	}
	if minNobs > 0 {
		names = append(names, "nobs>="+strconv.Itoa(minNobs))
	}
	return names
}

// filterDict logs the rows surviving each filter
func filterDict(report *pipeline.Report) *zerolog.Event {
	d := zerolog.Dict()
	for _, f := range report.Filters {
		d.Int(f.Name, f.Rows)
	}
	return d
}
