// Package output serializes aggregated light curves to Parquet.
package output

import (
	"bytes"
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/apache/arrow-go/v18/parquet"
	"github.com/apache/arrow-go/v18/parquet/compress"
	"github.com/apache/arrow-go/v18/parquet/pqarrow"
	"github.com/basekick-labs/lcparquet/internal/config"
	"github.com/basekick-labs/lcparquet/internal/pipeline"
	"github.com/basekick-labs/lcparquet/internal/storage"
	"github.com/rs/zerolog"
)

// Key-value metadata stored in the Parquet footer
const (
	MetaRunID        = "lcparquet.run_id"
	MetaInputObjects = "lcparquet.input_objects"
	MetaFilters      = "lcparquet.filters"
)

// sharedArrowAllocator is safe for concurrent use
var sharedArrowAllocator = memory.NewGoAllocator()

// RunInfo describes the run that produced a file
type RunInfo struct {
	RunID        string
	InputObjects int
	Filters      []string
}

// ParquetWriter turns a pipeline table into a single-row-group Parquet file
type ParquetWriter struct {
	compression     compress.Compression
	useDictionary   bool
	writeStatistics bool
	dataPageVersion string

	logger zerolog.Logger
}

// NewParquetWriter creates a writer from the parquet configuration
func NewParquetWriter(cfg *config.ParquetConfig, logger zerolog.Logger) *ParquetWriter {
	var comp compress.Compression
	switch cfg.Compression {
	case "gzip":
		comp = compress.Codecs.Gzip
	case "zstd":
		comp = compress.Codecs.Zstd
	case "none":
		comp = compress.Codecs.Uncompressed
	default:
		comp = compress.Codecs.Snappy
	}

	return &ParquetWriter{
		compression:     comp,
		useDictionary:   cfg.UseDictionary,
		writeStatistics: cfg.WriteStatistics,
		dataPageVersion: cfg.DataPageVersion,
		logger:          logger.With().Str("component", "parquet-writer").Logger(),
	}
}

// arrowType maps a column type tag to its Arrow type
func arrowType(typ string) (arrow.DataType, error) {
	switch typ {
	case "int64":
		return arrow.PrimitiveTypes.Int64, nil
	case "float64":
		return arrow.PrimitiveTypes.Float64, nil
	case "string":
		return arrow.BinaryTypes.String, nil
	case "bool":
		return arrow.FixedWidthTypes.Boolean, nil
	default:
		return nil, fmt.Errorf("unsupported column type %q", typ)
	}
}

// Schema returns the Arrow schema of t: the identifier, the metadata
// columns in header order and the observation columns as lists.
func Schema(t *pipeline.Table, info RunInfo) (*arrow.Schema, error) {
	s := t.Schema
	fields := make([]arrow.Field, 0, 1+len(s.Meta)+len(s.Obs))
	fields = append(fields, arrow.Field{Name: s.ID, Type: arrow.PrimitiveTypes.Int64})

	for _, name := range s.Meta {
		typ, err := arrowType(s.Types[name])
		if err != nil {
			return nil, fmt.Errorf("column %s: %w", name, err)
		}
		fields = append(fields, arrow.Field{Name: name, Type: typ})
	}
	for _, name := range s.Obs {
		typ, err := arrowType(s.Types[name])
		if err != nil {
			return nil, fmt.Errorf("column %s: %w", name, err)
		}
		fields = append(fields, arrow.Field{Name: name, Type: arrow.ListOf(typ)})
	}

	md := arrow.NewMetadata(
		[]string{MetaRunID, MetaInputObjects, MetaFilters},
		[]string{info.RunID, strconv.Itoa(info.InputObjects), strings.Join(info.Filters, ",")},
	)
	return arrow.NewSchema(fields, &md), nil
}

// Encode serializes t to Parquet bytes
func (w *ParquetWriter) Encode(t *pipeline.Table, info RunInfo) ([]byte, error) {
	schema, err := Schema(t, info)
	if err != nil {
		return nil, fmt.Errorf("failed to build schema: %w", err)
	}

	mem := sharedArrowAllocator
	arrays := make([]arrow.Array, 0, len(schema.Fields()))
	defer func() {
		for _, arr := range arrays {
			arr.Release()
		}
	}()

	ids := array.NewInt64Builder(mem)
	ids.AppendValues(t.IDs, nil)
	arrays = append(arrays, ids.NewArray())
	ids.Release()

	for _, name := range t.Schema.Meta {
		arr, err := scalarArray(mem, t.Meta[name])
		if err != nil {
			return nil, fmt.Errorf("column %s: %w", name, err)
		}
		arrays = append(arrays, arr)
	}
	for _, name := range t.Schema.Obs {
		arr, err := listArray(mem, t.Obs[name])
		if err != nil {
			return nil, fmt.Errorf("column %s: %w", name, err)
		}
		arrays = append(arrays, arr)
	}

	return w.writeRecordToParquet(schema, arrays)
}

// Write encodes t and stores it at path on backend. It returns the file size.
func (w *ParquetWriter) Write(ctx context.Context, backend storage.Backend, path string, t *pipeline.Table, info RunInfo) (int, error) {
	data, err := w.Encode(t, info)
	if err != nil {
		return 0, err
	}
	if err := backend.Write(ctx, path, data); err != nil {
		return 0, fmt.Errorf("failed to store %s: %w", path, err)
	}

	w.logger.Info().
		Str("storage", backend.Type()).
		Str("path", path).
		Int("objects", t.Len()).
		Int("size", len(data)).
		Msg("Wrote Parquet file")

	return len(data), nil
}

func scalarArray(mem memory.Allocator, col interface{}) (arrow.Array, error) {
	switch c := col.(type) {
	case []int64:
		b := array.NewInt64Builder(mem)
		defer b.Release()
		b.AppendValues(c, nil)
		return b.NewArray(), nil
	case []float64:
		b := array.NewFloat64Builder(mem)
		defer b.Release()
		b.AppendValues(c, nil)
		return b.NewArray(), nil
	case []string:
		b := array.NewStringBuilder(mem)
		defer b.Release()
		b.AppendValues(c, nil)
		return b.NewArray(), nil
	case []bool:
		b := array.NewBooleanBuilder(mem)
		defer b.Release()
		b.AppendValues(c, nil)
		return b.NewArray(), nil
	default:
		return nil, fmt.Errorf("unsupported scalar column %T", col)
	}
}

func listArray(mem memory.Allocator, col interface{}) (arrow.Array, error) {
	switch c := col.(type) {
	case [][]int64:
		b := array.NewListBuilder(mem, arrow.PrimitiveTypes.Int64)
		defer b.Release()
		vb := b.ValueBuilder().(*array.Int64Builder)
		for _, l := range c {
			b.Append(true)
			vb.AppendValues(l, nil)
		}
		return b.NewArray(), nil
	case [][]float64:
		b := array.NewListBuilder(mem, arrow.PrimitiveTypes.Float64)
		defer b.Release()
		vb := b.ValueBuilder().(*array.Float64Builder)
		for _, l := range c {
			b.Append(true)
			vb.AppendValues(l, nil)
		}
		return b.NewArray(), nil
	case [][]string:
		b := array.NewListBuilder(mem, arrow.BinaryTypes.String)
		defer b.Release()
		vb := b.ValueBuilder().(*array.StringBuilder)
		for _, l := range c {
			b.Append(true)
			vb.AppendValues(l, nil)
		}
		return b.NewArray(), nil
	case [][]bool:
		b := array.NewListBuilder(mem, arrow.FixedWidthTypes.Boolean)
		defer b.Release()
		vb := b.ValueBuilder().(*array.BooleanBuilder)
		for _, l := range c {
			b.Append(true)
			vb.AppendValues(l, nil)
		}
		return b.NewArray(), nil
	default:
		return nil, fmt.Errorf("unsupported list column %T", col)
	}
}

// writeRecordToParquet writes Arrow arrays to Parquet bytes
func (w *ParquetWriter) writeRecordToParquet(schema *arrow.Schema, arrays []arrow.Array) ([]byte, error) {
	record := array.NewRecord(schema, arrays, -1)
	defer record.Release()

	var buf bytes.Buffer

	writerOpts := []parquet.WriterProperty{
		parquet.WithCompression(w.compression),
		parquet.WithDictionaryDefault(w.useDictionary),
		parquet.WithStats(w.writeStatistics),
	}
	if w.dataPageVersion == "2.0" {
		writerOpts = append(writerOpts, parquet.WithDataPageVersion(parquet.DataPageV2))
	}
	writerProps := parquet.NewWriterProperties(writerOpts...)

	arrowProps := pqarrow.NewArrowWriterProperties(pqarrow.WithStoreSchema())

	writer, err := pqarrow.NewFileWriter(schema, &buf, writerProps, arrowProps)
	if err != nil {
		return nil, fmt.Errorf("failed to create Parquet writer: %w", err)
	}

	if err := writer.Write(record); err != nil {
		writer.Close()
		return nil, fmt.Errorf("failed to write record batch: %w", err)
	}

	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("failed to close Parquet writer: %w", err)
	}

	w.logger.Debug().
		Int("columns", len(schema.Fields())).
		Int("rows", int(record.NumRows())).
		Int("size", buf.Len()).
		Msg("Encoded Parquet file")

	return buf.Bytes(), nil
}
