package output

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/apache/arrow-go/v18/parquet"
	"github.com/apache/arrow-go/v18/parquet/file"
	"github.com/apache/arrow-go/v18/parquet/pqarrow"
	"github.com/basekick-labs/lcparquet/internal/config"
	"github.com/basekick-labs/lcparquet/internal/pipeline"
	"github.com/basekick-labs/lcparquet/internal/storage"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig() *config.ParquetConfig {
	return &config.ParquetConfig{
		Compression:     "snappy",
		UseDictionary:   true,
		WriteStatistics: true,
		DataPageVersion: "1.0",
	}
}

func testTable() *pipeline.Table {
	return &pipeline.Table{
		Schema: pipeline.Schema{
			ID:   "SNID",
			Meta: []string{"REDSHIFT", "SIM_TYPE", "FAKE"},
			Obs:  []string{"MJD", "BAND", "PHOTFLAG", "SATURATED"},
			Types: map[string]string{
				"SNID":      "int64",
				"REDSHIFT":  "float64",
				"SIM_TYPE":  "string",
				"FAKE":      "bool",
				"MJD":       "float64",
				"BAND":      "string",
				"PHOTFLAG":  "int64",
				"SATURATED": "bool",
			},
		},
		IDs:  []int64{101, 202},
		NObs: []int{3, 1},
		Meta: map[string]interface{}{
			"REDSHIFT": []float64{0.12, 0.5},
			"SIM_TYPE": []string{"Ia", "II"},
			"FAKE":     []bool{false, true},
		},
		Obs: map[string]interface{}{
			"MJD":       [][]float64{{53000, 53001, 53002.5}, {54000}},
			"BAND":      [][]string{{"g", "r", "g"}, {"i"}},
			"PHOTFLAG":  [][]int64{{4096, 4096, 6144}, {4096}},
			"SATURATED": [][]bool{{false, false, true}, {false}},
		},
	}
}

func readTable(t *testing.T, data []byte) arrow.Table {
	t.Helper()
	tbl, err := pqarrow.ReadTable(context.Background(), bytes.NewReader(data),
		parquet.NewReaderProperties(memory.DefaultAllocator), pqarrow.ArrowReadProperties{}, memory.DefaultAllocator)
	require.NoError(t, err)
	t.Cleanup(tbl.Release)
	return tbl
}

func column(t *testing.T, tbl arrow.Table, name string) arrow.Array {
	t.Helper()
	idx := tbl.Schema().FieldIndices(name)
	require.Len(t, idx, 1, name)
	chunks := tbl.Column(idx[0]).Data().Chunks()
	require.Len(t, chunks, 1)
	return chunks[0]
}

func TestEncode_SchemaAndValues(t *testing.T) {
	w := NewParquetWriter(testConfig(), zerolog.Nop())
	data, err := w.Encode(testTable(), RunInfo{RunID: "run-1", InputObjects: 5})
	require.NoError(t, err)

	tbl := readTable(t, data)
	assert.Equal(t, int64(2), tbl.NumRows())

	var names []string
	for _, f := range tbl.Schema().Fields() {
		names = append(names, f.Name)
	}
	assert.Equal(t, []string{"SNID", "REDSHIFT", "SIM_TYPE", "FAKE", "MJD", "BAND", "PHOTFLAG", "SATURATED"}, names)

	ids := column(t, tbl, "SNID").(*array.Int64)
	assert.Equal(t, []int64{101, 202}, ids.Int64Values())

	z := column(t, tbl, "REDSHIFT").(*array.Float64)
	assert.Equal(t, []float64{0.12, 0.5}, z.Float64Values())

	simType := column(t, tbl, "SIM_TYPE").(*array.String)
	assert.Equal(t, "II", simType.Value(1))

	mjd := column(t, tbl, "MJD").(*array.List)
	assert.Equal(t, arrow.LIST, mjd.DataType().ID())
	start, end := mjd.ValueOffsets(0)
	assert.Equal(t, int64(0), start)
	assert.Equal(t, int64(3), end)
	values := mjd.ListValues().(*array.Float64)
	assert.Equal(t, []float64{53000, 53001, 53002.5, 54000}, values.Float64Values())

	band := column(t, tbl, "BAND").(*array.List)
	start, end = band.ValueOffsets(1)
	assert.Equal(t, int64(3), start)
	assert.Equal(t, int64(4), end)
	assert.Equal(t, "i", band.ListValues().(*array.String).Value(3))

	flags := column(t, tbl, "PHOTFLAG").(*array.List)
	assert.Equal(t, []int64{4096, 4096, 6144, 4096}, flags.ListValues().(*array.Int64).Int64Values())

	saturated := column(t, tbl, "SATURATED").(*array.List)
	assert.True(t, saturated.ListValues().(*array.Boolean).Value(2))
}

func TestEncode_Metadata(t *testing.T) {
	w := NewParquetWriter(testConfig(), zerolog.Nop())
	data, err := w.Encode(testTable(), RunInfo{
		RunID:        "5f0c7a2e-4b1d-4c1e-9a57-1c2d3e4f5a6b",
		InputObjects: 10,
		Filters:      []string{"band=g", "photflag"},
	})
	require.NoError(t, err)

	rdr, err := file.NewParquetReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer rdr.Close()

	kv := rdr.MetaData().KeyValueMetadata()
	value := func(key string) string {
		v := kv.FindValue(key)
		require.NotNil(t, v, key)
		return *v
	}
	assert.Equal(t, "5f0c7a2e-4b1d-4c1e-9a57-1c2d3e4f5a6b", value(MetaRunID))
	assert.Equal(t, "10", value(MetaInputObjects))
	assert.Equal(t, "band=g,photflag", value(MetaFilters))
}

func TestEncode_Compression(t *testing.T) {
	for _, codec := range []string{"snappy", "gzip", "zstd", "none"} {
		t.Run(codec, func(t *testing.T) {
			cfg := testConfig()
			cfg.Compression = codec
			cfg.DataPageVersion = "2.0"
			w := NewParquetWriter(cfg, zerolog.Nop())

			data, err := w.Encode(testTable(), RunInfo{})
			require.NoError(t, err)
			assert.Equal(t, int64(2), readTable(t, data).NumRows())
		})
	}
}

func TestEncode_EmptyTable(t *testing.T) {
	table := testTable().Select(nil)

	w := NewParquetWriter(testConfig(), zerolog.Nop())
	data, err := w.Encode(table, RunInfo{})
	require.NoError(t, err)

	tbl := readTable(t, data)
	assert.Equal(t, int64(0), tbl.NumRows())
	assert.Equal(t, 8, int(tbl.NumCols()))
}

func TestEncode_UnsupportedType(t *testing.T) {
	table := testTable()
	table.Schema.Types["FAKE"] = "complex128"

	w := NewParquetWriter(testConfig(), zerolog.Nop())
	_, err := w.Encode(table, RunInfo{})
	assert.Error(t, err)
}

func TestWrite_LocalBackend(t *testing.T) {
	dir := t.TempDir()
	backend, err := storage.NewLocalBackend(dir, true, zerolog.Nop())
	require.NoError(t, err)

	w := NewParquetWriter(testConfig(), zerolog.Nop())
	size, err := w.Write(context.Background(), backend, "out/lcs.parquet", testTable(), RunInfo{RunID: "r"})
	require.NoError(t, err)

	data, err := os.ReadFile(filepath.Join(dir, "out", "lcs.parquet"))
	require.NoError(t, err)
	assert.Equal(t, size, len(data))
	assert.Equal(t, "PAR1", string(data[:4]))
	assert.Equal(t, int64(2), readTable(t, data).NumRows())
}
