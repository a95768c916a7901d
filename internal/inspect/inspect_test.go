package inspect

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/basekick-labs/lcparquet/internal/config"
	"github.com/basekick-labs/lcparquet/internal/database"
	"github.com/basekick-labs/lcparquet/internal/output"
	"github.com/basekick-labs/lcparquet/internal/pipeline"
	"github.com/basekick-labs/lcparquet/internal/storage"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFixture(t *testing.T) string {
	t.Helper()
	table := &pipeline.Table{
		Schema: pipeline.Schema{
			ID:    "SNID",
			Meta:  []string{"REDSHIFT"},
			Obs:   []string{"MJD", "BAND"},
			Types: map[string]string{"SNID": "int64", "REDSHIFT": "float64", "MJD": "float64", "BAND": "string"},
		},
		IDs:  []int64{1, 2, 3},
		NObs: []int{2, 1, 4},
		Meta: map[string]interface{}{"REDSHIFT": []float64{0.1, 0.2, 0.3}},
		Obs: map[string]interface{}{
			"MJD":  [][]float64{{1, 2}, {3}, {4, 5, 6, 7}},
			"BAND": [][]string{{"g", "g"}, {"g"}, {"g", "g", "g", "g"}},
		},
	}

	dir := t.TempDir()
	backend, err := storage.NewLocalBackend(dir, true, zerolog.Nop())
	require.NoError(t, err)

	w := output.NewParquetWriter(&config.ParquetConfig{Compression: "zstd", UseDictionary: true, WriteStatistics: true, DataPageVersion: "1.0"}, zerolog.Nop())
	_, err = w.Write(context.Background(), backend, "o'neil.parquet", table, output.RunInfo{RunID: "run-42", InputObjects: 7, Filters: []string{"band=g"}})
	require.NoError(t, err)
	return filepath.Join(dir, "o'neil.parquet")
}

func openDB(t *testing.T) *database.DuckDB {
	t.Helper()
	db, err := database.New(context.Background(), &database.Config{}, zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestSummarize(t *testing.T) {
	path := writeFixture(t)

	s, err := Summarize(context.Background(), openDB(t), path)
	require.NoError(t, err)

	assert.Equal(t, int64(3), s.Rows)
	assert.Equal(t, int64(7), s.Observations)
	assert.Equal(t, []Column{
		{Name: "SNID", Type: "BIGINT"},
		{Name: "REDSHIFT", Type: "DOUBLE"},
		{Name: "MJD", Type: "DOUBLE[]"},
		{Name: "BAND", Type: "VARCHAR[]"},
	}, s.Columns)
	assert.Equal(t, "run-42", s.Metadata[output.MetaRunID])
	assert.Equal(t, "7", s.Metadata[output.MetaInputObjects])
	assert.Equal(t, "band=g", s.Metadata[output.MetaFilters])
}

func TestVerify(t *testing.T) {
	path := writeFixture(t)
	db := openDB(t)

	_, err := Verify(context.Background(), db, path, 3)
	assert.NoError(t, err)

	s, err := Verify(context.Background(), db, path, 4)
	assert.Error(t, err)
	require.NotNil(t, s)
	assert.Equal(t, int64(3), s.Rows)
}

func TestSummarize_MissingFile(t *testing.T) {
	_, err := Summarize(context.Background(), openDB(t), filepath.Join(t.TempDir(), "nope.parquet"))
	assert.Error(t, err)
}

func TestColumn_IsList(t *testing.T) {
	assert.True(t, Column{Type: "DOUBLE[]"}.IsList())
	assert.False(t, Column{Type: "DOUBLE"}.IsList())
}
