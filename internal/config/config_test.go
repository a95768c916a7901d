package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func load(t *testing.T, args ...string) (*Config, error) {
	t.Helper()
	fs := NewFlagSet("test")
	require.NoError(t, fs.Parse(args))
	return Load(fs)
}

func TestLoad_Defaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := load(t, "sims", "out/lcs.parquet")
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "sims", cfg.Input)
	assert.Equal(t, "out/lcs.parquet", cfg.Output)
	assert.Equal(t, "", cfg.Filter.Band)
	assert.False(t, cfg.Filter.PhotFlag)
	assert.Nil(t, cfg.Filter.MinS2N)
	assert.Equal(t, 0, cfg.Filter.MinNobs)
	assert.Equal(t, ColumnConfig{ID: "SNID", Band: "BAND", PhotFlag: "PHOTFLAG", Flux: "FLUXCAL", FluxErr: "FLUXCALERR"}, cfg.Columns)
	assert.Equal(t, 4, cfg.Load.Workers)
	assert.Equal(t, "snappy", cfg.Parquet.Compression)
	assert.Equal(t, "1.0", cfg.Parquet.DataPageVersion)
	assert.Equal(t, "info", cfg.Log.Level)
}

func TestLoad_Flags(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := load(t,
		"--band", "g",
		"--filter-by-photflag",
		"--min-s2n", "5",
		"--min-nobs", "3",
		"--compression", "ZSTD",
		"--workers", "2",
		"in", "out.parquet",
	)
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "g", cfg.Filter.Band)
	assert.True(t, cfg.Filter.PhotFlag)
	require.NotNil(t, cfg.Filter.MinS2N)
	assert.Equal(t, 5.0, *cfg.Filter.MinS2N)
	assert.Equal(t, 3, cfg.Filter.MinNobs)
	assert.Equal(t, "zstd", cfg.Parquet.Compression)
	assert.Equal(t, 2, cfg.Load.Workers)
}

func TestLoad_ZeroS2NIsEnabled(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := load(t, "--min-s2n", "0", "in", "out.parquet")
	require.NoError(t, err)
	require.NotNil(t, cfg.Filter.MinS2N)
	assert.Equal(t, 0.0, *cfg.Filter.MinS2N)
}

func TestLoad_Environment(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("LCPARQUET_FILTER_BAND", "r")
	t.Setenv("LCPARQUET_FILTER_MIN_S2N", "2.5")
	t.Setenv("LCPARQUET_COLUMNS_BAND", "FLT")

	cfg, err := load(t, "in", "out.parquet")
	require.NoError(t, err)
	assert.Equal(t, "r", cfg.Filter.Band)
	assert.Equal(t, "FLT", cfg.Columns.Band)
	require.NotNil(t, cfg.Filter.MinS2N)
	assert.Equal(t, 2.5, *cfg.Filter.MinS2N)
}

func TestLoad_FlagOverridesEnvironment(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("LCPARQUET_FILTER_BAND", "r")

	cfg, err := load(t, "--band", "i", "in", "out.parquet")
	require.NoError(t, err)
	assert.Equal(t, "i", cfg.Filter.Band)
}

func TestLoad_ConfigFile(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)

	path := filepath.Join(dir, "custom.toml")
	content := `
input = "s3://sims/run1/"
output = "s3://lcs/run1.parquet"

[filter]
min_nobs = 5
photflag = true

[parquet]
compression = "gzip"

[storage]
s3_region = "eu-west-1"
s3_path_style = true
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	cfg, err := load(t, "--config", path)
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "s3://sims/run1/", cfg.Input)
	assert.Equal(t, "s3://lcs/run1.parquet", cfg.Output)
	assert.Equal(t, 5, cfg.Filter.MinNobs)
	assert.True(t, cfg.Filter.PhotFlag)
	assert.Equal(t, "gzip", cfg.Parquet.Compression)
	assert.Equal(t, "eu-west-1", cfg.Storage.S3Region)
	assert.True(t, cfg.Storage.S3PathStyle)
}

func TestLoad_MissingExplicitConfigFile(t *testing.T) {
	t.Chdir(t.TempDir())

	_, err := load(t, "--config", "nope.toml", "in", "out")
	assert.Error(t, err)
}

func TestLoad_TooManyArguments(t *testing.T) {
	t.Chdir(t.TempDir())

	_, err := load(t, "a", "b", "c")
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			Input:   "in",
			Output:  "out.parquet",
			Columns: ColumnConfig{ID: "SNID"},
			Load:    LoadConfig{Workers: 1},
			Parquet: ParquetConfig{Compression: "snappy", DataPageVersion: "1.0"},
		}
	}

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"missing input", func(c *Config) { c.Input = "" }},
		{"missing output", func(c *Config) { c.Output = "" }},
		{"negative min nobs", func(c *Config) { c.Filter.MinNobs = -1 }},
		{"no workers", func(c *Config) { c.Load.Workers = 0 }},
		{"no id column", func(c *Config) { c.Columns.ID = "" }},
		{"bad compression", func(c *Config) { c.Parquet.Compression = "lz77" }},
		{"bad page version", func(c *Config) { c.Parquet.DataPageVersion = "3.0" }},
	}

	require.NoError(t, valid().Validate())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}
