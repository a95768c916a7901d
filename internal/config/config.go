package config

import (
	"fmt"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Config holds all configuration for a conversion run
type Config struct {
	Input   string // directory (or s3://, azure:// prefix) holding HEAD/PHOT pairs
	Output  string // destination Parquet file or object URI
	Filter  FilterConfig
	Columns ColumnConfig
	Load    LoadConfig
	Parquet ParquetConfig
	Storage StorageConfig
	Log     LogConfig
}

// FilterConfig selects rows and objects
type FilterConfig struct {
	Band     string   // keep a single passband; empty keeps all
	PhotFlag bool     // keep detections (4096) that are not saturated (1024)
	MinS2N   *float64 // minimum FLUXCAL/FLUXCALERR; nil disables
	MinNobs  int      // minimum surviving observations per object, applied last
}

// ColumnConfig names the columns the pipeline reads
type ColumnConfig struct {
	ID       string
	Band     string
	PhotFlag string
	Flux     string
	FluxErr  string
}

type LoadConfig struct {
	Workers int // file pairs decoded concurrently
}

type ParquetConfig struct {
	Compression     string // snappy, gzip, zstd, none
	UseDictionary   bool
	WriteStatistics bool
	DataPageVersion string // 1.0 or 2.0
	Verify          bool   // read the written file back with DuckDB
}

type StorageConfig struct {
	S3Region    string
	S3Endpoint  string // Custom endpoint for MinIO (e.g., "http://localhost:9000")
	S3AccessKey string // or AWS_ACCESS_KEY_ID
	S3SecretKey string // or AWS_SECRET_ACCESS_KEY
	S3UseSSL    bool
	S3PathStyle bool // required for MinIO
	// Azure Blob Storage
	AzureConnectionString   string
	AzureAccountName        string
	AzureAccountKey         string
	AzureSASToken           string
	AzureEndpoint           string // Custom endpoint (for Azurite testing)
	AzureUseManagedIdentity bool
}

type LogConfig struct {
	Level  string
	Format string
}

// flagKeys maps command line flags to configuration keys
var flagKeys = map[string]string{
	"band":               "filter.band",
	"filter-by-photflag": "filter.photflag",
	"min-s2n":            "filter.min_s2n",
	"min-nobs":           "filter.min_nobs",
	"workers":            "load.workers",
	"compression":        "parquet.compression",
	"verify":             "parquet.verify",
	"log-level":          "log.level",
	"log-format":         "log.format",
}

// NewFlagSet returns the command line flags understood by Load
func NewFlagSet(name string) *pflag.FlagSet {
	fs := pflag.NewFlagSet(name, pflag.ContinueOnError)
	fs.String("band", "", "Select a single passband from each light curve; default keeps all passbands")
	fs.Bool("filter-by-photflag", false, "Use PHOTFLAG to select detections (4096) and deselect saturations (1024)")
	fs.Float64("min-s2n", 0, "Select observations with at least the given signal-to-noise ratio")
	fs.Int("min-nobs", 0, "Select light curves having at least this many observations; applies after all other filters")
	fs.Int("workers", 0, "Number of file pairs decoded concurrently")
	fs.String("compression", "", "Parquet compression: snappy, gzip, zstd, none")
	fs.Bool("verify", false, "Read the output back with DuckDB and check the row count")
	fs.String("log-level", "", "Log level: debug, info, warn, error")
	fs.String("log-format", "", "Log format: json or console")
	fs.String("config", "", "Path to a TOML config file")
	return fs
}

// Load builds the configuration from defaults, an optional config file,
// LCPARQUET_* environment variables and the parsed flag set (highest
// precedence). Positional arguments are INPUT and OUTPUT.
func Load(fs *pflag.FlagSet) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.SetEnvPrefix("LCPARQUET")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var configFile string
	if fs != nil {
		configFile, _ = fs.GetString("config")
	}
	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("lcparquet")
		v.SetConfigType("toml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.lcparquet/")
	}
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok || configFile != "" {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		// Config file not found is OK, use defaults
	}

	if fs != nil {
		for flagName, key := range flagKeys {
			if f := fs.Lookup(flagName); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, fmt.Errorf("failed to bind flag %s: %w", flagName, err)
				}
			}
		}

		args := fs.Args()
		if len(args) > 2 {
			return nil, fmt.Errorf("expected INPUT and OUTPUT, got %d arguments", len(args))
		}
		if len(args) > 0 {
			v.Set("input", args[0])
		}
		if len(args) > 1 {
			v.Set("output", args[1])
		}
	}

	cfg := &Config{
		Input:  v.GetString("input"),
		Output: v.GetString("output"),
		Filter: FilterConfig{
			Band:     v.GetString("filter.band"),
			PhotFlag: v.GetBool("filter.photflag"),
			MinNobs:  v.GetInt("filter.min_nobs"),
		},
		Columns: ColumnConfig{
			ID:       v.GetString("columns.id"),
			Band:     v.GetString("columns.band"),
			PhotFlag: v.GetString("columns.photflag"),
			Flux:     v.GetString("columns.flux"),
			FluxErr:  v.GetString("columns.flux_err"),
		},
		Load: LoadConfig{
			Workers: v.GetInt("load.workers"),
		},
		Parquet: ParquetConfig{
			Compression:     strings.ToLower(v.GetString("parquet.compression")),
			UseDictionary:   v.GetBool("parquet.use_dictionary"),
			WriteStatistics: v.GetBool("parquet.write_statistics"),
			DataPageVersion: v.GetString("parquet.data_page_version"),
			Verify:          v.GetBool("parquet.verify"),
		},
		Storage: StorageConfig{
			S3Region:                v.GetString("storage.s3_region"),
			S3Endpoint:              v.GetString("storage.s3_endpoint"),
			S3AccessKey:             v.GetString("storage.s3_access_key"),
			S3SecretKey:             v.GetString("storage.s3_secret_key"),
			S3UseSSL:                v.GetBool("storage.s3_use_ssl"),
			S3PathStyle:             v.GetBool("storage.s3_path_style"),
			AzureConnectionString:   v.GetString("storage.azure_connection_string"),
			AzureAccountName:        v.GetString("storage.azure_account_name"),
			AzureAccountKey:         v.GetString("storage.azure_account_key"),
			AzureSASToken:           v.GetString("storage.azure_sas_token"),
			AzureEndpoint:           v.GetString("storage.azure_endpoint"),
			AzureUseManagedIdentity: v.GetBool("storage.azure_use_managed_identity"),
		},
		Log: LogConfig{
			Level:  v.GetString("log.level"),
			Format: v.GetString("log.format"),
		},
	}

	// An unset threshold disables the filter; zero is a valid threshold
	if v.IsSet("filter.min_s2n") {
		s2n := v.GetFloat64("filter.min_s2n")
		cfg.Filter.MinS2N = &s2n
	}

	return cfg, nil
}

// setDefaults sets default values for all configuration options
func setDefaults(v *viper.Viper) {
	v.SetDefault("filter.band", "")
	v.SetDefault("filter.photflag", false)
	v.SetDefault("filter.min_nobs", 0)

	// SNANA column names
	v.SetDefault("columns.id", "SNID")
	v.SetDefault("columns.band", "BAND")
	v.SetDefault("columns.photflag", "PHOTFLAG")
	v.SetDefault("columns.flux", "FLUXCAL")
	v.SetDefault("columns.flux_err", "FLUXCALERR")

	v.SetDefault("load.workers", 4)

	v.SetDefault("parquet.compression", "snappy")
	v.SetDefault("parquet.use_dictionary", true)
	v.SetDefault("parquet.write_statistics", true)
	v.SetDefault("parquet.data_page_version", "1.0")
	v.SetDefault("parquet.verify", false)

	v.SetDefault("storage.s3_region", "us-east-1")
	v.SetDefault("storage.s3_use_ssl", true)
	v.SetDefault("storage.s3_path_style", false)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")
}

// Validate checks the configuration for a conversion run
func (cfg *Config) Validate() error {
	if cfg.Input == "" {
		return fmt.Errorf("input location is required")
	}
	if cfg.Output == "" {
		return fmt.Errorf("output location is required")
	}
	if cfg.Filter.MinNobs < 0 {
		return fmt.Errorf("filter.min_nobs must be >= 0, got %d", cfg.Filter.MinNobs)
	}
	if cfg.Load.Workers < 1 {
		return fmt.Errorf("load.workers must be >= 1, got %d", cfg.Load.Workers)
	}
	if cfg.Columns.ID == "" {
		return fmt.Errorf("columns.id is required")
	}
	switch cfg.Parquet.Compression {
	case "snappy", "gzip", "zstd", "none":
	default:
		return fmt.Errorf("unsupported parquet.compression %q (use snappy, gzip, zstd or none)", cfg.Parquet.Compression)
	}
	switch cfg.Parquet.DataPageVersion {
	case "1.0", "2.0":
	default:
		return fmt.Errorf("unsupported parquet.data_page_version %q (use 1.0 or 2.0)", cfg.Parquet.DataPageVersion)
	}
	return nil
}
