package database

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/duckdb/duckdb-go/v2"
	"github.com/rs/zerolog"
)

// DuckDB wraps an in-memory DuckDB connection used to read Parquet files back
type DuckDB struct {
	db     *sql.DB
	logger zerolog.Logger
}

// Config holds DuckDB configuration
type Config struct {
	MemoryLimit string
	ThreadCount int
}

// New opens an in-memory DuckDB instance
func New(ctx context.Context, cfg *Config, logger zerolog.Logger) (*DuckDB, error) {
	db, err := sql.Open("duckdb", "")
	if err != nil {
		return nil, fmt.Errorf("failed to open duckdb: %w", err)
	}

	// A single connection keeps SET statements effective for every query
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping duckdb: %w", err)
	}

	if err := configureDatabase(ctx, db, cfg); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to configure duckdb: %w", err)
	}

	logger = logger.With().Str("component", "duckdb").Logger()
	logger.Debug().
		Str("memory_limit", cfg.MemoryLimit).
		Int("thread_count", cfg.ThreadCount).
		Msg("DuckDB initialized")

	return &DuckDB{db: db, logger: logger}, nil
}

// configureDatabase sets DuckDB configuration after connection
func configureDatabase(ctx context.Context, db *sql.DB, cfg *Config) error {
	if cfg.MemoryLimit != "" {
		if _, err := db.ExecContext(ctx, fmt.Sprintf("SET memory_limit='%s'", EscapeString(cfg.MemoryLimit))); err != nil {
			return fmt.Errorf("failed to set memory_limit: %w", err)
		}
	}
	if cfg.ThreadCount > 0 {
		if _, err := db.ExecContext(ctx, fmt.Sprintf("SET threads=%d", cfg.ThreadCount)); err != nil {
			return fmt.Errorf("failed to set threads: %w", err)
		}
	}
	return nil
}

// Query executes a query and returns rows
func (d *DuckDB) Query(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error) {
	start := time.Now()
	rows, err := d.db.QueryContext(ctx, query, args...)
	elapsed := time.Since(start)

	if err != nil {
		d.logger.Error().
			Err(err).
			Str("query", query).
			Dur("elapsed", elapsed).
			Msg("Query failed")
		return nil, fmt.Errorf("query failed: %w", err)
	}

	d.logger.Debug().
		Str("query", query).
		Dur("elapsed", elapsed).
		Msg("Query executed")

	return rows, nil
}

// QueryRow executes a query expected to return a single row
func (d *DuckDB) QueryRow(ctx context.Context, query string, args ...interface{}) *sql.Row {
	d.logger.Debug().Str("query", query).Msg("Query row")
	return d.db.QueryRowContext(ctx, query, args...)
}

// Close closes the database connection
func (d *DuckDB) Close() error {
	if err := d.db.Close(); err != nil {
		return fmt.Errorf("failed to close database: %w", err)
	}
	return nil
}

// EscapeString escapes single quotes for use inside a SQL string literal
func EscapeString(s string) string {
	return strings.ReplaceAll(s, "'", "''")
}

// QuoteIdentifier quotes a column name for use in SQL
func QuoteIdentifier(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}
