// Package inspect reads a written light curve Parquet file back through DuckDB.
package inspect

import (
	"context"
	"fmt"
	"strings"

	"github.com/basekick-labs/lcparquet/internal/database"
)

// Column is one column of the file as DuckDB sees it
type Column struct {
	Name string
	Type string // DuckDB type, e.g. BIGINT or DOUBLE[]
}

// IsList reports whether the column holds per-object observation lists
func (c Column) IsList() bool {
	return strings.HasSuffix(c.Type, "[]")
}

// Summary describes a light curve Parquet file
type Summary struct {
	Path         string
	Rows         int64
	Columns      []Column
	Observations int64             // total list entries of the first list column
	Metadata     map[string]string // lcparquet.* key-value metadata
}

// Summarize reads the row count, schema, observation total and run metadata
// of the Parquet file at path
func Summarize(ctx context.Context, db *database.DuckDB, path string) (*Summary, error) {
	source := fmt.Sprintf("read_parquet('%s')", database.EscapeString(path))
	s := &Summary{Path: path, Metadata: map[string]string{}}

	if err := db.QueryRow(ctx, "SELECT count(*) FROM "+source).Scan(&s.Rows); err != nil {
		return nil, fmt.Errorf("failed to count rows of %s: %w", path, err)
	}

	cols, err := describe(ctx, db, source)
	if err != nil {
		return nil, fmt.Errorf("failed to describe %s: %w", path, err)
	}
	s.Columns = cols

	for _, c := range cols {
		if !c.IsList() {
			continue
		}
		q := fmt.Sprintf("SELECT CAST(coalesce(sum(len(%s)), 0) AS BIGINT) FROM %s", database.QuoteIdentifier(c.Name), source)
		if err := db.QueryRow(ctx, q).Scan(&s.Observations); err != nil {
			return nil, fmt.Errorf("failed to count observations of %s: %w", path, err)
		}
		break
	}

	kv := fmt.Sprintf("SELECT decode(key), decode(value) FROM parquet_kv_metadata('%s')", database.EscapeString(path))
	rows, err := db.Query(ctx, kv)
	if err != nil {
		return nil, fmt.Errorf("failed to read metadata of %s: %w", path, err)
	}
	defer rows.Close()
	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return nil, err
		}
		if strings.HasPrefix(key, "lcparquet.") {
			s.Metadata[key] = value
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return s, nil
}

// describe returns column names and types. DESCRIBE yields more than two
// columns, so rows are scanned generically and the first two kept.
func describe(ctx context.Context, db *database.DuckDB, source string) ([]Column, error) {
	rows, err := db.Query(ctx, "DESCRIBE SELECT * FROM "+source)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	names, err := rows.Columns()
	if err != nil {
		return nil, err
	}
	if len(names) < 2 {
		return nil, fmt.Errorf("unexpected DESCRIBE result with %d columns", len(names))
	}

	var cols []Column
	for rows.Next() {
		values := make([]interface{}, len(names))
		ptrs := make([]interface{}, len(names))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}
		cols = append(cols, Column{Name: fmt.Sprint(values[0]), Type: fmt.Sprint(values[1])})
	}
	return cols, rows.Err()
}

// Verify checks that the file at path holds want rows
func Verify(ctx context.Context, db *database.DuckDB, path string, want int) (*Summary, error) {
	s, err := Summarize(ctx, db, path)
	if err != nil {
		return nil, err
	}
	if s.Rows != int64(want) {
		return s, fmt.Errorf("verification failed: %s has %d rows, wrote %d", path, s.Rows, want)
	}
	return s, nil
}
