package database

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEscapeString(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "no quotes",
			input:    "/data/lcs.parquet",
			expected: "/data/lcs.parquet",
		},
		{
			name:     "single quote",
			input:    "/data/o'brien/lcs.parquet",
			expected: "/data/o''brien/lcs.parquet",
		},
		{
			name:     "sql injection attempt",
			input:    "x'); DROP TABLE data; --",
			expected: "x''); DROP TABLE data; --",
		},
		{
			name:     "empty string",
			input:    "",
			expected: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := EscapeString(tt.input)
			if result != tt.expected {
				t.Errorf("EscapeString(%q) = %q, want %q", tt.input, result, tt.expected)
			}
		})
	}
}

func TestQuoteIdentifier(t *testing.T) {
	assert.Equal(t, `"MJD"`, QuoteIdentifier("MJD"))
	assert.Equal(t, `"a""b"`, QuoteIdentifier(`a"b`))
}

func TestDuckDB_Query(t *testing.T) {
	ctx := context.Background()
	db, err := New(ctx, &Config{MemoryLimit: "256MB", ThreadCount: 1}, zerolog.Nop())
	require.NoError(t, err)
	defer db.Close()

	var n int64
	require.NoError(t, db.QueryRow(ctx, "SELECT 40 + 2").Scan(&n))
	assert.Equal(t, int64(42), n)

	rows, err := db.Query(ctx, "SELECT * FROM range(3)")
	require.NoError(t, err)
	defer rows.Close()
	count := 0
	for rows.Next() {
		count++
	}
	require.NoError(t, rows.Err())
	assert.Equal(t, 3, count)

	_, err = db.Query(ctx, "SELECT * FROM missing_table")
	assert.Error(t, err)
}
