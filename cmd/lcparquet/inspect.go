package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/basekick-labs/lcparquet/internal/database"
	"github.com/basekick-labs/lcparquet/internal/inspect"
	"github.com/basekick-labs/lcparquet/internal/logger"
	"github.com/spf13/pflag"
)

func runInspectSubcommand(args []string) int {
	fs := pflag.NewFlagSet("inspect", pflag.ContinueOnError)
	logLevel := fs.String("log-level", "warn", "Log level: debug, info, warn, error")
	memoryLimit := fs.String("memory-limit", "", "DuckDB memory limit, e.g. 1GB")
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage:\n  lcparquet inspect [flags] FILE\n\nFlags:\n")
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return 0
		}
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return 2
	}
	if fs.NArg() != 1 {
		fs.Usage()
		return 2
	}

	logger.Setup(*logLevel, "console")

	ctx := context.Background()
	db, err := database.New(ctx, &database.Config{MemoryLimit: *memoryLimit}, logger.Get("duckdb"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return 1
	}
	defer db.Close()

	summary, err := inspect.Summarize(ctx, db, fs.Arg(0))
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return 1
	}
	printSummary(os.Stdout, summary)
	return 0
}

func printSummary(w io.Writer, s *inspect.Summary) {
	fmt.Fprintf(w, "file:         %s\n", s.Path)
	fmt.Fprintf(w, "objects:      %d\n", s.Rows)
	fmt.Fprintf(w, "observations: %d\n", s.Observations)
	fmt.Fprintf(w, "columns:\n")
	for _, c := range s.Columns {
		fmt.Fprintf(w, "  %-20s %s\n", c.Name, c.Type)
	}
	if len(s.Metadata) == 0 {
		return
	}

	keys := make([]string, 0, len(s.Metadata))
	for k := range s.Metadata {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	fmt.Fprintf(w, "metadata:\n")
	for _, k := range keys {
		fmt.Fprintf(w, "  %s = %s\n", k, s.Metadata[k])
	}
}
