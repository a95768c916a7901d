package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/basekick-labs/lcparquet/internal/config"
	"github.com/basekick-labs/lcparquet/internal/logger"
	"github.com/basekick-labs/lcparquet/internal/shutdown"
	"github.com/rs/zerolog/log"
	"github.com/spf13/pflag"
)

// Version is set at build time
var Version = "dev"

const shutdownTimeout = 30 * time.Second

func main() {
	// Check for subcommands before loading full config
	if len(os.Args) > 1 && os.Args[1] == "inspect" {
		os.Exit(runInspectSubcommand(os.Args[2:]))
	}

	fs := config.NewFlagSet("lcparquet")
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Convert SNANA simulated light curves from FITS to Parquet\n\n")
		fmt.Fprintf(os.Stderr, "Usage:\n  lcparquet [flags] INPUT OUTPUT\n  lcparquet inspect FILE\n\nFlags:\n")
		fs.PrintDefaults()
	}
	if err := fs.Parse(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			os.Exit(0)
		}
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(2)
	}

	cfg, err := config.Load(fs)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid configuration: %v\n", err)
		fs.Usage()
		os.Exit(2)
	}

	logger.Setup(cfg.Log.Level, cfg.Log.Format)
	log.Debug().Str("version", Version).Msg("Starting lcparquet")

	coordinator := shutdown.New(shutdownTimeout, logger.Get("shutdown"))
	ctx, stop := coordinator.NotifyContext(context.Background())

	err = runConvert(ctx, cfg, coordinator, os.Stdout)
	stop()
	if shutdownErr := coordinator.Shutdown(); shutdownErr != nil {
		log.Warn().Err(shutdownErr).Msg("Failed to release resources")
	}
	if err != nil {
		log.Error().Err(err).Msg("Conversion failed")
		os.Exit(1)
	}
}
