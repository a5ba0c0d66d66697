package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/UnknownOlympus/cartograph/internal/config"
	"github.com/UnknownOlympus/cartograph/internal/geocoding"
	"github.com/UnknownOlympus/cartograph/internal/logger"
	"github.com/UnknownOlympus/cartograph/internal/metrics"
	"github.com/UnknownOlympus/cartograph/internal/service"
	"github.com/UnknownOlympus/cartograph/internal/spreadsheet"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
)

// Version is set at build time.
var Version = "dev"

// main is the entry point of the application.
func main() {
	// Create a context that will be canceled when an interrupt signal is received.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "geocode-sheet",
		Short: "geocode the addresses of a spreadsheet with the Google Maps API",
		Long: `
geocode-sheet reads addresses from a column of an input spreadsheet, looks up
each one with the Google Maps Geocoding API and writes the coordinates and a
per-row status to a new spreadsheet.

The API key is read from GOOGLE_MAPS_API_KEY (environment or .env file).
`,
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: false,
		Args:          cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(cmd.Flags())
			if err != nil {
				return fmt.Errorf("failed to load configuration: %w", err)
			}

			return run(cmd.Context(), cfg)
		},
	}
	config.RegisterFlags(cmd.Flags())

	return cmd
}

// run wires the pipeline and executes it once. Failures of the pipeline itself
// are logged and do not produce an error, so the process exits normally.
func run(ctx context.Context, cfg *config.Config) error {
	runLog, err := logger.New(cfg.Env, cfg.LogDir, time.Now(), os.Stdout)
	if err != nil {
		return fmt.Errorf("failed to set up logging: %w", err)
	}
	defer func() {
		if errClose := runLog.Close(); errClose != nil {
			log.Printf("failed to close log file: %v", errClose)
		}
	}()

	runLog.InfoContext(ctx, "Starting geocoding run",
		"version", Version, "input", cfg.InputFile, "output", cfg.OutputFile, "log_file", runLog.Path())

	provider, err := geocoding.NewProvider(geocoding.ProviderConfig{
		APIKey:  cfg.APIKey,
		BaseURL: cfg.BaseURL,
		Timeout: cfg.Timeout,
		Logger:  runLog.Logger,
	})
	if err != nil {
		runLog.ErrorContext(ctx, "Failed to create geocoding provider", "error", err)
		return nil
	}

	reg := prometheus.NewRegistry()
	appMetrics := metrics.NewMetrics(reg)

	open := func(path string) (service.AddressSource, error) {
		reader, errOpen := spreadsheet.OpenAddressReader(path, cfg.AddressColumn, runLog.Logger)
		if errOpen != nil {
			return nil, errOpen
		}
		return reader, nil
	}

	batch := service.NewBatchService(
		runLog.Logger,
		provider,
		provider,
		geocoding.ProviderName,
		appMetrics,
		open,
		spreadsheet.NewResultTable(),
		cfg.InputFile,
		cfg.OutputFile,
	)

	if _, err = batch.Run(ctx); err != nil {
		runLog.ErrorContext(ctx, "Geocoding run aborted", "error", err)
	}

	if cfg.MetricsFile != "" {
		if err = metrics.WriteTextfile(cfg.MetricsFile, reg); err != nil {
			runLog.ErrorContext(ctx, "Failed to export metrics", "path", cfg.MetricsFile, "error", err)
		}
	}

	return nil
}
