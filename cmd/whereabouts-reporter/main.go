// whereabouts-reporter posts a station's recent signal readings to the
// primary station on an interval. It is for setups that run the capture
// daemon and the reporter as separate processes; when the daemon is
// configured with a primary URL it runs this loop itself.
package main

import (
	"context"
	"flag"
	"os/signal"
	"syscall"

	"whereabouts/internal/config"
	"whereabouts/internal/logging"
	"whereabouts/internal/report"
	"whereabouts/internal/repository/sqlite"
)

func main() {
	configPath := flag.String("config", "", "config file path (default: search standard locations)")
	primaryURL := flag.String("primary", "", "primary ingest URL (overrides config)")
	apiKey := flag.String("api-key", "", "station API key (overrides config)")
	flag.Parse()

	ctx, logger := logging.Setup(context.Background(), "whereabouts-reporter")
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var (
		cfg *config.Config
		err error
	)
	if *configPath != "" {
		cfg, _, err = config.LoadFromPath(*configPath)
	} else {
		cfg, _, err = config.Load()
	}
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load config")
	}

	if *primaryURL != "" {
		cfg.Reporting.PrimaryURL = *primaryURL
	}
	if *apiKey != "" {
		cfg.Reporting.APIKey = *apiKey
	}
	if !cfg.ReportsToPrimary() {
		logger.Fatal().Msg("primary URL and API key are required")
	}

	repo, err := sqlite.New(cfg.Database.Path)
	if err != nil {
		logger.Fatal().Err(err).Str("path", cfg.Database.Path).Msg("failed to open database")
	}
	defer repo.Close()

	reporter := report.NewReporter(repo, cfg.Reporting.PrimaryURL, cfg.Reporting.APIKey,
		report.WithReportInterval(cfg.Reporting.Interval.Duration()))

	logger.Info().Str("primary", cfg.Reporting.PrimaryURL).Msg("reporter started")
	if err := reporter.Run(ctx); err != nil && ctx.Err() == nil {
		logger.Fatal().Err(err).Msg("reporter failed")
	}
}
