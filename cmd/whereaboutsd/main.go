package main

import (
	"context"
	"flag"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"whereabouts/internal/config"
	"whereabouts/internal/detector"
	"whereabouts/internal/domain"
	"whereabouts/internal/fingerprint"
	"whereabouts/internal/geolocate"
	"whereabouts/internal/logging"
	"whereabouts/internal/positioning"
	"whereabouts/internal/report"
	"whereabouts/internal/repository/sqlite"
	"whereabouts/internal/vendorlookup"
)

const (
	positionRefreshInterval = 30 * time.Second
	positionRefreshWindow   = 5 * time.Minute
)

func main() {
	configPath := flag.String("config", "", "config file path (default: search standard locations)")
	dbPath := flag.String("db", "", "SQLite database path (overrides config)")
	flag.Parse()

	ctx, logger := logging.Setup(context.Background(), "whereaboutsd")
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, path, err := loadConfig(*configPath)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load config")
	}
	if path != "" {
		logger.Info().Str("path", path).Msg("loaded config")
	} else {
		logger.Info().Msg("no config file found, using defaults")
	}
	if *dbPath != "" {
		cfg.Database.Path = *dbPath
	}

	repo, err := sqlite.New(cfg.Database.Path)
	if err != nil {
		logger.Fatal().Err(err).Str("path", cfg.Database.Path).Msg("failed to open database")
	}
	defer repo.Close()
	logger.Info().Str("path", cfg.Database.Path).Msg("database opened")

	// Where is this station? A fix feeds every distance estimate made
	// from here.
	lat, lon := cfg.Station.Latitude, cfg.Station.Longitude
	located := false
	if !cfg.Location.Skip {
		if loc := selfLocate(ctx, cfg); loc != nil {
			lat, lon = loc.Latitude, loc.Longitude
			located = true
			logger.Info().
				Float64("lat", lat).
				Float64("lon", lon).
				Float64("accuracy", loc.Accuracy).
				Msg("station located")
		} else {
			logger.Warn().Msg("self-location failed, using configured coordinates")
		}
	}

	monitor, err := repo.GetOrCreateLocalMonitor(ctx, cfg.Station.Name, lat, lon)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to bootstrap local monitor")
	}
	if located && (monitor.Latitude != lat || monitor.Longitude != lon) {
		if err := repo.UpdateMonitorLocation(ctx, monitor.ID, lat, lon); err != nil {
			logger.Warn().Err(err).Msg("failed to update monitor location")
		} else {
			monitor.Latitude, monitor.Longitude = lat, lon
		}
	}
	logger.Info().
		Str("name", monitor.Name).
		Int64("id", monitor.ID).
		Str("api_key", monitor.APIKey).
		Msg("local monitor ready")

	model := positioning.Model{
		TxPower:          cfg.Signal.TxPower,
		PathLossExponent: cfg.Signal.PathLossExponent,
	}

	vendors := vendorlookup.NewResolver(vendorlookup.DefaultChain(
		cfg.Vendor.OUIPath,
		cfg.Vendor.MacLookupAppKey,
		cfg.Vendor.MacAddressIOKey,
	))
	grouper := fingerprint.NewGrouper(repo, repo)

	coordinator := detector.NewCoordinator(repo,
		detector.WithVendorResolver(vendors),
		detector.WithGrouper(grouper),
		detector.WithLocalMonitor(monitor, model),
	)
	registerDetectors(coordinator, cfg, logger)

	if err := coordinator.Start(ctx); err != nil {
		logger.Fatal().Err(err).Msg("failed to start detectors")
	}
	for _, status := range coordinator.Statuses() {
		event := logger.Info()
		if !status.Enabled {
			event = logger.Warn()
		}
		event.Str("detector", status.Name).
			Bool("enabled", status.Enabled).
			Str("reason", status.Reason).
			Msg("detector status")
	}

	engine := positioning.NewEngine(model, nil)
	positions := positioning.NewService(engine, repo, repo, repo)
	go refreshPositions(ctx, positions, repo, logger)

	if cfg.ReportsToPrimary() {
		reporter := report.NewReporter(repo, cfg.Reporting.PrimaryURL, cfg.Reporting.APIKey,
			report.WithReportInterval(cfg.Reporting.Interval.Duration()))
		go func() {
			if err := reporter.Run(ctx); err != nil && ctx.Err() == nil {
				logger.Error().Err(err).Msg("reporter stopped")
			}
		}()
		logger.Info().Str("primary", cfg.Reporting.PrimaryURL).Msg("reporting to primary station")
	}

	<-ctx.Done()
	logger.Info().Msg("shutting down")
	if err := coordinator.Stop(); err != nil {
		logger.Error().Err(err).Msg("detector shutdown error")
	}
}

func loadConfig(path string) (*config.Config, string, error) {
	if path != "" {
		return config.LoadFromPath(path)
	}
	return config.Load()
}

// selfLocate runs the GPS -> WiFi -> IP ladder.
func selfLocate(ctx context.Context, cfg *config.Config) *domain.GeoLocation {
	gps := geolocate.NewGPSStage(cfg.Location.GPSDevice)
	gps.Timeout = cfg.Location.GPSTimeout.Duration()

	resolver := geolocate.NewResolver(
		gps,
		geolocate.NewWiFiStage(cfg.Location.GeolocationAPIKey, cfg.Detectors.WiFi.Interface, ""),
		geolocate.NewIPStage(""),
	)
	return resolver.Detect(ctx)
}

func registerDetectors(coordinator *detector.Coordinator, cfg *config.Config, logger zerolog.Logger) {
	register := func(d detector.Detector) {
		if err := coordinator.Register(d); err != nil {
			logger.Error().Str("detector", d.Name()).Err(err).Msg("failed to register detector")
		}
	}

	if cfg.Detectors.WiFi.Enabled {
		register(detector.NewWiFiDetector(cfg.Detectors.WiFi.Interface))
	}
	if cfg.Detectors.ARP.Enabled {
		register(detector.NewARPDetector(
			detector.WithARPInterval(cfg.Detectors.ARP.Interval.Duration())))
	}
	if cfg.Detectors.DHCP.Enabled {
		register(detector.NewDHCPDetector(
			detector.WithLeasePath(cfg.Detectors.DHCP.LeasePath),
			detector.WithDHCPInterval(cfg.Detectors.DHCP.Interval.Duration())))
	}
	if cfg.Detectors.NetScan.Enabled {
		register(detector.NewNetScanDetector(cfg.Detectors.NetScan.Targets,
			detector.WithScanInterval(cfg.Detectors.NetScan.Interval.Duration())))
	}
}

// refreshPositions periodically re-estimates positions for devices seen
// recently.
func refreshPositions(ctx context.Context, positions *positioning.Service, repo *sqlite.Repository, logger zerolog.Logger) {
	ticker := time.NewTicker(positionRefreshInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		assets, err := repo.ListAssetsSeenSince(ctx, time.Now().Add(-positionRefreshWindow))
		if err != nil {
			if ctx.Err() == nil {
				logger.Error().Err(err).Msg("failed to list recent assets")
			}
			continue
		}
		for _, asset := range assets {
			if _, err := positions.UpdatePosition(ctx, asset); err != nil {
				logger.Warn().Str("mac", asset.MAC).Err(err).Msg("position update failed")
			}
		}
	}
}
