package repository

import (
	"context"
	"time"

	"whereabouts/internal/domain"
)

// AssetRepository defines data access for tracked devices and their
// observation history.
type AssetRepository interface {
	// UpsertByMAC records a sighting: it creates the asset on first
	// detection, otherwise bumps last_seen, times_seen and the latest
	// signal/address details. The returned flag is true for a first
	// detection.
	UpsertByMAC(ctx context.Context, event domain.DetectionEvent) (*domain.Asset, bool, error)
	AssetByMAC(ctx context.Context, mac string) (*domain.Asset, error)
	ListAssets(ctx context.Context) ([]domain.Asset, error)
	ListAssetsSeenSince(ctx context.Context, since time.Time) ([]domain.Asset, error)
	SetVendorInfo(ctx context.Context, assetID int64, vendor, deviceType, country string, isVM bool) error

	// Probe history feeds fingerprinting and the secondary reporter.
	RecordProbe(ctx context.Context, record domain.ProbeRecord) error
	ProbeHistory(ctx context.Context, assetID int64, since time.Time) ([]domain.ProbeRecord, error)
	SSIDHistory(ctx context.Context, assetID int64) ([]string, error)

	// Signal readings feed multi-monitor positioning.
	AddSignalReading(ctx context.Context, reading domain.SignalReading) error
	RecentSignalReadings(ctx context.Context, assetID int64, since time.Time) ([]domain.SignalReading, error)
	AverageSignalsSince(ctx context.Context, since time.Time) (map[string]int, error)
	UpdatePosition(ctx context.Context, assetID int64, estimate domain.PositionEstimate, at time.Time) error

	// Device groups link randomized MACs.
	ListDeviceGroups(ctx context.Context) ([]domain.DeviceGroup, error)
	CreateDeviceGroup(ctx context.Context, group *domain.DeviceGroup) error
	UpdateDeviceGroup(ctx context.Context, group *domain.DeviceGroup) error
	AssignAssetToGroup(ctx context.Context, assetID, groupID int64) error

	// Close releases resources
	Close() error
}

// MonitorRegistry defines data access for the stations that contribute
// signal readings.
type MonitorRegistry interface {
	ListActiveMonitors(ctx context.Context) ([]domain.Monitor, error)
	// GetOrCreateLocalMonitor returns the station's own monitor row,
	// creating it with a fresh API key on first run.
	GetOrCreateLocalMonitor(ctx context.Context, name string, lat, lon float64) (*domain.Monitor, error)
	MonitorByAPIKey(ctx context.Context, apiKey string) (*domain.Monitor, error)
	UpdateMonitorLocation(ctx context.Context, monitorID int64, lat, lon float64) error
	RecordHeartbeat(ctx context.Context, monitorID int64, at time.Time) error
}
