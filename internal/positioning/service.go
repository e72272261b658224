package positioning

import (
	"context"
	"fmt"
	"time"

	"whereabouts/internal/domain"
	"whereabouts/internal/logging"
)

const (
	// readingWindow bounds how old a signal reading may be and still
	// contribute to a fresh estimate.
	readingWindow = 5 * time.Minute

	// maxReadingsPerMonitor caps how many recent readings per station are
	// averaged before modeling a distance.
	maxReadingsPerMonitor = 5

	// fallbackAccuracyMeters is the accuracy claimed when a device is
	// demonstrably present but no multi-station geometry exists, so it is
	// pinned to the station that hears it.
	fallbackAccuracyMeters = 10.0

	// presenceWindow is how recently a device must have been seen to count
	// as currently present for the fallback placement.
	presenceWindow = 10 * time.Minute
)

// ReadingSource supplies per-station signal readings for an asset.
type ReadingSource interface {
	RecentSignalReadings(ctx context.Context, assetID int64, since time.Time) ([]domain.SignalReading, error)
}

// MonitorSource supplies the set of stations whose readings can be used.
type MonitorSource interface {
	ListActiveMonitors(ctx context.Context) ([]domain.Monitor, error)
}

// PositionStore persists computed estimates onto assets.
type PositionStore interface {
	UpdatePosition(ctx context.Context, assetID int64, estimate domain.PositionEstimate, at time.Time) error
}

// Service turns stored signal readings into asset positions.
type Service struct {
	engine   *Engine
	readings ReadingSource
	monitors MonitorSource
	store    PositionStore
	now      func() time.Time
}

// NewService wires the estimation engine to its data sources. The store
// may be nil when callers only want Locate without persistence.
func NewService(engine *Engine, readings ReadingSource, monitors MonitorSource, store PositionStore) *Service {
	return &Service{
		engine:   engine,
		readings: readings,
		monitors: monitors,
		store:    store,
		now:      time.Now,
	}
}

// Locate estimates the asset's current position. The resolution order is
// fresh signal geometry, then the last stored position, then a pin on the
// station that most recently heard a currently present device. A nil
// estimate with a nil error means the asset genuinely cannot be placed.
func (s *Service) Locate(ctx context.Context, asset domain.Asset) (*domain.PositionEstimate, error) {
	now := s.now()

	monitors, err := s.monitors.ListActiveMonitors(ctx)
	if err != nil {
		return nil, fmt.Errorf("list monitors: %w", err)
	}

	readings, err := s.readings.RecentSignalReadings(ctx, asset.ID, now.Add(-readingWindow))
	if err != nil {
		return nil, fmt.Errorf("recent readings for asset %d: %w", asset.ID, err)
	}

	if estimate := s.estimateFromReadings(monitors, readings); estimate != nil {
		return estimate, nil
	}

	if stored := asset.LastPosition(); stored != nil {
		return stored, nil
	}

	return s.pinToStation(asset, monitors, now), nil
}

// UpdatePosition runs Locate and persists the result when one exists.
func (s *Service) UpdatePosition(ctx context.Context, asset domain.Asset) (*domain.PositionEstimate, error) {
	estimate, err := s.Locate(ctx, asset)
	if err != nil || estimate == nil {
		return estimate, err
	}
	if s.store != nil {
		if err := s.store.UpdatePosition(ctx, asset.ID, *estimate, s.now()); err != nil {
			return nil, fmt.Errorf("store position for asset %d: %w", asset.ID, err)
		}
	}
	log := logging.FromContext(ctx)
	log.Debug().
		Int64("asset_id", asset.ID).
		Float64("lat", estimate.Location.Latitude).
		Float64("lon", estimate.Location.Longitude).
		Float64("accuracy_m", estimate.Accuracy).
		Float64("confidence", estimate.Confidence).
		Msg("position updated")
	return estimate, nil
}

func (s *Service) estimateFromReadings(monitors []domain.Monitor, readings []domain.SignalReading) *domain.PositionEstimate {
	locations := make(map[int64]domain.GeoPoint, len(monitors))
	for _, m := range monitors {
		locations[m.ID] = m.Location()
	}

	// Readings arrive newest first; keep only the freshest few per station
	// so a stale burst cannot drown out the current signal level.
	perMonitor := make(map[int64][]int)
	for _, r := range readings {
		if _, ok := locations[r.MonitorID]; !ok {
			continue
		}
		if len(perMonitor[r.MonitorID]) < maxReadingsPerMonitor {
			perMonitor[r.MonitorID] = append(perMonitor[r.MonitorID], r.SignalStrength)
		}
	}

	var inputs []MonitorReading
	for monitorID, signals := range perMonitor {
		sum := 0
		for _, sig := range signals {
			sum += sig
		}
		avg := sum / len(signals)
		inputs = append(inputs, MonitorReading{
			MonitorLocation:   locations[monitorID],
			SignalStrength:    avg,
			EstimatedDistance: s.engine.Model().Distance(avg),
		})
	}

	return s.engine.Estimate(inputs)
}

// pinToStation places a currently present device at a station when no
// geometry or history is available. The local station detects by
// definition, so prefer it over remote ones.
func (s *Service) pinToStation(asset domain.Asset, monitors []domain.Monitor, now time.Time) *domain.PositionEstimate {
	if len(monitors) == 0 || !asset.SeenWithin(presenceWindow, now) {
		return nil
	}

	chosen := monitors[0]
	for _, m := range monitors {
		if m.IsLocal {
			chosen = m
			break
		}
	}

	return &domain.PositionEstimate{
		Location:   chosen.Location(),
		Accuracy:   fallbackAccuracyMeters,
		Confidence: 0.1,
	}
}
