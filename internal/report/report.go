// Package report moves signal observations between stations. A
// secondary station batches its recent readings and posts them to the
// primary; the primary ingests each batch under the reporting station's
// monitor identity, which is what makes multi-monitor positioning
// possible.
package report

import (
	"context"
	"errors"
	"time"

	"whereabouts/internal/domain"
	"whereabouts/internal/logging"
	"whereabouts/internal/positioning"
)

// ErrUnknownMonitor is returned when a batch carries an API key no
// monitor is registered under.
var ErrUnknownMonitor = errors.New("unknown monitor API key")

// Reading is one averaged signal observation for a device.
type Reading struct {
	MACAddress     string `json:"mac_address"`
	SignalStrength int    `json:"signal_strength"`
}

// Batch is the wire format posted by a secondary station.
type Batch struct {
	APIKey   string    `json:"api_key"`
	Readings []Reading `json:"readings"`
}

// BatchResult is the primary's response to a posted batch.
type BatchResult struct {
	ReadingsAdded int `json:"readings_added"`
}

// IngestStore is the slice of the repository the ingestor writes
// through.
type IngestStore interface {
	MonitorByAPIKey(ctx context.Context, apiKey string) (*domain.Monitor, error)
	UpsertByMAC(ctx context.Context, event domain.DetectionEvent) (*domain.Asset, bool, error)
	AddSignalReading(ctx context.Context, reading domain.SignalReading) error
	RecordHeartbeat(ctx context.Context, monitorID int64, at time.Time) error
}

// Ingestor records batches reported by secondary stations.
type Ingestor struct {
	store IngestStore
	model positioning.Model
	now   func() time.Time
}

// NewIngestor creates an ingestor that estimates reading distances with
// the given signal model.
func NewIngestor(store IngestStore, model positioning.Model) *Ingestor {
	return &Ingestor{
		store: store,
		model: model,
		now:   time.Now,
	}
}

// Ingest validates the batch's API key, records every reading under the
// reporting monitor, and heartbeats it. Individual bad readings are
// skipped; the count of accepted readings is returned.
func (i *Ingestor) Ingest(ctx context.Context, batch Batch) (int, error) {
	logger := logging.FromContext(ctx)

	monitor, err := i.store.MonitorByAPIKey(ctx, batch.APIKey)
	if err != nil {
		return 0, err
	}
	if monitor == nil {
		return 0, ErrUnknownMonitor
	}

	now := i.now()
	accepted := 0
	for _, reading := range batch.Readings {
		asset, _, err := i.store.UpsertByMAC(ctx, domain.DetectionEvent{
			MAC:            reading.MACAddress,
			SignalStrength: &reading.SignalStrength,
			Method:         domain.DetectProbe,
			Timestamp:      now,
		})
		if err != nil {
			logger.Warn().Str("mac", reading.MACAddress).Err(err).Msg("skipping reported reading")
			continue
		}

		err = i.store.AddSignalReading(ctx, domain.SignalReading{
			AssetID:           asset.ID,
			MonitorID:         monitor.ID,
			SignalStrength:    reading.SignalStrength,
			EstimatedDistance: i.model.Distance(reading.SignalStrength),
			Timestamp:         now,
		})
		if err != nil {
			logger.Warn().Str("mac", reading.MACAddress).Err(err).Msg("skipping reported reading")
			continue
		}
		accepted++
	}

	if err := i.store.RecordHeartbeat(ctx, monitor.ID, now); err != nil {
		logger.Warn().Int64("monitor", monitor.ID).Err(err).Msg("failed to record heartbeat")
	}

	logger.Debug().
		Str("monitor", monitor.Name).
		Int("accepted", accepted).
		Int("reported", len(batch.Readings)).
		Msg("ingested signal batch")
	return accepted, nil
}
