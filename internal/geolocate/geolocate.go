// Package geolocate finds the station's own coordinates at startup. A
// monitor cannot place other devices until it knows where it stands, so
// the resolver walks a ladder of sources from precise to coarse: a USB
// GPS dongle, WiFi-based geolocation, then IP geolocation.
package geolocate

import (
	"context"

	"whereabouts/internal/domain"
	"whereabouts/internal/logging"
)

// Stage is one location source. Locate returns (nil, nil) when the stage
// cannot produce a fix; errors are reserved for unexpected failures worth
// logging.
type Stage interface {
	Name() string
	Locate(ctx context.Context) (*domain.GeoLocation, error)
}

// Resolver tries stages in order and returns the first fix.
type Resolver struct {
	stages []Stage
}

// NewResolver builds a resolver over the given stages, tried in order.
func NewResolver(stages ...Stage) *Resolver {
	return &Resolver{stages: stages}
}

// Detect walks the stage ladder. It returns nil when every stage comes up
// empty; the caller falls back to configured coordinates.
func (r *Resolver) Detect(ctx context.Context) *domain.GeoLocation {
	log := logging.FromContext(ctx)
	for _, stage := range r.stages {
		loc, err := stage.Locate(ctx)
		if err != nil {
			log.Warn().Err(err).Str("stage", stage.Name()).Msg("location stage failed")
			continue
		}
		if loc == nil {
			log.Debug().Str("stage", stage.Name()).Msg("location stage produced no fix")
			continue
		}
		log.Info().
			Str("stage", stage.Name()).
			Float64("lat", loc.Latitude).
			Float64("lon", loc.Longitude).
			Float64("accuracy_m", loc.Accuracy).
			Msg("station location detected")
		return loc
	}
	return nil
}
