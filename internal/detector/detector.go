// Package detector discovers nearby devices through passive and
// semi-passive network observation. Each detector feeds
// domain.DetectionEvent values into the Coordinator, which owns the
// detector lifecycle and funnels events into the repository.
package detector

import (
	"context"
	"time"

	"whereabouts/internal/domain"
)

// Detector is a single detection source.
type Detector interface {
	// Name returns the unique identifier for this detector
	Name() string

	// Method returns the detection method recorded on events
	Method() domain.DetectionMethod

	// Start verifies the detector's runtime requirements (binaries,
	// interfaces, files). An error disables the detector; it is never
	// fatal to the process.
	Start(ctx context.Context) error

	// Stop releases any resources held by the detector
	Stop() error
}

// Poller is a detector that is sampled on a schedule.
type Poller interface {
	Detector

	// Interval returns how often Poll should run
	Interval() time.Duration

	// Poll samples the source once
	Poll(ctx context.Context) ([]domain.DetectionEvent, error)
}

// Streamer is a detector that produces a continuous event stream.
type Streamer interface {
	Detector

	// Stream blocks, calling emit for each detection, until the context
	// is cancelled or the underlying source fails.
	Stream(ctx context.Context, emit func(domain.DetectionEvent)) error
}

// Wakeable lets a poller request an immediate out-of-schedule poll.
type Wakeable interface {
	// Wake returns a channel that receives when the source changed
	Wake() <-chan struct{}
}

// Status reports whether a registered detector is running and, when it
// is not, why.
type Status struct {
	Name    string `json:"name"`
	Enabled bool   `json:"enabled"`
	Reason  string `json:"reason,omitempty"`
}
