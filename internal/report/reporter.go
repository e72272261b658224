package report

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"time"

	"whereabouts/internal/logging"
)

const (
	defaultReportInterval = 30 * time.Second
	defaultReportWindow   = time.Minute

	// After this many consecutive failed reports the loop slows down to
	// avoid hammering an unreachable primary.
	backoffThreshold = 5
)

// SignalSource provides the per-MAC averaged signals to report.
type SignalSource interface {
	AverageSignalsSince(ctx context.Context, since time.Time) (map[string]int, error)
}

// Reporter periodically posts this station's recent signal averages to
// the primary station.
type Reporter struct {
	source     SignalSource
	primaryURL string
	apiKey     string
	interval   time.Duration
	window     time.Duration
	client     *http.Client
	now        func() time.Time
}

// ReporterOption configures a Reporter.
type ReporterOption func(*Reporter)

// WithReportInterval overrides how often batches are posted.
func WithReportInterval(interval time.Duration) ReporterOption {
	return func(r *Reporter) { r.interval = interval }
}

// WithReportWindow overrides how far back each batch's averages reach.
func WithReportWindow(window time.Duration) ReporterOption {
	return func(r *Reporter) { r.window = window }
}

// WithHTTPClient overrides the HTTP client.
func WithHTTPClient(client *http.Client) ReporterOption {
	return func(r *Reporter) { r.client = client }
}

// NewReporter creates a reporter posting to the primary's ingest URL
// with the given per-station API key.
func NewReporter(source SignalSource, primaryURL, apiKey string, opts ...ReporterOption) *Reporter {
	r := &Reporter{
		source:     source,
		primaryURL: primaryURL,
		apiKey:     apiKey,
		interval:   defaultReportInterval,
		window:     defaultReportWindow,
		client:     &http.Client{Timeout: 10 * time.Second},
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run posts batches on the configured interval until the context is
// cancelled. Repeated failures double the wait between attempts.
func (r *Reporter) Run(ctx context.Context) error {
	logger := logging.FromContext(ctx)
	consecutiveErrors := 0

	for {
		added, err := r.ReportOnce(ctx)
		if err != nil {
			consecutiveErrors++
			logger.Error().Err(err).Int("consecutive", consecutiveErrors).Msg("report failed")
		} else {
			consecutiveErrors = 0
			if added > 0 {
				logger.Debug().Int("added", added).Msg("reported signal batch")
			}
		}

		wait := r.interval
		if consecutiveErrors >= backoffThreshold {
			wait *= 2
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
	}
}

// ReportOnce gathers the recent signal averages and posts a single
// batch. An empty window posts nothing and reports zero.
func (r *Reporter) ReportOnce(ctx context.Context) (int, error) {
	averages, err := r.source.AverageSignalsSince(ctx, r.now().Add(-r.window))
	if err != nil {
		return 0, fmt.Errorf("failed to gather signal averages: %w", err)
	}
	if len(averages) == 0 {
		return 0, nil
	}

	batch := Batch{APIKey: r.apiKey, Readings: make([]Reading, 0, len(averages))}
	for mac, signal := range averages {
		batch.Readings = append(batch.Readings, Reading{MACAddress: mac, SignalStrength: signal})
	}
	// Stable order keeps batches reproducible in logs and tests.
	sort.Slice(batch.Readings, func(i, j int) bool {
		return batch.Readings[i].MACAddress < batch.Readings[j].MACAddress
	})

	body, err := json.Marshal(batch)
	if err != nil {
		return 0, fmt.Errorf("failed to encode batch: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.primaryURL, bytes.NewReader(body))
	if err != nil {
		return 0, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("failed to post batch: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("primary returned status %d", resp.StatusCode)
	}

	var result BatchResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return 0, fmt.Errorf("failed to decode response: %w", err)
	}
	return result.ReadingsAdded, nil
}
