package detector

import (
	"context"
	"fmt"
	"os/exec"
	"time"

	"whereabouts/internal/domain"
	"whereabouts/internal/parse"
)

const defaultARPInterval = 30 * time.Second

// ARPDetector reads the kernel ARP table for devices active on the
// local segment. It sees anything that has exchanged traffic with this
// host recently, wireless or wired.
type ARPDetector struct {
	interval time.Duration
	table    func(ctx context.Context) (string, error)
	now      func() time.Time
}

// ARPOption configures an ARPDetector.
type ARPOption func(*ARPDetector)

// WithARPInterval overrides the poll interval.
func WithARPInterval(interval time.Duration) ARPOption {
	return func(d *ARPDetector) { d.interval = interval }
}

// NewARPDetector creates an ARP table poller.
func NewARPDetector(opts ...ARPOption) *ARPDetector {
	d := &ARPDetector{
		interval: defaultARPInterval,
		table:    arpTable,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

func arpTable(ctx context.Context) (string, error) {
	out, err := exec.CommandContext(ctx, "arp", "-n").Output()
	if err != nil {
		return "", fmt.Errorf("arp -n: %w", err)
	}
	return string(out), nil
}

// Name returns the detector identifier
func (d *ARPDetector) Name() string { return "arp" }

// Method returns the detection method for ARP events
func (d *ARPDetector) Method() domain.DetectionMethod { return domain.DetectARP }

// Start verifies the arp binary is available.
func (d *ARPDetector) Start(ctx context.Context) error {
	if _, err := exec.LookPath("arp"); err != nil {
		return fmt.Errorf("arp not found in PATH: %w", err)
	}
	return nil
}

// Stop is a no-op.
func (d *ARPDetector) Stop() error { return nil }

// Interval returns the poll schedule
func (d *ARPDetector) Interval() time.Duration { return d.interval }

// Poll reads the ARP table once.
func (d *ARPDetector) Poll(ctx context.Context) ([]domain.DetectionEvent, error) {
	output, err := d.table(ctx)
	if err != nil {
		return nil, err
	}

	now := d.now()
	var events []domain.DetectionEvent
	for _, entry := range parse.ARPTable(output) {
		events = append(events, domain.DetectionEvent{
			MAC:       entry.MAC,
			IP:        entry.IP,
			Method:    domain.DetectARP,
			Timestamp: now,
		})
	}
	return events, nil
}
