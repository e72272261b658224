package detector

import (
	"context"
	"fmt"
	"strings"
	"time"

	nmap "github.com/Ullaakut/nmap/v3"

	"whereabouts/internal/domain"
	"whereabouts/internal/logging"
)

const defaultScanInterval = 5 * time.Minute

// NetScanDetector actively sweeps configured subnets with an nmap ping
// scan. Host discovery populates the ARP cache as a side effect, so it
// also sharpens the passive ARP detector. Active probing is noisy on the
// network, so this detector is off unless explicitly enabled.
type NetScanDetector struct {
	targets  []string
	interval time.Duration
	now      func() time.Time
}

// NetScanOption configures a NetScanDetector.
type NetScanOption func(*NetScanDetector)

// WithScanInterval overrides the sweep interval.
func WithScanInterval(interval time.Duration) NetScanOption {
	return func(d *NetScanDetector) { d.interval = interval }
}

// NewNetScanDetector creates a subnet sweep detector.
// targets are CIDR ranges or individual IPs.
func NewNetScanDetector(targets []string, opts ...NetScanOption) *NetScanDetector {
	d := &NetScanDetector{
		targets:  targets,
		interval: defaultScanInterval,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Name returns the detector identifier
func (d *NetScanDetector) Name() string { return "netscan" }

// Method returns the detection method for sweep events
func (d *NetScanDetector) Method() domain.DetectionMethod { return domain.DetectScan }

// Start verifies nmap is installed and runnable.
func (d *NetScanDetector) Start(ctx context.Context) error {
	if len(d.targets) == 0 {
		return fmt.Errorf("no scan targets configured")
	}

	scanner, err := nmap.NewScanner(ctx, nmap.WithTargets("localhost"), nmap.WithListScan())
	if err != nil {
		return fmt.Errorf("nmap unavailable: %w", err)
	}
	if _, _, err := scanner.Run(); err != nil {
		return fmt.Errorf("nmap unavailable: %w", err)
	}
	return nil
}

// Stop is a no-op.
func (d *NetScanDetector) Stop() error { return nil }

// Interval returns the sweep schedule
func (d *NetScanDetector) Interval() time.Duration { return d.interval }

// Poll sweeps the configured targets once. Host discovery only; no port
// scanning.
func (d *NetScanDetector) Poll(ctx context.Context) ([]domain.DetectionEvent, error) {
	scanner, err := nmap.NewScanner(ctx,
		nmap.WithTargets(d.targets...),
		nmap.WithPingScan(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create scanner: %w", err)
	}

	result, warnings, err := scanner.Run()
	if err != nil {
		return nil, fmt.Errorf("scan failed: %w", err)
	}
	if warnings != nil && len(*warnings) > 0 {
		log := logging.FromContext(ctx)
		log.Warn().
			Str("detector", d.Name()).
			Strs("warnings", *warnings).
			Msg("scan completed with warnings")
	}

	return eventsFromRun(result, d.now()), nil
}

// eventsFromRun converts nmap host results into detection events. Hosts
// without a MAC address (typically the scanning host itself, or hosts
// beyond the local segment) are skipped.
func eventsFromRun(result *nmap.Run, now time.Time) []domain.DetectionEvent {
	if result == nil {
		return nil
	}

	var events []domain.DetectionEvent
	for _, host := range result.Hosts {
		if host.Status.State != "up" {
			continue
		}

		var mac, ip string
		for _, addr := range host.Addresses {
			switch addr.AddrType {
			case "mac":
				mac = strings.ToUpper(addr.Addr)
			case "ipv4":
				ip = addr.Addr
			}
		}
		if mac == "" {
			continue
		}

		event := domain.DetectionEvent{
			MAC:       mac,
			IP:        ip,
			Method:    domain.DetectScan,
			Timestamp: now,
		}
		if len(host.Hostnames) > 0 {
			event.Hostname = host.Hostnames[0].Name
		}
		events = append(events, event)
	}
	return events
}
