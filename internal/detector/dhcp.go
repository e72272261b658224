package detector

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"whereabouts/internal/domain"
	"whereabouts/internal/logging"
	"whereabouts/internal/parse"
)

const (
	defaultDHCPInterval = 60 * time.Second
	leaseWatchDebounce  = 500 * time.Millisecond
)

// defaultLeasePaths are checked in order when no lease file is
// configured.
var defaultLeasePaths = []string{
	"/var/lib/misc/dnsmasq.leases",
	"/var/lib/dhcp/dnsmasq.leases",
	"/var/lib/dhcp/dhcpd.leases",
	"/var/lib/dhcpd/dhcpd.leases",
	"/tmp/dhcp.leases",
}

// DHCPDetector reads a DHCP server's lease file for devices that
// requested an address on the local network. Between polls, a filesystem
// watch on the lease file triggers an immediate re-read.
type DHCPDetector struct {
	leasePath string
	interval  time.Duration
	now       func() time.Time

	watcher *fsnotify.Watcher
	wake    chan struct{}
	done    chan struct{}
}

// DHCPOption configures a DHCPDetector.
type DHCPOption func(*DHCPDetector)

// WithLeasePath pins the lease file instead of probing known locations.
func WithLeasePath(path string) DHCPOption {
	return func(d *DHCPDetector) { d.leasePath = path }
}

// WithDHCPInterval overrides the poll interval.
func WithDHCPInterval(interval time.Duration) DHCPOption {
	return func(d *DHCPDetector) { d.interval = interval }
}

// NewDHCPDetector creates a DHCP lease file poller.
func NewDHCPDetector(opts ...DHCPOption) *DHCPDetector {
	d := &DHCPDetector{
		interval: defaultDHCPInterval,
		now:      time.Now,
		wake:     make(chan struct{}, 1),
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Name returns the detector identifier
func (d *DHCPDetector) Name() string { return "dhcp" }

// Method returns the detection method for lease events
func (d *DHCPDetector) Method() domain.DetectionMethod { return domain.DetectDHCP }

// Start locates the lease file and begins watching it for changes.
func (d *DHCPDetector) Start(ctx context.Context) error {
	if d.leasePath == "" {
		d.leasePath = findLeaseFile()
	}
	if d.leasePath == "" {
		return fmt.Errorf("no DHCP lease file found")
	}
	if _, err := os.Stat(d.leasePath); err != nil {
		return fmt.Errorf("lease file %s: %w", d.leasePath, err)
	}

	// The watch is best effort; polling still covers missed events.
	log := logging.FromContext(ctx)
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		log.Warn().Err(err).Msg("lease file watch unavailable, polling only")
		return nil
	}
	// Watch the directory so the watch survives the file being replaced.
	if err := watcher.Add(filepath.Dir(d.leasePath)); err != nil {
		watcher.Close()
		log.Warn().Err(err).Msg("lease file watch unavailable, polling only")
		return nil
	}
	d.watcher = watcher
	go d.watchLoop(ctx)
	return nil
}

// Stop tears down the lease file watch.
func (d *DHCPDetector) Stop() error {
	if d.watcher != nil {
		err := d.watcher.Close()
		<-d.done
		return err
	}
	return nil
}

// Interval returns the poll schedule
func (d *DHCPDetector) Interval() time.Duration { return d.interval }

// Wake receives after the lease file changes.
func (d *DHCPDetector) Wake() <-chan struct{} { return d.wake }

// watchLoop forwards debounced lease file changes onto the wake channel.
func (d *DHCPDetector) watchLoop(ctx context.Context) {
	defer close(d.done)
	logger := logging.FromContext(ctx)
	filename := filepath.Base(d.leasePath)

	var debounce *time.Timer
	defer func() {
		if debounce != nil {
			debounce.Stop()
		}
	}()

	for {
		select {
		case event, ok := <-d.watcher.Events:
			if !ok {
				return
			}
			if filepath.Base(event.Name) != filename {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			if debounce != nil {
				debounce.Stop()
			}
			debounce = time.AfterFunc(leaseWatchDebounce, func() {
				select {
				case d.wake <- struct{}{}:
				default:
				}
			})
		case err, ok := <-d.watcher.Errors:
			if !ok {
				return
			}
			logger.Warn().Err(err).Str("detector", d.Name()).Msg("lease file watch error")
		case <-ctx.Done():
			return
		}
	}
}

// Poll reads the lease file once.
func (d *DHCPDetector) Poll(ctx context.Context) ([]domain.DetectionEvent, error) {
	content, err := os.ReadFile(d.leasePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read lease file: %w", err)
	}

	now := d.now()
	var events []domain.DetectionEvent
	for _, lease := range parse.DHCPLeases(string(content), now) {
		events = append(events, domain.DetectionEvent{
			MAC:       lease.MAC,
			IP:        lease.IP,
			Hostname:  lease.Hostname,
			Method:    domain.DetectDHCP,
			Timestamp: now,
		})
	}
	return events, nil
}

func findLeaseFile() string {
	for _, path := range defaultLeasePaths {
		if info, err := os.Stat(path); err == nil && !info.IsDir() {
			return path
		}
	}
	return ""
}
