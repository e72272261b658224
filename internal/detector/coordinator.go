package detector

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"whereabouts/internal/domain"
	"whereabouts/internal/logging"
	"whereabouts/internal/positioning"
	"whereabouts/internal/vendorlookup"
)

// streamRestartDelay is how long a failed streaming detector waits
// before its capture is restarted.
const streamRestartDelay = 5 * time.Second

// Store is the slice of the repository the coordinator writes through.
type Store interface {
	UpsertByMAC(ctx context.Context, event domain.DetectionEvent) (*domain.Asset, bool, error)
	SetVendorInfo(ctx context.Context, assetID int64, vendor, deviceType, country string, isVM bool) error
	RecordProbe(ctx context.Context, record domain.ProbeRecord) error
	AddSignalReading(ctx context.Context, reading domain.SignalReading) error
}

// VendorResolver resolves a MAC address to manufacturer data.
type VendorResolver interface {
	Lookup(ctx context.Context, mac string) (vendorlookup.VendorInfo, error)
}

// GroupAssigner folds a randomized-MAC asset into a device group.
type GroupAssigner interface {
	Assign(ctx context.Context, asset *domain.Asset) (*domain.DeviceGroup, error)
}

// Coordinator owns the detector lifecycle and funnels every detection
// into the repository. A detector whose Start fails is marked disabled
// with the reason and the rest keep running.
type Coordinator struct {
	mu        sync.Mutex
	detectors []Detector
	statuses  map[string]*Status

	store   Store
	vendors VendorResolver
	grouper GroupAssigner

	localMonitor *domain.Monitor
	model        positioning.Model

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// CoordinatorOption configures a Coordinator.
type CoordinatorOption func(*Coordinator)

// WithVendorResolver enables manufacturer lookup for newly seen devices.
func WithVendorResolver(v VendorResolver) CoordinatorOption {
	return func(c *Coordinator) { c.vendors = v }
}

// WithGrouper enables fingerprint grouping for randomized-MAC devices.
func WithGrouper(g GroupAssigner) CoordinatorOption {
	return func(c *Coordinator) { c.grouper = g }
}

// WithLocalMonitor attributes probe signal readings to this station,
// using the model to estimate distance.
func WithLocalMonitor(monitor *domain.Monitor, model positioning.Model) CoordinatorOption {
	return func(c *Coordinator) {
		c.localMonitor = monitor
		c.model = model
	}
}

// NewCoordinator creates a coordinator writing through the given store.
func NewCoordinator(store Store, opts ...CoordinatorOption) *Coordinator {
	c := &Coordinator{
		store:    store,
		statuses: make(map[string]*Status),
		model:    positioning.DefaultModel(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Register adds a detector. Must be called before Start.
func (c *Coordinator) Register(d Detector) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	name := d.Name()
	if _, exists := c.statuses[name]; exists {
		return fmt.Errorf("detector %s already registered", name)
	}
	c.detectors = append(c.detectors, d)
	c.statuses[name] = &Status{Name: name}
	return nil
}

// Start brings up every registered detector and begins their loops.
func (c *Coordinator) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	ctx, c.cancel = context.WithCancel(ctx)
	logger := logging.FromContext(ctx)

	for _, d := range c.detectors {
		status := c.statuses[d.Name()]
		if err := d.Start(ctx); err != nil {
			status.Enabled = false
			status.Reason = err.Error()
			logger.Warn().Str("detector", d.Name()).Err(err).Msg("detector disabled")
			continue
		}
		status.Enabled = true

		switch det := d.(type) {
		case Streamer:
			c.wg.Add(1)
			go func() {
				defer c.wg.Done()
				c.runStream(ctx, det)
			}()
		case Poller:
			c.wg.Add(1)
			go func() {
				defer c.wg.Done()
				c.runPolling(ctx, det)
			}()
		default:
			return fmt.Errorf("detector %s is neither a poller nor a streamer", d.Name())
		}
		logger.Info().Str("detector", d.Name()).Msg("detector started")
	}

	return nil
}

// Stop cancels all detector loops and waits for them to finish.
func (c *Coordinator) Stop() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.cancel != nil {
		c.cancel()
	}
	c.wg.Wait()

	for _, d := range c.detectors {
		if err := d.Stop(); err != nil {
			return fmt.Errorf("failed to stop detector %s: %w", d.Name(), err)
		}
	}
	return nil
}

// Statuses reports the state of every registered detector, sorted by
// name.
func (c *Coordinator) Statuses() []Status {
	c.mu.Lock()
	defer c.mu.Unlock()

	statuses := make([]Status, 0, len(c.statuses))
	for _, status := range c.statuses {
		statuses = append(statuses, *status)
	}
	sort.Slice(statuses, func(i, j int) bool { return statuses[i].Name < statuses[j].Name })
	return statuses
}

// runStream keeps a streaming detector's capture alive, restarting it
// after failures until the context is cancelled.
func (c *Coordinator) runStream(ctx context.Context, s Streamer) {
	logger := logging.FromContext(ctx)
	emit := func(event domain.DetectionEvent) {
		c.consume(ctx, event)
	}

	for {
		err := s.Stream(ctx, emit)
		if ctx.Err() != nil {
			return
		}
		if err != nil {
			logger.Error().Str("detector", s.Name()).Err(err).Msg("capture stream failed, restarting")
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(streamRestartDelay):
		}
	}
}

// runPolling runs a poller on its schedule, with an immediate first
// poll. Wakeable pollers are additionally polled when their source
// signals a change.
func (c *Coordinator) runPolling(ctx context.Context, p Poller) {
	var wake <-chan struct{}
	if w, ok := p.(Wakeable); ok {
		wake = w.Wake()
	}

	c.pollOnce(ctx, p)

	ticker := time.NewTicker(p.Interval())
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.pollOnce(ctx, p)
		case <-wake:
			c.pollOnce(ctx, p)
		}
	}
}

func (c *Coordinator) pollOnce(ctx context.Context, p Poller) {
	logger := logging.FromContext(ctx)
	events, err := p.Poll(ctx)
	if err != nil {
		if ctx.Err() == nil {
			logger.Error().Str("detector", p.Name()).Err(err).Msg("poll failed")
		}
		return
	}
	for _, event := range events {
		c.consume(ctx, event)
	}
}

// consume records one detection. Failures are logged and the event is
// dropped; the detectors keep running.
func (c *Coordinator) consume(ctx context.Context, event domain.DetectionEvent) {
	logger := logging.FromContext(ctx)

	asset, isNew, err := c.store.UpsertByMAC(ctx, event)
	if err != nil {
		logger.Error().Str("mac", event.MAC).Err(err).Msg("failed to record detection")
		return
	}

	if isNew {
		logger.Info().
			Str("mac", asset.MAC).
			Str("method", string(event.Method)).
			Bool("randomized", asset.IsRandomizedMAC).
			Msg("new device detected")
		c.resolveVendor(ctx, asset)
	}

	if event.Method == domain.DetectProbe {
		c.recordProbe(ctx, asset, event)
	}
}

// resolveVendor looks up and stores manufacturer data for a newly seen
// asset.
func (c *Coordinator) resolveVendor(ctx context.Context, asset *domain.Asset) {
	if c.vendors == nil {
		return
	}
	logger := logging.FromContext(ctx)

	info, err := c.vendors.Lookup(ctx, asset.MAC)
	if err != nil {
		logger.Warn().Str("mac", asset.MAC).Err(err).Msg("vendor lookup failed")
		return
	}
	if !info.Found() {
		return
	}
	if err := c.store.SetVendorInfo(ctx, asset.ID, info.Vendor, info.DeviceType, info.Country, info.IsVirtualMachine); err != nil {
		logger.Error().Str("mac", asset.MAC).Err(err).Msg("failed to store vendor info")
	}
}

// recordProbe stores probe history and, when this station knows its own
// monitor identity, a per-monitor signal reading. Randomized MACs are
// then run through the fingerprint grouper.
func (c *Coordinator) recordProbe(ctx context.Context, asset *domain.Asset, event domain.DetectionEvent) {
	logger := logging.FromContext(ctx)

	err := c.store.RecordProbe(ctx, domain.ProbeRecord{
		AssetID:        asset.ID,
		Timestamp:      event.Timestamp,
		SignalStrength: event.SignalStrength,
		SSID:           event.SSID,
	})
	if err != nil {
		logger.Error().Str("mac", asset.MAC).Err(err).Msg("failed to record probe")
		return
	}

	if c.localMonitor != nil && event.SignalStrength != nil {
		reading := domain.SignalReading{
			AssetID:           asset.ID,
			MonitorID:         c.localMonitor.ID,
			SignalStrength:    *event.SignalStrength,
			EstimatedDistance: c.model.Distance(*event.SignalStrength),
			Timestamp:         event.Timestamp,
		}
		if err := c.store.AddSignalReading(ctx, reading); err != nil {
			logger.Error().Str("mac", asset.MAC).Err(err).Msg("failed to record signal reading")
		}
	}

	if c.grouper != nil && asset.IsRandomizedMAC {
		if _, err := c.grouper.Assign(ctx, asset); err != nil {
			logger.Warn().Str("mac", asset.MAC).Err(err).Msg("fingerprint grouping failed")
		}
	}
}
