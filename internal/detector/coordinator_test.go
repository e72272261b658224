package detector

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"whereabouts/internal/domain"
	"whereabouts/internal/positioning"
	"whereabouts/internal/vendorlookup"
)

// ============================================================================
// Fakes
// ============================================================================

type fakeStore struct {
	mu       sync.Mutex
	assets   map[string]*domain.Asset
	nextID   int64
	probes   []domain.ProbeRecord
	readings []domain.SignalReading
	vendors  map[int64]string
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		assets:  make(map[string]*domain.Asset),
		vendors: make(map[int64]string),
	}
}

func (s *fakeStore) UpsertByMAC(ctx context.Context, event domain.DetectionEvent) (*domain.Asset, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if asset, ok := s.assets[event.MAC]; ok {
		asset.TimesSeen++
		snapshot := *asset
		return &snapshot, false, nil
	}
	s.nextID++
	asset := &domain.Asset{
		ID:              s.nextID,
		MAC:             event.MAC,
		IsRandomizedMAC: domain.IsRandomizedMAC(event.MAC),
		TimesSeen:       1,
	}
	s.assets[event.MAC] = asset
	snapshot := *asset
	return &snapshot, true, nil
}

func (s *fakeStore) SetVendorInfo(ctx context.Context, assetID int64, vendor, deviceType, country string, isVM bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.vendors[assetID] = vendor
	return nil
}

func (s *fakeStore) RecordProbe(ctx context.Context, record domain.ProbeRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.probes = append(s.probes, record)
	return nil
}

func (s *fakeStore) AddSignalReading(ctx context.Context, reading domain.SignalReading) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.readings = append(s.readings, reading)
	return nil
}

func (s *fakeStore) upsertCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.assets)
}

type fakeVendors struct {
	info    vendorlookup.VendorInfo
	lookups []string
}

func (f *fakeVendors) Lookup(ctx context.Context, mac string) (vendorlookup.VendorInfo, error) {
	f.lookups = append(f.lookups, mac)
	return f.info, nil
}

type fakeGrouper struct {
	assigned []string
}

func (f *fakeGrouper) Assign(ctx context.Context, asset *domain.Asset) (*domain.DeviceGroup, error) {
	f.assigned = append(f.assigned, asset.MAC)
	return nil, nil
}

type stubPoller struct {
	name   string
	events []domain.DetectionEvent
	fail   error
}

func (p *stubPoller) Name() string                   { return p.name }
func (p *stubPoller) Method() domain.DetectionMethod { return domain.DetectARP }
func (p *stubPoller) Start(ctx context.Context) error {
	return p.fail
}
func (p *stubPoller) Stop() error             { return nil }
func (p *stubPoller) Interval() time.Duration { return time.Hour }
func (p *stubPoller) Poll(ctx context.Context) ([]domain.DetectionEvent, error) {
	return p.events, nil
}

// ============================================================================
// Consume pipeline
// ============================================================================

func intp(v int) *int { return &v }

func TestConsumeResolvesVendorForNewDevice(t *testing.T) {
	store := newFakeStore()
	vendors := &fakeVendors{info: vendorlookup.VendorInfo{Vendor: "Apple, Inc.", DeviceType: "Mobile Device"}}
	c := NewCoordinator(store, WithVendorResolver(vendors))

	event := domain.DetectionEvent{
		MAC:       "A4:83:E7:11:22:33",
		IP:        "192.168.1.50",
		Method:    domain.DetectARP,
		Timestamp: time.Now(),
	}
	c.consume(context.Background(), event)
	c.consume(context.Background(), event)

	if len(vendors.lookups) != 1 {
		t.Fatalf("vendor lookups = %d, want 1 (only on first sight)", len(vendors.lookups))
	}
	if store.vendors[1] != "Apple, Inc." {
		t.Errorf("stored vendor = %q", store.vendors[1])
	}
	if len(store.probes) != 0 {
		t.Errorf("ARP detection recorded %d probes", len(store.probes))
	}
}

func TestConsumeSkipsUnresolvedVendor(t *testing.T) {
	store := newFakeStore()
	vendors := &fakeVendors{info: vendorlookup.VendorInfo{Source: "none"}}
	c := NewCoordinator(store, WithVendorResolver(vendors))

	c.consume(context.Background(), domain.DetectionEvent{
		MAC: "A4:83:E7:11:22:33", Method: domain.DetectARP, Timestamp: time.Now(),
	})

	if len(store.vendors) != 0 {
		t.Errorf("unresolved vendor stored: %v", store.vendors)
	}
}

func TestConsumeProbePipeline(t *testing.T) {
	store := newFakeStore()
	grouper := &fakeGrouper{}
	monitor := &domain.Monitor{ID: 3, IsLocal: true}
	model := positioning.DefaultModel()
	c := NewCoordinator(store, WithGrouper(grouper), WithLocalMonitor(monitor, model))

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	c.consume(context.Background(), domain.DetectionEvent{
		MAC:            "02:11:22:33:44:55",
		SignalStrength: intp(-59),
		SSID:           "HomeNet",
		Method:         domain.DetectProbe,
		Timestamp:      now,
	})

	if len(store.probes) != 1 {
		t.Fatalf("probes = %d, want 1", len(store.probes))
	}
	if store.probes[0].SSID != "HomeNet" {
		t.Errorf("probe SSID = %q", store.probes[0].SSID)
	}

	if len(store.readings) != 1 {
		t.Fatalf("readings = %d, want 1", len(store.readings))
	}
	reading := store.readings[0]
	if reading.MonitorID != 3 {
		t.Errorf("monitor ID = %d", reading.MonitorID)
	}
	if reading.SignalStrength != -59 {
		t.Errorf("signal = %d", reading.SignalStrength)
	}
	// Signal at the reference power clamps to the model floor.
	if reading.EstimatedDistance != positioning.MinDistanceMeters {
		t.Errorf("distance = %v", reading.EstimatedDistance)
	}

	if len(grouper.assigned) != 1 || grouper.assigned[0] != "02:11:22:33:44:55" {
		t.Errorf("grouper assignments = %v", grouper.assigned)
	}
}

func TestConsumeGlobalMACSkipsGrouper(t *testing.T) {
	store := newFakeStore()
	grouper := &fakeGrouper{}
	c := NewCoordinator(store, WithGrouper(grouper))

	c.consume(context.Background(), domain.DetectionEvent{
		MAC:            "A4:83:E7:11:22:33",
		SignalStrength: intp(-60),
		Method:         domain.DetectProbe,
		Timestamp:      time.Now(),
	})

	if len(grouper.assigned) != 0 {
		t.Errorf("global MAC sent to grouper: %v", grouper.assigned)
	}
}

func TestConsumeProbeWithoutSignal(t *testing.T) {
	store := newFakeStore()
	monitor := &domain.Monitor{ID: 3}
	c := NewCoordinator(store, WithLocalMonitor(monitor, positioning.DefaultModel()))

	c.consume(context.Background(), domain.DetectionEvent{
		MAC: "A4:83:E7:11:22:33", Method: domain.DetectProbe, Timestamp: time.Now(),
	})

	if len(store.probes) != 1 {
		t.Fatalf("probes = %d, want 1", len(store.probes))
	}
	if len(store.readings) != 0 {
		t.Errorf("signal-less probe produced %d readings", len(store.readings))
	}
}

// ============================================================================
// Lifecycle
// ============================================================================

func TestCoordinatorLifecycle(t *testing.T) {
	store := newFakeStore()
	c := NewCoordinator(store)

	working := &stubPoller{name: "working", events: []domain.DetectionEvent{
		{MAC: "A4:83:E7:11:22:33", Method: domain.DetectARP, Timestamp: time.Now()},
	}}
	broken := &stubPoller{name: "broken", fail: errors.New("tshark not found")}

	if err := c.Register(working); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := c.Register(broken); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := c.Register(&stubPoller{name: "working"}); err == nil {
		t.Fatal("duplicate registration accepted")
	}

	if err := c.Start(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// The first poll runs immediately on start.
	deadline := time.Now().Add(2 * time.Second)
	for store.upsertCount() == 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if store.upsertCount() != 1 {
		t.Fatalf("assets = %d, want 1", store.upsertCount())
	}

	if err := c.Stop(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	statuses := c.Statuses()
	if len(statuses) != 2 {
		t.Fatalf("statuses = %+v", statuses)
	}
	// Sorted by name: broken first.
	if statuses[0].Enabled || statuses[0].Reason == "" {
		t.Errorf("broken detector status = %+v", statuses[0])
	}
	if !statuses[1].Enabled {
		t.Errorf("working detector status = %+v", statuses[1])
	}
}
