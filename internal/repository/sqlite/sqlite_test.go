package sqlite

import (
	"context"
	"fmt"
	"reflect"
	"sync"
	"testing"
	"time"

	"whereabouts/internal/domain"
	"whereabouts/internal/repository"
)

// Compile-time interface checks.
var (
	_ repository.AssetRepository = (*Repository)(nil)
	_ repository.MonitorRegistry = (*Repository)(nil)
)

// ============================================================================
// Test Helpers
// ============================================================================

// newTestRepo creates an in-memory SQLite repository for testing
func newTestRepo(t *testing.T) *Repository {
	t.Helper()
	repo, err := New(":memory:")
	if err != nil {
		t.Fatalf("failed to create test repository: %v", err)
	}
	t.Cleanup(func() {
		repo.Close()
	})
	return repo
}

// assertNoError fails the test if err is not nil
func assertNoError(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

// assertEqual fails the test if expected != actual
func assertEqual(t *testing.T, expected, actual interface{}) {
	t.Helper()
	if !reflect.DeepEqual(expected, actual) {
		t.Fatalf("expected %v, got %v", expected, actual)
	}
}

func intp(v int) *int { return &v }

func probeEvent(mac string, signal int, ssid string, at time.Time) domain.DetectionEvent {
	return domain.DetectionEvent{
		MAC:            mac,
		SignalStrength: intp(signal),
		SSID:           ssid,
		Method:         domain.DetectProbe,
		Timestamp:      at,
	}
}

// ============================================================================
// Asset Tests
// ============================================================================

func TestConcurrentUpsertsInMemory(t *testing.T) {
	// The in-memory database lives on a single pool connection; concurrent
	// writers must never land on a fresh, schema-less one.
	repo := newTestRepo(t)
	ctx := context.Background()
	now := time.Now().UTC()

	var wg sync.WaitGroup
	errs := make(chan error, 8)
	for i := 0; i < 8; i++ {
		mac := fmt.Sprintf("a4:83:e7:00:00:%02x", i)
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _, err := repo.UpsertByMAC(ctx, probeEvent(mac, -60, "", now))
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		assertNoError(t, err)
	}

	assets, err := repo.ListAssets(ctx)
	assertNoError(t, err)
	assertEqual(t, 8, len(assets))
}

func TestUpsertByMACCreatesAsset(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	asset, isNew, err := repo.UpsertByMAC(ctx, probeEvent("a4:83:e7:11:22:33", -62, "HomeNet", now))
	assertNoError(t, err)
	if !isNew {
		t.Fatal("first sighting not reported as new")
	}
	assertEqual(t, "A4:83:E7:11:22:33", asset.MAC)
	assertEqual(t, int64(1), asset.TimesSeen)
	assertEqual(t, -62, *asset.LastSignalStrength)
	assertEqual(t, domain.DetectProbe, asset.LastDetectionMethod)
	if asset.IsRandomizedMAC {
		t.Error("global MAC flagged as randomized")
	}
}

func TestUpsertByMACBumpsExisting(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	start := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	_, _, err := repo.UpsertByMAC(ctx, probeEvent("a4:83:e7:11:22:33", -62, "", start))
	assertNoError(t, err)

	later := start.Add(time.Minute)
	asset, isNew, err := repo.UpsertByMAC(ctx, domain.DetectionEvent{
		MAC:       "A4-83-E7-11-22-33",
		IP:        "192.168.1.50",
		Hostname:  "phone",
		Method:    domain.DetectARP,
		Timestamp: later,
	})
	assertNoError(t, err)
	if isNew {
		t.Fatal("second sighting reported as new")
	}
	assertEqual(t, int64(2), asset.TimesSeen)
	assertEqual(t, "192.168.1.50", asset.IP)
	assertEqual(t, "phone", asset.Hostname)
	assertEqual(t, domain.DetectARP, asset.LastDetectionMethod)
	// Signal from the first sighting survives a signal-less detection.
	assertEqual(t, -62, *asset.LastSignalStrength)
	if !asset.LastSeen.After(asset.FirstSeen) {
		t.Errorf("last_seen %v not after first_seen %v", asset.LastSeen, asset.FirstSeen)
	}
}

func TestUpsertByMACFlagsRandomized(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	asset, _, err := repo.UpsertByMAC(ctx, probeEvent("02:11:22:33:44:55", -70, "", time.Now()))
	assertNoError(t, err)
	if !asset.IsRandomizedMAC {
		t.Error("locally administered MAC not flagged")
	}
}

func TestAssetByMACUnknown(t *testing.T) {
	repo := newTestRepo(t)

	asset, err := repo.AssetByMAC(context.Background(), "00:11:22:33:44:55")
	assertNoError(t, err)
	if asset != nil {
		t.Fatalf("unknown MAC returned %+v", asset)
	}
}

func TestListAssetsSeenSince(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	_, _, err := repo.UpsertByMAC(ctx, probeEvent("a4:83:e7:00:00:01", -60, "", now.Add(-2*time.Hour)))
	assertNoError(t, err)
	_, _, err = repo.UpsertByMAC(ctx, probeEvent("a4:83:e7:00:00:02", -60, "", now.Add(-time.Minute)))
	assertNoError(t, err)

	recent, err := repo.ListAssetsSeenSince(ctx, now.Add(-10*time.Minute))
	assertNoError(t, err)
	assertEqual(t, 1, len(recent))
	assertEqual(t, "A4:83:E7:00:00:02", recent[0].MAC)

	all, err := repo.ListAssets(ctx)
	assertNoError(t, err)
	assertEqual(t, 2, len(all))
}

func TestSetVendorInfo(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	asset, _, err := repo.UpsertByMAC(ctx, probeEvent("00:50:56:aa:bb:cc", -50, "", time.Now()))
	assertNoError(t, err)

	assertNoError(t, repo.SetVendorInfo(ctx, asset.ID, "VMware, Inc.", "Virtual Machine", "US", true))

	got, err := repo.AssetByMAC(ctx, asset.MAC)
	assertNoError(t, err)
	assertEqual(t, "VMware, Inc.", got.Vendor)
	assertEqual(t, "Virtual Machine", got.DeviceType)
	assertEqual(t, "US", got.VendorCountry)
	if !got.IsVirtualMachine {
		t.Error("virtual machine flag not stored")
	}
}

// ============================================================================
// Probe History Tests
// ============================================================================

func TestProbeHistoryAndSSIDs(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	asset, _, err := repo.UpsertByMAC(ctx, probeEvent("02:aa:bb:cc:dd:ee", -65, "HomeNet", now))
	assertNoError(t, err)

	for i, ssid := range []string{"HomeNet", "Work", "HomeNet"} {
		assertNoError(t, repo.RecordProbe(ctx, domain.ProbeRecord{
			AssetID:        asset.ID,
			Timestamp:      now.Add(time.Duration(i) * time.Minute),
			SignalStrength: intp(-65 - i),
			SSID:           ssid,
		}))
	}

	history, err := repo.ProbeHistory(ctx, asset.ID, now.Add(-time.Hour))
	assertNoError(t, err)
	assertEqual(t, 3, len(history))
	// Oldest first.
	assertEqual(t, -65, *history[0].SignalStrength)
	assertEqual(t, -67, *history[2].SignalStrength)

	ssids, err := repo.SSIDHistory(ctx, asset.ID)
	assertNoError(t, err)
	assertEqual(t, 2, len(ssids))
	// Most recently probed first.
	assertEqual(t, "HomeNet", ssids[0])
}

func TestProbeHistoryCutoff(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	asset, _, err := repo.UpsertByMAC(ctx, probeEvent("02:aa:bb:cc:dd:ee", -65, "", now))
	assertNoError(t, err)

	assertNoError(t, repo.RecordProbe(ctx, domain.ProbeRecord{
		AssetID: asset.ID, Timestamp: now.Add(-25 * time.Hour), SignalStrength: intp(-60),
	}))
	assertNoError(t, repo.RecordProbe(ctx, domain.ProbeRecord{
		AssetID: asset.ID, Timestamp: now, SignalStrength: intp(-61),
	}))

	history, err := repo.ProbeHistory(ctx, asset.ID, now.Add(-24*time.Hour))
	assertNoError(t, err)
	assertEqual(t, 1, len(history))
}

// ============================================================================
// Signal Reading and Position Tests
// ============================================================================

func TestSignalReadings(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	asset, _, err := repo.UpsertByMAC(ctx, probeEvent("a4:83:e7:11:22:33", -60, "", now))
	assertNoError(t, err)
	monitor, err := repo.GetOrCreateLocalMonitor(ctx, "den", 40.0, -75.0)
	assertNoError(t, err)

	for i := 0; i < 3; i++ {
		assertNoError(t, repo.AddSignalReading(ctx, domain.SignalReading{
			AssetID:           asset.ID,
			MonitorID:         monitor.ID,
			SignalStrength:    -60 - i,
			EstimatedDistance: 5.0 + float64(i),
			Timestamp:         now.Add(time.Duration(i) * time.Second),
		}))
	}

	readings, err := repo.RecentSignalReadings(ctx, asset.ID, now.Add(-time.Minute))
	assertNoError(t, err)
	assertEqual(t, 3, len(readings))
	// Newest first.
	assertEqual(t, -62, readings[0].SignalStrength)
	assertEqual(t, monitor.ID, readings[0].MonitorID)
}

func TestAverageSignalsSince(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	asset, _, err := repo.UpsertByMAC(ctx, probeEvent("a4:83:e7:11:22:33", -60, "", now))
	assertNoError(t, err)

	for _, sig := range []int{-60, -64} {
		assertNoError(t, repo.RecordProbe(ctx, domain.ProbeRecord{
			AssetID: asset.ID, Timestamp: now, SignalStrength: intp(sig),
		}))
	}
	// Stale probe outside the window.
	assertNoError(t, repo.RecordProbe(ctx, domain.ProbeRecord{
		AssetID: asset.ID, Timestamp: now.Add(-time.Hour), SignalStrength: intp(-90),
	}))

	averages, err := repo.AverageSignalsSince(ctx, now.Add(-time.Minute))
	assertNoError(t, err)
	assertEqual(t, 1, len(averages))
	assertEqual(t, -62, averages["A4:83:E7:11:22:33"])
}

func TestUpdatePosition(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	asset, _, err := repo.UpsertByMAC(ctx, probeEvent("a4:83:e7:11:22:33", -60, "", now))
	assertNoError(t, err)

	estimate := domain.PositionEstimate{
		Location:   domain.GeoPoint{Latitude: 40.0001, Longitude: -75.0002},
		Accuracy:   8.5,
		Confidence: 0.7,
	}
	assertNoError(t, repo.UpdatePosition(ctx, asset.ID, estimate, now))

	got, err := repo.AssetByMAC(ctx, asset.MAC)
	assertNoError(t, err)
	assertEqual(t, 40.0001, *got.LastLatitude)
	assertEqual(t, -75.0002, *got.LastLongitude)
	assertEqual(t, 8.5, *got.PositionAccuracy)
	if got.PositionUpdatedAt == nil {
		t.Fatal("position timestamp not stored")
	}
}

// ============================================================================
// Device Group Tests
// ============================================================================

func TestDeviceGroupLifecycle(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	asset, _, err := repo.UpsertByMAC(ctx, probeEvent("02:11:22:33:44:55", -70, "", now))
	assertNoError(t, err)

	group := &domain.DeviceGroup{
		PrimaryMAC:      asset.MAC,
		FingerprintData: `{"avg_signal":-70}`,
		ConfidenceScore: 1.0,
		FirstSeen:       now,
		LastSeen:        now,
		TimesSeen:       1,
	}
	assertNoError(t, repo.CreateDeviceGroup(ctx, group))
	if group.ID == 0 {
		t.Fatal("group ID not assigned")
	}

	assertNoError(t, repo.AssignAssetToGroup(ctx, asset.ID, group.ID))

	got, err := repo.AssetByMAC(ctx, asset.MAC)
	assertNoError(t, err)
	assertEqual(t, group.ID, *got.DeviceGroupID)

	group.TimesSeen = 2
	group.ConfidenceScore = 0.8
	assertNoError(t, repo.UpdateDeviceGroup(ctx, group))

	groups, err := repo.ListDeviceGroups(ctx)
	assertNoError(t, err)
	assertEqual(t, 1, len(groups))
	assertEqual(t, int64(2), groups[0].TimesSeen)
	assertEqual(t, 0.8, groups[0].ConfidenceScore)
}

// ============================================================================
// Monitor Tests
// ============================================================================

func TestGetOrCreateLocalMonitor(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	created, err := repo.GetOrCreateLocalMonitor(ctx, "den", 40.0, -75.0)
	assertNoError(t, err)
	if created.APIKey == "" {
		t.Fatal("no API key generated")
	}
	if !created.IsLocal || !created.Active {
		t.Errorf("flags = local:%v active:%v", created.IsLocal, created.Active)
	}

	// Second call returns the same row, ignoring the new coordinates.
	again, err := repo.GetOrCreateLocalMonitor(ctx, "other", 1.0, 2.0)
	assertNoError(t, err)
	assertEqual(t, created.ID, again.ID)
	assertEqual(t, created.APIKey, again.APIKey)
	assertEqual(t, 40.0, again.Latitude)
}

func TestMonitorByAPIKey(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	created, err := repo.GetOrCreateLocalMonitor(ctx, "den", 40.0, -75.0)
	assertNoError(t, err)

	got, err := repo.MonitorByAPIKey(ctx, created.APIKey)
	assertNoError(t, err)
	if got == nil {
		t.Fatal("monitor not found by key")
	}
	assertEqual(t, created.ID, got.ID)

	missing, err := repo.MonitorByAPIKey(ctx, "not-a-key")
	assertNoError(t, err)
	if missing != nil {
		t.Fatalf("bogus key returned %+v", missing)
	}
}

func TestRecordHeartbeat(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	created, err := repo.GetOrCreateLocalMonitor(ctx, "den", 40.0, -75.0)
	assertNoError(t, err)
	assertNoError(t, repo.RecordHeartbeat(ctx, created.ID, now))

	monitors, err := repo.ListActiveMonitors(ctx)
	assertNoError(t, err)
	assertEqual(t, 1, len(monitors))
	if !monitors[0].LastSeen.Equal(now) {
		t.Errorf("last_seen = %v, want %v", monitors[0].LastSeen, now)
	}
}

func TestUpdateMonitorLocation(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	created, err := repo.GetOrCreateLocalMonitor(ctx, "den", 0, 0)
	assertNoError(t, err)
	assertNoError(t, repo.UpdateMonitorLocation(ctx, created.ID, 40.5, -75.5))

	monitors, err := repo.ListActiveMonitors(ctx)
	assertNoError(t, err)
	assertEqual(t, 40.5, monitors[0].Latitude)
	assertEqual(t, -75.5, monitors[0].Longitude)
}
