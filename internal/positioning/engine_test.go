package positioning

import (
	"math"
	"testing"

	"whereabouts/internal/domain"
)

// metersPerDegreeLat is close enough for the sub-100m test geometries.
const metersPerDegreeLat = 111195.0

func pointNorthOf(origin domain.GeoPoint, meters float64) domain.GeoPoint {
	return domain.GeoPoint{
		Latitude:  origin.Latitude + meters/metersPerDegreeLat,
		Longitude: origin.Longitude,
	}
}

func TestEstimateNoReadings(t *testing.T) {
	engine := NewEngine(DefaultModel(), nil)
	if got := engine.Estimate(nil); got != nil {
		t.Fatalf("Estimate(nil) = %+v, want nil", got)
	}
}

func TestEstimateSingleStation(t *testing.T) {
	engine := NewEngine(DefaultModel(), nil)
	origin := domain.GeoPoint{Latitude: 40.0, Longitude: -75.0}

	est := engine.Estimate([]MonitorReading{
		{MonitorLocation: origin, EstimatedDistance: 8.0},
	})
	if est == nil {
		t.Fatal("expected an estimate")
	}
	if est.Confidence != 0.2 {
		t.Errorf("confidence = %.2f, want 0.2", est.Confidence)
	}
	if est.Accuracy != 16.0 {
		t.Errorf("accuracy = %.2f, want 16.0", est.Accuracy)
	}
	// Single-station placement is due north of the station.
	if est.Location.Latitude <= origin.Latitude {
		t.Errorf("latitude %.6f not north of station %.6f", est.Location.Latitude, origin.Latitude)
	}
	d := origin.DistanceTo(est.Location)
	if math.Abs(d-8.0) > 0.1 {
		t.Errorf("placed %.2fm from station, want 8.0m", d)
	}
}

func TestBilaterateCoincidentStations(t *testing.T) {
	engine := NewEngine(DefaultModel(), nil)
	p := domain.GeoPoint{Latitude: 40.0, Longitude: -75.0}

	est := engine.Bilaterate(
		MonitorReading{MonitorLocation: p, EstimatedDistance: 5},
		MonitorReading{MonitorLocation: p, EstimatedDistance: 7},
	)
	if est != nil {
		t.Fatalf("coincident stations produced %+v, want nil", est)
	}
}

func TestBilaterateIntersecting(t *testing.T) {
	engine := NewEngine(DefaultModel(), nil)
	p1 := domain.GeoPoint{Latitude: 40.0, Longitude: -75.0}
	p2 := pointNorthOf(p1, 20)

	est := engine.Bilaterate(
		MonitorReading{MonitorLocation: p1, EstimatedDistance: 12},
		MonitorReading{MonitorLocation: p2, EstimatedDistance: 15},
	)
	if est == nil {
		t.Fatal("expected an estimate for overlapping circles")
	}
	if est.Confidence != 0.7 {
		t.Errorf("confidence = %.2f, want 0.7", est.Confidence)
	}
	if est.Accuracy < 1.0 {
		t.Errorf("accuracy = %.2f, want >= 1.0", est.Accuracy)
	}

	// The estimate must lie on each circle to within a meter of its radius.
	d1 := p1.DistanceTo(est.Location)
	d2 := p2.DistanceTo(est.Location)
	if d1 > 12+1 || d2 > 15+1 {
		t.Errorf("estimate %.2fm/%.2fm from stations, radii 12m/15m", d1, d2)
	}
}

func TestBilaterateDisjoint(t *testing.T) {
	engine := NewEngine(DefaultModel(), nil)
	p1 := domain.GeoPoint{Latitude: 40.0, Longitude: -75.0}
	p2 := pointNorthOf(p1, 50)

	est := engine.Bilaterate(
		MonitorReading{MonitorLocation: p1, EstimatedDistance: 10},
		MonitorReading{MonitorLocation: p2, EstimatedDistance: 15},
	)
	if est == nil {
		t.Fatal("expected a placeholder estimate for disjoint circles")
	}
	if est.Confidence != 0.3 {
		t.Errorf("confidence = %.2f, want 0.3", est.Confidence)
	}
	if est.Accuracy != 15 {
		t.Errorf("accuracy = %.2f, want 15 (larger radius)", est.Accuracy)
	}

	// Weighted toward the nearer station: weight1 = 1 - 10/25 = 0.6,
	// so 30m along the 50m line from p1.
	d1 := p1.DistanceTo(est.Location)
	if math.Abs(d1-30) > 0.5 {
		t.Errorf("placed %.2fm from first station, want 30m", d1)
	}
}

func TestBilaterateNested(t *testing.T) {
	engine := NewEngine(DefaultModel(), nil)
	p1 := domain.GeoPoint{Latitude: 40.0, Longitude: -75.0}
	p2 := pointNorthOf(p1, 5)

	est := engine.Bilaterate(
		MonitorReading{MonitorLocation: p1, EstimatedDistance: 30},
		MonitorReading{MonitorLocation: p2, EstimatedDistance: 8},
	)
	if est == nil {
		t.Fatal("expected an estimate for nested circles")
	}
	if est.Confidence != 0.4 {
		t.Errorf("confidence = %.2f, want 0.4", est.Confidence)
	}
	if est.Accuracy != 8 {
		t.Errorf("accuracy = %.2f, want 8 (smaller radius)", est.Accuracy)
	}
	// Edge of the smaller circle toward the larger circle's station.
	d2 := p2.DistanceTo(est.Location)
	if math.Abs(d2-8) > 0.1 {
		t.Errorf("placed %.2fm from smaller circle's station, want 8m", d2)
	}
}

func TestBilateratePreferenceSelectsNearerIntersection(t *testing.T) {
	p1 := domain.GeoPoint{Latitude: 40.0, Longitude: -75.0}
	p2 := pointNorthOf(p1, 20)

	r1 := MonitorReading{MonitorLocation: p1, EstimatedDistance: 15}
	r2 := MonitorReading{MonitorLocation: p2, EstimatedDistance: 15}

	// Bias east of the station line; the eastern intersection wins.
	east := domain.GeoPoint{Latitude: 40.0001, Longitude: -74.99}
	engine := NewEngine(DefaultModel(), &east)
	est := engine.Bilaterate(r1, r2)
	if est == nil {
		t.Fatal("expected an estimate")
	}
	if est.Location.Longitude <= p1.Longitude {
		t.Errorf("longitude %.6f not east of station line %.6f",
			est.Location.Longitude, p1.Longitude)
	}

	// Without a preference the midpoint lands back on the station line.
	unbiased := NewEngine(DefaultModel(), nil).Bilaterate(r1, r2)
	if unbiased == nil {
		t.Fatal("expected an estimate")
	}
	if math.Abs(unbiased.Location.Longitude-p1.Longitude) > 1e-6 {
		t.Errorf("midpoint longitude = %.8f, want %.8f",
			unbiased.Location.Longitude, p1.Longitude)
	}
}

func TestEstimateThreeStations(t *testing.T) {
	engine := NewEngine(DefaultModel(), nil)
	p1 := domain.GeoPoint{Latitude: 40.0, Longitude: -75.0}
	p2 := pointNorthOf(p1, 20)
	p3 := domain.GeoPoint{
		Latitude:  40.0 + 10/metersPerDegreeLat,
		Longitude: -75.0 + 15/(metersPerDegreeLat*math.Cos(radians40())),
	}

	est := engine.Estimate([]MonitorReading{
		{MonitorLocation: p1, EstimatedDistance: 12},
		{MonitorLocation: p2, EstimatedDistance: 12},
		{MonitorLocation: p3, EstimatedDistance: 10},
	})
	if est == nil {
		t.Fatal("expected an estimate from three stations")
	}
	if est.Confidence <= 0.5 || est.Confidence > 1.0 {
		t.Errorf("confidence = %.2f, want in (0.5, 1.0]", est.Confidence)
	}
	if est.Accuracy < 1.0 {
		t.Errorf("accuracy = %.2f, want >= 1.0", est.Accuracy)
	}
	// The centroid stays inside the station cluster's neighborhood.
	if d := p1.DistanceTo(est.Location); d > 30 {
		t.Errorf("estimate %.2fm from first station, want within 30m", d)
	}
}

func radians40() float64 { return 40 * math.Pi / 180 }
