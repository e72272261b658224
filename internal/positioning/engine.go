package positioning

import (
	"math"

	"whereabouts/internal/domain"
)

// MonitorReading is an averaged signal observation from one station, the
// per-station input to the engine.
type MonitorReading struct {
	MonitorLocation domain.GeoPoint
	SignalStrength  int
	// EstimatedDistance overrides the model when positive. The engine
	// fills it from the averaged signal otherwise.
	EstimatedDistance float64
}

// Engine computes position estimates from monitor readings.
type Engine struct {
	model Model
	// preference biases two-circle intersection selection toward a known
	// center (for example the home's midpoint). Nil picks the midpoint of
	// both intersections.
	preference *domain.GeoPoint
}

// NewEngine creates an engine using the given path loss model.
func NewEngine(model Model, preference *domain.GeoPoint) *Engine {
	return &Engine{model: model, preference: preference}
}

// Model returns the engine's path loss model.
func (e *Engine) Model() Model { return e.model }

// Estimate computes a position from any number of station readings.
//
//   - no readings: nil.
//   - one station: the device is placed at the modeled distance on a fixed
//     northward bearing (direction is unknowable); accuracy twice the
//     distance, confidence 0.2.
//   - two stations: circle-circle bilateration.
//   - three or more: every pair is bilaterated and the results combined as
//     a confidence-weighted centroid.
func (e *Engine) Estimate(readings []MonitorReading) *domain.PositionEstimate {
	switch len(readings) {
	case 0:
		return nil
	case 1:
		return e.singleStation(readings[0])
	case 2:
		return e.Bilaterate(readings[0], readings[1])
	default:
		return e.weightedPairs(readings)
	}
}

func (e *Engine) distance(r MonitorReading) float64 {
	if r.EstimatedDistance > 0 {
		return r.EstimatedDistance
	}
	return e.model.Distance(r.SignalStrength)
}

func (e *Engine) singleStation(r MonitorReading) *domain.PositionEstimate {
	distance := e.distance(r)
	return &domain.PositionEstimate{
		Location:   r.MonitorLocation.Destination(distance, 0),
		Accuracy:   distance * 2,
		Confidence: 0.2,
	}
}

// Bilaterate intersects the two range circles around the stations.
// Degenerate geometry (coincident stations) yields nil, not an error.
func (e *Engine) Bilaterate(r1, r2 MonitorReading) *domain.PositionEstimate {
	d1 := e.distance(r1)
	d2 := e.distance(r2)
	p1 := r1.MonitorLocation
	p2 := r2.MonitorLocation

	separation := p1.DistanceTo(p2)
	if separation == 0 {
		return nil
	}

	if separation > d1+d2 {
		// Disjoint circles: the device is out of both modeled ranges.
		// Return a distance-weighted point on the connecting line as a
		// deliberate low-confidence placeholder.
		weight1 := 1 - d1/(d1+d2)
		location := p1.Destination(separation*weight1, p1.BearingTo(p2))
		return &domain.PositionEstimate{
			Location:   location,
			Accuracy:   math.Max(d1, d2),
			Confidence: 0.3,
		}
	}

	if separation < math.Abs(d1-d2) {
		// One circle nested in the other: place at the edge of the smaller
		// circle toward the other station.
		var location domain.GeoPoint
		if d1 < d2 {
			location = p1.Destination(d1, p1.BearingTo(p2))
		} else {
			location = p2.Destination(d2, p2.BearingTo(p1))
		}
		return &domain.PositionEstimate{
			Location:   location,
			Accuracy:   math.Min(d1, d2),
			Confidence: 0.4,
		}
	}

	// True intersection. In a local frame with p1 at the origin and p2 on
	// the axis: a is the distance from p1 to the chord between the
	// intersection points, h the half-chord length.
	a := (d1*d1 - d2*d2 + separation*separation) / (2 * separation)
	h := math.Sqrt(math.Max(0, d1*d1-a*a))

	bearing := p1.BearingTo(p2)
	chordCenter := p1.Destination(a, bearing)
	i1 := chordCenter.Destination(h, bearing+math.Pi/2)
	i2 := chordCenter.Destination(h, bearing-math.Pi/2)

	var chosen domain.GeoPoint
	if e.preference != nil {
		if e.preference.DistanceTo(i1) < e.preference.DistanceTo(i2) {
			chosen = i1
		} else {
			chosen = i2
		}
	} else {
		chosen = domain.GeoPoint{
			Latitude:  (i1.Latitude + i2.Latitude) / 2,
			Longitude: (i1.Longitude + i2.Longitude) / 2,
		}
	}

	confidence := 0.5
	if h > 0.5 {
		confidence = 0.7
	}

	return &domain.PositionEstimate{
		Location:   chosen,
		Accuracy:   math.Max(i1.DistanceTo(i2)/2, 1.0),
		Confidence: confidence,
	}
}

// weightedPairs bilaterates every station pair and combines the estimates
// as a confidence-weighted centroid of latitude, longitude and accuracy.
// Full trilateration buys little over this for noisy indoor RSSI.
func (e *Engine) weightedPairs(readings []MonitorReading) *domain.PositionEstimate {
	var estimates []*domain.PositionEstimate
	for i := 0; i < len(readings); i++ {
		for j := i + 1; j < len(readings); j++ {
			if est := e.Bilaterate(readings[i], readings[j]); est != nil {
				estimates = append(estimates, est)
			}
		}
	}
	if len(estimates) == 0 {
		return nil
	}

	var totalWeight, lat, lon, accuracy float64
	for _, est := range estimates {
		totalWeight += est.Confidence
		lat += est.Location.Latitude * est.Confidence
		lon += est.Location.Longitude * est.Confidence
		accuracy += est.Accuracy * est.Confidence
	}
	if totalWeight == 0 {
		return nil
	}

	return &domain.PositionEstimate{
		Location: domain.GeoPoint{
			Latitude:  lat / totalWeight,
			Longitude: lon / totalWeight,
		},
		Accuracy:   math.Max(accuracy/totalWeight, 1.0),
		Confidence: math.Min(1.0, totalWeight/float64(len(estimates))),
	}
}
