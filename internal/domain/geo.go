package domain

import "math"

// earthRadiusMeters is the mean Earth radius used by the haversine and
// destination-point formulas.
const earthRadiusMeters = 6371000.0

// GeoPoint is an immutable geographic coordinate.
type GeoPoint struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// GeoLocation is a coordinate with an accuracy radius in meters, as
// produced by GPS fixes and geolocation services.
type GeoLocation struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Accuracy  float64 `json:"accuracy"`
}

// Point returns the location's coordinate without its accuracy.
func (l GeoLocation) Point() GeoPoint {
	return GeoPoint{Latitude: l.Latitude, Longitude: l.Longitude}
}

// DistanceTo returns the great-circle distance to other in meters,
// computed with the haversine formula.
func (p GeoPoint) DistanceTo(other GeoPoint) float64 {
	lat1 := radians(p.Latitude)
	lat2 := radians(other.Latitude)
	dLat := radians(other.Latitude - p.Latitude)
	dLon := radians(other.Longitude - p.Longitude)

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLon/2)*math.Sin(dLon/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))

	return earthRadiusMeters * c
}

// BearingTo returns the initial bearing toward other in radians,
// measured clockwise from north.
func (p GeoPoint) BearingTo(other GeoPoint) float64 {
	lat1 := radians(p.Latitude)
	lat2 := radians(other.Latitude)
	dLon := radians(other.Longitude - p.Longitude)

	x := math.Sin(dLon) * math.Cos(lat2)
	y := math.Cos(lat1)*math.Sin(lat2) - math.Sin(lat1)*math.Cos(lat2)*math.Cos(dLon)

	return math.Atan2(x, y)
}

// Destination returns the point reached by travelling the given distance
// in meters along the given bearing in radians.
func (p GeoPoint) Destination(distance, bearing float64) GeoPoint {
	lat1 := radians(p.Latitude)
	lon1 := radians(p.Longitude)
	angular := distance / earthRadiusMeters

	lat2 := math.Asin(
		math.Sin(lat1)*math.Cos(angular) +
			math.Cos(lat1)*math.Sin(angular)*math.Cos(bearing))
	lon2 := lon1 + math.Atan2(
		math.Sin(bearing)*math.Sin(angular)*math.Cos(lat1),
		math.Cos(angular)-math.Sin(lat1)*math.Sin(lat2))

	return GeoPoint{Latitude: degrees(lat2), Longitude: degrees(lon2)}
}

func radians(deg float64) float64 { return deg * math.Pi / 180 }
func degrees(rad float64) float64 { return rad * 180 / math.Pi }
