package domain

import "time"

// Monitor is a fixed monitoring station contributing signal readings.
// Monitors are created on first registration or bootstrap, mutated by
// heartbeats, and never deleted automatically.
type Monitor struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Latitude  float64   `json:"latitude"`
	Longitude float64   `json:"longitude"`
	APIKey    string    `json:"api_key,omitempty"`
	IsLocal   bool      `json:"is_local"`
	Active    bool      `json:"active"`
	LastSeen  time.Time `json:"last_seen"`
	CreatedAt time.Time `json:"created_at"`
}

// Location returns the monitor's fixed coordinate.
func (m *Monitor) Location() GeoPoint {
	return GeoPoint{Latitude: m.Latitude, Longitude: m.Longitude}
}
