package domain

import "time"

// Asset is a tracked device identified by its canonical MAC address.
type Asset struct {
	ID       int64  `json:"id"`
	MAC      string `json:"mac_address"`
	Nickname string `json:"nickname,omitempty"`
	IP       string `json:"ip_address,omitempty"`
	Hostname string `json:"hostname,omitempty"`

	// LastDetectionMethod is the method of the most recent sighting.
	LastDetectionMethod DetectionMethod `json:"detection_method,omitempty"`

	// Vendor info resolved from the OUI.
	Vendor           string `json:"vendor,omitempty"`
	DeviceType       string `json:"device_type,omitempty"`
	VendorCountry    string `json:"vendor_country,omitempty"`
	IsVirtualMachine bool   `json:"is_virtual_machine,omitempty"`

	IsRandomizedMAC bool   `json:"is_randomized_mac"`
	DeviceGroupID   *int64 `json:"device_group_id,omitempty"`

	FirstSeen          time.Time `json:"first_seen"`
	LastSeen           time.Time `json:"last_seen"`
	TimesSeen          int64     `json:"times_seen"`
	LastSignalStrength *int      `json:"last_signal_strength,omitempty"`

	// Last position estimate from the positioning engine.
	LastLatitude      *float64   `json:"last_latitude,omitempty"`
	LastLongitude     *float64   `json:"last_longitude,omitempty"`
	PositionAccuracy  *float64   `json:"position_accuracy,omitempty"`
	PositionUpdatedAt *time.Time `json:"position_updated_at,omitempty"`
}

// DisplayName returns the nickname when set, otherwise the MAC address.
func (a *Asset) DisplayName() string {
	if a.Nickname != "" {
		return a.Nickname
	}
	return a.MAC
}

// SeenWithin reports whether the asset was detected inside the given
// presence window ending now.
func (a *Asset) SeenWithin(window time.Duration, now time.Time) bool {
	return now.Sub(a.LastSeen) < window
}

// LastPosition returns the stored position estimate, or nil when the asset
// has never been positioned.
func (a *Asset) LastPosition() *PositionEstimate {
	if a.LastLatitude == nil || a.LastLongitude == nil {
		return nil
	}
	est := &PositionEstimate{
		Location: GeoPoint{Latitude: *a.LastLatitude, Longitude: *a.LastLongitude},
	}
	if a.PositionAccuracy != nil {
		est.Accuracy = *a.PositionAccuracy
	}
	return est
}

// ProbeRecord is one stored probe observation, used for fingerprinting and
// recency queries.
type ProbeRecord struct {
	AssetID        int64
	Timestamp      time.Time
	SignalStrength *int
	SSID           string
}

// SignalReading is a signal observation attributed to a specific monitor,
// the input unit of multi-monitor positioning. Rows persist in the
// repository but positioning only reads a recency window.
type SignalReading struct {
	ID                int64
	AssetID           int64
	MonitorID         int64
	SignalStrength    int
	EstimatedDistance float64
	Timestamp         time.Time
}
