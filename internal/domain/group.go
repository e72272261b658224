package domain

import "time"

// DeviceGroup links randomized MAC addresses that probably belong to one
// physical device. Membership is probabilistic similarity over behavioral
// fingerprints, never a recovery of the hardware address.
type DeviceGroup struct {
	ID         int64  `json:"id"`
	PrimaryMAC string `json:"primary_mac"`
	// FingerprintData is the serialized fingerprint the group was last
	// matched against; the fingerprint package owns its layout.
	FingerprintData string    `json:"fingerprint_data,omitempty"`
	ConfidenceScore float64   `json:"confidence_score"`
	FirstSeen       time.Time `json:"first_seen"`
	LastSeen        time.Time `json:"last_seen"`
	TimesSeen       int64     `json:"times_seen"`
}
