package sqlite

import (
	"database/sql"
	"time"

	"whereabouts/internal/domain"
)

// ============================================================================
// Null Type Conversion Helpers
// ============================================================================

// nullToString safely converts sql.NullString to string
func nullToString(ns sql.NullString) string {
	if ns.Valid {
		return ns.String
	}
	return ""
}

// nullToTimePtr safely converts sql.NullTime to *time.Time
func nullToTimePtr(nt sql.NullTime) *time.Time {
	if nt.Valid {
		return &nt.Time
	}
	return nil
}

// nullToIntPtr safely converts sql.NullInt64 to *int
func nullToIntPtr(ni sql.NullInt64) *int {
	if ni.Valid {
		v := int(ni.Int64)
		return &v
	}
	return nil
}

// nullToFloatPtr safely converts sql.NullFloat64 to *float64
func nullToFloatPtr(nf sql.NullFloat64) *float64 {
	if nf.Valid {
		v := nf.Float64
		return &v
	}
	return nil
}

// nullToInt64Ptr safely converts sql.NullInt64 to *int64
func nullToInt64Ptr(ni sql.NullInt64) *int64 {
	if ni.Valid {
		v := ni.Int64
		return &v
	}
	return nil
}

// intPtrToNull safely converts *int to sql.NullInt64
func intPtrToNull(i *int) sql.NullInt64 {
	if i == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*i), Valid: true}
}

// ============================================================================
// Asset Row Scanner
// ============================================================================

// assetRow holds all columns from an asset query for scanning
type assetRow struct {
	ID                 int64
	MAC                string
	Nickname           string
	IP                 string
	Hostname           string
	Vendor             string
	DeviceType         string
	VendorCountry      string
	IsVirtualMachine   int64
	IsRandomizedMAC    int64
	DeviceGroupID      sql.NullInt64
	DetectionMethod    string
	FirstSeen          time.Time
	LastSeen           time.Time
	TimesSeen          int64
	LastSignalStrength sql.NullInt64
	LastLatitude       sql.NullFloat64
	LastLongitude      sql.NullFloat64
	PositionAccuracy   sql.NullFloat64
	PositionUpdatedAt  sql.NullTime
}

// scanArgs returns pointers to all fields for sql.Scan()
// MUST match assetColumns order exactly.
func (r *assetRow) scanArgs() []interface{} {
	return []interface{}{
		&r.ID,
		&r.MAC,
		&r.Nickname,
		&r.IP,
		&r.Hostname,
		&r.Vendor,
		&r.DeviceType,
		&r.VendorCountry,
		&r.IsVirtualMachine,
		&r.IsRandomizedMAC,
		&r.DeviceGroupID,
		&r.DetectionMethod,
		&r.FirstSeen,
		&r.LastSeen,
		&r.TimesSeen,
		&r.LastSignalStrength,
		&r.LastLatitude,
		&r.LastLongitude,
		&r.PositionAccuracy,
		&r.PositionUpdatedAt,
	}
}

// toDomain converts the scanned row to a domain.Asset
func (r *assetRow) toDomain() *domain.Asset {
	return &domain.Asset{
		ID:                  r.ID,
		MAC:                 r.MAC,
		Nickname:            r.Nickname,
		IP:                  r.IP,
		Hostname:            r.Hostname,
		Vendor:              r.Vendor,
		DeviceType:          r.DeviceType,
		VendorCountry:       r.VendorCountry,
		IsVirtualMachine:    r.IsVirtualMachine != 0,
		IsRandomizedMAC:     r.IsRandomizedMAC != 0,
		DeviceGroupID:       nullToInt64Ptr(r.DeviceGroupID),
		LastDetectionMethod: domain.DetectionMethod(r.DetectionMethod),
		FirstSeen:           r.FirstSeen,
		LastSeen:            r.LastSeen,
		TimesSeen:           r.TimesSeen,
		LastSignalStrength:  nullToIntPtr(r.LastSignalStrength),
		LastLatitude:        nullToFloatPtr(r.LastLatitude),
		LastLongitude:       nullToFloatPtr(r.LastLongitude),
		PositionAccuracy:    nullToFloatPtr(r.PositionAccuracy),
		PositionUpdatedAt:   nullToTimePtr(r.PositionUpdatedAt),
	}
}

// assetColumns returns the SELECT column list for asset queries
const assetColumns = `id, mac_address, nickname, ip_address, hostname, vendor,
	device_type, vendor_country, is_virtual_machine, is_randomized_mac,
	device_group_id, detection_method, first_seen, last_seen, times_seen,
	last_signal_strength, last_latitude, last_longitude, position_accuracy,
	position_updated_at`

// ============================================================================
// Monitor Row Scanner
// ============================================================================

// monitorRow holds all columns from a monitor query for scanning
type monitorRow struct {
	ID        int64
	Name      string
	Latitude  float64
	Longitude float64
	APIKey    string
	IsLocal   int64
	Active    int64
	LastSeen  sql.NullTime
	CreatedAt time.Time
}

// scanArgs returns pointers to all fields for sql.Scan()
// MUST match monitorColumns order exactly.
func (r *monitorRow) scanArgs() []interface{} {
	return []interface{}{
		&r.ID,
		&r.Name,
		&r.Latitude,
		&r.Longitude,
		&r.APIKey,
		&r.IsLocal,
		&r.Active,
		&r.LastSeen,
		&r.CreatedAt,
	}
}

// toDomain converts the scanned row to a domain.Monitor
func (r *monitorRow) toDomain() *domain.Monitor {
	m := &domain.Monitor{
		ID:        r.ID,
		Name:      r.Name,
		Latitude:  r.Latitude,
		Longitude: r.Longitude,
		APIKey:    r.APIKey,
		IsLocal:   r.IsLocal != 0,
		Active:    r.Active != 0,
		CreatedAt: r.CreatedAt,
	}
	if r.LastSeen.Valid {
		m.LastSeen = r.LastSeen.Time
	}
	return m
}

// monitorColumns returns the SELECT column list for monitor queries
const monitorColumns = `id, name, latitude, longitude, api_key, is_local,
	active, last_seen, created_at`
