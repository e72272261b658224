// Package sqlite implements the repository interfaces over a single
// SQLite database. The driver is CGo-free, so the binary cross-compiles
// for the small boards monitors usually run on.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"whereabouts/internal/domain"
)

// Repository implements repository.AssetRepository and
// repository.MonitorRegistry using SQLite.
type Repository struct {
	db *sql.DB
}

// New creates a new SQLite repository at dbPath. ":memory:" is accepted
// for tests.
func New(dbPath string) (*Repository, error) {
	dsn := dbPath + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if dbPath == ":memory:" {
		// Each pool connection would otherwise see its own empty
		// in-memory database.
		db.SetMaxOpenConns(1)
	}

	repo := &Repository{db: db}
	if err := repo.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return repo, nil
}

func (r *Repository) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS device_groups (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		primary_mac TEXT NOT NULL DEFAULT '',
		fingerprint_data TEXT NOT NULL DEFAULT '',
		confidence_score REAL NOT NULL DEFAULT 0,
		first_seen DATETIME,
		last_seen DATETIME,
		times_seen INTEGER NOT NULL DEFAULT 0
	);

	CREATE TABLE IF NOT EXISTS assets (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		mac_address TEXT NOT NULL UNIQUE,
		nickname TEXT NOT NULL DEFAULT '',
		ip_address TEXT NOT NULL DEFAULT '',
		hostname TEXT NOT NULL DEFAULT '',
		vendor TEXT NOT NULL DEFAULT '',
		device_type TEXT NOT NULL DEFAULT '',
		vendor_country TEXT NOT NULL DEFAULT '',
		is_virtual_machine INTEGER NOT NULL DEFAULT 0,
		is_randomized_mac INTEGER NOT NULL DEFAULT 0,
		device_group_id INTEGER REFERENCES device_groups(id) ON DELETE SET NULL,
		detection_method TEXT NOT NULL DEFAULT '',
		first_seen DATETIME NOT NULL,
		last_seen DATETIME NOT NULL,
		times_seen INTEGER NOT NULL DEFAULT 1,
		last_signal_strength INTEGER,
		last_latitude REAL,
		last_longitude REAL,
		position_accuracy REAL,
		position_updated_at DATETIME
	);

	CREATE TABLE IF NOT EXISTS probe_logs (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		asset_id INTEGER NOT NULL REFERENCES assets(id) ON DELETE CASCADE,
		timestamp DATETIME NOT NULL,
		signal_strength INTEGER,
		ssid TEXT NOT NULL DEFAULT ''
	);

	CREATE TABLE IF NOT EXISTS asset_ssids (
		asset_id INTEGER NOT NULL REFERENCES assets(id) ON DELETE CASCADE,
		ssid TEXT NOT NULL,
		last_seen DATETIME NOT NULL,
		PRIMARY KEY (asset_id, ssid)
	);

	CREATE TABLE IF NOT EXISTS monitors (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL UNIQUE,
		latitude REAL NOT NULL DEFAULT 0,
		longitude REAL NOT NULL DEFAULT 0,
		api_key TEXT NOT NULL UNIQUE,
		is_local INTEGER NOT NULL DEFAULT 0,
		active INTEGER NOT NULL DEFAULT 1,
		last_seen DATETIME,
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS signal_readings (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		asset_id INTEGER NOT NULL REFERENCES assets(id) ON DELETE CASCADE,
		monitor_id INTEGER NOT NULL REFERENCES monitors(id) ON DELETE CASCADE,
		signal_strength INTEGER NOT NULL,
		estimated_distance REAL NOT NULL,
		timestamp DATETIME NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_probe_logs_asset_time ON probe_logs(asset_id, timestamp);
	CREATE INDEX IF NOT EXISTS idx_probe_logs_time ON probe_logs(timestamp);
	CREATE INDEX IF NOT EXISTS idx_signal_readings_asset_time ON signal_readings(asset_id, timestamp);
	CREATE INDEX IF NOT EXISTS idx_assets_last_seen ON assets(last_seen);
	`

	_, err := r.db.Exec(schema)
	return err
}

// ============================================================================
// Assets
// ============================================================================

// UpsertByMAC records a sighting, creating the asset on first detection.
func (r *Repository) UpsertByMAC(ctx context.Context, event domain.DetectionEvent) (*domain.Asset, bool, error) {
	mac, err := domain.CanonicalMAC(event.MAC)
	if err != nil {
		return nil, false, err
	}

	ts := event.Timestamp.UTC()
	randomized := 0
	if domain.IsRandomizedMAC(mac) {
		randomized = 1
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO assets (mac_address, ip_address, hostname, is_randomized_mac,
			detection_method, first_seen, last_seen, times_seen, last_signal_strength)
		VALUES (?, ?, ?, ?, ?, ?, ?, 1, ?)
		ON CONFLICT(mac_address) DO UPDATE SET
			ip_address = CASE WHEN excluded.ip_address != '' THEN excluded.ip_address ELSE assets.ip_address END,
			hostname = CASE WHEN excluded.hostname != '' THEN excluded.hostname ELSE assets.hostname END,
			detection_method = excluded.detection_method,
			last_seen = excluded.last_seen,
			times_seen = assets.times_seen + 1,
			last_signal_strength = COALESCE(excluded.last_signal_strength, assets.last_signal_strength)
	`, mac, event.IP, event.Hostname, randomized, string(event.Method), ts, ts,
		intPtrToNull(event.SignalStrength))
	if err != nil {
		return nil, false, fmt.Errorf("failed to upsert asset: %w", err)
	}

	asset, err := r.AssetByMAC(ctx, mac)
	if err != nil {
		return nil, false, err
	}
	if asset == nil {
		return nil, false, errors.New("asset vanished after upsert")
	}
	isNew := asset.TimesSeen == 1
	return asset, isNew, nil
}

// AssetByMAC retrieves an asset by canonical MAC, or nil when unknown.
func (r *Repository) AssetByMAC(ctx context.Context, mac string) (*domain.Asset, error) {
	canonical, err := domain.CanonicalMAC(mac)
	if err != nil {
		return nil, err
	}

	var row assetRow
	err = r.db.QueryRowContext(ctx,
		`SELECT `+assetColumns+` FROM assets WHERE mac_address = ?`, canonical,
	).Scan(row.scanArgs()...)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query asset: %w", err)
	}
	return row.toDomain(), nil
}

// ListAssets returns all tracked assets, most recently seen first.
func (r *Repository) ListAssets(ctx context.Context) ([]domain.Asset, error) {
	return r.queryAssets(ctx,
		`SELECT `+assetColumns+` FROM assets ORDER BY last_seen DESC`)
}

// ListAssetsSeenSince returns assets seen at or after the cutoff.
func (r *Repository) ListAssetsSeenSince(ctx context.Context, since time.Time) ([]domain.Asset, error) {
	return r.queryAssets(ctx,
		`SELECT `+assetColumns+` FROM assets WHERE last_seen >= ? ORDER BY last_seen DESC`,
		since.UTC())
}

func (r *Repository) queryAssets(ctx context.Context, query string, args ...interface{}) ([]domain.Asset, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query assets: %w", err)
	}
	defer rows.Close()

	var assets []domain.Asset
	for rows.Next() {
		var row assetRow
		if err := rows.Scan(row.scanArgs()...); err != nil {
			return nil, fmt.Errorf("failed to scan asset: %w", err)
		}
		assets = append(assets, *row.toDomain())
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating assets: %w", err)
	}
	return assets, nil
}

// SetVendorInfo stores resolved manufacturer data on an asset.
func (r *Repository) SetVendorInfo(ctx context.Context, assetID int64, vendor, deviceType, country string, isVM bool) error {
	vm := 0
	if isVM {
		vm = 1
	}
	_, err := r.db.ExecContext(ctx, `
		UPDATE assets SET vendor = ?, device_type = ?, vendor_country = ?, is_virtual_machine = ?
		WHERE id = ?
	`, vendor, deviceType, country, vm, assetID)
	if err != nil {
		return fmt.Errorf("failed to set vendor info: %w", err)
	}
	return nil
}

// ============================================================================
// Probe history
// ============================================================================

// RecordProbe stores one probe observation and folds its SSID into the
// asset's SSID history.
func (r *Repository) RecordProbe(ctx context.Context, record domain.ProbeRecord) error {
	ts := record.Timestamp.UTC()
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO probe_logs (asset_id, timestamp, signal_strength, ssid)
		VALUES (?, ?, ?, ?)
	`, record.AssetID, ts, intPtrToNull(record.SignalStrength), record.SSID)
	if err != nil {
		return fmt.Errorf("failed to record probe: %w", err)
	}

	if record.SSID != "" {
		_, err = r.db.ExecContext(ctx, `
			INSERT INTO asset_ssids (asset_id, ssid, last_seen) VALUES (?, ?, ?)
			ON CONFLICT(asset_id, ssid) DO UPDATE SET last_seen = excluded.last_seen
		`, record.AssetID, record.SSID, ts)
		if err != nil {
			return fmt.Errorf("failed to update ssid history: %w", err)
		}
	}
	return nil
}

// ProbeHistory returns an asset's probes at or after the cutoff, oldest
// first.
func (r *Repository) ProbeHistory(ctx context.Context, assetID int64, since time.Time) ([]domain.ProbeRecord, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT asset_id, timestamp, signal_strength, ssid
		FROM probe_logs
		WHERE asset_id = ? AND timestamp >= ?
		ORDER BY timestamp
	`, assetID, since.UTC())
	if err != nil {
		return nil, fmt.Errorf("failed to query probe history: %w", err)
	}
	defer rows.Close()

	var records []domain.ProbeRecord
	for rows.Next() {
		var (
			rec    domain.ProbeRecord
			signal sql.NullInt64
		)
		if err := rows.Scan(&rec.AssetID, &rec.Timestamp, &signal, &rec.SSID); err != nil {
			return nil, fmt.Errorf("failed to scan probe record: %w", err)
		}
		rec.SignalStrength = nullToIntPtr(signal)
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating probe records: %w", err)
	}
	return records, nil
}

// SSIDHistory returns the distinct SSIDs an asset has probed for, most
// recently seen first.
func (r *Repository) SSIDHistory(ctx context.Context, assetID int64) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT ssid FROM asset_ssids WHERE asset_id = ? ORDER BY last_seen DESC
	`, assetID)
	if err != nil {
		return nil, fmt.Errorf("failed to query ssid history: %w", err)
	}
	defer rows.Close()

	var ssids []string
	for rows.Next() {
		var ssid string
		if err := rows.Scan(&ssid); err != nil {
			return nil, fmt.Errorf("failed to scan ssid: %w", err)
		}
		ssids = append(ssids, ssid)
	}
	return ssids, rows.Err()
}

// ============================================================================
// Signal readings and positions
// ============================================================================

// AddSignalReading stores a per-monitor signal observation.
func (r *Repository) AddSignalReading(ctx context.Context, reading domain.SignalReading) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO signal_readings (asset_id, monitor_id, signal_strength, estimated_distance, timestamp)
		VALUES (?, ?, ?, ?, ?)
	`, reading.AssetID, reading.MonitorID, reading.SignalStrength,
		reading.EstimatedDistance, reading.Timestamp.UTC())
	if err != nil {
		return fmt.Errorf("failed to add signal reading: %w", err)
	}
	return nil
}

// RecentSignalReadings returns an asset's readings at or after the
// cutoff, newest first.
func (r *Repository) RecentSignalReadings(ctx context.Context, assetID int64, since time.Time) ([]domain.SignalReading, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, asset_id, monitor_id, signal_strength, estimated_distance, timestamp
		FROM signal_readings
		WHERE asset_id = ? AND timestamp >= ?
		ORDER BY timestamp DESC
	`, assetID, since.UTC())
	if err != nil {
		return nil, fmt.Errorf("failed to query signal readings: %w", err)
	}
	defer rows.Close()

	var readings []domain.SignalReading
	for rows.Next() {
		var reading domain.SignalReading
		if err := rows.Scan(&reading.ID, &reading.AssetID, &reading.MonitorID,
			&reading.SignalStrength, &reading.EstimatedDistance, &reading.Timestamp); err != nil {
			return nil, fmt.Errorf("failed to scan signal reading: %w", err)
		}
		readings = append(readings, reading)
	}
	return readings, rows.Err()
}

// AverageSignalsSince returns the mean probe signal per MAC address since
// the cutoff. Probes without a signal level are excluded.
func (r *Repository) AverageSignalsSince(ctx context.Context, since time.Time) (map[string]int, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT a.mac_address, CAST(ROUND(AVG(p.signal_strength)) AS INTEGER)
		FROM probe_logs p
		JOIN assets a ON a.id = p.asset_id
		WHERE p.timestamp >= ? AND p.signal_strength IS NOT NULL
		GROUP BY a.mac_address
	`, since.UTC())
	if err != nil {
		return nil, fmt.Errorf("failed to query signal averages: %w", err)
	}
	defer rows.Close()

	averages := make(map[string]int)
	for rows.Next() {
		var (
			mac string
			avg int
		)
		if err := rows.Scan(&mac, &avg); err != nil {
			return nil, fmt.Errorf("failed to scan signal average: %w", err)
		}
		averages[mac] = avg
	}
	return averages, rows.Err()
}

// UpdatePosition stores a position estimate on an asset.
func (r *Repository) UpdatePosition(ctx context.Context, assetID int64, estimate domain.PositionEstimate, at time.Time) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE assets
		SET last_latitude = ?, last_longitude = ?, position_accuracy = ?, position_updated_at = ?
		WHERE id = ?
	`, estimate.Location.Latitude, estimate.Location.Longitude, estimate.Accuracy, at.UTC(), assetID)
	if err != nil {
		return fmt.Errorf("failed to update position: %w", err)
	}
	return nil
}

// ============================================================================
// Device groups
// ============================================================================

// ListDeviceGroups returns all device groups.
func (r *Repository) ListDeviceGroups(ctx context.Context) ([]domain.DeviceGroup, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, primary_mac, fingerprint_data, confidence_score, first_seen, last_seen, times_seen
		FROM device_groups
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query device groups: %w", err)
	}
	defer rows.Close()

	var groups []domain.DeviceGroup
	for rows.Next() {
		var (
			group               domain.DeviceGroup
			firstSeen, lastSeen sql.NullTime
		)
		if err := rows.Scan(&group.ID, &group.PrimaryMAC, &group.FingerprintData,
			&group.ConfidenceScore, &firstSeen, &lastSeen, &group.TimesSeen); err != nil {
			return nil, fmt.Errorf("failed to scan device group: %w", err)
		}
		if firstSeen.Valid {
			group.FirstSeen = firstSeen.Time
		}
		if lastSeen.Valid {
			group.LastSeen = lastSeen.Time
		}
		groups = append(groups, group)
	}
	return groups, rows.Err()
}

// CreateDeviceGroup inserts a group and fills in its assigned ID.
func (r *Repository) CreateDeviceGroup(ctx context.Context, group *domain.DeviceGroup) error {
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO device_groups (primary_mac, fingerprint_data, confidence_score, first_seen, last_seen, times_seen)
		VALUES (?, ?, ?, ?, ?, ?)
	`, group.PrimaryMAC, group.FingerprintData, group.ConfidenceScore,
		group.FirstSeen.UTC(), group.LastSeen.UTC(), group.TimesSeen)
	if err != nil {
		return fmt.Errorf("failed to create device group: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to read device group id: %w", err)
	}
	group.ID = id
	return nil
}

// UpdateDeviceGroup rewrites a group's mutable fields.
func (r *Repository) UpdateDeviceGroup(ctx context.Context, group *domain.DeviceGroup) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE device_groups
		SET primary_mac = ?, fingerprint_data = ?, confidence_score = ?, last_seen = ?, times_seen = ?
		WHERE id = ?
	`, group.PrimaryMAC, group.FingerprintData, group.ConfidenceScore,
		group.LastSeen.UTC(), group.TimesSeen, group.ID)
	if err != nil {
		return fmt.Errorf("failed to update device group: %w", err)
	}
	return nil
}

// AssignAssetToGroup links an asset to a device group.
func (r *Repository) AssignAssetToGroup(ctx context.Context, assetID, groupID int64) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE assets SET device_group_id = ? WHERE id = ?
	`, groupID, assetID)
	if err != nil {
		return fmt.Errorf("failed to assign asset to group: %w", err)
	}
	return nil
}

// ============================================================================
// Monitors
// ============================================================================

// ListActiveMonitors returns all monitors marked active.
func (r *Repository) ListActiveMonitors(ctx context.Context) ([]domain.Monitor, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+monitorColumns+` FROM monitors WHERE active = 1 ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query monitors: %w", err)
	}
	defer rows.Close()

	var monitors []domain.Monitor
	for rows.Next() {
		var row monitorRow
		if err := rows.Scan(row.scanArgs()...); err != nil {
			return nil, fmt.Errorf("failed to scan monitor: %w", err)
		}
		monitors = append(monitors, *row.toDomain())
	}
	return monitors, rows.Err()
}

// GetOrCreateLocalMonitor returns the station's own monitor row, creating
// it with a fresh API key on first run. The stored location wins over the
// given one once the row exists.
func (r *Repository) GetOrCreateLocalMonitor(ctx context.Context, name string, lat, lon float64) (*domain.Monitor, error) {
	var row monitorRow
	err := r.db.QueryRowContext(ctx,
		`SELECT `+monitorColumns+` FROM monitors WHERE is_local = 1 LIMIT 1`,
	).Scan(row.scanArgs()...)
	if err == nil {
		return row.toDomain(), nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("failed to query local monitor: %w", err)
	}

	apiKey := uuid.NewString()
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO monitors (name, latitude, longitude, api_key, is_local, active)
		VALUES (?, ?, ?, ?, 1, 1)
	`, name, lat, lon, apiKey)
	if err != nil {
		return nil, fmt.Errorf("failed to create local monitor: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("failed to read monitor id: %w", err)
	}

	return &domain.Monitor{
		ID:        id,
		Name:      name,
		Latitude:  lat,
		Longitude: lon,
		APIKey:    apiKey,
		IsLocal:   true,
		Active:    true,
		CreatedAt: time.Now().UTC(),
	}, nil
}

// MonitorByAPIKey retrieves a monitor by its API key, or nil when the key
// is unknown.
func (r *Repository) MonitorByAPIKey(ctx context.Context, apiKey string) (*domain.Monitor, error) {
	var row monitorRow
	err := r.db.QueryRowContext(ctx,
		`SELECT `+monitorColumns+` FROM monitors WHERE api_key = ?`, apiKey,
	).Scan(row.scanArgs()...)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query monitor: %w", err)
	}
	return row.toDomain(), nil
}

// UpdateMonitorLocation moves a monitor.
func (r *Repository) UpdateMonitorLocation(ctx context.Context, monitorID int64, lat, lon float64) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE monitors SET latitude = ?, longitude = ? WHERE id = ?
	`, lat, lon, monitorID)
	if err != nil {
		return fmt.Errorf("failed to update monitor location: %w", err)
	}
	return nil
}

// RecordHeartbeat marks a monitor as recently seen.
func (r *Repository) RecordHeartbeat(ctx context.Context, monitorID int64, at time.Time) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE monitors SET last_seen = ? WHERE id = ?
	`, at.UTC(), monitorID)
	if err != nil {
		return fmt.Errorf("failed to record heartbeat: %w", err)
	}
	return nil
}

// Close closes the database connection
func (r *Repository) Close() error {
	return r.db.Close()
}
