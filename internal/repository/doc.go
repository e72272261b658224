// Package repository defines the data access interfaces for whereabouts.
//
// This package provides the repository abstraction layer for persisting
// and retrieving domain entities. The actual implementation is in the
// sqlite subpackage.
//
// # Interfaces
//
// AssetRepository covers tracked devices and their observation history:
// sightings, probe logs, SSID history, per-monitor signal readings,
// position updates, and randomized-MAC device groups.
//
// MonitorRegistry covers the stations themselves: the local monitor row,
// remote monitors keyed by API key, locations and heartbeats.
//
// # SQLite Implementation
//
// The sqlite implementation provides both interfaces over a single
// SQLite database with WAL mode for concurrency. The schema is created
// on startup.
//
// # Testing
//
// The sqlite repository is tested with in-memory databases to ensure
// data integrity and proper handling of edge cases.
package repository
