// Package domain contains the core types shared across the detection,
// positioning and grouping subsystems: assets keyed by canonical MAC
// address, monitoring stations, signal readings, device groups, and the
// geodesy value types they build on.
package domain
