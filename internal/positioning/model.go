// Package positioning estimates device positions from signal-strength
// readings gathered across monitoring stations: a log-distance path loss
// model turns dBm into meters, and circle intersection (bilateration, or a
// weighted combination of pairwise bilaterations for three or more
// stations) turns per-station distances into a coordinate with accuracy
// and confidence.
package positioning

import "math"

// Distance clamp bounds for the path loss model. Anything nearer than half
// a meter or farther than a hundred is outside the model's useful range.
const (
	MinDistanceMeters = 0.5
	MaxDistanceMeters = 100.0
)

// Model converts received signal strength to an estimated distance using
// the log-distance path loss model:
//
//	distance = 10 ^ ((tx_power - rssi) / (10 * n))
//
// Both parameters are deployment-tunable; there is no auto-calibration.
type Model struct {
	// TxPower is the reference signal strength at one meter, in dBm.
	TxPower int
	// PathLossExponent is the environment factor: 2 free space, 2.7-3.5
	// indoor, 4-6 heavily obstructed.
	PathLossExponent float64
}

// DefaultModel returns the indoor defaults: -59 dBm at one meter with an
// exponent of 3.0.
func DefaultModel() Model {
	return Model{TxPower: -59, PathLossExponent: 3.0}
}

// Distance estimates the distance in meters for a received signal. A
// signal at or above the reference power means the device is essentially
// on top of the station and returns the floor. Results are clamped to
// [MinDistanceMeters, MaxDistanceMeters]; distance is monotonic
// non-increasing as signal increases.
func (m Model) Distance(signalDBM int) float64 {
	if signalDBM >= m.TxPower {
		return MinDistanceMeters
	}

	exponent := float64(m.TxPower-signalDBM) / (10 * m.PathLossExponent)
	distance := math.Pow(10, exponent)

	return math.Min(math.Max(distance, MinDistanceMeters), MaxDistanceMeters)
}
